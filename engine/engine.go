package engine

import (
	"fmt"
	"log"
	"net"
	"time"
)

// RequestHandler is the boundary between the reactor and httpcore. It
// is handed the connection's entire accumulated read buffer and must
// report how much of it belongs to one complete request.
//
// Handle returns consumed == 0 when buf does not yet hold a complete
// request (the reactor keeps reading); consumed > 0 and a non-nil
// response when one request was fully parsed and answered. ok is
// false when the connection must be closed without writing anything;
// a malformed request is answered (ok true, keepAlive false) so the
// client sees the error status before the connection closes.
type RequestHandler interface {
	Handle(conn *Connection, buf []byte) (consumed int, response []byte, keepAlive bool, ok bool)
}

// Engine is the single-threaded reactor: one goroutine owns the
// listener, the poller, the connection table, and every connection's
// buffers for the engine's entire lifetime.
type Engine struct {
	cfg      Config
	handler  RequestHandler
	listener *net.TCPListener
	listenFd int
	poller   Poller
	table    *connTable
	deadline *deadlineQueue
	pools    *Pools

	closing bool
}

// New constructs an Engine bound to cfg.Addr. It does not start
// listening until Run is called.
func New(cfg Config, handler RequestHandler) *Engine {
	return &Engine{
		cfg:      cfg,
		handler:  handler,
		table:    newConnTable(),
		deadline: newDeadlineQueue(),
		pools:    newPools(cfg),
	}
}

// Run opens the listener, registers it with the poller, and blocks
// running the reactor loop until ctx-equivalent shutdown is requested
// via Close or an unrecoverable poller error occurs.
func (e *Engine) Run() error {
	addr, err := net.ResolveTCPAddr("tcp", e.cfg.Addr)
	if err != nil {
		return fmt.Errorf("engine: resolve addr: %w", err)
	}
	ln, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return fmt.Errorf("engine: listen: %w", err)
	}
	e.listener = ln

	fd, err := listenerFd(ln)
	if err != nil {
		return fmt.Errorf("engine: extract listener fd: %w", err)
	}
	e.listenFd = fd

	poller, err := newPlatformPoller()
	if err != nil {
		return fmt.Errorf("engine: create poller: %w", err)
	}
	e.poller = poller
	if err := e.poller.Add(e.listenFd, false); err != nil {
		return fmt.Errorf("engine: register listener: %w", err)
	}

	log.Printf("Engine: listening on %s", e.cfg.Addr)
	return e.loop()
}

// Close stops the reactor loop after its current Wait returns and
// releases the listener and poller.
func (e *Engine) Close() error {
	e.closing = true
	if e.poller != nil {
		_ = e.poller.Close()
	}
	if e.listener != nil {
		return e.listener.Close()
	}
	return nil
}

func (e *Engine) loop() error {
	events := make([]Event, 0, 256)
	for !e.closing {
		timeout := e.waitTimeout()
		var err error
		events, err = e.poller.Wait(events[:0], timeout)
		if err != nil {
			return fmt.Errorf("engine: poll wait: %w", err)
		}

		for _, ev := range events {
			if ev.Fd == e.listenFd {
				e.acceptLoop()
				continue
			}
			e.handleEvent(ev)
		}

		e.sweepTimeouts()
	}
	return nil
}

// waitTimeout computes how long Wait may block: forever if there is
// no pending request deadline, otherwise the time remaining until the
// soonest one, capped at one second.
func (e *Engine) waitTimeout() int {
	next, ok := e.deadline.nextDeadline()
	if !ok {
		return -1
	}
	d := time.Until(next)
	if d <= 0 {
		return 0
	}
	ms := d.Milliseconds()
	if ms > 1000 {
		ms = 1000
	}
	return int(ms)
}

// acceptLoop drains the accept queue (edge-triggered listeners only
// report readiness once) until it would block.
func (e *Engine) acceptLoop() {
	for {
		conn, err := e.listener.Accept()
		if err != nil {
			if isTemporary(err) {
				return
			}
			return
		}
		tcpConn := conn.(*net.TCPConn)
		_ = tcpConn.SetNoDelay(true)
		fd, err := connFd(tcpConn)
		if err != nil {
			log.Printf("Engine: failed to extract fd for new connection: %v", err)
			_ = conn.Close()
			continue
		}
		c := e.table.acquire(fd)
		c.ReadBuf = e.pools.Read.Get()
		if err := e.poller.Add(fd, false); err != nil {
			log.Printf("Engine: failed to register connection fd=%d: %v", fd, err)
			e.closeConn(c)
			continue
		}
		e.scheduleTimeout(c)
	}
}

func (e *Engine) scheduleTimeout(c *Connection) {
	c.Deadline = time.Now().Add(e.cfg.RequestTimeout)
	e.deadline.schedule(c.Slot, c.RequestSeq, c.Deadline)
}

func (e *Engine) sweepTimeouts() {
	for _, entry := range e.deadline.popExpired(time.Now()) {
		c, ok := e.table.get(entry.slot)
		if !ok || c.RequestSeq != entry.requestSeq {
			continue
		}
		log.Printf("Engine: closing fd=%d after request timeout", c.Fd)
		e.closeConn(c)
	}
}

func (e *Engine) handleEvent(ev Event) {
	c, ok := e.table.bySlotFd(ev.Fd)
	if !ok {
		return
	}
	if ev.Err {
		e.closeConn(c)
		return
	}
	switch c.State {
	case StateReading:
		if ev.Readable {
			e.handleReadable(c)
		}
	case StateWriting:
		if ev.Writable {
			e.handleWritable(c)
		}
	case StateUpgraded:
		if ev.Readable || ev.Writable {
			e.handleUpgraded(c, ev)
		}
	}
}

func (e *Engine) handleReadable(c *Connection) {
	processed := 0
	for processed < e.cfg.MaxBatch {
		n, err := readInto(c.Fd, &c.ReadBuf)
		if err != nil {
			if isWouldBlock(err) {
				break
			}
			e.closeConn(c)
			return
		}
		if n == 0 {
			e.closeConn(c)
			return
		}
		if !e.dispatchOne(c) {
			return
		}
		processed++
		if c.State != StateReading {
			return
		}
	}
}

// dispatchOne tries to parse and answer exactly one request out of
// c.ReadBuf. It returns false if the connection was closed.
func (e *Engine) dispatchOne(c *Connection) bool {
	consumed, response, keepAlive, ok := e.handler.Handle(c, c.ReadBuf)
	if !ok {
		e.closeConn(c)
		return false
	}
	if consumed == 0 {
		return true // incomplete; wait for more bytes
	}

	c.ReadBuf = shiftLeft(c.ReadBuf, consumed)
	c.RequestSeq++
	c.KeepAlive = keepAlive

	if response != nil {
		e.queueResponse(c, response)
	}
	return c.State != StateClosed
}

// queueResponse appends response to the connection's write buffer and
// switches it into StateWriting, applying backpressure if the buffer
// already exceeds the high water mark.
func (e *Engine) queueResponse(c *Connection, response []byte) {
	c.WriteBuf = append(c.WriteBuf, response...)
	if c.State != StateWriting {
		c.State = StateWriting
		_ = e.poller.Modify(c.Fd, len(c.WriteBuf)-c.WriteOff < e.cfg.HighWaterMark, true)
	}
	e.flushWrite(c)
}

func (e *Engine) handleWritable(c *Connection) {
	e.flushWrite(c)
}

func (e *Engine) flushWrite(c *Connection) {
	for c.PendingWrite() {
		n, err := writeFrom(c.Fd, c.WriteBuf[c.WriteOff:])
		if err != nil {
			if isWouldBlock(err) {
				return
			}
			e.closeConn(c)
			return
		}
		c.WriteOff += n
	}

	c.WriteBuf = c.WriteBuf[:0]
	c.WriteOff = 0

	if !c.KeepAlive {
		e.closeConn(c)
		return
	}

	c.State = StateReading
	_ = e.poller.Modify(c.Fd, true, false)
	e.scheduleTimeout(c)

	// A pipelined request may already be sitting in ReadBuf.
	if len(c.ReadBuf) > 0 {
		e.dispatchOne(c)
	}
}

// handleUpgraded forwards readiness on an upgraded connection (e.g. a
// WebSocket) to whatever the bridge layer installed; the reactor no
// longer interprets the byte stream itself.
func (e *Engine) handleUpgraded(c *Connection, ev Event) {
	if up, ok := c.Upgraded.(UpgradedHandler); ok {
		up.OnReady(c, ev.Readable, ev.Writable)
	}
}

// UpgradedHandler lets a protocol upgrade (installed by the bridge
// layer via Connection.Upgraded) keep driving reactor-owned I/O after
// the HTTP handshake completes.
type UpgradedHandler interface {
	OnReady(c *Connection, readable, writable bool)
}

func (e *Engine) closeConn(c *Connection) {
	_ = e.poller.Remove(c.Fd)
	_ = closeFd(c.Fd)
	if cap(c.ReadBuf) > 0 {
		e.pools.Read.Put(c.ReadBuf)
	}
	if cap(c.WriteBuf) > 0 {
		e.pools.Response.Put(c.WriteBuf)
	}
	e.table.release(c.Slot)
}

// shiftLeft removes the first n bytes of buf in place, preserving its
// backing array so the next read appends after the remainder.
func shiftLeft(buf []byte, n int) []byte {
	rem := copy(buf, buf[n:])
	return buf[:rem]
}
