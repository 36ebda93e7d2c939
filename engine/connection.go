package engine

import "time"

// ConnState is a connection's I/O interest at any given moment
//.
type ConnState int

const (
	// StateReading: the connection is registered for read readiness and
	// has no pending response bytes to flush.
	StateReading ConnState = iota
	// StateWriting: a response is queued and the connection is
	// registered for write readiness; reads are paused until the write
	// buffer has fully drained.
	StateWriting
	// StateUpgraded: the connection has switched protocols (WebSocket)
	// and byte framing is owned by the bridge layer, not httpcore.
	StateUpgraded
	// StateClosed: the slot is free and awaiting reuse.
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateReading:
		return "reading"
	case StateWriting:
		return "writing"
	case StateUpgraded:
		return "upgraded"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Connection is one accepted socket, held in the engine's dense
// connection table. Its buffers are read and mutated only from the
// reactor's single goroutine; no field here is ever touched
// concurrently.
type Connection struct {
	Fd    int
	Slot  uint32
	State ConnState

	// ReadBuf accumulates bytes read off the socket until httpcore can
	// parse a complete request out of it. It is never copied past the
	// parse boundary — parsed
	// request parts reference slices of this buffer directly.
	ReadBuf []byte

	// WriteBuf holds response bytes not yet flushed to the socket.
	// Partial writes advance WriteOff rather than re-slicing WriteBuf,
	// so a half-written buffer never reallocates.
	WriteBuf []byte
	WriteOff int

	// RequestSeq counts completed request/response cycles on this
	// connection, used to tell a stale timeout-heap entry (scheduled
	// for an earlier request) from the current one.
	RequestSeq uint64

	// Deadline is the wall-clock instant by which the in-flight request
	// must finish, or the connection is closed as timed out.
	Deadline time.Time

	// Upgraded carries protocol-specific state once State ==
	// StateUpgraded (set by the bridge layer on a successful Upgrade).
	Upgraded any

	// KeepAlive is false once either side has signaled the connection
	// should close after the current response finishes writing.
	KeepAlive bool

	// pipelinedNext holds raw bytes already read past the boundary of
	// the request currently being handled; httpcore may parse ahead,
	// but the engine will not dispatch a second request until the
	// first response has begun writing.
	pipelinedNext int
}

func (c *Connection) reset() {
	c.ReadBuf = c.ReadBuf[:0]
	c.WriteBuf = c.WriteBuf[:0]
	c.WriteOff = 0
	c.pipelinedNext = 0
	c.Upgraded = nil
	c.State = StateClosed
}

// PendingWrite reports whether there are unflushed response bytes.
func (c *Connection) PendingWrite() bool {
	return c.WriteOff < len(c.WriteBuf)
}
