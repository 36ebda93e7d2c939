// Package engine owns the single-threaded, readiness-based reactor
// that drives all socket I/O for Rover's HTTP core. One
// OS thread accepts connections, reads frames, writes responses, and
// enforces per-request deadlines; no other goroutine touches a
// Connection's buffers while the reactor is running.
package engine

// Event is one readiness notification the poller hands back from
// Wait: fd became readable, writable, or errored.
type Event struct {
	Fd       int
	Readable bool
	Writable bool
	Err      bool
}

// Poller is the OS-specific readiness multiplexer (epoll on Linux,
// kqueue on Darwin/BSD). The engine is written entirely against this
// interface so the reactor loop itself never branches on GOOS.
type Poller interface {
	// Add registers fd for read readiness (and write readiness too, if
	// writable is true).
	Add(fd int, writable bool) error
	// Modify changes which readiness classes fd is registered for.
	Modify(fd int, readable, writable bool) error
	// Remove deregisters fd. Safe to call after the fd has already been
	// closed.
	Remove(fd int) error
	// Wait blocks until at least one registered fd is ready or
	// timeoutMillis elapses (-1 blocks indefinitely), appending ready
	// events to dst and returning the extended slice.
	Wait(dst []Event, timeoutMillis int) ([]Event, error)
	// Close releases the poller's underlying OS resource.
	Close() error
}
