//go:build darwin

package engine

import "golang.org/x/sys/unix"

// kqueuePoller is the BSD/Darwin readiness backend. Registration is
// per-filter (EVFILT_READ / EVFILT_WRITE) rather than a single
// combined event mask, so Modify re-issues both filters to match the
// epoll backend's semantics exactly.
type kqueuePoller struct {
	kq int
}

func newPlatformPoller() (Poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	return &kqueuePoller{kq: kq}, nil
}

func (p *kqueuePoller) changeList(fd int, readable, writable bool) []unix.Kevent_t {
	readFlag := uint16(unix.EV_DELETE)
	if readable {
		readFlag = unix.EV_ADD | unix.EV_ENABLE
	}
	writeFlag := uint16(unix.EV_DELETE)
	if writable {
		writeFlag = unix.EV_ADD | unix.EV_ENABLE
	}
	return []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: readFlag},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: writeFlag},
	}
}

func (p *kqueuePoller) apply(changes []unix.Kevent_t) error {
	_, err := unix.Kevent(p.kq, changes, nil, nil)
	if err == unix.ENOENT {
		return nil
	}
	return err
}

func (p *kqueuePoller) Add(fd int, writable bool) error {
	return p.apply(p.changeList(fd, true, writable))
}

func (p *kqueuePoller) Modify(fd int, readable, writable bool) error {
	return p.apply(p.changeList(fd, readable, writable))
}

func (p *kqueuePoller) Remove(fd int) error {
	return p.apply([]unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE},
	})
}

func (p *kqueuePoller) Wait(dst []Event, timeoutMillis int) ([]Event, error) {
	var ts *unix.Timespec
	if timeoutMillis >= 0 {
		t := unix.NsecToTimespec(int64(timeoutMillis) * 1e6)
		ts = &t
	}
	var raw [256]unix.Kevent_t
	n, err := unix.Kevent(p.kq, nil, raw[:], ts)
	if err != nil {
		if err == unix.EINTR {
			return dst, nil
		}
		return dst, err
	}
	order := make([]int, 0, n)
	byFd := make(map[int]*Event, n)
	for i := 0; i < n; i++ {
		e := raw[i]
		fd := int(e.Ident)
		ev, ok := byFd[fd]
		if !ok {
			ev = &Event{Fd: fd}
			byFd[fd] = ev
			order = append(order, fd)
		}
		switch e.Filter {
		case unix.EVFILT_READ:
			ev.Readable = true
		case unix.EVFILT_WRITE:
			ev.Writable = true
		}
		if e.Flags&unix.EV_ERROR != 0 {
			ev.Err = true
		}
	}
	for _, fd := range order {
		dst = append(dst, *byFd[fd])
	}
	return dst, nil
}

func (p *kqueuePoller) Close() error {
	return unix.Close(p.kq)
}
