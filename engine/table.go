package engine

// connTable is the dense, hole-recycling connection table spec.md
// §4.1 calls for: "assigns each an integer slot in a dense table
// (hole-recycling)". Slots are reused so the table never grows past
// the high-water mark of concurrently open connections.
type connTable struct {
	conns    []*Connection
	freeList []uint32
	byFd     map[int]uint32
}

func newConnTable() *connTable {
	return &connTable{byFd: make(map[int]uint32)}
}

func (t *connTable) acquire(fd int) *Connection {
	if n := len(t.freeList); n > 0 {
		slot := t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
		c := t.conns[slot]
		c.Fd = fd
		c.Slot = slot
		c.State = StateReading
		c.RequestSeq = 0
		c.KeepAlive = true
		t.byFd[fd] = slot
		return c
	}
	slot := uint32(len(t.conns))
	c := &Connection{Fd: fd, Slot: slot, State: StateReading, KeepAlive: true}
	t.conns = append(t.conns, c)
	t.byFd[fd] = slot
	return c
}

func (t *connTable) release(slot uint32) {
	if int(slot) >= len(t.conns) {
		return
	}
	delete(t.byFd, t.conns[slot].Fd)
	t.conns[slot].reset()
	t.freeList = append(t.freeList, slot)
}

func (t *connTable) bySlotFd(fd int) (*Connection, bool) {
	slot, ok := t.byFd[fd]
	if !ok {
		return nil, false
	}
	return t.get(slot)
}

func (t *connTable) get(slot uint32) (*Connection, bool) {
	if int(slot) >= len(t.conns) {
		return nil, false
	}
	c := t.conns[slot]
	if c.State == StateClosed {
		return nil, false
	}
	return c, true
}

func (t *connTable) len() int {
	return len(t.conns) - len(t.freeList)
}
