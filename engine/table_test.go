package engine

import "testing"

func TestConnTableRecyclesSlots(t *testing.T) {
	tbl := newConnTable()

	a := tbl.acquire(10)
	b := tbl.acquire(11)
	if a.Slot == b.Slot {
		t.Fatalf("expected distinct slots, got %d and %d", a.Slot, b.Slot)
	}

	tbl.release(a.Slot)
	c := tbl.acquire(12)
	if c.Slot != a.Slot {
		t.Errorf("expected released slot %d to be recycled, got %d", a.Slot, c.Slot)
	}
	if c.Fd != 12 {
		t.Errorf("expected recycled connection to carry new fd 12, got %d", c.Fd)
	}
}

func TestConnTableByFdLookup(t *testing.T) {
	tbl := newConnTable()
	c := tbl.acquire(42)

	found, ok := tbl.bySlotFd(42)
	if !ok || found.Slot != c.Slot {
		t.Fatalf("expected to find connection by fd 42")
	}

	tbl.release(c.Slot)
	if _, ok := tbl.bySlotFd(42); ok {
		t.Error("expected released fd to no longer resolve")
	}
}

func TestConnTableGetRejectsClosedSlot(t *testing.T) {
	tbl := newConnTable()
	c := tbl.acquire(1)
	tbl.release(c.Slot)

	if _, ok := tbl.get(c.Slot); ok {
		t.Error("expected get on a released slot to report not-ok")
	}
}

func TestConnTableLen(t *testing.T) {
	tbl := newConnTable()
	a := tbl.acquire(1)
	_ = tbl.acquire(2)
	if tbl.len() != 2 {
		t.Fatalf("expected len 2, got %d", tbl.len())
	}
	tbl.release(a.Slot)
	if tbl.len() != 1 {
		t.Fatalf("expected len 1 after release, got %d", tbl.len())
	}
}
