package engine

import (
	"container/heap"
	"time"
)

// timeoutEntry is one scheduled deadline: (deadline, connection slot,
// request sequence) per spec.md §4.1. requestSeq lets the engine
// discard an entry that has gone stale because the connection already
// completed that request (and possibly started a new one) before the
// deadline fired.
type timeoutEntry struct {
	deadline   time.Time
	slot       uint32
	requestSeq uint64
	index      int
}

type timeoutHeap []*timeoutEntry

func (h timeoutHeap) Len() int            { return len(h) }
func (h timeoutHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h timeoutHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *timeoutHeap) Push(x any) {
	e := x.(*timeoutEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *timeoutHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// deadlineQueue wraps timeoutHeap behind container/heap with the
// domain-specific operations the reactor loop needs.
type deadlineQueue struct {
	h timeoutHeap
}

func newDeadlineQueue() *deadlineQueue {
	dq := &deadlineQueue{}
	heap.Init(&dq.h)
	return dq
}

func (dq *deadlineQueue) schedule(slot uint32, requestSeq uint64, deadline time.Time) {
	heap.Push(&dq.h, &timeoutEntry{deadline: deadline, slot: slot, requestSeq: requestSeq})
}

// nextDeadline returns the soonest pending deadline, or zero+false if
// the queue is empty.
func (dq *deadlineQueue) nextDeadline() (time.Time, bool) {
	if len(dq.h) == 0 {
		return time.Time{}, false
	}
	return dq.h[0].deadline, true
}

// popExpired removes and returns every entry whose deadline is <= now.
func (dq *deadlineQueue) popExpired(now time.Time) []*timeoutEntry {
	var expired []*timeoutEntry
	for len(dq.h) > 0 && !dq.h[0].deadline.After(now) {
		expired = append(expired, heap.Pop(&dq.h).(*timeoutEntry))
	}
	return expired
}
