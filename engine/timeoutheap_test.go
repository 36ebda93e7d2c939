package engine

import (
	"testing"
	"time"
)

func TestDeadlineQueueOrdersByDeadline(t *testing.T) {
	dq := newDeadlineQueue()
	now := time.Now()

	dq.schedule(1, 0, now.Add(3*time.Second))
	dq.schedule(2, 0, now.Add(1*time.Second))
	dq.schedule(3, 0, now.Add(2*time.Second))

	next, ok := dq.nextDeadline()
	if !ok {
		t.Fatal("expected a pending deadline")
	}
	if !next.Equal(now.Add(1 * time.Second)) {
		t.Errorf("expected soonest deadline first, got %v", next)
	}
}

func TestDeadlineQueuePopExpired(t *testing.T) {
	dq := newDeadlineQueue()
	now := time.Now()

	dq.schedule(1, 0, now.Add(-1*time.Second)) // already expired
	dq.schedule(2, 0, now.Add(1*time.Hour))

	expired := dq.popExpired(now)
	if len(expired) != 1 || expired[0].slot != 1 {
		t.Fatalf("expected exactly slot 1 to have expired, got %+v", expired)
	}

	if _, ok := dq.nextDeadline(); !ok {
		t.Fatal("expected slot 2's deadline to remain queued")
	}
}

func TestDeadlineQueueStaleRequestSeqIsCallerResponsibility(t *testing.T) {
	// The heap itself does not dedupe by requestSeq; sweepTimeouts in
	// engine.go is responsible for discarding an expired entry whose
	// requestSeq no longer matches the connection's current one.
	dq := newDeadlineQueue()
	now := time.Now()
	dq.schedule(1, 5, now.Add(-time.Second))
	dq.schedule(1, 6, now.Add(-time.Second))

	expired := dq.popExpired(now)
	if len(expired) != 2 {
		t.Fatalf("expected both stale and current entries to pop, got %d", len(expired))
	}
}
