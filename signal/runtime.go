// Package signal implements Rover's reactive core: an arena-backed
// dependency graph of mutable signals, lazily-computed derivations, and
// side-effectful effects, flushed in batches to a render-command sink.
// It is single-threaded by contract: every exported
// method assumes it is called from the one goroutine that owns the
// runtime, and performs no locking.
package signal

import (
	"fmt"
	"log"

	"github.com/roverlang/rover/value"
)

// NodeHook lets the node package receive signal→node notifications
// without the signal package importing node (which would own Node and
// RenderCommand types and create an import cycle). Tree implements
// this; Runtime calls it once per Node subscriber during a flush.
type NodeHook interface {
	// OnNodeChange is invoked when a signal or derived that a node is
	// bound to changes. It returns the render commands the notification
	// produced, in emission order; the runtime appends them to the
	// flush's outgoing command list verbatim.
	OnNodeChange(nodeID uint32, binding NodeBindingKind) []any
}

// CycleHook receives a notification when a dependency cycle is detected
// during a derived's recomputation.
// The runtime never panics or unwinds for this; it is purely a
// diagnostic hook, matching spec.md §7's "Signal cycle... logged as a
// programmer error; offending read returns stale or nil; does not crash."
type CycleHook func(derived DerivedId)

// Runtime owns every signal, derived, and effect slot plus the
// subscriber graph between them. The zero value is not usable; use New.
type Runtime struct {
	signals  *slotArena[signalSlot]
	deriveds *slotArena[derivedSlot]
	effects  *slotArena[effectSlot]

	// tracking scope stack: the subscriber currently being computed.
	scopeStack []trackingScope

	batchDepth  int
	dirtyDirect map[SubscriberRef]struct{} // pending notifications, deduplicated
	dirtyOrder  []SubscriberRef            // preserves first-seen order for deterministic flush
	pending     []any                      // render commands queued during the current batch

	nodeHook    NodeHook
	onCycle     CycleHook
	onEffectErr func(EffectId, any)
	onFlush     func()
}

type trackingScope struct {
	ref  SubscriberRef
	deps []dependable
	seen map[dependable]struct{}
}

// New returns an empty Runtime.
func New() *Runtime {
	return &Runtime{
		signals:     newSlotArena[signalSlot](),
		deriveds:    newSlotArena[derivedSlot](),
		effects:     newSlotArena[effectSlot](),
		dirtyDirect: make(map[SubscriberRef]struct{}),
	}
}

// SetNodeHook installs the node tree's notification receiver. Called
// once at wiring time by the node package.
func (r *Runtime) SetNodeHook(h NodeHook) { r.nodeHook = h }

// SetCycleHook installs a callback for detected dependency cycles.
func (r *Runtime) SetCycleHook(h CycleHook) { r.onCycle = h }

// SetEffectErrorHandler installs a recover hook invoked when an effect
// callback panics, so one broken effect cannot take down the reactor
// thread.
func (r *Runtime) SetEffectErrorHandler(h func(EffectId, any)) { r.onEffectErr = h }

// SetFlushHook installs a callback invoked after every flush (the end
// of a batch, or immediately after an unbatched write's notifications
// have run) once any render commands it produced are queued — a
// renderer sink drains DrainRenderCommands from here instead of
// polling, so a connected viewer sees each flush as one frame.
func (r *Runtime) SetFlushHook(h func()) { r.onFlush = h }

func (r *Runtime) signalFlushed() {
	if r.onFlush != nil {
		r.onFlush()
	}
}

// ---- signals ----

// CreateSignal allocates a new signal slot holding initial.
func (r *Runtime) CreateSignal(initial value.Value) SignalId {
	h, slot := r.signals.alloc()
	slot.value = initial
	slot.version = 1
	return SignalId{h: h}
}

// ReadSignal returns the signal's current value, recording a dependency
// in the active tracking scope if one exists.
func (r *Runtime) ReadSignal(id SignalId) value.Value {
	slot, ok := r.signals.get(id.h)
	if !ok {
		return value.Nil
	}
	r.trackRead(signalDep(id), func(ref SubscriberRef) {
		slot.subscribers = appendSubscriberDedup(slot.subscribers, ref)
	})
	return slot.value
}

// SetSignal writes v to the signal. If v is bitwise-equal to the
// current value the call is a no-op: no version bump, no notification
//.
func (r *Runtime) SetSignal(id SignalId, v value.Value) {
	slot, ok := r.signals.get(id.h)
	if !ok {
		return
	}
	if value.Equal(slot.value, v) {
		return
	}
	slot.version++
	slot.value = v
	r.notifyAll(slot.subscribers)
}

// SignalVersion returns the slot's version counter, or 0 if id is stale.
// Exposed for tests asserting the monotonic-version invariant.
func (r *Runtime) SignalVersion(id SignalId) uint64 {
	slot, ok := r.signals.get(id.h)
	if !ok {
		return 0
	}
	return slot.version
}

// ---- derived ----

// CreateDerived allocates a lazily-computed derivation. compute is
// called with the runtime so it can call ReadSignal/ReadDerived while a
// tracking scope captures its dependencies.
func (r *Runtime) CreateDerived(compute func(r *Runtime) value.Value) DerivedId {
	h, slot := r.deriveds.alloc()
	slot.compute = compute
	slot.dirty = true
	return DerivedId{h: h}
}

// ReadDerived returns the derivation's current value, recomputing it
// first if dirty. Like ReadSignal, it records a dependency in the
// active tracking scope.
func (r *Runtime) ReadDerived(id DerivedId) value.Value {
	slot, ok := r.deriveds.get(id.h)
	if !ok {
		return value.Nil
	}
	if slot.computing {
		// True cycle: a derived's own recomputation depends on itself
		// transitively. Surface it and return the last good value.
		if r.onCycle != nil {
			r.onCycle(id)
		} else {
			log.Printf("signal: cycle detected recomputing derived %v", id.h.index)
		}
		return slot.cached
	}
	if slot.dirty || !slot.hasValue {
		r.recompute(id, slot)
	}
	r.trackRead(derivedDep(id), func(ref SubscriberRef) {
		slot.subscribers = appendSubscriberDedup(slot.subscribers, ref)
	})
	return slot.cached
}

func (r *Runtime) recompute(id DerivedId, slot *derivedSlot) {
	slot.computing = true
	defer func() { slot.computing = false }()

	// Recomputation replaces the dependency list from scratch, so stale
	// dependencies (from a branch no longer taken) are dropped.
	r.clearDependencies(slot.dependencies, derivedRef(id))
	scope := trackingScope{ref: derivedRef(id), seen: make(map[dependable]struct{})}
	r.scopeStack = append(r.scopeStack, scope)
	cached := slot.compute(r)
	top := r.scopeStack[len(r.scopeStack)-1]
	r.scopeStack = r.scopeStack[:len(r.scopeStack)-1]

	slot.dependencies = top.deps
	slot.cached = cached
	slot.dirty = false
	slot.hasValue = true
}

func (r *Runtime) clearDependencies(deps []dependable, ref SubscriberRef) {
	for _, d := range deps {
		if d.isDerived {
			if s, ok := r.deriveds.get(d.derived.h); ok {
				s.subscribers = removeSubscriber(s.subscribers, ref)
			}
		} else {
			if s, ok := r.signals.get(d.signal.h); ok {
				s.subscribers = removeSubscriber(s.subscribers, ref)
			}
		}
	}
}

// ---- effects ----

// CreateEffect runs callback immediately inside a tracking scope. If it
// returns a non-nil cleanup, that is stored and invoked before every
// re-run and on Dispose.
func (r *Runtime) CreateEffect(callback func(r *Runtime) (cleanup func())) EffectId {
	h, slot := r.effects.alloc()
	slot.callback = callback
	id := EffectId{h: h}
	r.runEffect(id, slot)
	return id
}

func (r *Runtime) runEffect(id EffectId, slot *effectSlot) {
	if slot.disposed {
		return
	}
	if slot.cleanup != nil {
		cleanup := slot.cleanup
		slot.cleanup = nil
		r.safeCall(id, cleanup)
	}
	r.clearDependencies(slot.dependencies, effectRef(id))

	scope := trackingScope{ref: effectRef(id), seen: make(map[dependable]struct{})}
	r.scopeStack = append(r.scopeStack, scope)
	var cleanup func()
	r.safeCallCapture(id, func() { cleanup = slot.callback(r) })
	top := r.scopeStack[len(r.scopeStack)-1]
	r.scopeStack = r.scopeStack[:len(r.scopeStack)-1]

	slot.dependencies = top.deps
	slot.cleanup = cleanup
}

func (r *Runtime) safeCall(id EffectId, fn func()) {
	defer func() {
		if p := recover(); p != nil {
			if r.onEffectErr != nil {
				r.onEffectErr(id, p)
			} else {
				log.Printf("signal: effect %v cleanup panicked: %v", id.h.index, p)
			}
		}
	}()
	fn()
}

func (r *Runtime) safeCallCapture(id EffectId, fn func()) {
	defer func() {
		if p := recover(); p != nil {
			if r.onEffectErr != nil {
				r.onEffectErr(id, p)
			} else {
				log.Printf("signal: effect %v panicked: %v", id.h.index, p)
			}
		}
	}()
	fn()
}

// DisposeEffect removes the effect from every dependency's subscriber
// list and runs its cleanup, if any. Synchronous and idempotent.
func (r *Runtime) DisposeEffect(id EffectId) {
	slot, ok := r.effects.get(id.h)
	if !ok || slot.disposed {
		return
	}
	if slot.cleanup != nil {
		r.safeCall(id, slot.cleanup)
		slot.cleanup = nil
	}
	r.clearDependencies(slot.dependencies, effectRef(id))
	slot.dependencies = nil
	slot.disposed = true
	r.effects.free(id.h)
}

// ---- batching ----

// Batch increments the batch depth, runs fn, then decrements it. On the
// 1→0 transition it flushes: every subscriber made dirty during fn runs
// exactly once, and queued render commands drain to the sink.
func (r *Runtime) Batch(fn func()) {
	r.batchDepth++
	fn()
	r.batchDepth--
	if r.batchDepth == 0 {
		r.flush()
	}
}

func (r *Runtime) flush() {
	order := r.dirtyOrder
	r.dirtyOrder = nil
	r.dirtyDirect = make(map[SubscriberRef]struct{})
	for _, ref := range order {
		r.fire(ref)
	}
	r.signalFlushed()
}

// notifyAll is the direct (non-batched) or dirty-collecting path for a
// freshly-changed slot's subscriber list.
func (r *Runtime) notifyAll(subs []SubscriberRef) {
	for _, ref := range subs {
		r.notify(ref)
	}
}

// notify implements spec.md §4.4's notification semantics for a single
// subscriber: Derived → mark dirty & propagate; Effect → schedule;
// Node → hand to the node hook. When inside a batch, the ref is
// deduplicated into the pending-dirty set instead of firing immediately.
func (r *Runtime) notify(ref SubscriberRef) {
	if r.batchDepth > 0 {
		if _, seen := r.dirtyDirect[ref]; !seen {
			r.dirtyDirect[ref] = struct{}{}
			r.dirtyOrder = append(r.dirtyOrder, ref)
		}
		return
	}
	r.fire(ref)
	r.signalFlushed()
}

func (r *Runtime) fire(ref SubscriberRef) {
	switch ref.kind {
	case subDerived:
		r.markDirtyTransitive(ref.derived)
	case subEffect:
		if slot, ok := r.effects.get(ref.effect.h); ok && !slot.disposed {
			r.runEffect(ref.effect, slot)
		}
	case subNode:
		if r.nodeHook != nil {
			cmds := r.nodeHook.OnNodeChange(ref.nodeID, ref.binding)
			r.pending = append(r.pending, cmds...)
		}
	}
}

// markDirtyTransitive marks a derived dirty and recursively notifies
// its own subscribers; idempotent because a derived already dirty need
// not re-propagate (its subscribers were already reached).
func (r *Runtime) markDirtyTransitive(id DerivedId) {
	slot, ok := r.deriveds.get(id.h)
	if !ok || slot.dirty {
		return
	}
	slot.dirty = true
	r.notifyAll(slot.subscribers)
}

// DrainRenderCommands removes and returns every render command queued
// since the last drain. The HTTP/node layer calls this after a flush
// (or after any unbatched write) to hand commands to the renderer sink.
func (r *Runtime) DrainRenderCommands() []any {
	cmds := r.pending
	r.pending = nil
	return cmds
}

// trackRead is the common body of ReadSignal/ReadDerived: if a tracking
// scope is active and hasn't already recorded this dependency, record
// it and register the scope as a subscriber via addSub.
func (r *Runtime) trackRead(dep dependable, addSub func(SubscriberRef)) {
	if len(r.scopeStack) == 0 {
		return
	}
	top := &r.scopeStack[len(r.scopeStack)-1]
	if _, seen := top.seen[dep]; seen {
		return
	}
	top.seen[dep] = struct{}{}
	top.deps = append(top.deps, dep)
	addSub(top.ref)
}

func appendSubscriberDedup(subs []SubscriberRef, ref SubscriberRef) []SubscriberRef {
	for _, s := range subs {
		if s.equal(ref) {
			return subs
		}
	}
	return append(subs, ref)
}

func removeSubscriber(subs []SubscriberRef, ref SubscriberRef) []SubscriberRef {
	out := subs[:0]
	for _, s := range subs {
		if !s.equal(ref) {
			out = append(out, s)
		}
	}
	return out
}

// SubscribeNode registers node-as-subscriber on a signal (the Node
// variant of SubscriberRef — spec.md §4.5's "Subscribes the node... to
// the signal's subscriber list"). Returns an error if id is stale.
func (r *Runtime) SubscribeNode(id SignalId, nodeID uint32, binding NodeBindingKind) error {
	slot, ok := r.signals.get(id.h)
	if !ok {
		return fmt.Errorf("signal: SubscribeNode: stale signal handle")
	}
	slot.subscribers = appendSubscriberDedup(slot.subscribers, NodeRef(nodeID, binding))
	return nil
}

// SubscribeNodeToDerived is SubscribeNode's derived-source counterpart.
func (r *Runtime) SubscribeNodeToDerived(id DerivedId, nodeID uint32, binding NodeBindingKind) error {
	slot, ok := r.deriveds.get(id.h)
	if !ok {
		return fmt.Errorf("signal: SubscribeNodeToDerived: stale derived handle")
	}
	slot.subscribers = appendSubscriberDedup(slot.subscribers, NodeRef(nodeID, binding))
	return nil
}

// UnsubscribeNode removes a node binding from a signal's subscriber list
// (called when a node unmounts).
func (r *Runtime) UnsubscribeNode(id SignalId, nodeID uint32, binding NodeBindingKind) {
	if slot, ok := r.signals.get(id.h); ok {
		slot.subscribers = removeSubscriber(slot.subscribers, NodeRef(nodeID, binding))
	}
}
