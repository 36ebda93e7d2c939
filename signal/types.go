package signal

import "github.com/roverlang/rover/value"

// SignalId, DerivedId, and EffectId are stable handles into their
// respective arenas. The zero value of each is never a
// valid handle returned by the runtime, so it doubles as an "empty" id.
type SignalId struct{ h handle }
type DerivedId struct{ h handle }
type EffectId struct{ h handle }

// NodeBindingKind names the way a node subscriber's content depends on
// a signal or derived, mirroring spec.md §3's "binding-kind ∈ {text,
// visibility, each-list}".
type NodeBindingKind uint8

const (
	BindingText NodeBindingKind = iota
	BindingVisibility
	BindingEachList
)

func (k NodeBindingKind) String() string {
	switch k {
	case BindingText:
		return "text"
	case BindingVisibility:
		return "visibility"
	case BindingEachList:
		return "each-list"
	default:
		return "unknown"
	}
}

// subscriberKind tags which arm of the SubscriberRef union is live.
type subscriberKind uint8

const (
	subDerived subscriberKind = iota
	subEffect
	subNode
)

// SubscriberRef is the tagged union spec.md §3 calls SubscriberRef:
// `{ Derived(id) | Effect(id) | Node(id, binding-kind) }`.
type SubscriberRef struct {
	kind    subscriberKind
	derived DerivedId
	effect  EffectId
	nodeID  uint32
	binding NodeBindingKind
}

func derivedRef(id DerivedId) SubscriberRef { return SubscriberRef{kind: subDerived, derived: id} }
func effectRef(id EffectId) SubscriberRef   { return SubscriberRef{kind: subEffect, effect: id} }

// NodeRef builds a SubscriberRef for a node binding. The node package
// calls this when registering a signal→node binding.
func NodeRef(nodeID uint32, binding NodeBindingKind) SubscriberRef {
	return SubscriberRef{kind: subNode, nodeID: nodeID, binding: binding}
}

func (r SubscriberRef) equal(o SubscriberRef) bool {
	if r.kind != o.kind {
		return false
	}
	switch r.kind {
	case subDerived:
		return r.derived == o.derived
	case subEffect:
		return r.effect == o.effect
	case subNode:
		return r.nodeID == o.nodeID && r.binding == o.binding
	}
	return false
}

// dependable is anything that can sit in a tracking scope's dependency
// list: a signal or a derived.
type dependable struct {
	isDerived bool
	signal    SignalId
	derived   DerivedId
}

func signalDep(id SignalId) dependable   { return dependable{signal: id} }
func derivedDep(id DerivedId) dependable { return dependable{isDerived: true, derived: id} }

func (d dependable) equal(o dependable) bool {
	if d.isDerived != o.isDerived {
		return false
	}
	if d.isDerived {
		return d.derived == o.derived
	}
	return d.signal == o.signal
}

// signalSlot is spec.md §3's Signal slot.
type signalSlot struct {
	value       value.Value
	version     uint64
	subscribers []SubscriberRef
}

// derivedSlot is spec.md §3's Derived slot.
type derivedSlot struct {
	compute      func(r *Runtime) value.Value
	cached       value.Value
	dirty        bool
	hasValue     bool
	dependencies []dependable
	subscribers  []SubscriberRef
	computing    bool // cycle detection: set while compute() is running
}

// effectSlot is spec.md §3's Effect slot.
type effectSlot struct {
	callback     func(r *Runtime) (cleanup func())
	cleanup      func()
	dependencies []dependable
	disposed     bool
}
