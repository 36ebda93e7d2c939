// Package node implements Rover's retained UI node tree: the graph
// materialized by declarative builder calls from script handlers, bound
// to signals, and translated into a stream of RenderCommands consumed
// by a renderer backend.
package node

import (
	"github.com/roverlang/rover/signal"
	"github.com/roverlang/rover/value"
)

// ID is a stable handle into the node arena: the low 24 bits are the
// arena index, the high 8 bits are the slot's version, so a handle
// whose version has drifted reads back as absent (the same recycling
// contract spec.md §3 asks of SignalId/DerivedId/EffectId).
type ID uint32

const noParent ID = 0

func packID(index uint32, version uint8) ID {
	return ID(index&0x00FFFFFF) | ID(version)<<24
}

func (id ID) index() uint32  { return uint32(id) & 0x00FFFFFF }
func (id ID) version() uint8 { return uint8(id >> 24) }

// Kind tags which Node variant a slot holds.
type Kind uint8

const (
	KindText Kind = iota
	KindColumn
	KindRow
	KindConditional
	KindEach
	KindButton
	KindInput
	KindCheckbox
)

// ContentKind tags a Text node's content source.
type ContentKind uint8

const (
	ContentStatic ContentKind = iota
	ContentSignal
	ContentDerived
)

// Content is a Text node's payload: a static byte string, or a live
// binding to a signal or derived
// | Signal(id) | Derived(id)").
type Content struct {
	Kind    ContentKind
	Static  []byte
	Signal  signal.SignalId
	Derived signal.DerivedId
}

func StaticContent(b []byte) Content                { return Content{Kind: ContentStatic, Static: b} }
func SignalContent(id signal.SignalId) Content       { return Content{Kind: ContentSignal, Signal: id} }
func DerivedContent(id signal.DerivedId) Content     { return Content{Kind: ContentDerived, Derived: id} }

// KeyFunc derives a stable identity from an Each source element, used
// to diff the materialized child list across updates.
type KeyFunc func(item value.Value) string

// TemplateFunc builds a fresh subtree for one Each element.
type TemplateFunc func(t *Tree, item value.Value) ID

type nodeSlot struct {
	live    bool
	version uint8
	kind    Kind
	parent  ID
	children []ID

	// Text
	content Content

	// Conditional
	cond        signal.SignalId
	condDerived signal.DerivedId
	condIsDerived bool
	trueBranch  ID
	falseBranch ID
	mountedTrue bool
	hasFalse    bool

	// Each
	source       signal.SignalId
	keyFn        KeyFunc
	templateFn   TemplateFunc
	keys         []string    // materialized key order
	childByKey   map[string]ID

	// Input-family
	boundSignal signal.SignalId
}

// Tree owns the node arena and implements signal.NodeHook so signal
// writes translate into queued RenderCommands.
type Tree struct {
	rt    *signal.Runtime
	slots []nodeSlot
	freeList []uint32
	root  ID
}

// NewTree creates an empty tree wired to rt and registers itself as
// rt's node notification hook.
func NewTree(rt *signal.Runtime) *Tree {
	t := &Tree{rt: rt}
	rt.SetNodeHook(t)
	return t
}

func (t *Tree) alloc(kind Kind) ID {
	if n := len(t.freeList); n > 0 {
		idx := t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
		s := &t.slots[idx]
		s.live = true
		s.version++
		*s = nodeSlot{live: true, version: s.version, kind: kind, parent: noParent}
		return packID(idx, s.version)
	}
	idx := uint32(len(t.slots))
	t.slots = append(t.slots, nodeSlot{live: true, version: 1, kind: kind, parent: noParent})
	return packID(idx, 1)
}

func (t *Tree) slot(id ID) (*nodeSlot, bool) {
	idx := id.index()
	if int(idx) >= len(t.slots) {
		return nil, false
	}
	s := &t.slots[idx]
	if !s.live || s.version != id.version() {
		return nil, false
	}
	return s, true
}

// Root returns the tree's mounted root, if any.
func (t *Tree) Root() ID { return t.root }

// SetRoot designates id as the tree's root and emits a MountTree
// command carrying the current subtree.
func (t *Tree) SetRoot(id ID) []RenderCommand {
	t.root = id
	return []RenderCommand{MountTree{Root: id}}
}
