package node

import "github.com/roverlang/rover/signal"

// RenderCommand is the marker interface for the eight wire variants
// spec.md §3 defines. Every field is a node id or a primitive payload —
// no pointers — so the stream can cross a process boundary.
type RenderCommand interface{ isRenderCommand() }

type UpdateText struct {
	Node    ID
	Content []byte
}

type Show struct{ Node ID }

type Hide struct{ Node ID }

type InsertChild struct {
	Parent ID
	Index  int
	Child  ID
}

type RemoveChild struct {
	Parent ID
	Index  int
}

type MountTree struct{ Root ID }

type ReplaceEach struct {
	Node     ID
	Children []ID
}

type UpdateStyle struct {
	Node     ID
	Property string
	Value    string
}

func (UpdateText) isRenderCommand()  {}
func (Show) isRenderCommand()        {}
func (Hide) isRenderCommand()        {}
func (InsertChild) isRenderCommand() {}
func (RemoveChild) isRenderCommand() {}
func (MountTree) isRenderCommand()   {}
func (ReplaceEach) isRenderCommand() {}
func (UpdateStyle) isRenderCommand() {}

// OnNodeChange implements signal.NodeHook. It is called by the runtime
// during a flush, once per node subscriber whose signal/derived source
// changed, and returns the render commands that notification produces.
// The `any` return slice holds concrete RenderCommand values boxed as
// any — the signal package cannot import node's RenderCommand type
// without creating an import cycle, so the boundary is untyped there
// and recovered with concrete types immediately on this side.
func (t *Tree) OnNodeChange(nodeID uint32, binding signal.NodeBindingKind) []any {
	id := ID(nodeID)
	s, ok := t.slot(id)
	if !ok {
		return nil
	}
	switch binding {
	case signal.BindingText:
		return box(t.renderText(id, s))
	case signal.BindingVisibility:
		return box(t.renderConditional(id, s)...)
	case signal.BindingEachList:
		return box(t.renderEach(id, s)...)
	}
	return nil
}

func box(cmds ...RenderCommand) []any {
	out := make([]any, len(cmds))
	for i, c := range cmds {
		out[i] = c
	}
	return out
}

func (t *Tree) renderText(id ID, s *nodeSlot) RenderCommand {
	return UpdateText{Node: id, Content: t.currentTextBytes(s)}
}

func (t *Tree) currentTextBytes(s *nodeSlot) []byte {
	switch s.content.Kind {
	case ContentStatic:
		return s.content.Static
	case ContentSignal:
		return []byte(t.rt.ReadSignal(s.content.Signal).String())
	case ContentDerived:
		return []byte(t.rt.ReadDerived(s.content.Derived).String())
	}
	return nil
}

// renderConditional implements spec.md §4.5's mount/unmount rule: a
// truthy condition mounts the true branch (falsy unmounts it and, if
// present, mounts the false branch); only one branch is ever mounted.
func (t *Tree) renderConditional(id ID, s *nodeSlot) []RenderCommand {
	truthy := t.condValue(s)
	var cmds []RenderCommand
	if truthy {
		if !s.mountedTrue {
			cmds = append(cmds, t.mountSubtree(id, s.trueBranch)...)
			s.mountedTrue = true
		}
		cmds = append(cmds, Show{Node: id})
		if s.hasFalse {
			cmds = append(cmds, t.unmountSubtree(id, s.falseBranch)...)
		}
	} else {
		if s.mountedTrue {
			cmds = append(cmds, t.unmountSubtree(id, s.trueBranch)...)
			s.mountedTrue = false
		}
		cmds = append(cmds, Hide{Node: id})
		if s.hasFalse {
			cmds = append(cmds, t.mountSubtree(id, s.falseBranch)...)
		}
	}
	return cmds
}

func (t *Tree) condValue(s *nodeSlot) bool {
	if s.condIsDerived {
		return t.rt.ReadDerived(s.condDerived).Bool()
	}
	return t.rt.ReadSignal(s.cond).Bool()
}

func (t *Tree) mountSubtree(parent, child ID) []RenderCommand {
	if cs, ok := t.slot(child); ok {
		cs.parent = parent
	}
	if p, ok := t.slot(parent); ok {
		p.children = append(p.children, child)
		return []RenderCommand{InsertChild{Parent: parent, Index: len(p.children) - 1, Child: child}}
	}
	return nil
}

func (t *Tree) unmountSubtree(parent, child ID) []RenderCommand {
	p, ok := t.slot(parent)
	if !ok {
		return nil
	}
	idx := -1
	for i, c := range p.children {
		if c == child {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	p.children = append(p.children[:idx], p.children[idx+1:]...)
	t.freeSubtree(child)
	return []RenderCommand{RemoveChild{Parent: parent, Index: idx}}
}

// free recursively returns a subtree's slots to the free list.
func (t *Tree) freeSubtree(id ID) {
	s, ok := t.slot(id)
	if !ok {
		return
	}
	for _, c := range s.children {
		t.freeSubtree(c)
	}
	idx := id.index()
	t.slots[idx].live = false
	t.freeList = append(t.freeList, idx)
}
