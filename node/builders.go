package node

import "github.com/roverlang/rover/signal"

// CreateText allocates a Text node with the given content. If content
// is signal- or derived-backed, the node subscribes to it immediately
// and the caller receives the initial UpdateText command to emit
//.
func (t *Tree) CreateText(content Content) (ID, []RenderCommand) {
	id := t.alloc(KindText)
	s, _ := t.slot(id)
	s.content = content

	var cmds []RenderCommand
	switch content.Kind {
	case ContentSignal:
		_ = t.rt.SubscribeNode(content.Signal, uint32(id), signal.BindingText)
		cmds = append(cmds, UpdateText{Node: id, Content: t.currentTextBytes(s)})
	case ContentDerived:
		_ = t.rt.SubscribeNodeToDerived(content.Derived, uint32(id), signal.BindingText)
		cmds = append(cmds, UpdateText{Node: id, Content: t.currentTextBytes(s)})
	case ContentStatic:
		cmds = append(cmds, UpdateText{Node: id, Content: content.Static})
	}
	return id, cmds
}

// SetText overwrites a mounted static Text node's content directly
// (used for script-driven imperative updates outside the reactive
// graph); it does not establish or remove a binding.
func (t *Tree) SetText(id ID, b []byte) {
	if s, ok := t.slot(id); ok && s.kind == KindText {
		s.content = StaticContent(b)
	}
}

// CreateColumn / CreateRow allocate container nodes. Children are
// attached with AppendChild.
func (t *Tree) CreateColumn() ID { return t.alloc(KindColumn) }
func (t *Tree) CreateRow() ID    { return t.alloc(KindRow) }

// AppendChild mounts child under parent and returns the InsertChild
// command to emit.
func (t *Tree) AppendChild(parent, child ID) RenderCommand {
	p, ok := t.slot(parent)
	if !ok {
		return nil
	}
	if cs, ok := t.slot(child); ok {
		cs.parent = parent
	}
	p.children = append(p.children, child)
	return InsertChild{Parent: parent, Index: len(p.children) - 1, Child: child}
}

// CreateConditional allocates a Conditional node bound to cond, and
// mounts whichever branch is initially truthy. falseBranch may be the
// zero ID if there is no else-branch.
func (t *Tree) CreateConditional(cond signal.SignalId, trueBranch, falseBranch ID) (ID, []RenderCommand) {
	id := t.alloc(KindConditional)
	s, _ := t.slot(id)
	s.cond = cond
	s.trueBranch = trueBranch
	s.falseBranch = falseBranch
	s.hasFalse = falseBranch != 0
	_ = t.rt.SubscribeNode(cond, uint32(id), signal.BindingVisibility)
	return id, t.renderConditional(id, s)
}

// CreateConditionalDerived is CreateConditional's derived-condition form.
func (t *Tree) CreateConditionalDerived(cond signal.DerivedId, trueBranch, falseBranch ID) (ID, []RenderCommand) {
	id := t.alloc(KindConditional)
	s, _ := t.slot(id)
	s.condIsDerived = true
	s.condDerived = cond
	s.trueBranch = trueBranch
	s.falseBranch = falseBranch
	s.hasFalse = falseBranch != 0
	_ = t.rt.SubscribeNodeToDerived(cond, uint32(id), signal.BindingVisibility)
	return id, t.renderConditional(id, s)
}

// CreateEach allocates a list node bound to source, materializing the
// initial subtree list immediately.
func (t *Tree) CreateEach(source signal.SignalId, keyFn KeyFunc, templateFn TemplateFunc) (ID, []RenderCommand) {
	id := t.alloc(KindEach)
	s, _ := t.slot(id)
	s.source = source
	s.keyFn = keyFn
	s.templateFn = templateFn
	_ = t.rt.SubscribeNode(source, uint32(id), signal.BindingEachList)
	cmds := t.renderEach(id, s)
	if cmds == nil {
		// First materialization always needs an explicit command even
		// when the computed child list happens to match an empty prior
		// state, so a fresh Each always yields at least a ReplaceEach.
		cmds = []RenderCommand{ReplaceEach{Node: id, Children: s.children}}
	}
	return id, cmds
}

// Children returns the current child list of a mounted node.
func (t *Tree) Children(id ID) []ID {
	if s, ok := t.slot(id); ok {
		return s.children
	}
	return nil
}

// IsAlive reports whether id still refers to a live node.
func (t *Tree) IsAlive(id ID) bool {
	_, ok := t.slot(id)
	return ok
}

// CreateButton / CreateInput / CreateCheckbox allocate the input-family
// node variants spec.md §3 lists when interactivity is in scope. Input
// and Checkbox record the signal they are bound to (see BoundSignal).
// The node package registers no event handlers: neither on_change nor
// on_toggle is recognized here.
func (t *Tree) CreateButton() ID { return t.alloc(KindButton) }

func (t *Tree) CreateInput(bound signal.SignalId) ID {
	id := t.alloc(KindInput)
	s, _ := t.slot(id)
	s.boundSignal = bound
	return id
}

func (t *Tree) CreateCheckbox(bound signal.SignalId) ID {
	id := t.alloc(KindCheckbox)
	s, _ := t.slot(id)
	s.boundSignal = bound
	return id
}

// BoundSignal returns the signal an Input/Checkbox node is bound to.
func (t *Tree) BoundSignal(id ID) (signal.SignalId, bool) {
	s, ok := t.slot(id)
	if !ok || (s.kind != KindInput && s.kind != KindCheckbox) {
		return signal.SignalId{}, false
	}
	return s.boundSignal, true
}
