package wsrender

import (
	"testing"

	"github.com/roverlang/rover/node"
)

func TestToWire(t *testing.T) {
	cases := []struct {
		cmd      node.RenderCommand
		wantType string
	}{
		{node.UpdateText{Node: 1, Content: []byte("hi")}, "update_text"},
		{node.Show{Node: 2}, "show"},
		{node.Hide{Node: 2}, "hide"},
		{node.InsertChild{Parent: 1, Index: 0, Child: 2}, "insert_child"},
		{node.RemoveChild{Parent: 1, Index: 0}, "remove_child"},
		{node.MountTree{Root: 1}, "mount_tree"},
		{node.ReplaceEach{Node: 1, Children: []node.ID{2, 3}}, "replace_each"},
		{node.UpdateStyle{Node: 1, Property: "color", Value: "red"}, "update_style"},
	}

	for _, c := range cases {
		got := toWire(c.cmd)
		if got.Type != c.wantType {
			t.Errorf("toWire(%#v).Type = %q, want %q", c.cmd, got.Type, c.wantType)
		}
	}
}

func TestToWirePreservesContent(t *testing.T) {
	w := toWire(node.UpdateText{Node: 5, Content: []byte("hello")})
	if w.Node != 5 || w.Content != "hello" {
		t.Errorf("toWire mismatch: %+v", w)
	}
}

func TestToWireReplaceEachChildren(t *testing.T) {
	w := toWire(node.ReplaceEach{Node: 9, Children: []node.ID{1, 2, 3}})
	if len(w.Children) != 3 || w.Children[1] != 2 {
		t.Errorf("toWire ReplaceEach children mismatch: %+v", w)
	}
}

// TestPublishDropsOnFullChannel exercises Publish/register/unregister
// with a viewer that has no network connection behind it.
func TestPublishDropsOnFullChannel(t *testing.T) {
	s := New(nil)
	v := &viewer{out: make(chan []node.RenderCommand, 1)}
	s.register(v)
	defer s.unregister(v)

	cmds := []node.RenderCommand{node.Show{Node: 1}}
	s.Publish(cmds)
	s.Publish(cmds) // second publish should be dropped, not block

	select {
	case got := <-v.out:
		if len(got) != 1 {
			t.Errorf("expected 1 command, got %d", len(got))
		}
	default:
		t.Fatal("expected a queued batch")
	}
}

func TestPublishEmptyIsNoop(t *testing.T) {
	s := New(nil)
	v := &viewer{out: make(chan []node.RenderCommand, 1)}
	s.register(v)
	defer s.unregister(v)

	s.Publish(nil)

	select {
	case <-v.out:
		t.Fatal("expected no batch queued for an empty publish")
	default:
	}
}
