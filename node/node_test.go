package node_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/roverlang/rover/node"
	"github.com/roverlang/rover/signal"
	"github.com/roverlang/rover/value"
)

var _ = Describe("Conditional", func() {
	// spec.md §8 scenario 6.
	It("mounts the true branch on flush and unmounts it when the condition flips", func() {
		rt := signal.New()
		tree := node.NewTree(rt)

		show := rt.CreateSignal(value.Bool(true))
		text, _ := tree.CreateText(node.StaticContent([]byte("hi")))
		parent := tree.CreateColumn()
		cond, cmds := tree.CreateConditional(show, text, 0)
		tree.AppendChild(parent, cond)

		var insert node.InsertChild
		found := false
		for _, c := range cmds {
			if ic, ok := c.(node.InsertChild); ok {
				insert = ic
				found = true
			}
		}
		Expect(found).To(BeTrue(), "initial mount must emit InsertChild")
		Expect(insert.Child).To(Equal(text))
		Expect(tree.IsAlive(text)).To(BeTrue())

		rt.SetSignal(show, value.Bool(false))
		cmds = drainAny(rt)

		removed := false
		for _, c := range cmds {
			if rc, ok := c.(node.RemoveChild); ok {
				removed = true
				_ = rc
			}
		}
		Expect(removed).To(BeTrue(), "hiding must unmount the true branch")
		Expect(tree.IsAlive(text)).To(BeFalse(), "arena slot must be reusable after unmount")
	})
})

var _ = Describe("Each", func() {
	It("preserves nodes for unchanged keys and replaces the list on reorder", func() {
		rt := signal.New()
		tree := node.NewTree(rt)

		items := rt.CreateSignal(tableOf("a", "b", "c"))
		var created []string
		list, _ := tree.CreateEach(items, stringKey, func(t *node.Tree, item value.Value) node.ID {
			created = append(created, item.String())
			id, _ := t.CreateText(node.StaticContent([]byte(item.String())))
			return id
		})
		Expect(created).To(Equal([]string{"a", "b", "c"}))
		firstChildren := append([]node.ID(nil), tree.Children(list)...)

		rt.SetSignal(items, tableOf("c", "b", "a"))
		_ = drainAny(rt)

		Expect(tree.Children(list)).To(ConsistOf(firstChildren), "reordering must not recreate nodes")
	})
})

func stringKey(v value.Value) string { return v.String() }

func tableOf(items ...string) value.Value {
	t := value.NewTable()
	for _, s := range items {
		t.Append(value.String(s))
	}
	return value.TableValue(t)
}

// drainAny flushes a runtime outside of an explicit Batch — direct
// (non-batched) signal writes notify immediately, so this only drains
// whatever render commands the immediate notification queued.
func drainAny(rt *signal.Runtime) []any {
	return rt.DrainRenderCommands()
}
