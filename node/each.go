package node

// renderEach implements spec.md §4.5's list-node diff: compute the new
// key sequence from the source table, preserve nodes for unchanged
// keys, create subtrees for new keys via templateFn, unmount subtrees
// for removed keys, and represent any reordering as a single
// ReplaceEach carrying the full new child id list.
func (t *Tree) renderEach(id ID, s *nodeSlot) []RenderCommand {
	items := t.rt.ReadSignal(s.source)
	tbl, _ := items.Table()

	newKeys := make([]string, 0)
	if tbl != nil {
		for _, v := range tbl.ArrayValues() {
			newKeys = append(newKeys, s.keyFn(v))
		}
	}

	if s.childByKey == nil {
		s.childByKey = make(map[string]ID)
	}

	sameOrder := len(newKeys) == len(s.keys)
	newByKey := make(map[string]ID, len(newKeys))
	for i, k := range newKeys {
		if sameOrder && s.keys[i] != k {
			sameOrder = false
		}
		if existing, ok := s.childByKey[k]; ok {
			newByKey[k] = existing
			continue
		}
		item := tbl.Index(i + 1)
		newByKey[k] = s.templateFn(t, item)
	}

	// Unmount subtrees for keys no longer present.
	for _, k := range s.keys {
		if _, still := newByKey[k]; !still {
			t.freeSubtree(s.childByKey[k])
		}
	}

	s.keys = newKeys
	s.childByKey = newByKey

	children := make([]ID, len(newKeys))
	for i, k := range newKeys {
		children[i] = newByKey[k]
		if cs, ok := t.slot(children[i]); ok {
			cs.parent = id
		}
	}
	s.children = children

	if sameOrder {
		return nil
	}
	return []RenderCommand{ReplaceEach{Node: id, Children: children}}
}
