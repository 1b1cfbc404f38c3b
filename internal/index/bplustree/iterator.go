package bplustree

import "relkernel/internal/page"

// Iterator walks the leaf chain in key order. It holds a read latch on
// exactly one leaf page at a time — the same "couple two, release one"
// discipline as GetValue, just anchored at a leaf instead of released
// after every step down.
type Iterator struct {
	tree *BPlusTree
	pg   *page.Page
	node *Node
	idx  int
	err  error
}

// Begin returns an iterator positioned at the smallest key in the tree.
func (t *BPlusTree) Begin() *Iterator {
	root := t.getRoot()
	if root == InvalidPageID {
		return &Iterator{tree: t}
	}

	curID := root
	pg, err := t.pinPage(curID)
	if err != nil {
		return &Iterator{tree: t, err: err}
	}
	pg.RLock()
	node, err := t.decodeNode(pg)
	if err != nil {
		pg.RUnlock()
		_ = t.bufferPool.UnpinPage(curID, false)
		return &Iterator{tree: t, err: err}
	}

	for !node.isLeaf() {
		childID := node.children[0]
		childPg, err := t.pinPage(childID)
		if err != nil {
			pg.RUnlock()
			_ = t.bufferPool.UnpinPage(curID, false)
			return &Iterator{tree: t, err: err}
		}
		childPg.RLock()
		childNode, err := t.decodeNode(childPg)
		if err != nil {
			childPg.RUnlock()
			_ = t.bufferPool.UnpinPage(childID, false)
			pg.RUnlock()
			_ = t.bufferPool.UnpinPage(curID, false)
			return &Iterator{tree: t, err: err}
		}
		pg.RUnlock()
		_ = t.bufferPool.UnpinPage(curID, false)
		pg, node, curID = childPg, childNode, childID
	}

	it := &Iterator{tree: t, pg: pg, node: node, idx: 0}
	it.rollForwardIfAtEnd()
	return it
}

// BeginAt returns an iterator positioned at the first key >= key.
func (t *BPlusTree) BeginAt(key []byte) *Iterator {
	root := t.getRoot()
	if root == InvalidPageID {
		return &Iterator{tree: t}
	}

	curID := root
	pg, err := t.pinPage(curID)
	if err != nil {
		return &Iterator{tree: t, err: err}
	}
	pg.RLock()
	node, err := t.decodeNode(pg)
	if err != nil {
		pg.RUnlock()
		_ = t.bufferPool.UnpinPage(curID, false)
		return &Iterator{tree: t, err: err}
	}

	for !node.isLeaf() {
		idx := childIndex(node, key, t.cmp)
		childID := node.children[idx]
		childPg, err := t.pinPage(childID)
		if err != nil {
			pg.RUnlock()
			_ = t.bufferPool.UnpinPage(curID, false)
			return &Iterator{tree: t, err: err}
		}
		childPg.RLock()
		childNode, err := t.decodeNode(childPg)
		if err != nil {
			childPg.RUnlock()
			_ = t.bufferPool.UnpinPage(childID, false)
			pg.RUnlock()
			_ = t.bufferPool.UnpinPage(curID, false)
			return &Iterator{tree: t, err: err}
		}
		pg.RUnlock()
		_ = t.bufferPool.UnpinPage(curID, false)
		pg, node, curID = childPg, childNode, childID
	}

	pos := lowerBound(node.keys, key, t.cmp)
	it := &Iterator{tree: t, pg: pg, node: node, idx: pos}
	it.rollForwardIfAtEnd()
	return it
}

// rollForwardIfAtEnd moves to the next leaf when idx has walked off the
// current one's key slice, chaining across empty leaves if it must — used
// both to land Begin/BeginAt on a real entry and to advance Next.
func (it *Iterator) rollForwardIfAtEnd() {
	for it.node != nil && it.idx >= len(it.node.keys) {
		nextID := it.node.next
		it.pg.RUnlock()
		_ = it.tree.bufferPool.UnpinPage(it.node.pageID, false)

		if nextID == InvalidPageID {
			it.pg, it.node, it.idx = nil, nil, 0
			return
		}

		pg, err := it.tree.pinPage(nextID)
		if err != nil {
			it.err = err
			it.pg, it.node = nil, nil
			return
		}
		pg.RLock()
		node, err := it.tree.decodeNode(pg)
		if err != nil {
			pg.RUnlock()
			_ = it.tree.bufferPool.UnpinPage(nextID, false)
			it.err = err
			it.pg, it.node = nil, nil
			return
		}
		it.pg, it.node, it.idx = pg, node, 0
	}
}

// Next advances the iterator by one entry, reporting whether a valid
// entry is now positioned (mirroring bufio.Scanner.Scan's style).
func (it *Iterator) Next() bool {
	if it.node == nil {
		return false
	}
	it.idx++
	it.rollForwardIfAtEnd()
	return it.node != nil
}

// IsEnd reports whether the iterator has run past the last entry.
func (it *Iterator) IsEnd() bool { return it.node == nil }

// Err returns the first error encountered while positioning the iterator.
func (it *Iterator) Err() error { return it.err }

func (it *Iterator) Key() []byte {
	if it.node == nil {
		return nil
	}
	return it.node.keys[it.idx]
}

func (it *Iterator) Value() []byte {
	if it.node == nil {
		return nil
	}
	return it.node.values[it.idx]
}

// Close releases the leaf latch an iterator abandoned mid-scan holds.
// Safe to call on an already-exhausted or already-closed iterator.
func (it *Iterator) Close() {
	if it.pg == nil {
		return
	}
	it.pg.RUnlock()
	_ = it.tree.bufferPool.UnpinPage(it.node.pageID, false)
	it.pg, it.node = nil, nil
}
