package bplustree

import "fmt"

// childIndex returns which child of an internal node to descend into for
// key, mirroring BusTub's Lookup: the child after the last separator
// <= key. A separator at position i routes keys >= it to children[i+1]
// (children[0] covers everything less than keys[0]). lowerBound gives the
// first separator >= key, which points at an equal separator rather than
// past it, so on an exact match the index is stepped one further.
func childIndex(node *Node, key []byte, cmp Comparator) int {
	idx := lowerBound(node.keys, key, cmp)
	if idx < len(node.keys) && cmp(node.keys[idx], key) == 0 {
		idx++
	}
	return idx
}

// GetValue performs a read-latch-crabbed point lookup: it always holds at
// most two page latches at once, releasing the parent immediately after
// acquiring and validating the child (the read-only special case of
// crabbing — a reader never needs to hold more than one ancestor because
// reads can't provoke a split or merge).
func (t *BPlusTree) GetValue(key []byte) ([]byte, error) {
	root := t.getRoot()
	if root == InvalidPageID {
		return nil, ErrNotFound
	}

	curID := root
	pg, err := t.pinPage(curID)
	if err != nil {
		return nil, err
	}
	pg.RLock()
	node, err := t.decodeNode(pg)
	if err != nil {
		pg.RUnlock()
		_ = t.bufferPool.UnpinPage(curID, false)
		return nil, err
	}

	for !node.isLeaf() {
		idx := childIndex(node, key, t.cmp)
		childID := node.children[idx]

		childPg, err := t.pinPage(childID)
		if err != nil {
			pg.RUnlock()
			_ = t.bufferPool.UnpinPage(curID, false)
			return nil, err
		}
		childPg.RLock()
		childNode, err := t.decodeNode(childPg)
		if err != nil {
			childPg.RUnlock()
			_ = t.bufferPool.UnpinPage(childID, false)
			pg.RUnlock()
			_ = t.bufferPool.UnpinPage(curID, false)
			return nil, err
		}

		pg.RUnlock()
		_ = t.bufferPool.UnpinPage(curID, false)

		pg, node, curID = childPg, childNode, childID
	}

	defer func() {
		pg.RUnlock()
		_ = t.bufferPool.UnpinPage(curID, false)
	}()

	i := binarySearch(node.keys, key, t.cmp)
	if i < 0 {
		return nil, fmt.Errorf("%w: %x", ErrNotFound, key)
	}
	val := make([]byte, len(node.values[i]))
	copy(val, node.values[i])
	return val, nil
}
