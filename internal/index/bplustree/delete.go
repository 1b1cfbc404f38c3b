package bplustree

import (
	"fmt"

	"relkernel/internal/page"
)

// Remove deletes key from the tree, write-crabbing down exactly like
// Insert but checking OpDelete safety (a child is safe once it's proven
// it won't need to borrow from or merge with a sibling).
func (t *BPlusTree) Remove(key []byte) error {
	if t.IsEmpty() {
		return fmt.Errorf("%w: %x", ErrNotFound, key)
	}

	ctx := newOpContext(OpDelete)

	curID := t.getRoot()
	pg, err := t.pinPage(curID)
	if err != nil {
		return err
	}
	pg.Lock()
	node, err := t.decodeNode(pg)
	if err != nil {
		pg.Unlock()
		_ = t.bufferPool.UnpinPage(curID, false)
		return err
	}

	for !node.isLeaf() {
		idx := childIndex(node, key, t.cmp)
		childID := node.children[idx]

		childPg, err := t.pinPage(childID)
		if err != nil {
			t.abortDescent(ctx, pg, curID)
			return err
		}
		childPg.Lock()
		childNode, err := t.decodeNode(childPg)
		if err != nil {
			childPg.Unlock()
			_ = t.bufferPool.UnpinPage(childID, false)
			t.abortDescent(ctx, pg, curID)
			return err
		}

		if isSafe(childNode, OpDelete) {
			ctx.releaseAncestors(t.bufferPool, false)
			pg.Unlock()
			_ = t.bufferPool.UnpinPage(curID, false)
		} else {
			ctx.push(pg)
		}

		pg, node, curID = childPg, childNode, childID
	}

	idx := binarySearch(node.keys, key, t.cmp)
	if idx < 0 {
		pg.Unlock()
		_ = t.bufferPool.UnpinPage(curID, false)
		ctx.releaseAncestors(t.bufferPool, false)
		return fmt.Errorf("%w: %x", ErrNotFound, key)
	}
	node.keys = removeAt(node.keys, idx)
	node.values = removeAt(node.values, idx)

	if idx == 0 {
		if err := t.fixLeftSeparator(node, ctx); err != nil {
			pg.Unlock()
			_ = t.bufferPool.UnpinPage(curID, false)
			ctx.releaseAncestors(t.bufferPool, false)
			return err
		}
	}

	return t.handleUnderflow(node, pg, ctx)
}

// fixLeftSeparator keeps a parent's routing key in sync after node's first
// entry was removed, mirroring b_plus_tree.cpp's Remove index-0 case. It
// runs independent of whether node itself underflows.
//
// If the descent did not prove node safe, its immediate parent is still
// write-latched at the top of ctx.pageSet, so the fix is applied to that
// same latch.
// Otherwise the parent was already released during descent and is fetched
// and latched fresh, exactly as the original does.
func (t *BPlusTree) fixLeftSeparator(node *Node, ctx *OpContext) error {
	if node.parent == InvalidPageID || len(node.keys) == 0 {
		return nil
	}

	if len(ctx.pageSet) > 0 {
		parentPg := ctx.pageSet[len(ctx.pageSet)-1]
		parent, err := t.decodeNode(parentPg)
		if err != nil {
			return err
		}
		if !updateSeparator(parent, node) {
			return nil
		}
		return writeBack(parentPg, parent)
	}

	parentPg, err := t.pinPage(node.parent)
	if err != nil {
		return err
	}
	parentPg.Lock()

	parent, err := t.decodeNode(parentPg)
	if err != nil {
		parentPg.Unlock()
		_ = t.bufferPool.UnpinPage(node.parent, false)
		return err
	}
	if !updateSeparator(parent, node) {
		parentPg.Unlock()
		return t.bufferPool.UnpinPage(node.parent, false)
	}
	err = writeBack(parentPg, parent)
	parentPg.Unlock()
	if err != nil {
		_ = t.bufferPool.UnpinPage(node.parent, false)
		return err
	}
	return t.bufferPool.UnpinPage(node.parent, true)
}

// updateSeparator finds node among parent's children and, unless node is
// the leftmost child (which has no preceding routing key), rewrites the
// key separating it from its left sibling to node's new first key.
func updateSeparator(parent, node *Node) bool {
	for i, c := range parent.children {
		if c == node.pageID {
			if i == 0 {
				return false
			}
			parent.keys[i-1] = node.keys[0]
			return true
		}
	}
	return false
}

// handleUnderflow writes node back after a key/child was removed from it
// and either accepts the new size, collapses the root, or hands off to
// coalesceOrRedistribute. It always latches down node and pg by the time
// it returns.
func (t *BPlusTree) handleUnderflow(node *Node, pg *page.Page, ctx *OpContext) error {
	if node.pageID == t.getRoot() {
		if err := writeBack(pg, node); err != nil {
			pg.Unlock()
			_ = t.bufferPool.UnpinPage(node.pageID, false)
			ctx.releaseAncestors(t.bufferPool, false)
			return err
		}
		pg.Unlock()
		_ = t.bufferPool.UnpinPage(node.pageID, true)
		ctx.releaseAncestors(t.bufferPool, false)
		return t.adjustRoot(node)
	}

	if node.size() >= node.minSize() {
		if err := writeBack(pg, node); err != nil {
			pg.Unlock()
			_ = t.bufferPool.UnpinPage(node.pageID, false)
			ctx.releaseAncestors(t.bufferPool, false)
			return err
		}
		pg.Unlock()
		_ = t.bufferPool.UnpinPage(node.pageID, true)
		ctx.releaseAncestors(t.bufferPool, false)
		return nil
	}

	return t.coalesceOrRedistribute(node, pg, ctx)
}

// adjustRoot collapses the tree by one level when deletion has left the
// root with no entries (empty leaf: the tree becomes empty) or a single
// child (internal root: that child becomes the new root).
func (t *BPlusTree) adjustRoot(node *Node) error {
	if node.isLeaf() {
		if len(node.keys) == 0 {
			if err := t.bufferPool.DeletePage(node.pageID); err != nil {
				return err
			}
			return t.setRoot(InvalidPageID)
		}
		return nil
	}

	if len(node.children) == 1 {
		newRootID := node.children[0]
		if err := t.setParent(newRootID, InvalidPageID); err != nil {
			return err
		}
		if err := t.bufferPool.DeletePage(node.pageID); err != nil {
			return err
		}
		return t.setRoot(newRootID)
	}
	return nil
}

// coalesceOrRedistribute fixes an underflowing non-root node: it tries the
// right sibling first, then the left, redistributing a single entry from
// whichever one can spare it, and only falls back to merging node into a
// sibling once neither can. The immediate parent must already be
// write-latched at the top of ctx.pageSet — it wasn't proven safe when we
// descended past it, which is exactly why it's still held.
func (t *BPlusTree) coalesceOrRedistribute(node *Node, pg *page.Page, ctx *OpContext) error {
	if len(ctx.pageSet) == 0 {
		pg.Unlock()
		_ = t.bufferPool.UnpinPage(node.pageID, true)
		return fmt.Errorf("coalesceOrRedistribute: missing parent latch for page %d", node.pageID)
	}
	parentPg := ctx.pageSet[len(ctx.pageSet)-1]
	ctx.pageSet = ctx.pageSet[:len(ctx.pageSet)-1]

	parent, err := t.decodeNode(parentPg)
	if err != nil {
		pg.Unlock()
		_ = t.bufferPool.UnpinPage(node.pageID, true)
		parentPg.Unlock()
		_ = t.bufferPool.UnpinPage(parentPg.ID, false)
		ctx.releaseAncestors(t.bufferPool, false)
		return err
	}

	nodeIdx := -1
	for i, c := range parent.children {
		if c == node.pageID {
			nodeIdx = i
			break
		}
	}
	if nodeIdx < 0 {
		pg.Unlock()
		_ = t.bufferPool.UnpinPage(node.pageID, true)
		parentPg.Unlock()
		_ = t.bufferPool.UnpinPage(parentPg.ID, false)
		ctx.releaseAncestors(t.bufferPool, false)
		return fmt.Errorf("coalesceOrRedistribute: page %d not found in parent %d", node.pageID, parent.pageID)
	}

	abort := func(err error) error {
		pg.Unlock()
		_ = t.bufferPool.UnpinPage(node.pageID, true)
		parentPg.Unlock()
		_ = t.bufferPool.UnpinPage(parentPg.ID, false)
		ctx.releaseAncestors(t.bufferPool, false)
		return err
	}

	pinSibling := func(idx int) (*page.Page, *Node, error) {
		siblingPg, err := t.pinPage(parent.children[idx])
		if err != nil {
			return nil, nil, err
		}
		siblingPg.Lock()
		sibling, err := t.decodeNode(siblingPg)
		if err != nil {
			siblingPg.Unlock()
			_ = t.bufferPool.UnpinPage(siblingPg.ID, false)
			return nil, nil, err
		}
		return siblingPg, sibling, nil
	}

	releaseUnused := func(siblingPg *page.Page) {
		if siblingPg != nil {
			siblingPg.Unlock()
			_ = t.bufferPool.UnpinPage(siblingPg.ID, false)
		}
	}

	// §4.E point 2: try the right sibling first, then the left, taking the
	// first one that can spare an entry without itself underflowing.
	var rightPg *page.Page
	var rightSibling *Node
	if nodeIdx+1 < len(parent.children) {
		rightPg, rightSibling, err = pinSibling(nodeIdx + 1)
		if err != nil {
			return abort(err)
		}
		if canSpare(rightSibling) {
			t.redistribute(node, rightSibling, pg, rightPg, parent, nodeIdx, nodeIdx+1, true)
			return t.finishRedistribute(node, rightSibling, pg, rightPg, parent, parentPg, ctx)
		}
	}

	var leftPg *page.Page
	var leftSibling *Node
	if nodeIdx-1 >= 0 {
		leftPg, leftSibling, err = pinSibling(nodeIdx - 1)
		if err != nil {
			releaseUnused(rightPg)
			return abort(err)
		}
		if canSpare(leftSibling) {
			releaseUnused(rightPg)
			t.redistribute(node, leftSibling, pg, leftPg, parent, nodeIdx, nodeIdx-1, false)
			return t.finishRedistribute(node, leftSibling, pg, leftPg, parent, parentPg, ctx)
		}
	}

	// §4.E point 3: neither sibling can spare an entry — coalesce. Prefer
	// merging node into the left sibling; fall back to merging the right
	// sibling into node when node has no left sibling.
	if leftSibling != nil {
		releaseUnused(rightPg)
		return t.coalesce(leftSibling, node, leftPg, pg, parent, parentPg, nodeIdx, ctx)
	}
	return t.coalesce(node, rightSibling, pg, rightPg, parent, parentPg, nodeIdx+1, ctx)
}

// canSpare reports whether sibling has an entry to lend without itself
// dropping below minSize once it's given up — leaves keep size > minSize,
// internal nodes keep size-1 > minSize because redistributing a child also
// moves a separator key down from the sibling's own parent-facing count.
func canSpare(sibling *Node) bool {
	if sibling.isLeaf() {
		return sibling.size() > sibling.minSize()
	}
	return sibling.size()-1 > sibling.minSize()
}

// finishRedistribute writes back and releases node, the sibling redistribute
// just borrowed from, and parent (whose separator redistribute updated).
func (t *BPlusTree) finishRedistribute(node, sibling *Node, pg, siblingPg *page.Page, parent *Node, parentPg *page.Page, ctx *OpContext) error {
	if err := writeBack(pg, node); err != nil {
		pg.Unlock()
		_ = t.bufferPool.UnpinPage(node.pageID, false)
		siblingPg.Unlock()
		_ = t.bufferPool.UnpinPage(sibling.pageID, false)
		parentPg.Unlock()
		_ = t.bufferPool.UnpinPage(parent.pageID, false)
		ctx.releaseAncestors(t.bufferPool, false)
		return err
	}
	if err := writeBack(siblingPg, sibling); err != nil {
		pg.Unlock()
		_ = t.bufferPool.UnpinPage(node.pageID, true)
		siblingPg.Unlock()
		_ = t.bufferPool.UnpinPage(sibling.pageID, false)
		parentPg.Unlock()
		_ = t.bufferPool.UnpinPage(parent.pageID, false)
		ctx.releaseAncestors(t.bufferPool, false)
		return err
	}
	if err := writeBack(parentPg, parent); err != nil {
		pg.Unlock()
		_ = t.bufferPool.UnpinPage(node.pageID, true)
		siblingPg.Unlock()
		_ = t.bufferPool.UnpinPage(sibling.pageID, true)
		parentPg.Unlock()
		_ = t.bufferPool.UnpinPage(parent.pageID, false)
		ctx.releaseAncestors(t.bufferPool, false)
		return err
	}

	pg.Unlock()
	_ = t.bufferPool.UnpinPage(node.pageID, true)
	siblingPg.Unlock()
	_ = t.bufferPool.UnpinPage(sibling.pageID, true)
	parentPg.Unlock()
	_ = t.bufferPool.UnpinPage(parent.pageID, true)
	ctx.releaseAncestors(t.bufferPool, false)
	return nil
}

// coalesce merges right into left (left keeps the lower key range),
// pulling the separating key down from parent for internal merges, then
// removes that separator from parent and lets handleUnderflow deal with
// whatever underflow the removal causes there.
func (t *BPlusTree) coalesce(left, right *Node, leftPg, rightPg *page.Page, parent *Node, parentPg *page.Page, rightIdxInParent int, ctx *OpContext) error {
	if left.isLeaf() {
		left.keys = append(left.keys, right.keys...)
		left.values = append(left.values, right.values...)
		left.next = right.next
	} else {
		sepKey := parent.keys[rightIdxInParent-1]
		left.keys = append(left.keys, sepKey)
		left.keys = append(left.keys, right.keys...)
		left.children = append(left.children, right.children...)
		for _, c := range right.children {
			if err := t.setParent(c, left.pageID); err != nil {
				leftPg.Unlock()
				_ = t.bufferPool.UnpinPage(left.pageID, false)
				rightPg.Unlock()
				_ = t.bufferPool.UnpinPage(right.pageID, false)
				parentPg.Unlock()
				_ = t.bufferPool.UnpinPage(parent.pageID, false)
				ctx.releaseAncestors(t.bufferPool, false)
				return err
			}
		}
	}

	parent.keys = removeAt(parent.keys, rightIdxInParent-1)
	parent.children = removeAt(parent.children, rightIdxInParent)

	if err := writeBack(leftPg, left); err != nil {
		leftPg.Unlock()
		_ = t.bufferPool.UnpinPage(left.pageID, false)
		rightPg.Unlock()
		_ = t.bufferPool.UnpinPage(right.pageID, false)
		parentPg.Unlock()
		_ = t.bufferPool.UnpinPage(parent.pageID, false)
		ctx.releaseAncestors(t.bufferPool, false)
		return err
	}

	leftPg.Unlock()
	_ = t.bufferPool.UnpinPage(left.pageID, true)
	rightPg.Unlock()
	_ = t.bufferPool.UnpinPage(right.pageID, false)
	if err := t.bufferPool.DeletePage(right.pageID); err != nil {
		parentPg.Unlock()
		_ = t.bufferPool.UnpinPage(parent.pageID, false)
		ctx.releaseAncestors(t.bufferPool, false)
		return err
	}

	return t.handleUnderflow(parent, parentPg, ctx)
}

// redistribute borrows a single entry from sibling to bring node back up
// to minSize, fixing up the parent separator key so the tree's ordering
// invariant still holds. It does not write back or release any of the
// three nodes involved — the caller does that once, uniformly.
func (t *BPlusTree) redistribute(node, sibling *Node, nodePg, siblingPg *page.Page, parent *Node, nodeIdx, siblingIdx int, siblingIsRight bool) {
	if siblingIsRight {
		if node.isLeaf() {
			node.keys = append(node.keys, sibling.keys[0])
			node.values = append(node.values, sibling.values[0])
			sibling.keys = removeAt(sibling.keys, 0)
			sibling.values = removeAt(sibling.values, 0)
			parent.keys[nodeIdx] = sibling.keys[0]
		} else {
			node.keys = append(node.keys, parent.keys[nodeIdx])
			borrowed := sibling.children[0]
			node.children = append(node.children, borrowed)
			_ = t.setParent(borrowed, node.pageID)
			parent.keys[nodeIdx] = sibling.keys[0]
			sibling.keys = removeAt(sibling.keys, 0)
			sibling.children = removeAt(sibling.children, 0)
		}
		return
	}

	if node.isLeaf() {
		last := len(sibling.keys) - 1
		node.keys = insertAt(node.keys, 0, sibling.keys[last])
		node.values = insertAt(node.values, 0, sibling.values[last])
		sibling.keys = sibling.keys[:last]
		sibling.values = sibling.values[:last]
		parent.keys[siblingIdx] = node.keys[0]
	} else {
		lastKey := len(sibling.keys) - 1
		node.keys = insertAt(node.keys, 0, parent.keys[siblingIdx])
		borrowed := sibling.children[len(sibling.children)-1]
		node.children = insertAt(node.children, 0, borrowed)
		_ = t.setParent(borrowed, node.pageID)
		parent.keys[siblingIdx] = sibling.keys[lastKey]
		sibling.keys = sibling.keys[:lastKey]
		sibling.children = sibling.children[:len(sibling.children)-1]
	}
}
