package bplustree

import (
	"fmt"

	"relkernel/internal/page"
)

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Insert adds key -> value to the tree, latch-crabbing down from the root.
// Duplicate keys are rejected — leaf entries are unique, exactly as the
// spec's data model requires.
func (t *BPlusTree) Insert(key, value []byte) error {
	if t.IsEmpty() {
		return t.startNewTree(key, value)
	}
	return t.insertIntoLeaf(key, value)
}

// startNewTree handles the very first insert into an empty tree. It is
// serialized by t.mu so two concurrent inserts into an empty tree can't
// both try to create a root.
func (t *BPlusTree) startNewTree(key, value []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.IsEmpty() {
		return t.insertIntoLeaf(key, value)
	}

	node, pg, err := t.newNodePage(NodeLeaf)
	if err != nil {
		return err
	}
	pg.Lock()
	node.keys = [][]byte{cloneBytes(key)}
	node.values = [][]byte{cloneBytes(value)}
	err = writeBack(pg, node)
	pg.Unlock()
	if uErr := t.bufferPool.UnpinPage(node.pageID, true); uErr != nil && err == nil {
		err = uErr
	}
	if err != nil {
		return err
	}

	return t.setRoot(node.pageID)
}

// insertIntoLeaf is BusTub's FindLeafPageRW + InsertIntoLeaf: it descends
// write-crabbing, releasing ancestors the moment a child proves it has
// room to absorb the insert without splitting.
func (t *BPlusTree) insertIntoLeaf(key, value []byte) error {
	ctx := newOpContext(OpInsert)

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

		if isSafe(childNode, OpInsert) {
			ctx.releaseAncestors(t.bufferPool, false)
			pg.Unlock()
			_ = t.bufferPool.UnpinPage(curID, false)
		} else {
			ctx.push(pg)
		}

		pg, node, curID = childPg, childNode, childID
	}

	if idx := binarySearch(node.keys, key, t.cmp); idx >= 0 {
		pg.Unlock()
		_ = t.bufferPool.UnpinPage(curID, false)
		ctx.releaseAncestors(t.bufferPool, false)
		return fmt.Errorf("%w: %x", ErrDuplicateKey, key)
	}

	pos := lowerBound(node.keys, key, t.cmp)
	node.keys = insertAt(node.keys, pos, cloneBytes(key))
	node.values = insertAt(node.values, pos, cloneBytes(value))

	if node.size() <= node.maxSize() {
		if err := writeBack(pg, node); err != nil {
			pg.Unlock()
			_ = t.bufferPool.UnpinPage(curID, false)
			ctx.releaseAncestors(t.bufferPool, false)
			return err
		}
		pg.Unlock()
		_ = t.bufferPool.UnpinPage(curID, true)
		ctx.releaseAncestors(t.bufferPool, false)
		return nil
	}

	return t.splitLeaf(node, pg, ctx)
}

// abortDescent unwinds a partially-latched descent when a page fetch fails
// mid-crabbing.
func (t *BPlusTree) abortDescent(ctx *OpContext, pg *page.Page, curID int64) {
	pg.Unlock()
	_ = t.bufferPool.UnpinPage(curID, false)
	ctx.releaseAncestors(t.bufferPool, false)
}

// splitLeaf moves the upper half of an overflowing leaf into a new right
// sibling and pushes the sibling's first key up to the parent.
func (t *BPlusTree) splitLeaf(node *Node, pg *page.Page, ctx *OpContext) error {
	mid := node.size() / 2

	newNode, newPg, err := t.newNodePage(NodeLeaf)
	if err != nil {
		pg.Unlock()
		_ = t.bufferPool.UnpinPage(node.pageID, true)
		ctx.releaseAncestors(t.bufferPool, false)
		return err
	}
	newPg.Lock()

	newNode.keys = append([][]byte(nil), node.keys[mid:]...)
	newNode.values = append([][]byte(nil), node.values[mid:]...)
	newNode.next = node.next
	newNode.parent = node.parent

	node.keys = node.keys[:mid]
	node.values = node.values[:mid]
	node.next = newNode.pageID

	upKey := cloneBytes(newNode.keys[0])

	errLeft := writeBack(pg, node)
	errRight := writeBack(newPg, newNode)

	pg.Unlock()
	_ = t.bufferPool.UnpinPage(node.pageID, true)
	newPg.Unlock()
	_ = t.bufferPool.UnpinPage(newNode.pageID, true)

	if errLeft != nil {
		ctx.releaseAncestors(t.bufferPool, false)
		return errLeft
	}
	if errRight != nil {
		ctx.releaseAncestors(t.bufferPool, false)
		return errRight
	}

	return t.insertIntoParent(node.pageID, upKey, newNode.pageID, ctx)
}

// insertIntoParent inserts (upKey, rightID) as a new separator after
// leftID in leftID's parent, splitting that parent in turn if it overflows,
// or creates a new root if leftID had none.
func (t *BPlusTree) insertIntoParent(leftID int64, upKey []byte, rightID int64, ctx *OpContext) error {
	if leftID == t.getRoot() {
		newRoot, newPg, err := t.newNodePage(NodeInternal)
		if err != nil {
			ctx.releaseAncestors(t.bufferPool, false)
			return err
		}
		newPg.Lock()
		newRoot.keys = [][]byte{upKey}
		newRoot.children = []int64{leftID, rightID}
		err = writeBack(newPg, newRoot)
		newPg.Unlock()
		if uErr := t.bufferPool.UnpinPage(newRoot.pageID, true); uErr != nil && err == nil {
			err = uErr
		}
		if err != nil {
			ctx.releaseAncestors(t.bufferPool, false)
			return err
		}

		if err := t.setParent(leftID, newRoot.pageID); err != nil {
			ctx.releaseAncestors(t.bufferPool, false)
			return err
		}
		if err := t.setParent(rightID, newRoot.pageID); err != nil {
			ctx.releaseAncestors(t.bufferPool, false)
			return err
		}

		ctx.releaseAncestors(t.bufferPool, false)
		return t.setRoot(newRoot.pageID)
	}

	if len(ctx.pageSet) == 0 {
		ctx.releaseAncestors(t.bufferPool, false)
		return fmt.Errorf("insertIntoParent: missing ancestor latch for split of page %d", leftID)
	}

	parentPg := ctx.pageSet[len(ctx.pageSet)-1]
	ctx.pageSet = ctx.pageSet[:len(ctx.pageSet)-1]

	parentNode, err := t.decodeNode(parentPg)
	if err != nil {
		parentPg.Unlock()
		_ = t.bufferPool.UnpinPage(parentPg.ID, false)
		ctx.releaseAncestors(t.bufferPool, false)
		return err
	}

	pos := -1
	for i, c := range parentNode.children {
		if c == leftID {
			pos = i
			break
		}
	}
	if pos < 0 {
		parentPg.Unlock()
		_ = t.bufferPool.UnpinPage(parentPg.ID, false)
		ctx.releaseAncestors(t.bufferPool, false)
		return fmt.Errorf("insertIntoParent: child %d not found in parent %d", leftID, parentNode.pageID)
	}

	parentNode.keys = insertAt(parentNode.keys, pos, upKey)
	parentNode.children = insertAt(parentNode.children, pos+1, rightID)

	if err := t.setParent(rightID, parentNode.pageID); err != nil {
		parentPg.Unlock()
		_ = t.bufferPool.UnpinPage(parentNode.pageID, false)
		ctx.releaseAncestors(t.bufferPool, false)
		return err
	}

	if parentNode.size() <= parentNode.maxSize() {
		err := writeBack(parentPg, parentNode)
		parentPg.Unlock()
		if uErr := t.bufferPool.UnpinPage(parentNode.pageID, true); uErr != nil && err == nil {
			err = uErr
		}
		ctx.releaseAncestors(t.bufferPool, false)
		return err
	}

	return t.splitInternal(parentNode, parentPg, ctx)
}

// splitInternal moves the upper half of an overflowing internal node's
// keys/children into a new right sibling, pushing the median key (which
// belongs to neither child) up to insertIntoParent.
func (t *BPlusTree) splitInternal(node *Node, pg *page.Page, ctx *OpContext) error {
	mid := node.size() / 2
	upKey := cloneBytes(node.keys[mid])

	newNode, newPg, err := t.newNodePage(NodeInternal)
	if err != nil {
		pg.Unlock()
		_ = t.bufferPool.UnpinPage(node.pageID, true)
		ctx.releaseAncestors(t.bufferPool, false)
		return err
	}
	newPg.Lock()

	newNode.keys = append([][]byte(nil), node.keys[mid+1:]...)
	newNode.children = append([]int64(nil), node.children[mid+1:]...)
	newNode.parent = node.parent

	node.keys = node.keys[:mid]
	node.children = node.children[:mid+1]

	for _, childID := range newNode.children {
		if err := t.setParent(childID, newNode.pageID); err != nil {
			pg.Unlock()
			_ = t.bufferPool.UnpinPage(node.pageID, true)
			newPg.Unlock()
			_ = t.bufferPool.UnpinPage(newNode.pageID, false)
			ctx.releaseAncestors(t.bufferPool, false)
			return err
		}
	}

	errLeft := writeBack(pg, node)
	errRight := writeBack(newPg, newNode)

	pg.Unlock()
	_ = t.bufferPool.UnpinPage(node.pageID, true)
	newPg.Unlock()
	_ = t.bufferPool.UnpinPage(newNode.pageID, true)

	if errLeft != nil {
		ctx.releaseAncestors(t.bufferPool, false)
		return errLeft
	}
	if errRight != nil {
		ctx.releaseAncestors(t.bufferPool, false)
		return errRight
	}

	return t.insertIntoParent(node.pageID, upKey, newNode.pageID, ctx)
}

// setParent fetches childID just to update its stored parent pointer —
// used whenever a split or merge changes which internal node owns a page.
func (t *BPlusTree) setParent(childID, parentID int64) error {
	pg, err := t.pinPage(childID)
	if err != nil {
		return err
	}
	pg.Lock()
	node, err := t.decodeNode(pg)
	if err != nil {
		pg.Unlock()
		_ = t.bufferPool.UnpinPage(childID, false)
		return err
	}
	node.parent = parentID
	err = writeBack(pg, node)
	pg.Unlock()
	if uErr := t.bufferPool.UnpinPage(childID, true); uErr != nil && err == nil {
		err = uErr
	}
	return err
}
