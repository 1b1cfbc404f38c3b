package bplustree

import (
	"fmt"

	"relkernel/internal/page"
	"relkernel/types"
)

// pinPage fetches pageID into the buffer pool without taking any latch —
// callers must RLock (read paths) or Lock (write paths) the returned page
// before decoding it, since another goroutine may be mutating its bytes.
func (t *BPlusTree) pinPage(pageID int64) (*page.Page, error) {
	pg, err := t.bufferPool.FetchPage(pageID)
	if err != nil {
		return nil, fmt.Errorf("pin page %d: %w", pageID, err)
	}
	return pg, nil
}

// decodeNode decodes an already-latched page's bytes into a Node. The wire
// format doesn't carry a max size, so it's stamped on here from the owning
// tree's leafMaxSize/internalMaxSize rather than a package constant.
func (t *BPlusTree) decodeNode(pg *page.Page) (*Node, error) {
	node, err := DeserializeNode(pg.Data, t.fileID)
	if err != nil {
		return nil, fmt.Errorf("decode node %d: %w", pg.ID, err)
	}
	if node.isLeaf() {
		node.maxKeys = t.leafMaxSize
	} else {
		node.maxKeys = t.internalMaxSize
	}
	return node, nil
}

// writeBack re-encodes node into pg's data buffer and marks it dirty. It
// does not unpin or unlatch pg — the caller controls that lifecycle.
func writeBack(pg *page.Page, node *Node) error {
	if err := SerializeNode(node, pg.Data); err != nil {
		return fmt.Errorf("write back node %d: %w", node.pageID, err)
	}
	pg.IsDirty = true
	return nil
}

// newNodePage allocates a fresh page for a node of the given kind. The
// returned page is pinned but NOT yet latched — callers immediately Lock
// it themselves, matching how a freshly split-off sibling is latched in
// BusTub's Split<N>.
func (t *BPlusTree) newNodePage(kind NodeType) (*Node, *page.Page, error) {
	pg, err := t.bufferPool.NewPage(t.fileID, types.PageTypeBPlusNode)
	if err != nil {
		return nil, nil, fmt.Errorf("allocate node page: %w", err)
	}
	maxKeys := t.leafMaxSize
	if kind == NodeInternal {
		maxKeys = t.internalMaxSize
	}
	node := &Node{
		pageID:   pg.ID,
		nodeType: kind,
		parent:   InvalidPageID,
		next:     InvalidPageID,
		maxKeys:  maxKeys,
	}
	return node, pg, nil
}

type pageUnpinner interface {
	UnpinPage(int64, bool) error
}

// releaseAncestors unlatches and unpins every page an OpContext is still
// holding, in root-to-leaf order — BusTub's UnLatchAndUnpin. BusTub passes
// a single dirty flag for the whole write op because it only tracks "was
// this a write transaction", not which pages it touched. Insert/Remove
// here call this with dirty=false at every site, instead: a node that
// actually changes gets popped off ctx.pageSet and unpinned with its own
// explicit dirty=true right where writeBack happens (see coalesce,
// finishRedistribute, handleUnderflow). The one page changed while it stays
// in pageSet is the parent whose separator fixLeftSeparator rewrites, and
// writeBack has already set that page's dirty bit. Passing false here
// therefore never loses a change.
func (ctx *OpContext) releaseAncestors(bp pageUnpinner, dirty bool) {
	for _, pg := range ctx.pageSet {
		pg.Unlock()
		_ = bp.UnpinPage(pg.ID, dirty)
	}
	ctx.pageSet = ctx.pageSet[:0]
}
