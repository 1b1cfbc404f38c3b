package bplustree

import (
	"fmt"

	bufferpool "relkernel/internal/buffer"
	"relkernel/internal/logging"
	"relkernel/internal/page"
	"relkernel/types"
)

// OpenBPlusTree attaches a BPlusTree to fileID's page space. isNewFile
// tells it whether to lay down a fresh header page (local page 0) or read
// the existing one back — the catalog knows which, since it's the one that
// decided to allocate this file id in the first place. leafMaxSize and
// internalMaxSize are per-tree split thresholds; passing 0 for either takes
// DefaultLeafMaxSize/DefaultInternalMaxSize.
func OpenBPlusTree(fileID uint32, bp *bufferpool.BufferPool, cmp Comparator, isNewFile bool, leafMaxSize, internalMaxSize int, logger logging.Logger) (*BPlusTree, error) {
	if logger == nil {
		logger = logging.NewDefault()
	}
	if leafMaxSize <= 0 {
		leafMaxSize = DefaultLeafMaxSize
	}
	if internalMaxSize <= 0 {
		internalMaxSize = DefaultInternalMaxSize
	}

	t := &BPlusTree{
		fileID:          fileID,
		bufferPool:      bp,
		cmp:             cmp,
		logger:          logger,
		root:            InvalidPageID,
		leafMaxSize:     leafMaxSize,
		internalMaxSize: internalMaxSize,
	}

	if isNewFile {
		pg, err := bp.NewPage(fileID, types.PageTypeMetadata)
		if err != nil {
			return nil, fmt.Errorf("open bplustree: allocate header page: %w", err)
		}
		hp := page.NewHeaderPage()
		hp.InsertRecord(headerRecordName, InvalidPageID)
		if err := hp.Encode(pg.Data); err != nil {
			_ = bp.UnpinPage(pg.ID, false)
			return nil, fmt.Errorf("open bplustree: encode header page: %w", err)
		}
		if err := bp.UnpinPage(pg.ID, true); err != nil {
			return nil, err
		}
		return t, nil
	}

	headerPageID := globalOf(fileID, 0)
	pg, err := bp.FetchPage(headerPageID)
	if err != nil {
		return nil, fmt.Errorf("open bplustree: fetch header page: %w", err)
	}
	hp, err := page.DecodeHeaderPage(pg.Data)
	if err != nil {
		_ = bp.UnpinPage(headerPageID, false)
		return nil, fmt.Errorf("open bplustree: decode header page: %w", err)
	}
	if rootID, ok := hp.GetRootID(headerRecordName); ok {
		t.root = rootID
	}
	if err := bp.UnpinPage(headerPageID, false); err != nil {
		return nil, err
	}

	logger.Printf("[BTree] opened fileID=%d root=%d", fileID, t.root)
	return t, nil
}

func (t *BPlusTree) getRoot() int64 {
	t.rootMu.RLock()
	defer t.rootMu.RUnlock()
	return t.root
}

// setRoot swaps the cached root id and persists it to the header page in
// the same call — the header page is the durable source of truth, the
// cached field only avoids fetching page 0 on every operation.
func (t *BPlusTree) setRoot(newRoot int64) error {
	t.rootMu.Lock()
	defer t.rootMu.Unlock()

	headerPageID := globalOf(t.fileID, 0)
	pg, err := t.bufferPool.FetchPage(headerPageID)
	if err != nil {
		return fmt.Errorf("update root page id: %w", err)
	}
	defer t.bufferPool.UnpinPage(headerPageID, true)

	pg.Lock()
	defer pg.Unlock()

	hp, err := page.DecodeHeaderPage(pg.Data)
	if err != nil {
		return fmt.Errorf("update root page id: decode: %w", err)
	}
	hp.UpdateRecord(headerRecordName, newRoot)
	if err := hp.Encode(pg.Data); err != nil {
		return fmt.Errorf("update root page id: encode: %w", err)
	}
	pg.IsDirty = true

	t.root = newRoot
	t.logger.Printf("[BTree] root updated fileID=%d root=%d", t.fileID, newRoot)
	return nil
}

// IsEmpty reports whether the tree has no root yet.
func (t *BPlusTree) IsEmpty() bool {
	return t.getRoot() == InvalidPageID
}
