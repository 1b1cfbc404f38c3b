package heapfile

import (
	"fmt"

	"relkernel/types"
)

// globalPageID reproduces the disk manager's own deterministic page-id
// encoding (fileID<<32 | localPageNum) so a heap file can address its pages
// through the buffer pool without holding a reference back to whatever
// registered them.
func (hf *HeapFile) globalPageID(localPageNum uint32) int64 {
	return int64(hf.fileID)<<32 | int64(localPageNum)
}

// readPage fetches localPageNum through the buffer pool, copies its bytes
// out, and unpins it immediately — heap page mutation in this package
// always happens on a private copy that gets written back explicitly via
// writePage, mirroring how the slot-directory helpers already expect a bare
// []byte rather than a *page.Page.
func (hf *HeapFile) readPage(localPageNum uint32) ([]byte, error) {
	pg, err := hf.bufferPool.FetchPage(hf.globalPageID(localPageNum))
	if err != nil {
		return nil, fmt.Errorf("fetch heap page %d: %w", localPageNum, err)
	}
	pg.RLock()
	data := make([]byte, len(pg.Data))
	copy(data, pg.Data)
	pg.RUnlock()

	if err := hf.bufferPool.UnpinPage(pg.ID, false); err != nil {
		return nil, fmt.Errorf("unpin heap page %d: %w", localPageNum, err)
	}
	return data, nil
}

// writePage fetches localPageNum, overwrites its bytes with page, and
// unpins it dirty so the buffer pool flushes it on eviction or FlushAllPages.
func (hf *HeapFile) writePage(localPageNum uint32, page []byte) error {
	pg, err := hf.bufferPool.FetchPage(hf.globalPageID(localPageNum))
	if err != nil {
		return fmt.Errorf("fetch heap page %d: %w", localPageNum, err)
	}
	pg.Lock()
	copy(pg.Data, page)
	pg.Unlock()

	return hf.bufferPool.UnpinPage(pg.ID, true)
}

// allocatePage asks the buffer pool for a brand new page for this heap
// file's fileID and returns its local page number, i.e. the low 32 bits of
// the global id the pool just minted.
func (hf *HeapFile) allocatePage() (uint32, error) {
	pg, err := hf.bufferPool.NewPage(hf.fileID, types.PageTypeHeapData)
	if err != nil {
		return 0, fmt.Errorf("allocate heap page: %w", err)
	}
	localPageNum := uint32(pg.ID & 0xFFFFFFFF)
	if err := hf.bufferPool.UnpinPage(pg.ID, true); err != nil {
		return 0, fmt.Errorf("unpin new heap page %d: %w", localPageNum, err)
	}
	return localPageNum, nil
}
