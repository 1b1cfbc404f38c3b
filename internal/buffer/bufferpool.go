package bufferpool

import (
	"fmt"

	diskmanager "relkernel/internal/disk"
	"relkernel/internal/logging"
	"relkernel/internal/page"
	"relkernel/internal/replacer"
	"relkernel/types"
)

/*
BufferPool is the frame-table buffer pool manager: pool_size fixed frames,
a page table mapping pageID -> frameID, a free list for frames not
currently holding a page, and an LRUReplacer tracking every frame whose pin count
has dropped to zero. Fetching a page that isn't resident picks a frame via
FindReplace (free list first, then the replacer's victim), flushing the
outgoing page first if it is dirty.
*/

// NewBufferPool creates a buffer pool with capacity frames.
func NewBufferPool(capacity int, diskManager *diskmanager.DiskManager) *BufferPool {
	freeList := make([]int, capacity)
	for i := range freeList {
		freeList[i] = i
	}
	return &BufferPool{
		frames:      make([]*page.Page, capacity),
		pageTbl:     make(map[int64]int, capacity),
		freeList:    freeList,
		capacity:    capacity,
		diskManager: diskManager,
		replacer:    replacer.NewLRUReplacer(capacity),
		logger:      logging.NewDefault(),
	}
}

// SetWALManager wires the opaque log-manager collaborator used to enforce
// WAL-before-page-flush ordering. Never set, callers get unconditional flushes.
func (bp *BufferPool) SetWALManager(wal WALFlushedLSNGetter) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	bp.walManager = wal
}

// SetLogger overrides the default stdout logger, e.g. with logging.NewNoop() in tests.
func (bp *BufferPool) SetLogger(l logging.Logger) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	bp.logger = l
}

// FetchPage returns the page for pageID, pinning it. If the page is not
// resident it is loaded from disk into a frame chosen by FindReplace.
func (bp *BufferPool) FetchPage(pageID int64) (*page.Page, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if frameID, ok := bp.pageTbl[pageID]; ok {
		pg := bp.frames[frameID]
		bp.logger.Printf("[BufferPool] HIT pageID=%d frameID=%d pinCount=%d", pageID, frameID, pg.PinCount+1)
		bp.pin(frameID)
		pg.PinCount++
		return pg, nil
	}

	if bp.diskManager == nil {
		return nil, fmt.Errorf("disk manager not set")
	}

	frameID, err := bp.findReplace()
	if err != nil {
		return nil, fmt.Errorf("fetch page %d: %w", pageID, err)
	}

	pg, err := bp.diskManager.ReadPage(pageID)
	if err != nil {
		bp.freeList = append(bp.freeList, frameID)
		return nil, fmt.Errorf("failed to read page %d from disk: %w", pageID, err)
	}

	bp.logger.Printf("[BufferPool] MISS pageID=%d frameID=%d — loaded from disk", pageID, frameID)

	bp.frames[frameID] = pg
	bp.pageTbl[pageID] = frameID
	pg.PinCount = 1
	bp.pin(frameID)

	return pg, nil
}

// NewPage allocates a brand new page for fileID, pins it into a frame and
// marks it dirty (nothing has been written to disk for it yet).
func (bp *BufferPool) NewPage(fileID uint32, pageType types.PageType) (*page.Page, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if bp.diskManager == nil {
		return nil, fmt.Errorf("disk manager not set")
	}

	frameID, err := bp.findReplace()
	if err != nil {
		return nil, fmt.Errorf("new page: %w", err)
	}

	pageID, err := bp.diskManager.AllocatePage(fileID, pageType)
	if err != nil {
		bp.freeList = append(bp.freeList, frameID)
		return nil, fmt.Errorf("failed to allocate page: %w", err)
	}

	pg := diskmanager.NewPage(pageID, fileID, pageType)
	pg.IsDirty = true
	pg.PinCount = 1

	bp.frames[frameID] = pg
	bp.pageTbl[pageID] = frameID
	bp.pin(frameID)

	bp.logger.Printf("[BufferPool] NEW pageID=%d frameID=%d fileID=%d", pageID, frameID, fileID)

	return pg, nil
}

// UnpinPage decrements the pin count of pageID. Once it reaches zero the
// frame becomes eligible for eviction via the replacer.
func (bp *BufferPool) UnpinPage(pageID int64, isDirty bool) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	frameID, ok := bp.pageTbl[pageID]
	if !ok {
		return fmt.Errorf("page %d not in buffer pool", pageID)
	}
	pg := bp.frames[frameID]

	if pg.PinCount > 0 {
		pg.PinCount--
	}
	if isDirty {
		pg.IsDirty = true
	}

	if pg.PinCount == 0 {
		bp.replacer.Unpin(frameID)
	}

	return nil
}

// FlushPage writes pageID to disk if it is dirty.
func (bp *BufferPool) FlushPage(pageID int64) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	frameID, ok := bp.pageTbl[pageID]
	if !ok {
		return fmt.Errorf("page %d not in buffer pool", pageID)
	}
	return bp.flushFrame(frameID)
}

// flushFrame writes the frame's page to disk if dirty. Caller holds bp.mu.
func (bp *BufferPool) flushFrame(frameID int) error {
	pg := bp.frames[frameID]
	pg.Lock()
	defer pg.Unlock()

	if !pg.IsDirty {
		return nil
	}

	if bp.walManager != nil {
		flushedLSN := bp.walManager.GetFlushedLSN()
		if pg.LSN > flushedLSN {
			bp.logger.Printf("[BufferPool] FLUSH BLOCKED pageID=%d pageLSN=%d flushedLSN=%d", pg.ID, pg.LSN, flushedLSN)
			return fmt.Errorf("cannot flush page %d: pageLSN=%d not yet covered by WAL flushedLSN=%d", pg.ID, pg.LSN, flushedLSN)
		}
	}

	if err := bp.diskManager.WritePage(pg); err != nil {
		return fmt.Errorf("failed to flush page %d: %w", pg.ID, err)
	}
	bp.logger.Printf("[BufferPool] FLUSH pageID=%d", pg.ID)
	pg.IsDirty = false
	return nil
}

// FlushAllPages writes every dirty resident page to disk. The BusTub
// original leaves this unimplemented; §4.C of the spec requires it, so it
// is filled in here rather than left as a stub.
func (bp *BufferPool) FlushAllPages() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if bp.diskManager == nil {
		return fmt.Errorf("disk manager not set")
	}

	bp.logger.Printf("[BufferPool] FlushAllPages — %d resident pages", len(bp.pageTbl))

	for pageID, frameID := range bp.pageTbl {
		if err := bp.flushFrame(frameID); err != nil {
			return fmt.Errorf("flush all pages: pageID %d: %w", pageID, err)
		}
	}
	return nil
}

// DeletePage evicts pageID from the pool and deallocates its ID on disk. It
// refuses to delete a pinned page.
func (bp *BufferPool) DeletePage(pageID int64) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	frameID, ok := bp.pageTbl[pageID]
	if !ok {
		return nil // already not resident
	}

	pg := bp.frames[frameID]
	pg.RLock()
	pinned := pg.PinCount > 0
	pg.RUnlock()
	if pinned {
		return fmt.Errorf("cannot delete pinned page %d", pageID)
	}

	bp.replacer.Pin(frameID) // stop tracking it as a victim candidate
	delete(bp.pageTbl, pageID)
	bp.frames[frameID] = nil
	bp.freeList = append(bp.freeList, frameID)

	if bp.diskManager != nil {
		if err := bp.diskManager.DeallocatePage(pageID); err != nil {
			return fmt.Errorf("delete page %d: %w", pageID, err)
		}
	}
	bp.logger.Printf("[BufferPool] DELETE pageID=%d frameID=%d", pageID, frameID)
	return nil
}

// GetPinCount is a read-only diagnostic accessor restored from BusTub's own
// test harness; it lets tests assert directly on invariant I1 (pin
// accounting) without reaching into pool internals.
func (bp *BufferPool) GetPinCount(pageID int64) (int32, bool) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	frameID, ok := bp.pageTbl[pageID]
	if !ok {
		return 0, false
	}
	pg := bp.frames[frameID]
	pg.RLock()
	defer pg.RUnlock()
	return pg.PinCount, true
}

// Stats reports a snapshot of pool occupancy.
func (bp *BufferPool) Stats() BufferPoolStats {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	stats := BufferPoolStats{Capacity: bp.capacity, TotalPages: len(bp.pageTbl)}
	for _, frameID := range bp.pageTbl {
		pg := bp.frames[frameID]
		pg.RLock()
		if pg.PinCount > 0 {
			stats.PinnedPages++
		}
		if pg.IsDirty {
			stats.DirtyPages++
		}
		pg.RUnlock()
	}
	return stats
}
