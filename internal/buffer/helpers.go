package bufferpool

import (
	"fmt"

	"relkernel/internal/page"
)

// pin removes frameID from the replacer's evictable set. Safe to call even
// if the frame was never in the replacer (e.g. it just came off the free
// list) — Pin is a no-op in that case.
func (bp *BufferPool) pin(frameID int) {
	bp.replacer.Pin(frameID)
}

// findReplace picks a frame for a page about to become resident: the free
// list is drained first, then the replacer's LRU victim is evicted,
// flushing it to disk first if dirty. Caller holds bp.mu.
func (bp *BufferPool) findReplace() (int, error) {
	if n := len(bp.freeList); n > 0 {
		frameID := bp.freeList[n-1]
		bp.freeList = bp.freeList[:n-1]
		return frameID, nil
	}

	frameID, ok := bp.replacer.Victim()
	if !ok {
		return 0, fmt.Errorf("no free frames: all %d pages are pinned", bp.capacity)
	}

	victim := bp.frames[frameID]
	if err := bp.flushFrame(frameID); err != nil {
		return 0, fmt.Errorf("evict frame %d: %w", frameID, err)
	}
	delete(bp.pageTbl, victim.ID)
	bp.frames[frameID] = nil
	bp.logger.Printf("[BufferPool] EVICT pageID=%d frameID=%d", victim.ID, frameID)

	return frameID, nil
}

// Size returns the number of resident pages.
func (bp *BufferPool) Size() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return len(bp.pageTbl)
}

// Capacity returns the pool's fixed frame count.
func (bp *BufferPool) Capacity() int {
	return bp.capacity
}

// GetPage returns a resident page without touching disk or pin counts, or
// nil if it isn't currently in the pool.
func (bp *BufferPool) GetPage(pageID int64) *page.Page {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	frameID, ok := bp.pageTbl[pageID]
	if !ok {
		return nil
	}
	return bp.frames[frameID]
}

// MarkDirty flags a resident page as dirty without changing its pin count.
func (bp *BufferPool) MarkDirty(pageID int64) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	frameID, ok := bp.pageTbl[pageID]
	if !ok {
		return fmt.Errorf("page %d not in buffer pool", pageID)
	}
	pg := bp.frames[frameID]
	pg.Lock()
	pg.IsDirty = true
	pg.Unlock()
	return nil
}
