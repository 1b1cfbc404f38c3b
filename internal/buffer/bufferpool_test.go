package bufferpool

import (
	"path/filepath"
	"testing"

	diskmanager "relkernel/internal/disk"
	"relkernel/types"
)

func newTestPool(t *testing.T, capacity int) (*BufferPool, uint32) {
	t.Helper()
	dm := diskmanager.NewDiskManager()
	path := filepath.Join(t.TempDir(), "pool.db")
	fileID, err := dm.OpenFileWithID(path, 1)
	if err != nil {
		t.Fatalf("OpenFileWithID: %v", err)
	}
	return NewBufferPool(capacity, dm), fileID
}

func TestBufferPoolEvictsOnlyUnpinnedPages(t *testing.T) {
	bp, fileID := newTestPool(t, 2)

	p1, err := bp.NewPage(fileID, types.PageTypeHeapData)
	if err != nil {
		t.Fatalf("NewPage p1: %v", err)
	}
	p2, err := bp.NewPage(fileID, types.PageTypeHeapData)
	if err != nil {
		t.Fatalf("NewPage p2: %v", err)
	}

	// Both frames are pinned; the pool is full and pinned, so a third
	// allocation must fail rather than silently evict a pinned page.
	if _, err := bp.NewPage(fileID, types.PageTypeHeapData); err == nil {
		t.Fatalf("expected NewPage to fail when all frames are pinned")
	}

	if err := bp.UnpinPage(p1.ID, false); err != nil {
		t.Fatalf("UnpinPage p1: %v", err)
	}

	p3, err := bp.NewPage(fileID, types.PageTypeHeapData)
	if err != nil {
		t.Fatalf("NewPage p3 after unpin: %v", err)
	}
	if p3.ID == p2.ID {
		t.Fatalf("evicted the wrong page: got p3.ID=%d, want the reused frame of evicted p1", p3.ID)
	}

	if pc, ok := bp.GetPinCount(p1.ID); ok {
		t.Fatalf("expected p1 to have been evicted, but it is still resident with pin count %d", pc)
	}
}

func TestBufferPoolPinCountRoundTrips(t *testing.T) {
	bp, fileID := newTestPool(t, 4)

	pg, err := bp.NewPage(fileID, types.PageTypeHeapData)
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	if pc, _ := bp.GetPinCount(pg.ID); pc != 1 {
		t.Fatalf("pin count after NewPage = %d, want 1", pc)
	}

	fetched, err := bp.FetchPage(pg.ID)
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if pc, _ := bp.GetPinCount(fetched.ID); pc != 2 {
		t.Fatalf("pin count after second FetchPage = %d, want 2", pc)
	}

	if err := bp.UnpinPage(pg.ID, false); err != nil {
		t.Fatalf("UnpinPage: %v", err)
	}
	if err := bp.UnpinPage(pg.ID, false); err != nil {
		t.Fatalf("UnpinPage: %v", err)
	}
	if pc, _ := bp.GetPinCount(pg.ID); pc != 0 {
		t.Fatalf("pin count after two unpins = %d, want 0", pc)
	}
}

func TestBufferPoolFlushAllPagesClearsDirtyBit(t *testing.T) {
	bp, fileID := newTestPool(t, 4)

	pg, err := bp.NewPage(fileID, types.PageTypeHeapData)
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	if err := bp.UnpinPage(pg.ID, true); err != nil {
		t.Fatalf("UnpinPage: %v", err)
	}

	if err := bp.FlushAllPages(); err != nil {
		t.Fatalf("FlushAllPages: %v", err)
	}

	got := bp.GetPage(pg.ID)
	if got == nil {
		t.Fatalf("page evicted unexpectedly")
	}
	if got.IsDirty {
		t.Fatalf("page still dirty after FlushAllPages")
	}
}
