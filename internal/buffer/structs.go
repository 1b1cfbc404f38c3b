package bufferpool

import (
	"sync"

	diskmanager "relkernel/internal/disk"
	"relkernel/internal/logging"
	"relkernel/internal/page"
	"relkernel/internal/replacer"
)

// BufferPool is a fixed-size pool of page frames, each either free, holding
// a pinned page, or holding an unpinned page the replacer may evict at any
// time. It sits between callers (the B+tree, the heap file layer) and the
// DiskManager, translating pageID lookups into frame accesses and hiding
// eviction and dirty-page flushing behind FetchPage/UnpinPage/NewPage.
type BufferPool struct {
	mu sync.Mutex

	frames   []*page.Page  // frameID -> resident page, nil if the frame is free
	pageTbl  map[int64]int // pageID -> frameID
	freeList []int         // frameIDs not currently holding a page

	capacity    int
	diskManager *diskmanager.DiskManager
	replacer    *replacer.LRUReplacer
	walManager  WALFlushedLSNGetter
	logger      logging.Logger
}

// BufferPoolStats reports point-in-time occupancy, used by diagnostics and
// tests asserting on pool pressure.
type BufferPoolStats struct {
	TotalPages  int
	PinnedPages int
	DirtyPages  int
	Capacity    int
}

// WALFlushedLSNGetter is a small interface so the buffer pool doesn't need
// to import the whole log manager — it only ever needs to know how far the
// log has been durably flushed before it is allowed to write a dirty page
// back to disk (the WAL "flush before page" rule). The log manager itself
// remains an opaque collaborator reached only through this interface.
type WALFlushedLSNGetter interface {
	GetFlushedLSN() uint64
}
