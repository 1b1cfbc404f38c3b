package heapfile

import (
	"sync"

	bufferpool "relkernel/internal/buffer"
	diskmanager "relkernel/internal/disk"
)

// ############################################# ---- PAGE ----- #############################################
const (
	PageSize       = 4096 // 4KB page
	PageHeaderSize = 32   // 32 bytes
	SlotSize       = 4    // 4 bytes per slot entry (offset: 2B, length: 2B)
)

// PageHeader is the header for a single 4KB heap page.
type PageHeader struct {
	FileID         uint32 // fileID which heap file this page belongs to
	PageNo         uint32 // current page number inside the heap file
	FreePtr        uint16 // ptr to the next free location, where insertion can be done
	NumRows        uint16 // number of live (non-deleted) rows on the page
	NumRowsFree    uint16 // free bytes left on the page (calculateFreeSpace)
	IsPageFull     uint16 // is the page full
	SlotCount      uint16 // number of slots in the slot directory
	LastAppliedLSN uint64 // highest WAL LSN already applied to this page, for replay idempotency
}

// Slot represents an entry in the slot directory at the bottom of the page.
// Stored at the end of the page, grows backward.
type Slot struct {
	Offset uint16 // Offset from start of page to row data
	Length uint16 // Length of the row data
}

// HeapFile is a slotted-page heap file. Its pages are fetched and pinned
// through the shared buffer pool rather than a private file handle, so a
// heap scan and an index build over the same table draw from the same
// frame cache instead of each keeping its own.
//
// A heap page's global id is computed the same deterministic way the disk
// manager computes it for every other page: fileID<<32 | localPageNum. This
// lets HeapFile address its own pages without asking the buffer pool for
// anything beyond Fetch/New/Unpin.
type HeapFile struct {
	fileID     uint32
	bufferPool *bufferpool.BufferPool
	diskMgr    *diskmanager.DiskManager
	numPages   uint32
	mu         sync.RWMutex
}

// HeapFileManager owns every open HeapFile in a database, keyed by the
// catalog's heap file id.
type HeapFileManager struct {
	bufferPool *bufferpool.BufferPool
	diskMgr    *diskmanager.DiskManager
	files      map[uint32]*HeapFile
	mu         sync.RWMutex
}
