package heapfile

import (
	"fmt"

	bufferpool "relkernel/internal/buffer"
	diskmanager "relkernel/internal/disk"
)

// NewHeapFileManager creates a heap file manager backed by the given buffer
// pool. Every heap file it opens or creates shares that pool's frames with
// whatever else is using it (an index build, another table's scan), and
// its underlying files with diskManager, exactly like a B+tree opened over
// the same pool.
func NewHeapFileManager(bp *bufferpool.BufferPool, dm *diskmanager.DiskManager) *HeapFileManager {
	return &HeapFileManager{
		bufferPool: bp,
		diskMgr:    dm,
		files:      make(map[uint32]*HeapFile),
	}
}

// CreateHeapfile opens fileID as a heap file. isNewFile lays down a single
// empty page 0; otherwise the existing page count is recovered from the
// disk manager's file descriptor for fileID, exactly mirroring
// bplustree.OpenBPlusTree's isNewFile parameter.
func (hfm *HeapFileManager) CreateHeapfile(fileID uint32, isNewFile bool) (*HeapFile, error) {
	hfm.mu.Lock()
	defer hfm.mu.Unlock()

	if hf, exists := hfm.files[fileID]; exists {
		return hf, nil
	}

	hf := &HeapFile{
		fileID:     fileID,
		bufferPool: hfm.bufferPool,
		diskMgr:    hfm.diskMgr,
	}

	if isNewFile {
		pageNum, err := hf.allocatePage()
		if err != nil {
			return nil, fmt.Errorf("create heap file %d: %w", fileID, err)
		}
		if err := hf.initializePage(pageNum); err != nil {
			return nil, fmt.Errorf("create heap file %d: %w", fileID, err)
		}
		hf.numPages = pageNum + 1
	} else {
		fd, err := hfm.diskMgr.GetFileDescriptor(fileID)
		if err != nil {
			return nil, fmt.Errorf("create heap file %d: %w", fileID, err)
		}
		hf.numPages = uint32(fd.NextPageID)
	}

	hfm.files[fileID] = hf
	return hf, nil
}

// getHeapFile looks up an open heap file by its fileID.
func (hfm *HeapFileManager) getHeapFile(fileID uint32) (*HeapFile, bool) {
	hfm.mu.RLock()
	defer hfm.mu.RUnlock()
	hf, exists := hfm.files[fileID]
	return hf, exists
}

func (hfm *HeapFileManager) GetHeapFileByID(fileID uint32) (*HeapFile, error) {
	hf, exists := hfm.getHeapFile(fileID)
	if !exists {
		return nil, fmt.Errorf("heap file %d not found", fileID)
	}
	return hf, nil
}

// CloseAll drops every heap file's in-memory bookkeeping. It does not flush
// or close anything on disk — that's the buffer pool's and disk manager's
// job, shared with every other consumer of the same pool.
func (hfm *HeapFileManager) CloseAll() error {
	hfm.mu.Lock()
	defer hfm.mu.Unlock()

	hfm.files = make(map[uint32]*HeapFile)
	return nil
}
