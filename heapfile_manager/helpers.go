package heapfile

import (
	"relkernel/types"
)

// RIDScan returns a closure yielding one (key, RID) pair per occupied row,
// then ok=false once exhausted — the shape catalog.RowSourceFromRIDs
// expects to backfill a fresh index from a heap file, without this package
// having to import the catalog package to name that type.
//
// keyOf extracts the index key bytes from a row's raw bytes; how a row's
// columns are laid out is a catalog/schema concern, not this package's.
func (hf *HeapFile) RIDScan(keyOf func(row []byte) []byte) func() ([]byte, types.RID, bool, error) {
	hf.mu.RLock()
	pointers := hf.allRowPointers()
	hf.mu.RUnlock()

	i := 0
	return func() ([]byte, types.RID, bool, error) {
		if i >= len(pointers) {
			return nil, types.RID{}, false, nil
		}
		ptr := pointers[i]
		i++

		hf.mu.RLock()
		row, err := hf.getRow(ptr)
		hf.mu.RUnlock()
		if err != nil {
			return nil, types.RID{}, false, err
		}

		rid := types.RID{
			PageID:    hf.globalPageID(ptr.PageNumber),
			SlotIndex: uint32(ptr.SlotIndex),
		}
		return keyOf(row), rid, true, nil
	}
}
