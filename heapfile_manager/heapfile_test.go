package heapfile

import (
	"fmt"
	"path/filepath"
	"testing"

	bufferpool "relkernel/internal/buffer"
	diskmanager "relkernel/internal/disk"
	"relkernel/types"
)

func newTestHeapFileManager(t *testing.T, poolCapacity int) (*HeapFileManager, uint32) {
	t.Helper()
	dm := diskmanager.NewDiskManager()
	path := filepath.Join(t.TempDir(), "table.heap")
	fileID, err := dm.OpenFileWithID(path, 1)
	if err != nil {
		t.Fatalf("OpenFileWithID: %v", err)
	}
	bp := bufferpool.NewBufferPool(poolCapacity, dm)
	return NewHeapFileManager(bp, dm), fileID
}

func TestInsertAndGetRowRoundTrip(t *testing.T) {
	hfm, fileID := newTestHeapFileManager(t, 16)
	if _, err := hfm.CreateHeapfile(fileID, true); err != nil {
		t.Fatalf("CreateHeapfile: %v", err)
	}

	rows := [][]byte{
		[]byte("Alice|20|A"),
		[]byte("Bob|21|B"),
		[]byte("Charlie|22|A"),
	}

	var pointers []*types.RowPointer
	for _, row := range rows {
		ptr, err := hfm.InsertRow(fileID, row, 1)
		if err != nil {
			t.Fatalf("InsertRow: %v", err)
		}
		pointers = append(pointers, ptr)
	}

	for i, ptr := range pointers {
		got, err := hfm.GetRow(ptr)
		if err != nil {
			t.Fatalf("GetRow: %v", err)
		}
		if string(got) != string(rows[i]) {
			t.Fatalf("GetRow(%d) = %q, want %q", i, got, rows[i])
		}
	}
}

func TestInsertAcrossMultiplePages(t *testing.T) {
	hfm, fileID := newTestHeapFileManager(t, 16)
	if _, err := hfm.CreateHeapfile(fileID, true); err != nil {
		t.Fatalf("CreateHeapfile: %v", err)
	}

	pageNums := make(map[uint32]int)
	const n = 300
	for i := 0; i < n; i++ {
		row := []byte(fmt.Sprintf("Student_%03d|Age_%d|Grade_%c", i, 20+i%5, 'A'+byte(i%3)))
		ptr, err := hfm.InsertRow(fileID, row, uint64(i))
		if err != nil {
			t.Fatalf("InsertRow(%d): %v", i, err)
		}
		pageNums[ptr.PageNumber]++
	}

	if len(pageNums) < 2 {
		t.Fatalf("expected rows to spread across multiple pages, got %d page(s)", len(pageNums))
	}
}

func TestDeleteRowTombstones(t *testing.T) {
	hfm, fileID := newTestHeapFileManager(t, 16)
	if _, err := hfm.CreateHeapfile(fileID, true); err != nil {
		t.Fatalf("CreateHeapfile: %v", err)
	}

	ptr, err := hfm.InsertRow(fileID, []byte("row-to-delete"), 1)
	if err != nil {
		t.Fatalf("InsertRow: %v", err)
	}

	if err := hfm.DeleteRow(ptr, 2); err != nil {
		t.Fatalf("DeleteRow: %v", err)
	}

	if _, err := hfm.GetRow(ptr); err == nil {
		t.Fatalf("GetRow after DeleteRow succeeded, want error")
	}
}

func TestUpdateRowInPlaceAndOverflow(t *testing.T) {
	hfm, fileID := newTestHeapFileManager(t, 16)
	if _, err := hfm.CreateHeapfile(fileID, true); err != nil {
		t.Fatalf("CreateHeapfile: %v", err)
	}

	ptr, err := hfm.InsertRow(fileID, []byte("short"), 1)
	if err != nil {
		t.Fatalf("InsertRow: %v", err)
	}

	if err := hfm.UpdateRow(ptr, []byte("also"), 2); err != nil {
		t.Fatalf("UpdateRow (in place): %v", err)
	}
	got, err := hfm.GetRow(ptr)
	if err != nil {
		t.Fatalf("GetRow: %v", err)
	}
	if string(got) != "also" {
		t.Fatalf("GetRow after in-place update = %q, want %q", got, "also")
	}

	longer := []byte("this update no longer fits the original slot's length")
	if err := hfm.UpdateRow(ptr, longer, 3); err != nil {
		t.Fatalf("UpdateRow (overflow): %v", err)
	}
	got, err = hfm.GetRow(ptr)
	if err != nil {
		t.Fatalf("GetRow after overflow update: %v", err)
	}
	if string(got) != string(longer) {
		t.Fatalf("GetRow after overflow update = %q, want %q", got, longer)
	}
}

func TestAllRowPointersFullScan(t *testing.T) {
	hfm, fileID := newTestHeapFileManager(t, 16)
	if _, err := hfm.CreateHeapfile(fileID, true); err != nil {
		t.Fatalf("CreateHeapfile: %v", err)
	}

	const n = 20
	for i := 0; i < n; i++ {
		if _, err := hfm.InsertRow(fileID, []byte(fmt.Sprintf("row-%d", i)), uint64(i)); err != nil {
			t.Fatalf("InsertRow(%d): %v", i, err)
		}
	}

	pointers, err := hfm.AllRowPointers(fileID)
	if err != nil {
		t.Fatalf("AllRowPointers: %v", err)
	}
	if len(pointers) != n {
		t.Fatalf("AllRowPointers returned %d pointers, want %d", len(pointers), n)
	}
}

func TestCheckPageLSNIdempotency(t *testing.T) {
	hfm, fileID := newTestHeapFileManager(t, 16)
	if _, err := hfm.CreateHeapfile(fileID, true); err != nil {
		t.Fatalf("CreateHeapfile: %v", err)
	}

	ptr, err := hfm.InsertRow(fileID, []byte("row"), 42)
	if err != nil {
		t.Fatalf("InsertRow: %v", err)
	}

	applied, err := hfm.CheckPageLSN(fileID, ptr.PageNumber, 42)
	if err != nil {
		t.Fatalf("CheckPageLSN: %v", err)
	}
	if !applied {
		t.Fatalf("CheckPageLSN(42) = false, want true after an insert at LSN 42")
	}

	applied, err = hfm.CheckPageLSN(fileID, ptr.PageNumber, 43)
	if err != nil {
		t.Fatalf("CheckPageLSN: %v", err)
	}
	if applied {
		t.Fatalf("CheckPageLSN(43) = true, want false — that LSN hasn't been applied yet")
	}
}

func TestRIDScanFeedsIndexBackfill(t *testing.T) {
	hfm, fileID := newTestHeapFileManager(t, 16)
	if _, err := hfm.CreateHeapfile(fileID, true); err != nil {
		t.Fatalf("CreateHeapfile: %v", err)
	}

	rows := []string{"aaa|1", "bbb|2", "ccc|3"}
	for _, row := range rows {
		if _, err := hfm.InsertRow(fileID, []byte(row), 1); err != nil {
			t.Fatalf("InsertRow: %v", err)
		}
	}

	hf, err := hfm.GetHeapFileByID(fileID)
	if err != nil {
		t.Fatalf("GetHeapFileByID: %v", err)
	}

	keyOf := func(row []byte) []byte { return row[:3] }
	next := hf.RIDScan(keyOf)

	seen := 0
	for {
		key, rid, ok, err := next()
		if err != nil {
			t.Fatalf("RIDScan: %v", err)
		}
		if !ok {
			break
		}
		if len(key) != 3 {
			t.Fatalf("RIDScan key = %q, want 3 bytes", key)
		}
		if rid.PageID == 0 && rid.SlotIndex == 0 && seen > 0 {
			t.Fatalf("RIDScan produced a zero-value RID past the first row")
		}
		seen++
	}
	if seen != len(rows) {
		t.Fatalf("RIDScan visited %d rows, want %d", seen, len(rows))
	}
}
