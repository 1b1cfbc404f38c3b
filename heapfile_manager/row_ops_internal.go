package heapfile

import (
	"fmt"

	"relkernel/types"
)

// this file contains internal functions, they do not contain locks.
// but it is to be ensured that the external functions for each should contain locks to avoid critical section

// insertRow inserts a row into the heap file and returns a RowPointer.
func (hf *HeapFile) insertRow(rowData []byte, opLSN uint64) (*types.RowPointer, error) {

	rowLen := uint16(len(rowData))
	maxRowSize := uint16(PageSize - PageHeaderSize - SlotSize)
	if rowLen > maxRowSize {
		return nil, fmt.Errorf("row too large: %d bytes (max: %d)", rowLen, maxRowSize)
	}

	pageNum, err := hf.findSuitablePage(rowLen)
	if err != nil {
		return nil, err
	}

	page, err := hf.readPage(pageNum)
	if err != nil {
		return nil, err
	}

	header := readPageHeader(page)

	requiredSpace := rowLen + SlotSize
	availableSpace := calculateFreeSpace(header)

	if availableSpace < requiredSpace {
		return hf.insertRow(rowData, opLSN)
	}

	rowOffset := header.FreePtr
	copy(page[rowOffset:rowOffset+rowLen], rowData)

	slotIndex := addSlot(page, rowOffset, rowLen)

	header = readPageHeader(page)

	header.FreePtr += rowLen
	header.NumRows++
	header.NumRowsFree = calculateFreeSpace(header)

	if header.NumRowsFree < (rowLen + SlotSize) {
		header.IsPageFull = 1
	}

	header.LastAppliedLSN = opLSN

	writePageHeader(page, header)

	if err := hf.writePage(pageNum, page); err != nil {
		return nil, err
	}

	return &types.RowPointer{
		FileID:     hf.fileID,
		PageNumber: pageNum,
		SlotIndex:  slotIndex,
	}, nil
}

func (hf *HeapFile) getRow(ptr *types.RowPointer) ([]byte, error) {

	page, err := hf.readPage(ptr.PageNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to read page %d: %w", ptr.PageNumber, err)
	}

	slot := readSlot(page, ptr.SlotIndex)
	if !slot.isOccupied() {
		return nil, fmt.Errorf("invalid slot at index %d", ptr.SlotIndex)
	}

	rowData := getRowData(page, slot)
	if rowData == nil {
		return nil, fmt.Errorf("failed to read row data from slot %d", ptr.SlotIndex)
	}

	return rowData, nil
}

// allRowPointers returns every occupied slot in the heap file, in page then
// slot order — a full table scan.
func (hf *HeapFile) allRowPointers() []*types.RowPointer {

	var result []*types.RowPointer

	for pageNum := uint32(0); pageNum < hf.numPages; pageNum++ {
		pageData, err := hf.readPage(pageNum)
		if err != nil {
			continue
		}

		header := readPageHeader(pageData)

		for slotIdx := uint16(0); slotIdx < header.SlotCount; slotIdx++ {
			slot := readSlot(pageData, slotIdx)
			if slot.isOccupied() {
				result = append(result, &types.RowPointer{
					FileID:     hf.fileID,
					PageNumber: pageNum,
					SlotIndex:  slotIdx,
				})
			}
		}
	}

	return result
}

// deleteRow tombstones a row by zeroing its slot (Offset=0, Length=0).
func (hf *HeapFile) deleteRow(ptr *types.RowPointer, opLSN uint64) error {

	page, err := hf.readPage(ptr.PageNumber)
	if err != nil {
		return fmt.Errorf("failed to read page %d: %w", ptr.PageNumber, err)
	}

	header := readPageHeader(page)
	if ptr.SlotIndex >= header.SlotCount {
		return fmt.Errorf("invalid slot index %d (slotCount=%d)", ptr.SlotIndex, header.SlotCount)
	}

	slot := readSlot(page, ptr.SlotIndex)
	if slot == nil {
		return fmt.Errorf("invalid slot at index %d", ptr.SlotIndex)
	}

	if !slot.isOccupied() {
		return nil
	}

	slot.Offset = 0
	slot.Length = 0
	writeSlot(page, ptr.SlotIndex, slot)

	if header.NumRows > 0 {
		header.NumRows--
	}
	header.IsPageFull = 0
	header.NumRowsFree = calculateFreeSpace(header)

	header.LastAppliedLSN = opLSN
	writePageHeader(page, header)

	if err := hf.writePage(ptr.PageNumber, page); err != nil {
		return fmt.Errorf("failed to write page %d: %w", ptr.PageNumber, err)
	}

	return nil
}

func (hf *HeapFile) updateRow(ptr *types.RowPointer, newRowData []byte, opLSN uint64) error {

	page, err := hf.readPage(ptr.PageNumber)

	if err != nil {
		return fmt.Errorf("failed to read page %d: %w", ptr.PageNumber, err)
	}

	header := readPageHeader(page)
	if ptr.SlotIndex >= header.SlotCount {
		return fmt.Errorf("invalid slot index %d (slotCount=%d)", ptr.SlotIndex, header.SlotCount)
	}

	slot := readSlot(page, ptr.SlotIndex)
	if !slot.isOccupied() {
		return fmt.Errorf("slot %d is not occupied, nothing to update", ptr.SlotIndex)
	}

	newRowLen := uint16(len(newRowData))

	if newRowLen > slot.Length {
		// If new data is larger, we need to delete and re-insert

		if err := hf.deleteRow(ptr, opLSN); err != nil {
			return fmt.Errorf("failed to delete old row for update: %w", err)
		}

		newRP, err := hf.insertRow(newRowData, opLSN)
		if err != nil {
			return fmt.Errorf("failed to insert updated row: %w", err)
		}

		*ptr = *newRP
		return nil
	}

	// New data fits in existing slot (in-place update)
	copy(page[slot.Offset:slot.Offset+newRowLen], newRowData)

	if newRowLen != slot.Length {
		slot.Length = newRowLen
		writeSlot(page, ptr.SlotIndex, slot)

		header.NumRowsFree = calculateFreeSpace(header)
	}

	header.LastAppliedLSN = opLSN
	writePageHeader(page, header)

	if err := hf.writePage(ptr.PageNumber, page); err != nil {
		return fmt.Errorf("failed to write page %d: %w", ptr.PageNumber, err)
	}

	return nil
}

// checkPageLSN checks if an operation has already been applied to a page,
// so WAL replay can skip an operation it already durably performed.
func (hf *HeapFile) checkPageLSN(pageNum uint32, opLSN uint64) (bool, error) {
	if pageNum >= hf.numPages {
		// Page doesn't exist = operation not applied yet
		return false, nil
	}

	page, err := hf.readPage(pageNum)
	if err != nil {
		return false, err
	}

	header := readPageHeader(page)

	return header.LastAppliedLSN >= opLSN, nil
}
