package heapfile

// initializePage lays out a fresh empty page: header plus an empty slot
// directory. localPageNum must already have been allocated (via
// allocatePage) so the page exists in the buffer pool to write into.
func (hf *HeapFile) initializePage(localPageNum uint32) error {
	page := make([]byte, PageSize)

	header := PageHeader{
		FileID:      hf.fileID,
		PageNo:      localPageNum,
		FreePtr:     PageHeaderSize,
		NumRows:     0,
		NumRowsFree: PageSize - PageHeaderSize,
		IsPageFull:  0,
		SlotCount:   0,
	}
	writePageHeader(page, &header)

	return hf.writePage(localPageNum, page)
}

// findSuitablePage scans this heap file's existing pages for one with room
// for a row of requiredSpace bytes plus its slot entry, allocating and
// initializing a new page if none has enough space.
func (hf *HeapFile) findSuitablePage(requiredSpace uint16) (uint32, error) {
	for pageNum := uint32(0); pageNum < hf.numPages; pageNum++ {
		page, err := hf.readPage(pageNum)
		if err != nil {
			continue
		}

		header := readPageHeader(page)
		if header.IsPageFull != 0 {
			continue
		}

		availableSpace := calculateFreeSpace(header)
		requiredWithSlot := requiredSpace + SlotSize
		if availableSpace >= requiredWithSlot {
			return pageNum, nil
		}
	}

	newPageNum, err := hf.allocatePage()
	if err != nil {
		return 0, err
	}
	if err := hf.initializePage(newPageNum); err != nil {
		return 0, err
	}
	hf.numPages = newPageNum + 1
	return newPageNum, nil
}
