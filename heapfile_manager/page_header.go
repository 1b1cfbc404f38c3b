package heapfile

import (
	"encoding/binary"
)

// writePageHeader serializes the page header to the first 32 bytes of the page.
// Byte 8 is skipped: the buffer pool's disk manager stamps its own page-type
// byte there on every write (see internal/disk's WritePage), so the header
// layout leaves it alone the same way the B+tree's node codec does.
func writePageHeader(page []byte, header *PageHeader) {
	binary.LittleEndian.PutUint32(page[0:4], header.FileID)
	binary.LittleEndian.PutUint32(page[4:8], header.PageNo)
	binary.LittleEndian.PutUint16(page[9:11], header.FreePtr)
	binary.LittleEndian.PutUint16(page[11:13], header.NumRows)
	binary.LittleEndian.PutUint16(page[13:15], header.NumRowsFree)
	binary.LittleEndian.PutUint16(page[15:17], header.IsPageFull)
	binary.LittleEndian.PutUint16(page[17:19], header.SlotCount)
	binary.LittleEndian.PutUint64(page[19:27], header.LastAppliedLSN)
	// bytes 27-31 reserved
}

// readPageHeader deserializes the page header from the first 32 bytes of the page.
func readPageHeader(page []byte) *PageHeader {
	return &PageHeader{
		FileID:         binary.LittleEndian.Uint32(page[0:4]),
		PageNo:         binary.LittleEndian.Uint32(page[4:8]),
		FreePtr:        binary.LittleEndian.Uint16(page[9:11]),
		NumRows:        binary.LittleEndian.Uint16(page[11:13]),
		NumRowsFree:    binary.LittleEndian.Uint16(page[13:15]),
		IsPageFull:     binary.LittleEndian.Uint16(page[15:17]),
		SlotCount:      binary.LittleEndian.Uint16(page[17:19]),
		LastAppliedLSN: binary.LittleEndian.Uint64(page[19:27]),
	}
}
