package types

import "fmt"

// RID identifies a single record slot: the page it lives on plus its slot
// index within that page's slot directory. It is the fixed-width value type
// stored in leaf entries of the B+tree index and the unit the lock manager
// latches — one lock per RID, regardless of what row or heap page backs it.
type RID struct {
	PageID    int64
	SlotIndex uint32
}

func (r RID) String() string {
	return fmt.Sprintf("%d:%d", r.PageID, r.SlotIndex)
}

// Encode packs the RID into a fixed 12-byte big-endian layout so it can be
// stored as a B+tree leaf value alongside variable-length keys.
func (r RID) Encode() [12]byte {
	var buf [12]byte
	putUint64(buf[0:8], uint64(r.PageID))
	putUint32(buf[8:12], r.SlotIndex)
	return buf
}

// DecodeRID is the inverse of Encode.
func DecodeRID(buf []byte) RID {
	return RID{
		PageID:    int64(getUint64(buf[0:8])),
		SlotIndex: getUint32(buf[8:12]),
	}
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (56 - 8*i))
	}
}

func putUint32(b []byte, v uint32) {
	for i := 0; i < 4; i++ {
		b[i] = byte(v >> (24 - 8*i))
	}
}

func getUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func getUint32(b []byte) uint32 {
	var v uint32
	for i := 0; i < 4; i++ {
		v = v<<8 | uint32(b[i])
	}
	return v
}
