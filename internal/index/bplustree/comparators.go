package bplustree

import (
	"bytes"
	"encoding/binary"
)

// The tree stores opaque []byte keys and defers ordering to an injected
// Comparator, the same simplification the teacher's own bplustree package
// makes instead of parameterizing the tree over a key type with Go
// generics: every instantiation below just picks a different encode +
// compare pair, and the crabbing/split/merge code never has to change.

// BytesComparator orders keys lexicographically — the natural choice for
// variable-length string or already-encoded composite keys.
func BytesComparator() Comparator {
	return bytes.Compare
}

// Int32Comparator orders keys encoded by EncodeInt32. It compares the
// sign-flipped bit patterns directly as unsigned integers rather than
// decoding back to int32 and subtracting — subtracting two int32 values
// near the type's extremes can overflow, and the sign flip only makes byte
// order match numeric order when compared unsigned.
func Int32Comparator() Comparator {
	return func(a, b []byte) int {
		ua := binary.BigEndian.Uint32(a)
		ub := binary.BigEndian.Uint32(b)
		switch {
		case ua < ub:
			return -1
		case ua > ub:
			return 1
		default:
			return 0
		}
	}
}

// EncodeInt32 encodes a signed 32-bit integer as a big-endian, sign-flipped
// key so lexicographic byte comparison matches numeric comparison.
func EncodeInt32(v int32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(v)^0x80000000)
	return buf
}

// DecodeInt32 is the inverse of EncodeInt32.
func DecodeInt32(buf []byte) int32 {
	return int32(binary.BigEndian.Uint32(buf) ^ 0x80000000)
}

// Int64Comparator orders keys encoded by EncodeInt64.
func Int64Comparator() Comparator {
	return func(a, b []byte) int {
		ua := binary.BigEndian.Uint64(a)
		ub := binary.BigEndian.Uint64(b)
		switch {
		case ua < ub:
			return -1
		case ua > ub:
			return 1
		default:
			return 0
		}
	}
}

// EncodeInt64 encodes a signed 64-bit integer the same sign-flipped way as EncodeInt32.
func EncodeInt64(v int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v)^0x8000000000000000)
	return buf
}

// DecodeInt64 is the inverse of EncodeInt64.
func DecodeInt64(buf []byte) int64 {
	return int64(binary.BigEndian.Uint64(buf) ^ 0x8000000000000000)
}

// StringComparator is an alias for BytesComparator kept for callers that
// index a plain string column and want the name to say so at the call site.
func StringComparator() Comparator {
	return bytes.Compare
}

// FixedWidthComparator orders fixed-width keys (e.g. a composite of several
// encoded columns already concatenated by the caller) lexicographically —
// the fifth named instantiation, covering composite/multi-column indexes
// without needing a bespoke comparator per schema.
func FixedWidthComparator(width int) Comparator {
	return func(a, b []byte) int {
		if len(a) != width || len(b) != width {
			panic("bplustree: fixed-width key of unexpected length")
		}
		return bytes.Compare(a, b)
	}
}
