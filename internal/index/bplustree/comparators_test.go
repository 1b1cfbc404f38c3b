package bplustree

import "testing"

func TestInt32ComparatorOrdersAroundSignBoundary(t *testing.T) {
	values := []int32{
		-2147483648, -2147483647, -1000, -1, 0, 1, 1000, 2147483646, 2147483647,
	}

	cmp := Int32Comparator()
	for i := 0; i < len(values); i++ {
		for j := 0; j < len(values); j++ {
			a, b := EncodeInt32(values[i]), EncodeInt32(values[j])
			got := cmp(a, b)
			want := 0
			switch {
			case values[i] < values[j]:
				want = -1
			case values[i] > values[j]:
				want = 1
			}
			if sign(got) != want {
				t.Fatalf("Int32Comparator(%d, %d) = %d, want sign %d", values[i], values[j], got, want)
			}
		}
	}
}

func TestInt32EncodeDecodeRoundTrip(t *testing.T) {
	values := []int32{-2147483648, -1, 0, 1, 2147483647}
	for _, v := range values {
		if got := DecodeInt32(EncodeInt32(v)); got != v {
			t.Fatalf("DecodeInt32(EncodeInt32(%d)) = %d", v, got)
		}
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}
