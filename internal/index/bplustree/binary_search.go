package bplustree

// binarySearch returns the index of target in keys, or -1 if absent.
func binarySearch(keys [][]byte, target []byte, cmp Comparator) int {
	low, high := 0, len(keys)-1
	for low <= high {
		mid := low + (high-low)/2
		switch c := cmp(keys[mid], target); {
		case c == 0:
			return mid
		case c < 0:
			low = mid + 1
		default:
			high = mid - 1
		}
	}
	return -1
}

// lowerBound returns the first index i such that keys[i] >= target,
// or len(keys) if none. Used to descend internal nodes and to find a
// leaf's insertion point.
func lowerBound(keys [][]byte, target []byte, cmp Comparator) int {
	lo, hi := 0, len(keys)
	for lo < hi {
		mid := lo + (hi-lo)/2
		if cmp(keys[mid], target) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// insertAt inserts elem at index i, shifting the tail right.
func insertAt[T any](slice []T, i int, elem T) []T {
	var zero T
	slice = append(slice, zero)
	copy(slice[i+1:], slice[i:])
	slice[i] = elem
	return slice
}

// removeAt removes the element at index i.
func removeAt[T any](slice []T, i int) []T {
	return append(slice[:i], slice[i+1:]...)
}
