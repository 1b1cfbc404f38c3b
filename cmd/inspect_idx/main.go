// inspect_idx dumps an on-disk B+tree index in key order.
// Usage: go run ./cmd/inspect_idx <path-to-.idx>
package main

import (
	"fmt"
	"os"

	bufferpool "relkernel/internal/buffer"
	diskmanager "relkernel/internal/disk"
	"relkernel/internal/index/bplustree"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <index.idx>\n", os.Args[0])
		os.Exit(1)
	}
	path := os.Args[1]

	dm := diskmanager.NewDiskManager()
	fileID, err := dm.OpenFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", path, err)
		os.Exit(1)
	}
	fd, err := dm.GetFileDescriptor(fileID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", path, err)
		os.Exit(1)
	}
	for p := int64(0); p < fd.NextPageID; p++ {
		if err := dm.RegisterPage(fileID, p); err != nil {
			fmt.Fprintf(os.Stderr, "register page %d: %v\n", p, err)
			os.Exit(1)
		}
	}

	bp := bufferpool.NewBufferPool(16, dm)
	tree, err := bplustree.OpenBPlusTree(fileID, bp, bplustree.Int64Comparator(), false, 0, 0, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open bplustree: %v\n", err)
		os.Exit(1)
	}

	it := tree.Begin()
	defer it.Close()

	count := 0
	for !it.IsEnd() {
		key := bplustree.DecodeInt64(it.Key())
		fmt.Printf("%d -> %s\n", key, it.Value())
		count++
		it.Next()
	}
	if err := it.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "iterate: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%d entries\n", count)
}
