// seed builds a small on-disk B+tree index under databases/demo,
// exercising the buffer pool and index packages the same way a real
// caller would: open a file, create a fresh index over it, insert rows,
// flush.
//
// Run: go run ./cmd/seed
// Then inspect: go run ./cmd/inspect_idx databases/demo/students.idx
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	bufferpool "relkernel/internal/buffer"
	diskmanager "relkernel/internal/disk"
	"relkernel/internal/index/bplustree"
)

const (
	baseDir   = "databases/demo"
	indexFile = "students.idx"
)

var students = []struct {
	id   int64
	name string
}{
	{1, "Alice"},
	{2, "Bob"},
	{3, "Carol"},
	{4, "Dave"},
}

func main() {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		log.Fatalf("mkdir: %v", err)
	}

	dm := diskmanager.NewDiskManager()
	path := filepath.Join(baseDir, indexFile)
	fileID, err := dm.OpenFile(path)
	if err != nil {
		log.Fatalf("open index file: %v", err)
	}

	bp := bufferpool.NewBufferPool(16, dm)

	tree, err := bplustree.OpenBPlusTree(fileID, bp, bplustree.Int64Comparator(), true, 0, 0, nil)
	if err != nil {
		log.Fatalf("open bplustree: %v", err)
	}

	for _, s := range students {
		if err := tree.Insert(bplustree.EncodeInt64(s.id), []byte(s.name)); err != nil {
			log.Fatalf("insert %d: %v", s.id, err)
		}
	}

	if err := bp.FlushAllPages(); err != nil {
		log.Fatalf("flush: %v", err)
	}
	if err := dm.Sync(); err != nil {
		log.Fatalf("sync: %v", err)
	}

	fmt.Printf("Seeded %d rows into %s\n", len(students), path)
	fmt.Println("Inspect with: go run ./cmd/inspect_idx", path)
}
