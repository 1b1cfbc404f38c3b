package catalog

import (
	"fmt"

	bufferpool "relkernel/internal/buffer"
	"relkernel/internal/index/bplustree"
	"relkernel/types"
)

// RowSource yields the next (key, value) pair to backfill an index with,
// returning ok=false once exhausted. A heap file scan is the typical
// source; kept as a callback here so this package never has to import
// the heap file layer just to build an index.
type RowSource func() (key, value []byte, ok bool, err error)

// RIDRowSource is what a heap file scan naturally produces: an index key
// alongside the RID of the row it points to, rather than a raw byte value.
type RIDRowSource func() (key []byte, rid types.RID, ok bool, err error)

// RowSourceFromRIDs adapts a RIDRowSource into a RowSource by encoding each
// RID as its fixed 12-byte form, so CreateIndex's leaf values decode
// directly back into RIDs on lookup instead of needing a separate encoding
// convention per caller.
func RowSourceFromRIDs(next RIDRowSource) RowSource {
	return func() (key, value []byte, ok bool, err error) {
		k, rid, ok, err := next()
		if !ok || err != nil {
			return nil, nil, ok, err
		}
		enc := rid.Encode()
		return k, enc[:], true, nil
	}
}

// CreateIndex opens a fresh B+tree over tableName's index file and
// backfills it from rows, one Insert per pair. The table must already be
// registered (RegisterNewTable) so an index file id has been allocated.
// leafMaxSize/internalMaxSize are forwarded to OpenBPlusTree; 0 takes its
// defaults.
func (cm *CatalogManager) CreateIndex(tableName string, bp *bufferpool.BufferPool, cmp bplustree.Comparator, leafMaxSize, internalMaxSize int, rows RowSource) (*bplustree.BPlusTree, error) {
	fileID, err := cm.GetIndexFileID(tableName)
	if err != nil {
		return nil, fmt.Errorf("create index for %q: %w", tableName, err)
	}

	tree, err := bplustree.OpenBPlusTree(fileID, bp, cmp, true, leafMaxSize, internalMaxSize, cm.logger)
	if err != nil {
		return nil, fmt.Errorf("create index for %q: %w", tableName, err)
	}

	var inserted int
	for {
		key, value, ok, err := rows()
		if err != nil {
			return nil, fmt.Errorf("create index for %q: backfill: %w", tableName, err)
		}
		if !ok {
			break
		}
		if err := tree.Insert(key, value); err != nil {
			return nil, fmt.Errorf("create index for %q: backfill row %d: %w", tableName, inserted, err)
		}
		inserted++
	}

	cm.logger.Printf("[Catalog] built index for table=%s fileID=%d rows=%d", tableName, fileID, inserted)
	return tree, nil
}

// OpenIndex reattaches to tableName's existing index file, e.g. after a
// restart, without touching its contents.
func (cm *CatalogManager) OpenIndex(tableName string, bp *bufferpool.BufferPool, cmp bplustree.Comparator) (*bplustree.BPlusTree, error) {
	fileID, err := cm.GetIndexFileID(tableName)
	if err != nil {
		return nil, fmt.Errorf("open index for %q: %w", tableName, err)
	}
	return bplustree.OpenBPlusTree(fileID, bp, cmp, false, 0, 0, cm.logger)
}
