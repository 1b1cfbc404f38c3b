package catalog

import (
	"relkernel/internal/logging"
	"relkernel/types"

	"github.com/dgraph-io/ristretto/v2"
)

type CatalogManager struct {
	dbRoot        string
	currDb        string
	TableToFileId map[string]TableFileMapping
	nextFileID    uint32
	tableSchemas  map[string]types.TableSchema

	// schemaCache fronts the disk-JSON schema lookup path in
	// GetTableSchema. It's an accelerator only — tableSchemas and the
	// files under tables/ remain the source of truth, so a cache miss or
	// eviction never loses data, only a lookup that reloads from disk.
	schemaCache *ristretto.Cache[string, types.TableSchema]
	logger      logging.Logger
}

type TableFileMapping struct {
	HeapFileID  uint32 `json:"heap_file_id"`
	IndexFileID uint32 `json:"index_file_id"`
}
