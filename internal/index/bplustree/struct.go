// Package bplustree implements a latch-crabbing, disk-backed B+tree index
// on top of the buffer pool, ported from BusTub's
// storage/index/b_plus_tree.{h,cpp}. Keys and values are opaque []byte —
// see comparators.go for the handful of concrete key encodings this kernel
// ships — so the tree itself never needs generics: it only ever compares
// and copies bytes, exactly as the teacher's own bplustree/struct.go does.
package bplustree

import (
	"errors"
	"sync"

	bufferpool "relkernel/internal/buffer"
	"relkernel/internal/logging"
)

type NodeType int

const (
	NodeInternal NodeType = iota
	NodeLeaf
)

const (
	// InvalidPageID is the sole iterator/child terminator, matching
	// BusTub's INVALID_PAGE_ID — never a mix of -1 and 0 conventions.
	InvalidPageID int64 = -1

	// DefaultLeafMaxSize and DefaultInternalMaxSize are what OpenBPlusTree
	// falls back to when a caller passes a non-positive size, mirroring
	// BusTub's own BPlusTree constructor defaults.
	DefaultLeafMaxSize     = 32
	DefaultInternalMaxSize = 32

	MaxKeyLen = 256  // in bytes
	MaxValLen = 4096 // in bytes (holds a types.RID-sized value comfortably)

	headerRecordName = "root"
)

var (
	ErrDuplicateKey = errors.New("bplustree: key already exists")
	ErrNotFound     = errors.New("bplustree: key not found")
)

// Node is the decoded, in-memory form of one B+tree page. It never carries
// its own latch — the latch is the underlying buffer-pool page's RWMutex,
// acquired by the caller before the node is decoded and held until the
// caller is done with it (see context.go).
type Node struct {
	pageID   int64
	nodeType NodeType
	keys     [][]byte
	children []int64  // internal nodes only, len(children) == len(keys)+1
	values   [][]byte // leaf nodes only, len(values) == len(keys)
	next     int64    // leaf nodes only, InvalidPageID if this is the last leaf
	parent   int64    // InvalidPageID for the root
	maxKeys  int      // the owning tree's leafMaxSize or internalMaxSize, stamped on decode/allocation
}

func (n *Node) isLeaf() bool { return n.nodeType == NodeLeaf }

// size returns how many keys this node currently holds — the quantity
// IsSafe and the split/merge thresholds all reason about.
func (n *Node) size() int { return len(n.keys) }

// maxSize is the split threshold, a per-tree constructor parameter rather
// than a package-wide constant — a leaf may hold at most maxKeys entries,
// an internal node at most maxKeys keys (maxKeys+1 children).
func (n *Node) maxSize() int { return n.maxKeys }

// minSize is the merge/redistribute threshold used by CoalesceOrRedistribute.
func (n *Node) minSize() int { return n.maxKeys / 2 }

// BPlusTree is one index: fileID identifies its own page-id space (page 0
// of that file is the header page holding the current root id).
type BPlusTree struct {
	mu sync.Mutex // serializes first-root creation in startNewTree; setRoot uses rootMu

	fileID     uint32
	bufferPool *bufferpool.BufferPool
	cmp        Comparator
	logger     logging.Logger

	leafMaxSize     int
	internalMaxSize int

	rootMu sync.RWMutex // guards reading/swapping the cached root page id
	root   int64
}

// Comparator orders two encoded keys the same way bytes.Compare does:
// negative if a < b, zero if equal, positive if a > b.
type Comparator func(a, b []byte) int
