// Package lockmanager implements strict two-phase locking over RIDs with
// waits-for-graph deadlock detection, ported from BusTub's
// concurrency/lock_manager.{h,cpp}. One LockRequestQueue exists per RID
// that has ever been locked; transactions block on that queue's condition
// variable until the lock is granted or a background detector aborts them.
package lockmanager

import (
	"sync"
	"time"

	"relkernel/internal/logging"
	"relkernel/internal/txn"
	"relkernel/types"
)

// LockMode is the two modes this kernel grants: Shared (readers) and
// Exclusive (writers). There is no intention-lock hierarchy — RID is the
// only granularity locked.
type LockMode uint8

const (
	Shared LockMode = iota
	Exclusive
)

type lockRequest struct {
	txnID   uint64
	mode    LockMode
	granted bool
}

// lockRequestQueue is the per-RID wait queue. isWriting and readingCount
// mirror BusTub's is_writting_/reading_count_ fields exactly: they are the
// fast compatibility check consulted before a caller ever has to walk the
// full request list.
type lockRequestQueue struct {
	cond         *sync.Cond
	requestQueue []*lockRequest
	isWriting    bool
	readingCount int
}

// LockManager coordinates lock acquisition/release and runs a background
// cycle detector over the waits-for graph it derives from lockTable on
// every tick.
type LockManager struct {
	mu        sync.Mutex // guards lockTable and waitsFor; also lockRequestQueue.cond's Locker
	lockTable map[types.RID]*lockRequestQueue
	waitsFor  map[uint64][]uint64

	txnManager *txn.TxnManager
	logger     logging.Logger

	detectionInterval time.Duration
	stopCh            chan struct{}
	stopped           bool
	wg                sync.WaitGroup
}

// Edge is one entry of the waits-for graph, exposed for tests and
// diagnostics via GetEdgeList.
type Edge struct {
	From uint64
	To   uint64
}
