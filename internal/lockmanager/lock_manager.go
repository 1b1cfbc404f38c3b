package lockmanager

import (
	"fmt"
	"sync"
	"time"

	"relkernel/internal/logging"
	"relkernel/internal/txn"
	"relkernel/types"
)

// NewLockManager starts a LockManager whose background cycle detector runs
// every detectionInterval. Call Close to stop it.
func NewLockManager(txnManager *txn.TxnManager, detectionInterval time.Duration, logger logging.Logger) *LockManager {
	if logger == nil {
		logger = logging.NewDefault()
	}
	lm := &LockManager{
		lockTable:         make(map[types.RID]*lockRequestQueue),
		waitsFor:          make(map[uint64][]uint64),
		txnManager:        txnManager,
		logger:            logger,
		detectionInterval: detectionInterval,
		stopCh:            make(chan struct{}),
	}
	lm.wg.Add(1)
	go lm.runCycleDetection()
	return lm
}

// Close stops the background cycle detector. Safe to call once.
func (lm *LockManager) Close() {
	lm.mu.Lock()
	if lm.stopped {
		lm.mu.Unlock()
		return
	}
	lm.stopped = true
	lm.mu.Unlock()

	close(lm.stopCh)
	lm.wg.Wait()
}

// prepare validates the shrinking-phase invariant and lazily creates the
// RID's queue. Caller holds lm.mu.
func (lm *LockManager) prepare(t *txn.Transaction, rid types.RID) error {
	if t.LockState() == txn.Shrinking {
		t.SetLockState(txn.LockAborted)
		return fmt.Errorf("txn %d, rid %s: %w", t.ID, rid, ErrLockOnShrinking)
	}
	if _, ok := lm.lockTable[rid]; !ok {
		lm.lockTable[rid] = &lockRequestQueue{cond: sync.NewCond(&lm.mu)}
	}
	return nil
}

// LockShared acquires a shared (read) lock on rid for t, blocking until it
// is compatible with the current holder or the transaction is aborted by
// the deadlock detector.
func (lm *LockManager) LockShared(t *txn.Transaction, rid types.RID) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if t.IsolationLevel() == txn.ReadUncommitted {
		t.SetLockState(txn.LockAborted)
		return fmt.Errorf("txn %d: %w", t.ID, ErrLockSharedOnReadUncommitted)
	}

	if err := lm.prepare(t, rid); err != nil {
		return err
	}

	q := lm.lockTable[rid]
	req := &lockRequest{txnID: t.ID, mode: Shared}
	q.requestQueue = append(q.requestQueue, req)

	for q.isWriting && t.LockState() != txn.LockAborted {
		q.cond.Wait()
	}

	if t.LockState() == txn.LockAborted {
		return fmt.Errorf("txn %d, rid %s: %w", t.ID, rid, ErrDeadlock)
	}

	q.readingCount++
	req.granted = true
	t.SharedLockSet()[rid] = struct{}{}
	lm.logger.Printf("[LockMgr] SHARED granted txn=%d rid=%s", t.ID, rid)
	return nil
}

// LockExclusive acquires an exclusive (write) lock on rid for t.
func (lm *LockManager) LockExclusive(t *txn.Transaction, rid types.RID) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if err := lm.prepare(t, rid); err != nil {
		return err
	}

	q := lm.lockTable[rid]
	req := &lockRequest{txnID: t.ID, mode: Exclusive}
	q.requestQueue = append(q.requestQueue, req)

	for (q.isWriting || q.readingCount > 0) && t.LockState() != txn.LockAborted {
		q.cond.Wait()
	}

	if t.LockState() == txn.LockAborted {
		return fmt.Errorf("txn %d, rid %s: %w", t.ID, rid, ErrDeadlock)
	}

	q.isWriting = true
	req.granted = true
	t.ExclusiveLockSet()[rid] = struct{}{}
	lm.logger.Printf("[LockMgr] EXCLUSIVE granted txn=%d rid=%s", t.ID, rid)
	return nil
}

// LockUpgrade converts t's shared lock on rid into an exclusive lock. Only
// one transaction may be mid-upgrade on a given RID at a time; a second
// upgrader is rejected immediately rather than queued, since two
// simultaneous upgrades can never both succeed.
func (lm *LockManager) LockUpgrade(t *txn.Transaction, rid types.RID) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	q, ok := lm.lockTable[rid]
	if !ok || q.isWriting {
		t.SetLockState(txn.LockAborted)
		return fmt.Errorf("txn %d, rid %s: %w", t.ID, rid, ErrUpgradeConflict)
	}

	if err := lm.prepare(t, rid); err != nil {
		return err
	}

	delete(t.SharedLockSet(), rid)
	q.readingCount--

	// Remove this transaction's shared-lock request in place — mutating the
	// live queue, not a copy of it, so the removal is actually visible to
	// every other goroutine still holding a pointer to q.
	filtered := q.requestQueue[:0]
	for _, r := range q.requestQueue {
		if r.txnID != t.ID {
			filtered = append(filtered, r)
		}
	}
	q.requestQueue = filtered

	req := &lockRequest{txnID: t.ID, mode: Exclusive}
	q.requestQueue = append(q.requestQueue, req)

	for q.readingCount > 0 && t.LockState() != txn.LockAborted {
		q.cond.Wait()
	}

	if t.LockState() == txn.LockAborted {
		return fmt.Errorf("txn %d, rid %s: %w", t.ID, rid, ErrDeadlock)
	}

	q.isWriting = true
	req.granted = true
	t.ExclusiveLockSet()[rid] = struct{}{}
	lm.logger.Printf("[LockMgr] UPGRADE granted txn=%d rid=%s", t.ID, rid)
	return nil
}

// Unlock releases whichever lock t holds on rid and, under strict
// two-phase locking, moves a Growing transaction into Shrinking.
func (lm *LockManager) Unlock(t *txn.Transaction, rid types.RID) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	q, ok := lm.lockTable[rid]
	if !ok {
		return nil
	}

	if _, held := t.SharedLockSet()[rid]; held {
		delete(t.SharedLockSet(), rid)
		q.readingCount--
	}
	if _, held := t.ExclusiveLockSet()[rid]; held {
		delete(t.ExclusiveLockSet(), rid)
		q.isWriting = false
	}

	filtered := q.requestQueue[:0]
	for _, r := range q.requestQueue {
		if r.txnID != t.ID {
			filtered = append(filtered, r)
		}
	}
	q.requestQueue = filtered

	q.cond.Broadcast()

	if t.LockState() == txn.Growing {
		t.SetLockState(txn.Shrinking)
	}

	lm.logger.Printf("[LockMgr] UNLOCK txn=%d rid=%s", t.ID, rid)
	return nil
}
