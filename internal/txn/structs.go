package txn

import (
	"sync"

	"relkernel/types"
)

// TxnState tracks the WAL-facing lifecycle used for rollback bookkeeping:
// a transaction is active until it is durably committed or aborted.
type TxnState uint8

const (
	TxnActive TxnState = iota
	TxnCommitted
	TxnAborted
)

// LockState is the two-phase-locking state the lock manager reads and
// writes. It is tracked separately from TxnState: TxnState answers "did
// this transaction's writes make it to the log", LockState answers "is
// this transaction still allowed to acquire new locks". A transaction
// enters Shrinking the moment it releases its first lock and can never
// acquire another one afterwards (strict two-phase locking).
type LockState uint8

const (
	Growing LockState = iota
	Shrinking
	LockCommitted
	LockAborted
)

// IsolationLevel controls which lock modes LockManager will grant.
// ReadUncommitted transactions never take shared locks (and can't call
// LockShared at all). LockManager treats ReadCommitted and RepeatableRead
// alike; when a transaction releases its locks is up to the caller's
// Unlock calls, and nothing in LockManager releases a lock early.
type IsolationLevel uint8

const (
	ReadUncommitted IsolationLevel = iota
	ReadCommitted
	RepeatableRead
)

type Transaction struct {
	ID    uint64
	State TxnState

	// Two-phase-locking bookkeeping consulted and mutated by LockManager.
	mu               sync.Mutex
	lockState        LockState
	isolationLevel   IsolationLevel
	sharedLockSet    map[types.RID]struct{}
	exclusiveLockSet map[types.RID]struct{}
}

type TxnManager struct {
	nextID     uint64
	activeTxns map[uint64]*Transaction // all currently active transactions
	mu         sync.RWMutex
}
