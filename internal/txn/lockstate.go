package txn

import "relkernel/types"

/*
Accessors consulted by the lock manager. Mirrors BusTub's Transaction
interface (GetIsolationLevel, GetSharedLockSet, GetExclusiveLockSet,
GetState/SetState) closely enough that lock_manager.cpp's control flow
ports over method-for-method, just translated into Go's error-return style
instead of exceptions.
*/

func (txn *Transaction) LockState() LockState {
	txn.mu.Lock()
	defer txn.mu.Unlock()
	return txn.lockState
}

func (txn *Transaction) SetLockState(s LockState) {
	txn.mu.Lock()
	defer txn.mu.Unlock()
	txn.lockState = s
}

func (txn *Transaction) IsolationLevel() IsolationLevel {
	txn.mu.Lock()
	defer txn.mu.Unlock()
	return txn.isolationLevel
}

func (txn *Transaction) SetIsolationLevel(level IsolationLevel) {
	txn.mu.Lock()
	defer txn.mu.Unlock()
	txn.isolationLevel = level
}

// SharedLockSet and ExclusiveLockSet lazily initialize their backing maps
// so the zero-value Transaction (as returned by TxnManager.Begin) is
// immediately usable by the lock manager.

func (txn *Transaction) SharedLockSet() map[types.RID]struct{} {
	txn.mu.Lock()
	defer txn.mu.Unlock()
	if txn.sharedLockSet == nil {
		txn.sharedLockSet = make(map[types.RID]struct{})
	}
	return txn.sharedLockSet
}

func (txn *Transaction) ExclusiveLockSet() map[types.RID]struct{} {
	txn.mu.Lock()
	defer txn.mu.Unlock()
	if txn.exclusiveLockSet == nil {
		txn.exclusiveLockSet = make(map[types.RID]struct{})
	}
	return txn.exclusiveLockSet
}

func (txn *Transaction) HasSharedLock(rid types.RID) bool {
	_, ok := txn.SharedLockSet()[rid]
	return ok
}

func (txn *Transaction) HasExclusiveLock(rid types.RID) bool {
	_, ok := txn.ExclusiveLockSet()[rid]
	return ok
}
