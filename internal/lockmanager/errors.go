package lockmanager

import "errors"

// Sentinel errors the caller must branch on, following the same
// errors.Is-comparable pattern the rest of this module uses for
// conditions that aren't really "something broke" but a caller-visible
// outcome of the protocol.
var (
	// ErrLockOnShrinking is returned when a transaction that has already
	// released a lock (entered the Shrinking phase) tries to acquire another.
	ErrLockOnShrinking = errors.New("lockmanager: cannot acquire a new lock while shrinking")

	// ErrLockSharedOnReadUncommitted is returned when a READ_UNCOMMITTED
	// transaction calls LockShared — it should never need to read-lock
	// anything, since it never blocks behind a writer.
	ErrLockSharedOnReadUncommitted = errors.New("lockmanager: read-uncommitted transactions may not take shared locks")

	// ErrUpgradeConflict is returned when another transaction already holds
	// (or is upgrading to) the exclusive lock on the same RID.
	ErrUpgradeConflict = errors.New("lockmanager: conflicting upgrade in progress")

	// ErrDeadlock is returned to a transaction the background cycle
	// detector picked as the victim while it was blocked waiting for a lock.
	ErrDeadlock = errors.New("lockmanager: aborted to break a deadlock")
)
