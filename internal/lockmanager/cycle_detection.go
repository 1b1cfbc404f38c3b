package lockmanager

import (
	"sort"
	"time"

	"relkernel/internal/txn"
)

// addEdge records that t1 waits for t2, ignoring duplicates. Caller holds lm.mu.
func (lm *LockManager) addEdge(t1, t2 uint64) {
	for _, existing := range lm.waitsFor[t1] {
		if existing == t2 {
			return
		}
	}
	lm.waitsFor[t1] = append(lm.waitsFor[t1], t2)
}

// removeEdge deletes the t1->t2 edge if present. Caller holds lm.mu.
func (lm *LockManager) removeEdge(t1, t2 uint64) {
	edges := lm.waitsFor[t1]
	for i, to := range edges {
		if to == t2 {
			lm.waitsFor[t1] = append(edges[:i], edges[i+1:]...)
			return
		}
	}
}

// GetEdgeList returns a snapshot of the current waits-for graph.
func (lm *LockManager) GetEdgeList() []Edge {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	edges := make([]Edge, 0)
	for from, tos := range lm.waitsFor {
		for _, to := range tos {
			edges = append(edges, Edge{From: from, To: to})
		}
	}
	return edges
}

// hasCycle walks the waits-for graph depth-first from every node in
// deterministic (sorted) order and returns the transaction id to abort:
// the youngest (highest) transaction id found along the closing cycle,
// exactly as BusTub's dfs does when it keeps taking the max after the
// first repeated node is seen. Caller holds lm.mu.
func (lm *LockManager) hasCycle() (uint64, bool) {
	visited := make(map[uint64]bool)
	for _, start := range sortedKeys(lm.waitsFor) {
		if visited[start] {
			continue
		}
		trail := make([]uint64, 0, len(lm.waitsFor))
		if victim, ok := lm.dfs(start, &trail, visited); ok {
			return victim, true
		}
	}
	return 0, false
}

func (lm *LockManager) dfs(current uint64, trail *[]uint64, visited map[uint64]bool) (uint64, bool) {
	*trail = append(*trail, current)
	visited[current] = true

	children := append([]uint64(nil), lm.waitsFor[current]...)
	sort.Slice(children, func(i, j int) bool { return children[i] < children[j] })

	for _, child := range children {
		var victim uint64
		found := false
		for _, node := range *trail {
			if child == node {
				victim = node
				found = true
			} else if found && node > victim {
				victim = node
			}
		}
		if found {
			return victim, true
		}
		if !visited[child] {
			if v, ok := lm.dfs(child, trail, visited); ok {
				return v, true
			}
		}
	}

	*trail = (*trail)[:len(*trail)-1]
	return 0, false
}

func sortedKeys(m map[uint64][]uint64) []uint64 {
	keys := make([]uint64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// runCycleDetection rebuilds the waits-for graph from lockTable on every
// tick and aborts transactions until no cycle remains, mirroring BusTub's
// RunCycleDetection loop.
func (lm *LockManager) runCycleDetection() {
	defer lm.wg.Done()

	ticker := time.NewTicker(lm.detectionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-lm.stopCh:
			return
		case <-ticker.C:
			lm.mu.Lock()
			lm.detectAndResolveCycles()
			lm.mu.Unlock()
		}
	}
}

// detectAndResolveCycles is the body of one detection tick. Caller holds lm.mu.
//
// BusTub's RunCycleDetection rebuilds the whole waits-for graph first and
// only then runs DFS. This loop instead adds a RID's edges and immediately
// drains any cycle they complete before moving to the next RID. That's safe
// because edges only accumulate within a tick — nothing removes an edge
// added earlier in this same loop except a victim abort, which also deletes
// every edge touching that victim — so a cycle spanning RIDs visited later
// is still there, unbroken, when the loop reaches them. Any cycle missed
// because its edges aren't all in yet gets caught on the next tick, since
// waitsFor is rebuilt from scratch every time.
func (lm *LockManager) detectAndResolveCycles() {
	lm.waitsFor = make(map[uint64][]uint64)

	for _, q := range lm.lockTable {
		if !q.isWriting && q.readingCount == 0 {
			continue
		}

		var grantedShared, grantedExclusive, ungrantedShared, ungrantedExclusive []uint64
		for _, req := range q.requestQueue {
			switch {
			case req.granted && req.mode == Shared:
				grantedShared = append(grantedShared, req.txnID)
			case req.granted && req.mode == Exclusive:
				grantedExclusive = append(grantedExclusive, req.txnID)
			case !req.granted && req.mode == Shared:
				ungrantedShared = append(ungrantedShared, req.txnID)
			case !req.granted && req.mode == Exclusive:
				ungrantedExclusive = append(ungrantedExclusive, req.txnID)
			}
		}

		for _, a := range ungrantedShared {
			for _, b := range grantedExclusive {
				lm.addEdge(a, b)
			}
		}
		for _, a := range ungrantedExclusive {
			for _, b := range grantedShared {
				lm.addEdge(a, b)
			}
			for _, b := range grantedExclusive {
				lm.addEdge(a, b)
			}
		}

		for {
			victimID, found := lm.hasCycle()
			if !found {
				break
			}

			if victim := lm.txnManager.GetTransaction(victimID); victim != nil {
				victim.SetLockState(txn.LockAborted)
				lm.logger.Printf("[LockMgr] DEADLOCK detected, aborting txn=%d", victimID)
				// Release the victim's granted locks so the transactions
				// waiting behind them can be granted.
				for rid := range victim.ExclusiveLockSet() {
					lm.lockTable[rid].isWriting = false
					delete(victim.ExclusiveLockSet(), rid)
				}
				for rid := range victim.SharedLockSet() {
					lm.lockTable[rid].readingCount--
					delete(victim.SharedLockSet(), rid)
				}
			}
			// The victim may be waiting on any RID's queue, not only q's.
			for _, waitQ := range lm.lockTable {
				waitQ.cond.Broadcast()
			}

			delete(lm.waitsFor, victimID)
			for from := range lm.waitsFor {
				lm.removeEdge(from, victimID)
			}
		}
	}
}
