// dump_sample runs a small two-transaction deadlock so the lock manager's
// waits-for cycle detector has something to abort, then prints which
// transaction survived.
//
// Run: go run ./cmd/dump_sample
package main

import (
	"fmt"
	"sync"
	"time"

	"relkernel/internal/lockmanager"
	"relkernel/internal/txn"
	"relkernel/types"
)

func main() {
	tm, err := txn.NewTxnManager()
	if err != nil {
		fmt.Println("new txn manager:", err)
		return
	}
	lm := lockmanager.NewLockManager(tm, 50*time.Millisecond, nil)
	defer lm.Close()

	ridA := types.RID{PageID: 1, SlotIndex: 0}
	ridB := types.RID{PageID: 1, SlotIndex: 1}

	t1 := tm.Begin()
	t2 := tm.Begin()

	var wg sync.WaitGroup
	results := make(map[uint64]error, 2)
	var mu sync.Mutex

	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := lm.LockExclusive(t1, ridA); err != nil {
			mu.Lock()
			results[t1.ID] = err
			mu.Unlock()
			return
		}
		time.Sleep(20 * time.Millisecond)
		err := lm.LockExclusive(t1, ridB)
		mu.Lock()
		results[t1.ID] = err
		mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		if err := lm.LockExclusive(t2, ridB); err != nil {
			mu.Lock()
			results[t2.ID] = err
			mu.Unlock()
			return
		}
		time.Sleep(20 * time.Millisecond)
		err := lm.LockExclusive(t2, ridA)
		mu.Lock()
		results[t2.ID] = err
		mu.Unlock()
	}()

	wg.Wait()

	for id, err := range results {
		if err != nil {
			fmt.Printf("txn %d aborted: %v\n", id, err)
		} else {
			fmt.Printf("txn %d acquired both locks\n", id)
		}
	}
}
