package page

import (
	"sync"

	"relkernel/types"
)

const (
	PageSize      = 4096
	PageLSNOffset = 0 // unused: heap pages keep their LSN at header bytes 19-26, node pages start with their local page id
)

/*
This contains a page struct
this can be moved to seperate entites of index file manager and heap file manager
but a central package allows more clear way, since both of the pages are ultimately be send to bufferpool

the package is to use common struct variables, the actual format of writing the data is different in both the page type
for heap page: the implementation is at : heapfile_manager/page_header.go
for index page: the implementation is at: internal/index/bplustree/codec.go


Additionally the concept of LSN for WAL replay is used only for heap page, since they are the ones that are replay on a bigger level, internally they create/read the indexes like normal queries
so for index pages lsn remains untouched more or less (the Node of B+ tree doesnt have to do anything with lsn too)
so keeping it simple
*/

type Page struct {
	ID       int64
	FileID   uint32
	Data     []byte
	IsDirty  bool
	PinCount int32
	PageType types.PageType
	LSN      uint64 // in-memory only; nothing in this module sets it, so it stays 0
	mu       sync.RWMutex
}

func (p *Page) Lock() {
	p.mu.Lock()
}

func (p *Page) Unlock() {
	p.mu.Unlock()
}

func (p *Page) RLock() {
	p.mu.RLock()
}

func (p *Page) RUnlock() {
	p.mu.RUnlock()
}
