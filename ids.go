package iris

import (
	"strconv"

	"github.com/google/btree"
)

// ID identifies a node within a single graph.
type ID uint64

func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

const allocatorDegree = 8

// Allocator issues node identifiers. Released identifiers are reissued,
// smallest first, before the cursor advances.
//
// An Allocator is not safe for concurrent use; the owning Graph guards it.
type Allocator struct {
	cursor ID
	free   *btree.BTreeG[ID]
}

func NewAllocator() *Allocator {
	return &Allocator{
		free: btree.NewOrderedG[ID](allocatorDegree),
	}
}

func (a *Allocator) Allocate() ID {
	if id, ok := a.free.DeleteMin(); ok {
		return id
	}
	id := a.cursor
	a.cursor++
	return id
}

// Next returns the id the following Allocate will issue.
func (a *Allocator) Next() ID {
	if id, ok := a.free.Min(); ok {
		return id
	}
	return a.cursor
}

// Release returns id to the pool and reports whether id is at or below the
// cursor. Ids at or past the cursor are never pooled: the cursor issues them
// anyway, and pooling one would issue it twice. Releasing an id twice without
// an intervening Allocate is a caller error and isn't detected.
func (a *Allocator) Release(id ID) bool {
	if id < a.cursor {
		a.free.ReplaceOrInsert(id)
	}
	return id <= a.cursor
}

// Reserve marks id as issued. Used while replaying pages.
func (a *Allocator) Reserve(id ID) {
	a.free.Delete(id)
	if id >= a.cursor {
		a.cursor = id + 1
	}
}

// Rebuild recomputes the free set as every id below the cursor for which
// live returns false.
func (a *Allocator) Rebuild(live func(ID) bool) {
	a.free.Clear(false)
	for id := ID(0); id < a.cursor; id++ {
		if !live(id) {
			a.free.ReplaceOrInsert(id)
		}
	}
}

func (a *Allocator) Cursor() ID {
	return a.cursor
}

func (a *Allocator) FreeCount() int {
	return a.free.Len()
}
