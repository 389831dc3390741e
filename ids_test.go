package iris

import "testing"

func TestAllocator_reuse(t *testing.T) {
	a := NewAllocator()
	deepEqual(t, []ID{a.Allocate(), a.Allocate(), a.Allocate()}, []ID{0, 1, 2})
	deepEqual(t, a.Release(1), true)
	deepEqual(t, a.Allocate(), ID(1))
	deepEqual(t, a.Allocate(), ID(3))
}

func TestAllocator_smallestFirst(t *testing.T) {
	a := NewAllocator()
	for range 5 {
		a.Allocate()
	}
	a.Release(3)
	a.Release(1)
	deepEqual(t, a.FreeCount(), 2)
	deepEqual(t, []ID{a.Allocate(), a.Allocate(), a.Allocate()}, []ID{1, 3, 5})
	deepEqual(t, a.Cursor(), ID(6))
}

func TestAllocator_releaseNeverIssued(t *testing.T) {
	a := NewAllocator()
	a.Allocate()
	deepEqual(t, a.Release(7), false)
	deepEqual(t, a.FreeCount(), 0)
}

func TestAllocator_releaseAtCursor(t *testing.T) {
	a := NewAllocator()
	a.Allocate()
	deepEqual(t, a.Release(1), true)
	deepEqual(t, a.FreeCount(), 0)
	deepEqual(t, []ID{a.Allocate(), a.Allocate()}, []ID{1, 2})
}

func TestAllocator_next(t *testing.T) {
	a := NewAllocator()
	deepEqual(t, a.Next(), ID(0))
	a.Allocate()
	a.Allocate()
	deepEqual(t, a.Next(), ID(2))
	a.Release(0)
	deepEqual(t, a.Next(), ID(0))
	deepEqual(t, a.Allocate(), ID(0))
}

func TestAllocator_rebuild(t *testing.T) {
	a := NewAllocator()
	a.Reserve(0)
	a.Reserve(4)
	a.Reserve(2)
	deepEqual(t, a.Cursor(), ID(5))

	live := map[ID]bool{0: true, 2: true, 4: true}
	a.Rebuild(func(id ID) bool { return live[id] })
	deepEqual(t, a.FreeCount(), 2)
	deepEqual(t, []ID{a.Allocate(), a.Allocate(), a.Allocate()}, []ID{1, 3, 5})
}
