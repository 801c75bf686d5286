package core

import (
	"sync"

	"github.com/cockroachdb/errors"
)

// IdentifierTable hands out uint64 identifiers for owned values. Freed slots
// are reused before the table grows. Identifier 0 is never issued so it can
// serve as a null handle.
type IdentifierTable[T any] struct {
	mu     sync.Mutex
	owners []*T
	free   []uint64
}

func NewIdentifierTable[T any](capacity int) *IdentifierTable[T] {
	if capacity < 1 {
		capacity = 1
	}
	// slot 0 stays empty forever
	return &IdentifierTable[T]{owners: make([]*T, 1, capacity+1)}
}

func (t *IdentifierTable[T]) Acquire(owner T) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n := len(t.free); n > 0 {
		// Existing free spot. Take it.
		id := t.free[n-1]
		t.free = t.free[:n-1]
		t.owners[id] = &owner
		return id
	}
	t.owners = append(t.owners, &owner)
	return uint64(len(t.owners) - 1)
}

func (t *IdentifierTable[T]) Get(id uint64) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var zero T
	if id == 0 || id >= uint64(len(t.owners)) || t.owners[id] == nil {
		return zero, false
	}
	return *t.owners[id], true
}

// Release frees id and returns the value it held.
func (t *IdentifierTable[T]) Release(id uint64) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var zero T
	length := uint64(len(t.owners))
	if id == 0 || id >= length {
		return zero, errors.Newf("identifier release: id '%d' out of range (max=%d). Nothing was done", id, length-1)
	}
	if t.owners[id] == nil {
		return zero, errors.Newf("identifier release: id '%d' is not in use. Nothing was done", id)
	}
	v := *t.owners[id]
	t.owners[id] = nil
	t.free = append(t.free, id)
	return v, nil
}

// Len returns the number of identifiers currently in use.
func (t *IdentifierTable[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.owners) - 1 - len(t.free)
}
