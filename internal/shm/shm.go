// Package shm implements the namespace of shareable device memory.
//
// An exporting device publishes an allocation and receives a native
// handle; importers open the handle to map the same bytes. Memory stays
// published until every holder has closed it.
package shm

import "sync"

// Namespace maps native shareable handles to memory.
type Namespace struct {
	mu      sync.Mutex
	next    uint64
	entries map[uint64]*entry
}

type entry struct {
	mem         []byte
	granularity uint64
	refs        int
}

// New returns an empty namespace.
func New() *Namespace {
	return &Namespace{next: 1, entries: make(map[uint64]*entry)}
}

// Publish registers mem, rounded by the exporter to granularity, and
// returns its native handle. The publisher holds the first reference.
func (n *Namespace) Publish(mem []byte, granularity uint64) uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	h := n.next
	n.next++
	n.entries[h] = &entry{mem: mem, granularity: max(granularity, 1), refs: 1}
	return h
}

// Open takes a reference to the memory behind native.
func (n *Namespace) Open(native uint64) ([]byte, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	e, ok := n.entries[native]
	if !ok {
		return nil, false
	}
	e.refs++
	return e.mem, true
}

// Size returns the size of the memory behind native.
func (n *Namespace) Size(native uint64) (uint64, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	e, ok := n.entries[native]
	if !ok {
		return 0, false
	}
	return uint64(len(e.mem)), true
}

// Granularity returns the allocation granularity the exporter rounded the
// memory behind native to.
func (n *Namespace) Granularity(native uint64) (uint64, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	e, ok := n.entries[native]
	if !ok {
		return 0, false
	}
	return e.granularity, true
}

// Close drops a reference. It reports whether the entry was released.
func (n *Namespace) Close(native uint64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	e, ok := n.entries[native]
	if !ok {
		return false
	}
	e.refs--
	if e.refs > 0 {
		return false
	}
	delete(n.entries, native)
	return true
}

// Len returns the number of published entries.
func (n *Namespace) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.entries)
}
