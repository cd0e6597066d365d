// Package export keeps the side table of allocations that can be shared
// across device or API boundaries.
package export

import (
	"sync"

	"github.com/gogpu/rhi"
)

// Record describes one exported allocation.
type Record struct {
	// Native is the shareable handle published for the allocation.
	Native uint64
	// Size is the allocation size rounded up to the export granularity.
	Size uint64
	// Imported marks allocations created by ImportHandle.
	Imported bool
}

// Registry maps allocation handles to export records. All access holds
// the mutex for the whole operation.
type Registry struct {
	mu      sync.Mutex
	records map[rhi.Handle]Record
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{records: make(map[rhi.Handle]Record)}
}

// Add records an exported allocation.
func (r *Registry) Add(h rhi.Handle, rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[h] = rec
}

// Lookup returns the record of h.
func (r *Registry) Lookup(h rhi.Handle) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[h]
	return rec, ok
}

// Remove deletes and returns the record of h.
func (r *Registry) Remove(h rhi.Handle) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[h]
	if ok {
		delete(r.records, h)
	}
	return rec, ok
}

// Len returns the number of records.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// AlignUp rounds size up to a multiple of granularity.
func AlignUp(size, granularity uint64) uint64 {
	if granularity == 0 {
		return size
	}
	return (size + granularity - 1) / granularity * granularity
}
