// Package arena stores backend objects in generation-checked slots and
// issues tagged rhi.Handles for them.
package arena

import (
	"sync"

	"github.com/gogpu/rhi"
)

const maxGeneration = 1<<24 - 1

type slot[T any] struct {
	value T
	tag   rhi.Tag
	gen   uint32
	live  bool
}

// Table is a concurrency-safe arena of T. A handle resolves only while its
// slot holds the same generation and tag it was issued with.
type Table[T any] struct {
	mu    sync.RWMutex
	tags  []rhi.Tag
	slots []slot[T]
	free  []uint32
	live  int
}

// New returns a table that accepts the given tags.
func New[T any](tags ...rhi.Tag) *Table[T] {
	return &Table[T]{tags: tags}
}

func (t *Table[T]) accepts(tag rhi.Tag) bool {
	for _, a := range t.tags {
		if a == tag {
			return true
		}
	}
	return false
}

// Insert stores v and returns its handle. It panics if tag is not one of
// the table's tags.
func (t *Table[T]) Insert(tag rhi.Tag, v T) rhi.Handle {
	if !t.accepts(tag) {
		panic("arena: tag " + tag.String() + " not accepted by table")
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	var idx uint32
	if n := len(t.free); n > 0 {
		idx = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		// #nosec G115 -- slot count is bounded by device memory limits
		idx = uint32(len(t.slots))
		t.slots = append(t.slots, slot[T]{})
	}
	s := &t.slots[idx]
	s.gen++
	if s.gen > maxGeneration {
		s.gen = 1
	}
	s.value = v
	s.tag = tag
	s.live = true
	t.live++
	return rhi.MakeHandle(tag, s.gen, idx)
}

func (t *Table[T]) lookup(h rhi.Handle) (*slot[T], bool) {
	idx := h.Index()
	if !h.IsValid() || int(idx) >= len(t.slots) {
		return nil, false
	}
	s := &t.slots[idx]
	if !s.live || s.gen != h.Generation() || s.tag != h.Tag() {
		return nil, false
	}
	return s, true
}

// Get returns the value behind h.
func (t *Table[T]) Get(h rhi.Handle) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.lookup(h)
	if !ok {
		var zero T
		return zero, false
	}
	return s.value, true
}

// Replace swaps the value behind h, keeping the handle valid.
func (t *Table[T]) Replace(h rhi.Handle, v T) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.lookup(h)
	if !ok {
		return false
	}
	s.value = v
	return true
}

// Remove releases h and returns its value. The slot is reused with a new
// generation, so h never resolves again.
func (t *Table[T]) Remove(h rhi.Handle) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.lookup(h)
	if !ok {
		var zero T
		return zero, false
	}
	v := s.value
	var zero T
	s.value = zero
	s.live = false
	t.free = append(t.free, h.Index())
	t.live--
	return v, true
}

// Len returns the number of live entries.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.live
}

// Range calls fn for every live entry until fn returns false. fn must not
// modify the table.
func (t *Table[T]) Range(fn func(rhi.Handle, T) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := range t.slots {
		s := &t.slots[i]
		if !s.live {
			continue
		}
		// #nosec G115 -- index fits the slot count
		if !fn(rhi.MakeHandle(s.tag, s.gen, uint32(i)), s.value) {
			return
		}
	}
}

// Drain removes every live entry, returning their handles and values.
func (t *Table[T]) Drain() ([]rhi.Handle, []T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var hs []rhi.Handle
	var vs []T
	var zero T
	for i := range t.slots {
		s := &t.slots[i]
		if !s.live {
			continue
		}
		// #nosec G115 -- index fits the slot count
		hs = append(hs, rhi.MakeHandle(s.tag, s.gen, uint32(i)))
		vs = append(vs, s.value)
		s.value = zero
		s.live = false
		// #nosec G115 -- index fits the slot count
		t.free = append(t.free, uint32(i))
	}
	t.live = 0
	return hs, vs
}
