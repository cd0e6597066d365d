package rhi

import (
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// MemoryStats tracks live resources of one device, per tag.
// Create increments, Destroy decrements; a create/destroy pair leaves the
// counters where they were.
type MemoryStats struct {
	mu     sync.Mutex
	live   [tagCount]int
	bytes  [tagCount]uint64
	peak   uint64
	total  uint64
	labels map[Handle]allocation
}

type allocation struct {
	label string
	size  uint64
}

// NewMemoryStats returns empty counters.
func NewMemoryStats() *MemoryStats {
	return &MemoryStats{labels: make(map[Handle]allocation)}
}

// OnAllocate records a new resource. size may be zero for resources
// without device memory.
func (s *MemoryStats) OnAllocate(h Handle, size uint64, label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := h.Tag()
	s.live[t]++
	s.bytes[t] += size
	s.total += size
	s.peak = max(s.peak, s.total)
	s.labels[h] = allocation{label: label, size: size}
}

// OnResize records a change in a resource's size.
func (s *MemoryStats) OnResize(h Handle, size uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.labels[h]
	if !ok {
		return
	}
	t := h.Tag()
	s.bytes[t] = s.bytes[t] - a.size + size
	s.total = s.total - a.size + size
	s.peak = max(s.peak, s.total)
	a.size = size
	s.labels[h] = a
}

// OnFree records a destroyed resource.
func (s *MemoryStats) OnFree(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.labels[h]
	if !ok {
		return
	}
	delete(s.labels, h)
	t := h.Tag()
	s.live[t]--
	s.bytes[t] -= a.size
	s.total -= a.size
}

// Live returns the number of live resources with tag t.
func (s *MemoryStats) Live(t Tag) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live[t]
}

// Bytes returns the bytes held by live resources with tag t.
func (s *MemoryStats) Bytes(t Tag) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytes[t]
}

// Total returns the bytes held by all live resources.
func (s *MemoryStats) Total() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Peak returns the largest Total observed.
func (s *MemoryStats) Peak() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peak
}

// Label returns the label recorded for a live resource.
func (s *MemoryStats) Label(h Handle) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.labels[h]
	return a.label, ok
}

// Report returns a human-readable summary with grouped digits.
func (s *MemoryStats) Report() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := message.NewPrinter(language.English)
	var b strings.Builder
	p.Fprintf(&b, "total %d bytes, peak %d bytes\n", s.total, s.peak)
	for t := TagBuffer; t < tagCount; t++ {
		if s.live[t] == 0 {
			continue
		}
		p.Fprintf(&b, "  %-14s %6d live %14d bytes\n", t.String(), s.live[t], s.bytes[t])
	}
	return b.String()
}
