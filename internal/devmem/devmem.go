// Package devmem models a device address space: allocations are byte
// slices addressed by 64-bit device addresses that are never reused.
package devmem

import (
	"errors"
	"sort"
	"sync"
)

// Alignment is the alignment of every device address.
const Alignment = 256

const baseAddress uint64 = 0x7f00_0000_0000

// ErrOutOfMemory is returned when an allocation would exceed the limit.
var ErrOutOfMemory = errors.New("devmem: out of memory")

// Block is one contiguous allocation.
type Block struct {
	Addr uint64
	Mem  []byte
	// External blocks alias memory owned elsewhere and do not count
	// against the limit.
	External bool
}

// End returns the first address past the block.
func (b *Block) End() uint64 { return b.Addr + uint64(len(b.Mem)) }

// Space is a concurrency-safe device address space.
type Space struct {
	mu     sync.RWMutex
	next   uint64
	limit  uint64
	used   uint64
	blocks []*Block // sorted by Addr
}

// New returns a space that holds at most limit bytes of owned memory.
func New(limit uint64) *Space {
	return &Space{next: baseAddress, limit: limit}
}

func alignUp(v, a uint64) uint64 {
	return (v + a - 1) / a * a
}

// Alloc reserves size zeroed bytes.
func (s *Space) Alloc(size uint64) (*Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.used+size > s.limit {
		return nil, ErrOutOfMemory
	}
	b := &Block{Addr: s.next, Mem: make([]byte, size)}
	s.insert(b)
	s.used += size
	return b, nil
}

// Map places external memory in the address space without copying.
func (s *Space) Map(mem []byte) *Block {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := &Block{Addr: s.next, Mem: mem, External: true}
	s.insert(b)
	return b
}

func (s *Space) insert(b *Block) {
	// Addresses only grow, so appending keeps blocks sorted.
	s.blocks = append(s.blocks, b)
	s.next = alignUp(b.End()+1, Alignment)
}

func (s *Space) find(addr uint64) int {
	i := sort.Search(len(s.blocks), func(i int) bool { return s.blocks[i].End() > addr })
	if i < len(s.blocks) && s.blocks[i].Addr <= addr {
		return i
	}
	return -1
}

// Free releases the block starting at addr.
func (s *Space) Free(addr uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(addr)
	if i < 0 || s.blocks[i].Addr != addr {
		return false
	}
	b := s.blocks[i]
	if !b.External {
		s.used -= uint64(len(b.Mem))
	}
	s.blocks = append(s.blocks[:i], s.blocks[i+1:]...)
	return true
}

// Resolve returns n bytes at addr if they lie within one live block.
func (s *Space) Resolve(addr, n uint64) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.find(addr)
	if i < 0 {
		return nil, false
	}
	b := s.blocks[i]
	off := addr - b.Addr
	if off+n > uint64(len(b.Mem)) {
		return nil, false
	}
	return b.Mem[off : off+n : off+n], true
}

// Used returns the bytes of owned memory currently allocated.
func (s *Space) Used() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.used
}

// Limit returns the maximum bytes of owned memory.
func (s *Space) Limit() uint64 { return s.limit }

// Blocks returns the number of live blocks.
func (s *Space) Blocks() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blocks)
}
