package devmem

import (
	"errors"
	"testing"
)

func TestAllocAlignedAndDistinct(t *testing.T) {
	s := New(1 << 20)
	a, err := s.Alloc(100)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
	b, err := s.Alloc(10)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
	if a.Addr%Alignment != 0 || b.Addr%Alignment != 0 {
		t.Errorf("addresses not aligned: %#x %#x", a.Addr, b.Addr)
	}
	if b.Addr < a.End() {
		t.Errorf("blocks overlap: %#x < %#x", b.Addr, a.End())
	}
	if s.Used() != 110 {
		t.Errorf("Used = %d, want 110", s.Used())
	}
}

func TestAllocOutOfMemory(t *testing.T) {
	s := New(64)
	if _, err := s.Alloc(64); err != nil {
		t.Fatalf("Alloc at limit failed: %v", err)
	}
	if _, err := s.Alloc(1); !errors.Is(err, ErrOutOfMemory) {
		t.Errorf("err = %v, want ErrOutOfMemory", err)
	}
}

func TestResolve(t *testing.T) {
	s := New(1 << 20)
	b, _ := s.Alloc(32)
	b.Mem[10] = 7

	got, ok := s.Resolve(b.Addr+10, 4)
	if !ok || got[0] != 7 {
		t.Fatalf("Resolve = %v, %v", got, ok)
	}
	if _, ok := s.Resolve(b.Addr+30, 4); ok {
		t.Error("range past the block end must not resolve")
	}
	if _, ok := s.Resolve(b.Addr-1, 1); ok {
		t.Error("address before the block must not resolve")
	}
}

func TestFreeNeverReusesAddresses(t *testing.T) {
	s := New(1 << 20)
	a, _ := s.Alloc(16)
	if !s.Free(a.Addr) {
		t.Fatal("Free failed")
	}
	if s.Free(a.Addr) {
		t.Error("double Free must fail")
	}
	b, _ := s.Alloc(16)
	if b.Addr == a.Addr {
		t.Error("freed address was reused")
	}
	if _, ok := s.Resolve(a.Addr, 1); ok {
		t.Error("freed address must not resolve")
	}
	if s.Used() != 16 {
		t.Errorf("Used = %d, want 16", s.Used())
	}
}

func TestMapExternal(t *testing.T) {
	s := New(8)
	mem := make([]byte, 1024)
	b := s.Map(mem)
	if !b.External {
		t.Error("mapped block should be external")
	}
	if s.Used() != 0 {
		t.Errorf("external memory counted against the limit: %d", s.Used())
	}
	view, ok := s.Resolve(b.Addr, 1024)
	if !ok {
		t.Fatal("Resolve of mapped block failed")
	}
	view[0] = 9
	if mem[0] != 9 {
		t.Error("mapped block must alias the external memory")
	}
	s.Free(b.Addr)
	if s.Blocks() != 0 {
		t.Errorf("Blocks = %d", s.Blocks())
	}
}
