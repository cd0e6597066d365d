package export

import (
	"sync"
	"testing"

	"github.com/gogpu/rhi"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	h := rhi.MakeHandle(rhi.TagByteBuffer, 1, 0)

	if _, ok := r.Lookup(h); ok {
		t.Fatal("empty registry should not find anything")
	}
	r.Add(h, Record{Native: 5, Size: 65536})
	rec, ok := r.Lookup(h)
	if !ok || rec.Native != 5 || rec.Size != 65536 {
		t.Errorf("Lookup = %+v, %v", rec, ok)
	}
	if _, ok := r.Remove(h); !ok {
		t.Error("Remove failed")
	}
	if _, ok := r.Remove(h); ok {
		t.Error("second Remove should fail")
	}
}

func TestRegistryConcurrent(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h := rhi.MakeHandle(rhi.TagByteBuffer, 1, uint32(i))
			r.Add(h, Record{Native: uint64(i)})
			r.Lookup(h)
			r.Remove(h)
		}(i)
	}
	wg.Wait()
	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
}

func TestAlignUp(t *testing.T) {
	tests := []struct{ size, gran, want uint64 }{
		{1, 65536, 65536},
		{65536, 65536, 65536},
		{65537, 65536, 131072},
		{100, 0, 100},
	}
	for _, tt := range tests {
		if got := AlignUp(tt.size, tt.gran); got != tt.want {
			t.Errorf("AlignUp(%d, %d) = %d, want %d", tt.size, tt.gran, got, tt.want)
		}
	}
}
