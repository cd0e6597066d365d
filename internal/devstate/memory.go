package devstate

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/internal/export"
)

// MemoryAllocate reserves a raw allocation.
func (s *Store) MemoryAllocate(size uint64, exported bool) (rhi.Handle, error) {
	if size == 0 {
		return rhi.InvalidHandle, rhi.ErrZeroSize
	}
	return s.allocate(rhi.TagByteBuffer, size, "", exported), nil
}

// CreateBuffer allocates a labelled buffer object.
func (s *Store) CreateBuffer(size uint64, label string, exported bool) (rhi.Handle, error) {
	if size == 0 {
		return rhi.InvalidHandle, fmt.Errorf("create buffer %q: %w", label, rhi.ErrZeroSize)
	}
	return s.allocate(rhi.TagBuffer, size, label, exported), nil
}

func (s *Store) allocate(tag rhi.Tag, size uint64, label string, exported bool) rhi.Handle {
	defer s.guard.Enter()()

	reserved := size
	if exported {
		reserved = export.AlignUp(size, s.granularity)
	}
	blk, err := s.space.Alloc(reserved)
	if err != nil {
		s.Fatal("memory_allocate", rhi.CodeOutOfMemory, "%d bytes (%d of %d in use): %v",
			reserved, s.space.Used(), s.space.Limit(), err)
	}
	b := &Buffer{Block: blk, Size: size, Label: label, Exported: exported}
	h := s.memory.Insert(tag, b)
	if exported {
		native := s.ctx.Shared().Publish(blk.Mem, s.granularity)
		s.exports.Add(h, export.Record{Native: native, Size: reserved})
	}
	s.stats.OnAllocate(h, reserved, label)
	s.hooks.BufferCreated(h, b)
	s.log.Debug("rhi: allocated",
		slog.String("handle", h.String()),
		slog.Uint64("size", reserved),
		slog.Bool("exported", exported))
	return h
}

// MemoryFree releases a raw allocation.
func (s *Store) MemoryFree(h rhi.Handle) { s.free("memory_free", rhi.TagByteBuffer, h) }

// DestroyBuffer releases a buffer object.
func (s *Store) DestroyBuffer(h rhi.Handle) { s.free("destroy_buffer", rhi.TagBuffer, h) }

func (s *Store) free(op string, tag rhi.Tag, h rhi.Handle) {
	if h.Tag() != tag {
		s.ignored(op, h)
		return
	}
	defer s.guard.Enter()()
	if b, ok := s.memory.Get(h); !ok || b.External {
		s.ignored(op, h)
		return
	}
	b, _ := s.memory.Remove(h)
	s.releaseBuffer(h, b)
}

// releaseBuffer must run with the guard held.
func (s *Store) releaseBuffer(h rhi.Handle, b *Buffer) {
	// Exported memory is looked up first: its backing is shared and only
	// released by the last holder.
	if rec, ok := s.exports.Remove(h); ok {
		s.ctx.Shared().Close(rec.Native)
	}
	s.space.Free(b.Block.Addr)
	s.stats.OnFree(h)
	s.hooks.BufferDestroyed(h, b)
}

// AlignedMemorySize returns the reserved size of an allocation.
func (s *Store) AlignedMemorySize(h rhi.Handle) uint64 {
	if rec, ok := s.exports.Lookup(h); ok {
		return rec.Size
	}
	if b, ok := s.memory.Get(h); ok {
		return b.Size
	}
	return 0
}

// BufferAddress returns the device address of a buffer.
func (s *Store) BufferAddress(h rhi.Handle) (uint64, bool) {
	b, ok := s.memory.Get(h)
	if !ok {
		return 0, false
	}
	return b.Block.Addr, true
}

// Buffer returns the buffer behind h.
func (s *Store) Buffer(h rhi.Handle) (*Buffer, bool) {
	return s.memory.Get(h)
}

// ExportHandle returns the native shareable handle of an exported allocation.
func (s *Store) ExportHandle(h rhi.Handle) (uint64, error) {
	rec, ok := s.exports.Lookup(h)
	if !ok {
		return 0, fmt.Errorf("export %v: %w", h, rhi.ErrNotExported)
	}
	return rec.Native, nil
}

// ImportHandle maps shareable memory published by any device of the
// Context. size, rounded to the exporter's granularity, must equal the
// exported size.
func (s *Store) ImportHandle(native uint64, size uint64) (rhi.Handle, error) {
	if size == 0 {
		return rhi.InvalidHandle, rhi.ErrZeroSize
	}
	shared := s.ctx.Shared()
	total, ok := shared.Size(native)
	if !ok {
		return rhi.InvalidHandle, fmt.Errorf("import %d: %w", native, rhi.ErrUnknownShareable)
	}
	granularity, _ := shared.Granularity(native)
	if export.AlignUp(size, granularity) != total {
		return rhi.InvalidHandle, fmt.Errorf("import %d: %d bytes against %d exported: %w",
			native, size, total, rhi.ErrSizeMismatch)
	}
	mem, ok := shared.Open(native)
	if !ok {
		return rhi.InvalidHandle, fmt.Errorf("import %d: %w", native, rhi.ErrUnknownShareable)
	}

	defer s.guard.Enter()()
	b := &Buffer{Block: s.space.Map(mem), Size: size, Exported: true, Imported: true}
	h := s.memory.Insert(rhi.TagByteBuffer, b)
	s.exports.Add(h, export.Record{Native: native, Size: total, Imported: true})
	s.stats.OnAllocate(h, total, "imported")
	s.hooks.BufferCreated(h, b)
	return h, nil
}

// Exports returns the number of exported or imported allocations alive.
func (s *Store) Exports() int { return s.exports.Len() }
