package devstate

import (
	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/internal/texel"
)

// invocation resolves kernel memory accesses against device state.
// Bindless lookups go through the slot table and the address space, so a
// kernel sees what was last uploaded to the mirrors.
type invocation struct {
	store *Store
	cmd   *rhi.ShaderDispatchCommand
	id    [3]uint32
}

func (inv *invocation) ID() [3]uint32      { return inv.id }
func (inv *invocation) Dim() [3]uint32     { return inv.cmd.Dim }
func (inv *invocation) Args() []rhi.Handle { return inv.cmd.Args }
func (inv *invocation) Uniforms() []byte   { return inv.cmd.Uniforms }

func (inv *invocation) Buffer(h rhi.Handle) []byte {
	b, ok := inv.store.memory.Get(h)
	if !ok {
		return nil
	}
	return b.Bytes()
}

func (inv *invocation) Texture(h rhi.Handle) ([]byte, rhi.TextureInfo, bool) {
	t, ok := inv.store.textures.Get(h)
	if !ok {
		return nil, rhi.TextureInfo{}, false
	}
	off, n := texel.Region(t.Info.Size, t.Info.Storage, 0)
	return t.Block.Mem[off : off+n], t.Info, true
}

func (inv *invocation) BindlessBuffer(array rhi.Handle, index uint32) []byte {
	slots, ok := inv.store.BindlessSlots(array)
	if !ok || index >= slots.BufferCap {
		return nil
	}
	raw, ok := inv.store.space.Resolve(slots.Buffers+uint64(index)*rhi.ByteBufferDescSize, rhi.ByteBufferDescSize)
	if !ok {
		return nil
	}
	d := rhi.ReadByteBufferDesc(raw)
	b, ok := inv.store.memory.Get(d.Buffer)
	if !ok || d.Offset > b.Size || d.Size > b.Size-d.Offset {
		return nil
	}
	return b.Bytes()[d.Offset : d.Offset+d.Size]
}

func (inv *invocation) BindlessTexture2D(array rhi.Handle, index uint32) rhi.Handle {
	slots, ok := inv.store.BindlessSlots(array)
	if !ok {
		return rhi.InvalidHandle
	}
	return inv.textureSlot(slots.Textures2D, slots.Texture2DCap, index)
}

func (inv *invocation) BindlessTexture3D(array rhi.Handle, index uint32) rhi.Handle {
	slots, ok := inv.store.BindlessSlots(array)
	if !ok {
		return rhi.InvalidHandle
	}
	return inv.textureSlot(slots.Textures3D, slots.Texture3DCap, index)
}

func (inv *invocation) textureSlot(base uint64, capacity, index uint32) rhi.Handle {
	if index >= capacity {
		return rhi.InvalidHandle
	}
	raw, ok := inv.store.space.Resolve(base+uint64(index)*rhi.TextureSlotSize, rhi.TextureSlotSize)
	if !ok {
		return rhi.InvalidHandle
	}
	return rhi.ReadTextureSlot(raw)
}
