package rhi

import "encoding/binary"

// Device layout sizes of bindless slots.
const (
	ByteBufferDescSize = 24
	TextureSlotSize    = 8
)

// ByteBufferDesc describes a range of a buffer stored in a bindless slot.
// The zero value is an empty slot.
type ByteBufferDesc struct {
	Buffer Handle
	Offset uint64
	Size   uint64
}

// Put writes the device layout of d into b, which must hold
// ByteBufferDescSize bytes.
func (d ByteBufferDesc) Put(b []byte) {
	binary.LittleEndian.PutUint64(b[0:], uint64(d.Buffer))
	binary.LittleEndian.PutUint64(b[8:], d.Offset)
	binary.LittleEndian.PutUint64(b[16:], d.Size)
}

// ReadByteBufferDesc decodes a descriptor written by Put.
func ReadByteBufferDesc(b []byte) ByteBufferDesc {
	return ByteBufferDesc{
		Buffer: Handle(binary.LittleEndian.Uint64(b[0:])),
		Offset: binary.LittleEndian.Uint64(b[8:]),
		Size:   binary.LittleEndian.Uint64(b[16:]),
	}
}

// PutTextureSlot writes a texture handle into an 8-byte slot.
func PutTextureSlot(b []byte, h Handle) {
	binary.LittleEndian.PutUint64(b, uint64(h))
}

// ReadTextureSlot decodes a texture slot.
func ReadTextureSlot(b []byte) Handle {
	return Handle(binary.LittleEndian.Uint64(b))
}
