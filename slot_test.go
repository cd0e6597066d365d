package rhi

import "testing"

func TestByteBufferDescLayout(t *testing.T) {
	d := ByteBufferDesc{Buffer: MakeHandle(TagBuffer, 2, 5), Offset: 256, Size: 1024}
	b := make([]byte, ByteBufferDescSize)
	d.Put(b)
	if got := ReadByteBufferDesc(b); got != d {
		t.Errorf("ReadByteBufferDesc = %+v, want %+v", got, d)
	}
	if b[8] != 0 || b[9] != 1 {
		t.Errorf("offset is not little endian at byte 8: % x", b[8:16])
	}
	if got := ReadByteBufferDesc(make([]byte, ByteBufferDescSize)); got != (ByteBufferDesc{}) {
		t.Errorf("zeroed slot decodes to %+v", got)
	}
}

func TestTextureSlotLayout(t *testing.T) {
	h := MakeHandle(TagTexture2D, 1, 9)
	b := make([]byte, TextureSlotSize)
	PutTextureSlot(b, h)
	if got := ReadTextureSlot(b); got != h {
		t.Errorf("ReadTextureSlot = %v, want %v", got, h)
	}
}
