package rhi

import (
	"testing"

	"github.com/gogpu/gputypes"
)

func TestMipLevelCount(t *testing.T) {
	tests := []struct {
		name      string
		size      gputypes.Extent3D
		requested uint32
		want      uint32
	}{
		{"full chain 256x256", Extent2D(256, 256), 0, 9},
		{"full chain 1x1", Extent2D(1, 1), 0, 1},
		{"non-square uses largest", Extent2D(1024, 4), 0, 11},
		{"clamped to maximum", Extent2D(16, 16), 20, 5},
		{"requested below maximum", Extent2D(16, 16), 3, 3},
		{"3d uses depth", gputypes.Extent3D{Width: 4, Height: 4, DepthOrArrayLayers: 64}, 0, 7},
		{"non power of two", Extent2D(300, 200), 0, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MipLevelCount(tt.size, tt.requested); got != tt.want {
				t.Errorf("MipLevelCount(%v, %d) = %d, want %d", tt.size, tt.requested, got, tt.want)
			}
		})
	}
}

func TestLevelExtent(t *testing.T) {
	got := LevelExtent(Extent2D(256, 64), 7)
	if got.Width != 2 || got.Height != 1 || got.DepthOrArrayLayers != 1 {
		t.Errorf("LevelExtent = %+v, want 2x1x1", got)
	}
}

func TestPixelStorage(t *testing.T) {
	tests := []struct {
		storage  PixelStorage
		channels int
		size     int
		name     string
	}{
		{PixelByte1, 1, 1, "BYTE1"},
		{PixelByte2, 2, 2, "BYTE2"},
		{PixelByte4, 4, 4, "BYTE4"},
		{PixelFloat1, 1, 4, "FLOAT1"},
		{PixelFloat2, 2, 8, "FLOAT2"},
		{PixelFloat4, 4, 16, "FLOAT4"},
	}
	for _, tt := range tests {
		if got := tt.storage.Channels(); got != tt.channels {
			t.Errorf("%v.Channels() = %d, want %d", tt.storage, got, tt.channels)
		}
		if got := tt.storage.Size(); got != tt.size {
			t.Errorf("%v.Size() = %d, want %d", tt.storage, got, tt.size)
		}
		if got := tt.storage.String(); got != tt.name {
			t.Errorf("String() = %q, want %q", got, tt.name)
		}
	}
	if PixelByte4.TextureFormat() != gputypes.TextureFormatRGBA8Unorm {
		t.Error("BYTE4 should map to RGBA8Unorm")
	}
	if PixelFloat2.TextureFormat() != gputypes.TextureFormatUndefined {
		t.Error("FLOAT2 should have no mirror format")
	}
	if got := PixelByte4.ByteSize(Extent2D(256, 256)); got != 256*256*4 {
		t.Errorf("ByteSize = %d", got)
	}
}
