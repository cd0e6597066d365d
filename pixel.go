package rhi

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// PixelStorage describes the texel layout of a texture.
type PixelStorage uint8

const (
	PixelByte1 PixelStorage = iota
	PixelByte2
	PixelByte4
	PixelFloat1
	PixelFloat2
	PixelFloat4
)

var pixelStorageNames = [...]string{
	PixelByte1:  "BYTE1",
	PixelByte2:  "BYTE2",
	PixelByte4:  "BYTE4",
	PixelFloat1: "FLOAT1",
	PixelFloat2: "FLOAT2",
	PixelFloat4: "FLOAT4",
}

// String returns the storage name.
func (p PixelStorage) String() string {
	if int(p) < len(pixelStorageNames) {
		return pixelStorageNames[p]
	}
	return fmt.Sprintf("PixelStorage(%d)", p)
}

// Channels returns the number of channels per texel.
func (p PixelStorage) Channels() int {
	switch p {
	case PixelByte1, PixelFloat1:
		return 1
	case PixelByte2, PixelFloat2:
		return 2
	case PixelByte4, PixelFloat4:
		return 4
	}
	return 0
}

// Size returns the size of one texel in bytes.
func (p PixelStorage) Size() int {
	switch p {
	case PixelByte1, PixelByte2, PixelByte4:
		return p.Channels()
	case PixelFloat1, PixelFloat2, PixelFloat4:
		return 4 * p.Channels()
	}
	return 0
}

// TextureFormat returns the WebGPU format used for the HAL mirror of a
// texture with this storage, or TextureFormatUndefined when none is used.
func (p PixelStorage) TextureFormat() gputypes.TextureFormat {
	switch p {
	case PixelByte1:
		return gputypes.TextureFormatR8Unorm
	case PixelByte4:
		return gputypes.TextureFormatRGBA8Unorm
	}
	return gputypes.TextureFormatUndefined
}

// Extent2D returns a 2D extent with a depth of one.
func Extent2D(width, height uint32) gputypes.Extent3D {
	return gputypes.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1}
}

// MipLevelCount returns the number of mip levels for a texture of the
// given size. The full chain has one level per halving of the largest
// dimension. requested == 0 selects the full chain; any other value is
// clamped to it.
func MipLevelCount(size gputypes.Extent3D, requested uint32) uint32 {
	largest := max(size.Width, size.Height, size.DepthOrArrayLayers)
	var full uint32
	for largest > 0 {
		full++
		largest >>= 1
	}
	if requested == 0 {
		return full
	}
	return min(requested, full)
}

// LevelExtent returns the extent of mip level l, never smaller than 1 in
// any dimension.
func LevelExtent(size gputypes.Extent3D, level uint32) gputypes.Extent3D {
	return gputypes.Extent3D{
		Width:              max(size.Width>>level, 1),
		Height:             max(size.Height>>level, 1),
		DepthOrArrayLayers: max(size.DepthOrArrayLayers>>level, 1),
	}
}

// ByteSize returns the byte size of a tightly packed region of the given
// extent with this storage.
func (p PixelStorage) ByteSize(size gputypes.Extent3D) uint64 {
	return uint64(size.Width) * uint64(size.Height) * uint64(size.DepthOrArrayLayers) * uint64(p.Size())
}

// Filter selects texel filtering for sampled reads.
type Filter uint8

const (
	FilterPoint Filter = iota
	FilterLinearPoint
	FilterLinearLinear
	FilterAnisotropic
)

// Address selects how coordinates outside [0, 1) are resolved.
type Address uint8

const (
	AddressEdge Address = iota
	AddressRepeat
	AddressMirror
	AddressClamp
)

// Sampler describes how a texture is sampled by shader code.
type Sampler struct {
	Filter Filter
	U      Address
	V      Address
	W      Address
}

// DefaultSampler is bilinear filtering with repeat addressing.
var DefaultSampler = Sampler{
	Filter: FilterLinearPoint,
	U:      AddressRepeat,
	V:      AddressRepeat,
	W:      AddressRepeat,
}
