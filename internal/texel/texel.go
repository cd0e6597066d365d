// Package texel computes the memory layout of packed mip chains.
//
// A texture occupies one allocation holding every level tightly packed,
// level 0 first.
package texel

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rhi"
)

// LevelOffset returns the byte offset of level within the chain.
func LevelOffset(size gputypes.Extent3D, storage rhi.PixelStorage, level uint32) uint64 {
	var off uint64
	for l := uint32(0); l < level; l++ {
		off += storage.ByteSize(rhi.LevelExtent(size, l))
	}
	return off
}

// ChainSize returns the bytes needed for levels levels.
func ChainSize(size gputypes.Extent3D, storage rhi.PixelStorage, levels uint32) uint64 {
	return LevelOffset(size, storage, levels)
}

// Region returns the [offset, offset+length) span of level.
func Region(size gputypes.Extent3D, storage rhi.PixelStorage, level uint32) (offset, length uint64) {
	return LevelOffset(size, storage, level), storage.ByteSize(rhi.LevelExtent(size, level))
}

// CheckCopy validates that a copy of extent with storage addresses level
// of a texture of the given description.
func CheckCopy(info rhi.TextureInfo, level uint32, extent gputypes.Extent3D, storage rhi.PixelStorage) error {
	if level >= info.Levels {
		return fmt.Errorf("level %d out of %d", level, info.Levels)
	}
	if storage != info.Storage {
		return fmt.Errorf("storage %s does not match texture storage %s", storage, info.Storage)
	}
	want := rhi.LevelExtent(info.Size, level)
	if extent != want {
		return fmt.Errorf("extent %dx%dx%d does not match level extent %dx%dx%d",
			extent.Width, extent.Height, extent.DepthOrArrayLayers,
			want.Width, want.Height, want.DepthOrArrayLayers)
	}
	return nil
}
