package devstate

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/internal/texel"
)

// CreateTexture2D allocates a 2D texture with a packed mip chain.
func (s *Store) CreateTexture2D(width, height uint32, storage rhi.PixelStorage, levels uint32, label string, opts ...rhi.TextureOption) (rhi.Handle, error) {
	return s.createTexture(rhi.TagTexture2D, rhi.Extent2D(width, height), storage, levels, label, opts)
}

// CreateTexture3D allocates a 3D texture with a packed mip chain.
func (s *Store) CreateTexture3D(size gputypes.Extent3D, storage rhi.PixelStorage, levels uint32, label string, opts ...rhi.TextureOption) (rhi.Handle, error) {
	return s.createTexture(rhi.TagTexture3D, size, storage, levels, label, opts)
}

func (s *Store) createTexture(tag rhi.Tag, size gputypes.Extent3D, storage rhi.PixelStorage, levels uint32, label string, opts []rhi.TextureOption) (rhi.Handle, error) {
	if size.Width == 0 || size.Height == 0 || size.DepthOrArrayLayers == 0 {
		return rhi.InvalidHandle, fmt.Errorf("create %s %q %dx%dx%d: %w",
			tag, label, size.Width, size.Height, size.DepthOrArrayLayers, rhi.ErrInvalidExtent)
	}
	if storage.Size() == 0 {
		return rhi.InvalidHandle, fmt.Errorf("create %s %q: unknown storage %d", tag, label, storage)
	}
	p := rhi.NewTextureParams(opts...)
	levels = rhi.MipLevelCount(size, levels)
	bytes := texel.ChainSize(size, storage, levels)

	defer s.guard.Enter()()
	blk, err := s.space.Alloc(bytes)
	if err != nil {
		s.Fatal("create_texture", rhi.CodeOutOfMemory, "%s %q: %d bytes: %v", tag, label, bytes, err)
	}
	t := &Texture{
		Info: rhi.TextureInfo{
			Label:   label,
			Size:    size,
			Storage: storage,
			Levels:  levels,
			Sampler: p.Sampler,
		},
		Block: blk,
	}
	h := s.textures.Insert(tag, t)
	t.Info.Handle = h
	s.stats.OnAllocate(h, bytes, label)
	s.hooks.TextureCreated(h, t)
	s.log.Debug("rhi: texture created",
		slog.String("handle", h.String()),
		slog.String("storage", storage.String()),
		slog.Uint64("levels", uint64(levels)))
	return h, nil
}

// DestroyTexture2D releases a 2D texture.
func (s *Store) DestroyTexture2D(h rhi.Handle) {
	s.destroyTexture("destroy_texture2d", rhi.TagTexture2D, h)
}

// DestroyTexture3D releases a 3D texture.
func (s *Store) DestroyTexture3D(h rhi.Handle) {
	s.destroyTexture("destroy_texture3d", rhi.TagTexture3D, h)
}

func (s *Store) destroyTexture(op string, tag rhi.Tag, h rhi.Handle) {
	if h.Tag() != tag {
		s.ignored(op, h)
		return
	}
	defer s.guard.Enter()()
	if t, ok := s.textures.Get(h); !ok || t.External {
		s.ignored(op, h)
		return
	}
	t, _ := s.textures.Remove(h)
	s.releaseTexture(h, t)
}

func (s *Store) releaseTexture(h rhi.Handle, t *Texture) {
	s.space.Free(t.Block.Addr)
	s.stats.OnFree(h)
	s.hooks.TextureDestroyed(h, t)
}

// TextureInfo describes a live texture.
func (s *Store) TextureInfo(h rhi.Handle) (rhi.TextureInfo, bool) {
	t, ok := s.textures.Get(h)
	if !ok {
		return rhi.TextureInfo{}, false
	}
	return t.Info, true
}

// Texture returns the texture behind h.
func (s *Store) Texture(h rhi.Handle) (*Texture, bool) {
	return s.textures.Get(h)
}

// MapExternal aliases memory owned by another API as a buffer or a
// single-level 2D texture.
func (s *Store) MapExternal(ext rhi.ExternalResource) (rhi.Handle, error) {
	switch ext.Kind {
	case rhi.ExternalBuffer:
		if len(ext.Memory) == 0 {
			return rhi.InvalidHandle, fmt.Errorf("map external buffer %d: %w", ext.Name, rhi.ErrZeroSize)
		}
		defer s.guard.Enter()()
		b := &Buffer{
			Block:    s.space.Map(ext.Memory),
			Size:     uint64(len(ext.Memory)),
			Label:    fmt.Sprintf("external buffer %d", ext.Name),
			External: true,
		}
		h := s.memory.Insert(rhi.TagBuffer, b)
		s.stats.OnAllocate(h, 0, b.Label)
		return h, nil

	case rhi.ExternalTexture:
		size := rhi.Extent2D(ext.Width, ext.Height)
		if ext.Width == 0 || ext.Height == 0 {
			return rhi.InvalidHandle, fmt.Errorf("map external texture %d: %w", ext.Name, rhi.ErrInvalidExtent)
		}
		need := ext.Storage.ByteSize(size)
		if uint64(len(ext.Memory)) < need {
			return rhi.InvalidHandle, fmt.Errorf("map external texture %d: %d bytes, need %d: %w",
				ext.Name, len(ext.Memory), need, rhi.ErrSizeMismatch)
		}
		defer s.guard.Enter()()
		t := &Texture{
			Info: rhi.TextureInfo{
				Label:   fmt.Sprintf("external texture %d", ext.Name),
				Size:    size,
				Storage: ext.Storage,
				Levels:  1,
				Sampler: rhi.DefaultSampler,
			},
			Block:    s.space.Map(ext.Memory[:need:need]),
			External: true,
		}
		h := s.textures.Insert(rhi.TagTexture2D, t)
		t.Info.Handle = h
		s.stats.OnAllocate(h, 0, t.Info.Label)
		return h, nil
	}
	return rhi.InvalidHandle, fmt.Errorf("map external %d: kind %d: %w", ext.Name, ext.Kind, rhi.ErrUnsupported)
}

// UnmapExternal releases an alias created by MapExternal. The aliased
// memory is left untouched.
func (s *Store) UnmapExternal(h rhi.Handle) {
	defer s.guard.Enter()()
	switch h.Tag() {
	case rhi.TagBuffer:
		if b, ok := s.memory.Get(h); ok && b.External {
			s.memory.Remove(h)
			s.space.Free(b.Block.Addr)
			s.stats.OnFree(h)
			return
		}
	case rhi.TagTexture2D:
		if t, ok := s.textures.Get(h); ok && t.External {
			s.textures.Remove(h)
			s.space.Free(t.Block.Addr)
			s.stats.OnFree(h)
			return
		}
	}
	s.ignored("unmap_external", h)
}
