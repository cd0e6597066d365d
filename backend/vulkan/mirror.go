package vulkan

import (
	"log/slog"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/internal/devstate"
	"github.com/gogpu/rhi/internal/export"
)

const (
	bufferUsage = gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst
	// textureUsage covers what an external renderer does with a mirrored texture.
	textureUsage = gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst |
		gputypes.TextureUsageTextureBinding
)

// mirror keeps a HAL object per store buffer and texture and copies their
// contents to the HAL device at every sync point. Resources the HAL device
// cannot represent are tracked by the store only.
type mirror struct {
	native *native
	store  *devstate.Store
	log    *slog.Logger

	mu       sync.Mutex
	buffers  map[rhi.Handle]hal.Buffer
	textures map[rhi.Handle]hal.Texture
	dirty    map[rhi.Handle]struct{}
}

var _ devstate.Hooks = (*mirror)(nil)

func newMirror(n *native, store *devstate.Store) *mirror {
	return &mirror{
		native:   n,
		store:    store,
		log:      store.Log(),
		buffers:  make(map[rhi.Handle]hal.Buffer),
		textures: make(map[rhi.Handle]hal.Texture),
		dirty:    make(map[rhi.Handle]struct{}),
	}
}

func (m *mirror) createBuffer(h rhi.Handle, b *devstate.Buffer) {
	buf, err := m.native.device.CreateBuffer(&hal.BufferDescriptor{
		Label: b.Label,
		Size:  export.AlignUp(b.Size, 4),
		Usage: bufferUsage,
	})
	if err != nil {
		m.log.Warn("vulkan: buffer not mirrored", slog.String("handle", h.String()), slog.String("err", err.Error()))
		return
	}
	m.buffers[h] = buf
}

func (m *mirror) BufferCreated(h rhi.Handle, b *devstate.Buffer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createBuffer(h, b)
	if b.Imported {
		m.dirty[h] = struct{}{}
	}
}

func (m *mirror) BufferResized(h rhi.Handle, b *devstate.Buffer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.buffers[h]; ok {
		m.native.device.DestroyBuffer(old)
		delete(m.buffers, h)
	}
	m.createBuffer(h, b)
	m.dirty[h] = struct{}{}
}

func (m *mirror) BufferDestroyed(h rhi.Handle, _ *devstate.Buffer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if buf, ok := m.buffers[h]; ok {
		m.native.device.DestroyBuffer(buf)
		delete(m.buffers, h)
	}
	delete(m.dirty, h)
}

func (m *mirror) TextureCreated(h rhi.Handle, t *devstate.Texture) {
	format := t.Info.Storage.TextureFormat()
	if format == gputypes.TextureFormatUndefined {
		return
	}
	dim := gputypes.TextureDimension2D
	if h.Tag() == rhi.TagTexture3D {
		dim = gputypes.TextureDimension3D
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tex, err := m.native.device.CreateTexture(&hal.TextureDescriptor{
		Label: t.Info.Label,
		Size: hal.Extent3D{
			Width:              t.Info.Size.Width,
			Height:             t.Info.Size.Height,
			DepthOrArrayLayers: t.Info.Size.DepthOrArrayLayers,
		},
		MipLevelCount: t.Info.Levels,
		SampleCount:   1,
		Dimension:     dim,
		Format:        format,
		Usage:         textureUsage,
	})
	if err != nil {
		m.log.Warn("vulkan: texture not mirrored", slog.String("handle", h.String()), slog.String("err", err.Error()))
		return
	}
	m.textures[h] = tex
}

func (m *mirror) TextureDestroyed(h rhi.Handle, _ *devstate.Texture) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tex, ok := m.textures[h]; ok {
		m.native.device.DestroyTexture(tex)
		delete(m.textures, h)
	}
	delete(m.dirty, h)
}

// markWritten records the resources cmd writes.
func (m *mirror) markWritten(cmd rhi.Command) {
	var hs []rhi.Handle
	switch c := cmd.(type) {
	case rhi.BufferUploadCommand:
		hs = append(hs, c.Buffer)
	case rhi.BufferByteSetCommand:
		hs = append(hs, c.Buffer)
	case rhi.BufferCopyCommand:
		hs = append(hs, c.Dst)
	case rhi.TextureUploadCommand:
		hs = append(hs, c.Texture)
	case rhi.TextureCopyCommand:
		hs = append(hs, c.Dst)
	case rhi.BufferToTextureCommand:
		hs = append(hs, c.Texture)
	case rhi.TextureToBufferCommand:
		hs = append(hs, c.Buffer)
	case rhi.ShaderDispatchCommand:
		hs = append(hs, c.Args...)
	default:
		return
	}
	m.mu.Lock()
	for _, h := range hs {
		m.dirty[h] = struct{}{}
	}
	m.mu.Unlock()
}

// sync copies every written resource to its HAL object and waits for the
// queue to retire the copies.
func (m *mirror) sync() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.dirty) == 0 {
		return nil
	}
	for h := range m.dirty {
		if buf, ok := m.buffers[h]; ok {
			if b, live := m.store.Buffer(h); live {
				m.native.queue.WriteBuffer(buf, 0, b.Bytes())
			}
		}
		if tex, ok := m.textures[h]; ok {
			if t, live := m.store.Texture(h); live {
				m.writeTexture(tex, t)
			}
		}
	}
	clear(m.dirty)
	return m.native.fence("rhi-sync")
}

// writeTexture copies mip level 0, the level external renderers sample.
func (m *mirror) writeTexture(tex hal.Texture, t *devstate.Texture) {
	info := t.Info
	n := info.ByteSize()
	m.native.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: tex, MipLevel: 0},
		t.Block.Mem[:n:n],
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  info.Size.Width * uint32(info.Storage.Size()),
			RowsPerImage: info.Size.Height,
		},
		&hal.Extent3D{
			Width:              info.Size.Width,
			Height:             info.Size.Height,
			DepthOrArrayLayers: info.Size.DepthOrArrayLayers,
		},
	)
}

// Buffer returns the HAL buffer mirroring h.
func (m *mirror) Buffer(h rhi.Handle) (hal.Buffer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buffers[h]
	return b, ok
}

// Texture returns the HAL texture mirroring h.
func (m *mirror) Texture(h rhi.Handle) (hal.Texture, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.textures[h]
	return t, ok
}

// release destroys every HAL object still alive.
func (m *mirror) release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for h, b := range m.buffers {
		m.native.device.DestroyBuffer(b)
		delete(m.buffers, h)
	}
	for h, t := range m.textures {
		m.native.device.DestroyTexture(t)
		delete(m.textures, h)
	}
	clear(m.dirty)
}

// counts returns the number of mirrored buffers and textures.
func (m *mirror) counts() (buffers, textures int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buffers), len(m.textures)
}
