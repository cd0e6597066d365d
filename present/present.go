// Package present is a minimal presentation API that owns named buffers and
// surface textures in host memory. It is the second native API the interop
// bridge shares resources with: rhi devices alias its memory without
// copying, and Present hands finished surfaces to a windowing integration
// through gpucontext.TextureUpdater.
package present

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/rhi"
)

// Errors returned by Context.
var (
	// ErrUnknownName is returned for a name that does not exist.
	ErrUnknownName = errors.New("present: unknown name")

	// ErrNotTexture is returned when a texture operation names a buffer.
	ErrNotTexture = errors.New("present: name is not a texture")
)

// surfaceStorage is the texel layout of every surface texture.
const surfaceStorage = rhi.PixelByte4

type object struct {
	kind          rhi.ExternalKind
	width, height uint32
	mem           []byte
}

// Context owns presentation resources. It is safe for concurrent use.
type Context struct {
	format gputypes.TextureFormat

	mu      sync.Mutex
	next    uint32
	objects map[uint32]*object
}

// NewContext creates a presentation context. The surface format is taken
// from provider, which may be nil; the default is RGBA8Unorm.
func NewContext(provider gpucontext.DeviceProvider) *Context {
	format := gputypes.TextureFormatRGBA8Unorm
	if provider != nil {
		switch f := provider.SurfaceFormat(); f {
		case gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatRGBA8Unorm:
			format = f
		}
	}
	return &Context{format: format, next: 1, objects: make(map[uint32]*object)}
}

// SurfaceFormat returns the format Present delivers pixels in.
func (c *Context) SurfaceFormat() gputypes.TextureFormat { return c.format }

func (c *Context) add(o *object) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	name := c.next
	c.next++
	c.objects[name] = o
	return name
}

// CreateBuffer creates a zeroed buffer of size bytes and returns its name.
func (c *Context) CreateBuffer(size uint64) (uint32, error) {
	if size == 0 {
		return 0, fmt.Errorf("present: buffer: %w", rhi.ErrZeroSize)
	}
	return c.add(&object{kind: rhi.ExternalBuffer, mem: make([]byte, size)}), nil
}

// CreateTexture creates a zeroed RGBA8 surface texture and returns its name.
func (c *Context) CreateTexture(width, height uint32) (uint32, error) {
	if width == 0 || height == 0 {
		return 0, fmt.Errorf("present: texture %dx%d: %w", width, height, rhi.ErrInvalidExtent)
	}
	n := uint64(width) * uint64(height) * uint64(surfaceStorage.Size())
	return c.add(&object{kind: rhi.ExternalTexture, width: width, height: height, mem: make([]byte, n)}), nil
}

func (c *Context) get(name uint32) (*object, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.objects[name]
	if !ok {
		return nil, fmt.Errorf("present: %d: %w", name, ErrUnknownName)
	}
	return o, nil
}

// ReadBuffer returns a copy of a buffer's contents.
func (c *Context) ReadBuffer(name uint32) ([]byte, error) {
	o, err := c.get(name)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), o.mem...), nil
}

// ReadTexture returns a copy of a texture's RGBA8 texels.
func (c *Context) ReadTexture(name uint32) ([]byte, error) {
	o, err := c.get(name)
	if err != nil {
		return nil, err
	}
	if o.kind != rhi.ExternalTexture {
		return nil, fmt.Errorf("present: %d: %w", name, ErrNotTexture)
	}
	return append([]byte(nil), o.mem...), nil
}

// Resize replaces a texture's storage. The contents are cleared and any
// alias of the old memory must be unmapped first.
func (c *Context) Resize(name uint32, width, height uint32) error {
	if width == 0 || height == 0 {
		return fmt.Errorf("present: resize %dx%d: %w", width, height, rhi.ErrInvalidExtent)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.objects[name]
	if !ok {
		return fmt.Errorf("present: %d: %w", name, ErrUnknownName)
	}
	if o.kind != rhi.ExternalTexture {
		return fmt.Errorf("present: %d: %w", name, ErrNotTexture)
	}
	n := uint64(width) * uint64(height) * uint64(surfaceStorage.Size())
	c.objects[name] = &object{kind: rhi.ExternalTexture, width: width, height: height, mem: make([]byte, n)}
	return nil
}

// Delete removes a resource. Deleting an unknown name is a no-op.
func (c *Context) Delete(name uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.objects, name)
}

// Lookup describes the memory behind name for aliasing by a device.
func (c *Context) Lookup(name uint32) (rhi.ExternalResource, bool) {
	o, err := c.get(name)
	if err != nil {
		return rhi.ExternalResource{}, false
	}
	res := rhi.ExternalResource{Name: name, Kind: o.kind, Memory: o.mem}
	if o.kind == rhi.ExternalTexture {
		res.Width, res.Height, res.Storage = o.width, o.height, surfaceStorage
	}
	return res, true
}

// Present delivers a texture's texels to updater in the surface format.
func (c *Context) Present(name uint32, updater gpucontext.TextureUpdater) error {
	px, err := c.ReadTexture(name)
	if err != nil {
		return err
	}
	if c.format == gputypes.TextureFormatBGRA8Unorm {
		for i := 0; i+3 < len(px); i += 4 {
			px[i], px[i+2] = px[i+2], px[i]
		}
	}
	if err := updater.UpdateData(px); err != nil {
		return fmt.Errorf("present: update %d: %w", name, err)
	}
	return nil
}
