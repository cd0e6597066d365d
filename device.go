package rhi

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/rhi/shader"
)

// Device is the contract every backend implements.
//
// A Device exclusively owns every resource it creates. Each Create call is
// matched by exactly one Destroy call; destroying a handle that does not
// name a live resource of the right kind is logged and ignored.
//
// All methods are safe for concurrent use.
type Device interface {
	// Name returns the backend name the device was created with.
	Name() string
	// Info returns static device capabilities.
	Info() Capabilities
	// Stats returns the device's allocation counters.
	Stats() *MemoryStats
	// Close releases the native device. Resources still alive are freed.
	Close() error

	// MemoryAllocate reserves size bytes of device memory. Exported
	// allocations are rounded up to Capabilities.ExportGranularity and can
	// be shared with ExportHandle.
	MemoryAllocate(size uint64, exported bool) (Handle, error)
	MemoryFree(h Handle)
	// AlignedMemorySize returns the reserved size of an allocation.
	AlignedMemorySize(h Handle) uint64
	// BufferAddress returns the current device address of a buffer or
	// allocation. Reallocation moves the address; the handle is stable.
	BufferAddress(h Handle) (uint64, bool)
	// ExportHandle returns the native shareable handle of an exported allocation.
	ExportHandle(h Handle) (uint64, error)
	// ImportHandle maps an exported allocation into this device.
	ImportHandle(native uint64, size uint64) (Handle, error)

	CreateBuffer(size uint64, label string, exported bool) (Handle, error)
	DestroyBuffer(h Handle)

	CreateTexture2D(width, height uint32, storage PixelStorage, levels uint32, label string, opts ...TextureOption) (Handle, error)
	DestroyTexture2D(h Handle)
	CreateTexture3D(size gputypes.Extent3D, storage PixelStorage, levels uint32, label string, opts ...TextureOption) (Handle, error)
	DestroyTexture3D(h Handle)
	TextureInfo(h Handle) (TextureInfo, bool)

	CreateStream() (Handle, error)
	DestroyStream(h Handle)

	CreateMesh(params MeshParams) (Handle, error)
	DestroyMesh(h Handle)
	CreateAccel() (Handle, error)
	DestroyAccel(h Handle)
	// Bounds returns the bounds computed by the last build of a mesh or accel.
	Bounds(h Handle) (AABB, bool)

	CreateBindlessArray() (Handle, error)
	DestroyBindlessArray(h Handle)
	// UpdateBindlessSlots replaces the device-visible table of slot
	// mirror addresses read by kernels.
	UpdateBindlessSlots(h Handle, slots SlotSOA)

	CreateShader(fn Function) (Handle, error)
	DestroyShader(h Handle)

	// InitRTX initializes the ray-tracing context. Calls after the first are no-ops.
	InitRTX()

	// Dispatcher returns an executor that runs commands immediately on the
	// calling goroutine.
	Dispatcher() Dispatcher
	// Submit enqueues list on stream in order. It returns once the last
	// blocking command has completed. The list is not retained.
	Submit(stream Handle, list *CommandList) error

	// MapExternal creates a buffer or texture that aliases memory owned by
	// another API. The returned handle is released with UnmapExternal.
	MapExternal(ext ExternalResource) (Handle, error)
	UnmapExternal(h Handle)
}

// Capabilities describes a device.
type Capabilities struct {
	Backend           string
	DeviceName        string
	ComputeCapability uint32
	MaxSlotNum        uint32
	MemoryLimit       uint64
	ExportGranularity uint64
	RayTracing        bool
	ShaderTarget      shader.Target
	Workers           int
}

// TextureInfo describes a live texture.
type TextureInfo struct {
	Handle  Handle
	Label   string
	Size    gputypes.Extent3D
	Storage PixelStorage
	Levels  uint32
	Sampler Sampler
}

// Upload returns a command that uploads data into mip level 0.
func (ti TextureInfo) Upload(data []byte, async bool) TextureUploadCommand {
	return TextureUploadCommand{Texture: ti.Handle, Size: ti.Size, Storage: ti.Storage, Data: data, Async: async}
}

// Download returns a command that reads mip level 0 into dst.
func (ti TextureInfo) Download(dst []byte, async bool) TextureDownloadCommand {
	return TextureDownloadCommand{Texture: ti.Handle, Size: ti.Size, Storage: ti.Storage, Data: dst, Async: async}
}

// ByteSize returns the size of mip level 0 in bytes.
func (ti TextureInfo) ByteSize() uint64 {
	return ti.Storage.ByteSize(ti.Size)
}

// TextureOption configures texture creation.
type TextureOption func(*TextureParams)

// TextureParams holds optional texture settings.
type TextureParams struct {
	Sampler Sampler
}

// WithSampler sets the sampler stored with the texture.
func WithSampler(s Sampler) TextureOption {
	return func(p *TextureParams) {
		p.Sampler = s
	}
}

// NewTextureParams applies opts over the defaults.
func NewTextureParams(opts ...TextureOption) TextureParams {
	p := TextureParams{Sampler: DefaultSampler}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// SlotSOA is the device-visible table of bindless mirror addresses.
// Capacities are in slots.
type SlotSOA struct {
	Buffers      uint64
	BufferCap    uint32
	Textures2D   uint64
	Texture2DCap uint32
	Textures3D   uint64
	Texture3DCap uint32
}

// ExternalKind distinguishes external buffers from external textures.
type ExternalKind uint8

const (
	ExternalBuffer ExternalKind = iota
	ExternalTexture
)

// ExternalResource describes memory owned by another API that a device
// may alias without copying.
type ExternalResource struct {
	Name    uint32
	Kind    ExternalKind
	Width   uint32
	Height  uint32
	Storage PixelStorage
	Memory  []byte
}
