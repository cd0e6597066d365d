// Package devstate holds the device-side resource state shared by the
// bundled backends: the address space, the resource arenas, export
// bookkeeping and the native routines that commands reduce to.
//
// A backend embeds a *Store and adds its own execution model (how streams
// order and complete work) and its own native mirrors through Hooks.
package devstate

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/internal/arena"
	"github.com/gogpu/rhi/internal/devmem"
	"github.com/gogpu/rhi/internal/drvctx"
	"github.com/gogpu/rhi/internal/export"
	"github.com/gogpu/rhi/shader"
)

// Buffer is a linear allocation. Buffers are immutable values: reallocation
// replaces the arena entry with a new Buffer.
type Buffer struct {
	Block    *devmem.Block
	Size     uint64
	Label    string
	Exported bool
	Imported bool
	External bool
}

// Bytes returns the addressable memory of the buffer.
func (b *Buffer) Bytes() []byte { return b.Block.Mem[:b.Size:b.Size] }

// Texture is a packed mip chain.
type Texture struct {
	Info     rhi.TextureInfo
	Block    *devmem.Block
	External bool
}

// Mesh is triangle geometry with bounds from its last BLAS build.
type Mesh struct {
	Params rhi.MeshParams
	Bounds rhi.AABB
	Built  bool
}

// Accel is a top-level structure.
type Accel struct {
	Instances  []rhi.Instance
	MeshBounds []rhi.AABB
	Bounds     rhi.AABB
	Built      bool
}

// Bindless is the device-visible slot table of a bindless array.
type Bindless struct {
	Slots rhi.SlotSOA
}

// Shader is a compiled function. Native holds the backend's module object.
type Shader struct {
	Fn      rhi.Function
	Program *shader.Program
	Native  any
}

// Hooks lets a backend mirror resource lifetime into a native API.
type Hooks interface {
	BufferCreated(h rhi.Handle, b *Buffer)
	BufferResized(h rhi.Handle, b *Buffer)
	BufferDestroyed(h rhi.Handle, b *Buffer)
	TextureCreated(h rhi.Handle, t *Texture)
	TextureDestroyed(h rhi.Handle, t *Texture)
}

// NopHooks ignores every event.
type NopHooks struct{}

func (NopHooks) BufferCreated(rhi.Handle, *Buffer)     {}
func (NopHooks) BufferResized(rhi.Handle, *Buffer)     {}
func (NopHooks) BufferDestroyed(rhi.Handle, *Buffer)   {}
func (NopHooks) TextureCreated(rhi.Handle, *Texture)   {}
func (NopHooks) TextureDestroyed(rhi.Handle, *Texture) {}

// Config configures a Store.
type Config struct {
	Backend     string
	Params      rhi.DeviceParams
	Granularity uint64
	Hooks       Hooks
}

// Store is the resource state of one device.
type Store struct {
	ctx         *rhi.Context
	backend     string
	log         *slog.Logger
	guard       *drvctx.Context
	space       *devmem.Space
	granularity uint64
	hooks       Hooks
	params      rhi.DeviceParams

	memory   *arena.Table[*Buffer]
	textures *arena.Table[*Texture]
	meshes   *arena.Table[*Mesh]
	accels   *arena.Table[*Accel]
	bindless *arena.Table[*Bindless]
	shaders  *arena.Table[*Shader]

	exports *export.Registry
	stats   *rhi.MemoryStats

	rtxOnce  sync.Once
	rtxInits atomic.Int32
}

// New returns an empty store.
func New(ctx *rhi.Context, cfg Config) *Store {
	hooks := cfg.Hooks
	if hooks == nil {
		hooks = NopHooks{}
	}
	return &Store{
		ctx:         ctx,
		backend:     cfg.Backend,
		log:         ctx.Logger().With(slog.String("backend", cfg.Backend), slog.String("device", cfg.Params.Label)),
		guard:       drvctx.New(cfg.Params.Label),
		space:       devmem.New(cfg.Params.MemoryLimit),
		granularity: cfg.Granularity,
		hooks:       hooks,
		params:      cfg.Params,
		memory:      arena.New[*Buffer](rhi.TagBuffer, rhi.TagByteBuffer),
		textures:    arena.New[*Texture](rhi.TagTexture2D, rhi.TagTexture3D),
		meshes:      arena.New[*Mesh](rhi.TagMesh),
		accels:      arena.New[*Accel](rhi.TagAccel),
		bindless:    arena.New[*Bindless](rhi.TagBindlessArray),
		shaders:     arena.New[*Shader](rhi.TagShader),
		exports:     export.NewRegistry(),
		stats:       rhi.NewMemoryStats(),
	}
}

// SetHooks replaces the hooks. It must be called before any resource is created.
func (s *Store) SetHooks(h Hooks) { s.hooks = h }

// Context returns the rhi Context the store reports to.
func (s *Store) Context() *rhi.Context { return s.ctx }

// Log returns the device logger.
func (s *Store) Log() *slog.Logger { return s.log }

// Guard returns the driver-context guard.
func (s *Store) Guard() *drvctx.Context { return s.guard }

// Stats returns the allocation counters.
func (s *Store) Stats() *rhi.MemoryStats { return s.stats }

// Params returns the creation parameters.
func (s *Store) Params() rhi.DeviceParams { return s.params }

// Granularity returns the export allocation granularity.
func (s *Store) Granularity() uint64 { return s.granularity }

// Fatal reports a failed native operation. It never returns.
func (s *Store) Fatal(op string, code int, format string, args ...any) {
	s.ctx.Fatal(&rhi.DriverError{
		Backend: s.backend,
		Op:      op,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	})
}

func (s *Store) ignored(op string, h rhi.Handle) {
	s.log.Warn("rhi: ignoring unknown handle", slog.String("op", op), slog.String("handle", h.String()))
}

// InitRTX runs the one-time ray-tracing initialization.
func (s *Store) InitRTX() {
	s.rtxOnce.Do(func() {
		defer s.guard.Enter()()
		s.rtxInits.Add(1)
		s.log.Info("rhi: ray tracing context initialized")
	})
}

// RTXInits returns how many times initialization actually ran.
func (s *Store) RTXInits() int { return int(s.rtxInits.Load()) }

// Close releases every live resource.
func (s *Store) Close() {
	defer s.guard.Enter()()
	hs, bufs := s.memory.Drain()
	for i, b := range bufs {
		s.releaseBuffer(hs[i], b)
	}
	ths, texs := s.textures.Drain()
	for i, t := range texs {
		s.releaseTexture(ths[i], t)
	}
	drainStats(s.stats, s.meshes)
	drainStats(s.stats, s.accels)
	drainStats(s.stats, s.bindless)
	drainStats(s.stats, s.shaders)
}

func drainStats[T any](stats *rhi.MemoryStats, tab *arena.Table[T]) {
	hs, _ := tab.Drain()
	for _, h := range hs {
		stats.OnFree(h)
	}
}
