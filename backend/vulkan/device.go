package vulkan

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/internal/arena"
	"github.com/gogpu/rhi/internal/devstate"
	"github.com/gogpu/rhi/shader"
)

// Name is the registered backend name.
const Name = "vulkan"

// exportGranularity is the allocation granularity of exportable memory.
const exportGranularity = 4 << 10

// Device is a graphics-model device backed by a HAL device.
// It is safe for concurrent use.
type Device struct {
	*devstate.Store

	params   rhi.DeviceParams
	native   *native
	mirror   *mirror
	compiler *shader.Compiler
	ops      rhi.OpTable
	streams  *arena.Table[*stream]

	queue  chan submission
	exited chan struct{}
	closed atomic.Bool
}

var _ rhi.Device = (*Device)(nil)

// New opens the native device selected by params and starts its queue.
func New(ctx *rhi.Context, params rhi.DeviceParams) (*Device, error) {
	if params.MemoryLimit == 0 {
		return nil, fmt.Errorf("vulkan: memory limit: %w", rhi.ErrZeroSize)
	}
	n, err := openNative(params)
	if err != nil {
		return nil, fmt.Errorf("vulkan: %w", err)
	}
	d := &Device{
		Store: devstate.New(ctx, devstate.Config{
			Backend:     Name,
			Params:      params,
			Granularity: exportGranularity,
		}),
		params:   params,
		native:   n,
		compiler: shader.Default(),
		streams:  arena.New[*stream](rhi.TagStream),
		queue:    make(chan submission, queueDepth),
		exited:   make(chan struct{}),
	}
	d.mirror = newMirror(n, d.Store)
	d.SetHooks(d.mirror)
	d.ops = d.opTable()
	go d.run()
	d.Log().Info("vulkan: device opened",
		slog.String("adapter", n.name),
		slog.Bool("headless", params.Headless),
		slog.Bool("external", n.external))
	return d, nil
}

// Name returns the backend name.
func (d *Device) Name() string { return Name }

// Info returns the device capabilities.
func (d *Device) Info() rhi.Capabilities {
	return rhi.Capabilities{
		Backend:           Name,
		DeviceName:        d.native.name,
		MaxSlotNum:        d.params.MaxSlotNum,
		MemoryLimit:       d.params.MemoryLimit,
		ExportGranularity: exportGranularity,
		RayTracing:        true,
		ShaderTarget:      shader.TargetSPIRV,
		Workers:           1,
	}
}

// Ops returns the command executor table.
func (d *Device) Ops() *rhi.OpTable { return &d.ops }

// Dispatcher returns an executor that runs commands on the calling
// goroutine. Written resources reach their HAL mirrors at the next sync
// point of any stream.
func (d *Device) Dispatcher() rhi.Dispatcher {
	return rhi.DispatchFunc(func(cmd rhi.Command) {
		d.ops.Dispatch(cmd)
		d.mirror.markWritten(cmd)
	})
}

// HalDevice returns the HAL device. It lets a Device act as the provider
// of another device or of a presentation surface.
func (d *Device) HalDevice() any { return d.native.device }

// HalQueue returns the HAL queue.
func (d *Device) HalQueue() any { return d.native.queue }

// HalBuffer returns the HAL buffer mirroring a buffer or allocation.
func (d *Device) HalBuffer(h rhi.Handle) (hal.Buffer, bool) { return d.mirror.Buffer(h) }

// HalTexture returns the HAL texture mirroring a texture.
func (d *Device) HalTexture(h rhi.Handle) (hal.Texture, bool) { return d.mirror.Texture(h) }

// CreateShader registers fn. A WGSL source is compiled to SPIR-V and
// loaded as a HAL shader module; the host kernel is what dispatch runs.
func (d *Device) CreateShader(fn rhi.Function) (rhi.Handle, error) {
	if fn.Kernel == nil {
		return rhi.InvalidHandle, fmt.Errorf("vulkan: shader %q has no host kernel: %w", fn.Name, rhi.ErrUnsupported)
	}
	if fn.Source == "" {
		return d.AddShader(fn, nil, nil), nil
	}
	prog, err := d.compiler.Compile(fn.Source, shader.TargetSPIRV)
	if err != nil {
		return rhi.InvalidHandle, fmt.Errorf("vulkan: shader %q: %w", fn.Name, err)
	}
	if _, ok := prog.EntryPoint(fn.EntryPoint); !ok {
		return rhi.InvalidHandle, fmt.Errorf("vulkan: shader %q: no compute entry point %q", fn.Name, fn.EntryPoint)
	}
	module, err := d.native.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  fn.Name,
		Source: hal.ShaderSource{SPIRV: prog.Words()},
	})
	if err != nil {
		return rhi.InvalidHandle, fmt.Errorf("vulkan: shader %q: create module: %w", fn.Name, err)
	}
	h := d.AddShader(fn, prog, module)
	d.Log().Debug("vulkan: shader created",
		slog.String("name", fn.Name),
		slog.Int("spirv_words", len(prog.Words())))
	return h, nil
}

// DestroyShader releases a shader and its module.
func (d *Device) DestroyShader(h rhi.Handle) {
	sh, ok := d.RemoveShader(h)
	if !ok {
		return
	}
	d.destroyModule(sh)
}

func (d *Device) destroyModule(sh *devstate.Shader) {
	if m, ok := sh.Native.(hal.ShaderModule); ok {
		d.native.device.DestroyShaderModule(m)
	}
}

// Close retires every stream, stops the queue and destroys the HAL device
// unless it came from a provider.
func (d *Device) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	hs, ss := d.streams.Drain()
	for i, s := range ss {
		d.retire(s)
		d.Stats().OnFree(hs[i])
	}
	close(d.queue)
	<-d.exited

	d.RangeShaders(func(_ rhi.Handle, sh *devstate.Shader) bool {
		d.destroyModule(sh)
		return true
	})
	d.Store.Close()
	d.mirror.release()
	d.native.close()
	d.Log().Info("vulkan: device closed")
	return nil
}
