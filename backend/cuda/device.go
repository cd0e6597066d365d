package cuda

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/internal/arena"
	"github.com/gogpu/rhi/internal/devstate"
	"github.com/gogpu/rhi/shader"
)

// Name is the registered backend name.
const Name = "cuda"

// Device characteristics reported through Info.
const (
	deviceName        = "rhi emulated compute device"
	computeCapability = 86
	// exportGranularity is the allocation granularity of shareable memory.
	exportGranularity = 64 << 10
)

// Device is a compute-model device. It is safe for concurrent use.
type Device struct {
	*devstate.Store

	params   rhi.DeviceParams
	compiler *shader.Compiler
	ops      rhi.OpTable
	streams  *arena.Table[*stream]
	closed   atomic.Bool
}

var _ rhi.Device = (*Device)(nil)

// New opens a device with params.
func New(ctx *rhi.Context, params rhi.DeviceParams) (*Device, error) {
	if params.MemoryLimit == 0 {
		return nil, fmt.Errorf("cuda: memory limit: %w", rhi.ErrZeroSize)
	}
	if params.Workers < 1 {
		params.Workers = 1
	}
	d := &Device{
		Store: devstate.New(ctx, devstate.Config{
			Backend:     Name,
			Params:      params,
			Granularity: exportGranularity,
		}),
		params:   params,
		compiler: shader.Default(),
		streams:  arena.New[*stream](rhi.TagStream),
	}
	d.ops = d.opTable()
	d.Log().Info("cuda: device opened",
		slog.Int("workers", params.Workers),
		slog.Uint64("memory_limit", params.MemoryLimit))
	return d, nil
}

// Name returns the backend name.
func (d *Device) Name() string { return Name }

// Info returns the device capabilities.
func (d *Device) Info() rhi.Capabilities {
	return rhi.Capabilities{
		Backend:           Name,
		DeviceName:        deviceName,
		ComputeCapability: computeCapability,
		MaxSlotNum:        d.params.MaxSlotNum,
		MemoryLimit:       d.params.MemoryLimit,
		ExportGranularity: exportGranularity,
		RayTracing:        true,
		ShaderTarget:      shader.TargetHost,
		Workers:           d.params.Workers,
	}
}

// Ops returns the command executor table.
func (d *Device) Ops() *rhi.OpTable { return &d.ops }

// Dispatcher returns an executor that runs commands on the calling goroutine.
func (d *Device) Dispatcher() rhi.Dispatcher {
	return rhi.DispatchFunc(d.ops.Dispatch)
}

// CreateShader registers fn. A WGSL source, if present, is checked and
// reflected by the shader compiler; the host kernel is what runs.
func (d *Device) CreateShader(fn rhi.Function) (rhi.Handle, error) {
	if fn.Kernel == nil {
		return rhi.InvalidHandle, fmt.Errorf("cuda: shader %q has no host kernel: %w", fn.Name, rhi.ErrUnsupported)
	}
	var prog *shader.Program
	if fn.Source != "" {
		p, err := d.compiler.Compile(fn.Source, shader.TargetHost)
		if err != nil {
			return rhi.InvalidHandle, fmt.Errorf("cuda: shader %q: %w", fn.Name, err)
		}
		if _, ok := p.EntryPoint(fn.EntryPoint); !ok {
			return rhi.InvalidHandle, fmt.Errorf("cuda: shader %q: no compute entry point %q", fn.Name, fn.EntryPoint)
		}
		prog = p
	}
	h := d.AddShader(fn, prog, nil)
	d.Log().Debug("cuda: shader created", slog.String("name", fn.Name), slog.String("handle", h.String()))
	return h, nil
}

// DestroyShader releases a shader.
func (d *Device) DestroyShader(h rhi.Handle) {
	d.RemoveShader(h)
}

// Close stops every stream and releases all resources.
func (d *Device) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	hs, ss := d.streams.Drain()
	for i, s := range ss {
		d.stopStream(s)
		d.Stats().OnFree(hs[i])
	}
	d.Store.Close()
	d.Log().Info("cuda: device closed")
	return nil
}
