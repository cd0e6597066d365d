package vulkan

import (
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	// Register the Vulkan HAL backend.
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/gogpu/rhi"
)

// fenceTimeout bounds the wait for one queue submission.
const fenceTimeout = 5 * time.Second

// halProvider is implemented by windowing integrations that own a device.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// native is the HAL device a Device mirrors its resources into.
type native struct {
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	name     string
	// external devices are not destroyed on close.
	external bool
}

func openNative(params rhi.DeviceParams) (*native, error) {
	switch {
	case params.Provider != nil:
		return fromProvider(params.Provider)
	case params.Headless:
		instance, err := noop.API{}.CreateInstance(nil)
		if err != nil {
			return nil, fmt.Errorf("create noop instance: %w", err)
		}
		return openAdapter(instance)
	}

	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, ErrNoAdapter
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}
	return openAdapter(instance)
}

func fromProvider(provider any) (*native, error) {
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrProvider
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok {
		return nil, ErrProvider
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok {
		return nil, ErrProvider
	}
	return &native{device: device, queue: queue, name: "external device", external: true}, nil
}

// openAdapter opens the first discrete or integrated adapter of instance,
// falling back to the first adapter.
func openAdapter(instance hal.Instance) (*native, error) {
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	open, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("open device: %w", err)
	}
	return &native{
		instance: instance,
		device:   open.Device,
		queue:    open.Queue,
		name:     selected.Info.Name,
	}, nil
}

// fence submits an empty command buffer and waits for it to retire,
// which orders it after every earlier queue write.
func (n *native) fence(label string) error {
	encoder, err := n.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer n.device.FreeCommandBuffer(cmdBuf)

	fence, err := n.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer n.device.DestroyFence(fence)
	if err := n.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	ok, err := n.device.Wait(fence, 1, fenceTimeout)
	if err != nil {
		return fmt.Errorf("wait: %w", err)
	}
	if !ok {
		return ErrFenceTimeout
	}
	return nil
}

func (n *native) close() {
	if n.external {
		return
	}
	n.device.Destroy()
	if n.instance != nil {
		n.instance.Destroy()
	}
}
