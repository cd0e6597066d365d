// Package vulkan provides the graphics-model rhi backend on top of the
// gogpu/wgpu hardware abstraction layer.
//
// Commands recorded on a stream are batched up to each blocking command
// and handed to the device queue as one submission. The queue executes a
// submission, mirrors the buffers it wrote into their HAL counterparts and
// signals a fence; Submit waits on the fence of the last blocking batch.
// Every stream of a device feeds the same queue, so host functions must
// not wait on work submitted to the same device.
//
// The native device is chosen in this order:
//
//   - an already opened device passed with rhi.WithProvider, which must
//     expose HalDevice() any and HalQueue() any;
//   - the HAL noop adapter when rhi.WithHeadless is set;
//   - the first discrete or integrated Vulkan adapter.
//
// Import the package for its side effect to register the "vulkan" backend:
//
//	import _ "github.com/gogpu/rhi/backend/vulkan"
//
//	dev, err := rhi.NewContext().CreateDevice("vulkan", rhi.WithHeadless())
package vulkan
