package cuda

import "github.com/gogpu/rhi"

// init registers the backend on package import.
func init() {
	rhi.Register(Name, func(ctx *rhi.Context, params rhi.DeviceParams) (rhi.Device, error) {
		return New(ctx, params)
	})
}
