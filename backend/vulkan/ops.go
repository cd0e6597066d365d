package vulkan

import (
	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/internal/devstate"
)

func (d *Device) opTable() rhi.OpTable {
	var t rhi.OpTable
	rhi.On(&t, d.Store.UploadBuffer)
	rhi.On(&t, d.Store.DownloadBuffer)
	rhi.On(&t, d.Store.ByteSet)
	rhi.On(&t, d.Store.CopyBuffer)
	rhi.On(&t, d.Store.Reallocate)
	rhi.On(&t, d.Store.UploadTexture)
	rhi.On(&t, d.Store.DownloadTexture)
	rhi.On(&t, d.Store.CopyTexture)
	rhi.On(&t, d.Store.BufferToTexture)
	rhi.On(&t, d.Store.TextureToBuffer)
	rhi.On(&t, d.Store.BuildBLAS)
	rhi.On(&t, d.Store.BuildTLAS)
	rhi.On(&t, d.Store.UpdateTLAS)
	rhi.On(&t, d.launch)
	rhi.On(&t, hostFunction)
	rhi.On(&t, d.synchronize)
	return t
}

// launch runs every index in order on the queue goroutine.
func (d *Device) launch(c rhi.ShaderDispatchCommand) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(*rhi.DriverError); ok {
				panic(r)
			}
			d.Fatal("shader_dispatch", rhi.CodeLaunchFailed, "kernel panic: %v", r)
		}
	}()
	d.Launch(c, devstate.Sequential)
}

func hostFunction(c rhi.HostFunctionCommand) {
	if c.Fn != nil {
		c.Fn()
	}
}

// synchronize flushes the HAL mirrors written so far, so that work
// recorded on the Dispatcher also becomes visible to the HAL device.
func (d *Device) synchronize(rhi.SynchronizeCommand) {
	if err := d.mirror.sync(); err != nil {
		d.Fatal("synchronize", rhi.CodeUnknown, "%v", err)
	}
}
