package cuda

import (
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/gogpu/rhi"
)

// chunksPerWorker splits a dispatch so uneven kernels still balance.
const chunksPerWorker = 4

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

// launch runs a dispatch. A kernel panic on any path becomes a fatal
// launch failure.
func (d *Device) launch(c rhi.ShaderDispatchCommand) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(*rhi.DriverError); ok {
				panic(r)
			}
			d.Fatal("shader_dispatch", rhi.CodeLaunchFailed, "kernel panic: %v", r)
		}
	}()
	d.Launch(c, d.parallel)
}

func hostFunction(c rhi.HostFunctionCommand) {
	if c.Fn != nil {
		c.Fn()
	}
}

// synchronize has nothing to do on the worker: reaching it means every
// earlier command on the stream has completed.
func (d *Device) synchronize(rhi.SynchronizeCommand) {
	d.Log().Debug("cuda: synchronize")
}

// parallel runs a dispatch across at most params.Workers goroutines.
func (d *Device) parallel(total uint64, body func(i uint64)) {
	workers := uint64(d.params.Workers)
	if workers <= 1 || total == 1 {
		for i := uint64(0); i < total; i++ {
			body(i)
		}
		return
	}
	chunk := max(1, total/(workers*chunksPerWorker))

	var g errgroup.Group
	g.SetLimit(d.params.Workers)
	for start := uint64(0); start < total; start += chunk {
		end := min(start+chunk, total)
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("kernel panic at index %d..%d: %v", start, end, r)
				}
			}()
			for i := start; i < end; i++ {
				body(i)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		d.Log().Error("cuda: kernel failed", slog.String("err", err.Error()))
		d.Fatal("shader_dispatch", rhi.CodeLaunchFailed, "%v", err)
	}
}
