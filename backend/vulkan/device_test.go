package vulkan

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/internal/devicetest"
	"github.com/gogpu/rhi/shader"
)

func open(t *testing.T, ctx *rhi.Context) rhi.Device {
	dev, err := ctx.CreateDevice(Name, rhi.WithHeadless(), rhi.WithMemoryLimit(64<<20))
	require.NoError(t, err)
	return dev
}

func newHeadless(t *testing.T) *Device {
	t.Helper()
	ctx := rhi.NewContext(rhi.WithFatalHandler(func(error) {}))
	dev, err := New(ctx, rhi.DeviceParams{Label: t.Name(), MemoryLimit: 1 << 20, MaxSlotNum: 64, Headless: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = dev.Close() })
	return dev
}

func TestConformance(t *testing.T) {
	devicetest.Run(t, open)
}

func TestInfo(t *testing.T) {
	dev := newHeadless(t)
	info := dev.Info()
	assert.Equal(t, Name, info.Backend)
	assert.Equal(t, shader.TargetSPIRV, info.ShaderTarget)
	assert.Equal(t, uint64(exportGranularity), info.ExportGranularity)
	assert.NotEmpty(t, info.DeviceName)
}

func TestMirrorFollowsLifetime(t *testing.T) {
	dev := newHeadless(t)

	buf, err := dev.CreateBuffer(10, "mirrored", false)
	require.NoError(t, err)
	tex, err := dev.CreateTexture2D(16, 16, rhi.PixelByte4, 1, "rgba")
	require.NoError(t, err)
	// float storage has no HAL format and stays store-only
	ftex, err := dev.CreateTexture2D(16, 16, rhi.PixelFloat4, 1, "float")
	require.NoError(t, err)

	_, ok := dev.HalBuffer(buf)
	assert.True(t, ok)
	_, ok = dev.HalTexture(tex)
	assert.True(t, ok)
	_, ok = dev.HalTexture(ftex)
	assert.False(t, ok)

	nb, nt := dev.mirror.counts()
	assert.Equal(t, 1, nb)
	assert.Equal(t, 1, nt)

	dev.DestroyBuffer(buf)
	dev.DestroyTexture2D(tex)
	dev.DestroyTexture2D(ftex)
	nb, nt = dev.mirror.counts()
	assert.Zero(t, nb)
	assert.Zero(t, nt)
}

func TestReallocateReplacesMirror(t *testing.T) {
	dev := newHeadless(t)
	st, err := rhi.NewStream(dev)
	require.NoError(t, err)
	defer st.Close()

	buf, err := dev.CreateBuffer(16, "grow", false)
	require.NoError(t, err)
	before, ok := dev.BufferAddress(buf)
	require.True(t, ok)

	st.Add(rhi.BufferReallocateCommand{Buffer: buf, Size: 64})
	require.NoError(t, st.Synchronize())

	after, ok := dev.BufferAddress(buf)
	require.True(t, ok)
	assert.NotEqual(t, before, after)
	_, ok = dev.HalBuffer(buf)
	assert.True(t, ok)
	nb, _ := dev.mirror.counts()
	assert.Equal(t, 1, nb)
}

func TestSyncClearsDirtySet(t *testing.T) {
	dev := newHeadless(t)
	st, err := rhi.NewStream(dev)
	require.NoError(t, err)
	defer st.Close()

	buf, err := dev.CreateBuffer(8, "dirty", false)
	require.NoError(t, err)
	st.Add(rhi.BufferUploadCommand{Buffer: buf, Data: []byte{1, 2, 3, 4, 5, 6, 7, 8}, Async: true})
	require.NoError(t, st.Commit())
	require.NoError(t, st.Synchronize())

	dev.mirror.mu.Lock()
	defer dev.mirror.mu.Unlock()
	assert.Empty(t, dev.mirror.dirty)
}

func TestShaderModuleLifetime(t *testing.T) {
	dev := newHeadless(t)
	sh, err := dev.CreateShader(rhi.Function{
		Name:       "fill",
		Source:     devicetest.FillSource,
		EntryPoint: "fill",
		Kernel:     devicetest.FillKernel,
	})
	require.NoError(t, err)
	s, ok := dev.Shader(sh)
	require.True(t, ok)
	assert.NotNil(t, s.Native)
	assert.Equal(t, shader.TargetSPIRV, s.Program.Target)

	_, err = dev.CreateShader(rhi.Function{Name: "host-only", Source: devicetest.FillSource, EntryPoint: "missing", Kernel: devicetest.FillKernel})
	assert.Error(t, err)

	_, err = dev.CreateShader(rhi.Function{Name: "no-kernel", Source: devicetest.FillSource})
	assert.True(t, errors.Is(err, rhi.ErrUnsupported))

	dev.DestroyShader(sh)
	_, ok = dev.Shader(sh)
	assert.False(t, ok)
}

func TestKernelPanicFailsBatch(t *testing.T) {
	dev := newHeadless(t)
	st, err := rhi.NewStream(dev)
	require.NoError(t, err)
	defer st.Close()

	sh, err := dev.CreateShader(rhi.Function{Name: "boom", Kernel: func(rhi.Invocation) { panic("bad index") }})
	require.NoError(t, err)
	ran := false
	st.Add(
		rhi.ShaderDispatchCommand{Shader: sh, Dim: [3]uint32{4, 1, 1}, Async: true},
		rhi.HostFunctionCommand{Fn: func() { ran = true }},
	)
	err = st.Commit()
	var de *rhi.DriverError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, rhi.CodeLaunchFailed, de.Code)
	assert.False(t, ran, "commands after a failure in the same batch must not run")
}

type provider struct{ dev *Device }

func (p provider) HalDevice() any { return p.dev.HalDevice() }
func (p provider) HalQueue() any  { return p.dev.HalQueue() }

func TestProviderDeviceIsShared(t *testing.T) {
	owner := newHeadless(t)
	ctx := rhi.NewContext()

	shared, err := ctx.CreateDevice(Name, rhi.WithProvider(provider{owner}))
	require.NoError(t, err)
	require.NoError(t, shared.Close())

	// the owner's HAL device survives the shared device
	buf, err := owner.CreateBuffer(4, "after", false)
	require.NoError(t, err)
	_, ok := owner.HalBuffer(buf)
	assert.True(t, ok)

	_, err = ctx.CreateDevice(Name, rhi.WithProvider(struct{}{}))
	assert.ErrorIs(t, err, ErrProvider)
}

func TestCloseIdempotent(t *testing.T) {
	dev := newHeadless(t)
	_, err := dev.CreateStream()
	require.NoError(t, err)
	require.NoError(t, dev.Close())
	require.NoError(t, dev.Close())
}
