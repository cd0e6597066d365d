// Package devicetest is the conformance suite every backend runs from its
// own tests:
//
//	func TestConformance(t *testing.T) {
//	    devicetest.Run(t, func(t *testing.T, ctx *rhi.Context) rhi.Device {
//	        dev, err := ctx.CreateDevice("cuda")
//	        require.NoError(t, err)
//	        return dev
//	    })
//	}
package devicetest

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/bindless"
)

// Opener creates a device from ctx. The suite closes it.
type Opener func(t *testing.T, ctx *rhi.Context) rhi.Device

// FillSource is a WGSL kernel matching FillKernel.
const FillSource = `
@group(0) @binding(0) var<storage, read_write> data: array<u32>;

@compute @workgroup_size(64)
fn fill(@builtin(global_invocation_id) id: vec3<u32>) {
    data[id.x] = id.x * 2u;
}
`

// FillKernel writes 2*i into element i of the first argument.
func FillKernel(inv rhi.Invocation) {
	i := inv.ID()[0]
	buf := inv.Buffer(inv.Args()[0])
	binary.LittleEndian.PutUint32(buf[i*4:], i*2)
}

type suite struct {
	ctx  *rhi.Context
	dev  rhi.Device
	open Opener
}

func newSuite(t *testing.T, open Opener) *suite {
	t.Helper()
	// Driver failures panic with the DriverError instead of exiting.
	ctx := rhi.NewContext(rhi.WithFatalHandler(func(error) {}))
	dev := open(t, ctx)
	t.Cleanup(func() { require.NoError(t, dev.Close()) })
	return &suite{ctx: ctx, dev: dev, open: open}
}

func (s *suite) stream(t *testing.T) *rhi.Stream {
	t.Helper()
	st, err := rhi.NewStream(s.dev)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// Run runs the suite against devices created by open.
func Run(t *testing.T, open Opener) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s *suite)
	}{
		{"OpTableComplete", testOpTableComplete},
		{"CreateDestroyCounters", testCreateDestroyCounters},
		{"InvalidRequests", testInvalidRequests},
		{"StreamOrdering", testStreamOrdering},
		{"AsyncHostFunction", testAsyncHostFunction},
		{"ExportImport", testExportImport},
		{"TextureRoundTrip", testTextureRoundTrip},
		{"BindlessUploadBeforeDispatch", testBindlessUploadBeforeDispatch},
		{"BindlessGrowth", testBindlessGrowth},
		{"ShaderDispatch", testShaderDispatch},
		{"AccelBounds", testAccelBounds},
		{"DriverFailure", testDriverFailure},
		{"ExternalMemory", testExternalMemory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newSuite(t, open))
		})
	}
}

func testOpTableComplete(t *testing.T, s *suite) {
	d, ok := s.dev.(interface{ Ops() *rhi.OpTable })
	require.True(t, ok, "device does not expose its op table")
	assert.Empty(t, d.Ops().Missing())
}

func testCreateDestroyCounters(t *testing.T, s *suite) {
	dev := s.dev
	stats := dev.Stats()
	vb, err := dev.CreateBuffer(36, "vertices", false)
	require.NoError(t, err)
	ib, err := dev.CreateBuffer(12, "indices", false)
	require.NoError(t, err)
	total := stats.Total()

	kinds := []struct {
		tag     rhi.Tag
		create  func() (rhi.Handle, error)
		destroy func(rhi.Handle)
	}{
		{rhi.TagBuffer, func() (rhi.Handle, error) { return dev.CreateBuffer(128, "b", false) }, dev.DestroyBuffer},
		{rhi.TagBuffer, func() (rhi.Handle, error) { return dev.CreateBuffer(128, "exported", true) }, dev.DestroyBuffer},
		{rhi.TagByteBuffer, func() (rhi.Handle, error) { return dev.MemoryAllocate(64, false) }, dev.MemoryFree},
		{rhi.TagTexture2D, func() (rhi.Handle, error) { return dev.CreateTexture2D(16, 8, rhi.PixelByte4, 0, "t2d") }, dev.DestroyTexture2D},
		{rhi.TagTexture3D, func() (rhi.Handle, error) {
			return dev.CreateTexture3D(rhi.Extent2D(4, 4), rhi.PixelFloat1, 1, "t3d")
		}, dev.DestroyTexture3D},
		{rhi.TagStream, dev.CreateStream, dev.DestroyStream},
		{rhi.TagMesh, func() (rhi.Handle, error) {
			return dev.CreateMesh(rhi.MeshParams{Vertices: vb, VertexCount: 3, Triangles: ib, TriangleCount: 1})
		}, dev.DestroyMesh},
		{rhi.TagAccel, dev.CreateAccel, dev.DestroyAccel},
		{rhi.TagBindlessArray, dev.CreateBindlessArray, dev.DestroyBindlessArray},
		{rhi.TagShader, func() (rhi.Handle, error) { return dev.CreateShader(rhi.Function{Name: "fill", Kernel: FillKernel}) }, dev.DestroyShader},
	}
	for _, k := range kinds {
		before := stats.Live(k.tag)
		h, err := k.create()
		require.NoError(t, err, "create %s", k.tag)
		assert.Equal(t, k.tag, h.Tag())
		assert.Equal(t, before+1, stats.Live(k.tag), "create %s", k.tag)
		k.destroy(h)
		assert.Equal(t, before, stats.Live(k.tag), "destroy %s", k.tag)
		// a second destroy is a logged no-op
		k.destroy(h)
		assert.Equal(t, before, stats.Live(k.tag), "double destroy %s", k.tag)
	}
	assert.Equal(t, total, stats.Total())
}

func testInvalidRequests(t *testing.T, s *suite) {
	_, err := s.dev.CreateBuffer(0, "empty", false)
	assert.ErrorIs(t, err, rhi.ErrZeroSize)
	_, err = s.dev.MemoryAllocate(0, true)
	assert.ErrorIs(t, err, rhi.ErrZeroSize)
	_, err = s.dev.CreateTexture2D(0, 16, rhi.PixelByte4, 1, "flat")
	assert.ErrorIs(t, err, rhi.ErrInvalidExtent)

	err = s.dev.Submit(rhi.MakeHandle(rhi.TagStream, 7, 1234), rhi.NewCommandList(rhi.SynchronizeCommand{}))
	assert.ErrorIs(t, err, rhi.ErrInvalidHandle)

	tex, err := s.dev.CreateTexture2D(1024, 3, rhi.PixelByte1, 0, "levels")
	require.NoError(t, err)
	info, ok := s.dev.TextureInfo(tex)
	require.True(t, ok)
	assert.Equal(t, uint32(11), info.Levels)
	assert.Equal(t, rhi.DefaultSampler, info.Sampler)
	s.dev.DestroyTexture2D(tex)
}

func testStreamOrdering(t *testing.T, s *suite) {
	st := s.stream(t)
	buf, err := s.dev.CreateBuffer(8, "ordered", false)
	require.NoError(t, err)
	defer s.dev.DestroyBuffer(buf)
	tmp, err := s.dev.CreateBuffer(8, "tmp", false)
	require.NoError(t, err)
	defer s.dev.DestroyBuffer(tmp)

	var (
		mu    sync.Mutex
		order []string
	)
	mark := func(name string) rhi.Command {
		return rhi.HostFunctionCommand{Async: true, Fn: func() {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}}
	}

	got := make([]byte, 8)
	st.Add(
		rhi.BufferUploadCommand{Buffer: buf, Data: []byte{1, 2, 3, 4, 5, 6, 7, 8}, Async: true},
		mark("A"),
		rhi.BufferCopyCommand{Src: buf, Dst: tmp, Size: 8, Async: true},
		mark("B"),
		rhi.BufferByteSetCommand{Buffer: tmp, Offset: 4, Size: 4, Value: 0xee, Async: true},
		mark("C"),
		rhi.BufferDownloadCommand{Buffer: tmp, Data: got, Async: true},
	)
	require.NoError(t, st.Synchronize())

	mu.Lock()
	assert.Equal(t, []string{"A", "B", "C"}, order)
	mu.Unlock()
	assert.Equal(t, []byte{1, 2, 3, 4, 0xee, 0xee, 0xee, 0xee}, got)

	// work added after the synchronize point is not observed
	st.Add(mark("D"))
	mu.Lock()
	assert.Len(t, order, 3)
	mu.Unlock()
	require.NoError(t, st.Synchronize())
	mu.Lock()
	assert.Equal(t, []string{"A", "B", "C", "D"}, order)
	mu.Unlock()
}

func testAsyncHostFunction(t *testing.T, s *suite) {
	st := s.stream(t)
	release := make(chan struct{})
	ran := make(chan struct{})
	st.Add(rhi.HostFunctionCommand{Async: true, Fn: func() {
		<-release
		close(ran)
	}})
	// an all-async submission returns without waiting for completion
	require.NoError(t, st.Commit())
	close(release)
	require.NoError(t, st.Synchronize())
	select {
	case <-ran:
	default:
		t.Fatal("host function had not run at the synchronize point")
	}
}

func testExportImport(t *testing.T, s *suite) {
	const size = 1000
	gran := s.dev.Info().ExportGranularity
	require.NotZero(t, gran)

	h, err := s.dev.MemoryAllocate(size, true)
	require.NoError(t, err)
	assert.Equal(t, (size+gran-1)/gran*gran, s.dev.AlignedMemorySize(h))

	native, err := s.dev.ExportHandle(h)
	require.NoError(t, err)

	plain, err := s.dev.MemoryAllocate(size, false)
	require.NoError(t, err)
	_, err = s.dev.ExportHandle(plain)
	assert.ErrorIs(t, err, rhi.ErrNotExported)
	s.dev.MemoryFree(plain)

	// a second device from the same Context imports the allocation
	other := s.open(t, s.ctx)
	defer func() { require.NoError(t, other.Close()) }()

	_, err = other.ImportHandle(native, size+gran)
	assert.ErrorIs(t, err, rhi.ErrSizeMismatch)
	_, err = other.ImportHandle(native^0xdead0000, size)
	assert.ErrorIs(t, err, rhi.ErrUnknownShareable)

	imp, err := other.ImportHandle(native, size)
	require.NoError(t, err)

	payload := bytes.Repeat([]byte("rhi!"), size/4)
	s.dev.Dispatcher().Dispatch(rhi.BufferUploadCommand{Buffer: h, Data: payload})
	got := make([]byte, size)
	other.Dispatcher().Dispatch(rhi.BufferDownloadCommand{Buffer: imp, Data: got})
	assert.Equal(t, payload, got)

	// and writes flow back
	other.Dispatcher().Dispatch(rhi.BufferByteSetCommand{Buffer: imp, Size: 4, Value: 'x'})
	s.dev.Dispatcher().Dispatch(rhi.BufferDownloadCommand{Buffer: h, Data: got})
	assert.Equal(t, "xxxx", string(got[:4]))

	other.MemoryFree(imp)
	s.dev.MemoryFree(h)
	_, err = s.dev.ExportHandle(h)
	assert.ErrorIs(t, err, rhi.ErrNotExported)
	assert.Zero(t, s.ctx.Shared().Len())
}

func testTextureRoundTrip(t *testing.T, s *suite) {
	const w, h = 256, 256
	st := s.stream(t)
	tex, err := s.dev.CreateTexture2D(w, h, rhi.PixelByte4, 1, "solid")
	require.NoError(t, err)
	defer s.dev.DestroyTexture2D(tex)
	info, ok := s.dev.TextureInfo(tex)
	require.True(t, ok)

	src := bytes.Repeat([]byte{0x20, 0x80, 0xc0, 0xff}, w*h)
	staging, err := s.dev.CreateBuffer(uint64(len(src)), "staging", false)
	require.NoError(t, err)
	defer s.dev.DestroyBuffer(staging)

	got := make([]byte, len(src))
	st.Add(
		rhi.BufferUploadCommand{Buffer: staging, Data: src},
		rhi.BufferToTextureCommand{Buffer: staging, Texture: tex, Size: info.Size, Storage: info.Storage},
		info.Download(got, false),
	)
	require.NoError(t, st.Commit())
	assert.True(t, bytes.Equal(src, got), "downloaded texels differ")

	// direct upload and texture-to-texture copy
	cp, err := s.dev.CreateTexture2D(w, h, rhi.PixelByte4, 1, "copy")
	require.NoError(t, err)
	defer s.dev.DestroyTexture2D(cp)
	src[0] = 0x01
	clear(got)
	st.Add(
		info.Upload(src, true),
		rhi.TextureCopyCommand{Src: tex, Dst: cp, Size: info.Size, Storage: info.Storage, Async: true},
		rhi.TextureDownloadCommand{Texture: cp, Size: info.Size, Storage: info.Storage, Data: got},
	)
	require.NoError(t, st.Commit())
	assert.True(t, bytes.Equal(src, got), "copied texels differ")
}

func copyKernel(arr rhi.Handle, out rhi.Handle) rhi.Kernel {
	return func(inv rhi.Invocation) {
		i := inv.ID()[0]
		src := inv.BindlessBuffer(arr, i)
		dst := inv.Buffer(out)
		if len(src) > 0 {
			dst[i] = src[0]
		}
	}
}

func testBindlessUploadBeforeDispatch(t *testing.T, s *suite) {
	st := s.stream(t)
	arr, err := bindless.New(s.dev, bindless.WithInitialCapacity(4))
	require.NoError(t, err)
	defer arr.Close()

	data, err := s.dev.CreateBuffer(2, "data", false)
	require.NoError(t, err)
	defer s.dev.DestroyBuffer(data)
	out, err := s.dev.CreateBuffer(4, "out", false)
	require.NoError(t, err)
	defer s.dev.DestroyBuffer(out)

	sh, err := s.dev.CreateShader(rhi.Function{Name: "copy", Kernel: copyKernel(arr.Handle(), out)})
	require.NoError(t, err)
	defer s.dev.DestroyShader(sh)

	idx, err := arr.EmplaceBuffer(bindless.ByteBufferDesc{Buffer: data, Offset: 1, Size: 1})
	require.NoError(t, err)
	require.Equal(t, uint32(0), idx)

	got := make([]byte, 4)
	dispatch := rhi.ShaderDispatchCommand{Shader: sh, Dim: [3]uint32{4, 1, 1}}

	// without the upload the mirror still holds an empty slot
	st.Add(
		rhi.BufferUploadCommand{Buffer: data, Data: []byte{7, 42}},
		dispatch,
		rhi.BufferDownloadCommand{Buffer: out, Data: got},
	)
	require.NoError(t, st.Commit())
	assert.Equal(t, []byte{0, 0, 0, 0}, got)

	st.AddList(arr.UpdateSlotSOA(false))
	st.Add(arr.UploadBufferHandles(false), dispatch, rhi.BufferDownloadCommand{Buffer: out, Data: got})
	require.NoError(t, st.Commit())
	assert.Equal(t, []byte{42, 0, 0, 0}, got)
}

func testBindlessGrowth(t *testing.T, s *suite) {
	st := s.stream(t)
	arr, err := bindless.New(s.dev, bindless.WithInitialCapacity(1))
	require.NoError(t, err)
	defer arr.Close()
	out, err := s.dev.CreateBuffer(4, "out", false)
	require.NoError(t, err)
	defer s.dev.DestroyBuffer(out)

	for i := byte(0); i < 3; i++ {
		b, err := s.dev.CreateBuffer(1, "slot", false)
		require.NoError(t, err)
		defer s.dev.DestroyBuffer(b)
		s.dev.Dispatcher().Dispatch(rhi.BufferUploadCommand{Buffer: b, Data: []byte{10 + i}})
		_, err = arr.EmplaceBuffer(bindless.ByteBufferDesc{Buffer: b, Size: 1})
		require.NoError(t, err)
	}
	before := arr.UpdateSlotSOA(true)
	require.False(t, before.Empty())
	var reallocs int
	for _, c := range before.Commands() {
		if c.Type() == rhi.CmdBufferReallocate {
			reallocs++
		}
	}
	assert.Equal(t, 1, reallocs)
	assert.True(t, arr.UpdateSlotSOA(true).Empty())

	sh, err := s.dev.CreateShader(rhi.Function{Name: "copy", Kernel: copyKernel(arr.Handle(), out)})
	require.NoError(t, err)
	defer s.dev.DestroyShader(sh)

	got := make([]byte, 4)
	st.AddList(before)
	st.Add(
		arr.UploadBufferHandles(true),
		rhi.ShaderDispatchCommand{Shader: sh, Dim: [3]uint32{4, 1, 1}, Async: true},
		rhi.BufferDownloadCommand{Buffer: out, Data: got},
	)
	require.NoError(t, st.Commit())
	assert.Equal(t, []byte{10, 11, 12, 0}, got)
}

func testShaderDispatch(t *testing.T, s *suite) {
	const n = 256
	st := s.stream(t)
	buf, err := s.dev.CreateBuffer(n*4, "fill", false)
	require.NoError(t, err)
	defer s.dev.DestroyBuffer(buf)

	sh, err := s.dev.CreateShader(rhi.Function{Name: "fill", Source: FillSource, EntryPoint: "fill", Kernel: FillKernel})
	require.NoError(t, err)
	defer s.dev.DestroyShader(sh)

	got := make([]byte, n*4)
	st.Add(
		rhi.ShaderDispatchCommand{Shader: sh, Args: []rhi.Handle{buf}, Dim: [3]uint32{n, 1, 1}},
		rhi.BufferDownloadCommand{Buffer: buf, Data: got},
	)
	require.NoError(t, st.Commit())
	for i := uint32(0); i < n; i++ {
		require.Equal(t, i*2, binary.LittleEndian.Uint32(got[i*4:]), "element %d", i)
	}

	_, err = s.dev.CreateShader(rhi.Function{Name: "broken", Source: "fn (", Kernel: FillKernel})
	assert.Error(t, err)
}

func testAccelBounds(t *testing.T, s *suite) {
	st := s.stream(t)
	vb, err := s.dev.CreateBuffer(36, "vb", false)
	require.NoError(t, err)
	defer s.dev.DestroyBuffer(vb)
	ib, err := s.dev.CreateBuffer(12, "ib", false)
	require.NoError(t, err)
	defer s.dev.DestroyBuffer(ib)

	verts := make([]byte, 36)
	for i, v := range []float32{-1, 0, 0, 1, 0, 0, 0, 1, 0} {
		binary.LittleEndian.PutUint32(verts[i*4:], math.Float32bits(v))
	}
	idx := []byte{0, 0, 0, 0, 1, 0, 0, 0, 2, 0, 0, 0}

	mesh, err := s.dev.CreateMesh(rhi.MeshParams{Vertices: vb, VertexCount: 3, Triangles: ib, TriangleCount: 1})
	require.NoError(t, err)
	defer s.dev.DestroyMesh(mesh)
	accel, err := s.dev.CreateAccel()
	require.NoError(t, err)
	defer s.dev.DestroyAccel(accel)

	_, ok := s.dev.Bounds(mesh)
	assert.False(t, ok, "bounds before build")

	st.Add(
		rhi.BufferUploadCommand{Buffer: vb, Data: verts, Async: true},
		rhi.BufferUploadCommand{Buffer: ib, Data: idx, Async: true},
		rhi.BLASBuildCommand{Mesh: mesh, Async: true},
		rhi.TLASBuildCommand{Accel: accel, Instances: []rhi.Instance{
			{Mesh: mesh, Transform: rhi.IdentityTransform()},
			{Mesh: mesh, Transform: rhi.Translation(0, 0, -4)},
		}},
	)
	require.NoError(t, st.Commit())

	b, ok := s.dev.Bounds(mesh)
	require.True(t, ok)
	assert.Equal(t, rhi.AABB{Min: [3]float32{-1, 0, 0}, Max: [3]float32{1, 1, 0}}, b)
	b, ok = s.dev.Bounds(accel)
	require.True(t, ok)
	assert.Equal(t, rhi.AABB{Min: [3]float32{-1, 0, -4}, Max: [3]float32{1, 1, 0}}, b)

	st.Add(rhi.TLASUpdateCommand{Accel: accel, Transforms: []rhi.Transform{rhi.Translation(2, 0, 0), rhi.IdentityTransform()}})
	require.NoError(t, st.Synchronize())
	b, _ = s.dev.Bounds(accel)
	assert.Equal(t, rhi.AABB{Min: [3]float32{-1, 0, 0}, Max: [3]float32{3, 1, 0}}, b)

	s.dev.InitRTX()
}

func testDriverFailure(t *testing.T, s *suite) {
	st := s.stream(t)
	buf, err := s.dev.CreateBuffer(4, "tiny", false)
	require.NoError(t, err)
	defer s.dev.DestroyBuffer(buf)

	st.Add(rhi.BufferUploadCommand{Buffer: buf, Offset: 2, Data: []byte{1, 2, 3, 4}})
	err = st.Commit()
	var de *rhi.DriverError
	require.True(t, errors.As(err, &de), "got %v", err)
	assert.Equal(t, rhi.CodeInvalidValue, de.Code)
	assert.Equal(t, s.dev.Name(), de.Backend)

	// the stream keeps working after a reported failure
	st.Add(rhi.BufferUploadCommand{Buffer: buf, Data: []byte{1, 2, 3, 4}})
	require.NoError(t, st.Synchronize())
}

func testExternalMemory(t *testing.T, s *suite) {
	mem := make([]byte, 16)
	h, err := s.dev.MapExternal(rhi.ExternalResource{Name: 3, Kind: rhi.ExternalBuffer, Memory: mem})
	require.NoError(t, err)
	s.dev.Dispatcher().Dispatch(rhi.BufferUploadCommand{Buffer: h, Offset: 8, Data: []byte{9, 9}})
	assert.Equal(t, byte(9), mem[9])
	s.dev.UnmapExternal(h)
	s.dev.UnmapExternal(h)

	_, err = s.dev.MapExternal(rhi.ExternalResource{Kind: rhi.ExternalTexture, Width: 4, Height: 4, Storage: rhi.PixelByte4, Memory: mem})
	assert.ErrorIs(t, err, rhi.ErrSizeMismatch)
}
