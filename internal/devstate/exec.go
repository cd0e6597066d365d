package devstate

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/internal/texel"
)

// The routines below are the native side of each command kind. They take
// the driver-context guard themselves. Invalid handles and out-of-range
// accesses are driver failures and go through Fatal.

func (s *Store) buffer(op string, h rhi.Handle) *Buffer {
	b, ok := s.memory.Get(h)
	if !ok {
		s.Fatal(op, rhi.CodeInvalidHandle, "buffer %v is not live", h)
	}
	return b
}

func (s *Store) bufferRange(op string, h rhi.Handle, offset, n uint64) []byte {
	b := s.buffer(op, h)
	if offset > b.Size || n > b.Size-offset {
		s.Fatal(op, rhi.CodeInvalidValue, "range [%d, %d) outside %v of %d bytes", offset, offset+n, h, b.Size)
	}
	return b.Bytes()[offset : offset+n]
}

func (s *Store) texture(op string, h rhi.Handle) *Texture {
	t, ok := s.textures.Get(h)
	if !ok {
		s.Fatal(op, rhi.CodeInvalidHandle, "texture %v is not live", h)
	}
	return t
}

func (s *Store) textureLevel(op string, h rhi.Handle, level uint32, size gputypes.Extent3D, storage rhi.PixelStorage) []byte {
	t := s.texture(op, h)
	if err := texel.CheckCopy(t.Info, level, size, storage); err != nil {
		s.Fatal(op, rhi.CodeInvalidValue, "%v: %v", h, err)
	}
	off, n := texel.Region(t.Info.Size, t.Info.Storage, level)
	return t.Block.Mem[off : off+n]
}

// UploadBuffer copies host data into a buffer.
func (s *Store) UploadBuffer(c rhi.BufferUploadCommand) {
	defer s.guard.Enter()()
	copy(s.bufferRange("buffer_upload", c.Buffer, c.Offset, uint64(len(c.Data))), c.Data)
}

// DownloadBuffer copies buffer contents into host memory.
func (s *Store) DownloadBuffer(c rhi.BufferDownloadCommand) {
	defer s.guard.Enter()()
	copy(c.Data, s.bufferRange("buffer_download", c.Buffer, c.Offset, uint64(len(c.Data))))
}

// ByteSet fills a buffer range with one value.
func (s *Store) ByteSet(c rhi.BufferByteSetCommand) {
	defer s.guard.Enter()()
	dst := s.bufferRange("buffer_byte_set", c.Buffer, c.Offset, c.Size)
	for i := range dst {
		dst[i] = c.Value
	}
}

// CopyBuffer copies between two buffer ranges.
func (s *Store) CopyBuffer(c rhi.BufferCopyCommand) {
	defer s.guard.Enter()()
	src := s.bufferRange("buffer_copy", c.Src, c.SrcOffset, c.Size)
	dst := s.bufferRange("buffer_copy", c.Dst, c.DstOffset, c.Size)
	copy(dst, src)
}

// Reallocate moves a buffer to a new allocation of the requested size,
// keeping its handle. The common prefix is preserved and the rest is zero.
func (s *Store) Reallocate(c rhi.BufferReallocateCommand) {
	if c.Size == 0 {
		s.Fatal("buffer_reallocate", rhi.CodeInvalidValue, "zero size for %v", c.Buffer)
	}
	defer s.guard.Enter()()
	old := s.buffer("buffer_reallocate", c.Buffer)
	if old.Exported || old.External {
		s.Fatal("buffer_reallocate", rhi.CodeNotSupported, "%v is shared and cannot move", c.Buffer)
	}
	blk, err := s.space.Alloc(c.Size)
	if err != nil {
		s.Fatal("buffer_reallocate", rhi.CodeOutOfMemory, "%d bytes: %v", c.Size, err)
	}
	nb := &Buffer{Block: blk, Size: c.Size, Label: old.Label}
	copy(nb.Bytes(), old.Bytes())
	s.memory.Replace(c.Buffer, nb)
	s.space.Free(old.Block.Addr)
	s.stats.OnResize(c.Buffer, c.Size)
	s.hooks.BufferResized(c.Buffer, nb)
}

// UploadTexture copies host texels into one mip level.
func (s *Store) UploadTexture(c rhi.TextureUploadCommand) {
	defer s.guard.Enter()()
	dst := s.textureLevel("texture_upload", c.Texture, c.Level, c.Size, c.Storage)
	if len(c.Data) < len(dst) {
		s.Fatal("texture_upload", rhi.CodeInvalidValue, "%d bytes for a %d byte level", len(c.Data), len(dst))
	}
	copy(dst, c.Data)
}

// DownloadTexture copies one mip level into host memory.
func (s *Store) DownloadTexture(c rhi.TextureDownloadCommand) {
	defer s.guard.Enter()()
	src := s.textureLevel("texture_download", c.Texture, c.Level, c.Size, c.Storage)
	if len(c.Data) < len(src) {
		s.Fatal("texture_download", rhi.CodeInvalidValue, "%d bytes for a %d byte level", len(c.Data), len(src))
	}
	copy(c.Data, src)
}

// CopyTexture copies one mip level between textures.
func (s *Store) CopyTexture(c rhi.TextureCopyCommand) {
	defer s.guard.Enter()()
	src := s.textureLevel("texture_copy", c.Src, c.SrcLevel, c.Size, c.Storage)
	dst := s.textureLevel("texture_copy", c.Dst, c.DstLevel, c.Size, c.Storage)
	copy(dst, src)
}

// BufferToTexture copies tightly packed texels from a buffer into a level.
func (s *Store) BufferToTexture(c rhi.BufferToTextureCommand) {
	defer s.guard.Enter()()
	dst := s.textureLevel("buffer_to_texture", c.Texture, c.Level, c.Size, c.Storage)
	copy(dst, s.bufferRange("buffer_to_texture", c.Buffer, c.BufferOffset, uint64(len(dst))))
}

// TextureToBuffer copies a level into a buffer.
func (s *Store) TextureToBuffer(c rhi.TextureToBufferCommand) {
	defer s.guard.Enter()()
	src := s.textureLevel("texture_to_buffer", c.Texture, c.Level, c.Size, c.Storage)
	copy(s.bufferRange("texture_to_buffer", c.Buffer, c.BufferOffset, uint64(len(src))), src)
}

// BuildBLAS computes the bounds of a mesh from its vertex and index buffers.
func (s *Store) BuildBLAS(c rhi.BLASBuildCommand) {
	s.InitRTX()
	defer s.guard.Enter()()
	m, ok := s.meshes.Get(c.Mesh)
	if !ok {
		s.Fatal("blas_build", rhi.CodeInvalidHandle, "mesh %v is not live", c.Mesh)
	}
	p := m.Params
	verts := s.bufferRange("blas_build", p.Vertices, 0, uint64(p.VertexCount)*uint64(p.VertexStride))
	tris := s.bufferRange("blas_build", p.Triangles, 0, uint64(p.TriangleCount)*12)

	bounds := rhi.EmptyAABB()
	for i := 0; i < len(tris); i += 4 {
		idx := binary.LittleEndian.Uint32(tris[i:])
		if idx >= p.VertexCount {
			s.Fatal("blas_build", rhi.CodeInvalidValue, "index %d of %v outside %d vertices", idx, c.Mesh, p.VertexCount)
		}
		v := verts[uint64(idx)*uint64(p.VertexStride):]
		bounds = bounds.Extend([3]float32{
			math.Float32frombits(binary.LittleEndian.Uint32(v[0:])),
			math.Float32frombits(binary.LittleEndian.Uint32(v[4:])),
			math.Float32frombits(binary.LittleEndian.Uint32(v[8:])),
		})
	}
	s.meshes.Replace(c.Mesh, &Mesh{Params: p, Bounds: bounds, Built: true})
}

// BuildTLAS places built meshes into an accel.
func (s *Store) BuildTLAS(c rhi.TLASBuildCommand) {
	s.InitRTX()
	defer s.guard.Enter()()
	if _, ok := s.accels.Get(c.Accel); !ok {
		s.Fatal("tlas_build", rhi.CodeInvalidHandle, "accel %v is not live", c.Accel)
	}
	instances := append([]rhi.Instance(nil), c.Instances...)
	meshBounds := make([]rhi.AABB, len(instances))
	for i, inst := range instances {
		m, ok := s.meshes.Get(inst.Mesh)
		if !ok || !m.Built {
			s.Fatal("tlas_build", rhi.CodeInvalidValue, "instance %d: mesh %v has no built BLAS", i, inst.Mesh)
		}
		meshBounds[i] = m.Bounds
	}
	s.accels.Replace(c.Accel, &Accel{
		Instances:  instances,
		MeshBounds: meshBounds,
		Bounds:     instanceBounds(instances, meshBounds),
		Built:      true,
	})
}

// UpdateTLAS refits a built accel with new instance transforms.
func (s *Store) UpdateTLAS(c rhi.TLASUpdateCommand) {
	defer s.guard.Enter()()
	a, ok := s.accels.Get(c.Accel)
	if !ok || !a.Built {
		s.Fatal("tlas_update", rhi.CodeInvalidHandle, "accel %v is not built", c.Accel)
	}
	if len(c.Transforms) != len(a.Instances) {
		s.Fatal("tlas_update", rhi.CodeInvalidValue, "%d transforms for %d instances", len(c.Transforms), len(a.Instances))
	}
	instances := make([]rhi.Instance, len(a.Instances))
	for i, inst := range a.Instances {
		instances[i] = rhi.Instance{Mesh: inst.Mesh, Transform: c.Transforms[i]}
	}
	s.accels.Replace(c.Accel, &Accel{
		Instances:  instances,
		MeshBounds: a.MeshBounds,
		Bounds:     instanceBounds(instances, a.MeshBounds),
		Built:      true,
	})
}

func instanceBounds(instances []rhi.Instance, meshBounds []rhi.AABB) rhi.AABB {
	b := rhi.EmptyAABB()
	for i, inst := range instances {
		b = b.Union(inst.Transform.ApplyAABB(meshBounds[i]))
	}
	return b
}

// Scheduler runs body for every index in [0, total). It returns once all
// calls have returned.
type Scheduler func(total uint64, body func(i uint64))

// Sequential runs every index on the calling goroutine.
func Sequential(total uint64, body func(i uint64)) {
	for i := uint64(0); i < total; i++ {
		body(i)
	}
}

// Launch runs the host kernel of a dispatch once per index. Kernels run
// outside the guard so they can issue device queries of their own.
func (s *Store) Launch(c rhi.ShaderDispatchCommand, sched Scheduler) {
	sh, ok := s.shaders.Get(c.Shader)
	if !ok {
		s.Fatal("shader_dispatch", rhi.CodeInvalidHandle, "shader %v is not live", c.Shader)
	}
	if sh.Fn.Kernel == nil {
		s.Fatal("shader_dispatch", rhi.CodeLaunchFailed, "shader %q has no kernel", sh.Fn.Name)
	}
	total := uint64(c.Dim[0]) * uint64(c.Dim[1]) * uint64(c.Dim[2])
	if total == 0 {
		return
	}
	kernel := sh.Fn.Kernel
	sched(total, func(i uint64) {
		kernel(&invocation{store: s, cmd: &c, id: unflatten(i, c.Dim)})
	})
}

func unflatten(i uint64, dim [3]uint32) [3]uint32 {
	x := uint64(dim[0])
	xy := x * uint64(dim[1])
	// #nosec G115 -- each component is below its uint32 dimension
	return [3]uint32{uint32(i % x), uint32(i % xy / x), uint32(i / xy)}
}

// Execute runs fn and returns the driver failure it raised, if any.
// Fatal only returns when the Context's fatal handler lets it, so this is
// how workers report failures to a waiting Submit. Other panics propagate.
func Execute(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			var de *rhi.DriverError
			if e, ok := r.(error); ok && errors.As(e, &de) {
				err = e
				return
			}
			panic(r)
		}
	}()
	fn()
	return nil
}
