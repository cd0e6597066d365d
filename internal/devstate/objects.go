package devstate

import (
	"fmt"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/shader"
)

// defaultVertexStride is three packed float32 coordinates.
const defaultVertexStride = 12

// CreateMesh registers triangle geometry. The vertex and index buffers
// must be live; bounds are computed by the first BLAS build.
func (s *Store) CreateMesh(params rhi.MeshParams) (rhi.Handle, error) {
	if params.VertexStride == 0 {
		params.VertexStride = defaultVertexStride
	}
	if params.VertexStride < defaultVertexStride {
		return rhi.InvalidHandle, fmt.Errorf("create mesh: vertex stride %d below %d", params.VertexStride, defaultVertexStride)
	}
	if params.VertexCount == 0 || params.TriangleCount == 0 {
		return rhi.InvalidHandle, fmt.Errorf("create mesh: %w", rhi.ErrZeroSize)
	}
	if _, ok := s.memory.Get(params.Vertices); !ok {
		return rhi.InvalidHandle, fmt.Errorf("create mesh: vertices %v: %w", params.Vertices, rhi.ErrInvalidHandle)
	}
	if _, ok := s.memory.Get(params.Triangles); !ok {
		return rhi.InvalidHandle, fmt.Errorf("create mesh: triangles %v: %w", params.Triangles, rhi.ErrInvalidHandle)
	}
	h := s.meshes.Insert(rhi.TagMesh, &Mesh{Params: params, Bounds: rhi.EmptyAABB()})
	s.stats.OnAllocate(h, 0, "")
	return h, nil
}

// DestroyMesh releases a mesh.
func (s *Store) DestroyMesh(h rhi.Handle) {
	if _, ok := s.meshes.Remove(h); !ok {
		s.ignored("destroy_mesh", h)
		return
	}
	s.stats.OnFree(h)
}

// CreateAccel registers an empty top-level structure.
func (s *Store) CreateAccel() (rhi.Handle, error) {
	h := s.accels.Insert(rhi.TagAccel, &Accel{Bounds: rhi.EmptyAABB()})
	s.stats.OnAllocate(h, 0, "")
	return h, nil
}

// DestroyAccel releases an accel.
func (s *Store) DestroyAccel(h rhi.Handle) {
	if _, ok := s.accels.Remove(h); !ok {
		s.ignored("destroy_accel", h)
		return
	}
	s.stats.OnFree(h)
}

// Bounds returns the bounds of the last build of a mesh or accel.
func (s *Store) Bounds(h rhi.Handle) (rhi.AABB, bool) {
	switch h.Tag() {
	case rhi.TagMesh:
		if m, ok := s.meshes.Get(h); ok && m.Built {
			return m.Bounds, true
		}
	case rhi.TagAccel:
		if a, ok := s.accels.Get(h); ok && a.Built {
			return a.Bounds, true
		}
	}
	return rhi.AABB{}, false
}

// CreateBindlessArray registers an empty slot table.
func (s *Store) CreateBindlessArray() (rhi.Handle, error) {
	h := s.bindless.Insert(rhi.TagBindlessArray, &Bindless{})
	s.stats.OnAllocate(h, 0, "")
	return h, nil
}

// DestroyBindlessArray releases a slot table. The mirrors it points at are
// owned by the caller.
func (s *Store) DestroyBindlessArray(h rhi.Handle) {
	if _, ok := s.bindless.Remove(h); !ok {
		s.ignored("destroy_bindless_array", h)
		return
	}
	s.stats.OnFree(h)
}

// UpdateBindlessSlots replaces the slot table of a bindless array.
func (s *Store) UpdateBindlessSlots(h rhi.Handle, slots rhi.SlotSOA) {
	if !s.bindless.Replace(h, &Bindless{Slots: slots}) {
		s.ignored("update_bindless_slots", h)
	}
}

// BindlessSlots returns the slot table of a bindless array.
func (s *Store) BindlessSlots(h rhi.Handle) (rhi.SlotSOA, bool) {
	b, ok := s.bindless.Get(h)
	if !ok {
		return rhi.SlotSOA{}, false
	}
	return b.Slots, true
}

// AddShader registers a compiled function. native is the backend's module
// object, released by the backend on destroy.
func (s *Store) AddShader(fn rhi.Function, prog *shader.Program, native any) rhi.Handle {
	h := s.shaders.Insert(rhi.TagShader, &Shader{Fn: fn, Program: prog, Native: native})
	s.stats.OnAllocate(h, 0, fn.Name)
	return h
}

// RemoveShader unregisters a shader and returns it for native cleanup.
func (s *Store) RemoveShader(h rhi.Handle) (*Shader, bool) {
	sh, ok := s.shaders.Remove(h)
	if !ok {
		s.ignored("destroy_shader", h)
		return nil, false
	}
	s.stats.OnFree(h)
	return sh, true
}

// Shader returns the shader behind h.
func (s *Store) Shader(h rhi.Handle) (*Shader, bool) {
	return s.shaders.Get(h)
}

// RangeShaders calls fn for every live shader.
func (s *Store) RangeShaders(fn func(rhi.Handle, *Shader) bool) {
	s.shaders.Range(fn)
}
