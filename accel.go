package rhi

import "math"

// MeshParams describes triangle geometry for a bottom-level structure.
// Vertices hold float32 x, y, z at the start of every VertexStride bytes.
// Triangles hold three uint32 vertex indices each.
type MeshParams struct {
	Vertices      Handle
	VertexStride  uint32
	VertexCount   uint32
	Triangles     Handle
	TriangleCount uint32
}

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min [3]float32
	Max [3]float32
}

// EmptyAABB returns a box that contains nothing and absorbs any point.
func EmptyAABB() AABB {
	inf := float32(math.Inf(1))
	return AABB{
		Min: [3]float32{inf, inf, inf},
		Max: [3]float32{-inf, -inf, -inf},
	}
}

// IsEmpty reports whether the box contains no points.
func (b AABB) IsEmpty() bool {
	return b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] || b.Min[2] > b.Max[2]
}

// Extend grows the box to include p.
func (b AABB) Extend(p [3]float32) AABB {
	for i := range 3 {
		b.Min[i] = min(b.Min[i], p[i])
		b.Max[i] = max(b.Max[i], p[i])
	}
	return b
}

// Union returns the smallest box containing b and o.
func (b AABB) Union(o AABB) AABB {
	if o.IsEmpty() {
		return b
	}
	return b.Extend(o.Min).Extend(o.Max)
}

// Transform is a row-major 3x4 affine matrix.
type Transform [12]float32

// IdentityTransform returns the identity transform.
func IdentityTransform() Transform {
	return Transform{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0}
}

// Translation returns a transform that moves points by (x, y, z).
func Translation(x, y, z float32) Transform {
	return Transform{1, 0, 0, x, 0, 1, 0, y, 0, 0, 1, z}
}

// Apply transforms a point.
func (m Transform) Apply(p [3]float32) [3]float32 {
	return [3]float32{
		m[0]*p[0] + m[1]*p[1] + m[2]*p[2] + m[3],
		m[4]*p[0] + m[5]*p[1] + m[6]*p[2] + m[7],
		m[8]*p[0] + m[9]*p[1] + m[10]*p[2] + m[11],
	}
}

// ApplyAABB returns the bounds of the eight transformed corners of b.
func (m Transform) ApplyAABB(b AABB) AABB {
	if b.IsEmpty() {
		return b
	}
	out := EmptyAABB()
	for i := range 8 {
		corner := [3]float32{b.Min[0], b.Min[1], b.Min[2]}
		if i&1 != 0 {
			corner[0] = b.Max[0]
		}
		if i&2 != 0 {
			corner[1] = b.Max[1]
		}
		if i&4 != 0 {
			corner[2] = b.Max[2]
		}
		out = out.Extend(m.Apply(corner))
	}
	return out
}

// Instance places a mesh in a top-level structure.
type Instance struct {
	Mesh      Handle
	Transform Transform
}
