package rhi

import "testing"

func TestAABBExtendUnion(t *testing.T) {
	b := EmptyAABB()
	if !b.IsEmpty() {
		t.Fatal("EmptyAABB should be empty")
	}
	b = b.Extend([3]float32{1, 2, 3}).Extend([3]float32{-1, 0, 5})
	want := AABB{Min: [3]float32{-1, 0, 3}, Max: [3]float32{1, 2, 5}}
	if b != want {
		t.Errorf("Extend = %+v, want %+v", b, want)
	}
	if got := b.Union(EmptyAABB()); got != b {
		t.Errorf("Union with empty = %+v, want %+v", got, b)
	}
}

func TestTransformApplyAABB(t *testing.T) {
	b := AABB{Min: [3]float32{0, 0, 0}, Max: [3]float32{1, 1, 1}}
	got := Translation(10, 0, -2).ApplyAABB(b)
	want := AABB{Min: [3]float32{10, 0, -2}, Max: [3]float32{11, 1, -1}}
	if got != want {
		t.Errorf("ApplyAABB = %+v, want %+v", got, want)
	}
	if got := IdentityTransform().ApplyAABB(b); got != b {
		t.Errorf("identity changed bounds: %+v", got)
	}
}
