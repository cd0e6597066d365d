package rhi

// Function is the backend-agnostic description of a compute shader.
//
// Source is WGSL handed to the shader compiler for the device's target.
// Kernel is the host form of the same function, run once per dispatch
// index by devices without a native shader runtime.
type Function struct {
	Name       string
	Source     string
	EntryPoint string
	Kernel     Kernel
}

// Kernel is the host entry point of a Function.
type Kernel func(inv Invocation)

// Invocation is the view a kernel has of one dispatch index. All memory
// access goes through device state: bindless reads see the uploaded slot
// mirrors, not the host lists.
type Invocation interface {
	// ID returns the dispatch index of this invocation.
	ID() [3]uint32
	// Dim returns the dispatch size.
	Dim() [3]uint32
	// Args returns the resource arguments of the dispatch.
	Args() []Handle
	// Uniforms returns the uniform bytes of the dispatch.
	Uniforms() []byte

	// Buffer returns the device memory of a buffer, or nil if h is not a
	// live buffer.
	Buffer(h Handle) []byte
	// Texture returns level 0 of a texture and its description.
	Texture(h Handle) ([]byte, TextureInfo, bool)

	// BindlessBuffer returns the memory range described by the uploaded
	// buffer slot index of a bindless array.
	BindlessBuffer(array Handle, index uint32) []byte
	// BindlessTexture2D returns the texture handle in an uploaded 2D slot.
	BindlessTexture2D(array Handle, index uint32) Handle
	// BindlessTexture3D returns the texture handle in an uploaded 3D slot.
	BindlessTexture3D(array Handle, index uint32) Handle
}
