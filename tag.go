package rhi

import "fmt"

// Tag identifies the kind of resource a Handle refers to.
type Tag uint8

const (
	// TagBuffer is a labelled buffer object created by CreateBuffer.
	TagBuffer Tag = iota + 1
	// TagByteBuffer is a raw allocation created by MemoryAllocate or ImportHandle.
	TagByteBuffer
	TagTexture2D
	TagTexture3D
	TagAccel
	TagBindlessArray
	TagMesh
	TagStream
	TagShader

	tagCount
)

var tagNames = [...]string{
	TagBuffer:        "Buffer",
	TagByteBuffer:    "ByteBuffer",
	TagTexture2D:     "Texture2D",
	TagTexture3D:     "Texture3D",
	TagAccel:         "Accel",
	TagBindlessArray: "BindlessArray",
	TagMesh:          "Mesh",
	TagStream:        "Stream",
	TagShader:        "Shader",
}

// String returns the name of the tag.
func (t Tag) String() string {
	if t == 0 || t >= tagCount {
		return fmt.Sprintf("Tag(%d)", t)
	}
	return tagNames[t]
}

// Tags returns every resource tag in declaration order.
func Tags() []Tag {
	tags := make([]Tag, 0, tagCount-1)
	for t := TagBuffer; t < tagCount; t++ {
		tags = append(tags, t)
	}
	return tags
}

// IsBuffer reports whether the tag names a linear memory resource.
func (t Tag) IsBuffer() bool {
	return t == TagBuffer || t == TagByteBuffer
}

// IsTexture reports whether the tag names a texture.
func (t Tag) IsTexture() bool {
	return t == TagTexture2D || t == TagTexture3D
}
