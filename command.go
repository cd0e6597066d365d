package rhi

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// CommandType identifies the kind of a Command.
type CommandType uint8

const (
	// Buffer commands
	CmdBufferUpload     CommandType = iota // Host to buffer
	CmdBufferDownload                      // Buffer to host
	CmdBufferByteSet                       // Fill a buffer range with one byte
	CmdBufferCopy                          // Buffer to buffer
	CmdBufferReallocate                    // Resize a buffer, preserving contents

	// Texture commands
	CmdTextureUpload   // Host to texture level
	CmdTextureDownload // Texture level to host
	CmdTextureCopy     // Texture to texture
	CmdBufferToTexture // Buffer to texture level
	CmdTextureToBuffer // Texture level to buffer

	// Acceleration structure commands
	CmdBLASBuild  // Build mesh bounds
	CmdTLASBuild  // Build instance bounds
	CmdTLASUpdate // Refit instance transforms

	// Execution commands
	CmdShaderDispatch // Run a kernel over a grid
	CmdHostFunction   // Call a host function in stream order
	CmdSynchronize    // Wait for all earlier commands

	numCommandTypes
)

var commandTypeNames = [...]string{
	CmdBufferUpload:     "BufferUpload",
	CmdBufferDownload:   "BufferDownload",
	CmdBufferByteSet:    "BufferByteSet",
	CmdBufferCopy:       "BufferCopy",
	CmdBufferReallocate: "BufferReallocate",
	CmdTextureUpload:    "TextureUpload",
	CmdTextureDownload:  "TextureDownload",
	CmdTextureCopy:      "TextureCopy",
	CmdBufferToTexture:  "BufferToTexture",
	CmdTextureToBuffer:  "TextureToBuffer",
	CmdBLASBuild:        "BLASBuild",
	CmdTLASBuild:        "TLASBuild",
	CmdTLASUpdate:       "TLASUpdate",
	CmdShaderDispatch:   "ShaderDispatch",
	CmdHostFunction:     "HostFunction",
	CmdSynchronize:      "Synchronize",
}

// String returns the name of the command type.
func (t CommandType) String() string {
	if int(t) < len(commandTypeNames) {
		return commandTypeNames[t]
	}
	return fmt.Sprintf("CommandType(%d)", t)
}

// CommandTypes returns every command type in declaration order.
func CommandTypes() []CommandType {
	types := make([]CommandType, numCommandTypes)
	for i := range types {
		types[i] = CommandType(i)
	}
	return types
}

// Command describes one device operation. Commands are immutable values
// that reference resources by Handle and never carry backend types.
//
// An async command returns to the host as soon as it is enqueued; a
// blocking command returns once the device has completed it. Commands on
// one stream always execute in submission order.
type Command interface {
	Type() CommandType
	IsAsync() bool
}

// BufferUploadCommand copies Data into Buffer at Offset.
// Data must stay unmodified until the command has executed.
type BufferUploadCommand struct {
	Buffer Handle
	Offset uint64
	Data   []byte
	Async  bool
}

func (BufferUploadCommand) Type() CommandType { return CmdBufferUpload }
func (c BufferUploadCommand) IsAsync() bool   { return c.Async }

// BufferDownloadCommand copies len(Data) bytes from Buffer at Offset into Data.
type BufferDownloadCommand struct {
	Buffer Handle
	Offset uint64
	Data   []byte
	Async  bool
}

func (BufferDownloadCommand) Type() CommandType { return CmdBufferDownload }
func (c BufferDownloadCommand) IsAsync() bool   { return c.Async }

// BufferByteSetCommand fills Size bytes of Buffer at Offset with Value.
type BufferByteSetCommand struct {
	Buffer Handle
	Offset uint64
	Size   uint64
	Value  byte
	Async  bool
}

func (BufferByteSetCommand) Type() CommandType { return CmdBufferByteSet }
func (c BufferByteSetCommand) IsAsync() bool   { return c.Async }

// BufferCopyCommand copies Size bytes between two buffers.
type BufferCopyCommand struct {
	Src       Handle
	Dst       Handle
	SrcOffset uint64
	DstOffset uint64
	Size      uint64
	Async     bool
}

func (BufferCopyCommand) Type() CommandType { return CmdBufferCopy }
func (c BufferCopyCommand) IsAsync() bool   { return c.Async }

// BufferReallocateCommand resizes Buffer to Size bytes. The common prefix
// of the old contents is preserved and the device address changes.
type BufferReallocateCommand struct {
	Buffer Handle
	Size   uint64
	Async  bool
}

func (BufferReallocateCommand) Type() CommandType { return CmdBufferReallocate }
func (c BufferReallocateCommand) IsAsync() bool   { return c.Async }

// TextureUploadCommand writes tightly packed texels into one texture level.
// Size and Storage must match the level.
type TextureUploadCommand struct {
	Texture Handle
	Level   uint32
	Size    gputypes.Extent3D
	Storage PixelStorage
	Data    []byte
	Async   bool
}

func (TextureUploadCommand) Type() CommandType { return CmdTextureUpload }
func (c TextureUploadCommand) IsAsync() bool   { return c.Async }

// TextureDownloadCommand reads one texture level into Data.
type TextureDownloadCommand struct {
	Texture Handle
	Level   uint32
	Size    gputypes.Extent3D
	Storage PixelStorage
	Data    []byte
	Async   bool
}

func (TextureDownloadCommand) Type() CommandType { return CmdTextureDownload }
func (c TextureDownloadCommand) IsAsync() bool   { return c.Async }

// TextureCopyCommand copies one level of Src into one level of Dst.
type TextureCopyCommand struct {
	Src      Handle
	Dst      Handle
	SrcLevel uint32
	DstLevel uint32
	Size     gputypes.Extent3D
	Storage  PixelStorage
	Async    bool
}

func (TextureCopyCommand) Type() CommandType { return CmdTextureCopy }
func (c TextureCopyCommand) IsAsync() bool   { return c.Async }

// BufferToTextureCommand copies tightly packed texels from a buffer into a texture level.
type BufferToTextureCommand struct {
	Buffer       Handle
	BufferOffset uint64
	Texture      Handle
	Level        uint32
	Size         gputypes.Extent3D
	Storage      PixelStorage
	Async        bool
}

func (BufferToTextureCommand) Type() CommandType { return CmdBufferToTexture }
func (c BufferToTextureCommand) IsAsync() bool   { return c.Async }

// TextureToBufferCommand copies a texture level into a buffer.
type TextureToBufferCommand struct {
	Texture      Handle
	Level        uint32
	Buffer       Handle
	BufferOffset uint64
	Size         gputypes.Extent3D
	Storage      PixelStorage
	Async        bool
}

func (TextureToBufferCommand) Type() CommandType { return CmdTextureToBuffer }
func (c TextureToBufferCommand) IsAsync() bool   { return c.Async }

// BLASBuildCommand builds the bottom-level structure of a mesh.
type BLASBuildCommand struct {
	Mesh  Handle
	Async bool
}

func (BLASBuildCommand) Type() CommandType { return CmdBLASBuild }
func (c BLASBuildCommand) IsAsync() bool   { return c.Async }

// TLASBuildCommand builds a top-level structure over instances.
// Every referenced mesh must have been built.
type TLASBuildCommand struct {
	Accel     Handle
	Instances []Instance
	Async     bool
}

func (TLASBuildCommand) Type() CommandType { return CmdTLASBuild }
func (c TLASBuildCommand) IsAsync() bool   { return c.Async }

// TLASUpdateCommand refits a built top-level structure with new instance
// transforms, one per instance in build order.
type TLASUpdateCommand struct {
	Accel      Handle
	Transforms []Transform
	Async      bool
}

func (TLASUpdateCommand) Type() CommandType { return CmdTLASUpdate }
func (c TLASUpdateCommand) IsAsync() bool   { return c.Async }

// ShaderDispatchCommand runs a shader once per index of Dim.
type ShaderDispatchCommand struct {
	Shader   Handle
	Args     []Handle
	Uniforms []byte
	Dim      [3]uint32
	Async    bool
}

func (ShaderDispatchCommand) Type() CommandType { return CmdShaderDispatch }
func (c ShaderDispatchCommand) IsAsync() bool   { return c.Async }

// HostFunctionCommand calls Fn at its position in the stream. An async
// host function may run concurrently with further host code.
type HostFunctionCommand struct {
	Fn    func()
	Async bool
}

func (HostFunctionCommand) Type() CommandType { return CmdHostFunction }
func (c HostFunctionCommand) IsAsync() bool   { return c.Async }

// SynchronizeCommand blocks the issuing goroutine until every earlier
// command on the stream has completed.
type SynchronizeCommand struct{}

func (SynchronizeCommand) Type() CommandType { return CmdSynchronize }
func (SynchronizeCommand) IsAsync() bool     { return false }
