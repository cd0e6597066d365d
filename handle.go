package rhi

import "fmt"

// Handle is an opaque 64-bit resource identifier.
//
// Layout: the resource Tag in the top 8 bits, a 24-bit slot generation and
// a 32-bit arena index. Generation 0 is never issued, so the zero Handle is
// always invalid.
type Handle uint64

// InvalidHandle is the zero Handle.
const InvalidHandle Handle = 0

const (
	handleIndexBits = 32
	handleGenBits   = 24
	handleGenMask   = 1<<handleGenBits - 1
	handleTagShift  = handleIndexBits + handleGenBits
)

// MakeHandle packs a tag, generation and index into a Handle.
// Generations wider than 24 bits are truncated.
func MakeHandle(tag Tag, gen uint32, index uint32) Handle {
	return Handle(uint64(tag)<<handleTagShift |
		uint64(gen&handleGenMask)<<handleIndexBits |
		uint64(index))
}

// Tag returns the resource kind encoded in the handle.
func (h Handle) Tag() Tag { return Tag(h >> handleTagShift) }

// Generation returns the slot generation encoded in the handle.
func (h Handle) Generation() uint32 {
	return uint32(h>>handleIndexBits) & handleGenMask
}

// Index returns the arena index encoded in the handle.
func (h Handle) Index() uint32 { return uint32(h) }

// IsValid reports whether the handle carries a known tag and a non-zero
// generation. It does not check that the resource is still alive.
func (h Handle) IsValid() bool {
	t := h.Tag()
	return t > 0 && t < tagCount && h.Generation() != 0
}

// String returns a debug representation like "Texture2D#3.1".
func (h Handle) String() string {
	if h == InvalidHandle {
		return "InvalidHandle"
	}
	return fmt.Sprintf("%s#%d.%d", h.Tag(), h.Index(), h.Generation())
}
