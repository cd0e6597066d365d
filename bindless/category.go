package bindless

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/gogpu/rhi"
)

// category is one slot kind: a host list, its free indices and the device
// mirror the list is uploaded into.
type category[T comparable] struct {
	name     string
	slotSize uint64
	encode   func(v T, dst []byte)
	log      *slog.Logger

	host []T
	free []uint32 // ascending
	// capacity is the mirror size in slots as last requested from the device.
	capacity uint32
	// uploaded is the slot count of the last upload.
	uploaded uint32
	mirror   rhi.Handle
}

func (c *category[T]) live() uint32 {
	// #nosec G115 -- bounded by the max slot count
	return uint32(len(c.host) - len(c.free))
}

func (c *category[T]) slots() uint32 {
	// #nosec G115 -- bounded by the max slot count
	return uint32(len(c.host))
}

func (c *category[T]) isFree(index uint32) bool {
	i := sort.Search(len(c.free), func(i int) bool { return c.free[i] >= index })
	return i < len(c.free) && c.free[i] == index
}

func (c *category[T]) emplace(v T, policy RemovalPolicy, maxSlots uint32) (uint32, error) {
	var zero T
	if v == zero {
		return 0, fmt.Errorf("bindless: emplace %s: empty descriptor: %w", c.name, rhi.ErrInvalidHandle)
	}
	if policy == FreeList && len(c.free) > 0 {
		idx := c.free[0]
		c.free = c.free[1:]
		c.host[idx] = v
		return idx, nil
	}
	if c.slots() >= maxSlots {
		err := fmt.Errorf("bindless: emplace %s: %d slots in use of %d: %w", c.name, c.slots(), maxSlots, rhi.ErrCapacity)
		c.log.Error("bindless: capacity exceeded",
			slog.String("category", c.name),
			slog.Uint64("max_slot_num", uint64(maxSlots)))
		return 0, err
	}
	c.host = append(c.host, v)
	return c.slots() - 1, nil
}

func (c *category[T]) set(index uint32, v T) error {
	if index >= c.slots() {
		return c.outOfRange("set", index)
	}
	var zero T
	if v == zero {
		return fmt.Errorf("bindless: set %s %d: empty descriptor: %w", c.name, index, rhi.ErrInvalidHandle)
	}
	if i := sort.Search(len(c.free), func(i int) bool { return c.free[i] >= index }); i < len(c.free) && c.free[i] == index {
		c.free = append(c.free[:i], c.free[i+1:]...)
	}
	c.host[index] = v
	return nil
}

func (c *category[T]) remove(index uint32, policy RemovalPolicy) error {
	if index >= c.slots() || c.isFree(index) {
		return c.outOfRange("remove", index)
	}
	if policy == Shift {
		c.host = append(c.host[:index], c.host[index+1:]...)
		return nil
	}
	var zero T
	c.host[index] = zero
	i := sort.Search(len(c.free), func(i int) bool { return c.free[i] >= index })
	c.free = append(c.free, 0)
	copy(c.free[i+1:], c.free[i:])
	c.free[i] = index
	return nil
}

func (c *category[T]) get(index uint32) (T, bool) {
	var zero T
	if index >= c.slots() || c.isFree(index) {
		return zero, false
	}
	return c.host[index], true
}

func (c *category[T]) outOfRange(op string, index uint32) error {
	c.log.Error("bindless: index out of range",
		slog.String("op", op),
		slog.String("category", c.name),
		slog.Uint64("index", uint64(index)),
		slog.Uint64("slots", uint64(c.slots())))
	return fmt.Errorf("bindless: %s %s %d of %d: %w", op, c.name, index, c.slots(), rhi.ErrIndexOutOfRange)
}

// bytes encodes the host list in device layout. Free slots encode as zero,
// as do slots past the end of the list that the previous upload wrote.
func (c *category[T]) bytes() []byte {
	n := max(c.slots(), c.uploaded)
	out := make([]byte, uint64(n)*c.slotSize)
	for i, v := range c.host {
		c.encode(v, out[uint64(i)*c.slotSize:])
	}
	c.uploaded = c.slots()
	return out
}

// grow returns the mirror capacity needed for the host list, or false when
// the current mirror is large enough.
func (c *category[T]) grow(maxSlots uint32) (uint32, bool) {
	n := c.slots()
	if n <= c.capacity {
		return c.capacity, false
	}
	newCap := max(c.capacity, 1)
	for newCap < n {
		newCap *= 2
	}
	return min(newCap, maxSlots), true
}
