// Package interop shares resources between an rhi device and a second
// native API without copying.
//
// The protocol has four steps. Register declares interest in a resource of
// the second API, Map creates a device handle that aliases its memory,
// Unmap releases the alias and Unregister forgets the resource. Work
// submitted to the device and touching a mapped handle must complete before
// the second API reads the memory.
package interop

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/rhi"
)

// Resolver looks up resources of the second API by name.
// present.Context implements Resolver.
type Resolver interface {
	Lookup(name uint32) (rhi.ExternalResource, bool)
}

type entry struct {
	handle rhi.Handle
	mapped bool
}

// Bridge tracks registered and mapped resources. It is safe for concurrent use.
type Bridge struct {
	dev rhi.Device
	res Resolver
	log *slog.Logger

	mu      sync.Mutex
	entries map[uint32]*entry
}

// NewBridge returns a bridge between dev and the API behind res.
func NewBridge(dev rhi.Device, res Resolver) *Bridge {
	return &Bridge{dev: dev, res: res, log: rhi.DeviceLogger(dev), entries: make(map[uint32]*entry)}
}

// Register declares name for sharing. Registering twice is a no-op.
func (b *Bridge) Register(name uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.entries[name]; ok {
		b.log.Warn("interop: already registered", slog.Uint64("name", uint64(name)))
		return
	}
	b.entries[name] = &entry{}
}

// Registered reports whether name is registered.
func (b *Bridge) Registered(name uint32) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.entries[name]
	return ok
}

// Map returns a device handle aliasing the memory of name. A buffer maps to
// a buffer handle and a texture to a 2D texture handle. Mapping a mapped
// name returns the existing handle.
func (b *Bridge) Map(name uint32) (rhi.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[name]
	if !ok {
		b.log.Warn("interop: map before register", slog.Uint64("name", uint64(name)))
		return rhi.InvalidHandle, fmt.Errorf("interop: map %d: %w", name, rhi.ErrNotRegistered)
	}
	if e.mapped {
		return e.handle, nil
	}
	ext, ok := b.res.Lookup(name)
	if !ok {
		return rhi.InvalidHandle, fmt.Errorf("interop: map %d: %w", name, rhi.ErrInvalidHandle)
	}
	h, err := b.dev.MapExternal(ext)
	if err != nil {
		return rhi.InvalidHandle, fmt.Errorf("interop: map %d: %w", name, err)
	}
	e.handle, e.mapped = h, true
	b.log.Debug("interop: mapped", slog.Uint64("name", uint64(name)), slog.String("handle", h.String()))
	return h, nil
}

// Unmap releases the alias of name. Unmapping an unmapped name is a no-op.
func (b *Bridge) Unmap(name uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := b.entries[name]; ok {
		b.unmap(e)
	}
}

func (b *Bridge) unmap(e *entry) {
	if !e.mapped {
		return
	}
	b.dev.UnmapExternal(e.handle)
	e.handle, e.mapped = rhi.InvalidHandle, false
}

// Unregister forgets name, unmapping it first if needed.
func (b *Bridge) Unregister(name uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[name]
	if !ok {
		b.log.Warn("interop: unregister of unknown name", slog.Uint64("name", uint64(name)))
		return
	}
	b.unmap(e)
	delete(b.entries, name)
}

// Close unregisters every name.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for name, e := range b.entries {
		b.unmap(e)
		delete(b.entries, name)
	}
}
