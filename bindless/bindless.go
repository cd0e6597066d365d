// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package bindless manages bindless arrays: tables that let kernels address
// an open-ended set of buffers and textures through small integer indices.
//
// An Array keeps three slot categories (byte-buffer descriptors, 2D texture
// handles, 3D texture handles). Each has a host list and a device mirror.
// The mirror is only consistent with the host list after the command from
// the matching Upload*Handles call has executed, so uploads must be
// submitted before any dispatch that reads the new layout:
//
//	arr, _ := bindless.New(dev)
//	idx, _ := arr.EmplaceBuffer(bindless.ByteBufferDesc{Buffer: buf, Size: n})
//	stream.AddList(arr.UpdateSlotSOA(false))
//	stream.Add(arr.UploadBufferHandles(false), dispatch)
//
// Arrays do not own the resources they reference. An Array is safe for
// concurrent use.
package bindless

import (
	"fmt"
	"sync"

	"github.com/gogpu/rhi"
)

// ByteBufferDesc describes a buffer range stored in a buffer slot.
type ByteBufferDesc = rhi.ByteBufferDesc

// RemovalPolicy selects how Remove* treats higher indices.
type RemovalPolicy uint8

const (
	// FreeList tombstones the slot and reuses it for a later emplace.
	// Other indices never move.
	FreeList RemovalPolicy = iota
	// Shift erases the slot, moving every higher index down by one.
	Shift
)

func (p RemovalPolicy) String() string {
	switch p {
	case FreeList:
		return "free-list"
	case Shift:
		return "shift"
	}
	return fmt.Sprintf("RemovalPolicy(%d)", p)
}

// DefaultInitialCapacity is the initial mirror size of each category, in slots.
const DefaultInitialCapacity = 64

type options struct {
	policy     RemovalPolicy
	initialCap uint32
	maxSlots   uint32
}

// Option configures an Array.
type Option func(*options)

// WithRemovalPolicy sets the removal policy. The default is FreeList.
func WithRemovalPolicy(p RemovalPolicy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithInitialCapacity sets the initial mirror size of each category.
func WithInitialCapacity(n uint32) Option {
	return func(o *options) {
		if n > 0 {
			o.initialCap = n
		}
	}
}

// WithMaxSlotNum caps each category. The default is the device's MaxSlotNum.
func WithMaxSlotNum(n uint32) Option {
	return func(o *options) {
		if n > 0 {
			o.maxSlots = n
		}
	}
}

// Array is a bindless array on one device.
type Array struct {
	dev    rhi.Device
	handle rhi.Handle
	opts   options

	mu    sync.Mutex
	bufs  category[ByteBufferDesc]
	tex2d category[rhi.Handle]
	tex3d category[rhi.Handle]
}

// New creates a bindless array and its device mirrors on dev.
func New(dev rhi.Device, opts ...Option) (*Array, error) {
	o := options{
		policy:     FreeList,
		initialCap: DefaultInitialCapacity,
		maxSlots:   dev.Info().MaxSlotNum,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxSlots == 0 {
		o.maxSlots = rhi.DefaultMaxSlotNum
	}
	o.initialCap = min(o.initialCap, o.maxSlots)

	h, err := dev.CreateBindlessArray()
	if err != nil {
		return nil, fmt.Errorf("bindless: create array: %w", err)
	}
	log := rhi.DeviceLogger(dev)
	a := &Array{
		dev:    dev,
		handle: h,
		opts:   o,
		bufs: category[ByteBufferDesc]{
			name:     "buffer",
			log:      log,
			slotSize: rhi.ByteBufferDescSize,
			encode:   func(d ByteBufferDesc, b []byte) { d.Put(b) },
		},
		tex2d: category[rhi.Handle]{
			name:     "texture2d",
			log:      log,
			slotSize: rhi.TextureSlotSize,
			encode:   func(h rhi.Handle, b []byte) { rhi.PutTextureSlot(b, h) },
		},
		tex3d: category[rhi.Handle]{
			name:     "texture3d",
			log:      log,
			slotSize: rhi.TextureSlotSize,
			encode:   func(h rhi.Handle, b []byte) { rhi.PutTextureSlot(b, h) },
		},
	}
	if err := createMirror(a, &a.bufs); err != nil {
		return nil, err
	}
	if err := createMirror(a, &a.tex2d); err != nil {
		return nil, err
	}
	if err := createMirror(a, &a.tex3d); err != nil {
		return nil, err
	}
	dev.UpdateBindlessSlots(h, a.slotSOA(a.bufs.capacity, a.tex2d.capacity, a.tex3d.capacity))
	return a, nil
}

func createMirror[T comparable](a *Array, c *category[T]) error {
	m, err := a.dev.CreateBuffer(uint64(a.opts.initialCap)*c.slotSize, "bindless "+c.name+" slots", false)
	if err != nil {
		a.Close()
		return fmt.Errorf("bindless: create %s mirror: %w", c.name, err)
	}
	c.mirror = m
	c.capacity = a.opts.initialCap
	return nil
}

// Handle returns the device handle of the array.
func (a *Array) Handle() rhi.Handle { return a.handle }

// Policy returns the removal policy.
func (a *Array) Policy() RemovalPolicy { return a.opts.policy }

// MaxSlotNum returns the per-category slot limit.
func (a *Array) MaxSlotNum() uint32 { return a.opts.maxSlots }

// EmplaceBuffer stores d in the next free buffer slot and returns its index.
// It returns ErrCapacity, leaving every slot untouched, when the category is full.
func (a *Array) EmplaceBuffer(d ByteBufferDesc) (uint32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bufs.emplace(d, a.opts.policy, a.opts.maxSlots)
}

// EmplaceTexture2D stores a 2D texture handle in the next free slot.
func (a *Array) EmplaceTexture2D(tex rhi.Handle) (uint32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tex2d.emplace(tex, a.opts.policy, a.opts.maxSlots)
}

// EmplaceTexture3D stores a 3D texture handle in the next free slot.
func (a *Array) EmplaceTexture3D(tex rhi.Handle) (uint32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tex3d.emplace(tex, a.opts.policy, a.opts.maxSlots)
}

// SetBuffer overwrites buffer slot index.
func (a *Array) SetBuffer(index uint32, d ByteBufferDesc) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bufs.set(index, d)
}

// SetTexture2D overwrites 2D texture slot index.
func (a *Array) SetTexture2D(index uint32, tex rhi.Handle) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tex2d.set(index, tex)
}

// SetTexture3D overwrites 3D texture slot index.
func (a *Array) SetTexture3D(index uint32, tex rhi.Handle) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tex3d.set(index, tex)
}

// RemoveBuffer clears buffer slot index according to the removal policy.
func (a *Array) RemoveBuffer(index uint32) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bufs.remove(index, a.opts.policy)
}

// RemoveTexture2D clears 2D texture slot index.
func (a *Array) RemoveTexture2D(index uint32) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tex2d.remove(index, a.opts.policy)
}

// RemoveTexture3D clears 3D texture slot index.
func (a *Array) RemoveTexture3D(index uint32) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tex3d.remove(index, a.opts.policy)
}

// Buffer returns the descriptor in buffer slot index.
func (a *Array) Buffer(index uint32) (ByteBufferDesc, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bufs.get(index)
}

// Texture2D returns the handle in 2D texture slot index.
func (a *Array) Texture2D(index uint32) (rhi.Handle, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tex2d.get(index)
}

// Texture3D returns the handle in 3D texture slot index.
func (a *Array) Texture3D(index uint32) (rhi.Handle, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tex3d.get(index)
}

// BufferNum returns the number of occupied buffer slots.
func (a *Array) BufferNum() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bufs.live()
}

// Texture2DNum returns the number of occupied 2D texture slots.
func (a *Array) Texture2DNum() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tex2d.live()
}

// Texture3DNum returns the number of occupied 3D texture slots.
func (a *Array) Texture3DNum() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tex3d.live()
}

// BufferSlotCount returns the length of the buffer host list, free slots included.
func (a *Array) BufferSlotCount() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bufs.slots()
}

// Texture2DSlotCount returns the length of the 2D texture host list.
func (a *Array) Texture2DSlotCount() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tex2d.slots()
}

// Texture3DSlotCount returns the length of the 3D texture host list.
func (a *Array) Texture3DSlotCount() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tex3d.slots()
}

// UploadBufferHandles returns a command copying the buffer host list into
// its device mirror. The mirror must be large enough: submit the list from
// UpdateSlotSOA first.
func (a *Array) UploadBufferHandles(async bool) rhi.Command {
	a.mu.Lock()
	defer a.mu.Unlock()
	return rhi.BufferUploadCommand{Buffer: a.bufs.mirror, Data: a.bufs.bytes(), Async: async}
}

// UploadTexture2DHandles returns a command copying the 2D texture host list
// into its device mirror.
func (a *Array) UploadTexture2DHandles(async bool) rhi.Command {
	a.mu.Lock()
	defer a.mu.Unlock()
	return rhi.BufferUploadCommand{Buffer: a.tex2d.mirror, Data: a.tex2d.bytes(), Async: async}
}

// UploadTexture3DHandles returns a command copying the 3D texture host list
// into its device mirror.
func (a *Array) UploadTexture3DHandles(async bool) rhi.Command {
	a.mu.Lock()
	defer a.mu.Unlock()
	return rhi.BufferUploadCommand{Buffer: a.tex3d.mirror, Data: a.tex3d.bytes(), Async: async}
}

// UpdateSlotSOA returns the commands that grow every mirror the host lists
// have outgrown, followed by a host function that publishes the new mirror
// addresses to the device. Reallocation moves mirror memory, so the
// addresses are read when the host function runs. The list is empty when
// no mirror needs to grow.
func (a *Array) UpdateSlotSOA(async bool) *rhi.CommandList {
	a.mu.Lock()
	defer a.mu.Unlock()

	list := rhi.NewCommandList()
	grown := false
	if n, ok := a.bufs.grow(a.opts.maxSlots); ok {
		list.Add(rhi.BufferReallocateCommand{Buffer: a.bufs.mirror, Size: uint64(n) * a.bufs.slotSize, Async: async})
		a.bufs.capacity = n
		grown = true
	}
	if n, ok := a.tex2d.grow(a.opts.maxSlots); ok {
		list.Add(rhi.BufferReallocateCommand{Buffer: a.tex2d.mirror, Size: uint64(n) * a.tex2d.slotSize, Async: async})
		a.tex2d.capacity = n
		grown = true
	}
	if n, ok := a.tex3d.grow(a.opts.maxSlots); ok {
		list.Add(rhi.BufferReallocateCommand{Buffer: a.tex3d.mirror, Size: uint64(n) * a.tex3d.slotSize, Async: async})
		a.tex3d.capacity = n
		grown = true
	}
	if !grown {
		return list
	}
	bufCap, cap2d, cap3d := a.bufs.capacity, a.tex2d.capacity, a.tex3d.capacity
	list.Add(rhi.HostFunctionCommand{
		Fn: func() {
			a.dev.UpdateBindlessSlots(a.handle, a.slotSOA(bufCap, cap2d, cap3d))
		},
		Async: async,
	})
	return list
}

// slotSOA reads the current mirror addresses. It does not take a.mu.
func (a *Array) slotSOA(bufCap, cap2d, cap3d uint32) rhi.SlotSOA {
	bufAddr, _ := a.dev.BufferAddress(a.bufs.mirror)
	addr2d, _ := a.dev.BufferAddress(a.tex2d.mirror)
	addr3d, _ := a.dev.BufferAddress(a.tex3d.mirror)
	return rhi.SlotSOA{
		Buffers:      bufAddr,
		BufferCap:    bufCap,
		Textures2D:   addr2d,
		Texture2DCap: cap2d,
		Textures3D:   addr3d,
		Texture3DCap: cap3d,
	}
}

// Close destroys the mirrors and the device array. Referenced resources are
// left alive.
func (a *Array) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, m := range []*rhi.Handle{&a.bufs.mirror, &a.tex2d.mirror, &a.tex3d.mirror} {
		if *m != rhi.InvalidHandle {
			a.dev.DestroyBuffer(*m)
			*m = rhi.InvalidHandle
		}
	}
	if a.handle != rhi.InvalidHandle {
		a.dev.DestroyBindlessArray(a.handle)
		a.handle = rhi.InvalidHandle
	}
}
