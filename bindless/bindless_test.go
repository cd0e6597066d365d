package bindless

import (
	"errors"
	"testing"

	"github.com/gogpu/rhi"
)

// fakeDevice records the calls an Array makes.
type fakeDevice struct {
	rhi.Device
	maxSlots  uint32
	next      uint32
	buffers   map[rhi.Handle]uint64
	addresses map[rhi.Handle]uint64
	slots     rhi.SlotSOA
	updates   int
	destroyed int
}

func newFakeDevice(maxSlots uint32) *fakeDevice {
	return &fakeDevice{
		maxSlots:  maxSlots,
		buffers:   make(map[rhi.Handle]uint64),
		addresses: make(map[rhi.Handle]uint64),
	}
}

func (d *fakeDevice) Info() rhi.Capabilities { return rhi.Capabilities{MaxSlotNum: d.maxSlots} }

func (d *fakeDevice) CreateBindlessArray() (rhi.Handle, error) {
	d.next++
	return rhi.MakeHandle(rhi.TagBindlessArray, 1, d.next), nil
}

func (d *fakeDevice) DestroyBindlessArray(rhi.Handle) { d.destroyed++ }

func (d *fakeDevice) CreateBuffer(size uint64, _ string, _ bool) (rhi.Handle, error) {
	d.next++
	h := rhi.MakeHandle(rhi.TagBuffer, 1, d.next)
	d.buffers[h] = size
	d.addresses[h] = uint64(d.next) << 20
	return h, nil
}

func (d *fakeDevice) DestroyBuffer(h rhi.Handle) {
	delete(d.buffers, h)
	d.destroyed++
}

func (d *fakeDevice) BufferAddress(h rhi.Handle) (uint64, bool) {
	a, ok := d.addresses[h]
	return a, ok
}

func (d *fakeDevice) UpdateBindlessSlots(_ rhi.Handle, slots rhi.SlotSOA) {
	d.slots = slots
	d.updates++
}

func desc(n uint32) ByteBufferDesc {
	return ByteBufferDesc{Buffer: rhi.MakeHandle(rhi.TagBuffer, 1, 100+n), Size: uint64(n + 1)}
}

func TestEmplaceIndicesInOrder(t *testing.T) {
	arr, err := New(newFakeDevice(16))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	for want := uint32(0); want < 5; want++ {
		got, err := arr.EmplaceBuffer(desc(want))
		if err != nil {
			t.Fatalf("EmplaceBuffer: %v", err)
		}
		if got != want {
			t.Errorf("EmplaceBuffer index = %d, want %d", got, want)
		}
	}
	if arr.BufferNum() != 5 {
		t.Errorf("BufferNum = %d, want 5", arr.BufferNum())
	}
}

func TestShiftRemoval(t *testing.T) {
	arr, err := New(newFakeDevice(16), WithRemovalPolicy(Shift))
	if err != nil {
		t.Fatal(err)
	}
	for i := uint32(0); i < 4; i++ {
		if _, err := arr.EmplaceBuffer(desc(i)); err != nil {
			t.Fatal(err)
		}
	}
	if err := arr.RemoveBuffer(1); err != nil {
		t.Fatalf("RemoveBuffer: %v", err)
	}
	if arr.BufferNum() != 3 {
		t.Errorf("BufferNum = %d, want 3", arr.BufferNum())
	}
	// former index 2 and 3 moved down
	for i, want := range []uint32{0, 2, 3} {
		got, ok := arr.Buffer(uint32(i))
		if !ok || got != desc(want) {
			t.Errorf("slot %d = %+v, want %+v", i, got, desc(want))
		}
	}
}

func TestFreeListRemovalKeepsIndices(t *testing.T) {
	arr, err := New(newFakeDevice(16))
	if err != nil {
		t.Fatal(err)
	}
	for i := uint32(0); i < 4; i++ {
		if _, err := arr.EmplaceBuffer(desc(i)); err != nil {
			t.Fatal(err)
		}
	}
	if err := arr.RemoveBuffer(2); err != nil {
		t.Fatal(err)
	}
	if err := arr.RemoveBuffer(0); err != nil {
		t.Fatal(err)
	}
	if arr.BufferNum() != 2 || arr.BufferSlotCount() != 4 {
		t.Errorf("num/slots = %d/%d, want 2/4", arr.BufferNum(), arr.BufferSlotCount())
	}
	if got, _ := arr.Buffer(3); got != desc(3) {
		t.Errorf("slot 3 moved: %+v", got)
	}
	if err := arr.RemoveBuffer(2); !errors.Is(err, rhi.ErrIndexOutOfRange) {
		t.Errorf("double remove: got %v, want ErrIndexOutOfRange", err)
	}

	// lowest free index first
	idx, err := arr.EmplaceBuffer(desc(9))
	if err != nil || idx != 0 {
		t.Errorf("EmplaceBuffer = %d, %v; want 0", idx, err)
	}
	idx, _ = arr.EmplaceBuffer(desc(10))
	if idx != 2 {
		t.Errorf("EmplaceBuffer = %d, want 2", idx)
	}
	idx, _ = arr.EmplaceBuffer(desc(11))
	if idx != 4 {
		t.Errorf("EmplaceBuffer = %d, want 4", idx)
	}

	// a tombstone uploads as a zero descriptor
	if err := arr.RemoveBuffer(1); err != nil {
		t.Fatal(err)
	}
	cmd := arr.UploadBufferHandles(false).(rhi.BufferUploadCommand)
	if got := rhi.ReadByteBufferDesc(cmd.Data[rhi.ByteBufferDescSize:]); got != (ByteBufferDesc{}) {
		t.Errorf("tombstone = %+v", got)
	}
}

func TestCapacityError(t *testing.T) {
	const limit = 4
	arr, err := New(newFakeDevice(64), WithMaxSlotNum(limit))
	if err != nil {
		t.Fatal(err)
	}
	for i := uint32(0); i < limit; i++ {
		if _, err := arr.EmplaceTexture2D(rhi.MakeHandle(rhi.TagTexture2D, 1, i)); err != nil {
			t.Fatal(err)
		}
	}
	_, err = arr.EmplaceTexture2D(rhi.MakeHandle(rhi.TagTexture2D, 1, 99))
	if !errors.Is(err, rhi.ErrCapacity) {
		t.Fatalf("overflow: got %v, want ErrCapacity", err)
	}
	for i := uint32(0); i < limit; i++ {
		got, ok := arr.Texture2D(i)
		if !ok || got != rhi.MakeHandle(rhi.TagTexture2D, 1, i) {
			t.Errorf("slot %d changed: %v", i, got)
		}
	}

	// a freed slot is reusable at the limit
	if err := arr.RemoveTexture2D(1); err != nil {
		t.Fatal(err)
	}
	if idx, err := arr.EmplaceTexture2D(rhi.MakeHandle(rhi.TagTexture2D, 1, 50)); err != nil || idx != 1 {
		t.Errorf("reuse at limit = %d, %v", idx, err)
	}
}

func TestSetAndRange(t *testing.T) {
	arr, err := New(newFakeDevice(16))
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		fn   func() error
		want error
	}{
		{"set empty", func() error { return arr.SetTexture3D(0, rhi.MakeHandle(rhi.TagTexture3D, 1, 1)) }, rhi.ErrIndexOutOfRange},
		{"remove empty", func() error { return arr.RemoveTexture3D(0) }, rhi.ErrIndexOutOfRange},
		{"emplace zero", func() error { _, err := arr.EmplaceTexture3D(rhi.InvalidHandle); return err }, rhi.ErrInvalidHandle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}

	h := rhi.MakeHandle(rhi.TagTexture3D, 1, 7)
	if _, err := arr.EmplaceTexture3D(h); err != nil {
		t.Fatal(err)
	}
	h2 := rhi.MakeHandle(rhi.TagTexture3D, 1, 8)
	if err := arr.SetTexture3D(0, h2); err != nil {
		t.Fatalf("SetTexture3D: %v", err)
	}
	if got, _ := arr.Texture3D(0); got != h2 {
		t.Errorf("Texture3D(0) = %v, want %v", got, h2)
	}
}

func TestUpdateSlotSOA(t *testing.T) {
	dev := newFakeDevice(1024)
	arr, err := New(dev, WithInitialCapacity(2))
	if err != nil {
		t.Fatal(err)
	}
	if dev.updates != 1 || dev.slots.BufferCap != 2 {
		t.Fatalf("initial slots = %+v after %d updates", dev.slots, dev.updates)
	}

	if l := arr.UpdateSlotSOA(false); !l.Empty() {
		t.Errorf("no growth: got %d commands", l.Len())
	}

	for i := uint32(0); i < 3; i++ {
		if _, err := arr.EmplaceBuffer(desc(i)); err != nil {
			t.Fatal(err)
		}
	}
	l := arr.UpdateSlotSOA(true)
	cmds := l.Commands()
	if len(cmds) != 2 {
		t.Fatalf("growth: got %d commands, want reallocate + host function", len(cmds))
	}
	realloc, ok := cmds[0].(rhi.BufferReallocateCommand)
	if !ok || realloc.Size != 4*rhi.ByteBufferDescSize || !realloc.Async {
		t.Errorf("reallocate = %+v", cmds[0])
	}
	fn, ok := cmds[1].(rhi.HostFunctionCommand)
	if !ok {
		t.Fatalf("second command = %T", cmds[1])
	}
	fn.Fn()
	if dev.slots.BufferCap != 4 || dev.slots.Texture2DCap != 2 {
		t.Errorf("slots after refresh = %+v", dev.slots)
	}

	if l := arr.UpdateSlotSOA(false); !l.Empty() {
		t.Errorf("second call: got %d commands, want none", l.Len())
	}
}

func TestClose(t *testing.T) {
	dev := newFakeDevice(16)
	arr, err := New(dev)
	if err != nil {
		t.Fatal(err)
	}
	arr.Close()
	arr.Close()
	if dev.destroyed != 4 {
		t.Errorf("destroyed = %d, want 3 mirrors + array", dev.destroyed)
	}
	if len(dev.buffers) != 0 {
		t.Errorf("%d mirrors leaked", len(dev.buffers))
	}
}

func TestShiftUploadClearsVacatedSlot(t *testing.T) {
	arr, err := New(newFakeDevice(16), WithRemovalPolicy(Shift))
	if err != nil {
		t.Fatal(err)
	}
	for i := uint32(0); i < 3; i++ {
		if _, err := arr.EmplaceBuffer(desc(i)); err != nil {
			t.Fatal(err)
		}
	}
	first := arr.UploadBufferHandles(false).(rhi.BufferUploadCommand)
	if len(first.Data) != 3*rhi.ByteBufferDescSize {
		t.Fatalf("upload size = %d, want %d", len(first.Data), 3*rhi.ByteBufferDescSize)
	}

	if err := arr.RemoveBuffer(1); err != nil {
		t.Fatal(err)
	}
	up := arr.UploadBufferHandles(false).(rhi.BufferUploadCommand)
	if len(up.Data) != 3*rhi.ByteBufferDescSize {
		t.Fatalf("upload after shift covers %d bytes, want %d", len(up.Data), 3*rhi.ByteBufferDescSize)
	}
	for i, want := range []ByteBufferDesc{desc(0), desc(2), {}} {
		if got := rhi.ReadByteBufferDesc(up.Data[i*rhi.ByteBufferDescSize:]); got != want {
			t.Errorf("uploaded slot %d = %+v, want %+v", i, got, want)
		}
	}

	// once the mirror has been cleared the upload shrinks to the host list
	if again := arr.UploadBufferHandles(false).(rhi.BufferUploadCommand); len(again.Data) != 2*rhi.ByteBufferDescSize {
		t.Errorf("second upload covers %d bytes, want %d", len(again.Data), 2*rhi.ByteBufferDescSize)
	}
}
