package rhi

import (
	"errors"
	"slices"
	"testing"
)

// recordingDevice captures submissions instead of executing them.
type recordingDevice struct {
	Device
	submitted [][]CommandType
	destroyed []Handle
	err       error
}

var recordedStream = MakeHandle(TagStream, 1, 0)

func (d *recordingDevice) CreateStream() (Handle, error) { return recordedStream, nil }

func (d *recordingDevice) DestroyStream(h Handle) { d.destroyed = append(d.destroyed, h) }

func (d *recordingDevice) Submit(h Handle, l *CommandList) error {
	var kinds []CommandType
	for _, c := range l.Commands() {
		kinds = append(kinds, c.Type())
	}
	d.submitted = append(d.submitted, kinds)
	return d.err
}

func TestStreamCommit(t *testing.T) {
	dev := &recordingDevice{}
	s, err := NewStream(dev)
	if err != nil {
		t.Fatal(err)
	}
	if s.Handle() != recordedStream {
		t.Errorf("Handle() = %v", s.Handle())
	}
	if err := s.Commit(); err != nil || len(dev.submitted) != 0 {
		t.Fatalf("empty commit submitted %v, err %v", dev.submitted, err)
	}

	s.Add(BufferUploadCommand{}, BufferCopyCommand{}).
		AddList(NewCommandList(HostFunctionCommand{}))
	if s.Pending() != 3 {
		t.Errorf("Pending() = %d, want 3", s.Pending())
	}
	if err := s.Commit(); err != nil {
		t.Fatal(err)
	}
	if s.Pending() != 0 {
		t.Error("commit left commands pending")
	}
	want := []CommandType{CmdBufferUpload, CmdBufferCopy, CmdHostFunction}
	if len(dev.submitted) != 1 || !slices.Equal(dev.submitted[0], want) {
		t.Errorf("submitted %v, want [%v]", dev.submitted, want)
	}
}

func TestStreamSynchronizeAppendsBarrier(t *testing.T) {
	dev := &recordingDevice{}
	s, _ := NewStream(dev)
	if err := s.Synchronize(); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(dev.submitted[0], []CommandType{CmdSynchronize}) {
		t.Errorf("submitted %v", dev.submitted)
	}
}

func TestStreamCommitErrorClearsPending(t *testing.T) {
	dev := &recordingDevice{err: ErrCapacity}
	s, _ := NewStream(dev)
	s.Add(BufferByteSetCommand{})
	if err := s.Commit(); !errors.Is(err, ErrCapacity) {
		t.Errorf("Commit() = %v, want ErrCapacity", err)
	}
	if s.Pending() != 0 {
		t.Error("failed commit left commands pending")
	}
}

func TestStreamClose(t *testing.T) {
	dev := &recordingDevice{}
	s, _ := NewStream(dev)
	s.Add(HostFunctionCommand{})
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(dev.submitted[0], []CommandType{CmdHostFunction, CmdSynchronize}) {
		t.Errorf("close submitted %v", dev.submitted)
	}
	if !slices.Equal(dev.destroyed, []Handle{recordedStream}) {
		t.Errorf("destroyed %v", dev.destroyed)
	}
	if s.Handle() != InvalidHandle {
		t.Error("closed stream keeps its handle")
	}
}
