package rhi

// Stream pairs a device stream handle with a pending CommandList.
// Commands added to a Stream are held until Commit.
//
// A Stream is not safe for concurrent use; use one per goroutine.
type Stream struct {
	dev     Device
	handle  Handle
	pending CommandList
}

// NewStream creates a device stream.
func NewStream(dev Device) (*Stream, error) {
	h, err := dev.CreateStream()
	if err != nil {
		return nil, err
	}
	return &Stream{dev: dev, handle: h}, nil
}

// Handle returns the device stream handle.
func (s *Stream) Handle() Handle { return s.handle }

// Add appends commands to the pending list.
func (s *Stream) Add(cmds ...Command) *Stream {
	s.pending.Add(cmds...)
	return s
}

// AddList appends every command of l to the pending list.
func (s *Stream) AddList(l *CommandList) *Stream {
	s.pending.Append(l)
	return s
}

// Pending returns the number of commands not yet committed.
func (s *Stream) Pending() int { return s.pending.Len() }

// Commit submits the pending commands to the device.
func (s *Stream) Commit() error {
	if s.pending.Empty() {
		return nil
	}
	err := s.dev.Submit(s.handle, &s.pending)
	s.pending.Reset()
	return err
}

// Synchronize commits the pending commands followed by a
// SynchronizeCommand, returning once all of them have completed.
func (s *Stream) Synchronize() error {
	s.pending.Add(SynchronizeCommand{})
	return s.Commit()
}

// Close synchronizes and destroys the device stream.
func (s *Stream) Close() error {
	err := s.Synchronize()
	s.dev.DestroyStream(s.handle)
	s.handle = InvalidHandle
	return err
}
