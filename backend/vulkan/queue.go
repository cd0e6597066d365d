package vulkan

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/internal/devstate"
)

// queueDepth bounds the submissions waiting on the device queue.
const queueDepth = 64

// submission is a batch of commands that ends at a blocking command or at
// the end of a list.
type submission struct {
	stream *stream
	cmds   []rhi.Command
	fence  chan error // nil when nobody waits on the batch
}

// stream records command lists into submissions.
type stream struct {
	handle rhi.Handle

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup

	errMu sync.Mutex
	err   error // first failure of a batch nobody waited on
}

func (s *stream) setErr(err error) {
	s.errMu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.errMu.Unlock()
}

func (s *stream) takeErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	err := s.err
	s.err = nil
	return err
}

// run executes submissions in arrival order until the queue is closed.
func (d *Device) run() {
	defer close(d.exited)
	for sub := range d.queue {
		err := d.execute(sub.cmds)
		if sub.fence != nil {
			sub.fence <- err
		} else if err != nil {
			sub.stream.setErr(err)
		}
		sub.stream.inflight.Done()
	}
}

// execute runs a batch and synchronizes the HAL mirrors. A driver failure
// abandons the rest of the batch.
func (d *Device) execute(cmds []rhi.Command) error {
	for _, cmd := range cmds {
		if err := devstate.Execute(func() { d.ops.Dispatch(cmd) }); err != nil {
			return err
		}
		d.mirror.markWritten(cmd)
	}
	if err := d.mirror.sync(); err != nil {
		d.Log().Error("vulkan: mirror sync failed", slog.String("err", err.Error()))
		return &rhi.DriverError{Backend: Name, Op: "queue_submit", Code: rhi.CodeUnknown, Message: err.Error()}
	}
	return nil
}

// CreateStream creates a recording stream on the device queue.
func (d *Device) CreateStream() (rhi.Handle, error) {
	s := &stream{}
	h := d.streams.Insert(rhi.TagStream, s)
	s.handle = h
	d.Stats().OnAllocate(h, 0, "")
	d.Log().Debug("vulkan: stream created", slog.String("handle", h.String()))
	return h, nil
}

// DestroyStream waits for the stream's submissions to retire.
func (d *Device) DestroyStream(h rhi.Handle) {
	s, ok := d.streams.Remove(h)
	if !ok {
		d.Log().Warn("rhi: ignoring unknown handle", slog.String("op", "destroy_stream"), slog.String("handle", h.String()))
		return
	}
	d.retire(s)
	d.Stats().OnFree(h)
}

func (d *Device) retire(s *stream) {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.inflight.Wait()
}

// Submit splits list into batches at its blocking commands, hands them to
// the device queue and waits for the batch holding the last blocking command.
func (d *Device) Submit(h rhi.Handle, list *rhi.CommandList) error {
	s, ok := d.streams.Get(h)
	if !ok {
		return fmt.Errorf("vulkan: submit to %v: %w", h, rhi.ErrInvalidHandle)
	}
	cmds := list.Commands()
	last := list.LastBlocking()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("vulkan: submit to %v: %w", h, rhi.ErrInvalidHandle)
	}
	var fence chan error
	start := 0
	for i, cmd := range cmds {
		if cmd.IsAsync() && i != len(cmds)-1 {
			continue
		}
		// the list is reused by the caller once Submit returns
		sub := submission{stream: s, cmds: slices.Clone(cmds[start : i+1])}
		if i == last {
			fence = make(chan error, 1)
			sub.fence = fence
		}
		s.inflight.Add(1)
		d.queue <- sub
		start = i + 1
	}
	s.mu.Unlock()

	if fence == nil {
		return nil
	}
	if err := <-fence; err != nil {
		return err
	}
	return s.takeErr()
}
