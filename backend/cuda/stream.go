package cuda

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/internal/devstate"
)

// queueDepth bounds the commands waiting on one stream before Submit blocks.
const queueDepth = 256

type work struct {
	cmd  rhi.Command
	done chan error // nil for async commands
}

// stream is an in-order queue with one worker goroutine.
type stream struct {
	handle rhi.Handle
	queue  chan work
	exited chan struct{}

	mu     sync.RWMutex
	closed bool

	errMu sync.Mutex
	err   error // first failure of an async command
}

func (d *Device) startStream() *stream {
	s := &stream{
		queue:  make(chan work, queueDepth),
		exited: make(chan struct{}),
	}
	go d.drain(s)
	return s
}

func (d *Device) drain(s *stream) {
	defer close(s.exited)
	for w := range s.queue {
		err := devstate.Execute(func() { d.ops.Dispatch(w.cmd) })
		if w.done != nil {
			w.done <- err
			continue
		}
		if err != nil {
			s.errMu.Lock()
			if s.err == nil {
				s.err = err
			}
			s.errMu.Unlock()
		}
	}
}

// takeErr returns and clears the first async failure.
func (s *stream) takeErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	err := s.err
	s.err = nil
	return err
}

// CreateStream starts a new in-order stream.
func (d *Device) CreateStream() (rhi.Handle, error) {
	s := d.startStream()
	h := d.streams.Insert(rhi.TagStream, s)
	s.handle = h
	d.Stats().OnAllocate(h, 0, "")
	d.Log().Debug("cuda: stream created", slog.String("handle", h.String()))
	return h, nil
}

// DestroyStream waits for queued work and stops the worker.
func (d *Device) DestroyStream(h rhi.Handle) {
	s, ok := d.streams.Remove(h)
	if !ok {
		d.Log().Warn("rhi: ignoring unknown handle", slog.String("op", "destroy_stream"), slog.String("handle", h.String()))
		return
	}
	d.stopStream(s)
	d.Stats().OnFree(h)
}

func (d *Device) stopStream(s *stream) {
	s.mu.Lock()
	s.closed = true
	close(s.queue)
	s.mu.Unlock()
	<-s.exited
}

// Submit enqueues list on stream and waits for its last blocking command.
func (d *Device) Submit(h rhi.Handle, list *rhi.CommandList) error {
	s, ok := d.streams.Get(h)
	if !ok {
		return fmt.Errorf("cuda: submit to %v: %w", h, rhi.ErrInvalidHandle)
	}
	cmds := list.Commands()
	last := list.LastBlocking()

	var done chan error
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return fmt.Errorf("cuda: submit to %v: %w", h, rhi.ErrInvalidHandle)
	}
	for i, cmd := range cmds {
		w := work{cmd: cmd}
		if i == last {
			done = make(chan error, 1)
			w.done = done
		}
		s.queue <- w
	}
	s.mu.RUnlock()

	if done == nil {
		return nil
	}
	if err := <-done; err != nil {
		return err
	}
	return s.takeErr()
}
