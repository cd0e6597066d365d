package rhi

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/rhi/internal/shm"
)

// Context is the root object every device is created from. It carries the
// logger, the fatal-error policy and the shareable-memory namespace that
// exported allocations live in. There is no package-level device state:
// components that need driver services receive the Context explicitly.
type Context struct {
	opts   contextOptions
	shared *shm.Namespace
}

// NewContext creates a Context.
//
// Example:
//
//	ctx := rhi.NewContext(rhi.WithLogger(slog.Default()))
//	dev, err := ctx.CreateDevice("vulkan", rhi.WithHeadless())
func NewContext(opts ...ContextOption) *Context {
	o := defaultContextOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Context{opts: o, shared: shm.New()}
}

// Logger returns the Context logger, or the package logger when none was set.
func (c *Context) Logger() *slog.Logger {
	if c.opts.logger != nil {
		return c.opts.logger
	}
	return Logger()
}

// Shared returns the namespace of shareable allocations. Devices created
// from the same Context can import each other's exports.
func (c *Context) Shared() *shm.Namespace {
	return c.shared
}

// CreateDevice creates a device with the named backend.
// It returns an error if the backend is not registered or cannot open a
// native device.
func (c *Context) CreateDevice(name string, opts ...DeviceOption) (Device, error) {
	factory, err := lookupBackend(name)
	if err != nil {
		return nil, err
	}
	params := DefaultDeviceParams()
	for _, opt := range opts {
		opt(&params)
	}
	if params.Label == "" {
		params.Label = name
	}
	dev, err := factory(c, params)
	if err != nil {
		return nil, fmt.Errorf("rhi: create %s device: %w", name, err)
	}
	c.Logger().Info("rhi: device created",
		slog.String("backend", name),
		slog.String("device", dev.Info().DeviceName))
	return dev, nil
}

// Fatal reports an unrecoverable driver failure. It logs err, invokes the
// fatal handler and then panics with err. Fatal never returns.
func (c *Context) Fatal(err error) {
	attrs := []any{slog.String("err", err.Error())}
	var de *DriverError
	if errors.As(err, &de) {
		attrs = append(attrs,
			slog.String("backend", de.Backend),
			slog.String("op", de.Op),
			slog.Int("code", de.Code))
	}
	c.Logger().Error("rhi: fatal driver error", attrs...)
	c.opts.fatal(err)
	panic(err)
}

// Check calls Fatal with a DriverError when code is non-zero.
func (c *Context) Check(backend, op string, code int, msg string) {
	if code == 0 {
		return
	}
	c.Fatal(&DriverError{Backend: backend, Op: op, Code: code, Message: msg})
}
