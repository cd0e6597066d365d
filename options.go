package rhi

import (
	"log/slog"
	"os"
	"runtime"
)

// DefaultMaxSlotNum is the default per-category bindless slot capacity.
const DefaultMaxSlotNum = 1 << 16

// DefaultMemoryLimit is the default device memory budget.
const DefaultMemoryLimit = 1 << 30

// DeviceParams holds the creation parameters passed to a backend factory.
type DeviceParams struct {
	// Label names the device in logs.
	Label string
	// MaxSlotNum bounds each bindless slot category.
	MaxSlotNum uint32
	// MemoryLimit bounds the bytes of live device memory.
	MemoryLimit uint64
	// Workers bounds parallel kernel execution.
	Workers int
	// Headless selects a device without a native adapter where the
	// backend supports it.
	Headless bool
	// Provider supplies an already opened native device. Its concrete type
	// is backend specific.
	Provider any
}

// DeviceOption configures device creation.
//
// Example:
//
//	dev, err := ctx.CreateDevice("vulkan",
//	    rhi.WithMaxSlotNum(4096),
//	    rhi.WithHeadless(),
//	)
type DeviceOption func(*DeviceParams)

// DefaultDeviceParams returns the default creation parameters.
func DefaultDeviceParams() DeviceParams {
	return DeviceParams{
		MaxSlotNum:  DefaultMaxSlotNum,
		MemoryLimit: DefaultMemoryLimit,
		Workers:     runtime.GOMAXPROCS(0),
	}
}

// WithLabel sets the device label.
func WithLabel(label string) DeviceOption {
	return func(p *DeviceParams) {
		p.Label = label
	}
}

// WithMaxSlotNum sets the bindless capacity per slot category.
func WithMaxSlotNum(n uint32) DeviceOption {
	return func(p *DeviceParams) {
		if n > 0 {
			p.MaxSlotNum = n
		}
	}
}

// WithMemoryLimit sets the device memory budget in bytes.
func WithMemoryLimit(bytes uint64) DeviceOption {
	return func(p *DeviceParams) {
		if bytes > 0 {
			p.MemoryLimit = bytes
		}
	}
}

// WithWorkers sets the number of goroutines used for kernel execution.
func WithWorkers(n int) DeviceOption {
	return func(p *DeviceParams) {
		if n > 0 {
			p.Workers = n
		}
	}
}

// WithHeadless requests a device without a native adapter.
func WithHeadless() DeviceOption {
	return func(p *DeviceParams) {
		p.Headless = true
	}
}

// WithProvider passes an already opened native device to the backend.
func WithProvider(provider any) DeviceOption {
	return func(p *DeviceParams) {
		p.Provider = provider
	}
}

// ContextOption configures a Context.
type ContextOption func(*contextOptions)

type contextOptions struct {
	logger *slog.Logger
	fatal  func(error)
}

func defaultContextOptions() contextOptions {
	return contextOptions{
		fatal: func(error) { os.Exit(2) },
	}
}

// WithLogger sets the logger used by the Context and every device it
// creates, instead of the package logger.
func WithLogger(l *slog.Logger) ContextOption {
	return func(o *contextOptions) {
		o.logger = l
	}
}

// WithFatalHandler replaces the process exit performed on fatal driver
// errors. Fatal still panics after the handler returns.
func WithFatalHandler(fn func(error)) ContextOption {
	return func(o *contextOptions) {
		if fn != nil {
			o.fatal = fn
		}
	}
}
