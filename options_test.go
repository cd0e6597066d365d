package rhi

import (
	"bytes"
	"log/slog"
	"testing"
)

func TestDeviceOptions(t *testing.T) {
	p := DefaultDeviceParams()
	if p.MaxSlotNum != DefaultMaxSlotNum || p.MemoryLimit != DefaultMemoryLimit || p.Workers < 1 {
		t.Fatalf("defaults = %+v", p)
	}

	provider := struct{ name string }{"native"}
	for _, opt := range []DeviceOption{
		WithLabel("gpu0"),
		WithMaxSlotNum(128),
		WithMemoryLimit(1 << 20),
		WithWorkers(3),
		WithHeadless(),
		WithProvider(provider),
	} {
		opt(&p)
	}
	want := DeviceParams{
		Label:       "gpu0",
		MaxSlotNum:  128,
		MemoryLimit: 1 << 20,
		Workers:     3,
		Headless:    true,
		Provider:    provider,
	}
	if p != want {
		t.Errorf("params = %+v, want %+v", p, want)
	}
}

func TestDeviceOptionsIgnoreZero(t *testing.T) {
	p := DefaultDeviceParams()
	WithMaxSlotNum(0)(&p)
	WithMemoryLimit(0)(&p)
	WithWorkers(-1)(&p)
	if p != DefaultDeviceParams() {
		t.Errorf("zero values changed params: %+v", p)
	}
}

func TestContextOptions(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	ctx := NewContext(WithLogger(logger), WithFatalHandler(nil))
	if ctx.Logger() != logger {
		t.Error("WithLogger not applied")
	}
	if ctx.opts.fatal == nil {
		t.Error("nil fatal handler replaced the default")
	}
	if NewContext().Logger() != Logger() {
		t.Error("context without logger should use the package logger")
	}
	if ctx.Shared() == nil || ctx.Shared() == NewContext().Shared() {
		t.Error("each context owns its shared-memory namespace")
	}
}
