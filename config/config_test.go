package config

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gogpu/rhi"
)

const tomlSample = `
backend = "vulkan"

[device]
label = "main"
max_slot_num = 4096
memory_limit = 268435456
workers = 3
headless = true

[log]
level = "debug"
format = "json"
`

const yamlSample = `
backend: vulkan
device:
  label: main
  max_slot_num: 4096
  memory_limit: 268435456
  workers: 3
  headless: true
log:
  level: debug
  format: json
`

func TestParseFormatsAgree(t *testing.T) {
	fromTOML, err := Parse([]byte(tomlSample), TOML)
	if err != nil {
		t.Fatalf("Parse(TOML) failed: %v", err)
	}
	fromYAML, err := Parse([]byte(yamlSample), YAML)
	if err != nil {
		t.Fatalf("Parse(YAML) failed: %v", err)
	}
	if *fromTOML != *fromYAML {
		t.Errorf("TOML %+v != YAML %+v", fromTOML, fromYAML)
	}
	want := Device{Label: "main", MaxSlotNum: 4096, MemoryLimit: 256 << 20, Workers: 3, Headless: true}
	if fromTOML.Device != want {
		t.Errorf("Device = %+v, want %+v", fromTOML.Device, want)
	}
}

func TestParseEmptyKeepsDefaults(t *testing.T) {
	for _, f := range []Format{TOML, YAML} {
		cfg, err := Parse(nil, f)
		if err != nil {
			t.Fatalf("Parse(%s) failed: %v", f, err)
		}
		if *cfg != *Default() {
			t.Errorf("%s: got %+v, want defaults", f, cfg)
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format Format
		want   error
	}{
		{"bad level", "[log]\nlevel = \"loud\"\n", TOML, ErrInvalid},
		{"bad log format", "log:\n  format: xml\n", YAML, ErrInvalid},
		{"negative workers", "[device]\nworkers = -1\n", TOML, ErrInvalid},
		{"unknown format", "", Format("ini"), ErrFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), tt.format)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := Parse([]byte("[device]\nbogus = 1\n"), TOML); err == nil {
		t.Error("unknown TOML key accepted")
	}
	if _, err := Parse([]byte("device:\n  bogus: 1\n"), YAML); err == nil {
		t.Error("unknown YAML key accepted")
	}
}

func TestFormatOf(t *testing.T) {
	tests := map[string]Format{"a.toml": TOML, "b.YAML": YAML, "c.yml": YAML}
	for path, want := range tests {
		if got, err := FormatOf(path); err != nil || got != want {
			t.Errorf("FormatOf(%q) = %q, %v", path, got, err)
		}
	}
	if _, err := FormatOf("d.json"); !errors.Is(err, ErrFormat) {
		t.Errorf("FormatOf(json) = %v", err)
	}
}

func TestDeviceOptions(t *testing.T) {
	cfg, err := Parse([]byte(tomlSample), TOML)
	if err != nil {
		t.Fatal(err)
	}
	params := rhi.DefaultDeviceParams()
	for _, opt := range cfg.DeviceOptions() {
		opt(&params)
	}
	if params.Label != "main" || params.MaxSlotNum != 4096 || params.MemoryLimit != 256<<20 ||
		params.Workers != 3 || !params.Headless {
		t.Errorf("params = %+v", params)
	}

	// zero values keep the defaults
	params = rhi.DefaultDeviceParams()
	for _, opt := range Default().DeviceOptions() {
		opt(&params)
	}
	if params != rhi.DefaultDeviceParams() {
		t.Errorf("defaults changed: %+v", params)
	}
}

func TestNewLogger(t *testing.T) {
	cfg, err := Parse([]byte(tomlSample), TOML)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	cfg.NewLogger(&buf).Debug("hello", "k", 1)
	if !strings.Contains(buf.String(), `"msg":"hello"`) {
		t.Errorf("json output = %q", buf.String())
	}

	buf.Reset()
	Default().NewLogger(&buf).Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug logged at info level: %q", buf.String())
	}
}

func TestLoadAndWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rhi.toml")
	if err := os.WriteFile(path, []byte(tomlSample), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Backend != "vulkan" {
		t.Errorf("Backend = %q", cfg.Backend)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reloads := make(chan *Config, 8)
	done := make(chan error, 1)
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	go func() {
		done <- Watch(ctx, path, func(c *Config, err error) {
			if err == nil {
				reloads <- c
			}
		}, WithWatchLogger(logger))
	}()

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case c := <-reloads:
			if c.Backend == "cuda" {
				cancel()
				if err := <-done; err != nil {
					t.Errorf("Watch returned %v", err)
				}
				if !strings.Contains(logs.String(), "config: reloaded") {
					t.Errorf("watch logger got %q, want a reload record", logs.String())
				}
				return
			}
		case <-tick.C:
			// rewrite until the watcher is installed and sees a change
			_ = os.WriteFile(path, []byte(strings.Replace(tomlSample, "vulkan", "cuda", 1)), 0o600)
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
}
