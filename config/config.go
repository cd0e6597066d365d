// Package config loads device configuration from TOML or YAML files.
//
// A configuration file selects the backend, the device creation
// parameters and the logger:
//
//	backend = "vulkan"
//
//	[device]
//	label = "main"
//	max_slot_num = 4096
//	memory_limit = 268435456
//	headless = true
//
//	[log]
//	level = "debug"
//	format = "json"
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/rhi"
)

// DefaultBackend is used when a file names no backend.
const DefaultBackend = "cuda"

// Errors returned by Load and Parse.
var (
	// ErrFormat is returned for an unknown file format.
	ErrFormat = errors.New("config: unknown format")

	// ErrInvalid is returned when a value is out of range.
	ErrInvalid = errors.New("config: invalid value")
)

// Format is a configuration file syntax.
type Format string

const (
	TOML Format = "toml"
	YAML Format = "yaml"
)

// FormatOf returns the format for a file name by extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return TOML, nil
	case ".yaml", ".yml":
		return YAML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrFormat, filepath.Ext(path))
}

// Config is the content of a configuration file.
type Config struct {
	Backend string `toml:"backend" yaml:"backend"`
	Device  Device `toml:"device" yaml:"device"`
	Log     Log    `toml:"log" yaml:"log"`
}

// Device holds device creation parameters. Zero values keep the defaults.
type Device struct {
	Label       string `toml:"label" yaml:"label"`
	MaxSlotNum  uint32 `toml:"max_slot_num" yaml:"max_slot_num"`
	MemoryLimit uint64 `toml:"memory_limit" yaml:"memory_limit"`
	Workers     int    `toml:"workers" yaml:"workers"`
	Headless    bool   `toml:"headless" yaml:"headless"`
}

// Log configures the logger built by NewLogger.
type Log struct {
	// Level is one of debug, info, warn or error.
	Level string `toml:"level" yaml:"level"`
	// Format is text or json.
	Format string `toml:"format" yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Backend: DefaultBackend,
		Log:     Log{Level: "info", Format: "text"},
	}
}

// Load reads the file at path. The format follows the file extension.
func Load(path string) (*Config, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	return Parse(data, format)
}

// Parse decodes data over the defaults and validates the result.
func Parse(data []byte, format Format) (*Config, error) {
	cfg := Default()
	var err error
	switch format {
	case TOML:
		err = toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields().Decode(cfg)
	case YAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(cfg)
		if errors.Is(err, io.EOF) {
			err = nil
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", format, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Backend == "" {
		c.Backend = DefaultBackend
	}
	if c.Device.Workers < 0 {
		return fmt.Errorf("%w: device.workers %d", ErrInvalid, c.Device.Workers)
	}
	if _, err := c.Log.level(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: log.format %q", ErrInvalid, c.Log.Format)
	}
	return nil
}

// DeviceOptions converts the device section into creation options.
func (c *Config) DeviceOptions() []rhi.DeviceOption {
	d := c.Device
	opts := []rhi.DeviceOption{
		rhi.WithMaxSlotNum(d.MaxSlotNum),
		rhi.WithMemoryLimit(d.MemoryLimit),
		rhi.WithWorkers(d.Workers),
	}
	if d.Label != "" {
		opts = append(opts, rhi.WithLabel(d.Label))
	}
	if d.Headless {
		opts = append(opts, rhi.WithHeadless())
	}
	return opts
}

func (l Log) level() (slog.Level, error) {
	var lv slog.Level
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := lv.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("%w: log.level %q", ErrInvalid, l.Level)
	}
	return lv, nil
}

// NewLogger builds a logger writing to w.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	lv, err := c.Log.level()
	if err != nil {
		lv = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lv}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
