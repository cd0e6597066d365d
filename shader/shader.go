// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package shader compiles WGSL compute functions for a device's native
// shader target using naga.
//
// A Compiler caches programs by target and source digest, so registering
// the same function on several devices compiles it once.
package shader

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/glsl"
	"github.com/gogpu/naga/hlsl"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/msl"
	"github.com/gogpu/naga/spirv"

	"github.com/gogpu/rhi/internal/cache"
)

// Target is a shader code format.
type Target uint8

const (
	// TargetHost means the device runs host kernels and needs no code.
	TargetHost Target = iota
	TargetSPIRV
	TargetMSL
	TargetGLSL
	TargetHLSL
)

func (t Target) String() string {
	switch t {
	case TargetHost:
		return "host"
	case TargetSPIRV:
		return "spirv"
	case TargetMSL:
		return "msl"
	case TargetGLSL:
		return "glsl"
	case TargetHLSL:
		return "hlsl"
	}
	return fmt.Sprintf("Target(%d)", t)
}

// ParseTarget returns the target named s.
func ParseTarget(s string) (Target, error) {
	for t := TargetHost; t <= TargetHLSL; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("shader: unknown target %q", s)
}

// Stage is a pipeline stage.
type Stage uint8

const (
	StageVertex Stage = iota
	StageFragment
	StageCompute
)

func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	case StageCompute:
		return "compute"
	}
	return fmt.Sprintf("Stage(%d)", s)
}

// EntryPoint is one entry point of a compiled module.
type EntryPoint struct {
	Name      string
	Stage     Stage
	Workgroup [3]uint32
}

// Program is a compiled module.
type Program struct {
	Target      Target
	EntryPoints []EntryPoint
	// Code holds binary output (SPIR-V).
	Code []byte
	// Text holds source output (MSL, GLSL, HLSL).
	Text string
}

// Words returns Code as little-endian 32-bit words.
func (p *Program) Words() []uint32 {
	words := make([]uint32, len(p.Code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(p.Code[i*4:])
	}
	return words
}

// EntryPoint returns the named entry point, or the first compute entry
// point when name is empty.
func (p *Program) EntryPoint(name string) (EntryPoint, bool) {
	for _, ep := range p.EntryPoints {
		if ep.Name == name || (name == "" && ep.Stage == StageCompute) {
			return ep, true
		}
	}
	return EntryPoint{}, false
}

// Options configures a Compiler.
type Options struct {
	// Validate runs IR validation before code generation.
	Validate bool
	// Debug emits debug names into generated code.
	Debug bool
	// CacheSize bounds the number of cached programs. Zero means unbounded.
	CacheSize int
}

// DefaultOptions returns validating, non-debug options.
func DefaultOptions() Options {
	return Options{Validate: true, CacheSize: 256}
}

type cacheKey struct {
	target Target
	digest [sha256.Size]byte
}

// Compiler compiles and caches programs. It is safe for concurrent use.
type Compiler struct {
	opts     Options
	programs *cache.Cache[cacheKey, *Program]
}

// NewCompiler returns a compiler with opts.
func NewCompiler(opts Options) *Compiler {
	return &Compiler{opts: opts, programs: cache.New[cacheKey, *Program](opts.CacheSize)}
}

var (
	defaultOnce     sync.Once
	defaultCompiler *Compiler
)

// Default returns the process-wide compiler with DefaultOptions.
func Default() *Compiler {
	defaultOnce.Do(func() {
		defaultCompiler = NewCompiler(DefaultOptions())
	})
	return defaultCompiler
}

// Compile compiles WGSL source for target. Programs are shared: callers
// must not modify the result.
func (c *Compiler) Compile(source string, target Target) (*Program, error) {
	key := cacheKey{target: target, digest: sha256.Sum256([]byte(source))}
	if p, ok := c.programs.Get(key); ok {
		return p, nil
	}
	p, err := c.compile(source, target)
	if err != nil {
		return nil, err
	}
	return c.programs.Add(key, p), nil
}

// Cached returns the number of cached programs and cache hits.
func (c *Compiler) Cached() (programs, hits int) {
	s := c.programs.Stats()
	return s.Len, int(s.Hits)
}

func (c *Compiler) compile(source string, target Target) (*Program, error) {
	ast, err := naga.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("shader: %w", err)
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return nil, fmt.Errorf("shader: lower: %w", err)
	}
	if c.opts.Validate {
		verrs, err := naga.Validate(module)
		if err != nil {
			return nil, fmt.Errorf("shader: validate: %w", err)
		}
		if len(verrs) > 0 {
			return nil, fmt.Errorf("shader: validate: %w", &verrs[0])
		}
	}

	p := &Program{Target: target, EntryPoints: entryPoints(module)}
	switch target {
	case TargetHost:
	case TargetSPIRV:
		p.Code, err = naga.GenerateSPIRV(module, spirv.Options{Version: spirv.Version1_3, Debug: c.opts.Debug})
	case TargetMSL:
		p.Text, _, err = msl.Compile(module, msl.DefaultOptions())
	case TargetGLSL:
		opts := glsl.DefaultOptions()
		opts.LangVersion = glsl.Version430
		p.Text, _, err = glsl.Compile(module, opts)
	case TargetHLSL:
		p.Text, _, err = hlsl.Compile(module, hlsl.DefaultOptions())
	default:
		return nil, fmt.Errorf("shader: unsupported target %s", target)
	}
	if err != nil {
		return nil, fmt.Errorf("shader: %s: %w", target, err)
	}
	return p, nil
}

func entryPoints(m *ir.Module) []EntryPoint {
	eps := make([]EntryPoint, 0, len(m.EntryPoints))
	for _, ep := range m.EntryPoints {
		s := StageCompute
		switch ep.Stage {
		case ir.StageVertex:
			s = StageVertex
		case ir.StageFragment:
			s = StageFragment
		}
		eps = append(eps, EntryPoint{Name: ep.Name, Stage: s, Workgroup: ep.Workgroup})
	}
	return eps
}
