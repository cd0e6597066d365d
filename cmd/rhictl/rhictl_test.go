package main

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gogpu/rhi/imageio"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestBackends(t *testing.T) {
	out, err := run(t, "backends")
	if err != nil {
		t.Fatalf("backends failed: %v", err)
	}
	for _, name := range []string{"cuda", "vulkan"} {
		if !strings.Contains(out, name) {
			t.Errorf("output %q misses %s", out, name)
		}
	}
}

func TestInfoFromConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rhi.yaml")
	cfg := "backend: vulkan\ndevice:\n  headless: true\n  max_slot_num: 128\n"
	if err := os.WriteFile(path, []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}
	out, err := run(t, "--config", path, "info")
	if err != nil {
		t.Fatalf("info failed: %v", err)
	}
	if !strings.Contains(out, "vulkan") || !strings.Contains(out, "spirv") || !strings.Contains(out, "128") {
		t.Errorf("unexpected info output:\n%s", out)
	}
}

func TestUnknownBackend(t *testing.T) {
	if _, err := run(t, "--backend", "metal", "info"); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestSelftest(t *testing.T) {
	for _, backend := range []string{"cuda", "vulkan"} {
		t.Run(backend, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "rhi.toml")
			cfg := "backend = \"" + backend + "\"\n[device]\nheadless = true\nmemory_limit = 16777216\n"
			if err := os.WriteFile(path, []byte(cfg), 0o600); err != nil {
				t.Fatal(err)
			}
			out, err := run(t, "--config", path, "selftest")
			if err != nil {
				t.Fatalf("selftest failed: %v\n%s", err, out)
			}
			if strings.Contains(out, "FAIL") {
				t.Errorf("selftest output:\n%s", out)
			}
		})
	}
}

func TestShaderCommand(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "fill.wgsl")
	wgsl := `
@group(0) @binding(0) var<storage, read_write> data: array<u32>;

@compute @workgroup_size(64)
fn fill(@builtin(global_invocation_id) id: vec3<u32>) {
    data[id.x] = id.x * 2u;
}
`
	if err := os.WriteFile(src, []byte(wgsl), 0o600); err != nil {
		t.Fatal(err)
	}
	spv := filepath.Join(dir, "fill.spv")
	out, err := run(t, "shader", "-o", spv, src)
	if err != nil {
		t.Fatalf("shader failed: %v", err)
	}
	if !strings.Contains(out, "fill") || !strings.Contains(out, "64x1x1") {
		t.Errorf("shader output = %q", out)
	}
	code, err := os.ReadFile(spv)
	if err != nil {
		t.Fatal(err)
	}
	if len(code) < 4 || code[0] != 0x03 || code[1] != 0x02 || code[2] != 0x23 || code[3] != 0x07 {
		t.Errorf("output is not SPIR-V: % x", code[:min(4, len(code))])
	}

	if _, err := run(t, "shader", "--target", "dxil", src); err == nil {
		t.Error("unknown target accepted")
	}
}

func TestTextureCommand(t *testing.T) {
	dir := t.TempDir()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := 0; i < 8; i++ {
		img.Set(i, i, color.RGBA{255, 0, 0, 255})
	}
	src := filepath.Join(dir, "diag.png")
	if err := imageio.SavePNG(src, img); err != nil {
		t.Fatal(err)
	}
	outDir := filepath.Join(dir, "levels")
	out, err := run(t, "texture", "--out", outDir, src)
	if err != nil {
		t.Fatalf("texture failed: %v", err)
	}
	if !strings.Contains(out, "8x8, 4 levels") {
		t.Errorf("texture output = %q", out)
	}
	level0, err := imageio.Load(filepath.Join(outDir, "level00.png"))
	if err != nil {
		t.Fatalf("level 0 not written: %v", err)
	}
	if !bytes.Equal(imageio.Pixels(level0), imageio.Pixels(img)) {
		t.Error("level 0 differs from the source image")
	}
	if _, err := os.Stat(filepath.Join(outDir, "level03.png")); err != nil {
		t.Errorf("level 3 missing: %v", err)
	}
}
