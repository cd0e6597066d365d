// Command rhictl inspects and exercises rhi backends.
//
// Usage:
//
//	rhictl backends
//	rhictl info [--backend name]
//	rhictl selftest [--backend name]
//	rhictl shader [--target spirv|msl|glsl|hlsl] [-o out] kernel.wgsl
//	rhictl texture [--levels n] [--out dir] image.png
//
// Every command reads an optional TOML or YAML file given with --config.
package main

import (
	"fmt"
	"os"

	_ "github.com/gogpu/rhi/backend/cuda"
	_ "github.com/gogpu/rhi/backend/vulkan"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "rhictl:", err)
		os.Exit(1)
	}
}
