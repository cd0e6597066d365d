package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gogpu/rhi/shader"
)

func newShaderCmd() *cobra.Command {
	var (
		target string
		output string
		debug  bool
	)
	cmd := &cobra.Command{
		Use:   "shader file.wgsl",
		Short: "Compile a WGSL compute shader and list its entry points",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := shader.ParseTarget(target)
			if err != nil {
				return err
			}
			src, err := os.ReadFile(filepath.Clean(args[0]))
			if err != nil {
				return err
			}
			opts := shader.DefaultOptions()
			opts.Debug = debug
			prog, err := shader.NewCompiler(opts).Compile(string(src), t)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, ep := range prog.EntryPoints {
				fmt.Fprintf(out, "%s\t%s", ep.Name, ep.Stage)
				if ep.Stage == shader.StageCompute {
					fmt.Fprintf(out, "\tworkgroup %dx%dx%d", ep.Workgroup[0], ep.Workgroup[1], ep.Workgroup[2])
				}
				fmt.Fprintln(out)
			}
			if output == "" {
				return nil
			}
			data := prog.Code
			if t != shader.TargetSPIRV {
				data = []byte(prog.Text)
			}
			return os.WriteFile(filepath.Clean(output), data, 0o644)
		},
	}
	cmd.Flags().StringVar(&target, "target", "spirv", "output target: host, spirv, msl, glsl or hlsl")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write generated code to this file")
	cmd.Flags().BoolVar(&debug, "debug", false, "emit debug names")
	return cmd
}
