package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print device capabilities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, dev, err := a.open()
			if err != nil {
				return err
			}
			defer func() { _ = dev.Close() }()

			info := dev.Info()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "backend\t%s\n", info.Backend)
			fmt.Fprintf(w, "device\t%s\n", info.DeviceName)
			if info.ComputeCapability != 0 {
				fmt.Fprintf(w, "compute capability\t%d.%d\n", info.ComputeCapability/10, info.ComputeCapability%10)
			}
			fmt.Fprintf(w, "shader target\t%s\n", info.ShaderTarget)
			fmt.Fprintf(w, "max slots\t%d\n", info.MaxSlotNum)
			fmt.Fprintf(w, "memory limit\t%d\n", info.MemoryLimit)
			fmt.Fprintf(w, "export granularity\t%d\n", info.ExportGranularity)
			fmt.Fprintf(w, "ray tracing\t%t\n", info.RayTracing)
			fmt.Fprintf(w, "workers\t%d\n", info.Workers)
			return w.Flush()
		},
	}
}
