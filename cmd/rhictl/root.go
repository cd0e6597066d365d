package main

import (
	"github.com/spf13/cobra"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/config"
)

// app holds the state shared by subcommands.
type app struct {
	configPath string
	backend    string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "rhictl",
		Short:         "Inspect and exercise rhi GPU backends",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "TOML or YAML configuration file")
	root.PersistentFlags().StringVar(&a.backend, "backend", "", "backend name (overrides the configuration)")

	root.AddCommand(
		newBackendsCmd(),
		newInfoCmd(a),
		newSelftestCmd(a),
		newShaderCmd(),
		newTextureCmd(a),
	)
	return root
}

func (a *app) load(cmd *cobra.Command) error {
	a.cfg = config.Default()
	if a.configPath != "" {
		cfg, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		a.cfg = cfg
	}
	if a.backend != "" {
		a.cfg.Backend = a.backend
	}
	rhi.SetLogger(a.cfg.NewLogger(cmd.ErrOrStderr()))
	return nil
}

// open creates a device from the loaded configuration.
func (a *app) open() (*rhi.Context, rhi.Device, error) {
	// driver failures surface as command errors instead of exiting
	ctx := rhi.NewContext(rhi.WithLogger(rhi.Logger()), rhi.WithFatalHandler(func(error) {}))
	dev, err := ctx.CreateDevice(a.cfg.Backend, a.cfg.DeviceOptions()...)
	if err != nil {
		return nil, nil, err
	}
	return ctx, dev, nil
}
