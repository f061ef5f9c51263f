package main

import (
	"fmt"
	"path/filepath"

	"github.com/chazu/amgen/pkg/config"
	"github.com/chazu/amgen/pkg/kernel"
	"github.com/chazu/amgen/pkg/kernel/manifold"
	"github.com/chazu/amgen/pkg/kernel/sdfx"
	"github.com/chazu/amgen/pkg/logging"
	"github.com/spf13/cobra"
)

// cli holds the state shared by all commands.
type cli struct {
	dir        string
	configPath string
	logLevel   string
	cfg        *config.Config
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "amgen",
		Short:         "generative design refinement for additive manufacturing",
		Long:          "Sweeps a parametric part template into generations, voxelizes them, synthesizes support structures and reports part and support metrics.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&c.dir, "dir", "C", ".", "project directory")
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "configuration file (default <dir>/"+config.FileName+")")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		c.generateCmd(),
		c.refineCmd(),
		c.resultsCmd(),
		c.previewCmd(),
		c.cleanCmd(),
		c.evalCmd(),
	)
	return root
}

// setup loads the configuration and installs the logger.
func (c *cli) setup(cmd *cobra.Command) error {
	var err error
	if c.configPath != "" {
		c.cfg, err = config.Load(c.configPath)
	} else {
		c.cfg, err = config.LoadDir(c.dir)
	}
	if err != nil {
		return err
	}

	name := c.logLevel
	if name == "" {
		name = c.cfg.GetLogLevel()
	}
	level, err := logging.ParseLevel(name)
	if err != nil {
		return err
	}
	logging.SetLogger(logging.NewText(cmd.ErrOrStderr(), level))
	return nil
}

// path resolves a project-relative path.
func (c *cli) path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.dir, p)
}

// newKernel returns the named geometry kernel.
func (c *cli) newKernel(name string) (kernel.Kernel, error) {
	switch name {
	case "", "sdfx":
		var opts []sdfx.Option
		if n := c.cfg.Generate.MeshCells; n > 0 {
			opts = append(opts, sdfx.WithMeshCells(n))
		}
		return sdfx.New(opts...), nil
	case "manifold":
		return manifold.New()
	}
	return nil, fmt.Errorf("unknown kernel %q (want sdfx or manifold)", name)
}
