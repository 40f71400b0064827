// Command mayhem builds access structures and structural frames from design
// scripts, validates them and prints the resulting assembly.
package main

import (
	"fmt"
	"os"

	"github.com/chazu/mayhem/pkg/config"
	"github.com/chazu/mayhem/pkg/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	verbose    bool

	cfg    config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "mayhem",
	Short: "Design-intent geometry for stairs, ramps, ladders, platforms and frames",
	Long: `mayhem turns point-to-point design intents into validated solid geometry.

A design script declares elements between two points:

  (element :stairs :name "s1" :from (vec3 0 0 0) :to (vec3 4000 0 3000))

Each element is checked against building-code limits before any geometry
is built, then built through a geometry kernel, assembled and checked for
clearance, interference and obstacle conflicts.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		logger, err = logging.New(cfg.Logging.Level, cfg.Logging.Development)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(runCmd, checkCmd, kernelCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
