// Package main implements the chromeprov CLI: provisioning a compatible
// Chrome + ChromeDriver pair for headless automation environments.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"chromeprov/internal/config"
	"chromeprov/internal/provision"
)

var (
	// Global flags
	cfgPath string
	verbose bool
	timeout time.Duration

	// Loaded in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "chromeprov",
	Short: "Provision a matching Chrome + ChromeDriver pair",
	Long: `chromeprov detects the installed Chrome, resolves the matching
ChromeDriver release from the Chrome-for-Testing endpoints, installs it
atomically, and verifies that both binaries agree on the major version.

It replaces the usual fragile shell pipeline in container builds with
retries, real error reporting, and an install manifest.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func newProvisioner() *provision.Provisioner {
	return provision.New(cfg, logger)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to chromeprov.yaml (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "overall command timeout")

	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
