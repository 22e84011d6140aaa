package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var resolveMajor int

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve the ChromeDriver release matching the installed Chrome",
	Long: `Detects the installed Chrome (or uses --major) and prints the
matching ChromeDriver version and download URL without installing it.`,
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().IntVar(&resolveMajor, "major", 0, "resolve for an explicit Chrome milestone instead of detecting")
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	release, err := newProvisioner().Resolve(ctx, resolveMajor)
	if err != nil {
		return err
	}

	logger.Debug("resolved release", zap.String("url", release.URL))
	fmt.Printf("Version:  %s\n", release.Version)
	fmt.Printf("Platform: %s\n", release.Platform)
	fmt.Printf("URL:      %s\n", release.URL)
	return nil
}
