package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"chromeprov/internal/headless"
)

var verifySmoke bool

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that Chrome and ChromeDriver agree on the major version",
	Long: `Probes both installed binaries and fails unless they share a
milestone. With --smoke it additionally launches Chrome headless over
CDP to prove the browser can serve automation sessions.`,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().BoolVar(&verifySmoke, "smoke", false, "also launch Chrome headless as a smoke test")
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	res, err := newProvisioner().Verify(ctx)
	if res != nil {
		fmt.Printf("Chrome:       %s (%s)\n", res.Chrome.Version, res.Chrome.Path)
		fmt.Printf("ChromeDriver: %s (%s)\n", res.Driver.Version, res.Driver.Path)
	}
	if err != nil {
		return err
	}
	fmt.Println("Compatible: majors match")

	if !verifySmoke {
		return nil
	}

	if _, err := headless.EnsureDisplay(cfg.Headless.Display); err != nil {
		return err
	}
	smoke, err := headless.SmokeTest(ctx, res.Chrome.Path)
	if err != nil {
		return fmt.Errorf("headless smoke test: %w", err)
	}
	logger.Debug("smoke test passed", zap.String("user_agent", smoke.UserAgent))
	fmt.Printf("Headless launch OK: %s (CDP %s)\n", smoke.Product, smoke.ProtocolVersion)
	return nil
}
