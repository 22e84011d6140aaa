package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"chromeprov/internal/headless"
)

var installForce bool

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the ChromeDriver matching the installed Chrome",
	Long: `Runs the full provisioning flow: detect Chrome, resolve the matching
ChromeDriver release, download and install it atomically, and verify the
installed pair agrees on the major version. A driver that is already
current is left alone unless --force is given.`,
	RunE: runInstall,
}

func init() {
	installCmd.Flags().BoolVar(&installForce, "force", false, "reinstall even when the driver is already current")
}

func runInstall(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	display, err := headless.EnsureDisplay(cfg.Headless.Display)
	if err != nil {
		return err
	}

	res, err := newProvisioner().Run(ctx, installForce)
	if err != nil {
		return err
	}

	if res.Installed {
		fmt.Printf("Installed chromedriver %s for chrome %s\n", res.Driver.Version, res.Chrome.Version)
	} else {
		fmt.Printf("chromedriver %s already current for chrome %s\n", res.Driver.Version, res.Chrome.Version)
	}
	fmt.Printf("Driver:  %s\n", res.Driver.Path)
	fmt.Printf("Display: %s\n", display)
	return nil
}
