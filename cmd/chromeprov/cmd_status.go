package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"chromeprov/internal/driver"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the install manifest",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	m, err := driver.LoadManifest(cfg.ManifestPath)
	if err != nil {
		return err
	}

	if len(m.Entries) == 0 {
		fmt.Println("No installs recorded.")
		return nil
	}

	for _, e := range m.Entries {
		fmt.Printf("%s  driver %-16s chrome %-16s %s  %s\n",
			e.InstalledAt.Format("2006-01-02 15:04:05"),
			e.DriverVersion, e.ChromeVersion, e.Platform, e.Path)
	}
	return nil
}
