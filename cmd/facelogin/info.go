package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MrCodeEU/facelogin/pkg/logging"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logging.Debug("Showing configuration")
		shown := *cfg
		if shown.Storage.DatabaseURL != "" {
			shown.Storage.DatabaseURL = "<redacted>"
		}
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer func() { _ = enc.Close() }()
		return enc.Encode(&shown)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("facelogin v%s\n", version)
		fmt.Println("Face enrollment and authentication")
		fmt.Println()
		fmt.Println("Build Information:")
		fmt.Printf("  Go version: %s\n", runtime.Version())
		fmt.Printf("  Platform:   %s/%s\n", runtime.GOOS, runtime.GOARCH)
		fmt.Printf("  Detectors:  %s\n", availableDetectors())
	},
}

func init() {
	rootCmd.AddCommand(configCmd, versionCmd)
}
