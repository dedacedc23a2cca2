package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "r10bridge",
	Short: "Garmin Approach R10 to golf simulator bridge",
	Long: `r10bridge speaks the Garmin Approach R10 launch monitor's proprietary
Bluetooth Low Energy protocol and re-emits decoded shots to a golf
simulator over TCP, a text-line protocol, and an HTTP endpoint for a
putting camera.

- run: connect to a configured R10 and bridge its shots to the configured sinks
- pair: register the NoInputNoOutput pairing agent and bond with a device
- inspect: scan for nearby devices and dump a connected device's GATT tree`,
	Version: formatVersion(version),
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Ctrl+C is a normal exit, not an error - exit silently
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}

func init() {
	// Silence Cobra's "Error:" prefix - main() prints clean errors
	rootCmd.SilenceErrors = true

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(pairCmd)
	rootCmd.AddCommand(inspectCmd)

	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("config", "", "Path to config file (YAML)")

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
}
