// Package cli implements the admission-admin command line tool.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var serverURL string

// rootCmd is the entry point of the admission-admin binary.
var rootCmd = &cobra.Command{
	Use:   "admission-admin",
	Short: "Administer a running admission control service.",
	Long: `admission-admin performs administrative tasks against a running
admission service over its HTTP API: resetting window counters and
inspecting the active limit policy.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080",
		"base URL of the admission service")

	rootCmd.AddCommand(resetLimitsCmd)
	rootCmd.AddCommand(policyCmd)
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
