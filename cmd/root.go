// Package cmd implements the gflow CLI using cobra, the way the teacher's
// cmd/root.go wires its subcommands.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	socketPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gflow",
	Short: "gflow — distributed dataflow execution engine",
	Long: `gflow runs timely-style, scope-aware dataflow plans across multiple
workers and server processes.

  start-server --config <toml>   bind and serve job submissions
  submit-job --plan <file>       submit a plan and stream its results
  cancel --job-id <id>           cooperatively cancel a running job
  plan describe --plan <file>    render a plan as human-readable YAML`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command and sets flags
// appropriately, translating a *cliError into the exit code spec.md §6.4
// assigns it (0 success, 1 config error, 2 connection error, 3 job error).
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		code := 1
		var ce *cliError
		if asCliError(err, &ce) {
			code = ce.code
		}
		os.Exit(code)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/gflow/config.toml",
		"server config file path")
	rootCmd.PersistentFlags().StringVarP(&socketPath, "socket", "s", "",
		"unix socket path (defaults to the server's configured socket)")
}

// exitWithError prints msg (and err, if non-nil) to stderr. Kept for
// commands that fail outside a cliError's scope (malformed flags, etc.);
// it always exits 1, matching the teacher's cmd/root.go helper.
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
