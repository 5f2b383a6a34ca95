// hippie issues JSON-first HTTP requests from the command line
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nethippie/hippie"
)

var (
	// Set at build time via -ldflags
	version = hippie.Version

	cfgFile  string
	logLevel string
	logFile  string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hippie",
		Short: "JSON-first HTTP client",
		Long: `hippie sends HTTP requests with JSON defaults, reusing one connection
per origin, following redirects and retrying transient network failures
with jittered exponential backoff.

Settings are read from a TOML or YAML config file and can be overridden
per invocation with flags.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: user config dir)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "log level (debug, info, warn, error); overrides config")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "log file path (default: stderr)")

	for _, method := range []string{"GET", "POST", "PUT", "PATCH", "DELETE"} {
		rootCmd.AddCommand(requestCmd(method))
	}
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}
