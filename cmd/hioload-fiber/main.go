// File: cmd/hioload-fiber/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "hioload-fiber",
	Short:         "Cooperative task runtime with an echo server and line client",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd)
	},
}

func init() {
	rootCmd.Version = version

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(clientCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().StringP("config", "c", "", "TOML configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "log level (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (console|json)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
