// File: cmd/hioload-fiber/client.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/momentics/hioload-fiber/client"
	"github.com/momentics/hioload-fiber/internal/logging"
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Send standard input to the echo server and print the replies",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		c := client.New(cfg.Client, cmd.InOrStdin(), cmd.OutOrStdout(), client.WithLogger(logging.Component("client")))
		return c.Run(ctx)
	},
}

func init() {
	def := cfg.Client
	clientCmd.Flags().String("host", def.Host, "server host")
	clientCmd.Flags().StringP("port", "p", def.Port, "server port or service name")
	clientCmd.Flags().Int("retries", def.ConnectRetries, "connection attempts")
	clientCmd.Flags().Duration("retry-delay", def.RetryDelay.Duration, "pause between connection attempts")
	clientCmd.Flags().Int("chunk", def.Chunk, "input bytes sent per round trip")
}
