// File: cmd/hioload-fiber/serve.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/momentics/hioload-fiber/internal/logging"
	"github.com/momentics/hioload-fiber/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the echo server until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		srv := server.New(cfg.Server, server.WithLogger(logging.Component("server")))
		return srv.Run(ctx)
	},
}

func init() {
	def := cfg.Server
	serveCmd.Flags().String("host", def.Host, "address to listen on")
	serveCmd.Flags().StringP("port", "p", def.Port, "port or service name")
	serveCmd.Flags().Int("backlog", def.Backlog, "listen backlog")
	serveCmd.Flags().Int("stack-size", def.StackSize, "task stack size in bytes")
	serveCmd.Flags().Int("event-batch", def.EventBatch, "events dequeued per wait")
	serveCmd.Flags().Int("cpu", def.CPU, "pin the driver thread to this CPU (-1 disables)")
}
