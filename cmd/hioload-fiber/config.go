// File: cmd/hioload-fiber/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/momentics/hioload-fiber/control"
	"github.com/momentics/hioload-fiber/internal/logging"
)

// cfg is the effective configuration: defaults, then the config file,
// then command line flags.
var cfg = control.Default()

func setup(cmd *cobra.Command) error {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := control.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		cfg.Log.Format = v
	}
	if err := applyFlags(cmd); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	l, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	logging.Set(l)
	return nil
}

// applyFlags copies explicitly set subcommand flags over cfg.
func applyFlags(cmd *cobra.Command) error {
	f := cmd.Flags()
	var err error
	set := func(name string, apply func() error) {
		if err == nil && f.Changed(name) {
			if aerr := apply(); aerr != nil {
				err = fmt.Errorf("--%s: %w", name, aerr)
			}
		}
	}
	switch cmd {
	case serveCmd:
		set("host", func() (e error) { cfg.Server.Host, e = f.GetString("host"); return })
		set("port", func() (e error) { cfg.Server.Port, e = f.GetString("port"); return })
		set("backlog", func() (e error) { cfg.Server.Backlog, e = f.GetInt("backlog"); return })
		set("stack-size", func() (e error) { cfg.Server.StackSize, e = f.GetInt("stack-size"); return })
		set("event-batch", func() (e error) { cfg.Server.EventBatch, e = f.GetInt("event-batch"); return })
		set("cpu", func() (e error) { cfg.Server.CPU, e = f.GetInt("cpu"); return })
	case clientCmd:
		set("host", func() (e error) { cfg.Client.Host, e = f.GetString("host"); return })
		set("port", func() (e error) { cfg.Client.Port, e = f.GetString("port"); return })
		set("retries", func() (e error) { cfg.Client.ConnectRetries, e = f.GetInt("retries"); return })
		set("retry-delay", func() (e error) { cfg.Client.RetryDelay.Duration, e = f.GetDuration("retry-delay"); return })
		set("chunk", func() (e error) { cfg.Client.Chunk, e = f.GetInt("chunk"); return })
	}
	return err
}
