// File: cmd/hioload-fiber/main_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-fiber/api"
	"github.com/momentics/hioload-fiber/control"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfg = control.Default()
	for _, name := range []string{"config", "log-level", "log-format"} {
		require.NoError(t, rootCmd.PersistentFlags().Set(name, ""))
	}
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "hioload-fiber "+version)
}

func TestConfigFileAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fiber.toml")
	require.NoError(t, os.WriteFile(path, []byte("[client]\nport = \"9100\"\nretry_delay = \"5ms\"\n[log]\nlevel = \"warn\"\n"), 0o600))

	_, err := execute(t, "version", "--config", path, "--log-format", "json")
	require.NoError(t, err)
	assert.Equal(t, "9100", cfg.Client.Port)
	assert.Equal(t, 5*time.Millisecond, cfg.Client.RetryDelay.Duration)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestApplyFlags_ClientOverrides(t *testing.T) {
	cfg = control.Default()
	require.NoError(t, clientCmd.ParseFlags([]string{"--port", "9200", "--retries", "5", "--retry-delay", "1s"}))
	require.NoError(t, applyFlags(clientCmd))
	assert.Equal(t, "9200", cfg.Client.Port)
	assert.Equal(t, 5, cfg.Client.ConnectRetries)
	assert.Equal(t, time.Second, cfg.Client.RetryDelay.Duration)
	assert.Equal(t, control.Default().Client.Host, cfg.Client.Host)
}

func TestInvalidConfigRejected(t *testing.T) {
	_, err := execute(t, "version", "--log-format", "xml")
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
}
