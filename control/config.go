// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Typed process configuration loaded from TOML.

package control

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"github.com/momentics/hioload-fiber/api"
)

// Duration is a time.Duration written as a Go duration string in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText parses values such as "10ms".
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText renders the duration in the form UnmarshalText accepts.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig configures the echo server.
type ServerConfig struct {
	Host       string `toml:"host"`
	Port       string `toml:"port"`
	Backlog    int    `toml:"backlog"`
	StackSize  int    `toml:"stack_size"`
	EventBatch int    `toml:"event_batch"`
	// CPU pins the driver thread when non-negative.
	CPU int `toml:"cpu"`
}

// ClientConfig configures the line client.
type ClientConfig struct {
	Host           string   `toml:"host"`
	Port           string   `toml:"port"`
	ConnectRetries int      `toml:"connect_retries"`
	RetryDelay     Duration `toml:"retry_delay"`
	// Chunk is the most input bytes sent per round trip.
	Chunk int `toml:"chunk"`
}

// LogConfig selects the process logger.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config is the whole process configuration.
type Config struct {
	Server ServerConfig `toml:"server"`
	Client ClientConfig `toml:"client"`
	Log    LogConfig    `toml:"log"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:       "localhost",
			Port:       "7777",
			Backlog:    16,
			StackSize:  64 << 10,
			EventBatch: 16,
			CPU:        -1,
		},
		Client: ClientConfig{
			Host:           "localhost",
			Port:           "7777",
			ConnectRetries: 3,
			RetryDelay:     Duration{10 * time.Millisecond},
			Chunk:          64,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads path over the defaults. Keys absent from the file keep their
// default values; unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("%s: %w", path, err)
		}
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return Config{}, fmt.Errorf("%s: unknown keys %s: %w", path, strings.Join(keys, ", "), api.ErrInvalidArgument)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values no component can run with.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	check(c.Server.Port != "", "[server].port is empty")
	check(c.Server.Backlog > 0, "[server].backlog must be positive, got %d", c.Server.Backlog)
	check(c.Server.StackSize >= 0, "[server].stack_size must not be negative, got %d", c.Server.StackSize)
	check(c.Server.EventBatch > 0, "[server].event_batch must be positive, got %d", c.Server.EventBatch)
	check(c.Server.CPU >= -1, "[server].cpu must be -1 or a CPU index, got %d", c.Server.CPU)
	check(c.Client.Port != "", "[client].port is empty")
	check(c.Client.ConnectRetries > 0, "[client].connect_retries must be positive, got %d", c.Client.ConnectRetries)
	check(c.Client.RetryDelay.Duration >= 0, "[client].retry_delay must not be negative")
	check(c.Client.Chunk > 0, "[client].chunk must be positive, got %d", c.Client.Chunk)
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		errs = append(errs, fmt.Errorf("[log].level: %w", err))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("[log].format must be console or json, got %q", c.Log.Format))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("invalid configuration: %w: %w", api.ErrInvalidArgument, errors.Join(errs...))
}
