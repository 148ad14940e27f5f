// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration, runtime metrics and debug introspection for the
// hioload-fiber applications.
//
// Provides:
//   - The typed TOML configuration with defaults and validation
//   - A goroutine-safe metrics registry
//   - Named debug probes, including platform facts
package control
