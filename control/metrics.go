// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics collector shared between the driver thread and readers
// on other goroutines.

package control

import (
	"sync"
	"time"
)

// MetricsRegistry maps dotted metric names such as "server.accepted"
// to their latest value.
type MetricsRegistry struct {
	mu      sync.RWMutex
	metrics map[string]any
	updated time.Time
}

// NewMetricsRegistry returns a registry with no metrics.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		metrics: make(map[string]any),
	}
}

// Set stores value under key, replacing what was there.
func (mr *MetricsRegistry) Set(key string, value any) {
	mr.mu.Lock()
	mr.metrics[key] = value
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// Add increments a counter, creating it at zero. A key holding a
// non-counter value is overwritten.
func (mr *MetricsRegistry) Add(key string, delta uint64) uint64 {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	v, _ := mr.metrics[key].(uint64)
	v += delta
	mr.metrics[key] = v
	mr.updated = time.Now()
	return v
}

// Counter returns a counter value, zero when unset.
func (mr *MetricsRegistry) Counter(key string) uint64 {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	v, _ := mr.metrics[key].(uint64)
	return v
}

// Publish copies a stats map under prefix, as "prefix.key".
func (mr *MetricsRegistry) Publish(prefix string, values map[string]any) {
	mr.mu.Lock()
	for k, v := range values {
		mr.metrics[prefix+"."+k] = v
	}
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// GetSnapshot copies every metric into a fresh map the caller owns.
func (mr *MetricsRegistry) GetSnapshot() map[string]any {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	out := make(map[string]any, len(mr.metrics))
	for k, v := range mr.metrics {
		out[k] = v
	}
	return out
}

// Updated reports when a metric last changed.
func (mr *MetricsRegistry) Updated() time.Time {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return mr.updated
}
