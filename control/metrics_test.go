// control/metrics_test.go
// Author: momentics <momentics@gmail.com>

package control

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetrics_AddIsAtomic(t *testing.T) {
	mr := NewMetricsRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				mr.Add("conns", 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(800), mr.Counter("conns"))
	assert.False(t, mr.Updated().IsZero())
}

func TestMetrics_PublishPrefixes(t *testing.T) {
	mr := NewMetricsRegistry()
	mr.Publish("sched", map[string]any{"tasks": 2, "switches": uint64(9)})
	mr.Set("up", true)
	snap := mr.GetSnapshot()
	assert.Equal(t, 2, snap["sched.tasks"])
	assert.Equal(t, uint64(9), snap["sched.switches"])
	assert.Equal(t, true, snap["up"])

	snap["up"] = false
	assert.Equal(t, true, mr.GetSnapshot()["up"], "snapshots are copies")
}

func TestProbes_DumpAndNames(t *testing.T) {
	dp := NewDebugProbes()
	RegisterPlatformProbes(dp)
	dp.RegisterProbe("answer", func() any { return 42 })
	state := dp.DumpState()
	assert.Equal(t, 42, state["answer"])
	assert.Contains(t, state, "platform.cpus")
	assert.Contains(t, state, "platform.pagesize")
	names := dp.Names()
	assert.IsIncreasing(t, names)
	assert.Contains(t, names, "answer")
}
