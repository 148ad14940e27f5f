// control/platform.go
// Author: momentics <momentics@gmail.com>

package control

import (
	"os"
	"runtime"
)

func registerCommonProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.os", func() any { return runtime.GOOS + "/" + runtime.GOARCH })
	dp.RegisterProbe("platform.pagesize", func() any { return os.Getpagesize() })
	dp.RegisterProbe("platform.goroutines", func() any { return runtime.NumGoroutine() })
}
