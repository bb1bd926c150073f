package health

import (
	"runtime"
	"time"
)

// Collect returns a health snapshot for the current process.
func Collect(opts Options) Snapshot {
	opts = opts.normalize()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	s := Snapshot{
		Status:     "healthy",
		Component:  opts.Component,
		Goroutines: runtime.NumGoroutine(),
		Memory: MemoryInfo{
			AllocMB:      float64(mem.Alloc) / 1024 / 1024,
			TotalAllocMB: float64(mem.TotalAlloc) / 1024 / 1024,
			SysMB:        float64(mem.Sys) / 1024 / 1024,
			NumGC:        mem.NumGC,
		},
		Runtime: RuntimeInfo{
			Version: runtime.Version(),
			OS:      runtime.GOOS,
			Arch:    runtime.GOARCH,
			CPUs:    runtime.NumCPU(),
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}

	if opts.State != nil {
		info := opts.State.Stats()
		s.Conversation = &info
	}

	if opts.StaticDir != "" {
		s.Static = inspectStaticDir(opts.StaticDir, opts.MaxFiles)
		if s.Static.ReadError != "" {
			s.Status = "degraded"
		}
	}

	return s
}
