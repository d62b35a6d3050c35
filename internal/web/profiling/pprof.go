// Package profiling serves pprof and runtime statistics for the debug listener.
//
// These endpoints expose goroutine stacks and memory contents. Bind the
// debug listener to a loopback or internal address only.
package profiling

import (
	"net/http"
	"net/http/pprof"
	"runtime"

	"github.com/go-chi/chi/v5"

	"github.com/conduit-lang/conduit-admin/internal/web/response"
)

// Config holds profiling configuration
type Config struct {
	// Path is the URL prefix of the pprof endpoints
	Path string

	// BlockRate is passed to runtime.SetBlockProfileRate; 0 leaves it off
	BlockRate int

	// MutexFraction is passed to runtime.SetMutexProfileFraction; 0 leaves it off
	MutexFraction int
}

// DefaultConfig serves pprof under /debug/pprof with block and mutex
// profiling disabled
func DefaultConfig() Config {
	return Config{Path: "/debug/pprof"}
}

// Handler returns the debug router: pprof under config.Path and runtime
// statistics at /debug/stats
func Handler(config Config) http.Handler {
	if config.Path == "" {
		config.Path = DefaultConfig().Path
	}
	if config.BlockRate > 0 {
		runtime.SetBlockProfileRate(config.BlockRate)
	}
	if config.MutexFraction > 0 {
		runtime.SetMutexProfileFraction(config.MutexFraction)
	}

	r := chi.NewRouter()
	r.Route(config.Path, func(r chi.Router) {
		r.HandleFunc("/", pprof.Index)
		r.HandleFunc("/cmdline", pprof.Cmdline)
		r.HandleFunc("/profile", pprof.Profile)
		r.HandleFunc("/symbol", pprof.Symbol)
		r.HandleFunc("/trace", pprof.Trace)
		for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
			r.Handle("/"+name, pprof.Handler(name))
		}
	})
	r.Get("/debug/stats", StatsHandler())
	return r
}

// Stats is a snapshot of the runtime
type Stats struct {
	Goroutines int         `json:"goroutines"`
	Memory     MemoryStats `json:"memory"`
	CPU        CPUStats    `json:"cpu"`
}

// MemoryStats are the allocator counters
type MemoryStats struct {
	Alloc      uint64 `json:"alloc"`
	TotalAlloc uint64 `json:"total_alloc"`
	Sys        uint64 `json:"sys"`
	NumGC      uint32 `json:"num_gc"`
}

// CPUStats describe the processors visible to the runtime
type CPUStats struct {
	NumCPU     int   `json:"num_cpu"`
	NumCgoCall int64 `json:"num_cgo_call"`
}

// RuntimeStats reads the current runtime statistics
func RuntimeStats() Stats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return Stats{
		Goroutines: runtime.NumGoroutine(),
		Memory: MemoryStats{
			Alloc:      m.Alloc,
			TotalAlloc: m.TotalAlloc,
			Sys:        m.Sys,
			NumGC:      m.NumGC,
		},
		CPU: CPUStats{
			NumCPU:     runtime.NumCPU(),
			NumCgoCall: runtime.NumCgoCall(),
		},
	}
}

// StatsHandler serves RuntimeStats as JSON
func StatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.RenderJSON(w, http.StatusOK, RuntimeStats())
	}
}
