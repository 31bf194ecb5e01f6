// Package observability captures opt-in debug toggles that wire into the
// server's HTTP surface.
package observability

// Config enables profiling endpoints. Off by default; enable only on
// instances you are actively inspecting.
type Config struct {
	EnablePprof bool
}
