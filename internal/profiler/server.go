// Package profiler exposes the runtime pprof endpoints on their own handler so
// they can be served on a separate, non-public port.
package profiler

import (
	"net/http"
	"net/http/pprof"
)

// Handler returns a handler serving /debug/pprof/*.
func Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	return mux
}
