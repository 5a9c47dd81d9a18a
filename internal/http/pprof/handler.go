package pprof

import (
	"expvar"
	"net/http"
	"net/http/pprof"
	runtimePprof "runtime/pprof"
)

type Handler struct {
	mux *http.ServeMux
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// NewHandler exposes the runtime profiles and expvar. Unknown profile names
// answer 404 instead of pprof's default error page.
func NewHandler() *Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", pprof.Index)
	mux.HandleFunc("GET /cmdline", pprof.Cmdline)
	mux.HandleFunc("GET /profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("GET /trace", pprof.Trace)
	mux.Handle("GET /vars", expvar.Handler())

	for _, profile := range runtimePprof.Profiles() {
		mux.Handle("GET /"+profile.Name(), pprof.Handler(profile.Name()))
	}

	return &Handler{mux}
}

var _ http.Handler = &Handler{}
