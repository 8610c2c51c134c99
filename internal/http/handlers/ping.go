package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// PingHandler answers liveness probes. Once stopping reports true it
// answers 503 so load balancers drain the instance.
type PingHandler struct {
	stopping func() bool
}

// NewPingHandler creates a ping handler. stopping may be nil.
func NewPingHandler(stopping func() bool) *PingHandler {
	if stopping == nil {
		stopping = func() bool { return false }
	}
	return &PingHandler{stopping: stopping}
}

// RegisterChiRoutes registers GET /ping.
func (h *PingHandler) RegisterChiRoutes(r chi.Router) {
	r.Get("/ping", h.Ping)
}

// Ping writes "pong", or "stopping" with 503 during shutdown.
func (h *PingHandler) Ping(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if h.stopping() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("stopping"))
		return
	}
	_, _ = w.Write([]byte("pong"))
}
