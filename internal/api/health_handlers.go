package api

import (
	"context"
	"net/http"
	"time"

	"github.com/cyclopcam/logs"
)

// Pinger is a backing service the server cannot work without.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type HealthHandler struct {
	Checks map[string]Pinger
	Log    logs.Log
}

func NewHealthHandler(checks map[string]Pinger, log logs.Log) *HealthHandler {
	return &HealthHandler{Checks: checks, Log: log}
}

// GET /healthz
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// GET /readyz reports every dependency as ok or unavailable; any failure
// makes the whole response 503. Ping errors are only logged.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	report := make(map[string]string, len(h.Checks))
	for name, c := range h.Checks {
		if err := c.Ping(ctx); err != nil {
			h.Log.Warnf("Readiness check %s failed: %v", name, err)
			report[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		report[name] = "ok"
	}
	respondJSON(w, status, report)
}
