package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/cyclopcam/logs"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/technosupport/ts-vms-es/internal/dedup"
)

const IdempotencyKeyHeader = "Idempotency-Key"

// Idempotency drops replays of telemetry posts. A request whose
// Idempotency-Key already completed successfully within the window is
// answered 200 with {"duplicate":true} and never reaches the handler. A key
// still being served answers 409 with Retry-After, since the first attempt
// may yet fail. Requests without the header pass through untouched.
type Idempotency struct {
	window *dedup.Window
	log    logs.Log
}

func NewIdempotency(w *dedup.Window, log logs.Log) *Idempotency {
	return &Idempotency{window: w, log: log}
}

func (m *Idempotency) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(IdempotencyKeyHeader)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}

		scoped := r.Method + " " + r.URL.Path + " " + key
		switch m.window.Reserve(scoped) {
		case dedup.Done:
			m.log.Debugf("Duplicate request %s", scoped)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]bool{"duplicate": true})
			return
		case dedup.Pending:
			m.log.Debugf("Request %s still in progress", scoped)
			w.Header().Set("Retry-After", "1")
			respondConflict(w, "A request with this Idempotency-Key is still in progress.")
			return
		}

		// Anything but a completed success frees the key, including a panic
		// on its way to the recoverer.
		committed := false
		defer func() {
			if !committed {
				m.window.Release(scoped)
			}
		}()

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		if status := ww.Status(); status < http.StatusMultipleChoices {
			m.window.Commit(scoped)
			committed = true
		}
	})
}

func respondConflict(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusConflict)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
