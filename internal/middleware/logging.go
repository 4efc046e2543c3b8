package middleware

import (
	"net/http"
	"time"

	"github.com/cyclopcam/logs"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/technosupport/ts-vms-es/internal/events"
)

// RequestLogger logs one line per request with the chi request id.
// chimiddleware.RequestID must run first for the id to be present.
func RequestLogger(log logs.Log) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := chimiddleware.GetReqID(r.Context())
			if reqID != "" {
				w.Header().Set("X-Request-ID", reqID)
			}

			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			duration := time.Since(start)

			// Server errors are worth a warning, everything else is noise at info.
			if status >= http.StatusInternalServerError {
				log.Warnf("[REQ:%s] %s %s from %s completed %d in %v", reqID, r.Method, r.URL.Path, r.RemoteAddr, status, duration)
			} else {
				log.Infof("[REQ:%s] %s %s from %s completed %d in %v", reqID, r.Method, r.URL.Path, r.RemoteAddr, status, duration)
			}
		})
	}
}

// CorrelationID copies the request id into the context so every event
// appended while serving the request records it in its metadata.
// A caller-supplied X-Correlation-ID wins over the generated id.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Correlation-ID")
		if id == "" {
			id = chimiddleware.GetReqID(r.Context())
		}
		if id == "" {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("X-Correlation-ID", id)
		next.ServeHTTP(w, r.WithContext(events.WithCorrelationID(r.Context(), id)))
	})
}
