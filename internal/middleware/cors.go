package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS allows browser clients from origins to call the camera API.
// Preflight requests are answered here and never reach the router.
func CORS(origins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"Content-Type", "Authorization", "Idempotency-Key", "X-Correlation-ID"},
		ExposedHeaders: []string{"Location", "X-Request-ID", "X-Correlation-ID", "Retry-After"},
		MaxAge:         300,
	})
	return c.Handler
}
