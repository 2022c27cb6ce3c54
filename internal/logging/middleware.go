package logging

import (
	"context"
	"log/slog"
	"net/http"
)

// NewRequestLoggerMiddleware attaches a per-request logger carrying the
// request key and client metadata to the request context.
func NewRequestLoggerMiddleware(logger *slog.Logger) func(next http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			key := r.URL.Query().Get("key")
			if key == "" {
				key = "<missing>"
			}

			userAgent := r.UserAgent()
			if userAgent == "" {
				userAgent = "<missing>"
			}

			requestLogger := logger.With(
				slog.String("key", key),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("userAgent", userAgent),
			)

			next(w, r.WithContext(context.WithValue(r.Context(), requestLoggerContextKey{}, requestLogger)))
		}
	}
}
