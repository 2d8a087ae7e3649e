// Package middleware provides the HTTP middleware of the catalogue API.
package middleware

import (
	"net/http"
	"time"

	"github.com/JonMunkholm/catalogue/internal/logging"
	"github.com/go-chi/chi/v5/middleware"
)

// Logger logs one structured line per request with the request ID, method,
// path, status, duration, client IP and user agent. Server errors are logged
// at error level, client errors at warn.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		logger := logging.FromContext(r.Context())
		args := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", ClientIP(r),
			"user_agent", r.UserAgent(),
		}
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("request", args...)
		case status >= http.StatusBadRequest:
			logger.Warn("request", args...)
		default:
			logger.Info("request", args...)
		}
	})
}
