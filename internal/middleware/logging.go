package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/gatekeeper/pkg/http"
	pkglogger "github.com/BradenHooton/gatekeeper/pkg/logger"
	"github.com/go-chi/chi/v5/middleware"
)

// SecureLogger logs one record per request with sensitive query strings
// redacted. The origin is resolved the same way the gate resolves it.
func SecureLogger(logger *slog.Logger, ipConfig *pkghttp.IPConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(wrapped, r)

			statusCode := wrapped.Status()
			if statusCode == 0 {
				statusCode = http.StatusOK
			}

			path := r.URL.Path
			if pkglogger.SanitizeQueryString(r.URL.RawQuery) {
				path = path + "?[REDACTED]"
			} else if r.URL.RawQuery != "" {
				path = path + "?" + r.URL.RawQuery
			}

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", path),
				slog.Int("status", statusCode),
				slog.Int("bytes", wrapped.BytesWritten()),
				slog.String("duration", time.Since(start).String()),
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("origin", pkghttp.ExtractOrigin(r, ipConfig)),
			}

			level := slog.LevelInfo
			switch {
			case statusCode >= 500:
				level = slog.LevelError
			case statusCode >= 400:
				level = slog.LevelWarn
			}

			logger.LogAttrs(context.Background(), level, "http_request", attrs...)
		})
	}
}
