// Package middleware contains the HTTP middleware the router installs around
// every request.
//
// Each constructor returns the chi-compatible shape:
//
//	func(next http.Handler) http.Handler
//
// so they compose with router.Use in the order listed in server.New.
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/hospital-directory/internal/auth"
)

// responseWriter wraps http.ResponseWriter to capture the status code and the
// number of bytes written. Go's ResponseWriter does not expose either after
// the fact.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	written     int64
	wroteHeader bool
}

func wrap(w http.ResponseWriter) *responseWriter {
	if rw, ok := w.(*responseWriter); ok {
		return rw
	}
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

// WriteHeader records the first status code sent.
func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

// Write counts the body bytes. An implicit 200 is recorded if WriteHeader was
// never called.
func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.wroteHeader = true
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Logger logs each completed request: method, path, status, duration, bytes
// and, when the Auth Gate accepted a token, the caller's user_id.
//
// The level follows the status: Info below 400, Warn for 4xx, Error for 5xx.
// The query string is never logged because it carries the token.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrap(w)

			ctx, caller := auth.TrackIdentity(r.Context())
			next.ServeHTTP(wrapped, r.WithContext(ctx))

			attrs := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", wrapped.statusCode),
				slog.Duration("duration", time.Since(start)),
				slog.Int64("bytes", wrapped.written),
			}
			if id, ok := caller(); ok {
				attrs = append(attrs, slog.String("user_id", id.ID))
			}

			level := slog.LevelInfo
			switch {
			case wrapped.statusCode >= 500:
				level = slog.LevelError
			case wrapped.statusCode >= 400:
				level = slog.LevelWarn
			}

			logger.Log(r.Context(), level, "request completed", attrs...)
		})
	}
}
