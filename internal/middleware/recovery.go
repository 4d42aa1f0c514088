package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"
)

// envelope mirrors the handler package's error body so this package does not
// import handler.
type envelope struct {
	OK      bool              `json:"ok"`
	Mensaje string            `json:"mensaje"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func writeEnvelope(w http.ResponseWriter, status int, mensaje, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := envelope{OK: false, Mensaje: mensaje}
	if detail != "" {
		body.Errors = map[string]string{"message": detail}
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode middleware response", slog.String("error", err.Error()))
	}
}

// Recovery turns a panicking handler into a 500 envelope and logs the stack.
// http.ErrAbortHandler is re-panicked so net/http can abort the connection.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("panic recovered",
					slog.Any("panic", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(debug.Stack())),
				)
				writeEnvelope(w, http.StatusInternalServerError, "Error interno del servidor", "")
			}()
			next.ServeHTTP(w, r)
		})
	}
}
