package handler

// RESPONSE ENVELOPE:
// Every answer, success or failure, is a JSON object with an "ok" flag:
//
//	{"ok": true,  "hospital": {...}}
//	{"ok": true,  "hospitales": [...], "total": 12}
//	{"ok": false, "mensaje": "Error al crear hospital", "errors": {"message": "...", "field": "nombre"}}
//
// The Spanish keys are the contract the existing frontend speaks.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/hospital-directory/internal/apperror"
	"github.com/sakif/hospital-directory/internal/service"
)

// MsgInternal is the detail shown for faults whose cause must stay private.
const MsgInternal = "Error interno del servidor"

// envelope is a success body. ok:true is added by writeOK.
type envelope map[string]any

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	OK      bool              `json:"ok"`
	Mensaje string            `json:"mensaje"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// writeJSON sends data with the given status. Headers must be set before
// WriteHeader, and the body after it.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already sent; all we can do is log.
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

func writeOK(w http.ResponseWriter, status int, body envelope) {
	body["ok"] = true
	writeJSON(w, status, body)
}

// writeError maps err to a status code and writes the failure envelope. It is
// the only place where error kinds become HTTP statuses; a kind missing from
// the switch falls through to 500 and is logged, never swallowed.
//
// mensaje names the failed operation ("Error al crear hospital"). It is shown
// for validation errors, with the specific problem under errors, and for
// internal faults, whose cause is logged but not sent. Every other kind uses
// the AppError's own message.
func writeError(w http.ResponseWriter, err error, mensaje string) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		slog.Error("unhandled error",
			slog.String("mensaje", mensaje),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Mensaje: mensaje,
			Errors:  map[string]string{"message": MsgInternal},
		})
		return
	}

	status := http.StatusInternalServerError
	body := ErrorResponse{
		Mensaje: appErr.Message,
		Errors:  map[string]string{"message": appErr.Message},
	}

	switch {
	case errors.Is(err, apperror.ErrValidation):
		status = http.StatusBadRequest
		body.Mensaje = mensaje
		if appErr.Field != "" {
			body.Errors["field"] = appErr.Field
		}
	case errors.Is(err, apperror.ErrInvalidExtension):
		status = http.StatusBadRequest
		body.Errors["message"] = "Las extensiones válidas son: " + strings.Join(service.ValidExtensions, ", ")
	case errors.Is(err, apperror.ErrNotFound),
		errors.Is(err, apperror.ErrCredentials),
		errors.Is(err, apperror.ErrInvalidCollection),
		errors.Is(err, apperror.ErrMissingFile):
		status = http.StatusBadRequest
	case errors.Is(err, apperror.ErrUnauthorized),
		errors.Is(err, apperror.ErrForbidden):
		status = http.StatusUnauthorized
	case errors.Is(err, apperror.ErrStorage):
		slog.Error("storage fault", slog.String("error", err.Error()))
		body.Errors["message"] = MsgInternal
	default:
		slog.Error("unmapped application error",
			slog.String("mensaje", mensaje),
			slog.String("error", err.Error()),
		)
		body.Mensaje = mensaje
		body.Errors["message"] = MsgInternal
	}

	writeJSON(w, status, body)
}
