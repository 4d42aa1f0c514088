package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/hospital-directory/internal/model"
	"github.com/sakif/hospital-directory/internal/service"
)

// UserHandler serves /usuario.
type UserHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

func NewUserHandler(users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// HandleList returns one page of users.
//
// HTTP: GET /usuario?desde=N → {ok, usuarios, total}
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, total, err := h.users.List(r.Context(), desde(r))
	if err != nil {
		writeError(w, err, "Error al cargar usuarios.")
		return
	}
	writeOK(w, http.StatusOK, envelope{"usuarios": users, "total": total})
}

// HandleCreate registers a user. Admin only.
//
// HTTP: POST /usuario?token= → 201 {ok, usuario, usuariotoken}
func (h *UserHandler) HandleCreate(w http.ResponseWriter, r *http.Request, caller model.Identity) {
	var in service.CreateUserInput
	if err := decodeInput(w, r, &in); err != nil {
		writeError(w, err, "Error al crear usuario.")
		return
	}

	user, err := h.users.Create(r.Context(), in)
	if err != nil {
		writeError(w, err, "Error al crear usuario.")
		return
	}
	writeOK(w, http.StatusCreated, envelope{"usuario": user, "usuariotoken": caller})
}

// HandleUpdate edits a user's profile. Admin or the user themselves.
//
// HTTP: PUT /usuario/{id}?token= → {ok, usuario, usuariotoken}
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request, caller model.Identity) {
	id := chi.URLParam(r, "id")

	var in service.UpdateUserInput
	if err := decodeInput(w, r, &in); err != nil {
		writeError(w, err, "Error al actualizar usuario con id "+id+".")
		return
	}

	user, err := h.users.Update(r.Context(), caller, id, in)
	if err != nil {
		writeError(w, err, "Error al actualizar usuario con id "+id+".")
		return
	}
	writeOK(w, http.StatusOK, envelope{"usuario": user, "usuariotoken": caller})
}

// HandleDelete removes a user. Admin or the user themselves.
//
// HTTP: DELETE /usuario/{id}?token= → {ok, usuario, usuariotoken}
func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request, caller model.Identity) {
	id := chi.URLParam(r, "id")

	user, err := h.users.Delete(r.Context(), id)
	if err != nil {
		writeError(w, err, "Error al eliminar usuario.")
		return
	}

	h.logger.Info("user removed via API",
		slog.String("userID", id),
		slog.String("callerID", caller.ID),
	)
	writeOK(w, http.StatusOK, envelope{"usuario": user, "usuariotoken": caller})
}
