package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/hospital-directory/internal/service"
)

// SearchHandler serves /busqueda.
type SearchHandler struct {
	search *service.SearchService
}

func NewSearchHandler(search *service.SearchService) *SearchHandler {
	return &SearchHandler{search: search}
}

// HandleCollection searches one collection.
//
// HTTP: GET /busqueda/coleccion/{coleccion}/{busqueda} → {ok, <coleccion>: [...]}
func (h *SearchHandler) HandleCollection(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "coleccion")

	result, err := h.search.SearchInCollection(r.Context(), kind, chi.URLParam(r, "busqueda"))
	if err != nil {
		writeError(w, err, "Error en la búsqueda")
		return
	}
	writeOK(w, http.StatusOK, envelope{string(result.Collection): result.Items()})
}

// HandleAll searches hospitals, doctors and users at once.
//
// HTTP: GET /busqueda/todo/{busqueda} → {ok, hospitales, medicos, usuarios}
func (h *SearchHandler) HandleAll(w http.ResponseWriter, r *http.Request) {
	all, err := h.search.SearchAll(r.Context(), chi.URLParam(r, "busqueda"))
	if err != nil {
		writeError(w, err, "Error en la búsqueda")
		return
	}
	writeOK(w, http.StatusOK, envelope{
		"hospitales": all.Hospitales,
		"medicos":    all.Medicos,
		"usuarios":   all.Usuarios,
	})
}
