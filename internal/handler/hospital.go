package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/hospital-directory/internal/model"
	"github.com/sakif/hospital-directory/internal/service"
)

// HospitalHandler serves /hospital.
type HospitalHandler struct {
	hospitals *service.HospitalService
}

func NewHospitalHandler(hospitals *service.HospitalService) *HospitalHandler {
	return &HospitalHandler{hospitals: hospitals}
}

// HandleList returns one page of hospitals with their owners resolved.
//
// HTTP: GET /hospital?desde=N → {ok, hospitales, total}
func (h *HospitalHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	hospitals, total, err := h.hospitals.List(r.Context(), desde(r))
	if err != nil {
		writeError(w, err, "Error al cargar hospitales.")
		return
	}
	writeOK(w, http.StatusOK, envelope{"hospitales": hospitals, "total": total})
}

// HTTP: POST /hospital?token= → 201 {ok, hospital}
func (h *HospitalHandler) HandleCreate(w http.ResponseWriter, r *http.Request, caller model.Identity) {
	var in service.HospitalInput
	if err := decodeInput(w, r, &in); err != nil {
		writeError(w, err, "Error al crear hospital.")
		return
	}

	hospital, err := h.hospitals.Create(r.Context(), caller, in)
	if err != nil {
		writeError(w, err, "Error al crear hospital.")
		return
	}
	writeOK(w, http.StatusCreated, envelope{"hospital": hospital})
}

// HTTP: PUT /hospital/{id}?token= → {ok, hospital}
func (h *HospitalHandler) HandleUpdate(w http.ResponseWriter, r *http.Request, caller model.Identity) {
	id := chi.URLParam(r, "id")

	var in service.HospitalInput
	if err := decodeInput(w, r, &in); err != nil {
		writeError(w, err, "Error al actualizar hospital con id "+id+".")
		return
	}

	hospital, err := h.hospitals.Update(r.Context(), caller, id, in)
	if err != nil {
		writeError(w, err, "Error al actualizar hospital con id "+id+".")
		return
	}
	writeOK(w, http.StatusOK, envelope{"hospital": hospital})
}

// HTTP: DELETE /hospital/{id}?token= → {ok, hospital}
func (h *HospitalHandler) HandleDelete(w http.ResponseWriter, r *http.Request, _ model.Identity) {
	hospital, err := h.hospitals.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, "Error al eliminar el hospital")
		return
	}
	writeOK(w, http.StatusOK, envelope{"hospital": hospital})
}
