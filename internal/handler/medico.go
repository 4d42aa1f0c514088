package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/hospital-directory/internal/model"
	"github.com/sakif/hospital-directory/internal/service"
)

// DoctorHandler serves /medico. Same shape as HospitalHandler, plus the
// hospital reference in the body.
type DoctorHandler struct {
	doctors *service.DoctorService
}

func NewDoctorHandler(doctors *service.DoctorService) *DoctorHandler {
	return &DoctorHandler{doctors: doctors}
}

func (h *DoctorHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	doctors, total, err := h.doctors.List(r.Context(), desde(r))
	if err != nil {
		writeError(w, err, "Error al cargar medicos.")
		return
	}
	writeOK(w, http.StatusOK, envelope{"medicos": doctors, "total": total})
}

func (h *DoctorHandler) HandleCreate(w http.ResponseWriter, r *http.Request, caller model.Identity) {
	var in service.DoctorInput
	if err := decodeInput(w, r, &in); err != nil {
		writeError(w, err, "Error al crear médico.")
		return
	}

	doctor, err := h.doctors.Create(r.Context(), caller, in)
	if err != nil {
		writeError(w, err, "Error al crear médico.")
		return
	}
	writeOK(w, http.StatusCreated, envelope{"medico": doctor})
}

func (h *DoctorHandler) HandleUpdate(w http.ResponseWriter, r *http.Request, caller model.Identity) {
	id := chi.URLParam(r, "id")

	var in service.DoctorInput
	if err := decodeInput(w, r, &in); err != nil {
		writeError(w, err, "Error al actualizar médico con id "+id+".")
		return
	}

	doctor, err := h.doctors.Update(r.Context(), caller, id, in)
	if err != nil {
		writeError(w, err, "Error al actualizar médico con id "+id+".")
		return
	}
	writeOK(w, http.StatusOK, envelope{"medico": doctor})
}

func (h *DoctorHandler) HandleDelete(w http.ResponseWriter, r *http.Request, _ model.Identity) {
	doctor, err := h.doctors.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, "Error al eliminar el médico")
		return
	}
	writeOK(w, http.StatusOK, envelope{"medico": doctor})
}
