package handler

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/hospital-directory/internal/apperror"
	"github.com/sakif/hospital-directory/internal/model"
	"github.com/sakif/hospital-directory/internal/service"
)

const (
	uploadField     = "imagen"
	uploadMemory    = 1 << 20 // larger parts spill to temp files
	MsgFileTooLarge = "La imagen supera el tamaño máximo permitido"
)

// recordKeys names the response field of the updated record per collection.
var recordKeys = map[model.Collection]string{
	model.CollectionUsers:     "usuario",
	model.CollectionHospitals: "hospital",
	model.CollectionDoctors:   "medico",
}

// UploadHandler serves /upload.
type UploadHandler struct {
	uploads  *service.UploadService
	maxBytes int64
	logger   *slog.Logger
}

func NewUploadHandler(uploads *service.UploadService, maxBytes int64, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{uploads: uploads, maxBytes: maxBytes, logger: logger}
}

// HandleUpload replaces the image of a user, hospital or doctor.
//
// HTTP: PUT /upload/{tipo}/{id}?token= (multipart, field "imagen")
// → {ok, mensaje:"Imagen actualizada", usuario|hospital|medico}
//
// A request without the field, or that is not multipart at all, reaches the
// service with a nil file so the collection is still checked first.
func (h *UploadHandler) HandleUpload(w http.ResponseWriter, r *http.Request, caller model.Identity) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	file, f, err := h.formFile(r)
	if err != nil {
		writeError(w, err, "Error al subir la imagen")
		return
	}
	if f != nil {
		defer f.Close()
	}

	result, err := h.uploads.Upload(r.Context(), chi.URLParam(r, "tipo"), chi.URLParam(r, "id"), file)
	if err != nil {
		writeError(w, err, "Error al subir la imagen")
		return
	}

	h.logger.Debug("image uploaded",
		slog.String("collection", string(result.Collection)),
		slog.String("img", result.Filename),
		slog.String("callerID", caller.ID),
	)
	writeOK(w, http.StatusOK, envelope{
		"mensaje":                      "Imagen actualizada",
		recordKeys[result.Collection]: result.Record(),
	})
}

// formFile returns the uploaded image, nil when the request carries none.
func (h *UploadHandler) formFile(r *http.Request) (*service.UploadFile, multipart.File, error) {
	if err := r.ParseMultipartForm(uploadMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, apperror.ValidationFailed(uploadField, MsgFileTooLarge)
		}
		return nil, nil, nil
	}

	f, header, err := r.FormFile(uploadField)
	if err != nil {
		return nil, nil, nil
	}
	return &service.UploadFile{
		Filename: header.Filename,
		Size:     header.Size,
		Body:     f,
	}, f, nil
}
