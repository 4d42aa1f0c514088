package handler

import (
	"context"
	_ "embed"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/hospital-directory/internal/model"
	"github.com/sakif/hospital-directory/internal/storage"
)

//go:embed assets/no-img.png
var placeholder []byte

// ImageReader opens stored images. *storage.Storage implements it.
type ImageReader interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// ImageHandler serves /img.
type ImageHandler struct {
	images ImageReader
	logger *slog.Logger
}

func NewImageHandler(images ImageReader, logger *slog.Logger) *ImageHandler {
	return &ImageHandler{images: images, logger: logger}
}

// HandleImage streams a stored image, or the placeholder when the collection
// is unknown or the object does not exist.
//
// HTTP: GET /img/{tipo}/{img}
func (h *ImageHandler) HandleImage(w http.ResponseWriter, r *http.Request) {
	collection, ok := model.ParseCollection(chi.URLParam(r, "tipo"))
	name := path.Base(chi.URLParam(r, "img"))
	if !ok || name == "." || name == "/" || name == ".." {
		servePlaceholder(w)
		return
	}

	obj, err := h.images.Get(r.Context(), storage.Key(string(collection), name))
	if err != nil {
		if !errors.Is(err, storage.ErrObjectNotFound) {
			h.logger.Error("failed to open image",
				slog.String("collection", string(collection)),
				slog.String("img", name),
				slog.String("error", err.Error()),
			)
		}
		servePlaceholder(w)
		return
	}
	defer obj.Close()

	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj); err != nil {
		h.logger.Warn("image stream interrupted",
			slog.String("img", name),
			slog.String("error", err.Error()),
		)
	}
}

func servePlaceholder(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(placeholder)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(placeholder)
}
