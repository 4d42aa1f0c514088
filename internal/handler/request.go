package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/sakif/hospital-directory/internal/apperror"
)

// maxBodyBytes caps JSON and form bodies. Uploads have their own limit.
const maxBodyBytes = 1 << 20

// decodeInput fills dst from the request body. The frontend sends either JSON
// or x-www-form-urlencoded, so both are accepted; form values are mapped onto
// the same json field names.
func decodeInput(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		if err := r.ParseForm(); err != nil {
			return apperror.ValidationFailed("body", "El cuerpo de la petición no es válido")
		}
		fields := make(map[string]string, len(r.PostForm))
		for k := range r.PostForm {
			fields[k] = r.PostForm.Get(k)
		}
		raw, err := json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("handler: re-encoding form: %w", err)
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return apperror.ValidationFailed("body", "El cuerpo de la petición no es válido")
		}
		return nil
	}

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil // empty body; validation reports the missing fields
		}
		return apperror.ValidationFailed("body", "El cuerpo de la petición no es un JSON válido")
	}
	return nil
}

// desde reads the pagination offset. Anything that is not a non-negative
// integer counts as 0.
func desde(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("desde"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
