package handler

import "net/http"

// HandleIndex answers GET / so clients can check the API is up.
func HandleIndex(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, http.StatusOK, envelope{"mensaje": "Petición realizada correctamente"})
}
