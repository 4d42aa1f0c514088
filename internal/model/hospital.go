package model

import "time"

// Hospital is a directory entry owned by the user who last created or edited it.
type Hospital struct {
	ID        string    `json:"_id"`
	Nombre    string    `json:"nombre"`
	Img       string    `json:"img,omitempty"`
	Usuario   *UserRef  `json:"usuario"` // nil when the owner was deleted
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// OwnerID returns the owning user's id, or "" when there is none.
func (h *Hospital) OwnerID() string {
	if h.Usuario == nil {
		return ""
	}
	return h.Usuario.ID
}

// HospitalRef is the projection of a Hospital embedded in doctors.
type HospitalRef struct {
	ID     string `json:"_id"`
	Nombre string `json:"nombre"`
	Img    string `json:"img,omitempty"`
}
