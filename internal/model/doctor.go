package model

import "time"

// Doctor belongs to a hospital and, like Hospital, to the user who last edited it.
type Doctor struct {
	ID        string       `json:"_id"`
	Nombre    string       `json:"nombre"`
	Img       string       `json:"img,omitempty"`
	Usuario   *UserRef     `json:"usuario"`
	Hospital  *HospitalRef `json:"hospital"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

func (d *Doctor) OwnerID() string {
	if d.Usuario == nil {
		return ""
	}
	return d.Usuario.ID
}

func (d *Doctor) HospitalID() string {
	if d.Hospital == nil {
		return ""
	}
	return d.Hospital.ID
}
