package model

// Identity is the authenticated caller as decoded from a signed token.
// It is a snapshot taken at issue time and is never persisted.
type Identity struct {
	ID              string `json:"_id"`
	Nombre          string `json:"nombre"`
	PrimerApellido  string `json:"primer_apellido"`
	SegundoApellido string `json:"segundo_apellido,omitempty"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	Img             string `json:"img,omitempty"`
	Role            Role   `json:"role"`
	Google          bool   `json:"google"`
}

// IsAdmin reports whether the identity carries the administrator role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Ref projects the identity the same way an owner reference is projected.
func (i Identity) Ref() *UserRef {
	return &UserRef{
		ID:              i.ID,
		Nombre:          i.Nombre,
		PrimerApellido:  i.PrimerApellido,
		SegundoApellido: i.SegundoApellido,
		Email:           i.Email,
	}
}
