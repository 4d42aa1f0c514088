// Package model defines the data structures used throughout the application.
package model

import "time"

// Role is the authorization level attached to a User.
type Role string

const (
	RoleAdmin Role = "ADMIN_ROLE"
	RoleUser  Role = "USER_ROLE"
)

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// PasswordPlaceholder replaces the password hash anywhere a user record leaves
// the server inside a token or login response. Google-created accounts also
// store it as their "hash", which bcrypt can never match.
const PasswordPlaceholder = ";P"

// User represents a registered account.
//
// JSON field names keep the wire contract the frontend already speaks
// (Spanish names, Mongo-style "_id"). Password holds the bcrypt hash while the
// record is inside the server; repositories never select it for list or search
// queries, and omitempty keeps it out of those responses.
type User struct {
	ID              string    `json:"_id"                        db:"id"`
	Nombre          string    `json:"nombre"                     db:"nombre"`
	PrimerApellido  string    `json:"primer_apellido"            db:"primer_apellido"`
	SegundoApellido string    `json:"segundo_apellido,omitempty" db:"segundo_apellido"`
	Email           string    `json:"email"                      db:"email"`
	Password        string    `json:"password,omitempty"         db:"password"`
	Img             string    `json:"img,omitempty"              db:"img"`
	Role            Role      `json:"role"                       db:"role"`
	Google          bool      `json:"google"                     db:"google"`
	CreatedAt       time.Time `json:"createdAt"                  db:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt"                  db:"updated_at"`
}

// Identity returns the claim snapshot of u with the password scrubbed.
func (u *User) Identity() Identity {
	return Identity{
		ID:              u.ID,
		Nombre:          u.Nombre,
		PrimerApellido:  u.PrimerApellido,
		SegundoApellido: u.SegundoApellido,
		Email:           u.Email,
		Password:        PasswordPlaceholder,
		Img:             u.Img,
		Role:            u.Role,
		Google:          u.Google,
	}
}

// Public returns a copy of u without the password hash.
func (u User) Public() User {
	u.Password = ""
	return u
}

// UserRef is the projection of a User embedded in hospitals and doctors.
type UserRef struct {
	ID              string `json:"_id"`
	Nombre          string `json:"nombre"`
	PrimerApellido  string `json:"primer_apellido"`
	SegundoApellido string `json:"segundo_apellido,omitempty"`
	Email           string `json:"email"`
}
