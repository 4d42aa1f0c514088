// Package repository declares the persistence contracts for users, hospitals
// and doctors. Implementations live in the sqlite and postgres subpackages.
//
// Conventions shared by every implementation:
//   - GetXByID, UpdateX and DeleteX return apperror.NotFound when the id has no
//     row. Driver faults come back wrapped, never as an *apperror.AppError, so
//     callers can tell "no such record" (400) from "could not ask" (500).
//   - A unique-constraint violation is apperror.Duplicate(field).
//   - List and search results resolve owner and hospital references into
//     projections. A reference whose target was deleted resolves to nil.
package repository

import (
	"context"
	"strings"

	"github.com/sakif/hospital-directory/internal/model"
)

// PageSize is the fixed number of records returned by every list call.
const PageSize = 5

type ListOptions struct {
	Offset int // "desde" query parameter; records to skip
}

// Limit returns the page size. It is a method so callers never hand-pick one.
func (ListOptions) Limit() int {
	return PageSize
}

type UserRepository interface {
	ListUsers(ctx context.Context, opts ListOptions) ([]model.User, int, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	CreateUser(ctx context.Context, user *model.User) error
	UpdateUser(ctx context.Context, user *model.User) error
	DeleteUser(ctx context.Context, id string) (*model.User, error)
	SearchUsers(ctx context.Context, term string) ([]model.User, error)
	SetUserImage(ctx context.Context, id, img string) (*model.User, string, error)
}

type HospitalRepository interface {
	ListHospitals(ctx context.Context, opts ListOptions) ([]model.Hospital, int, error)
	GetHospitalByID(ctx context.Context, id string) (*model.Hospital, error)
	CreateHospital(ctx context.Context, hospital *model.Hospital) error
	UpdateHospital(ctx context.Context, hospital *model.Hospital) error
	DeleteHospital(ctx context.Context, id string) (*model.Hospital, error)
	SearchHospitals(ctx context.Context, term string) ([]model.Hospital, error)
	SetHospitalImage(ctx context.Context, id, img string) (*model.Hospital, string, error)
}

type DoctorRepository interface {
	ListDoctors(ctx context.Context, opts ListOptions) ([]model.Doctor, int, error)
	GetDoctorByID(ctx context.Context, id string) (*model.Doctor, error)
	CreateDoctor(ctx context.Context, doctor *model.Doctor) error
	UpdateDoctor(ctx context.Context, doctor *model.Doctor) error
	DeleteDoctor(ctx context.Context, id string) (*model.Doctor, error)
	SearchDoctors(ctx context.Context, term string) ([]model.Doctor, error)
	SetDoctorImage(ctx context.Context, id, img string) (*model.Doctor, string, error)
}

// Store is everything the application needs from a backend.
type Store interface {
	UserRepository
	HospitalRepository
	DoctorRepository
	Ping(ctx context.Context) error
	Close() error
}

// LikePattern turns a free-text term into a LIKE pattern that matches it as a
// case-insensitive substring. The term is lowercased with Unicode rules, so the
// column must be folded the same way (unicode_lower on SQLite, LOWER on
// Postgres), and the LIKE metacharacters are escaped with '\', so a search for
// "50%" matches the literal text. Use with ESCAPE '\'.
func LikePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(term)) + "%"
}
