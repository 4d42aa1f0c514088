// Package service contains the business logic of the hospital directory.
//
//	Handler (HTTP) → Service (rules, orchestration) → Repository / Storage
//
// Services accept plain values and model.Identity, never *http.Request, and
// return apperror values that the handler package maps to status codes. They
// depend on the repository interfaces so tests can run against fakes.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/hospital-directory/internal/apperror"
	"github.com/sakif/hospital-directory/internal/model"
	"github.com/sakif/hospital-directory/internal/storage"
)

// OwnershipPolicy decides who owns a hospital or doctor after an update.
type OwnershipPolicy int

const (
	// OwnershipLastEditor stamps the updating caller as the new owner.
	OwnershipLastEditor OwnershipPolicy = iota
	// OwnershipPreserve keeps whoever owned the record before the update.
	OwnershipPreserve
)

// ParseOwnershipPolicy maps the OWNERSHIP_POLICY setting to a policy.
func ParseOwnershipPolicy(s string) (OwnershipPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "last-editor":
		return OwnershipLastEditor, nil
	case "preserve":
		return OwnershipPreserve, nil
	}
	return 0, fmt.Errorf("service: unknown ownership policy %q", s)
}

func (p OwnershipPolicy) String() string {
	if p == OwnershipPreserve {
		return "preserve"
	}
	return "last-editor"
}

// owner picks the owner reference for an updated record.
func (p OwnershipPolicy) owner(caller model.Identity, current *model.UserRef) *model.UserRef {
	if p == OwnershipPreserve {
		return current
	}
	return caller.Ref()
}

// ImageStore is the part of storage.Storage the services use.
type ImageStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
}

var _ ImageStore = (*storage.Storage)(nil)

// discardImage deletes the stored file behind img. It runs after the database
// no longer points at the file, so a failure only leaves an orphan and is
// logged instead of returned.
func discardImage(ctx context.Context, store ImageStore, logger *slog.Logger, kind model.Collection, img string) bool {
	if store == nil || img == "" || strings.Contains(img, "://") {
		return true
	}
	if err := store.Delete(ctx, storage.Key(string(kind), img)); err != nil {
		logger.Warn("orphaned image left in storage",
			slog.String("collection", string(kind)),
			slog.String("img", img),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}

// validate is shared by every service; validator.Validate caches struct
// metadata and is safe for concurrent use.
var validate = newValidator()

// newValidator reports fields by their json name so errors point at the
// request field the client sent.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// fieldMessages holds the client-facing message per json field and tag.
var fieldMessages = map[string]string{
	"nombre.required":          "El nombre es necesario",
	"primer_apellido.required": "El primer apellido es necesario",
	"email.required":           "El email es necesario",
	"email.email":              "El email no es válido",
	"password.required":        "La contraseña es necesaria",
	"password.max":             "La contraseña no puede superar 72 bytes",
	"hospital.required":        "El id del hospital es requerido",
}

// validateInput runs struct validation and converts the first failure into an
// apperror.ValidationFailed naming the offending json field.
func validateInput(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("service: validating input: %w", err)
	}
	fe := verrs[0]
	field := fe.Field()
	if msg, ok := fieldMessages[field+"."+fe.Tag()]; ok {
		return apperror.ValidationFailed(field, msg)
	}
	return apperror.ValidationFailed(field, fmt.Sprintf("%s no es válido", field))
}

func validRole(r model.Role) error {
	if r == "" || r.Valid() {
		return nil
	}
	return apperror.ValidationFailed("role", fmt.Sprintf("%s no es un rol permitido", r))
}
