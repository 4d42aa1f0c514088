package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/hospital-directory/internal/apperror"
	"github.com/sakif/hospital-directory/internal/auth"
	"github.com/sakif/hospital-directory/internal/model"
	"github.com/sakif/hospital-directory/internal/repository"
)

// CreateUserInput is the body of POST /usuario.
type CreateUserInput struct {
	Nombre          string     `json:"nombre"           validate:"required"`
	PrimerApellido  string     `json:"primer_apellido"  validate:"required"`
	SegundoApellido string     `json:"segundo_apellido"`
	Email           string     `json:"email"            validate:"required,email"`
	Password        string     `json:"password"         validate:"required,max=72"`
	Img             string     `json:"img"`
	Role            model.Role `json:"role"`
}

// UpdateUserInput is the body of PUT /usuario/{id}. Password, img and the
// google flag are not editable here.
type UpdateUserInput struct {
	Nombre          string     `json:"nombre"           validate:"required"`
	PrimerApellido  string     `json:"primer_apellido"  validate:"required"`
	SegundoApellido string     `json:"segundo_apellido"`
	Email           string     `json:"email"            validate:"required,email"`
	Role            model.Role `json:"role"`
}

// UserService manages user accounts.
type UserService struct {
	repo      repository.UserRepository
	passwords *auth.PasswordService
	images    ImageStore
	logger    *slog.Logger
}

func NewUserService(repo repository.UserRepository, passwords *auth.PasswordService, images ImageStore, logger *slog.Logger) *UserService {
	return &UserService{
		repo:      repo,
		passwords: passwords,
		images:    images,
		logger:    logger,
	}
}

// List returns one page of users and the total count. Hashes are never included.
func (s *UserService) List(ctx context.Context, desde int) ([]model.User, int, error) {
	users, total, err := s.repo.ListUsers(ctx, repository.ListOptions{Offset: desde})
	if err != nil {
		return nil, 0, fmt.Errorf("service/user: listing users: %w", err)
	}
	return users, total, nil
}

// Create registers a new user with a bcrypt-hashed password.
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (*model.User, error) {
	in.Nombre = strings.TrimSpace(in.Nombre)
	in.PrimerApellido = strings.TrimSpace(in.PrimerApellido)
	in.Email = strings.TrimSpace(in.Email)

	if err := validateInput(in); err != nil {
		return nil, err
	}
	if err := validRole(in.Role); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", "La contraseña no es válida")
	}

	user := &model.User{
		Nombre:          in.Nombre,
		PrimerApellido:  in.PrimerApellido,
		SegundoApellido: strings.TrimSpace(in.SegundoApellido),
		Email:           in.Email,
		Password:        hash,
		Img:             in.Img,
		Role:            in.Role,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/user: creating user: %w", err)
	}

	s.logger.Info("user created",
		slog.String("userID", user.ID),
		slog.String("role", string(user.Role)),
	)

	created := user.Public()
	return &created, nil
}

// Update rewrites the profile of user id. A role change is honoured only when
// the caller is an administrator; otherwise the stored role is kept.
func (s *UserService) Update(ctx context.Context, caller model.Identity, id string, in UpdateUserInput) (*model.User, error) {
	in.Nombre = strings.TrimSpace(in.Nombre)
	in.PrimerApellido = strings.TrimSpace(in.PrimerApellido)
	in.Email = strings.TrimSpace(in.Email)

	if err := validateInput(in); err != nil {
		return nil, err
	}
	if err := validRole(in.Role); err != nil {
		return nil, err
	}

	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/user: fetching user %s: %w", id, err)
	}

	user.Nombre = in.Nombre
	user.PrimerApellido = in.PrimerApellido
	user.SegundoApellido = strings.TrimSpace(in.SegundoApellido)
	user.Email = in.Email
	if in.Role != "" && in.Role != user.Role {
		if !caller.IsAdmin() {
			s.logger.Warn("role change ignored for non-admin caller",
				slog.String("callerID", caller.ID),
				slog.String("userID", id),
			)
		} else {
			user.Role = in.Role
		}
	}

	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/user: updating user %s: %w", id, err)
	}

	updated := user.Public()
	return &updated, nil
}

// Delete removes user id and then its stored image, best effort.
func (s *UserService) Delete(ctx context.Context, id string) (*model.User, error) {
	user, err := s.repo.DeleteUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/user: deleting user %s: %w", id, err)
	}
	discardImage(ctx, s.images, s.logger, model.CollectionUsers, user.Img)

	s.logger.Info("user deleted", slog.String("userID", id))
	return user, nil
}

// EnsureAdmin creates an administrator, or promotes the existing account with
// the same email. Used by the create-admin command to bootstrap a deployment.
func (s *UserService) EnsureAdmin(ctx context.Context, in CreateUserInput) (*model.User, error) {
	existing, err := s.repo.GetUserByEmail(ctx, strings.TrimSpace(in.Email))
	switch {
	case err == nil:
		if existing.Role == model.RoleAdmin {
			u := existing.Public()
			return &u, nil
		}
		existing.Role = model.RoleAdmin
		if err := s.repo.UpdateUser(ctx, existing); err != nil {
			return nil, fmt.Errorf("service/user: promoting user %s: %w", existing.ID, err)
		}
		s.logger.Info("user promoted to admin", slog.String("userID", existing.ID))
		u := existing.Public()
		return &u, nil
	case errors.Is(err, apperror.ErrNotFound):
		in.Role = model.RoleAdmin
		return s.Create(ctx, in)
	default:
		return nil, fmt.Errorf("service/user: looking up %s: %w", in.Email, err)
	}
}
