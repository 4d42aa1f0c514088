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

const (
	MsgBadEmail           = "Credenciales incorrectas. dev:->email"
	MsgBadPassword        = "Credenciales incorrectas. dev:->password"
	MsgInvalidGoogleToken = "Token de Google no válido"
	MsgUseNormalLogin     = "Debe usar su autenticación normal"
	MsgGoogleDisabled     = "El inicio de sesión con Google no está habilitado"
)

// GoogleVerifier turns a Google credential into a verified profile.
// *auth.GoogleProvider implements it.
type GoogleVerifier interface {
	VerifyIDToken(ctx context.Context, raw string) (*auth.GoogleUser, error)
	Exchange(ctx context.Context, code string) (*auth.GoogleUser, error)
}

// GoogleCredential is the body of POST /login/google. Either the ID token from
// Google Sign-In or an authorization code from the redirect flow.
type GoogleCredential struct {
	IDToken string `json:"token"`
	Code    string `json:"code"`
}

// AuthResult is what every login operation returns: the identity snapshot
// that was signed (password already replaced) and the token itself.
type AuthResult struct {
	Usuario model.Identity
	Token   string
}

// AuthService handles login, Google sign-in and token renewal.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users      repository.UserRepository  → read/write user records
//   - tokens     *auth.TokenService         → sign identity tokens
//   - passwords  *auth.PasswordService      → bcrypt comparison
//   - google     GoogleVerifier             → nil disables Google sign-in
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	google    GoogleVerifier
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	google GoogleVerifier,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		google:    google,
		logger:    logger,
	}
}

// Login checks email and password and issues a token.
//
// The two failure messages differ on purpose for the frontend's developers;
// both map to the same 400 status. A repository fault is returned wrapped so
// the handler answers 500.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Credentials(MsgBadEmail)
		}
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	}

	if err := s.passwords.Verify(user.Password, password); err != nil {
		s.logger.Info("login rejected", slog.String("userID", user.ID))
		return nil, apperror.Credentials(MsgBadPassword)
	}

	return s.issue(user)
}

// LoginGoogle signs in with a Google credential, creating the account on first use.
// An existing account created with a password cannot sign in through Google.
func (s *AuthService) LoginGoogle(ctx context.Context, cred GoogleCredential) (*AuthResult, error) {
	if s.google == nil {
		return nil, apperror.Unauthorized(MsgGoogleDisabled)
	}

	var (
		profile *auth.GoogleUser
		err     error
	)
	switch {
	case cred.IDToken != "":
		profile, err = s.google.VerifyIDToken(ctx, cred.IDToken)
	case cred.Code != "":
		profile, err = s.google.Exchange(ctx, cred.Code)
	default:
		return nil, apperror.ValidationFailed("token", "El token de Google es necesario")
	}
	if err != nil {
		s.logger.Info("google credential rejected", slog.String("error", err.Error()))
		return nil, apperror.Unauthorized(MsgInvalidGoogleToken)
	}

	user, err := s.users.GetUserByEmail(ctx, profile.Email)
	switch {
	case err == nil:
		if !user.Google {
			return nil, apperror.Credentials(MsgUseNormalLogin)
		}
	case errors.Is(err, apperror.ErrNotFound):
		user, err = s.registerGoogleUser(ctx, profile)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	}

	return s.issue(user)
}

func (s *AuthService) registerGoogleUser(ctx context.Context, profile *auth.GoogleUser) (*model.User, error) {
	nombre := profile.GivenName
	if nombre == "" {
		nombre = profile.Name
	}
	user := &model.User{
		Nombre:         nombre,
		PrimerApellido: profile.FamilyName,
		Email:          profile.Email,
		// The placeholder is not a bcrypt hash, so password login can never
		// succeed for this account.
		Password: model.PasswordPlaceholder,
		Img:      profile.Picture,
		Role:     model.RoleUser,
		Google:   true,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: registering google user: %w", err)
	}

	s.logger.Info("user registered via Google", slog.String("userID", user.ID))
	return user, nil
}

// Renew issues a fresh token for caller. The user is reloaded so role and
// profile changes made since the last token are picked up.
func (s *AuthService) Renew(ctx context.Context, caller model.Identity) (*AuthResult, error) {
	user, err := s.users.GetUserByID(ctx, caller.ID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized(auth.MsgInvalidToken)
		}
		return nil, fmt.Errorf("service/auth: reloading user %s: %w", caller.ID, err)
	}
	return s.issue(user)
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	identity := user.Identity()
	token, err := s.tokens.Issue(identity)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for %s: %w", user.ID, err)
	}
	return &AuthResult{Usuario: identity, Token: token}, nil
}
