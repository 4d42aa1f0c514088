// Package auth provides identity tokens, password hashing, external identity
// verification and the request gates built on top of them.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. Client POSTs /login (email+password) or /login/google (Google credential)
//  2. Server verifies the credential and loads the User record
//  3. Server issues a JWT whose payload is a snapshot of the user (the Identity)
//  4. Client sends the JWT back as the ?token= query parameter
//  5. Gate.Authenticate validates it and hands the Identity to the handler
//
// STATELESS TOKENS:
// There is no session table. Everything the gates need (id, role) travels in
// the signed payload, so a token cannot be revoked before it expires. That is
// why the lifetime is bounded (4 hours) and /login/renuevatoken exists.
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"usuario":{...},"sub":"<userID>","iat":...,"exp":...,"iss":"hospital-directory"}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/hospital-directory/internal/model"
)

// DefaultTokenTTL is the lifetime of every issued token.
const DefaultTokenTTL = 4 * time.Hour

const issuer = "hospital-directory"

// TokenService handles JWT creation and validation.
//
// The secret is passed in at construction and never read from the environment
// here, so two services with different secrets can coexist (tests do this).
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a TokenService with the given secret and lifetime.
// A ttl of zero means DefaultTokenTTL.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Claims is the JWT payload: the identity snapshot under "usuario" plus the
// registered claims. Subject repeats the user id so generic JWT tooling can
// read it without knowing our payload shape.
type Claims struct {
	Usuario model.Identity `json:"usuario"`
	jwt.RegisteredClaims
}

// TTL returns the lifetime applied by Issue.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for identity that expires after the configured TTL.
func (s *TokenService) Issue(identity model.Identity) (string, error) {
	return s.IssueWithDuration(identity, s.ttl)
}

// IssueWithDuration signs a token with a custom lifetime.
// Used in tests (negative durations produce already-expired tokens).
//
// The password field is forced to the placeholder here regardless of what the
// caller passed, so a hash can never leak into a token.
func (s *TokenService) IssueWithDuration(identity model.Identity, d time.Duration) (string, error) {
	if identity.ID == "" {
		return "", errors.New("auth: identity has no id")
	}
	identity.Password = model.PasswordPlaceholder

	now := s.now()
	c := Claims{
		Usuario: identity,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Verify parses and verifies a JWT string and returns its claims.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid (wasn't tampered with)
//   - Token is not expired, and has an expiry at all
//   - Issuer matches "hospital-directory"
//   - Algorithm is HS256 (prevents the "alg: none" confusion attack)
func (s *TokenService) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("auth: token expired")
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}
	if c.Usuario.ID == "" || c.Usuario.ID != c.Subject {
		return nil, fmt.Errorf("auth: token identity does not match subject")
	}

	return c, nil
}
