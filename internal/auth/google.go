package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"
)

// ErrInvalidGoogleToken is returned when a Google credential does not verify.
var ErrInvalidGoogleToken = errors.New("auth: invalid google token")

// GoogleUser is the portion of a verified Google ID token we care about.
type GoogleUser struct {
	Subject    string // Google's stable account id ("sub")
	Email      string
	GivenName  string
	FamilyName string
	Name       string
	Picture    string
}

// tokenValidator is satisfied by *idtoken.Validator. Tests substitute a fake
// so they don't need network access to Google's signing keys.
type tokenValidator interface {
	Validate(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)
}

// GoogleProvider verifies Google credentials sent by the frontend.
//
// TWO CREDENTIAL SHAPES:
//   - ID token: Google Sign-In in the browser hands the frontend a signed JWT.
//     We verify its signature against Google's published keys and check the
//     audience is our client ID. This is what POST /login/google normally gets.
//   - Authorization code: a server-side OAuth flow. We exchange the code with
//     golang.org/x/oauth2 and verify the id_token that comes back with it.
//
// Either way the result is a GoogleUser whose email has been asserted by Google.
type GoogleProvider struct {
	clientID  string
	validator tokenValidator
	config    *oauth2.Config
}

// NewGoogleProvider creates a GoogleProvider for the given OAuth client.
// clientSecret and redirectURL are only needed for the authorization-code path.
func NewGoogleProvider(ctx context.Context, clientID, clientSecret, redirectURL string) (*GoogleProvider, error) {
	if strings.TrimSpace(clientID) == "" {
		return nil, errors.New("auth: google client id is required")
	}

	validator, err := idtoken.NewValidator(ctx)
	if err != nil {
		return nil, fmt.Errorf("auth: creating google token validator: %w", err)
	}

	return newGoogleProvider(clientID, clientSecret, redirectURL, validator), nil
}

func newGoogleProvider(clientID, clientSecret, redirectURL string, v tokenValidator) *GoogleProvider {
	return &GoogleProvider{
		clientID:  clientID,
		validator: v,
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
	}
}

// AuthURL returns the Google consent URL for the authorization-code flow.
func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// VerifyIDToken validates a Google ID token and returns the user it describes.
func (p *GoogleProvider) VerifyIDToken(ctx context.Context, raw string) (*GoogleUser, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidGoogleToken)
	}

	payload, err := p.validator.Validate(ctx, raw, p.clientID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGoogleToken, err)
	}

	user := &GoogleUser{
		Subject:    payload.Subject,
		Email:      claimString(payload.Claims, "email"),
		GivenName:  claimString(payload.Claims, "given_name"),
		FamilyName: claimString(payload.Claims, "family_name"),
		Name:       claimString(payload.Claims, "name"),
		Picture:    claimString(payload.Claims, "picture"),
	}
	if user.Email == "" {
		return nil, fmt.Errorf("%w: token carries no email", ErrInvalidGoogleToken)
	}
	if verified, ok := payload.Claims["email_verified"].(bool); ok && !verified {
		return nil, fmt.Errorf("%w: email not verified", ErrInvalidGoogleToken)
	}

	return user, nil
}

// Exchange completes the authorization-code flow and verifies the returned ID token.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*GoogleUser, error) {
	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: exchanging code: %w", ErrInvalidGoogleToken, err)
	}

	raw, ok := tok.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("%w: token response has no id_token", ErrInvalidGoogleToken)
	}

	return p.VerifyIDToken(ctx, raw)
}

func claimString(claims map[string]any, key string) string {
	s, _ := claims[key].(string)
	return s
}
