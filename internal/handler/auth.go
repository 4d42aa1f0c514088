package handler

import (
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/hospital-directory/internal/apperror"
	"github.com/sakif/hospital-directory/internal/model"
	"github.com/sakif/hospital-directory/internal/service"
)

const (
	stateCookie     = "oauth_state"
	MsgInvalidState = "Estado OAuth no válido"
)

// GoogleRedirector builds the Google consent URL. *auth.GoogleProvider
// implements it; nil disables the redirect flow.
type GoogleRedirector interface {
	AuthURL(state string) string
}

// LoginHandler serves /login.
//
// HANDLER RESPONSIBILITIES:
//   - HandleLogin         → email and password, issue a token
//   - HandleGoogleRedirect → send the browser to Google's consent page
//   - HandleGoogle        → ID token or authorization code, issue a token
//   - HandleRenew         → fresh token for an already authenticated caller
type LoginHandler struct {
	auth   *service.AuthService
	google GoogleRedirector
	logger *slog.Logger
}

func NewLoginHandler(auth *service.AuthService, google GoogleRedirector, logger *slog.Logger) *LoginHandler {
	return &LoginHandler{auth: auth, google: google, logger: logger}
}

type loginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type googleInput struct {
	Token string `json:"token"`
	Code  string `json:"code"`
	State string `json:"state"`
}

// HandleLogin checks email and password.
//
// HTTP: POST /login → {ok, usuario, token, id}
func (h *LoginHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginInput
	if err := decodeInput(w, r, &in); err != nil {
		writeError(w, err, "Error al buscar usuario")
		return
	}

	result, err := h.auth.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		writeError(w, err, "Error al buscar usuario")
		return
	}

	h.logger.Info("user logged in", slog.String("userID", result.Usuario.ID))
	writeOK(w, http.StatusOK, envelope{
		"usuario": result.Usuario,
		"token":   result.Token,
		"id":      result.Usuario.ID,
	})
}

// HandleGoogleRedirect starts the authorization-code flow.
//
// HTTP: GET /login/google
//
// The random state goes into a short-lived HttpOnly cookie; HandleGoogle
// compares it with the state echoed back alongside the code.
func (h *LoginHandler) HandleGoogleRedirect(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		writeError(w, apperror.Unauthorized(service.MsgGoogleDisabled), "Error al iniciar sesión con Google")
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.google.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGoogle signs in with a Google credential, registering the user on
// first use.
//
// HTTP: POST /login/google → {ok, usuario, token, id}
func (h *LoginHandler) HandleGoogle(w http.ResponseWriter, r *http.Request) {
	var in googleInput
	if err := decodeInput(w, r, &in); err != nil {
		writeError(w, err, "Error al iniciar sesión con Google")
		return
	}

	if in.Token == "" && in.Code != "" {
		if err := h.checkState(w, r, in.State); err != nil {
			writeError(w, err, "Error al iniciar sesión con Google")
			return
		}
	}

	result, err := h.auth.LoginGoogle(r.Context(), service.GoogleCredential{IDToken: in.Token, Code: in.Code})
	if err != nil {
		writeError(w, err, "Error al iniciar sesión con Google")
		return
	}

	h.logger.Info("user logged in via Google", slog.String("userID", result.Usuario.ID))
	writeOK(w, http.StatusOK, envelope{
		"usuario": result.Usuario,
		"token":   result.Token,
		"id":      result.Usuario.ID,
	})
}

// checkState verifies the CSRF state of the code flow and clears the
// single-use cookie.
func (h *LoginHandler) checkState(w http.ResponseWriter, r *http.Request, state string) error {
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != state {
		h.logger.Warn("google login: state mismatch", slog.String("got", state))
		return apperror.Unauthorized(MsgInvalidState)
	}
	http.SetCookie(w, &http.Cookie{
		Name:   stateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	return nil
}

// HandleRenew issues a new token for the caller.
//
// HTTP: GET /login/renuevatoken?token= → {ok, usuario, token}
func (h *LoginHandler) HandleRenew(w http.ResponseWriter, r *http.Request, caller model.Identity) {
	result, err := h.auth.Renew(r.Context(), caller)
	if err != nil {
		writeError(w, err, "Error al renovar el token")
		return
	}
	writeOK(w, http.StatusOK, envelope{"usuario": result.Usuario, "token": result.Token})
}
