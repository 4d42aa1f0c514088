package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/hospital-directory/internal/model"
)

// contextKey is an unexported type used for context keys in this package.
// Only this package can create a key of type contextKey, so only this package
// can read or write the identity stored in a request context.
type contextKey string

const (
	identityKey contextKey = "identity"
	slotKey     contextKey = "identity-slot"
)

// Messages returned in the "mensaje" field of a rejected request.
const (
	MsgInvalidToken   = "Token inválido"
	MsgNotAdmin       = "Token incorrecto - No es administrador"
	MsgNotAdminOrSelf = "Token incorrecto - No es administrador ni es el mismo usuario"
)

// IdentityHandler is a handler that can only run with an authenticated caller.
//
// WHY A DIFFERENT SIGNATURE FROM http.HandlerFunc?
// Role checks need the caller. If they read it from the request context, a
// route that forgot the auth middleware would compile fine and then see "no
// identity" at runtime. Taking the Identity as a typed argument means the only
// way to turn an IdentityHandler into an http.Handler is Gate.Authenticate, so
// "authenticate before authorize" is enforced by the compiler.
type IdentityHandler func(w http.ResponseWriter, r *http.Request, caller model.Identity)

// Gate validates the ?token= query parameter on protected routes.
type Gate struct {
	tokens *TokenService
	logger *slog.Logger
}

// NewGate creates a Gate that verifies tokens with the given TokenService.
func NewGate(tokens *TokenService, logger *slog.Logger) *Gate {
	return &Gate{tokens: tokens, logger: logger}
}

// Authenticate adapts an IdentityHandler into an http.HandlerFunc.
//
// It reads the token from the query string (not a header or cookie; the
// frontend appends ?token= to every protected call), verifies it, stores the
// identity in the request context for middleware such as the request logger,
// and calls next with the decoded identity. On failure it writes 401 and next
// never runs.
func (g *Gate) Authenticate(next IdentityHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := g.tokens.Verify(r.URL.Query().Get("token"))
		if err != nil {
			g.logger.Debug("token rejected",
				slog.String("path", r.URL.Path),
				slog.String("error", err.Error()),
			)
			writeDenied(w, MsgInvalidToken, err.Error())
			return
		}

		identity := claims.Usuario
		if slot, ok := r.Context().Value(slotKey).(*model.Identity); ok {
			*slot = identity
		}
		next(w, r.WithContext(WithIdentity(r.Context(), identity)), identity)
	}
}

// Middleware is the chi-style form of Authenticate for route groups whose
// handlers read the caller with IdentityFromContext.
func (g *Gate) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return g.Authenticate(func(w http.ResponseWriter, r *http.Request, _ model.Identity) {
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin lets the request through only when the caller is an administrator.
func RequireAdmin(next IdentityHandler) IdentityHandler {
	return func(w http.ResponseWriter, r *http.Request, caller model.Identity) {
		if !caller.IsAdmin() {
			writeDenied(w, MsgNotAdmin, "No es administrador")
			return
		}
		next(w, r, caller)
	}
}

// RequireAdminOrSelf lets the request through when the caller is an
// administrator or when the caller's id equals the {param} URL parameter.
// Used for routes like PUT /usuario/{id} where users may edit themselves.
func RequireAdminOrSelf(param string, next IdentityHandler) IdentityHandler {
	return func(w http.ResponseWriter, r *http.Request, caller model.Identity) {
		if caller.IsAdmin() || caller.ID == chi.URLParam(r, param) {
			next(w, r, caller)
			return
		}
		writeDenied(w, MsgNotAdminOrSelf, "No es administrador ni es el mismo usuario")
	}
}

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity model.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext retrieves the authenticated caller from the request context.
// Returns false on public routes where no token was verified.
func IdentityFromContext(ctx context.Context) (model.Identity, bool) {
	id, ok := ctx.Value(identityKey).(model.Identity)
	return id, ok && id.ID != ""
}

// TrackIdentity returns a context in which Authenticate records the caller,
// and a function that reads it back after the handler has returned. Outer
// middleware such as the request logger needs it because the identity is
// attached to a derived request it never sees.
func TrackIdentity(ctx context.Context) (context.Context, func() (model.Identity, bool)) {
	slot := new(model.Identity)
	return context.WithValue(ctx, slotKey, slot), func() (model.Identity, bool) {
		return *slot, slot.ID != ""
	}
}

// denial mirrors the handler package's error envelope. It is duplicated here
// rather than imported because handler depends on auth, not the reverse.
type denial struct {
	OK      bool              `json:"ok"`
	Mensaje string            `json:"mensaje"`
	Errors  map[string]string `json:"errors"`
}

func writeDenied(w http.ResponseWriter, mensaje, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	if err := json.NewEncoder(w).Encode(denial{
		OK:      false,
		Mensaje: mensaje,
		Errors:  map[string]string{"message": detail},
	}); err != nil {
		slog.Error("failed to encode auth denial", slog.String("error", err.Error()))
	}
}
