package handler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/hospital-directory/internal/auth"
)

// Access is the gate a route sits behind.
type Access int

const (
	Public Access = iota
	Authenticated
	Admin
	AdminOrSelf // admin, or the user named by the {id} parameter
)

func (a Access) String() string {
	switch a {
	case Public:
		return "public"
	case Authenticated:
		return "authenticated"
	case Admin:
		return "admin"
	case AdminOrSelf:
		return "admin-or-self"
	default:
		return fmt.Sprintf("Access(%d)", int(a))
	}
}

// Route is one row of the authorization table. Public routes set Handler;
// every other access level sets Protected, which only runs once a token has
// been verified. Limited routes go through the login rate limiter.
type Route struct {
	Method    string
	Pattern   string
	Access    Access
	Limited   bool
	Handler   http.HandlerFunc
	Protected auth.IdentityHandler
}

// Handlers groups everything the route table points at.
type Handlers struct {
	Users     *UserHandler
	Hospitals *HospitalHandler
	Doctors   *DoctorHandler
	Login     *LoginHandler
	Search    *SearchHandler
	Upload    *UploadHandler
	Images    *ImageHandler
}

// Routes returns the full API surface with the access level of each route.
func Routes(h Handlers) []Route {
	return []Route{
		{Method: http.MethodGet, Pattern: "/", Access: Public, Handler: HandleIndex},

		{Method: http.MethodPost, Pattern: "/login", Access: Public, Limited: true, Handler: h.Login.HandleLogin},
		{Method: http.MethodGet, Pattern: "/login/google", Access: Public, Limited: true, Handler: h.Login.HandleGoogleRedirect},
		{Method: http.MethodPost, Pattern: "/login/google", Access: Public, Limited: true, Handler: h.Login.HandleGoogle},
		{Method: http.MethodGet, Pattern: "/login/renuevatoken", Access: Authenticated, Protected: h.Login.HandleRenew},

		{Method: http.MethodGet, Pattern: "/usuario", Access: Public, Handler: h.Users.HandleList},
		{Method: http.MethodPost, Pattern: "/usuario", Access: Admin, Protected: h.Users.HandleCreate},
		{Method: http.MethodPut, Pattern: "/usuario/{id}", Access: AdminOrSelf, Protected: h.Users.HandleUpdate},
		{Method: http.MethodDelete, Pattern: "/usuario/{id}", Access: AdminOrSelf, Protected: h.Users.HandleDelete},

		{Method: http.MethodGet, Pattern: "/hospital", Access: Public, Handler: h.Hospitals.HandleList},
		{Method: http.MethodPost, Pattern: "/hospital", Access: Authenticated, Protected: h.Hospitals.HandleCreate},
		{Method: http.MethodPut, Pattern: "/hospital/{id}", Access: Authenticated, Protected: h.Hospitals.HandleUpdate},
		{Method: http.MethodDelete, Pattern: "/hospital/{id}", Access: Authenticated, Protected: h.Hospitals.HandleDelete},

		{Method: http.MethodGet, Pattern: "/medico", Access: Public, Handler: h.Doctors.HandleList},
		{Method: http.MethodPost, Pattern: "/medico", Access: Authenticated, Protected: h.Doctors.HandleCreate},
		{Method: http.MethodPut, Pattern: "/medico/{id}", Access: Authenticated, Protected: h.Doctors.HandleUpdate},
		{Method: http.MethodDelete, Pattern: "/medico/{id}", Access: Authenticated, Protected: h.Doctors.HandleDelete},

		{Method: http.MethodGet, Pattern: "/busqueda/todo/{busqueda}", Access: Public, Handler: h.Search.HandleAll},
		{Method: http.MethodGet, Pattern: "/busqueda/coleccion/{coleccion}/{busqueda}", Access: Public, Handler: h.Search.HandleCollection},

		{Method: http.MethodPut, Pattern: "/upload/{tipo}/{id}", Access: Authenticated, Protected: h.Upload.HandleUpload},

		{Method: http.MethodGet, Pattern: "/img/{tipo}/{img}", Access: Public, Handler: h.Images.HandleImage},
	}
}

// Mount registers routes on r, wrapping each in the gate its Access names.
// limit wraps Limited routes; nil leaves them unlimited. A row whose handler
// does not match its access level is a wiring mistake and fails the mount.
func Mount(r chi.Router, gate *auth.Gate, routes []Route, limit func(http.Handler) http.Handler) error {
	for _, rt := range routes {
		h, err := rt.handler(gate)
		if err != nil {
			return err
		}
		if rt.Limited && limit != nil {
			h = limit(h)
		}
		r.Method(rt.Method, rt.Pattern, h)
	}
	return nil
}

func (rt Route) handler(gate *auth.Gate) (http.Handler, error) {
	if rt.Access == Public {
		if rt.Handler == nil || rt.Protected != nil {
			return nil, fmt.Errorf("handler: public route %s %s needs Handler only", rt.Method, rt.Pattern)
		}
		return rt.Handler, nil
	}
	if rt.Protected == nil || rt.Handler != nil {
		return nil, fmt.Errorf("handler: %s route %s %s needs Protected only", rt.Access, rt.Method, rt.Pattern)
	}

	next := rt.Protected
	switch rt.Access {
	case Authenticated:
	case Admin:
		next = auth.RequireAdmin(next)
	case AdminOrSelf:
		next = auth.RequireAdminOrSelf("id", next)
	default:
		return nil, fmt.Errorf("handler: unknown access %s on %s %s", rt.Access, rt.Method, rt.Pattern)
	}
	return gate.Authenticate(next), nil
}
