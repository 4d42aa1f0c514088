package handler_test

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/hospital-directory/internal/model"
	"github.com/sakif/hospital-directory/internal/service"
)

func TestUsers_CreateAsAdmin(t *testing.T) {
	f := newAPI(t)

	rr := f.doJSON(http.MethodPost, withToken("/usuario", f.token(f.admin)), map[string]any{
		"nombre":          "Luis",
		"primer_apellido": "Gómez",
		"email":           "luis@example.com",
		"password":        "secret123",
	})

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	body := decodeBody(t, rr)
	assert.Equal(t, true, body["ok"])

	usuario := body["usuario"].(map[string]any)
	assert.Equal(t, "luis@example.com", usuario["email"])
	assert.Equal(t, string(model.RoleUser), usuario["role"])
	assert.NotContains(t, usuario, "password")

	caller := body["usuariotoken"].(map[string]any)
	assert.Equal(t, f.admin.ID, caller["_id"])
}

func TestUsers_CreateValidationEnvelope(t *testing.T) {
	f := newAPI(t)

	rr := f.doJSON(http.MethodPost, withToken("/usuario", f.token(f.admin)), map[string]any{
		"nombre":   "Luis",
		"email":    "luis@example.com",
		"password": "secret123",
	})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "Error al crear usuario.", body["mensaje"])
	errs := body["errors"].(map[string]any)
	assert.Equal(t, "primer_apellido", errs["field"])
	assert.Equal(t, "El primer apellido es necesario", errs["message"])
}

func TestUsers_CreateDuplicateEmail(t *testing.T) {
	f := newAPI(t)

	rr := f.doJSON(http.MethodPost, withToken("/usuario", f.token(f.admin)), map[string]any{
		"nombre":          "Otra",
		"primer_apellido": "Ana",
		"email":           "ana@example.com",
		"password":        "secret123",
	})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	errs := decodeBody(t, rr)["errors"].(map[string]any)
	assert.Equal(t, "email", errs["field"])
}

func TestUsers_ListPaginates(t *testing.T) {
	f := newAPI(t)
	for i := range 5 {
		f.createUser("User"+strconv.Itoa(i), "user"+strconv.Itoa(i)+"@example.com", model.RoleUser)
	}

	tests := []struct {
		desde string
		want  int
	}{
		{"", 5},
		{"5", 2},
		{"abc", 5},
		{"-3", 5},
		{"100", 0},
	}
	for _, tt := range tests {
		t.Run("desde="+tt.desde, func(t *testing.T) {
			rr := f.doJSON(http.MethodGet, "/usuario?desde="+tt.desde, nil)

			require.Equal(t, http.StatusOK, rr.Code)
			body := decodeBody(t, rr)
			assert.EqualValues(t, 7, body["total"])
			assert.Len(t, body["usuarios"], tt.want)
		})
	}
}

func TestUsers_RoleChangeIgnoredForNonAdmin(t *testing.T) {
	f := newAPI(t)

	rr := f.doJSON(http.MethodPut, withToken("/usuario/"+f.user.ID, f.token(f.user)), map[string]any{
		"nombre":          "Ana",
		"primer_apellido": "Pérez",
		"email":           "ana@example.com",
		"role":            "ADMIN_ROLE",
	})

	require.Equal(t, http.StatusOK, rr.Code)
	usuario := decodeBody(t, rr)["usuario"].(map[string]any)
	assert.Equal(t, string(model.RoleUser), usuario["role"])
}

func TestUsers_DeleteSelfThenMissing(t *testing.T) {
	f := newAPI(t)
	tok := f.token(f.user)

	rr := f.doJSON(http.MethodDelete, withToken("/usuario/"+f.user.ID, tok), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, f.user.ID, decodeBody(t, rr)["usuario"].(map[string]any)["_id"])

	rr = f.doJSON(http.MethodDelete, withToken("/usuario/"+f.user.ID, f.token(f.admin)), nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "No existe un usuario con el id "+f.user.ID, decodeBody(t, rr)["mensaje"])
}

func TestHospitals_CreateFromForm(t *testing.T) {
	f := newAPI(t)

	rr := f.doForm(http.MethodPost, withToken("/hospital", f.token(f.user)), url.Values{"nombre": {"  Hospital Central "}})

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	hospital := decodeBody(t, rr)["hospital"].(map[string]any)
	assert.Equal(t, "Hospital Central", hospital["nombre"])
	owner := hospital["usuario"].(map[string]any)
	assert.Equal(t, f.user.ID, owner["_id"])
}

func TestHospitals_CRUD(t *testing.T) {
	f := newAPI(t)
	tok := f.token(f.user)

	rr := f.doJSON(http.MethodPost, withToken("/hospital", tok), map[string]any{"nombre": "Hospital Norte"})
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decodeBody(t, rr)["hospital"].(map[string]any)["_id"].(string)

	rr = f.doJSON(http.MethodPut, withToken("/hospital/"+id, f.token(f.admin)), map[string]any{"nombre": "Hospital Sur"})
	require.Equal(t, http.StatusOK, rr.Code)
	hospital := decodeBody(t, rr)["hospital"].(map[string]any)
	assert.Equal(t, "Hospital Sur", hospital["nombre"])
	assert.Equal(t, f.admin.ID, hospital["usuario"].(map[string]any)["_id"])

	rr = f.doJSON(http.MethodGet, "/hospital", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.EqualValues(t, 1, body["total"])
	assert.Len(t, body["hospitales"], 1)

	rr = f.doJSON(http.MethodDelete, withToken("/hospital/"+id, tok), nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = f.doJSON(http.MethodDelete, withToken("/hospital/"+id, tok), nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "No existe un hospital con el id "+id, decodeBody(t, rr)["mensaje"])
}

func TestHospitals_MissingNombre(t *testing.T) {
	f := newAPI(t)

	rr := f.doJSON(http.MethodPost, withToken("/hospital", f.token(f.user)), map[string]any{})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "Error al crear hospital.", body["mensaje"])
	assert.Equal(t, "nombre", body["errors"].(map[string]any)["field"])
}

func TestHospitals_MalformedJSON(t *testing.T) {
	f := newAPI(t)
	req := jsonRequest(http.MethodPost, withToken("/hospital", f.token(f.user)), `{"nombre":`)

	rr := f.serve(req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "body", decodeBody(t, rr)["errors"].(map[string]any)["field"])
}

func TestDoctors_RequireExistingHospital(t *testing.T) {
	f := newAPI(t)
	tok := f.token(f.user)

	rr := f.doJSON(http.MethodPost, withToken("/medico", tok), map[string]any{"nombre": "Dr. House", "hospital": "nope"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "No existe un hospital con el id nope", decodeBody(t, rr)["mensaje"])

	rr = f.doJSON(http.MethodPost, withToken("/medico", tok), map[string]any{"nombre": "Dr. House"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "hospital", decodeBody(t, rr)["errors"].(map[string]any)["field"])
}

func TestDoctors_CreateResolvesReferences(t *testing.T) {
	f := newAPI(t)
	tok := f.token(f.user)
	hospitalID := f.createHospital(tok, "Hospital Central")

	rr := f.doJSON(http.MethodPost, withToken("/medico", tok), map[string]any{"nombre": "Dr. House", "hospital": hospitalID})

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	medico := decodeBody(t, rr)["medico"].(map[string]any)
	assert.Equal(t, "Hospital Central", medico["hospital"].(map[string]any)["nombre"])
	assert.Equal(t, f.user.ID, medico["usuario"].(map[string]any)["_id"])

	rr = f.doJSON(http.MethodGet, "/medico", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 1, decodeBody(t, rr)["total"])
}

func TestDoctors_DeletedHospitalBecomesNull(t *testing.T) {
	f := newAPI(t)
	tok := f.token(f.user)
	hospitalID := f.createHospital(tok, "Hospital Central")
	rr := f.doJSON(http.MethodPost, withToken("/medico", tok), map[string]any{"nombre": "Dr. House", "hospital": hospitalID})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = f.doJSON(http.MethodDelete, withToken("/hospital/"+hospitalID, tok), nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = f.doJSON(http.MethodGet, "/medico", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	medicos := decodeBody(t, rr)["medicos"].([]any)
	require.Len(t, medicos, 1)
	assert.Nil(t, medicos[0].(map[string]any)["hospital"])
}

func (f *apiFixture) createHospital(tok, nombre string) string {
	f.t.Helper()
	rr := f.doJSON(http.MethodPost, withToken("/hospital", tok), map[string]any{"nombre": nombre})
	require.Equal(f.t, http.StatusCreated, rr.Code, rr.Body.String())
	return decodeBody(f.t, rr)["hospital"].(map[string]any)["_id"].(string)
}

func TestSearch_Collection(t *testing.T) {
	f := newAPI(t)
	f.createHospital(f.token(f.user), "Hospital Santa Ana")

	tests := []struct {
		kind string
		term string
		want int
	}{
		{"usuarios", "ANA", 1},
		{"hospitales", "santa", 1},
		{"medicos", "house", 0},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			rr := f.doJSON(http.MethodGet, "/busqueda/coleccion/"+tt.kind+"/"+tt.term, nil)

			require.Equal(t, http.StatusOK, rr.Code)
			body := decodeBody(t, rr)
			assert.Equal(t, true, body["ok"])
			items, ok := body[tt.kind].([]any)
			require.True(t, ok, "%s is not an array: %v", tt.kind, body[tt.kind])
			assert.Len(t, items, tt.want)
		})
	}
}

func TestSearch_InvalidCollection(t *testing.T) {
	f := newAPI(t)

	rr := f.doJSON(http.MethodGet, "/busqueda/coleccion/pacientes/ana", nil)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, service.MsgInvalidSearchCollection, decodeBody(t, rr)["mensaje"])
}

func TestSearch_All(t *testing.T) {
	f := newAPI(t)
	f.createHospital(f.token(f.user), "Hospital Santa Ana")

	rr := f.doJSON(http.MethodGet, "/busqueda/todo/ana", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Len(t, body["hospitales"], 1)
	assert.Len(t, body["usuarios"], 1)
	assert.Equal(t, []any{}, body["medicos"])
}

func TestLogin_Success(t *testing.T) {
	f := newAPI(t)

	rr := f.doJSON(http.MethodPost, "/login", map[string]any{"email": "ana@example.com", "password": "secret123"})

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decodeBody(t, rr)
	assert.Equal(t, f.user.ID, body["id"])
	assert.Equal(t, model.PasswordPlaceholder, body["usuario"].(map[string]any)["password"])

	claims, err := f.tokens.Verify(body["token"].(string))
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, claims.Usuario.ID)
}

func TestLogin_Failures(t *testing.T) {
	f := newAPI(t)

	tests := []struct {
		name     string
		email    string
		password string
		want     string
	}{
		{"unknown email", "nadie@example.com", "secret123", service.MsgBadEmail},
		{"wrong password", "ana@example.com", "nope", service.MsgBadPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := f.doForm(http.MethodPost, "/login", url.Values{"email": {tt.email}, "password": {tt.password}})

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, tt.want, decodeBody(t, rr)["mensaje"])
		})
	}
}

func TestLogin_RenewPicksUpRoleChange(t *testing.T) {
	f := newAPI(t)
	tok := f.token(f.user)
	_, err := f.users.EnsureAdmin(context.Background(), service.CreateUserInput{
		Nombre:         "Ana",
		PrimerApellido: "Pérez",
		Email:          "ana@example.com",
		Password:       "secret123",
	})
	require.NoError(t, err)

	rr := f.doJSON(http.MethodGet, withToken("/login/renuevatoken", tok), nil)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decodeBody(t, rr)
	assert.Equal(t, string(model.RoleAdmin), body["usuario"].(map[string]any)["role"])
	claims, err := f.tokens.Verify(body["token"].(string))
	require.NoError(t, err)
	assert.True(t, claims.Usuario.IsAdmin())
}

type fakeRedirector struct{}

func (fakeRedirector) AuthURL(state string) string {
	return "https://accounts.example.com/auth?state=" + state
}

func TestGoogle_RedirectSetsStateCookie(t *testing.T) {
	f := newAPIWith(t, apiOptions{google: fakeRedirector{}})

	rr := f.doJSON(http.MethodGet, "/login/google", nil)

	require.Equal(t, http.StatusTemporaryRedirect, rr.Code)
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "oauth_state", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, "https://accounts.example.com/auth?state="+cookies[0].Value, rr.Header().Get("Location"))
}

func TestGoogle_CodeRequiresMatchingState(t *testing.T) {
	f := newAPI(t)

	t.Run("no cookie", func(t *testing.T) {
		rr := f.doJSON(http.MethodPost, "/login/google", map[string]any{"code": "abc", "state": "s1"})

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "Estado OAuth no válido", decodeBody(t, rr)["mensaje"])
	})

	t.Run("matching cookie reaches sign-in", func(t *testing.T) {
		req := jsonRequest(http.MethodPost, "/login/google", `{"code":"abc","state":"s1"}`)
		req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "s1"})

		rr := f.serve(req)

		// Google is not configured in this fixture, so the service refuses.
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, service.MsgGoogleDisabled, decodeBody(t, rr)["mensaje"])
	})
}

func TestGoogle_DisabledRedirect(t *testing.T) {
	f := newAPI(t)

	rr := f.doJSON(http.MethodGet, "/login/google", nil)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, service.MsgGoogleDisabled, decodeBody(t, rr)["mensaje"])
}
