package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/hospital-directory/internal/auth"
	"github.com/sakif/hospital-directory/internal/handler"
	"github.com/sakif/hospital-directory/internal/model"
	"github.com/sakif/hospital-directory/internal/repository/sqlite"
	"github.com/sakif/hospital-directory/internal/service"
	"github.com/sakif/hospital-directory/internal/storage"
)

const testSecret = "handler-test-secret"

// apiFixture runs the full route table against an in-memory SQLite database
// and a local image store in a temp directory.
type apiFixture struct {
	t        *testing.T
	router   chi.Router
	handlers handler.Handlers
	db       *sqlite.DB
	images   *storage.Storage
	tokens   *auth.TokenService
	users    *service.UserService
	admin    *model.User
	user     *model.User
}

type apiOptions struct {
	uploadMaxBytes int64
	google         handler.GoogleRedirector
}

func newAPI(t *testing.T) *apiFixture {
	return newAPIWith(t, apiOptions{})
}

func newAPIWith(t *testing.T, opts apiOptions) *apiFixture {
	t.Helper()
	if opts.uploadMaxBytes == 0 {
		opts.uploadMaxBytes = 1 << 20
	}

	logger := slog.New(slog.DiscardHandler)

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	local, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	images := storage.NewStorage(local)
	require.NoError(t, images.EnsureBucket(context.Background()))

	tokens, err := auth.NewTokenService(testSecret, 0)
	require.NoError(t, err)
	passwords := auth.NewPasswordService(4)

	users := service.NewUserService(db, passwords, images, logger)
	h := handler.Handlers{
		Users:     handler.NewUserHandler(users, logger),
		Hospitals: handler.NewHospitalHandler(service.NewHospitalService(db, images, service.OwnershipLastEditor, logger)),
		Doctors:   handler.NewDoctorHandler(service.NewDoctorService(db, db, images, service.OwnershipLastEditor, logger)),
		Login:     handler.NewLoginHandler(service.NewAuthService(db, tokens, passwords, nil, logger), opts.google, logger),
		Search:    handler.NewSearchHandler(service.NewSearchService(db, db, db)),
		Upload:    handler.NewUploadHandler(service.NewUploadService(db, db, db, images, nil, logger), opts.uploadMaxBytes, logger),
		Images:    handler.NewImageHandler(images, logger),
	}

	r := chi.NewRouter()
	require.NoError(t, handler.Mount(r, auth.NewGate(tokens, logger), handler.Routes(h), nil))

	f := &apiFixture{
		t:        t,
		router:   r,
		handlers: h,
		db:       db,
		images:   images,
		tokens:   tokens,
		users:    users,
	}
	f.admin = f.createUser("Admin", "admin@example.com", model.RoleAdmin)
	f.user = f.createUser("Ana", "ana@example.com", model.RoleUser)
	return f
}

func (f *apiFixture) createUser(nombre, email string, role model.Role) *model.User {
	f.t.Helper()
	u, err := f.users.Create(context.Background(), service.CreateUserInput{
		Nombre:         nombre,
		PrimerApellido: "Pérez",
		Email:          email,
		Password:       "secret123",
		Role:           role,
	})
	require.NoError(f.t, err)
	return u
}

func (f *apiFixture) token(u *model.User) string {
	f.t.Helper()
	tok, err := f.tokens.Issue(u.Identity())
	require.NoError(f.t, err)
	return tok
}

// withToken appends ?token= the way the frontend does.
func withToken(target, token string) string {
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + "token=" + url.QueryEscape(token)
}

func (f *apiFixture) serve(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func (f *apiFixture) doJSON(method, target string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(f.t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	return f.serve(req)
}

func (f *apiFixture) doForm(method, target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return f.serve(req)
}

func (f *apiFixture) upload(target, filename string, content []byte) *httptest.ResponseRecorder {
	f.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		part, err := mw.CreateFormFile("imagen", filename)
		require.NoError(f.t, err)
		_, err = part.Write(content)
		require.NoError(f.t, err)
	}
	require.NoError(f.t, mw.Close())

	req := httptest.NewRequest(http.MethodPut, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return f.serve(req)
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), "body: %s", rr.Body.String())
	return body
}

// errorOf returns errors.message of a failure envelope.
func errorOf(t *testing.T, body map[string]any) string {
	t.Helper()
	errs, ok := body["errors"].(map[string]any)
	require.True(t, ok, "errors missing from %v", body)
	msg, _ := errs["message"].(string)
	return msg
}

func TestIndex(t *testing.T) {
	f := newAPI(t)

	rr := f.doJSON(http.MethodGet, "/", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "Petición realizada correctamente", body["mensaje"])
}

func jsonRequest(method, target, raw string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}
