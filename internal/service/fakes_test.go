package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/sakif/hospital-directory/internal/apperror"
	"github.com/sakif/hospital-directory/internal/auth"
	"github.com/sakif/hospital-directory/internal/model"
	"github.com/sakif/hospital-directory/internal/repository"
)

// =========================================================================
// FAKE REPOSITORY
// =========================================================================

// fakeStore is an in-memory implementation of the three repository
// interfaces. Records are copied in and out so tests can't alias them.
type fakeStore struct {
	mu        sync.Mutex
	users     map[string]*model.User
	hospitals map[string]*model.Hospital
	doctors   map[string]*model.Doctor
	nextID    int

	// set to a non-nil error to simulate a database failure
	failUsers     error
	failHospitals error
	failDoctors   error
	failSwap      error
}

var (
	_ repository.UserRepository     = (*fakeStore)(nil)
	_ repository.HospitalRepository = (*fakeStore)(nil)
	_ repository.DoctorRepository   = (*fakeStore)(nil)
)

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:     make(map[string]*model.User),
		hospitals: make(map[string]*model.Hospital),
		doctors:   make(map[string]*model.Doctor),
	}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%03d", prefix, f.nextID)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func page[T any](all []T, opts repository.ListOptions) []T {
	start := min(opts.Offset, len(all))
	end := min(start+opts.Limit(), len(all))
	return append([]T{}, all[start:end]...)
}

func contains(s, term string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(term))
}

// ----- users -----

func (f *fakeStore) ListUsers(ctx context.Context, opts repository.ListOptions) ([]model.User, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUsers != nil {
		return nil, 0, f.failUsers
	}
	var all []model.User
	for _, k := range sortedKeys(f.users) {
		all = append(all, f.users[k].Public())
	}
	return page(all, opts), len(all), nil
}

func (f *fakeStore) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUsers != nil {
		return nil, f.failUsers
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("usuario", id)
	}
	c := *u
	return &c, nil
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUsers != nil {
		return nil, f.failUsers
	}
	for _, u := range f.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, apperror.NotFound("usuario", email)
}

func (f *fakeStore) CreateUser(ctx context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUsers != nil {
		return f.failUsers
	}
	for _, u := range f.users {
		if u.Email == user.Email {
			return apperror.Duplicate("email")
		}
	}
	user.ID = f.id("u")
	if user.Role == "" {
		user.Role = model.RoleUser
	}
	c := *user
	f.users[user.ID] = &c
	return nil
}

func (f *fakeStore) UpdateUser(ctx context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUsers != nil {
		return f.failUsers
	}
	existing, ok := f.users[user.ID]
	if !ok {
		return apperror.NotFound("usuario", user.ID)
	}
	existing.Nombre = user.Nombre
	existing.PrimerApellido = user.PrimerApellido
	existing.SegundoApellido = user.SegundoApellido
	existing.Email = user.Email
	existing.Role = user.Role
	return nil
}

func (f *fakeStore) DeleteUser(ctx context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("usuario", id)
	}
	delete(f.users, id)
	p := u.Public()
	return &p, nil
}

func (f *fakeStore) SearchUsers(ctx context.Context, term string) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUsers != nil {
		return nil, f.failUsers
	}
	out := []model.User{}
	for _, k := range sortedKeys(f.users) {
		u := f.users[k]
		if contains(u.Nombre, term) || contains(u.PrimerApellido, term) ||
			contains(u.SegundoApellido, term) || contains(u.Email, term) {
			out = append(out, u.Public())
		}
	}
	return out, nil
}

func (f *fakeStore) SetUserImage(ctx context.Context, id, img string) (*model.User, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSwap != nil {
		return nil, "", f.failSwap
	}
	u, ok := f.users[id]
	if !ok {
		return nil, "", apperror.NotFound("usuario", id)
	}
	prev := u.Img
	u.Img = img
	p := u.Public()
	return &p, prev, nil
}

// ----- hospitals -----

func (f *fakeStore) ListHospitals(ctx context.Context, opts repository.ListOptions) ([]model.Hospital, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failHospitals != nil {
		return nil, 0, f.failHospitals
	}
	var all []model.Hospital
	for _, k := range sortedKeys(f.hospitals) {
		all = append(all, *f.hospitals[k])
	}
	return page(all, opts), len(all), nil
}

func (f *fakeStore) GetHospitalByID(ctx context.Context, id string) (*model.Hospital, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failHospitals != nil {
		return nil, f.failHospitals
	}
	h, ok := f.hospitals[id]
	if !ok {
		return nil, apperror.NotFound("hospital", id)
	}
	c := *h
	return &c, nil
}

func (f *fakeStore) CreateHospital(ctx context.Context, hospital *model.Hospital) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failHospitals != nil {
		return f.failHospitals
	}
	for _, h := range f.hospitals {
		if h.Nombre == hospital.Nombre {
			return apperror.Duplicate("nombre")
		}
	}
	hospital.ID = f.id("h")
	c := *hospital
	f.hospitals[hospital.ID] = &c
	return nil
}

func (f *fakeStore) UpdateHospital(ctx context.Context, hospital *model.Hospital) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failHospitals != nil {
		return f.failHospitals
	}
	existing, ok := f.hospitals[hospital.ID]
	if !ok {
		return apperror.NotFound("hospital", hospital.ID)
	}
	existing.Nombre = hospital.Nombre
	existing.Usuario = hospital.Usuario
	return nil
}

func (f *fakeStore) DeleteHospital(ctx context.Context, id string) (*model.Hospital, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hospitals[id]
	if !ok {
		return nil, apperror.NotFound("hospital", id)
	}
	delete(f.hospitals, id)
	return h, nil
}

func (f *fakeStore) SearchHospitals(ctx context.Context, term string) ([]model.Hospital, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failHospitals != nil {
		return nil, f.failHospitals
	}
	out := []model.Hospital{}
	for _, k := range sortedKeys(f.hospitals) {
		if h := f.hospitals[k]; contains(h.Nombre, term) {
			out = append(out, *h)
		}
	}
	return out, nil
}

func (f *fakeStore) SetHospitalImage(ctx context.Context, id, img string) (*model.Hospital, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSwap != nil {
		return nil, "", f.failSwap
	}
	h, ok := f.hospitals[id]
	if !ok {
		return nil, "", apperror.NotFound("hospital", id)
	}
	prev := h.Img
	h.Img = img
	c := *h
	return &c, prev, nil
}

// ----- doctors -----

func (f *fakeStore) ListDoctors(ctx context.Context, opts repository.ListOptions) ([]model.Doctor, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDoctors != nil {
		return nil, 0, f.failDoctors
	}
	var all []model.Doctor
	for _, k := range sortedKeys(f.doctors) {
		all = append(all, *f.doctors[k])
	}
	return page(all, opts), len(all), nil
}

func (f *fakeStore) GetDoctorByID(ctx context.Context, id string) (*model.Doctor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDoctors != nil {
		return nil, f.failDoctors
	}
	d, ok := f.doctors[id]
	if !ok {
		return nil, apperror.NotFound("médico", id)
	}
	c := *d
	return &c, nil
}

func (f *fakeStore) CreateDoctor(ctx context.Context, doctor *model.Doctor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDoctors != nil {
		return f.failDoctors
	}
	doctor.ID = f.id("d")
	c := *doctor
	f.doctors[doctor.ID] = &c
	return nil
}

func (f *fakeStore) UpdateDoctor(ctx context.Context, doctor *model.Doctor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDoctors != nil {
		return f.failDoctors
	}
	existing, ok := f.doctors[doctor.ID]
	if !ok {
		return apperror.NotFound("médico", doctor.ID)
	}
	existing.Nombre = doctor.Nombre
	existing.Usuario = doctor.Usuario
	existing.Hospital = doctor.Hospital
	return nil
}

func (f *fakeStore) DeleteDoctor(ctx context.Context, id string) (*model.Doctor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.doctors[id]
	if !ok {
		return nil, apperror.NotFound("médico", id)
	}
	delete(f.doctors, id)
	return d, nil
}

func (f *fakeStore) SearchDoctors(ctx context.Context, term string) ([]model.Doctor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDoctors != nil {
		return nil, f.failDoctors
	}
	out := []model.Doctor{}
	for _, k := range sortedKeys(f.doctors) {
		if d := f.doctors[k]; contains(d.Nombre, term) {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeStore) SetDoctorImage(ctx context.Context, id, img string) (*model.Doctor, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSwap != nil {
		return nil, "", f.failSwap
	}
	d, ok := f.doctors[id]
	if !ok {
		return nil, "", apperror.NotFound("médico", id)
	}
	prev := d.Img
	d.Img = img
	c := *d
	return &c, prev, nil
}

// =========================================================================
// FAKE IMAGE STORE AND METRICS
// =========================================================================

type fakeImages struct {
	mu        sync.Mutex
	objects   map[string][]byte
	putErr    error
	deleteErr error
	deleted   []string
}

func newFakeImages() *fakeImages {
	return &fakeImages{objects: make(map[string][]byte)}
}

func (f *fakeImages) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if f.putErr != nil {
		return f.putErr
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = buf.Bytes()
	return nil
}

func (f *fakeImages) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.objects, key)
	return nil
}

func (f *fakeImages) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}

type fakeUploadMetrics struct {
	stored, orphaned int
}

func (m *fakeUploadMetrics) ImageStored(string)   { m.stored++ }
func (m *fakeUploadMetrics) ImageOrphaned(string) { m.orphaned++ }

// =========================================================================
// HELPERS
// =========================================================================

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestTokens(t *testing.T) *auth.TokenService {
	t.Helper()
	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!", auth.DefaultTokenTTL)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

// Cost 4 is the bcrypt minimum and keeps tests fast.
func newTestPasswords() *auth.PasswordService {
	return auth.NewPasswordService(4)
}

func admin() model.Identity {
	return model.Identity{ID: "admin-1", Nombre: "Root", Email: "root@example.com", Role: model.RoleAdmin}
}

func regular(id string) model.Identity {
	return model.Identity{ID: id, Nombre: "Regular", Email: id + "@example.com", Role: model.RoleUser}
}
