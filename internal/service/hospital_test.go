package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/hospital-directory/internal/apperror"
)

func TestParseOwnershipPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    OwnershipPolicy
		wantErr bool
	}{
		{"", OwnershipLastEditor, false},
		{"last-editor", OwnershipLastEditor, false},
		{"Preserve", OwnershipPreserve, false},
		{"first-writer", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOwnershipPolicy(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHospitalCreate_StampsOwner(t *testing.T) {
	svc := NewHospitalService(newFakeStore(), nil, OwnershipLastEditor, discardLogger())

	h, err := svc.Create(context.Background(), regular("u-1"), HospitalInput{Nombre: "  Hospital Central "})
	require.NoError(t, err)

	assert.Equal(t, "Hospital Central", h.Nombre)
	require.NotNil(t, h.Usuario)
	assert.Equal(t, "u-1", h.Usuario.ID)
}

func TestHospitalCreate_RequiresNombre(t *testing.T) {
	svc := NewHospitalService(newFakeStore(), nil, OwnershipLastEditor, discardLogger())

	_, err := svc.Create(context.Background(), regular("u-1"), HospitalInput{})

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "nombre", appErr.Field)
}

func TestHospitalUpdate_OwnershipPolicy(t *testing.T) {
	tests := []struct {
		policy    OwnershipPolicy
		wantOwner string
	}{
		{OwnershipLastEditor, "editor"},
		{OwnershipPreserve, "creator"},
	}

	for _, tt := range tests {
		t.Run(tt.policy.String(), func(t *testing.T) {
			svc := NewHospitalService(newFakeStore(), nil, tt.policy, discardLogger())
			h, err := svc.Create(context.Background(), regular("creator"), HospitalInput{Nombre: "Central"})
			require.NoError(t, err)

			updated, err := svc.Update(context.Background(), regular("editor"), h.ID, HospitalInput{Nombre: "General"})
			require.NoError(t, err)

			assert.Equal(t, "General", updated.Nombre)
			assert.Equal(t, tt.wantOwner, updated.Usuario.ID)
		})
	}
}

func TestHospitalDelete_Twice(t *testing.T) {
	images := newFakeImages()
	svc := NewHospitalService(newFakeStore(), images, OwnershipLastEditor, discardLogger())
	h, _ := svc.Create(context.Background(), regular("u-1"), HospitalInput{Nombre: "Central"})

	_, err := svc.Delete(context.Background(), h.ID)
	require.NoError(t, err)
	assert.Empty(t, images.deleted, "no image to discard")

	_, err = svc.Delete(context.Background(), h.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

// =========================================================================
// DOCTORS
// =========================================================================

func TestDoctorCreate_RequiresExistingHospital(t *testing.T) {
	store := newFakeStore()
	hospitals := NewHospitalService(store, nil, OwnershipLastEditor, discardLogger())
	doctors := NewDoctorService(store, store, nil, OwnershipLastEditor, discardLogger())
	h, err := hospitals.Create(context.Background(), regular("u-1"), HospitalInput{Nombre: "Central"})
	require.NoError(t, err)

	d, err := doctors.Create(context.Background(), regular("u-1"), DoctorInput{Nombre: "Dr. House", Hospital: h.ID})
	require.NoError(t, err)
	require.NotNil(t, d.Hospital)
	assert.Equal(t, "Central", d.Hospital.Nombre)

	_, err = doctors.Create(context.Background(), regular("u-1"), DoctorInput{Nombre: "Dr. Who", Hospital: "missing"})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = doctors.Create(context.Background(), regular("u-1"), DoctorInput{Nombre: "Dr. Who"})
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "hospital", appErr.Field)
	assert.Equal(t, "El id del hospital es requerido", appErr.Message)
}

func TestDoctorUpdate_MovesHospitalAndRestampsOwner(t *testing.T) {
	store := newFakeStore()
	hospitals := NewHospitalService(store, nil, OwnershipLastEditor, discardLogger())
	doctors := NewDoctorService(store, store, nil, OwnershipLastEditor, discardLogger())
	a, _ := hospitals.Create(context.Background(), regular("u-1"), HospitalInput{Nombre: "A"})
	b, _ := hospitals.Create(context.Background(), regular("u-1"), HospitalInput{Nombre: "B"})
	d, err := doctors.Create(context.Background(), regular("u-1"), DoctorInput{Nombre: "Dr. House", Hospital: a.ID})
	require.NoError(t, err)

	updated, err := doctors.Update(context.Background(), regular("u-2"), d.ID, DoctorInput{Nombre: "Dr. House", Hospital: b.ID})
	require.NoError(t, err)

	assert.Equal(t, b.ID, updated.Hospital.ID)
	assert.Equal(t, "u-2", updated.Usuario.ID)
}

func TestDoctorDelete_DiscardsImage(t *testing.T) {
	store := newFakeStore()
	images := newFakeImages()
	hospitals := NewHospitalService(store, nil, OwnershipLastEditor, discardLogger())
	doctors := NewDoctorService(store, store, images, OwnershipLastEditor, discardLogger())
	h, _ := hospitals.Create(context.Background(), regular("u-1"), HospitalInput{Nombre: "A"})
	d, _ := doctors.Create(context.Background(), regular("u-1"), DoctorInput{Nombre: "Dr. House", Hospital: h.ID})
	store.doctors[d.ID].Img = "d-1.jpg"

	_, err := doctors.Delete(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"medicos/d-1.jpg"}, images.deleted)
}
