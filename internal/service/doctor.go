package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/hospital-directory/internal/model"
	"github.com/sakif/hospital-directory/internal/repository"
)

// DoctorInput is the body of POST and PUT /medico.
type DoctorInput struct {
	Nombre   string `json:"nombre"   validate:"required"`
	Hospital string `json:"hospital" validate:"required"`
}

type DoctorService struct {
	doctors   repository.DoctorRepository
	hospitals repository.HospitalRepository
	images    ImageStore
	policy    OwnershipPolicy
	logger    *slog.Logger
}

func NewDoctorService(
	doctors repository.DoctorRepository,
	hospitals repository.HospitalRepository,
	images ImageStore,
	policy OwnershipPolicy,
	logger *slog.Logger,
) *DoctorService {
	return &DoctorService{
		doctors:   doctors,
		hospitals: hospitals,
		images:    images,
		policy:    policy,
		logger:    logger,
	}
}

func (s *DoctorService) List(ctx context.Context, desde int) ([]model.Doctor, int, error) {
	doctors, total, err := s.doctors.ListDoctors(ctx, repository.ListOptions{Offset: desde})
	if err != nil {
		return nil, 0, fmt.Errorf("service/doctor: listing doctors: %w", err)
	}
	return doctors, total, nil
}

// hospitalRef resolves the hospital a doctor is assigned to. The check is not
// transactional with the write that follows: a hospital deleted in between
// leaves the doctor with a null hospital, same as deleting it afterwards.
func (s *DoctorService) hospitalRef(ctx context.Context, id string) (*model.HospitalRef, error) {
	h, err := s.hospitals.GetHospitalByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/doctor: resolving hospital %s: %w", id, err)
	}
	return &model.HospitalRef{ID: h.ID, Nombre: h.Nombre, Img: h.Img}, nil
}

// Create stores a doctor owned by caller in an existing hospital.
func (s *DoctorService) Create(ctx context.Context, caller model.Identity, in DoctorInput) (*model.Doctor, error) {
	in.Nombre = strings.TrimSpace(in.Nombre)
	in.Hospital = strings.TrimSpace(in.Hospital)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	hospital, err := s.hospitalRef(ctx, in.Hospital)
	if err != nil {
		return nil, err
	}

	doctor := &model.Doctor{Nombre: in.Nombre, Usuario: caller.Ref(), Hospital: hospital}
	if err := s.doctors.CreateDoctor(ctx, doctor); err != nil {
		return nil, fmt.Errorf("service/doctor: creating doctor: %w", err)
	}

	s.logger.Info("doctor created",
		slog.String("doctorID", doctor.ID),
		slog.String("hospitalID", hospital.ID),
	)
	return doctor, nil
}

// Update renames and reassigns doctor id. Ownership follows the configured policy.
func (s *DoctorService) Update(ctx context.Context, caller model.Identity, id string, in DoctorInput) (*model.Doctor, error) {
	in.Nombre = strings.TrimSpace(in.Nombre)
	in.Hospital = strings.TrimSpace(in.Hospital)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	doctor, err := s.doctors.GetDoctorByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/doctor: fetching doctor %s: %w", id, err)
	}
	hospital, err := s.hospitalRef(ctx, in.Hospital)
	if err != nil {
		return nil, err
	}

	doctor.Nombre = in.Nombre
	doctor.Hospital = hospital
	doctor.Usuario = s.policy.owner(caller, doctor.Usuario)
	if err := s.doctors.UpdateDoctor(ctx, doctor); err != nil {
		return nil, fmt.Errorf("service/doctor: updating doctor %s: %w", id, err)
	}
	return doctor, nil
}

func (s *DoctorService) Delete(ctx context.Context, id string) (*model.Doctor, error) {
	doctor, err := s.doctors.DeleteDoctor(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/doctor: deleting doctor %s: %w", id, err)
	}
	discardImage(ctx, s.images, s.logger, model.CollectionDoctors, doctor.Img)

	s.logger.Info("doctor deleted", slog.String("doctorID", id))
	return doctor, nil
}
