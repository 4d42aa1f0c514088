package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/hospital-directory/internal/model"
	"github.com/sakif/hospital-directory/internal/repository"
)

// HospitalInput is the body of POST and PUT /hospital.
type HospitalInput struct {
	Nombre string `json:"nombre" validate:"required"`
}

type HospitalService struct {
	repo   repository.HospitalRepository
	images ImageStore
	policy OwnershipPolicy
	logger *slog.Logger
}

func NewHospitalService(repo repository.HospitalRepository, images ImageStore, policy OwnershipPolicy, logger *slog.Logger) *HospitalService {
	return &HospitalService{repo: repo, images: images, policy: policy, logger: logger}
}

func (s *HospitalService) List(ctx context.Context, desde int) ([]model.Hospital, int, error) {
	hospitals, total, err := s.repo.ListHospitals(ctx, repository.ListOptions{Offset: desde})
	if err != nil {
		return nil, 0, fmt.Errorf("service/hospital: listing hospitals: %w", err)
	}
	return hospitals, total, nil
}

// Create stores a hospital owned by caller.
func (s *HospitalService) Create(ctx context.Context, caller model.Identity, in HospitalInput) (*model.Hospital, error) {
	in.Nombre = strings.TrimSpace(in.Nombre)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	hospital := &model.Hospital{Nombre: in.Nombre, Usuario: caller.Ref()}
	if err := s.repo.CreateHospital(ctx, hospital); err != nil {
		return nil, fmt.Errorf("service/hospital: creating hospital: %w", err)
	}

	s.logger.Info("hospital created",
		slog.String("hospitalID", hospital.ID),
		slog.String("ownerID", caller.ID),
	)
	return hospital, nil
}

// Update renames hospital id. Ownership follows the configured policy.
func (s *HospitalService) Update(ctx context.Context, caller model.Identity, id string, in HospitalInput) (*model.Hospital, error) {
	in.Nombre = strings.TrimSpace(in.Nombre)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	hospital, err := s.repo.GetHospitalByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/hospital: fetching hospital %s: %w", id, err)
	}

	hospital.Nombre = in.Nombre
	hospital.Usuario = s.policy.owner(caller, hospital.Usuario)
	if err := s.repo.UpdateHospital(ctx, hospital); err != nil {
		return nil, fmt.Errorf("service/hospital: updating hospital %s: %w", id, err)
	}
	return hospital, nil
}

func (s *HospitalService) Delete(ctx context.Context, id string) (*model.Hospital, error) {
	hospital, err := s.repo.DeleteHospital(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/hospital: deleting hospital %s: %w", id, err)
	}
	discardImage(ctx, s.images, s.logger, model.CollectionHospitals, hospital.Img)

	s.logger.Info("hospital deleted", slog.String("hospitalID", id))
	return hospital, nil
}
