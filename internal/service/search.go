package service

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/hospital-directory/internal/apperror"
	"github.com/sakif/hospital-directory/internal/model"
	"github.com/sakif/hospital-directory/internal/repository"
)

// MsgInvalidSearchCollection is the error for an unknown /busqueda/coleccion kind.
const MsgInvalidSearchCollection = "Los tipos de búsqueda son para usuarios, medicos u hospitales"

// SearchResult holds the matches of a single-collection search. Exactly one
// of the slices is set, selected by Collection.
type SearchResult struct {
	Collection model.Collection
	Hospitals  []model.Hospital
	Doctors    []model.Doctor
	Users      []model.User
}

// Items returns the populated slice for JSON encoding.
func (r SearchResult) Items() any {
	switch r.Collection {
	case model.CollectionHospitals:
		return r.Hospitals
	case model.CollectionDoctors:
		return r.Doctors
	default:
		return r.Users
	}
}

// AllResults is the joined outcome of SearchAll. Every slice is non-nil.
type AllResults struct {
	Hospitales []model.Hospital `json:"hospitales"`
	Medicos    []model.Doctor   `json:"medicos"`
	Usuarios   []model.User     `json:"usuarios"`
}

type SearchService struct {
	users     repository.UserRepository
	hospitals repository.HospitalRepository
	doctors   repository.DoctorRepository
}

func NewSearchService(users repository.UserRepository, hospitals repository.HospitalRepository, doctors repository.DoctorRepository) *SearchService {
	return &SearchService{users: users, hospitals: hospitals, doctors: doctors}
}

// SearchInCollection runs a case-insensitive substring search over one collection.
func (s *SearchService) SearchInCollection(ctx context.Context, kind, term string) (SearchResult, error) {
	collection, ok := model.ParseCollection(kind)
	if !ok {
		return SearchResult{}, apperror.InvalidCollection(MsgInvalidSearchCollection)
	}

	result := SearchResult{Collection: collection}
	var err error
	switch collection {
	case model.CollectionHospitals:
		result.Hospitals, err = s.hospitals.SearchHospitals(ctx, term)
	case model.CollectionDoctors:
		result.Doctors, err = s.doctors.SearchDoctors(ctx, term)
	case model.CollectionUsers:
		result.Users, err = s.users.SearchUsers(ctx, term)
	}
	if err != nil {
		return SearchResult{}, fmt.Errorf("service/search: searching %s: %w", collection, err)
	}
	return result, nil
}

// SearchAll searches the three collections concurrently and returns once all
// of them finish. The first failure cancels the remaining searches and the
// whole call fails; no partial result is returned.
func (s *SearchService) SearchAll(ctx context.Context, term string) (*AllResults, error) {
	var (
		hospitals []model.Hospital
		doctors   []model.Doctor
		users     []model.User
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		hospitals, err = s.hospitals.SearchHospitals(gctx, term)
		return err
	})
	g.Go(func() (err error) {
		doctors, err = s.doctors.SearchDoctors(gctx, term)
		return err
	})
	g.Go(func() (err error) {
		users, err = s.users.SearchUsers(gctx, term)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("service/search: searching all collections: %w", err)
	}

	return &AllResults{
		Hospitales: nonNil(hospitals),
		Medicos:    nonNil(doctors),
		Usuarios:   nonNil(users),
	}, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
