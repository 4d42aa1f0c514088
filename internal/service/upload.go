package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"strings"
	"time"

	"github.com/sakif/hospital-directory/internal/apperror"
	"github.com/sakif/hospital-directory/internal/model"
	"github.com/sakif/hospital-directory/internal/repository"
	"github.com/sakif/hospital-directory/internal/storage"
)

const (
	MsgInvalidUploadCollection = "Tipo de colección no es válida"
	MsgMissingFile             = "No selecciono algún archivo"
	MsgInvalidExtension        = "Extensión no válida"
	MsgStoreFailed             = "Error al mover archivo"
)

// ValidExtensions are the accepted image extensions, compared case-sensitively.
var ValidExtensions = []string{"png", "jpg", "gif", "jpeg"}

// UploadMetrics observes image uploads. *metrics.Collector implements it.
type UploadMetrics interface {
	ImageStored(collection string)
	ImageOrphaned(collection string)
}

type noopUploadMetrics struct{}

func (noopUploadMetrics) ImageStored(string)   {}
func (noopUploadMetrics) ImageOrphaned(string) {}

// UploadFile is an image received from a client.
type UploadFile struct {
	Filename string // client-side name; only the extension is used
	Size     int64
	Body     io.Reader
}

// UploadResult is the record whose image was replaced. Exactly one of the
// pointers is set, selected by Collection.
type UploadResult struct {
	Collection model.Collection
	User       *model.User
	Hospital   *model.Hospital
	Doctor     *model.Doctor
	Filename   string
}

// Record returns the updated record for JSON encoding.
func (r *UploadResult) Record() any {
	switch r.Collection {
	case model.CollectionHospitals:
		return r.Hospital
	case model.CollectionDoctors:
		return r.Doctor
	default:
		return r.User
	}
}

type UploadService struct {
	users     repository.UserRepository
	hospitals repository.HospitalRepository
	doctors   repository.DoctorRepository
	images    ImageStore
	metrics   UploadMetrics
	logger    *slog.Logger
	now       func() time.Time
}

func NewUploadService(
	users repository.UserRepository,
	hospitals repository.HospitalRepository,
	doctors repository.DoctorRepository,
	images ImageStore,
	metrics UploadMetrics,
	logger *slog.Logger,
) *UploadService {
	if metrics == nil {
		metrics = noopUploadMetrics{}
	}
	return &UploadService{
		users:     users,
		hospitals: hospitals,
		doctors:   doctors,
		images:    images,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// Upload replaces the image of record id in collection kind.
//
// The steps run in an order that keeps the database and the store consistent:
//  1. validate kind, file presence and extension
//  2. check that the record exists, so a bad id never writes a file
//  3. write the new object under a fresh name
//  4. swap the reference in one transaction; on failure remove the new object
//  5. delete the object the swap displaced
//
// A failure in step 5 leaves an orphaned object but the record already points
// at the new image, so it is logged and counted rather than returned.
func (s *UploadService) Upload(ctx context.Context, kind, id string, file *UploadFile) (*UploadResult, error) {
	collection, ok := model.ParseCollection(kind)
	if !ok {
		return nil, apperror.InvalidCollection(MsgInvalidUploadCollection)
	}
	if file == nil || file.Body == nil {
		return nil, apperror.MissingFile(MsgMissingFile)
	}
	ext, ok := imageExtension(file.Filename)
	if !ok {
		return nil, apperror.InvalidExtension(MsgInvalidExtension)
	}

	if err := s.exists(ctx, collection, id); err != nil {
		return nil, err
	}

	filename := fmt.Sprintf("%s-%d.%s", id, s.now().UnixMilli(), ext)
	key := storage.Key(string(collection), filename)
	if err := s.images.Put(ctx, key, file.Body, file.Size, mime.TypeByExtension("."+ext)); err != nil {
		return nil, apperror.Storage(MsgStoreFailed, err)
	}

	result, previous, err := s.swap(ctx, collection, id, filename)
	if err != nil {
		if derr := s.images.Delete(ctx, key); derr != nil {
			s.logger.Error("failed to remove uploaded image after swap failure",
				slog.String("key", key),
				slog.String("error", derr.Error()),
			)
		}
		return nil, fmt.Errorf("service/upload: replacing %s image for %s: %w", collection, id, err)
	}
	s.metrics.ImageStored(string(collection))

	if previous != "" && previous != filename {
		if !discardImage(ctx, s.images, s.logger, collection, previous) {
			s.metrics.ImageOrphaned(string(collection))
		}
	}

	s.logger.Info("image replaced",
		slog.String("collection", string(collection)),
		slog.String("id", id),
		slog.String("img", filename),
	)
	result.Filename = filename
	return result, nil
}

// imageExtension returns the text after the last dot of name when it is one
// of ValidExtensions. A name without a dot is its own last segment, so a file
// called "png" is accepted.
func imageExtension(name string) (string, bool) {
	ext := name[strings.LastIndexByte(name, '.')+1:]
	for _, v := range ValidExtensions {
		if ext == v {
			return ext, true
		}
	}
	return "", false
}

func (s *UploadService) exists(ctx context.Context, collection model.Collection, id string) error {
	var err error
	switch collection {
	case model.CollectionUsers:
		_, err = s.users.GetUserByID(ctx, id)
	case model.CollectionHospitals:
		_, err = s.hospitals.GetHospitalByID(ctx, id)
	case model.CollectionDoctors:
		_, err = s.doctors.GetDoctorByID(ctx, id)
	}
	if err != nil {
		return fmt.Errorf("service/upload: resolving %s %s: %w", collection, id, err)
	}
	return nil
}

func (s *UploadService) swap(ctx context.Context, collection model.Collection, id, filename string) (*UploadResult, string, error) {
	result := &UploadResult{Collection: collection}
	var (
		previous string
		err      error
	)
	switch collection {
	case model.CollectionUsers:
		result.User, previous, err = s.users.SetUserImage(ctx, id, filename)
	case model.CollectionHospitals:
		result.Hospital, previous, err = s.hospitals.SetHospitalImage(ctx, id, filename)
	case model.CollectionDoctors:
		result.Doctor, previous, err = s.doctors.SetDoctorImage(ctx, id, filename)
	}
	if err != nil {
		return nil, "", err
	}
	return result, previous, nil
}
