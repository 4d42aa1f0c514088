package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/hospital-directory/internal/apperror"
	"github.com/sakif/hospital-directory/internal/model"
	"github.com/sakif/hospital-directory/internal/repository"
)

var _ repository.HospitalRepository = (*DB)(nil)

// hospitalSelect resolves the owner with a LEFT JOIN so hospitals whose owner
// was deleted still come back (with a nil Usuario).
const hospitalSelect = `
	SELECT h.id, h.nombre, h.img, h.created_at, h.updated_at,
	       u.id, u.nombre, u.primer_apellido, u.segundo_apellido, u.email
	FROM hospitals h
	LEFT JOIN users u ON u.id = h.usuario_id`

// userRefColumns receives the nullable side of a LEFT JOIN on users.
type userRefColumns struct {
	id, nombre, primerApellido, segundoApellido, email sql.NullString
}

func (c *userRefColumns) dest() []any {
	return []any{&c.id, &c.nombre, &c.primerApellido, &c.segundoApellido, &c.email}
}

func (c *userRefColumns) ref() *model.UserRef {
	if !c.id.Valid {
		return nil
	}
	return &model.UserRef{
		ID:              c.id.String,
		Nombre:          c.nombre.String,
		PrimerApellido:  c.primerApellido.String,
		SegundoApellido: c.segundoApellido.String,
		Email:           c.email.String,
	}
}

func scanHospital(s rowScanner) (model.Hospital, error) {
	var (
		h     model.Hospital
		owner userRefColumns
	)
	dest := append([]any{&h.ID, &h.Nombre, &h.Img, &h.CreatedAt, &h.UpdatedAt}, owner.dest()...)
	if err := s.Scan(dest...); err != nil {
		return h, err
	}
	h.Usuario = owner.ref()
	return h, nil
}

func collectHospitals(rows *sql.Rows) ([]model.Hospital, error) {
	hospitals := []model.Hospital{}
	for rows.Next() {
		h, err := scanHospital(rows)
		if err != nil {
			return nil, err
		}
		hospitals = append(hospitals, h)
	}
	return hospitals, rows.Err()
}

// ListHospitals returns one page of hospitals with their owners resolved.
func (db *DB) ListHospitals(ctx context.Context, opts repository.ListOptions) ([]model.Hospital, int, error) {
	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM hospitals`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting hospitals: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx,
		hospitalSelect+` ORDER BY h.created_at, h.id LIMIT ? OFFSET ?`,
		opts.Limit(), opts.Offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: listing hospitals: %w", err)
	}
	defer rows.Close()

	hospitals, err := collectHospitals(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: listing hospitals: %w", err)
	}
	return hospitals, total, nil
}

// SearchHospitals matches term against the hospital name only.
func (db *DB) SearchHospitals(ctx context.Context, term string) ([]model.Hospital, error) {
	rows, err := db.conn.QueryContext(ctx,
		hospitalSelect+` WHERE `+foldFunc+`(h.nombre) LIKE ? ESCAPE '\' ORDER BY h.created_at, h.id`,
		repository.LikePattern(term),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: searching hospitals: %w", err)
	}
	defer rows.Close()

	hospitals, err := collectHospitals(rows)
	if err != nil {
		return nil, fmt.Errorf("sqlite: searching hospitals: %w", err)
	}
	return hospitals, nil
}

func (db *DB) GetHospitalByID(ctx context.Context, id string) (*model.Hospital, error) {
	return getHospital(ctx, db.conn, id)
}

// queryRower is satisfied by both *sql.DB and *sql.Tx.
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getHospital(ctx context.Context, q queryRower, id string) (*model.Hospital, error) {
	h, err := scanHospital(q.QueryRowContext(ctx, hospitalSelect+` WHERE h.id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("hospital", id)
		}
		return nil, fmt.Errorf("sqlite: getting hospital %s: %w", id, err)
	}
	return &h, nil
}

// CreateHospital inserts hospital. The owner comes from hospital.Usuario,
// which the service fills from the caller's identity.
func (db *DB) CreateHospital(ctx context.Context, hospital *model.Hospital) error {
	now := time.Now().UTC()
	hospital.ID = xid.New().String()
	hospital.CreatedAt = now
	hospital.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO hospitals (id, nombre, img, usuario_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		hospital.ID, hospital.Nombre, hospital.Img, nullable(hospital.OwnerID()),
		hospital.CreatedAt, hospital.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Duplicate("nombre")
		}
		return fmt.Errorf("sqlite: creating hospital: %w", err)
	}
	return nil
}

// UpdateHospital writes nombre and the owner reference.
func (db *DB) UpdateHospital(ctx context.Context, hospital *model.Hospital) error {
	hospital.UpdatedAt = time.Now().UTC()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE hospitals SET nombre = ?, usuario_id = ?, updated_at = ? WHERE id = ?`,
		hospital.Nombre, nullable(hospital.OwnerID()), hospital.UpdatedAt, hospital.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Duplicate("nombre")
		}
		return fmt.Errorf("sqlite: updating hospital %s: %w", hospital.ID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("hospital", hospital.ID)
	}
	return nil
}

// DeleteHospital removes a hospital and returns it as it was before deletion.
// Doctors pointing at it keep existing with a null hospital.
func (db *DB) DeleteHospital(ctx context.Context, id string) (*model.Hospital, error) {
	var deleted *model.Hospital
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		h, err := getHospital(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM hospitals WHERE id = ?`, id); err != nil {
			return fmt.Errorf("sqlite: deleting hospital %s: %w", id, err)
		}
		deleted = h
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// SetHospitalImage swaps the image reference; see SetUserImage.
func (db *DB) SetHospitalImage(ctx context.Context, id, img string) (*model.Hospital, string, error) {
	var (
		updated  *model.Hospital
		previous string
	)
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `SELECT img FROM hospitals WHERE id = ?`, id).Scan(&previous)
		if err != nil {
			if err == sql.ErrNoRows {
				return apperror.NotFound("hospital", id)
			}
			return fmt.Errorf("sqlite: reading hospital image %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE hospitals SET img = ?, updated_at = ? WHERE id = ?`, img, time.Now().UTC(), id,
		); err != nil {
			return fmt.Errorf("sqlite: updating hospital image %s: %w", id, err)
		}
		updated, err = getHospital(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, "", err
	}
	return updated, previous, nil
}
