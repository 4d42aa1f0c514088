package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/hospital-directory/internal/apperror"
	"github.com/sakif/hospital-directory/internal/model"
	"github.com/sakif/hospital-directory/internal/repository"
)

var _ repository.DoctorRepository = (*DB)(nil)

const doctorSelect = `
	SELECT d.id, d.nombre, d.img, d.created_at, d.updated_at,
	       u.id, u.nombre, u.primer_apellido, u.segundo_apellido, u.email,
	       h.id, h.nombre, h.img
	FROM doctors d
	LEFT JOIN users u ON u.id = d.usuario_id
	LEFT JOIN hospitals h ON h.id = d.hospital_id`

func scanDoctor(s rowScanner) (model.Doctor, error) {
	var (
		d                  model.Doctor
		owner              userRefColumns
		hID, hNombre, hImg sql.NullString
	)
	dest := []any{&d.ID, &d.Nombre, &d.Img, &d.CreatedAt, &d.UpdatedAt}
	dest = append(dest, owner.dest()...)
	dest = append(dest, &hID, &hNombre, &hImg)
	if err := s.Scan(dest...); err != nil {
		return d, err
	}
	d.Usuario = owner.ref()
	if hID.Valid {
		d.Hospital = &model.HospitalRef{ID: hID.String, Nombre: hNombre.String, Img: hImg.String}
	}
	return d, nil
}

func collectDoctors(rows *sql.Rows) ([]model.Doctor, error) {
	doctors := []model.Doctor{}
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		doctors = append(doctors, d)
	}
	return doctors, rows.Err()
}

func (db *DB) ListDoctors(ctx context.Context, opts repository.ListOptions) ([]model.Doctor, int, error) {
	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM doctors`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres: counting doctors: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx,
		doctorSelect+` ORDER BY d.created_at, d.id LIMIT $1 OFFSET $2`,
		opts.Limit(), opts.Offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: listing doctors: %w", err)
	}
	defer rows.Close()

	doctors, err := collectDoctors(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: listing doctors: %w", err)
	}
	return doctors, total, nil
}

func (db *DB) SearchDoctors(ctx context.Context, term string) ([]model.Doctor, error) {
	rows, err := db.conn.QueryContext(ctx,
		doctorSelect+` WHERE LOWER(d.nombre) LIKE $1 ESCAPE '\' ORDER BY d.created_at, d.id`,
		repository.LikePattern(term),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: searching doctors: %w", err)
	}
	defer rows.Close()

	doctors, err := collectDoctors(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: searching doctors: %w", err)
	}
	return doctors, nil
}

func (db *DB) GetDoctorByID(ctx context.Context, id string) (*model.Doctor, error) {
	return getDoctor(ctx, db.conn, id)
}

func getDoctor(ctx context.Context, q queryRower, id string) (*model.Doctor, error) {
	d, err := scanDoctor(q.QueryRowContext(ctx, doctorSelect+` WHERE d.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("médico", id)
		}
		return nil, fmt.Errorf("postgres: getting doctor %s: %w", id, err)
	}
	return &d, nil
}

func (db *DB) CreateDoctor(ctx context.Context, doctor *model.Doctor) error {
	now := time.Now().UTC()
	doctor.ID = xid.New().String()
	doctor.CreatedAt = now
	doctor.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO doctors (id, nombre, img, usuario_id, hospital_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		doctor.ID, doctor.Nombre, doctor.Img,
		nullable(doctor.OwnerID()), nullable(doctor.HospitalID()),
		doctor.CreatedAt, doctor.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Duplicate("nombre")
		}
		return fmt.Errorf("postgres: creating doctor: %w", err)
	}
	return nil
}

func (db *DB) UpdateDoctor(ctx context.Context, doctor *model.Doctor) error {
	doctor.UpdatedAt = time.Now().UTC()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE doctors SET nombre = $1, usuario_id = $2, hospital_id = $3, updated_at = $4 WHERE id = $5`,
		doctor.Nombre, nullable(doctor.OwnerID()), nullable(doctor.HospitalID()), doctor.UpdatedAt,
		doctor.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Duplicate("nombre")
		}
		return fmt.Errorf("postgres: updating doctor %s: %w", doctor.ID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("médico", doctor.ID)
	}
	return nil
}

func (db *DB) DeleteDoctor(ctx context.Context, id string) (*model.Doctor, error) {
	var deleted *model.Doctor
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		d, err := getDoctor(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM doctors WHERE id = $1`, id); err != nil {
			return fmt.Errorf("postgres: deleting doctor %s: %w", id, err)
		}
		deleted = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

func (db *DB) SetDoctorImage(ctx context.Context, id, img string) (*model.Doctor, string, error) {
	var (
		updated  *model.Doctor
		previous string
	)
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `SELECT img FROM doctors WHERE id = $1 FOR UPDATE`, id).Scan(&previous)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperror.NotFound("médico", id)
			}
			return fmt.Errorf("postgres: reading doctor image %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE doctors SET img = $1, updated_at = $2 WHERE id = $3`, img, time.Now().UTC(), id,
		); err != nil {
			return fmt.Errorf("postgres: updating doctor image %s: %w", id, err)
		}
		updated, err = getDoctor(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, "", err
	}
	return updated, previous, nil
}
