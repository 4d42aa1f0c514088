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

var _ repository.UserRepository = (*DB)(nil)

const userPublicColumns = `id, nombre, primer_apellido, segundo_apellido, email, img, role, google, created_at, updated_at`

const userAllColumns = `id, nombre, primer_apellido, segundo_apellido, email, password, img, role, google, created_at, updated_at`

func scanPublicUser(s rowScanner) (model.User, error) {
	var u model.User
	err := s.Scan(&u.ID, &u.Nombre, &u.PrimerApellido, &u.SegundoApellido, &u.Email,
		&u.Img, &u.Role, &u.Google, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func scanUser(s rowScanner) (model.User, error) {
	var u model.User
	err := s.Scan(&u.ID, &u.Nombre, &u.PrimerApellido, &u.SegundoApellido, &u.Email,
		&u.Password, &u.Img, &u.Role, &u.Google, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func collectUsers(rows *sql.Rows) ([]model.User, error) {
	users := []model.User{}
	for rows.Next() {
		u, err := scanPublicUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (db *DB) ListUsers(ctx context.Context, opts repository.ListOptions) ([]model.User, int, error) {
	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres: counting users: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userPublicColumns+` FROM users ORDER BY created_at, id LIMIT $1 OFFSET $2`,
		opts.Limit(), opts.Offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: listing users: %w", err)
	}
	defer rows.Close()

	users, err := collectUsers(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: listing users: %w", err)
	}
	return users, total, nil
}

func (db *DB) SearchUsers(ctx context.Context, term string) ([]model.User, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userPublicColumns+` FROM users
		 WHERE LOWER(nombre) LIKE $1 ESCAPE '\'
		    OR LOWER(primer_apellido) LIKE $1 ESCAPE '\'
		    OR LOWER(segundo_apellido) LIKE $1 ESCAPE '\'
		    OR LOWER(email) LIKE $1 ESCAPE '\'
		 ORDER BY created_at, id`,
		repository.LikePattern(term),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: searching users: %w", err)
	}
	defer rows.Close()

	users, err := collectUsers(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: searching users: %w", err)
	}
	return users, nil
}

func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userAllColumns+` FROM users WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("usuario", id)
		}
		return nil, fmt.Errorf("postgres: getting user %s: %w", id, err)
	}
	return &u, nil
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userAllColumns+` FROM users WHERE email = $1`, email,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("usuario", email)
		}
		return nil, fmt.Errorf("postgres: getting user by email: %w", err)
	}
	return &u, nil
}

func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Role == "" {
		user.Role = model.RoleUser
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, nombre, primer_apellido, segundo_apellido, email, password, img, role, google, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		user.ID, user.Nombre, user.PrimerApellido, user.SegundoApellido, user.Email,
		user.Password, user.Img, user.Role, user.Google, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Duplicate("email")
		}
		return fmt.Errorf("postgres: creating user: %w", err)
	}
	return nil
}

func (db *DB) UpdateUser(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now().UTC()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE users
		 SET nombre = $1, primer_apellido = $2, segundo_apellido = $3, email = $4, role = $5, updated_at = $6
		 WHERE id = $7`,
		user.Nombre, user.PrimerApellido, user.SegundoApellido, user.Email, user.Role, user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Duplicate("email")
		}
		return fmt.Errorf("postgres: updating user %s: %w", user.ID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("usuario", user.ID)
	}
	return nil
}

// DeleteUser uses DELETE ... RETURNING so no transaction is needed.
func (db *DB) DeleteUser(ctx context.Context, id string) (*model.User, error) {
	u, err := scanPublicUser(db.conn.QueryRowContext(ctx,
		`DELETE FROM users WHERE id = $1 RETURNING `+userPublicColumns, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("usuario", id)
		}
		return nil, fmt.Errorf("postgres: deleting user %s: %w", id, err)
	}
	return &u, nil
}

// SetUserImage locks the row with SELECT ... FOR UPDATE so concurrent uploads
// serialize and each one sees the reference it replaces.
func (db *DB) SetUserImage(ctx context.Context, id, img string) (*model.User, string, error) {
	var (
		updated  model.User
		previous string
	)
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `SELECT img FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&previous)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperror.NotFound("usuario", id)
			}
			return fmt.Errorf("postgres: reading user image %s: %w", id, err)
		}
		updated, err = scanPublicUser(tx.QueryRowContext(ctx,
			`UPDATE users SET img = $1, updated_at = $2 WHERE id = $3 RETURNING `+userPublicColumns,
			img, time.Now().UTC(), id,
		))
		if err != nil {
			return fmt.Errorf("postgres: updating user image %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return &updated, previous, nil
}
