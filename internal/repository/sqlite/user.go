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

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// userPublicColumns never includes password: list and search results go
// straight to clients.
const userPublicColumns = `id, nombre, primer_apellido, segundo_apellido, email, img, role, google, created_at, updated_at`

const userAllColumns = `id, nombre, primer_apellido, segundo_apellido, email, password, img, role, google, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

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

// ListUsers returns one page of users, oldest first, and the total number of users.
func (db *DB) ListUsers(ctx context.Context, opts repository.ListOptions) ([]model.User, int, error) {
	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting users: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userPublicColumns+` FROM users
		 ORDER BY created_at, id
		 LIMIT ? OFFSET ?`,
		opts.Limit(), opts.Offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	users, err := collectUsers(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: listing users: %w", err)
	}
	return users, total, nil
}

// SearchUsers matches term against nombre, both surnames and email.
func (db *DB) SearchUsers(ctx context.Context, term string) ([]model.User, error) {
	pattern := repository.LikePattern(term)
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userPublicColumns+` FROM users
		 WHERE `+foldFunc+`(nombre) LIKE ? ESCAPE '\'
		    OR `+foldFunc+`(primer_apellido) LIKE ? ESCAPE '\'
		    OR `+foldFunc+`(segundo_apellido) LIKE ? ESCAPE '\'
		    OR `+foldFunc+`(email) LIKE ? ESCAPE '\'
		 ORDER BY created_at, id`,
		pattern, pattern, pattern, pattern,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: searching users: %w", err)
	}
	defer rows.Close()

	users, err := collectUsers(rows)
	if err != nil {
		return nil, fmt.Errorf("sqlite: searching users: %w", err)
	}
	return users, nil
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

// GetUserByID retrieves a user, password hash included.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userAllColumns+` FROM users WHERE id = ?`, id,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("usuario", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return &u, nil
}

// GetUserByEmail looks a user up for login. The comparison is exact.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userAllColumns+` FROM users WHERE email = ?`, email,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("usuario", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return &u, nil
}

// CreateUser inserts user, generating its ID and timestamps.
// user.Password must already be a hash.
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
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Nombre, user.PrimerApellido, user.SegundoApellido, user.Email,
		user.Password, user.Img, user.Role, user.Google, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Duplicate("email")
		}
		return fmt.Errorf("sqlite: creating user: %w", err)
	}
	return nil
}

// UpdateUser writes the editable profile columns: nombre, both surnames,
// email and role. Password, img and google are never touched here.
func (db *DB) UpdateUser(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now().UTC()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE users
		 SET nombre = ?, primer_apellido = ?, segundo_apellido = ?, email = ?, role = ?, updated_at = ?
		 WHERE id = ?`,
		user.Nombre, user.PrimerApellido, user.SegundoApellido, user.Email, user.Role, user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Duplicate("email")
		}
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("usuario", user.ID)
	}
	return nil
}

// DeleteUser removes a user and returns the deleted record.
func (db *DB) DeleteUser(ctx context.Context, id string) (*model.User, error) {
	var deleted model.User
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		u, err := scanPublicUser(tx.QueryRowContext(ctx,
			`SELECT `+userPublicColumns+` FROM users WHERE id = ?`, id,
		))
		if err != nil {
			if err == sql.ErrNoRows {
				return apperror.NotFound("usuario", id)
			}
			return fmt.Errorf("sqlite: getting user %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id); err != nil {
			return fmt.Errorf("sqlite: deleting user %s: %w", id, err)
		}
		deleted = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &deleted, nil
}

// SetUserImage swaps the user's image reference to img and returns the updated
// record together with the reference it replaced ("" if none).
//
// Reading the old value and writing the new one happen in one transaction, so
// two concurrent uploads each get back the file they displaced and no file is
// reported as "previous" twice.
func (db *DB) SetUserImage(ctx context.Context, id, img string) (*model.User, string, error) {
	var (
		updated  model.User
		previous string
	)
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `SELECT img FROM users WHERE id = ?`, id).Scan(&previous)
		if err != nil {
			if err == sql.ErrNoRows {
				return apperror.NotFound("usuario", id)
			}
			return fmt.Errorf("sqlite: reading user image %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET img = ?, updated_at = ? WHERE id = ?`, img, time.Now().UTC(), id,
		); err != nil {
			return fmt.Errorf("sqlite: updating user image %s: %w", id, err)
		}
		updated, err = scanPublicUser(tx.QueryRowContext(ctx,
			`SELECT `+userPublicColumns+` FROM users WHERE id = ?`, id,
		))
		if err != nil {
			return fmt.Errorf("sqlite: reloading user %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return &updated, previous, nil
}
