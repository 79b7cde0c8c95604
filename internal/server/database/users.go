package database

import (
	"context"
	"fmt"

	"metarticles/internal/core"

	"github.com/jackc/pgx/v5"
)

const userColumns = `id, username, email, password_hash, role, first_name, last_name, created_at, active`

// UserRepository provides persistence for users.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row pgx.Row) (*core.User, error) {
	u := &core.User{}
	var role string
	if err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&role,
		&u.FirstName,
		&u.LastName,
		&u.CreatedAt,
		&u.Active,
	); err != nil {
		return nil, err
	}
	r, err := core.ParseRole(role)
	if err != nil {
		return nil, err
	}
	u.Role = r
	return u, nil
}

// CreateUser inserts a user and fills in its ID and creation time.
func (r *UserRepository) CreateUser(ctx context.Context, u *core.User) error {
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash, role, first_name, last_name, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`,
		u.Username,
		u.Email,
		u.PasswordHash,
		string(u.Role),
		u.FirstName,
		u.LastName,
		u.Active,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			if constraint == "users_email_key" {
				return ErrDuplicateEmail
			}
			return ErrDuplicateUsername
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// UserByID retrieves a user by its ID.
func (r *UserRepository) UserByID(ctx context.Context, id int64) (*core.User, error) {
	u, err := scanUser(r.db.Pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// UserByUsername retrieves a user by exact username.
func (r *UserRepository) UserByUsername(ctx context.Context, username string) (*core.User, error) {
	u, err := scanUser(r.db.Pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// UsernameExists reports whether a username is taken.
func (r *UserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)", username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return exists, nil
}

// EmailExists reports whether an email is taken, ignoring case.
func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(email) = LOWER($1))", email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return exists, nil
}

// UpdatePassword replaces a user's password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, hash string) error {
	tag, err := r.db.Pool.Exec(ctx,
		"UPDATE users SET password_hash = $2 WHERE id = $1", id, hash)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ChangeRole sets a user's role only if the current role is one of from.
func (r *UserRepository) ChangeRole(ctx context.Context, id int64, from []core.Role, to core.Role) error {
	allowed := make([]string, len(from))
	for i, role := range from {
		allowed[i] = string(role)
	}

	tag, err := r.db.Pool.Exec(ctx,
		"UPDATE users SET role = $2 WHERE id = $1 AND role = ANY($3)", id, string(to), allowed)
	if err != nil {
		return fmt.Errorf("failed to change role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.Pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)", id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check user: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrRoleMismatch
	}
	return nil
}

// ListAuthors returns all authors, newest first.
func (r *UserRepository) ListAuthors(ctx context.Context) ([]*core.User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users WHERE role = 'author' ORDER BY created_at DESC, id DESC`)
}

// ListStaff returns supervisors and admins ordered by username.
func (r *UserRepository) ListStaff(ctx context.Context) ([]*core.User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users WHERE role IN ('supervisor', 'admin') ORDER BY username`)
}

// CountAuthors returns the number of users with the author role.
func (r *UserRepository) CountAuthors(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM users WHERE role = 'author'").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count authors: %w", err)
	}
	return n, nil
}

func (r *UserRepository) list(ctx context.Context, query string, args ...any) ([]*core.User, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*core.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
