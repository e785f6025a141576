package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"clubhub/internal/access"
	"clubhub/internal/apperr"
	"clubhub/internal/store"
)

// User is a registered account. PasswordHash never leaves the service.
type User struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Email        string      `json:"email"`
	PasswordHash string      `json:"-"`
	Role         access.Role `json:"role"`
	StudentID    string      `json:"student_id,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// Repository persists users in SQL.
type Repository struct {
	db *store.DB
}

// NewRepository creates a repo.
func NewRepository(db *store.DB) *Repository {
	return &Repository{db: db}
}

const userColumns = `id, name, email, password_hash, role, COALESCE(student_id, ''), created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	var role string
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.StudentID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return User{}, err
	}
	u.Role = access.Role(role)
	return u, nil
}

// Insert writes a new user. Email collisions surface as Conflict.
func (r *Repository) Insert(ctx context.Context, u User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, role, student_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.Name, u.Email, u.PasswordHash, string(u.Role), nullString(u.StudentID), u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return apperr.Conflict("email already in use")
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// FindByID returns a single user.
func (r *Repository) FindByID(ctx context.Context, id string) (User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, apperr.NotFound("user not found")
		}
		return User{}, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

// FindByEmail looks a user up by normalized email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, apperr.NotFound("user not found")
		}
		return User{}, fmt.Errorf("find user by email: %w", err)
	}
	return u, nil
}

// List returns all users, newest first.
func (r *Repository) List(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var res []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

// UpdateRole changes a user's role. A club coordinator cannot become a student.
func (r *Repository) UpdateRole(ctx context.Context, id string, role access.Role, at time.Time) error {
	query := `UPDATE users SET role = ?, updated_at = ? WHERE id = ?`
	args := []any{string(role), at, id}
	if role == access.RoleStudent {
		query += ` AND NOT EXISTS (SELECT 1 FROM clubs WHERE coordinator_id = ?)`
		args = append(args, id)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	if _, err := r.FindByID(ctx, id); err != nil {
		return err
	}
	return apperr.Conflict("user still coordinates a club")
}

// Delete removes a user unless they still coordinate a club.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM users
		WHERE id = ? AND NOT EXISTS (SELECT 1 FROM clubs WHERE coordinator_id = ?)
	`, id, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	if _, err := r.FindByID(ctx, id); err != nil {
		return err
	}
	return apperr.Conflict("user still coordinates a club")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
