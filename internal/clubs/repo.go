package clubs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"clubhub/internal/apperr"
	"clubhub/internal/store"
)

// Club is a student organization with one coordinator and a member set.
type Club struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	LogoURL       string    `json:"logo_url,omitempty"`
	CoordinatorID string    `json:"coordinator_id"`
	MemberCount   int       `json:"member_count"`
	Members       []Member  `json:"members,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Member is a club membership joined with the member's display fields.
type Member struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	StudentID string    `json:"student_id,omitempty"`
	JoinedAt  time.Time `json:"joined_at"`
}

// Repository persists clubs and memberships.
type Repository struct {
	db *store.DB
}

// NewRepository creates a repo.
func NewRepository(db *store.DB) *Repository {
	return &Repository{db: db}
}

const clubSelect = `
	SELECT c.id, c.name, c.description, COALESCE(c.logo_url, ''), c.coordinator_id,
	       (SELECT COUNT(*) FROM club_members m WHERE m.club_id = c.id),
	       c.created_at, c.updated_at
	FROM clubs c`

func scanClub(row interface{ Scan(...any) error }) (Club, error) {
	var c Club
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.LogoURL, &c.CoordinatorID, &c.MemberCount, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// Insert creates the club and enrolls its coordinator as the first member.
func (r *Repository) Insert(ctx context.Context, c Club) error {
	return r.db.InTx(ctx, func(q store.Querier) error {
		_, err := q.ExecContext(ctx, `
			INSERT INTO clubs (id, name, description, logo_url, coordinator_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, c.ID, c.Name, c.Description, nullString(c.LogoURL), c.CoordinatorID, c.CreatedAt, c.UpdatedAt)
		if err != nil {
			if store.IsUniqueViolation(err) {
				return apperr.Conflict("a club named %q already exists", c.Name)
			}
			return fmt.Errorf("insert club: %w", err)
		}
		if _, err := q.ExecContext(ctx, `
			INSERT INTO club_members (club_id, user_id, joined_at) VALUES (?, ?, ?)
		`, c.ID, c.CoordinatorID, c.CreatedAt); err != nil {
			return fmt.Errorf("insert coordinator membership: %w", err)
		}
		return nil
	})
}

// FindByID returns a club without its member list.
func (r *Repository) FindByID(ctx context.Context, id string) (Club, error) {
	c, err := scanClub(r.db.QueryRowContext(ctx, clubSelect+` WHERE c.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Club{}, apperr.NotFound("club not found")
		}
		return Club{}, fmt.Errorf("find club: %w", err)
	}
	return c, nil
}

// List returns all clubs ordered by name.
func (r *Repository) List(ctx context.Context) ([]Club, error) {
	rows, err := r.db.QueryContext(ctx, clubSelect+` ORDER BY c.name`)
	if err != nil {
		return nil, fmt.Errorf("list clubs: %w", err)
	}
	defer rows.Close()

	var res []Club
	for rows.Next() {
		c, err := scanClub(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// Members lists a club's members in join order.
func (r *Repository) Members(ctx context.Context, clubID string) ([]Member, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT u.id, u.name, u.email, COALESCE(u.student_id, ''), m.joined_at
		FROM club_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.club_id = ?
		ORDER BY m.joined_at, u.id
	`, clubID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var res []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.UserID, &m.Name, &m.Email, &m.StudentID, &m.JoinedAt); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

// AddMember inserts the membership. It reports false when the pair already exists.
func (r *Repository) AddMember(ctx context.Context, clubID, userID string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO club_members (club_id, user_id, joined_at)
		VALUES (?, ?, ?)
		ON CONFLICT (club_id, user_id) DO NOTHING
	`, clubID, userID, at)
	if err != nil {
		return false, fmt.Errorf("add member: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Update overwrites the mutable club fields and enrols the coordinator as a
// member if they are not one already.
func (r *Repository) Update(ctx context.Context, c Club) error {
	return r.db.InTx(ctx, func(q store.Querier) error {
		res, err := q.ExecContext(ctx, `
			UPDATE clubs
			SET name = ?, description = ?, logo_url = ?, coordinator_id = ?, updated_at = ?
			WHERE id = ?
		`, c.Name, c.Description, nullString(c.LogoURL), c.CoordinatorID, c.UpdatedAt, c.ID)
		if err != nil {
			if store.IsUniqueViolation(err) {
				return apperr.Conflict("a club named %q already exists", c.Name)
			}
			return fmt.Errorf("update club: %w", err)
		}
		if err := expectOne(res); err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx, `
			INSERT INTO club_members (club_id, user_id, joined_at)
			VALUES (?, ?, ?)
			ON CONFLICT (club_id, user_id) DO NOTHING
		`, c.ID, c.CoordinatorID, c.UpdatedAt); err != nil {
			return fmt.Errorf("insert coordinator membership: %w", err)
		}
		return nil
	})
}

// Delete removes a club; memberships, events and its budget cascade.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM clubs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete club: %w", err)
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound("club not found")
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
