package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"clubhub/internal/apperr"
	"clubhub/internal/store"
)

// Status is the moderation state of an event.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// ParseStatus validates a status filter value.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusApproved, StatusRejected:
		return st, nil
	}
	return "", apperr.Validation("unknown event status %q", s)
}

// Event is a club event open for registration once approved.
type Event struct {
	ID                string     `json:"id"`
	ClubID            string     `json:"club_id"`
	ClubName          string     `json:"club_name,omitempty"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	Date              time.Time  `json:"date"`
	Location          string     `json:"location"`
	Status            Status     `json:"status"`
	RegistrationLimit *int       `json:"registration_limit,omitempty"`
	RegistrantCount   int        `json:"registrant_count"`
	Registrants       []string   `json:"registrants,omitempty"`
	ModeratedBy       string     `json:"moderated_by,omitempty"`
	ModeratedAt       *time.Time `json:"moderated_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Filter narrows event listings. Zero values match everything.
type Filter struct {
	Status       Status
	ClubID       string
	From         *time.Time
	RegistrantID string
	NewestFirst  bool
}

// Repository persists events and registrations.
type Repository struct {
	db *store.DB
}

// NewRepository creates a repo.
func NewRepository(db *store.DB) *Repository {
	return &Repository{db: db}
}

const eventSelect = `
	SELECT e.id, e.club_id, c.name, e.title, e.description, e.starts_at, e.location, e.status,
	       e.registration_limit, e.registrant_count, COALESCE(e.moderated_by, ''), e.moderated_at,
	       e.created_at, e.updated_at
	FROM events e
	JOIN clubs c ON c.id = e.club_id`

func scanEvent(row interface{ Scan(...any) error }) (Event, error) {
	var (
		e           Event
		status      string
		limit       sql.NullInt64
		moderatedAt sql.NullTime
	)
	err := row.Scan(&e.ID, &e.ClubID, &e.ClubName, &e.Title, &e.Description, &e.Date, &e.Location, &status,
		&limit, &e.RegistrantCount, &e.ModeratedBy, &moderatedAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return Event{}, err
	}
	e.Status = Status(status)
	if limit.Valid {
		l := int(limit.Int64)
		e.RegistrationLimit = &l
	}
	if moderatedAt.Valid {
		t := moderatedAt.Time
		e.ModeratedAt = &t
	}
	return e, nil
}

// Insert writes a new event.
func (r *Repository) Insert(ctx context.Context, e Event) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO events (id, club_id, title, description, starts_at, location, status,
		                    registration_limit, registrant_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
	`, e.ID, e.ClubID, e.Title, e.Description, e.Date, e.Location, string(e.Status),
		nullInt(e.RegistrationLimit), e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// FindByID returns a single event without registrants.
func (r *Repository) FindByID(ctx context.Context, id string) (Event, error) {
	e, err := scanEvent(r.db.QueryRowContext(ctx, eventSelect+` WHERE e.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Event{}, apperr.NotFound("event not found")
		}
		return Event{}, fmt.Errorf("find event: %w", err)
	}
	return e, nil
}

// List returns events matching f ordered by date.
func (r *Repository) List(ctx context.Context, f Filter) ([]Event, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "e.status = ?")
		args = append(args, string(f.Status))
	}
	if f.ClubID != "" {
		where = append(where, "e.club_id = ?")
		args = append(args, f.ClubID)
	}
	if f.From != nil {
		where = append(where, "e.starts_at >= ?")
		args = append(args, f.From.UTC())
	}
	if f.RegistrantID != "" {
		where = append(where, "EXISTS (SELECT 1 FROM event_registrants er WHERE er.event_id = e.id AND er.user_id = ?)")
		args = append(args, f.RegistrantID)
	}

	query := eventSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if f.NewestFirst {
		query += " ORDER BY e.created_at DESC, e.id"
	} else {
		query += " ORDER BY e.starts_at, e.id"
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var res []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// Registrants returns registrant user ids in registration order.
func (r *Repository) Registrants(ctx context.Context, eventID string) ([]string, error) {
	return registrants(ctx, r.db, eventID)
}

func registrants(ctx context.Context, q store.Querier, eventID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT user_id FROM event_registrants WHERE event_id = ? ORDER BY registered_at, user_id
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list registrants: %w", err)
	}
	defer rows.Close()

	res := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		res = append(res, id)
	}
	return res, rows.Err()
}

// AddRegistrant registers userID for eventID in one transaction and returns
// the resulting registrant list. Checks run in order: status, duplicate,
// capacity. Any failure leaves the event untouched.
func (r *Repository) AddRegistrant(ctx context.Context, eventID, userID string, at time.Time) ([]string, error) {
	var out []string
	err := r.db.InTx(ctx, func(q store.Querier) error {
		var status string
		if err := q.QueryRowContext(ctx, `SELECT status FROM events WHERE id = ?`, eventID).Scan(&status); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.NotFound("event not found")
			}
			return fmt.Errorf("read event status: %w", err)
		}
		if Status(status) != StatusApproved {
			return apperr.InvalidState("event is not open for registration")
		}

		res, err := q.ExecContext(ctx, `
			INSERT INTO event_registrants (event_id, user_id, registered_at)
			VALUES (?, ?, ?)
			ON CONFLICT (event_id, user_id) DO NOTHING
		`, eventID, userID, at)
		if err != nil {
			return fmt.Errorf("insert registrant: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return apperr.Conflict("already registered for this event")
		}

		res, err = q.ExecContext(ctx, `
			UPDATE events
			SET registrant_count = registrant_count + 1
			WHERE id = ? AND status = 'approved'
			  AND (registration_limit IS NULL OR registrant_count < registration_limit)
		`, eventID)
		if err != nil {
			return fmt.Errorf("bump registrant count: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			// Status may have changed since the first read.
			if err := q.QueryRowContext(ctx, `SELECT status FROM events WHERE id = ?`, eventID).Scan(&status); err != nil {
				return fmt.Errorf("reread event status: %w", err)
			}
			if Status(status) != StatusApproved {
				return apperr.InvalidState("event is not open for registration")
			}
			return apperr.CapacityExceeded("registration limit reached")
		}

		out, err = registrants(ctx, q, eventID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update overwrites the editable fields. A limit below the current registrant
// count is rejected.
func (r *Repository) Update(ctx context.Context, e Event) error {
	query := `
		UPDATE events
		SET title = ?, description = ?, starts_at = ?, location = ?, registration_limit = ?, updated_at = ?
		WHERE id = ?`
	args := []any{e.Title, e.Description, e.Date, e.Location, nullInt(e.RegistrationLimit), e.UpdatedAt, e.ID}
	if e.RegistrationLimit != nil {
		query += ` AND registrant_count <= ?`
		args = append(args, *e.RegistrationLimit)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	if _, err := r.FindByID(ctx, e.ID); err != nil {
		return err
	}
	return apperr.Validation("registration limit is below the current registrant count")
}

// SetStatus records a moderation decision.
func (r *Repository) SetStatus(ctx context.Context, id string, st Status, by string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE events SET status = ?, moderated_by = ?, moderated_at = ?, updated_at = ? WHERE id = ?
	`, string(st), by, at, at, id)
	if err != nil {
		return fmt.Errorf("set event status: %w", err)
	}
	return expectOne(res)
}

// Delete removes an event and its registrations.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound("event not found")
	}
	return nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
