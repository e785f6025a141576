// Package stats computes the admin dashboard counters.
package stats

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"clubhub/internal/access"
	"clubhub/internal/store"
)

// Counts is the dashboard snapshot.
type Counts struct {
	TotalUsers        int `json:"total_users"`
	TotalStudents     int `json:"total_students"`
	TotalCoordinators int `json:"total_coordinators"`
	TotalAdmins       int `json:"total_admins"`
	TotalClubs        int `json:"total_clubs"`
	TotalEvents       int `json:"total_events"`
	ApprovedEvents    int `json:"approved_events"`
	PendingEvents     int `json:"pending_events"`
}

// Service runs the count queries.
type Service struct {
	db *store.DB
}

// NewService creates a stats service.
func NewService(db *store.DB) *Service {
	return &Service{db: db}
}

// Counts returns the current totals. Admin only.
func (s *Service) Counts(ctx context.Context, actor access.Identity) (Counts, error) {
	if err := actor.Require(access.ViewStats); err != nil {
		return Counts{}, err
	}

	var c Counts
	queries := []struct {
		dst   *int
		query string
		args  []any
	}{
		{&c.TotalUsers, `SELECT COUNT(*) FROM users`, nil},
		{&c.TotalStudents, `SELECT COUNT(*) FROM users WHERE role = ?`, []any{string(access.RoleStudent)}},
		{&c.TotalCoordinators, `SELECT COUNT(*) FROM users WHERE role = ?`, []any{string(access.RoleCoordinator)}},
		{&c.TotalAdmins, `SELECT COUNT(*) FROM users WHERE role = ?`, []any{string(access.RoleAdmin)}},
		{&c.TotalClubs, `SELECT COUNT(*) FROM clubs`, nil},
		{&c.TotalEvents, `SELECT COUNT(*) FROM events`, nil},
		{&c.ApprovedEvents, `SELECT COUNT(*) FROM events WHERE status = 'approved'`, nil},
		{&c.PendingEvents, `SELECT COUNT(*) FROM events WHERE status = 'pending'`, nil},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, q := range queries {
		g.Go(func() error {
			if err := s.db.QueryRowContext(gctx, q.query, q.args...).Scan(q.dst); err != nil {
				return fmt.Errorf("count: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Counts{}, err
	}
	return c, nil
}
