package events

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clubhub/internal/access"
	"clubhub/internal/apperr"
	"clubhub/internal/clubs"
	"clubhub/internal/metrics"
	"clubhub/internal/queue"
	"clubhub/internal/store/storetest"
	"clubhub/internal/users"
)

type fixture struct {
	svc   *Service
	users *users.Repository
	club  clubs.Club
	admin access.Identity
	coord access.Identity
}

func newFixture(t *testing.T, m *metrics.Metrics) fixture {
	t.Helper()
	ctx := context.Background()
	db := storetest.New(t)
	userRepo := users.NewRepository(db)
	clubSvc := clubs.NewService(clubs.NewRepository(db), userRepo, nil, queue.Discard{}, nil, nil)

	f := fixture{
		svc:   NewService(NewRepository(db), clubSvc, userRepo, queue.Discard{}, m, nil),
		users: userRepo,
	}
	f.admin = f.identity(t, "admin@uni.edu", access.RoleAdmin)
	f.coord = f.identity(t, "coord@uni.edu", access.RoleCoordinator)

	club, err := clubSvc.Create(ctx, f.admin, clubs.CreateInput{Name: "Robotics", Description: "Bots", CoordinatorID: f.coord.UserID})
	require.NoError(t, err)
	f.club = club
	return f
}

func (f fixture) identity(t *testing.T, email string, role access.Role) access.Identity {
	t.Helper()
	now := time.Now().UTC()
	u := users.User{ID: uuid.NewString(), Name: email, Email: email, PasswordHash: "x", Role: role, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, f.users.Insert(context.Background(), u))
	return access.Identity{UserID: u.ID, Role: role}
}

func (f fixture) students(t *testing.T, n int) []access.Identity {
	t.Helper()
	out := make([]access.Identity, n)
	for i := range out {
		out[i] = f.identity(t, fmt.Sprintf("student%d-%s@uni.edu", i, uuid.NewString()[:8]), access.RoleStudent)
	}
	return out
}

func (f fixture) event(t *testing.T, limit *int, approve bool) Event {
	t.Helper()
	ctx := context.Background()
	e, err := f.svc.Create(ctx, f.coord, CreateInput{
		ClubID:            f.club.ID,
		Title:             "Build night",
		Description:       "Solder things",
		Date:              time.Now().Add(48 * time.Hour),
		Location:          "Lab 3",
		RegistrationLimit: limit,
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, e.Status)
	if approve {
		e, err = f.svc.SetStatus(ctx, f.admin, e.ID, "approve")
		require.NoError(t, err)
	}
	return e
}

func intPtr(v int) *int { return &v }

func TestCreateValidationAndScope(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	base := CreateInput{ClubID: f.club.ID, Title: "T", Description: "D", Date: time.Now().Add(time.Hour), Location: "L"}

	bad := base
	bad.RegistrationLimit = intPtr(0)
	_, err := f.svc.Create(ctx, f.coord, bad)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	bad = base
	bad.Title = "  "
	_, err = f.svc.Create(ctx, f.coord, bad)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	other := f.identity(t, "other@uni.edu", access.RoleCoordinator)
	_, err = f.svc.Create(ctx, other, base)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	student := f.students(t, 1)[0]
	_, err = f.svc.Create(ctx, student, base)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	missing := base
	missing.ClubID = uuid.NewString()
	_, err = f.svc.Create(ctx, f.admin, missing)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRegisterCapacity(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	const limit = 3
	e := f.event(t, intPtr(limit), true)

	studs := f.students(t, limit+1)
	for i, s := range studs[:limit] {
		regs, err := f.svc.Register(ctx, s, e.ID, s.UserID)
		require.NoError(t, err)
		assert.Len(t, regs, i+1)
	}

	last := studs[limit]
	_, err := f.svc.Register(ctx, last, e.ID, last.UserID)
	require.ErrorIs(t, err, apperr.ErrCapacityExceeded)

	got, err := f.svc.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Len(t, got.Registrants, limit)
	assert.Equal(t, limit, got.RegistrantCount)
	assert.NotContains(t, got.Registrants, last.UserID)

	// Already-registered users on a full event hear about the duplicate, not the capacity.
	_, err = f.svc.Register(ctx, studs[0], e.ID, studs[0].UserID)
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestRegisterRequiresApproval(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	e := f.event(t, nil, false)
	s := f.students(t, 1)[0]

	_, err := f.svc.Register(ctx, s, e.ID, s.UserID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	_, err = f.svc.SetStatus(ctx, f.admin, e.ID, "approve")
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, s, e.ID, s.UserID)
	require.NoError(t, err)

	_, err = f.svc.SetStatus(ctx, f.admin, e.ID, "reject")
	require.NoError(t, err)
	// Prior registration does not mask the state error.
	_, err = f.svc.Register(ctx, s, e.ID, s.UserID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestRegisterPreconditions(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	e := f.event(t, nil, true)
	studs := f.students(t, 2)

	_, err := f.svc.Register(ctx, studs[0], e.ID, studs[1].UserID)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = f.svc.Register(ctx, studs[0], uuid.NewString(), studs[0].UserID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	ghost := access.Identity{UserID: uuid.NewString(), Role: access.RoleStudent}
	_, err = f.svc.Register(ctx, ghost, e.ID, ghost.UserID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.Register(ctx, studs[0], e.ID, studs[0].UserID)
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, studs[0], e.ID, studs[0].UserID)
	require.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, "already registered for this event", apperr.Message(err))
}

func TestConcurrentRegistration(t *testing.T) {
	t.Run("same user registers once", func(t *testing.T) {
		f := newFixture(t, nil)
		e := f.event(t, nil, true)
		s := f.students(t, 1)[0]

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
		)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := f.svc.Register(context.Background(), s, e.ID, s.UserID); err == nil {
					mu.Lock()
					successes++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, successes)
		got, err := f.svc.Get(context.Background(), e.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{s.UserID}, got.Registrants)
	})

	t.Run("distinct users never exceed the limit", func(t *testing.T) {
		f := newFixture(t, nil)
		const limit = 4
		e := f.event(t, intPtr(limit), true)
		studs := f.students(t, 12)

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			ok   int
			full int
		)
		for _, s := range studs {
			wg.Add(1)
			go func(s access.Identity) {
				defer wg.Done()
				_, err := f.svc.Register(context.Background(), s, e.ID, s.UserID)
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					ok++
				} else if apperr.KindOf(err) == apperr.KindCapacityExceeded {
					full++
				}
			}(s)
		}
		wg.Wait()

		assert.Equal(t, limit, ok)
		assert.Equal(t, len(studs)-limit, full)
		got, err := f.svc.Get(context.Background(), e.ID)
		require.NoError(t, err)
		assert.Len(t, got.Registrants, limit)
		assert.Equal(t, limit, got.RegistrantCount)
	})
}

func TestSetStatus(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	e := f.event(t, nil, false)

	_, err := f.svc.SetStatus(ctx, f.coord, e.ID, "approve")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = f.svc.SetStatus(ctx, f.admin, e.ID, "publish")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.SetStatus(ctx, f.admin, uuid.NewString(), "approve")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	approved, err := f.svc.SetStatus(ctx, f.admin, e.ID, "approve")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, approved.Status)

	rejected, err := f.svc.SetStatus(ctx, f.admin, e.ID, "reject")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, rejected.Status)
	assert.Equal(t, f.admin.UserID, rejected.ModeratedBy)
	require.NotNil(t, rejected.ModeratedAt)
}

func TestUpdateLimitBelowCount(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	e := f.event(t, intPtr(5), true)
	for _, s := range f.students(t, 3) {
		_, err := f.svc.Register(ctx, s, e.ID, s.UserID)
		require.NoError(t, err)
	}

	_, err := f.svc.Update(ctx, f.coord, e.ID, UpdateInput{RegistrationLimit: intPtr(2)})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	updated, err := f.svc.Update(ctx, f.coord, e.ID, UpdateInput{RegistrationLimit: intPtr(3)})
	require.NoError(t, err)
	require.NotNil(t, updated.RegistrationLimit)
	assert.Equal(t, 3, *updated.RegistrationLimit)

	unlimited, err := f.svc.Update(ctx, f.coord, e.ID, UpdateInput{ClearLimit: true})
	require.NoError(t, err)
	assert.Nil(t, unlimited.RegistrationLimit)
}

func TestListings(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	pending := f.event(t, nil, false)
	approved := f.event(t, nil, true)
	s := f.students(t, 1)[0]

	listed, err := f.svc.List(ctx, ListFilter{UpcomingOnly: true})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, approved.ID, listed[0].ID)
	assert.Equal(t, "Robotics", listed[0].ClubName)

	listed, err = f.svc.List(ctx, ListFilter{Status: "pending", ClubID: f.club.ID})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, pending.ID, listed[0].ID)

	_, err = f.svc.List(ctx, ListFilter{Status: "archived"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	all, err := f.svc.ListAll(ctx, f.admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	_, err = f.svc.ListAll(ctx, f.coord)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = f.svc.Register(ctx, s, approved.ID, s.UserID)
	require.NoError(t, err)
	mine, err := f.svc.ListForUser(ctx, s.UserID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, approved.ID, mine[0].ID)
}

func TestDeleteScope(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	e := f.event(t, nil, false)
	other := f.identity(t, "other@uni.edu", access.RoleCoordinator)

	assert.ErrorIs(t, f.svc.Delete(ctx, other, e.ID), apperr.ErrUnauthorized)
	require.NoError(t, f.svc.Delete(ctx, f.coord, e.ID))
	_, err := f.svc.Get(ctx, e.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRegistrationMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	f := newFixture(t, m)
	ctx := context.Background()
	e := f.event(t, intPtr(1), true)
	studs := f.students(t, 2)

	_, err := f.svc.Register(ctx, studs[0], e.ID, studs[0].UserID)
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, studs[1], e.ID, studs[1].UserID)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Registrations.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Registrations.WithLabelValues("capacity_exceeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Moderations.WithLabelValues("approve")))
}
