package events

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"clubhub/internal/access"
	"clubhub/internal/apperr"
	"clubhub/internal/clubs"
	"clubhub/internal/metrics"
	"clubhub/internal/queue"
	"clubhub/internal/users"
)

// ClubLookup resolves the owning club of an event.
type ClubLookup interface {
	FindByID(ctx context.Context, id string) (clubs.Club, error)
}

// UserLookup resolves registrants.
type UserLookup interface {
	FindByID(ctx context.Context, id string) (users.User, error)
}

// CreateInput is the payload for a new event.
type CreateInput struct {
	ClubID            string    `json:"club_id"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	Date              time.Time `json:"date"`
	Location          string    `json:"location"`
	RegistrationLimit *int      `json:"registration_limit"`
}

// UpdateInput carries optional edits. ClearLimit makes the event unlimited.
type UpdateInput struct {
	Title             *string    `json:"title"`
	Description       *string    `json:"description"`
	Date              *time.Time `json:"date"`
	Location          *string    `json:"location"`
	RegistrationLimit *int       `json:"registration_limit"`
	ClearLimit        bool       `json:"clear_registration_limit"`
}

// ListFilter is the public listing query.
type ListFilter struct {
	Status       string
	ClubID       string
	UpcomingOnly bool
}

// Service manages events, registration and moderation.
type Service struct {
	repo    *Repository
	clubs   ClubLookup
	users   UserLookup
	pub     queue.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewService wires the event service.
func NewService(repo *Repository, clubs ClubLookup, users UserLookup, pub queue.Publisher, m *metrics.Metrics, logger *slog.Logger) *Service {
	if pub == nil {
		pub = queue.Discard{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		clubs:   clubs,
		users:   users,
		pub:     pub,
		metrics: m,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Create adds a pending event to a club.
func (s *Service) Create(ctx context.Context, actor access.Identity, in CreateInput) (Event, error) {
	if err := actor.Require(access.CreateEvent); err != nil {
		return Event{}, err
	}
	club, err := s.clubs.FindByID(ctx, in.ClubID)
	if err != nil {
		return Event{}, err
	}
	if err := actor.RequireClub(access.CreateEvent, club.CoordinatorID); err != nil {
		return Event{}, err
	}

	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Location = strings.TrimSpace(in.Location)
	if err := validateFields(in.Title, in.Description, in.Location, in.Date); err != nil {
		return Event{}, err
	}
	if in.RegistrationLimit != nil && *in.RegistrationLimit <= 0 {
		return Event{}, apperr.Validation("registration limit must be positive")
	}

	now := s.now()
	e := Event{
		ID:                uuid.NewString(),
		ClubID:            club.ID,
		Title:             in.Title,
		Description:       in.Description,
		Date:              in.Date.UTC(),
		Location:          in.Location,
		Status:            StatusPending,
		RegistrationLimit: in.RegistrationLimit,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.Insert(ctx, e); err != nil {
		return Event{}, err
	}

	queue.Emit(ctx, s.pub, s.logger, queue.Activity{Type: queue.EventCreated, ActorID: actor.UserID, ClubID: club.ID, EventID: e.ID, Detail: e.Title, At: now})
	return s.Get(ctx, e.ID)
}

func validateFields(title, description, location string, date time.Time) error {
	switch {
	case title == "":
		return apperr.Validation("title is required")
	case description == "":
		return apperr.Validation("description is required")
	case location == "":
		return apperr.Validation("location is required")
	case date.IsZero():
		return apperr.Validation("date is required")
	}
	return nil
}

// Get returns an event with its registrants.
func (s *Service) Get(ctx context.Context, id string) (Event, error) {
	e, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Event{}, err
	}
	if e.Registrants, err = s.repo.Registrants(ctx, id); err != nil {
		return Event{}, err
	}
	return e, nil
}

// List returns events by date. Status defaults to approved.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Event, error) {
	filter := Filter{Status: StatusApproved, ClubID: f.ClubID}
	if f.Status != "" {
		st, err := ParseStatus(f.Status)
		if err != nil {
			return nil, err
		}
		filter.Status = st
	}
	if f.UpcomingOnly {
		now := s.now()
		filter.From = &now
	}
	return s.repo.List(ctx, filter)
}

// ListAll returns events in every status, newest first. Admin only.
func (s *Service) ListAll(ctx context.Context, actor access.Identity) ([]Event, error) {
	if err := actor.Require(access.ModerateEvent); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, Filter{NewestFirst: true})
}

// ListForUser returns the events userID is registered for.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]Event, error) {
	return s.repo.List(ctx, Filter{RegistrantID: userID})
}

// Update edits an event on behalf of its club coordinator or an admin.
func (s *Service) Update(ctx context.Context, actor access.Identity, id string, in UpdateInput) (Event, error) {
	e, err := s.authorizeManage(ctx, actor, id)
	if err != nil {
		return Event{}, err
	}

	if in.Title != nil {
		e.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		e.Description = strings.TrimSpace(*in.Description)
	}
	if in.Location != nil {
		e.Location = strings.TrimSpace(*in.Location)
	}
	if in.Date != nil {
		e.Date = in.Date.UTC()
	}
	if err := validateFields(e.Title, e.Description, e.Location, e.Date); err != nil {
		return Event{}, err
	}
	switch {
	case in.ClearLimit:
		e.RegistrationLimit = nil
	case in.RegistrationLimit != nil:
		if *in.RegistrationLimit <= 0 {
			return Event{}, apperr.Validation("registration limit must be positive")
		}
		e.RegistrationLimit = in.RegistrationLimit
	}
	e.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, e); err != nil {
		return Event{}, err
	}
	return s.Get(ctx, id)
}

// Delete removes an event on behalf of its club coordinator or an admin.
func (s *Service) Delete(ctx context.Context, actor access.Identity, id string) error {
	if _, err := s.authorizeManage(ctx, actor, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) authorizeManage(ctx context.Context, actor access.Identity, id string) (Event, error) {
	if err := actor.Require(access.ManageEvent); err != nil {
		return Event{}, err
	}
	e, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Event{}, err
	}
	club, err := s.clubs.FindByID(ctx, e.ClubID)
	if err != nil {
		return Event{}, err
	}
	if err := actor.RequireClub(access.ManageEvent, club.CoordinatorID); err != nil {
		return Event{}, err
	}
	return e, nil
}

// Register adds userID to the event's registrants and returns the updated
// list. Only approved events accept registrations; duplicates fail with
// Conflict and a full event with CapacityExceeded.
func (s *Service) Register(ctx context.Context, actor access.Identity, eventID, userID string) ([]string, error) {
	if err := actor.RequireSelf(access.RegisterEvent, userID); err != nil {
		return nil, err
	}
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return nil, err
	}

	now := s.now()
	regs, err := s.repo.AddRegistrant(ctx, eventID, userID, now)
	s.metrics.ObserveRegistration(outcome(err))
	if err != nil {
		return nil, err
	}

	queue.Emit(ctx, s.pub, s.logger, queue.Activity{Type: queue.EventRegistered, ActorID: actor.UserID, UserID: userID, EventID: eventID, At: now})
	return regs, nil
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return apperr.KindOf(err).String()
}

// SetStatus approves or rejects an event. Admin only. Any transition is
// allowed, including flipping an earlier decision.
func (s *Service) SetStatus(ctx context.Context, actor access.Identity, eventID, action string) (Event, error) {
	if err := actor.Require(access.ModerateEvent); err != nil {
		return Event{}, err
	}
	var st Status
	switch action {
	case "approve":
		st = StatusApproved
	case "reject":
		st = StatusRejected
	default:
		return Event{}, apperr.Validation("action must be approve or reject")
	}

	now := s.now()
	if err := s.repo.SetStatus(ctx, eventID, st, actor.UserID, now); err != nil {
		return Event{}, err
	}

	s.metrics.IncModerations(action)
	queue.Emit(ctx, s.pub, s.logger, queue.Activity{Type: queue.EventModerated, ActorID: actor.UserID, EventID: eventID, Detail: string(st), At: now})
	return s.Get(ctx, eventID)
}
