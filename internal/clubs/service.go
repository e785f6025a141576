package clubs

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"clubhub/internal/access"
	"clubhub/internal/apperr"
	"clubhub/internal/logos"
	"clubhub/internal/metrics"
	"clubhub/internal/queue"
	"clubhub/internal/users"
)

// ErrLogosDisabled is returned when no object storage is configured.
var ErrLogosDisabled = errors.New("logo uploads are not configured")

// UserLookup resolves user references.
type UserLookup interface {
	FindByID(ctx context.Context, id string) (users.User, error)
}

// LogoSigner issues presigned logo uploads.
type LogoSigner interface {
	PresignUpload(ctx context.Context, clubID, contentType string) (logos.Upload, error)
}

// CreateInput is the admin payload for a new club.
type CreateInput struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	LogoURL       string `json:"logo_url"`
	CoordinatorID string `json:"coordinator_id"`
}

// UpdateInput carries optional club changes; nil fields are left untouched.
type UpdateInput struct {
	Name          *string `json:"name"`
	Description   *string `json:"description"`
	LogoURL       *string `json:"logo_url"`
	CoordinatorID *string `json:"coordinator_id"`
}

// Service manages clubs and membership.
type Service struct {
	repo    *Repository
	users   UserLookup
	logos   LogoSigner
	pub     queue.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewService wires the club service. signer may be nil when logos are disabled.
func NewService(repo *Repository, users UserLookup, signer LogoSigner, pub queue.Publisher, m *metrics.Metrics, logger *slog.Logger) *Service {
	if pub == nil {
		pub = queue.Discard{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		users:   users,
		logos:   signer,
		pub:     pub,
		metrics: m,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Create registers a club. The coordinator becomes its first member.
func (s *Service) Create(ctx context.Context, actor access.Identity, in CreateInput) (Club, error) {
	if err := actor.Require(access.CreateClub); err != nil {
		return Club{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if in.Name == "" || in.Description == "" {
		return Club{}, apperr.Validation("name and description are required")
	}
	if err := s.checkCoordinator(ctx, in.CoordinatorID); err != nil {
		return Club{}, err
	}

	now := s.now()
	c := Club{
		ID:            uuid.NewString(),
		Name:          in.Name,
		Description:   in.Description,
		LogoURL:       strings.TrimSpace(in.LogoURL),
		CoordinatorID: in.CoordinatorID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Insert(ctx, c); err != nil {
		return Club{}, err
	}

	queue.Emit(ctx, s.pub, s.logger, queue.Activity{Type: queue.ClubCreated, ActorID: actor.UserID, ClubID: c.ID, Detail: c.Name, At: now})
	return s.Get(ctx, c.ID)
}

func (s *Service) checkCoordinator(ctx context.Context, userID string) error {
	if userID == "" {
		return apperr.Validation("coordinator_id is required")
	}
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.NotFound("coordinator not found")
		}
		return err
	}
	if u.Role != access.RoleCoordinator && u.Role != access.RoleAdmin {
		return apperr.Validation("user %s does not hold the coordinator role", u.ID)
	}
	return nil
}

// Get returns a club with its members.
func (s *Service) Get(ctx context.Context, id string) (Club, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Club{}, err
	}
	if c.Members, err = s.repo.Members(ctx, id); err != nil {
		return Club{}, err
	}
	return c, nil
}

// FindByID returns a club without loading members.
func (s *Service) FindByID(ctx context.Context, id string) (Club, error) {
	return s.repo.FindByID(ctx, id)
}

// List returns every club with member counts.
func (s *Service) List(ctx context.Context) ([]Club, error) {
	return s.repo.List(ctx)
}

// Update edits a club. Coordinators may edit their own club; only admins may
// hand it to another coordinator.
func (s *Service) Update(ctx context.Context, actor access.Identity, id string, in UpdateInput) (Club, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Club{}, err
	}
	if err := actor.RequireClub(access.ManageClub, c.CoordinatorID); err != nil {
		return Club{}, err
	}

	if in.Name != nil {
		if c.Name = strings.TrimSpace(*in.Name); c.Name == "" {
			return Club{}, apperr.Validation("name cannot be empty")
		}
	}
	if in.Description != nil {
		if c.Description = strings.TrimSpace(*in.Description); c.Description == "" {
			return Club{}, apperr.Validation("description cannot be empty")
		}
	}
	if in.LogoURL != nil {
		c.LogoURL = strings.TrimSpace(*in.LogoURL)
	}
	if in.CoordinatorID != nil && *in.CoordinatorID != c.CoordinatorID {
		if actor.Role != access.RoleAdmin {
			return Club{}, apperr.Unauthorized("only an administrator may change the coordinator")
		}
		if err := s.checkCoordinator(ctx, *in.CoordinatorID); err != nil {
			return Club{}, err
		}
		c.CoordinatorID = *in.CoordinatorID
	}
	c.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, c); err != nil {
		return Club{}, err
	}
	return s.Get(ctx, id)
}

// Delete removes a club and everything it owns. Admin only.
func (s *Service) Delete(ctx context.Context, actor access.Identity, id string) error {
	if err := actor.Require(access.DeleteClub); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// Join adds userID to the club. Callers may only join on their own behalf and
// a repeated join is rejected with Conflict.
func (s *Service) Join(ctx context.Context, actor access.Identity, clubID, userID string) (Club, error) {
	if err := actor.RequireSelf(access.JoinClub, userID); err != nil {
		return Club{}, err
	}
	if _, err := s.repo.FindByID(ctx, clubID); err != nil {
		return Club{}, err
	}
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return Club{}, err
	}

	now := s.now()
	added, err := s.repo.AddMember(ctx, clubID, userID, now)
	if err != nil {
		return Club{}, err
	}
	if !added {
		return Club{}, apperr.Conflict("already a member of this club")
	}

	s.metrics.IncClubJoins()
	queue.Emit(ctx, s.pub, s.logger, queue.Activity{Type: queue.ClubJoined, ActorID: actor.UserID, UserID: userID, ClubID: clubID, At: now})
	return s.Get(ctx, clubID)
}

// RequestLogoUpload presigns an upload for the club logo and points the club
// at the resulting object.
func (s *Service) RequestLogoUpload(ctx context.Context, actor access.Identity, clubID, contentType string) (logos.Upload, error) {
	c, err := s.repo.FindByID(ctx, clubID)
	if err != nil {
		return logos.Upload{}, err
	}
	if err := actor.RequireClub(access.ManageClub, c.CoordinatorID); err != nil {
		return logos.Upload{}, err
	}
	if s.logos == nil {
		return logos.Upload{}, ErrLogosDisabled
	}

	up, err := s.logos.PresignUpload(ctx, clubID, contentType)
	if err != nil {
		return logos.Upload{}, err
	}
	c.LogoURL = up.PublicURL
	c.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, c); err != nil {
		return logos.Upload{}, err
	}
	return up, nil
}
