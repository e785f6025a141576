package users

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"clubhub/internal/access"
	"clubhub/internal/apperr"
	"clubhub/internal/auth"
	"clubhub/internal/metrics"
	"clubhub/internal/queue"
)

const (
	minPasswordLen = 8
	// bcrypt rejects longer inputs.
	maxPasswordBytes = 72
)

var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// RegisterInput is the payload for self sign-up and seeding.
type RegisterInput struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	StudentID string `json:"student_id"`
}

// Service handles accounts, credentials and role administration.
type Service struct {
	repo    *Repository
	hasher  auth.Hasher
	tokens  *auth.Tokens
	pub     queue.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewService wires the user service.
func NewService(repo *Repository, hasher auth.Hasher, tokens *auth.Tokens, pub queue.Publisher, m *metrics.Metrics, logger *slog.Logger) *Service {
	if pub == nil {
		pub = queue.Discard{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		hasher:  hasher,
		tokens:  tokens,
		pub:     pub,
		metrics: m,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a student account.
func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	return s.Create(ctx, in, access.RoleStudent)
}

// Create inserts an account with the given role. Only the seeder and
// Register call it; role promotion otherwise goes through SetRole.
func (s *Service) Create(ctx context.Context, in RegisterInput, role access.Role) (User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.StudentID = strings.TrimSpace(in.StudentID)
	switch {
	case in.Name == "":
		return User{}, apperr.Validation("name is required")
	case !emailPattern.MatchString(in.Email):
		return User{}, apperr.Validation("a valid email is required")
	case len(in.Password) < minPasswordLen:
		return User{}, apperr.Validation("password must be at least %d characters", minPasswordLen)
	case len(in.Password) > maxPasswordBytes:
		return User{}, apperr.Validation("password must be at most %d bytes", maxPasswordBytes)
	}
	if _, err := access.ParseRole(string(role)); err != nil {
		return User{}, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return User{}, err
	}
	now := s.now()
	u := User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         role,
		StudentID:    in.StudentID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Insert(ctx, u); err != nil {
		return User{}, err
	}

	s.metrics.IncUsersRegistered()
	queue.Emit(ctx, s.pub, s.logger, queue.Activity{Type: queue.UserRegistered, UserID: u.ID, At: now})
	return u, nil
}

// Authenticate checks credentials and issues a token pair.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, auth.TokenPair, error) {
	u, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return User{}, auth.TokenPair{}, apperr.Unauthorized("invalid credentials")
		}
		return User{}, auth.TokenPair{}, err
	}
	if !s.hasher.Matches(u.PasswordHash, password) {
		return User{}, auth.TokenPair{}, apperr.Unauthorized("invalid credentials")
	}
	pair, err := s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return User{}, auth.TokenPair{}, err
	}
	return u, pair, nil
}

// Refresh exchanges a refresh token for a new pair carrying the current role.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	claims, err := s.tokens.Parse(refreshToken, auth.TokenRefresh)
	if err != nil {
		return auth.TokenPair{}, apperr.Unauthorized("invalid refresh token")
	}
	u, err := s.repo.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return auth.TokenPair{}, apperr.Unauthorized("invalid refresh token")
		}
		return auth.TokenPair{}, err
	}
	return s.tokens.Issue(u.ID, u.Role)
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.repo.FindByID(ctx, id)
}

// FindByID satisfies the lookups other services depend on.
func (s *Service) FindByID(ctx context.Context, id string) (User, error) {
	return s.repo.FindByID(ctx, id)
}

// List returns every account. Admin only.
func (s *Service) List(ctx context.Context, actor access.Identity) ([]User, error) {
	if err := actor.Require(access.ManageUsers); err != nil {
		return nil, err
	}
	return s.repo.List(ctx)
}

// Delete removes an account. Admin only; a user who still coordinates a club
// cannot be removed.
func (s *Service) Delete(ctx context.Context, actor access.Identity, id string) error {
	if err := actor.Require(access.ManageUsers); err != nil {
		return err
	}
	if actor.UserID == id {
		return apperr.Validation("administrators cannot delete their own account")
	}
	return s.repo.Delete(ctx, id)
}

// SetRole changes a user's role. Admin only.
func (s *Service) SetRole(ctx context.Context, actor access.Identity, id string, role string) (User, error) {
	if err := actor.Require(access.ManageUsers); err != nil {
		return User{}, err
	}
	r, err := access.ParseRole(role)
	if err != nil {
		return User{}, err
	}
	if err := s.repo.UpdateRole(ctx, id, r, s.now()); err != nil {
		return User{}, err
	}
	return s.repo.FindByID(ctx, id)
}
