package budgets

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"clubhub/internal/access"
	"clubhub/internal/apperr"
	"clubhub/internal/clubs"
	"clubhub/internal/metrics"
	"clubhub/internal/queue"
)

// ClubLookup resolves the club a budget belongs to.
type ClubLookup interface {
	FindByID(ctx context.Context, id string) (clubs.Club, error)
}

// ExpenseInput is a new ledger entry. Date defaults to now.
type ExpenseInput struct {
	Description string     `json:"description"`
	Amount      float64    `json:"amount"`
	Date        *time.Time `json:"date"`
}

// Summary holds the figures derived from a budget.
type Summary struct {
	TotalSpent         float64 `json:"total_spent"`
	Remaining          float64 `json:"remaining"`
	UtilizationPercent float64 `json:"utilization_percent"`
	Overspent          bool    `json:"overspent"`
}

// Derive computes spending figures. Utilization is 0 when nothing is allocated.
func Derive(b Budget) Summary {
	var spent float64
	for _, e := range b.Expenses {
		spent += e.Amount
	}
	s := Summary{
		TotalSpent: spent,
		Remaining:  b.AllocatedAmount - spent,
	}
	if b.AllocatedAmount > 0 {
		s.UtilizationPercent = spent * 100 / b.AllocatedAmount
	}
	s.Overspent = s.Remaining < 0
	return s
}

// Service maintains club budgets.
type Service struct {
	repo    *Repository
	clubs   ClubLookup
	pub     queue.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewService wires the budget service.
func NewService(repo *Repository, clubs ClubLookup, pub queue.Publisher, m *metrics.Metrics, logger *slog.Logger) *Service {
	if pub == nil {
		pub = queue.Discard{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		clubs:   clubs,
		pub:     pub,
		metrics: m,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func validAmount(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Allocate sets the club's allocated amount, creating the budget on first use.
// Admin only; a later allocation replaces the earlier one.
func (s *Service) Allocate(ctx context.Context, actor access.Identity, clubID string, amount float64) (Budget, error) {
	if err := actor.Require(access.AllocateBudget); err != nil {
		return Budget{}, err
	}
	if !validAmount(amount) {
		return Budget{}, apperr.Validation("amount must be a non-negative number")
	}
	if _, err := s.clubs.FindByID(ctx, clubID); err != nil {
		return Budget{}, err
	}

	now := s.now()
	if err := s.repo.Upsert(ctx, clubID, amount, now); err != nil {
		return Budget{}, err
	}

	s.metrics.IncAllocations()
	queue.Emit(ctx, s.pub, s.logger, queue.Activity{Type: queue.BudgetAllocated, ActorID: actor.UserID, ClubID: clubID, At: now})
	return s.repo.FindByClub(ctx, clubID)
}

// RecordExpense appends an expense. Overspending is allowed.
func (s *Service) RecordExpense(ctx context.Context, actor access.Identity, clubID string, in ExpenseInput) (Budget, error) {
	if err := actor.Require(access.RecordExpense); err != nil {
		return Budget{}, err
	}
	club, err := s.clubs.FindByID(ctx, clubID)
	if err != nil {
		return Budget{}, err
	}
	if err := actor.RequireClub(access.RecordExpense, club.CoordinatorID); err != nil {
		return Budget{}, err
	}

	in.Description = strings.TrimSpace(in.Description)
	if in.Description == "" {
		return Budget{}, apperr.Validation("description is required")
	}
	if !validAmount(in.Amount) {
		return Budget{}, apperr.Validation("amount must be a non-negative number")
	}

	now := s.now()
	date := now
	if in.Date != nil && !in.Date.IsZero() {
		date = in.Date.UTC()
	}
	e := Expense{
		ID:          uuid.NewString(),
		Description: in.Description,
		Amount:      in.Amount,
		Date:        date,
		CreatedAt:   now,
	}
	if err := s.repo.AppendExpense(ctx, clubID, e); err != nil {
		return Budget{}, err
	}

	s.metrics.ObserveExpense(in.Amount)
	queue.Emit(ctx, s.pub, s.logger, queue.Activity{Type: queue.ExpenseRecorded, ActorID: actor.UserID, ClubID: clubID, Detail: e.Description, At: now})
	return s.repo.FindByClub(ctx, clubID)
}

// Get returns one club's budget to an admin or that club's coordinator.
func (s *Service) Get(ctx context.Context, actor access.Identity, clubID string) (Budget, error) {
	if err := actor.Require(access.ViewBudget); err != nil {
		return Budget{}, err
	}
	club, err := s.clubs.FindByID(ctx, clubID)
	if err != nil {
		return Budget{}, err
	}
	if err := actor.RequireClub(access.ViewBudget, club.CoordinatorID); err != nil {
		return Budget{}, err
	}
	return s.repo.FindByClub(ctx, clubID)
}

// List returns every budget. Admin only.
func (s *Service) List(ctx context.Context, actor access.Identity) ([]Budget, error) {
	if err := actor.Require(access.ListBudgets); err != nil {
		return nil, err
	}
	return s.repo.List(ctx)
}
