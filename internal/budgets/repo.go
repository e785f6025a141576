package budgets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"clubhub/internal/apperr"
	"clubhub/internal/store"
)

// Expense is one ledger entry.
type Expense struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
	Date        time.Time `json:"date"`
	CreatedAt   time.Time `json:"created_at"`
}

// Budget is the single allocation a club holds plus its expenses.
type Budget struct {
	ID              string    `json:"id"`
	ClubID          string    `json:"club_id"`
	ClubName        string    `json:"club_name,omitempty"`
	AllocatedAmount float64   `json:"allocated_amount"`
	Expenses        []Expense `json:"expenses"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Repository persists budgets and their expenses.
type Repository struct {
	db *store.DB
}

// NewRepository creates a repo.
func NewRepository(db *store.DB) *Repository {
	return &Repository{db: db}
}

const budgetSelect = `
	SELECT b.id, b.club_id, c.name, b.allocated_amount, b.created_at, b.updated_at
	FROM budgets b
	JOIN clubs c ON c.id = b.club_id`

func scanBudget(row interface{ Scan(...any) error }) (Budget, error) {
	var b Budget
	err := row.Scan(&b.ID, &b.ClubID, &b.ClubName, &b.AllocatedAmount, &b.CreatedAt, &b.UpdatedAt)
	b.Expenses = []Expense{}
	return b, err
}

// Upsert creates the club's budget or overwrites its allocated amount.
func (r *Repository) Upsert(ctx context.Context, clubID string, amount float64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO budgets (id, club_id, allocated_amount, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (club_id) DO UPDATE
		SET allocated_amount = excluded.allocated_amount, updated_at = excluded.updated_at
	`, uuid.NewString(), clubID, amount, at, at)
	if err != nil {
		return fmt.Errorf("upsert budget: %w", err)
	}
	return nil
}

// FindByClub returns the club's budget with expenses in date order.
func (r *Repository) FindByClub(ctx context.Context, clubID string) (Budget, error) {
	b, err := scanBudget(r.db.QueryRowContext(ctx, budgetSelect+` WHERE b.club_id = ?`, clubID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Budget{}, apperr.NotFound("no budget allocated for this club")
		}
		return Budget{}, fmt.Errorf("find budget: %w", err)
	}
	byBudget, err := r.expenses(ctx, `WHERE budget_id = ?`, b.ID)
	if err != nil {
		return Budget{}, err
	}
	if exp := byBudget[b.ID]; exp != nil {
		b.Expenses = exp
	}
	return b, nil
}

// List returns all budgets ordered by club name.
func (r *Repository) List(ctx context.Context) ([]Budget, error) {
	rows, err := r.db.QueryContext(ctx, budgetSelect+` ORDER BY c.name`)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	var res []Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		res = append(res, b)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	byBudget, err := r.expenses(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range res {
		if exp := byBudget[res[i].ID]; exp != nil {
			res[i].Expenses = exp
		}
	}
	return res, nil
}

func (r *Repository) expenses(ctx context.Context, where string, args ...any) (map[string][]Expense, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, budget_id, description, amount, spent_on, created_at
		FROM budget_expenses `+where+`
		ORDER BY spent_on, created_at, id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	out := map[string][]Expense{}
	for rows.Next() {
		var (
			e        Expense
			budgetID string
		)
		if err := rows.Scan(&e.ID, &budgetID, &e.Description, &e.Amount, &e.Date, &e.CreatedAt); err != nil {
			return nil, err
		}
		out[budgetID] = append(out[budgetID], e)
	}
	return out, rows.Err()
}

// AppendExpense adds an entry to the club's budget.
func (r *Repository) AppendExpense(ctx context.Context, clubID string, e Expense) error {
	var budgetID string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM budgets WHERE club_id = ?`, clubID).Scan(&budgetID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("no budget allocated for this club")
		}
		return fmt.Errorf("find budget: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO budget_expenses (id, budget_id, description, amount, spent_on, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ID, budgetID, e.Description, e.Amount, e.Date, e.CreatedAt); err != nil {
		return fmt.Errorf("append expense: %w", err)
	}
	return nil
}
