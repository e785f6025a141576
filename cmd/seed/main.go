package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"time"

	"clubhub/internal/access"
	"clubhub/internal/apperr"
	"clubhub/internal/auth"
	"clubhub/internal/budgets"
	"clubhub/internal/clubs"
	"clubhub/internal/config"
	"clubhub/internal/events"
	"clubhub/internal/logging"
	"clubhub/internal/queue"
	"clubhub/internal/store"
	"clubhub/internal/users"
)

// Seed loads a small demo dataset: one admin, one coordinator, three
// students, two clubs with events and a budget.
func main() {
	adminPassword := flag.String("admin-password", "admin-change-me", "password for the seeded admin account")
	userPassword := flag.String("user-password", "password123", "password for the other seeded accounts")
	flag.Parse()

	cfg := config.Load()
	logger := logging.New(os.Stdout, cfg.Production(), cfg.LogLevel)

	if err := seed(context.Background(), cfg, logger, *adminPassword, *userPassword); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			logger.Info("database already seeded", "detail", apperr.Message(err))
			return
		}
		logger.Error("seed failed", "error", err)
		os.Exit(1)
	}
	logger.Info("seed complete")
}

func seed(ctx context.Context, cfg config.App, logger *slog.Logger, adminPassword, userPassword string) error {
	db, err := store.NewDB(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(ctx, logger); err != nil {
		return err
	}

	tokens := auth.NewTokens(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
	userSvc := users.NewService(users.NewRepository(db), auth.NewHasher(cfg.BcryptCost), tokens, queue.Discard{}, nil, logger)
	clubSvc := clubs.NewService(clubs.NewRepository(db), userSvc, nil, queue.Discard{}, nil, logger)
	eventSvc := events.NewService(events.NewRepository(db), clubSvc, userSvc, queue.Discard{}, nil, logger)
	budgetSvc := budgets.NewService(budgets.NewRepository(db), clubSvc, queue.Discard{}, nil, logger)

	admin, err := userSvc.Create(ctx, users.RegisterInput{Name: "Admin", Email: "admin@clubhub.local", Password: adminPassword}, access.RoleAdmin)
	if err != nil {
		return err
	}
	asAdmin := access.Identity{UserID: admin.ID, Role: access.RoleAdmin}

	alice, err := userSvc.Create(ctx, users.RegisterInput{Name: "Alice", Email: "alice@example.com", Password: userPassword}, access.RoleCoordinator)
	if err != nil {
		return err
	}
	asAlice := access.Identity{UserID: alice.ID, Role: access.RoleCoordinator}

	var students []users.User
	for _, in := range []users.RegisterInput{
		{Name: "Bob", Email: "bob@example.com", Password: userPassword},
		{Name: "Charlie", Email: "charlie@example.com", Password: userPassword, StudentID: "STU001"},
		{Name: "Diana", Email: "diana@example.com", Password: userPassword, StudentID: "STU002"},
	} {
		u, err := userSvc.Register(ctx, in)
		if err != nil {
			return err
		}
		students = append(students, u)
	}
	logger.Info("users seeded", "admin", admin.Email, "coordinator", alice.Email, "students", len(students))

	debate, err := clubSvc.Create(ctx, asAdmin, clubs.CreateInput{
		Name:          "Debating Society",
		Description:   "A club for passionate debaters and public speakers.",
		CoordinatorID: alice.ID,
	})
	if err != nil {
		return err
	}
	coding, err := clubSvc.Create(ctx, asAdmin, clubs.CreateInput{
		Name:          "Coding Club",
		Description:   "Weekly hack nights, contests and workshops.",
		CoordinatorID: alice.ID,
	})
	if err != nil {
		return err
	}
	for _, s := range students[:2] {
		if _, err := clubSvc.Join(ctx, access.Identity{UserID: s.ID, Role: s.Role}, debate.ID, s.ID); err != nil {
			return err
		}
	}
	if _, err := clubSvc.Join(ctx, access.Identity{UserID: students[2].ID, Role: students[2].Role}, coding.ID, students[2].ID); err != nil {
		return err
	}

	limit := 50
	now := time.Now().UTC()
	drafts := []struct {
		in      events.CreateInput
		approve bool
	}{
		{events.CreateInput{ClubID: debate.ID, Title: "Inter-college Debate", Description: "Annual debate championship.", Date: now.AddDate(0, 0, 14), Location: "Main Auditorium", RegistrationLimit: &limit}, true},
		{events.CreateInput{ClubID: coding.ID, Title: "Hackathon 2026", Description: "24-hour coding marathon.", Date: now.AddDate(0, 0, 30), Location: "Computer Lab"}, true},
		{events.CreateInput{ClubID: coding.ID, Title: "Intro to Go", Description: "Beginner workshop.", Date: now.AddDate(0, 0, 7), Location: "Room 101"}, false},
	}
	for _, d := range drafts {
		e, err := eventSvc.Create(ctx, asAlice, d.in)
		if err != nil {
			return err
		}
		if d.approve {
			if _, err := eventSvc.SetStatus(ctx, asAdmin, e.ID, "approve"); err != nil {
				return err
			}
		}
	}

	if _, err := budgetSvc.Allocate(ctx, asAdmin, debate.ID, 50000); err != nil {
		return err
	}
	if _, err := budgetSvc.RecordExpense(ctx, asAlice, debate.ID, budgets.ExpenseInput{Description: "Supplies", Amount: 1200}); err != nil {
		return err
	}
	logger.Info("clubs, events and budgets seeded", "clubs", 2, "events", len(drafts))
	return nil
}
