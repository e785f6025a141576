package store_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clubhub/internal/store"
	"clubhub/internal/store/storetest"
)

func TestRebindPostgres(t *testing.T) {
	db := &store.DB{Dialect: store.Postgres}
	assert.Equal(t,
		"SELECT id FROM users WHERE email = $1 AND role = $2",
		db.Rebind("SELECT id FROM users WHERE email = ? AND role = ?"))
	assert.Equal(t, "SELECT 1", db.Rebind("SELECT 1"))
}

func TestRebindSQLiteUntouched(t *testing.T) {
	db := &store.DB{Dialect: store.SQLite}
	q := "SELECT id FROM users WHERE email = ?"
	assert.Equal(t, q, db.Rebind(q))
}

func TestPostgresQueriesAreRebound(t *testing.T) {
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer conn.Close()

	db := &store.DB{Client: conn, Dialect: store.Postgres}
	mock.ExpectExec("UPDATE events SET status = $1 WHERE id = $2").
		WithArgs("approved", "e1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err = db.ExecContext(context.Background(), "UPDATE events SET status = ? WHERE id = ?", "approved", "e1")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxRollsBackOnError(t *testing.T) {
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer conn.Close()

	db := &store.DB{Client: conn, Dialect: store.Postgres}
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM clubs WHERE id = $1").WithArgs("c1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	boom := errors.New("boom")
	err = db.InTx(context.Background(), func(q store.Querier) error {
		if _, err := q.ExecContext(context.Background(), "DELETE FROM clubs WHERE id = ?", "c1"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteMigrationsAndUniqueViolation(t *testing.T) {
	db := storetest.New(t)
	ctx := context.Background()
	now := time.Now().UTC()

	insert := `INSERT INTO users (id, name, email, password_hash, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, insert, "u1", "Ann", "ann@example.com", "x", "student", now, now)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, insert, "u2", "Ann Again", "ann@example.com", "x", "student", now, now)
	require.Error(t, err)
	assert.True(t, store.IsUniqueViolation(err))

	assert.False(t, store.IsUniqueViolation(errors.New("other")))
	assert.True(t, db.Healthy(ctx))
}

func TestMigrateLogsThroughSlog(t *testing.T) {
	ctx := context.Background()
	db, err := store.NewDB(ctx, "sqlite", "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	require.NoError(t, db.Migrate(ctx, logger))

	assert.Contains(t, buf.String(), "component=migrate")
	assert.Contains(t, buf.String(), "00001_init.sql")
}

func TestNewDBRejectsUnknownDriver(t *testing.T) {
	_, err := store.NewDB(context.Background(), "mysql", "dsn")
	assert.Error(t, err)
}
