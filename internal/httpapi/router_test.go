package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"clubhub/internal/access"
	"clubhub/internal/auth"
	"clubhub/internal/budgets"
	"clubhub/internal/clubs"
	"clubhub/internal/events"
	"clubhub/internal/feed"
	"clubhub/internal/metrics"
	"clubhub/internal/queue"
	"clubhub/internal/stats"
	"clubhub/internal/store/storetest"
	"clubhub/internal/users"
)

// feedPublisher appends straight into the feed so tests need no worker.
type feedPublisher struct{ f feed.Feed }

func (p feedPublisher) Publish(ctx context.Context, act queue.Activity) error {
	return p.f.Append(ctx, act)
}

type testAPI struct {
	t      *testing.T
	router *gin.Engine
	tokens *auth.Tokens
	users  *users.Service
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := storetest.New(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	activity := feed.NewMemory(100)
	pub := feedPublisher{f: activity}
	tokens := auth.NewTokens("clubhub", "test-secret", time.Hour, 24*time.Hour)

	userSvc := users.NewService(users.NewRepository(db), auth.NewHasher(bcrypt.MinCost), tokens, pub, m, logger)
	clubSvc := clubs.NewService(clubs.NewRepository(db), userSvc, nil, pub, m, logger)
	eventSvc := events.NewService(events.NewRepository(db), clubSvc, userSvc, pub, m, logger)
	budgetSvc := budgets.NewService(budgets.NewRepository(db), clubSvc, pub, m, logger)

	router := NewRouter(Deps{
		Logger:   logger,
		Tokens:   tokens,
		Users:    userSvc,
		Clubs:    clubSvc,
		Events:   eventSvc,
		Budgets:  budgetSvc,
		Stats:    stats.NewService(db),
		Feed:     activity,
		Metrics:  m,
		Gatherer: reg,
		Health:   map[string]HealthCheck{"db": db.Healthy},
	})
	return &testAPI{t: t, router: router, tokens: tokens, users: userSvc}
}

func (a *testAPI) account(email string, role access.Role) (users.User, string) {
	a.t.Helper()
	u, err := a.users.Create(context.Background(), users.RegisterInput{Name: email, Email: email, Password: "longenough"}, role)
	require.NoError(a.t, err)
	pair, err := a.tokens.Issue(u.ID, u.Role)
	require.NoError(a.t, err)
	return u, pair.AccessToken
}

func (a *testAPI) do(method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	a.t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	out := map[string]any{}
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func TestAuthFlow(t *testing.T) {
	api := newTestAPI(t)

	w, body := api.do(http.MethodPost, "/v1/auth/register", "", map[string]any{
		"name": "Ana", "email": "Ana@Uni.edu", "password": "longenough",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "ana@uni.edu", body["email"])
	assert.NotContains(t, body, "password_hash")

	w, body = api.do(http.MethodPost, "/v1/auth/register", "", map[string]any{
		"name": "Ana", "email": "ana@uni.edu", "password": "longenough",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "conflict", body["code"])

	w, body = api.do(http.MethodPost, "/v1/auth/login", "", map[string]any{"email": "ana@uni.edu", "password": "nope-nope"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "invalid credentials", body["error"])

	w, body = api.do(http.MethodPost, "/v1/auth/login", "", map[string]any{"email": "ana@uni.edu", "password": "longenough"})
	require.Equal(t, http.StatusOK, w.Code)
	tokens := body["tokens"].(map[string]any)
	accessTok := tokens["access_token"].(string)

	w, body = api.do(http.MethodGet, "/v1/me", accessTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "student", body["role"])

	w, _ = api.do(http.MethodPost, "/v1/auth/refresh", "", map[string]any{"refresh_token": tokens["refresh_token"]})
	assert.Equal(t, http.StatusOK, w.Code)

	w, body = api.do(http.MethodGet, "/v1/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthenticated", body["code"])

	w, body = api.do(http.MethodPost, "/v1/auth/login", "", map[string]any{"email": "ana@uni.edu"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", body["code"])
}

func TestClubEventBudgetFlow(t *testing.T) {
	api := newTestAPI(t)
	_, adminTok := api.account("admin@uni.edu", access.RoleAdmin)
	coord, coordTok := api.account("coord@uni.edu", access.RoleCoordinator)
	_, s1Tok := api.account("s1@uni.edu", access.RoleStudent)
	s2, s2Tok := api.account("s2@uni.edu", access.RoleStudent)

	// Clubs.
	clubReq := map[string]any{"name": "Robotics", "description": "Bots", "coordinator_id": coord.ID}
	w, _ := api.do(http.MethodPost, "/v1/clubs", s1Tok, clubReq)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, body := api.do(http.MethodPost, "/v1/clubs", adminTok, clubReq)
	require.Equal(t, http.StatusCreated, w.Code)
	clubID := body["id"].(string)

	w, body = api.do(http.MethodPost, "/v1/clubs/"+clubID+"/join", s1Tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, body["member_count"])

	w, body = api.do(http.MethodPost, "/v1/clubs/"+clubID+"/join", s1Tok, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "already a member of this club", body["error"])

	w, _ = api.do(http.MethodPost, "/v1/clubs/"+clubID+"/join", s1Tok, map[string]any{"user_id": s2.ID})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = api.do(http.MethodPost, "/v1/clubs/missing/join", s1Tok, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, body = api.do(http.MethodPost, "/v1/clubs/"+clubID+"/logo", coordTok, map[string]any{"content_type": "image/png"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "unavailable", body["code"])

	// Events.
	w, body = api.do(http.MethodPost, "/v1/events", coordTok, map[string]any{
		"club_id":            clubID,
		"title":              "Build night",
		"description":        "Solder things",
		"date":               time.Now().Add(72 * time.Hour).UTC().Format(time.RFC3339),
		"location":           "Lab 3",
		"registration_limit": 1,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	eventID := body["id"].(string)
	assert.Equal(t, "pending", body["status"])

	w, body = api.do(http.MethodPost, "/v1/events/"+eventID+"/register", s1Tok, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "invalid_state", body["code"])

	w, _ = api.do(http.MethodPatch, "/v1/events/"+eventID, coordTok, map[string]any{"action": "approve"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, body = api.do(http.MethodPatch, "/v1/events/"+eventID, adminTok, map[string]any{"action": "publish"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, body = api.do(http.MethodPatch, "/v1/events/"+eventID, adminTok, map[string]any{"action": "approve"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "approved", body["status"])

	w, body = api.do(http.MethodPost, "/v1/events/"+eventID+"/register", s1Tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["registrants"], 1)

	w, body = api.do(http.MethodPost, "/v1/events/"+eventID+"/register", s1Tok, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "conflict", body["code"])

	w, body = api.do(http.MethodPost, "/v1/events/"+eventID+"/register", s2Tok, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "capacity_exceeded", body["code"])

	w, body = api.do(http.MethodGet, "/v1/events", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["events"], 1)

	w, body = api.do(http.MethodGet, "/v1/me/events", s1Tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["events"], 1)

	// Budgets.
	w, _ = api.do(http.MethodPost, "/v1/budgets", coordTok, map[string]any{"club_id": clubID, "amount": 50000})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = api.do(http.MethodPost, "/v1/budgets", adminTok, map[string]any{"club_id": clubID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = api.do(http.MethodPost, "/v1/budgets", adminTok, map[string]any{"club_id": clubID, "amount": 50000})
	require.Equal(t, http.StatusOK, w.Code)

	w, body = api.do(http.MethodPost, "/v1/budgets/"+clubID+"/expenses", coordTok, map[string]any{"description": "Supplies", "amount": 1200})
	require.Equal(t, http.StatusCreated, w.Code)
	summary := body["summary"].(map[string]any)
	assert.EqualValues(t, 1200, summary["total_spent"])
	assert.EqualValues(t, 48800, summary["remaining"])
	assert.EqualValues(t, 2.4, summary["utilization_percent"])

	w, body = api.do(http.MethodGet, "/v1/budgets", adminTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["budgets"], 1)

	// Admin views.
	w, body = api.do(http.MethodGet, "/v1/admin/stats", adminTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 4, body["total_users"])
	assert.EqualValues(t, 1, body["approved_events"])

	w, _ = api.do(http.MethodGet, "/v1/admin/stats", coordTok, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, body = api.do(http.MethodGet, "/v1/admin/activity?limit=3", adminTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	acts := body["activity"].([]any)
	require.Len(t, acts, 3)
	assert.Equal(t, queue.ExpenseRecorded, acts[0].(map[string]any)["type"])
}

func TestHealthAndMetrics(t *testing.T) {
	api := newTestAPI(t)

	w, body := api.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["db"])

	api.do(http.MethodGet, "/v1/clubs", "", nil)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "clubhub_http_request_duration_seconds")
}
