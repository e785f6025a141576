// Package httpapi exposes the services over a JSON HTTP API.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"clubhub/internal/auth"
	"clubhub/internal/budgets"
	"clubhub/internal/clubs"
	"clubhub/internal/events"
	"clubhub/internal/feed"
	"clubhub/internal/httpmiddleware"
	"clubhub/internal/logging"
	"clubhub/internal/metrics"
	"clubhub/internal/stats"
	"clubhub/internal/users"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// Deps is everything the router needs.
type Deps struct {
	Logger  *slog.Logger
	Tokens  *auth.Tokens
	Users   *users.Service
	Clubs   *clubs.Service
	Events  *events.Service
	Budgets *budgets.Service
	Stats   *stats.Service
	Feed    feed.Feed

	Metrics    *metrics.Metrics
	Gatherer   prometheus.Gatherer
	Health     map[string]HealthCheck
	RatePerMin int
	Origins    []string
	Production bool
}

type handler struct {
	Deps
}

// NewRouter builds the gin engine with middleware and all routes.
func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	h := &handler{Deps: d}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.Requests(d.Logger, "/healthz", "/metrics"))
	r.Use(d.Metrics.GinMiddleware())
	r.Use(cors.New(corsConfig(d.Origins)))
	r.Use(httpmiddleware.SecurityHeaders(d.Production))
	r.Use(httpmiddleware.NewTokenBucket(d.RatePerMin, d.RatePerMin, nil).GinMiddleware())

	r.GET("/healthz", h.health)
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	pub := r.Group("/v1")
	pub.POST("/auth/register", h.register)
	pub.POST("/auth/login", h.login)
	pub.POST("/auth/refresh", h.refresh)
	pub.GET("/clubs", h.listClubs)
	pub.GET("/clubs/:id", h.getClub)
	pub.GET("/events", h.listEvents)
	pub.GET("/events/:id", h.getEvent)

	authed := r.Group("/v1", auth.RequireBearer(d.Tokens))
	authed.GET("/me", h.me)
	authed.GET("/me/events", h.myEvents)
	authed.GET("/users/:id", h.getUser)

	authed.POST("/clubs", h.createClub)
	authed.PUT("/clubs/:id", h.updateClub)
	authed.DELETE("/clubs/:id", h.deleteClub)
	authed.POST("/clubs/:id/join", h.joinClub)
	authed.POST("/clubs/:id/logo", h.clubLogo)

	authed.POST("/events", h.createEvent)
	authed.PUT("/events/:id", h.updateEvent)
	authed.DELETE("/events/:id", h.deleteEvent)
	authed.PATCH("/events/:id", h.moderateEvent)
	authed.POST("/events/:id/register", h.registerEvent)

	authed.GET("/budgets", h.listBudgets)
	authed.POST("/budgets", h.allocateBudget)
	authed.GET("/budgets/:clubId", h.getBudget)
	authed.POST("/budgets/:clubId/expenses", h.recordExpense)

	admin := authed.Group("/admin")
	admin.GET("/users", h.adminUsers)
	admin.DELETE("/users/:id", h.adminDeleteUser)
	admin.PUT("/users/:id/role", h.adminSetRole)
	admin.GET("/events", h.adminEvents)
	admin.GET("/stats", h.adminStats)
	admin.GET("/activity", h.adminActivity)

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: len(origins) > 0,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func (h *handler) health(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, check := range h.Health {
		ok := check(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}
