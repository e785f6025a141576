package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	RequestDuration *prometheus.HistogramVec
	UsersRegistered prometheus.Counter
	ClubJoins       prometheus.Counter
	Registrations   *prometheus.CounterVec
	Moderations     *prometheus.CounterVec
	Allocations     prometheus.Counter
	Expenses        prometheus.Counter
	ExpenseAmount   prometheus.Counter
}

// New creates and registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "clubhub_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		UsersRegistered: f.NewCounter(prometheus.CounterOpts{
			Name: "clubhub_users_registered_total",
			Help: "Accounts created through self-registration.",
		}),
		ClubJoins: f.NewCounter(prometheus.CounterOpts{
			Name: "clubhub_club_joins_total",
			Help: "Successful club joins.",
		}),
		Registrations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "clubhub_event_registrations_total",
			Help: "Event registration attempts by outcome.",
		}, []string{"outcome"}),
		Moderations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "clubhub_event_moderations_total",
			Help: "Event moderation actions.",
		}, []string{"action"}),
		Allocations: f.NewCounter(prometheus.CounterOpts{
			Name: "clubhub_budget_allocations_total",
			Help: "Budget allocations, including overwrites.",
		}),
		Expenses: f.NewCounter(prometheus.CounterOpts{
			Name: "clubhub_expenses_recorded_total",
			Help: "Expense entries appended to club budgets.",
		}),
		ExpenseAmount: f.NewCounter(prometheus.CounterOpts{
			Name: "clubhub_expense_amount_total",
			Help: "Sum of recorded expense amounts.",
		}),
	}
}

func (m *Metrics) IncUsersRegistered() {
	if m != nil {
		m.UsersRegistered.Inc()
	}
}

func (m *Metrics) IncClubJoins() {
	if m != nil {
		m.ClubJoins.Inc()
	}
}

// ObserveRegistration counts a registration attempt; outcome is "ok" or an error kind.
func (m *Metrics) ObserveRegistration(outcome string) {
	if m != nil {
		m.Registrations.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncModerations(action string) {
	if m != nil {
		m.Moderations.WithLabelValues(action).Inc()
	}
}

func (m *Metrics) IncAllocations() {
	if m != nil {
		m.Allocations.Inc()
	}
}

func (m *Metrics) ObserveExpense(amount float64) {
	if m != nil {
		m.Expenses.Inc()
		m.ExpenseAmount.Add(amount)
	}
}

// GinMiddleware records request latency keyed by the matched route.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
