package httpmiddleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// KeyFunc picks the bucket a request is charged to.
type KeyFunc func(c *gin.Context) string

// TokenBucket is an in-memory per-key rate limiter for a single instance.
type TokenBucket struct {
	capacity int
	rate     int
	keyFn    KeyFunc
	now      func() time.Time
	// A bucket idle this long is full again and can be forgotten.
	idle time.Duration

	mu        sync.Mutex
	state     map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	tokens int
	last   time.Time
}

// NewTokenBucket creates a limiter with capacity tokens refilled at perMinute.
// A nil keyFn charges requests to the client IP.
func NewTokenBucket(capacity, perMinute int, keyFn KeyFunc) *TokenBucket {
	if capacity <= 0 {
		capacity = perMinute
	}
	if keyFn == nil {
		keyFn = ClientIP
	}
	l := &TokenBucket{
		capacity: capacity,
		rate:     perMinute,
		keyFn:    keyFn,
		now:      time.Now,
		state:    make(map[string]*bucket),
	}
	if perMinute > 0 {
		l.idle = time.Duration(float64(capacity) / float64(perMinute) * float64(time.Minute))
	}
	return l
}

// ClientIP keys requests by remote address.
func ClientIP(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return "ip:" + ip
	}
	return "ip:unknown"
}

// GinMiddleware rejects requests over the limit with 429. A non-positive rate
// disables limiting.
func (l *TokenBucket) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.rate <= 0 {
			c.Next()
			return
		}
		if !l.allow(l.keyFn(c)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded", "code": "rate_limited"})
			return
		}
		c.Next()
	}
}

func (l *TokenBucket) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.sweep(now)
	b, ok := l.state[key]
	if !ok {
		l.state[key] = &bucket{tokens: l.capacity - 1, last: now}
		return true
	}
	refill := int(now.Sub(b.last).Minutes() * float64(l.rate))
	if refill > 0 {
		b.tokens = min(b.tokens+refill, l.capacity)
		b.last = now
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// sweep drops idle buckets, at most once per idle period.
func (l *TokenBucket) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.idle {
		return
	}
	for key, b := range l.state {
		if now.Sub(b.last) >= l.idle {
			delete(l.state, key)
		}
	}
	l.lastSweep = now
}
