package store

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSettings selects the server and the key namespace shared by the
// activity queue and feed.
type RedisSettings struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Redis is the client for the activity queue and feed, plus the namespace
// their keys live under.
type Redis struct {
	Client *redis.Client
	prefix string
}

// NewRedis builds a client with short timeouts. Blocking reads such as the
// queue's BRPOP extend the read deadline by their own timeout.
func NewRedis(st RedisSettings) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         st.Addr,
		Password:     st.Password,
		DB:           st.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	prefix := strings.TrimSuffix(strings.TrimSpace(st.Prefix), ":")
	if prefix == "" {
		prefix = "clubhub"
	}
	return &Redis{Client: client, prefix: prefix}
}

// Key namespaces name, e.g. Key("activity") is "clubhub:activity".
func (r *Redis) Key(name string) string {
	return r.prefix + ":" + name
}

// QueueKey is the list the activity queue pushes to.
func (r *Redis) QueueKey() string { return r.Key("activity") }

// FeedKey is the capped list of recent activity.
func (r *Redis) FeedKey() string { return r.Key("feed") }

// Healthy pings the server.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}
