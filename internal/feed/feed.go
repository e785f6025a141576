// Package feed keeps a bounded list of recent activity for the admin dashboard.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"clubhub/internal/queue"
)

// Feed stores the most recent activities, newest first.
type Feed interface {
	Append(ctx context.Context, act queue.Activity) error
	Recent(ctx context.Context, n int) ([]queue.Activity, error)
}

// RedisFeed keeps the feed in a capped Redis list.
type RedisFeed struct {
	client *redis.Client
	key    string
	size   int64
}

// NewRedisFeed creates a feed capped at size entries.
func NewRedisFeed(client *redis.Client, key string, size int) *RedisFeed {
	if key == "" {
		key = "clubhub:feed"
	}
	if size <= 0 {
		size = 200
	}
	return &RedisFeed{client: client, key: key, size: int64(size)}
}

func (f *RedisFeed) Append(ctx context.Context, act queue.Activity) error {
	payload, err := json.Marshal(act)
	if err != nil {
		return err
	}
	_, err = f.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LPush(ctx, f.key, payload)
		p.LTrim(ctx, f.key, 0, f.size-1)
		return nil
	})
	return err
}

func (f *RedisFeed) Recent(ctx context.Context, n int) ([]queue.Activity, error) {
	if n <= 0 || int64(n) > f.size {
		n = int(f.size)
	}
	raw, err := f.client.LRange(ctx, f.key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}
	out := make([]queue.Activity, 0, len(raw))
	for _, entry := range raw {
		var act queue.Activity
		if err := json.Unmarshal([]byte(entry), &act); err != nil {
			continue
		}
		out = append(out, act)
	}
	return out, nil
}

// Memory is an in-process feed used with the memory queue backend.
type Memory struct {
	mu      sync.Mutex
	size    int
	entries []queue.Activity
}

// NewMemory creates an in-process feed capped at size entries.
func NewMemory(size int) *Memory {
	if size <= 0 {
		size = 200
	}
	return &Memory{size: size}
}

func (m *Memory) Append(_ context.Context, act queue.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append([]queue.Activity{act}, m.entries...)
	if len(m.entries) > m.size {
		m.entries = m.entries[:m.size]
	}
	return nil
}

func (m *Memory) Recent(_ context.Context, n int) ([]queue.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n <= 0 || n > len(m.entries) {
		n = len(m.entries)
	}
	out := make([]queue.Activity, n)
	copy(out, m.entries[:n])
	return out, nil
}

// Run drains activities from q into f until ctx is cancelled or q closes.
func Run(ctx context.Context, q queue.Queue, f Feed, logger *slog.Logger) error {
	msgs, err := q.Consume(ctx)
	if err != nil {
		return fmt.Errorf("queue consume init: %w", err)
	}
	for act := range msgs {
		if err := f.Append(ctx, act); err != nil {
			logger.ErrorContext(ctx, "append activity failed", "type", act.Type, "error", err)
			continue
		}
		logger.DebugContext(ctx, "activity recorded", "type", act.Type, "actor", act.ActorID)
	}
	return nil
}
