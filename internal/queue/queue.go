package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Activity types published after successful mutations.
const (
	ClubCreated     = "club.created"
	ClubJoined      = "club.joined"
	EventCreated    = "event.created"
	EventRegistered = "event.registered"
	EventModerated  = "event.moderated"
	BudgetAllocated = "budget.allocated"
	ExpenseRecorded = "budget.expense_recorded"
	UserRegistered  = "user.registered"
)

// Activity describes a completed domain mutation.
type Activity struct {
	Type    string    `json:"type"`
	ActorID string    `json:"actor_id,omitempty"`
	UserID  string    `json:"user_id,omitempty"`
	ClubID  string    `json:"club_id,omitempty"`
	EventID string    `json:"event_id,omitempty"`
	Detail  string    `json:"detail,omitempty"`
	At      time.Time `json:"at"`
}

// Publisher is the write side used by services.
type Publisher interface {
	Publish(ctx context.Context, act Activity) error
}

// Queue is the abstraction over different backends.
type Queue interface {
	Publisher
	Consume(ctx context.Context) (<-chan Activity, error)
}

// Emit publishes act with a short deadline detached from the request and
// logs failures instead of returning them. The mutation has already committed.
func Emit(ctx context.Context, p Publisher, logger *slog.Logger, act Activity) {
	if p == nil {
		return
	}
	if act.At.IsZero() {
		act.At = time.Now().UTC()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := p.Publish(ctx, act); err != nil && logger != nil {
		logger.Warn("publish activity", "type", act.Type, "error", err)
	}
}

// Discard drops every activity.
type Discard struct{}

func (Discard) Publish(context.Context, Activity) error { return nil }

// InMemory is a minimal channel-backed queue for dev/testing.
type InMemory struct {
	ch chan Activity
}

// NewInMemory creates a bounded in-memory queue.
func NewInMemory(size int) *InMemory {
	return &InMemory{ch: make(chan Activity, size)}
}

// Publish enqueues an activity.
func (q *InMemory) Publish(ctx context.Context, act Activity) error {
	select {
	case q.ch <- act:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume returns a channel for workers.
func (q *InMemory) Consume(ctx context.Context) (<-chan Activity, error) {
	out := make(chan Activity)
	go func() {
		defer close(out)
		for {
			select {
			case act := <-q.ch:
				select {
				case out <- act:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// RedisQueue implements a simple Redis list-backed queue.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue builds a queue using LPUSH/BRPOP semantics.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = "clubhub:activity"
	}
	return &RedisQueue{client: client, key: key}
}

// Publish enqueues an activity as JSON.
func (q *RedisQueue) Publish(ctx context.Context, act Activity) error {
	payload, err := json.Marshal(act)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, payload).Err()
}

// Consume streams activities using BRPOP. Malformed entries are skipped.
func (q *RedisQueue) Consume(ctx context.Context) (<-chan Activity, error) {
	out := make(chan Activity)
	go func() {
		defer close(out)
		for {
			res, err := q.client.BRPop(ctx, 5*time.Second, q.key).Result()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if !errors.Is(err, redis.Nil) {
					// Back off while redis is unreachable.
					select {
					case <-time.After(time.Second):
					case <-ctx.Done():
						return
					}
				}
				continue
			}
			if len(res) != 2 {
				continue
			}
			var act Activity
			if err := json.Unmarshal([]byte(res[1]), &act); err != nil {
				continue
			}
			select {
			case out <- act:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
