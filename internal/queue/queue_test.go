package queue

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	msgs, err := q.Consume(ctx)
	require.NoError(t, err)

	act := Activity{Type: ClubJoined, UserID: "u1", ClubID: "c1", At: time.Now().UTC()}
	require.NoError(t, q.Publish(ctx, act))

	select {
	case got := <-msgs:
		assert.Equal(t, act, got)
	case <-time.After(time.Second):
		t.Fatal("activity not delivered")
	}
}

func TestInMemoryPublishHonoursContext(t *testing.T) {
	q := NewInMemory(1)
	require.NoError(t, q.Publish(context.Background(), Activity{Type: ClubCreated}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, q.Publish(ctx, Activity{Type: ClubCreated}), context.Canceled)
}

func TestConsumeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	msgs, err := NewInMemory(1).Consume(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-msgs:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, Activity) error { return errors.New("redis down") }

func TestEmitStampsAndSwallowsErrors(t *testing.T) {
	q := NewInMemory(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A cancelled request context does not stop the publish.
	Emit(ctx, q, nil, Activity{Type: ClubJoined})
	got := <-q.ch
	assert.False(t, got.At.IsZero())

	var buf bytes.Buffer
	Emit(context.Background(), failingPublisher{}, slog.New(slog.NewTextHandler(&buf, nil)), Activity{Type: ClubJoined})
	assert.Contains(t, buf.String(), "redis down")

	Emit(context.Background(), nil, nil, Activity{Type: ClubJoined})
}
