package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/chirper/internal/model"
)

func TestRouter_DeliversToEveryConsumer(t *testing.T) {
	r := NewRouter()
	var got []string
	r.Handle("a", HandlerFunc(func(_ context.Context, env Envelope) error {
		got = append(got, "a:"+string(env.Type))
		return nil
	}), TweetCreated, TweetDeleted)
	r.Handle("b", HandlerFunc(func(_ context.Context, env Envelope) error {
		got = append(got, "b:"+string(env.Type))
		return errors.New("boom")
	}), TweetCreated)

	err := r.Deliver(context.Background(), Envelope{Type: TweetCreated})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b: boom")
	assert.Equal(t, []string{"a:tweet.created", "b:tweet.created"}, got)

	assert.NoError(t, r.Deliver(context.Background(), Envelope{Type: TweetDeleted}))
	assert.NoError(t, r.Deliver(context.Background(), Envelope{Type: UserFollowed}), "unrouted types are ignored")
}

func TestEnvelope_FromOutbox(t *testing.T) {
	now := time.Now()
	env := FromOutbox(model.OutboxEvent{
		ID:          "evt-1",
		EventType:   string(UserFollowed),
		AggregateID: 3,
		Payload:     []byte(`{"follower_id":3,"followed_id":4}`),
		CreatedAt:   now,
	})
	assert.Equal(t, UserFollowed, env.Type)
	assert.Equal(t, now, env.OccurredAt)

	var p FollowPayload
	require.NoError(t, env.Decode(&p))
	assert.Equal(t, FollowPayload{FollowerID: 3, FollowedID: 4}, p)
	assert.Equal(t, "chirper.events.user.followed", Subject("chirper.events", env.Type))
}

type recordingSink struct {
	mu       sync.Mutex
	seen     map[uint][]string
	failures map[string]int
}

func (s *recordingSink) Deliver(_ context.Context, env Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures[env.ID] > 0 {
		s.failures[env.ID]--
		return errors.New("transient")
	}
	s.seen[env.AggregateID] = append(s.seen[env.AggregateID], env.ID)
	return nil
}

func TestDispatcher_PreservesOrderPerAggregate(t *testing.T) {
	sink := &recordingSink{seen: map[uint][]string{}, failures: map[string]int{"a1": 2}}
	d := NewDispatcher(sink, 3, 16, 5)
	d.backoff = time.Millisecond
	stop := d.Start()

	d.Enqueue(Envelope{ID: "a1", AggregateID: 1})
	d.Enqueue(Envelope{ID: "b1", AggregateID: 2})
	d.Enqueue(Envelope{ID: "a2", AggregateID: 1})
	d.Enqueue(Envelope{ID: "a3", AggregateID: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, stop(ctx))

	assert.Equal(t, []string{"a1", "a2", "a3"}, sink.seen[1], "retried event must not be overtaken")
	assert.Equal(t, []string{"b1"}, sink.seen[2])
	assert.Zero(t, d.QueueLen())
}
