package messaging

import (
	"context"
	"testing"
	"time"

	"gigradar/services/gigradar/internal/models"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewEventID_IsSortable(t *testing.T) {
	now := time.Now()
	a := NewEventID(now)
	b := NewEventID(now)
	require.Less(t, a, b)

	id, err := ulid.Parse(a)
	require.NoError(t, err)
	require.Equal(t, ulid.Timestamp(now), id.Time())
}

func TestLocalBus_DeliversToSubscribers(t *testing.T) {
	bus := NewLocalBus(zap.NewNop())
	defer bus.Close()

	got := make(chan models.ThreadApprovedEvent, 1)
	unsubscribe, err := bus.SubscribeThreadApproved(func(_ context.Context, e models.ThreadApprovedEvent) {
		got <- e
	})
	require.NoError(t, err)

	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	event := NewThreadApproved(models.ForumThread{Link: "https://f.example/threads/foo.1/", Title: "Foo"}, at)
	require.NoError(t, bus.PublishThreadApproved(context.Background(), event))

	select {
	case e := <-got:
		require.Equal(t, event, e)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}

	require.NoError(t, unsubscribe())
	require.NoError(t, bus.PublishThreadApproved(context.Background(), event))
	select {
	case <-got:
		t.Fatal("delivered after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}
