package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jason-s-yu/lobbychat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventQueueRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	rdb, err := Connect(ctx, mr.Addr(), 0)
	require.NoError(t, err)
	defer rdb.Close()

	q := NewEventQueue(rdb, "")
	assert.Equal(t, DefaultQueueName, q.Name())

	ev := &models.LobbyEvent{
		LobbyID:     uuid.New(),
		EventType:   models.EventBan,
		ActorID:     uuid.New(),
		TargetID:    uuid.New(),
		Description: "banned for spam",
		Metadata:    map[string]interface{}{"reason": "spam"},
	}
	require.NoError(t, q.Record(ctx, ev))
	assert.False(t, ev.CreatedAt.IsZero())

	got, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ev.LobbyID, got.LobbyID)
	assert.Equal(t, models.EventBan, got.EventType)
	assert.Equal(t, ev.TargetID, got.TargetID)
	assert.Equal(t, "spam", got.Metadata["reason"])
}

func TestEventQueuePopRejectsGarbage(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	rdb, err := Connect(ctx, mr.Addr(), 0)
	require.NoError(t, err)
	defer rdb.Close()

	_, err = mr.Push(DefaultQueueName, "not json")
	require.NoError(t, err)

	_, err = NewEventQueue(rdb, "").Pop(ctx, time.Second)
	assert.Error(t, err)
}

func TestConnectFailsWithoutServer(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := Connect(context.Background(), addr, 0)
	assert.Error(t, err)
}
