package lobby

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/lobbychat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypingIsNotEchoedToOriginator(t *testing.T) {
	alice := models.User{ID: uuid.New(), Username: "alice"}
	ev := NewUserEvent(KindTypingStart, uuid.New(), alice)

	_, ok := ev.frameFor(alice.ID)
	assert.False(t, ok)

	f, ok := ev.frameFor(uuid.New())
	require.True(t, ok)
	assert.Equal(t, "typing_start", f["type"])
	assert.Equal(t, alice.ID, f["user_id"])
	assert.Equal(t, "alice", f["username"])
}

func TestPresenceJoinIsSentToEveryone(t *testing.T) {
	alice := models.User{ID: uuid.New(), Username: "alice", IsPremium: true}
	ev := NewUserEvent(KindPresenceJoin, uuid.New(), alice)

	f, ok := ev.frameFor(alice.ID)
	require.True(t, ok)
	assert.Equal(t, "presence_join", f["type"])
	assert.Equal(t, true, f["is_premium"])
}

func TestModerationFrames(t *testing.T) {
	bob := models.User{ID: uuid.New(), Username: "bob"}
	ban := NewModerationEvent(KindModerationBan, uuid.New(), bob, "spam")

	assert.True(t, ban.targets(bob.ID))
	assert.False(t, ban.targets(uuid.New()))

	self, ok := ban.frameFor(bob.ID)
	require.True(t, ok)
	assert.Equal(t, Frame{
		"type":    "moderation_ban",
		"reason":  "spam",
		"message": "You have been banned from the lobby",
	}, self)

	other, ok := ban.frameFor(uuid.New())
	require.True(t, ok)
	assert.Equal(t, Frame{
		"type":            "moderation_ban",
		"target_id":       bob.ID,
		"target_username": "bob",
		"reason":          "spam",
	}, other)

	kick := NewModerationEvent(KindModerationKick, uuid.New(), bob, "")
	self, _ = kick.frameFor(bob.ID)
	assert.Equal(t, "You have been kicked from the lobby", self["message"])

	assert.False(t, NewSystemStatusEvent(uuid.New(), "closed", "Lobby closed").targets(bob.ID))
}

func TestChatFrameShape(t *testing.T) {
	sender := models.User{ID: uuid.New(), Username: "bob"}
	msg := &models.Message{ID: uuid.New(), Content: "Hello", CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
	ev := NewChatEvent(uuid.New(), msg, sender)

	f, ok := ev.frameFor(sender.ID)
	require.True(t, ok, "senders see their own chat messages")

	data, err := json.Marshal(f)
	require.NoError(t, err)
	var decoded struct {
		Type    string `json:"type"`
		Message struct {
			MessageID string `json:"message_id"`
			Content   string `json:"content"`
			Sender    struct {
				ID        string `json:"id"`
				Username  string `json:"username"`
				IsPremium bool   `json:"is_premium"`
			} `json:"sender"`
			CreatedAt string `json:"created_at"`
		} `json:"message"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "chat_message", decoded.Type)
	assert.Equal(t, msg.ID.String(), decoded.Message.MessageID)
	assert.Equal(t, "Hello", decoded.Message.Content)
	assert.Equal(t, sender.ID.String(), decoded.Message.Sender.ID)
	assert.Equal(t, "2024-01-02T03:04:05Z", decoded.Message.CreatedAt)
}

func TestEventSurvivesJSON(t *testing.T) {
	bob := models.User{ID: uuid.New(), Username: "bob"}
	ev := NewModerationEvent(KindModerationKick, uuid.New(), bob, "flood")

	data, err := json.Marshal(ev)
	require.NoError(t, err)
	var back Event
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, *ev, back)
	assert.True(t, back.Kind.Valid())
	assert.False(t, EventKind("bogus").Valid())
}
