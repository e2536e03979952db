// internal/lobby/events.go
package lobby

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/lobbychat/internal/models"
)

// EventKind names an event fanned out to a lobby's connections.
type EventKind string

const (
	KindChatMessage    EventKind = "chat_message"
	KindPresenceJoin   EventKind = "presence_join"
	KindPresenceLeave  EventKind = "presence_leave"
	KindTypingStart    EventKind = "typing_start"
	KindTypingStop     EventKind = "typing_stop"
	KindModerationKick EventKind = "moderation_kick"
	KindModerationBan  EventKind = "moderation_ban"
	KindSystemStatus   EventKind = "system_status"
)

// Valid reports whether k is one of the known kinds.
func (k EventKind) Valid() bool {
	switch k {
	case KindChatMessage, KindPresenceJoin, KindPresenceLeave, KindTypingStart, KindTypingStop,
		KindModerationKick, KindModerationBan, KindSystemStatus:
		return true
	}
	return false
}

// ChatMessage is the payload of a chat_message event.
type ChatMessage struct {
	MessageID uuid.UUID   `json:"message_id"`
	Content   string      `json:"content"`
	Sender    models.User `json:"sender"`
	CreatedAt time.Time   `json:"created_at"`
}

// Event is what travels through a Hub. It is plain data so the Redis and NATS
// hubs can carry it between processes.
type Event struct {
	Kind    EventKind `json:"kind"`
	LobbyID uuid.UUID `json:"lobby_id"`

	// User is the subject of presence and typing events.
	User *models.User `json:"user,omitempty"`
	// Message is set for chat_message.
	Message *ChatMessage `json:"message,omitempty"`

	// Moderation target.
	TargetID       uuid.UUID `json:"target_id,omitempty"`
	TargetUsername string    `json:"target_username,omitempty"`
	Reason         string    `json:"reason,omitempty"`

	// system_status fields.
	Status string `json:"status,omitempty"`
	Text   string `json:"text,omitempty"`
}

func NewChatEvent(lobbyID uuid.UUID, msg *models.Message, sender models.User) *Event {
	return &Event{
		Kind:    KindChatMessage,
		LobbyID: lobbyID,
		Message: &ChatMessage{
			MessageID: msg.ID,
			Content:   msg.Content,
			Sender:    sender,
			CreatedAt: msg.CreatedAt,
		},
	}
}

// NewUserEvent builds presence and typing events.
func NewUserEvent(kind EventKind, lobbyID uuid.UUID, user models.User) *Event {
	return &Event{Kind: kind, LobbyID: lobbyID, User: &user}
}

func NewModerationEvent(kind EventKind, lobbyID uuid.UUID, target models.User, reason string) *Event {
	return &Event{
		Kind:           kind,
		LobbyID:        lobbyID,
		TargetID:       target.ID,
		TargetUsername: target.Username,
		Reason:         reason,
	}
}

func NewSystemStatusEvent(lobbyID uuid.UUID, status, text string) *Event {
	return &Event{Kind: KindSystemStatus, LobbyID: lobbyID, Status: status, Text: text}
}

// Frame is a JSON object written to a client.
type Frame map[string]interface{}

func errorFrame(msg string) Frame {
	return Frame{"type": "error", "message": msg}
}

func userFrame(user models.User) Frame {
	return Frame{"id": user.ID, "username": user.Username, "is_premium": user.IsPremium}
}

func presenceListFrame(users []models.User) Frame {
	list := make([]Frame, 0, len(users))
	for _, u := range users {
		list = append(list, userFrame(u))
	}
	return Frame{"type": "presence_list", "users": list}
}

// targets reports whether a moderation event is aimed at userID.
func (ev *Event) targets(userID uuid.UUID) bool {
	return (ev.Kind == KindModerationKick || ev.Kind == KindModerationBan) && ev.TargetID == userID
}

// frameFor renders ev as seen by viewer. ok is false when viewer must not
// receive it at all.
func (ev *Event) frameFor(viewer uuid.UUID) (f Frame, ok bool) {
	switch ev.Kind {
	case KindChatMessage:
		if ev.Message == nil {
			return nil, false
		}
		return Frame{"type": string(ev.Kind), "message": ev.Message}, true

	case KindPresenceJoin:
		if ev.User == nil {
			return nil, false
		}
		return Frame{
			"type":       string(ev.Kind),
			"user_id":    ev.User.ID,
			"username":   ev.User.Username,
			"is_premium": ev.User.IsPremium,
		}, true

	case KindPresenceLeave:
		if ev.User == nil {
			return nil, false
		}
		return Frame{"type": string(ev.Kind), "user_id": ev.User.ID, "username": ev.User.Username}, true

	case KindTypingStart, KindTypingStop:
		if ev.User == nil || ev.User.ID == viewer {
			return nil, false
		}
		return Frame{"type": string(ev.Kind), "user_id": ev.User.ID, "username": ev.User.Username}, true

	case KindModerationKick, KindModerationBan:
		if ev.TargetID == viewer {
			verb := "kicked"
			if ev.Kind == KindModerationBan {
				verb = "banned"
			}
			return Frame{
				"type":    string(ev.Kind),
				"reason":  ev.Reason,
				"message": fmt.Sprintf("You have been %s from the lobby", verb),
			}, true
		}
		return Frame{
			"type":            string(ev.Kind),
			"target_id":       ev.TargetID,
			"target_username": ev.TargetUsername,
			"reason":          ev.Reason,
		}, true

	case KindSystemStatus:
		return Frame{"type": string(ev.Kind), "status": ev.Status, "message": ev.Text}, true
	}
	return nil, false
}
