package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/lobbychat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// post calls a lobby action as actor (anonymous when nil) and returns the
// status and decoded body.
func (h *harness) post(actor *models.User, lobbyID uuid.UUID, action string, body interface{}) (int, map[string]string) {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(http.MethodPost, h.server.URL+"/lobby/"+lobbyID.String()+"/"+action, &buf)
	require.NoError(h.t, err)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		req.Header.Set("Authorization", "Bearer "+h.token(actor))
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()

	out := map[string]string{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestLobbyActionStatuses(t *testing.T) {
	h := newHarness(t)
	alice, bob, carol := h.user("alice"), h.user("bob"), h.user("carol")
	l := h.lobby(alice, 4)
	target := func(u *models.User) map[string]string { return map[string]string{"user_id": u.ID.String()} }

	status, body := h.post(bob, l.ID, "join", nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "Joined lobby successfully", body["message"])

	cases := []struct {
		name   string
		actor  *models.User
		lobby  uuid.UUID
		action string
		body   interface{}
		want   int
	}{
		{"anonymous", nil, l.ID, "kick", target(bob), http.StatusUnauthorized},
		{"unknown action", alice, l.ID, "promote", target(bob), http.StatusNotFound},
		{"missing target", alice, l.ID, "kick", nil, http.StatusBadRequest},
		{"unknown lobby", alice, uuid.New(), "kick", target(bob), http.StatusNotFound},
		{"member cannot moderate", bob, l.ID, "kick", target(alice), http.StatusForbidden},
		{"member cannot close", bob, l.ID, "close", nil, http.StatusForbidden},
		{"kick non-member", alice, l.ID, "kick", target(carol), http.StatusBadRequest},
		{"owner cannot leave", alice, l.ID, "leave", nil, http.StatusBadRequest},
		{"unban without ban", alice, l.ID, "unban", target(carol), http.StatusBadRequest},
		{"ban", alice, l.ID, "ban", target(carol), http.StatusOK},
		{"ban twice", alice, l.ID, "ban", target(carol), http.StatusConflict},
		{"banned user cannot join", carol, l.ID, "join", nil, http.StatusBadRequest},
		{"promote", alice, l.ID, "add_moderator", target(bob), http.StatusOK},
		{"moderator cannot kick owner", bob, l.ID, "kick", target(alice), http.StatusBadRequest},
		{"moderator unbans", bob, l.ID, "unban", target(carol), http.StatusOK},
	}
	for _, tc := range cases {
		status, body := h.post(tc.actor, tc.lobby, tc.action, tc.body)
		assert.Equal(t, tc.want, status, "%s: %v", tc.name, body)
		if tc.want != http.StatusOK {
			assert.NotEmpty(t, body["error"], tc.name)
		}
	}
}

func TestLobbyActionRecordsEvents(t *testing.T) {
	h := newHarness(t)
	alice, bob := h.user("alice"), h.user("bob")
	l := h.lobby(alice, 4)

	status, _ := h.post(bob, l.ID, "join", nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = h.post(alice, l.ID, "transfer_ownership", map[string]string{"user_id": bob.ID.String()})
	require.Equal(t, http.StatusOK, status)
	status, _ = h.post(bob, l.ID, "start", nil)
	require.Equal(t, http.StatusOK, status)

	events := h.store.LobbyEvents()
	require.Len(t, events, 3)
	assert.Equal(t, models.EventStatusChange, events[0].EventType, "join")
	assert.Equal(t, models.EventTransfer, events[1].EventType)
	assert.Equal(t, models.EventStatusChange, events[2].EventType, "start")
	assert.Equal(t, "in_game", events[2].Metadata["status"])

	got, err := h.store.GetLobby(context.Background(), l.ID)
	require.NoError(t, err)
	assert.Equal(t, bob.ID, got.OwnerID)
	assert.Equal(t, models.LobbyInGame, got.Status)
}
