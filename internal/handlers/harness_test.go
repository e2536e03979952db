package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/jason-s-yu/lobbychat/internal/auth"
	"github.com/jason-s-yu/lobbychat/internal/database"
	"github.com/jason-s-yu/lobbychat/internal/lobby"
	"github.com/jason-s-yu/lobbychat/internal/membership"
	"github.com/jason-s-yu/lobbychat/internal/models"
	"github.com/jason-s-yu/lobbychat/internal/moderation"
	"github.com/jason-s-yu/lobbychat/internal/presence"
	"github.com/jason-s-yu/lobbychat/internal/ratelimit"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

// harness runs the full HTTP surface on memory backends.
type harness struct {
	t        *testing.T
	store    *database.MemoryStore
	tokens   *auth.TokenAuthority
	presence *presence.MemoryStore
	hub      *lobby.LocalHub
	logs     *logtest.Hook
	server   *httptest.Server
}

// newHarness wires the engine on memory backends. opts may swap any engine
// dependency before the engine is built.
func newHarness(t *testing.T, opts ...func(*lobby.Deps)) *harness {
	t.Helper()
	logger, logs := logtest.NewNullLogger()

	store := database.NewMemoryStore()
	tokens, err := auth.NewTokenAuthority(time.Hour)
	require.NoError(t, err)
	resolver := auth.NewResolver(tokens, store)
	authority := membership.NewAuthority(store, logger)
	hub := lobby.NewLocalHub()
	pres := presence.NewMemoryStore(time.Minute)

	deps := lobby.Deps{
		Store:    store,
		Auth:     resolver,
		Members:  authority,
		Presence: pres,
		Limiter:  ratelimit.NewMemoryLimiter(ratelimit.Options{}),
		Hub:      hub,
		Logger:   logger,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	engine := lobby.NewEngine(deps)
	svc := moderation.NewService(store, authority, moderation.NewStoreRecorder(store), moderation.NewPropagator(hub, logger), logger)

	srv := httptest.NewServer(NewRouter(RouterConfig{
		Logger:     logger,
		Engine:     engine,
		Resolver:   resolver,
		Moderation: svc,
	}))
	t.Cleanup(srv.Close)

	return &harness{t: t, store: store, tokens: tokens, presence: pres, hub: hub, logs: logs, server: srv}
}

func (h *harness) user(name string) *models.User {
	h.t.Helper()
	u := &models.User{Username: name}
	require.NoError(h.t, h.store.CreateUser(context.Background(), u))
	return u
}

func (h *harness) lobby(owner *models.User, max int) *models.Lobby {
	h.t.Helper()
	l := &models.Lobby{Name: "Test Lobby", OwnerID: owner.ID, IsPublic: true, MaxParticipants: max}
	require.NoError(h.t, h.store.CreateLobby(context.Background(), l))
	return l
}

func (h *harness) token(u *models.User) string {
	h.t.Helper()
	tok, err := h.tokens.CreateJWT(u.ID.String())
	require.NoError(h.t, err)
	return tok
}

func (h *harness) wsURL(lobbyID string, token string) string {
	u := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/lobby/ws/" + lobbyID
	if token != "" {
		u += "?token=" + token
	}
	return u
}

// dial opens a lobby socket speaking the lobby subprotocol. An empty token
// connects anonymously.
func (h *harness) dial(lobbyID uuid.UUID, u *models.User) *wsClient {
	h.t.Helper()
	tok := ""
	if u != nil {
		tok = h.token(u)
	}
	return h.dialURL(h.wsURL(lobbyID.String(), tok), []string{"lobby"})
}

func (h *harness) dialURL(url string, subprotocols []string) *wsClient {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: subprotocols})
	require.NoError(h.t, err)
	h.t.Cleanup(func() { c.CloseNow() })
	return &wsClient{t: h.t, c: c}
}

type wsClient struct {
	t *testing.T
	c *websocket.Conn
}

func (w *wsClient) send(v interface{}) {
	w.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(w.t, wsjson.Write(ctx, w.c, v))
}

func (w *wsClient) sendRaw(data string) {
	w.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(w.t, w.c.Write(ctx, websocket.MessageText, []byte(data)))
}

func (w *wsClient) next() map[string]interface{} {
	w.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, data, err := w.c.Read(ctx)
	require.NoError(w.t, err)
	var frame map[string]interface{}
	require.NoError(w.t, json.Unmarshal(data, &frame))
	return frame
}

// expect skips frames until one of type typ arrives.
func (w *wsClient) expect(typ string) map[string]interface{} {
	w.t.Helper()
	for i := 0; i < 32; i++ {
		f := w.next()
		if f["type"] == typ {
			return f
		}
	}
	w.t.Fatalf("no %q frame arrived", typ)
	return nil
}

// closeStatus reads until the server closes the socket and returns the code.
func (w *wsClient) closeStatus() websocket.StatusCode {
	w.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for {
		if _, _, err := w.c.Read(ctx); err != nil {
			return websocket.CloseStatus(err)
		}
	}
}

func (w *wsClient) close() {
	w.c.Close(websocket.StatusNormalClosure, "")
}
