// internal/lobby/session.go
package lobby

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/lobbychat/internal/database"
	"github.com/jason-s-yu/lobbychat/internal/models"
	"github.com/sirupsen/logrus"
)

// State is a session's position in its lifecycle. It only moves forward.
type State int32

const (
	StateConnecting State = iota
	StateAuthenticated
	StateJoined
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateJoined:
		return "joined"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

type closeRequest struct {
	code   websocket.StatusCode
	reason string
	frames []Frame
}

// Session owns one client socket for its whole life.
type Session struct {
	engine  *Engine
	c       *websocket.Conn
	conn    *LobbyConnection
	lobbyID uuid.UUID
	user    models.User
	logger  *logrus.Entry

	state atomic.Int32

	ctx    context.Context
	cancel context.CancelFunc

	closeReq   chan closeRequest
	closeOnce  sync.Once
	writerDone chan struct{}

	teardownOnce sync.Once
	presenceHeld bool
	wasActive    bool
}

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// advance moves the session to next unless it is already there or beyond.
func (s *Session) advance(next State) bool {
	for {
		cur := s.state.Load()
		if State(cur) >= next {
			return false
		}
		if s.state.CompareAndSwap(cur, int32(next)) {
			s.logger.WithField("state", next).Debug("session state change")
			return true
		}
	}
}

// ConnID identifies this connection within the hub.
func (s *Session) ConnID() uuid.UUID { return s.conn.ID }

// UserID is the authenticated user behind the session.
func (s *Session) UserID() uuid.UUID { return s.user.ID }

// Serve runs a session on an accepted socket and returns once it is closed.
// Teardown has completed by the time Serve returns. The returned error is the
// one that ended an admitted session abnormally, or nil.
func (e *Engine) Serve(ctx context.Context, c *websocket.Conn, lobbyID uuid.UUID, token string) (err error) {
	s := &Session{
		engine:     e,
		c:          c,
		lobbyID:    lobbyID,
		closeReq:   make(chan closeRequest, 1),
		writerDone: make(chan struct{}),
		logger:     e.logger.WithField("lobby_id", lobbyID),
	}
	defer s.advance(StateClosed)

	user, authErr := e.auth.Resolve(ctx, token)
	if authErr != nil {
		s.logger.WithError(authErr).Info("rejecting unauthenticated connection")
		c.Close(StatusUnauthenticated, "unauthenticated")
		return nil
	}
	s.user = *user
	s.conn = newLobbyConnection(lobbyID, user.ID, e.opts.OutboundBuffer, e.logger)
	s.logger = s.logger.WithFields(logrus.Fields{"user_id": user.ID, "conn_id": s.conn.ID})
	s.advance(StateAuthenticated)

	lob, lookupErr := e.store.GetLobby(ctx, lobbyID)
	if errors.Is(lookupErr, database.ErrNotFound) {
		c.Close(StatusLobbyNotFound, "lobby not found")
		return nil
	}
	if lookupErr != nil {
		s.logger.WithError(lookupErr).Error("lobby lookup failed")
		s.reject(ctx, "service unavailable")
		return nil
	}

	if ok, reason := e.members.Admit(ctx, lob, user.ID); !ok {
		s.logger.WithField("reason", reason).Info("join denied")
		s.reject(ctx, reason)
		return nil
	}
	s.advance(StateJoined)

	c.SetReadLimit(e.opts.ReadLimit)
	s.ctx, s.cancel = context.WithCancel(ctx)
	go s.writePump()

	// Presence, hub membership and the writer are released however the
	// session ends, including a panic in a collaborator.
	defer func() {
		r := recover()
		if r != nil {
			s.logger.WithField("panic", r).Error("session panicked")
			err = fmt.Errorf("session panic: %v", r)
		}
		s.teardown()
		s.cancel()
		<-s.writerDone
		if r != nil {
			c.Close(websocket.StatusInternalError, "internal error")
		}
	}()

	s.activate()
	return s.readPump()
}

// reject reports reason to a client that was never admitted and closes it.
func (s *Session) reject(ctx context.Context, reason string) {
	data, _ := json.Marshal(errorFrame(reason))
	writeCtx, cancel := context.WithTimeout(ctx, s.engine.opts.WriteTimeout)
	_ = s.c.Write(writeCtx, websocket.MessageText, data)
	cancel()
	s.c.Close(StatusForbidden, reason)
}

// activate registers the session with the hub and presence, announces it and
// sends the occupant snapshot. Failures close the session; teardown still runs.
func (s *Session) activate() {
	e := s.engine
	e.hub.Join(s.lobbyID, s)

	if err := e.presence.Add(s.ctx, s.lobbyID, s.user.ID); err != nil {
		s.logger.WithError(err).Error("presence registration failed")
		s.forceClose(websocket.StatusInternalError, "service unavailable", errorFrame("service unavailable"))
		return
	}
	s.presenceHeld = true

	if !s.advance(StateActive) {
		return
	}
	s.wasActive = true
	s.broadcast(NewUserEvent(KindPresenceJoin, s.lobbyID, s.user))
	s.conn.Write(presenceListFrame(s.occupants()))

	go s.refreshPresence()
}

// occupants resolves the presence set to users. The snapshot is taken after
// this session registered, so it always includes the caller.
func (s *Session) occupants() []models.User {
	ids, err := s.engine.presence.List(s.ctx, s.lobbyID)
	if err != nil {
		s.logger.WithError(err).Error("presence list failed")
		return []models.User{s.user}
	}
	if len(ids) == 0 {
		return []models.User{}
	}
	users, err := s.engine.store.GetUsersByIDs(s.ctx, ids)
	if err != nil {
		s.logger.WithError(err).Error("resolving present users failed")
		return []models.User{s.user}
	}
	return users
}

func (s *Session) refreshPresence() {
	ticker := time.NewTicker(s.engine.opts.PresenceRefresh)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.engine.presence.Touch(s.ctx, s.lobbyID, s.user.ID); err != nil && s.ctx.Err() == nil {
				s.logger.WithError(err).Warn("presence refresh failed")
			}
		}
	}
}

// teardown releases everything the session registered. It runs exactly once
// whatever ended the session, and on a context of its own because the
// session's context is usually already cancelled.
func (s *Session) teardown() {
	s.teardownOnce.Do(func() {
		s.advance(StateClosing)
		e := s.engine
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if s.presenceHeld {
			if err := e.presence.Remove(ctx, s.lobbyID, s.user.ID); err != nil {
				s.logger.WithError(err).Error("presence removal failed")
			}
		}
		if s.wasActive {
			if err := e.hub.Broadcast(ctx, NewUserEvent(KindPresenceLeave, s.lobbyID, s.user)); err != nil {
				s.logger.WithError(err).Error("presence_leave broadcast failed")
			}
		}
		e.hub.Leave(s.lobbyID, s)
		s.logger.Info("session torn down")
	})
}

// forceClose asks the write pump to send frames and then close the socket
// with code. Only the first request counts.
func (s *Session) forceClose(code websocket.StatusCode, reason string, frames ...Frame) {
	s.closeOnce.Do(func() {
		s.advance(StateClosing)
		s.closeReq <- closeRequest{code: code, reason: reason, frames: frames}
	})
}

// Deliver is called by the hub for every event in this lobby. A kick or ban
// aimed at this user closes the session; anything else is queued for the
// client.
func (s *Session) Deliver(ev *Event) {
	frame, ok := ev.frameFor(s.user.ID)
	if !ok {
		return
	}
	if ev.targets(s.user.ID) {
		s.logger.WithField("kind", ev.Kind).Info("closing session for moderation action")
		reason := "kicked from lobby"
		if ev.Kind == KindModerationBan {
			reason = "banned from lobby"
		}
		s.forceClose(StatusForbidden, reason, frame)
		return
	}
	s.conn.Write(frame)
}

func (s *Session) broadcast(ev *Event) bool {
	if err := s.engine.hub.Broadcast(s.ctx, ev); err != nil {
		s.logger.WithError(err).WithField("kind", ev.Kind).Error("broadcast failed")
		s.conn.WriteError("service unavailable")
		return false
	}
	return true
}

// readPump returns the read error that ended the session, or nil when the
// client closed cleanly or the server initiated the close.
func (s *Session) readPump() error {
	for {
		typ, data, err := s.c.Read(s.ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			switch {
			case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
				s.logger.Info("client closed connection")
				return nil
			case s.ctx.Err() != nil || s.State() >= StateClosing:
				return nil
			default:
				s.logger.WithError(err).WithField("close_status", status).Warn("read error")
				return err
			}
		}
		if s.State() >= StateClosing {
			continue
		}
		if typ != websocket.MessageText {
			s.conn.WriteError("binary frames are not supported")
			continue
		}

		in, err := parseInbound(data)
		if err != nil {
			s.conn.WriteError(err.Error())
			continue
		}
		switch in.kind {
		case inboundChat:
			s.handleChat(in.message)
		case inboundTypingStart:
			s.broadcast(NewUserEvent(KindTypingStart, s.lobbyID, s.user))
		case inboundTypingStop:
			s.broadcast(NewUserEvent(KindTypingStop, s.lobbyID, s.user))
		}
	}
}

func (s *Session) handleChat(raw string) {
	e := s.engine
	content := strings.TrimSpace(raw)
	if content == "" {
		s.conn.WriteError("message cannot be empty")
		return
	}
	if utf8.RuneCountInString(content) > e.opts.MaxMessageLength {
		s.conn.WriteError(fmt.Sprintf("message exceeds %d characters", e.opts.MaxMessageLength))
		return
	}

	allowed, err := e.limiter.Allow(s.ctx, s.user.ID, s.lobbyID)
	if err != nil {
		s.logger.WithError(err).Error("rate limiter unavailable")
		s.conn.WriteError("service unavailable")
		return
	}
	if !allowed {
		s.conn.WriteError("rate limit exceeded")
		return
	}

	if !e.members.IsMember(s.ctx, s.lobbyID, s.user.ID) {
		s.logger.Info("membership revoked, closing session")
		s.forceClose(StatusForbidden, "forbidden", errorFrame("you are not a member of this lobby"))
		return
	}

	msg := &models.Message{LobbyID: s.lobbyID, SenderID: s.user.ID, Content: content}
	if err := e.store.InsertMessage(s.ctx, msg); err != nil {
		s.logger.WithError(err).Error("failed to persist chat message")
		s.conn.WriteError("failed to save")
		return
	}
	s.broadcast(NewChatEvent(s.lobbyID, msg, s.user))
}

func (s *Session) writePump() {
	defer close(s.writerDone)
	defer s.cancel()

	ticker := time.NewTicker(s.engine.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case req := <-s.closeReq:
			for _, f := range req.frames {
				if err := s.write(f); err != nil {
					break
				}
			}
			if err := s.c.Close(req.code, req.reason); err != nil {
				s.logger.WithError(err).Debug("close handshake incomplete")
			}
			return
		case msg := <-s.conn.OutChan:
			if err := s.write(msg); err != nil {
				s.logger.WithError(err).Warn("failed to write to websocket")
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(s.ctx, 15*time.Second)
			err := s.c.Ping(pingCtx)
			cancel()
			if err != nil {
				s.logger.WithError(err).Warn("ping failed, assuming disconnect")
				return
			}
		}
	}
}

func (s *Session) write(f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		s.logger.WithError(err).Warn("failed to marshal outgoing frame")
		return nil
	}
	writeCtx, cancel := context.WithTimeout(s.ctx, s.engine.opts.WriteTimeout)
	defer cancel()
	return s.c.Write(writeCtx, websocket.MessageText, data)
}
