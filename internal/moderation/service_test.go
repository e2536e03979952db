package moderation

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/lobbychat/internal/database"
	"github.com/jason-s-yu/lobbychat/internal/lobby"
	"github.com/jason-s-yu/lobbychat/internal/membership"
	"github.com/jason-s-yu/lobbychat/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingMember is a hub member that keeps every delivered event.
type recordingMember struct {
	id     uuid.UUID
	mu     sync.Mutex
	events []*lobby.Event
}

func newRecordingMember() *recordingMember { return &recordingMember{id: uuid.New()} }

func (m *recordingMember) ConnID() uuid.UUID { return m.id }

func (m *recordingMember) Deliver(ev *lobby.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

func (m *recordingMember) Events() []*lobby.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*lobby.Event(nil), m.events...)
}

type fixture struct {
	store   *database.MemoryStore
	hub     *lobby.LocalHub
	svc     *Service
	lobby   *models.Lobby
	owner   *models.User
	member  *models.User
	watcher *recordingMember
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := database.NewMemoryStore()
	owner := &models.User{Username: "alice"}
	member := &models.User{Username: "bob"}
	require.NoError(t, store.CreateUser(ctx, owner))
	require.NoError(t, store.CreateUser(ctx, member))

	l := &models.Lobby{Name: "Test", OwnerID: owner.ID, IsPublic: true, MaxParticipants: 4}
	require.NoError(t, store.CreateLobby(ctx, l))
	_, err := store.CreateMembership(ctx, &models.Membership{LobbyID: l.ID, UserID: member.ID})
	require.NoError(t, err)

	hub := lobby.NewLocalHub()
	watcher := newRecordingMember()
	hub.Join(l.ID, watcher)

	svc := NewService(store, membership.NewAuthority(store, logger), NewStoreRecorder(store), NewPropagator(hub, logger), logger)
	return &fixture{store: store, hub: hub, svc: svc, lobby: l, owner: owner, member: member, watcher: watcher}
}

func (f *fixture) lastEventType(t *testing.T) models.EventType {
	t.Helper()
	events := f.store.LobbyEvents()
	require.NotEmpty(t, events)
	return events[len(events)-1].EventType
}

func TestKickRemovesMembershipAndPropagates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Kick(ctx, f.lobby.ID, f.owner.ID, f.member.ID, "spam"))

	isMember, err := f.store.IsMember(ctx, f.lobby.ID, f.member.ID)
	require.NoError(t, err)
	assert.False(t, isMember)
	assert.Equal(t, models.EventKick, f.lastEventType(t))

	events := f.watcher.Events()
	require.Len(t, events, 1)
	assert.Equal(t, lobby.KindModerationKick, events[0].Kind)
	assert.Equal(t, f.member.ID, events[0].TargetID)
	assert.Equal(t, "bob", events[0].TargetUsername)
	assert.Equal(t, "spam", events[0].Reason)

	assert.ErrorIs(t, f.svc.Kick(ctx, f.lobby.ID, f.owner.ID, f.member.ID, ""), ErrNotMember)
}

func TestKickRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.Kick(ctx, f.lobby.ID, f.member.ID, f.owner.ID, ""), ErrForbidden, "plain member cannot kick")

	require.NoError(t, f.svc.AddModerator(ctx, f.lobby.ID, f.owner.ID, f.member.ID))
	assert.ErrorIs(t, f.svc.Kick(ctx, f.lobby.ID, f.member.ID, f.owner.ID, ""), ErrTargetIsOwner)
}

func TestBan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Ban(ctx, f.lobby.ID, f.owner.ID, f.member.ID, "abuse"))
	banned, err := f.store.IsBanned(ctx, f.lobby.ID, f.member.ID)
	require.NoError(t, err)
	assert.True(t, banned)
	isMember, err := f.store.IsMember(ctx, f.lobby.ID, f.member.ID)
	require.NoError(t, err)
	assert.False(t, isMember)
	assert.Equal(t, models.EventBan, f.lastEventType(t))

	events := f.watcher.Events()
	require.Len(t, events, 1)
	assert.Equal(t, lobby.KindModerationBan, events[0].Kind)

	assert.ErrorIs(t, f.svc.Ban(ctx, f.lobby.ID, f.owner.ID, f.member.ID, "again"), ErrAlreadyBanned)
	assert.ErrorIs(t, f.svc.Ban(ctx, f.lobby.ID, f.owner.ID, f.owner.ID, ""), ErrTargetIsOwner)

	err = f.svc.Join(ctx, f.lobby.ID, f.member.ID)
	assert.ErrorIs(t, err, ErrJoinDenied)
	assert.Contains(t, err.Error(), membership.ReasonBanned)

	require.NoError(t, f.svc.Unban(ctx, f.lobby.ID, f.owner.ID, f.member.ID))
	assert.Equal(t, models.EventUnban, f.lastEventType(t))
	assert.ErrorIs(t, f.svc.Unban(ctx, f.lobby.ID, f.owner.ID, f.member.ID), ErrNotBanned)
	require.NoError(t, f.svc.Join(ctx, f.lobby.ID, f.member.ID))
}

func TestBanUnknownUser(t *testing.T) {
	f := newFixture(t)
	err := f.svc.Ban(context.Background(), f.lobby.ID, f.owner.ID, uuid.New(), "")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestModeratorRoles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.RemoveModerator(ctx, f.lobby.ID, f.owner.ID, f.member.ID), ErrNotModerator)
	require.NoError(t, f.svc.AddModerator(ctx, f.lobby.ID, f.owner.ID, f.member.ID))
	m, err := f.store.GetMembership(ctx, f.lobby.ID, f.member.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleModerator, m.Role)
	assert.Equal(t, models.EventModAdd, f.lastEventType(t))

	assert.ErrorIs(t, f.svc.AddModerator(ctx, f.lobby.ID, f.owner.ID, f.owner.ID), ErrAlreadyOwner)

	require.NoError(t, f.svc.RemoveModerator(ctx, f.lobby.ID, f.owner.ID, f.member.ID))
	m, err = f.store.GetMembership(ctx, f.lobby.ID, f.member.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleMember, m.Role)
	assert.Equal(t, models.EventModRemove, f.lastEventType(t))

	events := f.watcher.Events()
	require.Len(t, events, 2)
	assert.Equal(t, lobby.KindSystemStatus, events[0].Kind)
	assert.Equal(t, "bob promoted to moderator", events[0].Text)
}

func TestTransferOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.TransferOwnership(ctx, f.lobby.ID, f.member.ID, f.owner.ID), ErrForbidden)
	assert.ErrorIs(t, f.svc.TransferOwnership(ctx, f.lobby.ID, f.owner.ID, f.owner.ID), ErrAlreadyOwner)

	require.NoError(t, f.svc.TransferOwnership(ctx, f.lobby.ID, f.owner.ID, f.member.ID))
	l, err := f.store.GetLobby(ctx, f.lobby.ID)
	require.NoError(t, err)
	assert.Equal(t, f.member.ID, l.OwnerID)
	assert.Equal(t, models.EventTransfer, f.lastEventType(t))

	// the old owner can now leave, the new one cannot
	require.NoError(t, f.svc.Leave(ctx, f.lobby.ID, f.owner.ID))
	assert.ErrorIs(t, f.svc.Leave(ctx, f.lobby.ID, f.member.ID), ErrOwnerCannotLeave)
}

func TestStartAndClose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.Start(ctx, f.lobby.ID, f.member.ID), ErrForbidden)
	require.NoError(t, f.svc.Start(ctx, f.lobby.ID, f.owner.ID))
	require.NoError(t, f.svc.Close(ctx, f.lobby.ID, f.owner.ID))

	l, err := f.store.GetLobby(ctx, f.lobby.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LobbyClosed, l.Status)

	events := f.watcher.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "in_game", events[0].Status)
	assert.Equal(t, "Game started", events[0].Text)
	assert.Equal(t, "closed", events[1].Status)

	err = f.svc.Join(ctx, f.lobby.ID, uuid.New())
	assert.ErrorIs(t, err, ErrJoinDenied)
}

func TestJoinAndLeave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	carol := &models.User{Username: "carol"}
	require.NoError(t, f.store.CreateUser(ctx, carol))
	require.NoError(t, f.svc.Join(ctx, f.lobby.ID, carol.ID))
	assert.ErrorIs(t, f.svc.Join(ctx, f.lobby.ID, carol.ID), ErrJoinDenied)

	require.NoError(t, f.svc.Leave(ctx, f.lobby.ID, carol.ID))
	assert.ErrorIs(t, f.svc.Leave(ctx, f.lobby.ID, carol.ID), ErrNotMember)
	assert.ErrorIs(t, f.svc.Leave(ctx, f.lobby.ID, f.owner.ID), ErrOwnerCannotLeave)

	assert.Empty(t, f.watcher.Events(), "join and leave are not broadcast")
}

func TestRecorderFailureDoesNotFailAction(t *testing.T) {
	f := newFixture(t)
	f.store.FailNext("InsertLobbyEvents", errors.New("disk full"))

	require.NoError(t, f.svc.Kick(context.Background(), f.lobby.ID, f.owner.ID, f.member.ID, ""))
	assert.Empty(t, f.store.LobbyEvents())
	assert.Len(t, f.watcher.Events(), 1)
}

func TestPropagateValidatesKind(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	p := NewPropagator(lobby.NewLocalHub(), logger)

	err := p.Propagate(context.Background(), uuid.New(), lobby.KindModerationBan, nil, Payload{})
	assert.Error(t, err)
	err = p.Propagate(context.Background(), uuid.New(), lobby.KindChatMessage, nil, Payload{})
	assert.Error(t, err)
}
