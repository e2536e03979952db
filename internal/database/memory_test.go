package database

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/lobbychat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedLobby(t *testing.T, s *MemoryStore) (*models.User, *models.Lobby) {
	t.Helper()
	ctx := context.Background()
	owner := &models.User{Username: "owner"}
	require.NoError(t, s.CreateUser(ctx, owner))
	lobby := &models.Lobby{Name: "Test", OwnerID: owner.ID, MaxParticipants: 4}
	require.NoError(t, s.CreateLobby(ctx, lobby))
	return owner, lobby
}

func TestMemoryStoreCreateLobbyAddsOwnerMembership(t *testing.T) {
	s := NewMemoryStore()
	owner, lobby := seedLobby(t, s)
	ctx := context.Background()

	assert.Equal(t, models.LobbyOpen, lobby.Status)
	m, err := s.GetMembership(ctx, lobby.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, m.Role)

	n, err := s.CountMembers(ctx, lobby.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryStoreConcurrentCreateMembershipHasOneWinner(t *testing.T) {
	s := NewMemoryStore()
	_, lobby := seedLobby(t, s)
	user := uuid.New()

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := s.CreateMembership(context.Background(), &models.Membership{LobbyID: lobby.ID, UserID: user})
			assert.NoError(t, err)
			if created {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}

func TestMemoryStoreBanUserRemovesMembership(t *testing.T) {
	s := NewMemoryStore()
	owner, lobby := seedLobby(t, s)
	ctx := context.Background()
	target := uuid.New()

	_, err := s.CreateMembership(ctx, &models.Membership{LobbyID: lobby.ID, UserID: target})
	require.NoError(t, err)

	created, err := s.BanUser(ctx, &models.Ban{LobbyID: lobby.ID, UserID: target, BannedBy: owner.ID, Reason: "spam"})
	require.NoError(t, err)
	assert.True(t, created)

	member, err := s.IsMember(ctx, lobby.ID, target)
	require.NoError(t, err)
	assert.False(t, member)

	banned, err := s.IsBanned(ctx, lobby.ID, target)
	require.NoError(t, err)
	assert.True(t, banned)

	created, err = s.BanUser(ctx, &models.Ban{LobbyID: lobby.ID, UserID: target})
	require.NoError(t, err)
	assert.False(t, created, "second ban must not create a new record")

	deleted, err := s.DeleteBan(ctx, lobby.ID, target)
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = s.DeleteBan(ctx, lobby.ID, target)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestMemoryStoreTransferOwnership(t *testing.T) {
	s := NewMemoryStore()
	owner, lobby := seedLobby(t, s)
	ctx := context.Background()
	heir := uuid.New()

	assert.ErrorIs(t, s.TransferOwnership(ctx, lobby.ID, owner.ID, heir), ErrNotFound)

	_, err := s.CreateMembership(ctx, &models.Membership{LobbyID: lobby.ID, UserID: heir})
	require.NoError(t, err)
	require.NoError(t, s.TransferOwnership(ctx, lobby.ID, owner.ID, heir))

	l, err := s.GetLobby(ctx, lobby.ID)
	require.NoError(t, err)
	assert.Equal(t, heir, l.OwnerID)

	m, err := s.GetMembership(ctx, lobby.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleMember, m.Role)
	m, err = s.GetMembership(ctx, lobby.ID, heir)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, m.Role)
}

func TestMemoryStoreFailNext(t *testing.T) {
	s := NewMemoryStore()
	_, lobby := seedLobby(t, s)
	boom := errors.New("boom")

	s.FailNext("IsMember", boom)
	_, err := s.IsMember(context.Background(), lobby.ID, uuid.New())
	assert.ErrorIs(t, err, boom)

	_, err = s.IsMember(context.Background(), lobby.ID, uuid.New())
	assert.NoError(t, err)
}
