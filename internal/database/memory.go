package database

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/lobbychat/internal/models"
)

type pairKey struct {
	lobby uuid.UUID
	user  uuid.UUID
}

// MemoryStore is an in-process implementation of the durable store with the
// same uniqueness semantics as the Postgres schema. It backs tests and local
// development without a database.
type MemoryStore struct {
	mu          sync.Mutex
	users       map[uuid.UUID]models.User
	lobbies     map[uuid.UUID]models.Lobby
	memberships map[pairKey]models.Membership
	bans        map[pairKey]models.Ban
	messages    []models.Message
	events      []models.LobbyEvent

	// failNext, when set, is returned once by the next call to the named method.
	failNext map[string]error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[uuid.UUID]models.User),
		lobbies:     make(map[uuid.UUID]models.Lobby),
		memberships: make(map[pairKey]models.Membership),
		bans:        make(map[pairKey]models.Ban),
		failNext:    make(map[string]error),
	}
}

// FailNext makes the next call to method return err.
func (s *MemoryStore) FailNext(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[method] = err
}

// fault must be called with s.mu held.
func (s *MemoryStore) fault(method string) error {
	if err, ok := s.failNext[method]; ok {
		delete(s.failNext, method)
		return err
	}
	return nil
}

func (s *MemoryStore) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("CreateUser"); err != nil {
		return err
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if _, ok := s.users[user.ID]; ok {
		return ErrAlreadyExists
	}
	s.users[user.ID] = *user
	return nil
}

func (s *MemoryStore) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("GetUserByID"); err != nil {
		return nil, err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *MemoryStore) GetUsersByIDs(_ context.Context, ids []uuid.UUID) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("GetUsersByIDs"); err != nil {
		return nil, err
	}
	var out []models.User
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *MemoryStore) CreateLobby(_ context.Context, lobby *models.Lobby) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("CreateLobby"); err != nil {
		return err
	}
	if lobby.ID == uuid.Nil {
		lobby.ID = uuid.New()
	}
	if lobby.Status == "" {
		lobby.Status = models.LobbyOpen
	}
	if _, ok := s.lobbies[lobby.ID]; ok {
		return ErrAlreadyExists
	}
	lobby.CreatedAt = time.Now().UTC()
	s.lobbies[lobby.ID] = *lobby
	s.memberships[pairKey{lobby.ID, lobby.OwnerID}] = models.Membership{
		LobbyID: lobby.ID, UserID: lobby.OwnerID, Role: models.RoleOwner, JoinedAt: lobby.CreatedAt,
	}
	return nil
}

func (s *MemoryStore) GetLobby(_ context.Context, lobbyID uuid.UUID) (*models.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("GetLobby"); err != nil {
		return nil, err
	}
	l, ok := s.lobbies[lobbyID]
	if !ok {
		return nil, ErrNotFound
	}
	return &l, nil
}

func (s *MemoryStore) SetLobbyStatus(_ context.Context, lobbyID uuid.UUID, status models.LobbyStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("SetLobbyStatus"); err != nil {
		return err
	}
	l, ok := s.lobbies[lobbyID]
	if !ok {
		return ErrNotFound
	}
	l.Status = status
	s.lobbies[lobbyID] = l
	return nil
}

func (s *MemoryStore) TransferOwnership(_ context.Context, lobbyID, from, to uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("TransferOwnership"); err != nil {
		return err
	}
	l, ok := s.lobbies[lobbyID]
	if !ok || l.OwnerID != from {
		return ErrNotFound
	}
	target, ok := s.memberships[pairKey{lobbyID, to}]
	if !ok {
		return ErrNotFound
	}
	l.OwnerID = to
	s.lobbies[lobbyID] = l
	target.Role = models.RoleOwner
	s.memberships[pairKey{lobbyID, to}] = target
	if old, ok := s.memberships[pairKey{lobbyID, from}]; ok {
		old.Role = models.RoleMember
		s.memberships[pairKey{lobbyID, from}] = old
	}
	return nil
}

func (s *MemoryStore) CountMembers(_ context.Context, lobbyID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("CountMembers"); err != nil {
		return 0, err
	}
	n := 0
	for k := range s.memberships {
		if k.lobby == lobbyID {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) GetMembership(_ context.Context, lobbyID, userID uuid.UUID) (*models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("GetMembership"); err != nil {
		return nil, err
	}
	m, ok := s.memberships[pairKey{lobbyID, userID}]
	if !ok {
		return nil, ErrNotFound
	}
	return &m, nil
}

func (s *MemoryStore) IsMember(_ context.Context, lobbyID, userID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("IsMember"); err != nil {
		return false, err
	}
	_, ok := s.memberships[pairKey{lobbyID, userID}]
	return ok, nil
}

func (s *MemoryStore) IsBanned(_ context.Context, lobbyID, userID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("IsBanned"); err != nil {
		return false, err
	}
	_, ok := s.bans[pairKey{lobbyID, userID}]
	return ok, nil
}

func (s *MemoryStore) CreateMembership(_ context.Context, m *models.Membership) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("CreateMembership"); err != nil {
		return false, err
	}
	k := pairKey{m.LobbyID, m.UserID}
	if _, ok := s.memberships[k]; ok {
		return false, nil
	}
	if m.Role == "" {
		m.Role = models.RoleMember
	}
	m.JoinedAt = time.Now().UTC()
	s.memberships[k] = *m
	return true, nil
}

func (s *MemoryStore) DeleteMembership(_ context.Context, lobbyID, userID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("DeleteMembership"); err != nil {
		return false, err
	}
	k := pairKey{lobbyID, userID}
	if _, ok := s.memberships[k]; !ok {
		return false, nil
	}
	delete(s.memberships, k)
	return true, nil
}

func (s *MemoryStore) SetMemberRole(_ context.Context, lobbyID, userID uuid.UUID, role models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("SetMemberRole"); err != nil {
		return err
	}
	k := pairKey{lobbyID, userID}
	m, ok := s.memberships[k]
	if !ok {
		return ErrNotFound
	}
	m.Role = role
	s.memberships[k] = m
	return nil
}

func (s *MemoryStore) BanUser(_ context.Context, ban *models.Ban) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("BanUser"); err != nil {
		return false, err
	}
	k := pairKey{ban.LobbyID, ban.UserID}
	delete(s.memberships, k)
	if _, ok := s.bans[k]; ok {
		return false, nil
	}
	ban.CreatedAt = time.Now().UTC()
	s.bans[k] = *ban
	return true, nil
}

func (s *MemoryStore) DeleteBan(_ context.Context, lobbyID, userID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("DeleteBan"); err != nil {
		return false, err
	}
	k := pairKey{lobbyID, userID}
	if _, ok := s.bans[k]; !ok {
		return false, nil
	}
	delete(s.bans, k)
	return true, nil
}

func (s *MemoryStore) InsertMessage(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("InsertMessage"); err != nil {
		return err
	}
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	msg.CreatedAt = time.Now().UTC()
	s.messages = append(s.messages, *msg)
	return nil
}

func (s *MemoryStore) InsertLobbyEvent(ctx context.Context, ev *models.LobbyEvent) error {
	return s.InsertLobbyEvents(ctx, []models.LobbyEvent{*ev})
}

func (s *MemoryStore) InsertLobbyEvents(_ context.Context, events []models.LobbyEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("InsertLobbyEvents"); err != nil {
		return err
	}
	for _, ev := range events {
		if ev.CreatedAt.IsZero() {
			ev.CreatedAt = time.Now().UTC()
		}
		s.events = append(s.events, ev)
	}
	return nil
}

// Messages returns a copy of every persisted message in insertion order.
func (s *MemoryStore) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message(nil), s.messages...)
}

// LobbyEvents returns a copy of every audit record in insertion order.
func (s *MemoryStore) LobbyEvents() []models.LobbyEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.LobbyEvent(nil), s.events...)
}
