package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/lobbychat/internal/models"
)

// CreateLobby inserts a lobby together with the owner's membership.
func (s *Store) CreateLobby(ctx context.Context, lobby *models.Lobby) error {
	if lobby.ID == uuid.Nil {
		lobby.ID = uuid.New()
	}
	if lobby.Status == "" {
		lobby.Status = models.LobbyOpen
	}
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO lobbies (id, name, owner_id, is_public, status, max_participants)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING created_at`,
			lobby.ID, lobby.Name, lobby.OwnerID, lobby.IsPublic, lobby.Status, lobby.MaxParticipants,
		).Scan(&lobby.CreatedAt)
		if err != nil {
			return mapErr(err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO lobby_memberships (lobby_id, user_id, role)
			VALUES ($1, $2, $3)`,
			lobby.ID, lobby.OwnerID, models.RoleOwner,
		)
		return mapErr(err)
	})
}

// GetLobby fetches a lobby by ID.
func (s *Store) GetLobby(ctx context.Context, lobbyID uuid.UUID) (*models.Lobby, error) {
	var l models.Lobby
	q := `
	SELECT id, name, owner_id, is_public, status, max_participants, created_at
	FROM lobbies
	WHERE id = $1
	`
	err := s.pool.QueryRow(ctx, q, lobbyID).Scan(
		&l.ID, &l.Name, &l.OwnerID, &l.IsPublic, &l.Status, &l.MaxParticipants, &l.CreatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return &l, nil
}

// SetLobbyStatus changes the lifecycle status of a lobby.
func (s *Store) SetLobbyStatus(ctx context.Context, lobbyID uuid.UUID, status models.LobbyStatus) error {
	q := `UPDATE lobbies SET status=$2, updated_at=NOW() WHERE id=$1`
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		ct, err := tx.Exec(ctx, q, lobbyID, status)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// TransferOwnership moves the owner role from one member to another. The
// lobby row and both memberships change in one transaction.
func (s *Store) TransferOwnership(ctx context.Context, lobbyID, from, to uuid.UUID) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		ct, err := tx.Exec(ctx, `UPDATE lobbies SET owner_id=$2, updated_at=NOW() WHERE id=$1 AND owner_id=$3`, lobbyID, to, from)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return fmt.Errorf("lobby %s is not owned by %s: %w", lobbyID, from, ErrNotFound)
		}
		ct, err = tx.Exec(ctx, `UPDATE lobby_memberships SET role=$3 WHERE lobby_id=$1 AND user_id=$2`, lobbyID, to, models.RoleOwner)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return fmt.Errorf("user %s is not a member: %w", to, ErrNotFound)
		}
		_, err = tx.Exec(ctx, `UPDATE lobby_memberships SET role=$3 WHERE lobby_id=$1 AND user_id=$2`, lobbyID, from, models.RoleMember)
		return err
	})
}

// InsertMessage persists a chat message, filling in its id and timestamp.
func (s *Store) InsertMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	q := `
	INSERT INTO messages (id, lobby_id, sender_id, content)
	VALUES ($1, $2, $3, $4)
	RETURNING created_at
	`
	if err := s.pool.QueryRow(ctx, q, msg.ID, msg.LobbyID, msg.SenderID, msg.Content).Scan(&msg.CreatedAt); err != nil {
		return fmt.Errorf("insert message: %w", mapErr(err))
	}
	msg.CreatedAt = msg.CreatedAt.UTC()
	return nil
}
