package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/lobbychat/internal/models"
)

// CountMembers returns the derived participant count of a lobby.
func (s *Store) CountMembers(ctx context.Context, lobbyID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM lobby_memberships WHERE lobby_id=$1`, lobbyID).Scan(&n)
	return n, err
}

// GetMembership returns the membership of userID in lobbyID or ErrNotFound.
func (s *Store) GetMembership(ctx context.Context, lobbyID, userID uuid.UUID) (*models.Membership, error) {
	var m models.Membership
	q := `
	SELECT lobby_id, user_id, role, joined_at
	FROM lobby_memberships
	WHERE lobby_id=$1 AND user_id=$2
	`
	if err := s.pool.QueryRow(ctx, q, lobbyID, userID).Scan(&m.LobbyID, &m.UserID, &m.Role, &m.JoinedAt); err != nil {
		return nil, mapErr(err)
	}
	return &m, nil
}

// IsMember checks if the user is currently a member of the lobby.
func (s *Store) IsMember(ctx context.Context, lobbyID, userID uuid.UUID) (bool, error) {
	q := `
	SELECT 1
	  FROM lobby_memberships
	  WHERE lobby_id = $1 AND user_id = $2
	  LIMIT 1
	`
	var tmp int
	err := s.pool.QueryRow(ctx, q, lobbyID, userID).Scan(&tmp)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// IsBanned checks for a ban record on (lobby, user).
func (s *Store) IsBanned(ctx context.Context, lobbyID, userID uuid.UUID) (bool, error) {
	var tmp int
	err := s.pool.QueryRow(ctx, `SELECT 1 FROM lobby_bans WHERE lobby_id=$1 AND user_id=$2 LIMIT 1`, lobbyID, userID).Scan(&tmp)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateMembership inserts the membership unless one already exists. created
// reports whether this call won; concurrent duplicates resolve to one row.
func (s *Store) CreateMembership(ctx context.Context, m *models.Membership) (created bool, err error) {
	if m.Role == "" {
		m.Role = models.RoleMember
	}
	q := `
	INSERT INTO lobby_memberships (lobby_id, user_id, role)
	VALUES ($1, $2, $3)
	ON CONFLICT (lobby_id, user_id) DO NOTHING
	RETURNING joined_at
	`
	err = s.pool.QueryRow(ctx, q, m.LobbyID, m.UserID, m.Role).Scan(&m.JoinedAt)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, mapErr(err)
	}
	return true, nil
}

// DeleteMembership removes a membership; deleted is false if there was none.
func (s *Store) DeleteMembership(ctx context.Context, lobbyID, userID uuid.UUID) (deleted bool, err error) {
	ct, err := s.pool.Exec(ctx, `DELETE FROM lobby_memberships WHERE lobby_id=$1 AND user_id=$2`, lobbyID, userID)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// SetMemberRole updates the role of an existing member.
func (s *Store) SetMemberRole(ctx context.Context, lobbyID, userID uuid.UUID, role models.Role) error {
	ct, err := s.pool.Exec(ctx, `UPDATE lobby_memberships SET role=$3 WHERE lobby_id=$1 AND user_id=$2`, lobbyID, userID, role)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// BanUser removes any membership of the target and records the ban in one
// transaction. created is false when the user was already banned.
func (s *Store) BanUser(ctx context.Context, ban *models.Ban) (created bool, err error) {
	err = pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM lobby_memberships WHERE lobby_id=$1 AND user_id=$2`, ban.LobbyID, ban.UserID); err != nil {
			return err
		}
		q := `
		INSERT INTO lobby_bans (lobby_id, user_id, reason, banned_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (lobby_id, user_id) DO NOTHING
		RETURNING created_at
		`
		scanErr := tx.QueryRow(ctx, q, ban.LobbyID, ban.UserID, ban.Reason, nullableUUID(ban.BannedBy)).Scan(&ban.CreatedAt)
		if scanErr == pgx.ErrNoRows {
			return nil
		}
		if scanErr != nil {
			return scanErr
		}
		created = true
		return nil
	})
	return created, mapErr(err)
}

// DeleteBan lifts a ban; deleted is false if the user was not banned.
func (s *Store) DeleteBan(ctx context.Context, lobbyID, userID uuid.UUID) (deleted bool, err error) {
	ct, err := s.pool.Exec(ctx, `DELETE FROM lobby_bans WHERE lobby_id=$1 AND user_id=$2`, lobbyID, userID)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func nullableUUID(id uuid.UUID) interface{} {
	if id == uuid.Nil {
		return nil
	}
	return id
}
