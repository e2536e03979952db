package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/lobbychat/internal/models"
)

// InsertLobbyEvent appends a single audit record.
func (s *Store) InsertLobbyEvent(ctx context.Context, ev *models.LobbyEvent) error {
	return s.InsertLobbyEvents(ctx, []models.LobbyEvent{*ev})
}

// InsertLobbyEvents appends a batch of audit records in one transaction.
func (s *Store) InsertLobbyEvents(ctx context.Context, events []models.LobbyEvent) error {
	if len(events) == 0 {
		return nil
	}
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for i := range events {
			if err := insertLobbyEventTx(ctx, tx, &events[i]); err != nil {
				return fmt.Errorf("insertLobbyEventTx: %w", err)
			}
		}
		return nil
	})
}

func insertLobbyEventTx(ctx context.Context, tx pgx.Tx, ev *models.LobbyEvent) error {
	metadata := ev.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	jsonMeta, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	q := `
	INSERT INTO lobby_events (lobby_id, event_type, actor_id, target_id, description, metadata, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))
	`
	var createdAt interface{}
	if !ev.CreatedAt.IsZero() {
		createdAt = ev.CreatedAt
	}
	_, err = tx.Exec(ctx, q,
		ev.LobbyID, ev.EventType, nullableUUID(ev.ActorID), nullableUUID(ev.TargetID),
		ev.Description, jsonMeta, createdAt,
	)
	return err
}
