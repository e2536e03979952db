package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/lobbychat/internal/models"
)

// CreateUser inserts a user row, generating an id when none is set.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate user id: %w", err)
		}
		user.ID = id
	}

	q := `INSERT INTO users (id, username, is_premium) VALUES ($1, $2, $3)`
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, q, user.ID, user.Username, user.IsPremium)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", mapErr(err))
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	q := `SELECT id, username, is_premium FROM users WHERE id=$1`
	if err := s.pool.QueryRow(ctx, q, id).Scan(&u.ID, &u.Username, &u.IsPremium); err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

// GetUsersByIDs returns the users that exist among ids, in no particular order.
func (s *Store) GetUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := `SELECT id, username, is_premium FROM users WHERE id = ANY($1)`
	rows, err := s.pool.Query(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.IsPremium); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
