package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/lobbychat/internal/models"
)

// UserStore is the slice of the durable store the resolver needs.
type UserStore interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Resolver turns a connection-time bearer token into a user. Every failure
// (missing token, bad signature, unknown user) is reported as ErrAnonymous so
// callers have a single unauthenticated branch.
type Resolver struct {
	tokens *TokenAuthority
	users  UserStore
}

func NewResolver(tokens *TokenAuthority, users UserStore) *Resolver {
	return &Resolver{tokens: tokens, users: users}
}

func (r *Resolver) Resolve(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrAnonymous
	}
	sub, err := r.tokens.AuthenticateJWT(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnonymous, err)
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid user id in token: %v", ErrAnonymous, err)
	}
	u, err := r.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnonymous, err)
	}
	return u, nil
}
