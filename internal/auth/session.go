// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrAnonymous is returned when a connection carries no usable credential.
var ErrAnonymous = errors.New("anonymous")

// TokenAuthority signs and verifies EdDSA JWTs. A verify-only authority has a
// nil private key.
type TokenAuthority struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	// ttl is how long issued tokens live (0 => never).
	ttl time.Duration
}

// NewTokenAuthority generates a fresh ed25519 key pair at runtime.
func NewTokenAuthority(ttl time.Duration) (*TokenAuthority, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return &TokenAuthority{privateKey: priv, publicKey: pub, ttl: ttl}, nil
}

// NewTokenAuthorityFromPath reads ed25519 keys from disk. privatePath may be
// empty, in which case the authority can only verify.
func NewTokenAuthorityFromPath(privatePath, publicPath string, ttl time.Duration) (*TokenAuthority, error) {
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(publicKeyData) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key file has %d bytes, want %d", len(publicKeyData), ed25519.PublicKeySize)
	}
	ta := &TokenAuthority{publicKey: ed25519.PublicKey(publicKeyData), ttl: ttl}

	if privatePath != "" {
		privateKeyData, err := os.ReadFile(privatePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key file: %w", err)
		}
		ta.privateKey = ed25519.PrivateKey(privateKeyData)
	}
	return ta, nil
}

// CreateJWT creates a signed JWT token with "sub" = userID, and an exp claim
// when the authority has a ttl.
func (ta *TokenAuthority) CreateJWT(userID string) (string, error) {
	if ta.privateKey == nil {
		return "", errors.New("token authority has no private key")
	}
	claims := jwt.MapClaims{
		"sub": userID,
	}
	if ta.ttl > 0 {
		claims["exp"] = time.Now().Add(ta.ttl).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(ta.privateKey)
}

// AuthenticateJWT verifies a JWT string, returns the subject if valid, else an error.
// Tokens minted elsewhere may carry the id in "user_id" instead of "sub".
func (ta *TokenAuthority) AuthenticateJWT(tokenString string) (string, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ta.publicKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid jwt claims")
	}

	if userID, ok := claims["sub"].(string); ok && userID != "" {
		return userID, nil
	}
	if userID, ok := claims["user_id"].(string); ok && userID != "" {
		return userID, nil
	}
	return "", fmt.Errorf("missing sub in jwt")
}
