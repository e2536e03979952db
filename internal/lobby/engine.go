// internal/lobby/engine.go
package lobby

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/lobbychat/internal/models"
	"github.com/jason-s-yu/lobbychat/internal/presence"
	"github.com/jason-s-yu/lobbychat/internal/ratelimit"
	"github.com/sirupsen/logrus"
)

// Authenticator resolves connection credentials to a user.
type Authenticator interface {
	Resolve(ctx context.Context, token string) (*models.User, error)
}

// Admission decides who may enter a lobby and who may still post in it.
type Admission interface {
	Admit(ctx context.Context, lobby *models.Lobby, userID uuid.UUID) (bool, string)
	IsMember(ctx context.Context, lobbyID, userID uuid.UUID) bool
}

// Store is the durable store as seen by sessions.
type Store interface {
	GetLobby(ctx context.Context, lobbyID uuid.UUID) (*models.Lobby, error)
	GetUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
	InsertMessage(ctx context.Context, msg *models.Message) error
}

// Options tunes per-session behaviour. Zero values take the defaults below.
type Options struct {
	MaxMessageLength int
	OutboundBuffer   int
	// PresenceRefresh is how often an active session re-arms its presence TTL.
	PresenceRefresh time.Duration
	PingInterval    time.Duration
	WriteTimeout    time.Duration
	ReadLimit       int64
}

const (
	DefaultMaxMessageLength = 2000
	DefaultOutboundBuffer   = 64
	DefaultPingInterval     = 30 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
	DefaultReadLimit        = 32 << 10
)

func (o Options) withDefaults() Options {
	if o.MaxMessageLength <= 0 {
		o.MaxMessageLength = DefaultMaxMessageLength
	}
	if o.OutboundBuffer <= 0 {
		o.OutboundBuffer = DefaultOutboundBuffer
	}
	if o.PresenceRefresh <= 0 {
		o.PresenceRefresh = presence.DefaultTTL / 2
	}
	if o.PingInterval <= 0 {
		o.PingInterval = DefaultPingInterval
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = DefaultReadLimit
	}
	return o
}

// Deps are the collaborators every session shares.
type Deps struct {
	Store    Store
	Auth     Authenticator
	Members  Admission
	Presence presence.Store
	Limiter  ratelimit.Limiter
	Hub      Hub
	Logger   *logrus.Logger
	Options  Options
}

// Engine runs connection sessions against a shared set of collaborators.
type Engine struct {
	store    Store
	auth     Authenticator
	members  Admission
	presence presence.Store
	limiter  ratelimit.Limiter
	hub      Hub
	logger   *logrus.Logger
	opts     Options
}

func NewEngine(d Deps) *Engine {
	logger := d.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Engine{
		store:    d.Store,
		auth:     d.Auth,
		members:  d.Members,
		presence: d.Presence,
		limiter:  d.Limiter,
		hub:      d.Hub,
		logger:   logger,
		opts:     d.Options.withDefaults(),
	}
}

// Hub returns the broadcast hub sessions join.
func (e *Engine) Hub() Hub { return e.hub }
