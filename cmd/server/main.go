// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/lobbychat/internal/auth"
	"github.com/jason-s-yu/lobbychat/internal/cache"
	"github.com/jason-s-yu/lobbychat/internal/config"
	"github.com/jason-s-yu/lobbychat/internal/database"
	"github.com/jason-s-yu/lobbychat/internal/handlers"
	"github.com/jason-s-yu/lobbychat/internal/lobby"
	"github.com/jason-s-yu/lobbychat/internal/membership"
	"github.com/jason-s-yu/lobbychat/internal/moderation"
	"github.com/jason-s-yu/lobbychat/internal/presence"
	"github.com/jason-s-yu/lobbychat/internal/ratelimit"
	_ "github.com/joho/godotenv/autoload"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger := logrus.New()
	if err := run(logger); err != nil {
		logger.WithError(err).Fatal("server exited")
	}
}

func run(logger *logrus.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	} else {
		logger.Warnf("unknown LOG_LEVEL %q, using info", cfg.LogLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	store := database.NewStore(pool)

	tokens, err := newTokenAuthority(cfg, logger)
	if err != nil {
		return err
	}
	resolver := auth.NewResolver(tokens, store)

	var rdb *redis.Client
	if cfg.StateBackend == config.BackendRedis || cfg.GroupBackend == config.BackendRedis || cfg.AuditMode == config.AuditQueue {
		rdb, err = cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()
	}

	var (
		pres    presence.Store
		limiter ratelimit.Limiter
	)
	limitOpts := ratelimit.Options{
		Limit:  cfg.RateLimitCount,
		Window: cfg.RateLimitWindow,
		KeyTTL: cfg.RateLimitKeyTTL,
	}
	if cfg.StateBackend == config.BackendRedis {
		pres = presence.NewRedisStore(rdb, cfg.PresenceTTL)
		limiter = ratelimit.NewRedisLimiter(rdb, limitOpts)
	} else {
		pres = presence.NewMemoryStore(cfg.PresenceTTL)
		limiter = ratelimit.NewMemoryLimiter(limitOpts)
	}

	g, gctx := errgroup.WithContext(ctx)

	var hub lobby.Hub
	switch cfg.GroupBackend {
	case config.BackendRedis:
		rh, err := lobby.NewRedisHub(ctx, rdb, logger)
		if err != nil {
			return err
		}
		defer rh.Close()
		g.Go(func() error { return rh.Run(gctx) })
		hub = rh
	case config.BackendNats:
		nc, err := nats.Connect(cfg.NatsURL, nats.Name("lobbychat"), nats.MaxReconnects(-1))
		if err != nil {
			return err
		}
		defer nc.Drain()
		nh, err := lobby.NewNatsHub(nc, logger)
		if err != nil {
			return err
		}
		defer nh.Close()
		hub = nh
	default:
		hub = lobby.NewLocalHub()
	}

	var recorder moderation.EventRecorder = moderation.NewStoreRecorder(store)
	if cfg.AuditMode == config.AuditQueue {
		recorder = cache.NewEventQueue(rdb, cfg.AuditQueueName)
	}

	authority := membership.NewAuthority(store, logger)
	svc := moderation.NewService(store, authority, recorder, moderation.NewPropagator(hub, logger), logger)
	engine := lobby.NewEngine(lobby.Deps{
		Store:    store,
		Auth:     resolver,
		Members:  authority,
		Presence: pres,
		Limiter:  limiter,
		Hub:      hub,
		Logger:   logger,
		Options: lobby.Options{
			MaxMessageLength: cfg.MaxMessageLength,
			OutboundBuffer:   cfg.OutboundBuffer,
			PresenceRefresh:  cfg.PresenceTTL / 2,
		},
	})

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: handlers.NewRouter(handlers.RouterConfig{
			Logger:         logger,
			Engine:         engine,
			Resolver:       resolver,
			Moderation:     svc,
			AllowedOrigins: cfg.AllowedOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return gctx },
	}

	g.Go(func() error {
		logger.WithFields(logrus.Fields{
			"addr":          srv.Addr,
			"state_backend": cfg.StateBackend,
			"group_backend": cfg.GroupBackend,
			"audit_mode":    cfg.AuditMode,
		}).Info("lobby server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newTokenAuthority loads the signing keys when configured and falls back to
// an ephemeral pair, which only suits a single development process.
func newTokenAuthority(cfg *config.Config, logger *logrus.Logger) (*auth.TokenAuthority, error) {
	ttl, err := cfg.TokenTTL()
	if err != nil {
		return nil, err
	}
	if cfg.JWTPublicKeyPath != "" {
		return auth.NewTokenAuthorityFromPath(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, ttl)
	}
	logger.Warn("JWT_PUBLIC_KEY_PATH not set, generating ephemeral signing keys")
	return auth.NewTokenAuthority(ttl)
}
