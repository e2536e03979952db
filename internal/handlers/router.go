// internal/handlers/router.go
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jason-s-yu/lobbychat/internal/auth"
	"github.com/jason-s-yu/lobbychat/internal/lobby"
	"github.com/jason-s-yu/lobbychat/internal/middleware"
	"github.com/jason-s-yu/lobbychat/internal/moderation"
	"github.com/sirupsen/logrus"
)

// RouterConfig gathers what the HTTP surface needs.
type RouterConfig struct {
	Logger         *logrus.Logger
	Engine         *lobby.Engine
	Resolver       *auth.Resolver
	Moderation     *moderation.Service
	AllowedOrigins []string
}

// NewRouter mounts the lobby socket and the lobby action endpoints.
func NewRouter(cfg RouterConfig) http.Handler {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.Heartbeat("/ping"))
	r.Use(middleware.LogMiddleware(cfg.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/lobby/ws/{lobby_id}", LobbyWSHandler(cfg.Logger, cfg.Engine, origins))
	r.Post("/lobby/{lobby_id}/{action}", LobbyActionHandler(cfg.Logger, cfg.Resolver, cfg.Moderation))
	return r
}
