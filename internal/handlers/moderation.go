// internal/handlers/moderation.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jason-s-yu/lobbychat/internal/auth"
	"github.com/jason-s-yu/lobbychat/internal/database"
	"github.com/jason-s-yu/lobbychat/internal/moderation"
	"github.com/sirupsen/logrus"
)

type moderationRequest struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason"`
}

type lobbyAction struct {
	needsTarget bool
	message     string
	run         func(ctx context.Context, svc *moderation.Service, lobbyID, actor, target uuid.UUID, reason string) error
}

var lobbyActions = map[string]lobbyAction{
	"join": {message: "Joined lobby successfully", run: func(ctx context.Context, svc *moderation.Service, l, a, _ uuid.UUID, _ string) error {
		return svc.Join(ctx, l, a)
	}},
	"leave": {message: "Left lobby successfully", run: func(ctx context.Context, svc *moderation.Service, l, a, _ uuid.UUID, _ string) error {
		return svc.Leave(ctx, l, a)
	}},
	"start": {message: "Game started", run: func(ctx context.Context, svc *moderation.Service, l, a, _ uuid.UUID, _ string) error {
		return svc.Start(ctx, l, a)
	}},
	"close": {message: "Lobby closed", run: func(ctx context.Context, svc *moderation.Service, l, a, _ uuid.UUID, _ string) error {
		return svc.Close(ctx, l, a)
	}},
	"kick": {needsTarget: true, message: "User kicked", run: func(ctx context.Context, svc *moderation.Service, l, a, t uuid.UUID, reason string) error {
		return svc.Kick(ctx, l, a, t, reason)
	}},
	"ban": {needsTarget: true, message: "User banned", run: func(ctx context.Context, svc *moderation.Service, l, a, t uuid.UUID, reason string) error {
		return svc.Ban(ctx, l, a, t, reason)
	}},
	"unban": {needsTarget: true, message: "User unbanned", run: func(ctx context.Context, svc *moderation.Service, l, a, t uuid.UUID, _ string) error {
		return svc.Unban(ctx, l, a, t)
	}},
	"add_moderator": {needsTarget: true, message: "User promoted to moderator", run: func(ctx context.Context, svc *moderation.Service, l, a, t uuid.UUID, _ string) error {
		return svc.AddModerator(ctx, l, a, t)
	}},
	"remove_moderator": {needsTarget: true, message: "User demoted from moderator", run: func(ctx context.Context, svc *moderation.Service, l, a, t uuid.UUID, _ string) error {
		return svc.RemoveModerator(ctx, l, a, t)
	}},
	"transfer_ownership": {needsTarget: true, message: "Ownership transferred", run: func(ctx context.Context, svc *moderation.Service, l, a, t uuid.UUID, _ string) error {
		return svc.TransferOwnership(ctx, l, a, t)
	}},
}

// LobbyActionHandler serves POST /lobby/{lobby_id}/{action}. The caller is
// identified by bearer token; the target, when the action has one, comes from
// the JSON body.
func LobbyActionHandler(logger *logrus.Logger, resolver *auth.Resolver, svc *moderation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		action, ok := lobbyActions[chi.URLParam(r, "action")]
		if !ok {
			writeError(w, http.StatusNotFound, "unknown lobby action")
			return
		}
		lobbyID, err := uuid.Parse(chi.URLParam(r, "lobby_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid lobby_id")
			return
		}

		actor, err := resolver.Resolve(r.Context(), tokenFromRequest(r))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		var req moderationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "bad request payload")
			return
		}
		var target uuid.UUID
		if action.needsTarget {
			target, err = uuid.Parse(req.UserID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "user_id is required")
				return
			}
		}

		if err := action.run(r.Context(), svc, lobbyID, actor.ID, target, req.Reason); err != nil {
			status := statusFor(err)
			if status >= http.StatusInternalServerError {
				logger.WithFields(logrus.Fields{
					"lobby_id": lobbyID,
					"user_id":  actor.ID,
					"action":   chi.URLParam(r, "action"),
				}).WithError(err).Error("lobby action failed")
				writeError(w, status, "service unavailable")
				return
			}
			writeError(w, status, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": action.message})
	}
}

// statusFor maps service errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, moderation.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, moderation.ErrAlreadyBanned):
		return http.StatusConflict
	case errors.Is(err, moderation.ErrNotMember),
		errors.Is(err, moderation.ErrTargetIsOwner),
		errors.Is(err, moderation.ErrNotBanned),
		errors.Is(err, moderation.ErrNotModerator),
		errors.Is(err, moderation.ErrOwnerCannotLeave),
		errors.Is(err, moderation.ErrAlreadyOwner),
		errors.Is(err, moderation.ErrJoinDenied):
		return http.StatusBadRequest
	}
	return http.StatusServiceUnavailable
}
