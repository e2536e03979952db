// internal/handlers/ws_codes.go
package handlers

import "github.com/jason-s-yu/lobbychat/internal/lobby"

// Custom WebSocket close codes used by the lobby socket. The 3xxx codes are
// raised by the handler before a session starts; the 4xxx codes come from the
// session itself.
const (
	BadSubprotocolError = 3000 // Client connected with an unsupported subprotocol.
	InvalidLobbyIDError = 3003 // Lobby ID in the WS URL is not a UUID.

	UnauthenticatedError = lobby.StatusUnauthenticated // 4001
	ForbiddenError       = lobby.StatusForbidden       // 4003
	LobbyNotFoundError   = lobby.StatusLobbyNotFound   // 4004
)
