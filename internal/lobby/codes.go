// internal/lobby/codes.go
package lobby

import "github.com/coder/websocket"

// Close codes sent when a session ends for a reason the client cannot fix on
// the same connection.
const (
	StatusUnauthenticated websocket.StatusCode = 4001
	StatusForbidden       websocket.StatusCode = 4003
	StatusLobbyNotFound   websocket.StatusCode = 4004
)
