// internal/lobby/connection.go
package lobby

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// LobbyConnection is the outbound half of one user's socket in a lobby.
type LobbyConnection struct {
	ID      uuid.UUID
	LobbyID uuid.UUID
	UserID  uuid.UUID
	OutChan chan Frame

	logger *logrus.Logger
}

func newLobbyConnection(lobbyID, userID uuid.UUID, buffer int, logger *logrus.Logger) *LobbyConnection {
	return &LobbyConnection{
		ID:      uuid.New(),
		LobbyID: lobbyID,
		UserID:  userID,
		OutChan: make(chan Frame, buffer),
		logger:  logger,
	}
}

// Write queues a frame without blocking. If the client is not keeping up the
// frame is dropped and logged.
func (conn *LobbyConnection) Write(msg Frame) bool {
	select {
	case conn.OutChan <- msg:
		return true
	default:
		msgType, _ := msg["type"].(string)
		conn.logger.WithFields(logrus.Fields{
			"lobby_id": conn.LobbyID,
			"user_id":  conn.UserID,
			"conn_id":  conn.ID,
			"type":     msgType,
		}).Warn("outbound buffer full, dropping frame")
		return false
	}
}

// WriteError is a convenience to send an error object.
func (conn *LobbyConnection) WriteError(msg string) bool {
	return conn.Write(errorFrame(msg))
}
