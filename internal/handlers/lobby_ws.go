// internal/handlers/lobby_ws.go
package handlers

import (
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jason-s-yu/lobbychat/internal/lobby"
	"github.com/jason-s-yu/lobbychat/internal/middleware"
	"github.com/sirupsen/logrus"
)

// LobbyWSHandler upgrades GET /lobby/ws/{lobby_id} and hands the socket to a
// lobby session. Authentication and admission happen inside the session so
// the client always learns why it was turned away through a close code.
func LobbyWSHandler(logger *logrus.Logger, engine *lobby.Engine, originPatterns []string) http.HandlerFunc {
	originPatterns = originHosts(originPatterns)
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"lobby"},
			OriginPatterns: originPatterns,
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.CloseNow()

		if c.Subprotocol() != "lobby" {
			c.Close(BadSubprotocolError, "client must speak the lobby subprotocol")
			return
		}

		lobbyID, err := uuid.Parse(chi.URLParam(r, "lobby_id"))
		if err != nil {
			c.Close(InvalidLobbyIDError, "invalid lobby_id")
			return
		}

		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)
		err = engine.Serve(r.Context(), c, lobbyID, tokenFromRequest(r))
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, err)
	}
}

// originHosts turns CORS style origins into the host patterns websocket.Accept
// matches against.
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		if i := strings.Index(o, "://"); i >= 0 {
			o = o[i+3:]
		}
		if o = strings.TrimSuffix(o, "/"); o != "" {
			hosts = append(hosts, o)
		}
	}
	if len(hosts) == 0 {
		hosts = []string{"*"}
	}
	return hosts
}
