package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/erazemk/odpadki/internal/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// WSHandler streams item events to the signed-in user.
type WSHandler struct {
	DB        *sql.DB
	JWTSecret string
	Hub       *events.Hub
}

// Serve handles GET /api/ws?token=. Browsers cannot set headers on websocket
// requests, so the token travels in the query string.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		jsonError(w, http.StatusUnauthorized, "token required")
		return
	}

	claims, err := authenticate(r.Context(), h.JWTSecret, h.DB, token)
	if err != nil {
		jsonError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "user", claims.UserID, "error", err)
		return
	}

	h.Hub.Register(claims.UserID, conn)
	defer h.Hub.Unregister(claims.UserID, conn)

	// Clients only listen; reading keeps control frames flowing and notices
	// when the peer goes away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket closed", "user", claims.UserID, "error", err)
			}
			return
		}
	}
}
