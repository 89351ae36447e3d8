package websocket

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/homecal/internal/auth"

	ws "github.com/coder/websocket"
)

// TokenParser verifies a bearer token.
type TokenParser interface {
	Parse(token string) (auth.AuthContext, error)
}

// HandleWebSocket returns an HTTP handler that authenticates the caller,
// upgrades the connection and runs it as a Hub client for the caller's
// household. Browsers cannot set headers on upgrade requests, so the token
// may also be passed as the "token" query parameter.
func HandleWebSocket(hub *Hub, tokens TokenParser, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" {
			raw = r.URL.Query().Get("token")
		}
		ac, err := tokens.Parse(raw)
		if err != nil {
			http.Error(w, "unauthenticated", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // origin checks are done by the CORS layer
		})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}

		client := NewClient(hub, conn, ac.HouseholdID)
		client.Run(r.Context())
	}
}
