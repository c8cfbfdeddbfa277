package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"
)

// Handle upgrades the request and subscribes it to the topic returned by
// topic. A false second result rejects the request with 401. Cross-origin
// upgrades are refused.
func Handle(hub *Hub, topic func(r *http.Request) (string, bool), onJoin func(topic string), logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, ok := topic(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, nil)
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}
		defer conn.CloseNow()

		client := NewClient(hub, conn, name)
		if onJoin != nil {
			onJoin(name)
		}
		client.Run(r.Context())
	}
}
