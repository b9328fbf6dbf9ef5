// Package wsock exposes the HTTP handlers behind a listening endpoint: the
// websocket upgrade and the health check.
package wsock

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

// socketHandler upgrades GET requests on the socket path and passes the
// connection to accept.
func (l *listener) socketHandler(accept func(conn *websocket.Conn, r *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. Websocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		conn, err := l.upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("Websocket upgrade failed: %v", err)
			return
		}

		accept(conn, r)
	}
}

// HealthHandler reports that the endpoint is up.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "relaychat endpoint is running!")
}
