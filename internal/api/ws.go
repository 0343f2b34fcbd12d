package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"mympdd/internal/heart"
)

// wsNotification is the on-wire shape for a push event (spec §6 "WebSocket
// notifications omit id and carry {method, params}").
type wsNotification struct {
	Method string         `json:"method"`
	Params map[string]any `json:"params,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans out heart.Event notifications to every connected WebSocket
// client, replacing the teacher's single-subscriber antage/eventsource
// stream (src/api/api.go's htEvents) with a broadcast registry, since
// myMPD's WebSocket carries notifications to an arbitrary number of open
// browser tabs rather than one SSE listener per filter.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: map[*websocket.Conn]struct{}{}}
}

// ServeWS upgrades the connection and registers it until the client
// disconnects. Clients only ever receive; myMPD carries requests over the
// regular JSON-RPC POST endpoint instead of the socket (spec §6).
func (hub *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("api: websocket upgrade failed")
		return
	}

	hub.mu.Lock()
	hub.clients[conn] = struct{}{}
	hub.mu.Unlock()

	defer func() {
		hub.mu.Lock()
		delete(hub.clients, conn)
		hub.mu.Unlock()
		conn.Close()
	}()

	// Drain and discard inbound frames so control frames (pings, client
	// close) are processed; a read error ends the connection.
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

// Broadcast sends one notification to every connected client, dropping any
// client whose write fails or times out.
func (hub *Hub) Broadcast(event heart.Event) {
	payload, err := json.Marshal(wsNotification{Method: event.Method, Params: event.Params})
	if err != nil {
		log.WithError(err).Warn("api: failed to marshal websocket event")
		return
	}

	hub.mu.Lock()
	defer hub.mu.Unlock()
	for conn := range hub.clients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			conn.Close()
			delete(hub.clients, conn)
		}
	}
}

// PumpEvents drains h.Events onto the hub until done is closed; intended
// to run as its own
// goroutine, started by cmd/mympdd alongside Heart.Run (spec §4.1 "emitted
// as WebSocket notifications through C12").
func (hub *Hub) PumpEvents(events interface {
	Shift(timeout time.Duration, id int64) (heart.Event, bool)
}, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
		}
		event, ok := events.Shift(200*time.Millisecond, 0)
		if !ok {
			continue
		}
		hub.Broadcast(event)
	}
}
