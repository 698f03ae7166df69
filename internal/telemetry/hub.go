// Package telemetry pushes live occupancy updates to connected dashboard
// clients over a websocket, one-way broadcast rather than the teacher's
// read-loop ICE-candidate signaling (spec.md §4.9).
//
// Grounded on internal/api/sfu_ws_handlers.go's upgrader configuration
// (buffer sizes, permissive CheckOrigin for a same-origin dashboard);
// the hub itself is this package's own addition since the teacher never
// broadcasts out to a held-open set of connections.
package telemetry

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// OccupancyUpdate is the payload broadcast on every zone-affecting event.
type OccupancyUpdate struct {
	Type                string `json:"type"`
	StreamID            string `json:"stream_id"`
	CameraID            string `json:"camera_id"`
	ZoneID              string `json:"zone_id,omitempty"`
	EventType           string `json:"event_type"`
	EntryCount          int    `json:"entry_count"`
	ExitCount           int    `json:"exit_count"`
	LiveOccupancy       int    `json:"live_occupancy"`
	PersistentOccupancy int    `json:"persistent_occupancy"`
	FrameNumber         int    `json:"frame_number"`
	Timestamp           int64  `json:"ts"`
}

// Hub tracks every live websocket connection and fans a broadcast out to
// all of them. A slow or dead client is dropped rather than allowed to
// stall the rest of the fan-out.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]chan []byte)}
}

// ServeWS upgrades the request and registers the connection until it
// closes or its write queue backs up.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] upgrade failed: %v", err)
		return
	}

	send := make(chan []byte, 16)
	h.mu.Lock()
	h.clients[conn] = send
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	// Drain inbound frames (pings, client close) without acting on them;
	// this connection is broadcast-only from the server's side.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				conn.Close()
				return
			}
		}
	}()

	for msg := range send {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// Broadcast sends update to every connected client. A client whose send
// buffer is full is dropped rather than blocking the broadcast.
func (h *Hub) Broadcast(update OccupancyUpdate) {
	msg, err := json.Marshal(update)
	if err != nil {
		log.Printf("[WS] marshal failed: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, send := range h.clients {
		select {
		case send <- msg:
		default:
			log.Printf("[WS] dropping slow client")
			delete(h.clients, conn)
			close(send)
		}
	}
}

// ClientCount reports the number of currently-registered connections.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
