package api

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/bobthearsonist/meeting-coach/pkg/models"
)

// writeWait bounds how long a single client write may block. A client that
// stops reading fills its TCP buffer eventually; without a deadline that
// write would hold the hub lock and stall every pipeline worker behind it.
const writeWait = 10 * time.Second

// Hub fans analysis updates out to every connected WebSocket client. It
// implements pipeline.Broadcaster. A client that fails a write is dropped;
// delivery guarantees end at the socket.
type Hub struct {
	mu           sync.Mutex
	clients      map[*websocket.Conn]bool
	writeTimeout time.Duration
}

func NewHub() *Hub {
	return &Hub{
		clients:      make(map[*websocket.Conn]bool),
		writeTimeout: writeWait,
	}
}

func (h *Hub) register(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = true
	n := len(h.clients)
	h.mu.Unlock()
	log.WithField("clients", n).Info("websocket client connected")
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	n := len(h.clients)
	h.mu.Unlock()
	log.WithField("clients", n).Info("websocket client disconnected")
}

// HasClients reports whether anyone is listening, for the status endpoint.
func (h *Hub) HasClients() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients) > 0
}

// broadcast writes v as JSON to every client, pruning the ones that fail.
// Writes happen under the hub lock; gorilla connections do not allow
// concurrent writers.
func (h *Hub) broadcast(v interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		if err := conn.WriteJSON(v); err != nil {
			log.WithError(err).Debug("dropping unresponsive websocket client")
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// send writes to one client under the same lock as broadcast, since gorilla
// connections do not allow concurrent writers.
func (h *Hub) send(conn *websocket.Conn, v interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	if err := conn.WriteJSON(v); err != nil {
		log.WithError(err).Debug("websocket send failed")
	}
}

func (h *Hub) BroadcastMeetingUpdate(u models.MeetingUpdate) {
	h.broadcast(u)
}

func (h *Hub) BroadcastTimelineUpdate(u models.TimelineUpdate) {
	h.broadcast(u)
}

func (h *Hub) BroadcastAlert(a models.AlertMessage) {
	h.broadcast(a)
}

func (h *Hub) BroadcastRecordingStatus(s models.RecordingStatus) {
	h.broadcast(s)
}
