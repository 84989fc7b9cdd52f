package api

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/bobthearsonist/meeting-coach/pkg/pipeline"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// clientMessage is what connected clients may send: session control plus
// keepalive pings.
type clientMessage struct {
	Type string `json:"type"`
}

type serverMessage struct {
	Type      string `json:"type"`
	Status    string `json:"status,omitempty"`
	Message   string `json:"message,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (h *Handlers) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	h.hub.register(conn)
	defer func() {
		h.hub.unregister(conn)
		conn.Close()
	}()

	h.send(conn, serverMessage{
		Type:    "connection",
		Status:  "connected",
		Message: "Connected to meeting coach",
	})

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}

		switch msg.Type {
		case "ping":
			h.send(conn, serverMessage{Type: "pong"})

		case "start_session":
			id, err := h.manager.StartSession()
			if err != nil {
				h.send(conn, serverMessage{Type: "error", Error: err.Error(), SessionID: id})
				continue
			}
			h.send(conn, serverMessage{Type: "session_started", SessionID: id})

		case "stop_session":
			record, err := h.manager.StopSession()
			if err != nil {
				h.send(conn, serverMessage{Type: "error", Error: err.Error()})
				continue
			}
			h.send(conn, serverMessage{Type: "session_stopped", SessionID: record.ID})

		default:
			h.send(conn, serverMessage{Type: "error", Error: "unknown message type"})
		}
	}
}

func (h *Handlers) send(conn *websocket.Conn, msg serverMessage) {
	h.hub.send(conn, msg)
}

var _ pipeline.Broadcaster = (*Hub)(nil)
