package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AIxHunter/Watch-Marker/pkg/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // single local user, no cross-origin concerns
	},
}

// WSMessage is the envelope for everything pushed to UI clients.
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client is one connected websocket UI.
type Client struct {
	conn *websocket.Conn
	send chan WSMessage
}

// AddClient registers a new websocket client
func (s *Server) AddClient(client *Client) {
	s.clientsMu.Lock()
	s.clients[client] = true
	s.clientsMu.Unlock()
}

// RemoveClient unregisters a websocket client
func (s *Server) RemoveClient(client *Client) {
	s.clientsMu.Lock()
	delete(s.clients, client)
	s.clientsMu.Unlock()
	close(client.send)
}

// broadcast fans a message out to every connected client, dropping it for
// clients whose buffers are full.
func (s *Server) broadcast(msg WSMessage) {
	s.clientsMu.Lock()
	for client := range s.clients {
		select {
		case client.send <- msg:
		default:
		}
	}
	s.clientsMu.Unlock()
}

// broadcastProgress forwards autosaver events to connected UIs so open
// pages can update progress bars without polling.
func (s *Server) broadcastProgress() {
	for ev := range s.saver.Events() {
		payload, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		s.broadcast(WSMessage{Type: "progress", Payload: payload})
	}
}

// broadcastLogs forwards logger output to connected UIs.
func (s *Server) broadcastLogs() {
	for line := range s.logCh {
		payload, err := json.Marshal(line)
		if err != nil {
			continue
		}
		s.broadcast(WSMessage{Type: "log_entry", Payload: payload})
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debug("WS upgrade failed", "err", err)
		return
	}

	client := &Client{conn: conn, send: make(chan WSMessage, 256)}
	s.AddClient(client)
	defer func() {
		s.RemoveClient(client)
		conn.Close()
	}()

	logger.Debug("WS client connected", "remote", r.RemoteAddr)

	// Send log history up front so a fresh page has context.
	go func() {
		payload, err := json.Marshal(logger.GetHistory())
		if err != nil {
			return
		}
		select {
		case client.send <- WSMessage{Type: "log_history", Payload: payload}:
		default:
		}
	}()

	// Read loop (client -> server): nothing to handle yet, but reading is
	// how we notice the peer going away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logger.Debug("WS read error", "err", err)
				}
				conn.Close()
				return
			}
		}
	}()

	// Write loop (server -> client). The ping tick doubles as dead-peer
	// detection when no events are flowing.
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case msg, ok := <-client.send:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}
