package main

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// hub fans binary messages out to every connected websocket client.
type hub struct {
	name     string
	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
	upgrader websocket.Upgrader
	// last message, replayed to clients as they connect
	last []byte
}

func newHub(name string) *hub {
	return &hub{
		name:    name,
		clients: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (h *hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = struct{}{}
	if h.last != nil {
		if err := conn.WriteMessage(websocket.BinaryMessage, h.last); err != nil {
			log.Printf("%s: failed to replay last message: %v", h.name, err)
		}
	}
}

func (h *hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
	conn.Close()
}

func (h *hub) broadcast(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.last = payload
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
			log.Printf("%s: failed to write to client: %v", h.name, err)
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// serve upgrades the request and hands every inbound message to onMessage
// until the client disconnects.
func (h *hub) serve(w http.ResponseWriter, r *http.Request, onMessage func([]byte)) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("%s: websocket upgrade failed: %v", h.name, err)
		return
	}
	h.add(conn)
	defer h.remove(conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("%s: read error: %v", h.name, err)
			}
			return
		}
		if onMessage != nil {
			onMessage(data)
		}
	}
}
