package handlers

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/floodnet-dev/flood-response-api/models"
)

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Adjust CORS as needed, e.g., check r.Header.Get("Origin")
	},
}

// Store connected dispatch consoles (clientId -> *websocket.Conn)
type NotificationHub struct {
	clients map[string]*websocket.Conn
	mutex   sync.Mutex
}

var hub = &NotificationHub{
	clients: make(map[string]*websocket.Conn),
	mutex:   sync.Mutex{},
}

// HandleEventsWebSocket WebSocket handler for dispatch events
func HandleEventsWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	// Get clientId from query param (replace with JWT/auth middleware in production)
	clientID := r.URL.Query().Get("clientId")
	if clientID == "" {
		conn.Close()
		return
	}

	// Register client
	hub.mutex.Lock()
	hub.clients[clientID] = conn
	hub.mutex.Unlock()
	log.Printf("Client %s connected to /ws/events", clientID)

	// Handle disconnect
	conn.SetCloseHandler(func(code int, text string) error {
		hub.mutex.Lock()
		delete(hub.clients, clientID)
		hub.mutex.Unlock()
		log.Printf("Client %s disconnected from /ws/events", clientID)
		return nil
	})

	// Keep connection alive
	for {
		if _, _, err := conn.NextReader(); err != nil {
			conn.Close()
			break
		}
	}
}

// broadcastStatusEvent pushes an entity status change to all connected consoles
func broadcastStatusEvent(ev models.StatusEvent) {
	broadcastEvent("status_change", ev)
}

// broadcastAssignment pushes a committed assignment to all connected consoles
func broadcastAssignment(res models.AssignmentResult) {
	broadcastEvent("unit_assigned", res)
}

func broadcastEvent(eventType string, data interface{}) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	for clientID, conn := range hub.clients {
		err := conn.WriteJSON(map[string]interface{}{
			"event": eventType,
			"data":  data,
		})
		if err != nil {
			log.Printf("Error broadcasting %s event to client %s: %v", eventType, clientID, err)
			delete(hub.clients, clientID)
			conn.Close()
		}
	}
}
