package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"sla-engine/internal/logging"
	"sla-engine/internal/models"
)

// DeliveryHub fans delivery records out to WebSocket subscribers per project.
type DeliveryHub struct {
	connections map[string]map[*websocket.Conn]bool // projectID -> set of connections
	mutex       sync.Mutex
	logger      *logging.Logger
}

func NewDeliveryHub(logger *logging.Logger) *DeliveryHub {
	return &DeliveryHub{
		connections: make(map[string]map[*websocket.Conn]bool),
		logger:      logger,
	}
}

const maxFeedConnections = 10

// AddConnection registers a subscriber for a project's delivery feed. It
// reports false when the project already has the maximum number of
// subscribers; the caller must close the connection in that case.
func (h *DeliveryHub) AddConnection(projectID string, conn *websocket.Conn) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, exists := h.connections[projectID]; !exists {
		h.connections[projectID] = make(map[*websocket.Conn]bool)
	}
	if len(h.connections[projectID]) >= maxFeedConnections {
		h.logger.Warnf("Max delivery feed connections reached for project %s", projectID)
		return false
	}
	h.connections[projectID][conn] = true
	h.logger.Infof("Added delivery feed connection for project %s (total: %d)", projectID, len(h.connections[projectID]))
	return true
}

// RemoveConnection drops a subscriber.
func (h *DeliveryHub) RemoveConnection(projectID string, conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if conns, exists := h.connections[projectID]; exists {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.connections, projectID)
		}
	}
}

// Publish pushes one delivery record to every subscriber of the project.
// Failed connections are dropped.
func (h *DeliveryHub) Publish(projectID string, rec models.NotificationDeliveryRecord) {
	message, err := json.Marshal(rec)
	if err != nil {
		h.logger.Errorf("Marshal delivery record failed: %v", err)
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	conns, exists := h.connections[projectID]
	if !exists {
		return
	}
	for conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			h.logger.Errorf("Failed to push delivery to project %s feed: %v", projectID, err)
			delete(conns, conn)
		}
	}
	if len(conns) == 0 {
		delete(h.connections, projectID)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeDeliveryFeed upgrades the request and keeps the connection registered
// until the client goes away.
func (h *Handler) ServeDeliveryFeed(c *gin.Context) {
	projectID := c.Param("project_id")
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade failed: %v", err)
		return
	}

	if !h.hub.AddConnection(projectID, conn) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "delivery feed connection limit reached"))
		conn.Close()
		return
	}
	defer func() {
		h.hub.RemoveConnection(projectID, conn)
		conn.Close()
	}()

	// drain client frames until the connection drops
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
