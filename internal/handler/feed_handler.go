package handler

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/studyshare/backend/internal/broker"
	"github.com/studyshare/backend/pkg/logger"
	"go.uber.org/zap"
)

const (
	feedWriteWait  = 10 * time.Second // Time allowed to write a message to the peer
	feedPongWait   = 60 * time.Second
	feedPingPeriod = (feedPongWait * 9) / 10
	feedSendBuffer = 32
)

var feedUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // add origin check in production
	},
}

type feedClient struct {
	conn        *websocket.Conn
	username    string
	connectedAt time.Time

	// Events queue here; writeLoop is the connection's only writer.
	send chan broker.Event
}

// FeedHandler streams activity events (uploads, comments) to connected
// clients. Push-only: clients never send application messages, the read
// side exists just to service pong frames and detect disconnects.
type FeedHandler struct {
	events  broker.EventBroker
	clients map[*websocket.Conn]*feedClient
	mu      sync.RWMutex
}

func NewFeedHandler(events broker.EventBroker) *FeedHandler {
	return &FeedHandler{
		events:  events,
		clients: make(map[*websocket.Conn]*feedClient),
	}
}

// Start subscribes to the broker and fans events out to every
// connected client. Call once at startup.
func (h *FeedHandler) Start() error {
	eventChan, err := h.events.Subscribe()
	if err != nil {
		return err
	}

	go func() {
		for event := range eventChan {
			h.broadcast(event)
		}
	}()

	return nil
}

// HandleFeed upgrades an authenticated request to a websocket.
// GET /api/feed
func (h *FeedHandler) HandleFeed(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	conn, err := feedUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Warn("Failed to upgrade feed connection", zap.Error(err))
		return
	}

	client := &feedClient{
		conn:        conn,
		username:    claims.Username,
		connectedAt: time.Now(),
		send:        make(chan broker.Event, feedSendBuffer),
	}

	h.mu.Lock()
	h.clients[conn] = client
	total := len(h.clients)
	h.mu.Unlock()

	logger.Log.Debug("Feed client connected",
		zap.String("username", client.username),
		zap.Int("total", total),
	)

	go h.writeLoop(client)

	defer h.removeClient(conn)

	h.readLoop(client)
}

// readLoop drains the connection so pong frames are processed, and
// returns when the client goes away.
func (h *FeedHandler) readLoop(client *feedClient) {
	client.conn.SetReadLimit(512)
	client.conn.SetReadDeadline(time.Now().Add(feedPongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(feedPongWait))
		return nil
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Log.Debug("Feed read error",
					zap.String("username", client.username),
					zap.Error(err),
				)
			}
			return
		}
		// Ignore anything the client sends; the feed is one-way.
	}
}

// writeLoop is the single writer for one connection: it drains the send
// queue and owns the ping ticker. Events and pings funneling through
// one goroutine keeps concurrent writes off the conn, which gorilla
// forbids.
func (h *FeedHandler) writeLoop(client *feedClient) {
	ticker := time.NewTicker(feedPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if !ok {
				// removeClient closed the queue; say goodbye properly.
				client.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := client.conn.WriteJSON(event); err != nil {
				logger.Log.Debug("Failed to push feed event",
					zap.String("username", client.username),
					zap.Error(err),
				)
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// broadcast queues an event for every connected client. Never blocks:
// a client whose buffer is full is lagging too far behind and loses
// the event instead of stalling the fan-out.
func (h *FeedHandler) broadcast(event broker.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		select {
		case client.send <- event:
		default:
			logger.Log.Debug("Feed client lagging, dropping event",
				zap.String("username", client.username),
			)
		}
	}
}

func (h *FeedHandler) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, exists := h.clients[conn]
	if exists {
		// Delete before close: broadcast only reaches clients in the
		// map, so nothing can send on the queue once it is closed.
		delete(h.clients, conn)
		close(client.send)
		conn.Close()

		logger.Log.Debug("Feed client disconnected",
			zap.String("username", client.username),
			zap.Duration("session", time.Since(client.connectedAt).Round(time.Second)),
			zap.Int("remaining", len(h.clients)),
		)
	}
}
