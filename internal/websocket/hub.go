package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rzzdr/economic-scenario-generator/pkg/models"
	"github.com/rzzdr/economic-scenario-generator/pkg/utils/logger"
)

// ErrHubBusy is returned when the broadcast queue is full
var ErrHubBusy = errors.New("websocket hub broadcast queue is full")

// SubscriberRecorder tracks the number of connected feed clients
type SubscriberRecorder interface {
	SetFeedSubscribers(n int)
}

// Hub fans completed-run events out to every connected client
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	direct     chan directFrame
	done       chan struct{}
	count      atomic.Int64
	recorder   SubscriberRecorder
	log        *logger.Logger

	mu     sync.RWMutex
	latest *models.RunEvent
}

// Client is a middleman between the websocket connection and the hub
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string
}

// directFrame is a frame addressed to a single client
type directFrame struct {
	client *Client
	data   []byte
}

// Message is the envelope for every frame on the feed
type Message struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
	ID    string      `json:"id,omitempty"`
}

const (
	MessageRunCompleted = "run.completed"
	MessagePing         = "ping"
	MessagePong         = "pong"
	MessageLatest       = "latest"
	MessageError        = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

// NewHub creates a run feed hub. recorder may be nil.
func NewHub(recorder SubscriberRecorder) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		direct:     make(chan directFrame, 64),
		done:       make(chan struct{}),
		recorder:   recorder,
		log:        logger.GetLogger("websocket.hub"),
	}
}

// Run owns the client set until ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	h.log.Info("Starting WebSocket hub")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			h.log.Info("WebSocket hub shutting down")
			return

		case client := <-h.register:
			h.clients[client] = true
			h.updateCount()
			h.log.Infof("Client %s registered", client.id)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				h.log.Infof("Client %s unregistered", client.id)
			}

		case r := <-h.direct:
			if _, ok := h.clients[r.client]; !ok {
				continue
			}
			select {
			case r.client.send <- r.data:
			default:
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					h.log.Warnf("Client %s is too slow, disconnecting", client.id)
					h.drop(client)
				}
			}
		}
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	h.updateCount()
}

func (h *Hub) updateCount() {
	n := len(h.clients)
	if h.recorder != nil {
		h.recorder.SetFeedSubscribers(n)
	}
	h.count.Store(int64(n))
}

// ClientCount returns the number of registered clients
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// Latest returns the most recently published run event, if any
func (h *Hub) Latest() *models.RunEvent {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest
}

// PublishRunEvent queues event for every connected client
func (h *Hub) PublishRunEvent(ctx context.Context, event *models.RunEvent) error {
	data, err := json.Marshal(Message{Type: MessageRunCompleted, Data: event})
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.latest = event
	h.mu.Unlock()

	select {
	case h.broadcast <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrHubBusy
	}
}

// HandleWebSocket upgrades the request and registers the connection
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Errorf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
		id:   uuid.NewString(),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump pumps messages from the websocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Errorf("WebSocket error: %v", err)
			}
			break
		}

		c.handleMessage(data)
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.reply(Message{Type: MessageError, Error: "invalid message format"})
		return
	}

	switch msg.Type {
	case MessagePing:
		c.reply(Message{Type: MessagePong, ID: msg.ID})
	case MessageLatest:
		c.reply(Message{Type: MessageLatest, Data: c.hub.Latest(), ID: msg.ID})
	default:
		c.reply(Message{Type: MessageError, Error: "unknown message type", ID: msg.ID})
	}
}

// reply hands a direct response to the hub, which owns c.send. A full
// queue drops the frame; the hub disconnects slow clients on the next
// broadcast.
func (c *Client) reply(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.hub.log.Errorf("Failed to marshal message: %v", err)
		return
	}

	select {
	case c.hub.direct <- directFrame{client: c, data: data}:
	case <-c.hub.done:
	}
}
