package broadcaster

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"transfer-dashboard-backend/internal/channels"
	"transfer-dashboard-backend/internal/live"
	"transfer-dashboard-backend/internal/metrics"
	"transfer-dashboard-backend/internal/utils"
	"transfer-dashboard-backend/models"
)

// Message types pushed to clients
const (
	TypeSnapshot  = "snapshot"
	TypeTransfers = "transfers"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Config holds broadcaster configuration
type Config struct {
	MaxClients int `yaml:"maxClients"` // Maximum clients (default: 1000)
	BufferSize int `yaml:"bufferSize"` // Buffer size per client (default: 256)
}

// DefaultConfig returns default broadcaster configuration
func DefaultConfig() Config {
	return Config{
		MaxClients: 1000,
		BufferSize: utils.ChannelBufferSize("ClientSend", 256),
	}
}

// SnapshotProvider supplies the tallies a client receives on connect
type SnapshotProvider interface {
	Snapshot() live.Snapshot
}

// Client represents a WebSocket client
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Broadcaster manages WebSocket clients and pushes live data to them
type Broadcaster struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
	config     Config
	channels   *channels.Channels
	snapshots  SnapshotProvider
	log        *zap.Logger
}

// NewBroadcaster creates a new broadcaster
func NewBroadcaster(config Config, ch *channels.Channels, snapshots SnapshotProvider) *Broadcaster {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}
	return &Broadcaster{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		done:       make(chan struct{}),
		config:     config,
		channels:   ch,
		snapshots:  snapshots,
		log:        utils.Component(utils.ComponentBroadcaster),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // dashboard is served from other origins
			},
		},
	}
}

// Start begins the broadcaster's main loop
func (b *Broadcaster) Start(ctx context.Context) {
	defer b.shutdown()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-b.register:
			b.handleClientRegistration(client)

		case client := <-b.unregister:
			b.handleClientUnregistration(client)

		case row := <-b.channels.TransferBroadcasts:
			b.broadcast(TypeTransfers, []models.TransferRow{row})

		case snapshot := <-b.channels.SnapshotUpdates:
			if b.GetClientCount() > 0 {
				b.broadcast(TypeSnapshot, snapshot)
			}
		}
	}
}

func (b *Broadcaster) shutdown() {
	close(b.done)
	b.mu.Lock()
	defer b.mu.Unlock()
	for client := range b.clients {
		delete(b.clients, client)
		close(client.send)
		metrics.RecordWSConnection(false)
	}
	b.log.Info("broadcaster stopped")
}

// handleClientRegistration handles new client registration
func (b *Broadcaster) handleClientRegistration(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.clients) >= b.config.MaxClients {
		b.log.Warn("client limit reached, refusing client", zap.String("client", client.id))
		close(client.send)
		client.conn.Close()
		return
	}

	b.clients[client] = true
	metrics.RecordWSConnection(true)
	go client.writePump()

	if b.snapshots != nil {
		if data, err := encode(TypeSnapshot, b.snapshots.Snapshot()); err == nil {
			client.send <- data
			metrics.WSMessagesSent.WithLabelValues(TypeSnapshot).Inc()
		}
	}
	b.log.Debug("client registered", zap.String("client", client.id), zap.Int("clients", len(b.clients)))
}

// handleClientUnregistration handles client disconnection
func (b *Broadcaster) handleClientUnregistration(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.remove(client)
}

func (b *Broadcaster) remove(client *Client) {
	if _, ok := b.clients[client]; ok {
		delete(b.clients, client)
		close(client.send)
		metrics.RecordWSConnection(false)
	}
}

func encode(msgType string, data interface{}) ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"type": msgType,
		"data": data,
	})
}

// broadcast sends one message to every client. Clients whose buffer is full are dropped.
func (b *Broadcaster) broadcast(msgType string, data interface{}) {
	msg, err := encode(msgType, data)
	if err != nil {
		b.log.Error("cannot encode message", zap.String("type", msgType), zap.Error(err))
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for client := range b.clients {
		select {
		case client.send <- msg:
			metrics.WSMessagesSent.WithLabelValues(msgType).Inc()
		default:
			b.log.Warn("dropping slow client", zap.String("client", client.id))
			b.remove(client)
		}
	}
}

// UpgradeConnection upgrades HTTP connection to WebSocket
func (b *Broadcaster) UpgradeConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Debug("upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, b.config.BufferSize),
	}

	select {
	case b.register <- client:
	case <-b.done:
		conn.Close()
		return
	}

	go client.readPump(b.unregister, b.done)
}

// GetClientCount returns the current number of connected clients
func (b *Broadcaster) GetClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
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

// readPump drains the connection so pongs and close frames are processed
func (c *Client) readPump(unregister chan<- *Client, done <-chan struct{}) {
	defer func() {
		select {
		case unregister <- c:
		case <-done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
