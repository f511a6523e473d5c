package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/sessionsync/internal/domain/index"
	"github.com/GriffinCanCode/sessionsync/internal/infrastructure/logging"
	"github.com/GriffinCanCode/sessionsync/internal/infrastructure/monitoring"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 16
)

// Message types
const (
	TypeSession  = "session"
	TypeFocus    = "focus"
	TypePing     = "ping"
	TypePong     = "pong"
	TypeSnapshot = "snapshot"
	TypeError    = "error"
)

// Message is the wire format in both directions
type Message struct {
	Type    string          `json:"type"`
	Session *index.Snapshot `json:"session,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Hub fans index snapshots out to websocket clients
type Hub struct {
	index    *index.Index
	upgrader websocket.Upgrader
	logger   *logging.Logger
	metrics  *monitoring.Metrics

	mu      sync.Mutex
	clients map[string]*client
	closed  bool

	unsubscribe func()
	pumps       sync.WaitGroup
}

// NewHub creates a hub subscribed to idx
func NewHub(idx *index.Index) *Hub {
	h := &Hub{
		index: idx,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // the API is CORS-open as well
			},
		},
		logger:  logging.NewNop(),
		clients: make(map[string]*client),
	}
	h.unsubscribe = idx.Subscribe(h.broadcast)
	return h
}

// WithLogger attaches a logger
func (h *Hub) WithLogger(logger *logging.Logger) *Hub {
	if logger != nil {
		h.logger = logger.Named("ws")
	}
	return h
}

// WithMetrics attaches metrics
func (h *Hub) WithMetrics(metrics *monitoring.Metrics) *Hub {
	h.metrics = metrics
	return h
}

// HandleConnection upgrades the request and serves the client until it
// disconnects
func (h *Hub) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	snap := h.index.Current()
	initial, err := encode(snapshotMessage(snap))
	if err != nil {
		h.logger.Error("Failed to encode snapshot", zap.Error(err))
		conn.Close()
		return
	}
	// Queue the snapshot before registering so it precedes any broadcast
	cl.send <- initial

	if !h.register(cl) {
		conn.Close()
		return
	}

	go func() {
		defer h.pumps.Done()
		h.writePump(cl)
	}()
	h.readPump(cl)
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and stops following the index
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for id, cl := range h.clients {
		h.dropLocked(id, cl)
	}
	h.mu.Unlock()

	h.unsubscribe()
	h.pumps.Wait()
}

// broadcast is an index observer. It never blocks: a client whose buffer is
// full is dropped.
func (h *Hub) broadcast(snap index.Snapshot) {
	msg := snapshotMessage(snap)
	data, err := encode(msg)
	if err != nil {
		h.logger.Error("Failed to encode snapshot", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, cl := range h.clients {
		select {
		case cl.send <- data:
			h.metrics.RecordWSMessage("out", msg.Type)
		default:
			h.logger.Warn("Dropping slow WebSocket client", zap.String("client_id", id))
			h.dropLocked(id, cl)
		}
	}
}

func (h *Hub) register(cl *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[cl.id] = cl
	h.pumps.Add(1)
	h.metrics.WSConnected(1)
	h.logger.Debug("WebSocket client connected", zap.String("client_id", cl.id))
	return true
}

func (h *Hub) unregister(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.clients[cl.id]; ok && cur == cl {
		h.dropLocked(cl.id, cl)
	}
}

// dropLocked removes a client and closes its send queue. Callers hold h.mu,
// which makes removal and close a single step.
func (h *Hub) dropLocked(id string, cl *client) {
	delete(h.clients, id)
	close(cl.send)
	h.metrics.WSConnected(-1)
	h.logger.Debug("WebSocket client disconnected", zap.String("client_id", id))
}

func snapshotMessage(snap index.Snapshot) Message {
	msgType := TypeSession
	if snap.Focus {
		msgType = TypeFocus
	}
	return Message{Type: msgType, Session: &snap}
}

func encode(msg Message) ([]byte, error) {
	return sonic.Marshal(msg)
}
