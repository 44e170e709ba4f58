package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"pricepoint-intel/internal/domain"
	"pricepoint-intel/internal/observability"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	clientSendSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// AnomalyEvent is pushed to every subscriber after an API call detects anomalies.
type AnomalyEvent struct {
	Type       string           `json:"type"`
	DetectedAt time.Time        `json:"detected_at"`
	Count      int              `json:"count"`
	Anomalies  []map[string]any `json:"anomalies"`
}

type wsClient struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte
}

// Hub fans anomaly events out to websocket clients.
// Slow clients whose buffer is full are dropped.
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]*wsClient
	closed  bool

	metrics *observability.Metrics
	logger  zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger, metrics *observability.Metrics) *Hub {
	return &Hub{
		clients: make(map[uuid.UUID]*wsClient),
		metrics: metrics,
		logger:  logger,
	}
}

// ServeWS upgrades the request and registers the connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &wsClient{
		id:   uuid.New(),
		conn: conn,
		send: make(chan []byte, clientSendSize),
	}
	if !h.register(c) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) register(c *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c.id] = c
	if h.metrics != nil {
		h.metrics.WSClients.Inc()
	}
	h.logger.Debug().Str("client", c.id.String()).Msg("websocket client connected")
	return true
}

// unregister removes c and closes its send channel exactly once.
func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	delete(h.clients, c.id)
	close(c.send)
	if h.metrics != nil {
		h.metrics.WSClients.Dec()
	}
	h.logger.Debug().Str("client", c.id.String()).Msg("websocket client disconnected")
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastAnomalies sends flags to every client. Empty input is not sent.
func (h *Hub) BroadcastAnomalies(flags []domain.AnomalyFlag, at time.Time) {
	if len(flags) == 0 {
		return
	}
	payload, err := json.Marshal(AnomalyEvent{
		Type:       "anomalies",
		DetectedAt: at,
		Count:      len(flags),
		Anomalies:  toMaps(flags),
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("encode anomaly event")
		return
	}
	h.broadcast(payload)
}

func (h *Hub) broadcast(payload []byte) {
	var slow []*wsClient

	h.mu.RLock()
	for _, c := range h.clients {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn().Str("client", c.id.String()).Msg("websocket client too slow, dropping")
		h.unregister(c)
	}
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*wsClient, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.unregister(c)
	}
}

// readPump drains client frames so pongs and close frames are processed.
func (h *Hub) readPump(c *wsClient) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
