package events

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/yourusername/u2s/internal/core"
	"go.uber.org/zap"
)

const (
	// HubID는 상태 저장소에 등록되는 구독자 ID입니다
	HubID = "websocket-hub"

	writeWait = 10 * time.Second
)

// Hub는 사이클 이벤트를 WebSocket 클라이언트에 전달합니다
type Hub struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader

	clients map[*Client]bool
	mutex   sync.RWMutex

	// 콜백
	snapshot func() core.StatusSnapshot
}

// Client는 WebSocket 클라이언트를 나타냅니다
type Client struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
	logger *zap.Logger
}

// Message는 이벤트 메시지를 나타냅니다
type Message struct {
	Type    string          `json:"type"` // "cycle", "status", "error"
	Payload json.RawMessage `json:"payload,omitempty"`
}

// HubConfig는 이벤트 허브 설정
type HubConfig struct {
	Logger   *zap.Logger
	Snapshot func() core.StatusSnapshot
}

// NewHub는 새로운 이벤트 허브를 생성합니다
func NewHub(config HubConfig) *Hub {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 읽기 전용 피드: 모든 origin 허용
			},
		},
		clients:  make(map[*Client]bool),
		snapshot: config.Snapshot,
	}
}

// HandleWebSocket은 WebSocket 연결을 처리합니다
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection", zap.Error(err))
		return
	}

	clientID := uuid.New().String()
	client := &Client{
		id:     clientID,
		conn:   conn,
		send:   make(chan []byte, 64),
		hub:    h,
		logger: h.logger.With(zap.String("client_id", clientID)),
	}

	h.registerClient(client)

	go client.writePump()
	go client.readPump()

	client.logger.Info("WebSocket client connected",
		zap.String("remote_addr", r.RemoteAddr),
	)
}

// OnCycle broadcasts a finished cycle to every client
func (h *Hub) OnCycle(record core.CycleRecord) {
	data, err := encodeMessage("cycle", record)
	if err != nil {
		h.logger.Error("Failed to marshal cycle event", zap.Error(err))
		return
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			// 느린 클라이언트는 이벤트를 놓침
			client.logger.Warn("Send channel full, dropping cycle event")
		}
	}
}

// GetID returns the subscriber id of the hub
func (h *Hub) GetID() string {
	return HubID
}

// registerClient는 클라이언트를 등록합니다
func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.clients[client] = true

	h.logger.Debug("Client registered",
		zap.String("client_id", client.id),
		zap.Int("total_clients", len(h.clients)),
	)
}

// unregisterClient는 클라이언트를 등록 해제합니다
func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, exists := h.clients[client]; exists {
		delete(h.clients, client)
		close(client.send)

		h.logger.Debug("Client unregistered",
			zap.String("client_id", client.id),
			zap.Int("total_clients", len(h.clients)),
		)
	}
}

// readPump은 클라이언트 요청을 읽고 연결 종료를 감지합니다
func (c *Client) readPump() {
	defer func() {
		c.hub.unregisterClient(c)
		c.conn.Close()
	}()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		c.handleMessage(message)
	}
}

// writePump은 WebSocket으로 메시지를 씁니다
func (c *Client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			c.logger.Debug("Failed to write message", zap.Error(err))
			break
		}
	}
}

// handleMessage는 클라이언트 메시지를 처리합니다
func (c *Client) handleMessage(data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warn("Failed to parse message", zap.Error(err))
		c.sendError("invalid message")
		return
	}

	switch msg.Type {
	case "status":
		c.sendStatus()
	default:
		c.logger.Warn("Unknown message type", zap.String("type", msg.Type))
		c.sendError("unknown message type: " + msg.Type)
	}
}

// sendStatus는 현재 상태 스냅샷을 전송합니다
func (c *Client) sendStatus() {
	if c.hub.snapshot == nil {
		c.sendError("status not available")
		return
	}

	data, err := encodeMessage("status", c.hub.snapshot())
	if err != nil {
		c.logger.Error("Failed to marshal status message", zap.Error(err))
		return
	}
	c.enqueue(data)
}

// sendError는 에러 메시지를 전송합니다
func (c *Client) sendError(errorMsg string) {
	data, err := encodeMessage("error", errorMsg)
	if err != nil {
		c.logger.Error("Failed to marshal error message", zap.Error(err))
		return
	}
	c.enqueue(data)
}

// enqueue는 등록된 클라이언트에만 메시지를 넣습니다
func (c *Client) enqueue(data []byte) {
	c.hub.mutex.RLock()
	defer c.hub.mutex.RUnlock()

	if !c.hub.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
		c.logger.Warn("Send channel full, dropping message")
	}
}

// GetClientCount는 연결된 클라이언트 수를 반환합니다
func (h *Hub) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Close는 모든 클라이언트 연결을 종료합니다
func (h *Hub) Close() {
	h.logger.Info("Closing event hub")

	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.clients {
		client.conn.Close()
		delete(h.clients, client)
		close(client.send)
	}
}

func encodeMessage(msgType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: msgType, Payload: raw})
}
