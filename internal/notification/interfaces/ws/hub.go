// Package ws 通知 WebSocket 推送
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wyfcoding/amlplatform/internal/notification/domain"
	"github.com/wyfcoding/amlplatform/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

// 消息类型
const (
	TypeSubscribe           = "subscribe"
	TypeMarkRead            = "mark_read"
	TypeNotification        = "notification"
	TypeSubscriptionSuccess = "subscription_success"
	TypeMarkedRead          = "notifications_marked_read"
	TypeError               = "error"
)

// GroupHeader 接收组请求头，也可用 group 查询参数
const GroupHeader = "X-Recipient-Group"

// NotificationStore 连接所需的通知读写能力
type NotificationStore interface {
	Pending(ctx context.Context, group string, limit int) ([]*domain.Notification, error)
	MarkRead(ctx context.Context, group string, ids []string) ([]string, error)
}

type inbound struct {
	Type            string   `json:"type"`
	Topics          []string `json:"topics"`
	NotificationIDs []string `json:"notification_ids"`
}

type notificationMessage struct {
	Type         string      `json:"type"`
	Notification domain.View `json:"notification"`
}

type topicsMessage struct {
	Type   string   `json:"type"`
	Topics []string `json:"topics"`
}

type markedMessage struct {
	Type            string   `json:"type"`
	NotificationIDs []string `json:"notification_ids"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Hub 维护在线连接并按接收组或订阅主题推送通知
type Hub struct {
	store            NotificationStore
	defaultGroup     string
	pendingOnConnect int
	upgrader         websocket.Upgrader
	metrics          *metrics.Metrics
	logger           *slog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub 创建推送中心
func NewHub(store NotificationStore, defaultGroup string, pendingOnConnect int, m *metrics.Metrics, logger *slog.Logger) *Hub {
	if pendingOnConnect <= 0 {
		pendingOnConnect = 10
	}
	return &Hub{
		store:            store,
		defaultGroup:     defaultGroup,
		pendingOnConnect: pendingOnConnect,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		metrics: m,
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP 升级为 WebSocket 连接，建立后补发最近的未读通知
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	group := r.URL.Query().Get("group")
	if group == "" {
		group = r.Header.Get(GroupHeader)
	}
	if group == "" {
		group = h.defaultGroup
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		hub:    h,
		conn:   conn,
		group:  group,
		send:   make(chan []byte, sendBuffer),
		topics: make(map[string]struct{}),
	}
	h.register(c)
	go c.writePump()

	ctx := context.WithoutCancel(r.Context())
	pending, err := h.store.Pending(ctx, group, h.pendingOnConnect)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load pending notifications", "recipient_group", group, "error", err)
	}
	for _, n := range pending {
		c.enqueue(notificationMessage{Type: TypeNotification, Notification: n.View()})
	}

	c.readPump(ctx)
}

// Push 推送给同组连接及订阅了该主题或类型的连接，返回送达连接数
func (h *Hub) Push(n *domain.Notification) int {
	data, err := json.Marshal(notificationMessage{Type: TypeNotification, Notification: n.View()})
	if err != nil {
		return 0
	}

	var slow []*client
	delivered := 0
	h.mu.RLock()
	for c := range h.clients {
		if !c.wants(n) {
			continue
		}
		select {
		case c.send <- data:
			delivered++
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("dropping slow websocket client", "recipient_group", c.group)
		h.unregister(c)
	}
	return delivered
}

// Len 在线连接数
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close 断开所有连接
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		h.unregister(c)
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.WSConnections.Inc()
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	if ok && h.metrics != nil {
		h.metrics.WSConnections.Dec()
	}
}

type client struct {
	hub   *Hub
	conn  *websocket.Conn
	group string
	send  chan []byte

	mu     sync.RWMutex
	topics map[string]struct{}
}

func (c *client) wants(n *domain.Notification) bool {
	if n.RecipientGroup == c.group {
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.topics[n.Topic]; ok {
		return true
	}
	_, ok := c.topics[string(n.Type)]
	return ok
}

func (c *client) subscribe(topics []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range topics {
		c.topics[t] = struct{}{}
	}
}

// enqueue 写入发送队列，连接已关闭时忽略
func (c *client) enqueue(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *client) readPump(ctx context.Context) {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.WarnContext(ctx, "websocket closed unexpectedly", "recipient_group", c.group, "error", err)
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			c.enqueue(errorMessage{Type: TypeError, Message: "Invalid message"})
			continue
		}
		c.handle(ctx, msg)
	}
}

func (c *client) handle(ctx context.Context, msg inbound) {
	switch msg.Type {
	case TypeSubscribe:
		topics := msg.Topics
		if topics == nil {
			topics = []string{}
		}
		c.subscribe(topics)
		c.enqueue(topicsMessage{Type: TypeSubscriptionSuccess, Topics: topics})
	case TypeMarkRead:
		ids := msg.NotificationIDs
		if ids == nil {
			ids = []string{}
		}
		marked, err := c.hub.store.MarkRead(ctx, c.group, ids)
		if err != nil {
			c.enqueue(errorMessage{Type: TypeError, Message: "Failed to mark notifications as read"})
			return
		}
		if marked == nil {
			marked = []string{}
		}
		c.enqueue(markedMessage{Type: TypeMarkedRead, NotificationIDs: marked})
	default:
		c.enqueue(errorMessage{Type: TypeError, Message: "Unsupported message type"})
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
