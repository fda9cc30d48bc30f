package feed

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// defaultWriteTimeout 限制单个连接的写入时长。
// A client that stops draining its socket must not stall the hub.
const defaultWriteTimeout = 5 * time.Second

// event 是推送给前端的一条实时消息。
type event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Handler 通过 WebSocket 向前端推送新的日记与信件。
// 取代轮询：提交完成后浏览器立即收到新产物。
type Handler struct {
	upgrader     websocket.Upgrader
	writeTimeout time.Duration

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// New 创建实时推送处理器
func New() *Handler {
	return &Handler{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		writeTimeout: defaultWriteTimeout,
		conns:        make(map[*websocket.Conn]struct{}),
	}
}

// RegisterRoutes 注册实时推送路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/feed", h.handleFeed)
}

func (h *Handler) handleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[feed] websocket upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()

	// 前端只接收；读循环仅用于感知连接关闭。
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Broadcast 将事件推送到所有连接，写失败或超时的连接直接移除。
// 每次写入前设置截止时间，慢客户端不能无限期占住 hub。
func (h *Handler) Broadcast(eventType string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.conns {
		_ = conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		if err := conn.WriteJSON(event{Type: eventType, Data: payload}); err != nil {
			log.Printf("[feed] dropping connection after write error: %v", err)
			delete(h.conns, conn)
			_ = conn.Close()
		}
	}
}

func (h *Handler) drop(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[conn]; ok {
		delete(h.conns, conn)
		_ = conn.Close()
	}
}
