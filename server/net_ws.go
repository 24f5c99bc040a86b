package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 5 / 6 // 必须小于 pongWait
)

// ClientConn 负责发送（写）快照帧到观察端的轻量包装
type ClientConn struct {
	ws     *websocket.Conn
	format Format
	send   chan []byte
	once   sync.Once
}

func NewClientConn(ws *websocket.Conn, format Format) *ClientConn {
	return &ClientConn{
		ws:     ws,
		format: format,
		send:   make(chan []byte, 16),
	}
}

// Enqueue 将要发送的帧压入队列（非阻塞，满则丢弃）
func (c *ClientConn) Enqueue(b []byte) {
	select {
	case c.send <- b:
	default:
		// 为了实时性，丢弃帧（防止阻塞服务端周期）
	}
}

// Close 关闭底层连接
func (c *ClientConn) Close() {
	c.once.Do(func() { _ = c.ws.Close() })
}

// writePump 独立协程，负责从 send 队列写出到 WS
// 并按 interval 发送 ping，维持只读观察端的读超时
func (c *ClientConn) writePump(done <-chan struct{}, interval time.Duration) {
	defer c.Close()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	msgType := websocket.TextMessage
	if c.format.Binary() {
		msgType = websocket.BinaryMessage
	}
	for {
		select {
		case <-done:
			return
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(msgType, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// readPump 观察端只读；读循环用于感知断开与处理 pong
func (c *ClientConn) readPump(done chan<- struct{}) {
	defer close(done)
	c.ws.SetReadLimit(1 << 10)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}

// Hub 将每个周期的快照广播给所有观察端，实现 Presenter
type Hub struct {
	mu      sync.RWMutex
	clients map[*ClientConn]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*ClientConn]struct{})}
}

// Present 按各客户端格式编码后入队
func (h *Hub) Present(snap Snapshot) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.clients) == 0 {
		return
	}
	frames := make(map[Format][]byte, 1)
	for c := range h.clients {
		b, ok := frames[c.format]
		if !ok {
			var err error
			b, err = EncodeSnapshot(snap, c.format)
			if err != nil {
				Log.Warnf("encode snapshot (%s): %v", c.format, err)
				continue
			}
			frames[c.format] = b
		}
		c.Enqueue(b)
	}
}

func (h *Hub) add(c *ClientConn) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(c *ClientConn) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// Len 当前观察端数量
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// 演示环境：允许所有来源
		return true
	},
}

// HandleWS 观察端接入：/ws?format=json|msgpack|proto
// 连接建立后立即推送当前快照，之后每个周期一帧
func (a *API) HandleWS(w http.ResponseWriter, r *http.Request) {
	format, err := ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		Log.Warnf("upgrade error: %v", err)
		return
	}

	client := NewClientConn(ws, format)
	if b, err := EncodeSnapshot(a.server.Snapshot(), format); err == nil {
		client.Enqueue(b)
	}
	a.hub.add(client)
	Log.Infof("observer connected: %s format=%s", r.RemoteAddr, format)

	done := make(chan struct{})
	go client.writePump(done, a.pingInterval)
	go func() {
		client.readPump(done)
		a.hub.remove(client)
		client.Close()
		Log.Infof("observer disconnected: %s", r.RemoteAddr)
	}()
}
