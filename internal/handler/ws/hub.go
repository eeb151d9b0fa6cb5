package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// pongWait 内未收到 pong 视为连接失效。
	pongWait = 60 * time.Second
	// pingPeriod 必须小于 pongWait。
	pingPeriod = 54 * time.Second
	// closeWait bounds the close handshake write.
	closeWait = time.Second
)

var (
	ErrUnknownSession = errors.New("unknown session")
	ErrSessionClosed  = errors.New("session closed")
	ErrQueueFull      = errors.New("send queue full")
	ErrHubStopped     = errors.New("hub stopped")
)

// Hub WebSocket连接管理器，实现引擎所需的 Send/Terminate。
type Hub struct {
	mu        sync.RWMutex
	clients   map[string]*client
	queueSize int
	logger    *zap.Logger
	writers   sync.WaitGroup
	stopped   bool
}

// NewHub 创建连接管理器，每个连接的发送队列长度为 queueSize。
func NewHub(queueSize int, logger *zap.Logger) *Hub {
	if queueSize < 1 {
		queueSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:   make(map[string]*client),
		queueSize: queueSize,
		logger:    logger,
	}
}

// client owns the only writer goroutine of its connection.
type client struct {
	id     string
	conn   *websocket.Conn
	mu     sync.Mutex
	queue  chan []byte
	closed bool
}

// Send 将消息放入连接的发送队列，不会阻塞。
// A full queue terminates the connection: the client is too slow to keep up.
func (h *Hub) Send(sessionID string, payload []byte) error {
	c, ok := h.get(sessionID)
	if !ok {
		return ErrUnknownSession
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrSessionClosed
	}
	select {
	case c.queue <- payload:
		return nil
	default:
		c.closed = true
		close(c.queue)
		h.logger.Warn("send queue overflow, terminating", zap.String("session", sessionID))
		return ErrQueueFull
	}
}

// Terminate 在发送完已排队的消息后关闭连接。
func (h *Hub) Terminate(sessionID string) {
	c, ok := h.get(sessionID)
	if !ok {
		return
	}
	c.close()
}

// Len 返回当前连接数。
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stop refuses new connections. Call it before Wait.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopped = true
}

// Stopped reports whether Stop was called.
func (h *Hub) Stopped() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.stopped
}

// Wait blocks until every connection writer has finished or ctx is done.
func (h *Hub) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.writers.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// add registers conn under a fresh session id and starts its writer.
// Writers are only counted while the hub runs, so Wait never races an Add.
func (h *Hub) add(conn *websocket.Conn) (*client, error) {
	c := &client{
		id:    uuid.NewString(),
		conn:  conn,
		queue: make(chan []byte, h.queueSize),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return nil, ErrHubStopped
	}
	h.clients[c.id] = c
	h.writers.Add(1)

	go h.writeLoop(c)
	return c, nil
}

// remove 移除连接并停止其写协程。
func (h *Hub) remove(sessionID string) {
	h.mu.Lock()
	c, ok := h.clients[sessionID]
	delete(h.clients, sessionID)
	h.mu.Unlock()

	if ok {
		c.close()
	}
}

func (h *Hub) get(sessionID string) (*client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[sessionID]
	return c, ok
}

// writeLoop drains the queue, keeps the connection alive and closes it once the queue is closed.
func (h *Hub) writeLoop(c *client) {
	defer h.writers.Done()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.conn.Close()

	for {
		select {
		case payload, ok := <-c.queue:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(closeWait))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.logger.Debug("write failed", zap.String("session", c.id), zap.Error(err))
				c.close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(closeWait)); err != nil {
				h.logger.Debug("ping failed", zap.String("session", c.id), zap.Error(err))
				c.close()
				return
			}
		}
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.queue)
	}
}
