package ws

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Dispatcher receives connection lifecycle notifications and inbound frames.
type Dispatcher interface {
	Connect(sessionID string)
	Handle(sessionID string, frame []byte)
	Abort(sessionID string, message string)
	Disconnect(sessionID string)
}

// WebSocketHandler 负责升级连接并把收到的帧交给调度引擎。
type WebSocketHandler struct {
	hub        *Hub
	dispatcher Dispatcher
	readLimit  int64
	logger     *zap.Logger
	upgrader   websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器，readLimit 为单帧最大字节数。
func NewWebSocketHandler(hub *Hub, dispatcher Dispatcher, readLimit int64, logger *zap.Logger) *WebSocketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketHandler{
		hub:        hub,
		dispatcher: dispatcher,
		readLimit:  readLimit,
		logger:     logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// ServeHTTP 处理WebSocket连接，直到对端断开或连接被终止。
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.hub.Stopped() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}

	c, err := h.hub.add(conn)
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(closeWait))
		conn.Close()
		return
	}
	h.logger.Debug("connection opened", zap.String("session", c.id), zap.String("remote", r.RemoteAddr))

	defer func() {
		h.dispatcher.Disconnect(c.id)
		h.hub.remove(c.id)
		h.logger.Debug("connection closed", zap.String("session", c.id))
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	h.dispatcher.Connect(c.id)

	for {
		frame, err := h.readFrame(conn)
		if errors.Is(err, errFrameTooLarge) {
			h.dispatcher.Abort(c.id, "client-sent event is too large")
			return
		}
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				h.logger.Info("read error", zap.String("session", c.id), zap.Error(err))
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		h.dispatcher.Handle(c.id, frame)
	}
}

var errFrameTooLarge = errors.New("frame exceeds read limit")

// readFrame reads one data frame, refusing anything above readLimit.
// SetReadLimit is not used: gorilla would send its own close frame ahead of the error event.
func (h *WebSocketHandler) readFrame(conn *websocket.Conn) ([]byte, error) {
	_, r, err := conn.NextReader()
	if err != nil {
		return nil, err
	}
	if h.readLimit <= 0 {
		return io.ReadAll(r)
	}

	frame, err := io.ReadAll(io.LimitReader(r, h.readLimit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(frame)) > h.readLimit {
		return nil, errFrameTooLarge
	}
	return frame, nil
}
