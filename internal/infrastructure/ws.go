package infra

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pot-code/course-catalog/internal/infrastructure/logging"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	HandshakeTimeout: 3 * time.Second,
}

var (
	writeWait    = 10 * time.Second
	pongWait     = 30 * time.Second
	pingInterval = pongWait * 9 / 10
)

// WSConn websocket connection safe for concurrent writers
type WSConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// WriteJSON send v as one text frame
func (wc *WSConn) WriteJSON(v interface{}) error {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	wc.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return wc.conn.WriteJSON(v)
}

// ReadJSON read the next frame into v, only one goroutine may read
func (wc *WSConn) ReadJSON(v interface{}) error {
	return wc.conn.ReadJSON(v)
}

// Drain discard incoming frames until the peer goes away, for push only
// streams. The returned channel is closed when reading fails.
func (wc *WSConn) Drain() <-chan struct{} {
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := wc.conn.NextReader(); err != nil {
				return
			}
		}
	}()
	return gone
}

// WSHandler serve one upgraded connection, the connection is closed when it
// returns
type WSHandler func(ctx context.Context, c echo.Context, conn *WSConn) error

// WithHeartbeat wrap handler function with heartbeat probe
func WithHeartbeat(handler WSHandler) echo.HandlerFunc {
	return func(c echo.Context) error {
		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			// the upgrader already wrote the error response
			return nil
		}

		ctx, cancel := context.WithCancel(c.Request().Context())
		defer cancel()
		wc := &WSConn{conn: conn}
		go heartbeatRoutine(ctx, wc)
		processRoutine(ctx, c, wc, handler)
		return nil
	}
}

func heartbeatRoutine(ctx context.Context, wc *WSConn) {
	ticker := time.NewTicker(pingInterval)
	wc.conn.SetReadDeadline(time.Now().Add(pongWait))
	wc.conn.SetPongHandler(func(string) error {
		wc.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := wc.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func processRoutine(ctx context.Context, c echo.Context, wc *WSConn, handler WSHandler) {
	defer wc.conn.Close()
	err := handler(ctx, c, wc)
	if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		logging.ExtractLoggerFromContext(ctx).Debug("websocket closed", zap.Error(err))
	}
	wc.mu.Lock()
	wc.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	wc.mu.Unlock()
}
