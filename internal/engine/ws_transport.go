package engine

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultWebSocketDialer is the gorilla/websocket-backed WebSocketDialer
// used unless a caller supplies its own (e.g. for testing).
type DefaultWebSocketDialer struct {
	HandshakeTimeout time.Duration
}

// NewDefaultWebSocketDialer returns a DefaultWebSocketDialer with the same
// handshake timeout the teacher's signaling dialer uses.
func NewDefaultWebSocketDialer() *DefaultWebSocketDialer {
	return &DefaultWebSocketDialer{HandshakeTimeout: 15 * time.Second}
}

func (d *DefaultWebSocketDialer) Dial(ctx context.Context, url string, headers http.Header, handler WSHandler) (WSConn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: d.HandshakeTimeout}

	conn, _, err := dialer.DialContext(ctx, url, headers)
	if err != nil {
		return nil, fmt.Errorf("sockio/engine: websocket dial failed: %w", err)
	}

	c := &gorillaConn{conn: conn, handler: handler}
	if handler.OnOpen != nil {
		handler.OnOpen(c)
	}
	go c.readLoop()
	return c, nil
}

// gorillaConn adapts a *websocket.Conn to WSConn, running its own read loop
// goroutine that delivers frames to the handler callbacks.
type gorillaConn struct {
	conn    *websocket.Conn
	handler WSHandler
}

func (c *gorillaConn) readLoop() {
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.handler.OnClose != nil {
				c.handler.OnClose(err.Error())
			}
			return
		}
		switch msgType {
		case websocket.TextMessage:
			if c.handler.OnText != nil {
				c.handler.OnText(string(data))
			}
		case websocket.BinaryMessage:
			if c.handler.OnBinary != nil {
				c.handler.OnBinary(data)
			}
		}
	}
}

func (c *gorillaConn) SendText(text string) error {
	return c.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

func (c *gorillaConn) SendBinary(data []byte) error {
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (c *gorillaConn) Close() error {
	return c.conn.Close()
}
