package engine

import (
	"context"
	"net/http"
)

// HTTPClient is the external collaborator the engine uses for Engine.IO
// long-polling. It is synchronous and blocking by design — callers run it
// on its own goroutine and post the result back onto the task queue rather
// than calling it from a task.
type HTTPClient interface {
	Do(ctx context.Context, method, url string, headers http.Header, body []byte) (status int, respHeaders http.Header, respBody []byte, err error)
}

// WSHandler is the set of callbacks a WSConn invokes for inbound events.
// Every callback may be invoked from any goroutine; implementations are
// responsible for re-entering the task queue before touching engine state.
type WSHandler struct {
	// OnOpen is invoked synchronously inside Dial, after the connection is
	// established but before its read loop starts — callers can rely on
	// this running strictly before any OnText/OnBinary delivery for the
	// same conn, which is what lets them record the conn before frames
	// start arriving for it.
	OnOpen   func(WSConn)
	OnText   func(string)
	OnBinary func([]byte)
	OnClose  func(reason string)
	OnError  func(err error)
}

// WSConn is an open websocket channel.
type WSConn interface {
	SendText(text string) error
	SendBinary(data []byte) error
	Close() error
}

// WebSocketDialer is the external collaborator the engine uses to open a
// websocket for the probe/upgrade flow and, once authoritative, for
// framing.
type WebSocketDialer interface {
	Dial(ctx context.Context, url string, headers http.Header, handler WSHandler) (WSConn, error)
}
