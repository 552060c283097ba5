package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

func (e *Engine) pollHandshake(ctx context.Context) {
	u := e.buildPollURL()
	headers := e.buildHeaders()
	go func() {
		status, _, body, err := e.http.Do(ctx, http.MethodGet, u, headers, nil)
		e.queue.Post(func(taskCtx context.Context) {
			e.onPollHandshakeResponse(status, body, err)
		})
	}()
}

func (e *Engine) onPollHandshakeResponse(status int, body []byte, err error) {
	if e.state != StateOpening {
		return
	}
	if err != nil {
		e.fail(fmt.Errorf("%w: %v", ErrHandshakeFailed, err))
		return
	}
	if status != http.StatusOK {
		e.fail(fmt.Errorf("%w: status %d", ErrHandshakeFailed, status))
		return
	}
	if perr := e.processPollBatch(body); perr != nil {
		e.fail(fmt.Errorf("%w: %v", ErrHandshakeFailed, perr))
		return
	}
	if e.state == StateOpening {
		e.fail(fmt.Errorf("%w: handshake response carried no open packet", ErrHandshakeFailed))
	}
}

func (e *Engine) dialWebSocketHandshake(ctx context.Context) {
	u := e.buildWSURL()
	handler := e.buildWSHandler()
	_, err := e.dialer.Dial(ctx, u, e.buildHeaders(), handler)
	if err != nil {
		e.queue.Post(func(taskCtx context.Context) {
			e.fail(fmt.Errorf("%w: %v", ErrHandshakeFailed, err))
		})
	}
}

func (e *Engine) buildWSHandler() WSHandler {
	return WSHandler{
		OnOpen: func(conn WSConn) {
			e.queue.Post(func(taskCtx context.Context) {
				if e.ws == nil && e.probeWS == nil {
					e.ws = conn
				}
			})
		},
		OnText: func(text string) {
			e.queue.Post(func(taskCtx context.Context) {
				e.onWSText(text)
			})
		},
		OnBinary: func(data []byte) {
			e.queue.Post(func(taskCtx context.Context) {
				e.onWSBinary(data)
			})
		},
		OnClose: func(reason string) {
			e.queue.Post(func(taskCtx context.Context) {
				e.onWSClosed(reason)
			})
		},
	}
}

func (e *Engine) onOpenPacket(p Packet) {
	if e.state != StateOpening {
		return
	}
	var payload OpenPayload
	if err := json.Unmarshal([]byte(p.Payload), &payload); err != nil {
		e.fail(fmt.Errorf("%w: %v", ErrHandshakeFailed, err))
		return
	}
	if e.connectCancel != nil {
		e.connectCancel()
		e.connectCancel = nil
	}

	session := Session{
		SID:             payload.SID,
		PingInterval:    durationFromMillis(payload.PingInterval),
		PingTimeout:     durationFromMillis(payload.PingTimeout),
		AllowedUpgrades: payload.Upgrades,
	}
	if e.cfg.PingIntervalOverride > 0 {
		session.PingInterval = e.cfg.PingIntervalOverride
	}
	if e.cfg.PingTimeoutOverride > 0 {
		session.PingTimeout = e.cfg.PingTimeoutOverride
	}
	e.session = session

	if e.cfg.TransportMode == WebSocketOnly {
		e.state = StateOpenWebSocket
	} else {
		e.state = StateOpenPolling
		e.startPolling()
	}

	e.startHeartbeat()
	e.flushBufferedWrites()

	if e.handler.OnOpen != nil {
		e.handler.OnOpen(session)
	}

	e.maybeStartProbe()
}
