package engine

// startHeartbeat begins the client-initiated ping/pong liveness cycle once
// a session is open. It is normalized across protocol versions: even
// though older Engine.IO servers ping the client instead, this engine
// always drives the cycle from the client side and merely tolerates a
// server-sent Ping by echoing a Pong (see dispatchEnginePacket).
func (e *Engine) startHeartbeat() {
	e.pongsMissed = 0
	e.sendPing()
}

func (e *Engine) sendPing() {
	e.writeEnginePacket(Packet{Type: Ping})
	e.timeouts.Schedule(e.session.PingTimeout, "ping-deadline", func() {
		e.onPongTimeout()
	})
}

func (e *Engine) onPongReceived() {
	e.timeouts.CancelAllWithIdentifier("ping-deadline")
	e.pongsMissed = 0
	e.timeouts.Schedule(e.session.PingInterval, "ping-interval", func() {
		e.sendPing()
	})
}

func (e *Engine) onPongTimeout() {
	if e.state != StateOpenPolling && e.state != StateProbing && e.state != StateOpenWebSocket {
		return
	}
	e.pongsMissed++
	if e.pongsMissed >= e.cfg.PongsMissedMax {
		e.fail(ErrPingTimeout)
		return
	}
	e.sendPing()
}
