package engine

import "context"

// maybeStartProbe begins a websocket upgrade probe when the transport mode
// allows it, the handshake advertised websocket support, and the engine is
// currently on polling.
func (e *Engine) maybeStartProbe() {
	if e.cfg.TransportMode != Auto {
		return
	}
	if e.state != StateOpenPolling {
		return
	}
	if !e.session.allowsWebSocket() {
		return
	}
	e.state = StateProbing
	go e.dialProbeWebSocket()
}

func (e *Engine) dialProbeWebSocket() {
	u := e.buildWSURL()
	// OnBinary is wired here too even though no binary frame is expected
	// during the probe itself: once the probe succeeds, this same
	// connection is promoted to the authoritative websocket transport and
	// must keep delivering frames through these same closures.
	handler := WSHandler{
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
	conn, err := e.dialer.Dial(context.Background(), u, e.buildHeaders(), handler)
	if err != nil {
		e.queue.Post(func(taskCtx context.Context) {
			e.onProbeFailed(err)
		})
		return
	}
	e.queue.Post(func(taskCtx context.Context) {
		if e.state != StateProbing {
			conn.Close()
			return
		}
		e.probeWS = conn
		e.sendProbePing()
	})
}

func (e *Engine) sendProbePing() {
	e.writeEnginePacket(Packet{Type: Ping, Payload: ProbePayload})
	e.timeouts.Schedule(e.cfg.ProbeTimeout, "probe-timeout", func() {
		e.onProbeTimeout()
	})
}

func (e *Engine) onProbeFrame(text string) {
	p, err := DecodePacket(text)
	if err != nil {
		e.emitError(err)
		return
	}
	if p.Type == Pong && p.Payload == ProbePayload {
		e.completeUpgrade()
	}
	// Anything else during probing is ignored; the probe timeout handles
	// the failure path if the server never answers.
}

func (e *Engine) completeUpgrade() {
	e.timeouts.CancelAllWithIdentifier("probe-timeout")
	// Anything queued via queuePollWrite while Probing hasn't been flushed
	// over the polling transport yet; stopPolling is about to discard
	// e.pollPending, so pull it out first and replay it on the websocket
	// that is about to become authoritative instead of dropping it.
	pending := e.pollPending
	e.pollPending = nil
	e.stopPolling()
	e.ws = e.probeWS
	e.probeWS = nil
	e.state = StateOpenWebSocket
	e.writeEnginePacket(Packet{Type: Upgrade})
	for _, item := range pending {
		e.writeWS(item)
	}
	e.flushBufferedWrites()
}

func (e *Engine) onProbeTimeout() {
	if e.state != StateProbing {
		return
	}
	e.logger.Warn("websocket probe timed out, remaining on polling transport")
	e.abandonProbe()
}

func (e *Engine) onProbeFailed(err error) {
	if e.state != StateProbing {
		return
	}
	e.logger.Warn("websocket probe failed, remaining on polling transport", "error", err)
	e.abandonProbe()
}

func (e *Engine) abandonProbe() {
	e.timeouts.CancelAllWithIdentifier("probe-timeout")
	if e.probeWS != nil {
		e.probeWS.Close()
		e.probeWS = nil
	}
	e.state = StateOpenPolling
}
