package engine

import (
	"context"
	"fmt"
	"net/http"
)

func (e *Engine) startPolling() {
	e.pollCtx, e.pollCancel = context.WithCancel(context.Background())
	e.pollRecv()
}

func (e *Engine) stopPolling() {
	if e.pollCancel != nil {
		e.pollCancel()
		e.pollCancel = nil
	}
	e.pollCtx = nil
	e.pollPending = nil
	e.pollFlushing = false
}

// pollRecv issues the next long-poll GET. The response is delivered back
// onto the task queue; pollCtx is captured so a response from a poll loop
// that has since been superseded (e.g. by an upgrade) is discarded.
func (e *Engine) pollRecv() {
	ctx := e.pollCtx
	u := e.buildPollURL()
	headers := e.buildHeaders()
	go func() {
		status, _, body, err := e.http.Do(ctx, http.MethodGet, u, headers, nil)
		e.queue.Post(func(taskCtx context.Context) {
			e.onPollRecv(ctx, status, body, err)
		})
	}()
}

func (e *Engine) onPollRecv(ctx context.Context, status int, body []byte, err error) {
	if ctx != e.pollCtx {
		return
	}
	if e.state != StateOpenPolling && e.state != StateProbing {
		return
	}
	if err != nil {
		e.fail(fmt.Errorf("sockio/engine: poll read failed: %w", err))
		return
	}
	if status != http.StatusOK {
		e.fail(fmt.Errorf("sockio/engine: poll read failed: status %d", status))
		return
	}
	if perr := e.processPollBatch(body); perr != nil {
		e.fail(perr)
		return
	}
	switch e.state {
	case StateOpenPolling, StateProbing:
		e.pollRecv()
	}
}

// processPollBatch decodes body as a polling batch for the configured
// Engine.IO version and dispatches each packet in order. Shared by the
// handshake's first GET and every subsequent long-poll GET.
func (e *Engine) processPollBatch(body []byte) error {
	packets, err := DecodeBatch(string(body), e.cfg.EIOVersion)
	if err != nil {
		return err
	}
	for _, p := range packets {
		e.dispatchEnginePacket(p)
		if e.state == StateClosed {
			return nil
		}
	}
	return nil
}

func (e *Engine) queuePollWrite(item writeItem) {
	e.pollPending = append(e.pollPending, item)
	e.flushPollWrites()
}

func (e *Engine) flushPollWrites() {
	if e.pollFlushing || len(e.pollPending) == 0 {
		return
	}
	if e.pollCtx == nil {
		return
	}
	batch := e.pollPending
	e.pollPending = nil
	e.pollFlushing = true

	packets := make([]Packet, 0, len(batch))
	for _, item := range batch {
		p, err := DecodePacket(item.text)
		if err != nil {
			e.emitError(err)
			continue
		}
		packets = append(packets, p)
		for _, b := range item.binaries {
			packets = append(packets, Packet{Type: Message, Payload: EncodeBinaryForPolling(b)})
		}
	}
	body := EncodeBatch(packets, e.cfg.EIOVersion)

	ctx := e.pollCtx
	u := e.buildPollURL()
	headers := e.buildHeaders()
	go func() {
		status, _, _, err := e.http.Do(ctx, http.MethodPost, u, headers, []byte(body))
		e.queue.Post(func(taskCtx context.Context) {
			e.onPollWriteDone(ctx, status, err)
		})
	}()
}

func (e *Engine) onPollWriteDone(ctx context.Context, status int, err error) {
	e.pollFlushing = false
	if ctx != e.pollCtx {
		return
	}
	if err != nil {
		e.emitError(fmt.Errorf("sockio/engine: poll write failed: %w", err))
	} else if status != http.StatusOK {
		e.emitError(fmt.Errorf("sockio/engine: poll write failed: status %d", status))
	}
	e.flushPollWrites()
}
