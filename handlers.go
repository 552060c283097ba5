package sockio

import "context"

// Handle identifies one registered handler so it can be removed later via
// OffByHandle, without affecting other handlers registered for the same
// event.
type Handle uint64

// AckEmitter sends a response back to the server for the event that
// produced it. Calling it more than once sends more than one Ack packet;
// callers that don't want that should guard it themselves.
type AckEmitter func(args ...interface{})

// HandlerFunc receives an event's arguments and, if the server requested an
// acknowledgement, a non-nil AckEmitter to respond with.
type HandlerFunc func(args []interface{}, ack AckEmitter)

// AnyHandlerFunc receives every dispatched event regardless of name.
type AnyHandlerFunc func(event string, args []interface{})

type handlerEntry struct {
	handle Handle
	event  string
	fn     HandlerFunc
	once   bool
}

type anyHandlerEntry struct {
	handle Handle
	fn     AnyHandlerFunc
}

// On registers fn for every future dispatch of event.
func (c *Client) On(event string, fn HandlerFunc) Handle {
	return c.addHandler(event, fn, false)
}

// Once registers fn for exactly the next dispatch of event, then removes
// it.
func (c *Client) Once(event string, fn HandlerFunc) Handle {
	return c.addHandler(event, fn, true)
}

func (c *Client) addHandler(event string, fn HandlerFunc, once bool) Handle {
	result := make(chan Handle, 1)
	c.queue.RunOrPost(context.Background(), func(taskCtx context.Context) {
		c.nextHandle++
		h := c.nextHandle
		c.handlers = append(c.handlers, &handlerEntry{handle: h, event: event, fn: fn, once: once})
		result <- h
	})
	return <-result
}

// Off removes every handler registered for event.
func (c *Client) Off(event string) {
	c.queue.RunOrPost(context.Background(), func(taskCtx context.Context) {
		remaining := c.handlers[:0]
		for _, h := range c.handlers {
			if h.event != event {
				remaining = append(remaining, h)
			}
		}
		c.handlers = remaining
	})
}

// OffByHandle removes exactly the handler identified by handle.
func (c *Client) OffByHandle(handle Handle) {
	c.queue.RunOrPost(context.Background(), func(taskCtx context.Context) {
		remaining := c.handlers[:0]
		for _, h := range c.handlers {
			if h.handle != handle {
				remaining = append(remaining, h)
			}
		}
		c.handlers = remaining
	})
}

// OnAny registers a catch-all handler invoked after event-specific handlers
// on every dispatch.
func (c *Client) OnAny(fn AnyHandlerFunc) Handle {
	result := make(chan Handle, 1)
	c.queue.RunOrPost(context.Background(), func(taskCtx context.Context) {
		c.nextHandle++
		h := c.nextHandle
		c.anyHandlers = append(c.anyHandlers, &anyHandlerEntry{handle: h, fn: fn})
		result <- h
	})
	return <-result
}

// OffAnyByHandle removes exactly the catch-all handler identified by
// handle.
func (c *Client) OffAnyByHandle(handle Handle) {
	c.queue.RunOrPost(context.Background(), func(taskCtx context.Context) {
		remaining := c.anyHandlers[:0]
		for _, h := range c.anyHandlers {
			if h.handle != handle {
				remaining = append(remaining, h)
			}
		}
		c.anyHandlers = remaining
	})
}
