package sockio

import (
	"context"

	"github.com/duskport/sockio/internal/codec"
)

// Join switches the client's active namespace: it disconnects the current
// namespace (unless it is "/") and connects the new one. The client is
// single-namespace at a time even though the wire protocol supports
// multiplexing several.
func (c *Client) Join(ctx context.Context, namespace string) {
	c.queue.RunOrPost(ctx, func(taskCtx context.Context) {
		c.doJoin(taskCtx, namespace)
	})
}

// Leave reverts to the default "/" namespace.
func (c *Client) Leave(ctx context.Context) {
	c.queue.RunOrPost(ctx, func(taskCtx context.Context) {
		c.doJoin(taskCtx, "/")
	})
}

func (c *Client) doJoin(ctx context.Context, namespace string) {
	if namespace == "" {
		namespace = "/"
	}
	if namespace == c.namespace {
		return
	}
	if c.namespace != "/" && (c.status == Connected || c.status == Opened) {
		c.sendPacket(ctx, &codec.Packet{Type: codec.Disconnect, Namespace: c.namespace, AckID: codec.NoAck})
	}
	c.namespace = namespace
	if c.status == Connected || c.status == Opened {
		c.setStatus(Opened)
		c.sendConnectPacket(ctx)
	}
}
