package sockioconfig

import (
	"fmt"

	"github.com/duskport/sockio"
)

// Options translates a FileConfig into sockio.Options ready to pass to
// sockio.New.
func (c *FileConfig) Options() ([]sockio.Option, error) {
	var transport sockio.Transport
	switch c.Transport {
	case "websocket":
		transport = sockio.WebSocketOnly
	case "polling":
		transport = sockio.PollingOnly
	default:
		transport = sockio.Auto
	}

	var version sockio.ProtocolVersion
	switch c.Protocol {
	case "v2":
		version = sockio.V2
	case "v3":
		version = sockio.V3
	default:
		version = sockio.V4
	}

	if c.ServerURL == "" {
		return nil, fmt.Errorf("sockioconfig: server_url is required")
	}

	return []sockio.Option{
		sockio.WithPath(c.Path),
		sockio.WithNamespace(c.Namespace),
		sockio.WithTransport(transport),
		sockio.WithProtocolVersion(version),
		sockio.WithConnectTimeout(c.ConnectTimeout),
		sockio.WithReconnection(c.ReconnectionEnabled),
		sockio.WithReconnectionAttempts(c.ReconnectionAttempts),
		sockio.WithReconnectionDelay(c.ReconnectionDelay),
		sockio.WithReconnectionDelayMax(c.ReconnectionDelayMax),
		sockio.WithRandomizationFactor(c.RandomizationFactor),
		sockio.WithAllowSelfSigned(c.AllowSelfSigned),
	}, nil
}
