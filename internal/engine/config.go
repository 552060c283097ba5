package engine

import (
	"net/http"
	"net/url"
	"time"

	"github.com/duskport/sockio/internal/codec"
)

// TransportMode selects which Engine.IO transports Connect is allowed to
// use.
type TransportMode int

const (
	// Auto starts on polling and upgrades to websocket if the server
	// advertises it.
	Auto TransportMode = iota
	// WebSocketOnly dials a websocket directly for the handshake and never
	// falls back to polling.
	WebSocketOnly
	// PollingOnly never attempts a websocket upgrade.
	PollingOnly
)

// Config bundles the engine's construction-time options. It is immutable
// after NewEngine.
type Config struct {
	// URL is the scheme+host (and optional port) of the Socket.IO server,
	// e.g. "https://example.com".
	URL string

	// Path is the URL path prefix for Engine.IO requests.
	Path string

	TransportMode TransportMode

	// ConnectTimeout bounds the Opening state.
	ConnectTimeout time.Duration

	// PingIntervalOverride and PingTimeoutOverride replace the handshake's
	// values when non-zero.
	PingIntervalOverride time.Duration
	PingTimeoutOverride  time.Duration

	// PongsMissedMax is the number of consecutive missed pongs that fails
	// the heartbeat. Defaults to 2.
	PongsMissedMax int

	// ProbeTimeout bounds the Probing state. Defaults to 5s.
	ProbeTimeout time.Duration

	ExtraHeaders  http.Header
	ConnectParams url.Values

	// ProtocolVersion is the Socket.IO wire revision; it determines the
	// packet codec's framing rules.
	ProtocolVersion codec.Version

	// EIOVersion is the Engine.IO major version (3 or 4) implied by
	// ProtocolVersion: v2 Socket.IO rides Engine.IO 3, v3/v4 Socket.IO
	// rides Engine.IO 4.
	EIOVersion int

	AllowSelfSigned bool
}

// WithDefaults returns a copy of cfg with zero-valued fields replaced by
// their defaults.
func (cfg Config) WithDefaults() Config {
	if cfg.Path == "" {
		cfg.Path = "/socket.io/"
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 20 * time.Second
	}
	if cfg.PongsMissedMax == 0 {
		cfg.PongsMissedMax = 2
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	if cfg.EIOVersion == 0 {
		if cfg.ProtocolVersion == codec.V2 {
			cfg.EIOVersion = 3
		} else {
			cfg.EIOVersion = 4
		}
	}
	return cfg
}

// Session is the (session_id, ping_interval, ping_timeout,
// allowed_upgrades) tuple the server returns in the handshake.
type Session struct {
	SID             string
	PingInterval    time.Duration
	PingTimeout     time.Duration
	AllowedUpgrades []string
}

func (s Session) allowsWebSocket() bool {
	for _, u := range s.AllowedUpgrades {
		if u == "websocket" {
			return true
		}
	}
	return false
}

// Handler is the set of callbacks the engine delivers state changes and
// inbound packets through. Every callback runs on the owning TaskQueue.
type Handler struct {
	OnOpen   func(Session)
	OnPacket func(*codec.Packet)
	OnError  func(error)
	OnClose  func(reason string)
}
