package sockio

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/duskport/sockio/internal/codec"
	"github.com/duskport/sockio/internal/engine"
)

// Transport selects which Engine.IO transports the client is allowed to
// use. It re-exports engine.TransportMode so callers never need to import
// the internal package.
type Transport = engine.TransportMode

const (
	Auto          = engine.Auto
	WebSocketOnly = engine.WebSocketOnly
	PollingOnly   = engine.PollingOnly
)

// ProtocolVersion selects the Socket.IO wire revision.
type ProtocolVersion = codec.Version

const (
	V2 = codec.V2
	V3 = codec.V3
	V4 = codec.V4
)

// Config bundles every construction-time option (spec §6's table). Build
// one with New's functional options rather than constructing it directly.
type Config struct {
	URL  string
	Path string

	Namespace string

	Transport       Transport
	ProtocolVersion ProtocolVersion

	ConnectTimeout       time.Duration
	PingIntervalOverride time.Duration
	PingTimeoutOverride  time.Duration

	ReconnectionEnabled   bool
	ReconnectionAttempts  int
	ReconnectionDelay     time.Duration
	ReconnectionDelayMax  time.Duration
	RandomizationFactor   float64

	ExtraHeaders  http.Header
	ConnectParams url.Values

	Auth interface{}

	AllowSelfSigned bool
	ForceNew        bool

	// DefaultAckTimeout applies to Emit calls that supply an ack callback
	// without an explicit timeout.
	DefaultAckTimeout time.Duration

	Logger *slog.Logger

	httpClient engine.HTTPClient
	wsDialer   engine.WebSocketDialer
}

func defaultConfig(serverURL string) Config {
	return Config{
		URL:                  serverURL,
		Path:                 "/socket.io/",
		Namespace:            "/",
		Transport:            Auto,
		ProtocolVersion:      V4,
		ConnectTimeout:       20 * time.Second,
		ReconnectionEnabled:  true,
		ReconnectionAttempts: 0,
		ReconnectionDelay:    1 * time.Second,
		ReconnectionDelayMax: 5 * time.Second,
		RandomizationFactor:  0.5,
		DefaultAckTimeout:    10 * time.Second,
	}
}

// Option mutates a Config at construction time.
type Option func(*Config)

func WithPath(path string) Option {
	return func(c *Config) { c.Path = path }
}

func WithNamespace(namespace string) Option {
	return func(c *Config) { c.Namespace = namespace }
}

func WithTransport(t Transport) Option {
	return func(c *Config) { c.Transport = t }
}

func WithProtocolVersion(v ProtocolVersion) Option {
	return func(c *Config) { c.ProtocolVersion = v }
}

func WithConnectTimeout(d time.Duration) Option {
	return func(c *Config) { c.ConnectTimeout = d }
}

func WithPingIntervalOverride(d time.Duration) Option {
	return func(c *Config) { c.PingIntervalOverride = d }
}

func WithPingTimeoutOverride(d time.Duration) Option {
	return func(c *Config) { c.PingTimeoutOverride = d }
}

func WithReconnection(enabled bool) Option {
	return func(c *Config) { c.ReconnectionEnabled = enabled }
}

func WithReconnectionAttempts(n int) Option {
	return func(c *Config) { c.ReconnectionAttempts = n }
}

func WithReconnectionDelay(d time.Duration) Option {
	return func(c *Config) { c.ReconnectionDelay = d }
}

func WithReconnectionDelayMax(d time.Duration) Option {
	return func(c *Config) { c.ReconnectionDelayMax = d }
}

func WithRandomizationFactor(f float64) Option {
	return func(c *Config) { c.RandomizationFactor = f }
}

func WithExtraHeaders(h http.Header) Option {
	return func(c *Config) { c.ExtraHeaders = h }
}

func WithConnectParams(q url.Values) Option {
	return func(c *Config) { c.ConnectParams = q }
}

func WithAuth(auth interface{}) Option {
	return func(c *Config) { c.Auth = auth }
}

func WithAllowSelfSigned(allow bool) Option {
	return func(c *Config) { c.AllowSelfSigned = allow }
}

func WithForceNew(force bool) Option {
	return func(c *Config) { c.ForceNew = force }
}

func WithDefaultAckTimeout(d time.Duration) Option {
	return func(c *Config) { c.DefaultAckTimeout = d }
}

// WithLogger installs a structured logger; absent this, Client falls back
// to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// WithHTTPClient overrides the HTTP collaborator used for Engine.IO
// polling. Intended for tests.
func WithHTTPClient(client engine.HTTPClient) Option {
	return func(c *Config) { c.httpClient = client }
}

// WithWebSocketDialer overrides the websocket collaborator. Intended for
// tests.
func WithWebSocketDialer(dialer engine.WebSocketDialer) Option {
	return func(c *Config) { c.wsDialer = dialer }
}
