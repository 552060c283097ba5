// Package sockioconfig loads sockio.Client settings from a YAML file with
// environment variable overrides, for long-running processes (see
// cmd/sockio-agent) that want a config file instead of wiring
// functional options by hand.
package sockioconfig

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultConfigPath is used when Load is called with an empty path.
const DefaultConfigPath = "/etc/sockio-agent/config.yaml"

// FileConfig mirrors the subset of sockio.Config that makes sense to set
// from a file: connection target, transport policy, and reconnection
// tuning. Translate it to sockio.Options with Options.
type FileConfig struct {
	ServerURL  string `mapstructure:"server_url" yaml:"server_url"`
	Path       string `mapstructure:"path" yaml:"path"`
	Namespace  string `mapstructure:"namespace" yaml:"namespace"`
	Transport  string `mapstructure:"transport" yaml:"transport"` // "auto", "websocket", "polling"
	Protocol   string `mapstructure:"protocol" yaml:"protocol"`   // "v2", "v3", "v4"

	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`

	ReconnectionEnabled  bool          `mapstructure:"reconnection_enabled" yaml:"reconnection_enabled"`
	ReconnectionAttempts int           `mapstructure:"reconnection_attempts" yaml:"reconnection_attempts"`
	ReconnectionDelay    time.Duration `mapstructure:"reconnection_delay" yaml:"reconnection_delay"`
	ReconnectionDelayMax time.Duration `mapstructure:"reconnection_delay_max" yaml:"reconnection_delay_max"`
	RandomizationFactor  float64       `mapstructure:"randomization_factor" yaml:"randomization_factor"`

	AllowSelfSigned bool `mapstructure:"allow_self_signed" yaml:"allow_self_signed"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
}

// Load reads configuration from configPath, falling back to
// DefaultConfigPath if empty, with SOCKIO_-prefixed environment variables
// overriding file values.
func Load(configPath string) (*FileConfig, error) {
	v := viper.New()

	v.SetDefault("path", "/socket.io/")
	v.SetDefault("namespace", "/")
	v.SetDefault("transport", "auto")
	v.SetDefault("protocol", "v4")
	v.SetDefault("connect_timeout", 20*time.Second)
	v.SetDefault("reconnection_enabled", true)
	v.SetDefault("reconnection_attempts", 0)
	v.SetDefault("reconnection_delay", 1*time.Second)
	v.SetDefault("reconnection_delay_max", 5*time.Second)
	v.SetDefault("randomization_factor", 0.5)
	v.SetDefault("log_level", "info")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(DefaultConfigPath)
	}

	v.SetEnvPrefix("SOCKIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	envBindings := map[string]string{
		"server_url":             "SOCKIO_SERVER_URL",
		"path":                   "SOCKIO_PATH",
		"namespace":              "SOCKIO_NAMESPACE",
		"transport":              "SOCKIO_TRANSPORT",
		"protocol":               "SOCKIO_PROTOCOL",
		"connect_timeout":        "SOCKIO_CONNECT_TIMEOUT",
		"reconnection_enabled":   "SOCKIO_RECONNECTION_ENABLED",
		"reconnection_attempts":  "SOCKIO_RECONNECTION_ATTEMPTS",
		"reconnection_delay":     "SOCKIO_RECONNECTION_DELAY",
		"reconnection_delay_max": "SOCKIO_RECONNECTION_DELAY_MAX",
		"randomization_factor":   "SOCKIO_RANDOMIZATION_FACTOR",
		"allow_self_signed":      "SOCKIO_ALLOW_SELF_SIGNED",
		"log_level":              "SOCKIO_LOG_LEVEL",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			// No config file; rely on env vars and defaults.
		} else {
			return nil, fmt.Errorf("sockioconfig: reading config file: %w", err)
		}
	}

	var cfg FileConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("sockioconfig: unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("sockioconfig: validation: %w", err)
	}

	return &cfg, nil
}

// Validate checks that required fields are present and well-formed.
func (c *FileConfig) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url is required")
	}
	switch c.Transport {
	case "auto", "websocket", "polling":
	default:
		return fmt.Errorf("transport must be one of auto, websocket, polling, got %q", c.Transport)
	}
	switch c.Protocol {
	case "v2", "v3", "v4":
	default:
		return fmt.Errorf("protocol must be one of v2, v3, v4, got %q", c.Protocol)
	}
	return nil
}
