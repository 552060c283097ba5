package sockioconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server_url: https://example.com\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerURL != "https://example.com" {
		t.Errorf("ServerURL = %q", cfg.ServerURL)
	}
	if cfg.Transport != "auto" {
		t.Errorf("Transport default = %q, want auto", cfg.Transport)
	}
	if cfg.Protocol != "v4" {
		t.Errorf("Protocol default = %q, want v4", cfg.Protocol)
	}
	if cfg.ConnectTimeout != 20*time.Second {
		t.Errorf("ConnectTimeout default = %v, want 20s", cfg.ConnectTimeout)
	}
	if !cfg.ReconnectionEnabled {
		t.Error("ReconnectionEnabled default = false, want true")
	}
}

func TestLoadOverridesFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server_url: https://sock.example.com
transport: websocket
protocol: v2
reconnection_attempts: 5
log_level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Transport != "websocket" {
		t.Errorf("Transport = %q, want websocket", cfg.Transport)
	}
	if cfg.Protocol != "v2" {
		t.Errorf("Protocol = %q, want v2", cfg.Protocol)
	}
	if cfg.ReconnectionAttempts != 5 {
		t.Errorf("ReconnectionAttempts = %d, want 5", cfg.ReconnectionAttempts)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoadMissingFileFallsBackToEnvAndDefaults(t *testing.T) {
	t.Setenv("SOCKIO_SERVER_URL", "https://env.example.com")

	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerURL != "https://env.example.com" {
		t.Errorf("ServerURL = %q, want value from SOCKIO_SERVER_URL", cfg.ServerURL)
	}
}

func TestValidateRejectsMissingServerURL(t *testing.T) {
	cfg := &FileConfig{Transport: "auto", Protocol: "v4"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing server_url")
	}
}

func TestValidateRejectsUnknownTransport(t *testing.T) {
	cfg := &FileConfig{ServerURL: "https://example.com", Transport: "carrier-pigeon", Protocol: "v4"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown transport")
	}
}

func TestValidateRejectsUnknownProtocol(t *testing.T) {
	cfg := &FileConfig{ServerURL: "https://example.com", Transport: "auto", Protocol: "v99"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown protocol")
	}
}

func TestValidateAcceptsEveryKnownCombination(t *testing.T) {
	for _, transport := range []string{"auto", "websocket", "polling"} {
		for _, protocol := range []string{"v2", "v3", "v4"} {
			cfg := &FileConfig{ServerURL: "https://example.com", Transport: transport, Protocol: protocol}
			if err := cfg.Validate(); err != nil {
				t.Errorf("Validate(%s,%s): %v", transport, protocol, err)
			}
		}
	}
}
