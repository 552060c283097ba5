package sockioconfig

import (
	"testing"

	"github.com/duskport/sockio"
)

func TestOptionsTranslatesTransportAndProtocol(t *testing.T) {
	cfg := &FileConfig{
		ServerURL: "https://example.com",
		Path:      "/socket.io/",
		Namespace: "/",
		Transport: "websocket",
		Protocol:  "v2",
	}
	opts, err := cfg.Options()
	if err != nil {
		t.Fatalf("Options: %v", err)
	}

	var applied sockio.Config
	for _, opt := range opts {
		opt(&applied)
	}
	if applied.Transport != sockio.WebSocketOnly {
		t.Errorf("Transport = %v, want WebSocketOnly", applied.Transport)
	}
	if applied.ProtocolVersion != sockio.V2 {
		t.Errorf("ProtocolVersion = %v, want V2", applied.ProtocolVersion)
	}
}

func TestOptionsRejectsEmptyServerURL(t *testing.T) {
	cfg := &FileConfig{Transport: "auto", Protocol: "v4"}
	if _, err := cfg.Options(); err == nil {
		t.Fatal("expected error for empty ServerURL")
	}
}

func TestOptionsDefaultsUnknownTransportToAuto(t *testing.T) {
	cfg := &FileConfig{ServerURL: "https://example.com", Transport: "nonsense", Protocol: "v4"}
	opts, err := cfg.Options()
	if err != nil {
		t.Fatalf("Options: %v", err)
	}
	var applied sockio.Config
	for _, opt := range opts {
		opt(&applied)
	}
	if applied.Transport != sockio.Auto {
		t.Errorf("Transport = %v, want Auto for an unrecognized transport string", applied.Transport)
	}
}
