package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFindConfig_Explicit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	os.WriteFile(path, []byte("data_dir: /tmp/courier\n"), 0600)

	got, err := FindConfig(path)
	if err != nil {
		t.Fatalf("FindConfig(%q) error: %v", path, err)
	}
	if got != path {
		t.Errorf("FindConfig(%q) = %q, want %q", path, got, path)
	}
}

func TestFindConfig_ExplicitMissing(t *testing.T) {
	_, err := FindConfig("/nonexistent/courier.yaml")
	if err == nil {
		t.Fatal("FindConfig with missing explicit path should error")
	}
}

func TestFindConfig_CWD(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "courier.yaml")
	os.WriteFile(path, []byte("data_dir: data\n"), 0600)

	orig, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(orig)

	got, err := FindConfig("")
	if err != nil {
		t.Fatalf("FindConfig(\"\") error: %v", err)
	}
	if got != "courier.yaml" {
		t.Errorf("FindConfig(\"\") = %q, want %q", got, "courier.yaml")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "courier.yaml")
	os.WriteFile(path, []byte(`
backend:
  socket_url: wss://agent.example.com/session
  api_url: https://agent.example.com/api
session:
  max_reconnect_attempts: 3
  reconnect_delay_ms: 500
messenger:
  base_url: https://msg.example.com
  token: secret
log_level: debug
`), 0600)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Backend.SocketURL != "wss://agent.example.com/session" {
		t.Errorf("SocketURL = %q", cfg.Backend.SocketURL)
	}
	if got := cfg.Session.MaxReconnectAttemptsOrDefault(); got != 3 {
		t.Errorf("MaxReconnectAttemptsOrDefault = %d, want 3", got)
	}
	if got := cfg.Session.ReconnectDelayOrDefault(); got != 500*time.Millisecond {
		t.Errorf("ReconnectDelayOrDefault = %v, want 500ms", got)
	}
	if cfg.Messenger.Token != "secret" {
		t.Errorf("Messenger.Token = %q", cfg.Messenger.Token)
	}
}

func TestSessionDefaults(t *testing.T) {
	var s SessionConfig

	if got := s.MaxReconnectAttemptsOrDefault(); got != 5 {
		t.Errorf("MaxReconnectAttemptsOrDefault = %d, want 5", got)
	}
	if got := s.ReconnectDelayOrDefault(); got != 3*time.Second {
		t.Errorf("ReconnectDelayOrDefault = %v, want 3s", got)
	}
	if got := s.RequestTimeoutOrDefault(); got != 30*time.Second {
		t.Errorf("RequestTimeoutOrDefault = %v, want 30s", got)
	}
	if got := s.StreamTimeoutOrDefault(); got != 60*time.Second {
		t.Errorf("StreamTimeoutOrDefault = %v, want 60s", got)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("COURIER_TEST_TOKEN", "from-env")

	dir := t.TempDir()
	path := filepath.Join(dir, "courier.yaml")
	os.WriteFile(path, []byte("messenger:\n  token: $COURIER_TEST_TOKEN\n"), 0600)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Messenger.Token != "from-env" {
		t.Errorf("Messenger.Token = %q, want from-env", cfg.Messenger.Token)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"trace", false},
		{"debug", false},
		{"", false},
		{"info", false},
		{"WARN", false},
		{"error", false},
		{"verbose", true},
	}

	for _, tt := range tests {
		_, err := ParseLogLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLogLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
	}
}
