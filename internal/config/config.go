// Package config handles Courier configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./courier.yaml, ~/.config/courier/courier.yaml,
// /etc/courier/courier.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"courier.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "courier", "courier.yaml"))
	}

	paths = append(paths, "/etc/courier/courier.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Courier configuration.
type Config struct {
	Backend   BackendConfig   `yaml:"backend"`
	Session   SessionConfig   `yaml:"session"`
	Messenger MessengerConfig `yaml:"messenger"`
	DataDir   string          `yaml:"data_dir"`
	LogLevel  string          `yaml:"log_level"`
}

// BackendConfig defines how to reach the agent backend.
type BackendConfig struct {
	// SocketURL is the websocket endpoint for the realtime session
	// (e.g., wss://agent.example.com/session).
	SocketURL string `yaml:"socket_url"`
	// APIURL is the HTTP base URL for the login-token exchange.
	APIURL string `yaml:"api_url"`
}

// SessionConfig tunes the connection lifecycle.
type SessionConfig struct {
	// MaxReconnectAttempts bounds consecutive automatic redials after
	// a transient disconnect. Once exhausted the session is treated as
	// requiring re-authentication (default 5).
	MaxReconnectAttempts int `yaml:"max_reconnect_attempts"`
	// ReconnectDelayMS is the fixed delay between redials (default 3000).
	ReconnectDelayMS int `yaml:"reconnect_delay_ms"`
	// RequestTimeoutMS bounds a single correlated request on the
	// channel (default 30000).
	RequestTimeoutMS int `yaml:"request_timeout_ms"`
	// StreamTimeoutMS bounds a full agent turn, measured from
	// submission (default 60000).
	StreamTimeoutMS int `yaml:"stream_timeout_ms"`
}

// MessengerConfig defines the messaging API collaborator.
type MessengerConfig struct {
	// BaseURL is the HTTP base URL of the messaging API.
	BaseURL string `yaml:"base_url"`
	// Token authenticates Courier to the messaging API.
	Token string `yaml:"token"`
}

// MaxReconnectAttemptsOrDefault returns the configured bound or 5.
func (s SessionConfig) MaxReconnectAttemptsOrDefault() int {
	if s.MaxReconnectAttempts > 0 {
		return s.MaxReconnectAttempts
	}
	return 5
}

// ReconnectDelayOrDefault returns the configured delay or 3 seconds.
func (s SessionConfig) ReconnectDelayOrDefault() time.Duration {
	if s.ReconnectDelayMS > 0 {
		return time.Duration(s.ReconnectDelayMS) * time.Millisecond
	}
	return 3 * time.Second
}

// RequestTimeoutOrDefault returns the configured timeout or 30 seconds.
func (s SessionConfig) RequestTimeoutOrDefault() time.Duration {
	if s.RequestTimeoutMS > 0 {
		return time.Duration(s.RequestTimeoutMS) * time.Millisecond
	}
	return 30 * time.Second
}

// StreamTimeoutOrDefault returns the configured deadline or 60 seconds.
func (s SessionConfig) StreamTimeoutOrDefault() time.Duration {
	if s.StreamTimeoutMS > 0 {
		return time.Duration(s.StreamTimeoutMS) * time.Millisecond
	}
	return 60 * time.Second
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		DataDir: "data",
	}
}
