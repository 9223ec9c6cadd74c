package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Config represents application configuration
type Config struct {
	// ServerURL is the base URL of the agent gateway (ws:// or wss://).
	// The chat endpoint path is appended by the transport layer.
	ServerURL string `json:"server_url"`
	// AuthToken is an optional bearer token passed as a query parameter
	// during the WebSocket handshake.
	AuthToken string `json:"auth_token,omitempty"`

	// HistoryLimit caps how many messages a session keeps on disk.
	HistoryLimit int `json:"history_limit"`

	// ReconnectDelayMs is the initial delay before a reconnect attempt.
	ReconnectDelayMs int `json:"reconnect_delay_ms"`
	// ReconnectMaxDelayMs caps the exponential backoff delay.
	ReconnectMaxDelayMs int `json:"reconnect_max_delay_ms"`

	LogLevel string `json:"log_level"` // debug, info, warn, error, none
	LogPath  string `json:"-"`
	StateDir string `json:"-"`
}

func defaultConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		if appData := strings.TrimSpace(os.Getenv("APPDATA")); appData != "" {
			return filepath.Join(appData, "agentwire")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Roaming", "agentwire")
	default:
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".config", "agentwire")
	}
}

func defaultStateDir() string {
	switch runtime.GOOS {
	case "linux":
		if stateHome := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); stateHome != "" {
			return filepath.Join(stateHome, "agentwire")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".local", "state", "agentwire")
	case "windows":
		if localAppData := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); localAppData != "" {
			return filepath.Join(localAppData, "agentwire")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Local", "agentwire")
	default:
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".config", "agentwire")
	}
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	return filepath.Join(defaultConfigDir(), "config.json")
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	stateDir := defaultStateDir()

	return &Config{
		ServerURL:           "ws://127.0.0.1:8089",
		HistoryLimit:        50,
		ReconnectDelayMs:    1000,
		ReconnectMaxDelayMs: 30000,
		LogLevel:            "info",
		LogPath:             filepath.Join(stateDir, "agentwire.log"),
		StateDir:            stateDir,
	}
}

// Load loads configuration from file. A missing file yields the defaults;
// a present file overrides only the fields it provides.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if config.HistoryLimit <= 0 {
		config.HistoryLimit = 50
	}
	if config.ReconnectDelayMs <= 0 {
		config.ReconnectDelayMs = 1000
	}
	if config.ReconnectMaxDelayMs < config.ReconnectDelayMs {
		config.ReconnectMaxDelayMs = 30000
	}

	return config, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
