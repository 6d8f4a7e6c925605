// Package config loads server configuration from JSON/JSONC files and
// environment variables.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/tidwall/jsonc"
)

// Config is the full server configuration. Durations are expressed in
// seconds in config files and converted through the accessor methods.
type Config struct {
	Host  string `json:"host,omitempty"`
	Port  int    `json:"port,omitempty"`
	Token string `json:"token,omitempty"`

	MaxEventsPerStream int `json:"maxEventsPerStream,omitempty"`
	MaxStreams         int `json:"maxStreams,omitempty"`

	HeartbeatIntervalSeconds int `json:"heartbeatInterval,omitempty"`
	IdleStreamMaxAgeSeconds  int `json:"idleStreamMaxAge,omitempty"`
	PruneIntervalSeconds     int `json:"pruneInterval,omitempty"`

	Log LogConfig `json:"log,omitempty"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level  string `json:"level,omitempty"`
	Pretty bool   `json:"pretty,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Host:                     "127.0.0.1",
		Port:                     8080,
		MaxEventsPerStream:       100,
		MaxStreams:               1000,
		HeartbeatIntervalSeconds: 30,
		IdleStreamMaxAgeSeconds:  3600,
		PruneIntervalSeconds:     300,
		Log:                      LogConfig{Level: "info"},
	}
}

// HeartbeatInterval returns the SSE heartbeat interval.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalSeconds) * time.Second
}

// IdleStreamMaxAge returns the age past which idle event streams are
// pruned.
func (c *Config) IdleStreamMaxAge() time.Duration {
	return time.Duration(c.IdleStreamMaxAgeSeconds) * time.Second
}

// PruneInterval returns how often the idle-stream sweep runs.
func (c *Config) PruneInterval() time.Duration {
	return time.Duration(c.PruneIntervalSeconds) * time.Second
}

// Load loads configuration from multiple sources (priority order):
// 1. Global config (~/.config/collab-mcp/)
// 2. Project config (<directory>/)
// 3. COLLAB_MCP_CONFIG file
// 4. Environment variables
func Load(directory string) (*Config, error) {
	config := Default()

	loaded := make(map[string]bool)
	loadOnce := func(path string) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return
		}
		if loaded[absPath] {
			return
		}
		if loadConfigFile(path, config) == nil {
			loaded[absPath] = true
		}
	}

	if home := os.Getenv("HOME"); home != "" {
		globalDir := filepath.Join(home, ".config", "collab-mcp")
		loadOnce(filepath.Join(globalDir, "collab-mcp.json"))
		loadOnce(filepath.Join(globalDir, "collab-mcp.jsonc"))
	}

	if directory != "" {
		loadOnce(filepath.Join(directory, "collab-mcp.json"))
		loadOnce(filepath.Join(directory, "collab-mcp.jsonc"))
	}

	if configPath := os.Getenv("COLLAB_MCP_CONFIG"); configPath != "" {
		loadOnce(configPath)
	}

	applyEnvOverrides(config)
	return config, nil
}

// loadConfigFile loads a single config file with interpolation support.
func loadConfigFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err // File doesn't exist, skip
	}

	// Strip JSONC comments using tidwall/jsonc
	data = jsonc.ToJSON(data)
	data = interpolate(data)

	var fileConfig Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return err
	}

	mergeConfig(config, &fileConfig)
	return nil
}

// interpolate processes {env:VAR} placeholders.
func interpolate(data []byte) []byte {
	envPattern := regexp.MustCompile(`\{env:([^}]+)\}`)
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := envPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(varName)))
	})
}

// mergeConfig merges source config into target; zero values are skipped.
func mergeConfig(target, source *Config) {
	if source.Host != "" {
		target.Host = source.Host
	}
	if source.Port != 0 {
		target.Port = source.Port
	}
	if source.Token != "" {
		target.Token = source.Token
	}
	if source.MaxEventsPerStream != 0 {
		target.MaxEventsPerStream = source.MaxEventsPerStream
	}
	if source.MaxStreams != 0 {
		target.MaxStreams = source.MaxStreams
	}
	if source.HeartbeatIntervalSeconds != 0 {
		target.HeartbeatIntervalSeconds = source.HeartbeatIntervalSeconds
	}
	if source.IdleStreamMaxAgeSeconds != 0 {
		target.IdleStreamMaxAgeSeconds = source.IdleStreamMaxAgeSeconds
	}
	if source.PruneIntervalSeconds != 0 {
		target.PruneIntervalSeconds = source.PruneIntervalSeconds
	}
	if source.Log.Level != "" {
		target.Log.Level = source.Log.Level
	}
	if source.Log.Pretty {
		target.Log.Pretty = true
	}
}

// applyEnvOverrides applies COLLAB_MCP_* environment overrides, which win
// over every file source.
func applyEnvOverrides(config *Config) {
	if host := os.Getenv("COLLAB_MCP_HOST"); host != "" {
		config.Host = host
	}
	if port := os.Getenv("COLLAB_MCP_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			config.Port = n
		}
	}
	if token := os.Getenv("COLLAB_MCP_TOKEN"); token != "" {
		config.Token = token
	}
	if v := os.Getenv("COLLAB_MCP_MAX_EVENTS_PER_STREAM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.MaxEventsPerStream = n
		}
	}
	if v := os.Getenv("COLLAB_MCP_MAX_STREAMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.MaxStreams = n
		}
	}
	if v := os.Getenv("COLLAB_MCP_HEARTBEAT_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.HeartbeatIntervalSeconds = n
		}
	}
	if v := os.Getenv("COLLAB_MCP_IDLE_STREAM_MAX_AGE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.IdleStreamMaxAgeSeconds = n
		}
	}
	if level := os.Getenv("COLLAB_MCP_LOG_LEVEL"); level != "" {
		config.Log.Level = level
	}
}
