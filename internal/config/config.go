package config

import (
	"path/filepath"
	"time"
)

// Config represents the main tabgate configuration
type Config struct {
	// Gateway configuration
	Gateway GatewayConfig `json:"gateway" mapstructure:"gateway"`

	// Browser tool backend
	Browser BrowserConfig `json:"browser" mapstructure:"browser"`

	// Reconciliation engine tunables
	Engine EngineConfig `json:"engine" mapstructure:"engine"`

	// Tab state persistence
	Store StoreConfig `json:"store" mapstructure:"store"`

	// Agents and the browser tools each one exposes
	Agents []AgentConfig `json:"agents" mapstructure:"agents"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// CapabilitiesFile optionally overrides the static agent table with a
	// hot-reloadable JSON file. See CapabilityTable.
	CapabilitiesFile string `json:"capabilities_file" mapstructure:"capabilities_file"`
}

// GatewayConfig holds gateway server configuration
type GatewayConfig struct {
	Port                int    `json:"port" mapstructure:"port"`
	Host                string `json:"host" mapstructure:"host"`
	SharedSecret        string `json:"shared_secret" mapstructure:"shared_secret"`
	TickIntervalSeconds int    `json:"tick_interval_seconds" mapstructure:"tick_interval_seconds"`
}

// BrowserConfig selects and configures the browser tool backend
type BrowserConfig struct {
	// Backend is "local" (rod-driven Chrome) or "mcp" (external MCP server)
	Backend string             `json:"backend" mapstructure:"backend"`
	Local   LocalBrowserConfig `json:"local" mapstructure:"local"`
	MCP     MCPBackendConfig   `json:"mcp" mapstructure:"mcp"`
}

// LocalBrowserConfig configures the rod-driven local Chrome backend
type LocalBrowserConfig struct {
	ControlURL             string `json:"control_url" mapstructure:"control_url"`
	Headless               bool   `json:"headless" mapstructure:"headless"`
	NoSandbox              bool   `json:"no_sandbox" mapstructure:"no_sandbox"`
	ChromePath             string `json:"chrome_path" mapstructure:"chrome_path"`
	UserDataDir            string `json:"user_data_dir" mapstructure:"user_data_dir"`
	NavigateTimeoutSeconds int    `json:"navigate_timeout_seconds" mapstructure:"navigate_timeout_seconds"`
}

// MCPBackendConfig configures the external MCP server backend
type MCPBackendConfig struct {
	Command               string   `json:"command" mapstructure:"command"`
	Args                  []string `json:"args" mapstructure:"args"`
	RequestTimeoutSeconds int      `json:"request_timeout_seconds" mapstructure:"request_timeout_seconds"`
}

// EngineConfig holds reconciliation engine tunables
type EngineConfig struct {
	// CacheTTLMs bounds how long a cached tabs listing stays trustworthy
	CacheTTLMs int `json:"cache_ttl_ms" mapstructure:"cache_ttl_ms"`
}

// CacheTTL returns the configured TTL as a duration
func (e EngineConfig) CacheTTL() time.Duration {
	return time.Duration(e.CacheTTLMs) * time.Millisecond
}

// StoreConfig holds tab state persistence configuration
type StoreConfig struct {
	// Path is the SQLite database file. Defaults to <data_dir>/tabgate.db.
	Path string `json:"path" mapstructure:"path"`
}

// AgentConfig declares which browser tools one agent exposes
type AgentConfig struct {
	ID    string   `json:"id" mapstructure:"id"`
	Tools []string `json:"tools" mapstructure:"tools"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Port:                8090,
			Host:                "127.0.0.1",
			TickIntervalSeconds: 30,
		},
		Browser: BrowserConfig{
			Backend: "local",
			Local: LocalBrowserConfig{
				Headless:               true,
				NavigateTimeoutSeconds: 30,
			},
			MCP: MCPBackendConfig{
				RequestTimeoutSeconds: 10,
			},
		},
		Engine: EngineConfig{
			CacheTTLMs: 3000,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Pretty:    true,
			Redaction: true,
		},
	}
}

// DatabasePath resolves the store path against the data directory
func (c *Config) DatabasePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	return filepath.Join(c.DataDir, "tabgate.db")
}
