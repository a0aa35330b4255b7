package config

import (
	"fmt"
	"strings"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidatePort validates a TCP port number
func (v *Validator) ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

// ValidateSharedSecret validates the gateway shared secret
func (v *Validator) ValidateSharedSecret(secret string) error {
	if secret == "" {
		return fmt.Errorf("gateway shared secret cannot be empty")
	}
	if len(secret) < 16 {
		return fmt.Errorf("gateway shared secret must be at least 16 characters, got %d", len(secret))
	}
	return nil
}

// ValidateBackend validates the browser backend selection
func (v *Validator) ValidateBackend(backend string) error {
	validBackends := []string{"local", "mcp"}
	for _, valid := range validBackends {
		if backend == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid browser backend: %s (must be one of: %s)", backend, strings.Join(validBackends, ", "))
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateAgent validates one agent entry
func (v *Validator) ValidateAgent(agent AgentConfig) error {
	if strings.TrimSpace(agent.ID) == "" {
		return fmt.Errorf("agent id is required")
	}
	for _, tool := range agent.Tools {
		if strings.TrimSpace(tool) == "" {
			return fmt.Errorf("agent %s: empty tool name", agent.ID)
		}
	}
	return nil
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if err := v.ValidatePort(cfg.Gateway.Port); err != nil {
		errors = append(errors, fmt.Errorf("gateway: %w", err))
	}
	if err := v.ValidateSharedSecret(cfg.Gateway.SharedSecret); err != nil {
		errors = append(errors, fmt.Errorf("gateway: %w", err))
	}
	if cfg.Gateway.TickIntervalSeconds < 0 {
		errors = append(errors, fmt.Errorf("gateway: tick_interval_seconds must be >= 0"))
	}

	if err := v.ValidateBackend(cfg.Browser.Backend); err != nil {
		errors = append(errors, err)
	}
	if cfg.Browser.Backend == "mcp" && strings.TrimSpace(cfg.Browser.MCP.Command) == "" {
		errors = append(errors, fmt.Errorf("browser: mcp backend requires a command"))
	}
	if cfg.Browser.Local.NavigateTimeoutSeconds < 0 {
		errors = append(errors, fmt.Errorf("browser: navigate_timeout_seconds must be >= 0"))
	}

	if cfg.Engine.CacheTTLMs <= 0 {
		errors = append(errors, fmt.Errorf("engine: cache_ttl_ms must be positive"))
	}

	seen := map[string]bool{}
	for i, agent := range cfg.Agents {
		if err := v.ValidateAgent(agent); err != nil {
			errors = append(errors, fmt.Errorf("agent %d: %w", i, err))
			continue
		}
		if seen[agent.ID] {
			errors = append(errors, fmt.Errorf("agent %d: duplicate id %s", i, agent.ID))
		}
		seen[agent.ID] = true
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	return errors
}
