package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/tabgate/internal/config"
)

func TestRunConfigure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tabgate.json")

	oldCfgFile := cfgFile
	cfgFile = path
	t.Cleanup(func() {
		cfgFile = oldCfgFile
		confPort, confSecret, confBackend, confMCPCommand = 0, "", "", ""
	})

	confPort = 9100
	confSecret = "configure-test-secret"
	confBackend = "mcp"
	confMCPCommand = "browser-mcp"

	require.NoError(t, runConfigure(configureCmd, nil))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Gateway.Port)
	assert.Equal(t, "configure-test-secret", cfg.Gateway.SharedSecret)
	assert.Equal(t, "mcp", cfg.Browser.Backend)
	assert.Equal(t, "browser-mcp", cfg.Browser.MCP.Command)
}

func TestRunConfigure_RejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tabgate.json")

	oldCfgFile := cfgFile
	cfgFile = path
	t.Cleanup(func() {
		cfgFile = oldCfgFile
		confPort, confSecret, confBackend = 0, "", ""
	})

	confBackend = "remote"
	assert.Error(t, runConfigure(configureCmd, nil))
	confBackend = ""

	confSecret = "short"
	assert.Error(t, runConfigure(configureCmd, nil))
}
