package cli

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/tabgate/internal/config"
)

func TestPIDFilePath(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = "/var/lib/tabgate"
	assert.Equal(t, filepath.Join("/var/lib/tabgate", "tabgate.pid"), pidFilePath(cfg))

	cfg.DataDir = ""
	assert.Contains(t, pidFilePath(cfg), "tabgate.pid")
}

func TestIsRunning(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing pid file", func(t *testing.T) {
		assert.False(t, isRunning(filepath.Join(dir, "missing.pid")))
	})

	t.Run("garbage pid file", func(t *testing.T) {
		path := filepath.Join(dir, "garbage.pid")
		require.NoError(t, os.WriteFile(path, []byte("not-a-pid"), 0644))
		assert.False(t, isRunning(path))
	})

	t.Run("own pid counts as running", func(t *testing.T) {
		path := filepath.Join(dir, "self.pid")
		require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644))
		assert.True(t, isRunning(path))
	})
}
