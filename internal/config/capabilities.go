package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/harun/tabgate/pkg/tooladapter"
)

// CapabilityTable maps agent ids to the browser capabilities they expose.
// It is seeded from the static Agents config and, when a capabilities file
// is configured, hot-reloads from it on change. Agents absent from the table
// fall back to the default capability set.
type CapabilityTable struct {
	logger   zerolog.Logger
	filePath string
	fallback tooladapter.Capabilities

	mu     sync.RWMutex
	agents map[string]tooladapter.Capabilities

	watcher  *fsnotify.Watcher
	stopChan chan struct{}
	stopOnce sync.Once
}

// capabilitiesFile is the on-disk shape of the hot-reloadable table.
type capabilitiesFile struct {
	Agents map[string][]string `json:"agents"`
}

// NewCapabilityTable builds a table from the static agent config. fallback
// is returned for agents the table does not know about.
func NewCapabilityTable(agents []AgentConfig, fallback tooladapter.Capabilities, logger zerolog.Logger) *CapabilityTable {
	table := make(map[string]tooladapter.Capabilities, len(agents))
	for _, agent := range agents {
		table[agent.ID] = tooladapter.DetectCapabilities(agent.Tools)
	}
	return &CapabilityTable{
		logger:   logger,
		fallback: fallback,
		agents:   table,
		stopChan: make(chan struct{}),
	}
}

// SetFallback replaces the capability set returned for unknown agents.
// The daemon calls this after tool discovery against an MCP backend.
func (t *CapabilityTable) SetFallback(caps tooladapter.Capabilities) {
	t.mu.Lock()
	t.fallback = caps
	t.mu.Unlock()
}

// Resolve returns the capabilities for one agent
func (t *CapabilityTable) Resolve(agentID string) tooladapter.Capabilities {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if caps, ok := t.agents[agentID]; ok {
		return caps
	}
	return t.fallback
}

// Watch loads the capabilities file and reloads it whenever it changes.
// The watch stops when Close is called.
func (t *CapabilityTable) Watch(path string) error {
	if path == "" {
		return fmt.Errorf("capabilities file path is required")
	}
	t.filePath = path

	if err := t.reload(); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	t.watcher = watcher

	// Watch the directory: editors replace files, which drops a watch on
	// the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return err
	}

	// A single goroutine owns the debounce timer and does the reloads, so a
	// burst of write events coalesces into one reload without racing the
	// timer channel.
	go func() {
		debounce := time.NewTimer(0)
		if !debounce.Stop() {
			<-debounce.C
		}

		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(t.filePath) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					if !debounce.Stop() {
						select {
						case <-debounce.C:
						default:
						}
					}
					debounce.Reset(500 * time.Millisecond)
				}

			case <-debounce.C:
				if err := t.reload(); err != nil {
					t.logger.Error().Err(err).Str("path", t.filePath).Msg("Failed to reload capability table")
				} else {
					t.logger.Info().Str("path", t.filePath).Msg("Capability table reloaded")
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				t.logger.Error().Err(err).Msg("Capability watcher error")

			case <-t.stopChan:
				debounce.Stop()
				return
			}
		}
	}()

	return nil
}

// reload replaces the table contents from the capabilities file. A broken
// file leaves the previous table in place.
func (t *CapabilityTable) reload() error {
	data, err := os.ReadFile(t.filePath)
	if err != nil {
		return fmt.Errorf("failed to read capabilities file: %w", err)
	}

	var file capabilitiesFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse capabilities file: %w", err)
	}

	table := make(map[string]tooladapter.Capabilities, len(file.Agents))
	for agentID, tools := range file.Agents {
		table[agentID] = tooladapter.DetectCapabilities(tools)
	}

	t.mu.Lock()
	t.agents = table
	t.mu.Unlock()
	return nil
}

// Close stops the watcher
func (t *CapabilityTable) Close() error {
	t.stopOnce.Do(func() { close(t.stopChan) })
	if t.watcher != nil {
		return t.watcher.Close()
	}
	return nil
}
