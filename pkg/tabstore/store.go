// Package tabstore persists per-conversation browser tab state.
//
// The store is two-layered: durable SQLite rows holding the persisted form
// (which never includes physical indices) and an in-process runtime cache
// holding the full form. Within one process run GetOrLoad returns the cached
// runtime state, indices included; after a restart the state comes back from
// disk with every index reset, forcing reconciliation to re-derive the
// physical layout.
package tabstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/harun/tabgate/internal/observability"
	"github.com/harun/tabgate/pkg/tabstate"
)

type stateKey struct {
	agentID        string
	userID         string
	conversationID string
}

// Store is the durable owner of conversation tab state between
// reconciliation passes.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger

	mu    sync.Mutex
	cache map[stateKey]tabstate.BrowserState
}

// Config holds store configuration.
type Config struct {
	// Path is the SQLite database file, or ":memory:" for tests.
	Path   string
	Logger zerolog.Logger
}

// New opens (and migrates) the tab state database.
func New(cfg Config) (*Store, error) {
	observability.EnsureRegistered()

	if cfg.Path == "" {
		return nil, errors.New("database path is required")
	}

	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL for concurrent readers during reconciliation passes
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{
		db:     db,
		logger: cfg.Logger,
		cache:  make(map[stateKey]tabstate.BrowserState),
	}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS browser_tab_state (
	agent_id        TEXT NOT NULL,
	user_id         TEXT NOT NULL,
	conversation_id TEXT NOT NULL,
	state           TEXT NOT NULL,
	updated_at      TIMESTAMP NOT NULL,
	PRIMARY KEY (agent_id, user_id, conversation_id)
);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// GetOrLoad returns the conversation's runtime state, or nil when none
// exists. A cached state keeps its physical indices; one loaded from disk has
// them all reset to None.
func (s *Store) GetOrLoad(ctx context.Context, agentID, userID, conversationID string) (*tabstate.BrowserState, error) {
	key := stateKey{agentID, userID, conversationID}

	s.mu.Lock()
	if cached, ok := s.cache[key]; ok {
		s.mu.Unlock()
		observability.RecordStoreOp("load", true)
		out := cached.Clone()
		return &out, nil
	}
	s.mu.Unlock()

	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM browser_tab_state WHERE agent_id = ? AND user_id = ? AND conversation_id = ?`,
		agentID, userID, conversationID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		observability.RecordStoreOp("load", true)
		return nil, nil
	}
	if err != nil {
		observability.RecordStoreOp("load", false)
		return nil, fmt.Errorf("failed to load tab state: %w", err)
	}

	var persisted tabstate.PersistedBrowserState
	if err := json.Unmarshal([]byte(raw), &persisted); err != nil {
		observability.RecordStoreOp("load", false)
		return nil, fmt.Errorf("failed to decode tab state: %w", err)
	}

	state := tabstate.ToRuntime(persisted)
	s.mu.Lock()
	s.cache[key] = state.Clone()
	s.mu.Unlock()

	observability.RecordStoreOp("load", true)
	return &state, nil
}

// Set writes a conversation's state: the persisted form to disk, the full
// runtime form to the cache.
func (s *Store) Set(ctx context.Context, agentID, userID, conversationID string, state tabstate.BrowserState) error {
	raw, err := json.Marshal(tabstate.ToPersisted(state))
	if err != nil {
		observability.RecordStoreOp("set", false)
		return fmt.Errorf("failed to encode tab state: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO browser_tab_state (agent_id, user_id, conversation_id, state, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (agent_id, user_id, conversation_id)
		 DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		agentID, userID, conversationID, string(raw), time.Now().UTC(),
	)
	if err != nil {
		observability.RecordStoreOp("set", false)
		return fmt.Errorf("failed to save tab state: %w", err)
	}

	s.mu.Lock()
	s.cache[stateKey{agentID, userID, conversationID}] = state.Clone()
	s.mu.Unlock()

	observability.RecordStoreOp("set", true)
	return nil
}

// Clear removes a conversation's state from disk and cache. Clearing a
// missing row is not an error.
func (s *Store) Clear(ctx context.Context, agentID, userID, conversationID string) error {
	s.mu.Lock()
	delete(s.cache, stateKey{agentID, userID, conversationID})
	s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM browser_tab_state WHERE agent_id = ? AND user_id = ? AND conversation_id = ?`,
		agentID, userID, conversationID,
	)
	if err != nil {
		observability.RecordStoreOp("clear", false)
		return fmt.Errorf("failed to clear tab state: %w", err)
	}
	observability.RecordStoreOp("clear", true)
	return nil
}

// PruneOlderThan deletes state rows untouched for the given age. Called by
// the daemon janitor. The runtime cache is left alone: an active conversation
// refreshes its row on the next persist.
func (s *Store) PruneOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM browser_tab_state WHERE updated_at < ?`,
		time.Now().UTC().Add(-age),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune tab state: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.Debug().Int64("rows", n).Msg("Pruned stale tab state")
	}
	return n, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	s.cache = make(map[stateKey]tabstate.BrowserState)
	s.mu.Unlock()
	return s.db.Close()
}
