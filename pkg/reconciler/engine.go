package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"github.com/harun/tabgate/internal/observability"
	"github.com/harun/tabgate/pkg/tabstate"
	"github.com/harun/tabgate/pkg/tooladapter"
)

// Selector addresses one conversation's logical tab.
type Selector struct {
	AgentID        string
	UserID         string
	ConversationID string
}

func (s Selector) convKey() string {
	return s.AgentID + "\x00" + s.UserID + "\x00" + s.ConversationID
}

// TabResult is the caller-facing outcome of a browser operation.
type TabResult struct {
	Success  bool                 `json:"success"`
	TabIndex tabstate.Option[int] `json:"-"`
	URL      string               `json:"url,omitempty"`
	Shared   bool                 `json:"shared,omitempty"` // single-shared-tab degraded mode
}

// Store is the persistence collaborator. GetOrLoad returns nil on a miss;
// state loaded from durable storage comes back with every physical index
// reset.
type Store interface {
	GetOrLoad(ctx context.Context, agentID, userID, conversationID string) (*tabstate.BrowserState, error)
	Set(ctx context.Context, agentID, userID, conversationID string, state tabstate.BrowserState) error
	Clear(ctx context.Context, agentID, userID, conversationID string) error
}

// CapabilityResolver reports which browser tools an agent exposes.
type CapabilityResolver func(agentID string) tooladapter.Capabilities

// Engine reconciles persisted logical tab state with the live physical tab
// layout of the shared browser. All state (cache, lock table) is instance
// owned; tests run isolated engines side by side.
type Engine struct {
	store  Store
	tools  tooladapter.ToolCaller
	caps   CapabilityResolver
	logger zerolog.Logger

	cache *listCache
	slots *opSlots
}

// DefaultCacheTTL is how long a tabs-list result stays trustworthy enough for
// read-only decisions.
const DefaultCacheTTL = 3 * time.Second

// Config holds engine configuration.
type Config struct {
	Store        Store
	Tools        tooladapter.ToolCaller
	Capabilities CapabilityResolver
	Logger       zerolog.Logger
	CacheTTL     time.Duration
}

// New creates a reconciliation engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Tools == nil {
		return nil, errors.New("tool caller is required")
	}
	if cfg.Capabilities == nil {
		return nil, errors.New("capability resolver is required")
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	observability.EnsureRegistered()

	return &Engine{
		store:  cfg.Store,
		tools:  cfg.Tools,
		caps:   cfg.Capabilities,
		logger: cfg.Logger,
		cache:  newListCache(cfg.CacheTTL),
		slots:  newOpSlots(),
	}, nil
}

// Close releases instance state. Safe to call once outstanding operations
// have settled.
func (e *Engine) Close() {
	e.cache.clear()
}

// Sweep drops expired cache entries; wired to the daemon janitor. Returns the
// number of entries removed.
func (e *Engine) Sweep() int {
	return e.cache.sweep()
}

// PendingOperations reports in-flight per-conversation slots.
func (e *Engine) PendingOperations() int {
	return e.slots.pending()
}

func (e *Engine) cacheKey(sel Selector, toolName string) string {
	return sel.AgentID + "\x00" + sel.UserID + "\x00" + toolName
}

// callTool invokes a capability and folds transport errors and tool-reported
// errors into one typed failure.
func (e *Engine) callTool(ctx context.Context, name, action string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	start := time.Now()
	res, err := e.tools.CallTool(ctx, name, args)
	if err != nil {
		observability.RecordToolCall(action, time.Since(start), false)
		return nil, failf(FailToolCall, action, err)
	}
	if terr := tooladapter.ResultError(name, res); terr != nil {
		observability.RecordToolCall(action, time.Since(start), false)
		return nil, failf(FailToolCall, action, terr)
	}
	observability.RecordToolCall(action, time.Since(start), true)
	return res, nil
}

// callTabs issues a browser_tabs action. Mutating actions eagerly invalidate
// the tabs-list cache for this agent/user.
func (e *Engine) callTabs(ctx context.Context, sel Selector, caps tooladapter.Capabilities, action string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	if args == nil {
		args = map[string]interface{}{}
	}
	args["action"] = action
	res, err := e.callTool(ctx, caps.TabsTool, "tabs_"+action, args)
	if action != "list" {
		e.cache.invalidate(e.cacheKey(sel, caps.TabsTool))
	}
	return res, err
}

// listTabs returns the current physical tab listing. force bypasses the
// cache; every decision that relies on a just-issued mutation sets it.
func (e *Engine) listTabs(ctx context.Context, sel Selector, caps tooladapter.Capabilities, force bool) (tooladapter.TabList, error) {
	key := e.cacheKey(sel, caps.TabsTool)
	if !force {
		if list, ok := e.cache.get(key); ok {
			return list, nil
		}
	}
	res, err := e.callTabs(ctx, sel, caps, "list", nil)
	if err != nil {
		return nil, err
	}
	list := tooladapter.ParseTabList(tooladapter.ResultText(res))
	e.cache.put(key, list)
	return list, nil
}

func (e *Engine) selectIndex(ctx context.Context, sel Selector, caps tooladapter.Capabilities, index int) error {
	_, err := e.callTabs(ctx, sel, caps, "select", map[string]interface{}{"index": index})
	return err
}

func (e *Engine) navigateTo(ctx context.Context, sel Selector, caps tooladapter.Capabilities, url string) error {
	if !caps.HasNavigate() {
		return failf(FailToolUnavailable, "navigate", fmt.Errorf("agent %s exposes no navigate capability", sel.AgentID))
	}
	_, err := e.callTool(ctx, caps.NavigateTool, "navigate", map[string]interface{}{"url": url})
	if err == nil {
		// navigation changes what a cached listing would show
		e.cache.invalidate(e.cacheKey(sel, caps.TabsTool))
	}
	return err
}

func (e *Engine) persist(ctx context.Context, sel Selector, state tabstate.BrowserState) error {
	if err := tabstate.Validate(state); err != nil {
		return failf(FailStateInvariant, "persist", err)
	}
	return e.store.Set(ctx, sel.AgentID, sel.UserID, sel.ConversationID, state)
}

// loadTrusted loads persisted state and validates it. Corrupt state is
// treated as untrustworthy: it is cleared so the next pass derives a fresh
// view from the live tool, and nil is returned.
func (e *Engine) loadTrusted(ctx context.Context, sel Selector) (*tabstate.BrowserState, error) {
	state, err := e.store.GetOrLoad(ctx, sel.AgentID, sel.UserID, sel.ConversationID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, nil
	}
	if verr := tabstate.Validate(*state); verr != nil {
		e.logger.Warn().
			Str("conversation_id", sel.ConversationID).
			Err(verr).
			Msg("Persisted tab state failed validation, discarding")
		if cerr := e.store.Clear(ctx, sel.AgentID, sel.UserID, sel.ConversationID); cerr != nil {
			e.logger.Error().Err(cerr).Msg("Failed to clear untrusted tab state")
		}
		return nil, nil
	}
	return state, nil
}
