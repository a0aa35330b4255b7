package reconciler

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/harun/tabgate/internal/observability"
	"github.com/harun/tabgate/pkg/tabstate"
	"github.com/harun/tabgate/pkg/tooladapter"
)

// SyncTabMappingFromTabsToolCall folds an AI-driven browser_tabs call into
// persisted state without a full reconciliation. Best-effort: anything
// ambiguous is logged and left for the next explicit pass to repair.
func (e *Engine) SyncTabMappingFromTabsToolCall(ctx context.Context, sel Selector, action string, args map[string]interface{}, result *mcp.CallToolResult) {
	caps := e.caps(sel.AgentID)
	if !caps.HasTabs() {
		return
	}
	_, _ = e.slots.exclusive(ctx, sel.convKey(), func() (TabResult, error) {
		e.syncTabsAction(ctx, sel, caps, action, args, result)
		return TabResult{Success: true}, nil
	})
}

func (e *Engine) syncTabsAction(ctx context.Context, sel Selector, caps tooladapter.Capabilities, action string, args map[string]interface{}, result *mcp.CallToolResult) {
	switch action {
	case "list":
		e.syncList(ctx, sel, caps, result)
	case "new":
		e.syncNew(ctx, sel, caps, result)
	case "select":
		e.syncSelect(ctx, sel, caps, args)
	case "close":
		e.syncClose(ctx, sel, caps, args)
	default:
		observability.RecordSync(action, "ignored")
	}
}

func (e *Engine) syncList(ctx context.Context, sel Selector, caps tooladapter.Capabilities, result *mcp.CallToolResult) {
	list := tooladapter.ParseTabList(tooladapter.ResultText(result))
	// the AI just saw a fresh listing; the cache may as well benefit
	e.cache.put(e.cacheKey(sel, caps.TabsTool), list)

	state, err := e.loadTrusted(ctx, sel)
	if err != nil || state == nil {
		observability.RecordSync("list", "skipped")
		return
	}
	entries := list.Entries()
	if len(entries) != len(state.Tabs) {
		// count drifted; the next explicit reconciliation sorts it out
		observability.RecordSync("list", "skipped")
		return
	}
	next, aerr := tabstate.ApplyTabsList(*state, entries)
	if aerr != nil {
		observability.RecordSync("list", "skipped")
		return
	}
	if err := e.persist(ctx, sel, next); err != nil {
		e.logger.Debug().Err(err).Msg("List sync persist failed")
		observability.RecordSync("list", "failed")
		return
	}
	observability.RecordSync("list", "applied")
}

func (e *Engine) syncNew(ctx context.Context, sel Selector, caps tooladapter.Capabilities, result *mcp.CallToolResult) {
	e.cache.invalidate(e.cacheKey(sel, caps.TabsTool))

	list := tooladapter.ParseTabList(tooladapter.ResultText(result))
	idx, url := newTabFromResult(list)
	if idx.IsNone() {
		e.logger.Debug().Str("conversation_id", sel.ConversationID).Msg("Tab create sync: no index extractable")
		observability.RecordSync("new", "ambiguous")
		return
	}
	index, _ := idx.Get()

	state, err := e.loadTrusted(ctx, sel)
	if err != nil {
		observability.RecordSync("new", "failed")
		return
	}
	var next tabstate.BrowserState
	if state == nil {
		next = tabstate.NewBrowserState(tabstate.NewTabID(), index, url)
	} else {
		next = tabstate.ApplyTabsCreate(*state, tabstate.NewTabID(), index, url)
	}
	if err := e.persist(ctx, sel, next); err != nil {
		e.logger.Debug().Err(err).Msg("Create sync persist failed")
		observability.RecordSync("new", "failed")
		return
	}
	observability.RecordSync("new", "applied")
}

func (e *Engine) syncSelect(ctx context.Context, sel Selector, caps tooladapter.Capabilities, args map[string]interface{}) {
	e.cache.invalidate(e.cacheKey(sel, caps.TabsTool))

	idx, ok := argIndex(args).Get()
	if !ok {
		observability.RecordSync("select", "ambiguous")
		return
	}
	state, err := e.loadTrusted(ctx, sel)
	if err != nil || state == nil {
		observability.RecordSync("select", "skipped")
		return
	}
	id, rerr := tabstate.ResolveTabIDForIndex(*state, idx)
	if rerr != nil {
		// selection of a tab we do not track; leave for reconciliation
		observability.RecordSync("select", "unresolved")
		return
	}
	next := state.Clone()
	next.ActiveTabID = id
	if err := e.persist(ctx, sel, next); err != nil {
		observability.RecordSync("select", "failed")
		return
	}
	observability.RecordSync("select", "applied")
}

func (e *Engine) syncClose(ctx context.Context, sel Selector, caps tooladapter.Capabilities, args map[string]interface{}) {
	e.cache.invalidate(e.cacheKey(sel, caps.TabsTool))

	idx, ok := argIndex(args).Get()
	if !ok {
		observability.RecordSync("close", "ambiguous")
		return
	}
	state, err := e.loadTrusted(ctx, sel)
	if err != nil || state == nil {
		observability.RecordSync("close", "skipped")
		return
	}
	if len(state.Tabs) == 1 {
		// the AI closed the only tab; clearing beats an unusable state
		if cerr := e.store.Clear(ctx, sel.AgentID, sel.UserID, sel.ConversationID); cerr != nil {
			observability.RecordSync("close", "failed")
			return
		}
		observability.RecordSync("close", "cleared")
		return
	}
	next, aerr := tabstate.ApplyTabsClose(*state, idx)
	if aerr != nil {
		observability.RecordSync("close", "unresolved")
		return
	}
	if err := e.persist(ctx, sel, next); err != nil {
		observability.RecordSync("close", "failed")
		return
	}
	observability.RecordSync("close", "applied")
}

// SyncNavigationFromToolCall folds an AI-driven navigation into history. The
// actually-active URL is re-read from the tool so redirects land in history
// as the browser saw them. Best-effort; failures are only logged.
func (e *Engine) SyncNavigationFromToolCall(ctx context.Context, sel Selector, url string) {
	caps := e.caps(sel.AgentID)
	if !caps.HasTabs() {
		return
	}
	_, _ = e.slots.exclusive(ctx, sel.convKey(), func() (TabResult, error) {
		state, err := e.loadTrusted(ctx, sel)
		if err != nil || state == nil {
			observability.RecordSync("navigate", "skipped")
			return TabResult{Success: true}, nil
		}

		actual := url
		if list, lerr := e.listTabs(ctx, sel, caps, true); lerr == nil {
			if live := list.CurrentURL(); live != "" {
				actual = live
			}
		}
		if actual == "" {
			observability.RecordSync("navigate", "ambiguous")
			return TabResult{Success: true}, nil
		}
		if actual == state.ActiveTab().Current {
			observability.RecordSync("navigate", "noop")
			return TabResult{Success: true}, nil
		}

		next, aerr := tabstate.ApplyNavigate(*state, state.ActiveTabID, actual)
		if aerr != nil {
			observability.RecordSync("navigate", "failed")
			return TabResult{Success: true}, nil
		}
		if perr := e.persist(ctx, sel, next); perr != nil {
			e.logger.Debug().Err(perr).Msg("Navigation sync persist failed")
			observability.RecordSync("navigate", "failed")
			return TabResult{Success: true}, nil
		}
		observability.RecordSync("navigate", "applied")
		return TabResult{Success: true}, nil
	})
}

// newTabFromResult extracts the created tab's index and URL from a "new"
// result. Tools answer with anything from a full listing to a single record.
func newTabFromResult(list tooladapter.TabList) (tabstate.Option[int], string) {
	if idx, ok := list.CurrentIndex().Get(); ok {
		return tabstate.Some(idx), blankOr(list.CurrentURL())
	}
	if len(list) == 1 {
		if idx, ok := list[0].Index.Get(); ok {
			return tabstate.Some(idx), blankOr(list[0].URL)
		}
	}
	return tabstate.None[int](), ""
}

func blankOr(url string) string {
	if url == "" {
		return "about:blank"
	}
	return url
}

// argIndex pulls an integer index out of tool-call arguments, tolerating the
// numeric encodings JSON decoding produces.
func argIndex(args map[string]interface{}) tabstate.Option[int] {
	v, ok := args["index"]
	if !ok {
		return tabstate.None[int]()
	}
	switch n := v.(type) {
	case int:
		return tabstate.Some(n)
	case int64:
		return tabstate.Some(int(n))
	case float64:
		return tabstate.Some(int(n))
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return tabstate.Some(int(i))
		}
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return tabstate.Some(i)
		}
	}
	return tabstate.None[int]()
}
