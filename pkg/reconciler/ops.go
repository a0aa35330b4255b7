package reconciler

import (
	"context"
	"errors"
	"fmt"

	"github.com/harun/tabgate/pkg/tabstate"
)

// Navigate reconciles the conversation's tab, navigates it to url, and folds
// the navigation into persisted history.
func (e *Engine) Navigate(ctx context.Context, sel Selector, url string) (TabResult, error) {
	caps := e.caps(sel.AgentID)
	if !caps.HasNavigate() {
		return TabResult{}, failf(FailToolUnavailable, "navigate", fmt.Errorf("agent %s exposes no navigate capability", sel.AgentID))
	}
	if !caps.HasTabs() {
		if err := e.navigateTo(ctx, sel, caps, url); err != nil {
			return TabResult{}, err
		}
		return TabResult{Success: true, TabIndex: tabstate.Some(0), URL: url, Shared: true}, nil
	}

	return e.slots.exclusive(ctx, sel.convKey(), func() (TabResult, error) {
		res, err := e.reconcile(ctx, sel, caps)
		if err != nil {
			return TabResult{}, err
		}
		if err := e.navigateTo(ctx, sel, caps, url); err != nil {
			return TabResult{}, err
		}

		state, err := e.loadTrusted(ctx, sel)
		if err != nil {
			return TabResult{}, err
		}
		if state == nil {
			return TabResult{}, failf(FailStateInvariant, "navigate", errors.New("state vanished mid-operation"))
		}
		next, aerr := tabstate.ApplyNavigate(*state, state.ActiveTabID, url)
		if aerr != nil {
			return TabResult{}, failf(FailStateInvariant, "navigate", aerr)
		}
		if err := e.persist(ctx, sel, next); err != nil {
			return TabResult{}, err
		}
		return TabResult{Success: true, TabIndex: res.TabIndex, URL: url}, nil
	})
}

// NavigateBack moves the conversation's tab one step back in its logical
// history and issues the navigation that makes the browser agree.
func (e *Engine) NavigateBack(ctx context.Context, sel Selector) (TabResult, error) {
	caps := e.caps(sel.AgentID)
	if !caps.HasTabs() {
		// no per-conversation history in shared mode; delegate when possible
		if caps.NavigateBackTool == "" {
			return TabResult{}, failf(FailToolUnavailable, "navigate_back", fmt.Errorf("agent %s exposes no navigate-back capability", sel.AgentID))
		}
		if _, err := e.callTool(ctx, caps.NavigateBackTool, "navigate_back", map[string]interface{}{}); err != nil {
			return TabResult{}, err
		}
		return TabResult{Success: true, TabIndex: tabstate.Some(0), Shared: true}, nil
	}

	return e.slots.exclusive(ctx, sel.convKey(), func() (TabResult, error) {
		res, err := e.reconcile(ctx, sel, caps)
		if err != nil {
			return TabResult{}, err
		}

		state, err := e.loadTrusted(ctx, sel)
		if err != nil {
			return TabResult{}, err
		}
		if state == nil {
			return TabResult{}, failf(FailStateInvariant, "navigate_back", errors.New("state vanished mid-operation"))
		}

		next, effect, aerr := tabstate.ApplyBack(*state, state.ActiveTabID)
		if aerr != nil {
			return TabResult{}, aerr
		}
		if effect.Kind == tabstate.EffectNavigate {
			if err := e.navigateTo(ctx, sel, caps, effect.URL); err != nil {
				return TabResult{}, err
			}
		}
		if err := e.persist(ctx, sel, next); err != nil {
			return TabResult{}, err
		}
		return TabResult{Success: true, TabIndex: res.TabIndex, URL: effect.URL}, nil
	})
}

// CloseTab closes the conversation's physical tab best-effort and always
// releases the local state: a stuck physical tab is acceptable, a stuck
// conversation is not.
func (e *Engine) CloseTab(ctx context.Context, sel Selector) (TabResult, error) {
	caps := e.caps(sel.AgentID)
	if !caps.HasTabs() {
		return TabResult{Success: true, Shared: true}, nil
	}

	return e.slots.exclusive(ctx, sel.convKey(), func() (TabResult, error) {
		state, err := e.loadTrusted(ctx, sel)
		if err != nil || state == nil {
			return TabResult{Success: true}, nil
		}

		idx, rerr := tabstate.ResolveIndexForTab(*state, state.ActiveTabID)
		if rerr != nil {
			// no live index; try to locate the tab by URL before giving up
			if list, lerr := e.listTabs(ctx, sel, caps, true); lerr == nil {
				if found, ok := list.FindURL(state.ActiveTab().Current).Get(); ok {
					idx, rerr = found, nil
				}
			}
		}
		if rerr == nil {
			if _, cerr := e.callTabs(ctx, sel, caps, "close", map[string]interface{}{"index": idx}); cerr != nil {
				e.logger.Warn().Err(cerr).
					Str("conversation_id", sel.ConversationID).
					Msg("Physical tab close failed, clearing local state anyway")
			}
		}

		if len(state.Tabs) > 1 && rerr == nil {
			if next, aerr := tabstate.ApplyTabsClose(*state, idx); aerr == nil {
				if perr := e.persist(ctx, sel, next); perr == nil {
					return TabResult{Success: true}, nil
				}
			}
		}
		if cerr := e.store.Clear(ctx, sel.AgentID, sel.UserID, sel.ConversationID); cerr != nil {
			e.logger.Error().Err(cerr).Msg("Failed to clear tab state on close")
		}
		return TabResult{Success: true}, nil
	})
}

// TabStatus is the conversation's logical tab view for status surfaces.
type TabStatus struct {
	HasState      bool                 `json:"hasState"`
	Shared        bool                 `json:"shared"`
	TabID         tabstate.TabID       `json:"tabId,omitempty"`
	URL           string               `json:"url,omitempty"`
	HistoryLen    int                  `json:"historyLen,omitempty"`
	HistoryCursor int                  `json:"historyCursor,omitempty"`
	LiveIndex     tabstate.Option[int] `json:"-"`
	TabCount      int                  `json:"tabCount,omitempty"`
}

// Status reports the conversation's logical tab without touching the browser.
func (e *Engine) Status(ctx context.Context, sel Selector) (TabStatus, error) {
	caps := e.caps(sel.AgentID)
	if !caps.HasTabs() {
		return TabStatus{Shared: true}, nil
	}
	state, err := e.loadTrusted(ctx, sel)
	if err != nil {
		return TabStatus{}, err
	}
	if state == nil {
		return TabStatus{}, nil
	}
	active := state.ActiveTab()
	return TabStatus{
		HasState:      true,
		TabID:         active.ID,
		URL:           active.Current,
		HistoryLen:    len(active.History),
		HistoryCursor: active.HistoryCursor,
		LiveIndex:     active.Index,
		TabCount:      len(state.Tabs),
	}, nil
}
