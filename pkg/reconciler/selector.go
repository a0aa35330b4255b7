package reconciler

import (
	"context"
	"errors"
	"time"

	"github.com/harun/tabgate/internal/observability"
	"github.com/harun/tabgate/pkg/tabstate"
	"github.com/harun/tabgate/pkg/tooladapter"
)

// SelectOrCreateTab guarantees the conversation's logical tab is the selected
// physical tab and that persisted state agrees with the live browser,
// self-healing any drift. Called before every browser operation. Concurrent
// callers for the same conversation share one pass.
func (e *Engine) SelectOrCreateTab(ctx context.Context, sel Selector) (TabResult, error) {
	caps := e.caps(sel.AgentID)
	if !caps.HasTabs() {
		// single-shared-tab mode: index 0 always, no state to reconcile
		return TabResult{Success: true, TabIndex: tabstate.Some(0), Shared: true}, nil
	}
	return e.slots.join(ctx, sel.convKey(), func() (TabResult, error) {
		start := time.Now()
		res, err := e.reconcile(ctx, sel, caps)
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		observability.RecordReconcile(outcome, time.Since(start))
		return res, err
	})
}

// reconcile is the reconciliation pass body. Callers must hold the
// conversation's slot.
func (e *Engine) reconcile(ctx context.Context, sel Selector, caps tooladapter.Capabilities) (TabResult, error) {
	state, err := e.loadTrusted(ctx, sel)
	if err != nil {
		return TabResult{}, err
	}
	if state == nil {
		return e.bootstrap(ctx, sel, caps)
	}

	active := state.ActiveTab()
	if idx, ok := active.Index.Get(); ok {
		res, handled, err := e.verifySelection(ctx, sel, caps, *state, idx)
		if handled {
			return res, err
		}
		e.logger.Debug().
			Str("conversation_id", sel.ConversationID).
			Int("expected_index", idx).
			Msg("Stored tab index went stale, entering recovery")
	}
	return e.recover(ctx, sel, caps, *state)
}

// verifySelection re-confirms a previously known index before relying on it.
// handled=false means the selection turned out stale and the caller should
// run the recovery chain.
func (e *Engine) verifySelection(ctx context.Context, sel Selector, caps tooladapter.Capabilities, state tabstate.BrowserState, idx int) (TabResult, bool, error) {
	if err := e.selectIndex(ctx, sel, caps, idx); err != nil {
		// a select refused by the tool is drift, not a hard failure
		e.logger.Debug().Err(err).Int("index", idx).Msg("Select on stored index failed")
		return TabResult{}, false, nil
	}

	list, err := e.listTabs(ctx, sel, caps, true)
	if err != nil {
		return TabResult{}, true, err
	}

	reported, ok := list.CurrentIndex().Get()
	if !ok || reported != idx {
		return TabResult{}, false, nil
	}

	active := state.ActiveTab()
	liveURL := list.CurrentURL()

	if liveURL != active.Current && !tooladapter.IsBlankURL(active.Current) {
		if found, ok := list.FindURL(active.Current).Get(); ok && found != idx {
			// the index was reused for another page while our page lives
			// elsewhere; this is a stale selection, not a navigation
			return TabResult{}, false, nil
		}
	}

	switch {
	case !tooladapter.IsBlankURL(active.Current) && tooladapter.IsBlankURL(liveURL):
		// tool restart kept the index but wiped the page; restore it
		if err := e.navigateTo(ctx, sel, caps, active.Current); err != nil {
			return TabResult{}, true, err
		}
	case liveURL != "" && liveURL != active.Current:
		// the browser moved on its own; it wins
		next, aerr := tabstate.ApplyNavigate(state, active.ID, liveURL)
		if aerr != nil {
			return TabResult{}, true, failf(FailStateInvariant, "verify", aerr)
		}
		state = next
	}

	if err := e.persist(ctx, sel, state); err != nil {
		return TabResult{}, true, err
	}
	return TabResult{Success: true, TabIndex: tabstate.Some(idx), URL: state.ActiveTab().Current}, true, nil
}

// recover re-binds the conversation's tab after its stored index proved
// stale, or after a reload left no index at all. Tried in order, first match
// wins: exact URL match, blank-tab reuse, create.
func (e *Engine) recover(ctx context.Context, sel Selector, caps tooladapter.Capabilities, state tabstate.BrowserState) (TabResult, error) {
	list, err := e.listTabs(ctx, sel, caps, true)
	if err != nil {
		return TabResult{}, err
	}

	active := state.ActiveTab()
	storedURL := active.Current

	if !tooladapter.IsBlankURL(storedURL) {
		if idx, ok := list.FindURL(storedURL).Get(); ok {
			if err := e.selectIndex(ctx, sel, caps, idx); err != nil {
				return TabResult{}, err
			}
			observability.RecordRecovery("exact_url")
			return e.rebind(ctx, sel, state, active.ID, idx)
		}
	}

	if idx, ok := list.FindBlank().Get(); ok {
		if err := e.selectIndex(ctx, sel, caps, idx); err != nil {
			return TabResult{}, err
		}
		if !tooladapter.IsBlankURL(storedURL) {
			if err := e.navigateTo(ctx, sel, caps, storedURL); err != nil {
				return TabResult{}, err
			}
		}
		observability.RecordRecovery("blank_reuse")
		return e.rebind(ctx, sel, state, active.ID, idx)
	}

	idx, err := e.createTab(ctx, sel, caps, list)
	if err != nil {
		return TabResult{}, err
	}
	if err := e.selectIndex(ctx, sel, caps, idx); err != nil {
		return TabResult{}, err
	}
	if !tooladapter.IsBlankURL(storedURL) {
		if err := e.navigateTo(ctx, sel, caps, storedURL); err != nil {
			return TabResult{}, err
		}
	}
	observability.RecordRecovery("create")
	return e.rebind(ctx, sel, state, active.ID, idx)
}

// rebind records the active tab's verified index. Other tabs' indices are
// cleared: nothing re-confirmed them, so nothing may rely on them.
func (e *Engine) rebind(ctx context.Context, sel Selector, state tabstate.BrowserState, id tabstate.TabID, idx int) (TabResult, error) {
	next := state.ClearIndices()
	tab := next.Tab(id)
	tab.Index = tabstate.Some(idx)
	next.ActiveTabID = id

	if err := e.persist(ctx, sel, next); err != nil {
		return TabResult{}, err
	}
	return TabResult{Success: true, TabIndex: tabstate.Some(idx), URL: tab.Current}, nil
}

// bootstrap handles a conversation with no persisted state: reuse a blank tab
// when one exists, create otherwise, and persist a fresh single-tab state.
func (e *Engine) bootstrap(ctx context.Context, sel Selector, caps tooladapter.Capabilities) (TabResult, error) {
	list, err := e.listTabs(ctx, sel, caps, true)
	if err != nil {
		return TabResult{}, err
	}

	id := tabstate.NewTabID()
	idx, ok := list.FindBlank().Get()
	if ok {
		if err := e.selectIndex(ctx, sel, caps, idx); err != nil {
			return TabResult{}, err
		}
		observability.RecordRecovery("blank_reuse")
	} else {
		idx, err = e.createTab(ctx, sel, caps, list)
		if err != nil {
			return TabResult{}, err
		}
		if err := e.selectIndex(ctx, sel, caps, idx); err != nil {
			return TabResult{}, err
		}
		observability.RecordRecovery("create")
	}

	state := tabstate.NewBrowserState(id, idx, "about:blank")
	if err := e.persist(ctx, sel, state); err != nil {
		return TabResult{}, err
	}
	return TabResult{Success: true, TabIndex: tabstate.Some(idx), URL: "about:blank"}, nil
}

// createTab issues "new" and determines the created tab's index by diffing
// listings taken before and after.
func (e *Engine) createTab(ctx context.Context, sel Selector, caps tooladapter.Capabilities, before tooladapter.TabList) (int, error) {
	if _, err := e.callTabs(ctx, sel, caps, "new", nil); err != nil {
		return 0, err
	}
	after, err := e.listTabs(ctx, sel, caps, true)
	if err != nil {
		return 0, err
	}
	if idx, ok := diffNewIndex(before, after); ok {
		return idx, nil
	}
	// diff came up empty (index reuse); trust the reported selection
	if idx, ok := after.CurrentIndex().Get(); ok {
		return idx, nil
	}
	return 0, failf(FailToolCall, "tabs_new", errors.New("could not determine created tab index"))
}

// diffNewIndex finds the index present after but not before. Tie-break when
// several appear: prefer prior-max+1, else the largest new index.
func diffNewIndex(before, after tooladapter.TabList) (int, bool) {
	seen := make(map[int]struct{})
	for _, idx := range before.Indices() {
		seen[idx] = struct{}{}
	}
	var fresh []int
	for _, idx := range after.Indices() {
		if _, ok := seen[idx]; !ok {
			fresh = append(fresh, idx)
		}
	}
	if len(fresh) == 0 {
		return 0, false
	}
	if priorMax, ok := before.MaxIndex().Get(); ok {
		for _, idx := range fresh {
			if idx == priorMax+1 {
				return idx, true
			}
		}
	}
	max := fresh[0]
	for _, idx := range fresh[1:] {
		if idx > max {
			max = idx
		}
	}
	return max, true
}
