package tabstate

// Validate checks every structural invariant of a BrowserState and returns the
// first violation found. Check order is fixed so callers (and tests) see a
// deterministic error for a given corruption:
//
//  1. tab ids unique
//  2. TabOrder free of duplicates
//  3. TabOrder is exactly the set of tab ids
//  4. ActiveTabID refers to a known tab
//  5. every tab's history cursor in bounds
//  6. assigned physical indices unique across tabs
//
// Run against anything loaded from storage or derived from tool output before
// trusting it.
func Validate(s BrowserState) error {
	seen := make(map[TabID]struct{}, len(s.Tabs))
	for _, t := range s.Tabs {
		if _, dup := seen[t.ID]; dup {
			return newError(ErrDuplicateTabID, "tab id %q appears more than once", t.ID)
		}
		seen[t.ID] = struct{}{}
	}

	ordered := make(map[TabID]struct{}, len(s.TabOrder))
	for _, id := range s.TabOrder {
		if _, dup := ordered[id]; dup {
			return newError(ErrDuplicateTabOrder, "tab id %q appears in order twice", id)
		}
		ordered[id] = struct{}{}
	}

	if len(s.TabOrder) != len(s.Tabs) {
		return newError(ErrTabOrderMismatch, "order has %d entries, tabs has %d", len(s.TabOrder), len(s.Tabs))
	}
	for _, id := range s.TabOrder {
		if _, ok := seen[id]; !ok {
			return newError(ErrTabOrderMismatch, "order references unknown tab %q", id)
		}
	}

	if _, ok := seen[s.ActiveTabID]; !ok {
		return newError(ErrActiveTabMissing, "active tab %q is not a known tab", s.ActiveTabID)
	}

	for _, t := range s.Tabs {
		if t.HistoryCursor < 0 || t.HistoryCursor >= len(t.History) {
			return newError(ErrHistoryCursorOutOfBounds, "tab %q cursor %d, history length %d", t.ID, t.HistoryCursor, len(t.History))
		}
	}

	indices := make(map[int]TabID, len(s.Tabs))
	for _, t := range s.Tabs {
		idx, ok := t.Index.Get()
		if !ok {
			continue
		}
		if other, dup := indices[idx]; dup {
			return newError(ErrDuplicateTabIndex, "tabs %q and %q both claim index %d", other, t.ID, idx)
		}
		indices[idx] = t.ID
	}

	return nil
}
