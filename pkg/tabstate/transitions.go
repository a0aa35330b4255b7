package tabstate

// TabListEntry is one row of a physical tab listing, already parsed.
type TabListEntry struct {
	Index     int
	IsCurrent bool
}

// EffectKind tags the side effect a pure transition asks its caller to
// perform.
type EffectKind string

const (
	EffectNone     EffectKind = "none"
	EffectNavigate EffectKind = "navigate"
)

// Effect is a declared side effect. Back/forward stay pure by returning the
// navigation they need instead of performing it.
type Effect struct {
	Kind  EffectKind
	TabID TabID
	URL   string
}

// NavigateEffect builds a navigation effect.
func NavigateEffect(id TabID, url string) Effect {
	return Effect{Kind: EffectNavigate, TabID: id, URL: url}
}

// NoEffect is the absent effect.
func NoEffect() Effect {
	return Effect{Kind: EffectNone}
}

// ApplyTabsList reassigns every tab's physical index from a fresh listing.
// The listing must have exactly one entry per known tab; entries are zipped
// against Tabs in array order. The entry marked current decides the active
// tab. On length mismatch nothing is touched and TabCountMismatch is
// returned.
func ApplyTabsList(s BrowserState, entries []TabListEntry) (BrowserState, error) {
	if len(entries) != len(s.Tabs) {
		return BrowserState{}, newError(ErrTabCountMismatch, "listing has %d tabs, state has %d", len(entries), len(s.Tabs))
	}
	out := s.Clone()
	for i, e := range entries {
		out.Tabs[i].Index = Some(e.Index)
		if e.IsCurrent {
			out.ActiveTabID = out.Tabs[i].ID
		}
	}
	return out, nil
}

// ApplyTabsCreate appends a freshly created tab and makes it active.
func ApplyTabsCreate(s BrowserState, id TabID, index int, url string) BrowserState {
	out := s.Clone()
	out.Tabs = append(out.Tabs, TabState{
		ID:            id,
		Index:         Some(index),
		Current:       url,
		History:       []string{url},
		HistoryCursor: 0,
	})
	out.TabOrder = append(out.TabOrder, id)
	out.ActiveTabID = id
	return out
}

// ApplyTabsClose removes the tab owning physical index and shifts every
// higher index down by one, mirroring how the browser renumbers after a
// close. When the closed tab was active, the tab that slid into the same
// physical slot becomes active; if none did, the previous entry in TabOrder
// does. Closing the last remaining tab is refused: the caller must clear the
// whole state instead.
func ApplyTabsClose(s BrowserState, index int) (BrowserState, error) {
	if len(s.Tabs) <= 1 {
		return BrowserState{}, newError(ErrCannotCloseLastTab, "state holds %d tab(s)", len(s.Tabs))
	}

	out := s.Clone()
	removedPos := -1
	for i, t := range out.Tabs {
		if idx, ok := t.Index.Get(); ok && idx == index {
			removedPos = i
			break
		}
	}
	if removedPos < 0 {
		return BrowserState{}, newError(ErrTabIndexNotFound, "no tab owns index %d", index)
	}
	removed := out.Tabs[removedPos]

	out.Tabs = append(out.Tabs[:removedPos], out.Tabs[removedPos+1:]...)
	orderPos := 0
	for i, id := range out.TabOrder {
		if id == removed.ID {
			orderPos = i
			break
		}
	}
	out.TabOrder = append(out.TabOrder[:orderPos], out.TabOrder[orderPos+1:]...)

	for i := range out.Tabs {
		if idx, ok := out.Tabs[i].Index.Get(); ok && idx > index {
			out.Tabs[i].Index = Some(idx - 1)
		}
	}

	if removed.ID == s.ActiveTabID {
		next := TabID("")
		for _, t := range out.Tabs {
			if idx, ok := t.Index.Get(); ok && idx == index {
				next = t.ID
				break
			}
		}
		if next == "" {
			if orderPos > 0 {
				next = out.TabOrder[orderPos-1]
			} else {
				next = out.TabOrder[0]
			}
		}
		out.ActiveTabID = next
	}
	return out, nil
}

// ApplyNavigate folds a navigation into a tab's history with standard browser
// semantics: everything past the cursor is discarded, the new URL is
// appended, and the cursor points at it.
func ApplyNavigate(s BrowserState, id TabID, url string) (BrowserState, error) {
	out := s.Clone()
	tab := out.Tab(id)
	if tab == nil {
		return BrowserState{}, newError(ErrTabNotFound, "tab %q", id)
	}
	tab.History = append(tab.History[:tab.HistoryCursor+1], url)
	tab.HistoryCursor = len(tab.History) - 1
	tab.Current = url
	return out, nil
}

// ApplyBack moves a tab's cursor one step back and returns the navigation the
// caller must issue to make the browser agree.
func ApplyBack(s BrowserState, id TabID) (BrowserState, Effect, error) {
	out := s.Clone()
	tab := out.Tab(id)
	if tab == nil {
		return BrowserState{}, NoEffect(), newError(ErrTabNotFound, "tab %q", id)
	}
	if tab.HistoryCursor <= 0 {
		return BrowserState{}, NoEffect(), newError(ErrNoBackHistory, "tab %q already at history start", id)
	}
	tab.HistoryCursor--
	tab.Current = tab.History[tab.HistoryCursor]
	return out, NavigateEffect(id, tab.Current), nil
}

// ApplyForward is the mirror of ApplyBack.
func ApplyForward(s BrowserState, id TabID) (BrowserState, Effect, error) {
	out := s.Clone()
	tab := out.Tab(id)
	if tab == nil {
		return BrowserState{}, NoEffect(), newError(ErrTabNotFound, "tab %q", id)
	}
	if tab.HistoryCursor >= len(tab.History)-1 {
		return BrowserState{}, NoEffect(), newError(ErrNoForwardHistory, "tab %q already at history end", id)
	}
	tab.HistoryCursor++
	tab.Current = tab.History[tab.HistoryCursor]
	return out, NavigateEffect(id, tab.Current), nil
}

// ResolveIndexForTab looks up the physical index a logical tab currently
// maps to.
func ResolveIndexForTab(s BrowserState, id TabID) (int, error) {
	tab := s.Tab(id)
	if tab == nil {
		return 0, newError(ErrTabNotFound, "tab %q", id)
	}
	idx, ok := tab.Index.Get()
	if !ok {
		return 0, newError(ErrTabIndexUnavailable, "tab %q has no live index", id)
	}
	return idx, nil
}

// ResolveTabIDForIndex looks up which logical tab owns a physical index.
func ResolveTabIDForIndex(s BrowserState, index int) (TabID, error) {
	for _, t := range s.Tabs {
		if idx, ok := t.Index.Get(); ok && idx == index {
			return t.ID, nil
		}
	}
	return "", newError(ErrTabIndexNotFound, "no tab owns index %d", index)
}
