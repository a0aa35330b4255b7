package tabstate

// PersistedTabState is the durable form of a logical tab. Physical indices are
// deliberately absent: they never survive a browser or process restart.
type PersistedTabState struct {
	Current       string   `json:"current"`
	History       []string `json:"history"`
	HistoryCursor int      `json:"historyCursor"`
}

// PersistedBrowserState is the durable form of BrowserState. Tabs live in an
// id-keyed map for O(1) lookup; TabOrder preserves ordering.
type PersistedBrowserState struct {
	ActiveTabID TabID                       `json:"activeTabId"`
	TabOrder    []TabID                     `json:"tabOrder"`
	Tabs        map[TabID]PersistedTabState `json:"tabs"`
}

// ToPersisted strips physical indices and re-keys tabs by id.
func ToPersisted(s BrowserState) PersistedBrowserState {
	out := PersistedBrowserState{
		ActiveTabID: s.ActiveTabID,
		TabOrder:    make([]TabID, len(s.TabOrder)),
		Tabs:        make(map[TabID]PersistedTabState, len(s.Tabs)),
	}
	copy(out.TabOrder, s.TabOrder)
	for _, t := range s.Tabs {
		history := make([]string, len(t.History))
		copy(history, t.History)
		out.Tabs[t.ID] = PersistedTabState{
			Current:       t.Current,
			History:       history,
			HistoryCursor: t.HistoryCursor,
		}
	}
	return out
}

// ToRuntime rebuilds a runtime BrowserState from its persisted form. Every
// tab's index comes back as None; reconciliation re-derives indices from the
// live tool before they are used.
func ToRuntime(p PersistedBrowserState) BrowserState {
	out := BrowserState{
		ActiveTabID: p.ActiveTabID,
		TabOrder:    make([]TabID, len(p.TabOrder)),
		Tabs:        make([]TabState, 0, len(p.Tabs)),
	}
	copy(out.TabOrder, p.TabOrder)
	for _, id := range p.TabOrder {
		pt, ok := p.Tabs[id]
		if !ok {
			continue
		}
		history := make([]string, len(pt.History))
		copy(history, pt.History)
		out.Tabs = append(out.Tabs, TabState{
			ID:            id,
			Index:         None[int](),
			Current:       pt.Current,
			History:       history,
			HistoryCursor: pt.HistoryCursor,
		})
	}
	return out
}
