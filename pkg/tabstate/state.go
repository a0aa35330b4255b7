package tabstate

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// TabID is the durable identity of a conversation's logical tab. It is
// independent of any physical index the browser tool reports.
type TabID string

// NewTabID generates a fresh logical tab id.
func NewTabID() TabID {
	id, err := gonanoid.New()
	if err != nil {
		// gonanoid only fails when the OS entropy source does
		panic(err)
	}
	return TabID("tab_" + id)
}

// TabState is one logical tab: its live physical index (when known), the URL
// it currently shows, and its navigation history.
//
// Invariant: 0 <= HistoryCursor < len(History) and
// Current == History[HistoryCursor].
type TabState struct {
	ID            TabID       `json:"id"`
	Index         Option[int] `json:"-"`
	Current       string      `json:"current"`
	History       []string    `json:"history"`
	HistoryCursor int         `json:"historyCursor"`
}

// BrowserState is a conversation's full view of the shared browser.
type BrowserState struct {
	ActiveTabID TabID      `json:"activeTabId"`
	TabOrder    []TabID    `json:"tabOrder"`
	Tabs        []TabState `json:"tabs"`
}

// NewBrowserState builds a single-tab state, the shape every conversation
// starts from.
func NewBrowserState(id TabID, index int, url string) BrowserState {
	return BrowserState{
		ActiveTabID: id,
		TabOrder:    []TabID{id},
		Tabs: []TabState{{
			ID:            id,
			Index:         Some(index),
			Current:       url,
			History:       []string{url},
			HistoryCursor: 0,
		}},
	}
}

// Clone deep-copies the state. Transition functions never mutate their input;
// they clone, modify the clone, and return it.
func (s BrowserState) Clone() BrowserState {
	out := BrowserState{
		ActiveTabID: s.ActiveTabID,
		TabOrder:    make([]TabID, len(s.TabOrder)),
		Tabs:        make([]TabState, len(s.Tabs)),
	}
	copy(out.TabOrder, s.TabOrder)
	for i, t := range s.Tabs {
		out.Tabs[i] = t.clone()
	}
	return out
}

func (t TabState) clone() TabState {
	history := make([]string, len(t.History))
	copy(history, t.History)
	t.History = history
	return t
}

// Tab returns a pointer into Tabs for the given id, or nil.
func (s *BrowserState) Tab(id TabID) *TabState {
	for i := range s.Tabs {
		if s.Tabs[i].ID == id {
			return &s.Tabs[i]
		}
	}
	return nil
}

// ActiveTab returns a pointer to the active tab, or nil when the active id is
// unknown (a validator violation).
func (s *BrowserState) ActiveTab() *TabState {
	return s.Tab(s.ActiveTabID)
}

// MaxIndex returns the largest assigned physical index, or None when no tab
// has one.
func (s BrowserState) MaxIndex() Option[int] {
	max := None[int]()
	for _, t := range s.Tabs {
		if idx, ok := t.Index.Get(); ok {
			if cur, has := max.Get(); !has || idx > cur {
				max = Some(idx)
			}
		}
	}
	return max
}

// ClearIndices returns a copy with every tab's physical index dropped.
// Used when the live layout can no longer be trusted.
func (s BrowserState) ClearIndices() BrowserState {
	out := s.Clone()
	for i := range out.Tabs {
		out.Tabs[i].Index = None[int]()
	}
	return out
}
