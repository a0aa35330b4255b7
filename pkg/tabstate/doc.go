// Package tabstate models a conversation's logical browser tabs and the pure
// transitions over them.
//
// Invariants:
// - Tab ids and assigned physical indices are unique within a BrowserState.
// - TabOrder is exactly the set of tab ids; the active tab is always known.
// - Every tab's history cursor stays in bounds and Current mirrors it.
// - Transition functions never mutate their input; they return a new state.
//
// Usage:
//
//	st := tabstate.NewBrowserState(tabstate.NewTabID(), 0, "about:blank")
//	st, _ = tabstate.ApplyNavigate(st, st.ActiveTabID, "https://example.com")
//	st, effect, _ := tabstate.ApplyBack(st, st.ActiveTabID)
//	_ = effect // caller issues the navigation the browser needs
package tabstate
