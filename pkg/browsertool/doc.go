// Package browsertool is a local, rod-backed implementation of the browser
// tool surface the reconciler drives: browser_tabs (list, new, select,
// close), browser_navigate and browser_navigate_back.
//
// It deliberately behaves like the external tools it stands in for: tabs are
// addressed by position in the open-tab list, so closing a tab shifts every
// higher index down by one, and failures come back as tool-reported errors
// rather than transport errors. That makes it both a usable standalone
// backend and a faithful integration target.
package browsertool
