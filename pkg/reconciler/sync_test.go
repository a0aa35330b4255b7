package reconciler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/tabgate/pkg/tabstate"
	"github.com/harun/tabgate/pkg/tooladapter"
)

func TestSyncTabsList_RezipsIndices(t *testing.T) {
	st := tabstate.NewBrowserState("tab_a", 0, "https://a.example")
	st = tabstate.ApplyTabsCreate(st, "tab_b", 1, "https://b.example")
	store := newFakeStore()
	store.seed(testSel, st)
	browser := newFakeBrowser()
	e := newTestEngine(t, store, browser, fullCaps)

	// the AI listed tabs and the layout shifted: our tabs now sit at 2 and 5
	e.SyncTabMappingFromTabsToolCall(context.Background(), testSel, "list", nil,
		textResult("- 2: [A] (https://a.example)\n- 5: (current) [B] (https://b.example)"))

	got, ok := store.get(testSel)
	require.True(t, ok)
	assert.Equal(t, tabstate.Some(2), got.Tab("tab_a").Index)
	assert.Equal(t, tabstate.Some(5), got.Tab("tab_b").Index)
}

func TestSyncTabsList_CountMismatchLeavesStateAlone(t *testing.T) {
	st := tabstate.NewBrowserState("tab_a", 0, "https://a.example")
	store := newFakeStore()
	store.seed(testSel, st)
	e := newTestEngine(t, store, newFakeBrowser(), fullCaps)

	e.SyncTabMappingFromTabsToolCall(context.Background(), testSel, "list", nil,
		textResult("- 0: [A] (https://a.example)\n- 1: [X] (https://x.example)"))

	got, ok := store.get(testSel)
	require.True(t, ok)
	assert.Equal(t, tabstate.Some(0), got.Tab("tab_a").Index)
	require.Len(t, got.Tabs, 1)
}

func TestSyncTabsList_WarmsCache(t *testing.T) {
	store := newFakeStore()
	browser := newFakeBrowser(fakeTab{index: 0, url: "https://a.example"})
	e := newTestEngine(t, store, browser, fullCaps)
	ctx := context.Background()

	e.SyncTabMappingFromTabsToolCall(ctx, testSel, "list", nil,
		textResult("- 0: (current) [A] (https://a.example)"))

	// a non-forced listing must be served from cache
	list, err := e.listTabs(ctx, testSel, fullCaps, false)
	require.NoError(t, err)
	assert.Zero(t, browser.countCalls("list"))
	assert.Equal(t, "https://a.example", list.CurrentURL())
}

func TestSyncTabsNew_NoStateBootstraps(t *testing.T) {
	store := newFakeStore()
	e := newTestEngine(t, store, newFakeBrowser(), fullCaps)

	e.SyncTabMappingFromTabsToolCall(context.Background(), testSel, "new", nil,
		textResult("- 2: (current) [New Tab] (about:blank)"))

	got, ok := store.get(testSel)
	require.True(t, ok)
	require.Len(t, got.Tabs, 1)
	assert.Equal(t, tabstate.Some(2), got.ActiveTab().Index)
	assert.Equal(t, "about:blank", got.ActiveTab().Current)
}

func TestSyncTabsNew_AppendsToExistingState(t *testing.T) {
	store := newFakeStore()
	store.seed(testSel, tabstate.NewBrowserState("tab_a", 0, "https://a.example"))
	e := newTestEngine(t, store, newFakeBrowser(), fullCaps)

	e.SyncTabMappingFromTabsToolCall(context.Background(), testSel, "new", nil,
		textResult("- 1: (current) [New Tab] (about:blank)"))

	got, ok := store.get(testSel)
	require.True(t, ok)
	require.Len(t, got.Tabs, 2)
	assert.Equal(t, tabstate.Some(1), got.ActiveTab().Index)
	assert.NotEqual(t, tabstate.TabID("tab_a"), got.ActiveTabID)
}

func TestSyncTabsNew_AmbiguousResultIgnored(t *testing.T) {
	store := newFakeStore()
	store.seed(testSel, tabstate.NewBrowserState("tab_a", 0, "https://a.example"))
	e := newTestEngine(t, store, newFakeBrowser(), fullCaps)

	e.SyncTabMappingFromTabsToolCall(context.Background(), testSel, "new", nil,
		textResult("tab opened"))

	got, _ := store.get(testSel)
	require.Len(t, got.Tabs, 1)
}

func TestSyncTabsSelect_SwitchesActiveTab(t *testing.T) {
	st := tabstate.NewBrowserState("tab_a", 0, "https://a.example")
	st = tabstate.ApplyTabsCreate(st, "tab_b", 1, "https://b.example")
	st.ActiveTabID = "tab_a"
	store := newFakeStore()
	store.seed(testSel, st)
	e := newTestEngine(t, store, newFakeBrowser(), fullCaps)

	e.SyncTabMappingFromTabsToolCall(context.Background(), testSel, "select",
		map[string]interface{}{"index": float64(1)}, textResult("ok"))

	got, _ := store.get(testSel)
	assert.Equal(t, tabstate.TabID("tab_b"), got.ActiveTabID)
}

func TestSyncTabsSelect_UnknownIndexLeftForReconciliation(t *testing.T) {
	st := tabstate.NewBrowserState("tab_a", 0, "https://a.example")
	store := newFakeStore()
	store.seed(testSel, st)
	e := newTestEngine(t, store, newFakeBrowser(), fullCaps)

	e.SyncTabMappingFromTabsToolCall(context.Background(), testSel, "select",
		map[string]interface{}{"index": 7}, textResult("ok"))

	got, _ := store.get(testSel)
	assert.Equal(t, tabstate.TabID("tab_a"), got.ActiveTabID)
}

func TestSyncTabsClose_LastTabClearsState(t *testing.T) {
	store := newFakeStore()
	store.seed(testSel, tabstate.NewBrowserState("tab_a", 0, "https://a.example"))
	e := newTestEngine(t, store, newFakeBrowser(), fullCaps)

	e.SyncTabMappingFromTabsToolCall(context.Background(), testSel, "close",
		map[string]interface{}{"index": 0}, textResult("ok"))

	_, ok := store.get(testSel)
	assert.False(t, ok)
}

func TestSyncTabsClose_RemovesAndReindexes(t *testing.T) {
	st := tabstate.NewBrowserState("tab_a", 0, "https://a.example")
	st = tabstate.ApplyTabsCreate(st, "tab_b", 1, "https://b.example")
	store := newFakeStore()
	store.seed(testSel, st)
	e := newTestEngine(t, store, newFakeBrowser(), fullCaps)

	e.SyncTabMappingFromTabsToolCall(context.Background(), testSel, "close",
		map[string]interface{}{"index": 0}, textResult("ok"))

	got, ok := store.get(testSel)
	require.True(t, ok)
	require.Len(t, got.Tabs, 1)
	assert.Equal(t, tabstate.TabID("tab_b"), got.ActiveTabID)
	assert.Equal(t, tabstate.Some(0), got.ActiveTab().Index, "higher index shifts down")
}

func TestSyncNavigation_AppendsHistory(t *testing.T) {
	store := newFakeStore()
	store.seed(testSel, tabstate.NewBrowserState("tab_a", 0, "https://a.example"))
	browser := newFakeBrowser(fakeTab{index: 0, url: "https://next.example"})
	e := newTestEngine(t, store, browser, fullCaps)

	e.SyncNavigationFromToolCall(context.Background(), testSel, "https://next.example")

	got, _ := store.get(testSel)
	assert.Equal(t, "https://next.example", got.ActiveTab().Current)
	assert.Equal(t, []string{"https://a.example", "https://next.example"}, got.ActiveTab().History)
}

func TestSyncNavigation_RecordsRedirectTarget(t *testing.T) {
	// the AI asked for one URL but the live tab reports where it landed
	store := newFakeStore()
	store.seed(testSel, tabstate.NewBrowserState("tab_a", 0, "https://a.example"))
	browser := newFakeBrowser(fakeTab{index: 0, url: "https://final.example"})
	e := newTestEngine(t, store, browser, fullCaps)

	e.SyncNavigationFromToolCall(context.Background(), testSel, "https://short.example")

	got, _ := store.get(testSel)
	assert.Equal(t, "https://final.example", got.ActiveTab().Current)
}

func TestSyncNavigation_NoStateIsNoop(t *testing.T) {
	store := newFakeStore()
	browser := newFakeBrowser(fakeTab{index: 0, url: "https://x.example"})
	e := newTestEngine(t, store, browser, fullCaps)

	e.SyncNavigationFromToolCall(context.Background(), testSel, "https://x.example")

	_, ok := store.get(testSel)
	assert.False(t, ok)
	assert.Empty(t, browser.calls, "no listing without state to fold into")
}

func TestSync_SharedModeIgnored(t *testing.T) {
	store := newFakeStore()
	browser := newFakeBrowser()
	e := newTestEngine(t, store, browser, tooladapter.Capabilities{NavigateTool: "browser_navigate"})

	e.SyncTabMappingFromTabsToolCall(context.Background(), testSel, "list", nil, textResult(""))
	e.SyncNavigationFromToolCall(context.Background(), testSel, "https://x.example")

	assert.Empty(t, browser.calls)
}

func TestArgIndex(t *testing.T) {
	tests := []struct {
		name string
		args map[string]interface{}
		want tabstate.Option[int]
	}{
		{"int", map[string]interface{}{"index": 3}, tabstate.Some(3)},
		{"float64", map[string]interface{}{"index": float64(3)}, tabstate.Some(3)},
		{"string", map[string]interface{}{"index": "3"}, tabstate.Some(3)},
		{"bad string", map[string]interface{}{"index": "three"}, tabstate.None[int]()},
		{"missing", map[string]interface{}{}, tabstate.None[int]()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, argIndex(tt.args))
		})
	}
}
