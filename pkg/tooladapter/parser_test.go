package tooladapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/tabgate/pkg/tabstate"
)

func TestParseTabList_LineText(t *testing.T) {
	raw := `- 0: [New Tab] (about:blank)
- 1: (current) [Example] (https://example.com/page)
- 2: [Docs] (https://docs.example.com)`

	list := ParseTabList(raw)
	require.Len(t, list, 3)

	assert.Equal(t, tabstate.Some(0), list[0].Index)
	assert.Equal(t, "about:blank", list[0].URL)
	assert.Equal(t, "New Tab", list[0].Title)
	assert.False(t, list[0].IsCurrent)

	assert.True(t, list[1].IsCurrent)
	assert.Equal(t, "https://example.com/page", list[1].URL)
	assert.Equal(t, "Example", list[1].Title)

	cur, ok := list.CurrentIndex().Get()
	require.True(t, ok)
	assert.Equal(t, 1, cur)
	assert.Equal(t, "https://example.com/page", list.CurrentURL())
}

func TestParseTabList_LineTextWithoutDashOrTitle(t *testing.T) {
	raw := "0: https://a.example\n1: (current) https://b.example"

	list := ParseTabList(raw)
	require.Len(t, list, 2)
	assert.Equal(t, "https://a.example", list[0].URL)
	assert.True(t, list[1].IsCurrent)
	assert.Equal(t, "https://b.example", list[1].URL)
}

func TestParseTabList_JSONArray(t *testing.T) {
	raw := `[
	  {"index": 0, "url": "about:blank", "title": "New Tab"},
	  {"index": 3, "url": "https://a.example", "title": "A", "current": true}
	]`

	list := ParseTabList(raw)
	require.Len(t, list, 2)
	assert.Equal(t, tabstate.Some(3), list[1].Index)
	assert.True(t, list[1].IsCurrent)
	assert.Equal(t, "https://a.example", list.CurrentURL())
}

func TestParseTabList_JSONFieldVariants(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"id and active", `[{"id": 2, "url": "https://x.example", "active": true}]`},
		{"tabIndex and isCurrent", `[{"tabIndex": 2, "url": "https://x.example", "isCurrent": true}]`},
		{"tab_index and is_current", `[{"tab_index": 2, "url": "https://x.example", "is_current": true}]`},
		{"selected", `[{"index": 2, "url": "https://x.example", "selected": true}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list := ParseTabList(tt.raw)
			require.Len(t, list, 1)
			assert.Equal(t, tabstate.Some(2), list[0].Index)
			assert.True(t, list[0].IsCurrent)
		})
	}
}

func TestParseTabList_JSONObjectWithCurrentIndex(t *testing.T) {
	raw := `{"currentIndex": 1, "tabs": [
	  {"index": 0, "url": "https://a.example"},
	  {"index": 1, "url": "https://b.example"}
	]}`

	list := ParseTabList(raw)
	require.Len(t, list, 2)
	assert.False(t, list[0].IsCurrent)
	assert.True(t, list[1].IsCurrent)
}

func TestParseTabList_UnparseableFieldsStayUnset(t *testing.T) {
	raw := `[{"index": "not-a-number", "url": "https://a.example"}, "garbage"]`

	list := ParseTabList(raw)
	require.Len(t, list, 2)
	assert.True(t, list[0].Index.IsNone())
	assert.Equal(t, "https://a.example", list[0].URL)
	assert.True(t, list[1].Index.IsNone())
	assert.Empty(t, list[1].URL)
}

func TestParseTabList_IgnoresNoise(t *testing.T) {
	raw := "Open tabs:\n- 0: (current) (https://a.example)\nDone."

	list := ParseTabList(raw)
	require.Len(t, list, 1)
	assert.Equal(t, tabstate.Some(0), list[0].Index)
}

func TestParseTabList_Empty(t *testing.T) {
	assert.Empty(t, ParseTabList(""))
	assert.Empty(t, ParseTabList("   \n  "))
}

func TestTabList_Helpers(t *testing.T) {
	list := TabList{
		{Index: tabstate.Some(0), URL: "about:blank"},
		{Index: tabstate.Some(4), URL: "https://a.example", IsCurrent: true},
		{Index: tabstate.None[int](), URL: "https://b.example"},
	}

	blank, ok := list.FindBlank().Get()
	require.True(t, ok)
	assert.Equal(t, 0, blank)

	found, ok := list.FindURL("https://a.example").Get()
	require.True(t, ok)
	assert.Equal(t, 4, found)

	assert.True(t, list.FindURL("https://b.example").IsNone(), "match without index is unusable")
	assert.True(t, list.FindURL("https://missing.example").IsNone())

	max, ok := list.MaxIndex().Get()
	require.True(t, ok)
	assert.Equal(t, 4, max)

	assert.Equal(t, []int{0, 4}, list.Indices())

	entries := list.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, tabstate.TabListEntry{Index: 4, IsCurrent: true}, entries[1])
}

func TestIsBlankURL(t *testing.T) {
	assert.True(t, IsBlankURL("about:blank"))
	assert.True(t, IsBlankURL(""))
	assert.True(t, IsBlankURL("  about:blank  "))
	assert.False(t, IsBlankURL("https://a.example"))
}
