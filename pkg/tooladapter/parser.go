package tooladapter

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/harun/tabgate/pkg/tabstate"
)

// TabRecord is one physical tab as reported by the tool. Index is optional
// because some output shapes omit or mangle it; an unparseable field stays
// unset rather than guessed.
type TabRecord struct {
	Index     tabstate.Option[int]
	URL       string
	Title     string
	IsCurrent bool
}

// TabList is an ordered physical tab listing.
type TabList []TabRecord

// CurrentIndex returns the index of the tab the tool reports as selected.
func (l TabList) CurrentIndex() tabstate.Option[int] {
	for _, r := range l {
		if r.IsCurrent {
			return r.Index
		}
	}
	return tabstate.None[int]()
}

// CurrentURL returns the URL of the selected tab, or "".
func (l TabList) CurrentURL() string {
	for _, r := range l {
		if r.IsCurrent {
			return r.URL
		}
	}
	return ""
}

// FindURL returns the index of the first tab showing exactly url.
func (l TabList) FindURL(url string) tabstate.Option[int] {
	for _, r := range l {
		if r.URL == url {
			if r.Index.IsSome() {
				return r.Index
			}
		}
	}
	return tabstate.None[int]()
}

// FindBlank returns the index of the first tab showing a blank page.
func (l TabList) FindBlank() tabstate.Option[int] {
	for _, r := range l {
		if IsBlankURL(r.URL) && r.Index.IsSome() {
			return r.Index
		}
	}
	return tabstate.None[int]()
}

// MaxIndex returns the largest reported index.
func (l TabList) MaxIndex() tabstate.Option[int] {
	max := tabstate.None[int]()
	for _, r := range l {
		if idx, ok := r.Index.Get(); ok {
			if cur, has := max.Get(); !has || idx > cur {
				max = tabstate.Some(idx)
			}
		}
	}
	return max
}

// Indices returns every parsed index in listing order.
func (l TabList) Indices() []int {
	out := make([]int, 0, len(l))
	for _, r := range l {
		if idx, ok := r.Index.Get(); ok {
			out = append(out, idx)
		}
	}
	return out
}

// Entries converts the listing for tabstate.ApplyTabsList. Records without a
// parsed index are dropped; the caller compares lengths before applying.
func (l TabList) Entries() []tabstate.TabListEntry {
	out := make([]tabstate.TabListEntry, 0, len(l))
	for _, r := range l {
		if idx, ok := r.Index.Get(); ok {
			out = append(out, tabstate.TabListEntry{Index: idx, IsCurrent: r.IsCurrent})
		}
	}
	return out
}

// IsBlankURL reports whether a URL counts as an empty page.
func IsBlankURL(url string) bool {
	trimmed := strings.TrimSpace(url)
	return trimmed == "" || trimmed == "about:blank"
}

var indexFields = []string{"index", "id", "tabIndex", "tab_index"}
var currentFields = []string{"current", "isCurrent", "is_current", "active", "selected"}

// ParseTabList parses a tabs-list result. JSON is tried first (an array of
// tab objects, or an object holding a tabs array plus an optional
// currentIndex); anything else falls back to the line-oriented text shape
// "- <idx>: (current) [title] (url)".
func ParseTabList(raw string) TabList {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	if gjson.Valid(trimmed) {
		root := gjson.Parse(trimmed)
		if root.IsArray() {
			return parseJSONTabs(root.Array(), tabstate.None[int]())
		}
		if root.IsObject() {
			if tabs := root.Get("tabs"); tabs.IsArray() {
				current := tabstate.None[int]()
				for _, f := range []string{"currentIndex", "current_index", "activeIndex"} {
					if v := root.Get(f); v.Exists() && v.Type == gjson.Number {
						current = tabstate.Some(int(v.Int()))
						break
					}
				}
				return parseJSONTabs(tabs.Array(), current)
			}
		}
	}
	return parseTextTabs(raw)
}

func parseJSONTabs(items []gjson.Result, currentIndex tabstate.Option[int]) TabList {
	list := make(TabList, 0, len(items))
	for i, item := range items {
		rec := TabRecord{Index: tabstate.None[int]()}
		if !item.IsObject() {
			list = append(list, rec)
			continue
		}
		for _, f := range indexFields {
			if v := item.Get(f); v.Exists() && v.Type == gjson.Number {
				rec.Index = tabstate.Some(int(v.Int()))
				break
			}
		}
		rec.URL = item.Get("url").String()
		rec.Title = item.Get("title").String()
		for _, f := range currentFields {
			if v := item.Get(f); v.Exists() {
				rec.IsCurrent = v.Bool()
				if rec.IsCurrent {
					break
				}
			}
		}
		if !rec.IsCurrent {
			if want, ok := currentIndex.Get(); ok {
				if idx, has := rec.Index.Get(); has && idx == want {
					rec.IsCurrent = true
				} else if !has && i == want {
					rec.IsCurrent = true
				}
			}
		}
		list = append(list, rec)
	}
	return list
}

var textLineRe = regexp.MustCompile(`^\s*[-*]?\s*(\d+)\s*:\s*(.*)$`)
var parenGroupRe = regexp.MustCompile(`\(([^()]*)\)`)
var titleGroupRe = regexp.MustCompile(`\[([^\[\]]*)\]`)

func parseTextTabs(raw string) TabList {
	var list TabList
	for _, line := range strings.Split(raw, "\n") {
		m := textLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		rec := TabRecord{Index: tabstate.None[int]()}
		rec.Index = tabstate.Some(atoiSafe(m[1]))
		rest := m[2]

		if tm := titleGroupRe.FindStringSubmatch(rest); tm != nil {
			rec.Title = strings.TrimSpace(tm[1])
		}

		for _, pm := range parenGroupRe.FindAllStringSubmatch(rest, -1) {
			inner := strings.TrimSpace(pm[1])
			switch {
			case strings.EqualFold(inner, "current"), strings.EqualFold(inner, "active"):
				rec.IsCurrent = true
			case looksLikeURL(inner):
				rec.URL = inner
			}
		}
		if rec.URL == "" {
			// bare trailing URL without parentheses
			fields := strings.Fields(rest)
			for i := len(fields) - 1; i >= 0; i-- {
				if looksLikeURL(fields[i]) {
					rec.URL = fields[i]
					break
				}
			}
		}
		list = append(list, rec)
	}
	return list
}

func looksLikeURL(s string) bool {
	return strings.Contains(s, "://") || strings.HasPrefix(s, "about:")
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}
