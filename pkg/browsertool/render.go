package browsertool

import (
	"fmt"
	"strings"
)

// tabInfo is one open tab as the listing reports it.
type tabInfo struct {
	URL   string
	Title string
}

// renderTabs formats the open tabs the way the reconciler's parser reads
// them: one line per tab, index prefix, current marker, bracketed title,
// parenthesized URL.
func renderTabs(tabs []tabInfo, current int) string {
	var b strings.Builder
	for i, t := range tabs {
		if i > 0 {
			b.WriteByte('\n')
		}
		marker := ""
		if i == current {
			marker = "(current) "
		}
		title := t.Title
		if title == "" {
			title = "Untitled"
		}
		fmt.Fprintf(&b, "- %d: %s[%s] (%s)", i, marker, sanitizeTitle(title), t.URL)
	}
	return b.String()
}

// sanitizeTitle keeps page titles from breaking the line format. Brackets
// delimit the title and parens delimit the marker and URL, so a title
// containing either could spoof a field; both get stripped.
func sanitizeTitle(title string) string {
	title = strings.NewReplacer("[", "", "]", "", "(", "", ")", "", "\n", " ", "\r", " ").Replace(title)
	return strings.TrimSpace(title)
}
