package reconciler

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/harun/tabgate/pkg/tabstate"
	"github.com/harun/tabgate/pkg/tooladapter"
)

// fakeStore is an in-memory Store mirroring tabstore's contract.
type fakeStore struct {
	mu     sync.Mutex
	states map[string]tabstate.BrowserState
	fail   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{states: make(map[string]tabstate.BrowserState)}
}

func storeKey(agentID, userID, conversationID string) string {
	return agentID + "|" + userID + "|" + conversationID
}

func (s *fakeStore) GetOrLoad(_ context.Context, agentID, userID, conversationID string) (*tabstate.BrowserState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	st, ok := s.states[storeKey(agentID, userID, conversationID)]
	if !ok {
		return nil, nil
	}
	out := st.Clone()
	return &out, nil
}

func (s *fakeStore) Set(_ context.Context, agentID, userID, conversationID string, state tabstate.BrowserState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.states[storeKey(agentID, userID, conversationID)] = state.Clone()
	return nil
}

func (s *fakeStore) Clear(_ context.Context, agentID, userID, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, storeKey(agentID, userID, conversationID))
	return nil
}

func (s *fakeStore) get(sel Selector) (tabstate.BrowserState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[storeKey(sel.AgentID, sel.UserID, sel.ConversationID)]
	return st, ok
}

func (s *fakeStore) seed(sel Selector, st tabstate.BrowserState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[storeKey(sel.AgentID, sel.UserID, sel.ConversationID)] = st
}

// fakeTab is one physical tab in the fake browser.
type fakeTab struct {
	index int
	url   string
}

// fakeBrowser emulates the external browser tool: explicit numeric indices,
// index shifting on close, line-oriented list output.
type fakeBrowser struct {
	mu      sync.Mutex
	tabs    []fakeTab
	current int // index value, not slice position

	calls       []string // "action" or "action:detail"
	failSelect  bool
	failClose   bool
	failNew     bool
	listErr     error
	newIndex    func(maxIdx int) int // override created-tab index assignment
	onCall      func(action string)  // invoked before handling, outside the lock
	redirects   map[string]string
	jsonListing bool
}

func newFakeBrowser(tabs ...fakeTab) *fakeBrowser {
	b := &fakeBrowser{tabs: tabs}
	if len(tabs) > 0 {
		b.current = tabs[0].index
	}
	return b
}

func (b *fakeBrowser) CallTool(_ context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	action, _ := args["action"].(string)
	if strings.Contains(name, "browser_navigate") {
		action = "navigate"
	}
	if b.onCall != nil {
		b.onCall(action)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch action {
	case "list":
		b.calls = append(b.calls, "list")
		if b.listErr != nil {
			return nil, b.listErr
		}
		return textResult(b.render()), nil

	case "new":
		b.calls = append(b.calls, "new")
		if b.failNew {
			return errResult("cannot open tab"), nil
		}
		idx := 0
		max := -1
		for _, t := range b.tabs {
			if t.index > max {
				max = t.index
			}
		}
		if b.newIndex != nil {
			idx = b.newIndex(max)
		} else {
			idx = max + 1
		}
		b.tabs = append(b.tabs, fakeTab{index: idx, url: "about:blank"})
		b.current = idx
		return textResult(fmt.Sprintf("- %d: (current) [New Tab] (about:blank)", idx)), nil

	case "select":
		idx := argInt(args["index"])
		b.calls = append(b.calls, fmt.Sprintf("select:%d", idx))
		if b.failSelect || b.find(idx) < 0 {
			return errResult(fmt.Sprintf("no tab at index %d", idx)), nil
		}
		b.current = idx
		return textResult("ok"), nil

	case "close":
		idx := argInt(args["index"])
		b.calls = append(b.calls, fmt.Sprintf("close:%d", idx))
		if b.failClose {
			return errResult("close failed"), nil
		}
		pos := b.find(idx)
		if pos < 0 {
			return errResult(fmt.Sprintf("no tab at index %d", idx)), nil
		}
		b.tabs = append(b.tabs[:pos], b.tabs[pos+1:]...)
		for i := range b.tabs {
			if b.tabs[i].index > idx {
				b.tabs[i].index--
			}
		}
		if b.current == idx && len(b.tabs) > 0 {
			b.current = b.tabs[0].index
		}
		return textResult("ok"), nil

	case "navigate":
		url, _ := args["url"].(string)
		b.calls = append(b.calls, "navigate:"+url)
		if final, ok := b.redirects[url]; ok {
			url = final
		}
		if pos := b.find(b.current); pos >= 0 {
			b.tabs[pos].url = url
		}
		return textResult("ok"), nil
	}
	return errResult("unknown action"), nil
}

func argInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return -1
}

func (b *fakeBrowser) find(index int) int {
	for i, t := range b.tabs {
		if t.index == index {
			return i
		}
	}
	return -1
}

func (b *fakeBrowser) render() string {
	if b.jsonListing {
		var parts []string
		for _, t := range b.tabs {
			cur := "false"
			if t.index == b.current {
				cur = "true"
			}
			parts = append(parts, fmt.Sprintf(`{"index":%d,"url":%q,"current":%s}`, t.index, t.url, cur))
		}
		return "[" + strings.Join(parts, ",") + "]"
	}
	var lines []string
	for _, t := range b.tabs {
		marker := ""
		if t.index == b.current {
			marker = "(current) "
		}
		lines = append(lines, fmt.Sprintf("- %d: %s[Tab] (%s)", t.index, marker, t.url))
	}
	return strings.Join(lines, "\n")
}

func (b *fakeBrowser) countCalls(prefix string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (b *fakeBrowser) currentIndex() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{mcp.NewTextContent(text)}}
}

func errResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{IsError: true, Content: []mcp.Content{mcp.NewTextContent(text)}}
}

var fullCaps = tooladapter.Capabilities{
	TabsTool:         "browser_tabs",
	NavigateTool:     "browser_navigate",
	NavigateBackTool: "browser_navigate_back",
}

func capsFor(c tooladapter.Capabilities) CapabilityResolver {
	return func(string) tooladapter.Capabilities { return c }
}
