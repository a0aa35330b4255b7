package browsertool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
)

// Tool names exposed by the backend.
const (
	ToolTabs         = "browser_tabs"
	ToolNavigate     = "browser_navigate"
	ToolNavigateBack = "browser_navigate_back"
)

// Config holds backend configuration.
type Config struct {
	// ControlURL connects to an already-running Chrome CDP endpoint. When
	// empty a local Chrome is launched instead.
	ControlURL  string
	Headless    bool
	NoSandbox   bool
	ChromePath  string
	UserDataDir string
	// NavigateTimeout bounds each navigation including the load wait.
	NavigateTimeout time.Duration
	Logger          zerolog.Logger
}

// Backend drives a Chrome instance through rod and exposes it as the three
// browser tools. Tab order is owned by the backend: the slice position of a
// page is its reported index.
type Backend struct {
	cfg      Config
	launcher *launcher.Launcher
	browser  *rod.Browser

	mu      sync.Mutex
	pages   []*rod.Page
	current int
}

// New launches (or connects to) Chrome and opens the initial blank tab.
func New(cfg Config) (*Backend, error) {
	if cfg.NavigateTimeout <= 0 {
		cfg.NavigateTimeout = 30 * time.Second
	}

	b := &Backend{cfg: cfg, current: -1}

	controlURL := cfg.ControlURL
	if controlURL == "" {
		l := launcher.New().Headless(cfg.Headless)
		if cfg.NoSandbox {
			l = l.NoSandbox(true)
		}
		if cfg.ChromePath != "" {
			l = l.Bin(cfg.ChromePath)
		}
		if cfg.UserDataDir != "" {
			l = l.UserDataDir(cfg.UserDataDir)
		}
		url, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		b.launcher = l
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		if b.launcher != nil {
			b.launcher.Cleanup()
		}
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	b.browser = browser

	if _, err := b.openPage("about:blank"); err != nil {
		b.Close()
		return nil, err
	}

	cfg.Logger.Info().
		Bool("headless", cfg.Headless).
		Bool("launched", cfg.ControlURL == "").
		Msg("Browser backend ready")
	return b, nil
}

// Close shuts down every page and the browser connection.
func (b *Backend) Close() error {
	b.mu.Lock()
	for _, p := range b.pages {
		_ = p.Close()
	}
	b.pages = nil
	b.current = -1
	b.mu.Unlock()

	var err error
	if b.browser != nil {
		err = b.browser.Close()
	}
	if b.launcher != nil {
		b.launcher.Cleanup()
	}
	return err
}

// CallTool dispatches a tool invocation. Unknown tools and bad arguments come
// back as tool-reported errors, mirroring the external tools this backend
// stands in for.
func (b *Backend) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch name {
	case ToolTabs:
		action, _ := args["action"].(string)
		return b.handleTabs(action, args)
	case ToolNavigate:
		url, _ := args["url"].(string)
		return b.handleNavigate(url)
	case ToolNavigateBack:
		return b.handleNavigateBack()
	}
	return toolError(fmt.Sprintf("unknown tool %q", name)), nil
}

func (b *Backend) handleTabs(action string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	switch action {
	case "list":
		return b.listTabs()
	case "new":
		return b.newTab()
	case "select":
		idx, ok := indexArg(args)
		if !ok {
			return toolError("select requires an integer index"), nil
		}
		return b.selectTab(idx)
	case "close":
		idx, ok := indexArg(args)
		if !ok {
			return toolError("close requires an integer index"), nil
		}
		return b.closeTab(idx)
	}
	return toolError(fmt.Sprintf("unknown tabs action %q", action)), nil
}

func (b *Backend) listTabs() (*mcp.CallToolResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return toolText(renderTabs(b.snapshot(), b.current)), nil
}

func (b *Backend) newTab() (*mcp.CallToolResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx, err := b.openPage("about:blank")
	if err != nil {
		return toolError(err.Error()), nil
	}
	return toolText(fmt.Sprintf("- %d: (current) [Untitled] (about:blank)", idx)), nil
}

func (b *Backend) selectTab(idx int) (*mcp.CallToolResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if idx < 0 || idx >= len(b.pages) {
		return toolError(fmt.Sprintf("no tab at index %d", idx)), nil
	}
	if _, err := b.pages[idx].Activate(); err != nil {
		return toolError(fmt.Sprintf("activate tab %d: %v", idx, err)), nil
	}
	b.current = idx
	return toolText("ok"), nil
}

func (b *Backend) closeTab(idx int) (*mcp.CallToolResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if idx < 0 || idx >= len(b.pages) {
		return toolError(fmt.Sprintf("no tab at index %d", idx)), nil
	}
	if err := b.pages[idx].Close(); err != nil {
		return toolError(fmt.Sprintf("close tab %d: %v", idx, err)), nil
	}
	b.pages = append(b.pages[:idx], b.pages[idx+1:]...)

	// slice removal already renumbered everything above idx
	switch {
	case len(b.pages) == 0:
		b.current = -1
	case b.current == idx:
		if idx < len(b.pages) {
			b.current = idx
		} else {
			b.current = len(b.pages) - 1
		}
	case b.current > idx:
		b.current--
	}
	return toolText("ok"), nil
}

func (b *Backend) handleNavigate(url string) (*mcp.CallToolResult, error) {
	if url == "" {
		return toolError("navigate requires a url"), nil
	}
	b.mu.Lock()
	page, err := b.currentPage()
	b.mu.Unlock()
	if err != nil {
		return toolError(err.Error()), nil
	}

	page = page.Timeout(b.cfg.NavigateTimeout)
	if err := page.Navigate(url); err != nil {
		return toolError(fmt.Sprintf("navigate to %s: %v", url, err)), nil
	}
	if err := page.WaitLoad(); err != nil {
		return toolError(fmt.Sprintf("load %s: %v", url, err)), nil
	}
	return toolText("ok"), nil
}

func (b *Backend) handleNavigateBack() (*mcp.CallToolResult, error) {
	b.mu.Lock()
	page, err := b.currentPage()
	b.mu.Unlock()
	if err != nil {
		return toolError(err.Error()), nil
	}

	page = page.Timeout(b.cfg.NavigateTimeout)
	if err := page.NavigateBack(); err != nil {
		return toolError(fmt.Sprintf("navigate back: %v", err)), nil
	}
	if err := page.WaitLoad(); err != nil {
		return toolError(fmt.Sprintf("load after back: %v", err)), nil
	}
	return toolText("ok"), nil
}

// openPage creates a blank page, appends it to the tab order and makes it
// current. Callers on the tool path must hold b.mu; New calls it before the
// backend is shared.
func (b *Backend) openPage(url string) (int, error) {
	page, err := b.browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return 0, fmt.Errorf("create page: %w", err)
	}
	b.pages = append(b.pages, page)
	b.current = len(b.pages) - 1
	return b.current, nil
}

func (b *Backend) currentPage() (*rod.Page, error) {
	if b.current < 0 || b.current >= len(b.pages) {
		return nil, errors.New("no tab is selected")
	}
	return b.pages[b.current], nil
}

// snapshot reads every page's URL and title. A page that refuses to answer
// still occupies its slot so indices stay truthful.
func (b *Backend) snapshot() []tabInfo {
	tabs := make([]tabInfo, len(b.pages))
	for i, p := range b.pages {
		info, err := p.Info()
		if err != nil {
			tabs[i] = tabInfo{URL: "about:blank", Title: "Unavailable"}
			continue
		}
		tabs[i] = tabInfo{URL: info.URL, Title: info.Title}
	}
	return tabs
}

func indexArg(args map[string]interface{}) (int, bool) {
	switch n := args["index"].(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func toolText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{mcp.NewTextContent(text)}}
}

func toolError(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{IsError: true, Content: []mcp.Content{mcp.NewTextContent(text)}}
}
