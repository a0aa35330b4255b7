package tooladapter

import "strings"

// Capabilities names the browser tools an agent actually exposes. An empty
// field means the capability is absent. Only the name patterns below are
// recognized; everything else about the toolset is opaque.
type Capabilities struct {
	TabsTool         string
	NavigateTool     string
	NavigateBackTool string
}

// HasTabs reports whether the agent can list/create/select/close tabs. Without
// it the engine degrades to single-shared-tab mode.
func (c Capabilities) HasTabs() bool {
	return c.TabsTool != ""
}

// HasNavigate reports whether the agent can navigate the current tab.
func (c Capabilities) HasNavigate() bool {
	return c.NavigateTool != ""
}

// DetectCapabilities scans a toolset for the recognized browser capability
// name patterns. navigate_back is matched before navigate so the plain
// navigate pattern does not swallow it.
func DetectCapabilities(toolNames []string) Capabilities {
	var caps Capabilities
	for _, name := range toolNames {
		lower := strings.ToLower(name)
		switch {
		case strings.Contains(lower, "browser_tabs"):
			if caps.TabsTool == "" {
				caps.TabsTool = name
			}
		case strings.Contains(lower, "browser_navigate_back"):
			if caps.NavigateBackTool == "" {
				caps.NavigateBackTool = name
			}
		case strings.Contains(lower, "browser_navigate"):
			if caps.NavigateTool == "" {
				caps.NavigateTool = name
			}
		}
	}
	return caps
}
