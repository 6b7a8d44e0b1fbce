package gateway

// The tool catalogue is the REST/MCP face of the extension's method set.
// Each tool maps a public name and JSON-schema onto the method string the
// extension dispatches on, plus a translation from tool arguments to method
// params (tool schemas use snake_case, the extension expects camelCase).

// Tool describes one invokable browser operation.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema Schema `json:"inputSchema"`
}

// Schema describes a tool's parameters as a JSON schema object.
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required"`
}

// Property describes a single parameter.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

type toolBinding struct {
	tool   Tool
	method string
	// params maps the tool's argument object to the extension method's
	// params object. args is never nil.
	params func(args map[string]any) map[string]any
}

func tabIDParams(args map[string]any) map[string]any {
	return map[string]any{"tabId": args["tab_id"]}
}

var toolBindings = map[string]toolBinding{
	"browser_tabs_list": {
		tool: Tool{
			Name:        "browser_tabs_list",
			Description: "List all open browser tabs",
			InputSchema: Schema{Type: "object", Properties: map[string]Property{}, Required: []string{}},
		},
		method: "tabs/list",
		params: func(args map[string]any) map[string]any { return map[string]any{} },
	},
	"browser_tab_activate": {
		tool: Tool{
			Name:        "browser_tab_activate",
			Description: "Activate/focus a specific tab",
			InputSchema: Schema{
				Type: "object",
				Properties: map[string]Property{
					"tab_id": {Type: "integer", Description: "ID of the tab to activate"},
				},
				Required: []string{"tab_id"},
			},
		},
		method: "tabs/activate",
		params: tabIDParams,
	},
	"browser_tab_navigate": {
		tool: Tool{
			Name:        "browser_tab_navigate",
			Description: "Navigate a tab to a URL",
			InputSchema: Schema{
				Type: "object",
				Properties: map[string]Property{
					"tab_id": {Type: "integer", Description: "ID of the tab"},
					"url":    {Type: "string", Description: "URL to navigate to"},
				},
				Required: []string{"tab_id", "url"},
			},
		},
		method: "tabs/navigate",
		params: func(args map[string]any) map[string]any {
			return map[string]any{"tabId": args["tab_id"], "url": args["url"]}
		},
	},
	"browser_tab_close": {
		tool: Tool{
			Name:        "browser_tab_close",
			Description: "Close a tab",
			InputSchema: Schema{
				Type: "object",
				Properties: map[string]Property{
					"tab_id": {Type: "integer", Description: "ID of the tab to close"},
				},
				Required: []string{"tab_id"},
			},
		},
		method: "tabs/close",
		params: tabIDParams,
	},
	"browser_tab_screenshot": {
		tool: Tool{
			Name:        "browser_tab_screenshot",
			Description: "Take a screenshot of a tab",
			InputSchema: Schema{
				Type: "object",
				Properties: map[string]Property{
					"tab_id": {Type: "integer", Description: "ID of the tab"},
				},
				Required: []string{"tab_id"},
			},
		},
		method: "tabs/screenshot",
		params: tabIDParams,
	},
	"browser_page_content": {
		tool: Tool{
			Name:        "browser_page_content",
			Description: "Get page content (text, HTML, links)",
			InputSchema: Schema{
				Type: "object",
				Properties: map[string]Property{
					"tab_id": {Type: "integer", Description: "ID of the tab"},
				},
				Required: []string{"tab_id"},
			},
		},
		method: "page/getContent",
		params: tabIDParams,
	},
	"browser_page_click": {
		tool: Tool{
			Name:        "browser_page_click",
			Description: "Click an element by CSS selector",
			InputSchema: Schema{
				Type: "object",
				Properties: map[string]Property{
					"tab_id":   {Type: "integer", Description: "ID of the tab"},
					"selector": {Type: "string", Description: "CSS selector"},
				},
				Required: []string{"tab_id", "selector"},
			},
		},
		method: "page/click",
		params: func(args map[string]any) map[string]any {
			return map[string]any{"tabId": args["tab_id"], "selector": args["selector"]}
		},
	},
	"browser_page_fill": {
		tool: Tool{
			Name:        "browser_page_fill",
			Description: "Fill an input field",
			InputSchema: Schema{
				Type: "object",
				Properties: map[string]Property{
					"tab_id":   {Type: "integer", Description: "ID of the tab"},
					"selector": {Type: "string", Description: "CSS selector"},
					"value":    {Type: "string", Description: "Value to fill"},
				},
				Required: []string{"tab_id", "selector", "value"},
			},
		},
		method: "page/fill",
		params: func(args map[string]any) map[string]any {
			return map[string]any{"tabId": args["tab_id"], "selector": args["selector"], "value": args["value"]}
		},
	},
	"browser_page_scroll": {
		tool: Tool{
			Name:        "browser_page_scroll",
			Description: "Scroll the page",
			InputSchema: Schema{
				Type: "object",
				Properties: map[string]Property{
					"tab_id": {Type: "integer", Description: "ID of the tab"},
					"x":      {Type: "integer", Description: "X scroll position"},
					"y":      {Type: "integer", Description: "Y scroll position"},
				},
				Required: []string{"tab_id"},
			},
		},
		method: "page/scroll",
		params: func(args map[string]any) map[string]any {
			p := map[string]any{"tabId": args["tab_id"], "x": 0, "y": 0}
			if x, ok := args["x"]; ok {
				p["x"] = x
			}
			if y, ok := args["y"]; ok {
				p["y"] = y
			}
			return p
		},
	},
	"browser_page_execute": {
		tool: Tool{
			Name:        "browser_page_execute",
			Description: "Execute JavaScript in the page",
			InputSchema: Schema{
				Type: "object",
				Properties: map[string]Property{
					"tab_id": {Type: "integer", Description: "ID of the tab"},
					"script": {Type: "string", Description: "JavaScript code"},
				},
				Required: []string{"tab_id", "script"},
			},
		},
		method: "page/executeScript",
		params: func(args map[string]any) map[string]any {
			return map[string]any{"tabId": args["tab_id"], "script": args["script"]}
		},
	},
	"browser_page_find": {
		tool: Tool{
			Name:        "browser_page_find",
			Description: "Find elements by CSS selector",
			InputSchema: Schema{
				Type: "object",
				Properties: map[string]Property{
					"tab_id":   {Type: "integer", Description: "ID of the tab"},
					"selector": {Type: "string", Description: "CSS selector"},
				},
				Required: []string{"tab_id", "selector"},
			},
		},
		method: "page/find",
		params: func(args map[string]any) map[string]any {
			return map[string]any{"tabId": args["tab_id"], "selector": args["selector"]}
		},
	},
}

// Catalogue returns all tools in a stable order.
func Catalogue() []Tool {
	names := []string{
		"browser_tabs_list",
		"browser_tab_activate",
		"browser_tab_navigate",
		"browser_tab_close",
		"browser_tab_screenshot",
		"browser_page_content",
		"browser_page_click",
		"browser_page_fill",
		"browser_page_scroll",
		"browser_page_execute",
		"browser_page_find",
	}
	tools := make([]Tool, 0, len(names))
	for _, name := range names {
		tools = append(tools, toolBindings[name].tool)
	}
	return tools
}
