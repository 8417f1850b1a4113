package browseragent

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"browseragent/internal/sandbox"
)

// Controller wraps the ActionRegistry and exposes execute_action, adding
// launch-gating, timing, and a per-run action history on top of raw
// dispatch.
type Controller struct {
	registry *ActionRegistry
	browser  BrowserFacade
	baseDir  string

	mu       sync.Mutex
	history  []ActionResult
	launched bool
}

// NewController builds a Controller with the built-in action catalog
// registered over browser/baseDir.
func NewController(browser BrowserFacade, baseDir string) *Controller {
	c := &Controller{registry: NewActionRegistry(), browser: browser, baseDir: baseDir}
	registerBuiltinActions(c.registry)
	return c
}

// Registry exposes the underlying ActionRegistry for external registration.
func (c *Controller) Registry() *ActionRegistry { return c.registry }

// MarkLaunched records that the browser facade has completed its bootstrap
// `init` action; all other actions refuse to run before this.
func (c *Controller) MarkLaunched() { c.launched = true }

// ExecuteAction times the call, records an ActionResult into the in-memory
// action history, and surfaces is_done from the callback result.
func (c *Controller) ExecuteAction(ctx context.Context, name string, params map[string]any) ActionResult {
	start := time.Now()
	if !c.launched && name != "init" {
		res := ActionResult{
			Success: false, ActionName: name, Params: params,
			Error: "browser not launched", Timestamp: start, Duration: 0,
		}
		c.record(res)
		return res
	}

	ec := ExecContext{Ctx: ctx, Browser: c.browser, BaseDir: c.baseDir}
	raw, err := c.registry.ExecuteAction(ec, name, params)
	res := ActionResult{
		ActionName: name, Params: params, Timestamp: start, Duration: time.Since(start),
	}
	if err != nil {
		res.Success = false
		res.Error = err.Error()
	} else {
		res.Success = true
		res.Result = raw
		if dr, ok := raw.(doneResult); ok {
			res.IsDone = true
			res.Success = dr.Success
			res.Result = dr.Text
		}
	}
	c.record(res)
	return res
}

func (c *Controller) record(r ActionResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, r)
}

// History returns the per-run action history accumulated so far.
func (c *Controller) History() []ActionResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ActionResult(nil), c.history...)
}

// doneResult is the sentinel payload the terminal `done` action returns so
// ExecuteAction can surface is_done without special-casing the name.
type doneResult struct {
	Success bool
	Text    string
}

func strParam(params map[string]any, name string) string {
	if v, ok := params[name]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func boolParam(params map[string]any, name string, def bool) bool {
	if v, ok := params[name]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

func intParam(params map[string]any, name string, def int) int {
	if v, ok := params[name]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		}
	}
	return def
}

// registerBuiltinActions installs the minimum required catalog from spec
// §4.2. Names, parameter keys, and required-ness are contractual.
func registerBuiltinActions(r *ActionRegistry) {
	must := func(def *ActionDefinition) {
		if err := r.Register(def, false); err != nil {
			panic(err) // built-in catalog is malformed: a ConfigError here is a programmer error.
		}
	}

	must(&ActionDefinition{
		Name: "init", Description: "Bootstrap the browser session.",
		Execute: func(ctx ExecContext, params map[string]any) (any, error) { return nil, nil },
	})

	must(&ActionDefinition{
		Name: "goto", Description: "Navigate to a URL.",
		Parameters: map[string]*ActionParameter{
			"url": {Type: TypeString, Required: true, Description: "Absolute http(s) URL.", Pattern: `^https?://.+`},
		},
		Execute: func(ctx ExecContext, params map[string]any) (any, error) {
			return nil, ctx.Browser.Navigate(ctx.Ctx, strParam(params, "url"))
		},
	})

	must(&ActionDefinition{
		Name: "refresh", Description: "Reload the current page.",
		Execute: func(ctx ExecContext, params map[string]any) (any, error) { return nil, ctx.Browser.Refresh(ctx.Ctx) },
	})
	must(&ActionDefinition{
		Name: "go_back", Description: "Navigate back in history. Soft-fails on an empty stack.",
		Execute: func(ctx ExecContext, params map[string]any) (any, error) {
			if err := ctx.Browser.GoBack(ctx.Ctx); err != nil {
				return map[string]any{"warning": err.Error()}, nil
			}
			return nil, nil
		},
	})
	must(&ActionDefinition{
		Name: "go_forward", Description: "Navigate forward in history. Soft-fails on an empty stack.",
		Execute: func(ctx ExecContext, params map[string]any) (any, error) {
			if err := ctx.Browser.GoForward(ctx.Ctx); err != nil {
				return map[string]any{"warning": err.Error()}, nil
			}
			return nil, nil
		},
	})

	must(&ActionDefinition{
		Name: "new_tab", Description: "Open a new tab and switch to it.",
		Parameters: map[string]*ActionParameter{
			"url": {Type: TypeString, Required: false, Description: "Optional URL to load in the new tab."},
		},
		Execute: func(ctx ExecContext, params map[string]any) (any, error) {
			idx, err := ctx.Browser.NewTab(ctx.Ctx, strParam(params, "url"))
			return map[string]any{"tab_index": idx}, err
		},
	})
	must(&ActionDefinition{
		Name: "switch_to_tab", Description: "Activate a tab by index.",
		Parameters: map[string]*ActionParameter{
			"index": {Type: TypeNumber, Required: true, Description: "Tab index.", Minimum: floatPtr(0)},
		},
		Execute: func(ctx ExecContext, params map[string]any) (any, error) {
			return nil, ctx.Browser.SwitchToTab(ctx.Ctx, intParam(params, "index", 0))
		},
	})
	must(&ActionDefinition{
		Name: "close_tab", Description: "Close a tab by index, falling back to the current tab.",
		Parameters: map[string]*ActionParameter{
			"index": {Type: TypeNumber, Required: false, Description: "Tab index.", Minimum: floatPtr(0)},
		},
		Execute: func(ctx ExecContext, params map[string]any) (any, error) {
			return nil, ctx.Browser.CloseTab(ctx.Ctx, intParam(params, "index", -1))
		},
	})

	must(&ActionDefinition{
		Name: "click", Description: "Click an element.",
		Parameters: map[string]*ActionParameter{
			"selector":          {Type: TypeString, Required: true, Description: "CSS selector."},
			"wait_for_selector": {Type: TypeBoolean, Required: false, Description: "Wait for the selector to appear first."},
		},
		Execute: func(ctx ExecContext, params map[string]any) (any, error) {
			return nil, ctx.Browser.Click(ctx.Ctx, strParam(params, "selector"), boolParam(params, "wait_for_selector", false))
		},
	})
	must(&ActionDefinition{
		Name: "type", Description: "Fill an input.",
		Parameters: map[string]*ActionParameter{
			"selector":    {Type: TypeString, Required: true, Description: "CSS selector."},
			"text":        {Type: TypeString, Required: true, Description: "Text to type."},
			"clear_first": {Type: TypeBoolean, Required: false, Description: "Clear the field before typing."},
		},
		Execute: func(ctx ExecContext, params map[string]any) (any, error) {
			return nil, ctx.Browser.Type(ctx.Ctx, strParam(params, "selector"), strParam(params, "text"), boolParam(params, "clear_first", false))
		},
	})
	must(&ActionDefinition{
		Name: "scroll_to", Description: "Scroll an element into view.",
		Parameters: map[string]*ActionParameter{
			"selector": {Type: TypeString, Required: true, Description: "CSS selector."},
		},
		Execute: func(ctx ExecContext, params map[string]any) (any, error) {
			return nil, ctx.Browser.ScrollTo(ctx.Ctx, strParam(params, "selector"))
		},
	})
	must(&ActionDefinition{
		Name: "select_option", Description: "Choose a dropdown option by value.",
		Parameters: map[string]*ActionParameter{
			"selector": {Type: TypeString, Required: true, Description: "CSS selector."},
			"value":    {Type: TypeString, Required: true, Description: "Option value."},
		},
		Execute: func(ctx ExecContext, params map[string]any) (any, error) {
			return nil, ctx.Browser.SelectOption(ctx.Ctx, strParam(params, "selector"), strParam(params, "value"))
		},
	})
	must(&ActionDefinition{
		Name: "upload_file", Description: "Attach a file to a file input.",
		Parameters: map[string]*ActionParameter{
			"selector":  {Type: TypeString, Required: true, Description: "CSS selector."},
			"file_path": {Type: TypeString, Required: true, Description: "Path under the agent's allowed working directory."},
		},
		Execute: func(ctx ExecContext, params map[string]any) (any, error) {
			rel, err := sandbox.SanitizeArg(ctx.BaseDir, strParam(params, "file_path"))
			if err != nil {
				return nil, fmt.Errorf("upload_file: %w", err)
			}
			return nil, ctx.Browser.UploadFile(ctx.Ctx, strParam(params, "selector"), filepath.Join(ctx.BaseDir, rel))
		},
	})
	must(&ActionDefinition{
		Name: "drag_and_drop", Description: "Drag one element onto another.",
		Parameters: map[string]*ActionParameter{
			"source_selector": {Type: TypeString, Required: true, Description: "CSS selector of the dragged element."},
			"target_selector": {Type: TypeString, Required: true, Description: "CSS selector of the drop target."},
		},
		Execute: func(ctx ExecContext, params map[string]any) (any, error) {
			return nil, ctx.Browser.DragAndDrop(ctx.Ctx, strParam(params, "source_selector"), strParam(params, "target_selector"))
		},
	})
	must(&ActionDefinition{
		Name: "handle_dialog", Description: "Arm a one-shot handler for the next JS dialog.",
		Parameters: map[string]*ActionParameter{
			"accept":      {Type: TypeBoolean, Required: false, Description: "Accept (true, default) or dismiss (false)."},
			"prompt_text": {Type: TypeString, Required: false, Description: "Text to enter for a prompt() dialog."},
		},
		Execute: func(ctx ExecContext, params map[string]any) (any, error) {
			ctx.Browser.ArmDialogHandler(boolParam(params, "accept", true), strParam(params, "prompt_text"))
			return nil, nil
		},
	})

	must(&ActionDefinition{
		Name: "extract_text", Description: "Read an element's text content.",
		Parameters: map[string]*ActionParameter{
			"selector":        {Type: TypeString, Required: true, Description: "CSS selector."},
			"prefer_readable": {Type: TypeBoolean, Required: false, Description: "Score the page for its main content instead of reading the selector verbatim."},
		},
		Execute: func(ctx ExecContext, params map[string]any) (any, error) {
			if boolParam(params, "prefer_readable", false) {
				raw, err := ctx.Browser.GetPageHTML(ctx.Ctx)
				if err != nil {
					return nil, err
				}
				return ExtractReadableText(raw)
			}
			return ctx.Browser.ExtractText(ctx.Ctx, strParam(params, "selector"))
		},
	})
	must(&ActionDefinition{
		Name: "extract_attribute", Description: "Read one attribute from an element.",
		Parameters: map[string]*ActionParameter{
			"selector":  {Type: TypeString, Required: true, Description: "CSS selector."},
			"attribute": {Type: TypeString, Required: true, Description: "Attribute name."},
		},
		Execute: func(ctx ExecContext, params map[string]any) (any, error) {
			return ctx.Browser.ExtractAttribute(ctx.Ctx, strParam(params, "selector"), strParam(params, "attribute"))
		},
	})
	must(&ActionDefinition{
		Name: "get_page_html", Description: "Return the page's raw HTML.",
		Execute: func(ctx ExecContext, params map[string]any) (any, error) { return ctx.Browser.GetPageHTML(ctx.Ctx) },
	})
	must(&ActionDefinition{
		Name: "get_clickable_elements", Description: "List the current selector map's clickable elements.",
		Execute: func(ctx ExecContext, params map[string]any) (any, error) {
			summary, err := ctx.Browser.GetStateSummary(ctx.Ctx, false)
			if err != nil {
				return nil, err
			}
			return summary.SelectorMap, nil
		},
	})
	must(&ActionDefinition{
		Name: "get_all_visible_text_nodes", Description: "Return the page's full visible text.",
		Execute: func(ctx ExecContext, params map[string]any) (any, error) {
			return ctx.Browser.ExtractText(ctx.Ctx, "body")
		},
	})
	must(&ActionDefinition{
		Name: "screenshot", Description: "Capture a screenshot.",
		Parameters: map[string]*ActionParameter{
			"full_page": {Type: TypeBoolean, Required: false, Description: "Capture the full scrollable page instead of the viewport."},
		},
		Execute: func(ctx ExecContext, params map[string]any) (any, error) {
			return ctx.Browser.Screenshot(ctx.Ctx, boolParam(params, "full_page", false))
		},
	})

	must(&ActionDefinition{
		Name: "highlight_elements", Description: "Inject a visual overlay over interactive elements.",
		Execute: func(ctx ExecContext, params map[string]any) (any, error) {
			return nil, ctx.Browser.HighlightElements(ctx.Ctx)
		},
	})
	must(&ActionDefinition{
		Name: "remove_highlights", Description: "Remove the visual overlay, leaving the DOM structurally unchanged.",
		Execute: func(ctx ExecContext, params map[string]any) (any, error) {
			return nil, ctx.Browser.RemoveHighlights(ctx.Ctx)
		},
	})

	must(&ActionDefinition{
		Name: "get_cookie", Description: "Read a cookie by name.",
		Parameters: map[string]*ActionParameter{"name": {Type: TypeString, Required: true, Description: "Cookie name."}},
		Execute: func(ctx ExecContext, params map[string]any) (any, error) {
			return ctx.Browser.GetCookie(ctx.Ctx, strParam(params, "name"))
		},
	})
	must(&ActionDefinition{
		Name: "set_cookie", Description: "Write a cookie.",
		Parameters: map[string]*ActionParameter{
			"name":  {Type: TypeString, Required: true, Description: "Cookie name."},
			"value": {Type: TypeString, Required: true, Description: "Cookie value."},
		},
		Execute: func(ctx ExecContext, params map[string]any) (any, error) {
			return nil, ctx.Browser.SetCookie(ctx.Ctx, strParam(params, "name"), strParam(params, "value"))
		},
	})
	must(&ActionDefinition{
		Name: "clear_cookies", Description: "Clear all cookies for the session.",
		Execute: func(ctx ExecContext, params map[string]any) (any, error) {
			return nil, ctx.Browser.ClearCookies(ctx.Ctx)
		},
	})
	must(&ActionDefinition{
		Name: "get_storage_item", Description: "Read a localStorage value by key.",
		Parameters: map[string]*ActionParameter{
			"key": {Type: TypeString, Required: true, Description: "Storage key."},
		},
		Execute: func(ctx ExecContext, params map[string]any) (any, error) {
			return ctx.Browser.GetStorageItem(ctx.Ctx, strParam(params, "key"))
		},
	})
	must(&ActionDefinition{
		Name: "set_storage_item", Description: "Write a localStorage value.",
		Parameters: map[string]*ActionParameter{
			"key":   {Type: TypeString, Required: true, Description: "Storage key."},
			"value": {Type: TypeString, Required: true, Description: "Value to store."},
		},
		Execute: func(ctx ExecContext, params map[string]any) (any, error) {
			return nil, ctx.Browser.SetStorageItem(ctx.Ctx, strParam(params, "key"), strParam(params, "value"))
		},
	})

	must(&ActionDefinition{
		Name: "done", Description: "Terminal action: declare the task finished.",
		Parameters: map[string]*ActionParameter{
			"success": {Type: TypeBoolean, Required: true, Description: "Whether the task was accomplished."},
			"text":    {Type: TypeString, Required: true, Description: "Final result text."},
		},
		Execute: func(ctx ExecContext, params map[string]any) (any, error) {
			return doneResult{Success: boolParam(params, "success", false), Text: strParam(params, "text")}, nil
		},
	})
}

func floatPtr(f float64) *float64 { return &f }
