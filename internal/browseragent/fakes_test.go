package browseragent

import (
	"context"
	"errors"
	"sync"

	"browseragent/internal/llm"
)

// fakeBrowser is a scriptable BrowserFacade. GetStateSummary pops from
// summaries (the last entry repeats); every input call is appended to calls.
// GoBack always fails as if the history stack were empty.
type fakeBrowser struct {
	mu        sync.Mutex
	summaries []*BrowserStateSummary
	calls     []string
	closed    bool
}

func newFakeBrowser(summaries ...*BrowserStateSummary) *fakeBrowser {
	if len(summaries) == 0 {
		summaries = []*BrowserStateSummary{{
			URL:         "https://example.com",
			Title:       "Example Domain",
			Tabs:        []Tab{{ID: 0, URL: "https://example.com", Active: true}},
			SelectorMap: map[int]*DOMHistoryElement{},
		}}
	}
	return &fakeBrowser{summaries: summaries}
}

func (b *fakeBrowser) record(call string) {
	b.mu.Lock()
	b.calls = append(b.calls, call)
	b.mu.Unlock()
}

func (b *fakeBrowser) recorded() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func (b *fakeBrowser) Launch(ctx context.Context, headless bool, profileDir string) error {
	b.record("launch")
	return nil
}

func (b *fakeBrowser) Close(ctx context.Context) error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

func (b *fakeBrowser) Navigate(ctx context.Context, url string) error {
	b.record("navigate:" + url)
	return nil
}
func (b *fakeBrowser) Refresh(ctx context.Context) error { b.record("refresh"); return nil }
func (b *fakeBrowser) GoBack(ctx context.Context) error {
	b.record("go_back")
	return errors.New("no previous history entry")
}
func (b *fakeBrowser) GoForward(ctx context.Context) error { b.record("go_forward"); return nil }

func (b *fakeBrowser) NewTab(ctx context.Context, url string) (int, error) {
	b.record("new_tab")
	return 1, nil
}
func (b *fakeBrowser) SwitchToTab(ctx context.Context, index int) error {
	b.record("switch_to_tab")
	return nil
}
func (b *fakeBrowser) CloseTab(ctx context.Context, index int) error {
	b.record("close_tab")
	return nil
}
func (b *fakeBrowser) CurrentTab(ctx context.Context) (Tab, error) { return Tab{}, nil }

func (b *fakeBrowser) Click(ctx context.Context, selector string, waitForSelector bool) error {
	b.record("click:" + selector)
	return nil
}
func (b *fakeBrowser) Type(ctx context.Context, selector, text string, clearFirst bool) error {
	b.record("type:" + selector + ":" + text)
	return nil
}
func (b *fakeBrowser) ScrollTo(ctx context.Context, selector string) error {
	b.record("scroll_to:" + selector)
	return nil
}
func (b *fakeBrowser) SelectOption(ctx context.Context, selector, value string) error {
	b.record("select_option")
	return nil
}
func (b *fakeBrowser) UploadFile(ctx context.Context, selector, absPath string) error {
	b.record("upload_file:" + absPath)
	return nil
}
func (b *fakeBrowser) DragAndDrop(ctx context.Context, sourceSelector, targetSelector string) error {
	b.record("drag_and_drop")
	return nil
}
func (b *fakeBrowser) ArmDialogHandler(accept bool, promptText string) { b.record("handle_dialog") }

func (b *fakeBrowser) ExtractText(ctx context.Context, selector string) (string, error) {
	return "text", nil
}
func (b *fakeBrowser) ExtractAttribute(ctx context.Context, selector, attribute string) (string, error) {
	return "value", nil
}
func (b *fakeBrowser) GetPageHTML(ctx context.Context) (string, error) { return "<html></html>", nil }
func (b *fakeBrowser) Screenshot(ctx context.Context, fullPage bool) (string, error) {
	return "", nil
}

func (b *fakeBrowser) GetCookie(ctx context.Context, name string) (string, error) { return "", nil }
func (b *fakeBrowser) SetCookie(ctx context.Context, name, value string) error    { return nil }
func (b *fakeBrowser) ClearCookies(ctx context.Context) error                     { return nil }
func (b *fakeBrowser) GetStorageItem(ctx context.Context, key string) (string, error) {
	return "", nil
}
func (b *fakeBrowser) SetStorageItem(ctx context.Context, key, value string) error { return nil }

func (b *fakeBrowser) HighlightElements(ctx context.Context) error { return nil }
func (b *fakeBrowser) RemoveHighlights(ctx context.Context) error {
	b.record("remove_highlights")
	return nil
}

func (b *fakeBrowser) GetStateSummary(ctx context.Context, recomputeHashes bool) (*BrowserStateSummary, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.summaries[0]
	if len(b.summaries) > 1 {
		b.summaries = b.summaries[1:]
	}
	return s, nil
}

var _ BrowserFacade = (*fakeBrowser)(nil)

// fakeProvider is a scriptable llm.Provider: responses are returned in call
// order (the last repeats), and onCall fires after each response is chosen.
type fakeProvider struct {
	mu        sync.Mutex
	responses []llm.Message
	errs      []error
	calls     int
	msgsLog   [][]llm.Message
	onCall    func(call int)
}

func (f *fakeProvider) Chat(ctx context.Context, msgs []llm.Message, tools []llm.ToolSchema, model string) (llm.Message, error) {
	f.mu.Lock()
	i := f.calls
	f.calls++
	f.msgsLog = append(f.msgsLog, append([]llm.Message(nil), msgs...))
	hook := f.onCall
	var resp llm.Message
	var err error
	if i < len(f.errs) && f.errs[i] != nil {
		err = f.errs[i]
	} else if len(f.responses) > 0 {
		if i >= len(f.responses) {
			i = len(f.responses) - 1
		}
		resp = f.responses[i]
	}
	f.mu.Unlock()
	if hook != nil {
		hook(i)
	}
	return resp, err
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeProvider) messagesOfCall(i int) []llm.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i < 0 || i >= len(f.msgsLog) {
		return nil
	}
	return f.msgsLog[i]
}

var _ llm.Provider = (*fakeProvider)(nil)

func rawOut(actions string) llm.Message {
	return llm.Message{Role: "assistant", Content: `{"current_state":{"page_summary":"","evaluation_previous_goal":"","memory":"","next_goal":""},"action":` + actions + `}`}
}

// newTestAgent wires an agent over a fake browser and raw-mode fake provider
// with verification skipped.
func newTestAgent(task string, browser *fakeBrowser, provider *fakeProvider, mutate func(*AgentSettings)) *Agent {
	settings := DefaultAgentSettings()
	settings.ToolCallingMethod = MethodRaw
	settings.WaitBetweenActions = 0
	settings.RetryDelay = 0
	if mutate != nil {
		mutate(&settings)
	}
	controller := NewController(browser, "")
	controller.MarkLaunched()
	adapter := NewLLMAdapter(provider, "test-model", true)
	messages := NewMessageManager(task, DefaultSystemPrompt(task, controller.Registry(), settings), "test-model", settings, nil)
	agent := NewAgent(task, settings, controller, messages, adapter)
	agent.exit = func(int) {}
	return agent
}
