package browseragent

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// BrowserFacade is the thin, stateful handle to a live browser that the
// Agent Core and Controller depend on. The core only consumes this
// interface; the chromedp-backed implementation below is one concrete
// provider.
type BrowserFacade interface {
	Launch(ctx context.Context, headless bool, profileDir string) error
	Close(ctx context.Context) error

	Navigate(ctx context.Context, url string) error
	Refresh(ctx context.Context) error
	GoBack(ctx context.Context) error
	GoForward(ctx context.Context) error

	NewTab(ctx context.Context, url string) (int, error)
	SwitchToTab(ctx context.Context, index int) error
	CloseTab(ctx context.Context, index int) error
	CurrentTab(ctx context.Context) (Tab, error)

	Click(ctx context.Context, selector string, waitForSelector bool) error
	Type(ctx context.Context, selector, text string, clearFirst bool) error
	ScrollTo(ctx context.Context, selector string) error
	SelectOption(ctx context.Context, selector, value string) error
	UploadFile(ctx context.Context, selector, absPath string) error
	DragAndDrop(ctx context.Context, sourceSelector, targetSelector string) error
	ArmDialogHandler(accept bool, promptText string)

	ExtractText(ctx context.Context, selector string) (string, error)
	ExtractAttribute(ctx context.Context, selector, attribute string) (string, error)
	GetPageHTML(ctx context.Context) (string, error)
	Screenshot(ctx context.Context, fullPage bool) (string, error) // base64 PNG

	GetCookie(ctx context.Context, name string) (string, error)
	SetCookie(ctx context.Context, name, value string) error
	ClearCookies(ctx context.Context) error
	GetStorageItem(ctx context.Context, key string) (string, error)
	SetStorageItem(ctx context.Context, key, value string) error

	HighlightElements(ctx context.Context) error
	RemoveHighlights(ctx context.Context) error

	// GetStateSummary produces a fresh BrowserStateSummary. When
	// recomputeHashes is false, implementations may reuse the previous
	// selector map's branch_path_hash values for elements that still exist,
	// which is cheaper but only used by multi_act's intra-batch drift probe.
	GetStateSummary(ctx context.Context, recomputeHashes bool) (*BrowserStateSummary, error)
}

// ChromedpBrowser is a BrowserFacade backed by chromedp (Chrome DevTools
// Protocol).
type ChromedpBrowser struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc

	tabs        []Tab
	activeTab   int
	snapshotter *DOMSnapshotter

	dialogAccept bool
	dialogPrompt string
	dialogArmed  bool
}

// NewChromedpBrowser constructs an unlaunched facade.
func NewChromedpBrowser() *ChromedpBrowser {
	return &ChromedpBrowser{snapshotter: NewDOMSnapshotter()}
}

func (b *ChromedpBrowser) Launch(ctx context.Context, headless bool, profileDir string) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.Flag("headless", headless))
	if profileDir != "" {
		opts = append(opts, chromedp.UserDataDir(profileDir))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	taskCtx, cancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(taskCtx); err != nil {
		cancel()
		allocCancel()
		return fmt.Errorf("launch browser: %w", err)
	}
	b.allocCtx, b.allocCancel = allocCtx, allocCancel
	b.ctx, b.cancel = taskCtx, cancel
	b.tabs = []Tab{{ID: 0, Active: true}}

	chromedp.ListenTarget(b.ctx, func(ev any) {
		if _, ok := ev.(*page.EventJavascriptDialogOpening); ok && b.dialogArmed {
			go func() {
				_ = chromedp.Run(b.ctx, page.HandleJavaScriptDialog(b.dialogAccept).WithPromptText(b.dialogPrompt))
				b.dialogArmed = false
			}()
		}
	})
	return nil
}

func (b *ChromedpBrowser) Close(ctx context.Context) error {
	if b.cancel != nil {
		b.cancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
	return nil
}

func (b *ChromedpBrowser) Navigate(ctx context.Context, url string) error {
	return chromedp.Run(b.ctx, chromedp.Navigate(url), chromedp.WaitReady("body"))
}

func (b *ChromedpBrowser) Refresh(ctx context.Context) error {
	return chromedp.Run(b.ctx, chromedp.Reload())
}

func (b *ChromedpBrowser) GoBack(ctx context.Context) error {
	return chromedp.Run(b.ctx, chromedp.NavigateBack())
}

func (b *ChromedpBrowser) GoForward(ctx context.Context) error {
	return chromedp.Run(b.ctx, chromedp.NavigateForward())
}

func (b *ChromedpBrowser) NewTab(ctx context.Context, url string) (int, error) {
	newCtx, _ := chromedp.NewContext(b.ctx)
	actions := []chromedp.Action{chromedp.WaitReady("body")}
	if url != "" {
		actions = append([]chromedp.Action{chromedp.Navigate(url)}, actions...)
	}
	if err := chromedp.Run(newCtx, actions...); err != nil {
		return 0, fmt.Errorf("new tab: %w", err)
	}
	idx := len(b.tabs)
	b.tabs = append(b.tabs, Tab{ID: idx, URL: url})
	b.ctx = newCtx
	b.activeTab = idx
	return idx, nil
}

func (b *ChromedpBrowser) SwitchToTab(ctx context.Context, index int) error {
	if index < 0 || index >= len(b.tabs) {
		return fmt.Errorf("tab index %d out of range", index)
	}
	b.activeTab = index
	for i := range b.tabs {
		b.tabs[i].Active = i == index
	}
	return nil
}

func (b *ChromedpBrowser) CloseTab(ctx context.Context, index int) error {
	if index < 0 {
		index = b.activeTab
	}
	if index < 0 || index >= len(b.tabs) {
		return fmt.Errorf("tab index %d out of range", index)
	}
	b.tabs = append(b.tabs[:index], b.tabs[index+1:]...)
	return nil
}

func (b *ChromedpBrowser) CurrentTab(ctx context.Context) (Tab, error) {
	var url, title string
	if err := chromedp.Run(b.ctx, chromedp.Location(&url), chromedp.Title(&title)); err != nil {
		return Tab{}, err
	}
	return Tab{ID: b.activeTab, URL: url, Title: title, Active: true}, nil
}

func (b *ChromedpBrowser) Click(ctx context.Context, selector string, waitForSelector bool) error {
	actions := []chromedp.Action{}
	if waitForSelector {
		actions = append(actions, chromedp.WaitVisible(selector))
	}
	actions = append(actions, chromedp.Click(selector, chromedp.NodeVisible))
	return chromedp.Run(b.ctx, actions...)
}

func (b *ChromedpBrowser) Type(ctx context.Context, selector, text string, clearFirst bool) error {
	actions := []chromedp.Action{chromedp.WaitVisible(selector)}
	if clearFirst {
		actions = append(actions, chromedp.Clear(selector))
	}
	actions = append(actions, chromedp.SendKeys(selector, text))
	return chromedp.Run(b.ctx, actions...)
}

func (b *ChromedpBrowser) ScrollTo(ctx context.Context, selector string) error {
	return chromedp.Run(b.ctx, chromedp.ScrollIntoView(selector))
}

func (b *ChromedpBrowser) SelectOption(ctx context.Context, selector, value string) error {
	return chromedp.Run(b.ctx, chromedp.SetValue(selector, value))
}

func (b *ChromedpBrowser) UploadFile(ctx context.Context, selector, absPath string) error {
	return chromedp.Run(b.ctx, chromedp.SetUploadFiles(selector, []string{absPath}))
}

// dragAndDropScript simulates the HTML5 drag-and-drop event sequence via
// synthetic DOM events. CDP's raw mouse-event protocol does not reliably
// trigger a page's dragstart/dragover/drop handlers.
const dragAndDropScript = `(() => {
  const src = document.querySelector(%q);
  const dst = document.querySelector(%q);
  if (!src || !dst) throw new Error('drag_and_drop: selector not found');
  const dt = new DataTransfer();
  const fire = (el, type) => el.dispatchEvent(new DragEvent(type, {bubbles: true, cancelable: true, dataTransfer: dt}));
  fire(src, 'dragstart');
  fire(dst, 'dragenter');
  fire(dst, 'dragover');
  fire(dst, 'drop');
  fire(src, 'dragend');
})()`

func (b *ChromedpBrowser) DragAndDrop(ctx context.Context, sourceSelector, targetSelector string) error {
	script := fmt.Sprintf(dragAndDropScript, sourceSelector, targetSelector)
	return chromedp.Run(b.ctx,
		chromedp.WaitVisible(sourceSelector),
		chromedp.WaitVisible(targetSelector),
		chromedp.Evaluate(script, nil),
	)
}

func (b *ChromedpBrowser) ArmDialogHandler(accept bool, promptText string) {
	b.dialogAccept = accept
	b.dialogPrompt = promptText
	b.dialogArmed = true
}

func (b *ChromedpBrowser) ExtractText(ctx context.Context, selector string) (string, error) {
	var text string
	if err := chromedp.Run(b.ctx, chromedp.Text(selector, &text, chromedp.NodeVisible)); err != nil {
		return "", err
	}
	return text, nil
}

func (b *ChromedpBrowser) ExtractAttribute(ctx context.Context, selector, attribute string) (string, error) {
	var value string
	var ok bool
	if err := chromedp.Run(b.ctx, chromedp.AttributeValue(selector, attribute, &value, &ok)); err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("attribute %q not present on %q", attribute, selector)
	}
	return value, nil
}

func (b *ChromedpBrowser) GetPageHTML(ctx context.Context) (string, error) {
	var html string
	if err := chromedp.Run(b.ctx, chromedp.OuterHTML("html", &html)); err != nil {
		return "", err
	}
	return html, nil
}

func (b *ChromedpBrowser) Screenshot(ctx context.Context, fullPage bool) (string, error) {
	var buf []byte
	var err error
	if fullPage {
		err = chromedp.Run(b.ctx, chromedp.FullScreenshot(&buf, 90))
	} else {
		err = chromedp.Run(b.ctx, chromedp.CaptureScreenshot(&buf))
	}
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

func (b *ChromedpBrowser) GetCookie(ctx context.Context, name string) (string, error) {
	var cookies []*network.Cookie
	if err := chromedp.Run(b.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	})); err != nil {
		return "", err
	}
	for _, c := range cookies {
		if c.Name == name {
			return c.Value, nil
		}
	}
	return "", fmt.Errorf("cookie %q not found", name)
}

func (b *ChromedpBrowser) SetCookie(ctx context.Context, name, value string) error {
	var url string
	if err := chromedp.Run(b.ctx, chromedp.Location(&url)); err != nil {
		return err
	}
	return chromedp.Run(b.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return network.SetCookie(name, value).WithURL(url).Do(ctx)
	}))
}

func (b *ChromedpBrowser) ClearCookies(ctx context.Context) error {
	return chromedp.Run(b.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return network.ClearBrowserCookies().Do(ctx)
	}))
}

func (b *ChromedpBrowser) GetStorageItem(ctx context.Context, key string) (string, error) {
	var value string
	script := fmt.Sprintf(`window.localStorage.getItem(%q) ?? ""`, key)
	if err := chromedp.Run(b.ctx, chromedp.Evaluate(script, &value)); err != nil {
		return "", err
	}
	return value, nil
}

func (b *ChromedpBrowser) SetStorageItem(ctx context.Context, key, value string) error {
	script := fmt.Sprintf(`window.localStorage.setItem(%q, %q)`, key, value)
	return chromedp.Run(b.ctx, chromedp.Evaluate(script, nil))
}

// highlightScript draws index badges over interactive elements;
// removeHighlightScript takes them back out without touching the rest of
// the DOM.
const highlightScript = `(() => {
  document.querySelectorAll('[data-bu-highlight-index]').forEach(e => e.remove());
  let i = 0;
  document.querySelectorAll('a,button,input,select,textarea,[role=button]').forEach(el => {
    const r = el.getBoundingClientRect();
    if (r.width === 0 || r.height === 0) return;
    const box = document.createElement('div');
    box.setAttribute('data-bu-highlight-index', String(i));
    box.style.cssText = 'position:fixed;z-index:2147483647;pointer-events:none;border:2px solid red;left:' + r.left + 'px;top:' + r.top + 'px;width:' + r.width + 'px;height:' + r.height + 'px;';
    document.body.appendChild(box);
    i++;
  });
})()`

const removeHighlightScript = `document.querySelectorAll('[data-bu-highlight-index]').forEach(e => e.remove())`

func (b *ChromedpBrowser) HighlightElements(ctx context.Context) error {
	return chromedp.Run(b.ctx, chromedp.Evaluate(highlightScript, nil))
}

func (b *ChromedpBrowser) RemoveHighlights(ctx context.Context) error {
	return chromedp.Run(b.ctx, chromedp.Evaluate(removeHighlightScript, nil))
}

func (b *ChromedpBrowser) GetStateSummary(ctx context.Context, recomputeHashes bool) (*BrowserStateSummary, error) {
	var url, title string
	var htmlDoc string
	if err := chromedp.Run(b.ctx,
		chromedp.Location(&url),
		chromedp.Title(&title),
		chromedp.OuterHTML("html", &htmlDoc),
	); err != nil {
		return nil, fmt.Errorf("get state summary: %w", err)
	}

	selectorMap, err := b.snapshotter.BuildSelectorMap(htmlDoc, recomputeHashes)
	if err != nil {
		return nil, err
	}

	shot, err := b.Screenshot(ctx, false)
	if err != nil {
		shot = ""
	}

	if len(b.tabs) > 0 {
		b.tabs[b.activeTab].URL = url
		b.tabs[b.activeTab].Title = title
	}

	return &BrowserStateSummary{
		URL:         url,
		Title:       title,
		Screenshot:  shot,
		Tabs:        append([]Tab(nil), b.tabs...),
		SelectorMap: selectorMap,
	}, nil
}

var _ BrowserFacade = (*ChromedpBrowser)(nil)
