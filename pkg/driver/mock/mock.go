// Package mock provides an in-memory browser backend for testing without a
// real browser worker.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/qscript-dev/qscript-runner/pkg/core"
)

// Element is one scripted DOM node.
type Element struct {
	Tag        string
	Text       string
	Visible    bool
	Attributes map[string]string
	Children   int
}

// Page is a scripted page reachable by URL.
type Page struct {
	URL      string
	Title    string
	Status   int
	CLS      float64
	Elements map[string][]Element // selector -> matches
	Frames   map[string]*Page     // iframe selector -> framed page
	Eval     map[string]string    // expression -> result
}

// Backend creates mock driver contexts over a shared page set.
type Backend struct {
	Pages map[string]*Page

	// FailOpen makes OpenContext fail, for environment-error paths.
	FailOpen bool

	// Configure, when set, runs on every opened driver before it is
	// returned (seed popups, cookies, failure scripts).
	Configure func(*Driver)

	mu     sync.Mutex
	opened []*Driver
}

// NewBackend creates a backend serving the given pages.
func NewBackend(pages ...*Page) *Backend {
	m := make(map[string]*Page, len(pages))
	for _, p := range pages {
		m[p.URL] = p
	}
	return &Backend{Pages: m}
}

// Name implements core.Backend.
func (b *Backend) Name() string { return "mock" }

// OpenContext implements core.Backend.
func (b *Backend) OpenContext(_ context.Context, profile core.DeviceProfile) (core.Driver, error) {
	if b.FailOpen {
		return nil, fmt.Errorf("mock backend configured to fail")
	}
	d := &Driver{
		backend:  b,
		profile:  profile,
		targets:  make(map[core.Target]*Page),
		storage:  make(map[string]string),
		Viewport: [2]int{profile.Width, profile.Height},
	}
	if b.Configure != nil {
		b.Configure(d)
	}
	b.mu.Lock()
	b.opened = append(b.opened, d)
	b.mu.Unlock()
	return d, nil
}

// Opened returns every driver this backend has handed out.
func (b *Backend) Opened() []*Driver {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Driver(nil), b.opened...)
}

// Driver is an in-memory implementation of core.Driver.
type Driver struct {
	mu      sync.Mutex
	backend *Backend
	profile core.DeviceProfile

	targets    map[core.Target]*Page // non-root targets (frames, popups)
	rootPage   *Page
	cookies    []core.Cookie
	storage    map[string]string
	nextTarget int

	// PendingPopups are handed out by WaitForPopup in order.
	PendingPopups []*Page

	// FailClicksOn makes Click on the selector fail this many times
	// before succeeding, to exercise retry paths.
	FailClicksOn map[string]int

	// Recorded interactions, for test inspection.
	Fills    []string // "selector=text"
	Pressed  []string // "selector:key"
	Scrolled []string
	Clicked  []string
	Viewport [2]int
	Closed   bool
}

func (d *Driver) page(target core.Target) (*Page, error) {
	if target == core.RootTarget {
		if d.rootPage == nil {
			return nil, core.ErrDriverUnavailable.WithMessage("no page loaded")
		}
		return d.rootPage, nil
	}
	p, ok := d.targets[target]
	if !ok {
		return nil, core.ErrDriverUnavailable.WithMessagef("unknown target %q", target)
	}
	return p, nil
}

func (d *Driver) find(target core.Target, selector string) ([]Element, error) {
	p, err := d.page(target)
	if err != nil {
		return nil, err
	}
	return p.Elements[selector], nil
}

// Navigate implements core.Driver. Unknown URLs load as a 404 page.
func (d *Driver) Navigate(_ context.Context, target core.Target, url string) (*core.NavigationInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.backend.Pages[url]
	if !ok {
		p = &Page{URL: url, Status: 404, Title: "Not Found"}
	}
	if target == core.RootTarget {
		d.rootPage = p
	} else {
		d.targets[target] = p
	}
	return &core.NavigationInfo{Status: p.Status, URL: p.URL, Title: p.Title}, nil
}

// Click implements core.Driver.
func (d *Driver) Click(_ context.Context, target core.Target, selector string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if n, ok := d.FailClicksOn[selector]; ok && n > 0 {
		d.FailClicksOn[selector] = n - 1
		return core.ErrDriverUnavailable.WithMessagef("transient click failure on %q", selector)
	}

	elems, err := d.find(target, selector)
	if err != nil {
		return err
	}
	if len(elems) == 0 {
		return core.ErrElementNotFound.WithMessagef("no element matches %q", selector)
	}
	d.Clicked = append(d.Clicked, selector)
	return nil
}

// Fill implements core.Driver.
func (d *Driver) Fill(_ context.Context, target core.Target, selector, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	elems, err := d.find(target, selector)
	if err != nil {
		return err
	}
	if len(elems) == 0 {
		return core.ErrElementNotFound.WithMessagef("no element matches %q", selector)
	}
	d.Fills = append(d.Fills, selector+"="+text)
	return nil
}

// Press implements core.Driver.
func (d *Driver) Press(_ context.Context, target core.Target, selector, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.find(target, selector); err != nil {
		return err
	}
	d.Pressed = append(d.Pressed, selector+":"+key)
	return nil
}

// ScrollTo implements core.Driver.
func (d *Driver) ScrollTo(_ context.Context, target core.Target, selector string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	elems, err := d.find(target, selector)
	if err != nil {
		return err
	}
	if len(elems) == 0 {
		return core.ErrElementNotFound.WithMessagef("no element matches %q", selector)
	}
	d.Scrolled = append(d.Scrolled, selector)
	return nil
}

// WaitForSelector implements core.Driver. Elements either exist already or
// never appear; a missing selector blocks until the deadline.
func (d *Driver) WaitForSelector(ctx context.Context, target core.Target, selector string) error {
	d.mu.Lock()
	elems, err := d.find(target, selector)
	d.mu.Unlock()
	if err != nil {
		return err
	}
	if len(elems) > 0 {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

// WaitForPopup implements core.Driver.
func (d *Driver) WaitForPopup(ctx context.Context) (core.Target, error) {
	d.mu.Lock()
	if len(d.PendingPopups) > 0 {
		p := d.PendingPopups[0]
		d.PendingPopups = d.PendingPopups[1:]
		t := d.allocTarget(p)
		d.mu.Unlock()
		return t, nil
	}
	d.mu.Unlock()
	<-ctx.Done()
	return core.RootTarget, ctx.Err()
}

func (d *Driver) allocTarget(p *Page) core.Target {
	d.nextTarget++
	t := core.Target(fmt.Sprintf("target-%d", d.nextTarget))
	d.targets[t] = p
	return t
}

// FrameTarget implements core.Driver.
func (d *Driver) FrameTarget(_ context.Context, parent core.Target, selector string) (core.Target, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, err := d.page(parent)
	if err != nil {
		return core.RootTarget, err
	}
	framed, ok := p.Frames[selector]
	if !ok {
		return core.RootTarget, core.ErrFrameNotFound.WithMessagef("no frame matches %q", selector)
	}
	return d.allocTarget(framed), nil
}

// CloseTarget implements core.Driver.
func (d *Driver) CloseTarget(_ context.Context, target core.Target) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.targets[target]; !ok {
		return core.ErrDriverUnavailable.WithMessagef("unknown target %q", target)
	}
	delete(d.targets, target)
	return nil
}

// QueryAll implements core.Driver.
func (d *Driver) QueryAll(_ context.Context, target core.Target, selector string) ([]core.ElementInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	elems, err := d.find(target, selector)
	if err != nil {
		return nil, err
	}
	out := make([]core.ElementInfo, 0, len(elems))
	for _, e := range elems {
		out = append(out, core.ElementInfo{
			Tag:        e.Tag,
			Text:       e.Text,
			Visible:    e.Visible,
			Attributes: e.Attributes,
		})
	}
	return out, nil
}

// ChildCount implements core.Driver.
func (d *Driver) ChildCount(_ context.Context, target core.Target, selector string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	elems, err := d.find(target, selector)
	if err != nil {
		return 0, err
	}
	if len(elems) == 0 {
		return 0, core.ErrElementNotFound.WithMessagef("no element matches %q", selector)
	}
	return elems[0].Children, nil
}

// VisibleText implements core.Driver.
func (d *Driver) VisibleText(_ context.Context, target core.Target, selector string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	elems, err := d.find(target, selector)
	if err != nil {
		return "", err
	}
	if len(elems) == 0 {
		return "", core.ErrElementNotFound.WithMessagef("no element matches %q", selector)
	}
	return elems[0].Text, nil
}

// GetAttribute implements core.Driver.
func (d *Driver) GetAttribute(_ context.Context, target core.Target, selector, attr string) (string, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	elems, err := d.find(target, selector)
	if err != nil {
		return "", false, err
	}
	if len(elems) == 0 {
		return "", false, nil
	}
	value, ok := elems[0].Attributes[attr]
	return value, ok, nil
}

// PageInfo implements core.Driver.
func (d *Driver) PageInfo(_ context.Context, target core.Target) (*core.PageInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, err := d.page(target)
	if err != nil {
		return nil, err
	}
	return &core.PageInfo{URL: p.URL, Title: p.Title, Status: p.Status}, nil
}

// Cookies implements core.Driver.
func (d *Driver) Cookies(_ context.Context) ([]core.Cookie, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]core.Cookie(nil), d.cookies...), nil
}

// SetCookies implements core.Driver.
func (d *Driver) SetCookies(_ context.Context, cookies []core.Cookie) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cookies = append([]core.Cookie(nil), cookies...)
	return nil
}

// ClearCookies implements core.Driver.
func (d *Driver) ClearCookies(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cookies = nil
	return nil
}

// SessionState implements core.Driver.
func (d *Driver) SessionState(_ context.Context) (*core.SessionState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	storage := make(map[string]string, len(d.storage))
	for k, v := range d.storage {
		storage[k] = v
	}
	return &core.SessionState{
		Cookies:      append([]core.Cookie(nil), d.cookies...),
		LocalStorage: storage,
	}, nil
}

// RestoreSessionState implements core.Driver.
func (d *Driver) RestoreSessionState(_ context.Context, state *core.SessionState) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cookies = append([]core.Cookie(nil), state.Cookies...)
	d.storage = make(map[string]string, len(state.LocalStorage))
	for k, v := range state.LocalStorage {
		d.storage[k] = v
	}
	return nil
}

// SetCookie is a test helper to seed the jar.
func (d *Driver) SetCookie(c core.Cookie) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cookies = append(d.cookies, c)
}

// SetStorage is a test helper to seed local storage.
func (d *Driver) SetStorage(key, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.storage[key] = value
}

// Storage is a test helper to read local storage.
func (d *Driver) Storage(key string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.storage[key]
}

// SetViewport implements core.Driver.
func (d *Driver) SetViewport(_ context.Context, width, height int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Viewport = [2]int{width, height}
	return nil
}

// CaptureSnapshot implements core.Driver.
func (d *Driver) CaptureSnapshot(_ context.Context, target core.Target) (*core.Snapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, err := d.page(target)
	if err != nil {
		return nil, err
	}
	html := fmt.Sprintf("<html><head><title>%s</title></head></html>", p.Title)
	return &core.Snapshot{
		HTML:       []byte(html),
		Screenshot: minimalPNG,
	}, nil
}

// PerformanceMetric implements core.Driver.
func (d *Driver) PerformanceMetric(_ context.Context, target core.Target, name string) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, err := d.page(target)
	if err != nil {
		return 0, err
	}
	if name != "cls" {
		return 0, fmt.Errorf("unknown metric %q", name)
	}
	return p.CLS, nil
}

// Evaluate implements core.Driver. Results come from the page's Eval map.
func (d *Driver) Evaluate(_ context.Context, target core.Target, expression string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, err := d.page(target)
	if err != nil {
		return "", err
	}
	if result, ok := p.Eval[expression]; ok {
		return result, nil
	}
	return "", core.ErrEvalFailed.WithMessagef("no scripted result for %q", expression)
}

// Close implements core.Driver.
func (d *Driver) Close(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Closed = true
	return nil
}

// minimalPNG is a 1x1 transparent pixel.
var minimalPNG = []byte{
	0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A,
	0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4,
	0x89, 0x00, 0x00, 0x00, 0x0D, 0x49, 0x44, 0x41,
	0x54, 0x78, 0x9C, 0x62, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0D, 0x0A, 0x2D, 0xB4, 0x00,
	0x00, 0x00, 0x00, 0x49, 0x45, 0x4E, 0x44, 0xAE,
	0x42, 0x60, 0x82,
}
