// Package core provides the execution model types for qscript-runner.
package core

import (
	"context"
)

// Target is an opaque handle to a browsing context (page, popup, or iframe).
// The root page is RootTarget.
type Target string

// RootTarget addresses the main page of a driver context.
const RootTarget Target = ""

// DeviceProfile describes the emulated environment a case runs under.
type DeviceProfile struct {
	Name      string `json:"name"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Mobile    bool   `json:"mobile"`
	UserAgent string `json:"userAgent,omitempty"`
}

// Backend creates isolated driver contexts. One context per device profile
// per run; contexts share nothing.
type Backend interface {
	// OpenContext starts a fresh browsing context shaped by the profile
	OpenContext(ctx context.Context, profile DeviceProfile) (Driver, error)

	// Name identifies the backend for logs and reports
	Name() string
}

// Driver defines the capability interface a browser backend must provide.
// The executor handles script logic; Driver just performs page operations.
// All methods honor ctx cancellation. Methods taking a Target operate on
// that browsing context; RootTarget means the main page.
type Driver interface {
	// Navigate loads the URL and returns navigation info once the page settles
	Navigate(ctx context.Context, target Target, url string) (*NavigationInfo, error)

	// Click clicks the first element matching the selector
	Click(ctx context.Context, target Target, selector string) error

	// Fill sets the value of the first matching input element
	Fill(ctx context.Context, target Target, selector, text string) error

	// Press sends a key (e.g. "Enter") to the first matching element
	Press(ctx context.Context, target Target, selector, key string) error

	// ScrollTo scrolls the first matching element into view
	ScrollTo(ctx context.Context, target Target, selector string) error

	// WaitForSelector blocks until the selector matches or ctx expires
	WaitForSelector(ctx context.Context, target Target, selector string) error

	// WaitForPopup blocks until a new popup target opens, returning its handle
	WaitForPopup(ctx context.Context) (Target, error)

	// FrameTarget resolves an iframe selector to a target handle
	FrameTarget(ctx context.Context, parent Target, selector string) (Target, error)

	// CloseTarget closes a popup target
	CloseTarget(ctx context.Context, target Target) error

	// QueryAll returns info for every element matching the selector
	QueryAll(ctx context.Context, target Target, selector string) ([]ElementInfo, error)

	// ChildCount returns the number of direct children of the first match
	ChildCount(ctx context.Context, target Target, selector string) (int, error)

	// VisibleText returns the rendered text content of the first match
	VisibleText(ctx context.Context, target Target, selector string) (string, error)

	// GetAttribute reads an attribute from the first match; ok is false
	// when the attribute is absent
	GetAttribute(ctx context.Context, target Target, selector, attr string) (value string, ok bool, err error)

	// PageInfo returns current page state of the target
	PageInfo(ctx context.Context, target Target) (*PageInfo, error)

	// Cookies returns the cookie jar of the browsing context
	Cookies(ctx context.Context) ([]Cookie, error)

	// SetCookies replaces cookies in the browsing context
	SetCookies(ctx context.Context, cookies []Cookie) error

	// ClearCookies empties the cookie jar
	ClearCookies(ctx context.Context) error

	// SessionState snapshots cookies and storage for later restore
	SessionState(ctx context.Context) (*SessionState, error)

	// RestoreSessionState reapplies a previously captured snapshot
	RestoreSessionState(ctx context.Context, state *SessionState) error

	// SetViewport resizes the emulated viewport
	SetViewport(ctx context.Context, width, height int) error

	// CaptureSnapshot grabs page HTML and a screenshot for diagnostics
	CaptureSnapshot(ctx context.Context, target Target) (*Snapshot, error)

	// PerformanceMetric reads a named layout/performance metric (e.g. "cls")
	PerformanceMetric(ctx context.Context, target Target, name string) (float64, error)

	// Evaluate runs a JavaScript expression in the page and returns its
	// result rendered as a string
	Evaluate(ctx context.Context, target Target, expression string) (string, error)

	// Close tears down the browsing context
	Close(ctx context.Context) error
}

// ElementInfo describes an element matched by a selector query.
type ElementInfo struct {
	Tag        string            `json:"tag,omitempty"`
	Text       string            `json:"text,omitempty"`
	Visible    bool              `json:"visible"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Cookie is a single browser cookie.
type Cookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain,omitempty"`
	Path     string `json:"path,omitempty"`
	Secure   bool   `json:"secure,omitempty"`
	HTTPOnly bool   `json:"httpOnly,omitempty"`
}

// SessionState is a restorable snapshot of browser session data.
type SessionState struct {
	Cookies      []Cookie          `json:"cookies"`
	LocalStorage map[string]string `json:"localStorage,omitempty"`
}

// NavigationInfo records the outcome of a page load.
type NavigationInfo struct {
	Status   int    `json:"status"`
	URL      string `json:"url"`
	Title    string `json:"title,omitempty"`
	Redirect string `json:"redirect,omitempty"` // first hop when the load was redirected
	LoadMs   int64  `json:"loadMs,omitempty"`
}

// PageInfo is the current state of a browsing context.
type PageInfo struct {
	URL    string `json:"url"`
	Title  string `json:"title,omitempty"`
	Status int    `json:"status"` // status of the last main-frame response
}

// Snapshot holds diagnostic captures taken on failure.
type Snapshot struct {
	HTML       []byte `json:"-"`
	Screenshot []byte `json:"-"`
	HTMLPath   string `json:"htmlPath,omitempty"`
	ImagePath  string `json:"imagePath,omitempty"`
}
