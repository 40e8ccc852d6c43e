// Package remote implements core.Driver over the browser-worker RPC
// protocol: tasks are queued to a worker pool through Redis, results come
// back on per-task keys.
package remote

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/qscript-dev/qscript-runner/pkg/core"
	"github.com/qscript-dev/qscript-runner/pkg/logger"
)

// Config locates the worker pool.
type Config struct {
	Addr     string // Redis address, host:port
	Password string
	DB       int
	Queue    string        // worker queue name, default "browser"
	Browser  string        // engine requested from the worker: chromium, firefox, webkit
	RPCWait  time.Duration // per-call response deadline
}

// Backend opens remote browsing contexts.
type Backend struct {
	cfg Config
	t   *transport
}

// NewBackend connects to Redis and returns a backend. The connection is
// verified eagerly so environment problems surface before any case runs.
func NewBackend(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Queue == "" {
		cfg.Queue = "browser"
	}
	if cfg.Browser == "" {
		cfg.Browser = "chromium"
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, core.ErrDriverUnavailable.WithCause(err)
	}
	return &Backend{cfg: cfg, t: newTransport(rdb, cfg.Queue, cfg.RPCWait)}, nil
}

// Name implements core.Backend.
func (b *Backend) Name() string {
	return "remote:" + b.cfg.Browser
}

// OpenContext implements core.Backend.
func (b *Backend) OpenContext(ctx context.Context, profile core.DeviceProfile) (core.Driver, error) {
	contextID := uuid.NewString()
	_, err := b.t.send(ctx, contextID, "open_context", map[string]interface{}{
		"browser":    b.cfg.Browser,
		"width":      profile.Width,
		"height":     profile.Height,
		"mobile":     profile.Mobile,
		"user_agent": profile.UserAgent,
	})
	if err != nil {
		return nil, err
	}
	logger.WithField("device", profile.Name).Debugf("remote context %s opened", contextID)
	return &Driver{t: b.t, contextID: contextID}, nil
}

// Driver is a core.Driver whose every operation is one worker RPC.
type Driver struct {
	t         *transport
	contextID string
}

func (d *Driver) call(ctx context.Context, action string, args map[string]interface{}) (*response, error) {
	return d.t.send(ctx, d.contextID, action, args)
}

// Navigate implements core.Driver.
func (d *Driver) Navigate(ctx context.Context, target core.Target, url string) (*core.NavigationInfo, error) {
	resp, err := d.call(ctx, "navigate", map[string]interface{}{"target": string(target), "url": url})
	if err != nil {
		return nil, err
	}
	var nav core.NavigationInfo
	if err := resp.decode(&nav); err != nil {
		return nil, core.ErrDriverUnavailable.WithCause(err)
	}
	return &nav, nil
}

// Click implements core.Driver.
func (d *Driver) Click(ctx context.Context, target core.Target, selector string) error {
	_, err := d.call(ctx, "click", map[string]interface{}{"target": string(target), "selector": selector})
	return err
}

// Fill implements core.Driver.
func (d *Driver) Fill(ctx context.Context, target core.Target, selector, text string) error {
	_, err := d.call(ctx, "fill", map[string]interface{}{
		"target": string(target), "selector": selector, "text": text,
	})
	return err
}

// Press implements core.Driver.
func (d *Driver) Press(ctx context.Context, target core.Target, selector, key string) error {
	_, err := d.call(ctx, "press", map[string]interface{}{
		"target": string(target), "selector": selector, "key": key,
	})
	return err
}

// ScrollTo implements core.Driver.
func (d *Driver) ScrollTo(ctx context.Context, target core.Target, selector string) error {
	_, err := d.call(ctx, "scroll_to", map[string]interface{}{"target": string(target), "selector": selector})
	return err
}

// WaitForSelector implements core.Driver. The deadline travels with ctx;
// the worker polls until the selector matches or the deadline passes.
func (d *Driver) WaitForSelector(ctx context.Context, target core.Target, selector string) error {
	args := map[string]interface{}{"target": string(target), "selector": selector}
	if deadline, ok := ctx.Deadline(); ok {
		args["timeout_ms"] = time.Until(deadline).Milliseconds()
	}
	_, err := d.call(ctx, "wait_for_selector", args)
	return err
}

// WaitForPopup implements core.Driver.
func (d *Driver) WaitForPopup(ctx context.Context) (core.Target, error) {
	args := map[string]interface{}{}
	if deadline, ok := ctx.Deadline(); ok {
		args["timeout_ms"] = time.Until(deadline).Milliseconds()
	}
	resp, err := d.call(ctx, "wait_for_popup", args)
	if err != nil {
		return core.RootTarget, err
	}
	var out struct {
		Target string `json:"target"`
	}
	if err := resp.decode(&out); err != nil {
		return core.RootTarget, core.ErrDriverUnavailable.WithCause(err)
	}
	return core.Target(out.Target), nil
}

// FrameTarget implements core.Driver.
func (d *Driver) FrameTarget(ctx context.Context, parent core.Target, selector string) (core.Target, error) {
	resp, err := d.call(ctx, "frame_target", map[string]interface{}{
		"target": string(parent), "selector": selector,
	})
	if err != nil {
		return core.RootTarget, err
	}
	var out struct {
		Target string `json:"target"`
	}
	if err := resp.decode(&out); err != nil {
		return core.RootTarget, core.ErrDriverUnavailable.WithCause(err)
	}
	return core.Target(out.Target), nil
}

// CloseTarget implements core.Driver.
func (d *Driver) CloseTarget(ctx context.Context, target core.Target) error {
	_, err := d.call(ctx, "close_target", map[string]interface{}{"target": string(target)})
	return err
}

// QueryAll implements core.Driver.
func (d *Driver) QueryAll(ctx context.Context, target core.Target, selector string) ([]core.ElementInfo, error) {
	resp, err := d.call(ctx, "query_all", map[string]interface{}{"target": string(target), "selector": selector})
	if err != nil {
		return nil, err
	}
	var elems []core.ElementInfo
	if err := resp.decode(&elems); err != nil {
		return nil, core.ErrDriverUnavailable.WithCause(err)
	}
	return elems, nil
}

// ChildCount implements core.Driver.
func (d *Driver) ChildCount(ctx context.Context, target core.Target, selector string) (int, error) {
	resp, err := d.call(ctx, "child_count", map[string]interface{}{"target": string(target), "selector": selector})
	if err != nil {
		return 0, err
	}
	var out struct {
		Count int `json:"count"`
	}
	if err := resp.decode(&out); err != nil {
		return 0, core.ErrDriverUnavailable.WithCause(err)
	}
	return out.Count, nil
}

// VisibleText implements core.Driver.
func (d *Driver) VisibleText(ctx context.Context, target core.Target, selector string) (string, error) {
	resp, err := d.call(ctx, "visible_text", map[string]interface{}{"target": string(target), "selector": selector})
	if err != nil {
		return "", err
	}
	var out struct {
		Text string `json:"text"`
	}
	if err := resp.decode(&out); err != nil {
		return "", core.ErrDriverUnavailable.WithCause(err)
	}
	return out.Text, nil
}

// GetAttribute implements core.Driver.
func (d *Driver) GetAttribute(ctx context.Context, target core.Target, selector, attr string) (string, bool, error) {
	resp, err := d.call(ctx, "get_attribute", map[string]interface{}{
		"target": string(target), "selector": selector, "attr": attr,
	})
	if err != nil {
		return "", false, err
	}
	var out struct {
		Value   string `json:"value"`
		Present bool   `json:"present"`
	}
	if err := resp.decode(&out); err != nil {
		return "", false, core.ErrDriverUnavailable.WithCause(err)
	}
	return out.Value, out.Present, nil
}

// PageInfo implements core.Driver.
func (d *Driver) PageInfo(ctx context.Context, target core.Target) (*core.PageInfo, error) {
	resp, err := d.call(ctx, "page_info", map[string]interface{}{"target": string(target)})
	if err != nil {
		return nil, err
	}
	var info core.PageInfo
	if err := resp.decode(&info); err != nil {
		return nil, core.ErrDriverUnavailable.WithCause(err)
	}
	return &info, nil
}

// Cookies implements core.Driver.
func (d *Driver) Cookies(ctx context.Context) ([]core.Cookie, error) {
	resp, err := d.call(ctx, "cookies", nil)
	if err != nil {
		return nil, err
	}
	var cookies []core.Cookie
	if err := resp.decode(&cookies); err != nil {
		return nil, core.ErrDriverUnavailable.WithCause(err)
	}
	return cookies, nil
}

// SetCookies implements core.Driver.
func (d *Driver) SetCookies(ctx context.Context, cookies []core.Cookie) error {
	_, err := d.call(ctx, "set_cookies", map[string]interface{}{"cookies": cookies})
	return err
}

// ClearCookies implements core.Driver.
func (d *Driver) ClearCookies(ctx context.Context) error {
	_, err := d.call(ctx, "clear_cookies", nil)
	return err
}

// SessionState implements core.Driver.
func (d *Driver) SessionState(ctx context.Context) (*core.SessionState, error) {
	resp, err := d.call(ctx, "session_state", nil)
	if err != nil {
		return nil, err
	}
	var state core.SessionState
	if err := resp.decode(&state); err != nil {
		return nil, core.ErrDriverUnavailable.WithCause(err)
	}
	return &state, nil
}

// RestoreSessionState implements core.Driver.
func (d *Driver) RestoreSessionState(ctx context.Context, state *core.SessionState) error {
	_, err := d.call(ctx, "restore_session", map[string]interface{}{"state": state})
	return err
}

// SetViewport implements core.Driver.
func (d *Driver) SetViewport(ctx context.Context, width, height int) error {
	_, err := d.call(ctx, "set_viewport", map[string]interface{}{"width": width, "height": height})
	return err
}

// CaptureSnapshot implements core.Driver.
func (d *Driver) CaptureSnapshot(ctx context.Context, target core.Target) (*core.Snapshot, error) {
	resp, err := d.call(ctx, "snapshot", map[string]interface{}{"target": string(target)})
	if err != nil {
		return nil, err
	}
	var out struct {
		HTML       []byte `json:"html"`
		Screenshot []byte `json:"screenshot"`
	}
	if err := resp.decode(&out); err != nil {
		return nil, core.ErrDriverUnavailable.WithCause(err)
	}
	return &core.Snapshot{HTML: out.HTML, Screenshot: out.Screenshot}, nil
}

// PerformanceMetric implements core.Driver.
func (d *Driver) PerformanceMetric(ctx context.Context, target core.Target, name string) (float64, error) {
	resp, err := d.call(ctx, "metric", map[string]interface{}{"target": string(target), "name": name})
	if err != nil {
		return 0, err
	}
	var out struct {
		Value float64 `json:"value"`
	}
	if err := resp.decode(&out); err != nil {
		return 0, core.ErrDriverUnavailable.WithCause(err)
	}
	return out.Value, nil
}

// Evaluate implements core.Driver.
func (d *Driver) Evaluate(ctx context.Context, target core.Target, expression string) (string, error) {
	resp, err := d.call(ctx, "evaluate", map[string]interface{}{
		"target": string(target), "expression": expression,
	})
	if err != nil {
		return "", err
	}
	var out struct {
		Result string `json:"result"`
	}
	if err := resp.decode(&out); err != nil {
		return "", core.ErrDriverUnavailable.WithCause(err)
	}
	return out.Result, nil
}

// Close implements core.Driver.
func (d *Driver) Close(ctx context.Context) error {
	_, err := d.call(ctx, "close_context", nil)
	return err
}
