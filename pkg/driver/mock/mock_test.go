package mock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/qscript-dev/qscript-runner/pkg/core"
)

var profile = core.DeviceProfile{Name: "desktop", Width: 1440, Height: 900}

func openDriver(t *testing.T, pages ...*Page) *Driver {
	t.Helper()
	d, err := NewBackend(pages...).OpenContext(context.Background(), profile)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return d.(*Driver)
}

func TestNavigate_UnknownURLIs404(t *testing.T) {
	d := openDriver(t, &Page{URL: "https://example.com/", Status: 200, Title: "Home"})

	nav, err := d.Navigate(context.Background(), core.RootTarget, "https://example.com/")
	if err != nil {
		t.Fatalf("navigate: %v", err)
	}
	if nav.Status != 200 || nav.Title != "Home" {
		t.Errorf("unexpected nav: %+v", nav)
	}

	nav, err = d.Navigate(context.Background(), core.RootTarget, "https://example.com/missing")
	if err != nil {
		t.Fatalf("navigate: %v", err)
	}
	if nav.Status != 404 {
		t.Errorf("unknown URL should load as 404, got %d", nav.Status)
	}
}

func TestActions_RequireLoadedPage(t *testing.T) {
	d := openDriver(t)
	if err := d.Click(context.Background(), core.RootTarget, "#x"); err == nil {
		t.Error("click before navigation should fail")
	}
}

func TestClick_TransientFailures(t *testing.T) {
	d := openDriver(t, &Page{
		URL: "https://example.com/", Status: 200,
		Elements: map[string][]Element{"#btn": {{Tag: "button", Visible: true}}},
	})
	d.FailClicksOn = map[string]int{"#btn": 1}
	if _, err := d.Navigate(context.Background(), core.RootTarget, "https://example.com/"); err != nil {
		t.Fatal(err)
	}

	if err := d.Click(context.Background(), core.RootTarget, "#btn"); err == nil {
		t.Fatal("first click should fail")
	}
	if err := d.Click(context.Background(), core.RootTarget, "#btn"); err != nil {
		t.Fatalf("second click should succeed: %v", err)
	}
	if len(d.Clicked) != 1 || d.Clicked[0] != "#btn" {
		t.Errorf("clicks recorded: %v", d.Clicked)
	}
}

func TestFrameTarget(t *testing.T) {
	framed := &Page{URL: "https://pay.example.com/", Status: 200,
		Elements: map[string][]Element{"#card": {{Tag: "input", Visible: true}}}}
	page := &Page{URL: "https://example.com/", Status: 200,
		Frames: map[string]*Page{"#payments": framed}}
	d := openDriver(t, page)
	if _, err := d.Navigate(context.Background(), core.RootTarget, "https://example.com/"); err != nil {
		t.Fatal(err)
	}

	target, err := d.FrameTarget(context.Background(), core.RootTarget, "#payments")
	if err != nil {
		t.Fatalf("frame target: %v", err)
	}
	if err := d.Fill(context.Background(), target, "#card", "4111"); err != nil {
		t.Errorf("fill in frame: %v", err)
	}

	if _, err := d.FrameTarget(context.Background(), core.RootTarget, "#nope"); !errors.Is(err, core.ErrFrameNotFound) {
		t.Errorf("expected ErrFrameNotFound, got %v", err)
	}

	if err := d.CloseTarget(context.Background(), target); err != nil {
		t.Errorf("close target: %v", err)
	}
	if err := d.CloseTarget(context.Background(), target); err == nil {
		t.Error("closing twice should fail")
	}
}

func TestWaitForPopup(t *testing.T) {
	popup := &Page{URL: "https://example.com/popup", Status: 200}
	d := openDriver(t, popup)
	d.PendingPopups = []*Page{popup}

	target, err := d.WaitForPopup(context.Background())
	if err != nil {
		t.Fatalf("popup: %v", err)
	}
	info, err := d.PageInfo(context.Background(), target)
	if err != nil || info.URL != popup.URL {
		t.Errorf("popup page: %+v, %v", info, err)
	}

	// No popup pending: blocks until the deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := d.WaitForPopup(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline, got %v", err)
	}
}

func TestWaitForSelector(t *testing.T) {
	d := openDriver(t, &Page{URL: "https://example.com/", Status: 200,
		Elements: map[string][]Element{"#ready": {{Tag: "div"}}}})
	if _, err := d.Navigate(context.Background(), core.RootTarget, "https://example.com/"); err != nil {
		t.Fatal(err)
	}

	if err := d.WaitForSelector(context.Background(), core.RootTarget, "#ready"); err != nil {
		t.Errorf("present selector: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := d.WaitForSelector(ctx, core.RootTarget, "#never"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline, got %v", err)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	d := openDriver(t)
	d.SetCookie(core.Cookie{Name: "sid", Value: "abc"})
	d.SetStorage("cart", "3 items")

	state, err := d.SessionState(context.Background())
	if err != nil {
		t.Fatalf("session state: %v", err)
	}

	if err := d.ClearCookies(context.Background()); err != nil {
		t.Fatal(err)
	}
	if cookies, _ := d.Cookies(context.Background()); len(cookies) != 0 {
		t.Fatalf("cookies not cleared: %v", cookies)
	}

	if err := d.RestoreSessionState(context.Background(), state); err != nil {
		t.Fatalf("restore: %v", err)
	}
	cookies, _ := d.Cookies(context.Background())
	if len(cookies) != 1 || cookies[0].Value != "abc" {
		t.Errorf("cookies after restore: %v", cookies)
	}
	if d.Storage("cart") != "3 items" {
		t.Errorf("storage after restore: %q", d.Storage("cart"))
	}
}

func TestGetAttribute(t *testing.T) {
	d := openDriver(t, &Page{URL: "https://example.com/", Status: 200,
		Elements: map[string][]Element{
			"a": {{Tag: "a", Attributes: map[string]string{"href": "/next"}}},
		}})
	if _, err := d.Navigate(context.Background(), core.RootTarget, "https://example.com/"); err != nil {
		t.Fatal(err)
	}

	value, ok, err := d.GetAttribute(context.Background(), core.RootTarget, "a", "href")
	if err != nil || !ok || value != "/next" {
		t.Errorf("href: %q %v %v", value, ok, err)
	}
	if _, ok, _ := d.GetAttribute(context.Background(), core.RootTarget, "a", "target"); ok {
		t.Error("absent attribute reported present")
	}
	if _, ok, _ := d.GetAttribute(context.Background(), core.RootTarget, "#nope", "id"); ok {
		t.Error("missing element reported present")
	}
}

func TestCaptureSnapshot(t *testing.T) {
	d := openDriver(t, &Page{URL: "https://example.com/", Status: 200, Title: "Home"})
	if _, err := d.Navigate(context.Background(), core.RootTarget, "https://example.com/"); err != nil {
		t.Fatal(err)
	}

	snap, err := d.CaptureSnapshot(context.Background(), core.RootTarget)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.HTML) == 0 || len(snap.Screenshot) == 0 {
		t.Errorf("empty snapshot: %+v", snap)
	}
}

func TestBackend_FailOpen(t *testing.T) {
	b := NewBackend()
	b.FailOpen = true
	if _, err := b.OpenContext(context.Background(), profile); err == nil {
		t.Error("expected open failure")
	}
}
