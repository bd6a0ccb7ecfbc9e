// Package browser is the boundary between the scraper and a real browser.
// The scraper only talks to Page; drivers adapt chromedp or go-rod to it.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/movements-dev/triodos-movements/internal/config"
)

// ErrIdleTimeout is returned by IdleWatch.Wait when the network never settled.
var ErrIdleTimeout = errors.New("timed out waiting for network idle")

// Page is a single browser tab owned by one run. Calls are sequential.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// Click clicks the first element matching selector.
	Click(ctx context.Context, selector string) error
	// ClickNavigate clicks and blocks until the page it leads to has loaded.
	ClickNavigate(ctx context.Context, selector string) error
	// ClickAll clicks every element matching selector and returns how many.
	ClickAll(ctx context.Context, selector string) (int, error)
	Hover(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string) error
	// Select picks the option with the given value and fires change events.
	Select(ctx context.Context, selector, value string) error
	WaitVisible(ctx context.Context, selector string) error
	// WatchIdle starts tracking network requests. Start it before the
	// action whose requests must be waited for.
	WatchIdle(ctx context.Context) (IdleWatch, error)
	Exists(ctx context.Context, selector string) (bool, error)
	// Text returns the trimmed text of the first match, "" when nothing matches.
	Text(ctx context.Context, selector string) (string, error)
	OuterHTML(ctx context.Context, selector string) (string, error)
	// Screenshot captures the full page as JPEG.
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// IdleWatch follows the requests a page makes after WatchIdle.
type IdleWatch interface {
	// Wait returns once no tracked request has been pending for idleWindow,
	// or ErrIdleTimeout after timeout.
	Wait(ctx context.Context, timeout time.Duration) error
	// Stop releases the watch. It is safe to call more than once.
	Stop()
}

// idleWindow is how long the network must stay quiet to count as idle.
const idleWindow = 500 * time.Millisecond

// Options configure a browser launch.
type Options struct {
	Headless     bool
	ExecPath     string
	UserDataDir  string
	UserAgent    string
	WindowWidth  int
	WindowHeight int
	StepTimeout  time.Duration
}

// OptionsFromConfig maps the browser and timeout config onto launch options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Headless:     cfg.Browser.Headless,
		ExecPath:     cfg.Browser.ExecPath,
		UserDataDir:  cfg.Browser.UserDataDir,
		UserAgent:    cfg.Browser.UserAgent,
		WindowWidth:  cfg.Browser.WindowWidth,
		WindowHeight: cfg.Browser.WindowHeight,
		StepTimeout:  cfg.Timeouts.Step,
	}
}

// Launch starts the named driver and opens one page.
func Launch(ctx context.Context, driver string, opts Options) (Page, error) {
	switch driver {
	case "chromedp", "":
		return NewChrome(ctx, opts)
	case "rod":
		return NewRod(ctx, opts)
	default:
		return nil, fmt.Errorf("unknown browser driver %q", driver)
	}
}

const (
	jsClickAll = `(sel) => {
		const els = document.querySelectorAll(sel);
		els.forEach((el) => el.click());
		return els.length;
	}`
	jsSelect = `(sel, value) => {
		const el = document.querySelector(sel);
		if (!el) { throw new Error("no element matches " + sel); }
		el.value = value;
		el.dispatchEvent(new Event("input", { bubbles: true }));
		el.dispatchEvent(new Event("change", { bubbles: true }));
		return el.value === value;
	}`
	jsText = `(sel) => {
		const el = document.querySelector(sel);
		return el ? el.textContent.trim() : "";
	}`
	jsExists = `(sel) => document.querySelector(sel) !== null`
)
