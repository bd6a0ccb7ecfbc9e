package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

var _ Page = (*Chrome)(nil)

// Chrome drives a Chrome tab through chromedp.
type Chrome struct {
	tab         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	stepTimeout time.Duration
}

// NewChrome launches Chrome and opens a tab. The browser outlives ctx
// cancellation so a failure snapshot can still be taken; call Close.
func NewChrome(ctx context.Context, opts Options) (*Chrome, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.UserDataDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.UserDataDir))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	tab, cancelTab := chromedp.NewContext(allocCtx)

	// The first Run starts the browser.
	if err := chromedp.Run(tab); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("starting chrome: %w", err)
	}

	return &Chrome{
		tab:         tab,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		stepTimeout: opts.StepTimeout,
	}, nil
}

// run executes actions on the tab, bounded by the step timeout and ctx.
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tctx, cancel := context.WithTimeout(c.tab, c.stepTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(tctx, actions...)
}

func (c *Chrome) Navigate(ctx context.Context, url string) error {
	if err := c.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	return nil
}

func (c *Chrome) Click(ctx context.Context, selector string) error {
	if err := c.run(ctx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("clicking %s: %w", selector, err)
	}
	return nil
}

func (c *Chrome) ClickNavigate(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tctx, cancel := context.WithTimeout(c.tab, c.stepTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if _, err := chromedp.RunResponse(tctx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("clicking %s and waiting for load: %w", selector, err)
	}
	return nil
}

func (c *Chrome) ClickAll(ctx context.Context, selector string) (int, error) {
	var n int
	if err := c.eval(ctx, &n, jsClickAll, selector); err != nil {
		return 0, fmt.Errorf("clicking all %s: %w", selector, err)
	}
	return n, nil
}

// Hover moves the mouse to the centre of the element so CSS :hover menus open.
func (c *Chrome) Hover(ctx context.Context, selector string) error {
	var nodes []*cdp.Node
	err := c.run(ctx,
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.Nodes(selector, &nodes, chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			box, err := dom.GetBoxModel().WithNodeID(nodes[0].NodeID).Do(ctx)
			if err != nil {
				return err
			}
			q := box.Content
			x := (q[0] + q[2] + q[4] + q[6]) / 4
			y := (q[1] + q[3] + q[5] + q[7]) / 4
			return input.DispatchMouseEvent(input.MouseMoved, x, y).Do(ctx)
		}),
	)
	if err != nil {
		return fmt.Errorf("hovering %s: %w", selector, err)
	}
	return nil
}

func (c *Chrome) Type(ctx context.Context, selector, text string) error {
	err := c.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Focus(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("typing into %s: %w", selector, err)
	}
	return nil
}

func (c *Chrome) Select(ctx context.Context, selector, value string) error {
	var ok bool
	if err := c.eval(ctx, &ok, jsSelect, selector, value); err != nil {
		return fmt.Errorf("selecting %q in %s: %w", value, selector, err)
	}
	if !ok {
		return fmt.Errorf("selecting %q in %s: no such option", value, selector)
	}
	return nil
}

func (c *Chrome) WaitVisible(ctx context.Context, selector string) error {
	if err := c.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("waiting for %s: %w", selector, err)
	}
	return nil
}

// WatchIdle subscribes to the tab's network events and enables the
// network domain, so requests started after it returns are tracked.
func (c *Chrome) WatchIdle(ctx context.Context) (IdleWatch, error) {
	lctx, cancel := context.WithCancel(c.tab)
	tracker := newRequestTracker(time.Now)
	chromedp.ListenTarget(lctx, tracker.observe)
	if err := c.run(ctx, network.Enable()); err != nil {
		cancel()
		return nil, fmt.Errorf("enabling network events: %w", err)
	}
	return &chromeIdleWatch{tracker: tracker, cancel: cancel}, nil
}

func (c *Chrome) Exists(ctx context.Context, selector string) (bool, error) {
	var ok bool
	if err := c.eval(ctx, &ok, jsExists, selector); err != nil {
		return false, fmt.Errorf("querying %s: %w", selector, err)
	}
	return ok, nil
}

func (c *Chrome) Text(ctx context.Context, selector string) (string, error) {
	var text string
	if err := c.eval(ctx, &text, jsText, selector); err != nil {
		return "", fmt.Errorf("reading text of %s: %w", selector, err)
	}
	return text, nil
}

func (c *Chrome) OuterHTML(ctx context.Context, selector string) (string, error) {
	var html string
	if err := c.run(ctx, chromedp.OuterHTML(selector, &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("reading html of %s: %w", selector, err)
	}
	return html, nil
}

func (c *Chrome) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	// Quality below 100 makes chromedp capture JPEG.
	if err := c.run(ctx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}
	return buf, nil
}

// Close shuts the browser down.
func (c *Chrome) Close() error {
	err := chromedp.Cancel(c.tab)
	c.cancelTab()
	c.cancelAlloc()
	return err
}

// eval calls a JS function literal with JSON-encoded args.
func (c *Chrome) eval(ctx context.Context, res any, fn string, args ...any) error {
	parts := make([]string, len(args))
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return err
		}
		parts[i] = string(b)
	}
	expr := fmt.Sprintf("(%s)(%s)", fn, strings.Join(parts, ", "))
	return c.run(ctx, chromedp.Evaluate(expr, res))
}
