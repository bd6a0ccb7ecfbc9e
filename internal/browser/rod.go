package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

var _ Page = (*Rod)(nil)

// Rod drives a browser page through go-rod.
type Rod struct {
	browser     *rod.Browser
	page        *rod.Page
	stepTimeout time.Duration
}

// NewRod launches a browser with go-rod's launcher and opens a blank page.
func NewRod(ctx context.Context, opts Options) (*Rod, error) {
	l := launcher.New().
		Context(context.WithoutCancel(ctx)).
		Headless(opts.Headless).
		Set("window-size", fmt.Sprintf("%d,%d", opts.WindowWidth, opts.WindowHeight))
	if opts.UserAgent != "" {
		l = l.Set("user-agent", opts.UserAgent)
	}
	if opts.UserDataDir != "" {
		l = l.UserDataDir(opts.UserDataDir)
	}
	if opts.ExecPath != "" {
		l = l.Bin(opts.ExecPath)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}

	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("opening page: %w", err)
	}

	return &Rod{browser: b, page: page, stepTimeout: opts.StepTimeout}, nil
}

// with runs fn against the page bound to ctx and the step timeout.
func (r *Rod) with(ctx context.Context, fn func(p *rod.Page) error) error {
	tctx, cancel := context.WithTimeout(ctx, r.stepTimeout)
	defer cancel()
	return fn(r.page.Context(tctx))
}

func (r *Rod) Navigate(ctx context.Context, url string) error {
	err := r.with(ctx, func(p *rod.Page) error {
		if err := p.Navigate(url); err != nil {
			return err
		}
		return p.WaitLoad()
	})
	if err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	return nil
}

func (r *Rod) Click(ctx context.Context, selector string) error {
	err := r.with(ctx, func(p *rod.Page) error {
		el, err := p.Element(selector)
		if err != nil {
			return err
		}
		return el.Click(proto.InputMouseButtonLeft, 1)
	})
	if err != nil {
		return fmt.Errorf("clicking %s: %w", selector, err)
	}
	return nil
}

func (r *Rod) ClickNavigate(ctx context.Context, selector string) error {
	err := r.with(ctx, func(p *rod.Page) error {
		el, err := p.Element(selector)
		if err != nil {
			return err
		}
		wait := p.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return err
		}
		return awaitLoad(p.GetContext(), wait)
	})
	if err != nil {
		return fmt.Errorf("clicking %s and waiting for load: %w", selector, err)
	}
	return nil
}

func (r *Rod) ClickAll(ctx context.Context, selector string) (int, error) {
	var n int
	err := r.with(ctx, func(p *rod.Page) error {
		res, err := p.Eval(jsClickAll, selector)
		if err != nil {
			return err
		}
		n = res.Value.Int()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("clicking all %s: %w", selector, err)
	}
	return n, nil
}

func (r *Rod) Hover(ctx context.Context, selector string) error {
	err := r.with(ctx, func(p *rod.Page) error {
		el, err := p.Element(selector)
		if err != nil {
			return err
		}
		return el.Hover()
	})
	if err != nil {
		return fmt.Errorf("hovering %s: %w", selector, err)
	}
	return nil
}

func (r *Rod) Type(ctx context.Context, selector, text string) error {
	err := r.with(ctx, func(p *rod.Page) error {
		el, err := p.Element(selector)
		if err != nil {
			return err
		}
		if err := el.WaitVisible(); err != nil {
			return err
		}
		return el.Input(text)
	})
	if err != nil {
		return fmt.Errorf("typing into %s: %w", selector, err)
	}
	return nil
}

func (r *Rod) Select(ctx context.Context, selector, value string) error {
	err := r.with(ctx, func(p *rod.Page) error {
		res, err := p.Eval(jsSelect, selector, value)
		if err != nil {
			return err
		}
		if !res.Value.Bool() {
			return errors.New("no such option")
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("selecting %q in %s: %w", value, selector, err)
	}
	return nil
}

func (r *Rod) WaitVisible(ctx context.Context, selector string) error {
	err := r.with(ctx, func(p *rod.Page) error {
		el, err := p.Element(selector)
		if err != nil {
			return err
		}
		return el.WaitVisible()
	})
	if err != nil {
		return fmt.Errorf("waiting for %s: %w", selector, err)
	}
	return nil
}

// WatchIdle arms go-rod's request-idle wait. Its context stays open until
// the watch is waited on or stopped.
func (r *Rod) WatchIdle(ctx context.Context) (IdleWatch, error) {
	wctx, cancel := context.WithCancelCause(context.WithoutCancel(ctx))
	wait := r.page.Context(wctx).WaitRequestIdle(idleWindow, nil, nil, nil)
	return &rodIdleWatch{wait: wait, ctx: wctx, cancel: cancel}, nil
}

func (r *Rod) Exists(ctx context.Context, selector string) (bool, error) {
	var ok bool
	err := r.with(ctx, func(p *rod.Page) error {
		has, _, err := p.Has(selector)
		ok = has
		return err
	})
	if err != nil {
		return false, fmt.Errorf("querying %s: %w", selector, err)
	}
	return ok, nil
}

func (r *Rod) Text(ctx context.Context, selector string) (string, error) {
	var text string
	err := r.with(ctx, func(p *rod.Page) error {
		res, err := p.Eval(jsText, selector)
		if err != nil {
			return err
		}
		text = res.Value.Str()
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("reading text of %s: %w", selector, err)
	}
	return text, nil
}

func (r *Rod) OuterHTML(ctx context.Context, selector string) (string, error) {
	var html string
	err := r.with(ctx, func(p *rod.Page) error {
		el, err := p.Element(selector)
		if err != nil {
			return err
		}
		html, err = el.HTML()
		return err
	})
	if err != nil {
		return "", fmt.Errorf("reading html of %s: %w", selector, err)
	}
	return html, nil
}

func (r *Rod) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := r.with(ctx, func(p *rod.Page) error {
		var err error
		buf, err = p.Screenshot(true, &proto.PageCaptureScreenshot{
			Format: proto.PageCaptureScreenshotFormatJpeg,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}
	return buf, nil
}

// Close shuts the browser down.
func (r *Rod) Close() error {
	return r.browser.Close()
}

// awaitLoad runs a go-rod wait function, which returns silently when its
// context ends, and reports that case as the context's error.
func awaitLoad(ctx context.Context, wait func()) error {
	wait()
	return ctx.Err()
}
