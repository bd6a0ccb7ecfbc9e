package triodos

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/movements-dev/triodos-movements/internal/browser"
	"github.com/movements-dev/triodos-movements/internal/config"
)

// fakePage plays back a scripted portal: pages holds the rendered table of
// each result page per month, alerts the banner text per month.
type fakePage struct {
	sel     config.SelectorsConfig
	loginOK bool
	pages   map[int][]string
	alerts  map[int]string
	failOn  string
	failIn  int // month failOn applies to, 0 for every month
	idleErr error

	loggedIn bool
	month    int
	year     int
	page     int
	searched bool
	typed    map[string]string
	expanded int
	shots    int

	watching        bool
	unwatchedClicks int
	waits           int
}

var _ browser.Page = (*fakePage)(nil)

func newFakePage(sel config.SelectorsConfig) *fakePage {
	return &fakePage{
		sel:     sel,
		loginOK: true,
		pages:   map[int][]string{},
		alerts:  map[int]string{},
		typed:   map[string]string{},
	}
}

func (f *fakePage) check(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.failOn != "" && selector == f.failOn && (f.failIn == 0 || f.failIn == f.month) {
		return errors.New("boom on " + selector)
	}
	return nil
}

func (f *fakePage) Navigate(ctx context.Context, url string) error { return f.check(ctx, url) }

func (f *fakePage) Click(ctx context.Context, selector string) error { return f.check(ctx, selector) }

func (f *fakePage) ClickNavigate(ctx context.Context, selector string) error {
	if err := f.check(ctx, selector); err != nil {
		return err
	}
	switch selector {
	case f.sel.LoginSubmit:
		f.loggedIn = f.loginOK
	case f.sel.MovementsLink:
		f.searched = false
	case f.sel.SearchSubmit:
		f.searched = true
		f.page = 0
	case f.sel.NextPage:
		f.page++
	}
	return nil
}

func (f *fakePage) ClickAll(ctx context.Context, selector string) (int, error) {
	if err := f.check(ctx, selector); err != nil {
		return 0, err
	}
	n := strings.Count(f.current(), "detalles-link")
	f.expanded += n
	if !f.watching {
		f.unwatchedClicks += n
	}
	return n, nil
}

func (f *fakePage) Hover(ctx context.Context, selector string) error { return f.check(ctx, selector) }

func (f *fakePage) Type(ctx context.Context, selector, text string) error {
	if err := f.check(ctx, selector); err != nil {
		return err
	}
	f.typed[selector] = text
	return nil
}

func (f *fakePage) Select(ctx context.Context, selector, value string) error {
	if err := f.check(ctx, selector); err != nil {
		return err
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return err
	}
	switch selector {
	case f.sel.MonthSelect:
		f.month = n
	case f.sel.YearSelect:
		f.year = n
	}
	return nil
}

func (f *fakePage) WaitVisible(ctx context.Context, selector string) error {
	return f.check(ctx, selector)
}

func (f *fakePage) WatchIdle(ctx context.Context) (browser.IdleWatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.watching = true
	return &fakeWatch{page: f}, nil
}

func (f *fakePage) Exists(ctx context.Context, selector string) (bool, error) {
	if err := f.check(ctx, selector); err != nil {
		return false, err
	}
	switch selector {
	case f.sel.LoggedInMarker:
		return f.loggedIn, nil
	case f.sel.MovementsTable:
		return f.current() != "", nil
	case f.sel.NextPage:
		return f.searched && f.page+1 < len(f.pages[f.month]), nil
	}
	return false, nil
}

func (f *fakePage) Text(ctx context.Context, selector string) (string, error) {
	if err := f.check(ctx, selector); err != nil {
		return "", err
	}
	if selector == f.sel.AlertText && f.searched {
		return f.alerts[f.month], nil
	}
	return "", nil
}

func (f *fakePage) OuterHTML(ctx context.Context, selector string) (string, error) {
	if err := f.check(ctx, selector); err != nil {
		return "", err
	}
	html := f.current()
	if html == "" {
		return "", errors.New("no node matches " + selector)
	}
	return html, nil
}

func (f *fakePage) Screenshot(context.Context) ([]byte, error) {
	f.shots++
	return []byte("jpeg"), nil
}

func (f *fakePage) Close() error { return nil }

// fakeWatch answers Wait with the page's idleErr.
type fakeWatch struct {
	page *fakePage
}

func (w *fakeWatch) Wait(ctx context.Context, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.page.waits++
	return w.page.idleErr
}

func (w *fakeWatch) Stop() { w.page.watching = false }

func (f *fakePage) current() string {
	if !f.searched {
		return ""
	}
	pages := f.pages[f.month]
	if f.page >= len(pages) {
		return ""
	}
	return pages[f.page]
}

func readFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(data)
}
