package triodos

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movements-dev/triodos-movements/internal/browser"
	"github.com/movements-dev/triodos-movements/internal/config"
	"github.com/movements-dev/triodos-movements/internal/diagnostics"
	"github.com/movements-dev/triodos-movements/internal/logger"
	"github.com/movements-dev/triodos-movements/internal/model"
)

func newTestScraper(t *testing.T) (*Scraper, *fakePage, string) {
	t.Helper()
	cfg := config.Default()
	cfg.Timeouts.DetailFloor = 0
	page := newFakePage(cfg.Selectors)
	dir := t.TempDir()
	creds := config.Credentials{Username: "alice", Password: "secret"}
	return New(page, cfg, creds, diagnostics.NewSnapshotter(dir)), page, dir
}

func dates(movs []model.Movement) []string {
	out := make([]string, len(movs))
	for i, m := range movs {
		out[i] = m.DateExecution
	}
	return out
}

func TestRun_JanuaryAcrossTwoPages(t *testing.T) {
	s, page, dir := newTestScraper(t)
	page.pages[1] = []string{
		readFixture(t, "movements_page1.html"),
		readFixture(t, "movements_page2.html"),
	}

	movs, err := s.Run(context.Background(), 2025)
	require.NoError(t, err)

	assert.Equal(t, []string{"05/01/2025", "15/01/2025", "20/01/2025", "28/01/2025"}, dates(movs))
	assert.Equal(t, "alice", page.typed[config.Default().Selectors.Username])
	assert.Equal(t, "secret", page.typed[config.Default().Selectors.Password])
	assert.Equal(t, 2025, page.year)

	enriched := 0
	for _, m := range movs {
		if m.HasDetails() {
			enriched++
			assert.Equal(t, "PAGO CON TARJETA", m.Description)
		}
	}
	assert.Equal(t, 1, enriched)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no screenshot on success")
}

func TestRun_LoginFailed(t *testing.T) {
	s, page, dir := newTestScraper(t)
	page.loginOK = false

	movs, err := s.Run(context.Background(), 2025)
	require.ErrorIs(t, err, ErrLoginFailed)
	assert.Nil(t, movs)
	assert.Contains(t, err.Error(), "screenshot:")
	assert.Equal(t, 1, page.shots)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Regexp(t, `^error-\d+\.jpg$`, entries[0].Name())
}

func TestRun_LogsErrorWhenScreenshotFails(t *testing.T) {
	s, page, dir := newTestScraper(t)
	page.loginOK = false
	blocker := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	s.snapshots = diagnostics.NewSnapshotter(filepath.Join(blocker, "shots"))

	var buf bytes.Buffer
	log, err := logger.NewWithWriter(&buf, "info")
	require.NoError(t, err)
	ctx := logger.WithContext(context.Background(), log)

	_, err = s.Run(ctx, 2025)
	require.ErrorIs(t, err, ErrLoginFailed)
	assert.NotContains(t, err.Error(), "screenshot:")

	out := buf.String()
	assert.Contains(t, out, `"level":"error"`)
	assert.Contains(t, out, "unable to login")
	assert.Contains(t, out, "screenshot_error")
}

func TestRun_FailureMidYearReturnsNothing(t *testing.T) {
	s, page, _ := newTestScraper(t)
	page.pages[1] = []string{readFixture(t, "movements_page2.html")}
	page.pages[2] = []string{readFixture(t, "movements_page1.html")}
	page.failOn = config.Default().Selectors.MovementsTable
	page.failIn = 2

	movs, err := s.Run(context.Background(), 2025)
	require.Error(t, err)
	assert.Nil(t, movs, "January's movements are not returned")
	assert.Contains(t, err.Error(), "month 02/2025")
	assert.Equal(t, 1, page.shots)
}

func TestMonth_NoDataAndMissing(t *testing.T) {
	s, page, _ := newTestScraper(t)
	page.alerts[3] = "No hay movimientos para el periodo seleccionado"

	movs, err := s.Month(context.Background(), 3, 2025)
	require.NoError(t, err)
	assert.Empty(t, movs)

	movs, err = s.Month(context.Background(), 4, 2025)
	require.NoError(t, err)
	assert.Empty(t, movs)
}

func TestDetectLoadState(t *testing.T) {
	s, page, _ := newTestScraper(t)
	page.searched = true
	page.month = 5

	state, err := s.detectLoadState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusMissing, state.Status)

	page.pages[5] = []string{readFixture(t, "movements_page2.html")}
	state, err = s.detectLoadState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusLoaded, state.Status)

	page.alerts[5] = "Sin resultados"
	state, err = s.detectLoadState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusNoData, state.Status)
	assert.Equal(t, "Sin resultados", state.Message)
	assert.Equal(t, "no-data", state.Status.String())
}

func TestMonth_IdleTimeoutIsNotFatal(t *testing.T) {
	s, page, _ := newTestScraper(t)
	page.idleErr = browser.ErrIdleTimeout
	page.pages[6] = []string{readFixture(t, "movements_page1.html")}

	movs, err := s.Month(context.Background(), 6, 2025)
	require.NoError(t, err)
	assert.Equal(t, []string{"15/01/2025", "20/01/2025", "28/01/2025"}, dates(movs))
	assert.Positive(t, page.expanded)
}

func TestMonth_WatchesNetworkBeforeExpandingDetails(t *testing.T) {
	s, page, _ := newTestScraper(t)
	page.pages[1] = []string{
		readFixture(t, "movements_page1.html"),
		readFixture(t, "movements_page2.html"),
	}

	_, err := s.Month(context.Background(), 1, 2025)
	require.NoError(t, err)
	assert.Equal(t, 4, page.expanded)
	assert.Zero(t, page.unwatchedClicks, "detail clicks must happen while the watch is armed")
	assert.Equal(t, 2, page.waits)
	assert.False(t, page.watching, "watch is stopped after each page")
}

func TestMonth_DetailFloor(t *testing.T) {
	s, page, _ := newTestScraper(t)
	s.cfg.Timeouts.DetailFloor = 150 * time.Millisecond
	page.pages[1] = []string{readFixture(t, "movements_page1.html")}

	start := time.Now()
	movs, err := s.Month(context.Background(), 1, 2025)
	require.NoError(t, err)
	assert.Len(t, movs, 3)
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond, "idle network still waits out the floor")
}

func TestMonth_NoDetailsSkipsSettle(t *testing.T) {
	s, page, _ := newTestScraper(t)
	s.cfg.Timeouts.DetailFloor = time.Hour
	page.pages[1] = []string{
		`<table id="t"><tbody><tr><td>x</td><td>01/01/2025</td><td>01/01/2025</td><td>CUOTA</td><td>-1,00</td></tr></tbody></table>`,
	}

	movs, err := s.Month(context.Background(), 1, 2025)
	require.NoError(t, err)
	require.Len(t, movs, 1)
	assert.Zero(t, page.waits)
}

func TestYear_PreservesMonthOrder(t *testing.T) {
	s, page, _ := newTestScraper(t)
	page.pages[2] = []string{readFixture(t, "movements_page1.html")}
	page.pages[11] = []string{readFixture(t, "movements_page2.html")}

	movs, err := s.Year(context.Background(), 2025)
	require.NoError(t, err)
	// Fixture dates are all January; order reflects month 2 then month 11.
	assert.Equal(t, []string{"15/01/2025", "20/01/2025", "28/01/2025", "05/01/2025"}, dates(movs))
}

func TestRun_CanceledContext(t *testing.T) {
	s, page, _ := newTestScraper(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Run(ctx, 2025)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, page.shots, "snapshot still taken after cancellation")
}
