// Package triodos walks the Triodos online banking portal: it logs in,
// opens the first account and pages through each month's movements.
package triodos

import (
	"context"
	"errors"
	"fmt"

	"github.com/movements-dev/triodos-movements/internal/browser"
	"github.com/movements-dev/triodos-movements/internal/config"
	"github.com/movements-dev/triodos-movements/internal/diagnostics"
	"github.com/movements-dev/triodos-movements/internal/logger"
	"github.com/movements-dev/triodos-movements/internal/model"
	"github.com/movements-dev/triodos-movements/internal/movements"
)

// ErrLoginFailed is returned when the post-login marker is absent after submitting credentials.
var ErrLoginFailed = errors.New("unable to login")

// Scraper owns the single page of a run and drives it step by step.
type Scraper struct {
	page      browser.Page
	cfg       *config.Config
	creds     config.Credentials
	extractor *movements.Extractor
	snapshots *diagnostics.Snapshotter
}

// New creates a Scraper. Credentials must already be validated.
func New(page browser.Page, cfg *config.Config, creds config.Credentials, snapshots *diagnostics.Snapshotter) *Scraper {
	return &Scraper{
		page:      page,
		cfg:       cfg,
		creds:     creds,
		extractor: movements.NewExtractor(movements.SchemaFromConfig(cfg)),
		snapshots: snapshots,
	}
}

// Run logs in, opens the first account and returns every movement of year.
// On failure a screenshot is saved before the error is returned.
func (s *Scraper) Run(ctx context.Context, year int) ([]model.Movement, error) {
	movs, err := s.run(ctx, year)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return movs, nil
}

func (s *Scraper) run(ctx context.Context, year int) ([]model.Movement, error) {
	if err := s.Login(ctx); err != nil {
		return nil, err
	}
	if err := s.OpenAccount(ctx); err != nil {
		return nil, err
	}
	return s.Year(ctx, year)
}

func (s *Scraper) fail(ctx context.Context, err error) error {
	log := logger.FromContext(ctx)
	path, snapErr := s.snapshots.Capture(ctx, s.page)
	if snapErr != nil {
		log.Error().Err(err).AnErr("screenshot_error", snapErr).Msg("run failed, no screenshot saved")
		return err
	}
	log.Error().Err(err).Str("screenshot", path).Msg("run failed")
	return fmt.Errorf("%w (screenshot: %s)", err, path)
}

// Login authenticates from the public home page.
func (s *Scraper) Login(ctx context.Context) error {
	log := logger.FromContext(ctx)
	sel := s.cfg.Selectors

	log.Info().Str("url", s.cfg.Portal.HomeURL).Msg("loading login page")
	if err := s.page.Navigate(ctx, s.cfg.Portal.HomeURL); err != nil {
		return err
	}
	if err := s.page.ClickNavigate(ctx, sel.LoginLink); err != nil {
		return err
	}

	log.Info().Str("user", s.creds.Username).Msg("logging in")
	if err := s.page.Type(ctx, sel.Username, s.creds.Username); err != nil {
		return err
	}
	if err := s.page.Type(ctx, sel.Password, s.creds.Password); err != nil {
		return err
	}
	if err := s.page.ClickNavigate(ctx, sel.LoginSubmit); err != nil {
		return err
	}

	ok, err := s.page.Exists(ctx, sel.LoggedInMarker)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s not found after submitting credentials", ErrLoginFailed, sel.LoggedInMarker)
	}

	log.Info().Msg("logged in")
	return nil
}

// OpenAccount moves from the dashboard to the first bank account.
func (s *Scraper) OpenAccount(ctx context.Context) error {
	sel := s.cfg.Selectors
	if err := s.page.ClickNavigate(ctx, sel.AccountLink); err != nil {
		return fmt.Errorf("opening first account: %w", err)
	}
	if err := s.page.WaitVisible(ctx, sel.SubmenuTrigger); err != nil {
		return fmt.Errorf("opening first account: %w", err)
	}
	return nil
}

// Year returns the movements of months 1 to 12 in month order.
func (s *Scraper) Year(ctx context.Context, year int) ([]model.Movement, error) {
	var all []model.Movement
	for month := 1; month <= 12; month++ {
		movs, err := s.Month(ctx, month, year)
		if err != nil {
			return nil, fmt.Errorf("month %02d/%d: %w", month, year, err)
		}
		all = append(all, movs...)
	}
	log := logger.FromContext(ctx)
	log.Info().Int("year", year).Int("movements", len(all)).Msg("year complete")
	return all, nil
}
