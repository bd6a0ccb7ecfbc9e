package triodos

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/movements-dev/triodos-movements/internal/browser"
	"github.com/movements-dev/triodos-movements/internal/logger"
	"github.com/movements-dev/triodos-movements/internal/model"
)

// LoadStatus is the outcome of filtering the movements view by month.
type LoadStatus int

const (
	// StatusLoaded means the results table is on the page.
	StatusLoaded LoadStatus = iota + 1
	// StatusNoData means the portal answered with an alert banner.
	StatusNoData
	// StatusMissing means neither a table nor a banner showed up.
	StatusMissing
)

func (s LoadStatus) String() string {
	switch s {
	case StatusLoaded:
		return "loaded"
	case StatusNoData:
		return "no-data"
	case StatusMissing:
		return "missing"
	default:
		return "unknown"
	}
}

// LoadState is what the month view showed after the search was submitted.
type LoadState struct {
	Status  LoadStatus
	Message string // banner text for StatusNoData
}

// Month returns one month's movements oldest first. A month whose view
// does not load yields no movements rather than an error.
func (s *Scraper) Month(ctx context.Context, month, year int) ([]model.Movement, error) {
	log := logger.FromContext(ctx).With().Int("month", month).Int("year", year).Logger()
	log.Info().Msg("getting movements")

	state, err := s.loadMonth(ctx, month, year)
	if err != nil {
		return nil, err
	}
	if state.Status != StatusLoaded {
		log.Warn().Stringer("state", state.Status).Str("alert", state.Message).Msg("month did not load, skipping")
		return nil, nil
	}

	var all []model.Movement
	for pageNum := 1; ; pageNum++ {
		movs, err := s.visibleMovements(ctx)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", pageNum, err)
		}
		log.Debug().Int("page", pageNum).Int("rows", len(movs)).Msg("page extracted")
		all = append(all, movs...)

		more, err := s.nextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", pageNum, err)
		}
		if !more {
			break
		}
	}

	// The portal lists newest first.
	model.Reverse(all)
	log.Info().Int("movements", len(all)).Msg("month complete")
	return all, nil
}

// loadMonth fills the date searcher for month/year, submits it and reports
// what the result page shows.
func (s *Scraper) loadMonth(ctx context.Context, month, year int) (LoadState, error) {
	sel := s.cfg.Selectors

	if err := s.page.Hover(ctx, sel.SubmenuTrigger); err != nil {
		return LoadState{}, err
	}
	if err := s.page.ClickNavigate(ctx, sel.MovementsLink); err != nil {
		return LoadState{}, err
	}
	if err := s.page.Click(ctx, sel.SearcherToggle); err != nil {
		return LoadState{}, err
	}
	if err := s.page.WaitVisible(ctx, sel.SearchByDate); err != nil {
		return LoadState{}, err
	}
	if err := s.page.Click(ctx, sel.SearchByDate); err != nil {
		return LoadState{}, err
	}
	if err := s.page.Select(ctx, sel.MonthSelect, strconv.Itoa(month)); err != nil {
		return LoadState{}, err
	}
	if err := s.page.Select(ctx, sel.YearSelect, strconv.Itoa(year)); err != nil {
		return LoadState{}, err
	}
	if err := s.page.ClickNavigate(ctx, sel.SearchSubmit); err != nil {
		return LoadState{}, err
	}

	return s.detectLoadState(ctx)
}

// detectLoadState reads the settled result page. A non-empty banner wins
// over a table.
func (s *Scraper) detectLoadState(ctx context.Context) (LoadState, error) {
	sel := s.cfg.Selectors

	alert, err := s.page.Text(ctx, sel.AlertText)
	if err != nil {
		return LoadState{}, err
	}
	if alert != "" {
		return LoadState{Status: StatusNoData, Message: alert}, nil
	}

	hasTable, err := s.page.Exists(ctx, sel.MovementsTable)
	if err != nil {
		return LoadState{}, err
	}
	if !hasTable {
		return LoadState{Status: StatusMissing}, nil
	}
	return LoadState{Status: StatusLoaded}, nil
}

// visibleMovements expands every detail row on the current page, waits for
// the network to settle and extracts the rendered table.
func (s *Scraper) visibleMovements(ctx context.Context) ([]model.Movement, error) {
	sel := s.cfg.Selectors

	// Requests fired by the clicks must be seen, so the watch comes first.
	watch, err := s.page.WatchIdle(ctx)
	if err != nil {
		return nil, err
	}
	defer watch.Stop()

	start := time.Now()
	n, err := s.page.ClickAll(ctx, sel.DetailLink)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		if err := s.settleDetails(ctx, watch, start, n); err != nil {
			return nil, err
		}
	}

	tableHTML, err := s.page.OuterHTML(ctx, sel.MovementsTable)
	if err != nil {
		return nil, err
	}
	return s.extractor.Extract(ctx, tableHTML)
}

// settleDetails waits for the detail requests to finish, up to the settle
// timeout, and never returns before the floor has passed since start.
func (s *Scraper) settleDetails(ctx context.Context, watch browser.IdleWatch, start time.Time, n int) error {
	log := logger.FromContext(ctx)
	timeouts := s.cfg.Timeouts

	err := watch.Wait(ctx, timeouts.DetailSettle)
	switch {
	case errors.Is(err, browser.ErrIdleTimeout):
		log.Debug().Int("details", n).Msg("details did not settle, continuing")
	case err != nil:
		return err
	}

	rest := timeouts.DetailFloor - time.Since(start)
	if rest <= 0 {
		return nil
	}
	timer := time.NewTimer(rest)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// nextPage follows the pager's next link, reporting false when there is none.
func (s *Scraper) nextPage(ctx context.Context) (bool, error) {
	next := s.cfg.Selectors.NextPage
	ok, err := s.page.Exists(ctx, next)
	if err != nil || !ok {
		return false, err
	}
	if err := s.page.ClickNavigate(ctx, next); err != nil {
		return false, err
	}
	if err := s.page.WaitVisible(ctx, s.cfg.Selectors.MovementsTable); err != nil {
		return false, err
	}
	return true, nil
}
