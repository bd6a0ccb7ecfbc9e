package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/movements-dev/triodos-movements/internal/browser"
	"github.com/movements-dev/triodos-movements/internal/config"
	"github.com/movements-dev/triodos-movements/internal/diagnostics"
	"github.com/movements-dev/triodos-movements/internal/export"
	"github.com/movements-dev/triodos-movements/internal/logger"
	"github.com/movements-dev/triodos-movements/internal/triodos"
)

type extractOptions struct {
	year           int
	configPath     string
	envFile        string
	output         string
	format         string
	driver         string
	headless       bool
	screenshotsDir string
}

func newExtractCommand() *cobra.Command {
	var opts extractOptions

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Log in and export every movement of a year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return runExtract(cmd.Context(), cfg, opts)
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.year, "year", time.Now().Year(), "year to export")
	f.StringVar(&opts.configPath, "config", "", "YAML config file (defaults are used when empty)")
	f.StringVar(&opts.envFile, "env-file", ".env", "file to seed credentials from, ignored when missing")
	f.StringVar(&opts.output, "output", "", "output path (overrides config)")
	f.StringVar(&opts.format, "format", "", "output format: json, csv or sqlite (overrides config)")
	f.StringVar(&opts.driver, "driver", "", "browser driver: chromedp or rod (overrides config)")
	f.BoolVar(&opts.headless, "headless", false, "run the browser without a window (overrides config)")
	f.StringVar(&opts.screenshotsDir, "screenshots-dir", "", "where failure screenshots go (overrides config)")

	return cmd
}

// loadConfig reads the config file, if any, and applies the flags the user set.
func loadConfig(cmd *cobra.Command, opts extractOptions) (*config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("output") {
		cfg.Output.Path = opts.output
	}
	if flags.Changed("format") {
		cfg.Output.Format = opts.format
	}
	if flags.Changed("driver") {
		cfg.Browser.Driver = opts.driver
	}
	if flags.Changed("headless") {
		cfg.Browser.Headless = opts.headless
	}
	if flags.Changed("screenshots-dir") {
		cfg.Output.ScreenshotsDir = opts.screenshotsDir
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func runExtract(ctx context.Context, cfg *config.Config, opts extractOptions) error {
	if opts.year < 1 {
		return fmt.Errorf("invalid year %d", opts.year)
	}

	// Credentials are checked before any browser is started.
	if err := config.LoadEnvFile(opts.envFile); err != nil {
		return err
	}
	creds, err := config.CredentialsFromEnv(os.Getenv)
	if err != nil {
		return err
	}

	log := logger.FromContext(ctx).With().Str("run_id", uuid.NewString()).Logger()
	ctx = logger.WithContext(ctx, log)

	log.Info().
		Int("year", opts.year).
		Str("driver", cfg.Browser.Driver).
		Bool("headless", cfg.Browser.Headless).
		Msg("starting extraction")

	page, err := browser.Launch(ctx, cfg.Browser.Driver, browser.OptionsFromConfig(cfg))
	if err != nil {
		return fmt.Errorf("launching browser: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			log.Warn().Err(err).Msg("closing browser")
		}
	}()

	scraper := triodos.New(page, cfg, creds, diagnostics.NewSnapshotter(cfg.Output.ScreenshotsDir))
	movs, err := scraper.Run(ctx, opts.year)
	if err != nil {
		return err
	}

	if _, err := export.Save(ctx, cfg.Output.Format, cfg.Output.Path, opts.year, movs); err != nil {
		log.Error().Err(err).Msg("saving output")
		return err
	}
	return nil
}
