package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the triodos-movements.yaml configuration.
type Config struct {
	Portal       PortalConfig      `yaml:"portal"`
	Selectors    SelectorsConfig   `yaml:"selectors"`
	Columns      ColumnsConfig     `yaml:"columns"`
	DetailClass  string            `yaml:"detail_class"`
	DetailLabels map[string]string `yaml:"detail_labels"`
	Timeouts     TimeoutsConfig    `yaml:"timeouts"`
	Browser      BrowserConfig     `yaml:"browser"`
	Output       OutputConfig      `yaml:"output"`
}

// PortalConfig points at the bank's public site.
type PortalConfig struct {
	HomeURL string `yaml:"home_url"`
}

// SelectorsConfig holds every CSS selector the session driver touches.
type SelectorsConfig struct {
	LoginLink      string `yaml:"login_link"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	LoginSubmit    string `yaml:"login_submit"`
	LoggedInMarker string `yaml:"logged_in_marker"`
	AccountLink    string `yaml:"account_link"`
	SubmenuTrigger string `yaml:"submenu_trigger"`
	MovementsLink  string `yaml:"movements_link"`
	SearcherToggle string `yaml:"searcher_toggle"`
	SearchByDate   string `yaml:"search_by_date"`
	MonthSelect    string `yaml:"month_select"`
	YearSelect     string `yaml:"year_select"`
	SearchSubmit   string `yaml:"search_submit"`
	MovementsTable string `yaml:"movements_table"`
	AlertText      string `yaml:"alert_text"`
	DetailLink     string `yaml:"detail_link"`
	NextPage       string `yaml:"next_page"`
}

// ColumnsConfig maps summary-row cells (zero-based td index) to fields.
type ColumnsConfig struct {
	DateExecution int `yaml:"date_execution"`
	DateValue     int `yaml:"date_value"`
	Description   int `yaml:"description"`
	Amount        int `yaml:"amount"`
}

// TimeoutsConfig bounds browser waits.
type TimeoutsConfig struct {
	Step         time.Duration `yaml:"step"`          // any single browser command
	DetailSettle time.Duration `yaml:"detail_settle"` // best-effort wait after expanding details
	DetailFloor  time.Duration `yaml:"detail_floor"`  // minimum time given to details, even when idle sooner
}

// BrowserConfig controls how the browser is launched.
type BrowserConfig struct {
	Driver       string `yaml:"driver"` // "chromedp" or "rod"
	Headless     bool   `yaml:"headless"`
	ExecPath     string `yaml:"exec_path,omitempty"`
	UserDataDir  string `yaml:"user_data_dir"`
	UserAgent    string `yaml:"user_agent"`
	WindowWidth  int    `yaml:"window_width"`
	WindowHeight int    `yaml:"window_height"`
}

// OutputConfig controls where results and diagnostics go.
type OutputConfig struct {
	Path           string `yaml:"path"`
	Format         string `yaml:"format"` // json, csv or sqlite
	ScreenshotsDir string `yaml:"screenshots_dir"`
}

// Detail fields a label can map to.
const (
	FieldOperation     = "operation"
	FieldEstablishment = "establishment"
	FieldConcept       = "concept"
	FieldRefN          = "ref_n"
)

// Supported drivers and output formats.
var (
	Drivers = []string{"chromedp", "rod"}
	Formats = []string{"json", "csv", "sqlite"}
)

// Load reads a config file from disk. Missing keys keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns the configuration matching the portal's current markup.
func Default() *Config {
	return &Config{
		Portal: PortalConfig{
			HomeURL: "https://www.triodos.es/es",
		},
		Selectors: SelectorsConfig{
			LoginLink:      `a[href="https://banking.triodos.es/triodos-be/login.sec"]`,
			Username:       `input[name="j_username"]`,
			Password:       `input[name="j_password"]`,
			LoginSubmit:    `button#submitButton`,
			LoggedInMarker: `#mainmenu`,
			AccountLink:    `.product-wrapper.products-cuentas a.product-link.plus`,
			SubmenuTrigger: `div.submenu li:nth-child(1) > a`,
			MovementsLink:  `.submenu a[href^="getmovementsaccount.do"]`,
			SearcherToggle: `#searcherContainer2 a[data-toggle="collapse"]`,
			SearchByDate:   `input[value="getAccountMovementsByDate"]`,
			MonthSelect:    `select[name="monthSelected"]`,
			YearSelect:     `select[name="yearSelected"]`,
			SearchSubmit:   `#searcherContainer2 .button-group button.button`,
			MovementsTable: `#movements table`,
			AlertText:      `.section-alert-text`,
			DetailLink:     `#movements tbody a.table-link.detalles-link`,
			NextPage:       `ul.pager li.next a`,
		},
		Columns: ColumnsConfig{
			DateExecution: 1,
			DateValue:     2,
			Description:   3,
			Amount:        4,
		},
		DetailClass: "detalles",
		DetailLabels: map[string]string{
			"Descripción op.":  FieldOperation,
			"Establecimiento":  FieldEstablishment,
			"Nº de referencia": FieldRefN,
			"Concepto":         FieldConcept,
		},
		Timeouts: TimeoutsConfig{
			Step:         30 * time.Second,
			DetailSettle: 5 * time.Second,
			DetailFloor:  time.Second,
		},
		Browser: BrowserConfig{
			Driver:       "chromedp",
			Headless:     false,
			UserDataDir:  "./browser_data",
			UserAgent:    "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/83.0.4103.61 Safari/537.36",
			WindowWidth:  1920,
			WindowHeight: 1080,
		},
		Output: OutputConfig{
			Path:           "output.json",
			Format:         "json",
			ScreenshotsDir: ".",
		},
	}
}

// Validate checks the config for values the scraper cannot work with.
func (c *Config) Validate() error {
	var errs []error

	if c.Portal.HomeURL == "" {
		errs = append(errs, errors.New("portal.home_url is required"))
	}
	if strings.TrimSpace(c.DetailClass) == "" {
		errs = append(errs, errors.New("detail_class is required"))
	}

	cols := map[string]int{
		"date_execution": c.Columns.DateExecution,
		"date_value":     c.Columns.DateValue,
		"description":    c.Columns.Description,
		"amount":         c.Columns.Amount,
	}
	for name, idx := range cols {
		if idx < 0 {
			errs = append(errs, fmt.Errorf("columns.%s must not be negative, got %d", name, idx))
		}
	}

	for label, field := range c.DetailLabels {
		switch field {
		case FieldOperation, FieldEstablishment, FieldConcept, FieldRefN:
		default:
			errs = append(errs, fmt.Errorf("detail_labels[%q]: unknown field %q", label, field))
		}
	}

	if c.Timeouts.Step <= 0 {
		errs = append(errs, errors.New("timeouts.step must be positive"))
	}
	if c.Timeouts.DetailSettle <= 0 {
		errs = append(errs, errors.New("timeouts.detail_settle must be positive"))
	}
	if c.Timeouts.DetailFloor < 0 {
		errs = append(errs, errors.New("timeouts.detail_floor must not be negative"))
	}

	if !oneOf(c.Browser.Driver, Drivers) {
		errs = append(errs, fmt.Errorf("browser.driver %q: must be one of %v", c.Browser.Driver, Drivers))
	}
	if !oneOf(c.Output.Format, Formats) {
		errs = append(errs, fmt.Errorf("output.format %q: must be one of %v", c.Output.Format, Formats))
	}
	if c.Output.Path == "" {
		errs = append(errs, errors.New("output.path is required"))
	}

	return errors.Join(errs...)
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
