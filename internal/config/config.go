// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/JakeFAU/directory-crawler/internal/crawler"
	"github.com/JakeFAU/directory-crawler/internal/extract"
)

// ErrInvalid wraps every configuration fault.
var ErrInvalid = errors.New("invalid configuration")

// DefaultMaxTarget is the directory's member count.
const DefaultMaxTarget = 130423

// Store modes.
const (
	ModeSQLite   = "sqlite"
	ModePostgres = "postgres"
	ModeStream   = "stream"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Crawler   CrawlerConfig     `mapstructure:"crawler"`
	Browser   BrowserConfig     `mapstructure:"browser"`
	Store     StoreConfig       `mapstructure:"store"`
	Export    ExportConfig      `mapstructure:"export"`
	Selectors extract.Selectors `mapstructure:"selectors"`
	Progress  ProgressConfig    `mapstructure:"progress"`
	Metrics   MetricsConfig     `mapstructure:"metrics"`
	Logging   LoggingConfig     `mapstructure:"logging"`
}

// CrawlerConfig governs the crawl loop and extraction.
type CrawlerConfig struct {
	BaseURL          string `mapstructure:"base_url"`
	Target           int    `mapstructure:"target"`
	MaxTarget        int    `mapstructure:"max_target"`
	StartPage        int    `mapstructure:"start_page"`
	EndPage          int    `mapstructure:"end_page"`
	IncludeAllEmails bool   `mapstructure:"include_all_emails"`
	IncludePhone     bool   `mapstructure:"include_phone"`
	Pagination       string `mapstructure:"pagination"`
	MinDelayMs       int    `mapstructure:"min_delay_ms"`
	MaxDelayMs       int    `mapstructure:"max_delay_ms"`
	ListingTimeoutS  int    `mapstructure:"listing_timeout_seconds"`
	ProfileTimeoutS  int    `mapstructure:"profile_timeout_seconds"`
	ScrollPasses     int    `mapstructure:"scroll_passes"`
	ScrollPauseMs    int    `mapstructure:"scroll_pause_ms"`
	MaxStuckPages    int    `mapstructure:"max_stuck_pages"`
}

// BrowserConfig configures the Chrome session.
type BrowserConfig struct {
	Headless       bool   `mapstructure:"headless"`
	UserDataDir    string `mapstructure:"user_data_dir"`
	ExecPath       string `mapstructure:"exec_path"`
	UserAgent      string `mapstructure:"user_agent"`
	NavTimeoutS    int    `mapstructure:"nav_timeout_seconds"`
	ActionTimeoutS int    `mapstructure:"action_timeout_seconds"`
	// WaitForLogin pauses after opening the start page until the operator
	// presses Enter.
	WaitForLogin bool `mapstructure:"wait_for_login"`
}

// StoreConfig selects and configures the record store.
type StoreConfig struct {
	Mode       string         `mapstructure:"mode"`
	Path       string         `mapstructure:"path"`
	Delimiter  string         `mapstructure:"delimiter"`
	FlushEvery int            `mapstructure:"flush_every"`
	Postgres   PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig is used when store.mode is postgres.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int    `mapstructure:"max_conns"`
}

// ExportConfig controls the export subcommand.
type ExportConfig struct {
	Path      string `mapstructure:"path"`
	Delimiter string `mapstructure:"delimiter"`
}

// ProgressConfig tunes the progress hub.
type ProgressConfig struct {
	BufferSize     int `mapstructure:"buffer_size"`
	MaxBatchEvents int `mapstructure:"max_batch_events"`
	MaxBatchWaitMs int `mapstructure:"max_batch_wait_ms"`
}

// MetricsConfig enables the optional metrics listener.
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// flagKeys maps CLI flag names to the config keys they override.
var flagKeys = map[string]string{
	"base-url":           "crawler.base_url",
	"target":             "crawler.target",
	"start-page":         "crawler.start_page",
	"end-page":           "crawler.end_page",
	"include-all-emails": "crawler.include_all_emails",
	"include-phone":      "crawler.include_phone",
	"pagination":         "crawler.pagination",
	"headless":           "browser.headless",
	"user-data-dir":      "browser.user_data_dir",
	"wait-for-login":     "browser.wait_for_login",
	"store-mode":         "store.mode",
	"store-path":         "store.path",
	"export-path":        "export.path",
	"metrics-addr":       "metrics.listen_addr",
	"dev":                "logging.development",
}

// Load builds a Config from defaults, an optional file, DIRCRAWLER_*
// environment variables and any flags in flags that were set.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DIRCRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Selectors = cfg.Selectors.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.target", 0)
	v.SetDefault("crawler.max_target", DefaultMaxTarget)
	v.SetDefault("crawler.start_page", 1)
	v.SetDefault("crawler.end_page", 0)
	v.SetDefault("crawler.include_all_emails", false)
	v.SetDefault("crawler.include_phone", false)
	v.SetDefault("crawler.pagination", string(crawler.PaginationAuto))
	v.SetDefault("crawler.min_delay_ms", 800)
	v.SetDefault("crawler.max_delay_ms", 1600)
	v.SetDefault("crawler.listing_timeout_seconds", 45)
	v.SetDefault("crawler.profile_timeout_seconds", 45)
	v.SetDefault("crawler.scroll_passes", 3)
	v.SetDefault("crawler.scroll_pause_ms", 600)
	v.SetDefault("crawler.max_stuck_pages", 3)
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.user_data_dir", ".chrome-profile")
	v.SetDefault("browser.nav_timeout_seconds", 60)
	v.SetDefault("browser.action_timeout_seconds", 15)
	v.SetDefault("browser.wait_for_login", true)
	v.SetDefault("store.mode", ModeSQLite)
	v.SetDefault("store.path", "data/profiles.db")
	v.SetDefault("store.flush_every", 10)
	v.SetDefault("store.postgres.table", "profiles")
	v.SetDefault("store.postgres.max_conns", 4)
	v.SetDefault("export.path", "data/profiles.tsv")
	v.SetDefault("progress.buffer_size", 1024)
	v.SetDefault("progress.max_batch_events", 100)
	v.SetDefault("progress.max_batch_wait_ms", 250)
	v.SetDefault("metrics.listen_addr", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("selectors.version", extract.SelectorVersion)
}

// Validate enforces required values and reasonable limits. Every error wraps
// ErrInvalid.
func (c Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

func (c Config) validate() error {
	if c.Crawler.BaseURL != "" {
		u, err := url.Parse(c.Crawler.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("crawler.base_url %q must be an absolute URL", c.Crawler.BaseURL)
		}
	}
	if c.Crawler.MaxTarget <= 0 {
		return errors.New("crawler.max_target must be > 0")
	}
	if c.Crawler.Target != 0 {
		if err := c.CheckTarget(c.Crawler.Target); err != nil {
			return err
		}
	}
	if c.Crawler.StartPage <= 0 {
		return errors.New("crawler.start_page must be > 0")
	}
	if c.Crawler.EndPage < 0 || (c.Crawler.EndPage > 0 && c.Crawler.EndPage < c.Crawler.StartPage) {
		return fmt.Errorf("crawler.end_page %d must be 0 or >= start_page", c.Crawler.EndPage)
	}
	switch crawler.Pagination(c.Crawler.Pagination) {
	case crawler.PaginationQuery, crawler.PaginationNext, crawler.PaginationAuto:
	default:
		return fmt.Errorf("crawler.pagination %q must be query, next or auto", c.Crawler.Pagination)
	}
	if c.Crawler.MinDelayMs < 0 || c.Crawler.MaxDelayMs < c.Crawler.MinDelayMs {
		return errors.New("crawler.max_delay_ms must be >= min_delay_ms >= 0")
	}
	switch c.Store.Mode {
	case ModeSQLite, ModeStream:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path must be set for %s mode", c.Store.Mode)
		}
	case ModePostgres:
		if c.Store.Postgres.DSN == "" {
			return errors.New("store.postgres.dsn must be set for postgres mode")
		}
		if c.Store.Postgres.MaxConns < 0 || c.Store.Postgres.MaxConns > 64 {
			return errors.New("store.postgres.max_conns must be between 0 and 64")
		}
	default:
		return fmt.Errorf("store.mode %q must be sqlite, postgres or stream", c.Store.Mode)
	}
	if c.Store.FlushEvery <= 0 {
		return errors.New("store.flush_every must be > 0")
	}
	if _, err := parseDelimiter(c.Store.Delimiter); err != nil {
		return fmt.Errorf("store.delimiter: %w", err)
	}
	if _, err := parseDelimiter(c.Export.Delimiter); err != nil {
		return fmt.Errorf("export.delimiter: %w", err)
	}
	if c.Selectors.Version != extract.SelectorVersion {
		return fmt.Errorf("selectors.version %q is not supported (want %s)", c.Selectors.Version, extract.SelectorVersion)
	}
	return c.Selectors.Validate()
}

// CheckTarget reports whether n is an acceptable record target.
func (c Config) CheckTarget(n int) error {
	if n < 1 || n > c.Crawler.MaxTarget {
		return fmt.Errorf("crawler.target %d must be between 1 and %d", n, c.Crawler.MaxTarget)
	}
	return nil
}

// StoreDelimiter returns the configured streaming delimiter; zero lets the
// store pick one from the file extension.
func (c Config) StoreDelimiter() rune {
	d, _ := parseDelimiter(c.Store.Delimiter)
	return d
}

// ExportDelimiter is StoreDelimiter for the export subcommand.
func (c Config) ExportDelimiter() rune {
	d, _ := parseDelimiter(c.Export.Delimiter)
	return d
}

func parseDelimiter(raw string) (rune, error) {
	switch strings.ToLower(raw) {
	case "":
		return 0, nil
	case "tab", `\t`, "\t":
		return '\t', nil
	case "comma", ",":
		return ',', nil
	}
	if r := []rune(raw); len(r) == 1 && r[0] != '"' && r[0] != '\r' && r[0] != '\n' {
		return r[0], nil
	}
	return 0, fmt.Errorf("unsupported delimiter %q", raw)
}

// CrawlerSettings converts the crawl knobs into a crawler.Config for target.
func (c Config) CrawlerSettings(target int) crawler.Config {
	return crawler.Config{
		BaseURL:        c.Crawler.BaseURL,
		StartPage:      c.Crawler.StartPage,
		EndPage:        c.Crawler.EndPage,
		Target:         target,
		Pagination:     crawler.Pagination(c.Crawler.Pagination),
		ListingTimeout: seconds(c.Crawler.ListingTimeoutS),
		ScrollPasses:   c.Crawler.ScrollPasses,
		ScrollPause:    millis(c.Crawler.ScrollPauseMs),
		MaxStuckPages:  c.Crawler.MaxStuckPages,
		LinkSelector:   c.Selectors.ListingLink,
		LinkText:       c.Selectors.ListingLinkText,
		NextSelector:   c.Selectors.NextPage,
	}
}

// ExtractOptions returns the extraction pipeline options.
func (c Config) ExtractOptions() extract.Options {
	return extract.Options{
		IncludeAllEmails: c.Crawler.IncludeAllEmails,
		IncludePhone:     c.Crawler.IncludePhone,
		ReadyTimeout:     seconds(c.Crawler.ProfileTimeoutS),
	}
}

// Delays returns the pacing window between profile fetches.
func (c Config) Delays() (minDelay, maxDelay time.Duration) {
	return millis(c.Crawler.MinDelayMs), millis(c.Crawler.MaxDelayMs)
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func millis(n int) time.Duration { return time.Duration(n) * time.Millisecond }
