package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/JakeFAU/directory-crawler/internal/crawler"
	"github.com/JakeFAU/directory-crawler/internal/extract"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Store.Mode != ModeSQLite {
		t.Fatalf("expected sqlite mode, got %q", cfg.Store.Mode)
	}
	if cfg.Crawler.MaxTarget != DefaultMaxTarget {
		t.Fatalf("expected max target %d, got %d", DefaultMaxTarget, cfg.Crawler.MaxTarget)
	}
	if cfg.Crawler.Target != 0 {
		t.Fatalf("expected unset target, got %d", cfg.Crawler.Target)
	}
	if cfg.Crawler.Pagination != string(crawler.PaginationAuto) {
		t.Fatalf("expected auto pagination, got %q", cfg.Crawler.Pagination)
	}
	if cfg.Selectors.ListingLink != extract.DefaultSelectors().ListingLink {
		t.Fatalf("expected default listing selector, got %q", cfg.Selectors.ListingLink)
	}
	if !cfg.Browser.WaitForLogin {
		t.Fatal("expected login gate to default on")
	}
	if cfg.StoreDelimiter() != 0 {
		t.Fatalf("expected extension-derived delimiter, got %q", cfg.StoreDelimiter())
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
crawler:
  base_url: https://directory.example.com/people
  target: 250
  start_page: 4
  end_page: 9
  include_all_emails: true
  include_phone: true
  pagination: next
  min_delay_ms: 100
  max_delay_ms: 200
  profile_timeout_seconds: 20
browser:
  headless: true
  user_data_dir: /tmp/chrome
store:
  mode: stream
  path: out/profiles.csv
  delimiter: comma
  flush_every: 5
export:
  delimiter: tab
selectors:
  listing_link: "a.member-card"
  name_candidates: ["h1.person"]
logging:
  development: false
`)

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Crawler.Target != 250 || cfg.Crawler.StartPage != 4 || cfg.Crawler.EndPage != 9 {
		t.Fatalf("unexpected crawler config: %+v", cfg.Crawler)
	}
	if !cfg.Crawler.IncludeAllEmails || !cfg.Crawler.IncludePhone {
		t.Fatalf("expected email and phone toggles on: %+v", cfg.Crawler)
	}
	if cfg.Store.Mode != ModeStream || cfg.Store.FlushEvery != 5 {
		t.Fatalf("unexpected store config: %+v", cfg.Store)
	}
	if cfg.StoreDelimiter() != ',' || cfg.ExportDelimiter() != '\t' {
		t.Fatalf("unexpected delimiters %q %q", cfg.StoreDelimiter(), cfg.ExportDelimiter())
	}
	if cfg.Selectors.ListingLink != "a.member-card" {
		t.Fatalf("expected selector override, got %q", cfg.Selectors.ListingLink)
	}
	if len(cfg.Selectors.NameCandidates) != 1 || cfg.Selectors.NameCandidates[0] != "h1.person" {
		t.Fatalf("unexpected name candidates %v", cfg.Selectors.NameCandidates)
	}
	if cfg.Selectors.ProfileReady != extract.DefaultSelectors().ProfileReady {
		t.Fatalf("expected unset selectors to keep defaults, got %q", cfg.Selectors.ProfileReady)
	}
	if cfg.Logging.Development {
		t.Fatal("expected development logging off")
	}

	cc := cfg.CrawlerSettings(cfg.Crawler.Target)
	if cc.Pagination != crawler.PaginationNext || cc.LinkSelector != "a.member-card" || cc.Target != 250 {
		t.Fatalf("unexpected crawler settings %+v", cc)
	}
	if err := cc.Validate(); err != nil {
		t.Fatalf("crawler settings invalid: %v", err)
	}
	minDelay, maxDelay := cfg.Delays()
	if minDelay != 100*time.Millisecond || maxDelay != 200*time.Millisecond {
		t.Fatalf("unexpected delays %v %v", minDelay, maxDelay)
	}
	if opts := cfg.ExtractOptions(); opts.ReadyTimeout != 20*time.Second || !opts.IncludePhone {
		t.Fatalf("unexpected extract options %+v", opts)
	}
}

func TestLoadFlagsOverrideFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "crawler:\n  target: 10\n")
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("target", 0, "")
	flags.String("store-mode", "", "")
	flags.Bool("headless", false, "")
	if err := flags.Parse([]string{"--target=25", "--headless"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load(path, flags)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Crawler.Target != 25 {
		t.Fatalf("expected flag target 25, got %d", cfg.Crawler.Target)
	}
	if !cfg.Browser.Headless {
		t.Fatal("expected headless from flag")
	}
	if cfg.Store.Mode != ModeSQLite {
		t.Fatalf("unset flag must not clobber default, got %q", cfg.Store.Mode)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("DIRCRAWLER_STORE_MODE", "stream")
	t.Setenv("DIRCRAWLER_CRAWLER_TARGET", "7")

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Store.Mode != ModeStream || cfg.Crawler.Target != 7 {
		t.Fatalf("env overrides not applied: mode=%q target=%d", cfg.Store.Mode, cfg.Crawler.Target)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidateFailures(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"target above max":   "crawler:\n  target: 200000\n",
		"negative target":    "crawler:\n  target: -1\n",
		"relative base url":  "crawler:\n  base_url: /people\n",
		"end before start":   "crawler:\n  start_page: 5\n  end_page: 2\n",
		"unknown pagination": "crawler:\n  pagination: sideways\n",
		"inverted delays":    "crawler:\n  min_delay_ms: 500\n  max_delay_ms: 100\n",
		"unknown mode":       "store:\n  mode: redis\n",
		"postgres sans dsn":  "store:\n  mode: postgres\n",
		"bad delimiter":      "store:\n  delimiter: '\"'\n",
		"bad selector":       "selectors:\n  listing_link: 'a[href'\n",
		"selector version":   "selectors:\n  version: v9\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(writeConfig(t, body), nil)
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestCheckTarget(t *testing.T) {
	t.Parallel()

	cfg := Config{Crawler: CrawlerConfig{MaxTarget: 100}}
	for _, n := range []int{1, 50, 100} {
		if err := cfg.CheckTarget(n); err != nil {
			t.Fatalf("CheckTarget(%d) error = %v", n, err)
		}
	}
	for _, n := range []int{0, -3, 101} {
		if err := cfg.CheckTarget(n); err == nil {
			t.Fatalf("CheckTarget(%d) expected error", n)
		}
	}
}
