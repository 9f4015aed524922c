package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/directory-crawler/internal/browser"
	"github.com/JakeFAU/directory-crawler/internal/config"
	"github.com/JakeFAU/directory-crawler/internal/crawler"
	"github.com/JakeFAU/directory-crawler/internal/extract"
	"github.com/JakeFAU/directory-crawler/internal/id/uuid"
	"github.com/JakeFAU/directory-crawler/internal/lifecycle"
	"github.com/JakeFAU/directory-crawler/internal/metrics"
	"github.com/JakeFAU/directory-crawler/internal/progress"
	"github.com/JakeFAU/directory-crawler/internal/progress/sinks"
)

const drainTimeout = 10 * time.Second

// newSession launches the browser. Tests swap in a static fake.
var newSession = func(cfg browser.Config, logger *zap.Logger) (browser.Session, error) {
	c, err := browser.NewChrome(cfg, logger)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// newCrawlCmd creates and configures the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawls the directory and stores new profiles",
		Long: `Opens the directory in Chrome, waits for you to log in, then walks the
listing pages and stores each profile not already in the store until the
target number of new records is reached, the listing runs out or you press
Ctrl-C. A first Ctrl-C lets the current profile finish; a second aborts.`,
		RunE: runCrawlCommand,
	}
	flags := cmd.Flags()
	flags.String("base-url", "", "first listing page of the directory")
	flags.Int("target", 0, "new records to collect (prompted when unset)")
	flags.Int("start-page", 1, "listing page to start from")
	flags.Int("end-page", 0, "last listing page to visit (0 = no limit)")
	flags.Bool("include-all-emails", false, "keep every email found, not just the first")
	flags.Bool("include-phone", false, "extract phone numbers")
	flags.String("pagination", "", "query, next or auto")
	flags.Bool("headless", false, "run Chrome without a window (requires a saved login)")
	flags.String("user-data-dir", "", "Chrome profile directory holding the login")
	flags.Bool("wait-for-login", true, "pause for Enter after opening the directory")
	flags.String("metrics-addr", "", "serve /metrics, /healthz and /status on this address")
	return cmd
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.Config()
	logger := appInstance.Logger()
	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()

	if cfg.Crawler.BaseURL == "" {
		return fmt.Errorf("%w: crawler.base_url is required", config.ErrInvalid)
	}
	target := cfg.Crawler.Target
	if target == 0 {
		if target, err = promptTarget(in, out, cfg); err != nil {
			return err
		}
	}
	settings := cfg.CrawlerSettings(target)
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("%w: %w", config.ErrInvalid, err)
	}

	st, err := appInstance.OpenStore(cmd.Context())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	supervisor := lifecycle.New(st, logger.Named("lifecycle"))
	ctx := supervisor.Start(cmd.Context())
	defer func() {
		if _, err := supervisor.Shutdown(context.Background()); err != nil {
			logger.Warn("store shutdown failed", zap.Error(err))
		}
	}()

	session, err := newSession(browser.Config{
		Headless:          cfg.Browser.Headless,
		UserDataDir:       cfg.Browser.UserDataDir,
		ExecPath:          cfg.Browser.ExecPath,
		UserAgent:         cfg.Browser.UserAgent,
		NavigationTimeout: time.Duration(cfg.Browser.NavTimeoutS) * time.Second,
		ActionTimeout:     time.Duration(cfg.Browser.ActionTimeoutS) * time.Second,
	}, logger.Named("browser"))
	if err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("browser close failed", zap.Error(err))
		}
	}()

	if err := session.Navigate(ctx, settings.BaseURL); err != nil {
		return fmt.Errorf("open directory: %w", err)
	}
	if cfg.Browser.WaitForLogin {
		proceed, err := waitForLogin(ctx, in, out, supervisor.Stopping())
		if err != nil {
			return err
		}
		if !proceed {
			return finishCrawl(out, supervisor, crawler.Result{Reason: crawler.ReasonInterrupted}, nil)
		}
	}

	sessionID, err := uuid.New().NewSessionID()
	if err != nil {
		return err
	}
	promSink, err := sinks.NewPrometheusSink(appInstance.Registry())
	if err != nil {
		return fmt.Errorf("init prometheus sink: %w", err)
	}
	hub := progress.NewHub(progress.Config{
		BufferSize:     cfg.Progress.BufferSize,
		MaxBatchEvents: cfg.Progress.MaxBatchEvents,
		MaxBatchWait:   time.Duration(cfg.Progress.MaxBatchWaitMs) * time.Millisecond,
		Logger:         logger.Named("progress"),
	}, sinks.NewLogSink(logger.Named("events")), promSink)

	minDelay, maxDelay := cfg.Delays()
	controller, err := crawler.New(settings, crawler.Deps{
		Session:     session,
		Extractor:   extract.NewPipeline(session, cfg.Selectors, cfg.ExtractOptions(), logger.Named("extract")),
		Store:       st,
		Clock:       appInstance.Clock(),
		Pacer:       crawler.NewDelayPacer(minDelay, maxDelay),
		Emitter:     hub,
		Interrupted: supervisor.Interrupted,
		SessionID:   sessionID,
	}, logger.Named("crawler"))
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrInvalid, err)
	}

	if addr := cfg.Metrics.ListenAddr; addr != "" {
		srv, err := metrics.NewServer(appInstance.Registry(), controller.Snapshot, logger.Named("metrics"))
		if err != nil {
			return err
		}
		if err := srv.Start(addr); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("metrics server shutdown failed", zap.Error(err))
			}
		}()
	}

	res, runErr := controller.Run(ctx)

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := hub.Close(drainCtx); err != nil {
		logger.Warn("progress hub close failed", zap.Error(err))
	}
	return finishCrawl(out, supervisor, res, runErr)
}

// finishCrawl closes the store through the supervisor and prints the run
// summary.
func finishCrawl(out io.Writer, supervisor *lifecycle.Supervisor, res crawler.Result, runErr error) error {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	summary, shutdownErr := supervisor.Shutdown(ctx)
	fmt.Fprintf(out, "Stored %d new profiles this run (%s). The store holds %d records.\n",
		res.Stored, res.Reason, summary.Records)
	return errors.Join(runErr, shutdownErr)
}

// promptTarget asks for a record target until it gets a valid one.
func promptTarget(in *bufio.Reader, out io.Writer, cfg config.Config) (int, error) {
	for {
		fmt.Fprintf(out, "How many new profiles should this run collect? (1-%d): ", cfg.Crawler.MaxTarget)
		line, err := in.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			n, convErr := strconv.Atoi(line)
			switch {
			case convErr != nil:
				fmt.Fprintln(out, "Please enter a whole number.")
			case cfg.CheckTarget(n) != nil:
				fmt.Fprintln(out, cfg.CheckTarget(n))
			default:
				return n, nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return 0, fmt.Errorf("%w: no target given", config.ErrInvalid)
			}
			return 0, fmt.Errorf("read target: %w", err)
		}
	}
}

// waitForLogin blocks until the operator presses Enter. It reports false when
// an interrupt or cancellation arrives first.
func waitForLogin(ctx context.Context, in *bufio.Reader, out io.Writer, stopping <-chan struct{}) (bool, error) {
	fmt.Fprintln(out, "Log in to the directory in the Chrome window, then press Enter to start.")
	read := make(chan error, 1)
	go func() {
		_, err := in.ReadString('\n')
		read <- err
	}()
	select {
	case err := <-read:
		if err != nil && !errors.Is(err, io.EOF) {
			return false, fmt.Errorf("read login confirmation: %w", err)
		}
		return true, nil
	case <-stopping:
		return false, nil
	case <-ctx.Done():
		return false, nil
	}
}
