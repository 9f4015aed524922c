package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const (
	defaultNavigationTimeout = 45 * time.Second
	defaultActionTimeout     = 15 * time.Second
	scrollScript             = `window.scrollTo(0, document.body.scrollHeight);`
	changePollInterval       = 100 * time.Millisecond

	// markScript tags the current document and its anchors and returns the
	// location, so a later check can tell the old page from its successor.
	markScript = `(() => {
	document.documentElement.setAttribute('data-dircrawler-stale', '1');
	document.querySelectorAll('a').forEach(a => a.setAttribute('data-dircrawler-stale', '1'));
	return location.href;
})()`
	// changedScriptFormat takes the JSON-quoted location from markScript.
	changedScriptFormat = `(() => location.href !== %s ||
	!document.documentElement.hasAttribute('data-dircrawler-stale') ||
	document.querySelector('a:not([data-dircrawler-stale])') !== null)()`
)

// Config controls the Chrome session.
type Config struct {
	// Headless hides the window; leave false for the manual login step.
	Headless bool
	// UserDataDir reuses a Chrome profile so an earlier login is kept.
	UserDataDir string
	// ExecPath overrides the Chrome binary lookup.
	ExecPath          string
	UserAgent         string
	NavigationTimeout time.Duration
	ActionTimeout     time.Duration
}

// Chrome implements Session with one chromedp tab that lives for the whole
// crawl.
type Chrome struct {
	cfg         Config
	logger      *zap.Logger
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	closeOnce   sync.Once
}

// NewChrome launches Chrome and opens the tab used by the crawl.
func NewChrome(cfg Config, logger *zap.Logger) (*Chrome, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(cfg)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	c := &Chrome{
		cfg:         cfg,
		logger:      logger,
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
	}
	if err := chromedp.Run(tabCtx, c.networkSetupAction()); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}
	return c, nil
}

func allocatorOptions(cfg Config) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-notifications", true),
		chromedp.Flag("start-maximized", true),
		chromedp.Flag("enable-automation", false),
	)
	if cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"), chromedp.Flag("disable-gpu", true))
	}
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}

func (c *Chrome) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if c.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(c.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

// Navigate loads url and waits for the body to be ready.
func (c *Chrome) Navigate(ctx context.Context, url string) error {
	err := c.run(ctx, c.navTimeout(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// WaitFor blocks until selector is present in the DOM.
func (c *Chrome) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = c.actionTimeout()
	}
	if err := c.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery)); err != nil {
		return mapWaitErr(ctx, err)
	}
	return nil
}

// Snapshot captures the current location and DOM.
func (c *Chrome) Snapshot(ctx context.Context) (Page, error) {
	var page Page
	err := c.run(ctx, c.actionTimeout(),
		chromedp.Location(&page.URL),
		chromedp.OuterHTML("html", &page.HTML, chromedp.ByQuery),
	)
	if err != nil {
		return Page{}, fmt.Errorf("snapshot: %w", err)
	}
	return page, nil
}

// Click activates selector and waits until the tab shows a different page:
// a new location, a replaced document or freshly rendered links.
func (c *Chrome) Click(ctx context.Context, selector string) error {
	var before string
	err := c.run(ctx, c.actionTimeout(),
		chromedp.Evaluate(markScript, &before),
		chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("click %s: %w", selector, ErrNotFound)
		}
		return fmt.Errorf("click %s: %w", selector, err)
	}

	quoted, err := json.Marshal(before)
	if err != nil {
		return fmt.Errorf("click %s: encode location: %w", selector, err)
	}
	changed := fmt.Sprintf(changedScriptFormat, quoted)
	err = waitUntil(ctx, c.navTimeout(), changePollInterval, func(ctx context.Context) (bool, error) {
		var ok bool
		err := c.run(ctx, c.actionTimeout(), chromedp.Evaluate(changed, &ok))
		return ok, err
	})
	if err != nil {
		return fmt.Errorf("click %s: wait for next page: %w", selector, err)
	}
	if err := c.run(ctx, c.navTimeout(), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("click %s: %w", selector, mapWaitErr(ctx, err))
	}
	return nil
}

// waitUntil calls check every interval until it reports true. Check errors
// count as "not yet": evaluation fails while a navigation swaps documents.
func waitUntil(ctx context.Context, timeout, interval time.Duration, check func(context.Context) (bool, error)) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(interval)
	defer tick.Stop()
	var lastErr error
	for {
		ok, err := check(ctx)
		if ok && err == nil {
			return nil
		}
		if err != nil {
			lastErr = err
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait canceled: %w", ctx.Err())
		case <-deadline.C:
			if lastErr != nil {
				return errors.Join(ErrTimeout, lastErr)
			}
			return ErrTimeout
		case <-tick.C:
		}
	}
}

// Scroll nudges lazy-loaded listings into rendering.
func (c *Chrome) Scroll(ctx context.Context, passes int, pause time.Duration) error {
	actions := make([]chromedp.Action, 0, passes*2)
	for i := 0; i < passes; i++ {
		actions = append(actions, chromedp.Evaluate(scrollScript, nil), chromedp.Sleep(pause))
	}
	if len(actions) == 0 {
		return nil
	}
	budget := c.actionTimeout() + time.Duration(passes)*pause
	if err := c.run(ctx, budget, actions...); err != nil {
		return fmt.Errorf("scroll: %w", err)
	}
	return nil
}

// Close shuts the tab and the browser process. Safe to call more than once.
func (c *Chrome) Close() error {
	c.closeOnce.Do(func() {
		c.tabCancel()
		c.allocCancel()
		c.logger.Debug("chrome session closed")
	})
	return nil
}

// run executes actions on the long-lived tab, bounded by timeout and by the
// caller's ctx. Cancelling the derived context leaves the tab open.
func (c *Chrome) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	taskCtx, cancel := context.WithTimeout(c.tabCtx, timeout)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()
	return chromedp.Run(taskCtx, actions...)
}

func (c *Chrome) navTimeout() time.Duration {
	if c.cfg.NavigationTimeout > 0 {
		return c.cfg.NavigationTimeout
	}
	return defaultNavigationTimeout
}

func (c *Chrome) actionTimeout() time.Duration {
	if c.cfg.ActionTimeout > 0 {
		return c.cfg.ActionTimeout
	}
	return defaultActionTimeout
}

// mapWaitErr distinguishes our own deadline from the caller giving up.
func mapWaitErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("wait canceled: %w", ctx.Err())
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrTimeout
	}
	return fmt.Errorf("wait: %w", err)
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	stop := context.AfterFunc(parent, cancel)
	return func() { stop() }
}
