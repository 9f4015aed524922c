package crawler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/directory-crawler/internal/browser"
	"github.com/JakeFAU/directory-crawler/internal/extract"
	"github.com/JakeFAU/directory-crawler/internal/progress"
	"github.com/JakeFAU/directory-crawler/internal/store"
)

// Deps are the collaborators a Controller drives.
type Deps struct {
	Session   browser.Session
	Extractor Extractor
	Store     Store
	Clock     Clock
	// Pacer defaults to no delay.
	Pacer Pacer
	// Emitter defaults to progress.Discard.
	Emitter progress.Emitter
	// Interrupted is polled at loop boundaries; true stops the crawl before
	// the next fetch. Nil means never interrupted.
	Interrupted func() bool
	SessionID   [16]byte
}

// Controller runs one crawl session over a single browser tab.
type Controller struct {
	cfg         Config
	session     browser.Session
	extractor   Extractor
	store       Store
	clock       Clock
	pacer       Pacer
	emitter     progress.Emitter
	interrupted func() bool
	sessionID   [16]byte
	logger      *zap.Logger

	mu    sync.Mutex
	state Session
}

// New validates cfg and wires a Controller.
func New(cfg Config, deps Deps, logger *zap.Logger) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid crawler config: %w", err)
	}
	if deps.Session == nil || deps.Extractor == nil || deps.Store == nil || deps.Clock == nil {
		return nil, errors.New("crawler requires session, extractor, store and clock")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Pacer == nil {
		deps.Pacer = noPacer{}
	}
	if deps.Emitter == nil {
		deps.Emitter = progress.Discard
	}
	if deps.Interrupted == nil {
		deps.Interrupted = func() bool { return false }
	}
	cfg = cfg.withDefaults()
	return &Controller{
		cfg:         cfg,
		session:     deps.Session,
		extractor:   deps.Extractor,
		store:       deps.Store,
		clock:       deps.Clock,
		pacer:       deps.Pacer,
		emitter:     deps.Emitter,
		interrupted: deps.Interrupted,
		sessionID:   deps.SessionID,
		logger:      logger,
		state:       Session{ID: deps.SessionID, Target: cfg.Target, Page: cfg.StartPage},
	}, nil
}

// Snapshot returns the current session state.
func (c *Controller) Snapshot() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(s State, page int) {
	c.mu.Lock()
	c.state.State = s
	if page > 0 {
		c.state.Page = page
	}
	c.mu.Unlock()
}

func (c *Controller) noteStored(n int) {
	c.mu.Lock()
	c.state.Stored = n
	c.mu.Unlock()
}

// Run crawls until a stop condition holds. Only persistence failures are
// returned as errors; the Result is valid either way.
func (c *Controller) Run(ctx context.Context) (Result, error) {
	started := c.clock.Now()
	c.emit(progress.Event{Stage: progress.StageSessionStart, URL: c.cfg.BaseURL})
	c.logger.Info("crawl started",
		zap.String("base_url", c.cfg.BaseURL),
		zap.Int("start_page", c.cfg.StartPage),
		zap.Int("target", c.cfg.Target),
		zap.String("pagination", string(c.cfg.Pagination)),
	)

	res, err := c.loop(ctx)

	c.setState(StateDone, 0)
	dur := c.clock.Now().Sub(started)
	c.emit(progress.Event{Stage: progress.StageSessionDone, Dur: dur, Note: string(res.Reason)})
	c.logger.Info("crawl finished",
		zap.String("reason", string(res.Reason)),
		zap.Int("pages", res.Pages),
		zap.Int("discovered", res.Discovered),
		zap.Int("stored", res.Stored),
		zap.Int("skipped", res.Skipped),
		zap.Int("discarded", res.Discarded),
		zap.Int("failed", res.Failed),
		zap.Duration("elapsed", dur),
	)
	return res, err
}

type walk struct {
	page       int
	listingURL string
	navigate   bool
	usingNext  bool
	away       bool
	previous   []string
	stuck      int
	seen       map[string]struct{}
}

func (c *Controller) loop(ctx context.Context) (Result, error) {
	var res Result
	w := &walk{
		page:       c.cfg.StartPage,
		listingURL: PageURL(c.cfg.BaseURL, c.cfg.StartPage),
		navigate:   true,
		usingNext:  c.cfg.Pagination == PaginationNext,
		seen:       make(map[string]struct{}),
	}
	for {
		if reason, stop := c.shouldStop(ctx, res); stop {
			res.Reason = reason
			return res, nil
		}

		c.setState(StateFetchingListing, w.page)
		listStart := c.clock.Now()
		if w.navigate {
			if err := c.session.Navigate(ctx, w.listingURL); err != nil {
				res.Reason = c.listingFault(ctx, w, err)
				return res, nil
			}
			w.away = false
		}
		res.Pages++

		c.setState(StateExtractingLinks, w.page)
		links, current, err := c.discover(ctx)
		if err != nil {
			res.Reason = c.listingFault(ctx, w, err)
			return res, nil
		}
		if current != "" {
			w.listingURL = current
		}
		c.emit(progress.Event{
			Stage: progress.StageListingDone,
			Page:  w.page,
			URL:   w.listingURL,
			Links: len(links),
			Dur:   c.clock.Now().Sub(listStart),
		})
		c.logger.Info("listing page scanned", zap.Int("page", w.page), zap.Int("links", len(links)))
		if len(links) == 0 {
			res.Reason = ReasonExhausted
			return res, nil
		}
		res.Discovered += len(links)

		if slices.Equal(links, w.previous) {
			w.stuck++
			c.logger.Warn("listing page repeated previous links",
				zap.Int("page", w.page), zap.Int("consecutive", w.stuck))
			if w.stuck >= c.cfg.MaxStuckPages {
				res.Reason = ReasonStuck
				return res, nil
			}
			if c.cfg.Pagination == PaginationAuto && !w.usingNext {
				c.logger.Info("switching to next-page control pagination", zap.Int("page", w.page))
				w.usingNext = true
			}
		} else {
			w.stuck = 0
			w.previous = links
			if err := c.visit(ctx, w, links, &res); err != nil {
				return res, err
			}
		}

		if reason, stop := c.shouldStop(ctx, res); stop {
			res.Reason = reason
			return res, nil
		}
		if c.cfg.EndPage > 0 && w.page >= c.cfg.EndPage {
			res.Reason = ReasonEndPage
			return res, nil
		}
		c.setState(StateAdvancingPage, w.page)
		if !c.advance(ctx, w) {
			if ctx.Err() != nil || c.interrupted() {
				res.Reason = ReasonInterrupted
			} else {
				res.Reason = ReasonExhausted
			}
			return res, nil
		}
	}
}

func (c *Controller) shouldStop(ctx context.Context, res Result) (Reason, bool) {
	if c.interrupted() || ctx.Err() != nil {
		return ReasonInterrupted, true
	}
	if res.Stored >= c.cfg.Target {
		return ReasonTargetReached, true
	}
	return "", false
}

func (c *Controller) listingFault(ctx context.Context, w *walk, err error) Reason {
	if ctx.Err() != nil {
		return ReasonInterrupted
	}
	c.logger.Warn("listing page failed", zap.Int("page", w.page), zap.String("url", w.listingURL), zap.Error(err))
	c.emit(progress.Event{Stage: progress.StageListingFault, Page: w.page, URL: w.listingURL, Note: err.Error()})
	return ReasonListingFault
}

// discover scrolls the listing so lazy cards render, waits for a profile link
// and returns the canonical keys on the page plus the page's URL.
func (c *Controller) discover(ctx context.Context) ([]string, string, error) {
	if err := c.session.Scroll(ctx, c.cfg.ScrollPasses, c.cfg.ScrollPause); err != nil {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		c.logger.Debug("listing scroll failed", zap.Error(err))
	}
	if err := c.session.WaitFor(ctx, c.cfg.LinkSelector, c.cfg.ListingTimeout); err != nil {
		if errors.Is(err, browser.ErrTimeout) {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("wait for profile links: %w", err)
	}
	page, err := c.session.Snapshot(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("snapshot listing: %w", err)
	}
	doc, err := extract.NewDocument(page.URL, page.HTML)
	if err != nil {
		return nil, "", err
	}
	links, err := extract.ListingLinks(doc, c.cfg.LinkSelector, c.cfg.LinkText)
	if err != nil {
		return nil, "", fmt.Errorf("read profile links: %w", err)
	}
	return links, page.URL, nil
}

// visit processes each link on the page in discovery order. Only store
// failures are returned.
func (c *Controller) visit(ctx context.Context, w *walk, links []string, res *Result) error {
	for _, key := range links {
		if _, stop := c.shouldStop(ctx, *res); stop {
			return nil
		}
		if _, ok := w.seen[key]; ok {
			continue
		}
		w.seen[key] = struct{}{}

		known, err := c.store.Exists(ctx, key)
		if err != nil {
			return fmt.Errorf("check store for %s: %w", key, err)
		}
		if known {
			res.Skipped++
			c.emit(progress.Event{Stage: progress.StageProfileSkipped, Page: w.page, URL: key})
			continue
		}

		c.setState(StateScrapingProfile, w.page)
		if err := c.scrape(ctx, w, key, res); err != nil {
			return err
		}
		if w.usingNext {
			c.returnToListing(ctx, w)
		}
		if err := c.pacer.Wait(ctx); err != nil {
			return nil
		}
	}
	return nil
}

func (c *Controller) scrape(ctx context.Context, w *walk, key string, res *Result) error {
	start := c.clock.Now()
	w.away = true
	rec, err := c.extractor.Extract(ctx, key)
	switch {
	case err != nil && ctx.Err() != nil:
		return nil
	case err != nil:
		res.Failed++
		c.logger.Warn("profile failed", zap.String("url", key), zap.Error(err))
		c.emit(progress.Event{Stage: progress.StageProfileFailed, Page: w.page, URL: key, Dur: c.clock.Now().Sub(start), Note: err.Error()})
		return nil
	case !rec.Usable():
		res.Discarded++
		c.logger.Info("no usable data", zap.String("url", key), zap.String("name", rec.Name))
		c.emit(progress.Event{Stage: progress.StageProfileDiscarded, Page: w.page, URL: key, Dur: c.clock.Now().Sub(start)})
		return nil
	}

	// A finished extraction is recorded even if shutdown began meanwhile.
	outcome, err := c.store.Insert(context.WithoutCancel(ctx), rec)
	if err != nil {
		return fmt.Errorf("store profile %s: %w", key, err)
	}
	dur := c.clock.Now().Sub(start)
	switch outcome {
	case store.Inserted:
		res.Stored++
		c.noteStored(res.Stored)
		c.logger.Info("profile stored",
			zap.Int("n", res.Stored),
			zap.Int("target", c.cfg.Target),
			zap.String("name", rec.Name),
			zap.String("email", rec.PrimaryEmail()),
		)
		c.emit(progress.Event{Stage: progress.StageProfileStored, Page: w.page, URL: key, Dur: dur})
	case store.Duplicate:
		res.Duplicates++
		c.emit(progress.Event{Stage: progress.StageProfileDuplicate, Page: w.page, URL: key, Dur: dur})
	}
	return nil
}

func (c *Controller) returnToListing(ctx context.Context, w *walk) {
	if err := c.session.Navigate(ctx, w.listingURL); err != nil {
		c.logger.Warn("return to listing failed", zap.String("url", w.listingURL), zap.Error(err))
		return
	}
	w.away = false
}

// advance moves w to the next listing page. It reports false when no next
// page is reachable.
func (c *Controller) advance(ctx context.Context, w *walk) bool {
	if !w.usingNext {
		w.page++
		w.listingURL = PageURL(c.cfg.BaseURL, w.page)
		w.navigate = true
		return true
	}
	if w.away {
		if err := c.session.Navigate(ctx, w.listingURL); err != nil {
			c.logger.Warn("return to listing failed", zap.String("url", w.listingURL), zap.Error(err))
			return false
		}
		w.away = false
	}
	if err := c.session.Click(ctx, c.cfg.NextSelector); err != nil {
		c.logger.Info("no next-page control", zap.Int("page", w.page), zap.Error(err))
		return false
	}
	w.page++
	w.navigate = false
	return true
}

func (c *Controller) emit(evt progress.Event) {
	evt.SessionID = c.sessionID
	evt.TS = c.clock.Now()
	c.emitter.Emit(evt)
}
