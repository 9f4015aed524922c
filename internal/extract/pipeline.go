package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/directory-crawler/internal/browser"
	"github.com/JakeFAU/directory-crawler/internal/profile"
)

// ErrProfileTimeout reports that a profile never showed its readiness marker.
// The accompanying record carries only the identity key.
var ErrProfileTimeout = errors.New("profile not ready")

const defaultReadyTimeout = 45 * time.Second

// Options tune a Pipeline.
type Options struct {
	IncludeAllEmails bool
	IncludePhone     bool
	ReadyTimeout     time.Duration
}

// Pipeline turns one profile URL into a normalized record.
type Pipeline struct {
	session browser.Session
	reader  *Reader
	sel     Selectors
	opts    Options
	logger  *zap.Logger
}

// NewPipeline wires a pipeline to the shared browser session.
func NewPipeline(session browser.Session, sel Selectors, opts Options, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = defaultReadyTimeout
	}
	sel = sel.WithDefaults()
	p := &Pipeline{
		session: session,
		sel:     sel,
		opts:    opts,
		logger:  logger,
	}
	p.reader = NewReader(sel, func(field, strategy string, err error) {
		p.logger.Debug("extraction strategy fault",
			zap.String("field", field),
			zap.String("strategy", strategy),
			zap.Error(err),
		)
	})
	return p
}

// Extract loads key in the session, waits for the profile to render and reads
// every field from a single snapshot.
func (p *Pipeline) Extract(ctx context.Context, key string) (profile.Record, error) {
	identity := profile.Record{URL: key}
	if err := p.session.Navigate(ctx, key); err != nil {
		return identity, fmt.Errorf("open profile: %w", err)
	}
	if err := p.session.WaitFor(ctx, p.sel.ProfileReady, p.opts.ReadyTimeout); err != nil {
		if errors.Is(err, browser.ErrTimeout) {
			return identity, fmt.Errorf("%w: %s", ErrProfileTimeout, key)
		}
		return identity, fmt.Errorf("wait for profile: %w", err)
	}
	page, err := p.session.Snapshot(ctx)
	if err != nil {
		return identity, fmt.Errorf("snapshot profile: %w", err)
	}
	doc, err := NewDocument(page.URL, page.HTML)
	if err != nil {
		return identity, err
	}
	return p.ExtractDocument(doc, key), nil
}

// ExtractDocument reads and normalizes fields from an already captured
// document.
func (p *Pipeline) ExtractDocument(doc *Document, key string) profile.Record {
	fields, used := p.reader.Read(doc, p.opts.IncludePhone)
	rec := profile.Build(key, fields, profile.Options{AllEmails: p.opts.IncludeAllEmails})
	if ce := p.logger.Check(zap.DebugLevel, "profile extracted"); ce != nil {
		ce.Write(
			zap.String("url", key),
			zap.String("name", rec.Name),
			zap.Int("emails", len(rec.Emails)),
			zap.Any("strategies", used),
		)
	}
	return rec
}
