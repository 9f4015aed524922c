package crawler

import (
	"context"
	"math/rand/v2"
	"time"
)

// DelayPacer pauses after each profile for a uniform duration in
// [min, max]. The pause is measured from the call, so a slow profile load
// does not shorten it.
type DelayPacer struct {
	minDelay time.Duration
	jitter   time.Duration
	randN    func(int64) int64
}

// NewDelayPacer builds a pacer waiting between min and max per call. A zero
// range disables pacing.
func NewDelayPacer(minDelay, maxDelay time.Duration) *DelayPacer {
	minDelay = max(minDelay, 0)
	maxDelay = max(maxDelay, minDelay)
	return &DelayPacer{
		minDelay: minDelay,
		jitter:   maxDelay - minDelay,
		randN:    rand.Int64N,
	}
}

// Pause returns the next delay.
func (p *DelayPacer) Pause() time.Duration {
	d := p.minDelay
	if p.jitter > 0 {
		d += time.Duration(p.randN(int64(p.jitter) + 1))
	}
	return d
}

// Wait blocks for the next pause. It returns early with ctx's error.
func (p *DelayPacer) Wait(ctx context.Context) error {
	d := p.Pause()
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type noPacer struct{}

func (noPacer) Wait(ctx context.Context) error { return ctx.Err() }
