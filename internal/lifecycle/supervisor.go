// Package lifecycle owns process-level shutdown: the interrupted flag the
// crawl loop polls and the single close of the record store.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"go.uber.org/zap"
)

// Store is the part of store.Store the supervisor finalizes.
type Store interface {
	Count(ctx context.Context) (int, error)
	Close() error
}

// Summary describes the store at shutdown.
type Summary struct {
	Records     int
	Interrupted bool
}

// Supervisor turns the first SIGINT/SIGTERM into a cooperative stop and the
// second into context cancellation.
type Supervisor struct {
	store  Store
	logger *zap.Logger

	interrupted atomic.Bool
	received    atomic.Int32
	stopping    chan struct{}
	stoppingOne sync.Once

	mu      sync.Mutex
	cancel  context.CancelFunc
	signals chan os.Signal
	stop    chan struct{}
	done    chan struct{}

	stopOnce  sync.Once
	closeOnce sync.Once
	summary   Summary
	closeErr  error
}

// New returns a Supervisor for st.
func New(st Store, logger *zap.Logger) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{
		store:   st,
		logger:  logger,
		signals:  make(chan os.Signal, 2),
		stopping: make(chan struct{}),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start installs the signal handlers and returns a context that is cancelled
// only by a second signal or by parent.
func (s *Supervisor) Start(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	signal.Notify(s.signals, syscall.SIGINT, syscall.SIGTERM)
	go s.watch()
	return ctx
}

func (s *Supervisor) watch() {
	defer close(s.done)
	for {
		select {
		case sig := <-s.signals:
			s.deliver(sig)
		case <-s.stop:
			return
		}
	}
}

func (s *Supervisor) deliver(sig os.Signal) {
	if s.received.Add(1) == 1 {
		s.logger.Warn("interrupt received, finishing the current profile",
			zap.String("signal", sig.String()))
		s.Interrupt()
		return
	}
	s.logger.Warn("second interrupt received, cancelling", zap.String("signal", sig.String()))
	s.Interrupt()
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Interrupt sets the interrupted flag as if a signal had arrived.
func (s *Supervisor) Interrupt() {
	s.interrupted.Store(true)
	s.stoppingOne.Do(func() { close(s.stopping) })
}

// Stopping is closed once the interrupted flag is set. Blocking waits outside
// the crawl loop, such as operator prompts, select on it.
func (s *Supervisor) Stopping() <-chan struct{} {
	return s.stopping
}

// Interrupted reports whether the crawl should stop at the next boundary.
func (s *Supervisor) Interrupted() bool {
	return s.interrupted.Load()
}

// Shutdown stops signal handling, records the durable count and closes the
// store. Only the first call touches the store; later calls return the
// first call's summary and error.
func (s *Supervisor) Shutdown(ctx context.Context) (Summary, error) {
	s.stopOnce.Do(func() {
		signal.Stop(s.signals)
		close(s.stop)
	})
	s.mu.Lock()
	started := s.cancel != nil
	s.mu.Unlock()
	if started {
		<-s.done
	}

	s.closeOnce.Do(func() {
		s.summary = Summary{Records: -1, Interrupted: s.Interrupted()}
		if s.store == nil {
			return
		}
		var countErr, closeErr error
		n, err := s.store.Count(ctx)
		if err != nil {
			countErr = fmt.Errorf("count records: %w", err)
		} else {
			s.summary.Records = n
		}
		if err := s.store.Close(); err != nil {
			closeErr = fmt.Errorf("close store: %w", err)
		}
		s.closeErr = errors.Join(countErr, closeErr)
		fields := []zap.Field{zap.Bool("interrupted", s.summary.Interrupted)}
		if countErr == nil {
			fields = append(fields, zap.Int("records", s.summary.Records))
		}
		s.logger.Info("store closed", fields...)
	})

	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return s.summary, s.closeErr
}
