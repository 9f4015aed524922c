// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/JakeFAU/directory-crawler/internal/clock/system"
	"github.com/JakeFAU/directory-crawler/internal/config"
	"github.com/JakeFAU/directory-crawler/internal/store"
	"github.com/JakeFAU/directory-crawler/internal/store/postgres"
	"github.com/JakeFAU/directory-crawler/internal/store/sqlite"
	"github.com/JakeFAU/directory-crawler/internal/store/stream"
)

// RecordStore is a store that can also replay its records.
type RecordStore interface {
	store.Store
	store.Lister
}

// App holds the shared services for one command invocation.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	clock    *system.Clock
	registry *prometheus.Registry
}

// New builds an App. The registry starts with the Go and process collectors.
func New(cfg config.Config, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &App{cfg: cfg, logger: logger, clock: system.New(), registry: reg}
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Clock returns the wall clock used to stamp records.
func (a *App) Clock() *system.Clock { return a.clock }

// Registry returns the Prometheus registry shared by sinks and the metrics
// endpoint.
func (a *App) Registry() *prometheus.Registry { return a.registry }

// OpenStore opens the store selected by store.mode for a crawl, creating it
// when missing.
func (a *App) OpenStore(ctx context.Context) (store.Store, error) {
	cfg := a.cfg.Store
	switch cfg.Mode {
	case config.ModeSQLite:
		a.logger.Info("using sqlite store", zap.String("path", cfg.Path))
		s, err := sqlite.Open(ctx, cfg.Path, a.clock)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.ModePostgres:
		a.logger.Info("using postgres store", zap.String("table", cfg.Postgres.Table))
		s, err := postgres.Open(ctx, a.postgresConfig(), a.clock)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.ModeStream:
		a.logger.Info("using streaming store; resume is disabled", zap.String("path", cfg.Path))
		s, err := stream.Open(stream.Config{
			Path:         cfg.Path,
			Delimiter:    a.cfg.StoreDelimiter(),
			IncludePhone: a.cfg.Crawler.IncludePhone,
			FlushEvery:   cfg.FlushEvery,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: unknown store mode %q", config.ErrInvalid, cfg.Mode)
	}
}

// OpenRecords opens an existing store for export. A missing sqlite file is a
// configuration fault.
func (a *App) OpenRecords(ctx context.Context) (RecordStore, error) {
	cfg := a.cfg.Store
	switch cfg.Mode {
	case config.ModeSQLite:
		s, err := sqlite.OpenExisting(ctx, cfg.Path, a.clock)
		if err != nil {
			return nil, a.missing(err)
		}
		return s, nil
	case config.ModePostgres:
		s, err := postgres.Open(ctx, a.postgresConfig(), a.clock)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: store.mode %q has no records to replay; the stream file is already the export",
			config.ErrInvalid, cfg.Mode)
	}
}

// OpenCounter opens an existing store of any mode for counting.
func (a *App) OpenCounter(ctx context.Context) (store.Store, error) {
	if a.cfg.Store.Mode != config.ModeStream {
		s, err := a.OpenRecords(ctx)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	if _, err := os.Stat(a.cfg.Store.Path); err != nil {
		return nil, a.missing(fmt.Errorf("%w: %s", store.ErrNotFound, a.cfg.Store.Path))
	}
	return a.OpenStore(ctx)
}

func (a *App) missing(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %w", config.ErrInvalid, err)
	}
	return err
}

func (a *App) postgresConfig() postgres.Config {
	return postgres.Config{
		DSN:      a.cfg.Store.Postgres.DSN,
		Table:    a.cfg.Store.Postgres.Table,
		MaxConns: int32(a.cfg.Store.Postgres.MaxConns),
	}
}

// Close flushes the logger. Stores are closed by their owners.
func (a *App) Close() {
	_ = a.logger.Sync()
}
