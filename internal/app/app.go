// Package app wires configuration into a ready-to-use optimizer service.
package app

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"stratopt-go/internal/analysis"
	"stratopt-go/internal/artifact"
	"stratopt-go/internal/config"
	"stratopt-go/internal/history"
	"stratopt-go/internal/optimizer"
)

// App holds the wired components and everything that must be closed on shutdown.
type App struct {
	Config  *config.Config
	Store   history.Store
	Service *optimizer.Service
	closers []io.Closer
}

// New builds the store, sinks, journal and service described by cfg.
// Every component logger is tagged with the configured environment.
func New(cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{Config: cfg}
	log = log.With().Str("env", cfg.App.Env).Logger()

	store, err := openStore(cfg.Storage)
	if err != nil {
		return nil, err
	}
	a.Store = store
	if c, ok := store.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}

	scripts, err := artifact.NewFileSink(cfg.Scripts.Dir)
	if err != nil {
		a.Close()
		return nil, err
	}

	opts := []optimizer.Option{optimizer.WithDefaultScript(cfg.Scripts.EmitDefault)}
	if cfg.Storage.Journal != "" {
		journal, err := history.OpenJournal(cfg.Storage.Journal)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, journal)
		opts = append(opts, optimizer.WithJournal(journal))
	}
	if cfg.Analysis.Enabled {
		charts, err := artifact.NewFileSink(cfg.Analysis.Dir)
		if err != nil {
			a.Close()
			return nil, err
		}
		opts = append(opts, optimizer.WithExporter(analysis.NewExporter(charts)))
	}

	a.Service = optimizer.NewService(store, scripts, log, opts...)
	return a, nil
}

func openStore(cfg config.Storage) (history.Store, error) {
	switch cfg.Backend {
	case "", "csv":
		return history.NewCSVStore(cfg.DataDir)
	case "sqlite":
		return history.OpenSQLStore(cfg.SQLitePath)
	case "memory":
		return history.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("app: unknown storage backend %q", cfg.Backend)
	}
}

// Close releases the store and journal.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
