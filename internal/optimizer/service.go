// Package optimizer ties history, suggestions, scripts and analysis into one event flow.
package optimizer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"stratopt-go/internal/artifact"
	"stratopt-go/internal/history"
	"stratopt-go/internal/metrics"
	"stratopt-go/internal/perf"
	"stratopt-go/internal/script"
	"stratopt-go/internal/suggest"
)

// ErrStorage marks failures of the history store. Callers should treat them as server errors.
var ErrStorage = errors.New("history storage failure")

// Exporter produces best-effort analysis artifacts for a strategy.
type Exporter interface {
	Export(ctx context.Context, name string, rows []perf.Observation) error
}

// EventRecorder keeps an audit trail of accepted events.
type EventRecorder interface {
	Record(ev perf.Event) error
}

// Listener is notified after a suggestion set is computed.
type Listener func(strategy string, set *perf.SuggestionSet)

// Service handles one performance event at a time per strategy.
type Service struct {
	store       history.Store
	engine      *suggest.Engine
	scripts     artifact.Sink
	exporter    Exporter
	journal     EventRecorder
	emitDefault bool
	now         func() time.Time
	log         zerolog.Logger

	mu        sync.RWMutex
	listeners []Listener
}

// Option configures Service construction parameters.
type Option func(*Service)

// WithExporter enables analysis export after each event.
func WithExporter(e Exporter) Option {
	return func(s *Service) { s.exporter = e }
}

// WithJournal records every accepted event before it is applied.
func WithJournal(j EventRecorder) Option {
	return func(s *Service) { s.journal = j }
}

// WithDefaultScript writes a script with default parameters while history is too short.
func WithDefaultScript(enabled bool) Option {
	return func(s *Service) { s.emitDefault = enabled }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService wires the store and the script sink; everything else is optional.
func NewService(store history.Store, scripts artifact.Sink, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store:   store,
		engine:  suggest.NewEngine(store),
		scripts: scripts,
		now:     time.Now,
		log:     log.With().Str("component", "optimizer").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers l for every computed suggestion set.
func (s *Service) Subscribe(l Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// OnEvent records one observation for strategy and returns the refreshed suggestion set,
// which is nil while the history is shorter than suggest.MinHistory. Only storage
// failures are returned; script and analysis problems are logged.
func (s *Service) OnEvent(ctx context.Context, strategy string, metricsIn, params map[string]any) (*perf.SuggestionSet, error) {
	return s.apply(ctx, perf.Event{Strategy: strategy, ReceivedAt: s.now(), Metrics: metricsIn, Parameters: params})
}

// Apply is OnEvent for an already identified event.
func (s *Service) Apply(ctx context.Context, ev perf.Event) (*perf.SuggestionSet, error) {
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = s.now()
	}
	return s.apply(ctx, ev)
}

func (s *Service) apply(ctx context.Context, ev perf.Event) (*perf.SuggestionSet, error) {
	log := s.log.With().Str("strategy", ev.Strategy).Logger()

	if s.journal != nil {
		if err := s.journal.Record(ev); err != nil {
			log.Warn().Err(err).Msg("journal record failed")
		}
	}

	rows, err := s.record(ctx, ev, log)
	if err != nil {
		return nil, err
	}

	set := suggest.FromHistory(rows)
	name := history.SafeName(ev.Strategy)
	if set != nil {
		metrics.SuggestionsTotal.Inc()
		s.emitScripts(ctx, ev.Strategy, name, set.Labeled(), log)
		s.notify(ev.Strategy, set)
	} else if s.emitDefault {
		s.emitScripts(ctx, ev.Strategy, name, []perf.LabeledParams{{Label: perf.LabelDefault, Params: script.Defaults()}}, log)
	}
	log.Info().Int("history", len(rows)).Bool("suggested", set != nil).Msg("event processed")

	s.export(ctx, name, rows, log)
	return set, nil
}

// record appends the coerced observation and returns the full history.
func (s *Service) record(ctx context.Context, ev perf.Event, log zerolog.Logger) ([]perf.Observation, error) {
	obs, coercionErrs := perf.NewObservation(ev.ReceivedAt, ev.Metrics, ev.Parameters)
	for _, cerr := range coercionErrs {
		var ce *perf.CoercionError
		if errors.As(cerr, &ce) {
			metrics.CoercionFallbacks.WithLabelValues(ce.Key).Inc()
		}
		log.Warn().Err(cerr).Msg("value coerced to 0")
	}

	start := time.Now()
	err := s.store.Append(ctx, ev.Strategy, obs)
	metrics.AppendSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		log.Error().Err(err).Msg("history append failed")
		return nil, fmt.Errorf("%w: append %s: %w", ErrStorage, ev.Strategy, err)
	}

	rows, err := s.store.Load(ctx, ev.Strategy)
	if err != nil {
		log.Error().Err(err).Msg("history load failed")
		return nil, fmt.Errorf("%w: load %s: %w", ErrStorage, ev.Strategy, err)
	}
	return rows, nil
}

func (s *Service) emitScripts(ctx context.Context, strategy, name string, sets []perf.LabeledParams, log zerolog.Logger) {
	generated := s.now()
	for _, lp := range sets {
		text, err := script.RenderParams(strategy, lp.Label, lp.Params, generated)
		if err != nil {
			log.Error().Err(err).Str("label", lp.Label).Msg("render script failed")
			continue
		}
		artifactName := script.ArtifactName(name, lp.Label)
		if err := s.scripts.Write(ctx, artifactName, []byte(text)); err != nil {
			log.Error().Err(err).Str("artifact", artifactName).Msg("write script failed")
			continue
		}
		log.Debug().Str("artifact", artifactName).Msg("script written")
	}
}

// export runs the analysis exporter and swallows anything it raises.
func (s *Service) export(ctx context.Context, name string, rows []perf.Observation, log zerolog.Logger) {
	if s.exporter == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			metrics.AnalysisFailures.Inc()
			log.Error().Interface("panic", r).Msg("analysis export panicked")
		}
	}()
	if err := s.exporter.Export(ctx, name, rows); err != nil {
		metrics.AnalysisFailures.Inc()
		log.Warn().Err(err).Msg("analysis export failed")
	}
}

func (s *Service) notify(strategy string, set *perf.SuggestionSet) {
	s.mu.RLock()
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.RUnlock()
	for _, l := range listeners {
		l(strategy, set)
	}
}

// EmitScripts rewrites the script artifacts for strategy from its current history and
// returns the artifact names written. Below suggest.MinHistory the default script is written.
func (s *Service) EmitScripts(ctx context.Context, strategy string) ([]string, error) {
	set, err := s.Suggest(ctx, strategy)
	if err != nil {
		return nil, err
	}
	sets := []perf.LabeledParams{{Label: perf.LabelDefault, Params: script.Defaults()}}
	if set != nil {
		sets = set.Labeled()
	}
	name := history.SafeName(strategy)
	generated := s.now()
	var written []string
	var errs []error
	for _, lp := range sets {
		text, err := script.RenderParams(strategy, lp.Label, lp.Params, generated)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		artifactName := script.ArtifactName(name, lp.Label)
		if err := s.scripts.Write(ctx, artifactName, []byte(text)); err != nil {
			errs = append(errs, err)
			continue
		}
		written = append(written, artifactName)
	}
	return written, errors.Join(errs...)
}

// Suggest computes the current suggestion set without recording anything.
func (s *Service) Suggest(ctx context.Context, strategy string) (*perf.SuggestionSet, error) {
	set, err := s.engine.Suggest(ctx, strategy)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return set, nil
}

// History returns the recorded observations for strategy.
func (s *Service) History(ctx context.Context, strategy string) ([]perf.Observation, error) {
	rows, err := s.store.Load(ctx, strategy)
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %w", ErrStorage, strategy, err)
	}
	return rows, nil
}

// Strategies lists every strategy with recorded history.
func (s *Service) Strategies(ctx context.Context) ([]string, error) {
	names, err := s.store.Strategies(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return names, nil
}

// Reanalyze re-runs the exporter for every known strategy and returns how many were exported.
func (s *Service) Reanalyze(ctx context.Context) (int, error) {
	if s.exporter == nil {
		return 0, nil
	}
	names, err := s.Strategies(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, strategy := range names {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		rows, err := s.store.Load(ctx, strategy)
		if err != nil {
			s.log.Warn().Err(err).Str("strategy", strategy).Msg("reanalyze load failed")
			continue
		}
		s.export(ctx, history.SafeName(strategy), rows, s.log.With().Str("strategy", strategy).Logger())
		n++
	}
	return n, nil
}

// Replay appends journaled events to the store without emitting artifacts.
func (s *Service) Replay(ctx context.Context, events []perf.Event) (int, error) {
	for i, ev := range events {
		if _, err := s.record(ctx, ev, s.log.With().Str("strategy", ev.Strategy).Logger()); err != nil {
			return i, err
		}
	}
	return len(events), nil
}
