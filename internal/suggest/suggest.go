// Package suggest derives parameter suggestions from a strategy's recorded history.
package suggest

import (
	"context"
	"fmt"
	"math"

	"stratopt-go/internal/perf"
)

const (
	// MinHistory is the number of observations needed before suggestions are produced.
	MinHistory = 3

	drawdownFloor     = 0.1
	exploreTakeProfit = 1.1
	exploreStopLoss   = 0.9
)

// Loader reads a strategy's history.
type Loader interface {
	Load(ctx context.Context, strategy string) ([]perf.Observation, error)
}

// Engine computes suggestion sets from stored history.
type Engine struct {
	store Loader
}

// NewEngine wires an engine to a history source.
func NewEngine(store Loader) *Engine {
	return &Engine{store: store}
}

// Suggest returns the suggestion set for strategy, or nil when there is not enough history.
func (e *Engine) Suggest(ctx context.Context, strategy string) (*perf.SuggestionSet, error) {
	rows, err := e.store.Load(ctx, strategy)
	if err != nil {
		return nil, fmt.Errorf("suggest: load history: %w", err)
	}
	return FromHistory(rows), nil
}

// FromHistory selects the best-return and best risk-adjusted observations and derives
// an exploratory variant. Ties go to the earliest observation.
func FromHistory(rows []perf.Observation) *perf.SuggestionSet {
	if len(rows) < MinHistory {
		return nil
	}
	bestReturn := argmax(rows, func(o perf.Observation) float64 { return o.TotalReturnPct })
	bestRisk := argmax(rows, RiskAdjustedScore)

	return &perf.SuggestionSet{
		BestReturn:       rows[bestReturn].Params,
		BestRiskAdjusted: rows[bestRisk].Params,
		Exploratory:      Explore(rows[bestReturn].Params),
	}
}

// RiskAdjustedScore is profit_factor * win_rate / (max_drawdown_pct + 0.1).
func RiskAdjustedScore(o perf.Observation) float64 {
	return o.ProfitFactor * o.WinRate / (o.MaxDrawdownPct + drawdownFloor)
}

// Explore widens take-profit by 10% and tightens stop-loss by 10%.
func Explore(p perf.Params) perf.Params {
	return perf.Params{
		TakeProfit:         p.TakeProfit * exploreTakeProfit,
		StopLoss:           p.StopLoss * exploreStopLoss,
		TrailingStop:       p.TrailingStop,
		TrailingActivation: p.TrailingActivation,
	}
}

// argmax returns the index of the highest score, ignoring NaN scores.
// Falls back to row 0 when every score is NaN.
func argmax(rows []perf.Observation, score func(perf.Observation) float64) int {
	best := -1
	var bestScore float64
	for i := range rows {
		s := score(rows[i])
		if math.IsNaN(s) {
			continue
		}
		// strict comparison keeps the first occurrence on ties
		if best < 0 || s > bestScore {
			best, bestScore = i, s
		}
	}
	if best < 0 {
		return 0
	}
	return best
}
