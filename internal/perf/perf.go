// Package perf standardizes the performance payloads shared between ingestion, storage and the suggestion engine.
package perf

import "time"

// Metric keys recognized in a webhook "metrics" object.
const (
	KeyTotalReturnPct = "total_return_pct"
	KeyWinRate        = "win_rate"
	KeyProfitFactor   = "profit_factor"
	KeyMaxDrawdownPct = "max_drawdown_pct"
	KeyTotalTrades    = "total_trades"
)

// Parameter keys recognized in a webhook "parameters" object.
const (
	KeyTakeProfit         = "take_profit"
	KeyStopLoss           = "stop_loss"
	KeyTrailingStop       = "trailing_stop"
	KeyTrailingActivation = "trailing_activation"
)

// MetricKeys lists metric columns in history-table order.
var MetricKeys = []string{KeyTotalReturnPct, KeyWinRate, KeyProfitFactor, KeyMaxDrawdownPct, KeyTotalTrades}

// ParamKeys lists parameter columns in history-table order.
var ParamKeys = []string{KeyTakeProfit, KeyStopLoss, KeyTrailingStop, KeyTrailingActivation}

// Params is the tunable 4-tuple a strategy runs with.
type Params struct {
	TakeProfit         float64 `json:"take_profit"`
	StopLoss           float64 `json:"stop_loss"`
	TrailingStop       float64 `json:"trailing_stop"`
	TrailingActivation float64 `json:"trailing_activation"`
}

// Map returns the parameters keyed by their webhook names.
func (p Params) Map() map[string]float64 {
	return map[string]float64{
		KeyTakeProfit:         p.TakeProfit,
		KeyStopLoss:           p.StopLoss,
		KeyTrailingStop:       p.TrailingStop,
		KeyTrailingActivation: p.TrailingActivation,
	}
}

// Observation is one recorded webhook event for a strategy.
type Observation struct {
	Timestamp      time.Time `json:"timestamp"`
	TotalReturnPct float64   `json:"total_return_pct"`
	WinRate        float64   `json:"win_rate"`
	ProfitFactor   float64   `json:"profit_factor"`
	MaxDrawdownPct float64   `json:"max_drawdown_pct"`
	TotalTrades    float64   `json:"total_trades"`
	Params
}

// Values returns the numeric columns in history-table order (metrics then parameters).
func (o Observation) Values() []float64 {
	return []float64{
		o.TotalReturnPct, o.WinRate, o.ProfitFactor, o.MaxDrawdownPct, o.TotalTrades,
		o.TakeProfit, o.StopLoss, o.TrailingStop, o.TrailingActivation,
	}
}

// Columns names the values returned by Observation.Values.
func Columns() []string {
	cols := make([]string, 0, len(MetricKeys)+len(ParamKeys))
	cols = append(cols, MetricKeys...)
	return append(cols, ParamKeys...)
}

// SuggestionSet holds the parameter sets derived from a strategy's history.
type SuggestionSet struct {
	BestReturn       Params `json:"best_return_params"`
	BestRiskAdjusted Params `json:"best_risk_adjusted_params"`
	Exploratory      Params `json:"exploratory_params"`
}

// Suggestion labels, also used in script artifact names.
const (
	LabelBestReturn       = "best_return"
	LabelBestRiskAdjusted = "best_risk_adjusted"
	LabelExploratory      = "exploratory"
	LabelDefault          = "default"
)

// Labeled returns the parameter sets in a stable label order.
func (s SuggestionSet) Labeled() []LabeledParams {
	return []LabeledParams{
		{Label: LabelBestReturn, Params: s.BestReturn},
		{Label: LabelBestRiskAdjusted, Params: s.BestRiskAdjusted},
		{Label: LabelExploratory, Params: s.Exploratory},
	}
}

// LabeledParams pairs a suggestion label with its parameters.
type LabeledParams struct {
	Label  string
	Params Params
}

// Event is an accepted webhook payload before coercion.
type Event struct {
	ID         string         `json:"id"`
	ReceivedAt time.Time      `json:"received_at"`
	Strategy   string         `json:"strategy_name"`
	Metrics    map[string]any `json:"metrics"`
	Parameters map[string]any `json:"parameters"`
}
