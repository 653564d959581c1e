// Package script renders suggested parameter sets into strategy-script text.
package script

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"text/template"
	"time"

	"stratopt-go/internal/perf"
)

// Fallback values used when a parameter is missing.
const (
	DefaultTakeProfit         = 5.0
	DefaultStopLoss           = 3.0
	DefaultTrailingStop       = 1.0
	DefaultTrailingActivation = 0.5
)

// Defaults returns the fallback parameter set.
func Defaults() perf.Params {
	return perf.Params{
		TakeProfit:         DefaultTakeProfit,
		StopLoss:           DefaultStopLoss,
		TrailingStop:       DefaultTrailingStop,
		TrailingActivation: DefaultTrailingActivation,
	}
}

const dateLayout = "2006-01-02"

var scriptTemplate = template.Must(template.New("strategy").Parse(`//@version=5
// {{.Strategy}} - {{.Label}} parameters
// Generated {{.Date}} from recorded performance history
strategy("{{.Strategy}} [{{.Label}}]", overlay=true, default_qty_type=strategy.percent_of_equity, default_qty_value=100)

takeProfitPct         = input.float({{.TakeProfit}}, "Take Profit %", minval=0.1, step=0.1)
stopLossPct           = input.float({{.StopLoss}}, "Stop Loss %", minval=0.1, step=0.1)
trailingStopPct       = input.float({{.TrailingStop}}, "Trailing Stop %", minval=0.1, step=0.1)
trailingActivationPct = input.float({{.TrailingActivation}}, "Trailing Activation %", minval=0.1, step=0.1)

fastMA = ta.ema(close, 9)
slowMA = ta.ema(close, 21)

if ta.crossover(fastMA, slowMA)
    strategy.entry("Long", strategy.long)

if strategy.position_size > 0
    entry       = strategy.position_avg_price
    activation  = entry * (1 + trailingActivationPct / 100)
    trailPoints = entry * trailingStopPct / 100 / syminfo.mintick
    strategy.exit("Exit", "Long",
         limit=entry * (1 + takeProfitPct / 100),
         stop=entry * (1 - stopLossPct / 100),
         trail_price=activation,
         trail_offset=trailPoints)
`))

type templateData struct {
	Strategy           string
	Label              string
	Date               string
	TakeProfit         string
	StopLoss           string
	TrailingStop       string
	TrailingActivation string
}

// RenderError reports a template execution failure.
type RenderError struct {
	Strategy string
	Label    string
	Err      error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("script: render %s/%s: %v", e.Strategy, e.Label, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Render fills the script template. Missing keys in params use the package defaults.
// The output depends only on the arguments.
func Render(strategy, label string, params map[string]float64, generated time.Time) (string, error) {
	value := func(key string, fallback float64) string {
		v, ok := params[key]
		if !ok {
			v = fallback
		}
		return formatValue(v)
	}
	data := templateData{
		Strategy:           strategy,
		Label:              label,
		Date:               generated.Format(dateLayout),
		TakeProfit:         value(perf.KeyTakeProfit, DefaultTakeProfit),
		StopLoss:           value(perf.KeyStopLoss, DefaultStopLoss),
		TrailingStop:       value(perf.KeyTrailingStop, DefaultTrailingStop),
		TrailingActivation: value(perf.KeyTrailingActivation, DefaultTrailingActivation),
	}

	var b strings.Builder
	if err := scriptTemplate.Execute(&b, data); err != nil {
		return "", &RenderError{Strategy: strategy, Label: label, Err: err}
	}
	return b.String(), nil
}

// RenderParams renders a complete parameter set.
func RenderParams(strategy, label string, p perf.Params, generated time.Time) (string, error) {
	return Render(strategy, label, p.Map(), generated)
}

// ArtifactName is the file name a rendered script is stored under.
func ArtifactName(strategy, label string) string {
	return fmt.Sprintf("%s_%s_suggested.pine", strategy, label)
}

// formatValue rounds to 4 decimals so 6*1.1 prints as 6.6.
func formatValue(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}
	return strconv.FormatFloat(math.Round(v*1e4)/1e4, 'f', -1, 64)
}
