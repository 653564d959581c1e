package perf

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// CoercionError reports a value that could not be read as a number and was replaced by 0.
type CoercionError struct {
	Key string
	Raw any
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("perf: coerce %q: unparsable value %v, using 0", e.Key, e.Raw)
}

// Coerce reads raw as a float64. Objects carrying a "value" key are unwrapped first.
// Anything that still is not a finite number yields 0 and ok=false.
func Coerce(raw any) (float64, bool) {
	f, ok := coerce(raw)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func coerce(raw any) (float64, bool) {
	switch v := raw.(type) {
	case nil:
		return 0, false
	case map[string]any:
		inner, found := v["value"]
		if !found {
			return 0, false
		}
		return coerce(inner)
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		f, err := strconv.ParseFloat(fmt.Sprint(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
}

// NewObservation builds an Observation from raw webhook maps. Missing keys default to 0
// silently; present but unparsable values default to 0 and are reported in the returned slice.
func NewObservation(ts time.Time, metrics, params map[string]any) (Observation, []error) {
	var errs []error
	get := func(src map[string]any, key string) float64 {
		raw, found := src[key]
		if !found {
			return 0
		}
		f, ok := Coerce(raw)
		if !ok {
			errs = append(errs, &CoercionError{Key: key, Raw: raw})
		}
		return f
	}

	obs := Observation{
		Timestamp:      ts,
		TotalReturnPct: get(metrics, KeyTotalReturnPct),
		WinRate:        get(metrics, KeyWinRate),
		ProfitFactor:   get(metrics, KeyProfitFactor),
		MaxDrawdownPct: get(metrics, KeyMaxDrawdownPct),
		TotalTrades:    get(metrics, KeyTotalTrades),
		Params: Params{
			TakeProfit:         get(params, KeyTakeProfit),
			StopLoss:           get(params, KeyStopLoss),
			TrailingStop:       get(params, KeyTrailingStop),
			TrailingActivation: get(params, KeyTrailingActivation),
		},
	}
	return obs, errs
}
