package analysis

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratopt-go/internal/artifact"
	"stratopt-go/internal/perf"
)

func historyRows(n int) []perf.Observation {
	rows := make([]perf.Observation, n)
	for i := range rows {
		f := float64(i)
		rows[i] = perf.Observation{
			TotalReturnPct: 5 + 2*f,
			WinRate:        0.4 + 0.02*f,
			ProfitFactor:   1 + 0.1*f,
			MaxDrawdownPct: 10 - f,
			TotalTrades:    30,
			Params: perf.Params{
				TakeProfit:         4 + f,
				StopLoss:           3 - 0.2*f,
				TrailingStop:       1,
				TrailingActivation: 0.5 + 0.1*float64(i%2),
			},
		}
	}
	return rows
}

var pngMagic = []byte("\x89PNG")

func TestExportBelowMinimumIsNoop(t *testing.T) {
	sink := artifact.NewMemorySink()
	require.NoError(t, NewExporter(sink).Export(context.Background(), "StratA", historyRows(MinRows-1)))
	assert.Empty(t, sink.Names())
}

func TestExportWritesArtifacts(t *testing.T) {
	sink := artifact.NewMemorySink()
	require.NoError(t, NewExporter(sink).Export(context.Background(), "StratA", historyRows(8)))

	for _, param := range perf.ParamKeys {
		data, ok := sink.Get(ScatterName("StratA", param))
		require.True(t, ok, param)
		assert.True(t, bytes.HasPrefix(data, pngMagic), param)
	}
	heat, ok := sink.Get("StratA_correlation.png")
	require.True(t, ok)
	assert.True(t, bytes.HasPrefix(heat, pngMagic))

	table, ok := sink.Get("StratA_correlation.csv")
	require.True(t, ok)
	lines := strings.Split(strings.TrimSpace(string(table)), "\n")
	require.Len(t, lines, len(perf.Columns())+1)
	assert.True(t, strings.HasPrefix(lines[1], "total_return_pct,1.0000,"))
}

func TestCorrelationMatrix(t *testing.T) {
	cols, m := CorrelationMatrix(historyRows(6))
	require.Len(t, m, len(cols))

	idx := func(name string) int {
		for i, c := range cols {
			if c == name {
				return i
			}
		}
		t.Fatalf("missing column %s", name)
		return -1
	}
	ret, tp, dd, trades := idx("total_return_pct"), idx("take_profit"), idx("max_drawdown_pct"), idx("total_trades")

	assert.InDelta(t, 1, m[ret][tp], 1e-9)
	assert.InDelta(t, -1, m[ret][dd], 1e-9)
	assert.Equal(t, 0.0, m[ret][trades], "constant column correlates as 0")
	assert.Equal(t, 1.0, m[trades][trades])
	for i := range m {
		for j := range m {
			assert.InDelta(t, m[i][j], m[j][i], 1e-12)
		}
	}
}

type brokenSink struct{ artifact.Sink }

func (brokenSink) Write(context.Context, string, []byte) error { return errors.New("read-only fs") }

func TestExportReportsSinkFailures(t *testing.T) {
	err := NewExporter(brokenSink{}).Export(context.Background(), "StratA", historyRows(5))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read-only fs")
}
