package suggest

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratopt-go/internal/history"
	"stratopt-go/internal/perf"
)

func obs(ret, pf, wr, dd, tp, sl float64) perf.Observation {
	return perf.Observation{
		TotalReturnPct: ret,
		ProfitFactor:   pf,
		WinRate:        wr,
		MaxDrawdownPct: dd,
		Params:         perf.Params{TakeProfit: tp, StopLoss: sl, TrailingStop: 1, TrailingActivation: 0.5},
	}
}

func TestFromHistoryNeedsThreeRows(t *testing.T) {
	rows := []perf.Observation{obs(1, 1, 1, 1, 1, 1), obs(2, 1, 1, 1, 2, 2), obs(3, 1, 1, 1, 3, 3)}
	for n := 0; n < MinHistory; n++ {
		assert.Nil(t, FromHistory(rows[:n]), "n=%d", n)
	}
	assert.NotNil(t, FromHistory(rows))
}

func TestFromHistorySelection(t *testing.T) {
	rows := []perf.Observation{
		obs(10, 1, 0.5, 5, 5, 3),
		obs(20, 2, 0.6, 4, 6, 2),
		obs(15, 3, 0.9, 1, 7, 1),
	}
	set := FromHistory(rows)
	require.NotNil(t, set)

	assert.Equal(t, rows[1].Params, set.BestReturn)
	assert.Equal(t, rows[2].Params, set.BestRiskAdjusted)
	assert.InDelta(t, 2.4545, RiskAdjustedScore(rows[2]), 1e-4)

	assert.InDelta(t, 6.6, set.Exploratory.TakeProfit, 1e-9)
	assert.InDelta(t, 1.8, set.Exploratory.StopLoss, 1e-9)
	assert.Equal(t, 1.0, set.Exploratory.TrailingStop)
	assert.Equal(t, 0.5, set.Exploratory.TrailingActivation)
}

func TestFromHistoryTiesPickEarliest(t *testing.T) {
	rows := []perf.Observation{
		obs(5, 1, 1, 1, 1, 1),
		obs(9, 2, 1, 0.9, 2, 2),
		obs(9, 2, 1, 0.9, 3, 3),
	}
	set := FromHistory(rows)
	require.NotNil(t, set)
	assert.Equal(t, 2.0, set.BestReturn.TakeProfit)
	assert.Equal(t, 2.0, set.BestRiskAdjusted.TakeProfit)
}

func TestFromHistoryZeroDrawdown(t *testing.T) {
	rows := []perf.Observation{
		obs(1, 1, 0.5, 0, 1, 1),
		obs(1, 1, 0.5, 2, 2, 2),
		obs(1, 0, 0, 0, 3, 3),
	}
	set := FromHistory(rows)
	require.NotNil(t, set)
	assert.Equal(t, 1.0, set.BestRiskAdjusted.TakeProfit)
}

func TestEngineSuggest(t *testing.T) {
	ctx := context.Background()
	store := history.NewMemoryStore()
	engine := NewEngine(store)

	set, err := engine.Suggest(ctx, "StratA")
	require.NoError(t, err)
	assert.Nil(t, set)

	for _, o := range []perf.Observation{obs(10, 1, 0.5, 5, 5, 3), obs(20, 2, 0.6, 4, 6, 2)} {
		require.NoError(t, store.Append(ctx, "StratA", o))
	}
	set, err = engine.Suggest(ctx, "StratA")
	require.NoError(t, err)
	assert.Nil(t, set)

	require.NoError(t, store.Append(ctx, "StratA", obs(15, 3, 0.9, 1, 7, 1)))
	set, err = engine.Suggest(ctx, "StratA")
	require.NoError(t, err)
	require.NotNil(t, set)
	assert.Equal(t, 6.0, set.BestReturn.TakeProfit)
}

type failingLoader struct{}

func (failingLoader) Load(context.Context, string) ([]perf.Observation, error) {
	return nil, errors.New("disk on fire")
}

func TestEngineSuggestLoadError(t *testing.T) {
	_, err := NewEngine(failingLoader{}).Suggest(context.Background(), "StratA")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "suggest: load history")
}

func TestFromHistorySkipsNaNScores(t *testing.T) {
	rows := []perf.Observation{
		obs(math.NaN(), 0, 1, -0.1, 1, 1),
		obs(20, 1, 1, 1, 2, 2),
		obs(30, 1, 1, 1, 3, 3),
	}
	set := FromHistory(rows)
	require.NotNil(t, set)
	assert.Equal(t, 3.0, set.BestReturn.TakeProfit)
	assert.Equal(t, 2.0, set.BestRiskAdjusted.TakeProfit)
}

func TestFromHistoryAllNaNFallsBackToFirstRow(t *testing.T) {
	nan := math.NaN()
	rows := []perf.Observation{obs(nan, 1, 1, 1, 1, 1), obs(nan, 1, 1, 1, 2, 2), obs(nan, 1, 1, 1, 3, 3)}
	set := FromHistory(rows)
	require.NotNil(t, set)
	assert.Equal(t, 1.0, set.BestReturn.TakeProfit)
}
