package history

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratopt-go/internal/perf"
)

func sampleObservation(i int) perf.Observation {
	return perf.Observation{
		Timestamp:      time.Date(2024, 1, 2, 3, 4, 5, i*1000, time.UTC),
		TotalReturnPct: 10.5 + float64(i),
		WinRate:        0.55,
		ProfitFactor:   1.7,
		MaxDrawdownPct: 4.25,
		TotalTrades:    float64(40 + i),
		Params: perf.Params{
			TakeProfit:         6.6,
			StopLoss:           1.8,
			TrailingStop:       1,
			TrailingActivation: 0.5,
		},
	}
}

func assertSameObservation(t *testing.T, want, got perf.Observation) {
	t.Helper()
	assert.True(t, want.Timestamp.Equal(got.Timestamp), "timestamp %s != %s", want.Timestamp, got.Timestamp)
	assert.Equal(t, want.Values(), got.Values())
}

// exerciseStore runs the contract every Store implementation must honour.
func exerciseStore(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("missing strategy is empty", func(t *testing.T) {
		rows, err := store.Load(ctx, "never-seen")
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("append then load returns the appended row last", func(t *testing.T) {
		obs := sampleObservation(0)
		require.NoError(t, store.Append(ctx, "StratA", obs))
		rows, err := store.Load(ctx, "StratA")
		require.NoError(t, err)
		require.NotEmpty(t, rows)
		assertSameObservation(t, obs, rows[len(rows)-1])
	})

	t.Run("N appends keep insertion order", func(t *testing.T) {
		const n = 7
		for i := 0; i < n; i++ {
			require.NoError(t, store.Append(ctx, "StratB", sampleObservation(i)))
		}
		rows, err := store.Load(ctx, "StratB")
		require.NoError(t, err)
		require.Len(t, rows, n)
		for i := range rows {
			assertSameObservation(t, sampleObservation(i), rows[i])
		}
	})

	t.Run("concurrent appends to one strategy lose nothing", func(t *testing.T) {
		const workers, perWorker = 8, 10
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < perWorker; i++ {
					assert.NoError(t, store.Append(ctx, "Hot", sampleObservation(w*perWorker+i)))
				}
			}(w)
		}
		// unrelated strategy in parallel
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				assert.NoError(t, store.Append(ctx, "Cold", sampleObservation(i)))
			}
		}()
		wg.Wait()

		rows, err := store.Load(ctx, "Hot")
		require.NoError(t, err)
		require.Len(t, rows, workers*perWorker)
		seen := make(map[float64]bool, len(rows))
		for _, r := range rows {
			seen[r.TotalTrades] = true
		}
		assert.Len(t, seen, workers*perWorker, "every appended row must be present exactly once")

		cold, err := store.Load(ctx, "Cold")
		require.NoError(t, err)
		assert.Len(t, cold, perWorker)
	})

	t.Run("strategies lists known names", func(t *testing.T) {
		names, err := store.Strategies(ctx)
		require.NoError(t, err)
		for _, want := range []string{"StratA", "StratB", "Hot", "Cold"} {
			assert.Contains(t, names, want)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestCSVStore(t *testing.T) {
	store, err := NewCSVStore(t.TempDir())
	require.NoError(t, err)
	exerciseStore(t, store)
}

func TestSQLStore(t *testing.T) {
	store, err := OpenSQLStore(t.TempDir() + "/history.db")
	require.NoError(t, err)
	defer store.Close()
	exerciseStore(t, store)
}

func TestSafeName(t *testing.T) {
	cases := map[string]string{
		"StratA":         "StratA",
		"EMA Cross 9/21": "EMA_Cross_9_21",
		"../etc/passwd":  "_._etc_passwd",
		".hidden":        "_hidden",
		" .x ":           "_x",
		"..":             "__",
		"":               "_",
		"btc-usd_v2.1":   "btc-usd_v2.1",
	}
	for in, want := range cases {
		assert.Equal(t, want, SafeName(in), fmt.Sprintf("SafeName(%q)", in))
	}
}
