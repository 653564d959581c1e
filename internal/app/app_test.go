package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratopt-go/internal/config"
	"stratopt-go/internal/history"
)

func testConfig(t *testing.T, backend string) *config.Config {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.Backend = backend
	cfg.Storage.DataDir = filepath.Join(dir, "data")
	cfg.Storage.SQLitePath = filepath.Join(dir, "data", "history.db")
	cfg.Storage.Journal = filepath.Join(dir, "data", "events.jsonl")
	cfg.Scripts.Dir = filepath.Join(dir, "scripts")
	cfg.Analysis.Dir = filepath.Join(dir, "analysis")
	return cfg
}

func TestNewWiresBackends(t *testing.T) {
	for _, backend := range []string{"csv", "sqlite", "memory"} {
		t.Run(backend, func(t *testing.T) {
			cfg := testConfig(t, backend)
			a, err := New(cfg, zerolog.Nop())
			require.NoError(t, err)
			defer a.Close()

			ctx := context.Background()
			for i := 0; i < 5; i++ {
				_, err := a.Service.OnEvent(ctx, "StratA",
					map[string]any{"total_return_pct": float64(i)},
					map[string]any{"take_profit": float64(4 + i), "stop_loss": 2})
				require.NoError(t, err)
			}
			set, err := a.Service.Suggest(ctx, "StratA")
			require.NoError(t, err)
			require.NotNil(t, set)
			assert.Equal(t, 8.0, set.BestReturn.TakeProfit)

			_, err = os.Stat(filepath.Join(cfg.Scripts.Dir, "StratA_exploratory_suggested.pine"))
			assert.NoError(t, err)
			_, err = os.Stat(filepath.Join(cfg.Analysis.Dir, "StratA_correlation.csv"))
			assert.NoError(t, err)

			events, err := history.ReadJournal(cfg.Storage.Journal)
			require.NoError(t, err)
			assert.Len(t, events, 5)
		})
	}
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	cfg := testConfig(t, "mongo")
	_, err := New(cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestNewTagsLogsWithEnv(t *testing.T) {
	cfg := testConfig(t, "memory")
	cfg.App.Env = "staging"
	var buf bytes.Buffer
	a, err := New(cfg, zerolog.New(&buf))
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Service.OnEvent(context.Background(), "StratA", nil, nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"env":"staging"`)
}
