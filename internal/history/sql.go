package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"stratopt-go/internal/perf"
)

const observationsSchema = `
CREATE TABLE IF NOT EXISTS observations (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	strategy            TEXT    NOT NULL,
	timestamp           TEXT    NOT NULL,
	total_return_pct    REAL    NOT NULL DEFAULT 0,
	win_rate            REAL    NOT NULL DEFAULT 0,
	profit_factor       REAL    NOT NULL DEFAULT 0,
	max_drawdown_pct    REAL    NOT NULL DEFAULT 0,
	total_trades        REAL    NOT NULL DEFAULT 0,
	take_profit         REAL    NOT NULL DEFAULT 0,
	stop_loss           REAL    NOT NULL DEFAULT 0,
	trailing_stop       REAL    NOT NULL DEFAULT 0,
	trailing_activation REAL    NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_observations_strategy ON observations(strategy, id);
`

// SQLStore keeps every strategy's history in a single SQLite table.
type SQLStore struct {
	db    *sql.DB
	locks *KeyedMutex
}

// OpenSQLStore opens (or creates) the SQLite database at path and ensures the schema.
func OpenSQLStore(path string) (*SQLStore, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("history: create database directory: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}
	if path == ":memory:" {
		// each new connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: ping database: %w", err)
	}
	if _, err := db.Exec(observationsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	return &SQLStore{db: db, locks: NewKeyedMutex()}, nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Append inserts obs as the newest row of the strategy's history.
func (s *SQLStore) Append(ctx context.Context, strategy string, obs perf.Observation) error {
	unlock := s.locks.Lock(strategy)
	defer unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO observations
		(strategy, timestamp, total_return_pct, win_rate, profit_factor, max_drawdown_pct,
		 total_trades, take_profit, stop_loss, trailing_stop, trailing_activation)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		strategy,
		obs.Timestamp.Format(timestampLayout),
		obs.TotalReturnPct,
		obs.WinRate,
		obs.ProfitFactor,
		obs.MaxDrawdownPct,
		obs.TotalTrades,
		obs.TakeProfit,
		obs.StopLoss,
		obs.TrailingStop,
		obs.TrailingActivation,
	)
	if err != nil {
		return fmt.Errorf("history: insert observation: %w", err)
	}
	return nil
}

// Load returns the strategy's history ordered by insertion.
func (s *SQLStore) Load(ctx context.Context, strategy string) ([]perf.Observation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, total_return_pct, win_rate, profit_factor, max_drawdown_pct,
		       total_trades, take_profit, stop_loss, trailing_stop, trailing_activation
		FROM observations
		WHERE strategy = ?
		ORDER BY id ASC
	`, strategy)
	if err != nil {
		return nil, fmt.Errorf("history: query observations: %w", err)
	}
	defer rows.Close()

	var out []perf.Observation
	for rows.Next() {
		var (
			obs perf.Observation
			ts  string
		)
		if err := rows.Scan(
			&ts,
			&obs.TotalReturnPct,
			&obs.WinRate,
			&obs.ProfitFactor,
			&obs.MaxDrawdownPct,
			&obs.TotalTrades,
			&obs.TakeProfit,
			&obs.StopLoss,
			&obs.TrailingStop,
			&obs.TrailingActivation,
		); err != nil {
			return nil, fmt.Errorf("history: scan observation: %w", err)
		}
		obs.Timestamp, _ = time.Parse(timestampLayout, ts)
		out = append(out, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate observations: %w", err)
	}
	return out, nil
}

// Strategies lists strategy names with at least one row.
func (s *SQLStore) Strategies(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT strategy FROM observations ORDER BY strategy`)
	if err != nil {
		return nil, fmt.Errorf("history: query strategies: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("history: scan strategy: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
