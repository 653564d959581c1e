package history

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"stratopt-go/internal/perf"
)

const (
	csvSuffix       = "_history.csv"
	timestampColumn = "timestamp"
	timestampLayout = time.RFC3339Nano
)

// Header is the fixed column order of every history table.
var Header = append([]string{timestampColumn}, perf.Columns()...)

// CSVStore keeps one CSV table per strategy under a directory.
// Appends rewrite the whole table and are serialized per strategy.
type CSVStore struct {
	dir   string
	locks *KeyedMutex
}

// NewCSVStore creates the directory if needed and returns a store rooted there.
func NewCSVStore(dir string) (*CSVStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("history: create dir: %w", err)
	}
	return &CSVStore{dir: dir, locks: NewKeyedMutex()}, nil
}

// Path returns the table file backing strategy.
func (s *CSVStore) Path(strategy string) string {
	return filepath.Join(s.dir, SafeName(strategy)+csvSuffix)
}

// Append adds obs to the bottom of the strategy's table, creating it when absent.
func (s *CSVStore) Append(ctx context.Context, strategy string, obs perf.Observation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unlock := s.locks.Lock(SafeName(strategy))
	defer unlock()

	path := s.Path(strategy)
	rows, err := readTable(path)
	if err != nil {
		return err
	}
	rows = append(rows, obs)
	return writeTable(path, rows)
}

// Load returns the strategy's observations in insertion order; a missing table is empty.
func (s *CSVStore) Load(ctx context.Context, strategy string) ([]perf.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(SafeName(strategy))
	defer unlock()
	return readTable(s.Path(strategy))
}

// Strategies lists the strategies that have a table on disk, sorted by name.
func (s *CSVStore) Strategies(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("history: list dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), csvSuffix) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), csvSuffix))
	}
	sort.Strings(names)
	return names, nil
}

func readTable(path string) ([]perf.Observation, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("history: open table: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("history: read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.TrimSpace(col)] = i
	}

	var rows []perf.Observation
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("history: read row %d: %w", len(rows)+1, err)
		}
		rows = append(rows, decodeRow(index, record))
	}
	return rows, nil
}

func decodeRow(index map[string]int, record []string) perf.Observation {
	cell := func(col string) string {
		i, ok := index[col]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}
	num := func(col string) float64 {
		f, _ := perf.Coerce(cell(col))
		return f
	}
	ts, _ := time.Parse(timestampLayout, cell(timestampColumn))
	return perf.Observation{
		Timestamp:      ts,
		TotalReturnPct: num(perf.KeyTotalReturnPct),
		WinRate:        num(perf.KeyWinRate),
		ProfitFactor:   num(perf.KeyProfitFactor),
		MaxDrawdownPct: num(perf.KeyMaxDrawdownPct),
		TotalTrades:    num(perf.KeyTotalTrades),
		Params: perf.Params{
			TakeProfit:         num(perf.KeyTakeProfit),
			StopLoss:           num(perf.KeyStopLoss),
			TrailingStop:       num(perf.KeyTrailingStop),
			TrailingActivation: num(perf.KeyTrailingActivation),
		},
	}
}

func encodeRow(obs perf.Observation) []string {
	vals := obs.Values()
	row := make([]string, 0, len(vals)+1)
	row = append(row, obs.Timestamp.Format(timestampLayout))
	for _, v := range vals {
		row = append(row, strconv.FormatFloat(v, 'f', -1, 64))
	}
	return row
}

// writeTable replaces path with the full table via a temp file and rename.
func writeTable(path string, rows []perf.Observation) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("history: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(Header); err != nil {
		tmp.Close()
		return fmt.Errorf("history: write header: %w", err)
	}
	for _, obs := range rows {
		if err := w.Write(encodeRow(obs)); err != nil {
			tmp.Close()
			return fmt.Errorf("history: write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("history: flush: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("history: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("history: replace table: %w", err)
	}
	return nil
}
