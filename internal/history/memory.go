package history

import (
	"context"
	"sort"
	"sync"

	"stratopt-go/internal/perf"
)

// MemoryStore keeps histories in memory for tests and throwaway runs.
type MemoryStore struct {
	mu   sync.Mutex
	rows map[string][]perf.Observation
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string][]perf.Observation)}
}

// Append records obs at the end of the strategy's history.
func (m *MemoryStore) Append(ctx context.Context, strategy string, obs perf.Observation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.rows[strategy] = append(m.rows[strategy], obs)
	m.mu.Unlock()
	return nil
}

// Load returns a copy of the strategy's history.
func (m *MemoryStore) Load(ctx context.Context, strategy string) ([]perf.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	src := m.rows[strategy]
	if len(src) == 0 {
		return nil, nil
	}
	out := make([]perf.Observation, len(src))
	copy(out, src)
	return out, nil
}

// Strategies returns the known strategy names sorted.
func (m *MemoryStore) Strategies(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.rows))
	for name := range m.rows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
