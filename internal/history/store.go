// Package history persists per-strategy performance observations as append-only tables.
package history

import (
	"context"
	"strings"

	"stratopt-go/internal/perf"
)

// Store is an append-only, per-strategy table of observations.
type Store interface {
	Append(ctx context.Context, strategy string, obs perf.Observation) error
	Load(ctx context.Context, strategy string) ([]perf.Observation, error)
	Strategies(ctx context.Context) ([]string, error)
}

// SafeName maps a strategy name onto characters that are safe in file names.
func SafeName(strategy string) string {
	strategy = strings.TrimSpace(strategy)
	if strategy == "" {
		return "_"
	}
	var b strings.Builder
	b.Grow(len(strategy))
	for _, r := range strategy {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name := b.String()
	if strings.Trim(name, ".") == "" {
		return strings.ReplaceAll(name, ".", "_")
	}
	// no hidden files
	if strings.HasPrefix(name, ".") {
		name = "_" + name[1:]
	}
	return name
}
