// Package artifact stores generated files such as suggested scripts and charts.
package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Sink receives named artifacts.
type Sink interface {
	Write(ctx context.Context, name string, data []byte) error
}

// FileSink writes artifacts into a directory, replacing existing files atomically.
type FileSink struct {
	dir string
}

// NewFileSink creates dir if needed.
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifact: create dir: %w", err)
	}
	return &FileSink{dir: dir}, nil
}

// Dir returns the output directory.
func (s *FileSink) Dir() string { return s.dir }

// Write stores data under name inside the sink directory.
func (s *FileSink) Write(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validName(name); err != nil {
		return err
	}
	path := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(s.dir, "."+name+".*.tmp")
	if err != nil {
		return fmt.Errorf("artifact: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("artifact: write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("artifact: close %s: %w", name, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("artifact: chmod %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("artifact: replace %s: %w", name, err)
	}
	return nil
}

func validName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("artifact: invalid name %q", name)
	}
	return nil
}

// MemorySink keeps artifacts in memory.
type MemorySink struct {
	mu    sync.Mutex
	files map[string][]byte
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{files: make(map[string][]byte)}
}

// Write stores a copy of data under name.
func (m *MemorySink) Write(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validName(name); err != nil {
		return err
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	m.mu.Lock()
	m.files[name] = buf
	m.mu.Unlock()
	return nil
}

// Get returns the stored artifact.
func (m *MemorySink) Get(name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[name]
	return data, ok
}

// Names lists stored artifact names sorted.
func (m *MemorySink) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.files))
	for name := range m.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
