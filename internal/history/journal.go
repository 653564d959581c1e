package history

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"stratopt-go/internal/perf"
)

// Journal appends accepted webhook events as JSON lines for audit and replay.
type Journal struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// OpenJournal creates/opens the target file in append mode.
func OpenJournal(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("history: journal dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("history: open journal: %w", err)
	}
	return &Journal{file: file, enc: json.NewEncoder(file)}, nil
}

// Record writes a single event line.
func (j *Journal) Record(ev perf.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return fmt.Errorf("history: journal closed")
	}
	if err := j.enc.Encode(ev); err != nil {
		return fmt.Errorf("history: journal encode: %w", err)
	}
	return nil
}

// Close closes the file handle.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	return err
}

// ReadJournal decodes every event recorded at path, in write order. A missing file yields no events.
func ReadJournal(path string) ([]perf.Event, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("history: open journal: %w", err)
	}
	defer file.Close()

	var events []perf.Event
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var ev perf.Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			return events, fmt.Errorf("history: journal line %d: %w", line, err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return events, fmt.Errorf("history: scan journal: %w", err)
	}
	return events, nil
}
