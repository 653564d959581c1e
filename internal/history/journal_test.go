package history

import (
	"path/filepath"
	"testing"
	"time"

	"stratopt-go/internal/perf"
)

func TestJournalRecordAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events", "events.jsonl")

	journal, err := OpenJournal(path)
	if err != nil {
		t.Fatalf("OpenJournal error: %v", err)
	}
	ev := perf.Event{
		ID:         "evt-1",
		ReceivedAt: time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
		Strategy:   "StratA",
		Metrics:    map[string]any{"total_return_pct": 12.5},
		Parameters: map[string]any{"take_profit": "6"},
	}
	if err := journal.Record(ev); err != nil {
		t.Fatalf("Record error: %v", err)
	}
	if err := journal.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if err := journal.Record(ev); err == nil {
		t.Fatalf("expected error recording on closed journal")
	}

	events, err := ReadJournal(path)
	if err != nil {
		t.Fatalf("ReadJournal error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Strategy != "StratA" || events[0].ID != "evt-1" {
		t.Fatalf("unexpected decoded event: %+v", events[0])
	}
	if events[0].Metrics["total_return_pct"] != 12.5 {
		t.Fatalf("unexpected metrics: %+v", events[0].Metrics)
	}
}

func TestReadJournalMissingFile(t *testing.T) {
	events, err := ReadJournal(filepath.Join(t.TempDir(), "missing.jsonl"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events")
	}
}
