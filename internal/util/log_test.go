package util

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLoggerLevel(t *testing.T) {
	logger := NewLogger("debug", nil)
	if logger.GetLevel() != zerolog.DebugLevel {
		t.Fatalf("expected debug level, got %s", logger.GetLevel())
	}

	logger = NewLogger("invalid", nil)
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("expected info fallback, got %s", logger.GetLevel())
	}
}

func TestNewLoggerTeesErrors(t *testing.T) {
	var out, errs bytes.Buffer
	logger := NewLoggerTo(&out, "info", &errs)

	logger.Info().Str("strategy", "StratA").Msg("webhook received")
	logger.Error().Str("strategy", "StratA").Msg("append failed")

	if !strings.Contains(out.String(), "webhook received") || !strings.Contains(out.String(), "append failed") {
		t.Fatalf("primary output missing events: %s", out.String())
	}
	if strings.Contains(errs.String(), "webhook received") {
		t.Fatalf("info event leaked into error log: %s", errs.String())
	}
	if !strings.Contains(errs.String(), "append failed") {
		t.Fatalf("error event missing from error log: %s", errs.String())
	}
}

func TestOpenErrorLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "errors.log")
	f, err := OpenErrorLog(path)
	if err != nil {
		t.Fatalf("OpenErrorLog error: %v", err)
	}
	if _, err := f.WriteString("x\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	f.Close()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected error log on disk: %v", err)
	}
}
