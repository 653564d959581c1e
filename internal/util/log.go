package util

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// NewLogger returns a JSON logger on stdout. When errLog is non-nil, error-and-above
// events are also written there.
func NewLogger(level string, errLog io.Writer) zerolog.Logger {
	return NewLoggerTo(os.Stdout, level, errLog)
}

// NewLoggerTo is NewLogger with an explicit primary output.
func NewLoggerTo(out io.Writer, level string, errLog io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	var w io.Writer = out
	if errLog != nil {
		w = zerolog.MultiLevelWriter(out, minLevelWriter{w: errLog, min: zerolog.ErrorLevel})
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(lvl)
}

// OpenErrorLog opens path for appending, creating parent directories.
func OpenErrorLog(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

type minLevelWriter struct {
	w   io.Writer
	min zerolog.Level
}

func (m minLevelWriter) Write(p []byte) (int, error) { return len(p), nil }

func (m minLevelWriter) WriteLevel(l zerolog.Level, p []byte) (int, error) {
	if l < m.min {
		return len(p), nil
	}
	return m.w.Write(p)
}
