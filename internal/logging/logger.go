package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileName is the log file inside .beads-continuation/logs.
const FileName = "continuation.log"

// Logger appends timestamped lines to .beads-continuation/logs/continuation.log
// so users can inspect degraded bd/git/host calls after the fact.
type Logger struct {
	mu    sync.Mutex
	out   io.Writer
	file  *os.File
	clock func() time.Time
}

// New creates (or reuses) continuation.log inside logDir, normally
// config.Config.LogsDir().
func New(logDir string) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: ensure log dir: %w", err)
	}
	path := filepath.Join(logDir, FileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open log file: %w", err)
	}
	return &Logger{out: f, file: f, clock: time.Now}, nil
}

// NewWriter logs to an arbitrary writer; used for --verbose mirroring and tests.
func NewWriter(w io.Writer) *Logger {
	return &Logger{out: w, clock: time.Now}
}

// Tee returns a logger writing to both l and w.
func (l *Logger) Tee(w io.Writer) *Logger {
	if l == nil || w == nil {
		return l
	}
	return &Logger{out: io.MultiWriter(l.out, w), file: l.file, clock: l.clock}
}

// Close releases the file handle.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Printf writes a single timestamped line.
func (l *Logger) Printf(format string, args ...any) {
	if l == nil || l.out == nil {
		return
	}
	line := fmt.Sprintf(format, args...)
	line = strings.TrimRight(line, "\n")
	timestamp := l.clock().Format(time.RFC3339)
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "[%s] %s\n", timestamp, line)
}
