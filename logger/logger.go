// Package logger owns the process-wide structured logger.
//
// Log entries go to a single text file (see DefaultLogPath). Verifier output is
// logged line by line at debug level through Line, so `SetDebug(true)` turns
// the log into a full transcript of a run.
package logger

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/zhubert/spinrun/paths"
)

// transcriptMsg is the message every verifier output entry carries.
const transcriptMsg = "verifier output"

type state struct {
	mu     sync.Mutex
	level  *slog.LevelVar
	file   *os.File
	path   string
	logger *slog.Logger
	opened bool
}

var std = &state{level: new(slog.LevelVar)}

// DefaultLogPath returns <logs dir>/spinrun.log.
func DefaultLogPath() (string, error) {
	dir, err := paths.LogsDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "spinrun.log"), nil
}

// SetDebug switches between debug and info level.
func SetDebug(enabled bool) {
	std.mu.Lock()
	defer std.mu.Unlock()
	if enabled {
		std.level.Set(slog.LevelDebug)
		return
	}
	std.level.Set(slog.LevelInfo)
}

// Init opens the log file at path. Only the first call has an effect until
// Reset; without it the first Get falls back to DefaultLogPath.
func Init(path string) error {
	std.mu.Lock()
	defer std.mu.Unlock()
	if std.opened {
		return nil
	}
	return std.open(path)
}

func (s *state) open(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create log directory for %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	s.file = f
	s.path = path
	s.logger = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: s.level}))
	s.opened = true
	s.logger.Info("logger initialized", "path", path)
	return nil
}

func (s *state) get() *slog.Logger {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.opened {
		path, err := DefaultLogPath()
		if err == nil {
			err = s.open(path)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: logging to stderr: %v\n", err)
			// Only warn once.
			s.opened = true
		}
	}
	if s.logger == nil {
		return slog.Default()
	}
	return s.logger
}

// Path returns the active log file, or "" before initialization.
func Path() string {
	std.mu.Lock()
	defer std.mu.Unlock()
	return std.path
}

// Get returns the root logger.
func Get() *slog.Logger {
	return std.get()
}

// WithRun returns a logger carrying the run ID.
//
// Example:
//
//	log := logger.WithRun(runID)
//	log.Info("verifier started", "pid", pid)
//	// Output: level=INFO msg="verifier started" runID=5f0c... pid=4242
func WithRun(runID string) *slog.Logger {
	return Get().With("runID", runID)
}

// WithComponent returns a logger carrying the component name.
func WithComponent(component string) *slog.Logger {
	return Get().With("component", component)
}

// Line records one raw line of verifier output on log at debug level.
func Line(log *slog.Logger, line string) {
	log.Debug(transcriptMsg, "line", line)
}

// Close closes the log file. Later calls fall back to slog.Default.
func Close() {
	std.mu.Lock()
	defer std.mu.Unlock()
	if std.file != nil {
		std.file.Close()
		std.file = nil
	}
	std.logger = nil
}

// Reset drops all state so Init can run again. Used by tests.
func Reset() {
	std.mu.Lock()
	defer std.mu.Unlock()
	if std.file != nil {
		std.file.Close()
		std.file = nil
	}
	std.level = new(slog.LevelVar)
	std.path = ""
	std.logger = nil
	std.opened = false
}
