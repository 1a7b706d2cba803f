// package shared defines shared helpers
package shared

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
)

// LogOptions selects the level and output format of a [log.Logger].
//
// Format is one of "auto", "text", "json" or "logfmt". "auto" renders text on a terminal and logfmt otherwise.
type LogOptions struct {
	Level  string
	Format string
}

// NewLogger creates a new [log.Logger] instance with the specified [io.Writer], with timestamps and caller reporting enabled.
//
// The writer defaults to [os.Stderr]
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true, ReportCaller: true}
	return log.NewWithOptions(w, opts)
}

// NewLoggerWithOptions creates a [log.Logger] like [NewLogger] with the level and formatter taken from opts.
func NewLoggerWithOptions(w io.Writer, opts LogOptions) (*log.Logger, error) {
	if w == nil {
		w = os.Stderr
	}

	logOpts := log.Options{ReportTimestamp: true, ReportCaller: true}
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "auto":
		if !isTerminal(w) {
			logOpts.Formatter = log.LogfmtFormatter
		}
	case "text":
		logOpts.Formatter = log.TextFormatter
	case "json":
		logOpts.Formatter = log.JSONFormatter
	case "logfmt":
		logOpts.Formatter = log.LogfmtFormatter
	default:
		return nil, fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, opts.Format)
	}

	logger := log.NewWithOptions(w, logOpts)
	if lvl := strings.TrimSpace(opts.Level); lvl != "" {
		level, err := log.ParseLevel(lvl)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		logger.SetLevel(level)
	}
	return logger, nil
}

// NewFileLogger creates a [log.Logger] that appends to the file at path, creating parent directories as needed.
func NewFileLogger(path string) (*log.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return NewLogger(f), nil
}

// WithLogger creates a child [log.Logger] with the specified key-value pairs added to all log entries.
func WithLogger(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}

// SetLogLevel sets the [log.Level] for the given [log.Logger].
func SetLogLevel(l *log.Logger, ll log.Level) {
	l.SetLevel(ll)
}

// GenerateID generates a new v4 [uuid.UUID] as a string
func GenerateID() string {
	return uuid.New().String()
}

// IsValidID reports whether s parses as a [uuid.UUID].
func IsValidID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// FormatDuration renders seconds as m:ss, or "0:00" for unknown durations.
func FormatDuration(seconds int) string {
	if seconds <= 0 {
		return "0:00"
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
