package shared

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFormatDuration(t *testing.T) {
	tc := []struct {
		name    string
		seconds int
		want    string
	}{
		{name: "unknown", seconds: 0, want: "0:00"},
		{name: "negative", seconds: -4, want: "0:00"},
		{name: "under a minute", seconds: 7, want: "0:07"},
		{name: "minutes", seconds: 213, want: "3:33"},
		{name: "over an hour", seconds: 3725, want: "62:05"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDuration(tt.seconds); got != tt.want {
				t.Errorf("FormatDuration(%d) = %v, want %v", tt.seconds, got, tt.want)
			}
		})
	}
}

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	if a == b {
		t.Error("expected distinct ids")
	}
	if !IsValidID(a) {
		t.Errorf("expected %q to be a valid id", a)
	}
	if IsValidID("../etc/passwd") {
		t.Error("path-like input should not be a valid id")
	}
}

func TestNewLoggerWithOptions(t *testing.T) {
	t.Run("json format", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewLoggerWithOptions(&buf, LogOptions{Level: "info", Format: "json"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		logger.Info("hello", "key", "value")
		if !strings.Contains(buf.String(), `"key":"value"`) {
			t.Errorf("expected json output, got %q", buf.String())
		}
	})

	t.Run("auto uses logfmt off a terminal", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewLoggerWithOptions(&buf, LogOptions{Format: "auto"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		logger.Info("hello", "key", "value")
		if !strings.Contains(buf.String(), "key=value") {
			t.Errorf("expected logfmt output, got %q", buf.String())
		}
	})

	t.Run("level filters", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewLoggerWithOptions(&buf, LogOptions{Level: "warn", Format: "logfmt"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		logger.Info("quiet")
		if buf.Len() != 0 {
			t.Errorf("expected info to be filtered, got %q", buf.String())
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		if _, err := NewLoggerWithOptions(nil, LogOptions{Format: "xml"}); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("unknown level", func(t *testing.T) {
		if _, err := NewLoggerWithOptions(nil, LogOptions{Level: "loud"}); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestNewFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "tui.log")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger.Info("written")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "written") {
		t.Errorf("expected log entry in file, got %q", string(data))
	}
}
