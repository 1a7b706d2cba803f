// package testing contains shared testing utilities
package testing

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/nexus/internal/acquire"
	"github.com/desertthunder/nexus/internal/shared"
)

// FakeCatalog is a test double for [acquire.Catalog]
type FakeCatalog struct {
	Entries []acquire.CatalogEntry
	Err     error

	mu    sync.Mutex
	calls []string
}

func (c *FakeCatalog) Search(ctx context.Context, query string, limit int) ([]acquire.CatalogEntry, error) {
	c.mu.Lock()
	c.calls = append(c.calls, query)
	c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	if len(c.Entries) > limit {
		return c.Entries[:limit], nil
	}
	return c.Entries, nil
}

// Calls returns the queries seen so far.
func (c *FakeCatalog) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

// DownloadFunc scripts a single download attempt.
type DownloadFunc func(req acquire.DownloadRequest) (*acquire.SourceMetadata, error)

// FakeDownloader is a test double for [acquire.Downloader].
//
// Attempts are served from Script in order. Once it runs out, or when an entry is nil, the attempt writes
// <stem>.m4a and returns Meta.
type FakeDownloader struct {
	Script []DownloadFunc
	Meta   acquire.SourceMetadata

	mu       sync.Mutex
	requests []acquire.DownloadRequest
}

func (d *FakeDownloader) Download(ctx context.Context, req acquire.DownloadRequest) (*acquire.SourceMetadata, error) {
	d.mu.Lock()
	n := len(d.requests)
	d.requests = append(d.requests, req)
	var fn DownloadFunc
	if n < len(d.Script) {
		fn = d.Script[n]
	}
	meta := d.Meta
	d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fn != nil {
		return fn(req)
	}
	if err := WriteStem(req, ".m4a"); err != nil {
		return nil, err
	}
	return &meta, nil
}

// Requests returns the download requests seen so far.
func (d *FakeDownloader) Requests() []acquire.DownloadRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]acquire.DownloadRequest(nil), d.requests...)
}

// Fail returns a [DownloadFunc] that fails with stderr text msg.
func Fail(msg string) DownloadFunc {
	return func(acquire.DownloadRequest) (*acquire.SourceMetadata, error) {
		return nil, errors.New(msg)
	}
}

// WriteStem creates an empty <stem><ext> file in the request's output directory.
func WriteStem(req acquire.DownloadRequest, ext string) error {
	return os.WriteFile(filepath.Join(req.OutputDir, req.Stem+ext), []byte("audio"), 0644)
}

// NoSleep is an orchestrator sleep function that returns immediately unless ctx is done.
func NoSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

// NewTestOrchestrator builds an orchestrator over d that stores files in dir and never waits between attempts.
func NewTestOrchestrator(t *testing.T, d acquire.Downloader, dir string) *acquire.Orchestrator {
	t.Helper()
	o, err := acquire.NewOrchestrator(d, acquire.Options{
		Profiles:  acquire.DefaultProfiles(),
		UploadDir: dir,
		JitterMin: time.Second,
		JitterMax: 2 * time.Second,
		Sleep:     NoSleep,
	})
	if err != nil {
		t.Fatalf("failed to create orchestrator: %v", err)
	}
	return o
}

// NewTestDB opens a migrated in-memory database that is closed when the test ends.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertNoFile(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("File should not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
