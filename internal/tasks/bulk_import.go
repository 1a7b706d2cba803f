package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/desertthunder/nexus/internal/acquire"
	"github.com/desertthunder/nexus/internal/formatter"
	"github.com/desertthunder/nexus/internal/shared"
	"golang.org/x/time/rate"
)

// BulkImportOpts contains configuration for bulk imports.
type BulkImportOpts struct {
	OwnerID      string   // Owner of every imported song
	Moods        []string // Mood tags applied to every song
	PlaylistID   string   // Optional playlist receiving each song
	NumWorkers   int      // Concurrent acquisitions (default: 2)
	RateLimit    float64  // Acquisitions started per second (default: 1)
	ManifestPath string   // Optional JSON manifest destination
}

// ItemResult is the outcome of one reference in a bulk import.
type ItemResult struct {
	Reference string `json:"reference"`
	SongID    string `json:"song_id,omitempty"`
	Title     string `json:"title,omitempty"`
	Profile   string `json:"profile,omitempty"`
	Attempts  int    `json:"attempts"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// BulkImportResult summarizes a bulk import.
type BulkImportResult struct {
	Total        int          `json:"total"`
	Succeeded    int          `json:"succeeded"`
	Failed       int          `json:"failed"`
	Results      []ItemResult `json:"results"`
	ManifestPath string       `json:"-"`
}

// BulkImport imports references concurrently with rate limiting and progress tracking.
//
// Blank lines and duplicate references are skipped. One failed reference never stops the others.
// Per-item progress is reported in completion order.
func (i *Importer) BulkImport(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	references []string,
	opts BulkImportOpts,
) (*BulkImportResult, error) {
	refs := uniqueReferences(references)
	if len(refs) == 0 {
		return nil, fmt.Errorf("%w: no references to import", shared.ErrInvalidInput)
	}

	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 2
	}
	if opts.NumWorkers > 4 {
		opts.NumWorkers = 4
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 1.0
	}

	result := &BulkImportResult{
		Total:   len(refs),
		Results: make([]ItemResult, 0, len(refs)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan string, len(refs))
	results := make(chan ItemResult, len(refs))

	var wg sync.WaitGroup
	for n := 0; n < opts.NumWorkers; n++ {
		wg.Add(1)
		go i.importWorker(ctx, &wg, limiter, jobs, results, opts)
	}

	for _, ref := range refs {
		jobs <- ref
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		if res.Success {
			result.Succeeded++
			i.sendProgress(prog, bulkItemCompletedUpdate(completed, len(refs), res))
		} else {
			result.Failed++
			i.sendProgress(prog, bulkItemFailedUpdate(completed, len(refs), res))
		}
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	if opts.ManifestPath != "" {
		if err := os.MkdirAll(filepath.Dir(opts.ManifestPath), 0755); err != nil {
			return result, fmt.Errorf("failed to create manifest directory: %w", err)
		}
		if err := formatter.WriteJSON(result, opts.ManifestPath); err != nil {
			return result, fmt.Errorf("import completed but failed to write manifest: %w", err)
		}
		result.ManifestPath = opts.ManifestPath
	}
	return result, nil
}

// importWorker imports references from the jobs channel until it closes or ctx is cancelled.
//
// References left in the queue after cancellation are reported as failed so totals still add up.
func (i *Importer) importWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	limiter *rate.Limiter,
	jobs <-chan string,
	results chan<- ItemResult,
	opts BulkImportOpts,
) {
	defer wg.Done()

	for ref := range jobs {
		if err := limiter.Wait(ctx); err != nil {
			results <- ItemResult{Reference: ref, Error: errorText(ctx, err)}
			continue
		}
		results <- i.importOne(ctx, ref, opts)
	}
}

func (i *Importer) importOne(ctx context.Context, ref string, opts BulkImportOpts) ItemResult {
	item := ItemResult{Reference: ref}

	res, err := i.Import(ctx, ImportRequest{
		Reference:  ref,
		OwnerID:    opts.OwnerID,
		Moods:      opts.Moods,
		PlaylistID: opts.PlaylistID,
	}, nil)
	if res != nil {
		item.SongID = res.Song.ID()
		item.Title = res.Song.Title
		item.Profile = res.Acquisition.Profile
		item.Attempts = res.Acquisition.Attempts
	}
	if err != nil {
		item.Error = errorText(ctx, err)
		if attempts, ok := acquire.AttemptsOf(err); ok {
			item.Attempts = attempts
		}
		return item
	}

	item.Success = true
	return item
}

func errorText(ctx context.Context, err error) string {
	if ctx.Err() != nil {
		return "cancelled"
	}
	return err.Error()
}

// uniqueReferences trims input lines, dropping blanks, comments and repeats while keeping order.
func uniqueReferences(references []string) []string {
	seen := make(map[string]bool, len(references))
	refs := make([]string, 0, len(references))
	for _, r := range references {
		r = strings.TrimSpace(r)
		if r == "" || strings.HasPrefix(r, "#") || seen[r] {
			continue
		}
		seen[r] = true
		refs = append(refs, r)
	}
	return refs
}
