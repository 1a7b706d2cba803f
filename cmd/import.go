package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/desertthunder/nexus/internal/acquire"
	"github.com/desertthunder/nexus/internal/shared"
	"github.com/desertthunder/nexus/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Search prints the catalog candidates for a query.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	query := cmd.StringArg("query")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("%w: search query is required", shared.ErrMissingArgument)
	}

	a, err := r.newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	candidates, err := a.importer.Search(ctx, query, nil)
	if err != nil {
		return withHint(err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(candidates, true)
	}
	if len(candidates) == 0 {
		return r.writePlain("No results for %q\n", query)
	}

	rows := make([][]string, len(candidates))
	for i, c := range candidates {
		rows[i] = []string{strconv.Itoa(i + 1), c.Title, c.Artist, c.Duration, c.Reference}
	}
	return r.writePlain("%s\n", renderTable(
		[]string{"#", "Title", "Artist", "Duration", "Reference"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
	))
}

// Import acquires a single reference, or every reference in --file, into the library.
func (r *Runner) Import(ctx context.Context, cmd *cli.Command) error {
	reference := strings.TrimSpace(cmd.StringArg("reference"))
	file := cmd.String("file")
	if reference == "" && file == "" {
		return fmt.Errorf("%w: a reference or --file is required", shared.ErrMissingArgument)
	}
	if reference != "" && file != "" {
		return fmt.Errorf("%w: cannot specify both a reference and --file", shared.ErrInvalidArgument)
	}

	a, err := r.newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if file != "" {
		return r.bulkImport(ctx, cmd, a.importer, file)
	}

	r.logger.Info("starting import", "reference", reference, "credentials", a.creds.String())
	r.writePlain("Importing %s\n\n", reference)

	progressCh := make(chan tasks.ProgressUpdate, 50)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.printProgress(progressCh)
	}()

	result, err := a.importer.Import(ctx, tasks.ImportRequest{
		Reference:  reference,
		OwnerID:    cmd.String("owner"),
		Moods:      cmd.StringSlice("moods"),
		PlaylistID: cmd.String("playlist"),
	}, progressCh)
	close(progressCh)
	wg.Wait()

	if result == nil {
		return withHint(err)
	}

	if cmd.Bool("json") {
		if err := r.writeJSON(result.Song, true); err != nil {
			return err
		}
		return err
	}

	song := result.Song
	r.writePlain("\n")
	r.writePlainHeader("Import Complete!")
	r.writePlain("Title: %s\n", song.Title)
	r.writePlain("Artist: %s\n", song.Artist)
	r.writePlain("File: %s\n", song.Filename)
	r.writePlain("ID: %s\n", song.ID())
	if song.Duration != nil {
		r.writePlain("Duration: %s\n", shared.FormatDuration(int(*song.Duration)))
	}
	if len(song.Moods) > 0 {
		r.writePlain("Moods: %s\n", strings.Join(song.Moods, ", "))
	}
	r.writePlain("Client: %s after %d attempt(s)\n", result.Acquisition.Profile, result.Acquisition.Attempts)
	if result.AddedToPlaylist {
		r.writePlain("Added to playlist %s\n", cmd.String("playlist"))
	}
	return err
}

func (r *Runner) bulkImport(ctx context.Context, cmd *cli.Command, importer *tasks.Importer, file string) error {
	references, err := readReferences(file)
	if err != nil {
		return err
	}

	progressCh := make(chan tasks.ProgressUpdate, 50)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.printProgress(progressCh)
	}()

	result, err := importer.BulkImport(ctx, progressCh, references, tasks.BulkImportOpts{
		OwnerID:      cmd.String("owner"),
		Moods:        cmd.StringSlice("moods"),
		PlaylistID:   cmd.String("playlist"),
		NumWorkers:   int(cmd.Int("workers")),
		RateLimit:    cmd.Float("rate"),
		ManifestPath: cmd.String("manifest"),
	})
	close(progressCh)
	wg.Wait()

	if result == nil {
		return err
	}

	if cmd.Bool("json") {
		if jsonErr := r.writeJSON(result, true); jsonErr != nil {
			return jsonErr
		}
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Bulk Import Complete!")
	r.writePlain("Imported: %d/%d\n", result.Succeeded, result.Total)
	if result.Failed > 0 {
		r.writePlain("\nFailed %d:\n", result.Failed)
		for _, item := range result.Results {
			if !item.Success {
				r.writePlain("  - %s: %s\n", item.Reference, item.Error)
			}
		}
	}
	if result.ManifestPath != "" {
		r.writePlain("\nManifest: %s\n", result.ManifestPath)
	}
	return err
}

func (r *Runner) printProgress(progressCh <-chan tasks.ProgressUpdate) {
	for update := range progressCh {
		switch update.Phase {
		case tasks.Download:
			if ev, ok := update.Data.(acquire.Event); ok && ev.Kind == acquire.DownloadProgress {
				r.logger.Debug(update.Message)
				continue
			}
			r.writePlain("⬇ %s\n", update.Message)
		case tasks.Backoff:
			r.writePlain("  %s\n", update.Message)
		case tasks.Register, tasks.AddToPlaylist:
			r.writePlain("✓ %s\n", update.Message)
		case tasks.BulkImport:
			r.writePlain("[%d/%d] %s\n", update.Step, update.Total, update.Message)
		case tasks.Failed:
			r.writePlain("✗ %s\n", update.Message)
		default:
			r.writePlain("%s\n", update.Message)
		}
	}
}

// readReferences reads one reference per line. Blank lines and # comments are dropped by the importer.
func readReferences(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open reference file: %w", err)
	}
	defer f.Close()

	var references []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		references = append(references, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read reference file: %w", err)
	}
	return references, nil
}

// withHint appends the remediation text of an acquisition error.
func withHint(err error) error {
	if hint := acquire.HintFor(err); hint != "" {
		return fmt.Errorf("%w\n%s", err, hint)
	}
	return err
}
