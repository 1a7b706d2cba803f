package tasks

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nexus/internal/acquire"
	"github.com/desertthunder/nexus/internal/library"
	"github.com/desertthunder/nexus/internal/models"
	"github.com/desertthunder/nexus/internal/shared"
)

// Searcher resolves free-text queries into candidates.
type Searcher interface {
	Resolve(ctx context.Context, query string) ([]acquire.SearchCandidate, error)
}

// Acquirer downloads a reference into local storage.
type Acquirer interface {
	AcquireWithProgress(ctx context.Context, reference string, creds *acquire.CredentialBundle, tags []string, events chan<- acquire.Event) (*acquire.Result, error)
}

// Registrar persists a song whose file is already stored. It must remove the file when persistence fails.
type Registrar interface {
	Register(song *models.Song) error
}

// PlaylistAdder appends songs to playlists.
type PlaylistAdder interface {
	AddSong(playlistID string, ref models.SongRef) (bool, error)
}

// ImporterOpts holds the collaborators of an [Importer]. Playlists and Logger are optional.
//
// A positive Timeout bounds each acquisition, including every retry and backoff.
type ImporterOpts struct {
	Resolver    Searcher
	Acquirer    Acquirer
	Songs       Registrar
	Playlists   PlaylistAdder
	Credentials *acquire.CredentialBundle
	Timeout     time.Duration
	Logger      *log.Logger
}

// ImportRequest selects what to import and how to tag it.
type ImportRequest struct {
	Reference  string
	OwnerID    string
	Moods      []string
	PlaylistID string
}

// ImportResult is a completed import.
type ImportResult struct {
	Song            *models.Song
	Acquisition     *acquire.Result
	AddedToPlaylist bool
}

// Importer searches the catalog and imports chosen references into the library.
//
// The credential bundle is fixed at construction and shared read-only by every import.
type Importer struct {
	resolver  Searcher
	acquirer  Acquirer
	songs     Registrar
	playlists PlaylistAdder
	creds     *acquire.CredentialBundle
	timeout   time.Duration
	logger    *log.Logger
}

// NewImporter creates a new Importer with the provided collaborators.
func NewImporter(opts ImporterOpts) *Importer {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Importer{
		resolver:  opts.Resolver,
		acquirer:  opts.Acquirer,
		songs:     opts.Songs,
		playlists: opts.Playlists,
		creds:     opts.Credentials,
		timeout:   opts.Timeout,
		logger:    logger,
	}
}

// Credentialed reports whether imports run with session credentials.
func (i *Importer) Credentialed() bool {
	return i.creds.Present()
}

// sendProgress sends a progress update through the channel without blocking.
func (i *Importer) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Search resolves query into at most ten candidates.
func (i *Importer) Search(ctx context.Context, query string, progress chan<- ProgressUpdate) ([]acquire.SearchCandidate, error) {
	if i.resolver == nil {
		return nil, fmt.Errorf("%w: search is not configured", shared.ErrDependencyMissing)
	}
	i.sendProgress(progress, searchUpdate(query))
	return i.resolver.Resolve(ctx, query)
}

// Import acquires req.Reference, registers the file as a song and optionally adds it to a playlist.
//
// Nothing is registered when acquisition fails, and the acquired file is removed when registration fails.
// A playlist failure is reported alongside the registered song.
func (i *Importer) Import(ctx context.Context, req ImportRequest, progress chan<- ProgressUpdate) (*ImportResult, error) {
	if i.acquirer == nil || i.songs == nil {
		return nil, fmt.Errorf("%w: import is not configured", shared.ErrDependencyMissing)
	}
	if req.PlaylistID != "" && i.playlists == nil {
		return nil, fmt.Errorf("%w: playlists are not configured", shared.ErrDependencyMissing)
	}

	moods := library.NormalizeMoods(req.Moods...)
	i.sendProgress(progress, acquireUpdate(req.Reference))

	events := make(chan acquire.Event, 16)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range events {
			i.sendProgress(progress, eventUpdate(ev))
		}
	}()

	acquireCtx := ctx
	if i.timeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	acquired, err := i.acquirer.AcquireWithProgress(acquireCtx, req.Reference, i.creds, moods, events)
	close(events)
	wg.Wait()

	if err != nil {
		i.sendProgress(progress, failedUpdate(err))
		return nil, err
	}

	song := songFromResult(acquired, req.OwnerID)
	if err := i.songs.Register(song); err != nil {
		i.logger.Error("failed to register acquired song", "id", song.ID(), "error", err)
		i.sendProgress(progress, failedUpdate(err))
		return nil, fmt.Errorf("failed to register song: %w", err)
	}
	i.sendProgress(progress, registerUpdate(song))
	i.logger.Info("imported song", "id", song.ID(), "title", song.Title, "owner", req.OwnerID, "attempts", acquired.Attempts)

	result := &ImportResult{Song: song, Acquisition: acquired}
	if req.PlaylistID == "" {
		return result, nil
	}

	added, err := i.playlists.AddSong(req.PlaylistID, song.Ref())
	if err != nil {
		return result, fmt.Errorf("imported %s but failed to add it to playlist: %w", song.ID(), err)
	}
	result.AddedToPlaylist = added
	i.sendProgress(progress, addToPlaylistUpdate(req.PlaylistID, added))
	return result, nil
}

// songFromResult maps an acquisition onto the song record that registers it.
func songFromResult(res *acquire.Result, ownerID string) *models.Song {
	song := models.NewSong(res.FileID)
	song.Filename = res.Filename()
	song.OriginalFilename = res.OriginalFilename()
	song.Title = res.Title
	song.Artist = res.Artist
	song.OwnerID = ownerID
	song.Moods = append([]string{}, res.Tags...)
	song.SourceReference = res.SourceReference
	if res.DurationSeconds != nil {
		d := *res.DurationSeconds
		song.Duration = &d
	}
	return song
}
