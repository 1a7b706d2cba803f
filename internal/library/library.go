// Package library stores audio files in the upload directory and keeps their records in step.
//
// Every stored file is named after its song id, optionally followed by an extension, so a song's
// file is found by stem rather than by a stored path.
package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nexus/internal/models"
	"github.com/desertthunder/nexus/internal/shared"
)

// AllowedExtensions are the upload formats accepted by [Library.Upload].
var AllowedExtensions = []string{".mp3", ".wav", ".ogg", ".mpeg", ".m4a"}

// DurationFiller propagates a discovered duration to playlist snapshots of a song.
type DurationFiller interface {
	FillSongDuration(songID string, duration float64) (int64, error)
}

// Library manages stored songs.
type Library struct {
	songs  models.Repository[*models.Song]
	dir    string
	prober Prober
	logger *log.Logger
}

// New creates a Library over the upload directory dir. prober may be nil.
func New(songs models.Repository[*models.Song], dir string, prober Prober, logger *log.Logger) *Library {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Library{songs: songs, dir: dir, prober: prober, logger: logger}
}

// Dir is the upload directory.
func (l *Library) Dir() string {
	return l.dir
}

// UploadRequest is one file to add to the library.
type UploadRequest struct {
	Filename string
	Body     io.Reader
	OwnerID  string
	Moods    []string
}

// IsAllowed reports whether filename has an accepted upload extension, ignoring case.
func IsAllowed(filename string) bool {
	return slices.Contains(AllowedExtensions, strings.ToLower(filepath.Ext(filename)))
}

// Upload stores the body as <id><ext> and registers it.
//
// The record keeps the caller's filename for display. A missing prober or a failed probe leaves the duration unset.
func (l *Library) Upload(ctx context.Context, req UploadRequest) (*models.Song, error) {
	name := filepath.Base(strings.TrimSpace(req.Filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return nil, fmt.Errorf("%w: filename is required", shared.ErrInvalidInput)
	}
	if !IsAllowed(name) {
		return nil, fmt.Errorf("%w: %s", shared.ErrUnsupportedType, filepath.Ext(name))
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	id := shared.GenerateID()
	stored := id + strings.ToLower(filepath.Ext(name))
	path := filepath.Join(l.dir, stored)

	if err := writeFile(path, req.Body); err != nil {
		return nil, err
	}

	song := models.NewSong(id)
	song.Filename = name
	song.OriginalFilename = stored
	song.Title = strings.TrimSuffix(name, filepath.Ext(name))
	song.OwnerID = req.OwnerID
	song.Moods = NormalizeMoods(req.Moods...)
	song.Duration = l.probe(ctx, path)

	if err := l.songs.Create(song); err != nil {
		l.discard(path)
		return nil, fmt.Errorf("failed to register upload: %w", err)
	}

	l.logger.Info("uploaded song", "id", id, "filename", name, "owner", req.OwnerID)
	return song, nil
}

// Register persists song for a file already in the upload directory. The file is removed if that fails.
func (l *Library) Register(song *models.Song) error {
	if err := l.songs.Create(song); err != nil {
		if rmErr := RemoveStem(l.dir, song.ID(), ""); rmErr != nil {
			l.logger.Warn("failed to remove unregistered file", "id", song.ID(), "error", rmErr)
		}
		return err
	}
	return nil
}

// Get returns the record of a song.
func (l *Library) Get(id string) (*models.Song, error) {
	return l.songs.Get(id)
}

// List returns songs, optionally restricted to an owner and a mood.
func (l *Library) List(ownerID, mood string) ([]*models.Song, error) {
	criteria := map[string]any{}
	if ownerID != "" {
		criteria["owner_id"] = ownerID
	}
	if moods := NormalizeMoods(mood); len(moods) > 0 {
		criteria["mood"] = moods[0]
	}
	return l.songs.List(criteria)
}

// Path locates the stored file of a song id.
func (l *Library) Path(id string) (string, error) {
	if !shared.IsValidID(id) {
		return "", fmt.Errorf("%w: %s", shared.ErrSongNotFound, id)
	}
	path, err := Locate(l.dir, id)
	if errors.Is(err, shared.ErrFileNotFound) {
		return "", fmt.Errorf("%w: %s", shared.ErrSongNotFound, id)
	}
	return path, err
}

// Delete removes the song record and its stored file.
func (l *Library) Delete(id string) error {
	if err := l.songs.Delete(id); err != nil {
		return err
	}
	if err := RemoveStem(l.dir, id, ""); err != nil {
		l.logger.Warn("failed to remove song file", "id", id, "error", err)
	}
	return nil
}

// BackfillReport summarises a [Library.BackfillDurations] run.
type BackfillReport struct {
	Checked   int
	Updated   int
	Missing   int
	Failed    int
	Snapshots int64
}

// BackfillDurations probes songs without a duration and stores what it finds,
// copying each result into playlist snapshots when playlists is non-nil.
func (l *Library) BackfillDurations(ctx context.Context, playlists DurationFiller) (*BackfillReport, error) {
	if l.prober == nil {
		return nil, fmt.Errorf("%w: no duration prober configured", shared.ErrDependencyMissing)
	}

	songs, err := l.songs.List(nil)
	if err != nil {
		return nil, err
	}

	report := &BackfillReport{}
	for _, song := range songs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if song.Duration != nil {
			continue
		}
		report.Checked++

		path, err := Locate(l.dir, song.ID())
		if err != nil {
			report.Missing++
			l.logger.Warn("file not found on disk", "id", song.ID(), "filename", song.Filename)
			continue
		}

		d := l.probe(ctx, path)
		if d == nil {
			report.Failed++
			continue
		}

		song.Duration = d
		if err := l.songs.Update(song); err != nil {
			report.Failed++
			l.logger.Error("failed to store duration", "id", song.ID(), "error", err)
			continue
		}
		report.Updated++

		if playlists != nil {
			n, err := playlists.FillSongDuration(song.ID(), *d)
			if err != nil {
				l.logger.Error("failed to update playlist snapshots", "id", song.ID(), "error", err)
				continue
			}
			report.Snapshots += n
		}
	}
	return report, nil
}

func (l *Library) probe(ctx context.Context, path string) *float64 {
	if l.prober == nil {
		return nil
	}
	d, err := l.prober.Duration(ctx, path)
	if err != nil || d <= 0 {
		l.logger.Debug("could not read duration", "file", filepath.Base(path), "error", err)
		return nil
	}
	return &d
}

func (l *Library) discard(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		l.logger.Warn("failed to remove file", "path", path, "error", err)
	}
}

func writeFile(path string, body io.Reader) error {
	if body == nil {
		return fmt.Errorf("%w: file body is required", shared.ErrInvalidInput)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to close %s: %w", filepath.Base(path), err)
	}
	return nil
}
