package tasks

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/desertthunder/nexus/internal/acquire"
	"github.com/desertthunder/nexus/internal/library"
	"github.com/desertthunder/nexus/internal/models"
	"github.com/desertthunder/nexus/internal/repositories"
	"github.com/desertthunder/nexus/internal/shared"
	tu "github.com/desertthunder/nexus/internal/testing"
)

const testRef = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

type fixture struct {
	db         *sql.DB
	dir        string
	catalog    *tu.FakeCatalog
	downloader *tu.FakeDownloader
	songs      *repositories.SongRepository
	playlists  *repositories.PlaylistRepository
	importer   *Importer
}

func setupImporter(t *testing.T, creds *acquire.CredentialBundle) *fixture {
	t.Helper()

	f := &fixture{
		db:  tu.NewTestDB(t),
		dir: filepath.Join(t.TempDir(), "uploads"),
		catalog: &tu.FakeCatalog{Entries: []acquire.CatalogEntry{
			{ID: "dQw4w9WgXcQ", Title: "Never Gonna Give You Up", Artist: "Rick Astley"},
			{ID: "yPYZpwSpKmA", Title: "Together Forever"},
		}},
		downloader: &tu.FakeDownloader{Meta: acquire.SourceMetadata{Title: "Never Gonna Give You Up", Artist: "Rick Astley"}},
	}
	f.songs = repositories.NewSongRepository(f.db)
	f.playlists = repositories.NewPlaylistRepository(f.db)

	f.importer = NewImporter(ImporterOpts{
		Resolver:    acquire.NewResolver(f.catalog, acquire.ResolverOptions{}),
		Acquirer:    tu.NewTestOrchestrator(t, f.downloader, f.dir),
		Songs:       library.New(f.songs, f.dir, nil, nil),
		Playlists:   f.playlists,
		Credentials: creds,
	})
	return f
}

func collect(progress chan ProgressUpdate) []ProgressUpdate {
	var updates []ProgressUpdate
	for {
		select {
		case u := <-progress:
			updates = append(updates, u)
		default:
			return updates
		}
	}
}

func phases(updates []ProgressUpdate) []Phase {
	out := make([]Phase, len(updates))
	for i, u := range updates {
		out[i] = u.Phase
	}
	return out
}

func TestImporterSearch(t *testing.T) {
	t.Run("returns candidates", func(t *testing.T) {
		f := setupImporter(t, nil)
		progress := make(chan ProgressUpdate, 4)

		got, err := f.importer.Search(context.Background(), "rick astley", progress)
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(got) != 2 || got[0].ExternalID != "dQw4w9WgXcQ" {
			t.Errorf("unexpected candidates: %+v", got)
		}
		if got[1].Artist != acquire.UnknownArtist {
			t.Errorf("expected default artist, got %q", got[1].Artist)
		}
		if updates := collect(progress); len(updates) != 1 || updates[0].Phase != SearchCatalog {
			t.Errorf("unexpected updates: %+v", updates)
		}
	})

	t.Run("blank query makes no outbound call", func(t *testing.T) {
		f := setupImporter(t, nil)

		_, err := f.importer.Search(context.Background(), "   ", nil)
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if calls := f.catalog.Calls(); len(calls) != 0 {
			t.Errorf("expected no catalog calls, got %v", calls)
		}
	})

	t.Run("not configured", func(t *testing.T) {
		_, err := NewImporter(ImporterOpts{}).Search(context.Background(), "x", nil)
		if !errors.Is(err, shared.ErrDependencyMissing) {
			t.Errorf("expected ErrDependencyMissing, got %v", err)
		}
	})
}

func TestImporterImport(t *testing.T) {
	t.Run("registers the acquired song", func(t *testing.T) {
		f := setupImporter(t, nil)
		progress := make(chan ProgressUpdate, 32)

		res, err := f.importer.Import(context.Background(), ImportRequest{
			Reference: testRef,
			OwnerID:   "user-1",
			Moods:     []string{"Happy, chill", "happy"},
		}, progress)
		if err != nil {
			t.Fatalf("Import failed: %v", err)
		}

		song := res.Song
		if song.Filename != "Never Gonna Give You Up.m4a" {
			t.Errorf("Filename = %q", song.Filename)
		}
		if song.OriginalFilename != song.ID()+".m4a" {
			t.Errorf("OriginalFilename = %q", song.OriginalFilename)
		}
		if song.OwnerID != "user-1" || song.SourceReference != testRef {
			t.Errorf("unexpected song: %+v", song)
		}
		if len(song.Moods) != 2 || song.Moods[0] != "happy" || song.Moods[1] != "chill" {
			t.Errorf("Moods = %v", song.Moods)
		}
		if res.Acquisition.Attempts != 1 || res.AddedToPlaylist {
			t.Errorf("unexpected result: %+v", res)
		}

		stored, err := f.songs.Get(song.ID())
		if err != nil {
			t.Fatalf("song not persisted: %v", err)
		}
		if stored.Title != "Never Gonna Give You Up" || stored.Artist != "Rick Astley" {
			t.Errorf("unexpected stored song: %+v", stored)
		}
		tu.AssertFileExists(t, filepath.Join(f.dir, song.OriginalFilename))

		got := phases(collect(progress))
		if len(got) < 3 || got[0] != Acquire || got[len(got)-1] != Register {
			t.Errorf("unexpected phases: %v", got)
		}
	})

	t.Run("adds to playlist", func(t *testing.T) {
		f := setupImporter(t, nil)
		pl := models.NewPlaylist("Mix", "", "user-1")
		if err := f.playlists.Create(pl); err != nil {
			t.Fatalf("failed to create playlist: %v", err)
		}

		res, err := f.importer.Import(context.Background(), ImportRequest{Reference: testRef, OwnerID: "user-1", PlaylistID: pl.ID()}, nil)
		if err != nil {
			t.Fatalf("Import failed: %v", err)
		}
		if !res.AddedToPlaylist {
			t.Error("expected song to be added to playlist")
		}

		stored, err := f.playlists.Get(pl.ID())
		if err != nil {
			t.Fatalf("failed to load playlist: %v", err)
		}
		if !stored.Contains(res.Song.ID()) {
			t.Errorf("playlist does not contain %s", res.Song.ID())
		}
	})

	t.Run("missing playlist keeps the song", func(t *testing.T) {
		f := setupImporter(t, nil)

		res, err := f.importer.Import(context.Background(), ImportRequest{Reference: testRef, PlaylistID: "nope"}, nil)
		if !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Fatalf("expected ErrPlaylistNotFound, got %v", err)
		}
		if res == nil || res.Song == nil {
			t.Fatal("expected the registered song alongside the error")
		}
		if _, err := f.songs.Get(res.Song.ID()); err != nil {
			t.Errorf("song should stay registered: %v", err)
		}
	})

	t.Run("exhausted acquisition registers nothing", func(t *testing.T) {
		f := setupImporter(t, nil)
		for range acquire.MaxProfiles {
			f.downloader.Script = append(f.downloader.Script, tu.Fail("ERROR: HTTP Error 403: Forbidden"))
		}
		progress := make(chan ProgressUpdate, 64)

		_, err := f.importer.Import(context.Background(), ImportRequest{Reference: testRef}, progress)
		if kind, ok := acquire.KindOf(err); !ok || kind != acquire.KindExhausted {
			t.Fatalf("expected exhausted error, got %v", err)
		}
		if attempts, _ := acquire.AttemptsOf(err); attempts != acquire.MaxProfiles {
			t.Errorf("attempts = %d", attempts)
		}

		songs, err := f.songs.List(nil)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(songs) != 0 {
			t.Errorf("expected no songs, got %d", len(songs))
		}

		updates := collect(progress)
		if last := updates[len(updates)-1]; last.Phase != Failed {
			t.Errorf("last update = %+v", last)
		}
	})

	t.Run("acquisition timeout", func(t *testing.T) {
		f := setupImporter(t, nil)
		f.importer.timeout = 20 * time.Millisecond
		f.downloader.Script = []tu.DownloadFunc{func(acquire.DownloadRequest) (*acquire.SourceMetadata, error) {
			time.Sleep(100 * time.Millisecond)
			return nil, errors.New("ERROR: Read timed out")
		}}

		_, err := f.importer.Import(context.Background(), ImportRequest{Reference: testRef}, nil)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline exceeded, got %v", err)
		}
		if got := len(f.downloader.Requests()); got != 1 {
			t.Errorf("expected a single attempt, got %d", got)
		}
	})

	t.Run("credential rejection aborts", func(t *testing.T) {
		f := setupImporter(t, acquire.NewCredentialBundle("SID=abc; HSID=def"))
		f.downloader.Script = []tu.DownloadFunc{tu.Fail("ERROR: The provided YouTube account cookies are no longer valid.")}

		_, err := f.importer.Import(context.Background(), ImportRequest{Reference: testRef}, nil)
		if !errors.Is(err, shared.ErrCredentialsRejected) {
			t.Fatalf("expected ErrCredentialsRejected, got %v", err)
		}
		if n := len(f.downloader.Requests()); n != 1 {
			t.Errorf("expected a single attempt, got %d", n)
		}
		if !f.importer.Credentialed() {
			t.Error("expected credentialed importer")
		}
	})

	t.Run("registration failure removes the file", func(t *testing.T) {
		f := setupImporter(t, nil)
		f.db.Close()

		_, err := f.importer.Import(context.Background(), ImportRequest{Reference: testRef}, nil)
		if err == nil {
			t.Fatal("expected registration error")
		}

		entries, _ := os.ReadDir(f.dir)
		if len(entries) != 0 {
			t.Errorf("expected empty upload dir, found %d files", len(entries))
		}
	})

	t.Run("invalid reference", func(t *testing.T) {
		f := setupImporter(t, nil)

		_, err := f.importer.Import(context.Background(), ImportRequest{Reference: "not a link"}, nil)
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if n := len(f.downloader.Requests()); n != 0 {
			t.Errorf("expected no download attempts, got %d", n)
		}
	})

	t.Run("not configured", func(t *testing.T) {
		_, err := NewImporter(ImporterOpts{}).Import(context.Background(), ImportRequest{Reference: testRef}, nil)
		if !errors.Is(err, shared.ErrDependencyMissing) {
			t.Errorf("expected ErrDependencyMissing, got %v", err)
		}
	})
}

func TestBulkImport(t *testing.T) {
	t.Run("imports unique references and writes a manifest", func(t *testing.T) {
		f := setupImporter(t, nil)
		manifest := filepath.Join(t.TempDir(), "out", "manifest.json")
		progress := make(chan ProgressUpdate, 16)

		res, err := f.importer.BulkImport(context.Background(), progress, []string{
			testRef,
			"",
			"# from the old library",
			"not a link",
			testRef,
		}, BulkImportOpts{OwnerID: "user-1", RateLimit: 100, ManifestPath: manifest})
		if err != nil {
			t.Fatalf("BulkImport failed: %v", err)
		}

		if res.Total != 2 || res.Succeeded != 1 || res.Failed != 1 {
			t.Errorf("unexpected totals: %+v", res)
		}
		if res.ManifestPath != manifest {
			t.Errorf("ManifestPath = %q", res.ManifestPath)
		}

		var written BulkImportResult
		if err := json.Unmarshal([]byte(tu.MustReadFile(t, manifest)), &written); err != nil {
			t.Fatalf("invalid manifest: %v", err)
		}
		if written.Total != 2 || len(written.Results) != 2 {
			t.Errorf("unexpected manifest: %+v", written)
		}

		for _, item := range res.Results {
			switch item.Reference {
			case testRef:
				if !item.Success || item.SongID == "" || item.Attempts != 1 {
					t.Errorf("unexpected success item: %+v", item)
				}
			case "not a link":
				if item.Success || item.Error == "" {
					t.Errorf("unexpected failure item: %+v", item)
				}
			default:
				t.Errorf("unexpected reference %q", item.Reference)
			}
		}

		if updates := collect(progress); len(updates) != 2 {
			t.Errorf("expected one update per reference, got %d", len(updates))
		}
	})

	t.Run("no references", func(t *testing.T) {
		f := setupImporter(t, nil)
		_, err := f.importer.BulkImport(context.Background(), nil, []string{" ", "#"}, BulkImportOpts{})
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		f := setupImporter(t, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		res, err := f.importer.BulkImport(ctx, nil, []string{testRef, "yPYZpwSpKmA"}, BulkImportOpts{})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if res.Failed != 2 {
			t.Errorf("expected both references to fail, got %+v", res)
		}
	})
}

func TestEventUpdate(t *testing.T) {
	tests := map[acquire.EventKind]Phase{
		acquire.AttemptStarted:   Download,
		acquire.DownloadProgress: Download,
		acquire.AttemptFailed:    Download,
		acquire.BackingOff:       Backoff,
		acquire.Succeeded:        Download,
		acquire.Aborted:          Failed,
		acquire.Exhausted:        Failed,
	}
	for kind, want := range tests {
		u := eventUpdate(acquire.Event{Kind: kind, Attempt: 2, Total: 6, Profile: "ios"})
		if u.Phase != want {
			t.Errorf("%s: phase = %s, want %s", kind, u.Phase, want)
		}
		if u.Step != 2 || u.Total != 6 || u.Message == "" {
			t.Errorf("%s: unexpected update %+v", kind, u)
		}
	}
}

func TestSongFromResult(t *testing.T) {
	d := 212.0
	res := &acquire.Result{
		FileID:          "abc",
		Path:            "/uploads/abc.webm",
		Ext:             "webm",
		Title:           "Track",
		Artist:          "Artist",
		DurationSeconds: &d,
		SourceReference: testRef,
		Tags:            []string{"focus"},
	}

	song := songFromResult(res, "user-2")
	if song.ID() != "abc" || song.URL != "/api/songs/abc" {
		t.Errorf("unexpected identity: %s %s", song.ID(), song.URL)
	}
	if song.Filename != "Track.webm" || song.OriginalFilename != "abc.webm" {
		t.Errorf("unexpected filenames: %q %q", song.Filename, song.OriginalFilename)
	}
	if song.Duration == nil || *song.Duration != 212 || song.Duration == res.DurationSeconds {
		t.Errorf("duration should be copied, got %v", song.Duration)
	}
	if err := song.Validate(); err != nil {
		t.Errorf("song should validate: %v", err)
	}
}

func TestUniqueReferences(t *testing.T) {
	got := uniqueReferences([]string{" a ", "b", "", "a", "# c", "b"})
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("uniqueReferences() = %v", got)
	}
}
