package library

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/desertthunder/nexus/internal/models"
	"github.com/desertthunder/nexus/internal/repositories"
	"github.com/desertthunder/nexus/internal/shared"
)

type fakeProber struct {
	duration float64
	err      error
	calls    []string
}

func (f *fakeProber) Duration(ctx context.Context, path string) (float64, error) {
	f.calls = append(f.calls, filepath.Base(path))
	return f.duration, f.err
}

// failingStore rejects every write.
type failingStore struct {
	models.Repository[*models.Song]
}

func (failingStore) Create(*models.Song) error { return errors.New("disk full") }

func setupLibrary(t *testing.T, prober Prober) (*Library, *repositories.SongRepository, *repositories.PlaylistRepository) {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	songs := repositories.NewSongRepository(db)
	return New(songs, t.TempDir(), prober, nil), songs, repositories.NewPlaylistRepository(db)
}

func TestIsPartial(t *testing.T) {
	tests := map[string]bool{
		"abc.m4a":            false,
		"abc.webm":           false,
		"abc.m4a.part":       true,
		"abc.M4A.PART":       true,
		"abc.webm.ytdl":      true,
		"abc.temp":           true,
		"abc.tmp":            true,
		"abc.f251.webm.part": true,
		"abc.part-Frag12":    true,
	}
	for name, want := range tests {
		if got := IsPartial(name); got != want {
			t.Errorf("IsPartial(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestStemFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"abc.m4a", "abc.m4a.part", "abc", "abcd.m4a", "xabc.m4a", "other.mp3"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "abc.d"), 0o755); err != nil {
		t.Fatal(err)
	}

	t.Run("matches stem exactly", func(t *testing.T) {
		paths, err := StemFiles(dir, "abc")
		if err != nil {
			t.Fatal(err)
		}
		var names []string
		for _, p := range paths {
			names = append(names, filepath.Base(p))
		}
		if want := []string{"abc", "abc.m4a", "abc.m4a.part"}; !slices.Equal(names, want) {
			t.Errorf("StemFiles() = %v, want %v", names, want)
		}
	})

	t.Run("missing directory", func(t *testing.T) {
		paths, err := StemFiles(filepath.Join(dir, "nope"), "abc")
		if err != nil || paths != nil {
			t.Errorf("StemFiles() = %v, %v", paths, err)
		}
	})

	t.Run("empty stem matches nothing", func(t *testing.T) {
		if paths, _ := StemFiles(dir, ""); len(paths) != 0 {
			t.Errorf("StemFiles(\"\") = %v", paths)
		}
	})
}

func TestLocate(t *testing.T) {
	dir := t.TempDir()
	write := func(name string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	write("s1.m4a.part")
	if _, err := Locate(dir, "s1"); !errors.Is(err, shared.ErrFileNotFound) {
		t.Errorf("a partial file should not be located, got %v", err)
	}

	write("s1.m4a")
	path, err := Locate(dir, "s1")
	if err != nil || filepath.Base(path) != "s1.m4a" {
		t.Errorf("Locate() = %q, %v", path, err)
	}

	t.Run("RemoveStem keeps the chosen file", func(t *testing.T) {
		if err := RemoveStem(dir, "s1", path); err != nil {
			t.Fatal(err)
		}
		paths, _ := StemFiles(dir, "s1")
		if len(paths) != 1 || paths[0] != path {
			t.Errorf("remaining files %v", paths)
		}

		if err := RemoveStem(dir, "s1", ""); err != nil {
			t.Fatal(err)
		}
		if paths, _ := StemFiles(dir, "s1"); len(paths) != 0 {
			t.Errorf("remaining files %v", paths)
		}
	})
}

func TestNormalizeMoods(t *testing.T) {
	got := NormalizeMoods(" Chill, HAPPY ,,chill", "late   night", "")
	want := []string{"chill", "happy", "late night"}
	if !slices.Equal(got, want) {
		t.Errorf("NormalizeMoods() = %q, want %q", got, want)
	}
	if got := NormalizeMoods(); got == nil || len(got) != 0 {
		t.Errorf("NormalizeMoods() = %#v, want empty slice", got)
	}
	if MoodLabel("late night") != "Late Night" {
		t.Errorf("MoodLabel() = %q", MoodLabel("late night"))
	}
}

func TestParseProbeDuration(t *testing.T) {
	t.Run("format duration", func(t *testing.T) {
		d, err := parseProbeDuration([]byte(`{"format":{"duration":"243.600000"},"streams":[]}`))
		if err != nil || d != 243.6 {
			t.Errorf("parseProbeDuration() = %v, %v", d, err)
		}
	})

	t.Run("stream fallback", func(t *testing.T) {
		d, err := parseProbeDuration([]byte(`{"format":{"duration":"N/A"},"streams":[{"codec_type":"video","duration":"9"},{"codec_type":"audio","duration":"61.5"}]}`))
		if err != nil || d != 61.5 {
			t.Errorf("parseProbeDuration() = %v, %v", d, err)
		}
	})

	t.Run("no duration", func(t *testing.T) {
		if _, err := parseProbeDuration([]byte(`{"format":{}}`)); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("missing binary", func(t *testing.T) {
		_, err := FFprobe{Binary: "nexus-no-such-ffprobe"}.Duration(context.Background(), "a.mp3")
		if !errors.Is(err, shared.ErrDependencyMissing) {
			t.Errorf("expected ErrDependencyMissing, got %v", err)
		}
	})
}

func TestUpload(t *testing.T) {
	ctx := context.Background()

	t.Run("stores and registers", func(t *testing.T) {
		prober := &fakeProber{duration: 181.5}
		lib, songs, _ := setupLibrary(t, prober)

		song, err := lib.Upload(ctx, UploadRequest{
			Filename: "Night Drive.MP3",
			Body:     strings.NewReader("audio bytes"),
			OwnerID:  "user-1",
			Moods:    []string{"Chill, night"},
		})
		if err != nil {
			t.Fatalf("Upload() error = %v", err)
		}

		if song.Filename != "Night Drive.MP3" || song.OriginalFilename != song.ID()+".mp3" {
			t.Errorf("unexpected names %q / %q", song.Filename, song.OriginalFilename)
		}
		if song.URL != "/api/songs/"+song.ID() || song.Duration == nil || *song.Duration != 181.5 {
			t.Errorf("unexpected song %+v", song)
		}
		if !slices.Equal(song.Moods, []string{"chill", "night"}) {
			t.Errorf("Moods = %v", song.Moods)
		}

		data, err := os.ReadFile(filepath.Join(lib.Dir(), song.OriginalFilename))
		if err != nil || string(data) != "audio bytes" {
			t.Errorf("stored file = %q, %v", data, err)
		}

		stored, err := songs.Get(song.ID())
		if err != nil || stored.OwnerID != "user-1" {
			t.Errorf("Get() = %+v, %v", stored, err)
		}

		path, err := lib.Path(song.ID())
		if err != nil || filepath.Base(path) != song.OriginalFilename {
			t.Errorf("Path() = %q, %v", path, err)
		}
	})

	t.Run("probe failure leaves duration unset", func(t *testing.T) {
		lib, _, _ := setupLibrary(t, &fakeProber{err: errors.New("invalid data")})
		song, err := lib.Upload(ctx, UploadRequest{Filename: "a.wav", Body: strings.NewReader("x")})
		if err != nil || song.Duration != nil {
			t.Errorf("Upload() = %+v, %v", song, err)
		}
	})

	t.Run("rejects unsupported types", func(t *testing.T) {
		lib, _, _ := setupLibrary(t, nil)
		for _, name := range []string{"a.flac", "a.exe", "noext"} {
			_, err := lib.Upload(ctx, UploadRequest{Filename: name, Body: strings.NewReader("x")})
			if !errors.Is(err, shared.ErrUnsupportedType) {
				t.Errorf("Upload(%q) error = %v", name, err)
			}
		}
		if _, err := lib.Upload(ctx, UploadRequest{Filename: "  ", Body: strings.NewReader("x")}); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for blank name, got %v", err)
		}

		entries, _ := os.ReadDir(lib.Dir())
		if len(entries) != 0 {
			t.Errorf("rejected uploads left %d files", len(entries))
		}
	})

	t.Run("registration failure removes file", func(t *testing.T) {
		lib := New(failingStore{}, t.TempDir(), nil, nil)
		if _, err := lib.Upload(ctx, UploadRequest{Filename: "a.ogg", Body: strings.NewReader("x")}); err == nil {
			t.Fatal("expected error")
		}
		entries, _ := os.ReadDir(lib.Dir())
		if len(entries) != 0 {
			t.Errorf("orphaned files: %d", len(entries))
		}
	})
}

func TestLibrary(t *testing.T) {
	ctx := context.Background()

	t.Run("Delete removes record and file", func(t *testing.T) {
		lib, songs, _ := setupLibrary(t, nil)
		song, err := lib.Upload(ctx, UploadRequest{Filename: "a.m4a", Body: strings.NewReader("x")})
		if err != nil {
			t.Fatal(err)
		}

		if err := lib.Delete(song.ID()); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, err := songs.Get(song.ID()); !errors.Is(err, shared.ErrSongNotFound) {
			t.Errorf("record still present: %v", err)
		}
		if _, err := lib.Path(song.ID()); !errors.Is(err, shared.ErrSongNotFound) {
			t.Errorf("file still present: %v", err)
		}
	})

	t.Run("Path rejects non ids", func(t *testing.T) {
		lib, _, _ := setupLibrary(t, nil)
		if _, err := lib.Path("../secret"); !errors.Is(err, shared.ErrSongNotFound) {
			t.Errorf("expected ErrSongNotFound, got %v", err)
		}
	})

	t.Run("List filters by owner and mood", func(t *testing.T) {
		lib, _, _ := setupLibrary(t, nil)
		for _, req := range []UploadRequest{
			{Filename: "a.mp3", OwnerID: "u1", Moods: []string{"chill"}},
			{Filename: "b.mp3", OwnerID: "u1", Moods: []string{"happy"}},
			{Filename: "c.mp3", OwnerID: "u2", Moods: []string{"chill"}},
		} {
			req.Body = strings.NewReader("x")
			if _, err := lib.Upload(ctx, req); err != nil {
				t.Fatal(err)
			}
		}

		all, _ := lib.List("", "")
		mine, _ := lib.List("u1", "")
		chill, _ := lib.List("u1", " Chill ")
		if len(all) != 3 || len(mine) != 2 || len(chill) != 1 || chill[0].Filename != "a.mp3" {
			t.Errorf("List() = %d / %d / %d", len(all), len(mine), len(chill))
		}
	})

	t.Run("Register removes the file on failure", func(t *testing.T) {
		dir := t.TempDir()
		lib := New(failingStore{}, dir, nil, nil)
		id := shared.GenerateID()
		if err := os.WriteFile(filepath.Join(dir, id+".webm"), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}

		song := models.NewSong(id)
		song.Filename = "a.webm"
		song.OriginalFilename = id + ".webm"
		if err := lib.Register(song); err == nil {
			t.Fatal("expected error")
		}
		if paths, _ := StemFiles(dir, id); len(paths) != 0 {
			t.Errorf("orphaned files %v", paths)
		}
	})
}

func TestBackfillDurations(t *testing.T) {
	ctx := context.Background()
	prober := &fakeProber{}
	lib, songs, playlists := setupLibrary(t, prober)

	withFile, err := lib.Upload(ctx, UploadRequest{Filename: "a.mp3", Body: strings.NewReader("x")})
	if err != nil {
		t.Fatal(err)
	}
	known, err := lib.Upload(ctx, UploadRequest{Filename: "b.mp3", Body: strings.NewReader("x")})
	if err != nil {
		t.Fatal(err)
	}
	d := 100.0
	known.Duration = &d
	if err := songs.Update(known); err != nil {
		t.Fatal(err)
	}
	gone, err := lib.Upload(ctx, UploadRequest{Filename: "c.mp3", Body: strings.NewReader("x")})
	if err != nil {
		t.Fatal(err)
	}
	if err := RemoveStem(lib.Dir(), gone.ID(), ""); err != nil {
		t.Fatal(err)
	}

	playlist := models.NewPlaylist("Mix", "", "")
	if err := playlists.Create(playlist); err != nil {
		t.Fatal(err)
	}
	if _, err := playlists.AddSong(playlist.ID(), withFile.Ref()); err != nil {
		t.Fatal(err)
	}

	prober.duration = 42.5
	prober.calls = nil
	report, err := lib.BackfillDurations(ctx, playlists)
	if err != nil {
		t.Fatalf("BackfillDurations() error = %v", err)
	}

	if report.Checked != 2 || report.Updated != 1 || report.Missing != 1 || report.Snapshots != 1 {
		t.Errorf("unexpected report %+v", report)
	}
	if len(prober.calls) != 1 {
		t.Errorf("expected one probe, got %v", prober.calls)
	}

	stored, _ := songs.Get(withFile.ID())
	if stored.Duration == nil || *stored.Duration != 42.5 {
		t.Errorf("duration not stored: %+v", stored.Duration)
	}
	pl, _ := playlists.Get(playlist.ID())
	if pl.Songs[0].Duration == nil || *pl.Songs[0].Duration != 42.5 {
		t.Errorf("playlist snapshot not filled")
	}

	t.Run("requires a prober", func(t *testing.T) {
		lib, _, _ := setupLibrary(t, nil)
		if _, err := lib.BackfillDurations(ctx, nil); !errors.Is(err, shared.ErrDependencyMissing) {
			t.Errorf("expected ErrDependencyMissing, got %v", err)
		}
	})
}
