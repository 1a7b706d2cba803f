package acquire

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/nexus/internal/shared"
	"github.com/desertthunder/nexus/internal/ytdlp"
)

// writeFakeYtDlp writes an executable shell script standing in for yt-dlp.
// @DIR@ in body is replaced with a scratch directory the script can record into.
func writeFakeYtDlp(t *testing.T, body string) (bin, scratch string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on windows")
	}

	dir := t.TempDir()
	scratch = filepath.Join(dir, "scratch")
	if err := os.Mkdir(scratch, 0o755); err != nil {
		t.Fatalf("failed to create scratch dir: %v", err)
	}

	bin = filepath.Join(dir, "yt-dlp")
	script := "#!/bin/sh\n" + strings.ReplaceAll(body, "@DIR@", scratch)
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return bin, scratch
}

// downloadScript writes <stem>.webm where -o points, records the cookie jar and
// player client, then prints an info dict.
const downloadScript = `out=""
jar=""
client=""
while [ $# -gt 0 ]; do
  case "$1" in
    -o) out="$2"; shift ;;
    --cookies) jar="$2"; shift ;;
    --extractor-args) client="$2"; shift ;;
  esac
  shift
done
file=$(printf '%s' "$out" | sed 's/%(ext)s/webm/')
printf 'audio' > "$file"
if [ -n "$jar" ]; then cp "$jar" "@DIR@/jar.txt"; fi
printf '%s' "$client" > "@DIR@/client.txt"
echo '[download] 100% of 3.50MiB' >&2
echo '{"id":"abc","title":"M83 - Midnight City (Official Video)","track":"Midnight City","uploader":"M83VEVO","channel":"M83","duration":243,"ext":"m4a","requested_downloads":[{"filepath":"x.webm","ext":"webm"}]}'
`

func newScriptOrchestrator(t *testing.T, bin string) (*Orchestrator, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "uploads")
	o, err := NewOrchestrator(YtDlpDownloader{Client: &ytdlp.Client{Binary: bin}}, Options{
		Profiles:  DefaultProfiles(),
		UploadDir: dir,
		Sleep:     func(ctx context.Context, _ time.Duration) error { return ctx.Err() },
	})
	if err != nil {
		t.Fatalf("NewOrchestrator() error = %v", err)
	}
	return o, dir
}

func TestYtDlpCatalog(t *testing.T) {
	bin, _ := writeFakeYtDlp(t, `echo '{"entries":[`+
		`{"id":"aaaaaaaaaaa","title":"First","uploader":"Uploader One","channel":"Chan One","duration":61,`+
		`"thumbnails":[{"url":"https://i.example/small.jpg","width":120},{"url":"https://i.example/large.jpg","width":480},{"url":"https://i.example/mid.jpg","width":320}]},`+
		`{"id":"bbbbbbbbbbb","title":"Second","channel":"Chan Two","thumbnails":[{"url":"https://i.example/a.jpg"},{"url":"https://i.example/b.jpg"}]},`+
		`{"id":"ccccccccccc"}]}'
`)

	resolver := NewResolver(YtDlpCatalog{Client: &ytdlp.Client{Binary: bin}}, ResolverOptions{})
	got, err := resolver.Resolve(context.Background(), "midnight city")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(got))
	}

	t.Run("uploader is preferred as artist", func(t *testing.T) {
		if got[0].Artist != "Uploader One" || got[0].DurationSeconds != 61 {
			t.Errorf("unexpected candidate %+v", got[0])
		}
	})

	t.Run("channel is the artist fallback", func(t *testing.T) {
		if got[1].Artist != "Chan Two" {
			t.Errorf("expected channel as artist, got %q", got[1].Artist)
		}
	})

	t.Run("widest thumbnail wins", func(t *testing.T) {
		if got[0].ThumbnailURL != "https://i.example/large.jpg" {
			t.Errorf("unexpected thumbnail %q", got[0].ThumbnailURL)
		}
	})

	t.Run("last thumbnail without widths", func(t *testing.T) {
		if got[1].ThumbnailURL != "https://i.example/b.jpg" {
			t.Errorf("unexpected thumbnail %q", got[1].ThumbnailURL)
		}
	})

	t.Run("bare entry gets defaults", func(t *testing.T) {
		c := got[2]
		if c.Title != UnknownTitle || c.Artist != UnknownArtist || c.ThumbnailURL != "" {
			t.Errorf("unexpected candidate %+v", c)
		}
		if c.Reference != ReferenceFor("ccccccccccc") {
			t.Errorf("unexpected reference %q", c.Reference)
		}
	})

	t.Run("search failure is a resolve failure", func(t *testing.T) {
		bin, _ := writeFakeYtDlp(t, "echo 'ERROR: network unreachable' >&2\nexit 1\n")
		resolver := NewResolver(YtDlpCatalog{Client: &ytdlp.Client{Binary: bin}}, ResolverOptions{})

		_, err := resolver.Resolve(context.Background(), "q")
		if kind, ok := KindOf(err); !ok || kind != KindResolveFailed {
			t.Errorf("expected resolve failure, got %v", err)
		}
	})
}

func TestYtDlpDownloader(t *testing.T) {
	t.Run("maps the info dict", func(t *testing.T) {
		bin, _ := writeFakeYtDlp(t, downloadScript)
		d := YtDlpDownloader{Client: &ytdlp.Client{Binary: bin}}
		profile, _ := LookupProfile("tv")

		meta, err := d.Download(context.Background(), DownloadRequest{
			Reference: "https://www.youtube.com/watch?v=abc",
			OutputDir: t.TempDir(),
			Stem:      "stem",
			Profile:   profile,
		})
		if err != nil {
			t.Fatalf("Download() error = %v", err)
		}
		if meta.Title != "Midnight City" {
			t.Errorf("expected track over title, got %q", meta.Title)
		}
		if meta.Artist != "M83VEVO" {
			t.Errorf("expected uploader as artist, got %q", meta.Artist)
		}
		if meta.Ext != "webm" {
			t.Errorf("expected extension of the requested download, got %q", meta.Ext)
		}
		if meta.Duration == nil || *meta.Duration != 243 {
			t.Errorf("unexpected duration %v", meta.Duration)
		}
	})

	t.Run("acquires through the orchestrator with credentials", func(t *testing.T) {
		bin, scratch := writeFakeYtDlp(t, downloadScript)
		o, dir := newScriptOrchestrator(t, bin)

		var lines []string
		events := make(chan Event, 32)
		res, err := o.AcquireWithProgress(context.Background(), "dQw4w9WgXcQ", NewCredentialBundle("SID=abc; HSID=def"), []string{"night"}, events)
		if err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
		close(events)
		for ev := range events {
			if ev.Kind == DownloadProgress {
				lines = append(lines, ev.Line)
			}
		}

		if res.Title != "Midnight City" || res.Artist != "M83VEVO" || res.Ext != "webm" || res.Attempts != 1 {
			t.Errorf("unexpected result %+v", res)
		}
		if filepath.Dir(res.Path) != dir || filepath.Base(res.Path) != res.FileID+".webm" {
			t.Errorf("unexpected path %s", res.Path)
		}
		if len(lines) != 1 || !strings.HasPrefix(lines[0], "[download] 100%") {
			t.Errorf("expected forwarded progress line, got %q", lines)
		}

		jar, err := os.ReadFile(filepath.Join(scratch, "jar.txt"))
		if err != nil {
			t.Fatalf("cookie jar was not passed to yt-dlp: %v", err)
		}
		if !strings.Contains(string(jar), "\tSID\tabc") || !strings.Contains(string(jar), "\tHSID\tdef") {
			t.Errorf("unexpected cookie jar:\n%s", jar)
		}

		client, _ := os.ReadFile(filepath.Join(scratch, "client.txt"))
		if string(client) != "youtube:player_client=web" {
			t.Errorf("credentialed acquisition should start with the web client, got %q", client)
		}
	})

	t.Run("no cookie jar without credentials", func(t *testing.T) {
		bin, scratch := writeFakeYtDlp(t, downloadScript)
		o, _ := newScriptOrchestrator(t, bin)

		if _, err := o.Acquire(context.Background(), "dQw4w9WgXcQ", nil, nil); err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
		if _, err := os.Stat(filepath.Join(scratch, "jar.txt")); !os.IsNotExist(err) {
			t.Errorf("expected no cookie jar, stat err = %v", err)
		}
		client, _ := os.ReadFile(filepath.Join(scratch, "client.txt"))
		if string(client) != "youtube:player_client=tv" {
			t.Errorf("anonymous acquisition should start with the tv client, got %q", client)
		}
	})

	t.Run("rotated cookies reported as a warning abort the acquisition", func(t *testing.T) {
		bin, scratch := writeFakeYtDlp(t, `echo attempt >> "@DIR@/attempts.txt"
for arg in "$@"; do
  if [ "$arg" = "--no-warnings" ]; then
    echo "ERROR: [youtube] abc: Sign in to confirm you're not a bot" >&2
    exit 1
  fi
done
echo "WARNING: [youtube] The provided YouTube account cookies are no longer valid. They have likely been rotated in the browser as a security measure" >&2
echo "ERROR: [youtube] abc: Sign in to confirm you're not a bot" >&2
exit 1
`)
		o, dir := newScriptOrchestrator(t, bin)

		_, err := o.Acquire(context.Background(), "dQw4w9WgXcQ", NewCredentialBundle("SID=abc"), nil)
		if !errors.Is(err, shared.ErrCredentialsRejected) {
			t.Fatalf("expected credentials rejected, got %v", err)
		}
		if attempts, _ := AttemptsOf(err); attempts != 1 {
			t.Errorf("expected 1 attempt, got %d", attempts)
		}
		if !strings.Contains(HintFor(err), "cookies") {
			t.Errorf("expected cookie renewal hint, got %q", HintFor(err))
		}

		calls, _ := os.ReadFile(filepath.Join(scratch, "attempts.txt"))
		if n := strings.Count(string(calls), "attempt"); n != 1 {
			t.Errorf("expected yt-dlp to run once, ran %d times", n)
		}
		if files := dirFiles(t, dir); len(files) != 0 {
			t.Errorf("expected no files left behind, got %v", files)
		}
	})

	t.Run("bot check alone exhausts the profiles", func(t *testing.T) {
		bin, _ := writeFakeYtDlp(t, "echo \"ERROR: [youtube] abc: Sign in to confirm you're not a bot\" >&2\nexit 1\n")
		o, _ := newScriptOrchestrator(t, bin)

		_, err := o.Acquire(context.Background(), "dQw4w9WgXcQ", nil, nil)
		if kind, _ := KindOf(err); kind != KindExhausted {
			t.Errorf("expected exhausted, got %v", err)
		}
		if attempts, _ := AttemptsOf(err); attempts != MaxProfiles {
			t.Errorf("expected %d attempts, got %d", MaxProfiles, attempts)
		}
	})
}

func TestBestThumbnail(t *testing.T) {
	tests := []struct {
		name   string
		thumbs []ytdlp.Thumbnail
		want   string
	}{
		{"none", nil, ""},
		{"widest", []ytdlp.Thumbnail{{URL: "a", Width: 320}, {URL: "b", Width: 640}, {URL: "c", Width: 120}}, "b"},
		{"no widths", []ytdlp.Thumbnail{{URL: "a"}, {URL: "b"}, {URL: "c"}}, "c"},
		{"some widths", []ytdlp.Thumbnail{{URL: "a", Width: 480}, {URL: "b"}}, "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := bestThumbnail(tt.thumbs); got != tt.want {
				t.Errorf("bestThumbnail() = %q, want %q", got, tt.want)
			}
		})
	}
}
