// package ytdlp drives the yt-dlp binary for catalog search and audio download.
package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nexus/internal/shared"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultBinary = "yt-dlp"
	DefaultFormat = "bestaudio/best"

	maxSearchResults = 10
	maxKeep          = 8192
	waitDelay        = 5 * time.Second
)

// Client runs yt-dlp as a subprocess. The zero value uses "yt-dlp" from PATH.
type Client struct {
	Binary    string
	Format    string
	ForceIPv4 bool
	Logger    *log.Logger
}

// DownloadOptions describes a single download attempt.
//
// The file is written to OutputDir/Stem.<ext>. PlayerClient selects the YouTube player client
// and Cookies holds a Netscape cookie jar, written to a private temp file for the attempt only.
type DownloadOptions struct {
	Reference    string
	OutputDir    string
	Stem         string
	PlayerClient string
	UserAgent    string
	Headers      map[string]string
	Cookies      string
	Progress     func(line string)
}

// Thumbnail is one thumbnail variant of a video.
type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Entry is a flat search result.
type Entry struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Uploader   string      `json:"uploader"`
	Channel    string      `json:"channel"`
	Duration   *float64    `json:"duration"`
	URL        string      `json:"url"`
	Thumbnails []Thumbnail `json:"thumbnails"`
}

// VideoInfo is the subset of the info dict yt-dlp prints after a download.
type VideoInfo struct {
	ID                 string              `json:"id"`
	Title              string              `json:"title"`
	Track              string              `json:"track"`
	Artist             string              `json:"artist"`
	Uploader           string              `json:"uploader"`
	Channel            string              `json:"channel"`
	Duration           *float64            `json:"duration"`
	Ext                string              `json:"ext"`
	Thumbnail          string              `json:"thumbnail"`
	WebpageURL         string              `json:"webpage_url"`
	Filename           string              `json:"_filename"`
	RequestedDownloads []RequestedDownload `json:"requested_downloads"`
}

// RequestedDownload is one file yt-dlp produced for a video.
type RequestedDownload struct {
	Filepath string `json:"filepath"`
	Ext      string `json:"ext"`
}

type searchResult struct {
	Entries []Entry `json:"entries"`
}

func (c *Client) binary() string {
	if strings.TrimSpace(c.Binary) == "" {
		return DefaultBinary
	}
	return c.Binary
}

func (c *Client) logger() *log.Logger {
	if c.Logger == nil {
		return log.New(io.Discard)
	}
	return c.Logger
}

// Search runs a flat "ytsearchN:" query and returns the entries in upstream order.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Entry, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query is required")
	}

	out, err := c.run(ctx, c.searchArgs(query, limit), nil)
	if err != nil {
		return nil, err
	}

	var result searchResult
	if err := json.Unmarshal(lastJSONLine(out), &result); err != nil {
		return nil, fmt.Errorf("failed to decode yt-dlp search output: %w", err)
	}
	return result.Entries, nil
}

// Download fetches one reference and returns the info dict yt-dlp reports for it.
func (c *Client) Download(ctx context.Context, opts DownloadOptions) (*VideoInfo, error) {
	if strings.TrimSpace(opts.Reference) == "" {
		return nil, fmt.Errorf("reference is required")
	}
	if strings.TrimSpace(opts.OutputDir) == "" || strings.TrimSpace(opts.Stem) == "" {
		return nil, fmt.Errorf("output directory and stem are required")
	}

	var jar string
	if strings.TrimSpace(opts.Cookies) != "" {
		path, cleanup, err := writeCookieJar(opts.Cookies)
		if err != nil {
			return nil, err
		}
		defer cleanup()
		jar = path
	}

	out, err := c.run(ctx, c.downloadArgs(opts, jar), opts.Progress)
	if err != nil {
		return nil, err
	}

	var info VideoInfo
	if err := json.Unmarshal(lastJSONLine(out), &info); err != nil {
		return nil, fmt.Errorf("failed to decode yt-dlp download output: %w", err)
	}
	return &info, nil
}

// Version reports the installed yt-dlp version.
func (c *Client) Version(ctx context.Context) (string, error) {
	out, err := c.run(ctx, []string{"--version"}, nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (c *Client) searchArgs(query string, limit int) []string {
	if limit <= 0 || limit > maxSearchResults {
		limit = maxSearchResults
	}

	args := []string{"--flat-playlist", "-J", "--no-warnings"}
	if c.ForceIPv4 {
		args = append(args, "--force-ipv4")
	}
	return append(args, fmt.Sprintf("ytsearch%d:%s", limit, query))
}

func (c *Client) downloadArgs(opts DownloadOptions, cookiesPath string) []string {
	format := c.Format
	if strings.TrimSpace(format) == "" {
		format = DefaultFormat
	}

	args := []string{
		"-f", format,
		"--no-playlist",
		"-o", filepath.Join(opts.OutputDir, opts.Stem) + ".%(ext)s",
		"--no-simulate",
		"--dump-single-json",
	}
	if opts.UserAgent != "" {
		args = append(args, "--user-agent", opts.UserAgent)
	}

	keys := make([]string, 0, len(opts.Headers))
	for k := range opts.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--add-header", k+":"+opts.Headers[k])
	}

	if opts.PlayerClient != "" {
		args = append(args, "--extractor-args", "youtube:player_client="+opts.PlayerClient)
	}
	if cookiesPath != "" {
		args = append(args, "--cookies", cookiesPath)
	}
	if c.ForceIPv4 {
		args = append(args, "--force-ipv4")
	}
	return append(args, "--", opts.Reference)
}

// run starts yt-dlp and returns its stdout. stderr lines go to the logger and onLine.
//
// The process is killed when ctx is done.
func (c *Client) run(ctx context.Context, args []string, onLine func(string)) ([]byte, error) {
	logger := c.logger()
	cmd := exec.CommandContext(ctx, c.binary(), args...)
	cmd.WaitDelay = waitDelay

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("setup stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("setup stderr pipe: %w", err)
	}

	logger.Debug("running yt-dlp", "binary", c.binary(), "args", redactArgs(args))
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", shared.ErrDependencyMissing, c.binary())
		}
		return nil, fmt.Errorf("start yt-dlp: %w", err)
	}

	var (
		stdout bytes.Buffer
		errBuf stderrTail
		mu     sync.Mutex
		g      errgroup.Group
	)

	g.Go(func() error {
		_, err := io.Copy(&stdout, stdoutPipe)
		return err
	})
	g.Go(func() error {
		scanner := bufio.NewScanner(stderrPipe)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		scanner.Split(splitByNewlineOrCR)
		for scanner.Scan() {
			line := scanner.Text()
			mu.Lock()
			errBuf.add(line)
			mu.Unlock()

			logger.Debug("yt-dlp", "line", line)
			if onLine != nil {
				onLine(line)
			}
		}
		return scanner.Err()
	})

	pumpErr := g.Wait()
	waitErr := cmd.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("yt-dlp interrupted: %w", ctxErr)
	}
	if waitErr != nil {
		mu.Lock()
		defer mu.Unlock()
		return nil, fmt.Errorf("yt-dlp failed: %w: %s", waitErr, strings.TrimSpace(errBuf.String()))
	}
	if pumpErr != nil && !errors.Is(pumpErr, os.ErrClosed) {
		return nil, fmt.Errorf("read yt-dlp output: %w", pumpErr)
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("yt-dlp returned empty output")
	}
	return stdout.Bytes(), nil
}

func writeCookieJar(contents string) (string, func(), error) {
	f, err := os.CreateTemp("", "nexus-cookies-*.txt")
	if err != nil {
		return "", nil, fmt.Errorf("create cookie jar: %w", err)
	}
	cleanup := func() { _ = os.Remove(f.Name()) }

	if err := f.Chmod(0o600); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("restrict cookie jar: %w", err)
	}
	if _, err := f.WriteString(contents); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("write cookie jar: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close cookie jar: %w", err)
	}
	return f.Name(), cleanup, nil
}

// redactArgs hides header values and the cookie jar path from logs.
func redactArgs(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)
	for i := 0; i < len(out)-1; i++ {
		switch out[i] {
		case "--cookies":
			out[i+1] = "<redacted>"
		case "--add-header":
			if name, _, ok := strings.Cut(out[i+1], ":"); ok {
				out[i+1] = name + ":<redacted>"
			}
		}
	}
	return out
}

// lastJSONLine returns the last stdout line that looks like a JSON object.
func lastJSONLine(out []byte) []byte {
	lines := bytes.Split(bytes.TrimSpace(out), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		line := bytes.TrimSpace(lines[i])
		if bytes.HasPrefix(line, []byte("{")) {
			return line
		}
	}
	return out
}

func splitByNewlineOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' || data[i] == '\r' {
			if i == 0 {
				return 1, nil, nil
			}
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// stderrTail keeps the most recent stderr lines, at most maxKeep bytes.
//
// Download progress lines are not kept, so an early WARNING survives until the final ERROR.
type stderrTail struct {
	lines []string
	size  int
}

func (t *stderrTail) add(line string) {
	if strings.HasPrefix(line, "[download]") || strings.TrimSpace(line) == "" {
		return
	}
	if len(line) >= maxKeep {
		line = line[len(line)-maxKeep+1:]
	}

	t.lines = append(t.lines, line)
	t.size += len(line) + 1
	for t.size > maxKeep {
		t.size -= len(t.lines[0]) + 1
		t.lines = t.lines[1:]
	}
}

func (t *stderrTail) String() string {
	return strings.Join(t.lines, "\n")
}
