// package formatter renders playlists as CSV, extended M3U, Markdown or plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/desertthunder/nexus/internal/models"
	"github.com/desertthunder/nexus/internal/shared"
)

// Format is a playlist export format.
type Format string

const (
	CSV      Format = "csv"
	M3U      Format = "m3u"
	Markdown Format = "md"
	Text     Format = "txt"
	JSON     Format = "json"
)

// ParseFormat accepts a format name or common alias, ignoring case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return CSV, nil
	case "m3u", "m3u8":
		return M3U, nil
	case "md", "markdown":
		return Markdown, nil
	case "txt", "text":
		return Text, nil
	case "", "json":
		return JSON, nil
	default:
		return "", fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, s)
	}
}

// Extension is the file extension of the format, without a dot.
func (f Format) Extension() string {
	return string(f)
}

// ContentType is the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case CSV:
		return "text/csv; charset=utf-8"
	case M3U:
		return "audio/x-mpegurl"
	case Markdown:
		return "text/markdown; charset=utf-8"
	case Text:
		return "text/plain; charset=utf-8"
	default:
		return "application/json"
	}
}

// Render dispatches to the exporter for format. baseURL prefixes song URLs in M3U output.
func Render(pl *models.Playlist, format Format, baseURL string) ([]byte, error) {
	switch format {
	case CSV:
		return ExportToCSV(pl)
	case M3U:
		return ExportToM3U(pl, baseURL)
	case Markdown:
		return ExportToMarkdown(pl)
	case Text:
		return ExportToText(pl)
	case JSON:
		return json.MarshalIndent(pl, "", "  ")
	default:
		return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, format)
	}
}

// ExportToCSV converts a playlist to CSV with columns: ID, Title, Artist, Filename, Duration, URL
func ExportToCSV(pl *models.Playlist) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Artist", "Filename", "Duration", "URL"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, song := range pl.Songs {
		record := []string{
			song.ID,
			song.DisplayTitle(),
			song.Artist,
			song.Filename,
			strconv.Itoa(seconds(song.Duration)),
			song.URL,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToM3U converts a playlist to an extended M3U playlist.
//
// Unknown durations are written as -1.
func ExportToM3U(pl *models.Playlist, baseURL string) ([]byte, error) {
	var buf bytes.Buffer
	baseURL = strings.TrimSuffix(baseURL, "/")

	buf.WriteString("#EXTM3U\n")
	fmt.Fprintf(&buf, "#PLAYLIST:%s\n", oneLine(pl.Name))

	for _, song := range pl.Songs {
		length := -1
		if song.Duration != nil {
			length = seconds(song.Duration)
		}
		fmt.Fprintf(&buf, "#EXTINF:%d,%s\n", length, oneLine(entryLabel(song)))
		buf.WriteString(baseURL + song.URL + "\n")
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a playlist to Markdown
func ExportToMarkdown(pl *models.Playlist) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", pl.Name)

	if pl.Description != "" {
		fmt.Fprintf(&buf, "**Description**: %s\n\n", pl.Description)
	}

	fmt.Fprintf(&buf, "**Songs**: %d\n", len(pl.Songs))
	fmt.Fprintf(&buf, "**Length**: %s\n\n", shared.FormatDuration(int(pl.TotalDuration())))

	buf.WriteString("## Songs\n\n")
	for i, song := range pl.Songs {
		duration := "-"
		if song.Duration != nil {
			duration = shared.FormatDuration(seconds(song.Duration))
		}
		fmt.Fprintf(&buf, "%d. %s [%s]\n", i+1, entryLabel(song), duration)
	}

	return buf.Bytes(), nil
}

// ExportToText converts a playlist to plain text format
func ExportToText(pl *models.Playlist) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", pl.Name)
	if pl.Description != "" {
		fmt.Fprintf(&buf, "Description: %s\n", pl.Description)
	}
	fmt.Fprintf(&buf, "Songs: %d\n\n", len(pl.Songs))

	for i, song := range pl.Songs {
		fmt.Fprintf(&buf, "%d. %s\n", i+1, entryLabel(song))
	}

	return buf.Bytes(), nil
}

// WriteExport renders pl into dir as <name>.<ext> and returns the file path.
func WriteExport(pl *models.Playlist, format Format, dir, baseURL string) (string, error) {
	data, err := Render(pl, format, baseURL)
	if err != nil {
		return "", fmt.Errorf("failed to render playlist: %w", err)
	}

	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	path := filepath.Join(dir, Filename(pl, format))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}

// WriteJSON writes v as indented JSON to path.
func WriteJSON(v any, path string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

var unsafeChars = regexp.MustCompile(`[^\p{L}\p{N}._-]+`)

// Filename derives a filesystem-safe export name from the playlist name, falling back to its id.
func Filename(pl *models.Playlist, format Format) string {
	base := strings.Trim(unsafeChars.ReplaceAllString(strings.TrimSpace(pl.Name), "_"), "_.")
	if base == "" {
		base = pl.ID()
	}
	return base + "." + format.Extension()
}

func entryLabel(song models.SongRef) string {
	if song.Artist == "" {
		return song.DisplayTitle()
	}
	return song.Artist + " - " + song.DisplayTitle()
}

func seconds(d *float64) int {
	if d == nil || *d <= 0 {
		return 0
	}
	return int(math.Round(*d))
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
