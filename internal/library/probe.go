package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/desertthunder/nexus/internal/shared"
)

// DefaultFFprobe is the probe binary looked up on PATH.
const DefaultFFprobe = "ffprobe"

// Prober reads the playback length of an audio file.
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// FFprobe is a [Prober] backed by the ffprobe binary.
type FFprobe struct {
	Binary string
}

type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		Duration  string `json:"duration"`
	} `json:"streams"`
}

// Duration runs ffprobe on path and returns the container duration in seconds,
// falling back to the first audio stream's duration.
func (p FFprobe) Duration(ctx context.Context, path string) (float64, error) {
	binary := strings.TrimSpace(p.Binary)
	if binary == "" {
		binary = DefaultFFprobe
	}
	if strings.TrimSpace(path) == "" {
		return 0, errors.New("ffprobe: empty path")
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return 0, fmt.Errorf("%w: %s", shared.ErrDependencyMissing, binary)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return 0, fmt.Errorf("ffprobe: %w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	return parseProbeDuration(output)
}

func parseProbeDuration(output []byte) (float64, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(output, &out); err != nil {
		return 0, fmt.Errorf("ffprobe parse: %w", err)
	}

	if d := parseSeconds(out.Format.Duration); d > 0 {
		return d, nil
	}
	for _, s := range out.Streams {
		if strings.EqualFold(s.CodecType, "audio") {
			if d := parseSeconds(s.Duration); d > 0 {
				return d, nil
			}
		}
	}
	return 0, errors.New("ffprobe: no duration reported")
}

func parseSeconds(v string) float64 {
	v = strings.TrimSpace(v)
	if v == "" || v == "N/A" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0
	}
	return f
}
