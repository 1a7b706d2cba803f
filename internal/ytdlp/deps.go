package ytdlp

import (
	"fmt"
	"os/exec"

	"github.com/desertthunder/nexus/internal/shared"
)

// DependencyReport lists which external binaries are available.
type DependencyReport struct {
	YtDlpFound   bool   `json:"yt_dlp_found"`
	YtDlpPath    string `json:"yt_dlp_path,omitempty"`
	FFprobeFound bool   `json:"ffprobe_found"`
	FFprobePath  string `json:"ffprobe_path,omitempty"`
}

// DependencyStatus looks up the yt-dlp binary (DefaultBinary when empty) and ffprobe on PATH.
func DependencyStatus(binary string) DependencyReport {
	if binary == "" {
		binary = DefaultBinary
	}

	report := DependencyReport{}
	if path, err := exec.LookPath(binary); err == nil {
		report.YtDlpFound = true
		report.YtDlpPath = path
	}
	if path, err := exec.LookPath("ffprobe"); err == nil {
		report.FFprobeFound = true
		report.FFprobePath = path
	}
	return report
}

// CheckDependencies fails when yt-dlp cannot be found. ffprobe is optional.
func CheckDependencies(binary string) error {
	report := DependencyStatus(binary)
	if !report.YtDlpFound {
		return fmt.Errorf("%w: yt-dlp is not installed or not on PATH", shared.ErrDependencyMissing)
	}
	return nil
}
