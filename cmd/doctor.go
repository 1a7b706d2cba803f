package main

import (
	"context"
	"os"

	"github.com/desertthunder/nexus/internal/acquire"
	"github.com/desertthunder/nexus/internal/shared"
	"github.com/desertthunder/nexus/internal/ytdlp"
	"github.com/urfave/cli/v3"
)

// doctorReport is what [Runner.Doctor] checks.
type doctorReport struct {
	ytdlp.DependencyReport
	YtDlpVersion string   `json:"yt_dlp_version,omitempty"`
	Credentials  bool     `json:"credentials"`
	Profiles     []string `json:"profiles"`
	// Schema is nil until `setup database` has created the database file.
	Schema *shared.MigrationStatus `json:"schema,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// Doctor reports whether yt-dlp and ffprobe are installed, whether credentials load and the effective profile order.
func (r *Runner) Doctor(ctx context.Context, cmd *cli.Command) error {
	cfg := r.config
	report := doctorReport{DependencyReport: ytdlp.DependencyStatus(cfg.Acquire.YtDlpBinary)}

	if report.YtDlpFound {
		client := &ytdlp.Client{Binary: cfg.Acquire.YtDlpBinary, Logger: r.logger}
		if v, err := client.Version(ctx); err == nil {
			report.YtDlpVersion = v
		} else {
			r.logger.Warn("failed to read yt-dlp version", "error", err)
		}
	}

	creds, err := acquire.LoadCredentials(cfg.Credentials.Cookies, cfg.Credentials.CookiesPath)
	if err != nil {
		report.Error = err.Error()
	}
	report.Credentials = creds.Present()

	if profiles, err := acquire.ProfilesByName(cfg.Acquire.Profiles); err == nil {
		report.Profiles = acquire.ProfileNames(acquire.OrderProfiles(profiles, report.Credentials))
	} else if report.Error == "" {
		report.Error = err.Error()
	}

	if _, err := os.Stat(cfg.Database.Path); err == nil {
		report.Schema = r.schemaStatus()
	}

	if cmd.Bool("json") {
		return r.writeJSON(report, true)
	}

	r.writePlainHeader("Dependency Check")
	r.writePlain("%s yt-dlp %s\n", mark(report.YtDlpFound), firstNonEmpty(report.YtDlpVersion, report.YtDlpPath, "not found"))
	r.writePlain("%s ffprobe %s (optional, used for durations)\n", mark(report.FFprobeFound), firstNonEmpty(report.FFprobePath, "not found"))
	r.writePlain("%s session credentials %s\n", mark(report.Credentials), creds.String())
	r.writePlain("  profile order: %v\n", report.Profiles)
	switch {
	case report.Schema == nil:
		r.writePlain("✗ database not initialised (run 'nexus setup database')\n")
	case report.Schema.UpToDate():
		r.writePlain("✓ database schema v%d\n", report.Schema.Current)
	default:
		r.writePlain("✗ database schema v%d, %d migration(s) pending\n", report.Schema.Current, report.Schema.Pending)
	}
	if report.Error != "" {
		r.writePlain("\n✗ %s\n", report.Error)
	}
	return nil
}

func (r *Runner) schemaStatus() *shared.MigrationStatus {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		r.logger.Warn("failed to open database", "error", err)
		return nil
	}
	defer db.Close()

	status, err := shared.SchemaStatus(db)
	if err != nil {
		r.logger.Warn("failed to read schema status", "error", err)
		return nil
	}
	return &status
}

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
