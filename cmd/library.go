package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/nexus/internal/formatter"
	"github.com/desertthunder/nexus/internal/library"
	"github.com/desertthunder/nexus/internal/models"
	"github.com/desertthunder/nexus/internal/shared"
	"github.com/urfave/cli/v3"
)

// LibrarySongs lists stored songs, optionally filtered by owner and mood.
func (r *Runner) LibrarySongs(ctx context.Context, cmd *cli.Command) error {
	a, err := r.newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	songs, err := a.library.List(cmd.String("owner"), cmd.String("mood"))
	if err != nil {
		return fmt.Errorf("failed to list songs: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(songs, true)
	}
	if len(songs) == 0 {
		return r.writePlain("No songs\n")
	}

	rows := make([][]string, len(songs))
	for i, s := range songs {
		labels := make([]string, len(s.Moods))
		for j, mood := range s.Moods {
			labels[j] = library.MoodLabel(mood)
		}
		rows[i] = []string{s.ID(), s.Title, s.Artist, formatSeconds(s.Duration), strings.Join(labels, ", ")}
	}
	return r.writePlain("%s\n%d song(s)\n", renderTable(
		[]string{"ID", "Title", "Artist", "Duration", "Moods"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	), len(songs))
}

// LibraryBackfill probes songs missing a duration and copies what it finds into playlist snapshots.
func (r *Runner) LibraryBackfill(ctx context.Context, cmd *cli.Command) error {
	a, err := r.newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.library.BackfillDurations(ctx, a.playlists)
	if report == nil {
		return err
	}

	r.writePlainHeader("Duration Backfill")
	r.writePlain("Checked: %d\n", report.Checked)
	r.writePlain("Updated: %d\n", report.Updated)
	r.writePlain("Missing files: %d\n", report.Missing)
	r.writePlain("Probe failures: %d\n", report.Failed)
	r.writePlain("Playlist entries updated: %d\n", report.Snapshots)
	return err
}

// PlaylistCreate creates an empty playlist.
func (r *Runner) PlaylistCreate(ctx context.Context, cmd *cli.Command) error {
	name := strings.TrimSpace(cmd.StringArg("name"))
	if name == "" {
		return fmt.Errorf("%w: playlist name is required", shared.ErrMissingArgument)
	}

	a, err := r.newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	pl := models.NewPlaylist(name, cmd.String("description"), cmd.String("owner"))
	if err := a.playlists.Create(pl); err != nil {
		return fmt.Errorf("failed to create playlist: %w", err)
	}

	r.logger.Info("created playlist", "id", pl.ID(), "name", pl.Name)
	return r.writePlain("✓ Created playlist %s (%s)\n", pl.Name, pl.ID())
}

// PlaylistList lists playlists with their song counts.
func (r *Runner) PlaylistList(ctx context.Context, cmd *cli.Command) error {
	a, err := r.newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	criteria := map[string]any{}
	if owner := cmd.String("owner"); owner != "" {
		criteria["owner_id"] = owner
	}
	playlists, err := a.playlists.List(criteria)
	if err != nil {
		return fmt.Errorf("failed to list playlists: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, true)
	}
	if len(playlists) == 0 {
		return r.writePlain("No playlists\n")
	}

	rows := make([][]string, len(playlists))
	for i, pl := range playlists {
		total := pl.TotalDuration()
		rows[i] = []string{pl.ID(), pl.Name, strconv.Itoa(len(pl.Songs)), formatSeconds(&total), pl.OwnerID}
	}
	return r.writePlain("%s\n", renderTable(
		[]string{"ID", "Name", "Songs", "Length", "Owner"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	))
}

// PlaylistExport writes a playlist to disk in the requested format.
func (r *Runner) PlaylistExport(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	a, err := r.newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	pl, err := a.playlists.Get(cmd.String("id"))
	if err != nil {
		return err
	}

	baseURL := cmd.String("base-url")
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://%s", r.config.Server.Addr())
	}

	path, err := formatter.WriteExport(pl, format, cmd.String("output"), baseURL)
	if err != nil {
		return err
	}

	r.logger.Info("exported playlist", "id", pl.ID(), "format", format, "path", path)
	return r.writePlain("✓ Exported %s (%d songs) to %s\n", pl.Name, len(pl.Songs), path)
}

func formatSeconds(d *float64) string {
	if d == nil {
		return "-"
	}
	return shared.FormatDuration(int(*d))
}
