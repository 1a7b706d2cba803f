package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/nexus/internal/shared"
	"github.com/desertthunder/nexus/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI for searching and importing songs.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	logPath := r.config.Log.File
	if logPath == "" {
		logPath = "./nexus-tui.log"
	}
	fileLogger, err := shared.NewFileLogger(logPath)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	fileLogger.SetLevel(r.logger.GetLevel())
	r.SetLogger(fileLogger)

	a, err := r.newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	model := ui.NewModel(ctx, a.importer, ui.Options{
		OwnerID:    cmd.String("owner"),
		PlaylistID: cmd.String("playlist"),
	})
	p := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
