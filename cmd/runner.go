package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nexus/internal/acquire"
	"github.com/desertthunder/nexus/internal/library"
	"github.com/desertthunder/nexus/internal/repositories"
	"github.com/desertthunder/nexus/internal/shared"
	"github.com/desertthunder/nexus/internal/tasks"
	"github.com/desertthunder/nexus/internal/ytdlp"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	getenv     func(string) string
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	Getenv     func(string) string
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		getenv:     opts.Getenv,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, setupCommand, searchCommand, importCommand, libraryCommand, playlistCommand, doctorCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads the configuration named by --config, overlays the environment and rebuilds the logger.
//
// A missing config file is not an error; the embedded defaults are used instead.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}
	if err := r.loadConfig(); err != nil {
		return ctx, err
	}

	logger, err := shared.NewLoggerWithOptions(nil, shared.LogOptions{Level: r.config.Log.Level, Format: r.config.Log.Format})
	if err != nil {
		return ctx, err
	}
	if cmd.Bool("verbose") {
		shared.SetLogLevel(logger, log.DebugLevel)
	}
	r.SetLogger(logger)
	return ctx, nil
}

func (r *Runner) loadConfig() error {
	config := shared.DefaultConfig()
	if r.configPath != "" {
		if _, err := os.Stat(r.configPath); err == nil {
			if config, err = shared.LoadConfig(r.configPath); err != nil {
				return err
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	config.ApplyEnv(r.getenv)
	if err := config.Validate(); err != nil {
		return err
	}
	r.config = config
	return nil
}

// SetLogger replaces the logger used by subsequent commands.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// app is the set of collaborators shared by the commands that touch the library.
type app struct {
	db        *sql.DB
	songs     *repositories.SongRepository
	playlists *repositories.PlaylistRepository
	history   *repositories.HistoryRepository
	library   *library.Library
	importer  *tasks.Importer
	creds     *acquire.CredentialBundle
}

func (a *app) Close() error {
	return a.db.Close()
}

// openDatabase opens and migrates the configured database.
func (r *Runner) openDatabase() (*sql.DB, error) {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// newApp wires the database, library and acquisition pipeline from the loaded configuration.
func (r *Runner) newApp() (*app, error) {
	cfg := r.config

	creds, err := acquire.LoadCredentials(cfg.Credentials.Cookies, cfg.Credentials.CookiesPath)
	if err != nil {
		return nil, err
	}
	profiles, err := acquire.ProfilesByName(cfg.Acquire.Profiles)
	if err != nil {
		return nil, err
	}

	client := &ytdlp.Client{
		Binary:    cfg.Acquire.YtDlpBinary,
		Format:    cfg.Acquire.Format,
		ForceIPv4: cfg.Acquire.ForceIPv4,
		Logger:    shared.WithLogger(r.logger, "component", "ytdlp"),
	}
	orchestrator, err := acquire.NewOrchestrator(acquire.YtDlpDownloader{Client: client}, acquire.Options{
		Profiles:  profiles,
		JitterMin: cfg.Acquire.JitterMin.Duration,
		JitterMax: cfg.Acquire.JitterMax.Duration,
		UploadDir: cfg.Storage.UploadDir,
		Logger:    shared.WithLogger(r.logger, "component", "orchestrator"),
	})
	if err != nil {
		return nil, err
	}
	resolver := acquire.NewResolver(acquire.YtDlpCatalog{Client: client}, acquire.ResolverOptions{
		Limit:             cfg.Resolver.Limit,
		RequestsPerSecond: cfg.Resolver.RequestsPerSecond,
		Burst:             cfg.Resolver.Burst,
		Logger:            shared.WithLogger(r.logger, "component", "resolver"),
	})

	db, err := r.openDatabase()
	if err != nil {
		return nil, err
	}

	a := &app{
		db:        db,
		songs:     repositories.NewSongRepository(db),
		playlists: repositories.NewPlaylistRepository(db),
		history:   repositories.NewHistoryRepository(db),
		creds:     creds,
	}

	var prober library.Prober
	if ytdlp.DependencyStatus(cfg.Acquire.YtDlpBinary).FFprobeFound {
		prober = library.FFprobe{}
	}
	a.library = library.New(a.songs, cfg.Storage.UploadDir, prober, shared.WithLogger(r.logger, "component", "library"))
	a.importer = tasks.NewImporter(tasks.ImporterOpts{
		Resolver:    resolver,
		Acquirer:    orchestrator,
		Songs:       a.library,
		Playlists:   a.playlists,
		Credentials: creds,
		Timeout:     cfg.Acquire.Timeout.Duration,
		Logger:      shared.WithLogger(r.logger, "component", "importer"),
	})

	r.logger.Debug("pipeline ready",
		"profiles", acquire.ProfileNames(acquire.OrderProfiles(profiles, creds.Present())),
		"credentials", creds.String(),
		"upload_dir", cfg.Storage.UploadDir,
	)
	return a, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
