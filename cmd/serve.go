package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/desertthunder/nexus/internal/server"
	"github.com/desertthunder/nexus/internal/shared"
	"github.com/desertthunder/nexus/internal/ytdlp"
	"github.com/gofrs/flock"
	"github.com/urfave/cli/v3"
)

// Serve runs the HTTP API until interrupted.
//
// A lock file keeps a second instance from sharing the database and upload directory.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	cfg := r.config.Server
	if host := cmd.String("host"); host != "" {
		cfg.Host = host
	}
	if port := cmd.Int("port"); port > 0 {
		cfg.Port = int(port)
	}

	if err := ytdlp.CheckDependencies(r.config.Acquire.YtDlpBinary); err != nil {
		r.logger.Warn("external search and import will fail", "error", err)
	}

	lock, err := acquireLock(cfg.LockFile)
	if err != nil {
		return err
	}
	if lock != nil {
		defer lock.Unlock()
	}

	a, err := r.newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if a.creds.Present() {
		r.logger.Info("session credentials loaded", "credentials", a.creds.String())
	} else {
		r.logger.Warn("no session credentials configured; imports run anonymously")
	}

	baseURL := cmd.String("base-url")
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://%s", cfg.Addr())
	}

	router := server.NewBasicRouter()
	router.Use(
		server.Logging(shared.WithLogger(r.logger, "component", "http")),
		server.Recover(r.logger),
		server.CORS(cfg.AllowedOrigins),
	)
	router.Handler(server.NewAPI(server.APIOpts{
		Songs:     a.library,
		SongIndex: a.songs,
		Playlists: a.playlists,
		History:   a.history,
		Importer:  a.importer,
		BaseURL:   baseURL,
		Logger:    shared.WithLogger(r.logger, "component", "api"),
	}))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.NewServer(cfg.Addr(), router, cfg.ShutdownTimeout.Duration, r.logger)
	return srv.Run(ctx)
}

// acquireLock takes an exclusive lock on path. An empty path disables locking.
func acquireLock(path string) (*flock.Flock, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("another instance is already running (lock %s)", path)
	}
	return lock, nil
}
