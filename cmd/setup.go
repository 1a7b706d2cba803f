package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertthunder/nexus/internal/acquire"
	"github.com/desertthunder/nexus/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase creates the config file when missing, then initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	if r.configPath != "" {
		if _, err := os.Stat(r.configPath); os.IsNotExist(err) {
			r.logger.Info("config file not found, creating from template", "path", r.configPath)
			if err := shared.CreateConfigFile(r.configPath); err != nil {
				r.logger.Warn("failed to create config file, using defaults", "error", err)
			} else if err := r.loadConfig(); err != nil {
				return err
			}
		}
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := os.MkdirAll(r.config.Storage.UploadDir, 0755); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	r.writePlain("✓ Database ready: %s\n", r.config.Database.Path)
	r.writePlain("✓ Upload directory: %s\n", r.config.Storage.UploadDir)
	return nil
}

// SetupCredentials writes the session cookies of a captured browser request as a Netscape cookie jar.
//
// Accepts a cURL command copied from the browser's DevTools while signed in.
func (r *Runner) SetupCredentials(ctx context.Context, cmd *cli.Command) error {
	curlCmd := cmd.String("curl")
	curlFile := cmd.String("curl-file")
	outputPath := cmd.String("output")

	if curlCmd == "" && curlFile == "" {
		return fmt.Errorf("%w: either --curl or --curl-file must be provided", shared.ErrMissingArgument)
	}
	if curlCmd != "" && curlFile != "" {
		return fmt.Errorf("%w: cannot specify both --curl and --curl-file", shared.ErrInvalidArgument)
	}

	var req *shared.CurlRequest
	var err error
	if curlFile != "" {
		if req, err = shared.ParseCurlFile(curlFile); err != nil {
			return fmt.Errorf("failed to parse cURL file: %w", err)
		}
		r.logger.Info("parsed cURL from file", "file", curlFile)
	} else {
		if req, err = shared.ParseCurlCommand(curlCmd); err != nil {
			return fmt.Errorf("failed to parse cURL command: %w", err)
		}
		r.logger.Info("parsed cURL command")
	}

	bundle := acquire.NewCredentialBundle(req.Cookie)
	if !bundle.Present() {
		return fmt.Errorf("%w: the cURL command carries no cookies; copy a request made while signed in", shared.ErrMissingCredentials)
	}

	if outputPath == "" {
		outputPath = r.config.Credentials.CookiesPath
	}
	if outputPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		outputPath = filepath.Join(homeDir, ".nexus", "cookies.txt")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0700); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(outputPath, []byte(bundle.Netscape()), 0600); err != nil {
		return fmt.Errorf("failed to write cookie jar: %w", err)
	}

	names := req.CookieNames()
	r.logger.Info("cookie jar saved", "path", outputPath, "cookies", len(names), "credentials", bundle.String())

	r.writePlain("✓ Session cookies saved (%d): %s\n", len(names), strings.Join(names, ", "))
	r.writePlain("Cookie jar written to: %s\n", outputPath)
	r.writePlainln("Next steps:")
	r.writePlain("1. Update config.toml with: credentials.cookies_path = \"%s\"\n", outputPath)
	r.writePlain("2. Run 'nexus doctor' to confirm the credentials are picked up\n")
	return nil
}
