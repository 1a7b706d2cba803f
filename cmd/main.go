package main

import (
	"context"
	"os"

	"github.com/desertthunder/nexus/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	runner := NewRunner(RunnerOpts{ConfigPath: "config.toml", Logger: shared.NewLogger(nil)})

	if err := rootCommand(runner).Run(context.Background(), os.Args); err != nil {
		runner.logger.Fatalf("application error: %v", err)
	}
}

func rootCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "nexus",
		Usage:   "Personal music library with external search and import",
		Version: "0.3.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Before:   r.Before,
		Commands: r.register(),
	}
}
