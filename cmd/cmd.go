// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// serveCommand runs the HTTP API.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (overrides server.host)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Listen port (overrides server.port)",
			},
			&cli.StringFlag{
				Name:  "base-url",
				Usage: "Public URL prefix used for song links in playlist exports",
			},
		},
		Action: r.Serve,
	}
}

// setupCommand handles setup operations for database and credentials.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Create the config file if missing, initialize the database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:    "credentials",
				Aliases: []string{"cookies"},
				Usage:   "Write a Netscape cookie jar from a browser request (Copy as cURL)",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "curl",
						Usage: "cURL command from browser DevTools (Copy as cURL)",
					},
					&cli.StringFlag{
						Name:  "curl-file",
						Usage: "Path to .sh file containing cURL command",
					},
					&cli.StringFlag{
						Name:  "output",
						Usage: "Output path for the cookie jar (default: credentials.cookies_path or ~/.nexus/cookies.txt)",
					},
				},
				Action: r.SetupCredentials,
			},
		},
	}
}

// searchCommand searches the external catalog.
func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Search the external catalog for songs",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "query",
			},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Search,
	}
}

// importCommand acquires one reference, or every reference listed in a file.
func importCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Download a song from the external catalog into the library",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "reference",
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "owner",
				Usage: "Owner id of the imported songs",
			},
			&cli.StringSliceFlag{
				Name:    "moods",
				Aliases: []string{"m"},
				Usage:   "Mood tags, repeated or comma separated",
			},
			&cli.StringFlag{
				Name:  "playlist",
				Usage: "Playlist id to add the imported songs to",
			},
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "Import every reference in this file, one per line",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent imports for --file",
				Value: 2,
			},
			&cli.FloatFlag{
				Name:  "rate",
				Usage: "Imports started per second for --file",
				Value: 1,
			},
			&cli.StringFlag{
				Name:  "manifest",
				Usage: "Write a JSON manifest of the --file run to this path",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Import,
	}
}

// libraryCommand inspects and maintains stored songs.
func libraryCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "library",
		Aliases: []string{"lib"},
		Usage:   "Library operations",
		Commands: []*cli.Command{
			{
				Name:  "songs",
				Usage: "List songs",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "owner",
						Usage: "Only songs of this owner",
					},
					&cli.StringFlag{
						Name:  "mood",
						Usage: "Only songs tagged with this mood",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.LibrarySongs,
			},
			{
				Name:   "backfill",
				Usage:  "Probe songs without a duration and store what ffprobe reports",
				Action: r.LibraryBackfill,
			},
		},
	}
}

// playlistCommand manages playlists.
func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlist",
		Aliases: []string{"pl"},
		Usage:   "Playlist operations",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "name",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "description",
						Usage: "Playlist description",
					},
					&cli.StringFlag{
						Name:  "owner",
						Usage: "Owner id",
					},
				},
				Action: r.PlaylistCreate,
			},
			{
				Name:  "list",
				Usage: "List playlists",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "owner",
						Usage: "Only playlists of this owner",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.PlaylistList,
			},
			{
				Name:  "export",
				Usage: "Export a playlist to a file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Playlist ID to export",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "format",
						Usage: "One of csv, m3u, md, txt, json",
						Value: "m3u",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output directory",
						Value:   ".",
					},
					&cli.StringFlag{
						Name:  "base-url",
						Usage: "URL prefix for song links",
					},
				},
				Action: r.PlaylistExport,
			},
		},
	}
}

// doctorCommand reports the external dependencies the pipeline needs.
func doctorCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "doctor",
		Usage: "Check external binaries and credentials",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Doctor,
	}
}

// tuiCommand returns the top-level TUI command for interactive imports.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch interactive TUI for searching and importing songs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "owner",
				Usage: "Owner id of the imported songs",
			},
			&cli.StringFlag{
				Name:  "playlist",
				Usage: "Playlist id to add imported songs to",
			},
		},
		Action: r.TUI,
	}
}
