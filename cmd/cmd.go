// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

// globalFlags are inherited by every subcommand.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   "config.toml",
			Sources: cli.EnvVars("SPOTLAKE_CONFIG"),
		},
		&cli.StringFlag{
			Name:  "env-file",
			Usage: "Dotenv file loaded before configuration",
			Value: ".env",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable debug logging",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Deadline for the whole invocation (0 disables)",
			Value: 5 * time.Minute,
		},
	}
}

func eventFlag(usage string) cli.Flag {
	return &cli.StringFlag{
		Name:    "event",
		Aliases: []string{"e"},
		Usage:   usage + " (- reads stdin)",
	}
}

func scheduleFlags(withEmail bool) []cli.Flag {
	flags := []cli.Flag{
		eventFlag("Schedule event JSON file"),
		&cli.StringFlag{Name: "user", Usage: "User name, overrides the event"},
		&cli.StringFlag{Name: "category", Usage: "tracks or artists, overrides the event"},
		&cli.StringFlag{Name: "window", Usage: "short_term, medium_term or long_term, overrides the event"},
	}
	if withEmail {
		flags = append(flags,
			&cli.StringFlag{Name: "to", Usage: "Recipient address, overrides the event"},
			&cli.BoolFlag{Name: "dry-run", Usage: "Write the composed message to stdout instead of delivering it"},
		)
	}
	return flags
}

func fetchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "fetch",
		Usage:  "Fetch top tracks or artists for every time window into the landing area",
		Flags:  scheduleFlags(false),
		Action: r.Fetch,
	}
}

func normalizeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "normalize",
		Usage:  "Normalize landed payloads named by a storage or queue event into the raw area",
		Flags:  []cli.Flag{eventFlag("Storage or queue event JSON file")},
		Action: r.Normalize,
	}
}

func recapCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "recap",
		Usage: "Email the rank changes between the two newest snapshots",
		Flags: append(scheduleFlags(true),
			&cli.BoolFlag{Name: "preview", Usage: "Print the recap as a table instead of sending it"},
		),
		Action: r.Recap,
	}
}

func releaseRadarCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "release-radar",
		Aliases: []string{"radar"},
		Usage:   "Email the full-length releases in the release radar playlist",
		Flags: append(scheduleFlags(true),
			&cli.StringFlag{Name: "playlist", Usage: "Release radar playlist ID, overrides the config"},
		),
		Action: r.ReleaseRadar,
	}
}

func rotateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "rotate",
		Usage:  "Add yesterday's top short-term tracks to this year's high rotation playlist",
		Flags:  []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "Output the result as JSON"}},
		Action: r.Rotate,
	}
}

func stageCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "stage",
		Usage:  "Move raw objects with a data contract into the staging area",
		Flags:  []cli.Flag{eventFlag("Storage or queue event JSON file")},
		Action: r.Stage,
	}
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and the lookup database",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write an example config file to --config",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Create the lookup database and run migrations",
				Action: r.SetupDatabase,
			},
		},
	}
}

func rulesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "rules",
		Usage: "Manage format rules",
		Commands: []*cli.Command{
			{
				Name:      "load",
				Usage:     "Insert format rules from a JSON array file, keeping existing endpoints",
				Arguments: []cli.Argument{&cli.StringArg{Name: "file"}},
				Action:    r.LoadRules,
			},
			{
				Name:   "list",
				Usage:  "List format rules",
				Flags:  []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "Output as JSON"}},
				Action: r.ListRules,
			},
		},
	}
}

func contractsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "contracts",
		Usage: "Manage data contracts",
		Commands: []*cli.Command{
			{
				Name:      "load",
				Usage:     "Upsert every *.json data contract found under a directory",
				Arguments: []cli.Argument{&cli.StringArg{Name: "dir"}},
				Action:    r.LoadContracts,
			},
			{
				Name:   "list",
				Usage:  "List data contracts",
				Flags:  []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "Output as JSON"}},
				Action: r.ListContracts,
			},
		},
	}
}

func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Mint a refresh token with the authorization code flow and save the secret bundle",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "client-id",
				Usage:   "Spotify application client ID",
				Sources: cli.EnvVars("SPOTIFY_CLIENT_ID"),
			},
			&cli.StringFlag{
				Name:    "client-secret",
				Usage:   "Spotify application client secret",
				Sources: cli.EnvVars("SPOTIFY_CLIENT_SECRET"),
			},
			&cli.StringFlag{
				Name:  "output",
				Usage: "Where to write the secret bundle (defaults to spotify.secrets_path)",
			},
			&cli.BoolFlag{
				Name:  "no-browser",
				Usage: "Print the authorization URL without opening a browser",
			},
		},
		Action: r.Auth,
	}
}
