// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// setupCommand initializes the local database and scaffolds config.toml
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Initialize database and create config.toml if missing",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Setup,
	}
}

// authCommand handles provider session authorization
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Provider session authorization",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Authorize the playback session (selector token or OAuth per config)",
				Flags:  []cli.Flag{configFlag()},
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Check whether the playback session is live",
				Flags:  []cli.Flag{configFlag()},
				Action: r.AuthStatus,
			},
		},
	}
}

// runCommand starts the automation daemon
func runCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "run",
		Usage:  "Run the DJ automation daemon",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Run,
	}
}

// djCommand handles selector control and local automation preferences
func djCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "dj",
		Usage: "Selector control and automation preferences",
		Commands: []*cli.Command{
			{
				Name:   "pick",
				Usage:  "Request exactly one pick, regardless of the auto-pick preference",
				Flags:  []cli.Flag{configFlag()},
				Action: r.DjPick,
			},
			{
				Name:   "enable",
				Usage:  "Flip the selector's advisory enabled flag on",
				Flags:  []cli.Flag{configFlag()},
				Action: r.DjEnable,
			},
			{
				Name:   "disable",
				Usage:  "Flip the selector's advisory enabled flag off",
				Flags:  []cli.Flag{configFlag()},
				Action: r.DjDisable,
			},
			{
				Name:  "status",
				Usage: "Show selector status and local preferences",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.DjStatus,
			},
			{
				Name:      "auto",
				Usage:     "Set the local auto-pick preference (on|off)",
				Arguments: []cli.Argument{&cli.StringArg{Name: "toggle"}},
				Flags:     []cli.Flag{configFlag()},
				Action:    r.DjAuto,
			},
			{
				Name:      "afkpause",
				Usage:     "Set the local pause-on-AFK preference (on|off)",
				Arguments: []cli.Argument{&cli.StringArg{Name: "toggle"}},
				Flags:     []cli.Flag{configFlag()},
				Action:    r.DjAfkPause,
			},
		},
	}
}

// weightsCommand handles operator bias over selection
func weightsCommand(r *Runner) *cli.Command {
	scopeFlags := []cli.Flag{
		configFlag(),
		&cli.StringFlag{
			Name:  "scope",
			Usage: "Weight scope: track, artist, or genre",
			Value: "track",
		},
		&cli.StringFlag{
			Name:  "title",
			Usage: "Track title (track scope)",
		},
		&cli.StringFlag{
			Name:  "artist",
			Usage: "Artist name (track and artist scopes)",
		},
		&cli.StringFlag{
			Name:  "genre",
			Usage: "Genre name (genre scope)",
		},
	}

	return &cli.Command{
		Name:  "weights",
		Usage: "Bias track selection",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show cached weights, or a track's server-side weights with --title/--artist",
				Flags: append(scopeFlags,
					&cli.BoolFlag{
						Name:  "csv",
						Usage: "Output CSV",
					},
				),
				Action: r.WeightsShow,
			},
			{
				Name:   "incr",
				Usage:  "Raise a weight by one step",
				Flags:  scopeFlags,
				Action: r.WeightsIncrement,
			},
			{
				Name:   "decr",
				Usage:  "Lower a weight by one step (floors above zero)",
				Flags:  scopeFlags,
				Action: r.WeightsDecrement,
			},
			{
				Name:   "ban",
				Usage:  "Set a weight to exactly zero",
				Flags:  scopeFlags,
				Action: r.WeightsBan,
			},
		},
	}
}

// stateCommand prints the current playback snapshot
func stateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "state",
		Usage: "Show the current playback state",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.State,
	}
}
