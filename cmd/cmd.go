// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// newApp builds the root command.
func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "hive",
		Usage:   "Shared listening queue with Spotify Connect playback",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
			},
		},
		Before:   r.before,
		Commands: r.register(),
	}
}

func hiveFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "hive",
		Usage: "Hive to join (defaults to music.hive_id, then the last joined hive)",
	}
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create the config file, initialize the database and run migrations",
		Action: r.Setup,
	}
}

func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Spotify account authorization",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Authorize with Spotify in the browser",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the authorization URL instead of opening it",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the browser redirect",
						Value: loginTimeout,
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:  "status",
				Usage: "Show the stored authorization",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Forget stored tokens",
				Action: r.AuthLogout,
			},
			{
				Name:   "token",
				Usage:  "Print a valid access token, refreshing it if needed",
				Action: r.AuthToken,
			},
		},
	}
}

func playerCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "player",
		Usage: "Control the Spotify Connect device (Premium only)",
		Commands: []*cli.Command{
			{
				Name:  "devices",
				Usage: "List available Connect devices",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.PlayerDevices,
			},
			{
				Name:  "play",
				Usage: "Resume playback, or play a track by Spotify id",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "track-id"},
				},
				Action: r.PlayerPlay,
			},
			{
				Name:   "pause",
				Usage:  "Pause playback",
				Action: r.PlayerPause,
			},
			{
				Name:   "resume",
				Usage:  "Resume playback",
				Action: r.PlayerResume,
			},
			{
				Name:   "next",
				Usage:  "Skip to the next track",
				Action: r.PlayerNext,
			},
			{
				Name:   "prev",
				Usage:  "Go back to the previous track",
				Action: r.PlayerPrevious,
			},
			{
				Name:  "seek",
				Usage: "Seek to a position (seconds or m:ss)",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "position"},
				},
				Action: r.PlayerSeek,
			},
			{
				Name:  "volume",
				Usage: "Set the volume (0-100)",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "percent"},
				},
				Action: r.PlayerVolume,
			},
			{
				Name:   "transfer",
				Usage:  "Move playback onto the configured device",
				Action: r.PlayerTransfer,
			},
		},
	}
}

func queueCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "queue",
		Usage: "Shared queue operations",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "Show the queue",
				Flags: []cli.Flag{
					hiveFlag(),
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format (txt, md, csv, json)",
						Value:   "txt",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write to a file instead of stdout",
					},
				},
				Action: r.QueueList,
			},
			{
				Name:      "add",
				Usage:     "Add a track by id or by search query",
				ArgsUsage: "[query...]",
				Flags: []cli.Flag{
					hiveFlag(),
					&cli.StringFlag{
						Name:  "track-id",
						Usage: "Spotify track id",
					},
				},
				Action: r.QueueAdd,
			},
			{
				Name:  "remove",
				Usage: "Remove a queue item",
				Flags: []cli.Flag{hiveFlag()},
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "queue-id"},
				},
				Action: r.QueueRemove,
			},
			{
				Name:  "reorder",
				Usage: "Move the item at one position to another (1-based)",
				Flags: []cli.Flag{hiveFlag()},
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "from"},
					&cli.StringArg{Name: "to"},
				},
				Action: r.QueueReorder,
			},
			{
				Name:  "vote",
				Usage: "Vote a queue item up or down",
				Flags: []cli.Flag{hiveFlag()},
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "queue-id"},
					&cli.StringArg{Name: "direction"},
				},
				Action: r.QueueVote,
			},
			{
				Name:   "clear",
				Usage:  "Empty the queue",
				Flags:  []cli.Flag{hiveFlag()},
				Action: r.QueueClear,
			},
			{
				Name:  "fill",
				Usage: "Bulk-add a playlist or the hive's recommendations",
				Flags: []cli.Flag{
					hiveFlag(),
					&cli.StringFlag{
						Name:  "playlist",
						Usage: "Playlist id to enqueue (defaults to recommendations)",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of tracks to add (0 for all)",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent enqueue workers",
						Value: 1,
					},
					&cli.IntFlag{
						Name:  "rate",
						Usage: "Requests per second",
						Value: 5,
					},
				},
				Action: r.QueueFill,
			},
		},
	}
}

func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recently played tracks",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of entries",
				Value: 20,
			},
			&cli.StringFlag{
				Name:  "hive",
				Usage: "Only show plays from this hive",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.History,
	}
}

func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tui",
		Usage: "Launch the interactive player",
		Flags: []cli.Flag{
			hiveFlag(),
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where to write logs while the UI owns the terminal",
				Value: "./tmp/hivefm-tui.log",
			},
		},
		Action: r.TUI,
	}
}
