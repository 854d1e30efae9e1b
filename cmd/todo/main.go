package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"simpletodo/internal/commands"
	"simpletodo/internal/config"
	"simpletodo/internal/logging"
)

func main() {
	ctx := context.Background()

	var (
		logCloser func()
		app       = &commands.App{}
	)

	flags := &commands.Flags{}

	root := &cli.Command{
		Name:      "todo",
		Usage:     "Keep an ordered to-do list with reminders",
		UsageText: "todo [global options] [command [command options]]",
		Description: `Run 'todo' with no arguments to open the interactive list.
The subcommands script the same list from a shell.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("TODO_CONFIG"),
				Value:       commands.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error); overrides the config file",
				Sources:     cli.EnvVars("TODO_LOG_LEVEL"),
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (defaults to <data-dir>/todo.log)",
				Sources:     cli.EnvVars("TODO_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "db",
				Usage:       "path to the task database; overrides the config file",
				Sources:     cli.EnvVars("TODO_DB"),
				Destination: &flags.DBPath,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			cfg, err := config.LoadOrCreate(flags.ConfigPath)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			if flags.LogLevel != "" {
				cfg.LogLevel = flags.LogLevel
			}
			if flags.DBPath != "" {
				cfg.DBPath = flags.DBPath
			}

			// The TUI owns the terminal, so logs always go to a file.
			logFile := flags.LogFile
			if logFile == "" {
				logFile = cfg.LogFile
			}
			if logFile == "" {
				logFile = commands.DefaultLogFile()
			}

			logger, closer, err := logging.New(cfg.LogLevel, logFile, nil)
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			log.Logger = logger
			logCloser = closer

			opened, err := commands.NewApp(ctx, cfg, logger)
			if err != nil {
				return ctx, err
			}
			*app = *opened

			mainLog := logging.Component("main")
			mainLog.Debug().Str("db", cfg.DBPath).Msg("services ready")
			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			var closeErr error
			if app.Store != nil {
				if closeErr = app.Close(ctx); closeErr != nil {
					log.Error().Err(closeErr).Msg("failed to shut down cleanly")
				}
			}
			if logCloser != nil {
				logCloser()
			}
			return closeErr
		},
	}

	tuiCmd := commands.NewTuiCmd(app)
	root = commands.NewTaskCmd(app).Register(root)

	root.Action = func(ctx context.Context, c *cli.Command) error {
		if c.Args().Len() > 0 {
			return fmt.Errorf("unknown command %q. Run 'todo --help' for usage", c.Args().First())
		}
		return tuiCmd.Run(ctx, c)
	}

	if err := root.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
