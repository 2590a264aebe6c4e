// Package cmd defines the command line interface: serving the HTTP API,
// running document ingestion, and a terminal chat loop for local use.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/mrady9280/asfoor/internal/app"
	"github.com/mrady9280/asfoor/internal/config"
	"github.com/mrady9280/asfoor/internal/log"
)

// Version is stamped by the build; "dev" otherwise.
var Version = "dev"

// Execute runs the CLI. It installs signal handling so a SIGINT or SIGTERM
// cancels the command context and triggers graceful shutdown.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := &cli.Command{
		Name:  "asfoor",
		Usage: "Conversational assistant backend with document retrieval and contextual memory",
		Commands: []*cli.Command{
			serveCommand(),
			ingestCommand(),
			chatCommand(),
			versionCommand(),
		},
	}
	return root.Run(ctx, os.Args)
}

// globalFlags are shared by every command that boots the application.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: cli.EnvVars("ASFOOR_LOG_LEVEL"),
			Value:   "info",
		},
		&cli.BoolFlag{
			Name:    "log-json",
			Usage:   "Emit JSON logs",
			Sources: cli.EnvVars("ASFOOR_LOG_JSON"),
		},
	}
}

// boot loads and validates configuration, builds the logger, and assembles
// the application.
func boot(ctx context.Context, c *cli.Command) (*app.App, *slog.Logger, error) {
	logger := log.New(log.Config{
		Level: parseLogLevel(c.String("log-level")),
		JSON:  c.Bool("log-json"),
	})
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return a, logger, nil
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print the version",
		Action: func(_ context.Context, _ *cli.Command) error {
			fmt.Println("asfoor", Version)
			return nil
		},
	}
}
