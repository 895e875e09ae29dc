package cli

import (
	"context"
	"io"
	"os"

	"github.com/efemerides-ve/efemerides/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	return run(ctx, argv, os.Stdout, os.Stderr)
}

func run(ctx context.Context, argv []string, stdout, stderr io.Writer) *Error {
	var (
		logLevel  string
		logFormat string
	)

	cmd := &cli.Command{
		Name:      "efemerides",
		Usage:     "Daily Venezuelan historical ephemeris service",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Aliases:     []string{"l"},
				Usage:       "Log level (debug, info, warn, error)",
				Value:       "info",
				Sources:     cli.EnvVars("EFEMERIDES_LOG_LEVEL"),
				Destination: &logLevel,
			},
			&cli.StringFlag{
				Name:        "log-format",
				Usage:       "Log format (console, json)",
				Value:       string(logging.FormatConsole),
				Sources:     cli.EnvVars("EFEMERIDES_LOG_FORMAT"),
				Destination: &logFormat,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			logger := logging.New(logLevel, stderr, logging.WithFormat(logging.Format(logFormat)))
			logging.SetDefault(logger)
			return logging.With(ctx, logger), nil
		},
		Commands: []*cli.Command{
			serveCommand(),
			generateCommand(),
			deleteCommand(),
			showCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		logging.From(ctx).Error("command failed", "error", err)
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}
