package cli

import (
	"context"
	"fmt"

	"github.com/efemerides-ve/efemerides/pkg/metrics"
	"github.com/efemerides-ve/efemerides/pkg/model"
	"github.com/efemerides-ve/efemerides/pkg/usecase/ephemeris"
	"github.com/efemerides-ve/efemerides/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func generateCommand() *cli.Command {
	var (
		cfg         config
		metricsFile string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "metrics-textfile",
			Usage:       "Write generation metrics to this file for the node exporter textfile collector",
			Sources:     cli.EnvVars("EFEMERIDES_METRICS_TEXTFILE"),
			Destination: &metricsFile,
		},
	}
	flags = append(flags, repositoryFlags(&cfg)...)
	flags = append(flags, generationFlags(&cfg)...)

	return &cli.Command{
		Name:      "generate",
		Usage:     "Generate the ephemeris for a date (tomorrow by default)",
		ArgsUsage: "[YYYY-MM-DD]",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.NArg() > 1 {
				return goerr.New("too many arguments", goerr.V("args", c.Args().Slice()))
			}

			var date *model.Date
			if c.NArg() == 1 {
				d, err := model.ParseDate(c.Args().First())
				if err != nil {
					return err
				}
				date = &d
			}

			// Initialize dependencies
			repo, closeRepo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer closeRepo()

			gen, err := cfg.loadGenerationConfig()
			if err != nil {
				return err
			}

			gemini, err := cfg.newGemini(ctx, gen.Model)
			if err != nil {
				return err
			}

			validator, err := cfg.newValidator(ctx)
			if err != nil {
				return err
			}

			storage, err := cfg.newStorage(ctx)
			if err != nil {
				return err
			}

			opts := []ephemeris.Option{
				ephemeris.WithValidator(validator),
				ephemeris.WithGenerationConfig(gen),
			}
			if storage != nil {
				opts = append(opts, ephemeris.WithArchive(storage, cfg.archivePrefix))
			}

			var m *metrics.Metrics
			if metricsFile != "" {
				m = metrics.New(false)
				opts = append(opts, ephemeris.WithGenerationRecorder(m))
			}

			uc := ephemeris.New(repo, gemini, opts...)
			if date == nil {
				tomorrow := uc.Tomorrow()
				date = &tomorrow
			}

			result, genErr := uc.Generate(ctx, *date)

			if m != nil {
				if err := m.WriteTextfile(metricsFile); err != nil {
					logging.From(ctx).Warn("failed to write metrics", "error", err)
				}
			}

			if genErr != nil {
				return goerr.Wrap(genErr, "failed to generate ephemeris")
			}

			return printGenerateResult(c, result)
		},
	}
}

func printGenerateResult(c *cli.Command, result *ephemeris.GenerateResult) error {
	w := c.Root().Writer

	switch result.Outcome {
	case ephemeris.GenerateOutcomeSkipped:
		fmt.Fprintf(w, "Ephemeris already exists for %s: %s\n", result.Date, result.Record.Title())
		return nil

	case ephemeris.GenerateOutcomeNoEvent:
		return goerr.Wrap(model.ErrNoEventFound, "no verifiable event found",
			goerr.V("date", result.Date),
			goerr.V("reason", result.Reason),
		)

	default:
		r := result.Record
		fmt.Fprintf(w, "Ephemeris created for %s (id: %s)\n", result.Date, r.ID)
		fmt.Fprintf(w, "  %s\n", r.Title())
		if hd := historicalDate(r); hd != "" {
			fmt.Fprintf(w, "  Historical date: %s\n", hd)
		}
		for _, warning := range result.Warnings {
			fmt.Fprintf(w, "  warning: %s\n", warning)
		}
		return nil
	}
}
