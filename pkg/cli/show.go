package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/efemerides-ve/efemerides/pkg/model"
	"github.com/efemerides-ve/efemerides/pkg/usecase/ephemeris"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func showCommand() *cli.Command {
	var (
		cfg    config
		asJSON bool
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "Print the selected records as JSON",
			Destination: &asJSON,
		},
	}
	flags = append(flags, repositoryFlags(&cfg)...)

	return &cli.Command{
		Name:      "show",
		Usage:     "Show the ephemeris for a date, or the one displayed today",
		ArgsUsage: "[YYYY-MM-DD]",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.NArg() > 1 {
				return goerr.New("too many arguments", goerr.V("args", c.Args().Slice()))
			}

			var requested *model.Date
			if c.NArg() == 1 {
				date, err := model.ParseDate(c.Args().First())
				if err != nil {
					return err
				}
				requested = &date
			}

			// Initialize dependencies
			repo, closeRepo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer closeRepo()

			sel, err := ephemeris.New(repo, nil).Select(ctx, requested)
			if err != nil {
				return goerr.Wrap(err, "failed to select ephemeris")
			}

			w := c.Root().Writer
			switch sel.Outcome {
			case ephemeris.OutcomeEmpty:
				return goerr.Wrap(model.ErrNotFound, "no ephemeris for date", goerr.V("date", sel.Date))
			case ephemeris.OutcomeNoData:
				return goerr.Wrap(model.ErrNoDataAvailable, "no ephemerides available, run generate first")
			}

			if asJSON {
				data, err := json.MarshalIndent(sel.Records, "", "  ")
				if err != nil {
					return goerr.Wrap(err, "failed to marshal ephemerides")
				}
				fmt.Fprintf(w, "%s\n", string(data))
				return nil
			}

			if sel.IsFallback {
				fmt.Fprintf(w, "Nothing for %s, showing the most recent ephemeris\n\n", sel.Date)
			}
			for i, r := range sel.Records {
				if i > 0 {
					fmt.Fprintln(w)
				}
				printEphemeris(c, r)
			}
			return nil
		},
	}
}

func printEphemeris(c *cli.Command, r *model.Ephemeris) {
	w := c.Root().Writer
	fmt.Fprintf(w, "%s  %s\n", r.DisplayDate, r.Title())
	if desc := r.Description(); desc != "" {
		fmt.Fprintf(w, "  %s\n", desc)
	}
	if hd := historicalDate(r); hd != "" {
		fmt.Fprintf(w, "  Historical date: %s\n", hd)
	}
	if r.Source != "" {
		fmt.Fprintf(w, "  Source: %s\n", r.Source)
	}
	if r.URL != "" {
		fmt.Fprintf(w, "  URL: %s\n", r.URL)
	}
	if r.Confidence != "" {
		fmt.Fprintf(w, "  Confidence: %s\n", r.Confidence)
	}
}

// historicalDate formats the historical date as "19 de abril de 1810"
func historicalDate(r *model.Ephemeris) string {
	if r.HistoricalYear == nil || r.HistoricalMonth == nil || r.HistoricalDay == nil {
		return ""
	}
	return fmt.Sprintf("%d de %s de %d", *r.HistoricalDay, ephemeris.MonthName(*r.HistoricalMonth), *r.HistoricalYear)
}
