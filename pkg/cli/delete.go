package cli

import (
	"context"
	"fmt"

	"github.com/efemerides-ve/efemerides/pkg/model"
	"github.com/efemerides-ve/efemerides/pkg/usecase/ephemeris"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func deleteCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete every ephemeris for a display date",
		ArgsUsage: "<YYYY-MM-DD>",
		Flags:     repositoryFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.NArg() != 1 {
				return goerr.New("a display date (YYYY-MM-DD) is required")
			}

			date, err := model.ParseDate(c.Args().First())
			if err != nil {
				return err
			}

			repo, closeRepo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer closeRepo()

			deleted, err := ephemeris.New(repo, nil).Delete(ctx, date)
			if err != nil {
				return goerr.Wrap(err, "failed to delete ephemeris")
			}

			if deleted == 0 {
				fmt.Fprintf(c.Root().Writer, "No record found for %s\n", date)
				return nil
			}

			fmt.Fprintf(c.Root().Writer, "Deleted %d record(s) for %s\n", deleted, date)
			return nil
		},
	}
}
