package ephemeris

import (
	"context"

	"github.com/efemerides-ve/efemerides/pkg/model"
	"github.com/efemerides-ve/efemerides/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Delete removes every record for date and returns how many were removed
func (u *UseCase) Delete(ctx context.Context, date model.Date) (int, error) {
	if err := date.Validate(); err != nil {
		return 0, err
	}

	deleted, err := u.repo.DeleteByDate(ctx, date)
	if err != nil {
		return deleted, goerr.Wrap(err, "failed to delete ephemerides", goerr.V("date", date))
	}

	logging.From(ctx).Info("ephemerides deleted", "date", date, "count", deleted)
	return deleted, nil
}
