package ephemeris

import (
	"context"

	"github.com/efemerides-ve/efemerides/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Outcome tags which branch of the selection policy produced a Selection
type Outcome int

const (
	// OutcomeFound means records exist for the requested date (or today)
	OutcomeFound Outcome = iota + 1
	// OutcomeFoundFallback means today had nothing and the latest record is shown instead
	OutcomeFoundFallback
	// OutcomeEmpty means an explicitly requested date has no records
	OutcomeEmpty
	// OutcomeNoData means the store holds no records at all
	OutcomeNoData
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFound:
		return "found"
	case OutcomeFoundFallback:
		return "found_fallback"
	case OutcomeEmpty:
		return "empty"
	case OutcomeNoData:
		return "no_data"
	default:
		return "unknown"
	}
}

// Selection is the result of Select
type Selection struct {
	Outcome Outcome
	// Date is the requested date, or today when none was requested
	Date       model.Date
	Records    []*model.Ephemeris
	IsToday    bool
	IsFallback bool
}

// Select picks the records to display. With a requested date it returns that
// date's records, possibly none. Without one it returns today's records,
// falling back to the single most recent record, or OutcomeNoData.
func (u *UseCase) Select(ctx context.Context, requested *model.Date) (*Selection, error) {
	if requested != nil {
		if err := requested.Validate(); err != nil {
			return nil, err
		}

		records, err := u.repo.ListByDate(ctx, *requested)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list ephemerides for date", goerr.V("date", *requested))
		}
		model.SortEphemerides(records)

		sel := &Selection{
			Outcome: OutcomeFound,
			Date:    *requested,
			Records: records,
			IsToday: *requested == u.Today(),
		}
		if len(records) == 0 {
			sel.Outcome = OutcomeEmpty
			sel.IsToday = false
		}
		return sel, nil
	}

	today := u.Today()
	records, err := u.repo.ListByDate(ctx, today)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list ephemerides for today", goerr.V("date", today))
	}

	if len(records) > 0 {
		model.SortEphemerides(records)
		return &Selection{
			Outcome: OutcomeFound,
			Date:    today,
			Records: records,
			IsToday: true,
		}, nil
	}

	latest, err := u.repo.Latest(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get latest ephemeris")
	}

	if latest == nil {
		return &Selection{
			Outcome: OutcomeNoData,
			Date:    today,
		}, nil
	}

	return &Selection{
		Outcome:    OutcomeFoundFallback,
		Date:       today,
		Records:    []*model.Ephemeris{latest},
		IsFallback: true,
	}, nil
}
