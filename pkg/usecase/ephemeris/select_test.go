package ephemeris_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/efemerides-ve/efemerides/pkg/model"
	"github.com/efemerides-ve/efemerides/pkg/repository"
	"github.com/efemerides-ve/efemerides/pkg/usecase/ephemeris"
	"github.com/m-mizutani/gt"
)

var fixedNow = time.Date(2025, 4, 19, 15, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func intPtr(v int) *int { return &v }

func seed(t *testing.T, repo repository.Repository, date model.Date, priority int, event string) *model.Ephemeris {
	t.Helper()
	inserted, err := repo.Insert(context.Background(), &model.Ephemeris{
		DisplayDate:     date,
		Day:             date.Day(),
		Month:           date.Month(),
		Year:            date.Year(),
		Event:           event,
		HistoricalYear:  intPtr(1810),
		HistoricalMonth: intPtr(date.Month()),
		HistoricalDay:   intPtr(date.Day()),
		Priority:        priority,
	})
	gt.NoError(t, err)
	return inserted
}

func TestSelectToday(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	seed(t, repo, "2025-04-18", 1, "Ayer.")
	low := seed(t, repo, "2025-04-19", 1, "Segundo en el día.")
	high := seed(t, repo, "2025-04-19", 5, "Primero en el día.")

	uc := ephemeris.New(repo, nil, ephemeris.WithClock(fixedClock))
	sel, err := uc.Select(ctx, nil)
	gt.NoError(t, err)
	gt.Equal(t, sel.Outcome, ephemeris.OutcomeFound)
	gt.Equal(t, sel.Date, model.Date("2025-04-19"))
	gt.True(t, sel.IsToday)
	gt.False(t, sel.IsFallback)
	gt.A(t, sel.Records).Length(2)
	gt.Equal(t, sel.Records[0].ID, high.ID)
	gt.Equal(t, sel.Records[1].ID, low.ID)
}

func TestSelectFallbackToLatest(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	seed(t, repo, "2025-04-10", 1, "Antiguo.")
	latest := seed(t, repo, "2025-04-15", 1, "Más reciente.")
	seed(t, repo, "2025-04-12", 9, "Intermedio.")

	uc := ephemeris.New(repo, nil, ephemeris.WithClock(fixedClock))
	sel, err := uc.Select(ctx, nil)
	gt.NoError(t, err)
	gt.Equal(t, sel.Outcome, ephemeris.OutcomeFoundFallback)
	gt.False(t, sel.IsToday)
	gt.True(t, sel.IsFallback)
	gt.A(t, sel.Records).Length(1)
	gt.Equal(t, sel.Records[0].ID, latest.ID)
}

func TestSelectNoData(t *testing.T) {
	uc := ephemeris.New(repository.NewMemory(), nil, ephemeris.WithClock(fixedClock))
	sel, err := uc.Select(context.Background(), nil)
	gt.NoError(t, err)
	gt.Equal(t, sel.Outcome, ephemeris.OutcomeNoData)
	gt.A(t, sel.Records).Length(0)
}

func TestSelectRequestedDate(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	seed(t, repo, "2025-04-19", 1, "Hoy.")
	past := seed(t, repo, "2025-03-01", 1, "Pasado.")

	uc := ephemeris.New(repo, nil, ephemeris.WithClock(fixedClock))

	t.Run("date with records", func(t *testing.T) {
		date := model.Date("2025-03-01")
		sel, err := uc.Select(ctx, &date)
		gt.NoError(t, err)
		gt.Equal(t, sel.Outcome, ephemeris.OutcomeFound)
		gt.False(t, sel.IsToday)
		gt.A(t, sel.Records).Length(1)
		gt.Equal(t, sel.Records[0].ID, past.ID)
	})

	t.Run("requested date equal to today", func(t *testing.T) {
		date := model.Date("2025-04-19")
		sel, err := uc.Select(ctx, &date)
		gt.NoError(t, err)
		gt.True(t, sel.IsToday)
	})

	t.Run("date without records does not fall back", func(t *testing.T) {
		date := model.Date("2025-02-01")
		sel, err := uc.Select(ctx, &date)
		gt.NoError(t, err)
		gt.Equal(t, sel.Outcome, ephemeris.OutcomeEmpty)
		gt.A(t, sel.Records).Length(0)
		gt.False(t, sel.IsFallback)
	})

	t.Run("malformed date", func(t *testing.T) {
		date := model.Date("2025-13-40")
		_, err := uc.Select(ctx, &date)
		gt.Error(t, err)
		gt.True(t, errors.Is(err, model.ErrInvalidDate))
	})
}

type failingRepo struct {
	repository.Repository
}

func (failingRepo) ListByDate(context.Context, model.Date) ([]*model.Ephemeris, error) {
	return nil, model.ErrUpstreamFailure
}

func TestSelectStoreFailure(t *testing.T) {
	uc := ephemeris.New(failingRepo{repository.NewMemory()}, nil, ephemeris.WithClock(fixedClock))
	_, err := uc.Select(context.Background(), nil)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrUpstreamFailure))
}

func TestOutcomeString(t *testing.T) {
	gt.Equal(t, ephemeris.OutcomeFound.String(), "found")
	gt.Equal(t, ephemeris.OutcomeFoundFallback.String(), "found_fallback")
	gt.Equal(t, ephemeris.OutcomeEmpty.String(), "empty")
	gt.Equal(t, ephemeris.OutcomeNoData.String(), "no_data")
}
