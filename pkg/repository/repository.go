package repository

import (
	"context"

	"github.com/efemerides-ve/efemerides/pkg/model"
)

// Repository defines the interface for ephemeris persistence
type Repository interface {
	// ListByDate retrieves all records for a display date, priority desc then creation asc
	ListByDate(ctx context.Context, date model.Date) ([]*model.Ephemeris, error)

	// Latest retrieves the record with the most recent display date, or nil if the store is empty
	Latest(ctx context.Context) (*model.Ephemeris, error)

	// Insert persists a new record and returns it as stored
	Insert(ctx context.Context, ephemeris *model.Ephemeris) (*model.Ephemeris, error)

	// DeleteByDate removes every record for a display date and returns how many were removed
	DeleteByDate(ctx context.Context, date model.Date) (int, error)
}
