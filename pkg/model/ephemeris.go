package model

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

type EphemerisID string

// NewEphemerisID generates a new unique EphemerisID
func NewEphemerisID() EphemerisID {
	return EphemerisID(uuid.New().String())
}

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Validate checks if the confidence is one of the known levels. Empty is allowed.
func (c Confidence) Validate() error {
	switch c {
	case "", ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return nil
	default:
		return goerr.Wrap(ErrInvalidConfidence, "unknown confidence level", goerr.V("confidence", c))
	}
}

// DefaultPriority is assigned to records that do not specify one
const DefaultPriority = 1

// Ephemeris is the daily historical fact shown for a display date
type Ephemeris struct {
	ID          EphemerisID `json:"id" firestore:"-"`
	DisplayDate Date        `json:"display_date" firestore:"display_date"`
	Day         int         `json:"day" firestore:"day"`
	Month       int         `json:"month" firestore:"month"`
	Year        int         `json:"year" firestore:"year"`
	Event       string      `json:"event" firestore:"event"`

	HistoricalDay   *int `json:"historical_day" firestore:"historical_day"`
	HistoricalMonth *int `json:"historical_month" firestore:"historical_month"`
	HistoricalYear  *int `json:"historical_year" firestore:"historical_year"`

	Priority   int        `json:"priority" firestore:"priority"`
	Source     string     `json:"source,omitempty" firestore:"source"`
	URL        string     `json:"url,omitempty" firestore:"url"`
	Confidence Confidence `json:"confidence,omitempty" firestore:"confidence"`

	CreatedAt *time.Time `json:"created_at" firestore:"created_at"`
	UpdatedAt *time.Time `json:"updated_at" firestore:"updated_at"`
}

// Title returns the first sentence of the event, including its period
func (e *Ephemeris) Title() string {
	idx := strings.Index(e.Event, ".")
	if idx < 0 {
		return strings.TrimSpace(e.Event)
	}
	return strings.TrimSpace(e.Event[:idx+1])
}

// Description returns the event text after the title sentence
func (e *Ephemeris) Description() string {
	idx := strings.Index(e.Event, ".")
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(e.Event[idx+1:])
}

// less orders by priority desc, then creation asc, then id asc. Records without
// a creation time sort after those that have one.
func less(a, b *Ephemeris) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	switch {
	case a.CreatedAt != nil && b.CreatedAt != nil:
		if !a.CreatedAt.Equal(*b.CreatedAt) {
			return a.CreatedAt.Before(*b.CreatedAt)
		}
	case a.CreatedAt != nil:
		return true
	case b.CreatedAt != nil:
		return false
	}
	return a.ID < b.ID
}

// SortEphemerides sorts records sharing a display date into display order
func SortEphemerides(records []*Ephemeris) {
	sort.SliceStable(records, func(i, j int) bool {
		return less(records[i], records[j])
	})
}
