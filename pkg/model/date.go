package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
)

const dateLayout = "2006-01-02"

// Date is a calendar date in YYYY-MM-DD form, always interpreted in UTC
type Date string

// ParseDate validates s and returns it as a Date
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return "", goerr.Wrap(ErrInvalidDate, "date must be YYYY-MM-DD", goerr.V("date", s))
	}
	return Date(t.Format(dateLayout)), nil
}

// DateOf truncates t to its UTC calendar date
func DateOf(t time.Time) Date {
	return Date(t.UTC().Format(dateLayout))
}

// Today returns the UTC date of now
func Today(now time.Time) Date {
	return DateOf(now)
}

func (d Date) String() string {
	return string(d)
}

// Time returns midnight UTC of the date. Zero time if the date is malformed.
func (d Date) Time() time.Time {
	t, err := time.Parse(dateLayout, string(d))
	if err != nil {
		return time.Time{}
	}
	return t
}

// AddDays returns the date n days after d
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

func (d Date) Day() int {
	return d.Time().Day()
}

func (d Date) Month() int {
	return int(d.Time().Month())
}

func (d Date) Year() int {
	return d.Time().Year()
}

// Validate checks the date is well formed
func (d Date) Validate() error {
	_, err := ParseDate(string(d))
	return err
}
