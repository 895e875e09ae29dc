package model

// Candidate is an ephemeris parsed from a generation response, not yet validated
type Candidate struct {
	Event           string
	HistoricalYear  *int
	HistoricalMonth *int
	HistoricalDay   *int
	Source          string
	URL             string
	Confidence      Confidence
	Priority        *int

	// Error is set when the model reports it could not find a verifiable event
	Error string
}
