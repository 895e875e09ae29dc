package model

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrNotFound means no record exists for the requested display date
	ErrNotFound = goerr.New("ephemeris not found")
	// ErrNoDataAvailable means the store holds no record at all
	ErrNoDataAvailable = goerr.New("no ephemeris available")
	// ErrMalformedPayload means the generation output could not be decoded
	ErrMalformedPayload = goerr.New("malformed generation payload")
	// ErrNoEventFound means the model explicitly declined to produce an event
	ErrNoEventFound = goerr.New("no verifiable event found")
	// ErrIncompleteRecord means required fields are missing from a candidate
	ErrIncompleteRecord = goerr.New("incomplete ephemeris record")
	// ErrUnverifiableSource means the source url is absent or unreachable under strict policy
	ErrUnverifiableSource = goerr.New("unverifiable source")
	// ErrPolicyDenied means a review rule rejected the candidate
	ErrPolicyDenied = goerr.New("denied by review policy")
	// ErrUpstreamFailure means a network or HTTP error talking to the store or the model
	ErrUpstreamFailure = goerr.New("upstream failure")

	ErrInvalidDate       = goerr.New("invalid date")
	ErrInvalidConfidence = goerr.New("invalid confidence")
)
