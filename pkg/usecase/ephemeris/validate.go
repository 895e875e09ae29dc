package ephemeris

import (
	"context"
	"fmt"
	"strings"

	"github.com/efemerides-ve/efemerides/pkg/adapter"
	"github.com/efemerides-ve/efemerides/pkg/model"
	"github.com/efemerides-ve/efemerides/pkg/review"
	"github.com/efemerides-ve/efemerides/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Policy decides whether a verifiable source is mandatory
type Policy string

const (
	// PolicyStrict requires a reachable url
	PolicyStrict Policy = "strict"
	// PolicyLenient accepts a missing or unreachable url with a warning
	PolicyLenient Policy = "lenient"
)

// ParsePolicy converts a flag value. Empty means lenient.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyLenient:
		return PolicyLenient, nil
	case PolicyStrict:
		return PolicyStrict, nil
	default:
		return "", goerr.New("unknown validation policy", goerr.V("policy", s))
	}
}

// ValidationError reports a candidate that cannot be persisted
type ValidationError struct {
	Kind ErrorKind
	// Missing lists the required fields that were absent or out of range
	Missing []string
	Reason  string
	Cause   error
}

func (e *ValidationError) Error() string {
	msg := string(e.Kind)
	if len(e.Missing) > 0 {
		msg += ": missing " + strings.Join(e.Missing, ", ")
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ValidationError) Unwrap() error {
	switch e.Kind {
	case KindIncompleteRecord:
		return model.ErrIncompleteRecord
	case KindUnverifiableSource:
		return model.ErrUnverifiableSource
	case KindPolicyDenied:
		return model.ErrPolicyDenied
	default:
		return e.Cause
	}
}

// Validated is a candidate that passed validation, ready to insert
type Validated struct {
	Record   *model.Ephemeris
	Warnings []string
}

// Validator checks candidates before persistence
type Validator struct {
	policy   Policy
	checker  adapter.URLChecker
	reviewer *review.Reviewer
}

type ValidatorOption func(*Validator)

func WithURLChecker(checker adapter.URLChecker) ValidatorOption {
	return func(v *Validator) {
		v.checker = checker
	}
}

// WithReviewer adds Rego review rules to validation
func WithReviewer(r *review.Reviewer) ValidatorOption {
	return func(v *Validator) {
		v.reviewer = r
	}
}

func NewValidator(policy Policy, opts ...ValidatorOption) *Validator {
	v := &Validator{policy: policy}
	for _, opt := range opts {
		opt(v)
	}
	if v.checker == nil {
		v.checker = adapter.NewURLChecker()
	}
	return v
}

// Policy returns the policy in effect
func (v *Validator) Policy() Policy {
	return v.policy
}

// Validate checks completeness, confidence and source of c and builds the
// record to persist for displayDate.
func (v *Validator) Validate(ctx context.Context, displayDate model.Date, c *model.Candidate) (*Validated, error) {
	if c == nil {
		return nil, &ValidationError{Kind: KindIncompleteRecord, Missing: []string{"event"}}
	}
	if err := displayDate.Validate(); err != nil {
		return nil, err
	}

	if missing := missingFields(c); len(missing) > 0 {
		return nil, &ValidationError{Kind: KindIncompleteRecord, Missing: missing}
	}

	var warnings []string

	confidence := c.Confidence
	if err := confidence.Validate(); err != nil {
		warnings = append(warnings, fmt.Sprintf("unknown confidence %q was dropped", string(confidence)))
		confidence = ""
	}
	if confidence == model.ConfidenceLow {
		warnings = append(warnings, "low confidence: verify the event before publishing")
	}

	url := strings.TrimSpace(c.URL)
	var reachable *bool
	switch {
	case url == "" && v.policy == PolicyStrict:
		return nil, &ValidationError{Kind: KindUnverifiableSource, Reason: "url is required by strict policy"}
	case url == "":
		warnings = append(warnings, "no source url given")
	default:
		err := v.checker.Check(ctx, url)
		ok := err == nil
		reachable = &ok
		if err != nil {
			if v.policy == PolicyStrict {
				return nil, &ValidationError{Kind: KindUnverifiableSource, Reason: "url is not reachable", Cause: err}
			}
			logging.From(ctx).Warn("source url is not reachable", "url", url, "error", err)
			warnings = append(warnings, fmt.Sprintf("source url %s is not reachable", url))
		}
	}

	if v.reviewer.Enabled() {
		result, err := v.reviewer.Review(ctx, &review.Input{
			DisplayDate:     displayDate.String(),
			Event:           strings.TrimSpace(c.Event),
			HistoricalYear:  c.HistoricalYear,
			HistoricalMonth: c.HistoricalMonth,
			HistoricalDay:   c.HistoricalDay,
			Source:          c.Source,
			URL:             url,
			Confidence:      string(confidence),
			URLReachable:    reachable,
		})
		if err != nil {
			return nil, goerr.Wrap(err, "failed to review candidate")
		}
		if len(result.Deny) > 0 {
			return nil, &ValidationError{Kind: KindPolicyDenied, Reason: strings.Join(result.Deny, "; ")}
		}
		warnings = append(warnings, result.Warn...)
	}

	priority := model.DefaultPriority
	if c.Priority != nil {
		priority = *c.Priority
	}

	record := &model.Ephemeris{
		DisplayDate:     displayDate,
		Day:             displayDate.Day(),
		Month:           displayDate.Month(),
		Year:            displayDate.Year(),
		Event:           strings.TrimSpace(c.Event),
		HistoricalYear:  copyInt(c.HistoricalYear),
		HistoricalMonth: copyInt(c.HistoricalMonth),
		HistoricalDay:   copyInt(c.HistoricalDay),
		Priority:        priority,
		Source:          strings.TrimSpace(c.Source),
		URL:             url,
		Confidence:      confidence,
	}

	return &Validated{Record: record, Warnings: warnings}, nil
}

// missingFields lists absent required fields. Out of range values count as absent.
func missingFields(c *model.Candidate) []string {
	var missing []string
	if strings.TrimSpace(c.Event) == "" {
		missing = append(missing, "event")
	}
	if c.HistoricalYear == nil || *c.HistoricalYear <= 0 {
		missing = append(missing, "historicalYear")
	}
	if c.HistoricalMonth == nil || *c.HistoricalMonth < 1 || *c.HistoricalMonth > 12 {
		missing = append(missing, "historicalMonth")
	}
	if c.HistoricalDay == nil || *c.HistoricalDay < 1 || *c.HistoricalDay > 31 {
		missing = append(missing, "historicalDay")
	}
	return missing
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}
