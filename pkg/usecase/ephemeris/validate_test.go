package ephemeris_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/efemerides-ve/efemerides/pkg/adapter"
	"github.com/efemerides-ve/efemerides/pkg/model"
	"github.com/efemerides-ve/efemerides/pkg/review"
	"github.com/efemerides-ve/efemerides/pkg/usecase/ephemeris"
	"github.com/m-mizutani/gt"
)

// stubChecker answers Check from a fixed table; unknown urls are reachable
type stubChecker struct {
	failures map[string]error
	calls    []string
}

func (s *stubChecker) Check(_ context.Context, rawURL string) error {
	s.calls = append(s.calls, rawURL)
	return s.failures[rawURL]
}

func completeCandidate() *model.Candidate {
	return &model.Candidate{
		Event:           "Se firma el Acta de la Independencia. El Congreso declara la independencia de Venezuela.",
		HistoricalYear:  intPtr(1811),
		HistoricalMonth: intPtr(7),
		HistoricalDay:   intPtr(5),
		Source:          "Congreso de 1811",
		URL:             "https://example.com/acta",
		Confidence:      model.ConfidenceHigh,
	}
}

func TestValidateComplete(t *testing.T) {
	checker := &stubChecker{}
	v := ephemeris.NewValidator(ephemeris.PolicyStrict, ephemeris.WithURLChecker(checker))

	got, err := v.Validate(context.Background(), "2025-07-05", completeCandidate())
	gt.NoError(t, err)
	gt.A(t, got.Warnings).Length(0)
	gt.A(t, checker.calls).Length(1)

	r := got.Record
	gt.Equal(t, r.DisplayDate, model.Date("2025-07-05"))
	gt.Equal(t, r.Day, 5)
	gt.Equal(t, r.Month, 7)
	gt.Equal(t, r.Year, 2025)
	gt.Equal(t, r.Priority, model.DefaultPriority)
	gt.Equal(t, *r.HistoricalYear, 1811)
	gt.Equal(t, r.Confidence, model.ConfidenceHigh)
}

func TestValidateIncomplete(t *testing.T) {
	testCases := map[string]struct {
		mutate  func(c *model.Candidate)
		missing []string
	}{
		"missing year": {
			mutate:  func(c *model.Candidate) { c.HistoricalYear = nil },
			missing: []string{"historicalYear"},
		},
		"blank event": {
			mutate:  func(c *model.Candidate) { c.Event = "   " },
			missing: []string{"event"},
		},
		"month out of range": {
			mutate:  func(c *model.Candidate) { c.HistoricalMonth = intPtr(13) },
			missing: []string{"historicalMonth"},
		},
		"several fields": {
			mutate: func(c *model.Candidate) {
				c.HistoricalDay = intPtr(0)
				c.HistoricalYear = intPtr(-5)
			},
			missing: []string{"historicalYear", "historicalDay"},
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			c := completeCandidate()
			tc.mutate(c)

			v := ephemeris.NewValidator(ephemeris.PolicyLenient, ephemeris.WithURLChecker(&stubChecker{}))
			_, err := v.Validate(context.Background(), "2025-07-05", c)
			gt.Error(t, err)
			gt.True(t, errors.Is(err, model.ErrIncompleteRecord))

			var vErr *ephemeris.ValidationError
			gt.True(t, errors.As(err, &vErr))
			gt.Equal(t, vErr.Kind, ephemeris.KindIncompleteRecord)
			gt.Equal(t, vErr.Missing, tc.missing)
		})
	}
}

func TestValidateConfidence(t *testing.T) {
	v := ephemeris.NewValidator(ephemeris.PolicyLenient, ephemeris.WithURLChecker(&stubChecker{}))

	t.Run("low confidence is a warning", func(t *testing.T) {
		c := completeCandidate()
		c.Confidence = model.ConfidenceLow
		got, err := v.Validate(context.Background(), "2025-07-05", c)
		gt.NoError(t, err)
		gt.A(t, got.Warnings).Length(1)
		gt.S(t, got.Warnings[0]).Contains("low confidence")
		gt.Equal(t, got.Record.Confidence, model.ConfidenceLow)
	})

	t.Run("unknown confidence is dropped", func(t *testing.T) {
		c := completeCandidate()
		c.Confidence = "certain"
		got, err := v.Validate(context.Background(), "2025-07-05", c)
		gt.NoError(t, err)
		gt.A(t, got.Warnings).Length(1)
		gt.Equal(t, got.Record.Confidence, model.Confidence(""))
	})
}

func TestValidateSourcePolicy(t *testing.T) {
	ctx := context.Background()
	unreachable := &stubChecker{failures: map[string]error{
		"https://example.com/acta": errors.New("timeout"),
	}}

	t.Run("strict rejects unreachable url", func(t *testing.T) {
		v := ephemeris.NewValidator(ephemeris.PolicyStrict, ephemeris.WithURLChecker(unreachable))
		_, err := v.Validate(ctx, "2025-07-05", completeCandidate())
		gt.True(t, errors.Is(err, model.ErrUnverifiableSource))
	})

	t.Run("strict rejects missing url", func(t *testing.T) {
		c := completeCandidate()
		c.URL = ""
		checker := &stubChecker{}
		v := ephemeris.NewValidator(ephemeris.PolicyStrict, ephemeris.WithURLChecker(checker))
		_, err := v.Validate(ctx, "2025-07-05", c)
		gt.True(t, errors.Is(err, model.ErrUnverifiableSource))
		gt.A(t, checker.calls).Length(0)
	})

	t.Run("lenient accepts unreachable url with warning", func(t *testing.T) {
		v := ephemeris.NewValidator(ephemeris.PolicyLenient, ephemeris.WithURLChecker(unreachable))
		got, err := v.Validate(ctx, "2025-07-05", completeCandidate())
		gt.NoError(t, err)
		gt.A(t, got.Warnings).Length(1)
		gt.S(t, got.Warnings[0]).Contains("not reachable")
	})

	t.Run("lenient accepts missing url", func(t *testing.T) {
		c := completeCandidate()
		c.URL = ""
		checker := &stubChecker{}
		v := ephemeris.NewValidator(ephemeris.PolicyLenient, ephemeris.WithURLChecker(checker))
		got, err := v.Validate(ctx, "2025-07-05", c)
		gt.NoError(t, err)
		gt.A(t, checker.calls).Length(0)
		gt.Equal(t, got.Record.URL, "")
	})
}

func TestValidateStrictWithSlowServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	checker := adapter.NewURLChecker(adapter.WithCheckTimeout(100 * time.Millisecond))
	c := completeCandidate()
	c.URL = srv.URL + "/acta"

	_, err := ephemeris.NewValidator(ephemeris.PolicyStrict, ephemeris.WithURLChecker(checker)).
		Validate(context.Background(), "2025-07-05", c)
	gt.True(t, errors.Is(err, model.ErrUnverifiableSource))

	got, err := ephemeris.NewValidator(ephemeris.PolicyLenient, ephemeris.WithURLChecker(checker)).
		Validate(context.Background(), "2025-07-05", c)
	gt.NoError(t, err)
	gt.A(t, got.Warnings).Length(1)
}

func TestValidateExplicitPriority(t *testing.T) {
	c := completeCandidate()
	c.Priority = intPtr(4)
	got, err := ephemeris.NewValidator(ephemeris.PolicyLenient, ephemeris.WithURLChecker(&stubChecker{})).
		Validate(context.Background(), "2025-07-05", c)
	gt.NoError(t, err)
	gt.Equal(t, got.Record.Priority, 4)
}

func TestValidateReview(t *testing.T) {
	dir := t.TempDir()
	policy := `package review

deny contains "event mentions fiction" if {
	contains(lower(input.event), "ficción")
}

warn contains "source is not an archive" if {
	input.source != ""
	not contains(lower(input.source), "archivo")
}
`
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "review.rego"), []byte(policy), 0644))

	ctx := context.Background()
	reviewer, err := review.New(ctx, dir)
	gt.NoError(t, err)
	v := ephemeris.NewValidator(ephemeris.PolicyLenient,
		ephemeris.WithURLChecker(&stubChecker{}),
		ephemeris.WithReviewer(reviewer),
	)

	t.Run("warn", func(t *testing.T) {
		got, err := v.Validate(ctx, "2025-07-05", completeCandidate())
		gt.NoError(t, err)
		gt.A(t, got.Warnings).Length(1)
		gt.Equal(t, got.Warnings[0], "source is not an archive")
	})

	t.Run("deny", func(t *testing.T) {
		c := completeCandidate()
		c.Event = "Un relato de ficción. Nunca ocurrió."
		_, err := v.Validate(ctx, "2025-07-05", c)
		gt.True(t, errors.Is(err, model.ErrPolicyDenied))

		var vErr *ephemeris.ValidationError
		gt.True(t, errors.As(err, &vErr))
		gt.Equal(t, vErr.Reason, "event mentions fiction")
	})
}

func TestParsePolicy(t *testing.T) {
	p, err := ephemeris.ParsePolicy("")
	gt.NoError(t, err)
	gt.Equal(t, p, ephemeris.PolicyLenient)

	p, err = ephemeris.ParsePolicy("STRICT")
	gt.NoError(t, err)
	gt.Equal(t, p, ephemeris.PolicyStrict)

	_, err = ephemeris.ParsePolicy("paranoid")
	gt.Error(t, err)
}
