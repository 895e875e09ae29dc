package review_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/efemerides-ve/efemerides/pkg/review"
	"github.com/m-mizutani/gt"
)

const testPolicy = `package review

deny contains "event is too short" if {
	count(input.event) < 20
}

deny contains "historical year is in the future" if {
	input.historical_year > 2100
}

warn contains "no source given" if {
	input.source == ""
}

warn contains msg if {
	input.url_reachable == false
	msg := sprintf("url %s did not answer", [input.url])
}
`

func writePolicy(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "review.rego"), []byte(body), 0644))
	return dir
}

func intPtr(v int) *int { return &v }

func TestReview(t *testing.T) {
	ctx := context.Background()
	reviewer, err := review.New(ctx, writePolicy(t, testPolicy))
	gt.NoError(t, err)
	gt.True(t, reviewer.Enabled())

	t.Run("clean candidate", func(t *testing.T) {
		result, err := reviewer.Review(ctx, &review.Input{
			DisplayDate:    "2025-04-19",
			Event:          "Se instala la Junta Suprema de Caracas. Comienza el proceso independentista.",
			HistoricalYear: intPtr(1810),
			Source:         "Academia Nacional de la Historia",
		})
		gt.NoError(t, err)
		gt.A(t, result.Deny).Length(0)
		gt.A(t, result.Warn).Length(0)
	})

	t.Run("denied and warned", func(t *testing.T) {
		reachable := false
		result, err := reviewer.Review(ctx, &review.Input{
			Event:          "Corto.",
			HistoricalYear: intPtr(2999),
			URL:            "https://example.com/x",
			URLReachable:   &reachable,
		})
		gt.NoError(t, err)
		gt.A(t, result.Deny).Length(2)
		gt.Equal(t, result.Deny[0], "event is too short")
		gt.Equal(t, result.Deny[1], "historical year is in the future")
		gt.A(t, result.Warn).Length(2)
		gt.Equal(t, result.Warn[0], "no source given")
		gt.Equal(t, result.Warn[1], "url https://example.com/x did not answer")
	})
}

func TestReviewDisabled(t *testing.T) {
	ctx := context.Background()

	t.Run("no directory", func(t *testing.T) {
		reviewer, err := review.New(ctx, "")
		gt.NoError(t, err)
		gt.False(t, reviewer.Enabled())

		result, err := reviewer.Review(ctx, &review.Input{Event: "x"})
		gt.NoError(t, err)
		gt.A(t, result.Deny).Length(0)
	})

	t.Run("directory without rego files", func(t *testing.T) {
		reviewer, err := review.New(ctx, t.TempDir())
		gt.NoError(t, err)
		gt.False(t, reviewer.Enabled())
	})

	t.Run("nil reviewer", func(t *testing.T) {
		var reviewer *review.Reviewer
		result, err := reviewer.Review(ctx, &review.Input{Event: "x"})
		gt.NoError(t, err)
		gt.A(t, result.Warn).Length(0)
	})
}

func TestReviewInvalidPolicy(t *testing.T) {
	_, err := review.New(context.Background(), writePolicy(t, "package review\n\ndeny contains if {"))
	gt.Error(t, err)
}
