package ephemeris

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/efemerides-ve/efemerides/pkg/model"
	"github.com/efemerides-ve/efemerides/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// GenerateOutcome tags how a generation run ended without error
type GenerateOutcome int

const (
	// GenerateOutcomeCreated means a new record was inserted
	GenerateOutcomeCreated GenerateOutcome = iota + 1
	// GenerateOutcomeSkipped means the date already had records, nothing was generated
	GenerateOutcomeSkipped
	// GenerateOutcomeNoEvent means the model reported no verifiable event
	GenerateOutcomeNoEvent
)

func (o GenerateOutcome) String() string {
	switch o {
	case GenerateOutcomeCreated:
		return "created"
	case GenerateOutcomeSkipped:
		return "skipped"
	case GenerateOutcomeNoEvent:
		return "no_event"
	default:
		return "unknown"
	}
}

// GenerateResult is the result of Generate
type GenerateResult struct {
	Outcome GenerateOutcome
	Date    model.Date
	// Record is the inserted record, or the first existing one when skipped
	Record   *model.Ephemeris
	Warnings []string
	// Reason is the model's explanation for GenerateOutcomeNoEvent
	Reason string
}

// GenerationRecorder receives the outcome label of every Generate call
type GenerationRecorder interface {
	ObserveGeneration(outcome string)
}

// WithGenerationRecorder reports generation outcomes to r
func WithGenerationRecorder(r GenerationRecorder) Option {
	return func(uc *UseCase) {
		uc.recorder = r
	}
}

// Generate creates the record for date unless one already exists
func (u *UseCase) Generate(ctx context.Context, date model.Date) (*GenerateResult, error) {
	result, err := u.generate(ctx, date)
	if u.recorder != nil {
		u.recorder.ObserveGeneration(generationLabel(result, err))
	}
	return result, err
}

func (u *UseCase) generate(ctx context.Context, date model.Date) (*GenerateResult, error) {
	logger := logging.From(ctx)

	if err := date.Validate(); err != nil {
		return nil, err
	}
	if u.gemini == nil {
		return nil, goerr.New("gemini client is not configured")
	}

	existing, err := u.repo.ListByDate(ctx, date)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to check existing ephemerides", goerr.V("date", date))
	}
	if len(existing) > 0 {
		model.SortEphemerides(existing)
		logger.Info("ephemeris already exists, skipping generation",
			"date", date,
			"id", existing[0].ID,
			"count", len(existing),
		)
		return &GenerateResult{
			Outcome: GenerateOutcomeSkipped,
			Date:    date,
			Record:  existing[0],
		}, nil
	}

	prompt, err := BuildPrompt(date, u.generation.Categories)
	if err != nil {
		return nil, err
	}

	config, err := u.contentConfig()
	if err != nil {
		return nil, err
	}

	logger.Info("generating ephemeris", "date", date, "month", MonthName(date.Month()), "day", date.Day())

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	resp, err := u.gemini.GenerateContent(ctx, contents, config)
	if err != nil {
		return nil, goerr.Wrap(model.ErrUpstreamFailure, "failed to generate content",
			goerr.V("date", date),
			goerr.V("error", err.Error()),
		)
	}

	raw := responseText(resp)
	if strings.TrimSpace(raw) == "" {
		return nil, goerr.Wrap(model.ErrUpstreamFailure, "empty response from gemini", goerr.V("date", date))
	}

	u.archive(ctx, date, raw)

	parsed, err := Parse(raw)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse generation response", goerr.V("date", date))
	}

	if parsed.Outcome == ParseOutcomeNoEventFound {
		logger.Warn("model found no verifiable event", "date", date, "reason", parsed.Reason)
		return &GenerateResult{
			Outcome: GenerateOutcomeNoEvent,
			Date:    date,
			Reason:  parsed.Reason,
		}, nil
	}

	validated, err := u.validator.Validate(ctx, date, parsed.Candidate)
	if err != nil {
		return nil, goerr.Wrap(err, "candidate rejected", goerr.V("date", date))
	}
	for _, w := range validated.Warnings {
		logger.Warn("validation warning", "date", date, "warning", w)
	}

	inserted, err := u.repo.Insert(ctx, validated.Record)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to insert ephemeris", goerr.V("date", date))
	}

	logger.Info("ephemeris created",
		"date", date,
		"id", inserted.ID,
		"title", inserted.Title(),
		"historical_year", derefInt(inserted.HistoricalYear),
	)

	return &GenerateResult{
		Outcome:  GenerateOutcomeCreated,
		Date:     date,
		Record:   inserted,
		Warnings: validated.Warnings,
	}, nil
}

func (u *UseCase) contentConfig() (*genai.GenerateContentConfig, error) {
	cfg := u.generation
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(cfg.Temperature),
		TopK:            genai.Ptr(cfg.TopK),
		TopP:            genai.Ptr(cfg.TopP),
		MaxOutputTokens: cfg.MaxOutputTokens,
	}

	if cfg.StructuredOutput {
		schema, err := ResponseSchema()
		if err != nil {
			return nil, err
		}
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = schema
	}

	return config, nil
}

// archive stores the raw response. Failures are logged and otherwise ignored.
func (u *UseCase) archive(ctx context.Context, date model.Date, raw string) {
	if u.storage == nil {
		return
	}

	key := fmt.Sprintf("%s%s/%d.json", u.archiveDir, date, u.now().UnixNano())
	if err := u.storage.Put(ctx, key, "application/json", []byte(raw)); err != nil {
		logging.From(ctx).Warn("failed to archive generation response", "key", key, "error", err)
		return
	}
	logging.From(ctx).Debug("archived generation response", "key", key)
}

// responseText joins the non-thought text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		b.WriteString(part.Text)
	}
	return b.String()
}

func generationLabel(result *GenerateResult, err error) string {
	if err == nil {
		return result.Outcome.String()
	}

	var parseErr *ParseError
	var validationErr *ValidationError
	switch {
	case errors.As(err, &parseErr):
		return "malformed_payload"
	case errors.As(err, &validationErr):
		switch validationErr.Kind {
		case KindIncompleteRecord:
			return "incomplete_record"
		case KindUnverifiableSource:
			return "unverifiable_source"
		case KindPolicyDenied:
			return "policy_denied"
		}
	case errors.Is(err, model.ErrUpstreamFailure):
		return "upstream_failure"
	}
	return "error"
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
