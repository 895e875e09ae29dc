package ephemeris

import (
	"time"

	"github.com/efemerides-ve/efemerides/pkg/adapter"
	"github.com/efemerides-ve/efemerides/pkg/model"
	"github.com/efemerides-ve/efemerides/pkg/repository"
)

// UseCase provides ephemeris selection, generation and maintenance
type UseCase struct {
	repo       repository.Repository
	gemini     adapter.Gemini
	validator  *Validator
	storage    adapter.Storage
	archiveDir string
	generation GenerationConfig
	recorder   GenerationRecorder
	now        func() time.Time
}

// Option is a functional option for UseCase
type Option func(*UseCase)

// WithClock overrides the clock used to compute "today"
func WithClock(now func() time.Time) Option {
	return func(uc *UseCase) {
		uc.now = now
	}
}

// WithValidator sets the validator applied to generated candidates
func WithValidator(v *Validator) Option {
	return func(uc *UseCase) {
		uc.validator = v
	}
}

// WithArchive stores every raw generation response under prefix in storage
func WithArchive(storage adapter.Storage, prefix string) Option {
	return func(uc *UseCase) {
		uc.storage = storage
		uc.archiveDir = prefix
	}
}

// WithGenerationConfig overrides sampling parameters and prompt categories
func WithGenerationConfig(cfg GenerationConfig) Option {
	return func(uc *UseCase) {
		uc.generation = cfg
	}
}

// New creates a new ephemeris UseCase instance. gemini may be nil when
// generation is not used.
func New(
	repo repository.Repository,
	gemini adapter.Gemini,
	opts ...Option,
) *UseCase {
	uc := &UseCase{
		repo:       repo,
		gemini:     gemini,
		generation: DefaultGenerationConfig(),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(uc)
	}

	if uc.validator == nil {
		uc.validator = NewValidator(PolicyLenient)
	}

	return uc
}

// Today returns the current UTC date
func (u *UseCase) Today() model.Date {
	return model.Today(u.now())
}

// Tomorrow returns the default display date for generation runs
func (u *UseCase) Tomorrow() model.Date {
	return u.Today().AddDays(1)
}
