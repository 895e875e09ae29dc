package cli

import (
	"context"
	"time"

	"github.com/efemerides-ve/efemerides/pkg/adapter"
	"github.com/efemerides-ve/efemerides/pkg/repository"
	"github.com/efemerides-ve/efemerides/pkg/review"
	"github.com/efemerides-ve/efemerides/pkg/usecase/ephemeris"
	"github.com/efemerides-ve/efemerides/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

const (
	backendSupabase  = "supabase"
	backendFirestore = "firestore"
	backendMemory    = "memory"
)

// config holds configuration values
type config struct {
	// Repository
	backend             string
	supabaseURL         string
	supabaseKey         string
	supabaseTable       string
	firestoreProject    string
	firestoreDatabase   string
	firestoreCollection string

	// Generation
	geminiAPIKey   string
	geminiProject  string
	geminiLocation string
	geminiModel    string
	profile        string

	// Archive
	bucket        string
	archivePrefix string

	// Validation
	policy       string
	policyDir    string
	checkTimeout time.Duration
}

// repositoryFlags returns flags selecting and configuring the data store
func repositoryFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "backend",
			Aliases:     []string{"b"},
			Usage:       "Data store backend (supabase, firestore, memory)",
			Value:       backendSupabase,
			Sources:     cli.EnvVars("EFEMERIDES_BACKEND"),
			Destination: &cfg.backend,
		},
		&cli.StringFlag{
			Name:        "supabase-url",
			Usage:       "Supabase project URL",
			Sources:     cli.EnvVars("SUPABASE_URL"),
			Destination: &cfg.supabaseURL,
		},
		&cli.StringFlag{
			Name:        "supabase-key",
			Usage:       "Supabase service key (anon key is accepted for read-only use)",
			Sources:     cli.EnvVars("SUPABASE_SERVICE_KEY", "SUPABASE_ANON_KEY"),
			Destination: &cfg.supabaseKey,
		},
		&cli.StringFlag{
			Name:        "supabase-table",
			Usage:       "Supabase table holding ephemerides",
			Value:       repository.DefaultSupabaseTable,
			Sources:     cli.EnvVars("EFEMERIDES_SUPABASE_TABLE"),
			Destination: &cfg.supabaseTable,
		},
		&cli.StringFlag{
			Name:        "firestore-project",
			Usage:       "Google Cloud project ID for Firestore",
			Sources:     cli.EnvVars("EFEMERIDES_FIRESTORE_PROJECT", "GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.firestoreProject,
		},
		&cli.StringFlag{
			Name:        "firestore-database",
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("EFEMERIDES_FIRESTORE_DATABASE"),
			Destination: &cfg.firestoreDatabase,
		},
		&cli.StringFlag{
			Name:        "firestore-collection",
			Usage:       "Firestore collection holding ephemerides",
			Value:       repository.DefaultFirestoreCollection,
			Sources:     cli.EnvVars("EFEMERIDES_FIRESTORE_COLLECTION"),
			Destination: &cfg.firestoreCollection,
		},
	}
}

// generationFlags returns flags for the Gemini client, validation and archive
func generationFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-api-key",
			Usage:       "Gemini API key (takes precedence over Vertex AI settings)",
			Sources:     cli.EnvVars("GEMINI_API_KEY"),
			Destination: &cfg.geminiAPIKey,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini on Vertex AI",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini on Vertex AI",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Gemini model name (overrides the profile)",
			Sources:     cli.EnvVars("EFEMERIDES_GEMINI_MODEL"),
			Destination: &cfg.geminiModel,
		},
		&cli.StringFlag{
			Name:        "profile",
			Usage:       "YAML file with generation settings",
			Sources:     cli.EnvVars("EFEMERIDES_PROFILE"),
			Destination: &cfg.profile,
		},
		&cli.StringFlag{
			Name:        "archive-bucket",
			Usage:       "Cloud Storage bucket to archive raw model responses",
			Sources:     cli.EnvVars("EFEMERIDES_ARCHIVE_BUCKET"),
			Destination: &cfg.bucket,
		},
		&cli.StringFlag{
			Name:        "archive-prefix",
			Usage:       "Object name prefix for archived responses",
			Value:       "responses/",
			Sources:     cli.EnvVars("EFEMERIDES_ARCHIVE_PREFIX"),
			Destination: &cfg.archivePrefix,
		},
		&cli.StringFlag{
			Name:        "policy",
			Usage:       "Validation policy (strict requires a reachable source url, lenient does not)",
			Value:       string(ephemeris.PolicyLenient),
			Sources:     cli.EnvVars("EFEMERIDES_POLICY"),
			Destination: &cfg.policy,
		},
		&cli.StringFlag{
			Name:        "policy-dir",
			Usage:       "Directory of Rego review rules (package review)",
			Sources:     cli.EnvVars("EFEMERIDES_POLICY_DIR"),
			Destination: &cfg.policyDir,
		},
		&cli.DurationFlag{
			Name:        "check-timeout",
			Usage:       "Timeout for the source url reachability check",
			Value:       adapter.DefaultCheckTimeout,
			Sources:     cli.EnvVars("EFEMERIDES_CHECK_TIMEOUT"),
			Destination: &cfg.checkTimeout,
		},
	}
}

// newRepository creates the repository for the configured backend. The
// returned closer releases backend resources.
func (cfg *config) newRepository(ctx context.Context) (repository.Repository, func(), error) {
	switch cfg.backend {
	case backendSupabase, "":
		if cfg.supabaseURL == "" {
			return nil, nil, goerr.New("supabase-url is required (SUPABASE_URL)")
		}
		if cfg.supabaseKey == "" {
			return nil, nil, goerr.New("supabase-key is required (SUPABASE_SERVICE_KEY)")
		}
		repo, err := repository.NewSupabase(cfg.supabaseURL, cfg.supabaseKey,
			repository.WithSupabaseTable(cfg.supabaseTable),
		)
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to create repository")
		}
		return repo, func() {}, nil

	case backendFirestore:
		if cfg.firestoreProject == "" {
			return nil, nil, goerr.New("firestore-project is required")
		}
		if cfg.firestoreDatabase == "" {
			return nil, nil, goerr.New("firestore-database is required")
		}
		repo, err := repository.NewFirestore(ctx, cfg.firestoreProject, cfg.firestoreDatabase,
			repository.WithFirestoreCollection(cfg.firestoreCollection),
		)
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to create repository")
		}
		return repo, func() {
			if err := repo.Close(); err != nil {
				logging.From(ctx).Warn("failed to close firestore client", "error", err)
			}
		}, nil

	case backendMemory:
		logging.From(ctx).Warn("using in-memory backend, records are lost on exit")
		return repository.NewMemory(), func() {}, nil

	default:
		return nil, nil, goerr.New("unknown backend", goerr.V("backend", cfg.backend))
	}
}

// loadGenerationConfig merges the profile file and the model flag
func (cfg *config) loadGenerationConfig() (ephemeris.GenerationConfig, error) {
	gen := ephemeris.DefaultGenerationConfig()
	if cfg.profile != "" {
		loaded, err := ephemeris.LoadProfile(cfg.profile)
		if err != nil {
			return gen, err
		}
		gen = loaded
	}
	if cfg.geminiModel != "" {
		gen.Model = cfg.geminiModel
	}
	return gen, nil
}

// newGemini creates a Gemini adapter instance. An API key selects the Gemini
// API, otherwise Vertex AI is used.
func (cfg *config) newGemini(ctx context.Context, model string) (adapter.Gemini, error) {
	if cfg.geminiAPIKey != "" {
		client, err := adapter.NewGeminiWithAPIKey(ctx, cfg.geminiAPIKey, adapter.WithGenerativeModel(model))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create gemini client")
		}
		return client, nil
	}

	if cfg.geminiProject == "" {
		return nil, goerr.New("gemini-api-key (GEMINI_API_KEY) or gemini-project is required")
	}
	if cfg.geminiLocation == "" {
		return nil, goerr.New("gemini-location is required")
	}
	client, err := adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation, adapter.WithGenerativeModel(model))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create gemini client")
	}
	return client, nil
}

// newStorage creates the archive storage, or nil when no bucket is configured
func (cfg *config) newStorage(ctx context.Context) (adapter.Storage, error) {
	if cfg.bucket == "" {
		return nil, nil
	}

	storage, err := adapter.NewStorage(ctx, cfg.bucket)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage")
	}
	return storage, nil
}

// newValidator builds the validator from policy, review rules and timeout
func (cfg *config) newValidator(ctx context.Context) (*ephemeris.Validator, error) {
	policy, err := ephemeris.ParsePolicy(cfg.policy)
	if err != nil {
		return nil, err
	}

	reviewer, err := review.New(ctx, cfg.policyDir)
	if err != nil {
		return nil, err
	}

	return ephemeris.NewValidator(policy,
		ephemeris.WithURLChecker(adapter.NewURLChecker(adapter.WithCheckTimeout(cfg.checkTimeout))),
		ephemeris.WithReviewer(reviewer),
	), nil
}
