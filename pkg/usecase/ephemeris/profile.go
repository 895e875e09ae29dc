package ephemeris

import (
	"os"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

// DefaultCategories are the topics offered to the model in the prompt
var DefaultCategories = []string{
	"Historia Patria (independencia, batallas, próceres)",
	"Cultura (arte, literatura, música)",
	"Ciencia y tecnología",
	"Deportes",
	"Política y sociedad",
	"Economía",
}

// GenerationConfig holds the model and sampling settings for a generation run
type GenerationConfig struct {
	Model           string   `yaml:"model"`
	Temperature     float32  `yaml:"temperature"`
	TopK            float32  `yaml:"top_k"`
	TopP            float32  `yaml:"top_p"`
	MaxOutputTokens int32    `yaml:"max_output_tokens"`
	Categories      []string `yaml:"categories"`
	// StructuredOutput asks the model for JSON matching ResponseSchema
	StructuredOutput bool `yaml:"structured_output"`
}

func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		Temperature:     0.7,
		TopK:            40,
		TopP:            0.95,
		MaxOutputTokens: 1024,
		Categories:      DefaultCategories,
	}
}

// LoadProfile reads a YAML profile from path on top of the defaults. Keys
// absent from the file keep their default value.
func LoadProfile(path string) (GenerationConfig, error) {
	cfg := DefaultGenerationConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, goerr.Wrap(err, "failed to read generation profile", goerr.V("path", path))
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, goerr.Wrap(err, "failed to parse generation profile", goerr.V("path", path))
	}

	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		return cfg, goerr.New("temperature must be between 0 and 2", goerr.V("temperature", cfg.Temperature))
	}
	if cfg.TopP < 0 || cfg.TopP > 1 {
		return cfg, goerr.New("top_p must be between 0 and 1", goerr.V("top_p", cfg.TopP))
	}
	if cfg.MaxOutputTokens < 0 {
		return cfg, goerr.New("max_output_tokens must not be negative", goerr.V("max_output_tokens", cfg.MaxOutputTokens))
	}
	if len(cfg.Categories) == 0 {
		cfg.Categories = DefaultCategories
	}

	return cfg, nil
}
