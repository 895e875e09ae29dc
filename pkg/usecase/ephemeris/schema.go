package ephemeris

import (
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// generatedEvent describes the structured output requested from the model.
// The refusal shape ({"error": ...}) is only reachable in free-text mode.
type generatedEvent struct {
	Event           string `json:"event" jsonschema:"Event description in Spanish. The first sentence is the headline."`
	HistoricalYear  int    `json:"historicalYear" jsonschema:"Year the event happened"`
	HistoricalMonth int    `json:"historicalMonth" jsonschema:"Month the event happened (1-12)"`
	HistoricalDay   int    `json:"historicalDay" jsonschema:"Day of month the event happened"`
	Source          string `json:"source,omitempty" jsonschema:"Work or institution documenting the event"`
	URL             string `json:"url,omitempty" jsonschema:"Public link to a verifiable source"`
	Confidence      string `json:"confidence,omitempty" jsonschema:"How sure the model is about the event"`
}

var confidenceEnum = []string{"high", "medium", "low"}

var (
	responseSchemaOnce sync.Once
	responseSchema     *genai.Schema
	responseSchemaErr  error
)

// ResponseSchema returns the genai schema for structured generation output
func ResponseSchema() (*genai.Schema, error) {
	responseSchemaOnce.Do(func() {
		js, err := jsonschema.For[generatedEvent](nil)
		if err != nil {
			responseSchemaErr = goerr.Wrap(err, "failed to infer response schema")
			return
		}

		schema, err := toGenaiSchema(js)
		if err != nil {
			responseSchemaErr = err
			return
		}
		if conf, ok := schema.Properties["confidence"]; ok {
			conf.Enum = confidenceEnum
			conf.Format = "enum"
		}
		responseSchema = schema
	})

	return responseSchema, responseSchemaErr
}

// toGenaiSchema converts the subset of JSON Schema produced for generatedEvent
func toGenaiSchema(schema *jsonschema.Schema) (*genai.Schema, error) {
	if schema == nil {
		return nil, nil
	}

	out := &genai.Schema{
		Description: schema.Description,
		Required:    schema.Required,
	}

	switch schema.Type {
	case "object":
		out.Type = genai.TypeObject
	case "string":
		out.Type = genai.TypeString
	case "integer":
		out.Type = genai.TypeInteger
	case "number":
		out.Type = genai.TypeNumber
	case "boolean":
		out.Type = genai.TypeBoolean
	case "array":
		out.Type = genai.TypeArray
	default:
		return nil, goerr.New("unsupported schema type", goerr.V("type", schema.Type))
	}

	if len(schema.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(schema.Properties))
		for name, prop := range schema.Properties {
			converted, err := toGenaiSchema(prop)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to convert property schema", goerr.V("property", name))
			}
			out.Properties[name] = converted
		}
	}

	if schema.Items != nil {
		converted, err := toGenaiSchema(schema.Items)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to convert items schema")
		}
		out.Items = converted
	}

	return out, nil
}
