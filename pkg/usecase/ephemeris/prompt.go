package ephemeris

import (
	"bytes"
	_ "embed"
	"text/template"

	"github.com/efemerides-ve/efemerides/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

//go:embed prompt/generate.md
var generatePromptRaw string

var generatePromptTmpl = template.Must(template.New("generate").Parse(generatePromptRaw))

var monthNames = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// MonthName returns the Spanish name of month (1-12)
func MonthName(month int) string {
	if month < 1 || month > 12 {
		return ""
	}
	return monthNames[month-1]
}

// BuildPrompt renders the generation prompt for date
func BuildPrompt(date model.Date, categories []string) (string, error) {
	if err := date.Validate(); err != nil {
		return "", err
	}
	if len(categories) == 0 {
		categories = DefaultCategories
	}

	var buf bytes.Buffer
	if err := generatePromptTmpl.Execute(&buf, map[string]any{
		"Day":        date.Day(),
		"Month":      date.Month(),
		"MonthName":  MonthName(date.Month()),
		"Categories": categories,
	}); err != nil {
		return "", goerr.Wrap(err, "failed to execute generate prompt template", goerr.V("date", date))
	}

	return buf.String(), nil
}
