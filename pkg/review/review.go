// Package review evaluates operator-supplied Rego rules against generated
// candidates. Rules live in package "review" and may define two sets:
//
//	deny contains msg if { ... }  # reject the candidate
//	warn contains msg if { ... }  # accept, but report
package review

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/efemerides-ve/efemerides/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/topdown/print"
)

const query = "data.review"

// Input is the document exposed to rules as `input`
type Input struct {
	DisplayDate     string `json:"display_date"`
	Event           string `json:"event"`
	HistoricalYear  *int   `json:"historical_year"`
	HistoricalMonth *int   `json:"historical_month"`
	HistoricalDay   *int   `json:"historical_day"`
	Source          string `json:"source"`
	URL             string `json:"url"`
	Confidence      string `json:"confidence"`
	URLReachable    *bool  `json:"url_reachable"`
}

// Result holds the messages produced by the rules, sorted
type Result struct {
	Deny []string
	Warn []string
}

// Reviewer runs the prepared review query. The zero value and a nil pointer accept everything.
type Reviewer struct {
	policy *rego.PreparedEvalQuery
}

// printHook forwards Rego print() output to the context logger
type printHook struct {
	ctx context.Context
}

func (h *printHook) Print(_ print.Context, message string) error {
	logging.From(h.ctx).Debug("rego print", "message", message)
	return nil
}

// New loads rules from policyDir. An empty policyDir disables review.
func New(ctx context.Context, policyDir string) (*Reviewer, error) {
	if policyDir == "" {
		return &Reviewer{}, nil
	}

	policy, err := loadPolicy(ctx, policyDir)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load review policy", goerr.V("dir", policyDir))
	}

	return &Reviewer{policy: policy}, nil
}

// Enabled reports whether any rule was loaded
func (r *Reviewer) Enabled() bool {
	return r != nil && r.policy != nil
}

// Review evaluates the rules against input
func (r *Reviewer) Review(ctx context.Context, input *Input) (*Result, error) {
	if !r.Enabled() {
		return &Result{}, nil
	}

	doc, err := toDocument(input)
	if err != nil {
		return nil, err
	}

	rs, err := r.policy.Eval(ctx, rego.EvalInput(doc), rego.EvalPrintHook(&printHook{ctx: ctx}))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to evaluate review policy")
	}

	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return &Result{}, nil
	}

	data, ok := rs[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return nil, goerr.New("invalid review result: not an object")
	}

	deny, err := getStrings(data, "deny")
	if err != nil {
		return nil, err
	}
	warn, err := getStrings(data, "warn")
	if err != nil {
		return nil, err
	}

	return &Result{Deny: deny, Warn: warn}, nil
}

func getStrings(m map[string]any, key string) ([]string, error) {
	v, ok := m[key]
	if !ok {
		return nil, nil
	}

	items, ok := v.([]any)
	if !ok {
		return nil, goerr.New("invalid review result: not a set", goerr.V("key", key))
	}

	result := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, goerr.New("invalid review result: message is not a string", goerr.V("key", key), goerr.V("value", item))
		}
		result = append(result, s)
	}
	sort.Strings(result)
	return result, nil
}

func toDocument(input *Input) (map[string]any, error) {
	raw, err := json.Marshal(input)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal review input")
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal review input")
	}
	return doc, nil
}
