package ephemeris

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/efemerides-ve/efemerides/pkg/model"
)

const (
	fence = "```"

	// excerptLimit bounds the diagnostic text carried by ParseError
	excerptLimit = 200
)

// ErrorKind classifies parse and validation failures
type ErrorKind string

const (
	KindMalformedPayload   ErrorKind = "MalformedPayload"
	KindIncompleteRecord   ErrorKind = "IncompleteRecord"
	KindUnverifiableSource ErrorKind = "UnverifiableSource"
	KindPolicyDenied       ErrorKind = "PolicyDenied"
)

// ParseError reports a generation response that could not be decoded
type ParseError struct {
	Kind    ErrorKind
	Excerpt string
	Cause   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %v (excerpt: %q)", e.Kind, e.Cause, e.Excerpt)
}

func (e *ParseError) Unwrap() error {
	return model.ErrMalformedPayload
}

// ParseOutcome tells whether Parse produced a candidate or an explicit refusal
type ParseOutcome int

const (
	ParseOutcomeParsed ParseOutcome = iota + 1
	ParseOutcomeNoEventFound
)

// ParseResult is the successful result of Parse
type ParseResult struct {
	Outcome   ParseOutcome
	Candidate *model.Candidate
	// Reason is the model's explanation when Outcome is ParseOutcomeNoEventFound
	Reason string
}

// generationPayload is the decoded shape of a generation response
type generationPayload struct {
	Event           string          `json:"event"`
	HistoricalYear  flexInt         `json:"historicalYear"`
	HistoricalMonth flexInt         `json:"historicalMonth"`
	HistoricalDay   flexInt         `json:"historicalDay"`
	Source          string          `json:"source"`
	URL             string          `json:"url"`
	Confidence      string          `json:"confidence"`
	Priority        flexInt         `json:"priority"`
	Error           json.RawMessage `json:"error"`
}

// Parse cleans raw generation text and decodes it into a candidate. A decode
// failure is returned as *ParseError. An explicit "error" field is not a
// failure: it yields ParseOutcomeNoEventFound.
func Parse(raw string) (*ParseResult, error) {
	text := ExtractJSON(raw)

	var payload generationPayload
	dec := json.NewDecoder(strings.NewReader(text))
	if err := dec.Decode(&payload); err != nil {
		return nil, &ParseError{Kind: KindMalformedPayload, Excerpt: excerpt(text), Cause: err}
	}
	if dec.More() {
		return nil, &ParseError{
			Kind:    KindMalformedPayload,
			Excerpt: excerpt(text),
			Cause:   fmt.Errorf("unexpected data after JSON object"),
		}
	}

	if reason, ok := errorReason(payload.Error); ok {
		return &ParseResult{
			Outcome:   ParseOutcomeNoEventFound,
			Candidate: &model.Candidate{Error: reason},
			Reason:    reason,
		}, nil
	}

	return &ParseResult{
		Outcome: ParseOutcomeParsed,
		Candidate: &model.Candidate{
			Event:           payload.Event,
			HistoricalYear:  payload.HistoricalYear.ptr(),
			HistoricalMonth: payload.HistoricalMonth.ptr(),
			HistoricalDay:   payload.HistoricalDay.ptr(),
			Source:          payload.Source,
			URL:             payload.URL,
			Confidence:      model.Confidence(payload.Confidence),
			Priority:        payload.Priority.ptr(),
		},
	}, nil
}

// ExtractJSON strips a fenced code block from text. The content strictly
// between the opening fence line and its closing fence is returned. Only when
// no such pair exists are all lines containing the fence token dropped.
func ExtractJSON(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.Contains(trimmed, fence) {
		return trimmed
	}

	if body, ok := extractFenced(trimmed); ok {
		return body
	}

	lines := strings.Split(trimmed, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.Contains(line, fence) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func extractFenced(text string) (string, bool) {
	lines := strings.Split(text, "\n")

	open := -1
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), fence) {
			open = i
			break
		}
	}
	if open < 0 {
		return "", false
	}

	head := strings.TrimPrefix(strings.TrimSpace(lines[open]), fence)

	// ```json {...}``` on a single line
	if idx := strings.Index(head, fence); idx >= 0 {
		return strings.TrimSpace(stripLanguageTag(head[:idx])), true
	}

	var body []string
	if rest := stripLanguageTag(head); rest != "" {
		body = append(body, rest)
	}

	for j := open + 1; j < len(lines); j++ {
		line := strings.TrimSpace(lines[j])
		if line == fence {
			return strings.TrimSpace(strings.Join(append(body, lines[open+1:j]...), "\n")), true
		}
		// closing fence glued to the last content line
		if strings.HasSuffix(line, fence) && !strings.Contains(strings.TrimSuffix(line, fence), fence) {
			last := strings.TrimSuffix(strings.TrimRightFunc(lines[j], unicode.IsSpace), fence)
			content := append(append(body, lines[open+1:j]...), last)
			return strings.TrimSpace(strings.Join(content, "\n")), true
		}
	}

	return "", false
}

// stripLanguageTag removes an info string such as "json" after an opening fence
func stripLanguageTag(s string) string {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && isTagByte(s[end]) {
		end++
	}
	if end == 0 {
		return s
	}
	if end == len(s) {
		return ""
	}
	next := s[end]
	if next == ' ' || next == '\t' || next == '{' || next == '[' {
		return strings.TrimSpace(s[end:])
	}
	return s
}

func isTagByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '-' || b == '_' || b == '+'
}

func excerpt(s string) string {
	if utf8.RuneCountInString(s) <= excerptLimit {
		return s
	}
	runes := []rune(s)
	return string(runes[:excerptLimit])
}

// errorReason reports whether raw holds an explicit refusal. null, false and
// the empty string do not count.
func errorReason(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}

	switch string(raw) {
	case "null", "false", `""`:
		return "", false
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			return "", false
		}
		return s, true
	}
	return string(raw), true
}

// flexInt decodes a JSON number or numeric string. null, empty and
// non-numeric strings leave it unset so that validation reports the field.
type flexInt struct {
	value int
	set   bool
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		return nil
	}

	var s string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
	} else {
		s = string(data)
	}
	if s == "" {
		return nil
	}

	if n, err := strconv.Atoi(s); err == nil {
		f.value, f.set = n, true
		return nil
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil && v == math.Trunc(v) && math.Abs(v) < math.MaxInt32 {
		f.value, f.set = int(v), true
		return nil
	}

	if data[0] != '"' {
		return fmt.Errorf("invalid number %s", s)
	}
	return nil
}

func (f flexInt) ptr() *int {
	if !f.set {
		return nil
	}
	v := f.value
	return &v
}
