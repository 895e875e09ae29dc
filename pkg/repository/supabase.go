package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/efemerides-ve/efemerides/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

const DefaultSupabaseTable = "ephemerides"

// Supabase implements Repository on top of the PostgREST API of a Supabase project
type Supabase struct {
	baseURL    string
	apiKey     string
	table      string
	httpClient *http.Client
}

type SupabaseOption func(*Supabase)

func WithSupabaseTable(table string) SupabaseOption {
	return func(s *Supabase) {
		if table != "" {
			s.table = table
		}
	}
}

func WithSupabaseHTTPClient(client *http.Client) SupabaseOption {
	return func(s *Supabase) {
		s.httpClient = client
	}
}

// NewSupabase creates a Supabase repository. baseURL is the project URL without the /rest/v1 suffix.
func NewSupabase(baseURL, apiKey string, opts ...SupabaseOption) (*Supabase, error) {
	if baseURL == "" {
		return nil, goerr.New("supabase url is required")
	}
	if apiKey == "" {
		return nil, goerr.New("supabase key is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, goerr.Wrap(err, "invalid supabase url", goerr.V("url", baseURL))
	}

	s := &Supabase{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		table:   DefaultSupabaseTable,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

func (s *Supabase) ListByDate(ctx context.Context, date model.Date) ([]*model.Ephemeris, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("display_date", "eq."+date.String())
	q.Set("order", "priority.desc,created_at.asc,id.asc")

	var rows []*supabaseRow
	if _, err := s.request(ctx, http.MethodGet, q, nil, &rows); err != nil {
		return nil, goerr.Wrap(err, "failed to list ephemerides", goerr.V("date", date))
	}

	records := toModels(rows)
	model.SortEphemerides(records)
	return records, nil
}

func (s *Supabase) Latest(ctx context.Context) (*model.Ephemeris, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("order", "display_date.desc,priority.desc,created_at.asc,id.asc")
	q.Set("limit", "1")

	var rows []*supabaseRow
	if _, err := s.request(ctx, http.MethodGet, q, nil, &rows); err != nil {
		return nil, goerr.Wrap(err, "failed to get latest ephemeris")
	}

	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].toModel(), nil
}

func (s *Supabase) Insert(ctx context.Context, ephemeris *model.Ephemeris) (*model.Ephemeris, error) {
	body, err := json.Marshal(newSupabaseInsert(ephemeris))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal ephemeris")
	}

	var rows []*supabaseRow
	status, err := s.request(ctx, http.MethodPost, nil, body, &rows)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to insert ephemeris", goerr.V("date", ephemeris.DisplayDate))
	}
	if status != http.StatusCreated {
		return nil, goerr.Wrap(model.ErrUpstreamFailure, "unexpected status on insert", goerr.V("status", status))
	}
	if len(rows) == 0 {
		return nil, goerr.Wrap(model.ErrUpstreamFailure, "insert returned no representation")
	}

	return rows[0].toModel(), nil
}

func (s *Supabase) DeleteByDate(ctx context.Context, date model.Date) (int, error) {
	q := url.Values{}
	q.Set("display_date", "eq."+date.String())

	var rows []*supabaseRow
	if _, err := s.request(ctx, http.MethodDelete, q, nil, &rows); err != nil {
		return 0, goerr.Wrap(err, "failed to delete ephemerides", goerr.V("date", date))
	}

	return len(rows), nil
}

// request sends one PostgREST call and decodes a JSON array response into out
func (s *Supabase) request(ctx context.Context, method string, query url.Values, body []byte, out any) (int, error) {
	endpoint := s.baseURL + "/rest/v1/" + s.table
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to create request")
	}

	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, goerr.Wrap(model.ErrUpstreamFailure, "failed to send request to supabase",
			goerr.V("method", method),
			goerr.V("error", err.Error()))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, goerr.Wrap(model.ErrUpstreamFailure, "failed to read supabase response",
			goerr.V("error", err.Error()))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, goerr.Wrap(model.ErrUpstreamFailure, "supabase returned error",
			goerr.V("method", method),
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(raw)))
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return resp.StatusCode, nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return resp.StatusCode, goerr.Wrap(model.ErrUpstreamFailure, "failed to decode supabase response",
			goerr.V("error", err.Error()),
			goerr.V("body", string(raw)))
	}

	return resp.StatusCode, nil
}

// supabaseRow is the wire shape of a row of the ephemerides table
type supabaseRow struct {
	ID              json.RawMessage `json:"id"`
	Day             int             `json:"day"`
	Month           int             `json:"month"`
	Year            int             `json:"year"`
	Event           string          `json:"event"`
	DisplayDate     string          `json:"display_date"`
	HistoricalDay   *int            `json:"historical_day"`
	HistoricalMonth *int            `json:"historical_month"`
	HistoricalYear  *int            `json:"historical_year"`
	Priority        *int            `json:"priority"`
	Source          *string         `json:"source"`
	URL             *string         `json:"url"`
	Confidence      *string         `json:"confidence"`
	CreatedAt       *timestamp      `json:"created_at"`
	UpdatedAt       *timestamp      `json:"updated_at"`
}

func (r *supabaseRow) toModel() *model.Ephemeris {
	e := &model.Ephemeris{
		ID:              rawID(r.ID),
		DisplayDate:     model.Date(r.DisplayDate),
		Day:             r.Day,
		Month:           r.Month,
		Year:            r.Year,
		Event:           r.Event,
		HistoricalDay:   r.HistoricalDay,
		HistoricalMonth: r.HistoricalMonth,
		HistoricalYear:  r.HistoricalYear,
		Priority:        model.DefaultPriority,
		Source:          deref(r.Source),
		URL:             deref(r.URL),
		Confidence:      model.Confidence(deref(r.Confidence)),
		CreatedAt:       r.CreatedAt.timePtr(),
		UpdatedAt:       r.UpdatedAt.timePtr(),
	}
	if r.Priority != nil {
		e.Priority = *r.Priority
	}
	return e
}

func toModels(rows []*supabaseRow) []*model.Ephemeris {
	records := make([]*model.Ephemeris, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.toModel())
	}
	return records
}

type supabaseInsert struct {
	Day             int    `json:"day"`
	Month           int    `json:"month"`
	Year            int    `json:"year"`
	Event           string `json:"event"`
	DisplayDate     string `json:"display_date"`
	HistoricalDay   *int   `json:"historical_day"`
	HistoricalMonth *int   `json:"historical_month"`
	HistoricalYear  *int   `json:"historical_year"`
	Priority        int    `json:"priority"`
	Source          string `json:"source,omitempty"`
	URL             string `json:"url,omitempty"`
	Confidence      string `json:"confidence,omitempty"`
}

func newSupabaseInsert(e *model.Ephemeris) *supabaseInsert {
	return &supabaseInsert{
		Day:             e.Day,
		Month:           e.Month,
		Year:            e.Year,
		Event:           e.Event,
		DisplayDate:     e.DisplayDate.String(),
		HistoricalDay:   e.HistoricalDay,
		HistoricalMonth: e.HistoricalMonth,
		HistoricalYear:  e.HistoricalYear,
		Priority:        e.Priority,
		Source:          e.Source,
		URL:             e.URL,
		Confidence:      string(e.Confidence),
	}
}

// rawID renders numeric and string primary keys alike
func rawID(raw json.RawMessage) model.EphemerisID {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return model.EphemerisID(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return model.EphemerisID(n.String())
	}
	return model.EphemerisID(strconv.Quote(string(raw)))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// timestamp accepts timestamptz and timestamp (no zone) renderings from PostgREST
type timestamp time.Time

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
}

func (t *timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return goerr.Wrap(err, "timestamp must be a string")
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = timestamp(parsed.UTC())
			return nil
		}
	}
	return goerr.New("unsupported timestamp format", goerr.V("value", s))
}

func (t *timestamp) timePtr() *time.Time {
	if t == nil {
		return nil
	}
	v := time.Time(*t)
	return &v
}
