package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/efemerides-ve/efemerides/pkg/metrics"
	"github.com/efemerides-ve/efemerides/pkg/model"
	"github.com/efemerides-ve/efemerides/pkg/repository"
	"github.com/efemerides-ve/efemerides/pkg/server"
	"github.com/efemerides-ve/efemerides/pkg/usecase/ephemeris"
	"github.com/m-mizutani/gt"
)

var now = time.Date(2025, 4, 19, 12, 0, 0, 0, time.UTC)

type response struct {
	Data    *model.Ephemeris   `json:"data"`
	Records []*model.Ephemeris `json:"records"`
	IsToday *bool              `json:"isToday"`
	Count   int                `json:"count"`
	Message string             `json:"message"`
	Error   string             `json:"error"`
}

func intPtr(v int) *int { return &v }

func seed(t *testing.T, repo repository.Repository, date model.Date, priority int, event string) {
	t.Helper()
	_, err := repo.Insert(context.Background(), &model.Ephemeris{
		DisplayDate:     date,
		Day:             date.Day(),
		Month:           date.Month(),
		Year:            date.Year(),
		Event:           event,
		HistoricalYear:  intPtr(1810),
		HistoricalMonth: intPtr(date.Month()),
		HistoricalDay:   intPtr(date.Day()),
		Priority:        priority,
	})
	gt.NoError(t, err)
}

func newServer(repo repository.Repository, m *metrics.Metrics) *server.Server {
	uc := ephemeris.New(repo, nil, ephemeris.WithClock(func() time.Time { return now }))
	return server.New(uc, server.WithMetrics(m))
}

func get(t *testing.T, h http.Handler, target string) (*httptest.ResponseRecorder, *response) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	var body response
	if rec.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, &body
}

func TestToday(t *testing.T) {
	repo := repository.NewMemory()
	seed(t, repo, "2025-04-19", 1, "Se instala la Junta Suprema. Comienza la independencia.")
	seed(t, repo, "2025-04-19", 2, "Prioritario. Detalle.")
	h := newServer(repo, metrics.New(false))

	rec, body := get(t, h, "/api/today")
	gt.Equal(t, rec.Code, http.StatusOK)
	gt.Equal(t, rec.Header().Get("Cache-Control"), "public, max-age=3600")
	gt.Equal(t, body.Count, 2)
	gt.A(t, body.Records).Length(2)
	gt.Equal(t, body.Data.Event, "Prioritario. Detalle.")
	gt.NotNil(t, body.IsToday)
	gt.True(t, *body.IsToday)
	gt.Equal(t, body.Message, "")
}

func TestTodayFallback(t *testing.T) {
	repo := repository.NewMemory()
	seed(t, repo, "2025-04-01", 1, "Viejo.")
	seed(t, repo, "2025-04-10", 1, "Reciente.")
	h := newServer(repo, metrics.New(false))

	rec, body := get(t, h, "/api/today")
	gt.Equal(t, rec.Code, http.StatusOK)
	gt.Equal(t, body.Data.Event, "Reciente.")
	gt.Equal(t, body.Count, 1)
	gt.False(t, *body.IsToday)
	gt.Equal(t, body.Message, "Mostrando la efeméride más reciente")
}

func TestTodayNoData(t *testing.T) {
	rec, body := get(t, newServer(repository.NewMemory(), nil), "/api/today")
	gt.Equal(t, rec.Code, http.StatusNotFound)
	gt.Equal(t, body.Error, "No hay efemérides disponibles")
	gt.S(t, body.Message).Contains("generación")
	gt.Equal(t, rec.Header().Get("Cache-Control"), "")
}

func TestRequestedDate(t *testing.T) {
	repo := repository.NewMemory()
	seed(t, repo, "2025-03-01", 1, "Marzo.")
	seed(t, repo, "2025-04-19", 1, "Hoy.")
	h := newServer(repo, nil)

	t.Run("found", func(t *testing.T) {
		rec, body := get(t, h, "/api/today?date=2025-03-01")
		gt.Equal(t, rec.Code, http.StatusOK)
		gt.Equal(t, body.Data.Event, "Marzo.")
		gt.Nil(t, body.IsToday)
	})

	t.Run("not found does not fall back", func(t *testing.T) {
		rec, body := get(t, h, "/api/today?date=2025-02-01")
		gt.Equal(t, rec.Code, http.StatusNotFound)
		gt.Equal(t, body.Error, "No se encontró efeméride para la fecha especificada")
		gt.Nil(t, body.Data)
	})

	t.Run("invalid date", func(t *testing.T) {
		rec, body := get(t, h, "/api/today?date=19-04-2025")
		gt.Equal(t, rec.Code, http.StatusBadRequest)
		gt.NotEqual(t, body.Error, "")
	})
}

type brokenSelector struct{}

func (brokenSelector) Select(context.Context, *model.Date) (*ephemeris.Selection, error) {
	return nil, model.ErrUpstreamFailure
}

func TestTodayInternalError(t *testing.T) {
	rec, body := get(t, server.New(brokenSelector{}), "/api/today")
	gt.Equal(t, rec.Code, http.StatusInternalServerError)
	gt.Equal(t, body.Error, "Error interno del servidor")
}

func TestHealthAndMetrics(t *testing.T) {
	m := metrics.New(false)
	h := newServer(repository.NewMemory(), m)

	rec, _ := get(t, h, "/healthz")
	gt.Equal(t, rec.Code, http.StatusOK)
	gt.Equal(t, rec.Body.String(), "ok")

	get(t, h, "/api/today")

	rec, _ = get(t, h, "/metrics")
	gt.Equal(t, rec.Code, http.StatusOK)
	gt.S(t, rec.Body.String()).Contains(`efemerides_http_requests_total{outcome="no_data"} 1`)
	gt.S(t, rec.Body.String()).Contains(`efemerides_http_request_duration_seconds_count{route="/api/today"} 1`)
}

func TestMetricsDisabled(t *testing.T) {
	rec, _ := get(t, newServer(repository.NewMemory(), nil), "/metrics")
	gt.Equal(t, rec.Code, http.StatusNotFound)
}
