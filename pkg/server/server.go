package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/efemerides-ve/efemerides/pkg/metrics"
	"github.com/efemerides-ve/efemerides/pkg/model"
	"github.com/efemerides-ve/efemerides/pkg/usecase/ephemeris"
	"github.com/efemerides-ve/efemerides/pkg/utils/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	cacheControl = "public, max-age=3600"

	msgNotFoundForDate = "No se encontró efeméride para la fecha especificada"
	msgNoData          = "No hay efemérides disponibles"
	msgNoDataHint      = "Aún no se ha generado ninguna efeméride. Ejecuta el comando de generación para crear una."
	msgFallback        = "Mostrando la efeméride más reciente"
	msgInvalidDate     = "Fecha inválida, use el formato YYYY-MM-DD"
	msgInternal        = "Error interno del servidor"
)

// Selector picks the records to display for a date, or for today when date is nil
type Selector interface {
	Select(ctx context.Context, requested *model.Date) (*ephemeris.Selection, error)
}

type todayResponse struct {
	Data    *model.Ephemeris   `json:"data"`
	Records []*model.Ephemeris `json:"records"`
	IsToday *bool              `json:"isToday,omitempty"`
	Count   int                `json:"count"`
	Message string             `json:"message,omitempty"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type Server struct {
	selector Selector
	metrics  *metrics.Metrics
	router   chi.Router
}

type Option func(*Server)

// WithMetrics counts requests and exposes /metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// New builds the HTTP handler serving the today endpoint
func New(selector Selector, opts ...Option) *Server {
	s := &Server{selector: selector}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.accessLog)

	r.Get("/api/today", s.handleToday)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// NewHTTPServer wraps handler with the server timeouts used in production
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func (s *Server) handleToday(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var requested *model.Date
	if raw := r.URL.Query().Get("date"); raw != "" {
		date, err := model.ParseDate(raw)
		if err != nil {
			s.observe("invalid_date")
			writeJSON(ctx, w, http.StatusBadRequest, &errorResponse{Error: msgInvalidDate})
			return
		}
		requested = &date
	}

	sel, err := s.selector.Select(ctx, requested)
	if err != nil {
		logging.From(ctx).Error("failed to select ephemeris", "error", err)
		s.observe("error")
		writeJSON(ctx, w, http.StatusInternalServerError, &errorResponse{Error: msgInternal})
		return
	}
	s.observe(sel.Outcome.String())

	switch sel.Outcome {
	case ephemeris.OutcomeEmpty:
		writeJSON(ctx, w, http.StatusNotFound, &errorResponse{Error: msgNotFoundForDate})
		return
	case ephemeris.OutcomeNoData:
		writeJSON(ctx, w, http.StatusNotFound, &errorResponse{Error: msgNoData, Message: msgNoDataHint})
		return
	}

	resp := &todayResponse{
		Data:    sel.Records[0],
		Records: sel.Records,
		Count:   len(sel.Records),
	}
	if requested == nil {
		isToday := sel.IsToday
		resp.IsToday = &isToday
	}
	if sel.Outcome == ephemeris.OutcomeFoundFallback {
		resp.Message = msgFallback
	}

	w.Header().Set("Cache-Control", cacheControl)
	writeJSON(ctx, w, http.StatusOK, resp)
}

func (s *Server) observe(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveRequest(outcome)
	}
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.From(ctx).Warn("failed to write response", "error", err)
	}
}
