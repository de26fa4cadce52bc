// Package httpapi exposes validation, generation and section editing over
// HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tiger/hzz-draft-assistant/api/document"
	"github.com/tiger/hzz-draft-assistant/internal/generation"
	"github.com/tiger/hzz-draft-assistant/internal/intake"
	"github.com/tiger/hzz-draft-assistant/internal/observability/telemetry"
	"github.com/tiger/hzz-draft-assistant/internal/sanitize"
	"github.com/tiger/hzz-draft-assistant/internal/store"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "hzz-draft-assistant"

const defaultMaxBodyBytes = 2 << 20

// Repository is the store surface the API reads and writes.
type Repository interface {
	Ping(ctx context.Context) error
	CreateApplication(ctx context.Context, in store.NewApplication) (store.Application, error)
	GetApplication(ctx context.Context, id string) (store.Application, error)
	ListApplications(ctx context.Context) ([]store.Application, error)
	SaveSections(ctx context.Context, id string, doc document.Document) error
	LoadSections(ctx context.Context, id string) (document.Result, error)
}

// Generator drafts an application from intake answers.
type Generator interface {
	GenerateFromIntake(ctx context.Context, appID string, in intake.Data) (generation.Outcome, error)
}

// Deps wires a Server.
type Deps struct {
	Pipeline   sanitize.Pipeline
	Repository Repository
	Generator  Generator
	// Providers lists draft provider ids for the health endpoint.
	Providers    []string
	MaxBodyBytes int64
	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Server owns the API handlers.
type Server struct {
	deps Deps
}

// New validates deps and returns a Server.
func New(deps Deps) (*Server, error) {
	if deps.Pipeline.Registry() == nil {
		return nil, fmt.Errorf("httpapi: pipeline is required")
	}
	if deps.Repository == nil || deps.Generator == nil {
		return nil, fmt.Errorf("httpapi: repository and generator are required")
	}
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = defaultMaxBodyBytes
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Server{deps: deps}, nil
}

// Router builds the chi router with middleware and every route.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestTelemetry)
	s.RegisterHTTP(r)
	return r
}

// RegisterHTTP mounts the API routes on r.
func (s *Server) RegisterHTTP(r chi.Router) {
	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/schema", s.handleSchema)
		r.Post("/validate", s.handleValidate)
		r.Route("/applications", func(r chi.Router) {
			r.Post("/", s.handleCreateApplication)
			r.Get("/", s.handleListApplications)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetApplication)
				r.Post("/generate", s.handleGenerate)
				r.Get("/sections", s.handleGetSections)
				r.Put("/sections", s.handlePutSections)
				r.Get("/summary", s.handleSummary)
			})
		})
	})
}

func requestTelemetry(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		startMS := telemetry.NowMS()
		next.ServeHTTP(ww, r)
		endMS := telemetry.NowMS()

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		correlation := telemetry.Correlation{
			RequestID:     middleware.GetReqID(r.Context()),
			ApplicationID: chi.URLParamFromCtx(r.Context(), "id"),
			EmittedBy:     "httpapi",
		}
		attributes := map[string]string{
			"method": r.Method,
			"route":  route,
			"status": strconv.Itoa(status),
		}
		telemetry.DefaultEmitter().EmitMetric(telemetry.MetricHTTPLatencyMS, float64(endMS-startMS), "ms", attributes, correlation)
		severity := "info"
		if status >= http.StatusInternalServerError {
			severity = "error"
		}
		telemetry.DefaultEmitter().EmitLog("http_request", severity, r.Method+" "+route, attributes, correlation)
	})
}

type errorBody struct {
	Error string `json:"error"`
}

// writeJSON answers 500 when v cannot be encoded.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		s.deps.Logger.Error("encode response", "status", status, "error", err)
		status = http.StatusInternalServerError
		body, _ = json.Marshal(errorBody{Error: "internal error"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorBody{Error: message})
}

// writeStoreError maps store errors onto status codes.
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrUnknownSection):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.deps.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return nil, false
		}
		s.writeError(w, http.StatusBadRequest, "could not read request body")
		return nil, false
	}
	return body, true
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body, ok := s.readBody(w, r)
	if !ok {
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}
