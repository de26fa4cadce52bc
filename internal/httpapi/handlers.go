package httpapi

import (
	"context"
	"errors"
	"maps"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tiger/hzz-draft-assistant/api/document"
	"github.com/tiger/hzz-draft-assistant/internal/drafting"
	"github.com/tiger/hzz-draft-assistant/internal/generation"
	"github.com/tiger/hzz-draft-assistant/internal/intake"
	"github.com/tiger/hzz-draft-assistant/internal/observability/telemetry"
	"github.com/tiger/hzz-draft-assistant/internal/sanitize"
	"github.com/tiger/hzz-draft-assistant/internal/store"
	"github.com/tiger/hzz-draft-assistant/internal/summary"
)

type healthResponse struct {
	Service       string   `json:"service"`
	Status        string   `json:"status"`
	SchemaVersion string   `json:"schema_version"`
	Providers     []string `json:"providers"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Service:       ServiceName,
		Status:        "operational",
		SchemaVersion: s.deps.Pipeline.Registry().Version(),
		Providers:     s.deps.Providers,
	}
	if resp.Providers == nil {
		resp.Providers = []string{}
	}
	if err := s.deps.Repository.Ping(r.Context()); err != nil {
		resp.Status = "degraded"
		s.writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.deps.Pipeline.Registry().JSONSchema())
}

// handleValidate sanitizes a raw AI document. The response is always the
// Result; success=false carries the issues.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	startMS := telemetry.NowMS()
	result := s.deps.Pipeline.RunJSON(body)
	generation.RecordValidation(result, startMS, telemetry.NowMS(), telemetry.Correlation{
		RequestID:     middleware.GetReqID(r.Context()),
		SchemaVersion: s.deps.Pipeline.Registry().Version(),
		EmittedBy:     "httpapi",
	})
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCreateApplication(w http.ResponseWriter, r *http.Request) {
	var in store.NewApplication
	if !s.decodeBody(w, r, &in) {
		return
	}
	app, err := s.deps.Repository.CreateApplication(r.Context(), in)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, app)
}

func (s *Server) handleListApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := s.deps.Repository.ListApplications(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if apps == nil {
		apps = []store.Application{}
	}
	s.writeJSON(w, http.StatusOK, apps)
}

func (s *Server) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	app, err := s.deps.Repository.GetApplication(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, app)
}

type generateFailure struct {
	Error string          `json:"error"`
	RunID string          `json:"run_id,omitempty"`
	Draft drafting.Result `json:"draft"`
}

// handleGenerate answers 200 with a persisted draft, 422 when the sanitized
// draft has issues and 502 when no provider produced a usable draft.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var in intake.Data
	if !s.decodeBody(w, r, &in) {
		return
	}
	out, err := s.deps.Generator.GenerateFromIntake(r.Context(), chi.URLParam(r, "id"), in)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, intake.ErrInvalidIntake):
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, drafting.ErrDraftFailed):
		s.writeJSON(w, http.StatusBadGateway, generateFailure{Error: err.Error(), RunID: out.RunID, Draft: out.Draft})
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	default:
		s.writeError(w, http.StatusInternalServerError, "generation failed")
		return
	}

	status := http.StatusOK
	if !out.Result.Success {
		status = http.StatusUnprocessableEntity
	}
	s.writeJSON(w, status, out)
}

func (s *Server) handleGetSections(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Repository.LoadSections(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// handlePutSections saves user edits to one or more sections. Every section
// is sanitized first; nothing is written when any of them has issues.
func (s *Server) handlePutSections(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	raw, err := sanitize.Decode(body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	sections, ok := raw.(map[string]any)
	if !ok || len(sections) == 0 {
		s.writeError(w, http.StatusBadRequest, "request body must be an object of sections")
		return
	}

	result := document.Result{Data: document.Document{}}
	for _, key := range slices.Sorted(maps.Keys(sections)) {
		section, issues := s.deps.Pipeline.RunSection(key, sections[key])
		if section != nil {
			result.Data[key] = section
		}
		result.Issues = append(result.Issues, issues...)
	}
	result.Success = len(result.Issues) == 0
	if !result.Success {
		s.writeJSON(w, http.StatusUnprocessableEntity, result)
		return
	}

	if err := s.deps.Repository.SaveSections(r.Context(), id, result.Data); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

type summaryResponse struct {
	ApplicationID string          `json:"application_id"`
	Summary       summary.Summary `json:"summary"`
	Lines         []summary.Line  `json:"lines"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	result, err := s.deps.Repository.LoadSections(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	sum := summary.Compute(result.Data)
	s.writeJSON(w, http.StatusOK, summaryResponse{ApplicationID: id, Summary: sum, Lines: sum.Lines()})
}
