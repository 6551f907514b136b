// Package handler exposes the assessment pipeline as a JSON HTTP API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pavelanni/assessor/internal/evaluate"
	"github.com/pavelanni/assessor/internal/generate"
	"github.com/pavelanni/assessor/internal/i18n"
	"github.com/pavelanni/assessor/internal/store"
)

const (
	// MaxUploadMiB bounds the study document upload.
	MaxUploadMiB  = 20
	maxUploadSize = MaxUploadMiB << 20
	maxJSONBody   = 5 << 20
	healthTimeout = 5 * time.Second
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	gen  *generate.Generator
	eval *evaluate.Evaluator
	repo *store.Repository
	log  *slog.Logger
}

// New creates a new Handler.
func New(gen *generate.Generator, eval *evaluate.Evaluator, repo *store.Repository, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{gen: gen, eval: eval, repo: repo, log: log}
}

// Router returns a chi router with the standard middleware and all routes.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(2 * time.Minute))
	r.Use(i18n.Middleware)
	h.Routes(r)
	return r
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/pdf/generate-questions", h.handleGenerateQuestions)

		r.Route("/class", func(r chi.Router) {
			r.Post("/save-material", h.handleSaveMaterial)
			r.Get("/list-materials", h.handleListMaterials)
			r.Get("/materials/{id}", h.handleGetMaterial)
		})

		r.Route("/evaluation", func(r chi.Router) {
			r.Post("/submit", h.handleSubmit)
			r.Get("/stats/{assignmentId}", h.handleAssignmentStats)
			r.Get("/all-stats", h.handleAllStats)
			r.Post("/remediate", h.handleRemediate)
			r.Get("/student-summary/{studentId}", h.handleStudentSummary)
			r.Get("/export", h.handleExport)
		})
	})
}

type healthResponse struct {
	Status    string   `json:"status"`
	Store     string   `json:"store"`
	Languages []string `json:"languages"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := healthResponse{Status: "ok", Store: "ok", Languages: i18n.Languages()}
	status := http.StatusOK
	if err := h.repo.Ping(ctx); err != nil {
		h.log.Warn("store health check failed", "error", err)
		resp.Status, resp.Store = "unavailable", "unreachable"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// decodeJSON reads a single JSON value from the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		}
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}
