package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/assessor/internal/apperr"
	"github.com/pavelanni/assessor/internal/evaluate"
	"github.com/pavelanni/assessor/internal/i18n"
	"github.com/pavelanni/assessor/internal/model"
	"github.com/pavelanni/assessor/internal/report"
	"github.com/pavelanni/assessor/internal/stats"
)

func (h *Handler) handleGenerateQuestions(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.writeError(w, r, apperr.Invalid(i18n.Td(r.Context(), "FileTooLarge", map[string]any{"Limit": MaxUploadMiB}), nil))
			return
		}
		h.writeError(w, r, apperr.Invalid("invalid multipart form", err))
		return
	}

	file, header, err := r.FormFile("pdf")
	if err != nil {
		h.writeError(w, r, apperr.Invalid(i18n.T(r.Context(), "FileMissing"), nil))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("read upload: %w", err))
		return
	}

	spec, err := specFromForm(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	doc := model.SourceDocument{
		Name:      header.Filename,
		MediaType: header.Header.Get("Content-Type"),
		Data:      data,
	}
	res, err := h.gen.Generate(r.Context(), doc, spec)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func specFromForm(r *http.Request) (model.AssessmentSpec, error) {
	difficulty, err := model.ParseDifficulty(r.FormValue("difficulty"))
	if err != nil {
		return model.AssessmentSpec{}, apperr.Invalid("invalid difficulty", err)
	}
	questionType, err := model.ParseQuestionType(r.FormValue("questionType"))
	if err != nil {
		return model.AssessmentSpec{}, apperr.Invalid("invalid questionType", err)
	}
	return model.AssessmentSpec{
		GradeLevel:   strings.TrimSpace(r.FormValue("grade")),
		Subject:      strings.TrimSpace(r.FormValue("subject")),
		Difficulty:   difficulty,
		QuestionType: questionType,
	}, nil
}

// saveMaterialRequest is an assignment as sent by the teacher UI.
type saveMaterialRequest struct {
	Questions  model.QuestionSet `json:"questions"`
	Subject    string            `json:"subject"`
	Grade      string            `json:"grade"`
	Difficulty string            `json:"difficulty"`
	Topic      string            `json:"topic"`
	IsManual   bool              `json:"isManual"`
}

func (h *Handler) handleSaveMaterial(w http.ResponseWriter, r *http.Request) {
	var req saveMaterialRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, apperr.Invalid("invalid request body", err))
		return
	}

	a := model.Assignment{
		Questions:  req.Questions,
		Subject:    strings.TrimSpace(req.Subject),
		Grade:      strings.TrimSpace(req.Grade),
		Difficulty: req.Difficulty,
		Topic:      strings.TrimSpace(req.Topic),
		IsManual:   req.IsManual,
	}
	if err := model.Validate(a); err != nil {
		h.writeError(w, r, apperr.Invalid("invalid assignment", err))
		return
	}
	if a.Questions.Len() == 0 {
		h.writeError(w, r, apperr.Invalid("assignment has no questions", nil))
		return
	}
	if err := a.Questions.Validate(); err != nil {
		h.writeError(w, r, apperr.Invalid("invalid questions", err))
		return
	}

	stored, err := h.repo.AddAssignment(r.Context(), a)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.log.Info("assignment saved", "assignment_id", stored.ID, "subject", stored.Subject,
		"questions", stored.Questions.Len(), "manual", stored.IsManual)
	writeJSON(w, http.StatusCreated, stored)
}

func (h *Handler) handleListMaterials(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.ListAssignments(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleGetMaterial(w http.ResponseWriter, r *http.Request) {
	a, err := h.repo.GetAssignment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// submitResponse flattens the stored evaluation for the student UI.
type submitResponse struct {
	ID          string                     `json:"id"`
	TotalScore  float64                    `json:"totalScore"`
	WeakPoints  []string                   `json:"weakPoints"`
	Evaluations []model.QuestionEvaluation `json:"evaluations"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req evaluate.Request
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, apperr.Invalid("invalid request body", err))
		return
	}
	e, err := h.eval.Evaluate(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, submitResponse{
		ID:          e.ID,
		TotalScore:  e.Evaluation.TotalScore,
		WeakPoints:  e.Evaluation.WeakPoints,
		Evaluations: e.Evaluation.Evaluations,
	})
}

func (h *Handler) handleAssignmentStats(w http.ResponseWriter, r *http.Request) {
	evals, err := h.repo.EvaluationsForAssignment(r.Context(), chi.URLParam(r, "assignmentId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats.AssignmentStats(evals))
}

func (h *Handler) handleAllStats(w http.ResponseWriter, r *http.Request) {
	snap, err := h.repo.Snapshot(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats.GlobalStats(snap.Evaluations, snap.Assignments))
}

type remediateRequest struct {
	Topic   string `json:"topic"`
	Context string `json:"context"`
}

func (h *Handler) handleRemediate(w http.ResponseWriter, r *http.Request) {
	var req remediateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, apperr.Invalid("invalid request body", err))
		return
	}
	rem, err := h.eval.Remediate(r.Context(), req.Topic, req.Context)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rem)
}

func (h *Handler) handleStudentSummary(w http.ResponseWriter, r *http.Request) {
	evals, err := h.repo.EvaluationsForStudent(r.Context(), chi.URLParam(r, "studentId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats.StudentSummary(evals))
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		exp, err := h.repo.Export(r.Context())
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, exp)
	case "xlsx":
		snap, err := h.repo.Snapshot(r.Context())
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="assessor-export.xlsx"`)
		if err := report.Write(w, snap.Assignments, snap.Evaluations); err != nil {
			h.log.Error("write xlsx export", "error", err)
		}
	default:
		h.writeError(w, r, apperr.Invalid(fmt.Sprintf("unsupported export format %q", format), nil))
	}
}
