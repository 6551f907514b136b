// Package evaluate grades a student submission against an assignment's
// ground truth with a single provider call.
package evaluate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pavelanni/assessor/internal/apperr"
	"github.com/pavelanni/assessor/internal/extract"
	"github.com/pavelanni/assessor/internal/llm"
	"github.com/pavelanni/assessor/internal/llm/prompts"
	"github.com/pavelanni/assessor/internal/model"
	"github.com/pavelanni/assessor/internal/store"
)

const (
	// FailureMessage is the fixed cause reported for unreadable grading output.
	FailureMessage = "AI analysis failed to produce readable data"
	// RemediationFailureMessage is reported for unreadable remediation output.
	RemediationFailureMessage = "AI remediation failed to produce readable data"

	maxScore = 10.0
)

// Ledger records graded submissions outside the document store.
type Ledger interface {
	Append(e model.Evaluation) error
}

// Request is one student submission.
type Request struct {
	AssignmentID string                `json:"assignmentId" validate:"required"`
	StudentID    string                `json:"studentId"`
	StudentName  string                `json:"studentName"`
	Answers      []model.StudentAnswer `json:"studentAnswers" validate:"required,min=1,dive"`
}

// Evaluator grades submissions and persists the results.
type Evaluator struct {
	grader llm.Provider
	repo   *store.Repository
	ledger Ledger
	log    *slog.Logger
}

// New creates an Evaluator. ledger may be nil.
func New(grader llm.Provider, repo *store.Repository, ledger Ledger, log *slog.Logger) *Evaluator {
	if log == nil {
		log = slog.Default()
	}
	return &Evaluator{grader: grader, repo: repo, ledger: ledger, log: log}
}

// Evaluate grades req and stores the evaluation. The ledger append is best
// effort; its failure is logged and never returned.
func (e *Evaluator) Evaluate(ctx context.Context, req Request) (*model.Evaluation, error) {
	if err := model.Validate(req); err != nil {
		return nil, apperr.Invalid("invalid submission", err)
	}

	assignment, err := e.repo.GetAssignment(ctx, req.AssignmentID)
	if err != nil {
		return nil, err
	}

	prompt, err := prompts.BuildGradePrompt(*assignment, req.Answers)
	if err != nil {
		return nil, fmt.Errorf("build grading prompt: %w", err)
	}

	log := e.log.With("assignment_id", req.AssignmentID, "student_id", req.StudentID, "provider", e.grader.Name())
	raw, err := e.grader.Generate(ctx, prompt)
	if err != nil {
		log.Warn("grading call failed", "error", err)
		return nil, err
	}

	result, err := parseResult(raw)
	if err != nil {
		log.Warn("grading response unreadable", "error", err)
		log.Debug("raw grading response", "text", raw)
		return nil, apperr.Evaluation(FailureMessage, err)
	}
	warnOutOfRange(log, result)

	stored, err := e.repo.AddEvaluation(ctx, model.Evaluation{
		AssignmentID: req.AssignmentID,
		StudentID:    req.StudentID,
		StudentName:  req.StudentName,
		Evaluation:   result,
	})
	if err != nil {
		return nil, fmt.Errorf("store evaluation: %w", err)
	}

	if e.ledger != nil {
		if err := e.ledger.Append(*stored); err != nil {
			log.Error("ledger append failed", "error", err)
		}
	}
	log.Info("submission graded", "evaluation_id", stored.ID, "total_score", result.TotalScore,
		"weak_points", len(result.WeakPoints))
	return stored, nil
}

// Remediate asks the grading provider for a short explanation of topic.
// background is optional free text, such as the question the student missed.
func (e *Evaluator) Remediate(ctx context.Context, topic, background string) (*model.Remediation, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, apperr.Invalid("topic is required", nil)
	}
	prompt, err := prompts.BuildRemediationPrompt(topic, background)
	if err != nil {
		return nil, apperr.Invalid("invalid remediation request", err)
	}

	log := e.log.With("provider", e.grader.Name())
	raw, err := e.grader.Generate(ctx, prompt)
	if err != nil {
		log.Warn("remediation call failed", "error", err)
		return nil, err
	}

	payload, err := extract.Extract(raw)
	if err != nil {
		log.Debug("raw remediation response", "text", raw)
		return nil, apperr.Evaluation(RemediationFailureMessage, err)
	}
	var rem model.Remediation
	if err := payload.Decode(&rem); err != nil {
		return nil, apperr.Evaluation(RemediationFailureMessage, err)
	}
	if err := model.Validate(rem); err != nil {
		return nil, apperr.Evaluation(RemediationFailureMessage, err)
	}
	return &rem, nil
}

// rawResult keeps pointers so missing members can be told from zero values.
type rawResult struct {
	TotalScore  *float64                    `json:"totalScore"`
	WeakPoints  []string                    `json:"weakPoints"`
	Evaluations *[]model.QuestionEvaluation `json:"evaluations"`
}

func parseResult(raw string) (model.EvaluationResult, error) {
	payload, err := extract.Extract(raw)
	if err != nil {
		return model.EvaluationResult{}, err
	}
	var r rawResult
	if err := payload.Decode(&r); err != nil {
		return model.EvaluationResult{}, apperr.Extraction("grading result has the wrong shape", err)
	}
	if r.TotalScore == nil {
		return model.EvaluationResult{}, apperr.Extraction("grading result has no totalScore", nil)
	}
	if r.Evaluations == nil {
		return model.EvaluationResult{}, apperr.Extraction("grading result has no evaluations", nil)
	}
	var errs []error
	for i, qe := range *r.Evaluations {
		if strings.TrimSpace(qe.Question) == "" {
			errs = append(errs, fmt.Errorf("evaluations[%d]: question is empty", i))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return model.EvaluationResult{}, apperr.Extraction("grading result is incomplete", err)
	}

	result := model.EvaluationResult{
		TotalScore:  *r.TotalScore,
		WeakPoints:  distinct(r.WeakPoints),
		Evaluations: *r.Evaluations,
	}
	if len(result.WeakPoints) == 0 {
		topics := make([]string, 0, len(result.Evaluations))
		for _, qe := range result.Evaluations {
			topics = append(topics, qe.SuggestedTopic)
		}
		result.WeakPoints = distinct(topics)
	}
	return result, nil
}

// distinct returns the non-empty trimmed values in order of first appearance.
func distinct(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func warnOutOfRange(log *slog.Logger, r model.EvaluationResult) {
	if r.TotalScore < 0 || r.TotalScore > maxScore {
		log.Warn("total score out of range", "score", r.TotalScore)
	}
	for _, qe := range r.Evaluations {
		if qe.Score < 0 || qe.Score > maxScore {
			log.Warn("question score out of range", "question", qe.Question, "score", qe.Score)
		}
	}
}
