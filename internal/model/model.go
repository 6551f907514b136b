package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Difficulty represents the cognitive difficulty requested for an assessment.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
	DifficultyExpert Difficulty = "Expert"
)

// ParseDifficulty accepts any casing of the four known levels.
func ParseDifficulty(s string) (Difficulty, error) {
	for _, d := range []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyExpert} {
		if strings.EqualFold(strings.TrimSpace(s), string(d)) {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown difficulty %q", s)
}

// QuestionType is the requested question format. It fully determines which
// of the two arrays of a QuestionSet may be non-empty.
type QuestionType string

const (
	QuestionTypeMCQ        QuestionType = "MCQ"
	QuestionTypeSubjective QuestionType = "Subjective"
	QuestionTypeOneLiner   QuestionType = "One-liner"
	QuestionTypeMixed      QuestionType = "Mixed"
)

// ParseQuestionType accepts the wire names plus "OneLiner", case-insensitively.
func ParseQuestionType(s string) (QuestionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mcq":
		return QuestionTypeMCQ, nil
	case "subjective":
		return QuestionTypeSubjective, nil
	case "one-liner", "oneliner", "one liner":
		return QuestionTypeOneLiner, nil
	case "mixed":
		return QuestionTypeMixed, nil
	}
	return "", fmt.Errorf("unknown question type %q", s)
}

// AllowsMCQ reports whether multiple choice questions may appear in the result.
func (t QuestionType) AllowsMCQ() bool {
	return t == QuestionTypeMCQ || t == QuestionTypeMixed
}

// AllowsSubjective reports whether descriptive questions may appear in the result.
func (t QuestionType) AllowsSubjective() bool {
	return t != QuestionTypeMCQ
}

// AssessmentSpec is a question generation request.
type AssessmentSpec struct {
	GradeLevel   string       `json:"gradeLevel" validate:"required"`
	Subject      string       `json:"subject" validate:"required"`
	Difficulty   Difficulty   `json:"difficulty" validate:"required,oneof=Easy Medium Hard Expert"`
	QuestionType QuestionType `json:"questionType" validate:"required,oneof=MCQ Subjective One-liner Mixed"`
}

// SourceDocument is an uploaded study document. It is never persisted.
type SourceDocument struct {
	Name      string
	MediaType string
	Data      []byte
}

// MCQ is a multiple choice question with exactly four options.
type MCQ struct {
	Question      string   `json:"question" validate:"required"`
	Options       []string `json:"options" validate:"len=4,dive,required"`
	CorrectAnswer string   `json:"correctAnswer" validate:"required"`
}

// SubjectiveQuestion is a free-text question with its ideal answer.
type SubjectiveQuestion struct {
	Question    string `json:"question" validate:"required"`
	IdealAnswer string `json:"idealAnswer"`
}

// QuestionSet holds generated or teacher-authored questions.
type QuestionSet struct {
	MCQs       []MCQ                `json:"mcqs" validate:"dive"`
	Subjective []SubjectiveQuestion `json:"subjective" validate:"dive"`
}

// Len returns the total number of questions.
func (qs QuestionSet) Len() int {
	return len(qs.MCQs) + len(qs.Subjective)
}

// MarshalJSON encodes empty arrays as [] rather than null.
func (qs QuestionSet) MarshalJSON() ([]byte, error) {
	type alias QuestionSet
	a := alias(qs)
	if a.MCQs == nil {
		a.MCQs = []MCQ{}
	}
	if a.Subjective == nil {
		a.Subjective = []SubjectiveQuestion{}
	}
	return json.Marshal(a)
}

// Assignment is a persisted question set with its metadata.
type Assignment struct {
	ID         string      `json:"id,omitempty"`
	Questions  QuestionSet `json:"questions"`
	Subject    string      `json:"subject" validate:"required"`
	Grade      string      `json:"grade"`
	Difficulty string      `json:"difficulty"`
	Topic      string      `json:"topic,omitempty"`
	IsManual   bool        `json:"isManual"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// AnswerType tells which array of the QuestionSet an answer refers to.
type AnswerType string

const (
	AnswerMCQ        AnswerType = "mcq"
	AnswerSubjective AnswerType = "subjective"
)

// StudentAnswer is one answer of a submission.
type StudentAnswer struct {
	Type   AnswerType `json:"type" validate:"required,oneof=mcq subjective"`
	Index  int        `json:"index" validate:"gte=0"`
	Answer string     `json:"answer"`
}

// QuestionEvaluation is the grading of a single answer.
type QuestionEvaluation struct {
	Question       string  `json:"question"`
	Score          float64 `json:"score"`
	Feedback       string  `json:"feedback"`
	SuggestedTopic string  `json:"suggestedTopic"`
}

// EvaluationResult is the structured grading returned by the provider.
type EvaluationResult struct {
	TotalScore  float64              `json:"totalScore"`
	WeakPoints  []string             `json:"weakPoints"`
	Evaluations []QuestionEvaluation `json:"evaluations"`
}

// Evaluation is a persisted, graded submission.
type Evaluation struct {
	ID           string           `json:"id,omitempty"`
	AssignmentID string           `json:"assignmentId"`
	StudentID    string           `json:"studentId"`
	StudentName  string           `json:"studentName"`
	Evaluation   EvaluationResult `json:"evaluation"`
	SubmittedAt  time.Time        `json:"submittedAt"`
}

// Remediation is a short explanation for a weak point.
type Remediation struct {
	Topic       string `json:"topic" validate:"required"`
	Explanation string `json:"explanation" validate:"required"`
	ProTip      string `json:"proTip"`
	Example     string `json:"example"`
}
