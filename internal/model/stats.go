package model

import (
	"math"
	"strconv"
)

// OneDecimal is a score rounded half away from zero to one decimal place.
// It prints and encodes with exactly one fractional digit, e.g. 8.0.
type OneDecimal float64

// RoundOne rounds v to one decimal place. Negative zero becomes zero.
func RoundOne(v float64) OneDecimal {
	r := math.Round(v*10) / 10
	if r == 0 {
		r = 0
	}
	return OneDecimal(r)
}

func (d OneDecimal) String() string {
	return strconv.FormatFloat(float64(d), 'f', 1, 64)
}

// MarshalJSON encodes the value as a JSON number with one decimal.
func (d OneDecimal) MarshalJSON() ([]byte, error) {
	if math.IsNaN(float64(d)) || math.IsInf(float64(d), 0) {
		return []byte("0.0"), nil
	}
	return []byte(d.String()), nil
}

// AssignmentStats summarizes the submissions of one assignment.
type AssignmentStats struct {
	TotalSubmissions int               `json:"totalSubmissions"`
	AverageScore     OneDecimal        `json:"averageScore"`
	CommonWeakPoints []WeakPointCount  `json:"commonWeakPoints"`
	QuestionInsights []QuestionInsight `json:"questionInsights"`
}

// WeakPointCount is a topic and the number of evaluations that flagged it.
type WeakPointCount struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

// QuestionInsight aggregates the scores of a single question text.
type QuestionInsight struct {
	Question         string     `json:"question"`
	AverageScore     OneDecimal `json:"averageScore"`
	SubmissionCount  int        `json:"submissionCount"`
	Topic            string     `json:"topic"`
	IsCriticallyHard bool       `json:"isCriticallyHard"`
	TopFeedback      []string   `json:"topFeedback"`
}

// GlobalStats summarizes every evaluation across assignments.
type GlobalStats struct {
	TotalSubmissions      int                     `json:"totalSubmissions"`
	TotalStudents         int                     `json:"totalStudents"`
	AverageScore          OneDecimal              `json:"averageScore"`
	WeakPointHeatmap      map[string]int          `json:"weakPointHeatmap"`
	AssignmentPerformance []AssignmentPerformance `json:"assignmentPerformance"`
}

// AssignmentPerformance is one row of the global per-assignment table.
type AssignmentPerformance struct {
	ID           string     `json:"id"`
	Subject      string     `json:"subject"`
	AverageScore OneDecimal `json:"averageScore"`
	Submissions  int        `json:"submissions"`
}

// StudentSummary is the progress view of a single student.
type StudentSummary struct {
	TotalAssignments int              `json:"totalAssignments"`
	WeakPoints       []WeakPointCount `json:"weakPoints"`
	RecentScores     []ScorePoint     `json:"recentScores"`
}

// ScorePoint is a dated total score.
type ScorePoint struct {
	Date  string  `json:"date"`
	Score float64 `json:"score"`
}
