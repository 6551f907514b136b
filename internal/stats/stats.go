// Package stats folds graded submissions into dashboard aggregates.
// Every function is pure and never modifies its input.
package stats

import (
	"slices"
	"strings"
	"time"

	"github.com/pavelanni/assessor/internal/model"
)

const (
	maxCommonWeakPoints = 5
	maxTopFeedback      = 3
	maxRecentScores     = 5
	maxScore            = 10.0
)

// AssignmentStats summarizes the evaluations of a single assignment.
func AssignmentStats(evals []model.Evaluation) model.AssignmentStats {
	out := model.AssignmentStats{
		TotalSubmissions: len(evals),
		CommonWeakPoints: []model.WeakPointCount{},
		QuestionInsights: []model.QuestionInsight{},
	}
	if len(evals) == 0 {
		return out
	}

	out.AverageScore = model.RoundOne(meanTotal(evals))

	weak := countWeakPoints(evals)
	if len(weak) > maxCommonWeakPoints {
		weak = weak[:maxCommonWeakPoints]
	}
	out.CommonWeakPoints = weak
	out.QuestionInsights = questionInsights(evals)
	return out
}

// GlobalStats summarizes every evaluation. Only assignments with at least
// one evaluation appear in AssignmentPerformance, in the order given.
func GlobalStats(evals []model.Evaluation, assignments []model.Assignment) model.GlobalStats {
	out := model.GlobalStats{
		TotalSubmissions:      len(evals),
		WeakPointHeatmap:      map[string]int{},
		AssignmentPerformance: []model.AssignmentPerformance{},
	}

	students := make(map[string]struct{})
	type acc struct {
		sum   float64
		count int
	}
	perAssignment := make(map[string]*acc)
	for _, e := range evals {
		if e.StudentID != "" {
			students[e.StudentID] = struct{}{}
		}
		a := perAssignment[e.AssignmentID]
		if a == nil {
			a = &acc{}
			perAssignment[e.AssignmentID] = a
		}
		a.sum += e.Evaluation.TotalScore
		a.count++
	}
	out.TotalStudents = len(students)
	if len(evals) > 0 {
		out.AverageScore = model.RoundOne(meanTotal(evals))
	}

	for _, wp := range countWeakPoints(evals) {
		out.WeakPointHeatmap[wp.Topic] = wp.Count
	}

	for _, as := range assignments {
		a := perAssignment[as.ID]
		if a == nil || a.count == 0 {
			continue
		}
		out.AssignmentPerformance = append(out.AssignmentPerformance, model.AssignmentPerformance{
			ID:           as.ID,
			Subject:      as.Subject,
			AverageScore: model.RoundOne(a.sum / float64(a.count)),
			Submissions:  a.count,
		})
	}
	return out
}

// StudentSummary summarizes the evaluations of a single student.
func StudentSummary(evals []model.Evaluation) model.StudentSummary {
	out := model.StudentSummary{
		TotalAssignments: len(evals),
		WeakPoints:       countWeakPoints(evals),
		RecentScores:     []model.ScorePoint{},
	}

	recent := slices.Clone(evals)
	slices.SortStableFunc(recent, func(a, b model.Evaluation) int {
		return b.SubmittedAt.Compare(a.SubmittedAt)
	})
	if len(recent) > maxRecentScores {
		recent = recent[:maxRecentScores]
	}
	for _, e := range recent {
		out.RecentScores = append(out.RecentScores, model.ScorePoint{
			Date:  e.SubmittedAt.UTC().Format(time.RFC3339),
			Score: e.Evaluation.TotalScore,
		})
	}
	return out
}

func meanTotal(evals []model.Evaluation) float64 {
	var sum float64
	for _, e := range evals {
		sum += e.Evaluation.TotalScore
	}
	return sum / float64(len(evals))
}

// countWeakPoints counts, per topic, the evaluations whose weak points
// contain it. Result is ordered by count descending, ties by first seen.
func countWeakPoints(evals []model.Evaluation) []model.WeakPointCount {
	index := make(map[string]int)
	var out []model.WeakPointCount
	for _, e := range evals {
		seen := make(map[string]struct{}, len(e.Evaluation.WeakPoints))
		for _, wp := range e.Evaluation.WeakPoints {
			wp = strings.TrimSpace(wp)
			if wp == "" {
				continue
			}
			if _, dup := seen[wp]; dup {
				continue
			}
			seen[wp] = struct{}{}
			if i, ok := index[wp]; ok {
				out[i].Count++
				continue
			}
			index[wp] = len(out)
			out = append(out, model.WeakPointCount{Topic: wp, Count: 1})
		}
	}
	slices.SortStableFunc(out, func(a, b model.WeakPointCount) int {
		return b.Count - a.Count
	})
	if out == nil {
		out = []model.WeakPointCount{}
	}
	return out
}

type questionAcc struct {
	question string
	topic    string
	sum      float64
	count    int
	feedback []string
}

func questionInsights(evals []model.Evaluation) []model.QuestionInsight {
	index := make(map[string]*questionAcc)
	var order []*questionAcc
	for _, e := range evals {
		for _, qe := range e.Evaluation.Evaluations {
			key := strings.TrimSpace(qe.Question)
			if key == "" {
				continue
			}
			acc := index[key]
			if acc == nil {
				acc = &questionAcc{question: key, topic: qe.SuggestedTopic}
				index[key] = acc
				order = append(order, acc)
			}
			acc.sum += qe.Score
			acc.count++
			if qe.Feedback != "" && len(acc.feedback) < maxTopFeedback {
				acc.feedback = append(acc.feedback, qe.Feedback)
			}
		}
	}

	out := make([]model.QuestionInsight, 0, len(order))
	for _, acc := range order {
		mean := acc.sum / float64(acc.count)
		feedback := acc.feedback
		if feedback == nil {
			feedback = []string{}
		}
		out = append(out, model.QuestionInsight{
			Question:         acc.question,
			AverageScore:     model.RoundOne(mean),
			SubmissionCount:  acc.count,
			Topic:            acc.topic,
			IsCriticallyHard: mean/maxScore < 0.5,
			TopFeedback:      feedback,
		})
	}
	slices.SortStableFunc(out, func(a, b model.QuestionInsight) int {
		switch {
		case a.AverageScore < b.AverageScore:
			return -1
		case a.AverageScore > b.AverageScore:
			return 1
		}
		return 0
	})
	return out
}
