// Package report renders evaluations and their statistics as an XLSX workbook.
package report

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/pavelanni/assessor/internal/model"
	"github.com/pavelanni/assessor/internal/stats"
)

const (
	SheetEvaluations = "Evaluations"
	SheetAssignments = "Assignments"
	SheetWeakPoints  = "WeakPoints"
)

var (
	evaluationColumns = []string{"Student Name", "Student ID", "Assignment ID", "Subject", "Total Score", "Weak Points", "Submitted At"}
	assignmentColumns = []string{"Assignment ID", "Subject", "Grade", "Difficulty", "Topic", "Manual", "Questions", "Submissions", "Average Score", "Critically Hard Questions"}
	weakPointColumns  = []string{"Topic", "Students"}
)

// Workbook builds a workbook with one sheet of evaluations, one of
// per-assignment statistics and one with the global weak-point heatmap.
func Workbook(assignments []model.Assignment, evals []model.Evaluation) (*excelize.File, error) {
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", SheetEvaluations)
	f.NewSheet(SheetAssignments)
	f.NewSheet(SheetWeakPoints)

	subjects := make(map[string]string, len(assignments))
	byAssignment := make(map[string][]model.Evaluation)
	for _, a := range assignments {
		subjects[a.ID] = a.Subject
	}
	for _, e := range evals {
		byAssignment[e.AssignmentID] = append(byAssignment[e.AssignmentID], e)
	}

	var evalRows [][]any
	for _, e := range evals {
		evalRows = append(evalRows, []any{
			e.StudentName,
			e.StudentID,
			e.AssignmentID,
			subjects[e.AssignmentID],
			e.Evaluation.TotalScore,
			strings.Join(e.Evaluation.WeakPoints, ", "),
			e.SubmittedAt.UTC().Format(time.RFC3339),
		})
	}
	if err := writeSheet(f, SheetEvaluations, evaluationColumns, evalRows); err != nil {
		return nil, err
	}

	var assignmentRows [][]any
	for _, a := range assignments {
		s := stats.AssignmentStats(byAssignment[a.ID])
		hard := 0
		for _, qi := range s.QuestionInsights {
			if qi.IsCriticallyHard {
				hard++
			}
		}
		assignmentRows = append(assignmentRows, []any{
			a.ID,
			a.Subject,
			a.Grade,
			a.Difficulty,
			a.Topic,
			yesNo(a.IsManual),
			a.Questions.Len(),
			s.TotalSubmissions,
			float64(s.AverageScore),
			hard,
		})
	}
	if err := writeSheet(f, SheetAssignments, assignmentColumns, assignmentRows); err != nil {
		return nil, err
	}

	var weakRows [][]any
	for _, wp := range heatmapRows(stats.GlobalStats(evals, assignments).WeakPointHeatmap) {
		weakRows = append(weakRows, []any{wp.Topic, wp.Count})
	}
	if err := writeSheet(f, SheetWeakPoints, weakPointColumns, weakRows); err != nil {
		return nil, err
	}
	return f, nil
}

// Write renders the workbook to w.
func Write(w io.Writer, assignments []model.Assignment, evals []model.Evaluation) error {
	f, err := Workbook(assignments, evals)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, columns []string, rows [][]any) error {
	if err := f.SetSheetRow(sheet, "A1", &columns); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

// heatmapRows orders the heatmap by count descending, then topic.
func heatmapRows(heatmap map[string]int) []model.WeakPointCount {
	out := make([]model.WeakPointCount, 0, len(heatmap))
	for topic, n := range heatmap {
		out = append(out, model.WeakPointCount{Topic: topic, Count: n})
	}
	slices.SortFunc(out, func(a, b model.WeakPointCount) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}
		return strings.Compare(a.Topic, b.Topic)
	})
	return out
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
