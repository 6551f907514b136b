package report

import (
	"bytes"
	"reflect"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/pavelanni/assessor/internal/model"
)

func TestWrite(t *testing.T) {
	at := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	assignments := []model.Assignment{
		{ID: "a1", Subject: "Math", Grade: "Grade 5", Difficulty: "Easy"},
		{ID: "a2", Subject: "Science", Grade: "Grade 5", Difficulty: "Hard", IsManual: true},
	}
	evals := []model.Evaluation{
		{
			AssignmentID: "a1", StudentID: "s1", StudentName: "Ann", SubmittedAt: at,
			Evaluation: model.EvaluationResult{TotalScore: 8, WeakPoints: []string{"Fractions", "Ratios"}},
		},
		{
			AssignmentID: "a1", StudentID: "s2", StudentName: "Bob", SubmittedAt: at,
			Evaluation: model.EvaluationResult{TotalScore: 3, WeakPoints: []string{"Fractions"}},
		},
	}

	var buf bytes.Buffer
	if err := Write(&buf, assignments, evals); err != nil {
		t.Fatalf("Write: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	if got, want := f.GetSheetList(), []string{SheetEvaluations, SheetAssignments, SheetWeakPoints}; !reflect.DeepEqual(got, want) {
		t.Errorf("sheets = %v, want %v", got, want)
	}

	tests := []struct {
		sheet string
		want  [][]string
	}{
		{
			sheet: SheetEvaluations,
			want: [][]string{
				evaluationColumns,
				{"Ann", "s1", "a1", "Math", "8", "Fractions, Ratios", "2025-02-03T04:05:06Z"},
				{"Bob", "s2", "a1", "Math", "3", "Fractions", "2025-02-03T04:05:06Z"},
			},
		},
		{
			sheet: SheetAssignments,
			want: [][]string{
				assignmentColumns,
				{"a1", "Math", "Grade 5", "Easy", "", "no", "0", "2", "5.5", "0"},
				{"a2", "Science", "Grade 5", "Hard", "", "yes", "0", "0", "0", "0"},
			},
		},
		{
			sheet: SheetWeakPoints,
			want: [][]string{
				weakPointColumns,
				{"Fractions", "2"},
				{"Ratios", "1"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.sheet, func(t *testing.T) {
			rows, err := f.GetRows(tt.sheet)
			if err != nil {
				t.Fatalf("GetRows: %v", err)
			}
			if !reflect.DeepEqual(rows, tt.want) {
				t.Errorf("rows = %q\nwant %q", rows, tt.want)
			}
		})
	}
}

func TestHeatmapRows(t *testing.T) {
	got := heatmapRows(map[string]int{"b": 1, "a": 1, "c": 3})
	want := []model.WeakPointCount{{Topic: "c", Count: 3}, {Topic: "a", Count: 1}, {Topic: "b", Count: 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("heatmapRows = %v, want %v", got, want)
	}
}
