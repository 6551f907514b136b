package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pavelanni/assessor/internal/model"
	"github.com/pavelanni/assessor/internal/stats"
)

// Export builds the full dump written by the export command: every
// assignment with its evaluations and statistics, plus global statistics.
func (r *Repository) Export(ctx context.Context) (*model.Export, error) {
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	byAssignment := make(map[string][]model.Evaluation)
	for _, e := range snap.Evaluations {
		byAssignment[e.AssignmentID] = append(byAssignment[e.AssignmentID], e)
	}

	out := &model.Export{
		ExportedAt:  time.Now().UTC(),
		Global:      stats.GlobalStats(snap.Evaluations, snap.Assignments),
		Assignments: make([]model.AssignmentExport, 0, len(snap.Assignments)),
	}
	for _, a := range snap.Assignments {
		evals := byAssignment[a.ID]
		if evals == nil {
			evals = []model.Evaluation{}
		}
		out.Assignments = append(out.Assignments, model.AssignmentExport{
			Assignment:  a,
			Stats:       stats.AssignmentStats(evals),
			Evaluations: evals,
		})
	}
	return out, nil
}
