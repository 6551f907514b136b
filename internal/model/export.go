package model

import "time"

// Export is the top-level JSON structure written by the export command.
type Export struct {
	ExportedAt  time.Time          `json:"exportedAt"`
	Global      GlobalStats        `json:"global"`
	Assignments []AssignmentExport `json:"assignments"`
}

// AssignmentExport holds one assignment with its submissions and stats.
type AssignmentExport struct {
	Assignment  Assignment      `json:"assignment"`
	Stats       AssignmentStats `json:"stats"`
	Evaluations []Evaluation    `json:"evaluations"`
}
