// Package ledger appends a one-line summary of every graded submission to a
// CSV file that teachers can open in a spreadsheet.
package ledger

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/pavelanni/assessor/internal/model"
)

// Header is the first row of every ledger file.
var Header = []string{"STUDENT_NAME", "ASSIGNMENT_ID", "TOTAL_SCORE", "WEAK_POINTS", "TIMESTAMP"}

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Ledger is an append-only CSV file. It is safe for concurrent use.
type Ledger struct {
	path string
	log  *slog.Logger
	mu   sync.Mutex
}

func New(path string, log *slog.Logger) *Ledger {
	if log == nil {
		log = slog.Default()
	}
	return &Ledger{path: path, log: log.With("ledger", path)}
}

// Append writes one row for e. The header is written first when the file
// does not exist yet or is empty.
func (l *Ledger) Append(e model.Evaluation) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create ledger directory: %w", err)
		}
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat ledger: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(Header); err != nil {
			return fmt.Errorf("write ledger header: %w", err)
		}
	}
	if err := w.Write(Row(e)); err != nil {
		return fmt.Errorf("write ledger row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush ledger: %w", err)
	}
	l.log.Debug("ledger row appended", "assignment_id", e.AssignmentID, "student", e.StudentName)
	return nil
}

// Row formats e as a ledger record.
func Row(e model.Evaluation) []string {
	return []string{
		e.StudentName,
		e.AssignmentID,
		strconv.FormatFloat(e.Evaluation.TotalScore, 'f', -1, 64),
		strings.Join(e.Evaluation.WeakPoints, ", "),
		e.SubmittedAt.UTC().Format(timestampLayout),
	}
}
