package store

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pavelanni/assessor/internal/model"
)

const (
	CollectionAssignments = "assignments"
	CollectionEvaluations = "evaluations"
)

// Repository is a typed view of the two collections the pipeline owns.
type Repository struct {
	docs DocumentStore
}

func NewRepository(docs DocumentStore) *Repository {
	return &Repository{docs: docs}
}

// Snapshot is a point-in-time read of both collections.
type Snapshot struct {
	Assignments []model.Assignment
	Evaluations []model.Evaluation
}

// AddAssignment stores a and returns it with its id and creation time set.
func (r *Repository) AddAssignment(ctx context.Context, a model.Assignment) (*model.Assignment, error) {
	a.ID = ""
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now()
	}
	a.CreatedAt = a.CreatedAt.UTC()
	a.Questions = a.Questions.Enforce(model.QuestionTypeMixed)
	id, err := r.add(ctx, CollectionAssignments, a)
	if err != nil {
		return nil, err
	}
	a.ID = id
	return &a, nil
}

// GetAssignment returns the assignment or an error matching apperr.ErrNotFound.
func (r *Repository) GetAssignment(ctx context.Context, id string) (*model.Assignment, error) {
	doc, err := r.docs.Get(ctx, CollectionAssignments, id)
	if err != nil {
		return nil, err
	}
	a, err := decodeAssignment(doc)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAssignments returns all assignments, newest first.
func (r *Repository) ListAssignments(ctx context.Context) ([]model.Assignment, error) {
	docs, err := r.docs.List(ctx, CollectionAssignments)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	out, err := decodeAll(docs, decodeAssignment)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(out, func(a, b model.Assignment) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

// AddEvaluation stores e and returns it with its id set.
func (r *Repository) AddEvaluation(ctx context.Context, e model.Evaluation) (*model.Evaluation, error) {
	e.ID = ""
	if e.SubmittedAt.IsZero() {
		e.SubmittedAt = now()
	}
	e.SubmittedAt = e.SubmittedAt.UTC()
	id, err := r.add(ctx, CollectionEvaluations, e)
	if err != nil {
		return nil, err
	}
	e.ID = id
	return &e, nil
}

// EvaluationsForAssignment returns the evaluations of one assignment in
// submission order.
func (r *Repository) EvaluationsForAssignment(ctx context.Context, assignmentID string) ([]model.Evaluation, error) {
	return r.queryEvaluations(ctx, "assignmentId", assignmentID)
}

// EvaluationsForStudent returns the evaluations of one student in
// submission order.
func (r *Repository) EvaluationsForStudent(ctx context.Context, studentID string) ([]model.Evaluation, error) {
	return r.queryEvaluations(ctx, "studentId", studentID)
}

// AllEvaluations returns every evaluation in submission order.
func (r *Repository) AllEvaluations(ctx context.Context) ([]model.Evaluation, error) {
	docs, err := r.docs.List(ctx, CollectionEvaluations)
	if err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	return decodeAll(docs, decodeEvaluation)
}

// Snapshot reads both collections concurrently.
func (r *Repository) Snapshot(ctx context.Context) (*Snapshot, error) {
	var snap Snapshot
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snap.Assignments, err = r.ListAssignments(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		snap.Evaluations, err = r.AllEvaluations(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Ping checks the underlying store. Stores without a health check always
// report healthy.
func (r *Repository) Ping(ctx context.Context) error {
	if p, ok := r.docs.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (r *Repository) queryEvaluations(ctx context.Context, field, value string) ([]model.Evaluation, error) {
	docs, err := r.docs.Query(ctx, CollectionEvaluations, field, OpEqual, value)
	if err != nil {
		return nil, fmt.Errorf("query evaluations by %s: %w", field, err)
	}
	evals, err := decodeAll(docs, decodeEvaluation)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(evals, func(a, b model.Evaluation) int {
		return a.SubmittedAt.Compare(b.SubmittedAt)
	})
	return evals, nil
}

func (r *Repository) add(ctx context.Context, collection string, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode %s document: %w", collection, err)
	}
	id, err := r.docs.Add(ctx, collection, data)
	if err != nil {
		return "", fmt.Errorf("store %s document: %w", collection, err)
	}
	return id, nil
}

func decodeAssignment(doc Document) (model.Assignment, error) {
	var a model.Assignment
	if err := json.Unmarshal(doc.Data, &a); err != nil {
		return a, fmt.Errorf("decode assignment %s: %w", doc.ID, err)
	}
	a.ID = doc.ID
	if a.CreatedAt.IsZero() {
		a.CreatedAt = doc.CreatedAt
	}
	return a, nil
}

func decodeEvaluation(doc Document) (model.Evaluation, error) {
	var e model.Evaluation
	if err := json.Unmarshal(doc.Data, &e); err != nil {
		return e, fmt.Errorf("decode evaluation %s: %w", doc.ID, err)
	}
	e.ID = doc.ID
	if e.SubmittedAt.IsZero() {
		e.SubmittedAt = doc.CreatedAt
	}
	return e, nil
}

func decodeAll[T any](docs []Document, decode func(Document) (T, error)) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		v, err := decode(d)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
