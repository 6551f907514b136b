// Package store persists assignments and evaluations as JSON documents.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"
)

// Op is a query comparison operator. Only equality is supported; callers
// sort and filter further in memory.
type Op string

const OpEqual Op = "=="

// Document is a stored JSON object and its identity.
type Document struct {
	ID        string
	Data      json.RawMessage
	CreatedAt time.Time
}

// DocumentStore is the storage collaborator of the pipeline.
type DocumentStore interface {
	// Get returns the document or an error matching apperr.ErrNotFound.
	Get(ctx context.Context, collection, id string) (Document, error)
	// Query returns documents whose top-level field compares to value,
	// oldest first.
	Query(ctx context.Context, collection, field string, op Op, value any) ([]Document, error)
	// List returns every document of the collection, oldest first.
	List(ctx context.Context, collection string) ([]Document, error)
	// Add stores a JSON object and returns its new id.
	Add(ctx context.Context, collection string, data json.RawMessage) (string, error)
	// Update merges a JSON object patch into an existing document.
	Update(ctx context.Context, collection, id string, patch json.RawMessage) error
	Close() error
}

// Pinger is implemented by stores that can check their backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

var fieldRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

func checkQuery(field string, op Op) error {
	if op != OpEqual {
		return fmt.Errorf("unsupported query operator %q", op)
	}
	if !fieldRegex.MatchString(field) {
		return fmt.Errorf("invalid query field %q", field)
	}
	return nil
}

func checkObject(data json.RawMessage) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("document must be a JSON object: %w", err)
	}
	if m == nil {
		return errors.New("document must be a JSON object, got null")
	}
	return nil
}
