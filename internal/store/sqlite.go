package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/assessor/internal/apperr"

	_ "modernc.org/sqlite"
)

// SQLite keeps every collection in a single documents table.
type SQLite struct {
	db *sql.DB
}

var (
	_ DocumentStore = (*SQLite)(nil)
	_ Pinger        = (*SQLite)(nil)
)

func New(dbPath string) (*SQLite, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		data TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (collection, id)
	);

	CREATE INDEX IF NOT EXISTS idx_documents_created
		ON documents (collection, created_at);

	CREATE TABLE IF NOT EXISTS store_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return s.recordSchemaVersion()
}

// Get returns a document by id.
func (s *SQLite) Get(ctx context.Context, collection, id string) (Document, error) {
	var (
		doc       Document
		data      string
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, data, created_at FROM documents WHERE collection = ? AND id = ?`,
		collection, id,
	).Scan(&doc.ID, &data, &createdAt)
	if err == sql.ErrNoRows {
		return Document{}, apperr.NotFound(collection, id)
	}
	if err != nil {
		return Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	doc.Data = json.RawMessage(data)
	if doc.CreatedAt, err = parseTime(createdAt); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Query returns documents whose field equals value.
func (s *SQLite) Query(ctx context.Context, collection, field string, op Op, value any) ([]Document, error) {
	if err := checkQuery(field, op); err != nil {
		return nil, err
	}
	return s.list(ctx,
		`SELECT id, data, created_at FROM documents
		 WHERE collection = ? AND json_extract(data, ?) = ?
		 ORDER BY created_at, rowid`,
		collection, "$."+field, value,
	)
}

// List returns every document of a collection.
func (s *SQLite) List(ctx context.Context, collection string) ([]Document, error) {
	return s.list(ctx,
		`SELECT id, data, created_at FROM documents WHERE collection = ? ORDER BY created_at, rowid`,
		collection,
	)
}

func (s *SQLite) list(ctx context.Context, query string, args ...any) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []Document
	for rows.Next() {
		var (
			doc             Document
			data, createdAt string
		)
		if err := rows.Scan(&doc.ID, &data, &createdAt); err != nil {
			return nil, err
		}
		doc.Data = json.RawMessage(data)
		if doc.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Add stores a new document under a random UUID.
func (s *SQLite) Add(ctx context.Context, collection string, data json.RawMessage) (string, error) {
	if err := checkObject(data); err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data, created_at) VALUES (?, ?, ?, ?)`,
		collection, id, string(data), formatTime(time.Now()),
	)
	if err != nil {
		return "", fmt.Errorf("add to %s: %w", collection, err)
	}
	return id, nil
}

// Update applies patch as a JSON merge patch.
func (s *SQLite) Update(ctx context.Context, collection, id string, patch json.RawMessage) error {
	if err := checkObject(patch); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET data = json_patch(data, ?) WHERE collection = ? AND id = ?`,
		string(patch), collection, id,
	)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound(collection, id)
	}
	return nil
}

// timeLayout is fixed-width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse created_at %q: %w", s, err)
	}
	return t, nil
}
