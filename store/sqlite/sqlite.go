/*
Package sqlite provides a SQLite-backed implementation of rotation.DocumentStore.

PURPOSE:
  Stores every collection (categories, users, hallOfFame, ...) as JSON
  documents in a single table. Ordering and filtering on counter fields
  use SQLite's JSON functions, so no per-collection schema is needed and
  documents written by other services keep their extra fields.

KEY TABLES:
  documents: (collection, id) -> fields_json, created_at, updated_at

INDEXES:
  - idx_documents_collection: Full-collection scans (snapshots, listings)

ATOMIC BATCHES:
  BatchWrite runs in one SQL transaction. An update on a missing document
  aborts and rolls back the whole batch. Batches above MaxBatchOps are
  rejected before opening a transaction, mirroring hosted document stores
  that cap atomic groups.

SERVER TIMESTAMPS:
  rotation.ServerTimestamp placeholders are replaced with the store clock
  (UTC, RFC3339Nano) inside the write.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety in addition to SQLite's own locking.

WAL MODE:
  Opened with WAL (Write-Ahead Logging) so readers don't block the writer.

USAGE:
  store, err := sqlite.New("./data/rotation.db", 500)
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  job := rotation.NewJob(cfg, store)

SEE ALSO:
  - rotation/store.go:        Interface definitions
  - rotation/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/rotation-engine/rotation"
)

// Store implements rotation.DocumentStore using SQLite.
type Store struct {
	db          *sql.DB
	mu          sync.RWMutex
	maxBatchOps int

	// Now is the server clock used for ServerTimestamp.
	Now func() time.Time
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string, maxBatchOps int) (*Store, error) {
	if maxBatchOps < 1 {
		return nil, &rotation.ConfigurationError{
			Setting: "store.maxBatchOps",
			Reason:  fmt.Sprintf("must be at least 1, got %d", maxBatchOps),
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{
		db:          db,
		maxBatchOps: maxBatchOps,
		Now:         func() time.Time { return time.Now().UTC() },
	}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		fields_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (collection, id)
	);

	CREATE INDEX IF NOT EXISTS idx_documents_collection
		ON documents(collection);
	`

	_, err := s.db.Exec(schema)
	return err
}

// MaxBatchOps is the largest atomic group BatchWrite accepts.
func (s *Store) MaxBatchOps() int {
	return s.maxBatchOps
}

// =============================================================================
// READS
// =============================================================================

// QueryAll returns every document of a collection, optionally filtered and
// ordered by a numeric field. Ties are ordered by id.
func (s *Store) QueryAll(ctx context.Context, q rotation.Query) ([]rotation.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var b strings.Builder
	args := []any{q.Collection}
	b.WriteString(`SELECT id, fields_json FROM documents WHERE collection = ?`)

	if q.Filter != nil {
		op, err := sqlOperator(q.Filter.Op)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&b, ` AND COALESCE(json_extract(fields_json, ?), 0) %s ?`, op)
		args = append(args, jsonPath(q.Filter.Field), q.Filter.Value)
	}

	if q.OrderBy != "" {
		direction := "ASC"
		if q.Descending {
			direction = "DESC"
		}
		fmt.Fprintf(&b, ` ORDER BY COALESCE(json_extract(fields_json, ?), 0) %s, id ASC`, direction)
		args = append(args, jsonPath(q.OrderBy))
	} else {
		b.WriteString(` ORDER BY id ASC`)
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q.Collection, err)
	}
	defer rows.Close()

	var docs []rotation.Document
	for rows.Next() {
		var id, fieldsJSON string
		if err := rows.Scan(&id, &fieldsJSON); err != nil {
			return nil, err
		}
		fields, err := decodeFields(fieldsJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s/%s: %w", q.Collection, id, err)
		}
		docs = append(docs, rotation.Document{ID: id, Fields: fields})
	}

	return docs, rows.Err()
}

// Get returns one document, or rotation.ErrDocumentNotFound.
func (s *Store) Get(ctx context.Context, collection, id string) (rotation.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var fieldsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT fields_json FROM documents WHERE collection = ? AND id = ?`,
		collection, id,
	).Scan(&fieldsJSON)
	if err == sql.ErrNoRows {
		return rotation.Document{}, fmt.Errorf("%w: %s/%s", rotation.ErrDocumentNotFound, collection, id)
	}
	if err != nil {
		return rotation.Document{}, err
	}

	fields, err := decodeFields(fieldsJSON)
	if err != nil {
		return rotation.Document{}, err
	}
	return rotation.Document{ID: id, Fields: fields}, nil
}

// =============================================================================
// WRITES
// =============================================================================

// BatchWrite applies ops in a single transaction.
func (s *Store) BatchWrite(ctx context.Context, ops []rotation.WriteOp) error {
	if len(ops) > s.maxBatchOps {
		return fmt.Errorf("%w: %d > %d", rotation.ErrBatchTooLarge, len(ops), s.maxBatchOps)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	now := s.Now()
	for _, op := range ops {
		if err := s.applyOp(ctx, sqlTx, op, now); err != nil {
			return err
		}
	}

	return sqlTx.Commit()
}

func (s *Store) applyOp(ctx context.Context, tx *sql.Tx, op rotation.WriteOp, now time.Time) error {
	fields := resolveTimestamps(op.Fields, now)
	stamp := now.Format(time.RFC3339Nano)

	switch op.Kind {
	case rotation.WriteSet:
		fieldsJSON, err := json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("failed to encode %s/%s: %w", op.Collection, op.DocumentID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO documents (collection, id, fields_json, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(collection, id) DO UPDATE SET
				fields_json = excluded.fields_json,
				updated_at = excluded.updated_at
		`, op.Collection, op.DocumentID, string(fieldsJSON), stamp, stamp)
		if err != nil {
			return fmt.Errorf("failed to set %s/%s: %w", op.Collection, op.DocumentID, err)
		}
		return nil

	case rotation.WriteUpdate:
		// json_patch merges the new fields into the stored object; a null
		// value deletes the key, matching the memory store.
		patch, err := json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("failed to encode %s/%s: %w", op.Collection, op.DocumentID, err)
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE documents
			SET fields_json = json_patch(fields_json, ?), updated_at = ?
			WHERE collection = ? AND id = ?
		`, string(patch), stamp, op.Collection, op.DocumentID)
		if err != nil {
			return fmt.Errorf("failed to update %s/%s: %w", op.Collection, op.DocumentID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %s/%s", rotation.ErrDocumentNotFound, op.Collection, op.DocumentID)
		}
		return nil

	default:
		return fmt.Errorf("unknown write kind %q", op.Kind)
	}
}

// Append inserts a new document with a random id.
func (s *Store) Append(ctx context.Context, collection string, fields rotation.Fields) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now()
	fieldsJSON, err := json.Marshal(resolveTimestamps(fields, now))
	if err != nil {
		return "", fmt.Errorf("failed to encode %s document: %w", collection, err)
	}

	id := uuid.NewString()
	stamp := now.Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, fields_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, collection, id, string(fieldsJSON), stamp, stamp)
	if err != nil {
		return "", fmt.Errorf("failed to append to %s: %w", collection, err)
	}
	return id, nil
}

// Reset clears all data.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM documents`)
	return err
}

// Helper functions

func resolveTimestamps(fields rotation.Fields, now time.Time) rotation.Fields {
	out := make(rotation.Fields, len(fields))
	for k, v := range fields {
		switch t := v.(type) {
		case time.Time:
			out[k] = t.UTC().Format(time.RFC3339Nano)
		default:
			if rotation.IsServerTimestamp(v) {
				out[k] = now.UTC().Format(time.RFC3339Nano)
			} else {
				out[k] = v
			}
		}
	}
	return out
}

func decodeFields(fieldsJSON string) (rotation.Fields, error) {
	var fields rotation.Fields
	if err := json.Unmarshal([]byte(fieldsJSON), &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = rotation.Fields{}
	}
	return fields, nil
}

func jsonPath(field string) string {
	return `$."` + strings.ReplaceAll(field, `"`, `\"`) + `"`
}

func sqlOperator(op rotation.FilterOp) (string, error) {
	switch op {
	case rotation.OpEqual:
		return "=", nil
	case rotation.OpGreaterOrEqual:
		return ">=", nil
	case rotation.OpGreater:
		return ">", nil
	}
	return "", fmt.Errorf("unsupported filter operator %q", op)
}
