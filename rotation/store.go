/*
store.go - Document Store contract consumed by the rotation engine

PURPOSE:
  Defines the interface between the rotation logic and the database.
  The engine only needs four capabilities:
  - QueryAll:        read every document of a collection, optionally ordered/filtered
  - BatchWrite:      apply a bounded group of writes atomically
  - Append:          add a new document with a store-assigned id
  - ServerTimestamp: a placeholder the store replaces with its own clock

BOUNDED ATOMIC GROUPS:
  A store accepts at most MaxBatchOps() operations per BatchWrite. There is
  NO transaction spanning several BatchWrite calls. Anything larger must be
  chunked by the caller (see batch.go), and a failure between chunks leaves
  earlier chunks applied.

NO ISOLATION FROM OTHER WRITERS:
  Vote casting mutates the same documents concurrently. A QueryAll result is
  a snapshot that may already be stale when the next write lands.

IMPLEMENTATIONS:
  - rotation/store/memory.go: In-memory for testing/dev
  - store/sqlite/sqlite.go:   SQLite with JSON documents

SEE ALSO:
  - registry.go: Builds snapshots and reset plans on top of this interface
  - batch.go:    Chunked commits
*/
package rotation

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// Collection names.
const (
	CollectionCategories       = "categories"
	CollectionUsers            = "users"
	CollectionHallOfFame       = "hallOfFame"
	CollectionDailyHallOfFame  = "dailyHallOfFame"
	CollectionWeeklyHallOfFame = "weeklyHallOfFame"
	CollectionExecutions       = "functionExecutions"
)

// =============================================================================
// DOCUMENTS
// =============================================================================

// Fields is the body of a document.
type Fields map[string]any

// Document is a stored record: an id plus its fields.
type Document struct {
	ID     string
	Fields Fields
}

type serverTimestamp struct{}

// ServerTimestamp is replaced by the store's clock when written.
var ServerTimestamp any = serverTimestamp{}

// IsServerTimestamp reports whether v is the ServerTimestamp placeholder.
func IsServerTimestamp(v any) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

// Int reads a numeric field. Missing or non-numeric fields read as 0,
// matching documents created before the field existed.
func (f Fields) Int(key string) int64 {
	switch v := f[key].(type) {
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case uint:
		return int64(v)
	case uint64:
		return int64(v)
	case float64:
		return int64(v)
	case float32:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}

// String reads a text field.
func (f Fields) String(key string) string {
	switch v := f[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Time reads a timestamp field stored either as time.Time or RFC3339 text.
func (f Fields) Time(key string) time.Time {
	switch v := f[key].(type) {
	case time.Time:
		return v
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}
		}
		return t
	default:
		return time.Time{}
	}
}

// Clone returns a shallow copy.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// =============================================================================
// QUERIES AND WRITES
// =============================================================================

// FilterOp is a comparison used by Filter.
type FilterOp string

const (
	OpEqual          FilterOp = "=="
	OpGreaterOrEqual FilterOp = ">="
	OpGreater        FilterOp = ">"
)

// Filter restricts a query to documents whose numeric field compares to Value.
type Filter struct {
	Field string
	Op    FilterOp
	Value int64
}

// Match evaluates the filter against a document.
func (f Filter) Match(fields Fields) bool {
	v := fields.Int(f.Field)
	switch f.Op {
	case OpEqual:
		return v == f.Value
	case OpGreaterOrEqual:
		return v >= f.Value
	case OpGreater:
		return v > f.Value
	default:
		return false
	}
}

// Query selects documents from one collection.
// Documents with equal OrderBy values are returned by ascending id.
type Query struct {
	Collection string
	OrderBy    string // empty = by id
	Descending bool
	Filter     *Filter
}

// WriteKind distinguishes merge-updates from overwrites.
type WriteKind string

const (
	// WriteUpdate merges Fields into an existing document. Fails if absent.
	// A nil value removes the field (JSON merge patch).
	WriteUpdate WriteKind = "update"
	// WriteSet creates or overwrites the document.
	WriteSet WriteKind = "set"
)

// WriteOp is one operation inside an atomic batch.
type WriteOp struct {
	Kind       WriteKind
	Collection string
	DocumentID string
	Fields     Fields
}

// =============================================================================
// DOCUMENT STORE
// =============================================================================

// DocumentStore is the persistence capability the rotation engine consumes.
type DocumentStore interface {
	// QueryAll returns every document matching the query.
	QueryAll(ctx context.Context, q Query) ([]Document, error)

	// BatchWrite applies ops atomically: all or none.
	// Returns ErrBatchTooLarge if len(ops) > MaxBatchOps().
	BatchWrite(ctx context.Context, ops []WriteOp) error

	// MaxBatchOps is the largest atomic group the store accepts.
	MaxBatchOps() int

	// Append stores a new document and returns its id.
	// ServerTimestamp values are replaced with the store's clock.
	Append(ctx context.Context, collection string, fields Fields) (string, error)
}
