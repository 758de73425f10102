package rotation

import (
	"context"
	"time"
)

// =============================================================================
// COUNTER REGISTRY - One snapshot of all categories per job run
// =============================================================================

// CounterRegistry holds the category snapshot for a single rotation and
// derives the reset plan from it. Not safe for concurrent use; each job run
// creates its own.
type CounterRegistry struct {
	store    DocumentStore
	snapshot []Category
	loaded   bool
}

func NewCounterRegistry(store DocumentStore) *CounterRegistry {
	return &CounterRegistry{store: store}
}

// Load fetches every category ordered by field, highest first.
// Read failures are returned as *StoreReadError; there is no retry here.
func (r *CounterRegistry) Load(ctx context.Context, field CounterField) ([]Category, error) {
	docs, err := r.store.QueryAll(ctx, Query{
		Collection: CollectionCategories,
		OrderBy:    string(field),
		Descending: true,
	})
	if err != nil {
		return nil, &StoreReadError{Collection: CollectionCategories, Err: err}
	}

	snapshot := make([]Category, len(docs))
	for i, doc := range docs {
		snapshot[i] = CategoryFromDocument(doc)
	}
	r.snapshot = snapshot
	r.loaded = true
	return snapshot, nil
}

// Snapshot returns the categories from the last Load.
func (r *CounterRegistry) Snapshot() []Category {
	return r.snapshot
}

// Loaded reports whether Load has succeeded.
func (r *CounterRegistry) Loaded() bool {
	return r.loaded
}

// AlreadyRotated returns the snapshot categories whose kind marker already
// names period, i.e. those an earlier, partially applied run has reset.
func (r *CounterRegistry) AlreadyRotated(kind PeriodKind, period time.Time) []Category {
	var done []Category
	for _, c := range r.snapshot {
		if c.RotatedFor(kind, period) {
			done = append(done, c)
		}
	}
	return done
}

// PlanReset builds one update per category not yet reset for period:
// field := 0, the kind's marker := period and, when rollover is set,
// rollover := the snapshot value of field before the reset.
//
// Categories already carrying the marker are skipped, so re-running a
// partially applied reset neither zeroes nor rolls over anything twice.
// The reset is unconditional otherwise. Votes cast between Load and the
// write are lost.
func (r *CounterRegistry) PlanReset(kind PeriodKind, field, rollover CounterField, period time.Time) []WriteOp {
	marker, key := RotationMarker(kind), PeriodKey(period)
	ops := make([]WriteOp, 0, len(r.snapshot))
	for _, c := range r.snapshot {
		if c.RotatedFor(kind, period) {
			continue
		}
		fields := Fields{string(field): int64(0), marker: key}
		if rollover != "" {
			fields[string(rollover)] = c.Votes(field)
		}
		ops = append(ops, WriteOp{
			Kind:       WriteUpdate,
			Collection: CollectionCategories,
			DocumentID: c.ID,
			Fields:     fields,
		})
	}
	return ops
}
