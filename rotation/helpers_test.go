package rotation_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/require"
	"github.com/warp/rotation-engine/rotation"
	"github.com/warp/rotation-engine/rotation/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var errInjected = errors.New("injected failure")

// flakyStore wraps a Memory store, counts batch sizes and fails on demand.
type flakyStore struct {
	*store.Memory

	mu           sync.Mutex
	batchSizes   []int
	failBatchAt  int // 1-based BatchWrite call to fail; 0 never
	failQuery    string
	failAppendTo string
	batchCalls   int
}

func newFlakyStore(limit int) *flakyStore {
	return &flakyStore{Memory: store.NewMemoryWithLimit(limit)}
}

func (f *flakyStore) QueryAll(ctx context.Context, q rotation.Query) ([]rotation.Document, error) {
	if f.failQuery != "" && q.Collection == f.failQuery {
		return nil, errInjected
	}
	return f.Memory.QueryAll(ctx, q)
}

func (f *flakyStore) BatchWrite(ctx context.Context, ops []rotation.WriteOp) error {
	f.mu.Lock()
	f.batchCalls++
	call := f.batchCalls
	f.mu.Unlock()

	if f.failBatchAt != 0 && call == f.failBatchAt {
		return errInjected
	}
	if err := f.Memory.BatchWrite(ctx, ops); err != nil {
		return err
	}
	f.mu.Lock()
	f.batchSizes = append(f.batchSizes, len(ops))
	f.mu.Unlock()
	return nil
}

func (f *flakyStore) Append(ctx context.Context, collection string, fields rotation.Fields) (string, error) {
	if f.failAppendTo != "" && collection == f.failAppendTo {
		return "", errInjected
	}
	return f.Memory.Append(ctx, collection, fields)
}

// seedCategories writes categories directly, bypassing the counters.
func seedCategories(t *testing.T, s rotation.DocumentStore, cats ...rotation.Category) {
	t.Helper()
	ops := make([]rotation.WriteOp, len(cats))
	for i, c := range cats {
		if c.Name == "" {
			c.Name = "Category " + c.ID
		}
		ops[i] = rotation.WriteOp{
			Kind:       rotation.WriteSet,
			Collection: rotation.CollectionCategories,
			DocumentID: c.ID,
			Fields:     c.Fields(),
		}
	}
	for _, group := range rotation.Chunk(ops, s.MaxBatchOps()) {
		require.NoError(t, s.BatchWrite(context.Background(), group))
	}
}

func seedUsers(t *testing.T, s rotation.DocumentStore, remaining map[string]int64) {
	t.Helper()
	ops := make([]rotation.WriteOp, 0, len(remaining))
	for id, n := range remaining {
		u := rotation.User{ID: id, RemainingVotes: n}
		ops = append(ops, rotation.WriteOp{
			Kind:       rotation.WriteSet,
			Collection: rotation.CollectionUsers,
			DocumentID: u.ID,
			Fields:     u.Fields(),
		})
	}
	require.NoError(t, s.BatchWrite(context.Background(), ops))
}

func manyCategories(n int, field rotation.CounterField) []rotation.Category {
	cats := make([]rotation.Category, n)
	for i := range cats {
		cats[i] = rotation.Category{ID: fmt.Sprintf("c%04d", i)}
		switch field {
		case rotation.FieldDailyVotes:
			cats[i].DailyVotes = int64(i % 7)
		case rotation.FieldMonthlyVotes:
			cats[i].MonthlyVotes = int64(i % 7)
		}
	}
	return cats
}

func newJob(t *testing.T, kind rotation.PeriodKind, minimum int64, s rotation.DocumentStore) *rotation.Job {
	t.Helper()
	cfg, err := rotation.DefaultKindConfig(kind, minimum)
	require.NoError(t, err)
	return rotation.NewJob(cfg, s)
}

func ledger(t *testing.T, s rotation.DocumentStore, collection string) []rotation.HallOfFameEntry {
	t.Helper()
	docs, err := s.QueryAll(context.Background(), rotation.Query{Collection: collection})
	require.NoError(t, err)
	entries := make([]rotation.HallOfFameEntry, len(docs))
	for i, d := range docs {
		entries[i] = rotation.HallOfFameEntryFromDocument(d)
	}
	return entries
}

func executions(t *testing.T, s rotation.DocumentStore) []rotation.ExecutionRecord {
	t.Helper()
	docs, err := s.QueryAll(context.Background(), rotation.Query{Collection: rotation.CollectionExecutions})
	require.NoError(t, err)
	recs := make([]rotation.ExecutionRecord, len(docs))
	for i, d := range docs {
		recs[i] = rotation.ExecutionRecordFromDocument(d)
	}
	return recs
}

func category(t *testing.T, s *store.Memory, id string) rotation.Category {
	t.Helper()
	fields, ok := s.Get(rotation.CollectionCategories, id)
	require.True(t, ok, "category %s missing", id)
	return rotation.CategoryFromDocument(rotation.Document{ID: id, Fields: fields})
}

func seoul(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)
	return loc
}
