package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rotation-engine/rotation"
	"github.com/warp/rotation-engine/rotation/store"
)

func setCategory(id string, daily int64) rotation.WriteOp {
	return rotation.WriteOp{
		Kind:       rotation.WriteSet,
		Collection: rotation.CollectionCategories,
		DocumentID: id,
		Fields:     rotation.Category{ID: id, Name: id, DailyVotes: daily}.Fields(),
	}
}

func TestMemory_QueryAllOrderAndTies(t *testing.T) {
	// GIVEN: b and c tie, a is lowest
	m := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, m.BatchWrite(ctx, []rotation.WriteOp{
		setCategory("c", 5), setCategory("a", 1), setCategory("b", 5),
	}))

	// WHEN: Querying highest first
	docs, err := m.QueryAll(ctx, rotation.Query{
		Collection: rotation.CollectionCategories,
		OrderBy:    "dailyVotes",
		Descending: true,
	})

	// THEN: Ties are broken by id
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, []string{"b", "c", "a"}, []string{docs[0].ID, docs[1].ID, docs[2].ID})
}

func TestMemory_QueryAllFilter(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, m.BatchWrite(ctx, []rotation.WriteOp{
		setCategory("a", 0), setCategory("b", 3), setCategory("c", 7),
	}))

	docs, err := m.QueryAll(ctx, rotation.Query{
		Collection: rotation.CollectionCategories,
		Filter:     &rotation.Filter{Field: "dailyVotes", Op: rotation.OpGreater, Value: 0},
	})

	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestMemory_QueryAllReturnsCopies(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, m.BatchWrite(ctx, []rotation.WriteOp{setCategory("a", 1)}))

	docs, err := m.QueryAll(ctx, rotation.Query{Collection: rotation.CollectionCategories})
	require.NoError(t, err)
	docs[0].Fields["dailyVotes"] = int64(99)

	fields, _ := m.Get(rotation.CollectionCategories, "a")
	assert.Equal(t, int64(1), fields.Int("dailyVotes"))
}

func TestMemory_UpdateMergesFields(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, m.BatchWrite(ctx, []rotation.WriteOp{setCategory("a", 4)}))

	require.NoError(t, m.BatchWrite(ctx, []rotation.WriteOp{{
		Kind:       rotation.WriteUpdate,
		Collection: rotation.CollectionCategories,
		DocumentID: "a",
		Fields:     rotation.Fields{"dailyVotes": int64(0)},
	}}))

	fields, ok := m.Get(rotation.CollectionCategories, "a")
	require.True(t, ok)
	assert.Equal(t, int64(0), fields.Int("dailyVotes"))
	assert.Equal(t, "a", fields.String("name"))
}

func TestMemory_UpdateWithNilRemovesField(t *testing.T) {
	// GIVEN: A category with an image
	m := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, m.BatchWrite(ctx, []rotation.WriteOp{{
		Kind:       rotation.WriteSet,
		Collection: rotation.CollectionCategories,
		DocumentID: "a",
		Fields:     rotation.Category{ID: "a", Name: "a", ImageURL: "a.png"}.Fields(),
	}}))

	// WHEN: Updating imageUrl to nil
	require.NoError(t, m.BatchWrite(ctx, []rotation.WriteOp{{
		Kind:       rotation.WriteUpdate,
		Collection: rotation.CollectionCategories,
		DocumentID: "a",
		Fields:     rotation.Fields{"imageUrl": nil},
	}}))

	// THEN: The key is gone, as with a JSON merge patch
	fields, ok := m.Get(rotation.CollectionCategories, "a")
	require.True(t, ok)
	assert.NotContains(t, fields, "imageUrl")
	assert.Equal(t, "a", fields.String("name"))
}

func TestMemory_BatchIsAtomic(t *testing.T) {
	// GIVEN: A batch where the last update targets a missing document
	m := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, m.BatchWrite(ctx, []rotation.WriteOp{setCategory("a", 4)}))

	err := m.BatchWrite(ctx, []rotation.WriteOp{
		{Kind: rotation.WriteUpdate, Collection: rotation.CollectionCategories, DocumentID: "a", Fields: rotation.Fields{"dailyVotes": int64(0)}},
		{Kind: rotation.WriteUpdate, Collection: rotation.CollectionCategories, DocumentID: "missing", Fields: rotation.Fields{"dailyVotes": int64(0)}},
	})

	// THEN: Nothing in the batch is applied
	assert.ErrorIs(t, err, rotation.ErrDocumentNotFound)
	fields, _ := m.Get(rotation.CollectionCategories, "a")
	assert.Equal(t, int64(4), fields.Int("dailyVotes"))
}

func TestMemory_BatchTooLarge(t *testing.T) {
	m := store.NewMemoryWithLimit(2)

	err := m.BatchWrite(context.Background(), []rotation.WriteOp{
		setCategory("a", 1), setCategory("b", 1), setCategory("c", 1),
	})

	assert.ErrorIs(t, err, rotation.ErrBatchTooLarge)
	assert.Equal(t, 0, m.Count(rotation.CollectionCategories))
	assert.Equal(t, 2, m.MaxBatchOps())
}

func TestMemory_AppendResolvesServerTimestamp(t *testing.T) {
	m := store.NewMemory()
	fixed := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	m.Now = func() time.Time { return fixed }

	id, err := m.Append(context.Background(), rotation.CollectionExecutions, rotation.Fields{
		"functionName": "resetDailyVotes",
		"executedAt":   rotation.ServerTimestamp,
	})

	require.NoError(t, err)
	assert.NotEmpty(t, id)
	fields, ok := m.Get(rotation.CollectionExecutions, id)
	require.True(t, ok)
	assert.Equal(t, fixed, fields.Time("executedAt"))
}

func TestMemory_AppendIDsAreUnique(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	id1, err := m.Append(ctx, rotation.CollectionHallOfFame, rotation.Fields{"votes": int64(1)})
	require.NoError(t, err)
	id2, err := m.Append(ctx, rotation.CollectionHallOfFame, rotation.Fields{"votes": int64(1)})
	require.NoError(t, err)

	assert.NotEqual(t, id1, id2)
	assert.Equal(t, 2, m.Count(rotation.CollectionHallOfFame))
}

func TestMemory_CancelledContext(t *testing.T) {
	m := store.NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.QueryAll(ctx, rotation.Query{Collection: rotation.CollectionCategories})
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, m.BatchWrite(ctx, []rotation.WriteOp{setCategory("a", 1)}), context.Canceled)
}
