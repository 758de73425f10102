package rotation_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rotation-engine/rotation"
)

func updateOps(n int) []rotation.WriteOp {
	ops := make([]rotation.WriteOp, n)
	for i := range ops {
		ops[i] = rotation.WriteOp{
			Kind:       rotation.WriteUpdate,
			Collection: rotation.CollectionCategories,
			DocumentID: fmt.Sprintf("c%04d", i),
			Fields:     rotation.Fields{"dailyVotes": int64(0)},
		}
	}
	return ops
}

func TestChunk(t *testing.T) {
	tests := []struct {
		name  string
		ops   int
		size  int
		sizes []int
	}{
		{"empty", 0, 500, nil},
		{"single partial group", 3, 500, []int{3}},
		{"exact multiple", 1000, 500, []int{500, 500}},
		{"remainder", 1200, 500, []int{500, 500, 200}},
		{"size one", 3, 1, []int{1, 1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups := rotation.Chunk(updateOps(tt.ops), tt.size)
			var sizes []int
			for _, g := range groups {
				sizes = append(sizes, len(g))
			}
			assert.Equal(t, tt.sizes, sizes)
		})
	}
}

func TestChunk_PreservesOrder(t *testing.T) {
	ops := updateOps(5)
	groups := rotation.Chunk(ops, 2)

	var flat []rotation.WriteOp
	for _, g := range groups {
		flat = append(flat, g...)
	}
	assert.Equal(t, ops, flat)
}

func TestCommitChunked_1200Ops(t *testing.T) {
	// GIVEN: 1200 categories and a store cap of 500
	s := newFlakyStore(500)
	seedCategories(t, s, manyCategories(1200, rotation.FieldDailyVotes)...)
	s.batchSizes = nil

	// WHEN: Committing 1200 updates with the store's cap
	result, err := rotation.CommitChunked(context.Background(), s, updateOps(1200), 0)

	// THEN: Three atomic groups of 500, 500, 200
	require.NoError(t, err)
	assert.Equal(t, []int{500, 500, 200}, s.batchSizes)
	assert.Equal(t, 3, result.Groups)
	assert.Equal(t, 1200, result.Committed)
}

func TestCommitChunked_ExplicitSize(t *testing.T) {
	s := newFlakyStore(500)
	seedCategories(t, s, manyCategories(10, rotation.FieldDailyVotes)...)
	s.batchSizes = nil

	result, err := rotation.CommitChunked(context.Background(), s, updateOps(10), 4)

	require.NoError(t, err)
	assert.Equal(t, []int{4, 4, 2}, s.batchSizes)
	assert.Equal(t, 3, result.Groups)
}

func TestCommitChunked_FailureKeepsEarlierGroups(t *testing.T) {
	// GIVEN: The second group will fail
	s := newFlakyStore(500)
	seedCategories(t, s, manyCategories(1200, rotation.FieldDailyVotes)...)
	s.batchSizes = nil
	s.batchCalls = 0
	s.failBatchAt = 2

	// WHEN: Committing
	result, err := rotation.CommitChunked(context.Background(), s, updateOps(1200), 0)

	// THEN: The first group stays committed and is reported
	require.Error(t, err)
	assert.ErrorIs(t, err, rotation.ErrStoreWrite)
	assert.ErrorIs(t, err, errInjected)
	var writeErr *rotation.StoreWriteError
	require.ErrorAs(t, err, &writeErr)
	assert.Equal(t, 500, writeErr.Committed)
	assert.Equal(t, 1, result.Groups)
	assert.Equal(t, 500, result.Committed)
	assert.Equal(t, []int{500}, s.batchSizes)
}

func TestCommitChunked_InvalidSize(t *testing.T) {
	s := newFlakyStore(500)

	_, err := rotation.CommitChunked(context.Background(), s, updateOps(3), 501)
	assert.True(t, rotation.IsConfigurationError(err))

	_, err = rotation.CommitChunked(context.Background(), s, updateOps(3), -1)
	assert.True(t, rotation.IsConfigurationError(err))
}

func TestCommitChunked_CancelledContext(t *testing.T) {
	s := newFlakyStore(500)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := rotation.CommitChunked(ctx, s, updateOps(3), 0)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, result.Committed)
}

func TestCommitChunked_NothingToDo(t *testing.T) {
	result, err := rotation.CommitChunked(context.Background(), newFlakyStore(500), nil, 0)

	require.NoError(t, err)
	assert.Equal(t, rotation.ChunkResult{}, result)
}
