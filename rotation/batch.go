package rotation

import (
	"context"
	"fmt"
)

// ChunkResult reports how far a chunked commit got.
type ChunkResult struct {
	Groups    int // atomic groups committed
	Committed int // operations committed
}

// Chunk splits ops into consecutive groups of at most size operations.
func Chunk(ops []WriteOp, size int) [][]WriteOp {
	if size < 1 || len(ops) == 0 {
		return nil
	}
	groups := make([][]WriteOp, 0, (len(ops)+size-1)/size)
	for start := 0; start < len(ops); start += size {
		end := min(start+size, len(ops))
		groups = append(groups, ops[start:end])
	}
	return groups
}

// CommitChunked applies ops as a sequence of atomic groups of at most size
// operations. size 0 means the store's cap.
//
// Each group is all-or-nothing; the sequence is not. On failure the returned
// result counts the groups already committed, and the error is a
// *StoreWriteError carrying the same count.
func CommitChunked(ctx context.Context, store DocumentStore, ops []WriteOp, size int) (ChunkResult, error) {
	limit := store.MaxBatchOps()
	if size == 0 {
		size = limit
	}
	if size < 1 || size > limit {
		return ChunkResult{}, &ConfigurationError{
			Setting: "rotation.batchSize",
			Reason:  fmt.Sprintf("must be between 1 and the store limit %d, got %d", limit, size),
		}
	}

	var result ChunkResult
	for _, group := range Chunk(ops, size) {
		if err := ctx.Err(); err != nil {
			return result, &StoreWriteError{Collection: group[0].Collection, Committed: result.Committed, Err: err}
		}
		if err := store.BatchWrite(ctx, group); err != nil {
			return result, &StoreWriteError{Collection: group[0].Collection, Committed: result.Committed, Err: err}
		}
		result.Groups++
		result.Committed += len(group)
	}
	return result, nil
}
