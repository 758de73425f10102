package rotation_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rotation-engine/rotation"
	"github.com/warp/rotation-engine/rotation/store"
)

func TestExecutionRecorder_Success(t *testing.T) {
	s := store.NewMemory()
	recorder := rotation.NewExecutionRecorder(s)

	recorder.Record(context.Background(), "resetDailyVotes", nil)

	recs := executions(t, s)
	require.Len(t, recs, 1)
	assert.Equal(t, "resetDailyVotes", recs[0].FunctionName)
	assert.Equal(t, rotation.StatusSuccess, recs[0].Status)
	assert.Nil(t, recs[0].Error)
}

func TestExecutionRecorder_Failure(t *testing.T) {
	s := store.NewMemory()
	recorder := rotation.NewExecutionRecorder(s)
	runErr := &rotation.StepError{
		Kind: rotation.PeriodWeekly,
		Step: rotation.StepSnapshot,
		Err:  &rotation.StoreReadError{Collection: rotation.CollectionCategories, Err: errInjected},
	}

	recorder.Record(context.Background(), "resetWeeklyVotes", runErr)

	recs := executions(t, s)
	require.Len(t, recs, 1)
	assert.Equal(t, rotation.StatusFailure, recs[0].Status)
	require.NotNil(t, recs[0].Error)
	assert.Equal(t, runErr.Error(), recs[0].Error.Message)
	assert.Contains(t, recs[0].Error.Trace, "injected failure")
}

func TestExecutionRecorder_StoreFailureSwallowed(t *testing.T) {
	s := newFlakyStore(500)
	s.failAppendTo = rotation.CollectionExecutions
	recorder := rotation.NewExecutionRecorder(s)

	assert.NotPanics(t, func() {
		recorder.Record(context.Background(), "resetDailyVotes", errInjected)
	})
	assert.Equal(t, 0, s.Count(rotation.CollectionExecutions))
}

func TestErrorTrace(t *testing.T) {
	// GIVEN: StepError -> StoreWriteError -> {ErrStoreWrite, wrapped cause}
	cause := fmt.Errorf("commit group: %w", errInjected)
	err := &rotation.StepError{
		Kind: rotation.PeriodDaily,
		Step: rotation.StepResetCounters,
		Err:  &rotation.StoreWriteError{Collection: rotation.CollectionCategories, Committed: 500, Err: cause},
	}

	trace := rotation.ErrorTrace(err)
	lines := strings.Split(trace, "\n")

	// THEN: Outermost first, branches indented
	require.Len(t, lines, 5)
	assert.Equal(t, err.Error(), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "write categories"))
	assert.Equal(t, "  "+rotation.ErrStoreWrite.Error(), lines[2])
	assert.Equal(t, "  commit group: injected failure", lines[3])
	assert.Equal(t, "  injected failure", lines[4])
}

func TestErrorTrace_Plain(t *testing.T) {
	assert.Equal(t, "boom", rotation.ErrorTrace(errors.New("boom")))
	assert.Equal(t, "", rotation.ErrorTrace(nil))
}
