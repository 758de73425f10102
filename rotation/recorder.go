package rotation

import (
	"context"
	"errors"
	"log"
	"strings"
)

// Recorder stores the outcome of a job run. Implementations must not fail
// the caller: Record has no error return.
type Recorder interface {
	Record(ctx context.Context, functionName string, runErr error)
}

// ExecutionRecorder appends ExecutionRecords to the functionExecutions
// collection. Store failures are logged and dropped so an audit problem
// never masks or replaces the job's own outcome.
type ExecutionRecorder struct {
	Store DocumentStore
}

func NewExecutionRecorder(store DocumentStore) *ExecutionRecorder {
	return &ExecutionRecorder{Store: store}
}

func (r *ExecutionRecorder) Record(ctx context.Context, functionName string, runErr error) {
	defer func() {
		if p := recover(); p != nil {
			log.Printf("[Recorder] Panic recording %s: %v", functionName, p)
		}
	}()

	rec := NewExecutionRecord(functionName, runErr)
	if _, err := r.Store.Append(ctx, CollectionExecutions, rec.Fields()); err != nil {
		log.Printf("[Recorder] Error logging function execution %s: %v", functionName, err)
	}
}

// NewExecutionRecord builds the record for a run; runErr nil means success.
func NewExecutionRecord(functionName string, runErr error) ExecutionRecord {
	rec := ExecutionRecord{FunctionName: functionName, Status: StatusSuccess}
	if runErr != nil {
		rec.Status = StatusFailure
		rec.Error = &ExecutionError{Message: runErr.Error(), Trace: ErrorTrace(runErr)}
	}
	return rec
}

// ErrorTrace renders the wrapped error chain, outermost first, one layer
// per line. Multi-error nodes list each branch indented below them.
func ErrorTrace(err error) string {
	var b strings.Builder
	writeTrace(&b, err, 0)
	return strings.TrimRight(b.String(), "\n")
}

func writeTrace(b *strings.Builder, err error, depth int) {
	for err != nil {
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString(err.Error())
		b.WriteByte('\n')

		if multi, ok := err.(interface{ Unwrap() []error }); ok {
			for _, branch := range multi.Unwrap() {
				writeTrace(b, branch, depth+1)
			}
			return
		}
		err = errors.Unwrap(err)
	}
}
