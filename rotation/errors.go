/*
errors.go - Centralized error types for the rotation engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers (scheduler, HTTP handlers) classify failures with errors.Is
  against the sentinels below; structured errors carry the context.

ERROR CATEGORIES:
  1. Store read errors  - snapshot or listing queries failed
  2. Store write errors - batch write or append failed (possibly partially applied)
  3. Configuration      - missing/invalid threshold, allotment, batch size, timezone

PARTIAL WRITES:
  A StoreWriteError does not imply nothing was written. Earlier chunks or
  earlier ledger appends stay committed. Rotation is safe to re-run.

SEE ALSO:
  - job.go: Wraps step failures in StepError
  - batch.go: Reports how many operations were committed before a failure
*/
package rotation

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrStoreRead is returned when a snapshot or listing query fails.
	ErrStoreRead = errors.New("store read failed")

	// ErrStoreWrite is returned when a batch write or append fails.
	ErrStoreWrite = errors.New("store write failed")

	// ErrConfiguration is returned when a threshold, allotment or batch
	// size is missing or out of range.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrDocumentNotFound is returned by an update on a document that does not exist.
	// The whole batch containing the update is rejected.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrBatchTooLarge is returned when a batch exceeds the store's atomic group size.
	ErrBatchTooLarge = errors.New("batch exceeds store operation limit")

	// ErrUnknownPeriodKind is returned for a period kind other than daily/weekly/monthly.
	ErrUnknownPeriodKind = errors.New("unknown period kind")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// StoreReadError describes a failed query against a collection.
type StoreReadError struct {
	Collection string
	Err        error
}

func (e *StoreReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Collection, e.Err)
}

func (e *StoreReadError) Unwrap() []error {
	return []error{ErrStoreRead, e.Err}
}

// StoreWriteError describes a failed write. Committed counts the operations
// that were durably applied before the failure.
type StoreWriteError struct {
	Collection string
	Committed  int
	Err        error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("write %s (%d ops committed before failure): %v", e.Collection, e.Committed, e.Err)
}

func (e *StoreWriteError) Unwrap() []error {
	return []error{ErrStoreWrite, e.Err}
}

// ConfigurationError names the offending setting.
type ConfigurationError struct {
	Setting string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration %s: %s", e.Setting, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// StepError records which rotation step failed.
type StepError struct {
	Kind PeriodKind
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("rotation %s: %s: %v", e.Kind, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsStoreError returns true if the failure came from the document store.
func IsStoreError(err error) bool {
	return errors.Is(err, ErrStoreRead) || errors.Is(err, ErrStoreWrite)
}

// IsConfigurationError returns true if the failure is a setup problem that
// retrying will not fix.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration) || errors.Is(err, ErrUnknownPeriodKind)
}

// FailedStep returns the rotation step an error originated in, if known.
func FailedStep(err error) (Step, bool) {
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr.Step, true
	}
	return "", false
}
