/*
job.go - Rotation Job: record winners, then reset counters

PURPOSE:
  One Job per period kind (daily, weekly, monthly). A run closes the
  period: it records the winners into the Hall of Fame ledger and then
  resets the period's counter for the next one. The daily job also
  restores every user's vote allowance.

STATE MACHINE (per invocation):
  START -> SNAPSHOT -> RESOLVE_WINNERS -> RECORD_WINNERS -> RESET_COUNTERS
        -> [RESET_ALLOWANCES] -> DONE
  Any step can move to FAILED; the remaining steps are skipped and the
  error is returned to the trigger, which owns retries.

ORDERING:
  Winners are computed from the snapshot BEFORE any reset is written,
  so a run never ranks an already-zeroed counter.

PARTIAL FAILURE:
  Nothing is rolled back. Ledger appends are independent, reset chunks
  are atomic only individually. Every reset stamps the category with the
  closed window (rotated.<kind>, see ClosedWindow). A retry in the same
  window that finds any stamped category knows RECORD_WINNERS already
  finished: it records nothing and resets only the unstamped categories.
  A retry after a failure inside RECORD_WINNERS may append the same
  winners again (the ledger is additive).

ACCEPTED RACE:
  Votes cast between SNAPSHOT and RESET_COUNTERS are zeroed without being
  counted. Overlapping runs of the same kind are not prevented here; the
  scheduler serializes them per kind.

SEE ALSO:
  - registry.go: Snapshot and reset plan
  - winners.go:  Tie-aware winner set
  - batch.go:    Chunked atomic writes
  - recorder.go: Execution records
*/
package rotation

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Step is a state of the rotation state machine.
type Step string

const (
	StepStart           Step = "start"
	StepSnapshot        Step = "snapshot"
	StepResolveWinners  Step = "resolve_winners"
	StepRecordWinners   Step = "record_winners"
	StepResetCounters   Step = "reset_counters"
	StepResetAllowances Step = "reset_allowances"
	StepDone            Step = "done"
	StepFailed          Step = "failed"
)

// DefaultVoteAllotment is the daily allowance restored to every user.
const DefaultVoteAllotment int64 = 1

// Result summarizes one invocation.
type Result struct {
	Kind            PeriodKind
	Period          time.Time
	State           Step   // StepDone or StepFailed
	Completed       []Step // steps fully completed, in order
	FailedStep      Step
	SnapshotSize    int
	Resumed         bool // an earlier run already reset part of this period
	Winners         []Winner
	EntriesRecorded int
	CountersReset   int
	CounterGroups   int
	UsersReset      int
	UserGroups      int
}

// Job rotates one period kind.
type Job struct {
	Config   KindConfig
	Store    DocumentStore
	Recorder Recorder

	// VoteAllotment is restored by RESET_ALLOWANCES.
	VoteAllotment int64

	// BatchSize caps each atomic group; 0 uses the store limit.
	BatchSize int

	// Location and WeekStart define calendar boundaries for the period value.
	Location  *time.Location
	WeekStart time.Weekday
}

// NewJob creates a job with an execution recorder on the same store,
// the default allotment, UTC and Monday-start weeks.
func NewJob(cfg KindConfig, store DocumentStore) *Job {
	return &Job{
		Config:        cfg,
		Store:         store,
		Recorder:      NewExecutionRecorder(store),
		VoteAllotment: DefaultVoteAllotment,
		Location:      time.UTC,
		WeekStart:     time.Monday,
	}
}

// Validate checks the job before it touches the store.
func (j *Job) Validate() error {
	if err := j.Config.Validate(); err != nil {
		return err
	}
	if j.Store == nil {
		return &ConfigurationError{Setting: "store", Reason: "missing"}
	}
	if j.Config.ResetsAllowance && j.VoteAllotment < 1 {
		return &ConfigurationError{
			Setting: "rotation.voteAllotment",
			Reason:  fmt.Sprintf("must be at least 1, got %d", j.VoteAllotment),
		}
	}
	if j.BatchSize < 0 || j.BatchSize > j.Store.MaxBatchOps() {
		return &ConfigurationError{
			Setting: "rotation.batchSize",
			Reason:  fmt.Sprintf("must be between 0 and %d, got %d", j.Store.MaxBatchOps(), j.BatchSize),
		}
	}
	return nil
}

// Run executes one rotation invoked at `at` and records the outcome.
// The recorder never changes the returned error.
func (j *Job) Run(ctx context.Context, at time.Time) (Result, error) {
	result, err := j.execute(ctx, at)
	if j.Recorder != nil {
		j.Recorder.Record(context.WithoutCancel(ctx), j.Config.FunctionName, err)
	}
	return result, err
}

func (j *Job) execute(ctx context.Context, at time.Time) (Result, error) {
	cfg := j.Config
	res := Result{Kind: cfg.Kind, State: StepStart}

	fail := func(step Step, err error) (Result, error) {
		res.State = StepFailed
		res.FailedStep = step
		log.Printf("[Rotation] %s failed at %s: %v", cfg.Kind, step, err)
		return res, &StepError{Kind: cfg.Kind, Step: step, Err: err}
	}
	done := func(step Step) {
		res.Completed = append(res.Completed, step)
	}

	if err := j.Validate(); err != nil {
		return fail(StepStart, err)
	}
	loc := j.Location
	if loc == nil {
		loc = time.UTC
	}
	res.Period = ClosedPeriod(cfg.Kind, at.In(loc), j.WeekStart)
	window := ClosedWindow(cfg.Kind, at.In(loc), j.WeekStart)
	done(StepStart)

	// SNAPSHOT
	registry := NewCounterRegistry(j.Store)
	snapshot, err := registry.Load(ctx, cfg.CounterField)
	if err != nil {
		return fail(StepSnapshot, err)
	}
	res.SnapshotSize = len(snapshot)
	log.Printf("[Rotation] %s: snapshot of %d categories by %s", cfg.Kind, len(snapshot), cfg.CounterField)
	done(StepSnapshot)

	// RESOLVE_WINNERS
	// Stamped categories mean the ledger step finished before; their
	// counters already read 0, so resolving again would crown runners-up.
	if rotated := registry.AlreadyRotated(cfg.Kind, window); len(rotated) > 0 {
		res.Resumed = true
		log.Printf("[Rotation] %s: %d of %d categories already reset for %s, resuming without recording winners",
			cfg.Kind, len(rotated), len(snapshot), PeriodKey(window))
	} else {
		res.Winners = ResolveWinners(snapshot, cfg.CounterField, cfg.MinimumVotes)
	}
	switch {
	case res.Resumed:
	case len(snapshot) == 0:
		log.Printf("[Rotation] %s: no categories, nothing to record", cfg.Kind)
	case len(res.Winners) == 0:
		log.Printf("[Rotation] %s: top score %d below minimum %d, no winners",
			cfg.Kind, snapshot[0].Votes(cfg.CounterField), cfg.MinimumVotes)
	default:
		log.Printf("[Rotation] %s: %d winner(s) with %d votes", cfg.Kind, len(res.Winners), res.Winners[0].Votes)
	}
	done(StepResolveWinners)

	// RECORD_WINNERS
	for _, w := range res.Winners {
		entry := NewHallOfFameEntry(w, res.Period)
		if _, err := j.Store.Append(ctx, cfg.LedgerCollection, entry.Fields()); err != nil {
			return fail(StepRecordWinners, &StoreWriteError{
				Collection: cfg.LedgerCollection,
				Committed:  res.EntriesRecorded,
				Err:        err,
			})
		}
		res.EntriesRecorded++
		log.Printf("[Rotation] %s: added %s to %s with %d votes", cfg.Kind, w.Category.Name, cfg.LedgerCollection, w.Votes)
	}
	done(StepRecordWinners)

	// RESET_COUNTERS
	counters, err := CommitChunked(ctx, j.Store, registry.PlanReset(cfg.Kind, cfg.CounterField, cfg.RolloverField, window), j.BatchSize)
	res.CountersReset, res.CounterGroups = counters.Committed, counters.Groups
	if err != nil {
		return fail(StepResetCounters, err)
	}
	if cfg.RolloverField != "" {
		log.Printf("[Rotation] %s: reset %d categories in %d group(s), %s rolled into %s",
			cfg.Kind, counters.Committed, counters.Groups, cfg.CounterField, cfg.RolloverField)
	} else {
		log.Printf("[Rotation] %s: reset %d categories in %d group(s)", cfg.Kind, counters.Committed, counters.Groups)
	}
	done(StepResetCounters)

	// RESET_ALLOWANCES
	if cfg.ResetsAllowance {
		users, err := j.resetAllowances(ctx)
		res.UsersReset, res.UserGroups = users.Committed, users.Groups
		if err != nil {
			return fail(StepResetAllowances, err)
		}
		log.Printf("[Rotation] %s: restored %d vote(s) for %d users", cfg.Kind, j.VoteAllotment, users.Committed)
		done(StepResetAllowances)
	}

	res.State = StepDone
	return res, nil
}

func (j *Job) resetAllowances(ctx context.Context) (ChunkResult, error) {
	docs, err := j.Store.QueryAll(ctx, Query{Collection: CollectionUsers})
	if err != nil {
		return ChunkResult{}, &StoreReadError{Collection: CollectionUsers, Err: err}
	}

	ops := make([]WriteOp, len(docs))
	for i, doc := range docs {
		ops[i] = WriteOp{
			Kind:       WriteUpdate,
			Collection: CollectionUsers,
			DocumentID: doc.ID,
			Fields:     Fields{FieldRemainingVotes: j.VoteAllotment},
		}
	}
	return CommitChunked(ctx, j.Store, ops, j.BatchSize)
}
