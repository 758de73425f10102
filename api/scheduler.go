/*
scheduler.go - Boundary trigger for rotation jobs

PURPOSE:
  Invokes each period kind's rotation job at its wall-clock boundary:
  - daily:   every day at 00:00
  - weekly:  00:00 on the first day of the week
  - monthly: 00:00 on the first calendar day
  all evaluated in one fixed timezone (default Asia/Seoul).

DESIGN:
  - One goroutine per period kind; kinds never wait on each other
  - Invocations of the SAME kind are serialized (per-kind mutex), so a
    slow run and a manual trigger cannot interleave
  - A failed run is retried up to Retries times, RetryDelay apart;
    configuration errors are not retried
  - The job itself does no retrying; this is the retry policy

USAGE:
  scheduler := NewRotationScheduler(jobs, loc, time.Monday)
  scheduler.Start()
  // ... later
  scheduler.Stop()

  A stopped scheduler can be started again; each Start gets a fresh
  context.

SEE ALSO:
  - handlers.go: TriggerRotation endpoint (manual invocation)
  - rotation/job.go: The rotation state machine
*/
package api

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/warp/rotation-engine/rotation"
)

// RotationScheduler fires rotation jobs at period boundaries.
type RotationScheduler struct {
	Jobs       map[rotation.PeriodKind]*rotation.Job
	Location   *time.Location
	WeekStart  time.Weekday
	Retries    int
	RetryDelay time.Duration
	Enabled    bool

	// Now is the wall clock; replaced in tests.
	Now func() time.Time

	locks   map[rotation.PeriodKind]*sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewRotationScheduler creates a scheduler for the given jobs.
func NewRotationScheduler(jobs map[rotation.PeriodKind]*rotation.Job, loc *time.Location, weekStart time.Weekday) *RotationScheduler {
	locks := make(map[rotation.PeriodKind]*sync.Mutex, len(jobs))
	for kind := range jobs {
		locks[kind] = &sync.Mutex{}
	}
	if loc == nil {
		loc = time.UTC
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RotationScheduler{
		Jobs:       jobs,
		Location:   loc,
		WeekStart:  weekStart,
		Retries:    3,
		RetryDelay: 30 * time.Second,
		Enabled:    true,
		Now:        time.Now,
		locks:      locks,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start launches one loop per configured period kind.
func (rs *RotationScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}
	if rs.running {
		return
	}
	if rs.ctx.Err() != nil {
		rs.ctx, rs.cancel = context.WithCancel(context.Background())
	}
	rs.running = true

	for _, kind := range rotation.PeriodKinds {
		if _, ok := rs.Jobs[kind]; !ok {
			continue
		}
		rs.wg.Add(1)
		go rs.run(rs.ctx, kind)
		log.Printf("[Scheduler] %s rotation scheduled, next run at %v", kind, rs.NextRunTime(kind))
	}
}

// Stop cancels pending waits and in-flight retries, then waits for the loops.
func (rs *RotationScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	rs.cancel()
	if rs.running {
		rs.wg.Wait()
		rs.running = false
		log.Println("[Scheduler] Stopped")
	}
}

func (rs *RotationScheduler) run(ctx context.Context, kind rotation.PeriodKind) {
	defer rs.wg.Done()

	for {
		boundary := rs.NextRunTime(kind)
		timer := time.NewTimer(time.Until(boundary))

		select {
		case <-timer.C:
			rs.invokeWithRetry(ctx, kind, boundary)
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// invokeWithRetry runs the job for boundary, retrying store failures.
func (rs *RotationScheduler) invokeWithRetry(ctx context.Context, kind rotation.PeriodKind, boundary time.Time) {
	for attempt := 0; attempt <= rs.Retries; attempt++ {
		if attempt > 0 {
			log.Printf("[Scheduler] Retrying %s rotation (attempt %d of %d) in %v", kind, attempt, rs.Retries, rs.RetryDelay)
			if !sleep(ctx, rs.RetryDelay) {
				return
			}
		}

		result, err := rs.invoke(ctx, kind, boundary)
		if err == nil {
			log.Printf("[Scheduler] %s rotation completed: %d winner(s), %d categories reset, %d users reset",
				kind, len(result.Winners), result.CountersReset, result.UsersReset)
			return
		}
		if rotation.IsConfigurationError(err) {
			log.Printf("[Scheduler] %s rotation misconfigured, not retrying: %v", kind, err)
			return
		}
		log.Printf("[Scheduler] Error in %s rotation: %v", kind, err)
	}
	log.Printf("[Scheduler] %s rotation for %v gave up after %d retries", kind, boundary, rs.Retries)
}

func (rs *RotationScheduler) invoke(ctx context.Context, kind rotation.PeriodKind, at time.Time) (rotation.Result, error) {
	job, ok := rs.Jobs[kind]
	if !ok {
		return rotation.Result{}, fmt.Errorf("%w: %q", rotation.ErrUnknownPeriodKind, kind)
	}
	lock := rs.locks[kind]
	lock.Lock()
	defer lock.Unlock()

	return job.Run(ctx, at.In(rs.Location))
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// RunNow invokes one rotation immediately, without retries (for admin use).
func (rs *RotationScheduler) RunNow(ctx context.Context, kind rotation.PeriodKind) (rotation.Result, error) {
	return rs.invoke(ctx, kind, rs.Now())
}

// NextRunTime returns the next boundary for a kind.
func (rs *RotationScheduler) NextRunTime(kind rotation.PeriodKind) time.Time {
	return rotation.NextBoundary(kind, rs.Now(), rs.Location, rs.WeekStart)
}

// NextRunTimes returns the next boundary for every configured kind.
func (rs *RotationScheduler) NextRunTimes() map[rotation.PeriodKind]time.Time {
	times := make(map[rotation.PeriodKind]time.Time, len(rs.Jobs))
	for kind := range rs.Jobs {
		times[kind] = rs.NextRunTime(kind)
	}
	return times
}
