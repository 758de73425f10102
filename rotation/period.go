package rotation

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// PERIOD KIND - Which counter rotates and when
// =============================================================================

// PeriodKind selects the counter field and the rotation schedule.
type PeriodKind string

const (
	PeriodDaily   PeriodKind = "daily"
	PeriodWeekly  PeriodKind = "weekly"
	PeriodMonthly PeriodKind = "monthly"
)

// PeriodKinds lists every kind in schedule order.
var PeriodKinds = []PeriodKind{PeriodDaily, PeriodWeekly, PeriodMonthly}

// ParsePeriodKind accepts "daily", "weekly" or "monthly" (case-insensitive).
func ParsePeriodKind(s string) (PeriodKind, error) {
	k := PeriodKind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case PeriodDaily, PeriodWeekly, PeriodMonthly:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPeriodKind, s)
}

// KindConfig is everything that differs between the daily, weekly and
// monthly rotations. One Job is built per KindConfig.
type KindConfig struct {
	Kind PeriodKind

	// Counter closed by this rotation.
	CounterField CounterField

	// RolloverField, if set, is overwritten with the pre-reset counter value.
	RolloverField CounterField

	// MinimumVotes is the qualifying bar for the ledger. A product decision,
	// so it must always be set explicitly (>= 1).
	MinimumVotes int64

	// LedgerCollection receives one HallOfFameEntry per winner.
	LedgerCollection string

	// FunctionName identifies the job in execution records.
	FunctionName string

	// ResetsAllowance enables the RESET_ALLOWANCES step.
	ResetsAllowance bool
}

// DefaultKindConfig returns the standard layout for a kind with the given
// qualifying bar.
func DefaultKindConfig(kind PeriodKind, minimumVotes int64) (KindConfig, error) {
	switch kind {
	case PeriodDaily:
		return KindConfig{
			Kind:             PeriodDaily,
			CounterField:     FieldDailyVotes,
			MinimumVotes:     minimumVotes,
			LedgerCollection: CollectionDailyHallOfFame,
			FunctionName:     "resetDailyVotes",
			ResetsAllowance:  true,
		}, nil
	case PeriodWeekly:
		return KindConfig{
			Kind:             PeriodWeekly,
			CounterField:     FieldWeeklyVotes,
			MinimumVotes:     minimumVotes,
			LedgerCollection: CollectionWeeklyHallOfFame,
			FunctionName:     "resetWeeklyVotes",
		}, nil
	case PeriodMonthly:
		return KindConfig{
			Kind:             PeriodMonthly,
			CounterField:     FieldMonthlyVotes,
			RolloverField:    FieldTotalVotes,
			MinimumVotes:     minimumVotes,
			LedgerCollection: CollectionHallOfFame,
			FunctionName:     "resetMonthlyVotes",
		}, nil
	}
	return KindConfig{}, fmt.Errorf("%w: %q", ErrUnknownPeriodKind, kind)
}

// Validate checks the configuration before a run touches the store.
func (c KindConfig) Validate() error {
	if _, err := ParsePeriodKind(string(c.Kind)); err != nil {
		return err
	}
	if !IsCounterField(string(c.CounterField)) {
		return &ConfigurationError{Setting: "counterField", Reason: fmt.Sprintf("unknown counter %q", c.CounterField)}
	}
	if c.RolloverField != "" && !IsCounterField(string(c.RolloverField)) {
		return &ConfigurationError{Setting: "rolloverField", Reason: fmt.Sprintf("unknown counter %q", c.RolloverField)}
	}
	if c.RolloverField == c.CounterField {
		return &ConfigurationError{Setting: "rolloverField", Reason: "must differ from the rotated counter"}
	}
	if c.MinimumVotes < 1 {
		return &ConfigurationError{
			Setting: fmt.Sprintf("rotation.%s.minimumVotes", c.Kind),
			Reason:  fmt.Sprintf("must be at least 1, got %d", c.MinimumVotes),
		}
	}
	if c.LedgerCollection == "" {
		return &ConfigurationError{Setting: "ledgerCollection", Reason: "missing"}
	}
	if c.FunctionName == "" {
		return &ConfigurationError{Setting: "functionName", Reason: "missing"}
	}
	return nil
}

// =============================================================================
// PERIOD VALUES - The "period" stamped on ledger entries
// =============================================================================

// ClosedPeriod returns the period identifier for a rotation invoked at `at`:
//   - daily:   the invocation instant itself
//   - weekly:  00:00 of the first day of the week before the invocation
//   - monthly: 00:00 on the first of the previous calendar month
//
// Calendar arithmetic happens in at's location.
func ClosedPeriod(kind PeriodKind, at time.Time, weekStart time.Weekday) time.Time {
	switch kind {
	case PeriodWeekly:
		return StartOfWeek(at, weekStart).AddDate(0, 0, -7)
	case PeriodMonthly:
		return StartOfMonth(at).AddDate(0, -1, 0)
	default:
		return at
	}
}

// ClosedWindow returns the start of the calendar window a rotation at `at`
// closes. It equals ClosedPeriod except for daily, where it is 00:00 of the
// day before, so every run on the same day shares one window.
func ClosedWindow(kind PeriodKind, at time.Time, weekStart time.Weekday) time.Time {
	if kind == PeriodDaily {
		return StartOfDay(at).AddDate(0, 0, -1)
	}
	return ClosedPeriod(kind, at, weekStart)
}

// StartOfDay returns 00:00 of t's day in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// StartOfWeek returns 00:00 of the most recent weekStart day on or before t.
func StartOfWeek(t time.Time, weekStart time.Weekday) time.Time {
	offset := (int(t.Weekday()) - int(weekStart) + 7) % 7
	return StartOfDay(t).AddDate(0, 0, -offset)
}

// StartOfMonth returns 00:00 on the first of t's month.
func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// RotationMarker is the category field stamped by a kind's reset with the
// key of the window it closed (see ClosedWindow), e.g. "rotated.monthly".
func RotationMarker(kind PeriodKind) string {
	return "rotated." + string(kind)
}

// PeriodKey renders a window start for the rotation marker. Stable across
// locations so both stores compare equal strings.
func PeriodKey(period time.Time) string {
	return period.UTC().Format(time.RFC3339Nano)
}

// =============================================================================
// SCHEDULE - Rotation boundaries
// =============================================================================

// NextBoundary returns the first rotation instant strictly after `after`:
// daily at 00:00, weekly at 00:00 on weekStart, monthly at 00:00 on the 1st,
// all evaluated in loc.
func NextBoundary(kind PeriodKind, after time.Time, loc *time.Location, weekStart time.Weekday) time.Time {
	t := after.In(loc)
	switch kind {
	case PeriodWeekly:
		return StartOfWeek(t, weekStart).AddDate(0, 0, 7)
	case PeriodMonthly:
		return StartOfMonth(t).AddDate(0, 1, 0)
	default:
		return StartOfDay(t).AddDate(0, 0, 1)
	}
}

// ParseWeekday accepts an English weekday name ("monday", "Sun", ...).
func ParseWeekday(s string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if name == full || name == full[:3] {
			return d, nil
		}
	}
	return time.Sunday, &ConfigurationError{Setting: "schedule.weekStart", Reason: fmt.Sprintf("unknown weekday %q", s)}
}
