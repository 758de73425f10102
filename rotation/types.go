/*
Package rotation rotates time-scoped popularity counters and keeps the
Hall of Fame ledger.

KEY CONCEPTS IN THIS FILE (types.go):
  - Category:        a votable entity with daily/weekly/monthly/total counters
  - User:            holder of the rationed daily vote allowance
  - HallOfFameEntry: immutable record of one winning category for one closed period
  - ExecutionRecord: diagnostic record of one job run

DOCUMENT MAPPING:
  Each type maps to/from a Document in the store. Field names are the
  stored keys (camelCase) so existing data stays readable.

SEE ALSO:
  - store.go:   Document and DocumentStore
  - job.go:     Rotation Job
  - winners.go: Winner Resolver
*/
package rotation

import "time"

// CounterField names a counter on a Category document.
type CounterField string

const (
	FieldDailyVotes   CounterField = "dailyVotes"
	FieldWeeklyVotes  CounterField = "weeklyVotes"
	FieldMonthlyVotes CounterField = "monthlyVotes"
	FieldTotalVotes   CounterField = "totalVotes"
)

// FieldRemainingVotes is the allowance field on User documents.
const FieldRemainingVotes = "remainingVotes"

// IsCounterField reports whether s names a category counter.
func IsCounterField(s string) bool {
	switch CounterField(s) {
	case FieldDailyVotes, FieldWeeklyVotes, FieldMonthlyVotes, FieldTotalVotes:
		return true
	}
	return false
}

// =============================================================================
// CATEGORY
// =============================================================================

// Category is a votable entity. Counters only grow between rotations.
type Category struct {
	ID           string
	Name         string
	ImageURL     string
	DailyVotes   int64
	WeeklyVotes  int64
	MonthlyVotes int64
	TotalVotes   int64

	// Rotated holds, per kind, the period key of the last reset applied
	// to this category (see RotationMarker).
	Rotated map[PeriodKind]string
}

// Votes returns the value of the given counter.
func (c Category) Votes(field CounterField) int64 {
	switch field {
	case FieldDailyVotes:
		return c.DailyVotes
	case FieldWeeklyVotes:
		return c.WeeklyVotes
	case FieldMonthlyVotes:
		return c.MonthlyVotes
	case FieldTotalVotes:
		return c.TotalVotes
	default:
		return 0
	}
}

// CategoryFromDocument decodes a category document.
func CategoryFromDocument(doc Document) Category {
	c := Category{
		ID:           doc.ID,
		Name:         doc.Fields.String("name"),
		ImageURL:     doc.Fields.String("imageUrl"),
		DailyVotes:   doc.Fields.Int(string(FieldDailyVotes)),
		WeeklyVotes:  doc.Fields.Int(string(FieldWeeklyVotes)),
		MonthlyVotes: doc.Fields.Int(string(FieldMonthlyVotes)),
		TotalVotes:   doc.Fields.Int(string(FieldTotalVotes)),
	}
	for _, kind := range PeriodKinds {
		if key := doc.Fields.String(RotationMarker(kind)); key != "" {
			if c.Rotated == nil {
				c.Rotated = make(map[PeriodKind]string)
			}
			c.Rotated[kind] = key
		}
	}
	return c
}

// RotatedFor reports whether the kind's reset for period was already applied.
func (c Category) RotatedFor(kind PeriodKind, period time.Time) bool {
	return c.Rotated[kind] == PeriodKey(period)
}

// Fields encodes the category for a WriteSet. Rotation markers are not
// included; a seeded category has never been rotated.
func (c Category) Fields() Fields {
	return Fields{
		"name":                    c.Name,
		"imageUrl":                c.ImageURL,
		string(FieldDailyVotes):   c.DailyVotes,
		string(FieldWeeklyVotes):  c.WeeklyVotes,
		string(FieldMonthlyVotes): c.MonthlyVotes,
		string(FieldTotalVotes):   c.TotalVotes,
	}
}

// =============================================================================
// USER
// =============================================================================

// User holds the daily vote allowance.
type User struct {
	ID             string
	RemainingVotes int64
}

func UserFromDocument(doc Document) User {
	return User{ID: doc.ID, RemainingVotes: doc.Fields.Int(FieldRemainingVotes)}
}

func (u User) Fields() Fields {
	return Fields{FieldRemainingVotes: u.RemainingVotes}
}

// =============================================================================
// HALL OF FAME
// =============================================================================

// HallOfFameEntry is a historical copy of a winner. Name and image are
// denormalized so the entry survives renames and deletions.
// Append-only: never updated or deleted.
type HallOfFameEntry struct {
	ID            string
	CategoryID    string
	CategoryName  string
	CategoryImage string
	Votes         int64
	Period        time.Time
	CreatedAt     time.Time
}

// NewHallOfFameEntry builds the ledger entry for one winner.
func NewHallOfFameEntry(w Winner, period time.Time) HallOfFameEntry {
	return HallOfFameEntry{
		CategoryID:    w.Category.ID,
		CategoryName:  w.Category.Name,
		CategoryImage: w.Category.ImageURL,
		Votes:         w.Votes,
		Period:        period,
	}
}

// Fields encodes the entry for Append; createdAt is assigned by the store.
func (e HallOfFameEntry) Fields() Fields {
	return Fields{
		"categoryId":    e.CategoryID,
		"categoryName":  e.CategoryName,
		"categoryImage": e.CategoryImage,
		"votes":         e.Votes,
		"period":        e.Period,
		"createdAt":     ServerTimestamp,
	}
}

func HallOfFameEntryFromDocument(doc Document) HallOfFameEntry {
	return HallOfFameEntry{
		ID:            doc.ID,
		CategoryID:    doc.Fields.String("categoryId"),
		CategoryName:  doc.Fields.String("categoryName"),
		CategoryImage: doc.Fields.String("categoryImage"),
		Votes:         doc.Fields.Int("votes"),
		Period:        doc.Fields.Time("period"),
		CreatedAt:     doc.Fields.Time("createdAt"),
	}
}

// =============================================================================
// EXECUTION RECORD
// =============================================================================

type ExecutionStatus string

const (
	StatusSuccess ExecutionStatus = "success"
	StatusFailure ExecutionStatus = "failure"
)

// ExecutionError is the failure detail of a run. Trace lists the wrapped
// error chain, outermost first, one layer per line.
type ExecutionError struct {
	Message string
	Trace   string
}

// ExecutionRecord is the diagnostic record of one job run.
type ExecutionRecord struct {
	ID           string
	FunctionName string
	Status       ExecutionStatus
	Error        *ExecutionError
	ExecutedAt   time.Time
}

func (r ExecutionRecord) Fields() Fields {
	f := Fields{
		"functionName": r.FunctionName,
		"status":       string(r.Status),
		"error":        nil,
		"executedAt":   ServerTimestamp,
	}
	if r.Error != nil {
		f["error"] = map[string]any{
			"message": r.Error.Message,
			"stack":   r.Error.Trace,
		}
	}
	return f
}

func ExecutionRecordFromDocument(doc Document) ExecutionRecord {
	r := ExecutionRecord{
		ID:           doc.ID,
		FunctionName: doc.Fields.String("functionName"),
		Status:       ExecutionStatus(doc.Fields.String("status")),
		ExecutedAt:   doc.Fields.Time("executedAt"),
	}
	if detail, ok := doc.Fields["error"].(map[string]any); ok {
		r.Error = &ExecutionError{
			Message: Fields(detail).String("message"),
			Trace:   Fields(detail).String("stack"),
		}
	}
	return r
}
