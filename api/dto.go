/*
dto.go - Data Transfer Objects for API requests and responses

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.
*/
package api

import (
	"time"

	"github.com/warp/rotation-engine/rotation"
)

// CategoryDTO represents a category in API responses.
type CategoryDTO struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ImageURL     string `json:"imageUrl"`
	DailyVotes   int64  `json:"dailyVotes"`
	WeeklyVotes  int64  `json:"weeklyVotes"`
	MonthlyVotes int64  `json:"monthlyVotes"`
	TotalVotes   int64  `json:"totalVotes"`
}

// SaveCategoryRequest creates or overwrites a category.
type SaveCategoryRequest struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ImageURL     string `json:"imageUrl"`
	DailyVotes   int64  `json:"dailyVotes"`
	WeeklyVotes  int64  `json:"weeklyVotes"`
	MonthlyVotes int64  `json:"monthlyVotes"`
	TotalVotes   int64  `json:"totalVotes"`
}

// SaveUserRequest creates or overwrites a user's allowance.
type SaveUserRequest struct {
	ID             string `json:"id"`
	RemainingVotes int64  `json:"remainingVotes"`
}

// HallOfFameEntryDTO is one ledger entry.
type HallOfFameEntryDTO struct {
	ID            string `json:"id"`
	CategoryID    string `json:"categoryId"`
	CategoryName  string `json:"categoryName"`
	CategoryImage string `json:"categoryImage"`
	Votes         int64  `json:"votes"`
	Period        string `json:"period"`
	CreatedAt     string `json:"createdAt"`
}

// ExecutionDTO is one execution record.
type ExecutionDTO struct {
	ID           string `json:"id"`
	FunctionName string `json:"functionName"`
	Status       string `json:"status"`
	Error        string `json:"error,omitempty"`
	Trace        string `json:"trace,omitempty"`
	ExecutedAt   string `json:"executedAt"`
}

// WinnerDTO is one winner of a rotation.
type WinnerDTO struct {
	CategoryID   string `json:"categoryId"`
	CategoryName string `json:"categoryName"`
	Votes        int64  `json:"votes"`
}

// RotationResultDTO summarizes a manual rotation.
type RotationResultDTO struct {
	Kind            string      `json:"kind"`
	Period          string      `json:"period"`
	State           string      `json:"state"`
	Completed       []string    `json:"completed"`
	FailedStep      string      `json:"failedStep,omitempty"`
	SnapshotSize    int         `json:"snapshotSize"`
	Resumed         bool        `json:"resumed,omitempty"`
	Winners         []WinnerDTO `json:"winners"`
	EntriesRecorded int         `json:"entriesRecorded"`
	CountersReset   int         `json:"countersReset"`
	UsersReset      int         `json:"usersReset"`
}

// ScheduleDTO lists the next run per kind.
type ScheduleDTO struct {
	Timezone string            `json:"timezone"`
	NextRuns map[string]string `json:"nextRuns"`
}

// ErrorResponse is the JSON body for failures.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toCategoryDTO(c rotation.Category) CategoryDTO {
	return CategoryDTO{
		ID:           c.ID,
		Name:         c.Name,
		ImageURL:     c.ImageURL,
		DailyVotes:   c.DailyVotes,
		WeeklyVotes:  c.WeeklyVotes,
		MonthlyVotes: c.MonthlyVotes,
		TotalVotes:   c.TotalVotes,
	}
}

func toHallOfFameEntryDTO(e rotation.HallOfFameEntry) HallOfFameEntryDTO {
	return HallOfFameEntryDTO{
		ID:            e.ID,
		CategoryID:    e.CategoryID,
		CategoryName:  e.CategoryName,
		CategoryImage: e.CategoryImage,
		Votes:         e.Votes,
		Period:        e.Period.Format(time.RFC3339),
		CreatedAt:     e.CreatedAt.Format(time.RFC3339),
	}
}

func toExecutionDTO(r rotation.ExecutionRecord) ExecutionDTO {
	dto := ExecutionDTO{
		ID:           r.ID,
		FunctionName: r.FunctionName,
		Status:       string(r.Status),
		ExecutedAt:   r.ExecutedAt.Format(time.RFC3339),
	}
	if r.Error != nil {
		dto.Error = r.Error.Message
		dto.Trace = r.Error.Trace
	}
	return dto
}

func toRotationResultDTO(res rotation.Result) RotationResultDTO {
	dto := RotationResultDTO{
		Kind:            string(res.Kind),
		State:           string(res.State),
		Completed:       make([]string, len(res.Completed)),
		FailedStep:      string(res.FailedStep),
		SnapshotSize:    res.SnapshotSize,
		Resumed:         res.Resumed,
		Winners:         make([]WinnerDTO, len(res.Winners)),
		EntriesRecorded: res.EntriesRecorded,
		CountersReset:   res.CountersReset,
		UsersReset:      res.UsersReset,
	}
	if !res.Period.IsZero() {
		dto.Period = res.Period.Format(time.RFC3339)
	}
	for i, step := range res.Completed {
		dto.Completed[i] = string(step)
	}
	for i, w := range res.Winners {
		dto.Winners[i] = WinnerDTO{CategoryID: w.Category.ID, CategoryName: w.Category.Name, Votes: w.Votes}
	}
	return dto
}
