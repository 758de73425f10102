/*
handlers.go - HTTP admin API for the rotation engine

ENDPOINTS:
  Categories:
    GET    /api/categories              List categories (?orderBy=dailyVotes|weeklyVotes|monthlyVotes|totalVotes)
    POST   /api/categories              Create/overwrite a category

  Users:
    POST   /api/users                   Create/overwrite a user's allowance

  Ledger:
    GET    /api/hall-of-fame/{kind}     Winners of past periods, newest first

  Admin:
    POST   /api/admin/rotations/{kind}  Run a rotation now
    GET    /api/executions              Execution records, newest first
    GET    /api/schedule                Next run per kind

  Scenarios (scenarios.go):
    GET    /api/scenarios               List demo data sets
    POST   /api/scenarios/load          Reset the store and seed one

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid input, unknown period kind, configuration errors
  - 500: Store failures

SECURITY NOTE:
  No authentication. Vote casting lives in another service; these endpoints
  are for operators and seeding.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/warp/rotation-engine/rotation"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     rotation.DocumentStore
	Scheduler *RotationScheduler
}

// NewHandler creates a new handler.
func NewHandler(store rotation.DocumentStore, scheduler *RotationScheduler) *Handler {
	return &Handler{Store: store, Scheduler: scheduler}
}

// =============================================================================
// CATEGORY HANDLERS
// =============================================================================

// ListCategories returns all categories, highest first by the requested counter.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	orderBy := r.URL.Query().Get("orderBy")
	if orderBy == "" {
		orderBy = string(rotation.FieldTotalVotes)
	}
	if !rotation.IsCounterField(orderBy) {
		writeError(w, http.StatusBadRequest, "Invalid orderBy", nil)
		return
	}

	docs, err := h.Store.QueryAll(r.Context(), rotation.Query{
		Collection: rotation.CollectionCategories,
		OrderBy:    orderBy,
		Descending: true,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list categories", err)
		return
	}

	dtos := make([]CategoryDTO, len(docs))
	for i, doc := range docs {
		dtos[i] = toCategoryDTO(rotation.CategoryFromDocument(doc))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveCategory creates or overwrites a category.
func (h *Handler) SaveCategory(w http.ResponseWriter, r *http.Request) {
	var req SaveCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}
	if req.DailyVotes < 0 || req.WeeklyVotes < 0 || req.MonthlyVotes < 0 || req.TotalVotes < 0 {
		writeError(w, http.StatusBadRequest, "Vote counters must not be negative", nil)
		return
	}

	c := rotation.Category{
		ID:           req.ID,
		Name:         req.Name,
		ImageURL:     req.ImageURL,
		DailyVotes:   req.DailyVotes,
		WeeklyVotes:  req.WeeklyVotes,
		MonthlyVotes: req.MonthlyVotes,
		TotalVotes:   req.TotalVotes,
	}
	err := h.Store.BatchWrite(r.Context(), []rotation.WriteOp{{
		Kind:       rotation.WriteSet,
		Collection: rotation.CollectionCategories,
		DocumentID: c.ID,
		Fields:     c.Fields(),
	}})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save category", err)
		return
	}

	writeJSON(w, http.StatusCreated, toCategoryDTO(c))
}

// =============================================================================
// USER HANDLERS
// =============================================================================

// SaveUser creates or overwrites a user's remaining votes.
func (h *Handler) SaveUser(w http.ResponseWriter, r *http.Request) {
	var req SaveUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required", nil)
		return
	}
	if req.RemainingVotes < 0 {
		writeError(w, http.StatusBadRequest, "remainingVotes must not be negative", nil)
		return
	}

	u := rotation.User{ID: req.ID, RemainingVotes: req.RemainingVotes}
	err := h.Store.BatchWrite(r.Context(), []rotation.WriteOp{{
		Kind:       rotation.WriteSet,
		Collection: rotation.CollectionUsers,
		DocumentID: u.ID,
		Fields:     u.Fields(),
	}})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save user", err)
		return
	}

	writeJSON(w, http.StatusCreated, req)
}

// =============================================================================
// LEDGER HANDLERS
// =============================================================================

// ListHallOfFame returns the ledger of one period kind.
// GET /api/hall-of-fame/{kind}
func (h *Handler) ListHallOfFame(w http.ResponseWriter, r *http.Request) {
	kind, err := rotation.ParsePeriodKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period kind", err)
		return
	}

	collection := h.ledgerCollection(kind)
	docs, err := h.Store.QueryAll(r.Context(), rotation.Query{Collection: collection})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list hall of fame", err)
		return
	}

	entries := make([]rotation.HallOfFameEntry, len(docs))
	for i, doc := range docs {
		entries[i] = rotation.HallOfFameEntryFromDocument(doc)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Period.Equal(entries[j].Period) {
			return entries[i].Period.After(entries[j].Period)
		}
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})

	dtos := make([]HallOfFameEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toHallOfFameEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, map[string]any{"kind": kind, "entries": dtos})
}

func (h *Handler) ledgerCollection(kind rotation.PeriodKind) string {
	if h.Scheduler != nil {
		if job, ok := h.Scheduler.Jobs[kind]; ok {
			return job.Config.LedgerCollection
		}
	}
	cfg, _ := rotation.DefaultKindConfig(kind, 1)
	return cfg.LedgerCollection
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// TriggerRotation runs one rotation immediately.
// POST /api/admin/rotations/{kind}
func (h *Handler) TriggerRotation(w http.ResponseWriter, r *http.Request) {
	kind, err := rotation.ParsePeriodKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period kind", err)
		return
	}
	if h.Scheduler == nil {
		writeError(w, http.StatusServiceUnavailable, "Rotation jobs not configured", nil)
		return
	}

	// A client that disconnects mid-run must not abort the reset halfway.
	result, err := h.Scheduler.RunNow(context.WithoutCancel(r.Context()), kind)
	if err != nil {
		writeJSON(w, statusFor(err), map[string]any{
			"error":   "Rotation failed",
			"details": err.Error(),
			"result":  toRotationResultDTO(result),
		})
		return
	}

	writeJSON(w, http.StatusOK, toRotationResultDTO(result))
}

// ListExecutions returns execution records, newest first.
// GET /api/executions?function=resetDailyVotes
func (h *Handler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	docs, err := h.Store.QueryAll(r.Context(), rotation.Query{Collection: rotation.CollectionExecutions})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list executions", err)
		return
	}

	function := r.URL.Query().Get("function")
	records := make([]rotation.ExecutionRecord, 0, len(docs))
	for _, doc := range docs {
		rec := rotation.ExecutionRecordFromDocument(doc)
		if function != "" && rec.FunctionName != function {
			continue
		}
		records = append(records, rec)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ExecutedAt.After(records[j].ExecutedAt)
	})

	dtos := make([]ExecutionDTO, len(records))
	for i, rec := range records {
		dtos[i] = toExecutionDTO(rec)
	}
	writeJSON(w, http.StatusOK, map[string]any{"executions": dtos})
}

// GetSchedule returns the next run time per kind.
// GET /api/schedule
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	if h.Scheduler == nil {
		writeError(w, http.StatusServiceUnavailable, "Rotation jobs not configured", nil)
		return
	}

	dto := ScheduleDTO{
		Timezone: h.Scheduler.Location.String(),
		NextRuns: make(map[string]string),
	}
	for kind, at := range h.Scheduler.NextRunTimes() {
		dto.NextRuns[string(kind)] = at.Format("2006-01-02T15:04:05Z07:00")
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, rotation.ErrUnknownPeriodKind), rotation.IsConfigurationError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
