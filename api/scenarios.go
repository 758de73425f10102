/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Seeds the store with categories and users that exercise one rotation
  behavior each, so an operator can load a scenario and then trigger a
  rotation through /api/admin/rotations/{kind}.

AVAILABLE SCENARIOS:
  daily-tie:        Two categories tie for the daily win, one trails
  no-winner:        Nobody has votes; counters still reset
  monthly-rollover: monthlyVotes rolls into totalVotes
  large-catalog:    1,200 categories, reset spans several atomic groups

HOW SCENARIOS WORK:
  1. Reset the store if it supports it (SQLite does)
  2. Write categories and users in chunked batches

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "daily-tie"}

NOTE:
  Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: TriggerRotation
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/warp/rotation-engine/rotation"
)

// Scenario describes a loadable demo data set.
type Scenario struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var scenarios = []Scenario{
	{
		ID:          "daily-tie",
		Name:        "Daily Tie",
		Description: "Cats and Dogs tie on 5 daily votes, Fish has 2; three users spent their vote",
	},
	{
		ID:          "no-winner",
		Name:        "No Winner",
		Description: "One category with 0 votes: no Hall of Fame entry, counters still reset",
	},
	{
		ID:          "monthly-rollover",
		Name:        "Monthly Rollover",
		Description: "monthlyVotes 50, totalVotes 10: after the monthly rotation totalVotes is 50",
	},
	{
		ID:          "large-catalog",
		Name:        "Large Catalog",
		Description: "1,200 categories with daily votes; the reset is split into atomic groups",
	},
}

// LoadScenarioRequest selects a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// resetter is implemented by stores that can be wiped (SQLite).
type resetter interface {
	Reset(ctx context.Context) error
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario resets the store and seeds one scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	categories, users, ok := scenarioData(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	ctx := r.Context()
	if rs, ok := h.Store.(resetter); ok {
		if err := rs.Reset(ctx); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to reset store", err)
			return
		}
	}

	if err := seed(ctx, h.Store, categories, users); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"scenario":   req.ScenarioID,
		"categories": len(categories),
		"users":      len(users),
	})
}

func scenarioData(id string) ([]rotation.Category, []rotation.User, bool) {
	switch id {
	case "daily-tie":
		return []rotation.Category{
				{ID: "cats", Name: "Cats", ImageURL: "https://example.com/cats.png", DailyVotes: 5, WeeklyVotes: 12, MonthlyVotes: 40},
				{ID: "dogs", Name: "Dogs", ImageURL: "https://example.com/dogs.png", DailyVotes: 5, WeeklyVotes: 9, MonthlyVotes: 38},
				{ID: "fish", Name: "Fish", ImageURL: "https://example.com/fish.png", DailyVotes: 2, WeeklyVotes: 3, MonthlyVotes: 7},
			}, []rotation.User{
				{ID: "alice", RemainingVotes: 0},
				{ID: "bob", RemainingVotes: 0},
				{ID: "carol", RemainingVotes: 0},
			}, true
	case "no-winner":
		return []rotation.Category{{ID: "quiet", Name: "Quiet"}}, nil, true
	case "monthly-rollover":
		return []rotation.Category{{ID: "c1", Name: "Mountains", MonthlyVotes: 50, TotalVotes: 10}}, nil, true
	case "large-catalog":
		categories := make([]rotation.Category, 1200)
		for i := range categories {
			categories[i] = rotation.Category{
				ID:         fmt.Sprintf("cat-%04d", i),
				Name:       fmt.Sprintf("Category %d", i),
				DailyVotes: int64(i % 17),
			}
		}
		return categories, nil, true
	}
	return nil, nil, false
}

func seed(ctx context.Context, store rotation.DocumentStore, categories []rotation.Category, users []rotation.User) error {
	ops := make([]rotation.WriteOp, 0, len(categories)+len(users))
	for _, c := range categories {
		ops = append(ops, rotation.WriteOp{
			Kind:       rotation.WriteSet,
			Collection: rotation.CollectionCategories,
			DocumentID: c.ID,
			Fields:     c.Fields(),
		})
	}
	for _, u := range users {
		ops = append(ops, rotation.WriteOp{
			Kind:       rotation.WriteSet,
			Collection: rotation.CollectionUsers,
			DocumentID: u.ID,
			Fields:     u.Fields(),
		})
	}
	_, err := rotation.CommitChunked(ctx, store, ops, 0)
	return err
}
