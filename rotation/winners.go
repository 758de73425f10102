package rotation

// =============================================================================
// WINNER RESOLVER - Tie-aware winners of a closing period
// =============================================================================

// Winner is a category that qualifies for the ledger.
type Winner struct {
	Category Category
	Votes    int64
}

// ResolveWinners returns every category whose field value equals the
// highest value in the snapshot, in snapshot order. No winners when the
// snapshot is empty or the highest value is below minimumVotes.
//
// Ties are all recorded; store order never picks one arbitrarily.
// Pure: no I/O, no mutation of snapshot.
func ResolveWinners(snapshot []Category, field CounterField, minimumVotes int64) []Winner {
	if len(snapshot) == 0 {
		return nil
	}

	// Snapshots arrive ordered, but scan anyway so an unordered slice
	// cannot under-report the maximum.
	highest := snapshot[0].Votes(field)
	for _, c := range snapshot[1:] {
		highest = max(highest, c.Votes(field))
	}
	if highest < minimumVotes {
		return nil
	}

	var winners []Winner
	for _, c := range snapshot {
		if c.Votes(field) == highest {
			winners = append(winners, Winner{Category: c, Votes: highest})
		}
	}
	return winners
}
