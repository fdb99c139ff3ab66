package order

// TeamProgress is what auction completion needs to know about a team.
type TeamProgress struct {
	Budget    int
	ItemCount int
}

// AuctionComplete reports whether no team can still acquire an item: each
// has either spent its budget or filled its roster. A zero maxItems means
// rosters are unbounded.
func AuctionComplete(teams []TeamProgress, maxItems int) bool {
	for _, t := range teams {
		if t.Budget > 0 && (maxItems <= 0 || t.ItemCount < maxItems) {
			return false
		}
	}
	return true
}

// Nominator returns the index into teamIDs of the team whose turn it is
// to nominate, given how many nominations have happened so far. Teams that
// can no longer bid are skipped. It returns false when nobody can nominate.
func Nominator(teams []TeamProgress, maxItems, nominations int) (int, bool) {
	n := len(teams)
	if n == 0 {
		return 0, false
	}
	start := nominations % n
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		t := teams[idx]
		if t.Budget > 0 && (maxItems <= 0 || t.ItemCount < maxItems) {
			return idx, true
		}
	}
	return 0, false
}
