package order

// Snake returns the team positions for every turn of a snake draft. Even
// rounds (0-indexed) run 1..n, odd rounds run n..1.
func Snake(numTeams, rounds int) []int {
	if numTeams <= 0 || rounds <= 0 {
		return nil
	}
	order := make([]int, 0, numTeams*rounds)
	for round := 0; round < rounds; round++ {
		for i := 0; i < numTeams; i++ {
			if round%2 == 0 {
				order = append(order, i+1)
			} else {
				order = append(order, numTeams-i)
			}
		}
	}
	return order
}

// PositionForTurn returns the team position on the clock for a 1-based
// turn, or false if the turn is outside the order.
func PositionForTurn(order []int, turn int) (int, bool) {
	if turn < 1 || turn > len(order) {
		return 0, false
	}
	return order[turn-1], true
}

// RoundForTurn returns the 1-based round a 1-based turn falls in.
func RoundForTurn(numTeams, turn int) int {
	if numTeams <= 0 || turn < 1 {
		return 0
	}
	return (turn-1)/numTeams + 1
}

// IsComplete reports whether every turn in order has been taken.
func IsComplete(order []int, turn int) bool {
	return turn > len(order)
}

// TeamForTurn resolves the team id on the clock given teams ordered by
// draft position.
func TeamForTurn(teamIDs []string, rounds, turn int) (string, bool) {
	position, ok := PositionForTurn(Snake(len(teamIDs), rounds), turn)
	if !ok {
		return "", false
	}
	return teamIDs[position-1], true
}
