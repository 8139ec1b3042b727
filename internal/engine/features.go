package engine

// manhattan is the grid distance between two states.
func manhattan(a, b State) float64 {
	return float64(abs(a.X-b.X) + abs(a.Y-b.Y))
}

// shapingBonus is the potential-based term gamma*(phi(s) - phi(s')) with phi
// the distance to goal, positive when the move closes in on the goal.
func shapingBonus(discount float64, from, to, goal State) float64 {
	return discount * (manhattan(from, goal) - manhattan(to, goal))
}

// huberLoss summarises a TD error, quadratic inside |x| <= 1.
func huberLoss(x float64) float64 {
	const delta = 1.0
	ax := abs(x)
	if ax <= delta {
		return 0.5 * x * x
	}
	return delta * (ax - 0.5*delta)
}
