package services

// NearestNeighborOrder builds an open path from node 0 by always moving to
// the cheapest unvisited node.
//
// It does not attempt global optimization; it is the construction step of
// the local search and the answer when the solver runs out of time.
// Ties go to the lower index so the order is deterministic.
func NearestNeighborOrder(cost [][]int) []int {
	n := len(cost)
	if n == 0 {
		return nil
	}

	visited := make([]bool, n)
	order := make([]int, 0, n)
	order = append(order, 0)
	visited[0] = true

	current := 0
	for len(order) < n {
		best := -1
		for j := 0; j < n; j++ {
			if visited[j] {
				continue
			}
			// Select next stop by minimum travel cost (greedy step).
			if best == -1 || cost[current][j] < cost[current][best] {
				best = j
			}
		}

		visited[best] = true
		order = append(order, best)
		current = best
	}

	return order
}

// pathCost sums the edges of an open path.
func pathCost(cost [][]int, order []int) int {
	total := 0
	for k := 1; k < len(order); k++ {
		total += cost[order[k-1]][order[k]]
	}
	return total
}
