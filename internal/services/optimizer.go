package services

import (
	"addris-route-service/internal/domain"
	"addris-route-service/internal/platform/metrics"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"
)

const (
	MetricDistance = "distance"
	MetricDuration = "duration"

	// Held-Karp is O(2^n * n^2); 13 nodes is ~1.4M transitions.
	defaultExactLimit    = 13
	defaultMaxIterations = 2000
)

var errSolverBudget = errors.New("solver time budget exhausted")

// Optimizer finds an open path from node 0 through every node, minimizing
// the selected metric. Small instances are solved exactly; larger ones with
// nearest neighbour plus 2-opt and or-opt local search. When the time
// budget runs out the nearest neighbour order is returned.
type Optimizer struct {
	Metric        string
	Timeout       time.Duration
	ExactLimit    int
	MaxIterations int
	Metrics       *metrics.Collector
}

func NewOptimizer(metric string, timeout time.Duration, m *metrics.Collector) (*Optimizer, error) {
	switch metric {
	case "":
		metric = MetricDistance
	case MetricDistance, MetricDuration:
	default:
		return nil, &domain.ConfigurationError{
			Key: "ROUTING_METRIC",
			Msg: fmt.Sprintf("unsupported routing metric %q", metric),
		}
	}
	return &Optimizer{
		Metric:        metric,
		Timeout:       timeout,
		ExactLimit:    defaultExactLimit,
		MaxIterations: defaultMaxIterations,
		Metrics:       m,
	}, nil
}

// CostMatrix picks the table the optimizer minimizes.
func (o *Optimizer) CostMatrix(m domain.DistanceMatrix) [][]int {
	if o.Metric == MetricDuration {
		return m.Durations
	}
	return m.Distances
}

// Solve returns a permutation of 0..n-1 starting at 0. usedFallback is true
// when the budget expired and the greedy order was returned.
func (o *Optimizer) Solve(ctx context.Context, cost [][]int) (order []int, usedFallback bool, err error) {
	n := len(cost)
	if err := validateCost(cost); err != nil {
		return nil, false, err
	}

	switch n {
	case 0:
		return []int{}, false, nil
	case 1:
		return []int{0}, false, nil
	case 2:
		return []int{0, 1}, false, nil
	}

	greedy := NearestNeighborOrder(cost)

	if o.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.Timeout)
		defer cancel()
	}

	start := time.Now()
	method := "local_search"
	exactLimit := o.ExactLimit
	if exactLimit <= 0 {
		exactLimit = defaultExactLimit
	}

	if n <= exactLimit {
		method = "held_karp"
		order, err = heldKarp(ctx, cost)
	} else {
		order, err = o.localSearch(ctx, cost, greedy)
	}

	if errors.Is(err, errSolverBudget) {
		o.Metrics.ObserveSolver("greedy_fallback", time.Since(start))
		return greedy, true, nil
	}
	if err != nil {
		return nil, false, err
	}

	o.Metrics.ObserveSolver(method, time.Since(start))
	return order, false, nil
}

func validateCost(cost [][]int) error {
	n := len(cost)
	for i, row := range cost {
		if len(row) != n {
			return &domain.OptimizationInfeasibleError{
				Reason: fmt.Sprintf("row %d has %d columns, want %d", i, len(row), n),
			}
		}
		for j, v := range row {
			if v < 0 {
				return &domain.OptimizationInfeasibleError{
					Reason: fmt.Sprintf("negative cost %d at %d -> %d", v, i, j),
				}
			}
		}
	}
	return nil
}

// heldKarp solves the open path exactly. dp[mask][j] is the cheapest path
// from 0 over the nodes in mask ending at j; node k>0 is bit k-1.
func heldKarp(ctx context.Context, cost [][]int) ([]int, error) {
	n := len(cost)
	m := n - 1
	full := 1<<m - 1

	dp := make([][]int, full+1)
	parent := make([][]int8, full+1)
	for mask := range dp {
		dp[mask] = make([]int, m)
		parent[mask] = make([]int8, m)
		for j := range dp[mask] {
			dp[mask][j] = math.MaxInt
			parent[mask][j] = -1
		}
	}
	for j := 0; j < m; j++ {
		dp[1<<j][j] = cost[0][j+1]
	}

	for mask := 1; mask <= full; mask++ {
		if mask&0xff == 0 && ctx.Err() != nil {
			return nil, errSolverBudget
		}
		for j := 0; j < m; j++ {
			if mask&(1<<j) == 0 || dp[mask][j] == math.MaxInt {
				continue
			}
			base := dp[mask][j]
			for k := 0; k < m; k++ {
				if mask&(1<<k) != 0 {
					continue
				}
				next := mask | 1<<k
				c := base + cost[j+1][k+1]
				if c < dp[next][k] {
					dp[next][k] = c
					parent[next][k] = int8(j)
				}
			}
		}
	}

	last := 0
	for j := 1; j < m; j++ {
		if dp[full][j] < dp[full][last] {
			last = j
		}
	}

	rev := make([]int, 0, n)
	mask := full
	for j := last; j >= 0; {
		rev = append(rev, j+1)
		pj := int(parent[mask][j])
		mask &^= 1 << j
		j = pj
	}
	rev = append(rev, 0)
	slices.Reverse(rev)
	return rev, nil
}

// localSearch improves an order with 2-opt segment reversal and or-opt
// segment relocation until no move helps or MaxIterations passes ran.
// Moves are evaluated on full path cost, so asymmetric matrices are safe.
func (o *Optimizer) localSearch(ctx context.Context, cost [][]int, initial []int) ([]int, error) {
	order := slices.Clone(initial)
	best := pathCost(cost, order)
	n := len(order)

	maxIter := o.MaxIterations
	if maxIter <= 0 {
		maxIter = defaultMaxIterations
	}

	candidate := make([]int, n)
	for iter := 0; iter < maxIter; iter++ {
		if ctx.Err() != nil {
			return nil, errSolverBudget
		}
		improved := false

		// 2-opt: reverse order[i..k]; node 0 stays first.
		for i := 1; i < n-1 && !improved; i++ {
			for k := i + 1; k < n; k++ {
				copy(candidate, order)
				slices.Reverse(candidate[i : k+1])
				if c := pathCost(cost, candidate); c < best {
					copy(order, candidate)
					best = c
					improved = true
					break
				}
			}
		}

		// or-opt: move a run of 1..3 nodes elsewhere.
		for seg := 1; seg <= 3 && !improved; seg++ {
			for i := 1; i+seg <= n && !improved; i++ {
				for j := 1; j <= n-seg; j++ {
					if j == i {
						continue
					}
					relocate(candidate, order, i, seg, j)
					if c := pathCost(cost, candidate); c < best {
						copy(order, candidate)
						best = c
						improved = true
						break
					}
				}
			}
		}

		if !improved {
			break
		}
	}

	return order, nil
}

// relocate writes into dst the order with src[i:i+seg] removed and
// reinserted so that it starts at index j of the result.
func relocate(dst, src []int, i, seg, j int) {
	rest := make([]int, 0, len(src)-seg)
	rest = append(rest, src[:i]...)
	rest = append(rest, src[i+seg:]...)

	out := dst[:0]
	out = append(out, rest[:j]...)
	out = append(out, src[i:i+seg]...)
	out = append(out, rest[j:]...)
}
