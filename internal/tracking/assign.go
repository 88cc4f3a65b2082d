package tracking

import "math"

// forbidden marks a track/detection pair that must never be matched.
var forbidden = math.Inf(1)

// assign solves the rectangular assignment problem for cost (rows are
// tracks, columns are detections) and returns the column chosen for each
// row, or -1 when the row stays unmatched. It matches as many allowed pairs
// as possible and, among those, minimises total cost. Forbidden entries are
// never chosen. Runtime is O(n^3) in the larger dimension.
func assign(cost [][]float64) []int {
	rows := len(cost)
	if rows == 0 {
		return nil
	}
	cols := len(cost[0])
	out := make([]int, rows)
	if cols == 0 {
		for i := range out {
			out[i] = -1
		}
		return out
	}

	// Padding cells cost zero. Forbidden pairs cost more than any spread of
	// real totals, and the penalty stays finite and small so the potentials
	// keep full precision on real costs.
	n := max(rows, cols)
	lo, hi := 0.0, 0.0
	for _, row := range cost {
		for _, c := range row {
			if isForbidden(c) {
				continue
			}
			lo = min(lo, c)
			hi = max(hi, c)
		}
	}
	penalty := hi + float64(n)*(hi-lo) + 1
	at := func(i, j int) float64 {
		if i >= rows || j >= cols {
			return 0
		}
		if isForbidden(cost[i][j]) {
			return penalty
		}
		return cost[i][j]
	}

	// Potentials method over 1-indexed arrays; column 0 is the virtual start.
	const inf = math.MaxFloat64 / 2
	u := make([]float64, n+1)
	v := make([]float64, n+1)
	owner := make([]int, n+1)
	prev := make([]int, n+1)
	slack := make([]float64, n+1)
	seen := make([]bool, n+1)

	for i := 1; i <= n; i++ {
		owner[0] = i
		col := 0
		for j := 1; j <= n; j++ {
			slack[j] = inf
			seen[j] = false
		}
		for {
			seen[col] = true
			row := owner[col]
			delta := inf
			next := -1
			for j := 1; j <= n; j++ {
				if seen[j] {
					continue
				}
				reduced := at(row-1, j-1) - u[row] - v[j]
				if reduced < slack[j] {
					slack[j] = reduced
					prev[j] = col
				}
				if slack[j] < delta {
					delta = slack[j]
					next = j
				}
			}
			if next < 0 {
				break
			}
			for j := 0; j <= n; j++ {
				if seen[j] {
					u[owner[j]] += delta
					v[j] -= delta
				} else {
					slack[j] -= delta
				}
			}
			col = next
			if owner[col] == 0 {
				break
			}
		}
		for col != 0 {
			owner[col] = owner[prev[col]]
			col = prev[col]
		}
	}

	for i := range out {
		out[i] = -1
	}
	for j := 1; j <= n; j++ {
		i := owner[j] - 1
		if i < 0 || i >= rows || j-1 >= cols {
			continue
		}
		if isForbidden(cost[i][j-1]) {
			continue
		}
		out[i] = j - 1
	}
	return out
}

func isForbidden(c float64) bool {
	return math.IsInf(c, 1) || math.IsNaN(c)
}
