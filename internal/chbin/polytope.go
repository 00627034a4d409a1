package chbin

import "sort"

// assignFragment solves one fragment's membership weights over the polytope
// of its k nearest corners and aggregates the weight mass per bin. The hard
// bin is the argmax of the aggregated mass, ties to the lower bin index.
func assignFragment(
	x []float64,
	frag int,
	store DistanceStore,
	corners [][]float64,
	cornerBins []int,
	k int,
	solver weightSolver,
) (hard int, weights []BinWeight, confidence float64, err error) {
	neighbors, err := store.Nearest(frag, k)
	if err != nil {
		return 0, nil, 0, err
	}

	polytope := make([][]float64, len(neighbors))
	for i, c := range neighbors {
		polytope[i] = corners[c]
	}

	w, _ := solver.Solve(x, polytope)

	mass := make(map[int]float64, len(neighbors))
	for i, c := range neighbors {
		mass[cornerBins[c]] += w[i]
	}

	weights = make([]BinWeight, 0, len(mass))
	for bin, weight := range mass {
		weights = append(weights, BinWeight{Bin: bin, Weight: weight})
	}
	sort.Slice(weights, func(i, j int) bool { return weights[i].Bin < weights[j].Bin })

	hard = weights[0].Bin
	confidence = weights[0].Weight
	for _, bw := range weights[1:] {
		if bw.Weight > confidence {
			hard, confidence = bw.Bin, bw.Weight
		}
	}

	return hard, weights, confidence, nil
}
