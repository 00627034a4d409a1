package chbin

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/kdsuneraavinash/CH-Bin/config"
)

// The per-contig weight problem is
//
//	minimize ||sum_i w_i v_i - x||^2  subject to  sum_i w_i = 1
//
// with w_i >= 0 in convex mode. Expanded, that is the quadratic program
// (1/2) w^T G w + q^T w with G = 2 V^T V and q = -2 V^T x. Two small
// regularizers keep the solve deterministic on rank-deficient polytopes:
// a ridge on G so the KKT system stays factorizable, and a tilt on q
// proportional to each corner's squared distance from the query, which
// breaks flat-objective ties toward the nearer corners.
const (
	gramRidge  = 1e-9
	cornerTilt = 1e-6
	qpTol      = 1e-8

	pgdMaxIter = 5000
	pgdTol     = 1e-12
)

// buildProblem assembles the regularized Gram matrix and linear term for a
// query point and its polytope corners.
func buildProblem(x []float64, corners [][]float64) (*mat.SymDense, []float64) {
	k := len(corners)
	g := mat.NewSymDense(k, nil)
	q := make([]float64, k)

	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			dot := 0.0
			for c := range corners[i] {
				dot += corners[i][c] * corners[j][c]
			}
			v := 2 * dot
			if i == j {
				v += gramRidge
			}
			g.SetSym(i, j, v)
		}

		dot := 0.0
		for c := range x {
			dot += corners[i][c] * x[c]
		}
		d := euclidean(corners[i], x)
		q[i] = -2*dot + cornerTilt*d*d
	}

	if !isPositiveDefinite(g) {
		g = nearestPositiveDefinite(g)
	}

	return g, q
}

// uniformWeights is the feasible fallback used when a solve degenerates.
func uniformWeights(k int) []float64 {
	w := make([]float64, k)
	for i := range w {
		w[i] = 1 / float64(k)
	}
	return w
}

// kktSolve solves the equality-constrained subproblem over the free index
// set, holding every other weight at zero. Returns the full weight vector
// and the equality multiplier.
func kktSolve(g *mat.SymDense, q []float64, free []int) ([]float64, float64, error) {
	m := len(free)
	kkt := mat.NewDense(m+1, m+1, nil)
	rhs := mat.NewVecDense(m+1, nil)

	for a, i := range free {
		for b, j := range free {
			kkt.Set(a, b, g.At(i, j))
		}
		kkt.Set(a, m, 1)
		kkt.Set(m, a, 1)
		rhs.SetVec(a, -q[i])
	}
	rhs.SetVec(m, 1)

	var sol mat.VecDense
	if err := sol.SolveVec(kkt, rhs); err != nil {
		return nil, 0, err
	}

	w := make([]float64, len(q))
	for a, i := range free {
		w[i] = sol.AtVec(a)
	}
	return w, sol.AtVec(m), nil
}

// gradient returns G w + q.
func gradient(g *mat.SymDense, q, w []float64) []float64 {
	k := len(q)
	out := make([]float64, k)
	for i := 0; i < k; i++ {
		sum := q[i]
		for j := 0; j < k; j++ {
			sum += g.At(i, j) * w[j]
		}
		out[i] = sum
	}
	return out
}

// solveActiveSet runs a Lawson-Hanson style active-set method on the
// simplex: repeatedly solve the equality-constrained KKT system over the
// free set, bind the most negative weight, and release bound weights whose
// multiplier turns negative.
func solveActiveSet(g *mat.SymDense, q []float64) ([]float64, bool) {
	k := len(q)
	free := make([]int, k)
	bound := make([]bool, k)
	for i := range free {
		free[i] = i
	}

	for iter := 0; iter < 3*k+10; iter++ {
		w, lambda, err := kktSolve(g, q, free)
		if err != nil {
			return nil, false
		}

		// bind the most negative free weight, if any
		worst, worstIdx := -qpTol, -1
		for _, i := range free {
			if w[i] < worst {
				worst, worstIdx = w[i], i
			}
		}
		if worstIdx >= 0 {
			if len(free) == 1 {
				return nil, false
			}
			bound[worstIdx] = true
			free = free[:0]
			for i := 0; i < k; i++ {
				if !bound[i] {
					free = append(free, i)
				}
			}
			continue
		}

		// KKT check on the bound set: release the weight whose
		// multiplier most wants to re-enter
		grad := gradient(g, q, w)
		release, releaseMu := -1, -qpTol
		for i := 0; i < k; i++ {
			if !bound[i] {
				continue
			}
			if mu := grad[i] + lambda; mu < releaseMu {
				release, releaseMu = i, mu
			}
		}
		if release < 0 {
			clampToSimplex(w)
			return w, true
		}
		bound[release] = false
		free = append(free, release)
		sort.Ints(free)
	}

	return nil, false
}

// projectSimplex projects v onto the probability simplex in place.
func projectSimplex(v []float64) {
	n := len(v)
	u := append([]float64(nil), v...)
	sort.Sort(sort.Reverse(sort.Float64Slice(u)))

	cum := 0.0
	theta := 0.0
	for j := 0; j < n; j++ {
		cum += u[j]
		if t := (cum - 1) / float64(j+1); u[j]-t > 0 {
			theta = t
		}
	}

	for i := range v {
		v[i] -= theta
		if v[i] < 0 {
			v[i] = 0
		}
	}
}

// solvePGD runs projected gradient descent with the step size from a
// Gershgorin bound on the Gram spectrum. The start point is the indicator
// of the nearest corner (recovered from the diagonal and linear terms), so
// that flat objective directions resolve the same way the active-set
// backend's tilt does.
func solvePGD(g *mat.SymDense, q []float64) ([]float64, bool) {
	k := len(q)
	w := make([]float64, k)
	nearest, nearestVal := 0, math.Inf(1)
	for i := 0; i < k; i++ {
		// g_ii/2 + q_i = ||v_i||^2 - 2 v_i . x + tilt, minimized by the
		// corner closest to the query
		if val := g.At(i, i)/2 + q[i]; val < nearestVal {
			nearest, nearestVal = i, val
		}
	}
	w[nearest] = 1

	lip := 0.0
	for i := 0; i < k; i++ {
		rowSum := 0.0
		for j := 0; j < k; j++ {
			rowSum += math.Abs(g.At(i, j))
		}
		if rowSum > lip {
			lip = rowSum
		}
	}
	if lip <= 0 {
		return uniformWeights(k), true // all-zero corners
	}
	step := 1 / lip

	next := make([]float64, k)
	for iter := 0; iter < pgdMaxIter; iter++ {
		grad := gradient(g, q, w)
		for i := range next {
			next[i] = w[i] - step*grad[i]
		}
		projectSimplex(next)

		delta := 0.0
		for i := range w {
			if d := math.Abs(next[i] - w[i]); d > delta {
				delta = d
			}
		}
		copy(w, next)
		if delta < pgdTol {
			break
		}
	}

	clampToSimplex(w)
	return w, true
}

// solveAffine solves the equality-only problem: weights sum to 1 and may
// be negative. The KKT system is closed form regardless of backend.
func solveAffine(g *mat.SymDense, q []float64) ([]float64, bool) {
	free := make([]int, len(q))
	for i := range free {
		free[i] = i
	}
	w, _, err := kktSolve(g, q, free)
	if err != nil {
		return nil, false
	}
	return w, true
}

// clampToSimplex zeroes numeric dust and renormalizes to sum 1.
func clampToSimplex(w []float64) {
	sum := 0.0
	for i := range w {
		if w[i] < 0 && w[i] > -qpTol {
			w[i] = 0
		}
		sum += w[i]
	}
	if sum == 0 {
		copy(w, uniformWeights(len(w)))
		return
	}
	for i := range w {
		w[i] /= sum
	}
}

// weightSolver solves per-contig membership weights. Backends must not
// change the mathematical problem, only how it is solved.
type weightSolver struct {
	metric  string
	backend string
}

// Solve returns the membership weights of x over the corners. A degenerate
// or infeasible polytope never fails: the result falls back to the uniform
// feasible vector, and the second return reports whether it did.
func (s weightSolver) Solve(x []float64, corners [][]float64) ([]float64, bool) {
	k := len(corners)
	if k == 0 {
		return nil, true
	}
	if k == 1 {
		return []float64{1}, false
	}

	// a zero-variance polytope (all corners coincide) has no preferred
	// corner; every feasible vector is optimal, so return the uniform one
	degenerate := true
	for i := 1; i < k && degenerate; i++ {
		if euclidean(corners[0], corners[i]) > qpTol {
			degenerate = false
		}
	}
	if degenerate {
		return uniformWeights(k), false
	}

	g, q := buildProblem(x, corners)

	var w []float64
	var ok bool
	switch {
	case s.metric == config.MetricAffine:
		w, ok = solveAffine(g, q)
	case s.backend == config.SolverPGD:
		w, ok = solvePGD(g, q)
	default:
		w, ok = solveActiveSet(g, q)
	}

	if !ok {
		return uniformWeights(k), true
	}
	return w, false
}

// polytopeDistance is the residual norm of a solved weight vector:
// ||sum_i w_i v_i - x||.
func polytopeDistance(x []float64, corners [][]float64, w []float64) float64 {
	if len(corners) == 0 {
		return math.Inf(1)
	}

	proj := make([]float64, len(x))
	for i, corner := range corners {
		for c := range proj {
			proj[c] += w[i] * corner[c]
		}
	}
	return euclidean(proj, x)
}

// isPositiveDefinite reports whether a symmetric matrix admits a Cholesky
// factorization.
func isPositiveDefinite(g *mat.SymDense) bool {
	var chol mat.Cholesky
	return chol.Factorize(g)
}

// nearestPositiveDefinite computes the closest positive definite matrix to
// g in the Frobenius sense (Higham 1988): average the matrix with its polar
// factor, then bump the spectrum until Cholesky succeeds.
func nearestPositiveDefinite(g *mat.SymDense) *mat.SymDense {
	n := g.SymmetricDim()

	var svd mat.SVD
	if !svd.Factorize(g, mat.SVDFull) {
		// pathological input; fall back to a plain diagonal bump
		out := mat.NewSymDense(n, nil)
		out.CopySym(g)
		for i := 0; i < n; i++ {
			out.SetSym(i, i, out.At(i, i)+1e-6)
		}
		return out
	}

	var v mat.Dense
	svd.VTo(&v)
	s := svd.Values(nil)

	// H = V diag(s) V^T
	h := mat.NewDense(n, n, nil)
	scaled := mat.NewDense(n, n, nil)
	scaled.Copy(&v)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			scaled.Set(i, j, v.At(i, j)*s[j])
		}
	}
	h.Mul(scaled, v.T())

	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			avg := (g.At(i, j) + (h.At(i, j)+h.At(j, i))/2) / 2
			out.SetSym(i, j, avg)
		}
	}

	if isPositiveDefinite(out) {
		return out
	}

	norm := mat.Norm(g, 2)
	spacing := math.Nextafter(norm, math.Inf(1)) - norm
	if spacing == 0 {
		spacing = 1e-16
	}

	for k := 1.0; !isPositiveDefinite(out); k++ {
		var eigs mat.EigenSym
		if !eigs.Factorize(out, false) {
			for i := 0; i < n; i++ {
				out.SetSym(i, i, out.At(i, i)+spacing*k*k)
			}
			continue
		}
		minEig := eigs.Values(nil)[0] // ascending
		bump := -minEig*k*k + spacing
		for i := 0; i < n; i++ {
			out.SetSym(i, i, out.At(i, i)+bump)
		}
	}

	return out
}
