package solver

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// errIterationLimit is returned when the simplex neither converges nor
// detects unboundedness within its pivot budget.
var errIterationLimit = errors.New("simplex iteration limit reached")

const (
	// pivotTol is the smallest tableau entry accepted as a pivot.
	pivotTol = 1e-9
	// blandAfter switches pricing to Bland's rule after this many
	// consecutive degenerate pivots.
	blandAfter = 50
)

// boundedLP is min c'y subject to Ay = b and 0 <= y <= u. Entries of u may be
// +Inf. A is nil when there are no rows.
type boundedLP struct {
	c []float64
	A *mat.Dense
	b []float64
	u []float64
}

type colState int8

const (
	atLower colState = iota
	atUpper
	inBasis
)

// tableau is a dense bounded-variable simplex tableau. Columns past n are
// artificials, one per row.
type tableau struct {
	m, n  int
	t     *mat.Dense
	rhs   []float64
	beta  []float64
	basis []int
	state []colState
	u     []float64
	d     []float64
	tol   float64
}

// lpSolve points to the LP routine. Tests override it to simulate numerical
// failures.
var lpSolve = solveBounded

// solveBounded runs a two-phase primal simplex. Upper bounds are handled in
// the ratio test, so they cost no rows.
func solveBounded(lp boundedLP, tol float64) (relaxStatus, []float64, error) {
	if lp.A == nil {
		return solveUnconstrained(lp)
	}
	m, n := lp.A.Dims()
	tb := newTableau(lp, tol)

	phase1 := make([]float64, n+m)
	for i := 0; i < m; i++ {
		if tb.basis[i] >= n {
			phase1[tb.basis[i]] = 1
		}
	}
	maxIter := 50*(m+n) + 1000
	st, err := tb.iterate(phase1, maxIter)
	if err != nil {
		return 0, nil, err
	}
	if st == relaxUnbounded {
		return 0, nil, errors.New("phase one reported unbounded")
	}
	tb.refresh()
	infeas, scale := 0.0, 1.0
	for i, j := range tb.basis {
		if j >= n {
			infeas += tb.beta[i]
		}
		scale = math.Max(scale, math.Abs(lp.b[i]))
	}
	if infeas > 1e-7*scale {
		return relaxInfeasible, nil, nil
	}

	// Artificials are pinned to zero; the ratio test drives the remaining
	// basic ones out.
	for j := n; j < n+m; j++ {
		tb.u[j] = 0
	}
	for i, j := range tb.basis {
		if j >= n {
			tb.beta[i] = 0
		}
	}
	phase2 := make([]float64, n+m)
	copy(phase2, lp.c)
	st, err = tb.iterate(phase2, maxIter)
	if err != nil {
		return 0, nil, err
	}
	if st == relaxUnbounded {
		return relaxUnbounded, nil, nil
	}
	tb.refresh()
	return relaxOptimal, tb.values(), nil
}

// solveUnconstrained puts every column at whichever bound its cost prefers.
func solveUnconstrained(lp boundedLP) (relaxStatus, []float64, error) {
	y := make([]float64, len(lp.c))
	for j, c := range lp.c {
		if c >= 0 {
			continue
		}
		if math.IsInf(lp.u[j], 1) {
			return relaxUnbounded, nil, nil
		}
		y[j] = lp.u[j]
	}
	return relaxOptimal, y, nil
}

// newTableau sets up the phase-one tableau. A row whose slack-like column
// (single positive entry, start value within its bound) exists starts with
// that column basic; every other row starts on its artificial.
func newTableau(lp boundedLP, tol float64) *tableau {
	m, n := lp.A.Dims()
	N := n + m
	tb := &tableau{
		m:     m,
		n:     n,
		t:     mat.NewDense(m, N, nil),
		rhs:   make([]float64, m),
		beta:  make([]float64, m),
		basis: make([]int, m),
		state: make([]colState, N),
		u:     make([]float64, N),
		d:     make([]float64, N),
		tol:   tol,
	}
	copy(tb.u, lp.u)
	for i := 0; i < m; i++ {
		row := tb.t.RawRowView(i)
		sign := 1.0
		if lp.b[i] < 0 {
			sign = -1
		}
		for j := 0; j < n; j++ {
			row[j] = sign * lp.A.At(i, j)
		}
		row[n+i] = 1
		tb.rhs[i] = sign * lp.b[i]
		tb.u[n+i] = math.Inf(1)
		tb.basis[i] = n + i
	}

	nonzeros := make([]int, n)
	where := make([]int, n)
	for i := 0; i < m; i++ {
		row := tb.t.RawRowView(i)
		for j := 0; j < n; j++ {
			if row[j] != 0 {
				nonzeros[j]++
				where[j] = i
			}
		}
	}
	seeded := make([]bool, m)
	for j := 0; j < n; j++ {
		if nonzeros[j] != 1 {
			continue
		}
		i := where[j]
		row := tb.t.RawRowView(i)
		a := row[j]
		if seeded[i] || a <= 0 || tb.rhs[i]/a > tb.u[j] {
			continue
		}
		floats.Scale(1/a, row)
		tb.rhs[i] /= a
		row[j] = 1
		tb.u[n+i] = 0
		tb.basis[i] = j
		seeded[i] = true
	}
	for j := range tb.state {
		tb.state[j] = atLower
	}
	for i, j := range tb.basis {
		tb.state[j] = inBasis
		tb.beta[i] = tb.rhs[i]
	}
	return tb
}

func (tb *tableau) iterate(cost []float64, maxIter int) (relaxStatus, error) {
	tb.price(cost)
	degenerate := 0
	for it := 0; it < maxIter; it++ {
		bland := degenerate > blandAfter
		q, dir := tb.entering(bland)
		if q < 0 {
			return relaxOptimal, nil
		}
		r, theta := tb.ratio(q, dir, bland)
		if math.IsInf(theta, 1) {
			return relaxUnbounded, nil
		}
		if theta <= tb.tol {
			degenerate++
		} else {
			degenerate = 0
		}
		tb.step(q, dir, r, theta)
	}
	return 0, errIterationLimit
}

// price computes the reduced costs of cost under the current basis.
func (tb *tableau) price(cost []float64) {
	copy(tb.d, cost)
	for i, j := range tb.basis {
		if cb := cost[j]; cb != 0 {
			floats.AddScaled(tb.d, -cb, tb.t.RawRowView(i))
		}
	}
	for _, j := range tb.basis {
		tb.d[j] = 0
	}
}

// entering picks the column to move and its direction: +1 up from the lower
// bound, -1 down from the upper one.
func (tb *tableau) entering(bland bool) (int, float64) {
	best, q, dir := tb.tol, -1, 0.0
	for j := 0; j < tb.n+tb.m; j++ {
		if tb.state[j] == inBasis || tb.u[j] <= tb.tol {
			continue
		}
		var score, dj float64
		switch {
		case tb.state[j] == atLower && tb.d[j] < -tb.tol:
			score, dj = -tb.d[j], 1
		case tb.state[j] == atUpper && tb.d[j] > tb.tol:
			score, dj = tb.d[j], -1
		default:
			continue
		}
		if bland {
			return j, dj
		}
		if score > best {
			best, q, dir = score, j, dj
		}
	}
	return q, dir
}

// ratio returns the blocking row and the step length. A row of -1 means the
// entering column reaches its own opposite bound first.
func (tb *tableau) ratio(q int, dir float64, bland bool) (int, float64) {
	const tie = 1e-12
	theta, r := tb.u[q], -1
	var pivot float64
	for i := 0; i < tb.m; i++ {
		a := dir * tb.t.At(i, q)
		var lim float64
		switch {
		case a > pivotTol:
			lim = tb.beta[i] / a
		case a < -pivotTol:
			ub := tb.u[tb.basis[i]]
			if math.IsInf(ub, 1) {
				continue
			}
			lim = (ub - tb.beta[i]) / -a
		default:
			continue
		}
		lim = math.Max(lim, 0)
		switch {
		case lim < theta-tie || (r < 0 && lim < theta):
			theta, r, pivot = lim, i, math.Abs(a)
		case r >= 0 && lim <= theta+tie:
			if bland {
				if tb.basis[i] < tb.basis[r] {
					theta, r, pivot = math.Min(theta, lim), i, math.Abs(a)
				}
			} else if math.Abs(a) > pivot {
				theta, r, pivot = math.Min(theta, lim), i, math.Abs(a)
			}
		}
	}
	return r, theta
}

// step moves the entering column by theta and pivots when a basic column
// blocks.
func (tb *tableau) step(q int, dir float64, r int, theta float64) {
	if theta > 0 {
		for i := 0; i < tb.m; i++ {
			if a := tb.t.At(i, q); a != 0 {
				tb.beta[i] -= dir * a * theta
			}
		}
	}
	if r < 0 {
		if tb.state[q] == atLower {
			tb.state[q] = atUpper
		} else {
			tb.state[q] = atLower
		}
		return
	}

	start := 0.0
	if tb.state[q] == atUpper {
		start = tb.u[q]
	}
	leaving := tb.basis[r]
	if dir*tb.t.At(r, q) > 0 {
		tb.state[leaving] = atLower
	} else {
		tb.state[leaving] = atUpper
	}
	tb.state[q] = inBasis
	tb.basis[r] = q
	tb.beta[r] = start + dir*theta
	tb.pivot(r, q)
}

func (tb *tableau) pivot(r, q int) {
	pr := tb.t.RawRowView(r)
	inv := 1 / pr[q]
	floats.Scale(inv, pr)
	pr[q] = 1
	tb.rhs[r] *= inv
	for i := 0; i < tb.m; i++ {
		if i == r {
			continue
		}
		row := tb.t.RawRowView(i)
		f := row[q]
		if f == 0 {
			continue
		}
		floats.AddScaled(row, -f, pr)
		row[q] = 0
		tb.rhs[i] -= f * tb.rhs[r]
	}
	if f := tb.d[q]; f != 0 {
		floats.AddScaled(tb.d, -f, pr)
		tb.d[q] = 0
	}
}

// refresh recomputes the basic values from the transformed right-hand side,
// shedding the drift of incremental updates.
func (tb *tableau) refresh() {
	for i := 0; i < tb.m; i++ {
		v := tb.rhs[i]
		row := tb.t.RawRowView(i)
		for j, st := range tb.state {
			if st == atUpper && tb.u[j] != 0 {
				v -= row[j] * tb.u[j]
			}
		}
		tb.beta[i] = v
	}
}

// values returns the structural part of the current vertex.
func (tb *tableau) values() []float64 {
	y := make([]float64, tb.n)
	for j := 0; j < tb.n; j++ {
		if tb.state[j] == atUpper {
			y[j] = tb.u[j]
		}
	}
	for i, j := range tb.basis {
		if j < tb.n {
			y[j] = tb.beta[i]
		}
	}
	return y
}
