//go:build !nohighs

package solver

import "github.com/ohowland/highs"

const highsAvailable = true

// runHighs hands one model to HiGHS. Tests swap it to drive the adapter
// without the native library.
var runHighs = func(cost []float64, bounds [][2]float64, rows [][]float64, integrality []int) ([]float64, error) {
	s, err := highs.New(cost, bounds, rows, integrality)
	if err != nil {
		return nil, err
	}
	s.SetObjectiveSense(highs.Minimize)
	s.RunSolver()
	return s.PrimalColumnSolution(), nil
}
