//go:build nohighs

package solver

import "errors"

const highsAvailable = false

var runHighs = func([]float64, [][2]float64, [][]float64, []int) ([]float64, error) {
	return nil, errors.New("built without HiGHS (nohighs tag)")
}
