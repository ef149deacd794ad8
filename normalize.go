package sgmcmc

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
	"gorgonia.org/tensor"
	"gorgonia.org/tensor/native"
)

const epsilon = 1e-16

// Stats holds the per-column location and scale captured when a matrix was
// normalized, so later data can be mapped into (and out of) the same space.
type Stats struct {
	Mean []float64
	Std  []float64
}

// Normalize maps every column of xs to zero mean and unit variance and
// returns the fresh matrix along with the captured stats. xs is never
// mutated. Scale is the population standard deviation; zero-spread columns
// divide by epsilon instead.
func Normalize(xs *tensor.Dense) (*tensor.Dense, Stats, error) {
	rows, cols, err := dims2(xs)
	if err != nil {
		return nil, Stats{}, err
	}
	out := xs.Clone().(*tensor.Dense)
	mat, err := native.MatrixF64(out)
	if err != nil {
		return nil, Stats{}, errors.WithStack(err)
	}
	st := Stats{Mean: make([]float64, cols), Std: make([]float64, cols)}
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			col[i] = mat[i][j]
		}
		st.Mean[j] = stat.Mean(col, nil)
		st.Std[j] = stat.PopStdDev(col, nil)
	}
	applyStats(mat, st)
	return out, st, nil
}

// NormalizeWith maps xs into the space described by previously captured
// stats.
func NormalizeWith(xs *tensor.Dense, st Stats) (*tensor.Dense, error) {
	_, cols, err := dims2(xs)
	if err != nil {
		return nil, err
	}
	if len(st.Mean) != cols || len(st.Std) != cols {
		return nil, errors.Errorf("expected stats over %d columns. Got %d instead", cols, len(st.Mean))
	}
	out := xs.Clone().(*tensor.Dense)
	mat, err := native.MatrixF64(out)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	applyStats(mat, st)
	return out, nil
}

// Unnormalize maps normalized values back: x·std + mean. No epsilon is
// involved, so a round trip is exact up to float error.
func Unnormalize(xs *tensor.Dense, st Stats) (*tensor.Dense, error) {
	_, cols, err := dims2(xs)
	if err != nil {
		return nil, err
	}
	if len(st.Mean) != cols || len(st.Std) != cols {
		return nil, errors.Errorf("expected stats over %d columns. Got %d instead", cols, len(st.Mean))
	}
	out := xs.Clone().(*tensor.Dense)
	mat, err := native.MatrixF64(out)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	for i := range mat {
		for j := range mat[i] {
			mat[i][j] = mat[i][j]*st.Std[j] + st.Mean[j]
		}
	}
	return out, nil
}

func applyStats(mat [][]float64, st Stats) {
	for i := range mat {
		for j := range mat[i] {
			mat[i][j] = (mat[i][j] - st.Mean[j]) / safeDenom(st.Std[j], epsilon)
		}
	}
}

// safeDenom nudges y away from zero without flipping its sign. Zero counts
// as positive.
func safeDenom(y, eps float64) float64 {
	switch {
	case y == 0:
		return eps
	case y > 0:
		return y + eps
	default:
		return y - eps
	}
}

// SafeDiv divides x elementwise by y with every denominator nudged away
// from zero. An all-zero y degenerates to x/eps.
func SafeDiv(x, y []float64, eps float64) []float64 {
	retVal := make([]float64, len(x))
	allZero := true
	for _, v := range y {
		if v != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		for i := range x {
			retVal[i] = x[i] / eps
		}
		return retVal
	}
	for i := range x {
		retVal[i] = x[i] / safeDenom(y[i], eps)
	}
	return retVal
}

func dims2(xs *tensor.Dense) (rows, cols int, err error) {
	if xs == nil {
		return 0, 0, errors.New("nil tensor")
	}
	if xs.Dtype() != tensor.Float64 {
		return 0, 0, errors.Errorf("expected a float64-backed tensor. Got %v instead", xs.Dtype())
	}
	if xs.Dims() != 2 {
		return 0, 0, errors.Errorf("expected a matrix. Got %d dimensions instead", xs.Dims())
	}
	s := xs.Shape()
	return s[0], s[1], nil
}
