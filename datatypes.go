package sgmcmc

import (
	"gonum.org/v1/gonum/floats"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/gorgonia/sgmcmc/ffnet"
)

// A Sample is one ensemble member: every learnable of the net, cloned out
// at a kept iteration, in the net's parameter order.
type Sample []*tensor.Dense

// A SolverFactory builds the solver that takes the parameter steps. It is
// invoked with the first stepsize and again whenever the schedule yields a
// different one.
type SolverFactory func(stepsize float64) G.Solver

// An Architecture constructs an initialized net from a config. It is the
// hook for swapping the network topology wholesale while keeping the
// sampling machinery.
type Architecture func(conf ffnet.Config) (*ffnet.Net, error)

// A Metric scores a batch of predictions for progress reporting. Metrics
// never feed back into the training dynamics.
type Metric struct {
	Name string
	Fn   func(predicted, target []float64) float64
}

// MSE is the stock progress metric: mean squared error over the batch.
func MSE() Metric {
	return Metric{
		Name: "mse",
		Fn: func(predicted, target []float64) float64 {
			d := make([]float64, len(predicted))
			copy(d, predicted)
			floats.Sub(d, target)
			return floats.Dot(d, d) / float64(len(d))
		},
	}
}
