package ffnet

import "fmt"

// Config configures the regression network and its training objective.
type Config struct {
	InputDim int   // feature dimensionality of one row
	Hidden   []int // widths of the tanh hidden layers

	BatchSize     int // rows per forward pass
	NumDatapoints int // full training-set size; priors are amortized by it

	PriorMean     float64 // location of the log-variance prior (pre-log)
	PriorVariance float64 // spread of the log-variance prior
	WeightDecay   float64 // L2 strength of the weight prior

	FwdOnly bool  // is this a fwd only graph?
	Seed    int64 // seed for the weight initializers
}

// DefaultConf mirrors the stock architecture: three tanh layers of 50 units,
// a linear mean head and a learned log-variance offset.
func DefaultConf(inputDim int) Config {
	return Config{
		InputDim:      inputDim,
		Hidden:        []int{50, 50, 50},
		BatchSize:     20,
		PriorMean:     1e-6,
		PriorVariance: 0.01,
		WeightDecay:   1.0,
	}
}

func (conf Config) IsValid() bool {
	if conf.InputDim < 1 ||
		conf.BatchSize < 1 ||
		conf.NumDatapoints < 1 ||
		len(conf.Hidden) == 0 {
		return false
	}
	for _, h := range conf.Hidden {
		if h < 1 {
			return false
		}
	}
	return conf.PriorMean > 0 &&
		conf.PriorVariance > 0 &&
		conf.WeightDecay >= 0
}

func (conf Config) String() string {
	return fmt.Sprintf("ffnet.Config{In: %d, Hidden: %v, BatchSize: %d, N: %d}",
		conf.InputDim, conf.Hidden, conf.BatchSize, conf.NumDatapoints)
}
