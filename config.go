package sgmcmc

import (
	"log"

	"github.com/pkg/errors"

	"github.com/gorgonia/sgmcmc/ffnet"
)

// Config configures the sampler around the net.
type Config struct {
	NumSteps    int // total chain iterations, burn-in included
	BurnInSteps int // iterations discarded before any sample is kept
	KeepEvery   int // thinning interval
	NumNets     int // ensemble capacity
	BatchSize   int // rows per iteration

	NormalizeInput  bool
	NormalizeOutput bool

	Stepsizes StepsizeSchedule // nil means ConstantStepsize(1e-3)
	Solver    SolverFactory    // nil means vanilla SGD at the scheduled stepsize
	Arch      Architecture     // nil means ffnet.New + Init
	NNConf    ffnet.Config     // net topology and priors; dataset-dependent fields are filled in at Train

	Metrics  []Metric    // progress metrics; nil means MSE
	Progress bool        // log progress while training
	LogEvery int         // iterations between progress records; 0 means 100
	Logger   *log.Logger // nil means stderr

	Seed int64 // seed for weight init and anything else that draws
}

// DefaultConf is the stock sampler configuration.
func DefaultConf() Config {
	return Config{
		NumSteps:        50000,
		BurnInSteps:     3000,
		KeepEvery:       100,
		NumNets:         100,
		BatchSize:       20,
		NormalizeInput:  true,
		NormalizeOutput: true,
		Stepsizes:       ConstantStepsize(1e-3),
		NNConf:          ffnet.DefaultConf(0),
		Progress:        true,
		LogEvery:        100,
	}
}

func (conf Config) valid() error {
	if conf.BurnInSteps < 0 {
		return errors.Wrapf(ErrInvalidConfig, "burn-in steps must not be negative. Got %d instead", conf.BurnInSteps)
	}
	if conf.NumSteps <= conf.BurnInSteps {
		return errors.Wrapf(ErrInvalidConfig, "num steps (%d) must exceed burn-in steps (%d)", conf.NumSteps, conf.BurnInSteps)
	}
	if conf.BatchSize < 1 {
		return errors.Wrapf(ErrInvalidConfig, "batch size must be at least 1. Got %d instead", conf.BatchSize)
	}
	if conf.KeepEvery < 1 {
		return errors.Wrapf(ErrInvalidConfig, "keep every must be at least 1. Got %d instead", conf.KeepEvery)
	}
	if conf.NumNets < 1 {
		return errors.Wrapf(ErrInvalidConfig, "num nets must be at least 1. Got %d instead", conf.NumNets)
	}
	return nil
}
