package sgmcmc

import "github.com/pkg/errors"

// Sentinel errors. Wrapped errors remain matchable with errors.Is.
var (
	// ErrInvalidConfig is returned when the hyperparameters cannot form a
	// runnable sampler.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNotTrained is returned when predictions are requested from a model
	// that was never trained.
	ErrNotTrained = errors.New("model is not trained")

	// ErrNoSamples is returned when training kept no network samples, so
	// there is no ensemble to predict with.
	ErrNoSamples = errors.New("ensemble holds no network samples")
)
