package sgmcmc

// A SamplingPlan decides which iterations of the chain contribute their
// weights to the ensemble.
type SamplingPlan struct {
	BurnIn    int // iterations discarded off the front of the chain
	KeepEvery int // thinning interval during the sampling phase
	NumNets   int // ensemble capacity
}

// SamplingPhase reports whether iteration i is past burn-in.
func (p SamplingPlan) SamplingPhase(i int) bool { return i >= p.BurnIn }

// Keep reports whether the weights standing after iteration i join the
// ensemble: every KeepEvery-th iteration of the sampling phase.
func (p SamplingPlan) Keep(i int) bool {
	if !p.SamplingPhase(i) {
		return false
	}
	return (i-p.BurnIn+1)%p.KeepEvery == 0
}

// Iterations bounds the chain length: the sampling phase is cut off once
// NumNets samples' worth of thinned iterations have run, even when numSteps
// would allow more.
func (p SamplingPlan) Iterations(numSteps int) int {
	post := numSteps - p.BurnIn
	if limit := p.KeepEvery * p.NumNets; post > limit {
		post = limit
	}
	return p.BurnIn + post
}
