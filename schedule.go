package sgmcmc

// A StepsizeSchedule yields the stepsize for each successive iteration of
// the chain. Next is consumed exactly once per iteration. Update is fed the
// observed batch cost after every iteration; adaptive schedules may fold it
// into later stepsizes, constant ones ignore it.
type StepsizeSchedule interface {
	Next() float64
	Update(feedback ...float64)
}

// ConstantStepsize yields the same stepsize forever.
type ConstantStepsize float64

// Next returns the stepsize.
func (c ConstantStepsize) Next() float64 { return float64(c) }

// Update is a no-op.
func (c ConstantStepsize) Update(...float64) {}
