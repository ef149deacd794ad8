package sgmcmc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSamplingPlan_Keep(t *testing.T) {
	assert := assert.New(t)
	p := SamplingPlan{BurnIn: 10, KeepEvery: 5, NumNets: 100}

	assert.False(p.SamplingPhase(0))
	assert.False(p.SamplingPhase(9))
	assert.True(p.SamplingPhase(10))

	var kept []int
	for i := 0; i < 30; i++ {
		if p.Keep(i) {
			kept = append(kept, i)
		}
	}
	assert.Equal([]int{14, 19, 24, 29}, kept)
}

func TestSamplingPlan_KeepEveryOne(t *testing.T) {
	p := SamplingPlan{BurnIn: 3, KeepEvery: 1, NumNets: 100}
	for i := 3; i < 10; i++ {
		if !p.Keep(i) {
			t.Errorf("iteration %d should be kept", i)
		}
	}
	for i := 0; i < 3; i++ {
		if p.Keep(i) {
			t.Errorf("iteration %d is burn-in and should not be kept", i)
		}
	}
}

func TestSamplingPlan_Iterations(t *testing.T) {
	assert := assert.New(t)

	// the budget fits: run everything
	p := SamplingPlan{BurnIn: 10, KeepEvery: 5, NumNets: 100}
	assert.Equal(30, p.Iterations(30))

	// the ensemble fills up long before numSteps: cut the chain off
	p = SamplingPlan{BurnIn: 10, KeepEvery: 5, NumNets: 2}
	assert.Equal(20, p.Iterations(100))

	// exactly at capacity
	p = SamplingPlan{BurnIn: 10, KeepEvery: 5, NumNets: 4}
	assert.Equal(30, p.Iterations(30))

	// the cut chain still keeps its full complement
	p = SamplingPlan{BurnIn: 10, KeepEvery: 5, NumNets: 2}
	var kept int
	for i := 0; i < p.Iterations(100); i++ {
		if p.Keep(i) {
			kept++
		}
	}
	assert.Equal(2, kept)
}
