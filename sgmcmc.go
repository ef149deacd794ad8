// Package sgmcmc trains Bayesian neural network ensembles with stochastic
// gradient MCMC. The optimizer's trajectory after burn-in is treated as a
// sampler of the posterior over weights: thinned snapshots of the weights
// form an ensemble, and the ensemble's disagreement is the predictive
// uncertainty.
package sgmcmc

import (
	"fmt"
	"log"
	"math"
	"os"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/gorgonia/sgmcmc/ffnet"
)

// BNN is the top level structure and the entry point of the API: a Bayesian
// neural network approximated by an ensemble of weight samples drawn from
// one SGMCMC chain.
type BNN struct {
	conf Config

	// state
	net      *ffnet.Net
	samples  []Sample
	xStats   Stats
	yStats   Stats
	hist     History
	inputDim int
	trained  bool
}

// New validates conf and returns a trainer. Nil collaborator fields are
// filled with defaults first.
func New(conf Config) (*BNN, error) {
	if conf.Stepsizes == nil {
		conf.Stepsizes = ConstantStepsize(1e-3)
	}
	if conf.Solver == nil {
		conf.Solver = func(stepsize float64) G.Solver {
			return G.NewVanillaSolver(G.WithLearnRate(stepsize))
		}
	}
	if conf.Arch == nil {
		conf.Arch = defaultArch
	}
	if conf.Metrics == nil {
		conf.Metrics = []Metric{MSE()}
	}
	if conf.Logger == nil {
		conf.Logger = log.New(os.Stderr, "sgmcmc: ", log.LstdFlags)
	}
	if conf.LogEvery <= 0 {
		conf.LogEvery = 100
	}
	if conf.NNConf.Hidden == nil && conf.NNConf.PriorMean == 0 && conf.NNConf.PriorVariance == 0 {
		conf.NNConf = ffnet.DefaultConf(0)
	}
	if err := conf.valid(); err != nil {
		return nil, err
	}
	return &BNN{conf: conf}, nil
}

func defaultArch(conf ffnet.Config) (*ffnet.Net, error) {
	n := ffnet.New(conf)
	if err := n.Init(); err != nil {
		return nil, err
	}
	return n, nil
}

// Train runs the chain over xs and ys and collects the ensemble. xs must be
// a float64 matrix of n rows; ys a float64 vector or single-column matrix
// of matching length. Neither is mutated. Any previously collected ensemble
// is discarded first.
func (b *BNN) Train(xs, ys *tensor.Dense) error {
	b.samples = nil
	b.trained = false
	b.hist = makeHistory(b.conf.Metrics)

	n, d, err := dims2(xs)
	if err != nil {
		return errors.WithMessage(err, "xs")
	}
	if n < 1 || d < 1 {
		return errors.Errorf("expected a non-empty training matrix. Got shape %v instead", xs.Shape())
	}
	yd, err := asColumn(ys, n)
	if err != nil {
		return err
	}

	xn := xs
	if b.conf.NormalizeInput {
		if xn, b.xStats, err = Normalize(xs); err != nil {
			return errors.WithMessage(err, "failed to normalize inputs")
		}
	}
	yn := yd
	if b.conf.NormalizeOutput {
		if yn, b.yStats, err = Normalize(yd); err != nil {
			return errors.WithMessage(err, "failed to normalize outputs")
		}
	}

	nnConf := b.conf.NNConf
	nnConf.InputDim = d
	nnConf.BatchSize = b.conf.BatchSize
	nnConf.NumDatapoints = n
	nnConf.FwdOnly = false
	nnConf.Seed = b.conf.Seed

	net, err := b.conf.Arch(nnConf)
	if err != nil {
		return errors.Wrapf(ErrInvalidConfig, "failed to construct the net: %v", err)
	}
	b.net = net
	b.inputDim = d

	batcher, err := makeBatcher(xn, yn, b.conf.BatchSize, net.Dtype())
	if err != nil {
		return err
	}
	if err = net.SetInput(batcher.x); err != nil {
		return err
	}
	if err = net.SetTarget(batcher.y); err != nil {
		return err
	}

	machine := G.NewTapeMachine(net.Graph(), G.BindDualValues(net.Model()...))
	defer machine.Close()
	model := G.NodesToValueGrads(net.Model())

	plan := SamplingPlan{BurnIn: b.conf.BurnInSteps, KeepEvery: b.conf.KeepEvery, NumNets: b.conf.NumNets}
	iterations := plan.Iterations(b.conf.NumSteps)
	if b.conf.Progress {
		b.conf.Logger.Printf("performing %d iterations in total (%d burn-in)", iterations, b.conf.BurnInSteps)
	}

	var solver G.Solver
	lastStep := math.NaN()
	for i := 0; i < iterations; i++ {
		batcher.next()
		if err := machine.RunAll(); err != nil {
			return errors.Wrapf(err, "iteration %d failed", i)
		}
		cost := net.Cost()

		step := b.conf.Stepsizes.Next()
		if solver == nil || step != lastStep {
			solver = b.conf.Solver(step)
			lastStep = step
		}
		if err := solver.Step(model); err != nil {
			return errors.Wrapf(err, "iteration %d failed to step", i)
		}
		b.conf.Stepsizes.Update(cost)

		// samples are taken after the step, so the kept weights include
		// this iteration's move
		if plan.Keep(i) {
			b.samples = append(b.samples, Sample(net.Parameters()))
		}

		if i%b.conf.LogEvery == 0 {
			values := make([]float64, 0, len(b.conf.Metrics))
			predicted := net.PredictedMean()
			for _, m := range b.conf.Metrics {
				values = append(values, m.Fn(predicted, batcher.yF64))
			}
			b.hist.update(i, cost, values)
			if b.conf.Progress {
				line := fmt.Sprintf("iteration %d: loss %.5f", i, cost)
				for k, m := range b.conf.Metrics {
					line += fmt.Sprintf(", %s %.5f", m.Name, values[k])
				}
				b.conf.Logger.Print(line)
			}
		}
		machine.Reset()
	}

	b.trained = true
	if b.conf.Progress {
		b.conf.Logger.Printf("kept %d of %d network samples", len(b.samples), b.conf.NumNets)
	}
	return nil
}

// Predict returns the ensemble's predictive mean and variance for each row
// of xs: the mean over members and the population variance across members,
// mapped back into the training target's space when output normalization is
// on. Each member's own predicted variance is discarded; only ensemble
// disagreement shows up in the result.
func (b *BNN) Predict(xs *tensor.Dense) (mean, variance []float64, err error) {
	_, mean, variance, err = b.predict(xs)
	return mean, variance, err
}

// PredictIndividual additionally returns every member's raw predicted
// means, one slice per kept sample, in normalized space.
func (b *BNN) PredictIndividual(xs *tensor.Dense) (individual [][]float64, mean, variance []float64, err error) {
	return b.predict(xs)
}

func (b *BNN) predict(xs *tensor.Dense) (individual [][]float64, mean, variance []float64, err error) {
	if !b.trained {
		return nil, nil, nil, errors.WithStack(ErrNotTrained)
	}
	if len(b.samples) == 0 {
		return nil, nil, nil, errors.WithStack(ErrNoSamples)
	}
	rows, cols, err := dims2(xs)
	if err != nil {
		return nil, nil, nil, errors.WithMessage(err, "xs")
	}
	if rows < 1 {
		return nil, nil, nil, errors.New("expected at least one row to predict on")
	}
	if cols != b.inputDim {
		return nil, nil, nil, errors.Errorf("expected %d feature columns. Got %d instead", b.inputDim, cols)
	}

	xn := xs
	if b.conf.NormalizeInput {
		if xn, err = NormalizeWith(xs, b.xStats); err != nil {
			return nil, nil, nil, err
		}
	}

	inf, err := ffnet.Infer(b.net, rows)
	if err != nil {
		return nil, nil, nil, err
	}
	defer inf.Close()
	if err = inf.SetInput(xn); err != nil {
		return nil, nil, nil, err
	}

	individual = make([][]float64, 0, len(b.samples))
	for k, s := range b.samples {
		if err = inf.SetParameters(s); err != nil {
			return nil, nil, nil, errors.WithMessagef(err, "sample %d", k)
		}
		out, err := inf.Run()
		if err != nil {
			return nil, nil, nil, errors.WithMessagef(err, "sample %d", k)
		}
		individual = append(individual, out)
	}

	mean = make([]float64, rows)
	for _, out := range individual {
		floats.Add(mean, out)
	}
	floats.Scale(1/float64(len(individual)), mean)

	variance = make([]float64, rows)
	scratch := make([]float64, rows)
	for _, out := range individual {
		copy(scratch, out)
		floats.Sub(scratch, mean)
		floats.Mul(scratch, scratch)
		floats.Add(variance, scratch)
	}
	floats.Scale(1/float64(len(individual)), variance)

	if b.conf.NormalizeOutput {
		std := b.yStats.Std[0]
		floats.Scale(std, mean)
		floats.AddConst(b.yStats.Mean[0], mean)
		floats.Scale(std*std, variance)
	}
	return individual, mean, variance, nil
}

// NumSamples returns the number of kept ensemble members.
func (b *BNN) NumSamples() int { return len(b.samples) }

// History returns the training history of the last Train call. The backing
// slices are shared, not copied.
func (b *BNN) History() History { return b.hist }

// Net returns the trained net, nil before the first Train.
func (b *BNN) Net() *ffnet.Net { return b.net }

// asColumn clones ys into an (n, 1) float64 matrix, accepting either a
// vector or a single-column matrix.
func asColumn(ys *tensor.Dense, n int) (*tensor.Dense, error) {
	if ys == nil {
		return nil, errors.New("nil target tensor")
	}
	if ys.Dtype() != tensor.Float64 {
		return nil, errors.Errorf("expected float64-backed targets. Got %v instead", ys.Dtype())
	}
	s := ys.Shape()
	switch ys.Dims() {
	case 1:
		if s[0] != n {
			return nil, errors.Errorf("expected %d target rows. Got %d instead", n, s[0])
		}
	case 2:
		if s[0] != n || s[1] != 1 {
			return nil, errors.Errorf("expected target shape (%d, 1). Got %v instead", n, s)
		}
	default:
		return nil, errors.Errorf("expected a target vector or column. Got %d dimensions instead", ys.Dims())
	}
	out := ys.Clone().(*tensor.Dense)
	if err := out.Reshape(n, 1); err != nil {
		return nil, errors.WithStack(err)
	}
	return out, nil
}
