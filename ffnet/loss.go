package ffnet

import (
	"math"

	G "gorgonia.org/gorgonia"
)

// logLikelihood is the heteroscedastic Gaussian log likelihood of the batch:
// row sums of -0.5(y-μ)²/(exp(logσ²)+1e-16) - 0.5 logσ², averaged over the
// batch. The epsilon keeps the precision finite when the net drives the
// predicted variance towards zero.
func (b *builder) logLikelihood(mean, logVar, target *G.Node) *G.Node {
	half := b.constant(0.5)
	invVar := b.inverse(b.add(b.exp(logVar), b.constant(1e-16)))
	mse := b.square(b.sub(target, mean))
	rows := b.sub(b.neg(b.hadamard(mse, b.mul(half, invVar))), b.mul(half, logVar))
	return b.mean(b.sum(rows, 1))
}

// logVariancePrior scores the predicted log variances against a Gaussian
// centered at log(priorMean) with spread priorVariance.
func (b *builder) logVariancePrior(logVar *G.Node, priorMean, priorVariance float64) *G.Node {
	delta := b.sub(logVar, b.constant(math.Log(priorMean)))
	quad := b.mul(b.constant(1/(2*priorVariance)), b.neg(b.square(delta)))
	rows := b.sub(quad, b.constant(0.5*math.Log(priorVariance)))
	return b.mean(b.sum(rows, 1))
}

// weightPrior is a zero-mean Gaussian over every learnable, normalized by
// the parameter count so wider nets are not penalized more per weight.
func (b *builder) weightPrior(model G.Nodes, wdecay float64) *G.Node {
	var total *G.Node
	var count int
	for _, p := range model {
		sq := b.sum(b.square(p))
		if total == nil {
			total = sq
		} else {
			total = b.add(total, sq)
		}
		count += p.Shape().TotalSize()
	}
	if total == nil {
		return b.constant(0)
	}
	scaled := b.mul(b.constant(-0.5*wdecay), total)
	return b.mul(b.constant(1/(float64(count)+1e-16)), scaled)
}

// loss assembles the posterior cost: batch log likelihood plus both priors
// amortized by the dataset size, negated into something a solver can minimize.
func (b *builder) loss(mean, logVar, target *G.Node, model G.Nodes, conf Config) *G.Node {
	invN := b.constant(1 / float64(conf.NumDatapoints))
	ll := b.logLikelihood(mean, logVar, target)
	ll = b.add(ll, b.mul(invN, b.logVariancePrior(logVar, conf.PriorMean, conf.PriorVariance)))
	ll = b.add(ll, b.mul(invN, b.weightPrior(model, conf.WeightDecay)))
	return b.neg(ll)
}
