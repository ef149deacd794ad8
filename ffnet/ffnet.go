// Package ffnet provides the feedforward regression net underlying the
// sgmcmc ensemble: tanh hidden layers, a linear mean head and a learned
// log-variance offset, trained against a heteroscedastic Gaussian
// likelihood with priors amortized over the dataset.
package ffnet

import (
	"fmt"
	"math"

	rng "github.com/leesper/go_rng"
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
	"gorgonia.org/tensor/native"
)

// Float is the dtype new nets are built in.
var Float = G.Float64

// Net is a single feedforward regression net. It predicts a mean and a log
// variance per row. The zero value is not usable; call New then Init.
type Net struct {
	Config
	dt tensor.Dtype
	g  *G.ExprGraph

	x, y       *G.Node
	mean, logv *G.Node
	cost       *G.Node
	model      G.Nodes

	meanVal, costVal G.Value
}

// New returns a new, uninitialized Net.
func New(conf Config) *Net { return &Net{Config: conf, dt: Float} }

// Init builds the expression graph. For forward-only nets that is just the
// prediction path; otherwise the loss and its gradients are built as well.
func (n *Net) Init() error {
	if !n.IsValid() {
		return errors.Errorf("cannot initialize net with config %v", n.Config)
	}
	var zero tensor.Dtype
	if n.dt == zero {
		n.dt = Float
	}
	n.g = G.NewGraph()
	b := &builder{dt: n.dt}
	if err := n.fwd(b); err != nil {
		return err
	}
	n.model = b.model
	if n.FwdOnly {
		return nil
	}
	return n.bwd(b)
}

func (n *Net) fwd(b *builder) error {
	gauss := rng.NewGaussianGenerator(n.Seed)
	n.x = G.NewMatrix(n.g, n.dt, G.WithShape(n.BatchSize, n.InputDim), G.WithName("X"))
	h := n.x
	for i, units := range n.Hidden {
		h = b.linear(n.g, h, units, fanOutGaussian(gauss, units), fmt.Sprintf("Hidden%d", i))
		h = b.tanh(h)
	}
	n.mean = b.linear(n.g, h, 1, fanOutGaussian(gauss, 1), "Mean")

	// The log variance is a single learned offset, broadcast across the
	// batch by multiplying a column of ones.
	offset := G.NewMatrix(n.g, n.dt, G.WithShape(1, 1), G.WithInit(logVarianceInit(1e-3)), G.WithName("LogVariance"))
	b.model = append(b.model, offset)
	ones := G.NewConstant(tensor.Ones(n.dt, n.BatchSize, 1), G.WithName("Ones"))
	n.logv = b.mul(ones, offset)

	if b.err != nil {
		return b.err
	}
	G.Read(n.mean, &n.meanVal)
	return nil
}

func (n *Net) bwd(b *builder) error {
	n.y = G.NewMatrix(n.g, n.dt, G.WithShape(n.BatchSize, 1), G.WithName("Y"))
	n.cost = b.loss(n.mean, n.logv, n.y, n.model, n.Config)
	if b.err != nil {
		return b.err
	}
	G.Read(n.cost, &n.costVal)
	if _, err := G.Grad(n.cost, n.model...); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// Graph returns the expression graph.
func (n *Net) Graph() *G.ExprGraph { return n.g }

// Model returns the learnables in creation order.
func (n *Net) Model() G.Nodes { return n.model }

// Dtype returns the dtype the graph was built in.
func (n *Net) Dtype() tensor.Dtype { return n.dt }

// SetInput binds x as the input batch. x's shape and dtype must match the
// graph; its backing may be mutated between runs.
func (n *Net) SetInput(x *tensor.Dense) error { return errors.WithStack(G.Let(n.x, x)) }

// SetTarget binds y as the target batch.
func (n *Net) SetTarget(y *tensor.Dense) error {
	if n.y == nil {
		return errors.New("forward-only net has no target node")
	}
	return errors.WithStack(G.Let(n.y, y))
}

// Cost returns the loss computed by the last run, NaN if the net has not
// run or is forward-only.
func (n *Net) Cost() float64 {
	if n.costVal == nil {
		return math.NaN()
	}
	switch c := n.costVal.Data().(type) {
	case float32:
		return float64(c)
	case float64:
		return c
	}
	return math.NaN()
}

// PredictedMean copies out the mean column computed by the last run, one
// value per batch row.
func (n *Net) PredictedMean() []float64 {
	if n.meanVal == nil {
		return nil
	}
	d, ok := n.meanVal.(*tensor.Dense)
	if !ok {
		return nil
	}
	retVal := make([]float64, d.Shape()[0])
	switch n.dt {
	case tensor.Float32:
		mat, err := native.MatrixF32(d)
		if err != nil {
			return nil
		}
		for i := range mat {
			retVal[i] = float64(mat[i][0])
		}
	default:
		mat, err := native.MatrixF64(d)
		if err != nil {
			return nil
		}
		for i := range mat {
			retVal[i] = mat[i][0]
		}
	}
	return retVal
}

// Parameters clones the learnables out of the graph, in the same order
// SetParameters expects them back.
func (n *Net) Parameters() []*tensor.Dense {
	retVal := make([]*tensor.Dense, 0, len(n.model))
	for _, p := range n.model {
		retVal = append(retVal, p.Value().(*tensor.Dense).Clone().(*tensor.Dense))
	}
	return retVal
}

// SetParameters copies ps into the learnables. The count, shapes and dtype
// must all line up with what Init created.
func (n *Net) SetParameters(ps []*tensor.Dense) error {
	if len(ps) != len(n.model) {
		return errors.Errorf("expected %d parameter tensors. Got %d instead", len(n.model), len(ps))
	}
	for i, p := range ps {
		node := n.model[i]
		if !node.Shape().Eq(p.Shape()) {
			return errors.Errorf("parameter %d (%v): expected shape %v. Got %v instead", i, node.Name(), node.Shape(), p.Shape())
		}
		if p.Dtype() != n.dt {
			return errors.Errorf("parameter %d (%v): expected dtype %v. Got %v instead", i, node.Name(), n.dt, p.Dtype())
		}
		dst := node.Value().(*tensor.Dense)
		switch n.dt {
		case tensor.Float32:
			dstM, err := native.MatrixF32(dst)
			if err != nil {
				return errors.WithStack(err)
			}
			srcM, err := native.MatrixF32(p)
			if err != nil {
				return errors.WithStack(err)
			}
			for r := range dstM {
				copy(dstM[r], srcM[r])
			}
		default:
			dstM, err := native.MatrixF64(dst)
			if err != nil {
				return errors.WithStack(err)
			}
			srcM, err := native.MatrixF64(p)
			if err != nil {
				return errors.WithStack(err)
			}
			for r := range dstM {
				copy(dstM[r], srcM[r])
			}
		}
	}
	return nil
}

// An Inferencer wraps a forward-only clone of a trained net so predictions
// can be made at a different batch size, with weights swapped in per
// ensemble member.
type Inferencer struct {
	n     *Net
	m     G.VM
	input *tensor.Dense
}

// Infer builds a forward-only net at the given batch size and seeds it with
// the trained net's current weights.
func Infer(trained *Net, batchSize int) (*Inferencer, error) {
	conf := trained.Config
	conf.FwdOnly = true
	conf.BatchSize = batchSize

	inf := &Inferencer{n: New(conf)}
	inf.n.dt = trained.dt
	if err := inf.n.Init(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize the inference net")
	}
	if err := inf.n.SetParameters(trained.Parameters()); err != nil {
		return nil, err
	}
	inf.input = tensor.New(tensor.Of(inf.n.dt), tensor.WithShape(batchSize, conf.InputDim))
	if err := inf.n.SetInput(inf.input); err != nil {
		return nil, err
	}
	inf.m = G.NewTapeMachine(inf.n.g)
	return inf, nil
}

// SetParameters loads one ensemble member's weights into the inference net.
func (inf *Inferencer) SetParameters(ps []*tensor.Dense) error { return inf.n.SetParameters(ps) }

// SetInput loads a batch of rows. xs must be float64-backed and shaped
// exactly (batchSize, inputDim); values are cast to the net's dtype.
func (inf *Inferencer) SetInput(xs *tensor.Dense) error {
	if xs.Dtype() != tensor.Float64 {
		return errors.Errorf("expected a float64-backed input. Got %v instead", xs.Dtype())
	}
	if !xs.Shape().Eq(inf.input.Shape()) {
		return errors.Errorf("expected input shape %v. Got %v instead", inf.input.Shape(), xs.Shape())
	}
	src, err := native.MatrixF64(xs)
	if err != nil {
		return errors.WithStack(err)
	}
	inf.input.Zero()
	switch inf.n.dt {
	case tensor.Float32:
		dst, err := native.MatrixF32(inf.input)
		if err != nil {
			return errors.WithStack(err)
		}
		for i := range src {
			for j, v := range src[i] {
				dst[i][j] = float32(v)
			}
		}
	default:
		dst, err := native.MatrixF64(inf.input)
		if err != nil {
			return errors.WithStack(err)
		}
		for i := range src {
			copy(dst[i], src[i])
		}
	}
	return nil
}

// Run executes the forward pass and returns a copy of the predicted means.
func (inf *Inferencer) Run() ([]float64, error) {
	inf.m.Reset()
	if err := inf.m.RunAll(); err != nil {
		return nil, errors.WithStack(err)
	}
	return inf.n.PredictedMean(), nil
}

// Close releases the underlying virtual machine.
func (inf *Inferencer) Close() error { return inf.m.Close() }
