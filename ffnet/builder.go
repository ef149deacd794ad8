package ffnet

import (
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// builder threads errors through graph construction so the composition sites
// stay readable. Any error poisons all subsequent ops.
type builder struct {
	dt    tensor.Dtype
	model G.Nodes // learnables, in creation order
	err   error
}

func (b *builder) do(f func() (*G.Node, error)) (retVal *G.Node) {
	if b.err != nil {
		return nil
	}
	var err error
	if retVal, err = f(); err != nil {
		b.err = errors.WithStack(err)
	}
	return
}

// linear is xw+b. The bias is a single row, broadcast across the batch, so
// weights restore cleanly into graphs built at other batch sizes.
func (b *builder) linear(g *G.ExprGraph, x *G.Node, units int, init G.InitWFn, name string) *G.Node {
	if b.err != nil {
		return nil
	}
	in := x.Shape()[1]
	w := G.NewMatrix(g, b.dt, G.WithShape(in, units), G.WithInit(init), G.WithName(name+"_w"))
	bias := G.NewMatrix(g, b.dt, G.WithShape(1, units), G.WithInit(G.Zeroes()), G.WithName(name+"_b"))
	b.model = append(b.model, w, bias)
	xw := b.mul(x, w)
	return b.do(func() (*G.Node, error) { return G.BroadcastAdd(xw, bias, nil, []byte{0}) })
}

func (b *builder) constant(v float64) *G.Node {
	if b.err != nil {
		return nil
	}
	switch b.dt {
	case tensor.Float32:
		return G.NewConstant(float32(v))
	default:
		return G.NewConstant(v)
	}
}

func (b *builder) mul(x, y *G.Node) *G.Node {
	return b.do(func() (*G.Node, error) { return G.Mul(x, y) })
}

func (b *builder) hadamard(x, y *G.Node) *G.Node {
	return b.do(func() (*G.Node, error) { return G.HadamardProd(x, y) })
}

func (b *builder) add(x, y *G.Node) *G.Node {
	return b.do(func() (*G.Node, error) { return G.Add(x, y) })
}

func (b *builder) sub(x, y *G.Node) *G.Node {
	return b.do(func() (*G.Node, error) { return G.Sub(x, y) })
}

func (b *builder) neg(x *G.Node) *G.Node {
	return b.do(func() (*G.Node, error) { return G.Neg(x) })
}

func (b *builder) square(x *G.Node) *G.Node {
	return b.do(func() (*G.Node, error) { return G.Square(x) })
}

func (b *builder) exp(x *G.Node) *G.Node {
	return b.do(func() (*G.Node, error) { return G.Exp(x) })
}

func (b *builder) inverse(x *G.Node) *G.Node {
	return b.do(func() (*G.Node, error) { return G.Inverse(x) })
}

func (b *builder) tanh(x *G.Node) *G.Node {
	return b.do(func() (*G.Node, error) { return G.Tanh(x) })
}

func (b *builder) sum(x *G.Node, along ...int) *G.Node {
	return b.do(func() (*G.Node, error) { return G.Sum(x, along...) })
}

func (b *builder) mean(x *G.Node) *G.Node {
	return b.do(func() (*G.Node, error) { return G.Mean(x) })
}
