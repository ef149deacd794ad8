package ffnet

import (
	"math"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/diff/fd"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
	"gorgonia.org/tensor/native"
)

func TestSanity(t *testing.T) {
	conf := DefaultConf(2)
	conf.Hidden = []int{8, 8}
	conf.BatchSize = 16
	conf.NumDatapoints = 64
	conf.Seed = 1

	n := New(conf)
	if err := n.Init(); err != nil {
		t.Fatalf("%+v", err)
	}
	t.Logf("Number of nodes: %d", len(n.g.AllNodes()))

	xs := tensor.New(tensor.WithShape(16, 2), tensor.WithBacking(tensor.Random(Float, 32)))
	ys := tensor.New(tensor.WithShape(16, 1), tensor.WithBacking(tensor.Random(Float, 16)))
	if err := n.SetInput(xs); err != nil {
		t.Fatalf("%+v", err)
	}
	if err := n.SetTarget(ys); err != nil {
		t.Fatalf("%+v", err)
	}

	m := G.NewTapeMachine(n.Graph(), G.BindDualValues(n.Model()...))
	defer m.Close()
	model := G.NodesToValueGrads(n.Model())
	solver := G.NewVanillaSolver(G.WithLearnRate(1e-2))

	for i := 0; i < 50; i++ {
		if err := m.RunAll(); err != nil {
			t.Fatal(err)
		}
		if math.IsNaN(n.Cost()) || math.IsInf(n.Cost(), 0) {
			t.Fatalf("cost diverged at iteration %d: %v", i, n.Cost())
		}
		if err := solver.Step(model); err != nil {
			t.Fatal(err)
		}
		m.Reset()
	}
	t.Logf("final cost: %v", n.Cost())
	runtime.GC()
}

func TestInit_Shapes(t *testing.T) {
	assert := assert.New(t)
	conf := DefaultConf(3)
	conf.Hidden = []int{5, 4}
	conf.BatchSize = 7
	conf.NumDatapoints = 21

	n := New(conf)
	if err := n.Init(); err != nil {
		t.Fatalf("%+v", err)
	}

	model := n.Model()
	assert.Equal(2*len(conf.Hidden)+3, len(model), "two learnables per layer, two for the mean head, one log-variance offset")

	wantShapes := []tensor.Shape{
		{3, 5}, {1, 5}, // Hidden0
		{5, 4}, {1, 4}, // Hidden1
		{4, 1}, {1, 1}, // Mean
		{1, 1}, // LogVariance
	}
	wantNames := []string{
		"Hidden0_w", "Hidden0_b",
		"Hidden1_w", "Hidden1_b",
		"Mean_w", "Mean_b",
		"LogVariance",
	}
	for i, p := range model {
		assert.True(p.Shape().Eq(wantShapes[i]), "param %d: expected shape %v. Got %v instead", i, wantShapes[i], p.Shape())
		assert.Equal(wantNames[i], p.Name(), "param %d", i)
	}
}

func TestInit_InvalidConf(t *testing.T) {
	invalids := []Config{
		{},
		{InputDim: 1, Hidden: []int{5}, BatchSize: 4, PriorMean: 1e-6, PriorVariance: 0.01},                        // no datapoints
		{InputDim: 1, Hidden: nil, BatchSize: 4, NumDatapoints: 8, PriorMean: 1e-6, PriorVariance: 0.01},           // no layers
		{InputDim: 1, Hidden: []int{0}, BatchSize: 4, NumDatapoints: 8, PriorMean: 1e-6, PriorVariance: 0.01},      // zero width
		{InputDim: 1, Hidden: []int{5}, BatchSize: 4, NumDatapoints: 8, PriorMean: 0, PriorVariance: 0.01},         // log of zero
		{InputDim: 1, Hidden: []int{5}, BatchSize: 4, NumDatapoints: 8, PriorMean: 1e-6, PriorVariance: 0},         // no spread
		{InputDim: 1, Hidden: []int{5}, BatchSize: 4, NumDatapoints: 8, PriorMean: 1e-6, PriorVariance: 0.01, WeightDecay: -1},
	}
	for i, conf := range invalids {
		if err := New(conf).Init(); err == nil {
			t.Errorf("config %d should not initialize: %v", i, conf)
		}
	}
}

// handParams builds the parameter set of a 1-1-1 net from plain scalars, in
// model order: Hidden0_w, Hidden0_b, Mean_w, Mean_b, LogVariance.
func handParams(w1, b1, w2, b2, lv float64) []*tensor.Dense {
	backing := []float64{w1, b1, w2, b2, lv}
	ps := make([]*tensor.Dense, len(backing))
	for i, v := range backing {
		ps[i] = tensor.New(tensor.WithShape(1, 1), tensor.WithBacking([]float64{v}))
	}
	return ps
}

// handMean is the forward pass of the same net on scalar input.
func handMean(w1, b1, w2, b2, x float64) float64 { return w2*math.Tanh(w1*x+b1) + b2 }

func TestForward_HandComputed(t *testing.T) {
	assert := assert.New(t)
	conf := Config{
		InputDim:      1,
		Hidden:        []int{1},
		BatchSize:     4,
		NumDatapoints: 8,
		PriorMean:     1e-6,
		PriorVariance: 0.01,
		WeightDecay:   1,
	}
	n := New(conf)
	if err := n.Init(); err != nil {
		t.Fatalf("%+v", err)
	}

	inf, err := Infer(n, 3)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	defer inf.Close()
	if err := inf.SetParameters(handParams(0.5, 0.1, 1.2, -0.2, -2)); err != nil {
		t.Fatalf("%+v", err)
	}

	xs := tensor.New(tensor.WithShape(3, 1), tensor.WithBacking([]float64{0.3, -0.4, 0}))
	if err := inf.SetInput(xs); err != nil {
		t.Fatalf("%+v", err)
	}
	out, err := inf.Run()
	if err != nil {
		t.Fatalf("%+v", err)
	}
	assert.Len(out, 3)
	for i, x := range []float64{0.3, -0.4, 0} {
		assert.InDelta(handMean(0.5, 0.1, 1.2, -0.2, x), out[i], 1e-12, "row %d", i)
	}
}

// handCost mirrors the loss construction with plain scalar math.
func handCost(w1, b1, w2, b2, lv float64, xs, ys []float64, conf Config) float64 {
	invVar := 1 / (math.Exp(lv) + 1e-16)
	var ll float64
	for i, x := range xs {
		d := ys[i] - handMean(w1, b1, w2, b2, x)
		ll += -0.5*d*d*invVar - 0.5*lv
	}
	ll /= float64(len(xs))

	dlv := lv - math.Log(conf.PriorMean)
	lvPrior := -dlv*dlv/(2*conf.PriorVariance) - 0.5*math.Log(conf.PriorVariance)

	sq := w1*w1 + b1*b1 + w2*w2 + b2*b2 + lv*lv
	wPrior := -0.5 * conf.WeightDecay * sq / (5 + 1e-16)

	n := float64(conf.NumDatapoints)
	return -(ll + lvPrior/n + wPrior/n)
}

func TestLoss_HandComputed(t *testing.T) {
	assert := assert.New(t)
	conf := Config{
		InputDim:      1,
		Hidden:        []int{1},
		BatchSize:     2,
		NumDatapoints: 2,
		PriorMean:     1e-6,
		PriorVariance: 0.01,
		WeightDecay:   1,
	}
	n := New(conf)
	if err := n.Init(); err != nil {
		t.Fatalf("%+v", err)
	}

	xsData := []float64{0.3, -0.4}
	ysData := []float64{0.2, 0.1}
	xs := tensor.New(tensor.WithShape(2, 1), tensor.WithBacking(xsData))
	ys := tensor.New(tensor.WithShape(2, 1), tensor.WithBacking(ysData))
	if err := n.SetInput(xs); err != nil {
		t.Fatalf("%+v", err)
	}
	if err := n.SetTarget(ys); err != nil {
		t.Fatalf("%+v", err)
	}

	m := G.NewTapeMachine(n.Graph(), G.BindDualValues(n.Model()...))
	defer m.Close()

	if err := n.SetParameters(handParams(0.5, 0.1, 1.2, -0.2, -2)); err != nil {
		t.Fatalf("%+v", err)
	}
	if err := m.RunAll(); err != nil {
		t.Fatal(err)
	}
	assert.InDelta(handCost(0.5, 0.1, 1.2, -0.2, -2, xsData, ysData, conf), n.Cost(), 1e-10)
	m.Reset()

	// scaling every parameter scales the weight prior quadratically; the
	// hand computation must still agree
	if err := n.SetParameters(handParams(1, 0.2, 2.4, -0.4, -4)); err != nil {
		t.Fatalf("%+v", err)
	}
	if err := m.RunAll(); err != nil {
		t.Fatal(err)
	}
	assert.InDelta(handCost(1, 0.2, 2.4, -0.4, -4, xsData, ysData, conf), n.Cost(), 1e-10)
	m.Reset()

	// all-zero parameters zero out the weight prior term
	if err := n.SetParameters(handParams(0, 0, 0, 0, 0)); err != nil {
		t.Fatalf("%+v", err)
	}
	if err := m.RunAll(); err != nil {
		t.Fatal(err)
	}
	assert.InDelta(handCost(0, 0, 0, 0, 0, xsData, ysData, conf), n.Cost(), 1e-10)
}

func TestLoss_BatchOrderInvariant(t *testing.T) {
	assert := assert.New(t)
	conf := Config{
		InputDim:      1,
		Hidden:        []int{1},
		BatchSize:     3,
		NumDatapoints: 3,
		PriorMean:     1e-6,
		PriorVariance: 0.01,
		WeightDecay:   1,
	}
	n := New(conf)
	if err := n.Init(); err != nil {
		t.Fatalf("%+v", err)
	}
	if err := n.SetParameters(handParams(0.5, 0.1, 1.2, -0.2, -2)); err != nil {
		t.Fatalf("%+v", err)
	}

	m := G.NewTapeMachine(n.Graph(), G.BindDualValues(n.Model()...))
	defer m.Close()

	costOf := func(xsData, ysData []float64) float64 {
		xs := tensor.New(tensor.WithShape(3, 1), tensor.WithBacking(xsData))
		ys := tensor.New(tensor.WithShape(3, 1), tensor.WithBacking(ysData))
		if err := n.SetInput(xs); err != nil {
			t.Fatalf("%+v", err)
		}
		if err := n.SetTarget(ys); err != nil {
			t.Fatalf("%+v", err)
		}
		m.Reset()
		if err := m.RunAll(); err != nil {
			t.Fatal(err)
		}
		return n.Cost()
	}

	forward := costOf([]float64{0.3, -0.4, 0.7}, []float64{0.2, 0.1, -0.5})
	permuted := costOf([]float64{0.7, 0.3, -0.4}, []float64{-0.5, 0.2, 0.1})
	assert.InDelta(forward, permuted, 1e-12)
}

func TestLoss_Gradients(t *testing.T) {
	assert := assert.New(t)
	conf := Config{
		InputDim:      1,
		Hidden:        []int{3},
		BatchSize:     4,
		NumDatapoints: 16,
		PriorMean:     1e-6,
		PriorVariance: 0.01,
		WeightDecay:   1,
		Seed:          42,
	}
	n := New(conf)
	if err := n.Init(); err != nil {
		t.Fatalf("%+v", err)
	}

	xs := tensor.New(tensor.WithShape(4, 1), tensor.WithBacking([]float64{-0.7, -0.2, 0.3, 0.8}))
	ys := tensor.New(tensor.WithShape(4, 1), tensor.WithBacking([]float64{-0.5, 0.1, 0.2, 0.9}))
	if err := n.SetInput(xs); err != nil {
		t.Fatalf("%+v", err)
	}
	if err := n.SetTarget(ys); err != nil {
		t.Fatalf("%+v", err)
	}

	m := G.NewTapeMachine(n.Graph(), G.BindDualValues(n.Model()...))
	defer m.Close()
	if err := m.RunAll(); err != nil {
		t.Fatal(err)
	}

	var analytic []float64
	for _, p := range n.Model() {
		gv, err := p.Grad()
		if err != nil {
			t.Fatalf("%+v", err)
		}
		mat, err := native.MatrixF64(gv.(*tensor.Dense))
		if err != nil {
			t.Fatalf("%+v", err)
		}
		for _, row := range mat {
			analytic = append(analytic, row...)
		}
	}

	x0 := flattenParams(t, n)
	cost := func(x []float64) float64 {
		unflattenParams(t, n, x)
		m.Reset()
		if err := m.RunAll(); err != nil {
			t.Fatal(err)
		}
		return n.Cost()
	}
	numeric := fd.Gradient(nil, cost, x0, &fd.Settings{Formula: fd.Central})

	assert.Len(numeric, len(analytic))
	for i := range analytic {
		assert.InDelta(analytic[i], numeric[i], 1e-5, "param element %d", i)
	}
}

func flattenParams(t *testing.T, n *Net) []float64 {
	var out []float64
	for _, p := range n.Parameters() {
		mat, err := native.MatrixF64(p)
		if err != nil {
			t.Fatalf("%+v", err)
		}
		for _, row := range mat {
			out = append(out, row...)
		}
	}
	return out
}

func unflattenParams(t *testing.T, n *Net, x []float64) {
	var at int
	for _, node := range n.Model() {
		mat, err := native.MatrixF64(node.Value().(*tensor.Dense))
		if err != nil {
			t.Fatalf("%+v", err)
		}
		for _, row := range mat {
			copy(row, x[at:at+len(row)])
			at += len(row)
		}
	}
}

func TestParameters_RoundTrip(t *testing.T) {
	assert := assert.New(t)
	conf := DefaultConf(2)
	conf.Hidden = []int{4}
	conf.BatchSize = 3
	conf.NumDatapoints = 9
	conf.Seed = 3

	a := New(conf)
	if err := a.Init(); err != nil {
		t.Fatalf("%+v", err)
	}
	conf.Seed = 99
	b := New(conf)
	if err := b.Init(); err != nil {
		t.Fatalf("%+v", err)
	}

	if err := b.SetParameters(a.Parameters()); err != nil {
		t.Fatalf("%+v", err)
	}
	am, bm := a.Model(), b.Model()
	for i := range am {
		assert.Equal(am[i].Value().Data(), bm[i].Value().Data(), "param %d should have the same data", i)
	}

	// the clones must be detached from the graph
	cloned := a.Parameters()
	mat, err := native.MatrixF64(cloned[0])
	if err != nil {
		t.Fatalf("%+v", err)
	}
	mat[0][0] = 12345
	assert.NotEqual(am[0].Value().Data(), cloned[0].Data())
}

func TestSetParameters_Mismatch(t *testing.T) {
	conf := DefaultConf(2)
	conf.Hidden = []int{4}
	conf.BatchSize = 3
	conf.NumDatapoints = 9

	n := New(conf)
	if err := n.Init(); err != nil {
		t.Fatalf("%+v", err)
	}

	if err := n.SetParameters(n.Parameters()[:2]); err == nil {
		t.Error("expected a count mismatch error")
	}

	bad := n.Parameters()
	bad[0] = tensor.New(tensor.WithShape(2, 5), tensor.WithBacking(make([]float64, 10)))
	if err := n.SetParameters(bad); err == nil {
		t.Error("expected a shape mismatch error")
	}

	wrongDt := n.Parameters()
	wrongDt[0] = tensor.New(tensor.WithShape(2, 4), tensor.WithBacking(make([]float32, 8)))
	if err := n.SetParameters(wrongDt); err == nil {
		t.Error("expected a dtype mismatch error")
	}
}

func TestInfer_AcrossBatchSizes(t *testing.T) {
	assert := assert.New(t)
	conf := DefaultConf(1)
	conf.Hidden = []int{3}
	conf.BatchSize = 4
	conf.NumDatapoints = 12
	conf.Seed = 7

	n := New(conf)
	if err := n.Init(); err != nil {
		t.Fatalf("%+v", err)
	}

	// the same row replicated must predict the same value at any batch size
	inf6, err := Infer(n, 6)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	defer inf6.Close()
	xs := tensor.New(tensor.WithShape(6, 1), tensor.WithBacking([]float64{0.5, 0.5, 0.5, 0.5, 0.5, 0.5}))
	if err := inf6.SetInput(xs); err != nil {
		t.Fatalf("%+v", err)
	}
	out6, err := inf6.Run()
	if err != nil {
		t.Fatalf("%+v", err)
	}
	for i := 1; i < len(out6); i++ {
		assert.InDelta(out6[0], out6[i], 1e-12, "row %d", i)
	}

	inf1, err := Infer(n, 1)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	defer inf1.Close()
	one := tensor.New(tensor.WithShape(1, 1), tensor.WithBacking([]float64{0.5}))
	if err := inf1.SetInput(one); err != nil {
		t.Fatalf("%+v", err)
	}
	out1, err := inf1.Run()
	if err != nil {
		t.Fatalf("%+v", err)
	}
	assert.InDelta(out6[0], out1[0], 1e-12)
}

func TestInfer_InputValidation(t *testing.T) {
	conf := DefaultConf(2)
	conf.Hidden = []int{3}
	conf.BatchSize = 4
	conf.NumDatapoints = 12

	n := New(conf)
	if err := n.Init(); err != nil {
		t.Fatalf("%+v", err)
	}
	inf, err := Infer(n, 2)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	defer inf.Close()

	wrongShape := tensor.New(tensor.WithShape(3, 2), tensor.WithBacking(make([]float64, 6)))
	if err := inf.SetInput(wrongShape); err == nil {
		t.Error("expected a shape error")
	}
	wrongDt := tensor.New(tensor.WithShape(2, 2), tensor.WithBacking(make([]float32, 4)))
	if err := inf.SetInput(wrongDt); err == nil {
		t.Error("expected a dtype error")
	}
}

func TestToDot(t *testing.T) {
	assert := assert.New(t)
	n := New(DefaultConf(2))
	assert.Equal("", n.ToDot(), "an uninitialized net has no graph to draw")

	conf := DefaultConf(2)
	conf.Hidden = []int{4, 3}
	conf.BatchSize = 5
	conf.NumDatapoints = 10
	n = New(conf)
	if err := n.Init(); err != nil {
		t.Fatalf("%+v", err)
	}

	dot := n.ToDot()
	for _, want := range []string{"digraph", "Hidden0", "Hidden1", "Mean", "LogVariance", "tanh"} {
		assert.Contains(dot, want)
	}
}

func TestFloat32(t *testing.T) {
	assert := assert.New(t)
	old := Float
	Float = G.Float32
	defer func() { Float = old }()

	conf := DefaultConf(1)
	conf.Hidden = []int{3}
	conf.BatchSize = 2
	conf.NumDatapoints = 4
	conf.Seed = 11

	n := New(conf)
	if err := n.Init(); err != nil {
		t.Fatalf("%+v", err)
	}
	assert.Equal(tensor.Float32, n.Dtype())
	for i, p := range n.Parameters() {
		assert.Equal(tensor.Float32, p.Dtype(), "param %d", i)
	}

	inf, err := Infer(n, 2)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	defer inf.Close()
	xs := tensor.New(tensor.WithShape(2, 1), tensor.WithBacking([]float64{0.25, -0.25}))
	if err := inf.SetInput(xs); err != nil {
		t.Fatalf("%+v", err)
	}
	out, err := inf.Run()
	if err != nil {
		t.Fatalf("%+v", err)
	}
	assert.Len(out, 2)
	for i, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("row %d is not finite: %v", i, v)
		}
	}
}
