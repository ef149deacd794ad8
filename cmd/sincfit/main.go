// sincfit fits the sinc function with an SGMCMC ensemble and renders the
// predictive mean and uncertainty band as a PNG.
package main

import (
	"flag"
	"log"
	"math"
	"os"

	rng "github.com/leesper/go_rng"
	"gopkg.in/yaml.v3"
	"gorgonia.org/tensor"

	"github.com/gorgonia/sgmcmc"
	"github.com/gorgonia/sgmcmc/encoding/plot"
)

var (
	confFile = flag.String("config", "", "optional YAML file overriding the sampler hyperparameters")
	points   = flag.Int("points", 32, "number of training points")
	grid     = flag.Int("grid", 128, "number of grid points to predict on")
	seed     = flag.Int64("seed", 1, "seed for data generation and weight init")
	pngOut   = flag.String("png", "sinc.png", "where to render the predictive band")
	csvOut   = flag.String("csv", "", "optional CSV file for the training history")
)

type fileConf struct {
	NumSteps    int     `yaml:"num_steps"`
	BurnInSteps int     `yaml:"burn_in_steps"`
	KeepEvery   int     `yaml:"keep_every"`
	NumNets     int     `yaml:"num_nets"`
	BatchSize   int     `yaml:"batch_size"`
	Stepsize    float64 `yaml:"stepsize"`
	Hidden      []int   `yaml:"hidden"`
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	return math.Sin(math.Pi*x) / (math.Pi * x)
}

func main() {
	flag.Parse()
	if *points < 1 || *grid < 2 {
		log.Fatal("need at least 1 training point and 2 grid points")
	}

	conf := sgmcmc.DefaultConf()
	conf.NumSteps = 10000
	conf.BurnInSteps = 2000
	conf.KeepEvery = 50
	conf.NumNets = 100
	conf.Seed = *seed
	if *confFile != "" {
		if err := applyFile(&conf, *confFile); err != nil {
			log.Fatalf("%+v", err)
		}
	}

	uni := rng.NewUniformGenerator(*seed)
	gauss := rng.NewGaussianGenerator(*seed + 1)
	xsBacking := make([]float64, *points)
	ysBacking := make([]float64, *points)
	for i := range xsBacking {
		x := uni.Float64Range(0, 1)
		xsBacking[i] = x
		ysBacking[i] = sinc(10*x-5) + gauss.Gaussian(0, 0.02)
	}
	xs := tensor.New(tensor.WithShape(*points, 1), tensor.WithBacking(xsBacking))
	ys := tensor.New(tensor.WithShape(*points, 1), tensor.WithBacking(ysBacking))

	b, err := sgmcmc.New(conf)
	if err != nil {
		log.Fatalf("%+v", err)
	}
	if err := b.Train(xs, ys); err != nil {
		log.Fatalf("%+v", err)
	}

	gridBacking := make([]float64, *grid)
	for i := range gridBacking {
		gridBacking[i] = float64(i) / float64(*grid-1)
	}
	gxs := tensor.New(tensor.WithShape(*grid, 1), tensor.WithBacking(gridBacking))
	mean, variance, err := b.Predict(gxs)
	if err != nil {
		log.Fatalf("%+v", err)
	}

	f, err := os.OpenFile(*pngOut, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	enc := plot.NewEncoder(f, 800, 500)
	if err := enc.Encode(gridBacking, mean, variance, xsBacking, ysBacking); err != nil {
		log.Fatalf("%+v", err)
	}
	if err := enc.Flush(); err != nil {
		log.Fatalf("%+v", err)
	}

	if *csvOut != "" {
		hist := b.History()
		if err := hist.Dump(*csvOut); err != nil {
			log.Fatal(err)
		}
	}
	log.Printf("kept %d samples; wrote %s", b.NumSamples(), *pngOut)
}

func applyFile(conf *sgmcmc.Config, filename string) error {
	buf, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	var fc fileConf
	if err := yaml.Unmarshal(buf, &fc); err != nil {
		return err
	}
	if fc.NumSteps > 0 {
		conf.NumSteps = fc.NumSteps
	}
	if fc.BurnInSteps > 0 {
		conf.BurnInSteps = fc.BurnInSteps
	}
	if fc.KeepEvery > 0 {
		conf.KeepEvery = fc.KeepEvery
	}
	if fc.NumNets > 0 {
		conf.NumNets = fc.NumNets
	}
	if fc.BatchSize > 0 {
		conf.BatchSize = fc.BatchSize
	}
	if fc.Stepsize > 0 {
		conf.Stepsizes = sgmcmc.ConstantStepsize(fc.Stepsize)
	}
	if len(fc.Hidden) > 0 {
		conf.NNConf.Hidden = fc.Hidden
	}
	return nil
}
