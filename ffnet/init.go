package ffnet

import (
	"math"

	"github.com/chewxy/math32"
	rng "github.com/leesper/go_rng"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// fanOutGaussian draws weights from N(0, 1/fanOut). The scale follows the
// layer's output width, not its input width.
func fanOutGaussian(g *rng.GaussianGenerator, fanOut int) G.InitWFn {
	return func(dt tensor.Dtype, s ...int) interface{} {
		size := tensor.Shape(s).TotalSize()
		switch dt {
		case tensor.Float32:
			std := math32.Sqrt(1 / float32(fanOut))
			retVal := make([]float32, size)
			for i := range retVal {
				retVal[i] = float32(g.Gaussian(0, float64(std)))
			}
			return retVal
		default:
			std := math.Sqrt(1 / float64(fanOut))
			retVal := make([]float64, size)
			for i := range retVal {
				retVal[i] = g.Gaussian(0, std)
			}
			return retVal
		}
	}
}

// logVarianceInit starts the log-variance offset at log(v), i.e. the net
// begins by claiming observation variance v.
func logVarianceInit(v float64) G.InitWFn {
	return func(dt tensor.Dtype, s ...int) interface{} {
		size := tensor.Shape(s).TotalSize()
		switch dt {
		case tensor.Float32:
			retVal := make([]float32, size)
			for i := range retVal {
				retVal[i] = math32.Log(float32(v))
			}
			return retVal
		default:
			retVal := make([]float64, size)
			for i := range retVal {
				retVal[i] = math.Log(v)
			}
			return retVal
		}
	}
}
