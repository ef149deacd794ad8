package sgmcmc

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
	"gorgonia.org/tensor/native"
)

// cyclicBatcher marches a cursor through the dataset rows and wraps around,
// so every iteration sees a full batch even when the dataset size is not a
// multiple of the batch size. The batch tensors are allocated once and
// refilled in place; the graph holds on to them across runs.
type cyclicBatcher struct {
	srcX, srcY [][]float64 // views over the (normalized) dataset
	x, y       *tensor.Dense

	// views over the batch tensors; only the pair matching the net's
	// dtype is populated
	dstX64, dstY64 [][]float64
	dstX32, dstY32 [][]float32

	yF64   []float64 // float64 copy of the current targets, for metrics
	cursor int
}

func makeBatcher(xs, ys *tensor.Dense, batchSize int, dt tensor.Dtype) (*cyclicBatcher, error) {
	b := new(cyclicBatcher)
	var err error
	if b.srcX, err = native.MatrixF64(xs); err != nil {
		return nil, errors.WithStack(err)
	}
	if b.srcY, err = native.MatrixF64(ys); err != nil {
		return nil, errors.WithStack(err)
	}
	cols := xs.Shape()[1]
	b.x = tensor.New(tensor.Of(dt), tensor.WithShape(batchSize, cols))
	b.y = tensor.New(tensor.Of(dt), tensor.WithShape(batchSize, 1))
	b.yF64 = make([]float64, batchSize)
	switch dt {
	case tensor.Float32:
		if b.dstX32, err = native.MatrixF32(b.x); err != nil {
			return nil, errors.WithStack(err)
		}
		if b.dstY32, err = native.MatrixF32(b.y); err != nil {
			return nil, errors.WithStack(err)
		}
	default:
		if b.dstX64, err = native.MatrixF64(b.x); err != nil {
			return nil, errors.WithStack(err)
		}
		if b.dstY64, err = native.MatrixF64(b.y); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	return b, nil
}

// next refills the batch tensors with the following rows.
func (b *cyclicBatcher) next() {
	for r := range b.yF64 {
		i := b.cursor
		if b.dstX32 != nil {
			for j, v := range b.srcX[i] {
				b.dstX32[r][j] = float32(v)
			}
			b.dstY32[r][0] = float32(b.srcY[i][0])
		} else {
			copy(b.dstX64[r], b.srcX[i])
			b.dstY64[r][0] = b.srcY[i][0]
		}
		b.yF64[r] = b.srcY[i][0]
		b.cursor = (b.cursor + 1) % len(b.srcX)
	}
}
