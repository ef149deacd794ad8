// Package plot renders regression predictions and their uncertainty bands
// as PNG images.
package plot

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"github.com/golang/freetype/truetype"
	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/math/fixed"
)

var regular *truetype.Font

const (
	dpi      = 144.0
	fontsize = 8.0
)

func init() {
	var err error
	if regular, err = truetype.Parse(gomono.TTF); err != nil {
		panic(err)
	}
}

var (
	bandColor  = color.RGBA{208, 216, 236, 255}
	meanColor  = color.RGBA{32, 64, 172, 255}
	pointColor = color.RGBA{56, 56, 56, 255}
	frameColor = color.RGBA{128, 128, 128, 255}
)

// Encoder renders one prediction plot: the ensemble mean as a curve, mean ±
// 2 std as a band behind it, and optionally the training points on top.
type Encoder struct {
	H, W int
	font.Drawer
	io.Writer

	img         *image.RGBA
	padH, padW  int
	initialized bool
}

// NewEncoder renders into w at the given pixel size.
func NewEncoder(w io.Writer, width, height int) *Encoder {
	return &Encoder{
		H:    height,
		W:    width,
		padH: 24,
		padW: 24,

		Drawer: font.Drawer{
			Src: image.Black,
		},
		Writer: w,
	}
}

// Encode draws one frame. xs must be strictly ascending; mean and variance
// run parallel to it. trainX and trainY are scattered on top and may be
// nil. Encoding again replaces the frame.
func (enc *Encoder) Encode(xs, mean, variance, trainX, trainY []float64) error {
	if len(xs) < 2 {
		return errors.Errorf("expected at least 2 points to plot. Got %d instead", len(xs))
	}
	if len(mean) != len(xs) || len(variance) != len(xs) {
		return errors.Errorf("expected mean and variance over %d points. Got %d and %d instead", len(xs), len(mean), len(variance))
	}
	if len(trainX) != len(trainY) {
		return errors.Errorf("expected train xs and ys of equal length. Got %d and %d instead", len(trainX), len(trainY))
	}
	for i := 1; i < len(xs); i++ {
		if xs[i] <= xs[i-1] {
			return errors.Errorf("expected strictly ascending xs. Got xs[%d]=%v, xs[%d]=%v", i-1, xs[i-1], i, xs[i])
		}
	}
	plotW := enc.W - 2*enc.padW
	plotH := enc.H - 2*enc.padH
	if plotW < 2 || plotH < 2 {
		return errors.Errorf("%dx%d leaves no room to plot in", enc.W, enc.H)
	}

	if !enc.initialized {
		enc.Face = truetype.NewFace(regular, &truetype.Options{
			Size:    fontsize,
			DPI:     dpi,
			Hinting: font.HintingFull,
		})
		enc.Drawer.Src = image.Black
		enc.initialized = true
	}

	lo := make([]float64, len(xs))
	hi := make([]float64, len(xs))
	for i := range xs {
		sd := 2 * math.Sqrt(variance[i])
		lo[i] = mean[i] - sd
		hi[i] = mean[i] + sd
	}

	xmin, xmax := xs[0], xs[len(xs)-1]
	ymin, ymax := floatsRange(lo, hi, trainY)
	if ymax-ymin < 1e-12 {
		ymin--
		ymax++
	}
	margin := 0.05 * (ymax - ymin)
	ymin -= margin
	ymax += margin

	px := func(x float64) int {
		return enc.padW + int(math.Round((x-xmin)/(xmax-xmin)*float64(plotW-1)))
	}
	py := func(y float64) int {
		return enc.H - enc.padH - 1 - int(math.Round((y-ymin)/(ymax-ymin)*float64(plotH-1)))
	}

	img := image.NewRGBA(image.Rect(0, 0, enc.W, enc.H))
	draw.Draw(img, img.Bounds(), image.White, image.ZP, draw.Src)

	// band, then curve, segment by segment
	for i := 0; i < len(xs)-1; i++ {
		x0, x1 := px(xs[i]), px(xs[i+1])
		for col := x0; col <= x1; col++ {
			t := 0.0
			if x1 > x0 {
				t = float64(col-x0) / float64(x1-x0)
			}
			top := py(lerp(hi[i], hi[i+1], t))
			bot := py(lerp(lo[i], lo[i+1], t))
			for row := top; row <= bot; row++ {
				img.Set(col, row, bandColor)
			}
		}
	}
	for i := 0; i < len(xs)-1; i++ {
		x0, x1 := px(xs[i]), px(xs[i+1])
		for col := x0; col <= x1; col++ {
			t := 0.0
			if x1 > x0 {
				t = float64(col-x0) / float64(x1-x0)
			}
			row := py(lerp(mean[i], mean[i+1], t))
			img.Set(col, row, meanColor)
			img.Set(col, row+1, meanColor)
		}
	}

	for i := range trainX {
		if trainX[i] < xmin || trainX[i] > xmax {
			continue
		}
		cx, cy := px(trainX[i]), py(trainY[i])
		for dx := -1; dx <= 1; dx++ {
			for dy := -1; dy <= 1; dy++ {
				img.Set(cx+dx, cy+dy, pointColor)
			}
		}
	}

	// frame
	for col := enc.padW - 1; col <= enc.W-enc.padW; col++ {
		img.Set(col, enc.padH-1, frameColor)
		img.Set(col, enc.H-enc.padH, frameColor)
	}
	for row := enc.padH - 1; row <= enc.H-enc.padH; row++ {
		img.Set(enc.padW-1, row, frameColor)
		img.Set(enc.W-enc.padW, row, frameColor)
	}

	enc.Dst = img
	enc.Dot = fixed.P(enc.padW, enc.padH-6)
	enc.DrawString(fmt.Sprintf("y: %.3g .. %.3g", ymin, ymax))
	enc.Dot = fixed.P(enc.padW, enc.H-enc.padH+16)
	enc.DrawString(fmt.Sprintf("x: %.3g .. %.3g", xmin, xmax))

	enc.img = img
	return nil
}

// Flush writes the current frame as a PNG into the writer.
func (enc *Encoder) Flush() error {
	if enc.img == nil {
		return errors.New("nothing was encoded")
	}
	return png.Encode(enc.Writer, enc.img)
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

func floatsRange(slices ...[]float64) (min, max float64) {
	min = math.Inf(1)
	max = math.Inf(-1)
	for _, s := range slices {
		for _, v := range s {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
	}
	return min, max
}
