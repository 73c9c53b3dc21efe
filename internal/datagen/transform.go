package datagen

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/tensorml/TensorGen/pkg/tensor"
)

// affineDraw holds one set of randomly drawn geometric parameters.
// Shifts are stored as fractions and scaled by the image size when the
// matrix is built, so one draw serves image fields of different sizes.
type affineDraw struct {
	theta  float64
	txFrac float64
	tyFrac float64
	shear  float64
	zx, zy float64
}

func (g *Generator) drawAffine(rnd *rand.Rand) affineDraw {
	var c = &g.config
	var d = affineDraw{zx: 1, zy: 1}
	if c.RotationRange != 0 {
		d.theta = math.Pi / 180 * uniform(rnd, -c.RotationRange, c.RotationRange)
	} else if c.Rot180 {
		if rnd.Float64() < 0.5 {
			d.theta = math.Pi
		}
	}
	if c.HeightShiftRange != 0 {
		d.txFrac = uniform(rnd, -c.HeightShiftRange, c.HeightShiftRange)
	}
	if c.WidthShiftRange != 0 {
		d.tyFrac = uniform(rnd, -c.WidthShiftRange, c.WidthShiftRange)
	}
	if c.ShearRange != 0 {
		d.shear = uniform(rnd, -c.ShearRange, c.ShearRange)
	}
	lo, hi := c.zoomRange()
	if lo != 1 || hi != 1 {
		d.zx = uniform(rnd, lo, hi)
		d.zy = uniform(rnd, lo, hi)
	}
	return d
}

func (d affineDraw) identity() bool {
	return d.theta == 0 && d.txFrac == 0 && d.tyFrac == 0 && d.shear == 0 && d.zx == 1 && d.zy == 1
}

// matrix composes the enabled factors, in fixed order rotation, shift,
// shear, zoom, for an image of the given size, offset about the center.
// Identity factors are skipped.
func (d affineDraw) matrix(height, width int) *mat.Dense {
	var m *mat.Dense
	var mul = func(f *mat.Dense) {
		if m == nil {
			m = f
			return
		}
		var p mat.Dense
		p.Mul(m, f)
		m = &p
	}
	if d.theta != 0 {
		sin, cos := math.Sin(d.theta), math.Cos(d.theta)
		mul(mat.NewDense(3, 3, []float64{
			cos, -sin, 0,
			sin, cos, 0,
			0, 0, 1,
		}))
	}
	tx := d.txFrac * float64(height)
	ty := d.tyFrac * float64(width)
	if tx != 0 || ty != 0 {
		mul(mat.NewDense(3, 3, []float64{
			1, 0, tx,
			0, 1, ty,
			0, 0, 1,
		}))
	}
	if d.shear != 0 {
		sin, cos := math.Sin(d.shear), math.Cos(d.shear)
		mul(mat.NewDense(3, 3, []float64{
			1, -sin, 0,
			0, cos, 0,
			0, 0, 1,
		}))
	}
	if d.zx != 1 || d.zy != 1 {
		mul(mat.NewDense(3, 3, []float64{
			d.zx, 0, 0,
			0, d.zy, 0,
			0, 0, 1,
		}))
	}
	if m == nil {
		return nil
	}
	return offsetCenter(m, height, width)
}

// offsetCenter conjugates a transform with translations so it acts about
// the image center.
func offsetCenter(m *mat.Dense, height, width int) *mat.Dense {
	var ox = float64(height)/2 + 0.5
	var oy = float64(width)/2 + 0.5
	var offset = mat.NewDense(3, 3, []float64{
		1, 0, ox,
		0, 1, oy,
		0, 0, 1,
	})
	var reset = mat.NewDense(3, 3, []float64{
		1, 0, -ox,
		0, 1, -oy,
		0, 0, 1,
	})
	var p mat.Dense
	p.Mul(offset, m)
	p.Mul(&p, reset)
	return &p
}

// Transform randomly augments a single multi-field sample. The input is
// not modified; the result is a pure function of the sample and the
// random stream. Order of operations: affine transform, channel shift,
// flips, noise injection, dropout. Later steps see already-transformed
// data.
func (g *Generator) Transform(sample map[string]tensor.Tensor, rnd *rand.Rand) map[string]tensor.Tensor {
	var c = &g.config
	var out = make(map[string]tensor.Tensor, len(sample))
	for name, x := range sample {
		out[name] = x.Clone()
	}

	var draw = g.drawAffine(rnd)
	if !draw.identity() {
		for name, x := range out {
			if x.IsImage() {
				out[name] = applyAffine(x, draw.matrix(x.Height(), x.Width()))
			} else if c.ImageTransformCallback != nil {
				out[name] = c.ImageTransformCallback(x)
			}
		}
	}

	if c.ChannelShiftRange != 0 {
		for name, x := range out {
			if x.IsImage() {
				out[name] = channelShift(x, c.ChannelShiftRange, rnd)
			}
		}
	}

	if c.HorizontalFlip && rnd.Float64() < 0.5 {
		for name, x := range out {
			if x.IsImage() {
				out[name] = flipCols(x)
			} else if c.ImageHorizFlipCallback != nil {
				out[name] = c.ImageHorizFlipCallback(x)
			}
		}
	}
	if c.VerticalFlip && rnd.Float64() < 0.5 {
		for name, x := range out {
			if x.IsImage() {
				out[name] = flipRows(x)
			} else if c.ImageVertFlipCallback != nil {
				out[name] = c.ImageVertFlipCallback(x)
			}
		}
	}

	for name, x := range out {
		if x.IsImage() {
			if c.ImageGaussianSigma != 0 {
				addCorrelatedNoise(x, c.ImageGaussianSigma, c.ImageGaussianCorrcoef, rnd)
			}
		} else if c.DataGaussianSigma != 0 {
			for i := range x.Data {
				x.Data[i] += float32(rnd.NormFloat64() * c.DataGaussianSigma)
			}
		}
		out[name] = x
	}

	for name, x := range out {
		if x.IsImage() {
			dropout(x.Data, c.ImageDropoutRate, rnd)
		} else {
			dropout(x.Data, c.DataDropoutRate, rnd)
		}
		out[name] = x
	}

	return out
}

// applyAffine samples the source image through the inverse transform with
// nearest-neighbor interpolation and edge clamping.
func applyAffine(x tensor.Tensor, m *mat.Dense) tensor.Tensor {
	if m == nil {
		return x
	}
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return x
	}
	var h, w, c = x.Shape[0], x.Shape[1], x.Shape[2]
	var out = tensor.New(h, w, c)
	for i := 0; i < h; i++ {
		for j := 0; j < w; j++ {
			var si = inv.At(0, 0)*float64(i) + inv.At(0, 1)*float64(j) + inv.At(0, 2)
			var sj = inv.At(1, 0)*float64(i) + inv.At(1, 1)*float64(j) + inv.At(1, 2)
			var ii = clampInt(int(math.Round(si)), 0, h-1)
			var jj = clampInt(int(math.Round(sj)), 0, w-1)
			for k := 0; k < c; k++ {
				out.Set(x.At(ii, jj, k), i, j, k)
			}
		}
	}
	return out
}

// channelShift adds an independent uniform intensity shift per channel,
// clipping to the value range of the whole image.
func channelShift(x tensor.Tensor, intensity float64, rnd *rand.Rand) tensor.Tensor {
	var minV, maxV = x.Data[0], x.Data[0]
	for _, v := range x.Data {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	var c = x.Channels()
	var shifts = make([]float32, c)
	for k := range shifts {
		shifts[k] = float32(uniform(rnd, -intensity, intensity))
	}
	for i := range x.Data {
		var v = x.Data[i] + shifts[i%c]
		if v < minV {
			v = minV
		}
		if v > maxV {
			v = maxV
		}
		x.Data[i] = v
	}
	return x
}

func flipCols(x tensor.Tensor) tensor.Tensor {
	var h, w, c = x.Shape[0], x.Shape[1], x.Shape[2]
	for i := 0; i < h; i++ {
		for j := 0; j < w/2; j++ {
			for k := 0; k < c; k++ {
				a, b := x.At(i, j, k), x.At(i, w-1-j, k)
				x.Set(b, i, j, k)
				x.Set(a, i, w-1-j, k)
			}
		}
	}
	return x
}

func flipRows(x tensor.Tensor) tensor.Tensor {
	var h, w, c = x.Shape[0], x.Shape[1], x.Shape[2]
	for i := 0; i < h/2; i++ {
		for j := 0; j < w; j++ {
			for k := 0; k < c; k++ {
				a, b := x.At(i, j, k), x.At(h-1-i, j, k)
				x.Set(b, i, j, k)
				x.Set(a, h-1-i, j, k)
			}
		}
	}
	return x
}

// addCorrelatedNoise injects per-channel gaussian noise. Correlation is
// approximated by generating the noise at a resolution reduced by
// corrcoef and resizing it back up with bilinear interpolation. This is a
// coarse approximation, not covariance-structured noise.
func addCorrelatedNoise(x tensor.Tensor, sigma, corrcoef float64, rnd *rand.Rand) {
	var h, w, c = x.Shape[0], x.Shape[1], x.Shape[2]
	var nh, nw = h, w
	if corrcoef > 1 {
		nh = clampInt(int(float64(h)/corrcoef), 1, h)
		nw = clampInt(int(float64(w)/corrcoef), 1, w)
	}
	for k := 0; k < c; k++ {
		var noise = make([]float64, nh*nw)
		for i := range noise {
			noise[i] = rnd.NormFloat64() * sigma
		}
		if nh != h || nw != w {
			noise = resizeBilinear(noise, nh, nw, h, w)
		}
		for i := 0; i < h; i++ {
			for j := 0; j < w; j++ {
				var off = (i*w+j)*c + k
				x.Data[off] += float32(noise[i*w+j])
			}
		}
	}
}

// dropout zeroes exactly int(rate*len) distinct entries.
func dropout(data []float32, rate float64, rnd *rand.Rand) {
	if rate <= 0 {
		return
	}
	var numVals = len(data)
	var numDrop = int(rate * float64(numVals))
	if numDrop <= 0 {
		return
	}
	if numDrop > numVals {
		numDrop = numVals
	}
	var perm = rnd.Perm(numVals)
	for _, i := range perm[:numDrop] {
		data[i] = 0
	}
}

func uniform(rnd *rand.Rand, lo, hi float64) float64 {
	return lo + rnd.Float64()*(hi-lo)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
