package datagen

import (
	"log"
	"math"

	"github.com/tensorml/TensorGen/pkg/tensor"
)

const stdEpsilon = 1e-7

// Standardize applies the normalization configuration to a single
// multi-field sample, in place. Samplewise normalization acts across the
// channel axis of image-like fields and across the whole vector of flat
// fields. Featurewise normalization needs fitted statistics; if the
// generator was never fit the field is reported and left as is.
func (g *Generator) Standardize(sample map[string]tensor.Tensor) map[string]tensor.Tensor {
	var c = &g.config
	for name, x := range sample {
		if c.PreprocessingFunc != nil {
			x = c.PreprocessingFunc(x)
		}
		if c.Rescale != 0 {
			for i := range x.Data {
				x.Data[i] *= float32(c.Rescale)
			}
		}
		if c.SamplewiseCenter {
			samplewiseCenter(x)
		}
		if c.SamplewiseStdNormalization {
			samplewiseStdNormalize(x)
		}
		if c.FeaturewiseCenter {
			if g.stats != nil && g.stats.Mean[name] != nil {
				var mean = g.stats.Mean[name]
				var dim = len(mean)
				for i := range x.Data {
					x.Data[i] -= float32(mean[i%dim])
				}
			} else {
				log.Printf("featurewise_center requested for field %v, but no statistics were fit; call Fit first", name)
			}
		}
		if c.FeaturewiseStdNormalization {
			if g.stats != nil && g.stats.Std[name] != nil {
				var std = g.stats.Std[name]
				var dim = len(std)
				for i := range x.Data {
					x.Data[i] /= float32(std[i%dim] + stdEpsilon)
				}
			} else {
				log.Printf("featurewise_std_normalization requested for field %v, but no statistics were fit; call Fit first", name)
			}
		}
		sample[name] = x
	}
	return sample
}

func samplewiseCenter(x tensor.Tensor) {
	if x.IsImage() {
		var c = x.Channels()
		for p := 0; p < len(x.Data); p += c {
			var mean float32
			for k := 0; k < c; k++ {
				mean += x.Data[p+k]
			}
			mean /= float32(c)
			for k := 0; k < c; k++ {
				x.Data[p+k] -= mean
			}
		}
		return
	}
	var mean float64
	for _, v := range x.Data {
		mean += float64(v)
	}
	mean /= float64(len(x.Data))
	for i := range x.Data {
		x.Data[i] -= float32(mean)
	}
}

func samplewiseStdNormalize(x tensor.Tensor) {
	if x.IsImage() {
		var c = x.Channels()
		for p := 0; p < len(x.Data); p += c {
			var mean, ssq float64
			for k := 0; k < c; k++ {
				mean += float64(x.Data[p+k])
			}
			mean /= float64(c)
			for k := 0; k < c; k++ {
				var d = float64(x.Data[p+k]) - mean
				ssq += d * d
			}
			var std = math.Sqrt(ssq / float64(c))
			for k := 0; k < c; k++ {
				x.Data[p+k] /= float32(std + stdEpsilon)
			}
		}
		return
	}
	var mean, ssq float64
	for _, v := range x.Data {
		mean += float64(v)
	}
	mean /= float64(len(x.Data))
	for _, v := range x.Data {
		var d = float64(v) - mean
		ssq += d * d
	}
	var std = math.Sqrt(ssq / float64(len(x.Data)))
	for i := range x.Data {
		x.Data[i] /= float32(std + stdEpsilon)
	}
}
