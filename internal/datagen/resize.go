package datagen

import (
	"math"

	"github.com/tensorml/TensorGen/pkg/tensor"
)

// resizeBilinear resizes a single plane with bilinear interpolation and
// half-pixel centers.
func resizeBilinear(src []float64, srcH, srcW, dstH, dstW int) []float64 {
	var dst = make([]float64, dstH*dstW)
	var scaleH = float64(srcH) / float64(dstH)
	var scaleW = float64(srcW) / float64(dstW)
	for i := 0; i < dstH; i++ {
		var sy = (float64(i)+0.5)*scaleH - 0.5
		var y0 = int(math.Floor(sy))
		var fy = sy - float64(y0)
		var y1 = clampInt(y0+1, 0, srcH-1)
		y0 = clampInt(y0, 0, srcH-1)
		for j := 0; j < dstW; j++ {
			var sx = (float64(j)+0.5)*scaleW - 0.5
			var x0 = int(math.Floor(sx))
			var fx = sx - float64(x0)
			var x1 = clampInt(x0+1, 0, srcW-1)
			x0 = clampInt(x0, 0, srcW-1)

			var top = src[y0*srcW+x0]*(1-fx) + src[y0*srcW+x1]*fx
			var bottom = src[y1*srcW+x0]*(1-fx) + src[y1*srcW+x1]*fx
			dst[i*dstW+j] = top*(1-fy) + bottom*fy
		}
	}
	return dst
}

// ResizeImage forces an image-like tensor to a fixed spatial resolution
// and channel count with bilinear interpolation. Missing channels are
// filled by replicating the last source channel.
func ResizeImage(x tensor.Tensor, dstH, dstW, dstC int) tensor.Tensor {
	var h, w, c = x.Shape[0], x.Shape[1], x.Shape[2]
	var out = tensor.New(dstH, dstW, dstC)
	for k := 0; k < dstC; k++ {
		var srcC = k
		if srcC >= c {
			srcC = c - 1
		}
		var plane = make([]float64, h*w)
		for i := 0; i < h; i++ {
			for j := 0; j < w; j++ {
				plane[i*w+j] = float64(x.At(i, j, srcC))
			}
		}
		var resized = resizeBilinear(plane, h, w, dstH, dstW)
		for i := 0; i < dstH; i++ {
			for j := 0; j < dstW; j++ {
				out.Set(float32(resized[i*dstW+j]), i, j, k)
			}
		}
	}
	return out
}
