package datagen

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/tensorml/TensorGen/pkg/tensor"
)

// saveBatchImages dumps every image-like sample of a batch as a png file,
// clamping values to [0,255].
func saveBatchImages(batchX map[string]tensor.Tensor, dir, prefix string, rnd *rand.Rand) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "create save dir")
	}
	for _, x := range batchX {
		if !x.Datapoint(0).IsImage() {
			continue
		}
		for i := 0; i < x.NumDatapoints(); i++ {
			var name = fmt.Sprintf("%s_%d_%04d.png", prefix, i, rnd.Intn(10000))
			if err := savePNG(filepath.Join(dir, name), x.Datapoint(i)); err != nil {
				return err
			}
		}
	}
	return nil
}

func savePNG(path string, im tensor.Tensor) error {
	var h, w, c = im.Shape[0], im.Shape[1], im.Shape[2]
	var out = image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < h; i++ {
		for j := 0; j < w; j++ {
			var px [3]uint8
			for k := range px {
				var sc = k
				if sc >= c {
					sc = c - 1
				}
				var v = im.At(i, j, sc)
				if v < 0 {
					v = 0
				}
				if v > 255 {
					v = 255
				}
				px[k] = uint8(v)
			}
			out.SetRGBA(j, i, color.RGBA{R: px[0], G: px[1], B: px[2], A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "save batch image")
	}
	defer f.Close()
	return png.Encode(f, out)
}
