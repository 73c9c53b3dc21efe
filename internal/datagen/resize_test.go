package datagen

import (
	"math"
	"testing"

	"github.com/tensorml/TensorGen/pkg/tensor"
)

// Upsampling a 2x2 ramp with half-pixel centers interpolates the interior
// and clamps the border.
func TestResizeBilinearGolden(t *testing.T) {
	var src = []float64{
		0, 1,
		2, 3,
	}
	var got = resizeBilinear(src, 2, 2, 4, 4)
	var want = []float64{
		0, 0.25, 0.75, 1,
		0.5, 0.75, 1.25, 1.5,
		1.5, 1.75, 2.25, 2.5,
		2, 2.25, 2.75, 3,
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Fatalf("resized[%v] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestResizeBilinearIdentity(t *testing.T) {
	var src = []float64{1, 2, 3, 4, 5, 6}
	var got = resizeBilinear(src, 2, 3, 2, 3)
	for i := range src {
		if math.Abs(got[i]-src[i]) > 1e-12 {
			t.Fatalf("identity resize changed value %v: %v != %v", i, got[i], src[i])
		}
	}
}

func TestResizeImageChannelReplication(t *testing.T) {
	var x = tensor.New(2, 2, 1)
	copy(x.Data, []float32{10, 20, 30, 40})
	var out = ResizeImage(x, 2, 2, 3)
	if out.Height() != 2 || out.Width() != 2 || out.Channels() != 3 {
		t.Fatalf("resized shape = %v", out.Shape)
	}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			var v = out.At(i, j, 0)
			if out.At(i, j, 1) != v || out.At(i, j, 2) != v {
				t.Errorf("channels at (%v,%v) differ: %v %v %v", i, j, v, out.At(i, j, 1), out.At(i, j, 2))
			}
			if v != x.At(i, j, 0) {
				t.Errorf("value at (%v,%v) = %v, want %v", i, j, v, x.At(i, j, 0))
			}
		}
	}
}
