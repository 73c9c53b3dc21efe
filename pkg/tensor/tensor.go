package tensor

// Tensor is a dense float32 array with a row-major layout.
// The first dimension of a chunk tensor indexes datapoints.
type Tensor struct {
	Shape []int
	Data  []float32
}

func New(shape ...int) Tensor {
	return Tensor{
		Shape: shape,
		Data:  make([]float32, Volume(shape)),
	}
}

func Volume(shape []int) int {
	var n = 1
	for _, d := range shape {
		n *= d
	}
	return n
}

func (t Tensor) Rank() int {
	return len(t.Shape)
}

func (t Tensor) Size() int {
	return len(t.Data)
}

// IsImage reports whether the tensor holds a single image-like datapoint:
// rank 3 with a trailing channel dimension of 1..4 (channels-last).
func (t Tensor) IsImage() bool {
	return len(t.Shape) == 3 && t.Shape[2] >= 1 && t.Shape[2] <= 4
}

// IsImageChunk reports whether the tensor is a chunk of image-like datapoints.
func (t Tensor) IsImageChunk() bool {
	return len(t.Shape) == 4 && t.Shape[3] >= 1 && t.Shape[3] <= 4
}

func (t Tensor) Height() int {
	return t.Shape[0]
}

func (t Tensor) Width() int {
	return t.Shape[1]
}

func (t Tensor) Channels() int {
	return t.Shape[len(t.Shape)-1]
}

// NumDatapoints returns the datapoint count of a chunk tensor.
func (t Tensor) NumDatapoints() int {
	if len(t.Shape) == 0 {
		return 0
	}
	return t.Shape[0]
}

// DatapointShape returns the per-datapoint shape of a chunk tensor.
func (t Tensor) DatapointShape() []int {
	return t.Shape[1:]
}

// Datapoint returns datapoint i of a chunk tensor.
// The returned tensor shares the chunk's backing array.
func (t Tensor) Datapoint(i int) Tensor {
	var stride = Volume(t.Shape[1:])
	return Tensor{
		Shape: t.Shape[1:],
		Data:  t.Data[i*stride : (i+1)*stride],
	}
}

func (t Tensor) Clone() Tensor {
	var data = make([]float32, len(t.Data))
	copy(data, t.Data)
	var shape = make([]int, len(t.Shape))
	copy(shape, t.Shape)
	return Tensor{Shape: shape, Data: data}
}

func (t Tensor) At(indices ...int) float32 {
	return t.Data[t.offset(indices)]
}

func (t Tensor) Set(v float32, indices ...int) {
	t.Data[t.offset(indices)] = v
}

func (t Tensor) offset(indices []int) int {
	var offset = 0
	for i, ix := range indices {
		offset = offset*t.Shape[i] + ix
	}
	return offset
}
