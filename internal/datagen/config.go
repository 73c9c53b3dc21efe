package datagen

import (
	"github.com/tensorml/TensorGen/pkg/tensor"
)

const (
	DefaultOutputHeight   = 224
	DefaultOutputWidth    = 224
	DefaultOutputChannels = 3
)

// Config is the recognized augmentation and normalization option surface.
// The zero value disables every transform.
type Config struct {
	// Geometric transforms, composed in this order.
	RotationRange    float64 // max abs rotation, degrees
	Rot180           bool    // 50% probability 180 degree rotation, ignored if RotationRange is set
	HeightShiftRange float64 // max abs vertical shift, fraction of height
	WidthShiftRange  float64 // max abs horizontal shift, fraction of width
	ShearRange       float64 // max abs shear, radians
	ZoomRange        [2]float64

	ChannelShiftRange float64
	HorizontalFlip    bool
	VerticalFlip      bool

	// Noise and dropout for image-like fields.
	ImageDropoutRate   float64
	ImageGaussianSigma float64
	// Noise correlation coefficient: noise is generated at a resolution
	// reduced by this factor and resized back up with bilinear
	// interpolation. Values <= 1 give uncorrelated per-pixel noise.
	ImageGaussianCorrcoef float64

	// Noise and dropout for flat fields.
	DataDropoutRate   float64
	DataGaussianSigma float64

	// Normalization.
	FeaturewiseCenter           bool
	FeaturewiseStdNormalization bool
	SamplewiseCenter            bool
	SamplewiseStdNormalization  bool
	Rescale                     float64
	ZCAWhitening                bool

	// Callbacks for fields the geometric pipeline cannot handle itself.
	PreprocessingFunc      func(tensor.Tensor) tensor.Tensor
	ImageTransformCallback func(tensor.Tensor) tensor.Tensor
	ImageHorizFlipCallback func(tensor.Tensor) tensor.Tensor
	ImageVertFlipCallback  func(tensor.Tensor) tensor.Tensor

	// Terminal batch resolution for image-like fields.
	OutputHeight int
	OutputWidth  int
}

func (c *Config) zoomRange() (lo, hi float64) {
	if c.ZoomRange[0] == 0 && c.ZoomRange[1] == 0 {
		return 1, 1
	}
	return c.ZoomRange[0], c.ZoomRange[1]
}

func (c *Config) outputHeight() int {
	if c.OutputHeight > 0 {
		return c.OutputHeight
	}
	return DefaultOutputHeight
}

func (c *Config) outputWidth() int {
	if c.OutputWidth > 0 {
		return c.OutputWidth
	}
	return DefaultOutputWidth
}
