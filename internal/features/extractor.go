// Package features extracts CNN feature descriptors from image batches.
package features

import (
	"log"
	"time"

	"github.com/pkg/errors"

	"github.com/tensorml/TensorGen/internal/ml"
	"github.com/tensorml/TensorGen/pkg/tensor"
)

// IExtractor returns a feature descriptor per input image.
type IExtractor interface {
	Extract(images []tensor.Tensor) ([][]float64, error)
}

// CNNBatchExtractor runs a network loaded from disk over whole image
// batches. Open loads the weights; Close releases them.
type CNNBatchExtractor struct {
	networkPath string
	net         *ml.Network
}

func NewCNNBatchExtractor(networkPath string) *CNNBatchExtractor {
	return &CNNBatchExtractor{networkPath: networkPath}
}

func (e *CNNBatchExtractor) Open() error {
	net, err := ml.LoadNetwork(e.networkPath)
	if err != nil {
		return errors.Wrapf(err, "open extractor network %v", e.networkPath)
	}
	e.net = net
	return nil
}

func (e *CNNBatchExtractor) Close() {
	e.net = nil
}

func (e *CNNBatchExtractor) Extract(images []tensor.Tensor) ([][]float64, error) {
	if e.net == nil {
		return nil, errors.New("extractor is not open")
	}
	return forwardPass(e.net, images)
}

// ReusableCNNExtractor extracts features with a network owned by the
// caller, so one network can serve several consumers.
type ReusableCNNExtractor struct {
	Net *ml.Network
}

func (e *ReusableCNNExtractor) Extract(images []tensor.Tensor) ([][]float64, error) {
	return forwardPass(e.Net, images)
}

func forwardPass(net *ml.Network, images []tensor.Tensor) ([][]float64, error) {
	if len(images) == 0 {
		return nil, nil
	}
	var inputSize = int(net.Topology.Inputs)
	var start = time.Now()
	var result = make([][]float64, len(images))
	for j, im := range images {
		if im.Size() != inputSize {
			return nil, errors.Errorf("image %v has %v values, network wants %v", j, im.Size(), inputSize)
		}
		var input = make([]float64, inputSize)
		for i, v := range im.Data {
			input[i] = float64(v)
		}
		result[j] = net.Featurize(input)
	}
	log.Printf("featurization took %v per image", time.Since(start)/time.Duration(len(images)))
	return result, nil
}
