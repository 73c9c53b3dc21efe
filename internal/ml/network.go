package ml

import (
	"encoding/binary"
	"io"
	"math"
	"math/rand"
	"os"

	"github.com/pkg/errors"
)

type Topology struct {
	Inputs        uint32
	Outputs       uint32
	HiddenNeurons []uint32
}

func (t *Topology) LayerSize() int {
	return len(t.HiddenNeurons) + 1
}

func (t *Topology) Sizes() []int {
	var sizes = make([]int, 0, len(t.HiddenNeurons)+2)
	sizes = append(sizes, int(t.Inputs))
	for _, h := range t.HiddenNeurons {
		sizes = append(sizes, int(h))
	}
	return append(sizes, int(t.Outputs))
}

// Network is a dense feed-forward network with ReLU hidden layers. The
// output layer is linear; classification heads apply Softmax on top.
type Network struct {
	Id       uint32
	Topology Topology
	Weights  []Matrix
	Biases   []Matrix
}

func NewNetwork(topology []int, seed int64) *Network {
	var hidden = make([]uint32, len(topology)-2)
	for i := range hidden {
		hidden[i] = uint32(topology[i+1])
	}
	var n = &Network{
		Id: 1,
		Topology: Topology{
			Inputs:        uint32(topology[0]),
			Outputs:       uint32(topology[len(topology)-1]),
			HiddenNeurons: hidden,
		},
	}
	var rnd = rand.New(rand.NewSource(seed))
	var layerSize = n.Topology.LayerSize()
	n.Weights = make([]Matrix, layerSize)
	n.Biases = make([]Matrix, layerSize)
	for layer := 0; layer < layerSize; layer++ {
		var inputSize = topology[layer]
		var outputSize = topology[layer+1]
		n.Weights[layer] = NewMatrix(outputSize, inputSize)
		n.Biases[layer] = NewMatrix(outputSize, 1)
		InitUniform(rnd, n.Weights[layer].Data, 2/float64(inputSize))
	}
	return n
}

// Forward runs the full network and returns the output activations.
func (n *Network) Forward(input []float64) []float64 {
	var a = input
	var layerSize = n.Topology.LayerSize()
	for layer := 0; layer < layerSize; layer++ {
		a = n.forwardLayer(a, layer, layer < layerSize-1)
	}
	return a
}

// Featurize runs the network up to the last hidden layer and returns its
// activations, the feature descriptor of the input.
func (n *Network) Featurize(input []float64) []float64 {
	var a = input
	var layerSize = n.Topology.LayerSize()
	for layer := 0; layer < layerSize-1; layer++ {
		a = n.forwardLayer(a, layer, true)
	}
	return a
}

// FeatureSize is the length of Featurize results.
func (n *Network) FeatureSize() int {
	if len(n.Topology.HiddenNeurons) == 0 {
		return int(n.Topology.Inputs)
	}
	return int(n.Topology.HiddenNeurons[len(n.Topology.HiddenNeurons)-1])
}

func (n *Network) forwardLayer(input []float64, layer int, relu bool) []float64 {
	var weights = &n.Weights[layer]
	var biases = &n.Biases[layer]
	var out = make([]float64, weights.Rows)
	for o := range out {
		var x = biases.Data[o]
		for i, v := range input {
			x += v * weights.Get(o, i)
		}
		if relu && x < 0 {
			x = 0
		}
		out[o] = x
	}
	return out
}

// Binary specification for the network file:
// - All the data is stored in little-endian layout
// - All the matrices are written in column-major
// - The magic number/version consists of 4 bytes:
//   - 84 (which is the ASCII code for T), uint8
//   - 78 (which is the ASCII code for N), uint8
//   - 1 The major part of the current version number, uint8
//   - 0 The minor part of the current version number, uint8
//
// - 4 bytes (uint32) to denote the network ID
// - 4 bytes (uint32) to denote input size
// - 4 bytes (uint32) to denote output size
// - 4 bytes (uint32) for the number of hidden layers
// - 4 bytes (uint32) for the size of each hidden layer
// - All weights for a layer, followed by all the biases of the same layer,
//   as float32 values

var networkMagic = [4]byte{84, 78, 1, 0}

func (n *Network) Save(file string) error {
	f, err := os.Create(file)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err = f.Write(networkMagic[:]); err != nil {
		return err
	}

	var header = make([]uint32, 0, 4+len(n.Topology.HiddenNeurons))
	header = append(header, n.Id, n.Topology.Inputs, n.Topology.Outputs,
		uint32(len(n.Topology.HiddenNeurons)))
	header = append(header, n.Topology.HiddenNeurons...)
	if err = binary.Write(f, binary.LittleEndian, header); err != nil {
		return err
	}

	var layerSize = n.Topology.LayerSize()
	for layer := 0; layer < layerSize; layer++ {
		if err = writeSlice(f, n.Weights[layer].Data); err != nil {
			return err
		}
		if err = writeSlice(f, n.Biases[layer].Data); err != nil {
			return err
		}
	}
	return nil
}

func LoadNetwork(file string) (*Network, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var magic [4]byte
	if _, err = io.ReadFull(f, magic[:]); err != nil {
		return nil, err
	}
	if magic != networkMagic {
		return nil, errors.Errorf("bad network magic in %v", file)
	}

	var header [4]uint32
	if err = binary.Read(f, binary.LittleEndian, header[:]); err != nil {
		return nil, err
	}
	var n = &Network{
		Id: header[0],
		Topology: Topology{
			Inputs:        header[1],
			Outputs:       header[2],
			HiddenNeurons: make([]uint32, header[3]),
		},
	}
	if err = binary.Read(f, binary.LittleEndian, n.Topology.HiddenNeurons); err != nil {
		return nil, err
	}

	var sizes = n.Topology.Sizes()
	var layerSize = n.Topology.LayerSize()
	n.Weights = make([]Matrix, layerSize)
	n.Biases = make([]Matrix, layerSize)
	for layer := 0; layer < layerSize; layer++ {
		n.Weights[layer] = NewMatrix(sizes[layer+1], sizes[layer])
		n.Biases[layer] = NewMatrix(sizes[layer+1], 1)
		if err = readSlice(f, n.Weights[layer].Data); err != nil {
			return nil, err
		}
		if err = readSlice(f, n.Biases[layer].Data); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func writeSlice(f io.Writer, data []float64) error {
	var buf = make([]byte, 4)
	for j := range data {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(data[j])))
		if _, err := f.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

func readSlice(f io.Reader, data []float64) error {
	var buf = make([]byte, 4)
	for j := range data {
		if _, err := io.ReadFull(f, buf); err != nil {
			return err
		}
		data[j] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf)))
	}
	return nil
}
