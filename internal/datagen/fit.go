package datagen

import (
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/tensorml/TensorGen/pkg/tensor"
)

// FitOptions control the sampling of the fit pass.
type FitOptions struct {
	// Augment expands every sampled chunk with Rounds randomly
	// transformed copies before aggregating.
	Augment bool
	Rounds  int
	// MaxTensors caps the number of sampled chunks; zero means all.
	// When fewer than the dataset's chunk count, the subset is drawn
	// from a shuffled chunk order.
	MaxTensors int
	// Seed pins the chunk shuffle and the augmentation stream.
	// Zero seeds from the clock.
	Seed int64
}

// Fit estimates featurewise mean/std for every input field and the global
// label range, in a single pass per field over a sampled chunk subset.
//
// The mean is aggregated with the incremental update
// mean += chunkSum/nTotal - chunkN*meanOld/nTotal, and the sum of squared
// deviations with the asymmetric product (x-meanOld)*(x-meanNew). The
// asymmetry matches the two-pass Welford identity; replacing it with a
// single mean snapshot changes the result.
func (g *Generator) Fit(ds *tensor.Dataset, xNames []string, yName string, opts FitOptions) (*FieldStatistics, error) {
	log.Println("fit started")
	defer log.Println("fit finished")

	var seed = opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	var rnd = rand.New(rand.NewSource(seed))

	var rounds = opts.Rounds
	if rounds <= 0 {
		rounds = 1
	}

	var numTensors = ds.NumTensors()
	var maxTensors = opts.MaxTensors
	if maxTensors <= 0 || maxTensors > numTensors {
		maxTensors = numTensors
	}
	var tensorIndices = make([]int, numTensors)
	for i := range tensorIndices {
		tensorIndices[i] = i
	}
	if maxTensors < numTensors {
		rnd.Shuffle(numTensors, func(i, j int) {
			tensorIndices[i], tensorIndices[j] = tensorIndices[j], tensorIndices[i]
		})
	}
	tensorIndices = tensorIndices[:maxTensors]

	var stats = &FieldStatistics{
		N:    make(map[string]int),
		Mean: make(map[string][]float64),
		Std:  make(map[string][]float64),
	}

	for _, xName := range xNames {
		log.Printf("fitting field %v", xName)

		var n int
		var mean, ssq []float64

		for i, tensorIndex := range tensorIndices {
			log.Printf("loading tensor %v for field %v (%v of %v)", tensorIndex, xName, i+1, maxTensors)

			chunk, err := ds.Tensor(xName, tensorIndex)
			if err != nil {
				return nil, errors.Wrapf(err, "fit field %v", xName)
			}
			if opts.Augment {
				chunk = g.augmentChunk(chunk, xName, rounds, rnd)
			}

			if mean == nil {
				var dim = componentCount(chunk)
				mean = make([]float64, dim)
				ssq = make([]float64, dim)
			}
			var meanOld = append([]float64(nil), mean...)

			var chunkN = chunkWeight(chunk)
			n += chunkN
			var sums = componentSums(chunk)
			floats.Scale(1/float64(n), sums)
			for j := range mean {
				mean[j] += sums[j] - float64(chunkN)*meanOld[j]/float64(n)
			}

			accumulateSSQ(chunk, meanOld, mean, ssq)
		}

		if n <= 1 {
			return nil, &DegenerateInputError{Field: xName, N: n}
		}
		var std = make([]float64, len(ssq))
		for j := range std {
			std[j] = math.Sqrt(ssq[j] / float64(n-1))
		}
		stats.N[xName] = n
		stats.Mean[xName] = mean
		stats.Std[xName] = std
	}

	stats.MinOutput = math.Inf(1)
	stats.MaxOutput = math.Inf(-1)
	for i, tensorIndex := range tensorIndices {
		log.Printf("loading tensor %v for field %v (%v of %v)", tensorIndex, yName, i+1, maxTensors)

		chunk, err := ds.Tensor(yName, tensorIndex)
		if err != nil {
			return nil, errors.Wrapf(err, "fit field %v", yName)
		}
		for _, v := range chunk.Data {
			stats.MinOutput = math.Min(stats.MinOutput, float64(v))
			stats.MaxOutput = math.Max(stats.MaxOutput, float64(v))
		}
	}

	g.stats = stats
	return stats, nil
}

// augmentChunk expands a chunk with rounds randomly transformed copies of
// every datapoint.
func (g *Generator) augmentChunk(chunk tensor.Tensor, name string, rounds int, rnd *rand.Rand) tensor.Tensor {
	var numDatapoints = chunk.NumDatapoints()
	var shape = append([]int{rounds * numDatapoints}, chunk.DatapointShape()...)
	var out = tensor.New(shape...)
	for r := 0; r < rounds; r++ {
		for i := 0; i < numDatapoints; i++ {
			var sample = map[string]tensor.Tensor{name: chunk.Datapoint(i)}
			sample = g.Transform(sample, rnd)
			copy(out.Datapoint(r*numDatapoints+i).Data, sample[name].Data)
		}
	}
	return out
}

// componentCount is the statistics vector length of a chunk: one slot per
// channel for image chunks, one per datapoint component otherwise.
func componentCount(chunk tensor.Tensor) int {
	if chunk.IsImageChunk() {
		return chunk.Shape[3]
	}
	return tensor.Volume(chunk.DatapointShape())
}

// chunkWeight is the sample count a chunk contributes: datapoints times
// pixels for image chunks, datapoints otherwise.
func chunkWeight(chunk tensor.Tensor) int {
	if chunk.IsImageChunk() {
		return chunk.Shape[0] * chunk.Shape[1] * chunk.Shape[2]
	}
	return chunk.NumDatapoints()
}

func componentSums(chunk tensor.Tensor) []float64 {
	var dim = componentCount(chunk)
	var sums = make([]float64, dim)
	for i, v := range chunk.Data {
		sums[i%dim] += float64(v)
	}
	return sums
}

func accumulateSSQ(chunk tensor.Tensor, meanOld, meanNew, ssq []float64) {
	var dim = len(ssq)
	for i, v := range chunk.Data {
		var j = i % dim
		ssq[j] += (float64(v) - meanOld[j]) * (float64(v) - meanNew[j])
	}
}
