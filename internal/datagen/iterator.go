package datagen

import (
	"math/rand"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/tensorml/TensorGen/pkg/tensor"
)

// IteratorOptions control batching over a tensor dataset.
type IteratorOptions struct {
	BatchSize int
	Shuffle   bool
	Seed      int64
	// SaveToDir dumps the augmented image fields of every batch as png
	// files, for visual debugging of the random transforms.
	SaveToDir  string
	SavePrefix string
}

// Batch is one training batch: per-field input arrays (first dimension is
// the sample index) plus a one-hot label array. A batch is owned
// exclusively by the consumer that received it.
type Batch struct {
	X map[string]tensor.Tensor
	Y tensor.Tensor
}

// Iterator assembles fixed-size training batches by sampling datapoints
// from dataset chunks, applying the augmentation pipeline and
// standardization, one-hot encoding labels, and forcing image-like fields
// to the generator's output resolution.
//
// Claiming which chunks belong to the next batch is serialized under a
// single lock; the heavy loading and transform work runs unlocked, so
// multiple consumers can overlap batch preparation.
type Iterator struct {
	ds         *tensor.Dataset
	gen        *Generator
	xNames     []string
	yName      string
	opts       IteratorOptions
	numClasses int
	// chunks consumed per batch, rounded up so a batch never starves
	tensorsPerBatch int

	mu     sync.Mutex
	perm   []int
	cursor int
	epoch  int
	rnd    *rand.Rand
}

// FlowFromDataset builds a batch iterator. Field names are validated
// eagerly; the generator must be fitted first so the one-hot width is
// known.
func (g *Generator) FlowFromDataset(ds *tensor.Dataset, xNames []string, yName string, opts IteratorOptions) (*Iterator, error) {
	for _, name := range xNames {
		if !ds.HasField(name) {
			return nil, errors.Errorf("input field name %v not in dataset", name)
		}
	}
	if !ds.HasField(yName) {
		return nil, errors.Errorf("target field name %v not in dataset", yName)
	}
	if g.stats == nil {
		return nil, errors.New("generator is not fitted, call Fit before FlowFromDataset")
	}
	if ds.NumDatapoints() == 0 {
		return nil, errors.New("dataset holds no datapoints")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}
	// the epoch shuffle reads the seed back from opts, so a clock seed
	// must be stored, not just drawn
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	return &Iterator{
		ds:              ds,
		gen:             g,
		xNames:          xNames,
		yName:           yName,
		opts:            opts,
		numClasses:      g.stats.NumClasses(),
		tensorsPerBatch: 1 + opts.BatchSize/ds.DatapointsPerFile(),
		rnd:             rand.New(rand.NewSource(opts.Seed)),
	}, nil
}

func (it *Iterator) NumClasses() int {
	return it.numClasses
}

func (it *Iterator) BatchSize() int {
	return it.opts.BatchSize
}

// Next claims the chunk set of the next batch under the lock, then
// assembles the batch without holding it.
func (it *Iterator) Next() (*Batch, error) {
	it.mu.Lock()
	var chunks = it.claimLocked()
	var batchSeed = it.rnd.Int63()
	it.mu.Unlock()
	return it.assemble(chunks, batchSeed)
}

// claimLocked advances the epoch cursor by tensorsPerBatch chunk indices,
// starting a freshly shuffled epoch whenever the current permutation runs
// out. The epoch shuffle seed advances with the epoch count.
func (it *Iterator) claimLocked() []int {
	var chunks = make([]int, 0, it.tensorsPerBatch)
	for len(chunks) < it.tensorsPerBatch {
		if it.cursor >= len(it.perm) {
			it.newEpochLocked()
		}
		var take = it.tensorsPerBatch - len(chunks)
		if rest := len(it.perm) - it.cursor; take > rest {
			take = rest
		}
		chunks = append(chunks, it.perm[it.cursor:it.cursor+take]...)
		it.cursor += take
	}
	return chunks
}

func (it *Iterator) newEpochLocked() {
	var n = it.ds.NumTensors()
	if it.perm == nil {
		it.perm = make([]int, n)
	}
	for i := range it.perm {
		it.perm[i] = i
	}
	if it.opts.Shuffle {
		var rnd = rand.New(rand.NewSource(it.opts.Seed + int64(it.epoch)))
		rnd.Shuffle(n, func(i, j int) {
			it.perm[i], it.perm[j] = it.perm[j], it.perm[i]
		})
	}
	it.cursor = 0
	it.epoch++
}

func (it *Iterator) assemble(chunks []int, batchSeed int64) (*Batch, error) {
	var rnd = rand.New(rand.NewSource(batchSeed))
	var batchSize = it.opts.BatchSize

	var batchX = make(map[string]tensor.Tensor, len(it.xNames))
	for _, name := range it.xNames {
		shape, err := it.ds.DatapointShape(name)
		if err != nil {
			return nil, err
		}
		batchX[name] = tensor.New(append([]int{batchSize}, shape...)...)
	}
	var batchY = tensor.New(batchSize, it.numClasses)

	var numQueued = 0
	var claimed []int
	var labels = make(map[int]tensor.Tensor, len(chunks))
	for _, chunkIndex := range chunks {
		var numRemaining = batchSize - numQueued
		if numRemaining <= 0 {
			break
		}

		var datapointIndices = it.ds.DatapointIndicesForTensor(chunkIndex)
		if len(datapointIndices) == 0 {
			continue
		}
		claimed = append(claimed, datapointIndices...)

		// labels are loaded once per claimed chunk
		yTensor, err := it.ds.Tensor(it.yName, chunkIndex)
		if err != nil {
			return nil, errors.Wrapf(err, "load labels of chunk %v", chunkIndex)
		}
		labels[chunkIndex] = yTensor

		var numToSample = len(datapointIndices)
		if numToSample > numRemaining {
			numToSample = numRemaining
		}
		// sample within the chunk with replacement
		for i := 0; i < numToSample; i++ {
			var datapointIndex = datapointIndices[rnd.Intn(len(datapointIndices))]
			err = it.fillSlot(batchX, batchY, numQueued+i, datapointIndex, yTensor, rnd)
			if err != nil {
				return nil, err
			}
		}
		numQueued += numToSample
	}

	if len(claimed) == 0 {
		return nil, errors.New("claimed chunks hold no datapoints")
	}
	// a short tail chunk can leave the batch underfilled; top it up from
	// the claimed index set so consumers stay disjoint
	for numQueued < batchSize {
		var datapointIndex = claimed[rnd.Intn(len(claimed))]
		err := it.fillSlot(batchX, batchY, numQueued, datapointIndex,
			labels[datapointIndex/it.ds.DatapointsPerFile()], rnd)
		if err != nil {
			return nil, err
		}
		numQueued++
	}

	if it.opts.SaveToDir != "" {
		if err := saveBatchImages(batchX, it.opts.SaveToDir, it.opts.SavePrefix, rnd); err != nil {
			return nil, err
		}
	}

	// terminal resize to the fixed input contract of the downstream network
	var outH = it.gen.config.outputHeight()
	var outW = it.gen.config.outputWidth()
	for name, x := range batchX {
		if !x.Datapoint(0).IsImage() {
			continue
		}
		var resized = tensor.New(batchSize, outH, outW, DefaultOutputChannels)
		for i := 0; i < batchSize; i++ {
			var im = ResizeImage(x.Datapoint(i), outH, outW, DefaultOutputChannels)
			copy(resized.Datapoint(i).Data, im.Data)
		}
		batchX[name] = resized
	}

	return &Batch{X: batchX, Y: batchY}, nil
}

// fillSlot loads one datapoint, runs the augmentation pipeline and
// standardization, and writes input row and one-hot label into the batch
// buffers. yChunk is the already loaded label tensor of the datapoint's
// chunk.
func (it *Iterator) fillSlot(batchX map[string]tensor.Tensor, batchY tensor.Tensor, slot, datapointIndex int, yChunk tensor.Tensor, rnd *rand.Rand) error {
	x, err := it.ds.Datapoint(datapointIndex, it.xNames)
	if err != nil {
		return errors.Wrapf(err, "load datapoint %v", datapointIndex)
	}
	x = it.gen.Transform(x, rnd)
	x = it.gen.Standardize(x)
	for _, name := range it.xNames {
		copy(batchX[name].Datapoint(slot).Data, x[name].Data)
	}

	var firstIndex = (datapointIndex / it.ds.DatapointsPerFile()) * it.ds.DatapointsPerFile()
	var label = int(yChunk.Datapoint(datapointIndex - firstIndex).Data[0])
	row, err := OneHot(label, it.numClasses)
	if err != nil {
		return errors.Wrapf(err, "encode label of datapoint %v", datapointIndex)
	}
	copy(batchY.Datapoint(slot).Data, row)
	return nil
}
