package ml

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"path/filepath"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/tensorml/TensorGen/internal/datagen"
	"github.com/tensorml/TensorGen/pkg/tensor"
)

// IFeatureExtractor turns a batch of images into per-sample feature
// descriptors.
type IFeatureExtractor interface {
	Extract(images []tensor.Tensor) ([][]float64, error)
}

type ThreadData struct {
	wGradients Matrix
	bGradients Matrix
	cost       float64
}

// Trainer finetunes a softmax classification head on top of a frozen
// feature extractor, fed by batches from a tensor data generator.
// Samples of a batch are claimed by worker threads from a shared cursor;
// gradients accumulate in per-thread scratch and are merged under no lock
// after all workers join.
type Trainer struct {
	extractor   IFeatureExtractor
	xName       string
	featureSize int
	numClasses  int
	threads     int
	head        Matrix
	bias        Matrix
	wGradients  Gradients
	bGradients  Gradients
	threadData  []ThreadData
}

func NewTrainer(extractor IFeatureExtractor, xName string, featureSize, numClasses, threads int, seed int64) *Trainer {
	var t = &Trainer{
		extractor:   extractor,
		xName:       xName,
		featureSize: featureSize,
		numClasses:  numClasses,
		threads:     threads,
		head:        NewMatrix(numClasses, featureSize),
		bias:        NewMatrix(numClasses, 1),
		wGradients:  NewGradients(numClasses, featureSize),
		bGradients:  NewGradients(numClasses, 1),
	}
	var rnd = rand.New(rand.NewSource(seed))
	InitUniform(rnd, t.head.Data, 1/float64(featureSize))
	t.threadData = make([]ThreadData, threads)
	for i := range t.threadData {
		t.threadData[i] = ThreadData{
			wGradients: NewMatrix(numClasses, featureSize),
			bGradients: NewMatrix(numClasses, 1),
		}
	}
	return t
}

// Train runs epochs over training batches and keeps the head with the
// best validation cost.
func (t *Trainer) Train(
	ctx context.Context,
	training *datagen.Iterator,
	validation *datagen.Iterator,
	epochs int,
	stepsPerEpoch int,
	validationSteps int,
	netFolderPath string,
) error {
	log.Println("train started")
	defer log.Println("train finished")

	var bestValidationCost float64
	var bestEpoch int

	for epoch := 1; epoch <= epochs; epoch++ {
		trainCost, err := t.runEpoch(ctx, training, stepsPerEpoch, true)
		if err != nil {
			return err
		}
		log.Printf("finished epoch %v train cost: %f", epoch, trainCost)

		validationCost, err := t.runEpoch(ctx, validation, validationSteps, false)
		if err != nil {
			return err
		}
		log.Printf("current validation cost is: %f", validationCost)

		if bestEpoch == 0 || validationCost < bestValidationCost {
			bestEpoch = epoch
			bestValidationCost = validationCost
			if netFolderPath != "" {
				if err = t.saveNetwork(netFolderPath, epoch, validationCost); err != nil {
					return err
				}
			}
		} else {
			log.Printf("best validation cost: %f best epoch: %v", bestValidationCost, bestEpoch)
		}
	}
	return nil
}

// runEpoch consumes steps batches from the iterator through a worker
// pool. With learn set, every batch updates the head.
func (t *Trainer) runEpoch(ctx context.Context, it *datagen.Iterator, steps int, learn bool) (float64, error) {
	var batches = make(chan *datagen.Batch, t.threads)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return it.Flow(ctx, t.threads, steps, batches)
	})

	var totalCost float64
	var numSamples int
	g.Go(func() error {
		for batch := range batches {
			cost, n, err := t.processBatch(batch, learn)
			if err != nil {
				return err
			}
			totalCost += cost
			numSamples += n
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return 0, err
	}
	if numSamples == 0 {
		return 0, nil
	}
	return totalCost / float64(numSamples), nil
}

func (t *Trainer) processBatch(batch *datagen.Batch, learn bool) (float64, int, error) {
	var x = batch.X[t.xName]
	var numSamples = x.NumDatapoints()
	var images = make([]tensor.Tensor, numSamples)
	for i := range images {
		images[i] = x.Datapoint(i)
	}
	features, err := t.extractor.Extract(images)
	if err != nil {
		return 0, 0, err
	}

	var index int32 = -1
	var wg = &sync.WaitGroup{}
	for i := range t.threadData {
		wg.Add(1)
		go func(td *ThreadData) {
			defer wg.Done()
			td.cost = 0
			if learn {
				td.wGradients.Reset()
				td.bGradients.Reset()
			}
			for {
				var i = int(atomic.AddInt32(&index, 1))
				if i >= numSamples {
					break
				}
				td.cost += t.trainSample(td, features[i], batch.Y.Datapoint(i).Data, learn)
			}
		}(&t.threadData[i])
	}
	wg.Wait()

	var cost float64
	for i := range t.threadData {
		cost += t.threadData[i].cost
	}
	if learn {
		t.applyGradients()
	}
	return cost, numSamples, nil
}

func (t *Trainer) trainSample(td *ThreadData, features []float64, target []float32, learn bool) float64 {
	var probs = make([]float64, t.numClasses)
	for o := range probs {
		var z = t.bias.Data[o]
		for i, f := range features {
			z += f * t.head.Get(o, i)
		}
		probs[o] = z
	}
	Softmax(probs)
	var cost = CrossEntropy(probs, target)
	if learn {
		for o := range probs {
			// softmax + cross-entropy gradient
			var delta = probs[o] - float64(target[o])
			td.bGradients.Data[o] += delta
			for i, f := range features {
				td.wGradients.Add(o, i, delta*f)
			}
		}
	}
	return cost
}

func (t *Trainer) applyGradients() {
	for i := range t.threadData {
		t.wGradients.AddMatrix(&t.threadData[i].wGradients)
		t.bGradients.AddMatrix(&t.threadData[i].bGradients)
	}
	t.wGradients.Apply(&t.head)
	t.bGradients.Apply(&t.bias)
}

// MakeNetwork packs the trained head into a single-layer network.
func (t *Trainer) MakeNetwork() *Network {
	return &Network{
		Id: 1,
		Topology: Topology{
			Inputs:  uint32(t.featureSize),
			Outputs: uint32(t.numClasses),
		},
		Weights: []Matrix{t.head},
		Biases:  []Matrix{t.bias},
	}
}

func (t *Trainer) saveNetwork(netFolderPath string, epoch int, validationCost float64) error {
	var valCostInt = int(100000 * validationCost)
	if math.IsInf(validationCost, 0) || math.IsNaN(validationCost) {
		valCostInt = -1
	}
	var file = filepath.Join(netFolderPath, fmt.Sprintf("head-%2d-%v.nn", epoch, valCostInt))
	if err := t.MakeNetwork().Save(file); err != nil {
		return err
	}
	log.Println("stored network", file)
	return nil
}
