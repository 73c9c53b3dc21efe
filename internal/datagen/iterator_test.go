package datagen

import (
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
	"gotest.tools/assert"

	"github.com/tensorml/TensorGen/pkg/tensor"
)

// writeIterDataset builds a dataset where pose[0] carries the global
// datapoint index, so tests can tell which datapoints a batch drew from.
func writeIterDataset(t *testing.T, numDatapoints, perFile int) *tensor.Dataset {
	t.Helper()
	var dir = t.TempDir()
	var fields = []tensor.FieldSchema{
		{Name: "im", Shape: []int{4, 4, 1}},
		{Name: "pose", Shape: []int{3}},
		{Name: "label", Shape: []int{1}},
	}
	w, err := tensor.NewWriter(dir, fields, perFile)
	assert.NilError(t, err)
	for i := 0; i < numDatapoints; i++ {
		var im = make([]float32, 16)
		for j := range im {
			im[j] = float32(i)
		}
		err = w.Add(map[string][]float32{
			"im":    im,
			"pose":  {float32(i), 0, 0},
			"label": {float32(i % 3)},
		})
		assert.NilError(t, err)
	}
	assert.NilError(t, w.Close())

	ds, err := tensor.Open(dir)
	assert.NilError(t, err)
	return ds
}

func fittedGenerator(t *testing.T, ds *tensor.Dataset, config Config) *Generator {
	t.Helper()
	g, err := NewGenerator(config)
	assert.NilError(t, err)
	_, err = g.Fit(ds, []string{"im", "pose"}, "label", FitOptions{Seed: 1})
	assert.NilError(t, err)
	return g
}

func TestFlowFromDatasetValidation(t *testing.T) {
	var ds = writeIterDataset(t, 25, 10)

	g, err := NewGenerator(Config{})
	assert.NilError(t, err)
	_, err = g.FlowFromDataset(ds, []string{"im"}, "label", IteratorOptions{})
	if err == nil {
		t.Error("expected error for unfitted generator")
	}

	g = fittedGenerator(t, ds, Config{})
	_, err = g.FlowFromDataset(ds, []string{"im", "depth"}, "label", IteratorOptions{})
	if err == nil {
		t.Error("expected error for unknown input field")
	}
	_, err = g.FlowFromDataset(ds, []string{"im"}, "grade", IteratorOptions{})
	if err == nil {
		t.Error("expected error for unknown target field")
	}

	it, err := g.FlowFromDataset(ds, []string{"im"}, "label", IteratorOptions{})
	assert.NilError(t, err)
	assert.Assert(t, it.BatchSize() == 32)
	assert.Assert(t, it.NumClasses() == 3)
}

func TestBatchShapes(t *testing.T) {
	var ds = writeIterDataset(t, 25, 10)
	var g = fittedGenerator(t, ds, Config{OutputHeight: 8, OutputWidth: 8})

	it, err := g.FlowFromDataset(ds, []string{"im", "pose"}, "label", IteratorOptions{BatchSize: 8, Seed: 1})
	assert.NilError(t, err)

	b, err := it.Next()
	assert.NilError(t, err)
	assert.DeepEqual(t, b.X["im"].Shape, []int{8, 8, 8, 3})
	assert.DeepEqual(t, b.X["pose"].Shape, []int{8, 3})
	assert.DeepEqual(t, b.Y.Shape, []int{8, 3})
}

// Every one-hot row must be written, even when the claimed chunks include
// the short tail chunk or the batch spans an epoch boundary.
func TestBatchAlwaysFull(t *testing.T) {
	var ds = writeIterDataset(t, 25, 10)
	var g = fittedGenerator(t, ds, Config{OutputHeight: 8, OutputWidth: 8})

	// 32 per batch over 3 chunks of 10 forces a wrap into the next epoch
	it, err := g.FlowFromDataset(ds, []string{"im", "pose"}, "label", IteratorOptions{BatchSize: 32, Shuffle: true, Seed: 1})
	assert.NilError(t, err)

	for round := 0; round < 5; round++ {
		b, err := it.Next()
		assert.NilError(t, err)
		for i := 0; i < 32; i++ {
			var row = b.Y.Datapoint(i)
			var sum float32
			for _, v := range row.Data {
				sum += v
			}
			if sum != 1 {
				t.Fatalf("round %v: label row %v = %v, want one-hot", round, i, row.Data)
			}
		}
	}
}

// Within one epoch, consecutive batches claim disjoint chunk ranges, so
// the datapoints they draw from never overlap.
func TestBatchesDisjointWithinEpoch(t *testing.T) {
	var ds = writeIterDataset(t, 100, 10)
	var g = fittedGenerator(t, ds, Config{OutputHeight: 8, OutputWidth: 8})

	it, err := g.FlowFromDataset(ds, []string{"pose"}, "label", IteratorOptions{BatchSize: 32, Seed: 1})
	assert.NilError(t, err)

	var seen = make(map[int]int)
	for round := 0; round < 2; round++ {
		b, err := it.Next()
		assert.NilError(t, err)
		for i := 0; i < 32; i++ {
			var index = int(b.X["pose"].Datapoint(i).Data[0])
			if prev, ok := seen[index]; ok && prev != round {
				t.Fatalf("datapoint %v drawn by batches %v and %v", index, prev, round)
			}
			seen[index] = round

			// pose[0] is the datapoint index, so the label is implied
			var wantLabel = index % 3
			if b.Y.Datapoint(i).Data[wantLabel] != 1 {
				t.Fatalf("datapoint %v has label row %v, want class %v", index, b.Y.Datapoint(i).Data, wantLabel)
			}
		}
	}
}

// An unseeded iterator must draw a clock seed for the epoch shuffle too,
// so two unseeded iterators do not walk the same chunk permutation.
func TestUnseededShuffleVaries(t *testing.T) {
	var ds = writeIterDataset(t, 100, 10)
	var g = fittedGenerator(t, ds, Config{OutputHeight: 8, OutputWidth: 8})

	it1, err := g.FlowFromDataset(ds, []string{"pose"}, "label", IteratorOptions{BatchSize: 8, Shuffle: true})
	assert.NilError(t, err)
	time.Sleep(time.Millisecond)
	it2, err := g.FlowFromDataset(ds, []string{"pose"}, "label", IteratorOptions{BatchSize: 8, Shuffle: true})
	assert.NilError(t, err)

	assert.Assert(t, it1.opts.Seed != 0)
	assert.Assert(t, it2.opts.Seed != 0)
	assert.Assert(t, it1.opts.Seed != it2.opts.Seed)

	it1.newEpochLocked()
	it2.newEpochLocked()
	var same = true
	for i := range it1.perm {
		if it1.perm[i] != it2.perm[i] {
			same = false
			break
		}
	}
	if same {
		t.Errorf("two unseeded iterators shuffled the identical permutation %v", it1.perm)
	}
}

// Two consumers pulling batches at the same time within one epoch must
// not receive overlapping datapoints.
func TestConcurrentConsumersDisjoint(t *testing.T) {
	var ds = writeIterDataset(t, 100, 10)
	var g = fittedGenerator(t, ds, Config{OutputHeight: 8, OutputWidth: 8})

	it, err := g.FlowFromDataset(ds, []string{"pose"}, "label", IteratorOptions{BatchSize: 32, Shuffle: true, Seed: 1})
	assert.NilError(t, err)

	// two batches of 4 chunks each fit inside the 10-chunk epoch
	var sets [2]map[int]bool
	var group errgroup.Group
	for w := 0; w < 2; w++ {
		var w = w
		group.Go(func() error {
			b, err := it.Next()
			if err != nil {
				return err
			}
			var set = make(map[int]bool)
			for i := 0; i < 32; i++ {
				set[int(b.X["pose"].Datapoint(i).Data[0])] = true
			}
			sets[w] = set
			return nil
		})
	}
	assert.NilError(t, group.Wait())

	for index := range sets[0] {
		if sets[1][index] {
			t.Fatalf("datapoint %v drawn by both consumers", index)
		}
	}
}

func TestFlowFromDatasetEmpty(t *testing.T) {
	var ds = writeIterDataset(t, 25, 10)
	var g = fittedGenerator(t, ds, Config{})

	var empty = writeIterDataset(t, 0, 10)
	_, err := g.FlowFromDataset(empty, []string{"im"}, "label", IteratorOptions{BatchSize: 8, Seed: 1})
	if err == nil {
		t.Error("expected error for dataset without datapoints")
	}
}

// Labels stay paired with their datapoints even when the live chunk set
// is far larger than the dataset's chunk cache.
func TestLabelsAcrossManyChunks(t *testing.T) {
	var ds = writeIterDataset(t, 200, 5)
	var g = fittedGenerator(t, ds, Config{OutputHeight: 8, OutputWidth: 8})

	it, err := g.FlowFromDataset(ds, []string{"pose"}, "label", IteratorOptions{BatchSize: 32, Shuffle: true, Seed: 1})
	assert.NilError(t, err)

	for round := 0; round < 4; round++ {
		b, err := it.Next()
		assert.NilError(t, err)
		for i := 0; i < 32; i++ {
			var index = int(b.X["pose"].Datapoint(i).Data[0])
			if b.Y.Datapoint(i).Data[index%3] != 1 {
				t.Fatalf("datapoint %v has label row %v, want class %v", index, b.Y.Datapoint(i).Data, index%3)
			}
		}
	}
}

func TestSaveBatchImages(t *testing.T) {
	var ds = writeIterDataset(t, 25, 10)
	var g = fittedGenerator(t, ds, Config{OutputHeight: 8, OutputWidth: 8})

	var dir = t.TempDir()
	it, err := g.FlowFromDataset(ds, []string{"im"}, "label", IteratorOptions{
		BatchSize:  4,
		Seed:       1,
		SaveToDir:  dir,
		SavePrefix: "aug",
	})
	assert.NilError(t, err)
	_, err = it.Next()
	assert.NilError(t, err)

	files, err := filepath.Glob(filepath.Join(dir, "aug_*.png"))
	assert.NilError(t, err)
	assert.Assert(t, len(files) == 4)
}
