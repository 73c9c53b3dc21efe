package datagen

import (
	"context"
	"testing"

	"gotest.tools/assert"
)

func TestFlowDeliversAndCloses(t *testing.T) {
	var ds = writeIterDataset(t, 100, 10)
	var g = fittedGenerator(t, ds, Config{OutputHeight: 8, OutputWidth: 8})

	it, err := g.FlowFromDataset(ds, []string{"im", "pose"}, "label", IteratorOptions{BatchSize: 8, Shuffle: true, Seed: 1})
	assert.NilError(t, err)

	var batches = make(chan *Batch, 2)
	var flowErr = make(chan error, 1)
	go func() {
		flowErr <- it.Flow(context.Background(), 3, 5, batches)
	}()

	var count = 0
	for b := range batches {
		assert.Assert(t, b != nil)
		assert.Assert(t, b.Y.Shape[0] == 8)
		count++
	}
	assert.NilError(t, <-flowErr)
	assert.Assert(t, count == 5)
}

func TestFlowCancel(t *testing.T) {
	var ds = writeIterDataset(t, 100, 10)
	var g = fittedGenerator(t, ds, Config{OutputHeight: 8, OutputWidth: 8})

	it, err := g.FlowFromDataset(ds, []string{"im"}, "label", IteratorOptions{BatchSize: 8, Seed: 1})
	assert.NilError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// unbuffered channel with no consumer: workers must bail out on the
	// canceled context instead of blocking forever
	var batches = make(chan *Batch)
	err = it.Flow(ctx, 2, 100, batches)
	assert.Assert(t, err != nil)
}
