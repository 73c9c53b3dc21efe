package datagen

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Flow drives the iterator with a pool of workers and pumps maxBatches
// batches into the channel, then closes it. Batch numbers are claimed
// from a shared counter; each worker prepares its claimed batches
// independently, so batch order in the channel is not deterministic.
func (it *Iterator) Flow(ctx context.Context, workers, maxBatches int, batches chan<- *Batch) error {
	log.Println("flow started")
	defer log.Println("flow finished")

	if workers <= 0 {
		workers = 1
	}

	g, ctx := errgroup.WithContext(ctx)

	var counter int32 = -1
	var wg = &sync.WaitGroup{}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			for {
				var n = int(atomic.AddInt32(&counter, 1))
				if n >= maxBatches {
					return nil
				}
				b, err := it.Next()
				if err != nil {
					return err
				}
				select {
				case batches <- b:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		})
	}

	g.Go(func() error {
		wg.Wait()
		close(batches)
		return nil
	})

	return g.Wait()
}
