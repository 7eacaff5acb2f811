package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/catalystneuro/constantinople-lab-to-nwb/internal/observability"
)

// ConvertBatch converts sessions in parallel, bounded by the configured
// concurrency. One bad session never stops the batch: its failure is
// logged and counted, and the remaining sessions proceed. Cancelling the
// context stops new sessions from starting.
func (c *Converter) ConvertBatch(ctx context.Context, inputs []SessionInputs) observability.Summary {
	sem := semaphore.NewWeighted(int64(c.cfg.Batch.Concurrency))
	var wg sync.WaitGroup

	for _, in := range inputs {
		if err := sem.Acquire(ctx, 1); err != nil {
			c.log.Warn().Err(err).Msg("batch cancelled, not starting remaining sessions")
			break
		}
		wg.Add(1)
		go func(in SessionInputs) {
			defer wg.Done()
			defer sem.Release(1)
			if _, err := c.Convert(ctx, in); err != nil {
				c.log.Error().
					Err(err).
					Str("behavior_path", in.BehaviorPath).
					Msg("session conversion failed")
			}
		}(in)
	}
	wg.Wait()

	summary := c.stats.Snapshot()
	c.log.Info().
		Int64("converted", summary.Converted).
		Int64("skipped", summary.Skipped).
		Int64("failed", summary.Failed).
		Dur("elapsed", summary.Elapsed).
		Msg("batch complete")
	return summary
}
