package strapi

import (
	"context"
	"sync"
	"time"
)

// BulkOperation performs the write for item index. A nil entity with a nil
// error counts as success (DELETE may answer 204).
type BulkOperation func(ctx context.Context, index int) (*NormalizedEntity, error)

// BulkExecutor runs bulk operations in waves of batchSize items with at most
// concurrency requests in flight per wave.
type BulkExecutor struct {
	batchSize   int
	concurrency int
	timeout     time.Duration
}

// NewBulkExecutor creates a new bulk executor.
func NewBulkExecutor(batchSize, concurrency int) *BulkExecutor {
	if batchSize <= 0 {
		batchSize = 10
	}

	if concurrency <= 0 {
		concurrency = 5
	}

	return &BulkExecutor{
		batchSize:   batchSize,
		concurrency: concurrency,
	}
}

// SetTimeout bounds each operation. Zero means no per-operation timeout.
func (b *BulkExecutor) SetTimeout(timeout time.Duration) {
	b.timeout = timeout
}

type bulkOutcome struct {
	entity *NormalizedEntity
	err    error
}

// Execute runs op for indexes [0, total). item returns the value recorded in a
// BulkFailure for a given index.
func (b *BulkExecutor) Execute(ctx context.Context, total int, item func(int) interface{}, op BulkOperation, progress ProgressFunc) *BulkResult {
	outcomes := make([]bulkOutcome, total)

	var (
		progressMutex sync.Mutex
		completed     int
	)

	for start := 0; start < total; start += b.batchSize {
		end := min(start+b.batchSize, total)

		var waitGroup sync.WaitGroup

		semaphore := make(chan struct{}, b.concurrency)

		for index := start; index < end; index++ {
			waitGroup.Add(1)

			go func(index int) {
				defer waitGroup.Done()

				// Acquire semaphore
				semaphore <- struct{}{}

				defer func() { <-semaphore }()

				opCtx := ctx

				if b.timeout > 0 {
					var cancel context.CancelFunc

					opCtx, cancel = context.WithTimeout(ctx, b.timeout)
					defer cancel()
				}

				entity, err := op(opCtx, index)
				outcomes[index] = bulkOutcome{entity: entity, err: err}

				progressMutex.Lock()
				defer progressMutex.Unlock()

				completed++

				if progress != nil {
					progress(completed, total)
				}
			}(index)
		}

		waitGroup.Wait()
	}

	result := &BulkResult{
		Successes: []NormalizedEntity{},
		Failures:  []BulkFailure{},
		Total:     total,
	}

	for index, outcome := range outcomes {
		if outcome.err != nil {
			result.Failures = append(result.Failures, BulkFailure{
				Index: index,
				Item:  item(index),
				Error: outcome.err.Error(),
				Err:   outcome.err,
			})

			continue
		}

		result.Succeeded++

		if outcome.entity != nil {
			result.Successes = append(result.Successes, *outcome.entity)
		}
	}

	result.Failed = len(result.Failures)

	return result
}
