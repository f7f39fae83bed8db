package strapi_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockOperation records bulk operation calls.
type MockOperation struct {
	mock.Mock
}

func (m *MockOperation) Run(ctx context.Context, index int) (*strapi.NormalizedEntity, error) {
	args := m.Called(index)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*strapi.NormalizedEntity), args.Error(1)
}

func TestBulkExecutor_CollectsSuccessesAndFailures(t *testing.T) {
	t.Parallel()

	operation := &MockOperation{}
	operation.On("Run", 0).Return(&strapi.NormalizedEntity{ID: 10}, nil)
	operation.On("Run", 1).Return(nil, fmt.Errorf("create failed: %w", strapi.ErrValidation))
	operation.On("Run", 2).Return(&strapi.NormalizedEntity{ID: 12}, nil)
	operation.On("Run", 3).Return(nil, nil)

	items := []string{"a", "b", "c", "d"}

	var progressCalls []int

	var progressMutex sync.Mutex

	executor := strapi.NewBulkExecutor(2, 2)
	result := executor.Execute(context.Background(), len(items),
		func(i int) interface{} { return items[i] },
		operation.Run,
		func(completed, total int) {
			progressMutex.Lock()
			defer progressMutex.Unlock()

			assert.Equal(t, 4, total)

			progressCalls = append(progressCalls, completed)
		})

	operation.AssertExpectations(t)

	assert.Equal(t, 4, result.Total)
	assert.Equal(t, 3, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assert.False(t, result.IsComplete())

	require.Len(t, result.Successes, 2)
	assert.Equal(t, 10, result.Successes[0].ID)
	assert.Equal(t, 12, result.Successes[1].ID)

	require.Len(t, result.Failures, 1)
	assert.Equal(t, 1, result.Failures[0].Index)
	assert.Equal(t, "b", result.Failures[0].Item)
	require.ErrorIs(t, result.Failures[0].Err, strapi.ErrValidation)

	assert.ElementsMatch(t, []int{1, 2, 3, 4}, progressCalls)
}

func TestBulkExecutor_ProgressIsOrdered(t *testing.T) {
	t.Parallel()

	const total = 64

	var calls []int

	executor := strapi.NewBulkExecutor(total, 8)
	result := executor.Execute(context.Background(), total,
		func(i int) interface{} { return i },
		func(ctx context.Context, index int) (*strapi.NormalizedEntity, error) {
			return &strapi.NormalizedEntity{ID: index}, nil
		},
		func(completed, _ int) {
			// No locking here: the executor serializes calls.
			calls = append(calls, completed)
		})

	assert.Equal(t, total, result.Succeeded)
	require.Len(t, calls, total)

	for i, completed := range calls {
		assert.Equal(t, i+1, completed)
	}
}

func TestBulkExecutor_BoundsConcurrency(t *testing.T) {
	t.Parallel()

	var (
		inFlight    int32
		maxInFlight int32
	)

	executor := strapi.NewBulkExecutor(20, 3)
	result := executor.Execute(context.Background(), 20,
		func(i int) interface{} { return i },
		func(ctx context.Context, index int) (*strapi.NormalizedEntity, error) {
			current := atomic.AddInt32(&inFlight, 1)
			defer atomic.AddInt32(&inFlight, -1)

			for {
				seen := atomic.LoadInt32(&maxInFlight)
				if current <= seen || atomic.CompareAndSwapInt32(&maxInFlight, seen, current) {
					break
				}
			}

			time.Sleep(5 * time.Millisecond)

			return &strapi.NormalizedEntity{ID: index}, nil
		}, nil)

	assert.True(t, result.IsComplete())
	assert.Equal(t, 20, result.Succeeded)
	assert.LessOrEqual(t, atomic.LoadInt32(&maxInFlight), int32(3))
}

func TestBulkExecutor_Empty(t *testing.T) {
	t.Parallel()

	result := strapi.NewBulkExecutor(0, 0).Execute(context.Background(), 0, nil, nil, nil)

	assert.Equal(t, 0, result.Total)
	assert.Empty(t, result.Successes)
	assert.Empty(t, result.Failures)
	assert.True(t, result.IsComplete())
}
