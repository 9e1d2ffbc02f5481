package routingpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolDrainsQueue(t *testing.T) {
	jobs := make(chan int, 100)
	for i := 1; i <= 100; i++ {
		jobs <- i
	}
	close(jobs)

	var sum int64
	p := NewSimpleRoutingPool(context.Background(), 4, func(ctx context.Context) error {
		for j := range jobs {
			atomic.AddInt64(&sum, int64(j))
		}
		return nil
	})
	require.NoError(t, p.Start())
	require.NoError(t, p.Stop())
	assert.EqualValues(t, 5050, sum)
}

func TestPoolCollectsWorkerErrors(t *testing.T) {
	errBoom := errors.New("boom")
	var n int32
	p := NewSimpleRoutingPool(context.Background(), 3, func(ctx context.Context) error {
		if atomic.AddInt32(&n, 1) == 2 {
			return errBoom
		}
		return nil
	})
	require.NoError(t, p.Start())
	assert.ErrorIs(t, p.Stop(), errBoom)
}

func TestPoolRejectsZeroSize(t *testing.T) {
	p := NewSimpleRoutingPool(context.Background(), 0, func(ctx context.Context) error { return nil })
	assert.Error(t, p.Start())
}
