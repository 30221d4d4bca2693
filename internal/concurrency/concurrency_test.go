package concurrency

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForEach_RunsAllItems(t *testing.T) {
	var count int64
	items := []int{1, 2, 3, 4, 5}
	err := ForEach(context.Background(), 2, items, func(ctx context.Context, i int) error {
		atomic.AddInt64(&count, 1)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)
}

func TestForEach_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	err := ForEach(context.Background(), 2, []int{1, 2, 3}, func(ctx context.Context, i int) error {
		if i == 2 {
			return boom
		}
		return nil
	})
	require.Error(t, err)
}

func TestForEachTolerant_CollectsAllErrors(t *testing.T) {
	boom := errors.New("boom")
	errs := ForEachTolerant(context.Background(), 2, []int{1, 2, 3, 4}, func(ctx context.Context, i int) error {
		if i%2 == 0 {
			return boom
		}
		return nil
	})
	assert.Len(t, errs, 2)
}

func TestForEachTolerant_NilOnSuccess(t *testing.T) {
	errs := ForEachTolerant(context.Background(), 2, []int{1, 2, 3}, func(ctx context.Context, i int) error {
		return nil
	})
	assert.Nil(t, errs)
}

func TestPipeline_ShortCircuitsOnError(t *testing.T) {
	boom := errors.New("boom")
	var ran []int
	err := Pipeline(context.Background(),
		func(ctx context.Context) error { ran = append(ran, 1); return nil },
		func(ctx context.Context) error { ran = append(ran, 2); return boom },
		func(ctx context.Context) error { ran = append(ran, 3); return nil },
	)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []int{1, 2}, ran)
}
