package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PropFox/internal/pkg/billing"
	"github.com/ManuelReschke/PropFox/internal/pkg/jobqueue"
)

type memoryDayLock struct {
	held       map[string]bool
	acquireErr error
	released   []string
}

func newMemoryDayLock() *memoryDayLock {
	return &memoryDayLock{held: make(map[string]bool)}
}

func (l *memoryDayLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if l.acquireErr != nil {
		return false, l.acquireErr
	}
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *memoryDayLock) Release(ctx context.Context, key string) error {
	delete(l.held, key)
	l.released = append(l.released, key)
	return nil
}

func TestSweepDay(t *testing.T) {
	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	key := jobqueue.SweepLockPrefix + "2025-03-01"
	ctx := context.Background()

	results := func(res ...billing.SweepResult) (sweepFunc, *int) {
		calls := 0
		return func(ctx context.Context, d time.Time) (billing.SweepResult, error) {
			r := res[calls]
			calls++
			return r, nil
		}, &calls
	}

	t.Run("success keeps the day locked", func(t *testing.T) {
		lock := newMemoryDayLock()
		sweep, calls := results(billing.SweepResult{Due: 2, Generated: 2})
		var out bytes.Buffer

		require.NoError(t, sweepDay(ctx, &out, lock, day, false, sweep))
		assert.Contains(t, out.String(), "due=2 generated=2")

		out.Reset()
		require.NoError(t, sweepDay(ctx, &out, lock, day, false, sweep))
		assert.Contains(t, out.String(), "already ran")
		assert.Equal(t, 1, *calls)
		assert.Empty(t, lock.released)
	})

	t.Run("failed contracts release the day for a retry", func(t *testing.T) {
		lock := newMemoryDayLock()
		sweep, calls := results(
			billing.SweepResult{Due: 3, Generated: 2, Failed: 1},
			billing.SweepResult{Due: 3, Generated: 1, Existing: 2},
		)
		var out bytes.Buffer

		err := sweepDay(ctx, &out, lock, day, false, sweep)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "1 contracts failed")
		assert.Equal(t, []string{key}, lock.released)

		out.Reset()
		require.NoError(t, sweepDay(ctx, &out, lock, day, false, sweep))
		assert.Contains(t, out.String(), "generated=1 existing=2")
		assert.Equal(t, 2, *calls)
	})

	t.Run("sweep error releases the day", func(t *testing.T) {
		lock := newMemoryDayLock()
		boom := errors.New("database gone")
		err := sweepDay(ctx, &bytes.Buffer{}, lock, day, false, func(ctx context.Context, d time.Time) (billing.SweepResult, error) {
			return billing.SweepResult{}, boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Len(t, lock.released, 1)
	})

	t.Run("force and lock outages run without touching the lock", func(t *testing.T) {
		lock := newMemoryDayLock()
		lock.held[key] = true
		sweep, calls := results(billing.SweepResult{Failed: 1}, billing.SweepResult{Failed: 1})

		assert.Error(t, sweepDay(ctx, &bytes.Buffer{}, lock, day, true, sweep))
		lock.acquireErr = errors.New("redis down")
		assert.Error(t, sweepDay(ctx, &bytes.Buffer{}, lock, day, false, sweep))

		assert.Equal(t, 2, *calls)
		assert.Empty(t, lock.released)
		assert.True(t, lock.held[key])
	})
}
