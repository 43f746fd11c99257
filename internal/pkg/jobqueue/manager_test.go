package jobqueue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PropFox/internal/pkg/env"
)

func TestGetManager(t *testing.T) {
	// Reset the singleton for testing
	globalManager = nil
	managerOnce = sync.Once{}

	// Test singleton behavior
	manager1 := GetManager()
	manager2 := GetManager()

	assert.NotNil(t, manager1)
	assert.Same(t, manager1, manager2, "GetManager should return the same instance")

	// Test initial state
	assert.NotNil(t, manager1.queue)
	assert.NotNil(t, manager1.stopCh)
	assert.False(t, manager1.running)
}

func TestManager_GetQueue(t *testing.T) {
	// Reset the singleton for testing
	globalManager = nil
	managerOnce = sync.Once{}

	manager := GetManager()
	queue := manager.GetQueue()

	assert.NotNil(t, queue)
	assert.Same(t, manager.queue, queue)
}

func TestManager_IsRunning(t *testing.T) {
	// Reset the singleton for testing
	globalManager = nil
	managerOnce = sync.Once{}

	manager := GetManager()

	// Initial state should be not running
	assert.False(t, manager.IsRunning())

	// Manually set running state to test the method
	manager.mu.Lock()
	manager.running = true
	manager.mu.Unlock()

	assert.True(t, manager.IsRunning())

	// Reset running state
	manager.mu.Lock()
	manager.running = false
	manager.mu.Unlock()

	assert.False(t, manager.IsRunning())
}

func TestManager_StopWithoutStart(t *testing.T) {
	// Reset the singleton for testing
	globalManager = nil
	managerOnce = sync.Once{}

	manager := GetManager()

	// Stop without starting should be safe
	assert.False(t, manager.IsRunning())
	manager.Stop()
	assert.False(t, manager.IsRunning())
}

func TestNewManagerStructure(t *testing.T) {
	// Reset the singleton for testing
	globalManager = nil
	managerOnce = sync.Once{}

	manager := GetManager()

	// Verify internal structure
	assert.NotNil(t, manager.queue)
	assert.NotNil(t, manager.stopCh)
	assert.False(t, manager.running)

	// Verify queue has the configured number of workers
	expectedWorkers := env.GetConfig().QueueWorkers
	if expectedWorkers <= 0 {
		expectedWorkers = 3
	}
	assert.Equal(t, expectedWorkers, manager.queue.workers)
}

func TestManagerSingletonReset(t *testing.T) {
	// Get first instance
	globalManager = nil
	managerOnce = sync.Once{}
	manager1 := GetManager()

	// Reset and get second instance
	globalManager = nil
	managerOnce = sync.Once{}
	manager2 := GetManager()

	// They should be different instances (because we reset the singleton)
	assert.NotSame(t, manager1, manager2)
}

func TestSweepDay(t *testing.T) {
	tests := []struct {
		name    string
		now     time.Time
		hour    int
		last    string
		wantDay string
		wantOK  bool
	}{
		{"before sweep hour", time.Date(2025, 1, 1, 1, 59, 0, 0, time.UTC), 2, "", "", false},
		{"at sweep hour", time.Date(2025, 1, 1, 2, 0, 0, 0, time.UTC), 2, "", "2025-01-01", true},
		{"already swept today", time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC), 2, "2025-01-01", "", false},
		{"next day", time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC), 2, "2025-01-01", "2025-01-02", true},
		{"converted to UTC", time.Date(2025, 1, 2, 1, 0, 0, 0, time.FixedZone("CET", 3600)), 0, "", "2025-01-02", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			day, ok := sweepDay(tt.now, tt.hour, tt.last)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantDay, day)
		})
	}
}

func TestNewManagerClampsSettings(t *testing.T) {
	m := NewManager(NewQueueWithClient(nil, 1), 30, 0)
	assert.Equal(t, 0, m.sweepHour)
	assert.Equal(t, 15*time.Minute, m.sweepInterval)
}

func TestEnqueueDailySweepOncePerDay(t *testing.T) {
	client := newIsolatedRedisClient(t, isolatedJobQueueTestRedisDB)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC)

	first := NewManager(NewQueueWithClient(client, 1), 2, time.Minute)
	second := NewManager(NewQueueWithClient(client, 1), 2, time.Minute)

	queued, err := first.EnqueueDailySweep(ctx, now)
	require.NoError(t, err)
	assert.True(t, queued)

	// another instance sees the lock
	queued, err = second.EnqueueDailySweep(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, queued)

	depth, err := first.GetQueue().Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth.Pending)

	id, err := client.LIndex(ctx, JobQueueKey, 0).Result()
	require.NoError(t, err)
	job, err := first.GetQueue().GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, JobTypeBillingSweep, job.Type)

	var payload BillingSweepPayload
	require.NoError(t, DecodePayload(job.Payload, &payload))
	assert.Equal(t, "2025-03-01", payload.Date)
}
