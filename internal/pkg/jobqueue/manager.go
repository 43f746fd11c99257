package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PropFox/internal/pkg/env"
)

// SweepLockPrefix guards the daily billing sweep across instances.
const SweepLockPrefix = "billing_sweep:"

// BillingSweepPayload is the payload of a billing_sweep job.
type BillingSweepPayload struct {
	Date string `json:"date"` // YYYY-MM-DD, UTC
}

// Manager manages the global job queue and background tasks
type Manager struct {
	queue         *Queue
	sweepHour     int
	sweepInterval time.Duration
	sweepTicker   *time.Ticker
	stopCh        chan struct{}
	wg            sync.WaitGroup
	mu            sync.Mutex
	running       bool

	sweepMu   sync.Mutex
	lastSweep string
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		cfg := env.GetConfig()
		globalManager = NewManager(NewQueue(cfg.QueueWorkers), cfg.SweepHour, cfg.SweepCheckInterval)
	})
	return globalManager
}

// NewManager wires a manager around an existing queue.
func NewManager(queue *Queue, sweepHour int, sweepInterval time.Duration) *Manager {
	if sweepInterval <= 0 {
		sweepInterval = 15 * time.Minute
	}
	if sweepHour < 0 || sweepHour > 23 {
		sweepHour = 0
	}
	return &Manager{
		queue:         queue,
		sweepHour:     sweepHour,
		sweepInterval: sweepInterval,
		stopCh:        make(chan struct{}),
	}
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	m.queue.Start()

	m.sweepTicker = time.NewTicker(m.sweepInterval)
	m.wg.Add(1)
	go m.sweepWorker(m.stopCh)

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")

	if m.sweepTicker != nil {
		m.sweepTicker.Stop()
	}

	close(m.stopCh)
	m.running = false

	m.wg.Wait()
	m.queue.Stop()

	log.Info("[JobQueue Manager] Stopped successfully")
}

// sweepWorker queues the billing sweep once per UTC calendar day
func (m *Manager) sweepWorker(stopCh chan struct{}) {
	defer m.wg.Done()
	log.Infof("[JobQueue Manager] Started billing sweep scheduler (hour: %02d UTC, check every %s)", m.sweepHour, m.sweepInterval)

	m.tickSweep()
	for {
		select {
		case <-stopCh:
			log.Info("[JobQueue Manager] Billing sweep scheduler stopping")
			return
		case <-m.sweepTicker.C:
			m.tickSweep()
		}
	}
}

func (m *Manager) tickSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := m.EnqueueDailySweep(ctx, time.Now()); err != nil {
		log.Errorf("[JobQueue Manager] Error queueing billing sweep: %v", err)
	}
}

// sweepDay returns the day to sweep at now, or false when it is too early or
// the day was already handled.
func sweepDay(now time.Time, hour int, last string) (string, bool) {
	now = now.UTC()
	if now.Hour() < hour {
		return "", false
	}
	day := now.Format(time.DateOnly)
	if day == last {
		return "", false
	}
	return day, true
}

// EnqueueDailySweep queues today's billing sweep if no instance did so yet.
// It reports whether this call enqueued the job.
func (m *Manager) EnqueueDailySweep(ctx context.Context, now time.Time) (bool, error) {
	m.sweepMu.Lock()
	defer m.sweepMu.Unlock()

	day, ok := sweepDay(now, m.sweepHour, m.lastSweep)
	if !ok {
		return false, nil
	}

	lockKey := SweepLockPrefix + day
	won, err := m.queue.client.SetNX(ctx, lockKey, time.Now().UTC().Format(time.RFC3339), 48*time.Hour).Result()
	if err != nil {
		return false, err
	}
	if !won {
		m.lastSweep = day
		return false, nil
	}

	payload, err := EncodePayload(BillingSweepPayload{Date: day})
	if err == nil {
		_, err = m.queue.EnqueueJob(ctx, JobTypeBillingSweep, payload)
	}
	if err != nil {
		_ = m.queue.client.Del(ctx, lockKey).Err()
		return false, err
	}

	m.lastSweep = day
	log.Infof("[JobQueue Manager] Queued billing sweep for %s", day)
	return true, nil
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
