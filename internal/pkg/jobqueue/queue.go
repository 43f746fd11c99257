package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/PropFox/internal/pkg/cache"
)

const (
	// Redis keys, namespaced so the queue can share a database with the cache
	JobKeyPrefix     = "propfox:job:"
	JobQueueKey      = "propfox:jobs:pending"
	JobProcessingKey = "propfox:jobs:processing"
	JobStatsKey      = "propfox:jobs:stats"

	DefaultMaxRetries = 3
	JobTTL            = 24 * time.Hour

	stuckAfter    = 10 * time.Minute
	stuckInterval = time.Minute
)

// Processor handles one job type. A returned error marks the job failed and
// schedules a retry while retries remain.
type Processor func(ctx context.Context, job *Job) error

// Enqueuer is the producer side of the queue.
type Enqueuer interface {
	EnqueueJob(ctx context.Context, jobType JobType, payload map[string]interface{}) (*Job, error)
}

// Depth is a point-in-time view of the queue for the health endpoint.
// Completed and Failed are totals since the stats key was created.
type Depth struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
}

// Queue is a Redis list backed job queue with a fixed number of workers.
type Queue struct {
	client     *redis.Client
	workers    int
	stopCh     chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
	retryDelay time.Duration

	procMu     sync.RWMutex
	processors map[JobType]Processor
}

// NewQueue creates a job queue on the shared Redis client
func NewQueue(workers int) *Queue {
	return NewQueueWithClient(cache.GetClient(), workers)
}

// NewQueueWithClient creates a job queue on an explicit Redis client
func NewQueueWithClient(client *redis.Client, workers int) *Queue {
	if workers <= 0 {
		workers = 3
	}
	return &Queue{
		client:     client,
		workers:    workers,
		stopCh:     make(chan struct{}),
		retryDelay: time.Minute,
		processors: make(map[JobType]Processor),
	}
}

// RegisterProcessor installs the handler for a job type, replacing any previous one.
func (q *Queue) RegisterProcessor(jobType JobType, p Processor) {
	q.procMu.Lock()
	defer q.procMu.Unlock()
	q.processors[jobType] = p
}

func (q *Queue) processor(jobType JobType) (Processor, bool) {
	q.procMu.RLock()
	defer q.procMu.RUnlock()
	p, ok := q.processors[jobType]
	return p, ok
}

// Start launches the workers and the stuck-job sweeper
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}
	q.running = true
	log.Infof("[JobQueue] Starting %d workers", q.workers)

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	q.wg.Add(1)
	go q.sweepStuck()
}

// Stop signals the workers and waits for the jobs in flight
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.running {
		return
	}
	log.Info("[JobQueue] Stopping workers...")
	close(q.stopCh)
	q.running = false
	q.wg.Wait()
	log.Info("[JobQueue] All workers stopped")
}

func (q *Queue) sweepStuck() {
	defer q.wg.Done()
	ticker := time.NewTicker(stuckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-q.stopCh:
			return
		case now := <-ticker.C:
			if n, err := q.recoverStuck(context.Background(), now, stuckAfter); err != nil {
				log.Errorf("[JobQueue] Stuck job sweep failed: %v", err)
			} else if n > 0 {
				log.Warnf("[JobQueue] Requeued %d stuck jobs", n)
			}
		}
	}
}

// recoverStuck moves jobs that have been processing for longer than maxAge
// back to the pending list. A worker that died mid-job leaves them there.
// Entries without job data, or no longer processing, are dropped.
func (q *Queue) recoverStuck(ctx context.Context, now time.Time, maxAge time.Duration) (int, error) {
	ids, err := q.client.LRange(ctx, JobProcessingKey, 0, -1).Result()
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, id := range ids {
		job, err := q.GetJob(ctx, id)
		if err != nil || job.Status != JobStatusProcessing {
			_ = q.client.LRem(ctx, JobProcessingKey, 1, id).Err()
			continue
		}

		started := job.UpdatedAt
		if job.ProcessedAt != nil {
			started = *job.ProcessedAt
		}
		if now.Sub(started) <= maxAge {
			continue
		}

		job.Status = JobStatusPending
		job.ErrorMsg = "recovered after " + now.Sub(started).Round(time.Second).String() + " in processing"
		job.UpdatedAt = now
		q.updateJob(ctx, job)

		pipe := q.client.TxPipeline()
		pipe.LRem(ctx, JobProcessingKey, 1, id)
		pipe.RPush(ctx, JobQueueKey, id)
		if _, err := pipe.Exec(ctx); err != nil {
			return recovered, err
		}
		recovered++
	}
	return recovered, nil
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()
	ctx := context.Background()

	for {
		select {
		case <-q.stopCh:
			return
		default:
		}

		job, err := q.dequeueJob(ctx)
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			log.Errorf("[JobQueue] Worker %d: dequeue failed: %v", id, err)
			time.Sleep(time.Second)
			continue
		}

		log.Infof("[JobQueue] Worker %d processing job %s (Type: %s)", id, job.ID, job.Type)
		q.processJob(ctx, job)
	}
}

// EnqueueJob stores the job and pushes it onto the pending list
func (q *Queue) EnqueueJob(ctx context.Context, jobType JobType, payload map[string]interface{}) (*Job, error) {
	now := time.Now()
	job := &Job{
		ID:         uuid.New().String(),
		Type:       jobType,
		Status:     JobStatusPending,
		Payload:    payload,
		CreatedAt:  now,
		UpdatedAt:  now,
		MaxRetries: DefaultMaxRetries,
	}

	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.Set(ctx, JobKeyPrefix+job.ID, data, JobTTL)
	pipe.LPush(ctx, JobQueueKey, job.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	log.Infof("[JobQueue] Enqueued job %s (Type: %s)", job.ID, job.Type)
	return job, nil
}

// dequeueJob blocks up to a second for the next job and moves it to the
// processing list in the same step
func (q *Queue) dequeueJob(ctx context.Context) (*Job, error) {
	id, err := q.client.BLMove(ctx, JobQueueKey, JobProcessingKey, "RIGHT", "LEFT", time.Second).Result()
	if err != nil {
		return nil, err
	}

	job, err := q.GetJob(ctx, id)
	if err != nil {
		q.removeFromProcessing(ctx, id)
		return nil, fmt.Errorf("load job %s: %w", id, err)
	}
	return job, nil
}

func (q *Queue) processJob(ctx context.Context, job *Job) {
	job.MarkAsProcessing()
	q.updateJob(ctx, job)

	var err error
	if p, ok := q.processor(job.Type); ok {
		err = runProcessor(ctx, p, job)
	} else {
		err = fmt.Errorf("unknown job type: %s", job.Type)
	}

	defer q.removeFromProcessing(ctx, job.ID)

	if err == nil {
		job.MarkAsCompleted()
		log.Infof("[JobQueue] Job %s completed", job.ID)
		q.countOutcome(ctx, JobStatusCompleted)
		if derr := q.client.Del(ctx, JobKeyPrefix+job.ID).Err(); derr != nil {
			log.Errorf("[JobQueue] Failed to delete completed job %s: %v", job.ID, derr)
		}
		return
	}

	job.MarkAsFailed(err.Error())
	if job.IsRetryable() {
		job.MarkAsRetrying()
		delay := q.retryDelay * time.Duration(job.RetryCount)
		log.Warnf("[JobQueue] Job %s failed (%v), retry %d/%d in %s", job.ID, err, job.RetryCount, job.MaxRetries, delay)
		q.updateJob(ctx, job)
		time.AfterFunc(delay, func() {
			if perr := q.client.LPush(context.Background(), JobQueueKey, job.ID).Err(); perr != nil {
				log.Errorf("[JobQueue] Failed to requeue job %s: %v", job.ID, perr)
			}
		})
		return
	}

	log.Errorf("[JobQueue] Job %s failed for good after %d retries: %v", job.ID, job.RetryCount, err)
	q.countOutcome(ctx, JobStatusFailed)
	q.updateJob(ctx, job)
}

// runProcessor converts a processor panic into a job failure so one bad
// payload cannot take a worker down.
func runProcessor(ctx context.Context, p Processor, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processor panic: %v", r)
		}
	}()
	return p(ctx, job)
}

func (q *Queue) updateJob(ctx context.Context, job *Job) {
	data, err := json.Marshal(job)
	if err != nil {
		log.Errorf("[JobQueue] Failed to marshal job %s: %v", job.ID, err)
		return
	}
	if err := q.client.Set(ctx, JobKeyPrefix+job.ID, data, JobTTL).Err(); err != nil {
		log.Errorf("[JobQueue] Failed to update job %s: %v", job.ID, err)
	}
}

func (q *Queue) removeFromProcessing(ctx context.Context, jobID string) {
	if err := q.client.LRem(ctx, JobProcessingKey, 1, jobID).Err(); err != nil {
		log.Errorf("[JobQueue] Failed to remove job %s from processing: %v", jobID, err)
	}
}

func (q *Queue) countOutcome(ctx context.Context, status JobStatus) {
	if err := q.client.HIncrBy(ctx, JobStatsKey, string(status), 1).Err(); err != nil {
		log.Errorf("[JobQueue] Failed to count %s job: %v", status, err)
	}
}

// GetJob loads a job by ID
func (q *Queue) GetJob(ctx context.Context, jobID string) (*Job, error) {
	data, err := q.client.Get(ctx, JobKeyPrefix+jobID).Result()
	if err != nil {
		return nil, err
	}
	var job Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

// Depth reads the list lengths and outcome counters in one round trip
func (q *Queue) Depth(ctx context.Context) (Depth, error) {
	pipe := q.client.Pipeline()
	pending := pipe.LLen(ctx, JobQueueKey)
	processing := pipe.LLen(ctx, JobProcessingKey)
	stats := pipe.HGetAll(ctx, JobStatsKey)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Depth{}, err
	}

	d := Depth{Pending: pending.Val(), Processing: processing.Val()}
	for status, raw := range stats.Val() {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		switch JobStatus(status) {
		case JobStatusCompleted:
			d.Completed = n
		case JobStatusFailed:
			d.Failed = n
		}
	}
	return d, nil
}
