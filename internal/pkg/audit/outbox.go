package audit

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PropFox/app/models"
	"github.com/ManuelReschke/PropFox/app/repository"
	"github.com/ManuelReschke/PropFox/internal/pkg/jobqueue"
)

// ReplayPayload carries history entries whose inline append failed.
type ReplayPayload struct {
	Entries []models.HistoryEntry `json:"entries"`
}

func (r *Recorder) enqueueReplay(entries []*models.HistoryEntry) {
	if r.queue == nil {
		log.Warnf("[Audit] No job queue configured, dropping %d history entries", len(entries))
		return
	}

	payload := ReplayPayload{Entries: make([]models.HistoryEntry, 0, len(entries))}
	for _, e := range entries {
		c := *e
		c.ID = 0
		payload.Entries = append(payload.Entries, c)
	}
	data, err := jobqueue.EncodePayload(payload)
	if err != nil {
		log.Errorf("[Audit] Failed to encode history replay: %v", err)
		return
	}

	// The request may already be cancelled; the outbox must not depend on it.
	ctx := context.Background()
	if _, err := r.queue.EnqueueJob(ctx, jobqueue.JobTypeHistoryReplay, data); err != nil {
		log.Errorf("[Audit] Failed to enqueue history replay, %d entries lost: %v", len(entries), err)
	}
}

// ReplayProcessor appends history entries parked by a failed inline write.
// Returning an error lets the queue retry the batch.
func ReplayProcessor(history repository.HistoryRepository) jobqueue.Processor {
	return func(ctx context.Context, job *jobqueue.Job) error {
		var payload ReplayPayload
		if err := jobqueue.DecodePayload(job.Payload, &payload); err != nil {
			return fmt.Errorf("invalid history replay payload: %w", err)
		}
		if len(payload.Entries) == 0 {
			return nil
		}

		entries := make([]*models.HistoryEntry, len(payload.Entries))
		for i := range payload.Entries {
			entries[i] = &payload.Entries[i]
		}
		if err := history.Append(ctx, entries...); err != nil {
			return fmt.Errorf("history replay failed: %w", err)
		}
		log.Infof("[Audit] Replayed %d history entries", len(entries))
		return nil
	}
}
