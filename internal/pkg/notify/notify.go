// Package notify hands customer notifications to the job queue. Delivery is
// somebody else's concern; the notifications table is the hand-off point.
package notify

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PropFox/app/models"
	"github.com/ManuelReschke/PropFox/app/repository"
	"github.com/ManuelReschke/PropFox/internal/pkg/jobqueue"
)

// Message is a notification for one customer.
type Message struct {
	CustomerID  uint   `json:"customer_id" validate:"required"`
	Type        string `json:"type" validate:"oneof=job_scheduled job_completed quote_sent invoice"`
	Title       string `json:"title" validate:"required,max=200"`
	Content     string `json:"content"`
	ReferenceID uint   `json:"reference_id"`
}

// Notifier is fire-and-forget: callers never see delivery failures.
type Notifier interface {
	NotifyCustomer(ctx context.Context, m Message)
}

var validate = validator.New()

// QueueNotifier enqueues notifications and falls back to a direct insert when
// the queue is unavailable.
type QueueNotifier struct {
	queue jobqueue.Enqueuer
	store repository.NotificationRepository
}

func NewQueueNotifier(queue jobqueue.Enqueuer, store repository.NotificationRepository) *QueueNotifier {
	return &QueueNotifier{queue: queue, store: store}
}

func (n *QueueNotifier) NotifyCustomer(ctx context.Context, m Message) {
	if err := validate.Struct(m); err != nil {
		log.Errorf("[Notify] Dropping invalid notification for customer %d: %v", m.CustomerID, err)
		return
	}

	if n.queue != nil {
		payload, err := jobqueue.EncodePayload(m)
		if err == nil {
			if _, err = n.queue.EnqueueJob(context.Background(), jobqueue.JobTypeCustomerNotification, payload); err == nil {
				return
			}
		}
		log.Warnf("[Notify] Queue unavailable, writing notification directly: %v", err)
	}

	if err := n.store.Create(ctx, toModel(m)); err != nil {
		log.Errorf("[Notify] Failed to store notification for customer %d: %v", m.CustomerID, err)
	}
}

// Processor stores queued notifications.
func Processor(store repository.NotificationRepository) jobqueue.Processor {
	return func(ctx context.Context, job *jobqueue.Job) error {
		var m Message
		if err := jobqueue.DecodePayload(job.Payload, &m); err != nil {
			return fmt.Errorf("invalid notification payload: %w", err)
		}
		if err := validate.Struct(m); err != nil {
			return fmt.Errorf("invalid notification: %w", err)
		}
		return store.Create(ctx, toModel(m))
	}
}

func toModel(m Message) *models.Notification {
	return &models.Notification{
		CustomerID:  m.CustomerID,
		Type:        m.Type,
		Title:       m.Title,
		Content:     m.Content,
		ReferenceID: m.ReferenceID,
	}
}
