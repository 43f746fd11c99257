package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PropFox/app/models"
	"github.com/ManuelReschke/PropFox/app/repository"
	"github.com/ManuelReschke/PropFox/internal/pkg/database/dbtest"
	"github.com/ManuelReschke/PropFox/internal/pkg/jobqueue"
)

type fakeQueue struct {
	jobs []*jobqueue.Job
	err  error
}

func (q *fakeQueue) EnqueueJob(ctx context.Context, jobType jobqueue.JobType, payload map[string]interface{}) (*jobqueue.Job, error) {
	if q.err != nil {
		return nil, q.err
	}
	job := &jobqueue.Job{ID: "n-1", Type: jobType, Payload: payload}
	q.jobs = append(q.jobs, job)
	return job, nil
}

func scheduled(customerID uint) Message {
	return Message{
		CustomerID:  customerID,
		Type:        models.NotificationJobScheduled,
		Title:       "Job scheduled",
		Content:     "Fix sink on 2025-02-03 09:00-11:00",
		ReferenceID: 12,
	}
}

func TestQueueNotifierEnqueuesAndProcessorStores(t *testing.T) {
	db := dbtest.Open(t)
	store := repository.NewNotificationRepository(db)
	queue := &fakeQueue{}
	n := NewQueueNotifier(queue, store)
	ctx := context.Background()

	n.NotifyCustomer(ctx, scheduled(3))
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, jobqueue.JobTypeCustomerNotification, queue.jobs[0].Type)

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	assert.Zero(t, count, "nothing is written until the job runs")

	require.NoError(t, Processor(store)(ctx, queue.jobs[0]))
	list, err := store.ListForCustomer(ctx, 3, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Job scheduled", list[0].Title)
	assert.Equal(t, uint(12), list[0].ReferenceID)
	assert.False(t, list[0].IsRead)
}

func TestQueueNotifierFallsBackToDirectWrite(t *testing.T) {
	db := dbtest.Open(t)
	store := repository.NewNotificationRepository(db)
	n := NewQueueNotifier(&fakeQueue{err: errors.New("redis down")}, store)

	n.NotifyCustomer(context.Background(), scheduled(4))

	list, err := store.ListForCustomer(context.Background(), 4, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestQueueNotifierDropsInvalidMessage(t *testing.T) {
	db := dbtest.Open(t)
	queue := &fakeQueue{}
	n := NewQueueNotifier(queue, repository.NewNotificationRepository(db))

	n.NotifyCustomer(context.Background(), Message{CustomerID: 1, Type: "sms", Title: "x"})
	assert.Empty(t, queue.jobs)
}

func TestProcessorRejectsInvalidPayload(t *testing.T) {
	db := dbtest.Open(t)
	p := Processor(repository.NewNotificationRepository(db))

	err := p(context.Background(), &jobqueue.Job{Payload: map[string]interface{}{"customer_id": "x"}})
	assert.Error(t, err)

	err = p(context.Background(), &jobqueue.Job{Payload: map[string]interface{}{"customer_id": 1, "type": "invoice"}})
	assert.Error(t, err)
}
