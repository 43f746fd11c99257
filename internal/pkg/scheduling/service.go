// Package scheduling books workers and contractors onto jobs and drives the
// job status machine. Internal workers are checked for double-booking inside
// a transaction that holds the worker row lock.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PropFox/app/models"
	"github.com/ManuelReschke/PropFox/app/repository"
	"github.com/ManuelReschke/PropFox/internal/pkg/apperrors"
	"github.com/ManuelReschke/PropFox/internal/pkg/audit"
	"github.com/ManuelReschke/PropFox/internal/pkg/env"
	"github.com/ManuelReschke/PropFox/internal/pkg/jobqueue"
	"github.com/ManuelReschke/PropFox/internal/pkg/notify"
	"github.com/ManuelReschke/PropFox/internal/pkg/sequence"
	"github.com/ManuelReschke/PropFox/internal/pkg/usercontext"
)

// JobInvoicer issues the invoice of a completed maintenance job.
type JobInvoicer interface {
	GenerateJobInvoice(ctx context.Context, actor usercontext.Actor, jobID uint) (*models.Invoice, error)
}

// Service schedules jobs for one database.
type Service struct {
	repos    *repository.Repositories
	recorder *audit.Recorder
	notifier notify.Notifier
	invoicer JobInvoicer

	cleaningDuration time.Duration
	now              func() time.Time
	tracer           trace.Tracer
	validate         *validator.Validate
}

type Option func(*Service)

// WithInvoicer makes Complete issue maintenance invoices.
func WithInvoicer(i JobInvoicer) Option {
	return func(s *Service) { s.invoicer = i }
}

func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithCleaningDuration sets the slot length ScheduleCleaning proposes.
func WithCleaningDuration(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.cleaningDuration = d
		}
	}
}

func NewService(repos *repository.Repositories, recorder *audit.Recorder, opts ...Option) *Service {
	s := &Service{
		repos:            repos,
		recorder:         recorder,
		cleaningDuration: 3 * time.Hour,
		now:              time.Now,
		tracer:           otel.Tracer("github.com/ManuelReschke/PropFox/internal/pkg/scheduling"),
		validate:         validator.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewServiceFromDB wires a service from a GORM handle and the process config.
func NewServiceFromDB(db *gorm.DB, queue jobqueue.Enqueuer, invoicer JobInvoicer) *Service {
	repos := repository.NewRepositories(db)
	opts := []Option{
		WithNotifier(notify.NewQueueNotifier(queue, repos.Notification)),
		WithCleaningDuration(env.GetConfig().CleaningDuration),
	}
	if invoicer != nil {
		opts = append(opts, WithInvoicer(invoicer))
	}
	return NewService(repos, audit.NewRecorder(repos.History, queue), opts...)
}

// mutateJob loads the job in a transaction, applies fn and writes the result
// back with an optimistic version check. The job diff is recorded after the
// commit.
func (s *Service) mutateJob(ctx context.Context, actor usercontext.Actor, jobID uint, fn func(repos *repository.Repositories, job *models.Job) error) (*models.Job, error) {
	var before, after models.Job
	err := sequence.WithRetry(ctx, s.repos.DB(), sequence.DefaultAttempts, func(tx *gorm.DB) error {
		repos := repository.NewRepositories(tx)
		job, err := repos.Job.GetForProvider(ctx, jobID, actor.ProviderID)
		if err != nil {
			return apperrors.Lookup(err, "job", jobID)
		}
		before = job.Snapshot()

		if err := fn(repos, job); err != nil {
			return err
		}
		if err := repos.Job.UpdateVersioned(ctx, job, before.Version); err != nil {
			if errors.Is(err, repository.ErrStaleVersion) {
				return apperrors.Validation("job %d was changed by someone else, reload and retry", jobID)
			}
			return fmt.Errorf("update job %d: %w", jobID, err)
		}
		after = *job
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recorder.DiffJob(ctx, &before, &after, actor.ActorID())
	return &after, nil
}

func (s *Service) notify(ctx context.Context, job *models.Job, kind, title, content string) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyCustomer(ctx, notify.Message{
		CustomerID:  job.CustomerID,
		Type:        kind,
		Title:       title,
		Content:     content,
		ReferenceID: job.ID,
	})
}

func requireStatus(job *models.Job, allowed ...string) error {
	for _, st := range allowed {
		if job.Status == st {
			return nil
		}
	}
	return apperrors.Validation("job %d is %s, expected one of %v", job.ID, job.Status, allowed)
}

func logTransition(job *models.Job, from string) {
	log.Infof("[Scheduling] Job %d %s -> %s", job.ID, from, job.Status)
}
