package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ManuelReschke/PropFox/app/models"
	"github.com/ManuelReschke/PropFox/app/repository"
	"github.com/ManuelReschke/PropFox/internal/pkg/apperrors"
	"github.com/ManuelReschke/PropFox/internal/pkg/timewindow"
	"github.com/ManuelReschke/PropFox/internal/pkg/usercontext"
)

// Slot is a same-day booking window.
type Slot struct {
	Date      time.Time `json:"date"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
}

func (sl Slot) normalize() (Slot, error) {
	if sl.Date.IsZero() {
		return sl, apperrors.FieldValidation("date", "date is required")
	}
	start, end, err := timewindow.ValidateSlot(sl.StartTime, sl.EndTime)
	if err != nil {
		return sl, err
	}
	return Slot{Date: timewindow.DateOf(sl.Date), StartTime: start.String(), EndTime: end.String()}, nil
}

// CheckAvailability returns the worker's bookings on the slot's date that
// overlap it. An empty result means the worker is free.
func (s *Service) CheckAvailability(ctx context.Context, actor usercontext.Actor, workerID uint, slot Slot, excludeJobID uint) ([]apperrors.SlotConflict, error) {
	slot, err := slot.normalize()
	if err != nil {
		return nil, err
	}
	if _, err := s.repos.Worker.GetForProvider(ctx, workerID, actor.ProviderID); err != nil {
		return nil, apperrors.Lookup(err, "worker", workerID)
	}
	return conflictsFor(ctx, s.repos, workerID, slot, excludeJobID)
}

func conflictsFor(ctx context.Context, repos *repository.Repositories, workerID uint, slot Slot, excludeJobID uint) ([]apperrors.SlotConflict, error) {
	booked, err := repos.Job.BookedOnDate(ctx, workerID, slot.Date, excludeJobID)
	if err != nil {
		return nil, fmt.Errorf("load bookings of worker %d: %w", workerID, err)
	}

	var conflicts []apperrors.SlotConflict
	for _, b := range booked {
		overlap, err := timewindow.SlotsOverlap(slot.StartTime, slot.EndTime, b.StartTime, b.EndTime)
		if err != nil {
			// A booking without a readable slot blocks the whole day.
			log.Warnf("[Scheduling] Job %d has an unreadable slot %q-%q: %v", b.ID, b.StartTime, b.EndTime, err)
			overlap = true
		}
		if overlap {
			conflicts = append(conflicts, apperrors.SlotConflict{
				JobID:     b.ID,
				Title:     b.Title,
				Date:      slot.Date.Format(time.DateOnly),
				StartTime: b.StartTime,
				EndTime:   b.EndTime,
			})
		}
	}
	return conflicts, nil
}

// AssignInternal books an internal worker. The availability check and the
// write run in one transaction with the worker row locked.
func (s *Service) AssignInternal(ctx context.Context, actor usercontext.Actor, jobID, workerID uint, slot Slot) (job *models.Job, err error) {
	ctx, span := s.tracer.Start(ctx, "scheduling.AssignInternal")
	span.SetAttributes(attribute.Int64("job.id", int64(jobID)), attribute.Int64("worker.id", int64(workerID)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	slot, err = slot.normalize()
	if err != nil {
		return nil, err
	}

	var from string
	job, err = s.mutateJob(ctx, actor, jobID, func(repos *repository.Repositories, job *models.Job) error {
		if !job.IsAssignable() {
			return apperrors.Validation("job %d is %s and cannot be assigned", job.ID, job.Status)
		}
		worker, err := repos.Worker.LockForProvider(ctx, workerID, actor.ProviderID)
		if err != nil {
			return apperrors.Lookup(err, "worker", workerID)
		}
		if !worker.IsActive {
			return apperrors.FieldValidation("worker_id", "worker %d is inactive", worker.ID)
		}
		if !worker.CanHandle(job.Kind) {
			return apperrors.FieldValidation("worker_id", "a %s worker cannot take %s jobs", worker.Type, job.Kind)
		}

		conflicts, err := conflictsFor(ctx, repos, worker.ID, slot, job.ID)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return apperrors.Conflict(conflicts)
		}

		from = job.Status
		job.AssignedWorkerID = &worker.ID
		job.AssignedContractorID = nil
		book(job, slot)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logTransition(job, from)
	s.notify(ctx, job, models.NotificationJobScheduled, "Job scheduled: "+job.Title,
		fmt.Sprintf("Scheduled on %s from %s to %s.", slot.Date.Format(time.DateOnly), slot.StartTime, slot.EndTime))
	return job, nil
}

// AssignExternal books an external contractor. Contractors manage their own
// calendars, so no conflict check is made.
func (s *Service) AssignExternal(ctx context.Context, actor usercontext.Actor, jobID, contractorID uint, slot Slot) (*models.Job, error) {
	slot, err := slot.normalize()
	if err != nil {
		return nil, err
	}

	var from string
	job, err := s.mutateJob(ctx, actor, jobID, func(repos *repository.Repositories, job *models.Job) error {
		if !job.IsAssignable() {
			return apperrors.Validation("job %d is %s and cannot be assigned", job.ID, job.Status)
		}
		contractor, err := repos.Contractor.GetForProvider(ctx, contractorID, actor.ProviderID)
		if err != nil {
			return apperrors.Lookup(err, "contractor", contractorID)
		}
		if !contractor.IsActive {
			return apperrors.FieldValidation("contractor_id", "contractor %d is inactive", contractor.ID)
		}

		from = job.Status
		job.AssignedContractorID = &contractor.ID
		job.AssignedWorkerID = nil
		book(job, slot)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logTransition(job, from)
	s.notify(ctx, job, models.NotificationJobScheduled, "Job scheduled: "+job.Title,
		fmt.Sprintf("Scheduled on %s from %s to %s.", slot.Date.Format(time.DateOnly), slot.StartTime, slot.EndTime))
	return job, nil
}

// UnassignWorker releases a SCHEDULED job. Maintenance jobs return to
// APPROVED, cleaning jobs to PENDING.
func (s *Service) UnassignWorker(ctx context.Context, actor usercontext.Actor, jobID uint) (*models.Job, error) {
	return s.mutateJob(ctx, actor, jobID, func(repos *repository.Repositories, job *models.Job) error {
		if err := requireStatus(job, models.JobStatusScheduled); err != nil {
			return err
		}
		job.AssignedWorkerID = nil
		job.AssignedContractorID = nil
		job.StartTime, job.EndTime = "", ""
		job.Status = models.JobStatusApproved
		if job.Kind == models.JobKindCleaning {
			job.Status = models.JobStatusPending
		}
		return nil
	})
}

func book(job *models.Job, slot Slot) {
	date := slot.Date
	job.ScheduledDate = &date
	job.StartTime = slot.StartTime
	job.EndTime = slot.EndTime
	job.Status = models.JobStatusScheduled
}
