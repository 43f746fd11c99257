package scheduling

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/PropFox/app/models"
	"github.com/ManuelReschke/PropFox/app/repository"
	"github.com/ManuelReschke/PropFox/internal/pkg/apperrors"
	"github.com/ManuelReschke/PropFox/internal/pkg/audit"
	"github.com/ManuelReschke/PropFox/internal/pkg/sequence"
	"github.com/ManuelReschke/PropFox/internal/pkg/usercontext"
)

// JobInput creates a job on a property of the provider.
type JobInput struct {
	Kind        string           `json:"kind" validate:"required,oneof=CLEANING MAINTENANCE"`
	PropertyID  uint             `json:"property_id" validate:"required"`
	ContractID  *uint            `json:"contract_id"`
	Title       string           `json:"title" validate:"required,max=200"`
	Description string           `json:"description" validate:"max=5000"`
	Price       *decimal.Decimal `json:"price"`
}

// CompletionInput is what the worker reports when finishing a job.
type CompletionInput struct {
	ActualCost    *decimal.Decimal `json:"actual_cost"`
	ActualMinutes int              `json:"actual_minutes" validate:"min=0"`
	Price         *decimal.Decimal `json:"price"`
	Notes         string           `json:"completion_notes" validate:"max=5000"`
	BeforePhotos  []string         `json:"before_photos" validate:"max=50,dive,required,max=500"`
	AfterPhotos   []string         `json:"after_photos" validate:"max=50,dive,required,max=500"`
}

// CreateJob opens a PENDING job.
func (s *Service) CreateJob(ctx context.Context, actor usercontext.Actor, in JobInput) (*models.Job, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := s.validate.Struct(in); err != nil {
		return nil, apperrors.FromValidator(err)
	}
	if in.Price != nil && in.Price.IsNegative() {
		return nil, apperrors.FieldValidation("price", "price must not be negative")
	}

	property, err := s.repos.Property.GetForProvider(ctx, in.PropertyID, actor.ProviderID)
	if err != nil {
		return nil, apperrors.Lookup(err, "property", in.PropertyID)
	}
	if in.ContractID != nil {
		contract, err := s.repos.Contract.GetForProvider(ctx, *in.ContractID, actor.ProviderID)
		if err != nil {
			return nil, apperrors.Lookup(err, "contract", *in.ContractID)
		}
		if contract.CustomerID != property.CustomerID {
			return nil, apperrors.FieldValidation("contract_id", "contract %s belongs to another customer", contract.ContractNumber)
		}
	}

	job := &models.Job{
		Kind:        in.Kind,
		ProviderID:  actor.ProviderID,
		PropertyID:  property.ID,
		CustomerID:  property.CustomerID,
		ContractID:  in.ContractID,
		Title:       in.Title,
		Description: strings.TrimSpace(in.Description),
		Status:      models.JobStatusPending,
	}
	if in.Price != nil {
		job.Price = decimal.NewNullDecimal(in.Price.Round(2))
	}
	if err := s.repos.Job.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	if err := s.recorder.RecordChange(ctx, audit.Change{
		Kind:        models.SubjectJob,
		SubjectID:   job.ID,
		ChangeType:  models.ChangeCreated,
		Description: fmt.Sprintf("%s job %q created", strings.ToLower(job.Kind), job.Title),
		Metadata:    map[string]interface{}{"property_id": job.PropertyID},
		ActorID:     actor.ActorID(),
	}); err != nil {
		log.Errorf("[Scheduling] History entry not recorded: %v", err)
	}
	return job, nil
}

// RequestQuote moves a PENDING maintenance job to QUOTE_PENDING.
func (s *Service) RequestQuote(ctx context.Context, actor usercontext.Actor, jobID uint) (*models.Job, error) {
	return s.mutateJob(ctx, actor, jobID, func(repos *repository.Repositories, job *models.Job) error {
		if err := requireMaintenance(job); err != nil {
			return err
		}
		if err := requireStatus(job, models.JobStatusPending); err != nil {
			return err
		}
		job.Status = models.JobStatusQuotePending
		return nil
	})
}

// SendQuote prices a maintenance job and sends the quote to the customer. The
// QUO number is minted once; re-sending a quote keeps it.
func (s *Service) SendQuote(ctx context.Context, actor usercontext.Actor, jobID uint, price decimal.Decimal) (*models.Job, error) {
	if !price.IsPositive() {
		return nil, apperrors.FieldValidation("quoted_price", "quoted price must be positive")
	}

	job, err := s.mutateJob(ctx, actor, jobID, func(repos *repository.Repositories, job *models.Job) error {
		if err := requireMaintenance(job); err != nil {
			return err
		}
		if err := requireStatus(job, models.JobStatusPending, models.JobStatusQuotePending, models.JobStatusQuoteSent); err != nil {
			return err
		}
		if job.QuoteNumber == nil {
			number, err := sequence.Next(ctx, repos.DB(), sequence.For(job.ProviderID, sequence.PrefixQuote, s.now()))
			if err != nil {
				return err
			}
			job.QuoteNumber = &number
		}
		job.QuotedPrice = decimal.NewNullDecimal(price.Round(2))
		job.Status = models.JobStatusQuoteSent
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, job, models.NotificationQuoteSent, "Quote "+*job.QuoteNumber,
		fmt.Sprintf("Quote %s for %q: %s.", *job.QuoteNumber, job.Title, job.QuotedPrice.Decimal.StringFixed(2)))
	return job, nil
}

// ApproveQuote accepts a sent quote. The quoted price becomes the job price
// unless one was set already.
func (s *Service) ApproveQuote(ctx context.Context, actor usercontext.Actor, jobID uint) (*models.Job, error) {
	return s.mutateJob(ctx, actor, jobID, func(repos *repository.Repositories, job *models.Job) error {
		if err := requireStatus(job, models.JobStatusQuoteSent); err != nil {
			return err
		}
		if !job.Price.Valid {
			job.Price = job.QuotedPrice
		}
		job.Status = models.JobStatusApproved
		return nil
	})
}

// Start begins work. Only the user behind the assigned worker or contractor
// may start a job.
func (s *Service) Start(ctx context.Context, actor usercontext.Actor, jobID uint) (*models.Job, error) {
	job, err := s.mutateJob(ctx, actor, jobID, func(repos *repository.Repositories, job *models.Job) error {
		if err := requireStatus(job, models.JobStatusScheduled); err != nil {
			return err
		}
		if err := s.requireAssignee(ctx, repos, actor, job); err != nil {
			return err
		}
		now := s.now().UTC()
		job.StartedAt = &now
		job.Status = models.JobStatusInProgress
		return nil
	})
	if err != nil {
		return nil, err
	}
	logTransition(job, models.JobStatusScheduled)
	return job, nil
}

// Complete finishes an IN_PROGRESS job. Completed maintenance jobs are
// invoiced when an invoicer is configured; invoicing failures are logged.
func (s *Service) Complete(ctx context.Context, actor usercontext.Actor, jobID uint, in CompletionInput) (*models.Job, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, apperrors.FromValidator(err)
	}
	if in.ActualCost != nil && in.ActualCost.IsNegative() {
		return nil, apperrors.FieldValidation("actual_cost", "actual cost must not be negative")
	}
	if in.Price != nil && in.Price.IsNegative() {
		return nil, apperrors.FieldValidation("price", "price must not be negative")
	}

	job, err := s.mutateJob(ctx, actor, jobID, func(repos *repository.Repositories, job *models.Job) error {
		if err := requireStatus(job, models.JobStatusInProgress); err != nil {
			return err
		}
		now := s.now().UTC()
		job.CompletedAt = &now
		job.Status = models.JobStatusCompleted
		job.ActualMinutes = in.ActualMinutes
		if in.ActualCost != nil {
			job.ActualCost = decimal.NewNullDecimal(in.ActualCost.Round(2))
		}
		if in.Price != nil {
			job.Price = decimal.NewNullDecimal(in.Price.Round(2))
		}
		if notes := strings.TrimSpace(in.Notes); notes != "" {
			job.CompletionNotes = notes
		}
		job.BeforePhotos = append(job.BeforePhotos, in.BeforePhotos...)
		job.AfterPhotos = append(job.AfterPhotos, in.AfterPhotos...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	logTransition(job, models.JobStatusInProgress)

	s.notify(ctx, job, models.NotificationJobCompleted, "Job completed: "+job.Title, job.CompletionNotes)
	if job.Kind == models.JobKindMaintenance && s.invoicer != nil {
		if inv, err := s.invoicer.GenerateJobInvoice(ctx, actor, job.ID); err != nil {
			log.Errorf("[Scheduling] Failed to invoice completed job %d: %v", job.ID, err)
		} else {
			log.Infof("[Scheduling] Job %d invoiced as %s", job.ID, inv.InvoiceNumber)
		}
	}
	return job, nil
}

// Cancel stops a job that is not COMPLETED yet.
func (s *Service) Cancel(ctx context.Context, actor usercontext.Actor, jobID uint, reason string) (*models.Job, error) {
	reason = strings.TrimSpace(reason)
	if len(reason) > 255 {
		return nil, apperrors.FieldValidation("reason", "reason must be at most 255 characters")
	}
	var from string
	job, err := s.mutateJob(ctx, actor, jobID, func(repos *repository.Repositories, job *models.Job) error {
		if job.IsTerminal() {
			return apperrors.Validation("job %d is already %s", job.ID, job.Status)
		}
		from = job.Status
		now := s.now().UTC()
		job.CancelledAt = &now
		job.CancelReason = reason
		job.Status = models.JobStatusCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}
	logTransition(job, from)
	return job, nil
}

// Delete removes a job nobody ever started working on.
func (s *Service) Delete(ctx context.Context, actor usercontext.Actor, jobID uint) error {
	job, err := s.repos.Job.GetForProvider(ctx, jobID, actor.ProviderID)
	if err != nil {
		return apperrors.Lookup(err, "job", jobID)
	}
	if job.HasStarted() {
		return apperrors.Validation("job %d was already started and can only be cancelled", job.ID)
	}
	if err := s.repos.Job.Delete(ctx, job.ID); err != nil {
		return fmt.Errorf("delete job %d: %w", job.ID, err)
	}
	log.Infof("[Scheduling] Deleted job %d (%s)", job.ID, job.Status)
	return nil
}

func (s *Service) requireAssignee(ctx context.Context, repos *repository.Repositories, actor usercontext.Actor, job *models.Job) error {
	if actor.UserID == 0 {
		return apperrors.Forbidden("starting a job requires an acting user")
	}
	var userID *uint
	switch {
	case job.AssignedWorkerID != nil:
		w, err := repos.Worker.GetForProvider(ctx, *job.AssignedWorkerID, actor.ProviderID)
		if err != nil {
			return apperrors.Lookup(err, "worker", *job.AssignedWorkerID)
		}
		userID = w.UserID
	case job.AssignedContractorID != nil:
		c, err := repos.Contractor.GetForProvider(ctx, *job.AssignedContractorID, actor.ProviderID)
		if err != nil {
			return apperrors.Lookup(err, "contractor", *job.AssignedContractorID)
		}
		userID = c.UserID
	}
	if userID == nil || *userID != actor.UserID {
		return apperrors.Forbidden("job %d is not assigned to user %d", job.ID, actor.UserID)
	}
	return nil
}

func requireMaintenance(job *models.Job) error {
	if job.Kind != models.JobKindMaintenance {
		return apperrors.Validation("job %d is a %s job, quotes apply to maintenance only", job.ID, job.Kind)
	}
	return nil
}
