package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PropFox/app/models"
	"github.com/ManuelReschke/PropFox/app/repository"
	"github.com/ManuelReschke/PropFox/internal/pkg/apperrors"
	"github.com/ManuelReschke/PropFox/internal/pkg/archive"
	"github.com/ManuelReschke/PropFox/internal/pkg/audit"
	"github.com/ManuelReschke/PropFox/internal/pkg/jobqueue"
	"github.com/ManuelReschke/PropFox/internal/pkg/notify"
	"github.com/ManuelReschke/PropFox/internal/pkg/sequence"
	"github.com/ManuelReschke/PropFox/internal/pkg/timewindow"
	"github.com/ManuelReschke/PropFox/internal/pkg/usercontext"
)

// PaymentInput is the payment metadata recorded by MarkPaid.
type PaymentInput struct {
	Method    string `json:"payment_method" validate:"required,max=50"`
	Reference string `json:"payment_reference" validate:"max=191"`
}

// GenerateInvoice issues the cleaning invoice of a contract for
// [periodStart, periodEnd). A second call for the same period returns the
// invoice created by the first one.
func (s *Service) GenerateInvoice(ctx context.Context, actor usercontext.Actor, contractID uint, periodStart, periodEnd time.Time) (*models.Invoice, error) {
	inv, _, err := s.generateInvoice(ctx, actor, contractID, periodStart, periodEnd)
	return inv, err
}

func (s *Service) generateInvoice(ctx context.Context, actor usercontext.Actor, contractID uint, periodStart, periodEnd time.Time) (inv *models.Invoice, created bool, err error) {
	ctx, span := s.tracer.Start(ctx, "billing.GenerateInvoice")
	span.SetAttributes(attribute.Int64("contract.id", int64(contractID)), attribute.Int64("provider.id", int64(actor.ProviderID)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	periodStart, periodEnd = timewindow.DateOf(periodStart), timewindow.DateOf(periodEnd)
	if !periodEnd.After(periodStart) {
		return nil, false, apperrors.FieldValidation("period_end", "period_end must be after period_start")
	}

	contract, err := s.repos.Contract.GetForProvider(ctx, contractID, actor.ProviderID)
	if err != nil {
		return nil, false, apperrors.Lookup(err, "contract", contractID)
	}
	if contract.Status != models.ContractStatusActive {
		return nil, false, apperrors.Validation("contract %s is %s, only ACTIVE contracts are invoiced", contract.ContractNumber, contract.Status)
	}

	existing, err := s.repos.Invoice.FindForPeriod(ctx, contract.ID, periodStart, periodEnd)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("look up invoice for period: %w", err)
	}

	fee := ComputeMonthlyFee(contract)
	if len(fee.MissingFees) > 0 {
		return nil, false, apperrors.FieldValidation("fee", "contract %s has no fee for properties %v", contract.ContractNumber, fee.MissingFees)
	}

	properties := activePropertyIDs(contract)
	completed, err := s.repos.Job.CountCompleted(ctx, contract.ID, properties, periodStart, periodEnd)
	if err != nil {
		return nil, false, fmt.Errorf("count completed jobs: %w", err)
	}

	totals := ComputeTotals(fee.Total, decimal.Zero, s.taxPercentage)
	terms := ""
	if contract.Customer != nil {
		terms = contract.Customer.PaymentTerms
	}
	contractRef := contract.ID
	candidate := models.Invoice{
		Kind:              models.InvoiceKindCleaning,
		ProviderID:        contract.ProviderID,
		CustomerID:        contract.CustomerID,
		ContractID:        &contractRef,
		PeriodStart:       periodStart,
		PeriodEnd:         periodEnd,
		CompletedJobCount: completed,
		Subtotal:          totals.Subtotal,
		AdditionalCharges: decimal.Zero,
		TaxPercentage:     s.taxPercentage,
		TaxAmount:         totals.TaxAmount,
		Total:             totals.Total,
		Status:            models.InvoiceStatusPending,
		DueDate:           periodEnd.AddDate(0, 0, PaymentTermsDays(terms, s.defaultTermsDays)),
	}

	err = sequence.WithRetry(ctx, s.repos.DB(), sequence.DefaultAttempts, func(tx *gorm.DB) error {
		repos := repository.NewRepositories(tx)
		found, err := repos.Invoice.FindForPeriod(ctx, contract.ID, periodStart, periodEnd)
		if err == nil {
			inv, created = found, false
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		number, err := sequence.Next(ctx, tx, sequence.For(contract.ProviderID, sequence.PrefixInvoice, periodStart))
		if err != nil {
			return err
		}
		fresh := candidate
		fresh.InvoiceNumber = number
		if err := repos.Invoice.Create(ctx, &fresh); err != nil {
			return err
		}
		inv, created = &fresh, true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("create invoice: %w", err)
	}
	if !created {
		return inv, false, nil
	}

	log.Infof("[Billing] Generated invoice %s for contract %s (%s - %s, total %s)",
		inv.InvoiceNumber, contract.ContractNumber, periodStart.Format(time.DateOnly), periodEnd.Format(time.DateOnly), inv.Total.StringFixed(2))

	for _, propertyID := range properties {
		if err := s.recorder.RecordChange(ctx, audit.Change{
			Kind:        models.SubjectProperty,
			SubjectID:   propertyID,
			ChangeType:  models.ChangeInvoiceGenerated,
			Description: fmt.Sprintf("Invoice %s generated for contract %s", inv.InvoiceNumber, contract.ContractNumber),
			Metadata: map[string]interface{}{
				"invoice_id":     inv.ID,
				"invoice_number": inv.InvoiceNumber,
				"contract_id":    contract.ID,
				"period_start":   periodStart.Format(time.DateOnly),
				"period_end":     periodEnd.Format(time.DateOnly),
				"total":          inv.Total.StringFixed(2),
			},
			ActorID: actor.ActorID(),
		}); err != nil {
			log.Errorf("[Billing] History entry not recorded: %v", err)
		}
	}
	s.notifyInvoice(ctx, inv)
	return inv, true, nil
}

// MarkPaid settles a PENDING invoice and queues it for archiving.
func (s *Service) MarkPaid(ctx context.Context, actor usercontext.Actor, invoiceID uint, in PaymentInput) (*models.Invoice, error) {
	in.Method = strings.TrimSpace(in.Method)
	in.Reference = strings.TrimSpace(in.Reference)
	if err := s.validate.Struct(in); err != nil {
		return nil, apperrors.FromValidator(err)
	}

	inv, err := s.repos.Invoice.GetForProvider(ctx, invoiceID, actor.ProviderID)
	if err != nil {
		return nil, apperrors.Lookup(err, "invoice", invoiceID)
	}
	if inv.IsPaid() {
		return nil, apperrors.Validation("invoice %s is already paid", inv.InvoiceNumber)
	}

	paidAt := s.now().UTC()
	inv.Status = models.InvoiceStatusPaid
	inv.PaidAt = &paidAt
	inv.PaymentMethod = in.Method
	inv.PaymentReference = in.Reference
	if err := s.updateInvoice(ctx, inv, models.InvoiceStatusPending); err != nil {
		return nil, err
	}
	log.Infof("[Billing] Invoice %s marked as paid (%s)", inv.InvoiceNumber, inv.PaymentMethod)

	s.enqueueArchive(inv)
	return inv, nil
}

// AdjustCharges replaces the additional charges of a PENDING invoice and
// recomputes its totals with the invoice's own tax rate.
func (s *Service) AdjustCharges(ctx context.Context, actor usercontext.Actor, invoiceID uint, additional decimal.Decimal, notes string) (*models.Invoice, error) {
	inv, err := s.repos.Invoice.GetForProvider(ctx, invoiceID, actor.ProviderID)
	if err != nil {
		return nil, apperrors.Lookup(err, "invoice", invoiceID)
	}
	if inv.Status != models.InvoiceStatusPending {
		return nil, apperrors.Validation("invoice %s is %s, only PENDING invoices can be adjusted", inv.InvoiceNumber, inv.Status)
	}

	base := inv.Subtotal.Sub(inv.AdditionalCharges)
	totals := ComputeTotals(base, additional, inv.TaxPercentage)
	if totals.Subtotal.IsNegative() {
		return nil, apperrors.FieldValidation("additional_charges", "charges would make the subtotal negative")
	}

	inv.AdditionalCharges = additional.Round(2)
	inv.Subtotal = totals.Subtotal
	inv.TaxAmount = totals.TaxAmount
	inv.Total = totals.Total
	if notes = strings.TrimSpace(notes); notes != "" {
		inv.Notes = notes
	}
	if err := s.updateInvoice(ctx, inv, models.InvoiceStatusPending); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *Service) updateInvoice(ctx context.Context, inv *models.Invoice, readStatus string) error {
	err := s.repos.Invoice.UpdateFromStatus(ctx, inv, readStatus)
	if errors.Is(err, repository.ErrStatusChanged) {
		return apperrors.Validation("invoice %s was changed by someone else, reload and retry", inv.InvoiceNumber)
	}
	if err != nil {
		return fmt.Errorf("update invoice %d: %w", inv.ID, err)
	}
	return nil
}

// GenerateJobInvoice issues the maintenance invoice of a COMPLETED job. It is
// idempotent per job.
func (s *Service) GenerateJobInvoice(ctx context.Context, actor usercontext.Actor, jobID uint) (inv *models.Invoice, err error) {
	ctx, span := s.tracer.Start(ctx, "billing.GenerateJobInvoice")
	span.SetAttributes(attribute.Int64("job.id", int64(jobID)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	job, err := s.repos.Job.GetForProvider(ctx, jobID, actor.ProviderID)
	if err != nil {
		return nil, apperrors.Lookup(err, "job", jobID)
	}
	if job.Kind != models.JobKindMaintenance {
		return nil, apperrors.Validation("job %d is not a maintenance job", job.ID)
	}
	if job.Status != models.JobStatusCompleted || job.CompletedAt == nil {
		return nil, apperrors.Validation("job %d is %s, only COMPLETED jobs are invoiced", job.ID, job.Status)
	}

	if existing, err := s.repos.Invoice.FindForJob(ctx, job.ID); err == nil {
		return existing, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("look up invoice for job: %w", err)
	}

	price := job.Price
	if !price.Valid {
		price = job.QuotedPrice
	}
	if !price.Valid {
		return nil, apperrors.FieldValidation("price", "job %d has neither a price nor a quoted price", job.ID)
	}

	customer, err := s.repos.Customer.GetByID(ctx, job.CustomerID)
	if err != nil {
		return nil, apperrors.Lookup(err, "customer", job.CustomerID)
	}

	start := timewindow.DateOf(*job.CompletedAt)
	end := start.AddDate(0, 0, 1)
	totals := ComputeTotals(price.Decimal, decimal.Zero, s.taxPercentage)
	jobRef := job.ID
	candidate := models.Invoice{
		Kind:              models.InvoiceKindMaintenance,
		ProviderID:        job.ProviderID,
		CustomerID:        job.CustomerID,
		JobID:             &jobRef,
		PeriodStart:       start,
		PeriodEnd:         end,
		CompletedJobCount: 1,
		Subtotal:          totals.Subtotal,
		AdditionalCharges: decimal.Zero,
		TaxPercentage:     s.taxPercentage,
		TaxAmount:         totals.TaxAmount,
		Total:             totals.Total,
		Status:            models.InvoiceStatusPending,
		DueDate:           end.AddDate(0, 0, PaymentTermsDays(customer.PaymentTerms, s.defaultTermsDays)),
	}

	created := false
	err = sequence.WithRetry(ctx, s.repos.DB(), sequence.DefaultAttempts, func(tx *gorm.DB) error {
		repos := repository.NewRepositories(tx)
		if found, err := repos.Invoice.FindForJob(ctx, job.ID); err == nil {
			inv, created = found, false
			return nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		number, err := sequence.Next(ctx, tx, sequence.For(job.ProviderID, sequence.PrefixInvoice, start))
		if err != nil {
			return err
		}
		fresh := candidate
		fresh.InvoiceNumber = number
		if err := repos.Invoice.Create(ctx, &fresh); err != nil {
			return err
		}
		inv, created = &fresh, true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create job invoice: %w", err)
	}
	if created {
		log.Infof("[Billing] Generated maintenance invoice %s for job %d (total %s)", inv.InvoiceNumber, job.ID, inv.Total.StringFixed(2))
		s.notifyInvoice(ctx, inv)
	}
	return inv, nil
}

func (s *Service) notifyInvoice(ctx context.Context, inv *models.Invoice) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyCustomer(ctx, notify.Message{
		CustomerID:  inv.CustomerID,
		Type:        models.NotificationInvoice,
		Title:       "New invoice " + inv.InvoiceNumber,
		Content:     fmt.Sprintf("Invoice %s over %s is due on %s.", inv.InvoiceNumber, inv.Total.StringFixed(2), inv.DueDate.Format(time.DateOnly)),
		ReferenceID: inv.ID,
	})
}

func (s *Service) enqueueArchive(inv *models.Invoice) {
	if s.queue == nil {
		return
	}
	payload, err := jobqueue.EncodePayload(archive.Payload{InvoiceID: inv.ID})
	if err == nil {
		_, err = s.queue.EnqueueJob(context.Background(), jobqueue.JobTypeInvoiceArchive, payload)
	}
	if err != nil {
		log.Errorf("[Billing] Failed to queue archive of invoice %s: %v", inv.InvoiceNumber, err)
	}
}

func activePropertyIDs(c *models.Contract) []uint {
	active := c.ActiveProperties()
	ids := make([]uint, 0, len(active))
	for _, link := range active {
		ids = append(ids, link.PropertyID)
	}
	return ids
}
