package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ManuelReschke/PropFox/internal/pkg/apperrors"
	"github.com/ManuelReschke/PropFox/internal/pkg/jobqueue"
	"github.com/ManuelReschke/PropFox/internal/pkg/timewindow"
	"github.com/ManuelReschke/PropFox/internal/pkg/usercontext"
)

// SweepResult summarises one run of the due sweep.
type SweepResult struct {
	Date      time.Time `json:"date"`
	Due       int       `json:"due"`
	Generated int       `json:"generated"`
	Existing  int       `json:"existing"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
}

// RunDueSweep invoices every ACTIVE contract whose billing day is today, in
// advance for [today, today+1 month). One failing contract does not stop the
// others. Running the sweep twice for the same day creates no duplicates.
func (s *Service) RunDueSweep(ctx context.Context, today time.Time) (SweepResult, error) {
	today = timewindow.DateOf(today)
	ctx, span := s.tracer.Start(ctx, "billing.RunDueSweep")
	defer span.End()

	res := SweepResult{Date: today}
	contracts, err := s.repos.Contract.ListDue(ctx, today.Day())
	if err != nil {
		return res, fmt.Errorf("list due contracts: %w", err)
	}

	periodEnd := timewindow.AddMonthsClamped(today, 1)
	actors := make(map[uint]usercontext.Actor)
	for i := range contracts {
		c := &contracts[i]
		if !IsDueToday(c, today) {
			continue
		}
		if c.StartDate.After(today) || (c.EndDate != nil && !c.EndDate.After(today)) {
			res.Skipped++
			continue
		}
		res.Due++

		actor, ok := actors[c.ProviderID]
		if !ok {
			provider, err := s.repos.Tenant.GetProvider(ctx, c.ProviderID)
			if err != nil {
				log.Errorf("[Billing] Sweep: provider %d of contract %s: %v", c.ProviderID, c.ContractNumber, err)
				res.Failed++
				continue
			}
			actor = usercontext.System(provider.TenantID, provider.ID)
			actors[c.ProviderID] = actor
		}

		inv, created, err := s.generateInvoice(ctx, actor, c.ID, today, periodEnd)
		switch {
		case err != nil:
			res.Failed++
			if apperrors.IsValidation(err) {
				log.Warnf("[Billing] Sweep: contract %s not invoiced: %v", c.ContractNumber, err)
			} else {
				log.Errorf("[Billing] Sweep: contract %s failed: %v", c.ContractNumber, err)
			}
		case created:
			res.Generated++
		default:
			res.Existing++
			log.Debugf("[Billing] Sweep: contract %s already has invoice %s", c.ContractNumber, inv.InvoiceNumber)
		}
	}

	span.SetAttributes(
		attribute.Int("sweep.due", res.Due),
		attribute.Int("sweep.generated", res.Generated),
		attribute.Int("sweep.failed", res.Failed),
	)
	log.Infof("[Billing] Sweep %s: %d due, %d generated, %d existing, %d skipped, %d failed",
		today.Format(time.DateOnly), res.Due, res.Generated, res.Existing, res.Skipped, res.Failed)
	return res, nil
}

// SweepProcessor runs the due sweep for the date carried by a billing_sweep job.
func SweepProcessor(s *Service) jobqueue.Processor {
	return func(ctx context.Context, job *jobqueue.Job) error {
		var payload jobqueue.BillingSweepPayload
		if err := jobqueue.DecodePayload(job.Payload, &payload); err != nil {
			return err
		}
		day, err := timewindow.ParseDate(payload.Date)
		if err != nil {
			return fmt.Errorf("invalid sweep date %q: %w", payload.Date, err)
		}
		_, err = s.RunDueSweep(ctx, day)
		return err
	}
}
