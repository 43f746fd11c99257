package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PropFox/app/repository"
	"github.com/ManuelReschke/PropFox/internal/pkg/jobqueue"
)

// Payload is the invoice_archive job payload.
type Payload struct {
	InvoiceID uint `json:"invoice_id"`
}

// Processor uploads the invoice as JSON and stores the object key on it.
// Already archived invoices are skipped so retries are harmless.
func Processor(invoices repository.InvoiceRepository, store ObjectStore) jobqueue.Processor {
	return func(ctx context.Context, job *jobqueue.Job) error {
		var p Payload
		if err := jobqueue.DecodePayload(job.Payload, &p); err != nil || p.InvoiceID == 0 {
			return fmt.Errorf("invalid invoice archive payload: %v", job.Payload)
		}

		inv, err := invoices.GetByID(ctx, p.InvoiceID)
		if err != nil {
			return fmt.Errorf("load invoice %d: %w", p.InvoiceID, err)
		}
		if inv.ArchiveObjectKey != "" {
			log.Infof("[Archive] Invoice %s already archived at %s", inv.InvoiceNumber, inv.ArchiveObjectKey)
			return nil
		}
		if !inv.IsPaid() || inv.PaidAt == nil {
			return fmt.Errorf("invoice %s is not paid", inv.InvoiceNumber)
		}

		body, err := json.MarshalIndent(inv, "", "  ")
		if err != nil {
			return fmt.Errorf("encode invoice %d: %w", inv.ID, err)
		}

		key := ObjectKey(inv.ProviderID, inv.InvoiceNumber, *inv.PaidAt)
		meta := map[string]string{
			"invoice-number": inv.InvoiceNumber,
			"provider-id":    strconv.FormatUint(uint64(inv.ProviderID), 10),
			"upload-source":  "propfox-archive",
		}
		if err := store.Put(ctx, key, body, "application/json", meta); err != nil {
			return err
		}
		if err := invoices.SetArchiveKey(ctx, inv.ID, key); err != nil {
			return fmt.Errorf("store archive key for invoice %d: %w", inv.ID, err)
		}
		return nil
	}
}
