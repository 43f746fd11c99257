// Package sequence hands out human readable document numbers of the form
// PREFIX-YYYYMM-NNNN, counted per provider and calendar month.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/PropFox/app/models"
)

type Prefix string

const (
	PrefixCustomer Prefix = "CUS"
	PrefixContract Prefix = "CON"
	PrefixInvoice  Prefix = "INV"
	PrefixQuote    Prefix = "QUO"
)

// DefaultAttempts is used by WithRetry when attempts <= 0.
const DefaultAttempts = 3

// source is the table and column whose existing numbers seed a fresh counter.
type source struct {
	table  string
	column string
}

var sources = map[Prefix]source{
	PrefixCustomer: {table: "customers", column: "customer_number"},
	PrefixContract: {table: "contracts", column: "contract_number"},
	PrefixInvoice:  {table: "invoices", column: "invoice_number"},
	PrefixQuote:    {table: "jobs", column: "quote_number"},
}

// Scope identifies one independent counter.
type Scope struct {
	ProviderID uint
	Prefix     Prefix
	Period     string
}

// For builds the scope for a document issued at t.
func For(providerID uint, prefix Prefix, t time.Time) Scope {
	return Scope{ProviderID: providerID, Prefix: prefix, Period: Period(t)}
}

func (s Scope) key() string {
	return fmt.Sprintf("provider:%d", s.ProviderID)
}

// Period formats t as YYYYMM.
func Period(t time.Time) string {
	return t.Format("200601")
}

// Format renders a document number. Numbers above 9999 keep growing in width.
func Format(prefix Prefix, period string, n int64) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, period, n)
}

// Next increments the scope's counter and returns the new number. It must run
// inside the transaction that inserts the document, so the counter row lock is
// held until the document is committed.
func Next(ctx context.Context, tx *gorm.DB, scope Scope) (string, error) {
	src, ok := sources[scope.Prefix]
	if !ok {
		return "", fmt.Errorf("unknown sequence prefix %q", scope.Prefix)
	}
	if len(scope.Period) != 6 {
		return "", fmt.Errorf("invalid sequence period %q", scope.Period)
	}

	db := tx.WithContext(ctx)
	var counter models.SequenceCounter
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("scope_key = ? AND prefix = ? AND period = ?", scope.key(), string(scope.Prefix), scope.Period).
		First(&counter).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		seed, err := countExisting(db, src, scope)
		if err != nil {
			return "", err
		}
		counter = models.SequenceCounter{
			ScopeKey:  scope.key(),
			Prefix:    string(scope.Prefix),
			Period:    scope.Period,
			LastValue: seed,
		}
		// A concurrent first use fails here with ErrDuplicatedKey.
		if err := db.Create(&counter).Error; err != nil {
			return "", err
		}
	case err != nil:
		return "", fmt.Errorf("load sequence counter: %w", err)
	}

	counter.LastValue++
	if err := db.Model(&counter).Update("last_value", counter.LastValue).Error; err != nil {
		return "", fmt.Errorf("bump sequence counter: %w", err)
	}
	return Format(scope.Prefix, scope.Period, counter.LastValue), nil
}

// countExisting counts numbers already issued before the counter existed.
func countExisting(db *gorm.DB, src source, scope Scope) (int64, error) {
	var n int64
	pattern := fmt.Sprintf("%s-%s-%%", scope.Prefix, scope.Period)
	err := db.Table(src.table).
		Where("provider_id = ? AND "+src.column+" LIKE ?", scope.ProviderID, pattern).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("seed sequence %s: %w", scope.Prefix, err)
	}
	return n, nil
}

// IsDuplicate reports a unique-constraint violation.
func IsDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// WithRetry runs fn in a fresh transaction, retrying when it fails on a unique
// constraint. The unique index on the document number is what actually
// guarantees uniqueness; the counter only keeps collisions rare.
func WithRetry(ctx context.Context, db *gorm.DB, attempts int, fn func(tx *gorm.DB) error) error {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}

	var err error
	for i := 1; i <= attempts; i++ {
		err = db.WithContext(ctx).Transaction(fn)
		if err == nil || !IsDuplicate(err) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warnf("[Sequence] Duplicate key, retrying transaction (%d/%d): %v", i, attempts, err)
	}
	return err
}
