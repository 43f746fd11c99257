package sequence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PropFox/app/models"
	"github.com/ManuelReschke/PropFox/internal/pkg/database/dbtest"
)

func next(t *testing.T, db *gorm.DB, scope Scope) string {
	t.Helper()
	var number string
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		number, err = Next(context.Background(), tx, scope)
		return err
	})
	require.NoError(t, err)
	return number
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "INV-202501-0001", Format(PrefixInvoice, "202501", 1))
	assert.Equal(t, "QUO-202412-0042", Format(PrefixQuote, "202412", 42))
	assert.Equal(t, "CON-202501-12345", Format(PrefixContract, "202501", 12345))
}

func TestPeriod(t *testing.T) {
	assert.Equal(t, "202501", Period(time.Date(2025, 1, 31, 23, 0, 0, 0, time.UTC)))
	assert.Equal(t, "202512", Period(time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)))
}

func TestNextIncrementsPerScope(t *testing.T) {
	db := dbtest.Open(t)
	day := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	jan := For(1, PrefixInvoice, day)

	assert.Equal(t, "INV-202501-0001", next(t, db, jan))
	assert.Equal(t, "INV-202501-0002", next(t, db, jan))

	// other provider, other prefix and other month each start over
	assert.Equal(t, "INV-202501-0001", next(t, db, For(2, PrefixInvoice, day)))
	assert.Equal(t, "QUO-202501-0001", next(t, db, For(1, PrefixQuote, day)))
	assert.Equal(t, "INV-202502-0001", next(t, db, For(1, PrefixInvoice, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))))

	assert.Equal(t, "INV-202501-0003", next(t, db, jan))
}

func TestNextSeedsFromExistingNumbers(t *testing.T) {
	db := dbtest.Open(t)
	f := dbtest.Seed(t, db)

	for _, number := range []string{"INV-202503-0001", "INV-202503-0002", "INV-202503-0003", "INV-202502-0009"} {
		inv := models.Invoice{
			Kind:          models.InvoiceKindMaintenance,
			InvoiceNumber: number,
			ProviderID:    f.Provider.ID,
			CustomerID:    f.Customer.ID,
			PeriodStart:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			PeriodEnd:     time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
			Subtotal:      decimal.NewFromInt(10),
			TaxPercentage: decimal.NewFromInt(20),
			TaxAmount:     decimal.NewFromInt(2),
			Total:         decimal.NewFromInt(12),
			DueDate:       time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC),
		}
		require.NoError(t, db.Create(&inv).Error)
	}

	scope := For(f.Provider.ID, PrefixInvoice, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "INV-202503-0004", next(t, db, scope))
	assert.Equal(t, "INV-202503-0005", next(t, db, scope))
}

func TestNextRejectsBadScope(t *testing.T) {
	db := dbtest.Open(t)

	_, err := Next(context.Background(), db, Scope{ProviderID: 1, Prefix: "XYZ", Period: "202501"})
	assert.Error(t, err)

	_, err = Next(context.Background(), db, Scope{ProviderID: 1, Prefix: PrefixInvoice, Period: "2025"})
	assert.Error(t, err)
}

func TestNextRollsBackWithTransaction(t *testing.T) {
	db := dbtest.Open(t)
	scope := For(1, PrefixContract, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	boom := errors.New("insert failed")
	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := Next(context.Background(), tx, scope)
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, "CON-202501-0001", next(t, db, scope))
}

func TestWithRetry(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()

	t.Run("retries duplicate key", func(t *testing.T) {
		calls := 0
		err := WithRetry(ctx, db, 3, func(tx *gorm.DB) error {
			calls++
			if calls == 1 {
				return gorm.ErrDuplicatedKey
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("gives up after attempts", func(t *testing.T) {
		calls := 0
		err := WithRetry(ctx, db, 2, func(tx *gorm.DB) error {
			calls++
			return gorm.ErrDuplicatedKey
		})
		assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
		assert.Equal(t, 2, calls)
	})

	t.Run("other errors are not retried", func(t *testing.T) {
		calls := 0
		boom := errors.New("boom")
		err := WithRetry(ctx, db, 0, func(tx *gorm.DB) error {
			calls++
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})
}
