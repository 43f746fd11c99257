package apperrors

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestLookup(t *testing.T) {
	assert.NoError(t, Lookup(nil, "job", 1))

	err := Lookup(gorm.ErrRecordNotFound, "job", 4)
	assert.True(t, IsNotFound(err))
	assert.EqualError(t, err, "job 4 not found")

	boom := errors.New("bad connection")
	err = Lookup(boom, "job", 4)
	assert.False(t, IsNotFound(err))
	assert.ErrorIs(t, err, boom)
}

func TestFromValidator(t *testing.T) {
	type input struct {
		BillingDay  int    `validate:"min=1,max=31"`
		PricingMode string `validate:"oneof=FLAT_MONTHLY PER_PROPERTY"`
	}

	err := FromValidator(validator.New().Struct(input{BillingDay: 32, PricingMode: "FLAT_MONTHLY"}))
	require.True(t, IsValidation(err))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "billing_day", verr.Field)
	assert.Equal(t, "billing_day failed on max=31", verr.Message)

	assert.NoError(t, FromValidator(nil))
}

func TestToSnake(t *testing.T) {
	assert.Equal(t, "customer_id", toSnake("CustomerID"))
	assert.Equal(t, "pricing_mode", toSnake("PricingMode"))
	assert.Equal(t, "name", toSnake("Name"))
}
