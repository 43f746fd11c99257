package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PropFox/app/models"
	"github.com/ManuelReschke/PropFox/app/repository"
	"github.com/ManuelReschke/PropFox/internal/pkg/apperrors"
	"github.com/ManuelReschke/PropFox/internal/pkg/audit"
	"github.com/ManuelReschke/PropFox/internal/pkg/sequence"
	"github.com/ManuelReschke/PropFox/internal/pkg/timewindow"
	"github.com/ManuelReschke/PropFox/internal/pkg/usercontext"
)

// ContractInput creates a contract.
type ContractInput struct {
	CustomerID  uint            `json:"customer_id" validate:"required"`
	PricingMode string          `json:"pricing_mode" validate:"required,oneof=FLAT_MONTHLY PER_PROPERTY"`
	MonthlyFee  decimal.Decimal `json:"monthly_fee"`
	BillingDay  int             `json:"billing_day" validate:"min=1,max=31"`
	StartDate   time.Time       `json:"start_date"`
	EndDate     *time.Time      `json:"end_date"`
	Notes       string          `json:"notes" validate:"max=2000"`
}

// ContractUpdate changes the mutable terms of a contract. Nil fields are kept.
type ContractUpdate struct {
	PricingMode *string          `json:"pricing_mode" validate:"omitempty,oneof=FLAT_MONTHLY PER_PROPERTY"`
	MonthlyFee  *decimal.Decimal `json:"monthly_fee"`
	BillingDay  *int             `json:"billing_day" validate:"omitempty,min=1,max=31"`
	EndDate     *time.Time       `json:"end_date"`
	Notes       *string          `json:"notes" validate:"omitempty,max=2000"`
}

// CustomerInput creates a customer.
type CustomerInput struct {
	Name         string `json:"name" validate:"required,max=150"`
	Email        string `json:"email" validate:"omitempty,email"`
	PaymentTerms string `json:"payment_terms" validate:"omitempty,oneof=NET_7 NET_14 NET_30 NET_60 DUE_ON_RECEIPT"`
}

// CreateCustomer registers a customer with the next CUS number of the provider.
func (s *Service) CreateCustomer(ctx context.Context, actor usercontext.Actor, in CustomerInput) (*models.Customer, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validate.Struct(in); err != nil {
		return nil, apperrors.FromValidator(err)
	}
	if in.PaymentTerms == "" {
		in.PaymentTerms = models.PaymentTermsNet14
	}

	var customer *models.Customer
	err := sequence.WithRetry(ctx, s.repos.DB(), sequence.DefaultAttempts, func(tx *gorm.DB) error {
		number, err := sequence.Next(ctx, tx, sequence.For(actor.ProviderID, sequence.PrefixCustomer, s.now()))
		if err != nil {
			return err
		}
		c := &models.Customer{
			ProviderID:     actor.ProviderID,
			CustomerNumber: number,
			Name:           in.Name,
			Email:          strings.TrimSpace(in.Email),
			PaymentTerms:   in.PaymentTerms,
		}
		if err := repository.NewRepositories(tx).Customer.Create(ctx, c); err != nil {
			return err
		}
		customer = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return customer, nil
}

// CreateContract opens an ACTIVE contract with the next CON number.
func (s *Service) CreateContract(ctx context.Context, actor usercontext.Actor, in ContractInput) (*models.Contract, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, apperrors.FromValidator(err)
	}
	if in.StartDate.IsZero() {
		return nil, apperrors.FieldValidation("start_date", "start_date is required")
	}
	start := timewindow.DateOf(in.StartDate)
	var end *time.Time
	if in.EndDate != nil {
		e := timewindow.DateOf(*in.EndDate)
		if !e.After(start) {
			return nil, apperrors.FieldValidation("end_date", "end_date must be after start_date")
		}
		end = &e
	}
	fee := in.MonthlyFee
	if in.PricingMode == models.PricingModePerProperty {
		fee = decimal.Zero
	} else if fee.IsNegative() {
		return nil, apperrors.FieldValidation("monthly_fee", "monthly_fee must not be negative")
	}

	if _, err := s.repos.Customer.GetForProvider(ctx, in.CustomerID, actor.ProviderID); err != nil {
		return nil, apperrors.Lookup(err, "customer", in.CustomerID)
	}

	var contract *models.Contract
	err := sequence.WithRetry(ctx, s.repos.DB(), sequence.DefaultAttempts, func(tx *gorm.DB) error {
		number, err := sequence.Next(ctx, tx, sequence.For(actor.ProviderID, sequence.PrefixContract, s.now()))
		if err != nil {
			return err
		}
		c := &models.Contract{
			ProviderID:     actor.ProviderID,
			CustomerID:     in.CustomerID,
			ContractNumber: number,
			PricingMode:    in.PricingMode,
			MonthlyFee:     fee.Round(2),
			BillingDay:     in.BillingDay,
			Status:         models.ContractStatusActive,
			StartDate:      start,
			EndDate:        end,
			Notes:          strings.TrimSpace(in.Notes),
		}
		if err := repository.NewRepositories(tx).Contract.Create(ctx, c); err != nil {
			return err
		}
		contract = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create contract: %w", err)
	}
	log.Infof("[Billing] Created contract %s (%s, billing day %d)", contract.ContractNumber, contract.PricingMode, contract.BillingDay)
	return contract, nil
}

// UpdateContract changes pricing, billing day, end date or notes. Switching
// to PER_PROPERTY requires a fee on every active linked property.
func (s *Service) UpdateContract(ctx context.Context, actor usercontext.Actor, contractID uint, in ContractUpdate) (*models.Contract, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, apperrors.FromValidator(err)
	}
	contract, err := s.loadContract(ctx, actor, contractID)
	if err != nil {
		return nil, err
	}
	if contract.Status == models.ContractStatusCancelled {
		return nil, apperrors.Validation("contract %s is cancelled", contract.ContractNumber)
	}
	readStatus := contract.Status

	if in.PricingMode != nil {
		contract.PricingMode = *in.PricingMode
	}
	if in.MonthlyFee != nil {
		if in.MonthlyFee.IsNegative() {
			return nil, apperrors.FieldValidation("monthly_fee", "monthly_fee must not be negative")
		}
		contract.MonthlyFee = in.MonthlyFee.Round(2)
	}
	if contract.PricingMode == models.PricingModePerProperty {
		if missing := ComputeMonthlyFee(contract).MissingFees; len(missing) > 0 {
			return nil, apperrors.FieldValidation("pricing_mode", "properties %v have no fee", missing)
		}
	}
	if in.BillingDay != nil {
		contract.BillingDay = *in.BillingDay
	}
	if in.EndDate != nil {
		e := timewindow.DateOf(*in.EndDate)
		if !e.After(contract.StartDate) {
			return nil, apperrors.FieldValidation("end_date", "end_date must be after start_date")
		}
		contract.EndDate = &e
	}
	if in.Notes != nil {
		contract.Notes = strings.TrimSpace(*in.Notes)
	}

	if err := contract.Validate(); err != nil {
		return nil, apperrors.FromValidator(err)
	}
	if err := s.updateContract(ctx, contract, readStatus); err != nil {
		return nil, err
	}
	return contract, nil
}

// Pause moves an ACTIVE contract to PAUSED.
func (s *Service) Pause(ctx context.Context, actor usercontext.Actor, contractID uint) (*models.Contract, error) {
	return s.transition(ctx, actor, contractID, models.ContractStatusPaused, models.ContractStatusActive)
}

// Resume moves a PAUSED contract back to ACTIVE.
func (s *Service) Resume(ctx context.Context, actor usercontext.Actor, contractID uint) (*models.Contract, error) {
	return s.transition(ctx, actor, contractID, models.ContractStatusActive, models.ContractStatusPaused)
}

// Cancel ends an ACTIVE or PAUSED contract today. Cancelled is terminal.
func (s *Service) Cancel(ctx context.Context, actor usercontext.Actor, contractID uint) (*models.Contract, error) {
	return s.transition(ctx, actor, contractID, models.ContractStatusCancelled, models.ContractStatusActive, models.ContractStatusPaused)
}

func (s *Service) transition(ctx context.Context, actor usercontext.Actor, contractID uint, to string, from ...string) (*models.Contract, error) {
	contract, err := s.loadContract(ctx, actor, contractID)
	if err != nil {
		return nil, err
	}

	allowed := false
	for _, f := range from {
		if contract.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, apperrors.Validation("contract %s cannot go from %s to %s", contract.ContractNumber, contract.Status, to)
	}

	readStatus := contract.Status
	contract.Status = to
	if to == models.ContractStatusCancelled {
		today := s.today()
		if contract.EndDate == nil || contract.EndDate.After(today) {
			contract.EndDate = &today
		}
	}
	if err := s.updateContract(ctx, contract, readStatus); err != nil {
		return nil, err
	}
	log.Infof("[Billing] Contract %s is now %s", contract.ContractNumber, contract.Status)
	return contract, nil
}

// LinkProperty adds a property of the contract's customer. A previously
// unlinked property is reactivated on its old row.
func (s *Service) LinkProperty(ctx context.Context, actor usercontext.Actor, contractID, propertyID uint, fee *decimal.Decimal) (*models.ContractProperty, error) {
	contract, err := s.loadContract(ctx, actor, contractID)
	if err != nil {
		return nil, err
	}
	if contract.Status == models.ContractStatusCancelled {
		return nil, apperrors.Validation("contract %s is cancelled", contract.ContractNumber)
	}
	property, err := s.repos.Property.GetForProvider(ctx, propertyID, actor.ProviderID)
	if err != nil {
		return nil, apperrors.Lookup(err, "property", propertyID)
	}
	if property.CustomerID != contract.CustomerID {
		return nil, apperrors.FieldValidation("property_id", "property %d belongs to another customer", propertyID)
	}
	if fee != nil && fee.IsNegative() {
		return nil, apperrors.FieldValidation("fee", "fee must not be negative")
	}

	now := s.now().UTC()
	link, err := s.repos.Contract.GetLink(ctx, contract.ID, property.ID)
	switch {
	case err == nil:
		if link.IsActive {
			return nil, apperrors.Validation("property %d is already linked to contract %s", property.ID, contract.ContractNumber)
		}
		link.IsActive = true
		link.LinkedAt = now
		link.UnlinkedAt = nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		link = &models.ContractProperty{ContractID: contract.ID, PropertyID: property.ID, IsActive: true, LinkedAt: now}
	default:
		return nil, fmt.Errorf("load contract link: %w", err)
	}
	if fee != nil {
		link.Fee = decimal.NewNullDecimal(fee.Round(2))
	}
	if contract.PricingMode == models.PricingModePerProperty && !link.Fee.Valid {
		return nil, apperrors.FieldValidation("fee", "PER_PROPERTY contracts need a fee for every property")
	}

	if err := s.repos.Contract.SaveLink(ctx, link); err != nil {
		return nil, fmt.Errorf("save contract link: %w", err)
	}

	meta := map[string]interface{}{"contract_id": contract.ID, "contract_number": contract.ContractNumber}
	if link.Fee.Valid {
		meta["fee"] = link.Fee.Decimal.StringFixed(2)
	}
	if err := s.recorder.RecordChange(ctx, audit.Change{
		Kind:        models.SubjectProperty,
		SubjectID:   property.ID,
		ChangeType:  models.ChangeContractLinked,
		Description: fmt.Sprintf("Linked to contract %s", contract.ContractNumber),
		Metadata:    meta,
		ActorID:     actor.ActorID(),
	}); err != nil {
		log.Errorf("[Billing] History entry not recorded: %v", err)
	}
	return link, nil
}

// UnlinkProperty deactivates the link row; it is never deleted.
func (s *Service) UnlinkProperty(ctx context.Context, actor usercontext.Actor, contractID, propertyID uint) (*models.ContractProperty, error) {
	contract, err := s.loadContract(ctx, actor, contractID)
	if err != nil {
		return nil, err
	}
	link, err := s.activeLink(ctx, contract, propertyID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	link.IsActive = false
	link.UnlinkedAt = &now
	if err := s.repos.Contract.SaveLink(ctx, link); err != nil {
		return nil, fmt.Errorf("save contract link: %w", err)
	}

	if err := s.recorder.RecordChange(ctx, audit.Change{
		Kind:        models.SubjectProperty,
		SubjectID:   propertyID,
		ChangeType:  models.ChangeContractUnlinked,
		Description: fmt.Sprintf("Unlinked from contract %s", contract.ContractNumber),
		Metadata:    map[string]interface{}{"contract_id": contract.ID, "contract_number": contract.ContractNumber},
		ActorID:     actor.ActorID(),
	}); err != nil {
		log.Errorf("[Billing] History entry not recorded: %v", err)
	}
	return link, nil
}

// SetPropertyFee changes the fee of an active link. PER_PROPERTY contracts
// cannot clear a fee.
func (s *Service) SetPropertyFee(ctx context.Context, actor usercontext.Actor, contractID, propertyID uint, fee decimal.NullDecimal) (*models.ContractProperty, error) {
	contract, err := s.loadContract(ctx, actor, contractID)
	if err != nil {
		return nil, err
	}
	link, err := s.activeLink(ctx, contract, propertyID)
	if err != nil {
		return nil, err
	}
	if fee.Valid && fee.Decimal.IsNegative() {
		return nil, apperrors.FieldValidation("fee", "fee must not be negative")
	}
	if !fee.Valid && contract.PricingMode == models.PricingModePerProperty {
		return nil, apperrors.FieldValidation("fee", "PER_PROPERTY contracts need a fee for every property")
	}
	if fee.Valid {
		fee.Decimal = fee.Decimal.Round(2)
	}

	old := link.Fee
	if old.Valid == fee.Valid && (!fee.Valid || old.Decimal.Equal(fee.Decimal)) {
		return link, nil
	}
	link.Fee = fee
	if err := s.repos.Contract.SaveLink(ctx, link); err != nil {
		return nil, fmt.Errorf("save contract link: %w", err)
	}

	if err := s.recorder.RecordChange(ctx, audit.Change{
		Kind:        models.SubjectProperty,
		SubjectID:   propertyID,
		ChangeType:  models.ChangeFeeChanged,
		Field:       "fee",
		Old:         feeString(old),
		New:         feeString(fee),
		Description: fmt.Sprintf("Fee on contract %s changed", contract.ContractNumber),
		Metadata:    map[string]interface{}{"contract_id": contract.ID},
		ActorID:     actor.ActorID(),
	}); err != nil {
		log.Errorf("[Billing] History entry not recorded: %v", err)
	}
	return link, nil
}

// MonthlyFee returns the current fee breakdown of a contract.
func (s *Service) MonthlyFee(ctx context.Context, actor usercontext.Actor, contractID uint) (FeeBreakdown, error) {
	contract, err := s.loadContract(ctx, actor, contractID)
	if err != nil {
		return FeeBreakdown{}, err
	}
	return ComputeMonthlyFee(contract), nil
}

func (s *Service) updateContract(ctx context.Context, contract *models.Contract, readStatus string) error {
	err := s.repos.Contract.UpdateFromStatus(ctx, contract, readStatus)
	if errors.Is(err, repository.ErrStatusChanged) {
		return apperrors.Validation("contract %s was changed by someone else, reload and retry", contract.ContractNumber)
	}
	if err != nil {
		return fmt.Errorf("update contract %d: %w", contract.ID, err)
	}
	return nil
}

func (s *Service) loadContract(ctx context.Context, actor usercontext.Actor, contractID uint) (*models.Contract, error) {
	contract, err := s.repos.Contract.GetForProvider(ctx, contractID, actor.ProviderID)
	if err != nil {
		return nil, apperrors.Lookup(err, "contract", contractID)
	}
	return contract, nil
}

func (s *Service) activeLink(ctx context.Context, contract *models.Contract, propertyID uint) (*models.ContractProperty, error) {
	link, err := s.repos.Contract.GetLink(ctx, contract.ID, propertyID)
	if err != nil {
		return nil, apperrors.Lookup(err, "contract property", propertyID)
	}
	if !link.IsActive {
		return nil, apperrors.NotFound("contract property", propertyID)
	}
	return link, nil
}

func feeString(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.StringFixed(2)
	return &s
}
