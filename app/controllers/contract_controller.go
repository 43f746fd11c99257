package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/PropFox/app/models"
	"github.com/ManuelReschke/PropFox/internal/pkg/billing"
	"github.com/ManuelReschke/PropFox/internal/pkg/usercontext"
)

type contractRequest struct {
	CustomerID  uint            `json:"customer_id"`
	PricingMode string          `json:"pricing_mode"`
	MonthlyFee  decimal.Decimal `json:"monthly_fee"`
	BillingDay  int             `json:"billing_day"`
	StartDate   string          `json:"start_date"`
	EndDate     string          `json:"end_date"`
	Notes       string          `json:"notes"`
}

type contractUpdateRequest struct {
	PricingMode *string          `json:"pricing_mode"`
	MonthlyFee  *decimal.Decimal `json:"monthly_fee"`
	BillingDay  *int             `json:"billing_day"`
	EndDate     string           `json:"end_date"`
	Notes       *string          `json:"notes"`
}

type linkPropertyRequest struct {
	PropertyID uint             `json:"property_id"`
	Fee        *decimal.Decimal `json:"fee"`
}

type propertyFeeRequest struct {
	// null clears the fee (FLAT_MONTHLY only)
	Fee decimal.NullDecimal `json:"fee"`
}

// HandleCreateCustomer registers a customer of the calling provider
func (a *API) HandleCreateCustomer(c *fiber.Ctx) error {
	caller, err := actor(c)
	if err != nil {
		return respondError(c, err)
	}
	var in billing.CustomerInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, err)
	}
	customer, err := a.Billing.CreateCustomer(c.UserContext(), caller, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(customer)
}

// HandleCreateContract creates an ACTIVE contract
func (a *API) HandleCreateContract(c *fiber.Ctx) error {
	caller, err := actor(c)
	if err != nil {
		return respondError(c, err)
	}
	var req contractRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}

	in := billing.ContractInput{
		CustomerID:  req.CustomerID,
		PricingMode: req.PricingMode,
		MonthlyFee:  req.MonthlyFee,
		BillingDay:  req.BillingDay,
		Notes:       req.Notes,
	}
	if req.StartDate != "" {
		if in.StartDate, err = parseDay("start_date", req.StartDate); err != nil {
			return respondError(c, err)
		}
	}
	if in.EndDate, err = parseOptionalDay("end_date", req.EndDate); err != nil {
		return respondError(c, err)
	}

	contract, err := a.Billing.CreateContract(c.UserContext(), caller, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(contract)
}

// HandleUpdateContract changes the mutable contract terms
func (a *API) HandleUpdateContract(c *fiber.Ctx) error {
	caller, err := actor(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req contractUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}

	in := billing.ContractUpdate{
		PricingMode: req.PricingMode,
		MonthlyFee:  req.MonthlyFee,
		BillingDay:  req.BillingDay,
		Notes:       req.Notes,
	}
	if in.EndDate, err = parseOptionalDay("end_date", req.EndDate); err != nil {
		return respondError(c, err)
	}

	contract, err := a.Billing.UpdateContract(c.UserContext(), caller, id, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(contract)
}

func (a *API) HandlePauseContract(c *fiber.Ctx) error {
	return a.contractTransition(c, a.Billing.Pause)
}

func (a *API) HandleResumeContract(c *fiber.Ctx) error {
	return a.contractTransition(c, a.Billing.Resume)
}

func (a *API) HandleCancelContract(c *fiber.Ctx) error {
	return a.contractTransition(c, a.Billing.Cancel)
}

type contractAction func(ctx context.Context, actor usercontext.Actor, id uint) (*models.Contract, error)

func (a *API) contractTransition(c *fiber.Ctx, action contractAction) error {
	caller, err := actor(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	contract, err := action(c.UserContext(), caller, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(contract)
}

// HandleLinkProperty links a property of the contract's customer
func (a *API) HandleLinkProperty(c *fiber.Ctx) error {
	caller, err := actor(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req linkPropertyRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	link, err := a.Billing.LinkProperty(c.UserContext(), caller, id, req.PropertyID, req.Fee)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(link)
}

// HandleUnlinkProperty deactivates a contract-property link
func (a *API) HandleUnlinkProperty(c *fiber.Ctx) error {
	caller, err := actor(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	propertyID, err := paramID(c, "propertyId")
	if err != nil {
		return respondError(c, err)
	}
	link, err := a.Billing.UnlinkProperty(c.UserContext(), caller, id, propertyID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(link)
}

// HandleSetPropertyFee sets or clears the fee of a linked property
func (a *API) HandleSetPropertyFee(c *fiber.Ctx) error {
	caller, err := actor(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	propertyID, err := paramID(c, "propertyId")
	if err != nil {
		return respondError(c, err)
	}
	var req propertyFeeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	link, err := a.Billing.SetPropertyFee(c.UserContext(), caller, id, propertyID, req.Fee)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(link)
}

// HandleMonthlyFee returns the current monthly fee breakdown
func (a *API) HandleMonthlyFee(c *fiber.Ctx) error {
	caller, err := actor(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	breakdown, err := a.Billing.MonthlyFee(c.UserContext(), caller, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(breakdown)
}
