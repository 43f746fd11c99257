package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/PropFox/internal/pkg/billing"
)

type generateInvoiceRequest struct {
	ContractID  uint   `json:"contract_id"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
}

type chargesRequest struct {
	AdditionalCharges decimal.Decimal `json:"additional_charges"`
	Notes             string          `json:"notes"`
}

// HandleGenerateInvoice issues the cleaning invoice of a contract period.
// Generating the same period twice returns the existing invoice.
func (a *API) HandleGenerateInvoice(c *fiber.Ctx) error {
	caller, err := actor(c)
	if err != nil {
		return respondError(c, err)
	}
	var req generateInvoiceRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	start, err := parseDay("period_start", req.PeriodStart)
	if err != nil {
		return respondError(c, err)
	}
	end, err := parseDay("period_end", req.PeriodEnd)
	if err != nil {
		return respondError(c, err)
	}

	invoice, err := a.Billing.GenerateInvoice(c.UserContext(), caller, req.ContractID, start, end)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(invoice)
}

func (a *API) HandleMarkInvoicePaid(c *fiber.Ctx) error {
	caller, err := actor(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var in billing.PaymentInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, err)
	}
	invoice, err := a.Billing.MarkPaid(c.UserContext(), caller, id, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(invoice)
}

func (a *API) HandleAdjustCharges(c *fiber.Ctx) error {
	caller, err := actor(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req chargesRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	invoice, err := a.Billing.AdjustCharges(c.UserContext(), caller, id, req.AdditionalCharges, req.Notes)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(invoice)
}

// HandleGenerateJobInvoice bills a completed maintenance job
func (a *API) HandleGenerateJobInvoice(c *fiber.Ctx) error {
	caller, err := actor(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	invoice, err := a.Billing.GenerateJobInvoice(c.UserContext(), caller, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(invoice)
}
