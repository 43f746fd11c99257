package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PropFox/internal/pkg/scheduling"
)

type stayRequest struct {
	PropertyID  uint   `json:"property_id"`
	GuestName   string `json:"guest_name"`
	Checkout    string `json:"checkout"`
	NextCheckin string `json:"next_checkin"`
}

// HandleRecordStay stores a checkout and the following check-in
func (a *API) HandleRecordStay(c *fiber.Ctx) error {
	caller, err := actor(c)
	if err != nil {
		return respondError(c, err)
	}
	var req stayRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	checkout, err := parseInstant("checkout", req.Checkout)
	if err != nil {
		return respondError(c, err)
	}
	checkin, err := parseInstant("next_checkin", req.NextCheckin)
	if err != nil {
		return respondError(c, err)
	}

	entry, err := a.Scheduling.RecordStay(c.UserContext(), caller, scheduling.StayInput{
		PropertyID:  req.PropertyID,
		GuestName:   req.GuestName,
		Checkout:    checkout,
		NextCheckin: checkin,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(entry)
}

// HandleNeedsCleaning lists entries in [from, to) without a live cleaning job
func (a *API) HandleNeedsCleaning(c *fiber.Ctx) error {
	caller, err := actor(c)
	if err != nil {
		return respondError(c, err)
	}
	from, err := parseInstant("from", c.Query("from"))
	if err != nil {
		return respondError(c, err)
	}
	to, err := parseInstant("to", c.Query("to"))
	if err != nil {
		return respondError(c, err)
	}
	entries, err := a.Scheduling.NeedsCleaning(c.UserContext(), caller, from, to)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"entries": entries,
		"count":   len(entries),
	})
}

func (a *API) HandleScheduleCleaning(c *fiber.Ctx) error {
	caller, err := actor(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	job, err := a.Scheduling.ScheduleCleaning(c.UserContext(), caller, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(job)
}
