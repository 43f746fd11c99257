package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/PropFox/app/models"
	"github.com/ManuelReschke/PropFox/internal/pkg/apperrors"
	"github.com/ManuelReschke/PropFox/internal/pkg/scheduling"
	"github.com/ManuelReschke/PropFox/internal/pkg/usercontext"
)

type assignRequest struct {
	WorkerID     uint   `json:"worker_id"`
	ContractorID uint   `json:"contractor_id"`
	Date         string `json:"date"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
}

func (r assignRequest) slot() (scheduling.Slot, error) {
	date, err := parseDay("date", r.Date)
	if err != nil {
		return scheduling.Slot{}, err
	}
	return scheduling.Slot{Date: date, StartTime: r.StartTime, EndTime: r.EndTime}, nil
}

type quoteRequest struct {
	QuotedPrice decimal.Decimal `json:"quoted_price"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type jobAction func(ctx context.Context, actor usercontext.Actor, id uint) (*models.Job, error)

func (a *API) jobTransition(c *fiber.Ctx, action jobAction) error {
	caller, err := actor(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	job, err := action(c.UserContext(), caller, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(job)
}

// HandleCreateJob opens a cleaning or maintenance job
func (a *API) HandleCreateJob(c *fiber.Ctx) error {
	caller, err := actor(c)
	if err != nil {
		return respondError(c, err)
	}
	var in scheduling.JobInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, err)
	}
	job, err := a.Scheduling.CreateJob(c.UserContext(), caller, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(job)
}

func (a *API) HandleRequestQuote(c *fiber.Ctx) error {
	return a.jobTransition(c, a.Scheduling.RequestQuote)
}

func (a *API) HandleSendQuote(c *fiber.Ctx) error {
	var req quoteRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	return a.jobTransition(c, func(ctx context.Context, caller usercontext.Actor, id uint) (*models.Job, error) {
		return a.Scheduling.SendQuote(ctx, caller, id, req.QuotedPrice)
	})
}

func (a *API) HandleApproveQuote(c *fiber.Ctx) error {
	return a.jobTransition(c, a.Scheduling.ApproveQuote)
}

// HandleAssignInternal books one of the provider's workers. Overlapping
// bookings come back as 422 with the blocking slots in "conflicts".
func (a *API) HandleAssignInternal(c *fiber.Ctx) error {
	var req assignRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	return a.jobTransition(c, func(ctx context.Context, caller usercontext.Actor, id uint) (*models.Job, error) {
		if req.WorkerID == 0 {
			return nil, apperrors.FieldValidation("worker_id", "worker_id is required")
		}
		slot, err := req.slot()
		if err != nil {
			return nil, err
		}
		return a.Scheduling.AssignInternal(ctx, caller, id, req.WorkerID, slot)
	})
}

func (a *API) HandleAssignExternal(c *fiber.Ctx) error {
	var req assignRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	return a.jobTransition(c, func(ctx context.Context, caller usercontext.Actor, id uint) (*models.Job, error) {
		if req.ContractorID == 0 {
			return nil, apperrors.FieldValidation("contractor_id", "contractor_id is required")
		}
		slot, err := req.slot()
		if err != nil {
			return nil, err
		}
		return a.Scheduling.AssignExternal(ctx, caller, id, req.ContractorID, slot)
	})
}

func (a *API) HandleUnassign(c *fiber.Ctx) error {
	return a.jobTransition(c, a.Scheduling.UnassignWorker)
}

func (a *API) HandleStartJob(c *fiber.Ctx) error {
	return a.jobTransition(c, a.Scheduling.Start)
}

func (a *API) HandleCompleteJob(c *fiber.Ctx) error {
	var in scheduling.CompletionInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, err)
	}
	return a.jobTransition(c, func(ctx context.Context, caller usercontext.Actor, id uint) (*models.Job, error) {
		return a.Scheduling.Complete(ctx, caller, id, in)
	})
}

func (a *API) HandleCancelJob(c *fiber.Ctx) error {
	var req cancelRequest
	// the reason is optional; an empty body is fine
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
	}
	return a.jobTransition(c, func(ctx context.Context, caller usercontext.Actor, id uint) (*models.Job, error) {
		return a.Scheduling.Cancel(ctx, caller, id, req.Reason)
	})
}

func (a *API) HandleDeleteJob(c *fiber.Ctx) error {
	caller, err := actor(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := a.Scheduling.Delete(c.UserContext(), caller, id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleWorkerAvailability lists the bookings of a worker that overlap the
// requested slot. Query: date, start_time, end_time, exclude_job_id.
func (a *API) HandleWorkerAvailability(c *fiber.Ctx) error {
	caller, err := actor(c)
	if err != nil {
		return respondError(c, err)
	}
	workerID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	date, err := parseDay("date", c.Query("date"))
	if err != nil {
		return respondError(c, err)
	}
	exclude, err := queryID(c, "exclude_job_id")
	if err != nil {
		return respondError(c, err)
	}

	slot := scheduling.Slot{Date: date, StartTime: c.Query("start_time"), EndTime: c.Query("end_time")}
	conflicts, err := a.Scheduling.CheckAvailability(c.UserContext(), caller, workerID, slot, exclude)
	if err != nil {
		return respondError(c, err)
	}
	if conflicts == nil {
		conflicts = []apperrors.SlotConflict{}
	}
	return c.JSON(fiber.Map{
		"worker_id": workerID,
		"available": len(conflicts) == 0,
		"conflicts": conflicts,
	})
}
