package controllers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PropFox/app/models"
	"github.com/ManuelReschke/PropFox/internal/pkg/apperrors"
	"github.com/ManuelReschke/PropFox/internal/pkg/audit"
)

// HandleGlobalActivity returns the tenant's merged property, job and worker
// history, newest first.
// Query: activity_type, property_id, worker_id, from_date, to_date (inclusive), limit.
func (a *API) HandleGlobalActivity(c *fiber.Ctx) error {
	caller, err := actor(c)
	if err != nil {
		return respondError(c, err)
	}
	filter, err := activityFilter(c)
	if err != nil {
		return respondError(c, err)
	}
	activities, err := a.Feed.GlobalActivity(c.UserContext(), caller, filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"activities": activities,
		"count":      len(activities),
	})
}

func activityFilter(c *fiber.Ctx) (audit.Filter, error) {
	var (
		filter audit.Filter
		err    error
	)

	switch kind := models.SubjectKind(strings.ToUpper(strings.TrimSpace(c.Query("activity_type")))); kind {
	case "":
	case models.SubjectProperty, models.SubjectJob, models.SubjectWorker:
		filter.ActivityType = kind
	default:
		return filter, apperrors.FieldValidation("activity_type", "activity_type must be one of PROPERTY, JOB, WORKER")
	}

	if filter.PropertyID, err = queryID(c, "property_id"); err != nil {
		return filter, err
	}
	if filter.WorkerID, err = queryID(c, "worker_id"); err != nil {
		return filter, err
	}
	if filter.From, err = parseOptionalDay("from_date", c.Query("from_date")); err != nil {
		return filter, err
	}
	if filter.To, err = parseOptionalDay("to_date", c.Query("to_date")); err != nil {
		return filter, err
	}
	if filter.To != nil {
		// to_date names the last day included
		end := filter.To.AddDate(0, 0, 1)
		filter.To = &end
	}
	if raw := c.Query("limit"); raw != "" {
		n, convErr := strconv.Atoi(raw)
		if convErr != nil || n < 1 {
			return filter, apperrors.FieldValidation("limit", "limit must be a positive number")
		}
		filter.Limit = n
	}
	return filter, nil
}
