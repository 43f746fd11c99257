package controllers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PropFox/internal/pkg/apperrors"
	"github.com/ManuelReschke/PropFox/internal/pkg/audit"
	"github.com/ManuelReschke/PropFox/internal/pkg/billing"
	"github.com/ManuelReschke/PropFox/internal/pkg/scheduling"
	"github.com/ManuelReschke/PropFox/internal/pkg/timewindow"
	"github.com/ManuelReschke/PropFox/internal/pkg/usercontext"
)

// API bundles the engines behind the REST handlers.
type API struct {
	Billing    *billing.Service
	Scheduling *scheduling.Service
	Feed       *audit.Feed
}

// NewAPI creates the handler set
func NewAPI(b *billing.Service, s *scheduling.Service, f *audit.Feed) *API {
	return &API{Billing: b, Scheduling: s, Feed: f}
}

var errNoActor = errors.New("missing caller context")

// actor returns the caller resolved by middleware.ActorMiddleware.
func actor(c *fiber.Ctx) (usercontext.Actor, error) {
	a, ok := usercontext.GetActor(c)
	if !ok {
		return usercontext.Actor{}, errNoActor
	}
	return a, nil
}

// paramError is a path or query parameter that is not an ID
type paramError struct {
	name string
	raw  string
}

func (e *paramError) Error() string {
	return fmt.Sprintf("invalid %s %q", e.name, e.raw)
}

func paramID(c *fiber.Ctx, name string) (uint, error) {
	raw := c.Params(name)
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || v == 0 {
		return 0, &paramError{name: name, raw: raw}
	}
	return uint(v), nil
}

func queryID(c *fiber.Ctx, name string) (uint, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, &paramError{name: name, raw: raw}
	}
	return uint(v), nil
}

// parseDay accepts YYYY-MM-DD or RFC3339 and returns the UTC calendar day.
func parseDay(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := timewindow.ParseDate(raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return timewindow.DateOf(t.UTC()), nil
	}
	return time.Time{}, apperrors.FieldValidation(field, "invalid %s %q, expected YYYY-MM-DD", field, raw)
}

// parseOptionalDay is parseDay for fields that may be omitted.
func parseOptionalDay(field, raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	t, err := parseDay(field, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// parseInstant accepts RFC3339 timestamps, and bare dates as midnight UTC.
func parseInstant(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := timewindow.ParseDate(raw); err == nil {
		return t, nil
	}
	return time.Time{}, apperrors.FieldValidation(field, "invalid %s %q, expected RFC3339", field, raw)
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":   "bad_request",
		"message": "Invalid request body: " + err.Error(),
	})
}

// respondError maps engine errors onto HTTP statuses.
func respondError(c *fiber.Ctx, err error) error {
	var (
		notFound  *apperrors.NotFoundError
		invalid   *apperrors.ValidationError
		forbidden *apperrors.ForbiddenError
		schedule  *apperrors.InvalidScheduleError
		param     *paramError
	)

	switch {
	case errors.Is(err, errNoActor):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": err.Error(),
		})
	case errors.As(err, &param):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "bad_request",
			"message": param.Error(),
			"field":   param.name,
		})
	case errors.As(err, &notFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "not_found",
			"message": notFound.Error(),
		})
	case errors.As(err, &invalid):
		body := fiber.Map{
			"error":   "validation_failed",
			"message": invalid.Message,
		}
		if invalid.Field != "" {
			body["field"] = invalid.Field
		}
		if len(invalid.Conflicts) > 0 {
			body["conflicts"] = invalid.Conflicts
		}
		return c.Status(fiber.StatusUnprocessableEntity).JSON(body)
	case errors.As(err, &schedule):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":   "invalid_schedule",
			"message": schedule.Error(),
		})
	case errors.As(err, &forbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "forbidden",
			"message": forbidden.Error(),
		})
	}

	log.Errorf("[API] %s %s failed: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":   "internal_server_error",
		"message": "An unexpected error occurred",
	})
}
