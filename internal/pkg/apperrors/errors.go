package apperrors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// NotFoundError is returned when an entity does not exist or is not owned by
// the caller's tenant/provider. Both cases produce the same message.
type NotFoundError struct {
	Entity string
	ID     uint
}

func (e *NotFoundError) Error() string {
	if e.ID == 0 {
		return fmt.Sprintf("%s not found", e.Entity)
	}
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// SlotConflict describes an existing booking that blocks an assignment.
type SlotConflict struct {
	JobID     uint   `json:"job_id"`
	Title     string `json:"title"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// ValidationError covers state-machine violations, missing fields and malformed ranges.
type ValidationError struct {
	Message   string
	Field     string
	Conflicts []SlotConflict
}

func (e *ValidationError) Error() string {
	if len(e.Conflicts) == 0 {
		return e.Message
	}
	slots := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		slots = append(slots, fmt.Sprintf("job %d %s %s-%s", c.JobID, c.Date, c.StartTime, c.EndTime))
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(slots, ", "))
}

// ForbiddenError is returned for cross-tenant access attempts.
type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string {
	if e.Message == "" {
		return "forbidden"
	}
	return e.Message
}

// InvalidScheduleError is returned when a check-in is not after the checkout.
type InvalidScheduleError struct {
	Checkout time.Time
	Checkin  time.Time
}

func (e *InvalidScheduleError) Error() string {
	return fmt.Sprintf("invalid schedule: check-in %s must be after checkout %s",
		e.Checkin.UTC().Format(time.RFC3339), e.Checkout.UTC().Format(time.RFC3339))
}

func NotFound(entity string, id uint) error {
	return &NotFoundError{Entity: entity, ID: id}
}

func Validation(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func FieldValidation(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Conflict builds the scheduling conflict error listing the blocking slots.
func Conflict(conflicts []SlotConflict) error {
	return &ValidationError{Message: "worker has conflicting bookings", Conflicts: conflicts}
}

func Forbidden(format string, args ...interface{}) error {
	return &ForbiddenError{Message: fmt.Sprintf(format, args...)}
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsForbidden(err error) bool {
	var target *ForbiddenError
	return errors.As(err, &target)
}

func IsInvalidSchedule(err error) bool {
	var target *InvalidScheduleError
	return errors.As(err, &target)
}

// ConflictsOf returns the slot conflicts carried by err, if any.
func ConflictsOf(err error) []SlotConflict {
	var target *ValidationError
	if errors.As(err, &target) {
		return target.Conflicts
	}
	return nil
}
