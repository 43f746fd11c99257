package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PropFox/app/models"
	"github.com/ManuelReschke/PropFox/app/repository"
	"github.com/ManuelReschke/PropFox/internal/pkg/apperrors"
	"github.com/ManuelReschke/PropFox/internal/pkg/audit"
	"github.com/ManuelReschke/PropFox/internal/pkg/timewindow"
	"github.com/ManuelReschke/PropFox/internal/pkg/usercontext"
)

// StayInput records a guest checkout and the next check-in on a property.
type StayInput struct {
	PropertyID  uint      `json:"property_id" validate:"required"`
	GuestName   string    `json:"guest_name" validate:"max=150"`
	Checkout    time.Time `json:"checkout"`
	NextCheckin time.Time `json:"next_checkin"`
}

// RecordStay creates the calendar entry for a checkout, or updates the entry
// already recorded for the same checkout. The cleaning window is derived.
func (s *Service) RecordStay(ctx context.Context, actor usercontext.Actor, in StayInput) (*models.CalendarEntry, error) {
	in.GuestName = strings.TrimSpace(in.GuestName)
	if err := s.validate.Struct(in); err != nil {
		return nil, apperrors.FromValidator(err)
	}
	checkout, checkin := in.Checkout.UTC(), in.NextCheckin.UTC()
	if _, err := timewindow.CleaningWindow(checkout, checkin); err != nil {
		return nil, err
	}

	property, err := s.repos.Property.GetForProvider(ctx, in.PropertyID, actor.ProviderID)
	if err != nil {
		return nil, apperrors.Lookup(err, "property", in.PropertyID)
	}

	entry, err := s.repos.Calendar.FindByCheckout(ctx, property.ID, checkout)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		entry = &models.CalendarEntry{ProviderID: actor.ProviderID, PropertyID: property.ID, Checkout: checkout}
	case err != nil:
		return nil, fmt.Errorf("look up calendar entry: %w", err)
	default:
		if entry.CleaningJobID != nil && !entry.NextCheckin.Equal(checkin) {
			log.Warnf("[Scheduling] Check-in of entry %d moved while cleaning job %d exists", entry.ID, *entry.CleaningJobID)
		}
	}
	entry.GuestName = in.GuestName
	entry.NextCheckin = checkin

	if err := s.repos.Calendar.Save(ctx, entry); err != nil {
		return nil, fmt.Errorf("save calendar entry: %w", err)
	}
	if entry.Window().IsEmpty() {
		log.Warnf("[Scheduling] Entry %d on property %d leaves no time to clean", entry.ID, entry.PropertyID)
	}
	return entry, nil
}

// NeedsCleaning lists the provider's entries whose window starts in
// [from, to) and that have no live cleaning job.
func (s *Service) NeedsCleaning(ctx context.Context, actor usercontext.Actor, from, to time.Time) ([]models.CalendarEntry, error) {
	if !to.After(from) {
		return nil, apperrors.FieldValidation("to", "to must be after from")
	}
	entries, err := s.repos.Calendar.NeedsCleaning(ctx, actor.ProviderID, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("list entries needing cleaning: %w", err)
	}
	return entries, nil
}

// ScheduleCleaning creates the PENDING cleaning job of a calendar entry and
// proposes a slot at the start of its window.
func (s *Service) ScheduleCleaning(ctx context.Context, actor usercontext.Actor, entryID uint) (*models.Job, error) {
	entry, err := s.repos.Calendar.GetForProvider(ctx, entryID, actor.ProviderID)
	if err != nil {
		return nil, apperrors.Lookup(err, "calendar entry", entryID)
	}
	window := entry.Window()
	if window.IsEmpty() {
		return nil, apperrors.FieldValidation("clean_window", "entry %d has an empty cleaning window", entry.ID)
	}
	if entry.CleaningJobID != nil {
		existing, err := s.repos.Job.GetForProvider(ctx, *entry.CleaningJobID, actor.ProviderID)
		if err == nil && existing.Status != models.JobStatusCancelled {
			return nil, apperrors.Validation("entry %d already has cleaning job %d", entry.ID, existing.ID)
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("load cleaning job: %w", err)
		}
	}
	property, err := s.repos.Property.GetForProvider(ctx, entry.PropertyID, actor.ProviderID)
	if err != nil {
		return nil, apperrors.Lookup(err, "property", entry.PropertyID)
	}

	date, start, end := proposeSlot(window, s.cleaningDuration)
	entryRef := entry.ID
	job := &models.Job{
		Kind:            models.JobKindCleaning,
		ProviderID:      actor.ProviderID,
		PropertyID:      property.ID,
		CustomerID:      property.CustomerID,
		CalendarEntryID: &entryRef,
		Title:           "Turnover cleaning " + property.Name,
		Description:     cleaningDescription(entry),
		Status:          models.JobStatusPending,
		ScheduledDate:   &date,
		StartTime:       start,
		EndTime:         end,
	}
	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.Job.Create(ctx, job); err != nil {
			return err
		}
		return tx.Calendar.SetCleaningJob(ctx, entry.ID, job.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("schedule cleaning for entry %d: %w", entry.ID, err)
	}

	if err := s.recorder.RecordChange(ctx, audit.Change{
		Kind:        models.SubjectProperty,
		SubjectID:   property.ID,
		ChangeType:  models.ChangeCleaningScheduled,
		Description: fmt.Sprintf("Cleaning scheduled for %s", window.Start.UTC().Format("2006-01-02 15:04")),
		Metadata: map[string]interface{}{
			"job_id":            job.ID,
			"calendar_entry_id": entry.ID,
			"window_start":      window.Start.UTC().Format(time.RFC3339),
			"window_end":        window.End.UTC().Format(time.RFC3339),
		},
		ActorID: actor.ActorID(),
	}); err != nil {
		log.Errorf("[Scheduling] History entry not recorded: %v", err)
	}
	log.Infof("[Scheduling] Cleaning job %d created for entry %d", job.ID, entry.ID)
	return job, nil
}

// proposeSlot starts at the window start and lasts d, cut at the window end
// and at midnight.
func proposeSlot(w timewindow.Window, d time.Duration) (time.Time, string, string) {
	start := w.Start.UTC()
	date := timewindow.DateOf(start)
	dayEnd := date.Add(24 * time.Hour)

	end := start.Add(d)
	if w.End.Before(end) {
		end = w.End.UTC()
	}
	if end.After(dayEnd) {
		end = dayEnd
	}

	startClock := timewindow.ClockOf(start)
	endClock := timewindow.ClockOf(end)
	if end.Equal(dayEnd) {
		endClock = timewindow.Clock(24 * 60)
	}
	if endClock <= startClock {
		return date, "", ""
	}
	return date, startClock.String(), endClock.String()
}

func cleaningDescription(e *models.CalendarEntry) string {
	guest := e.GuestName
	if guest == "" {
		guest = "guest"
	}
	return fmt.Sprintf("Checkout of %s at %s, next check-in at %s.", guest,
		e.Checkout.UTC().Format("2006-01-02 15:04"), e.NextCheckin.UTC().Format("2006-01-02 15:04"))
}
