package audit

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/PropFox/app/models"
)

// FieldChange is one tracked field that differs between two snapshots.
type FieldChange struct {
	Field       string
	ChangeType  string
	Old         *string
	New         *string
	Description string
}

// Detector finds the tracked field changes between two snapshots of a subject.
type Detector interface {
	Detect(old, new interface{}) ([]FieldChange, error)
}

// DetectorFunc adapts a typed comparison to Detector. Snapshots may be passed
// as T or *T.
type DetectorFunc[T any] func(old, new *T) []FieldChange

func (f DetectorFunc[T]) Detect(old, new interface{}) ([]FieldChange, error) {
	o, err := snapshot[T](old)
	if err != nil {
		return nil, err
	}
	n, err := snapshot[T](new)
	if err != nil {
		return nil, err
	}
	return f(o, n), nil
}

func snapshot[T any](v interface{}) (*T, error) {
	switch s := v.(type) {
	case *T:
		if s == nil {
			return nil, fmt.Errorf("nil %T snapshot", s)
		}
		return s, nil
	case T:
		return &s, nil
	default:
		var zero T
		return nil, fmt.Errorf("expected %T snapshot, got %T", zero, v)
	}
}

// DetectJobChanges compares status, worker, schedule, notes, price and photo counts.
func DetectJobChanges(old, new *models.Job) []FieldChange {
	var out []FieldChange

	if old.Status != new.Status {
		out = append(out, changed("status", models.ChangeStatusChanged, old.Status, new.Status,
			fmt.Sprintf("Status changed from %s to %s", old.Status, new.Status)))
	}

	ow, nw := workerID(old.AssignedWorkerID), workerID(new.AssignedWorkerID)
	switch {
	case ow == nw:
	case ow == 0:
		out = append(out, FieldChange{
			Field: "assigned_worker_id", ChangeType: models.ChangeWorkerAssigned,
			New: ptr(strconv.FormatUint(uint64(nw), 10)), Description: fmt.Sprintf("Worker %d assigned", nw),
		})
	case nw == 0:
		out = append(out, FieldChange{
			Field: "assigned_worker_id", ChangeType: models.ChangeWorkerUnassigned,
			Old: ptr(strconv.FormatUint(uint64(ow), 10)), Description: fmt.Sprintf("Worker %d unassigned", ow),
		})
	default:
		out = append(out, changed("assigned_worker_id", models.ChangeWorkerChanged,
			strconv.FormatUint(uint64(ow), 10), strconv.FormatUint(uint64(nw), 10),
			fmt.Sprintf("Worker changed from %d to %d", ow, nw)))
	}

	if od, nd := formatDate(old.ScheduledDate), formatDate(new.ScheduledDate); od != nd {
		out = append(out, nullable("scheduled_date", models.ChangeScheduleChanged, od, nd, "Scheduled date changed"))
	}
	if old.StartTime != new.StartTime {
		out = append(out, nullable("start_time", models.ChangeScheduleChanged, old.StartTime, new.StartTime, "Start time changed"))
	}
	if old.EndTime != new.EndTime {
		out = append(out, nullable("end_time", models.ChangeScheduleChanged, old.EndTime, new.EndTime, "End time changed"))
	}
	if old.CompletionNotes != new.CompletionNotes {
		out = append(out, nullable("completion_notes", models.ChangeNotesUpdated, old.CompletionNotes, new.CompletionNotes, "Completion notes updated"))
	}
	if op, np := formatMoney(old.Price), formatMoney(new.Price); op != np {
		out = append(out, nullable("price", models.ChangePriceChanged, op, np, "Price changed"))
	}
	out = appendPhotoChange(out, "before_photos", len(old.BeforePhotos), len(new.BeforePhotos))
	out = appendPhotoChange(out, "after_photos", len(old.AfterPhotos), len(new.AfterPhotos))

	return out
}

// DetectPropertyChanges compares name, address and the active flag.
func DetectPropertyChanges(old, new *models.Property) []FieldChange {
	var out []FieldChange
	if old.Name != new.Name {
		out = append(out, changed("name", models.ChangeUpdated, old.Name, new.Name, "Name changed"))
	}
	if old.Address != new.Address {
		out = append(out, nullable("address", models.ChangeUpdated, old.Address, new.Address, "Address changed"))
	}
	if old.IsActive != new.IsActive {
		out = append(out, changed("is_active", models.ChangeStatusChanged,
			strconv.FormatBool(old.IsActive), strconv.FormatBool(new.IsActive), activeDescription(new.IsActive)))
	}
	return out
}

// DetectWorkerChanges compares name, type and the active flag.
func DetectWorkerChanges(old, new *models.Worker) []FieldChange {
	var out []FieldChange
	if old.Name != new.Name {
		out = append(out, changed("name", models.ChangeUpdated, old.Name, new.Name, "Name changed"))
	}
	if old.Type != new.Type {
		out = append(out, changed("type", models.ChangeUpdated, old.Type, new.Type,
			fmt.Sprintf("Type changed from %s to %s", old.Type, new.Type)))
	}
	if old.IsActive != new.IsActive {
		out = append(out, changed("is_active", models.ChangeStatusChanged,
			strconv.FormatBool(old.IsActive), strconv.FormatBool(new.IsActive), activeDescription(new.IsActive)))
	}
	return out
}

func appendPhotoChange(out []FieldChange, field string, oldCount, newCount int) []FieldChange {
	if oldCount == newCount {
		return out
	}
	changeType := models.ChangeUpdated
	desc := fmt.Sprintf("%s reduced from %d to %d", field, oldCount, newCount)
	if newCount > oldCount {
		changeType = models.ChangePhotosAdded
		desc = fmt.Sprintf("%d %s added", newCount-oldCount, field)
	}
	return append(out, changed(field, changeType, strconv.Itoa(oldCount), strconv.Itoa(newCount), desc))
}

func activeDescription(active bool) string {
	if active {
		return "Activated"
	}
	return "Deactivated"
}

func changed(field, changeType, old, new, desc string) FieldChange {
	return FieldChange{Field: field, ChangeType: changeType, Old: ptr(old), New: ptr(new), Description: desc}
}

// nullable maps empty strings to NULL values.
func nullable(field, changeType, old, new, desc string) FieldChange {
	fc := FieldChange{Field: field, ChangeType: changeType, Description: desc}
	if old != "" {
		fc.Old = ptr(old)
	}
	if new != "" {
		fc.New = ptr(new)
	}
	return fc
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.DateOnly)
}

func formatMoney(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(2)
}

func ptr(s string) *string {
	return &s
}
