// Package audit keeps the append-only history of properties, jobs and workers
// and serves the merged activity feed built from it.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/ManuelReschke/PropFox/app/models"
	"github.com/ManuelReschke/PropFox/app/repository"
	"github.com/ManuelReschke/PropFox/internal/pkg/apperrors"
	"github.com/ManuelReschke/PropFox/internal/pkg/jobqueue"
)

// Change is a single history line to append.
type Change struct {
	Kind        models.SubjectKind
	SubjectID   uint
	ChangeType  string
	Field       string
	Old         *string
	New         *string
	Description string
	Metadata    map[string]interface{}
	ActorID     *uint
}

// Recorder appends history entries. Writes are best-effort: a failed append
// is logged and handed to the job queue for replay, never returned.
type Recorder struct {
	history   repository.HistoryRepository
	queue     jobqueue.Enqueuer
	detectors map[models.SubjectKind]Detector
	now       func() time.Time
}

// NewRecorder creates a recorder with the job, property and worker detectors
// installed. queue may be nil, in which case failed appends are only logged.
func NewRecorder(history repository.HistoryRepository, queue jobqueue.Enqueuer) *Recorder {
	return &Recorder{
		history: history,
		queue:   queue,
		detectors: map[models.SubjectKind]Detector{
			models.SubjectJob:      DetectorFunc[models.Job](DetectJobChanges),
			models.SubjectProperty: DetectorFunc[models.Property](DetectPropertyChanges),
			models.SubjectWorker:   DetectorFunc[models.Worker](DetectWorkerChanges),
		},
		now: time.Now,
	}
}

// RecordChange appends one entry. Only a missing subject or change type is an
// error; storage failures go to the outbox.
func (r *Recorder) RecordChange(ctx context.Context, c Change) error {
	entry, err := r.entry(c)
	if err != nil {
		return err
	}
	r.append(ctx, entry)
	return nil
}

// DiffAndRecord compares two snapshots of a subject with the kind's detector
// and appends one entry per changed field. Entries from one call share a
// correlation id in their metadata.
func (r *Recorder) DiffAndRecord(ctx context.Context, kind models.SubjectKind, subjectID uint, old, new interface{}, actorID *uint) []*models.HistoryEntry {
	d, ok := r.detectors[kind]
	if !ok {
		log.Errorf("[Audit] No change detector for %s", kind)
		return nil
	}
	changes, err := d.Detect(old, new)
	if err != nil {
		log.Errorf("[Audit] Diff of %s %d failed: %v", kind, subjectID, err)
		return nil
	}
	if len(changes) == 0 {
		return nil
	}

	correlation := uuid.New().String()
	batch := make([]Change, 0, len(changes))
	for _, fc := range changes {
		batch = append(batch, Change{
			Kind:        kind,
			SubjectID:   subjectID,
			ChangeType:  fc.ChangeType,
			Field:       fc.Field,
			Old:         fc.Old,
			New:         fc.New,
			Description: fc.Description,
			Metadata:    map[string]interface{}{"correlation_id": correlation},
			ActorID:     actorID,
		})
	}
	entries := r.entries(batch...)
	r.append(ctx, entries...)
	return entries
}

// DiffJob records the job-side diff and mirrors worker transitions onto the
// worker subjects involved.
func (r *Recorder) DiffJob(ctx context.Context, old, new *models.Job, actorID *uint) []*models.HistoryEntry {
	entries := r.DiffAndRecord(ctx, models.SubjectJob, new.ID, old, new, actorID)

	oldWorker, newWorker := workerID(old.AssignedWorkerID), workerID(new.AssignedWorkerID)
	if oldWorker == newWorker {
		return entries
	}

	var mirrors []Change
	meta := map[string]interface{}{"job_id": new.ID}
	if oldWorker != 0 {
		mirrors = append(mirrors, Change{
			Kind:        models.SubjectWorker,
			SubjectID:   oldWorker,
			ChangeType:  models.ChangeJobUnassigned,
			Description: fmt.Sprintf("Unassigned from job %q", new.Title),
			Metadata:    meta,
			ActorID:     actorID,
		})
	}
	if newWorker != 0 {
		mirrors = append(mirrors, Change{
			Kind:        models.SubjectWorker,
			SubjectID:   newWorker,
			ChangeType:  models.ChangeJobAssigned,
			Description: fmt.Sprintf("Assigned to job %q", new.Title),
			Metadata:    meta,
			ActorID:     actorID,
		})
	}
	mirrored := r.entries(mirrors...)
	r.append(ctx, mirrored...)
	return append(entries, mirrored...)
}

// entries builds one entry per change. An invalid change is logged and left
// out, so the result never holds a nil entry.
func (r *Recorder) entries(changes ...Change) []*models.HistoryEntry {
	out := make([]*models.HistoryEntry, 0, len(changes))
	for _, c := range changes {
		e, err := r.entry(c)
		if err != nil {
			log.Errorf("[Audit] Skipping %s change on %s %d: %v", c.ChangeType, c.Kind, c.SubjectID, err)
			continue
		}
		out = append(out, e)
	}
	return out
}

func (r *Recorder) entry(c Change) (*models.HistoryEntry, error) {
	if c.SubjectID == 0 {
		return nil, apperrors.FieldValidation("subject_id", "history entry requires a subject id")
	}
	if c.ChangeType == "" {
		return nil, apperrors.FieldValidation("change_type", "history entry requires a change type")
	}
	switch c.Kind {
	case models.SubjectProperty, models.SubjectJob, models.SubjectWorker:
	default:
		return nil, apperrors.FieldValidation("subject_kind", "unknown subject kind %q", c.Kind)
	}

	entry := &models.HistoryEntry{
		SubjectKind: c.Kind,
		SubjectID:   c.SubjectID,
		ChangeType:  c.ChangeType,
		OldValue:    c.Old,
		NewValue:    c.New,
		Description: c.Description,
		ActorID:     c.ActorID,
		CreatedAt:   r.now().UTC(),
	}
	if c.Field != "" {
		field := c.Field
		entry.FieldName = &field
	}
	if len(c.Metadata) > 0 {
		raw, err := json.Marshal(c.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to encode history metadata: %w", err)
		}
		entry.Metadata = datatypes.JSON(raw)
	}
	return entry, nil
}

func (r *Recorder) append(ctx context.Context, entries ...*models.HistoryEntry) {
	if len(entries) == 0 {
		return
	}
	err := r.history.Append(ctx, entries...)
	if err == nil {
		return
	}
	log.Errorf("[Audit] Failed to append %d history entries: %v", len(entries), err)
	r.enqueueReplay(entries)
}

func workerID(id *uint) uint {
	if id == nil {
		return 0
	}
	return *id
}
