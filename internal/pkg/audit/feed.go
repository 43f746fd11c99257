package audit

import (
	"context"
	"time"

	"gorm.io/datatypes"

	"github.com/ManuelReschke/PropFox/app/models"
	"github.com/ManuelReschke/PropFox/app/repository"
	"github.com/ManuelReschke/PropFox/internal/pkg/apperrors"
	"github.com/ManuelReschke/PropFox/internal/pkg/usercontext"
)

const (
	DefaultFeedLimit = 50
	MaxFeedLimit     = 200

	// maxFeedPages bounds how far the feed scans past entries of other tenants.
	maxFeedPages = 10
)

// Filter narrows the activity feed. Zero values mean "no filter".
type Filter struct {
	ActivityType models.SubjectKind
	PropertyID   uint
	WorkerID     uint
	From         *time.Time
	To           *time.Time // exclusive
	Limit        int
}

// Activity is a history entry with its resolved subject.
type Activity struct {
	ID          uint               `json:"id"`
	SubjectKind models.SubjectKind `json:"activity_type"`
	SubjectID   uint               `json:"subject_id"`
	SubjectName string             `json:"subject_name"`
	PropertyID  uint               `json:"property_id,omitempty"`
	ChangeType  string             `json:"change_type"`
	FieldName   *string            `json:"field_name,omitempty"`
	OldValue    *string            `json:"old_value,omitempty"`
	NewValue    *string            `json:"new_value,omitempty"`
	Description string             `json:"description"`
	Metadata    datatypes.JSON     `json:"metadata,omitempty"`
	ActorID     *uint              `json:"actor_id,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

// Feed is the read side of the audit trail.
type Feed struct {
	history    repository.HistoryRepository
	properties repository.PropertyRepository
	jobs       repository.JobRepository
	workers    repository.WorkerRepository
}

func NewFeed(repos *repository.Repositories) *Feed {
	return &Feed{
		history:    repos.History,
		properties: repos.Property,
		jobs:       repos.Job,
		workers:    repos.Worker,
	}
}

// GlobalActivity returns the newest history entries of all three subject kinds
// visible to the caller's tenant. Ownership is resolved after fetching, so the
// feed pages through the log until the limit is filled.
func (f *Feed) GlobalActivity(ctx context.Context, actor usercontext.Actor, filter Filter) ([]Activity, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultFeedLimit
	}
	if limit > MaxFeedLimit {
		limit = MaxFeedLimit
	}
	if filter.From != nil && filter.To != nil && !filter.To.After(*filter.From) {
		return nil, apperrors.FieldValidation("to_date", "to_date must be after from_date")
	}

	q, ok := buildQuery(filter)
	if !ok {
		return []Activity{}, nil
	}
	q.Limit = limit * 2

	out := make([]Activity, 0, limit)
	for page := 0; page < maxFeedPages && len(out) < limit; page++ {
		batch, err := f.history.List(ctx, q)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}

		owners, err := f.resolveOwners(ctx, batch)
		if err != nil {
			return nil, err
		}
		for _, e := range batch {
			owner, ok := owners[e.SubjectKind][e.SubjectID]
			if !ok || owner.TenantID != actor.TenantID {
				continue
			}
			if filter.PropertyID != 0 && e.SubjectKind == models.SubjectJob && owner.PropertyID != filter.PropertyID {
				continue
			}
			out = append(out, toActivity(e, owner))
			if len(out) == limit {
				break
			}
		}

		if len(batch) < q.Limit {
			break
		}
		q.Offset += len(batch)
	}
	return out, nil
}

// buildQuery turns the filter into a history query. It reports false when the
// filter combination cannot match anything.
func buildQuery(filter Filter) (repository.HistoryQuery, bool) {
	kinds := []models.SubjectKind{models.SubjectProperty, models.SubjectJob, models.SubjectWorker}
	if filter.ActivityType != "" {
		kinds = []models.SubjectKind{filter.ActivityType}
	}

	q := repository.HistoryQuery{From: filter.From, To: filter.To}
	if filter.PropertyID != 0 || filter.WorkerID != 0 {
		q.SubjectIDs = map[models.SubjectKind][]uint{}
		allowed := map[models.SubjectKind]bool{}
		if filter.PropertyID != 0 {
			q.SubjectIDs[models.SubjectProperty] = []uint{filter.PropertyID}
			allowed[models.SubjectProperty] = true
			q.JobPropertyID = filter.PropertyID
			allowed[models.SubjectJob] = true
		}
		if filter.WorkerID != 0 {
			q.SubjectIDs[models.SubjectWorker] = []uint{filter.WorkerID}
			allowed[models.SubjectWorker] = true
		}

		narrowed := kinds[:0:0]
		for _, k := range kinds {
			if allowed[k] {
				narrowed = append(narrowed, k)
			}
		}
		kinds = narrowed
	}

	if len(kinds) == 0 {
		return q, false
	}
	q.Kinds = kinds
	return q, true
}

func (f *Feed) resolveOwners(ctx context.Context, batch []models.HistoryEntry) (map[models.SubjectKind]map[uint]repository.SubjectOwner, error) {
	ids := map[models.SubjectKind][]uint{}
	seen := map[models.SubjectKind]map[uint]bool{}
	for _, e := range batch {
		if seen[e.SubjectKind] == nil {
			seen[e.SubjectKind] = map[uint]bool{}
		}
		if seen[e.SubjectKind][e.SubjectID] {
			continue
		}
		seen[e.SubjectKind][e.SubjectID] = true
		ids[e.SubjectKind] = append(ids[e.SubjectKind], e.SubjectID)
	}

	out := make(map[models.SubjectKind]map[uint]repository.SubjectOwner, 3)
	var err error
	if out[models.SubjectProperty], err = f.properties.Owners(ctx, ids[models.SubjectProperty]); err != nil {
		return nil, err
	}
	if out[models.SubjectJob], err = f.jobs.Owners(ctx, ids[models.SubjectJob]); err != nil {
		return nil, err
	}
	if out[models.SubjectWorker], err = f.workers.Owners(ctx, ids[models.SubjectWorker]); err != nil {
		return nil, err
	}
	return out, nil
}

func toActivity(e models.HistoryEntry, owner repository.SubjectOwner) Activity {
	return Activity{
		ID:          e.ID,
		SubjectKind: e.SubjectKind,
		SubjectID:   e.SubjectID,
		SubjectName: owner.Name,
		PropertyID:  owner.PropertyID,
		ChangeType:  e.ChangeType,
		FieldName:   e.FieldName,
		OldValue:    e.OldValue,
		NewValue:    e.NewValue,
		Description: e.Description,
		Metadata:    e.Metadata,
		ActorID:     e.ActorID,
		CreatedAt:   e.CreatedAt,
	}
}
