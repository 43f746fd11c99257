package repository

import (
	"context"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/ManuelReschke/PropFox/app/models"
)

// historyRepository implements the HistoryRepository interface. Rows are only
// ever inserted.
type historyRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &historyRepository{db: db}
}

func (r *historyRepository) Append(ctx context.Context, entries ...*models.HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(entries).Error
}

// List returns entries newest first. Kinds listed in SubjectIDs (and job
// entries when JobPropertyID is set) are limited to those ids; other kinds
// pass through unrestricted.
func (r *historyRepository) List(ctx context.Context, q HistoryQuery) ([]models.HistoryEntry, error) {
	query := r.db.WithContext(ctx).Model(&models.HistoryEntry{})
	if len(q.Kinds) > 0 {
		query = query.Where("subject_kind IN ?", q.Kinds)
	}
	if len(q.SubjectIDs) > 0 || q.JobPropertyID != 0 {
		kinds := make([]string, 0, len(q.SubjectIDs))
		for kind := range q.SubjectIDs {
			kinds = append(kinds, string(kind))
		}
		sort.Strings(kinds)

		var parts []string
		var args []interface{}
		for _, kind := range kinds {
			parts = append(parts, "(subject_kind = ? AND subject_id IN ?)")
			args = append(args, kind, q.SubjectIDs[models.SubjectKind(kind)])
		}
		if q.JobPropertyID != 0 {
			jobs := r.db.Model(&models.Job{}).Select("id").Where("property_id = ?", q.JobPropertyID)
			parts = append(parts, "(subject_kind = ? AND subject_id IN (?))")
			args = append(args, string(models.SubjectJob), jobs)
			kinds = append(kinds, string(models.SubjectJob))
		}

		parts = append([]string{"subject_kind NOT IN ?"}, parts...)
		args = append([]interface{}{kinds}, args...)
		query = query.Where("("+strings.Join(parts, " OR ")+")", args...)
	}
	if q.From != nil {
		query = query.Where("created_at >= ?", *q.From)
	}
	if q.To != nil {
		query = query.Where("created_at < ?", *q.To)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	if q.Offset > 0 {
		query = query.Offset(q.Offset)
	}

	var entries []models.HistoryEntry
	err := query.Order("created_at DESC").Order("id DESC").Find(&entries).Error
	return entries, err
}
