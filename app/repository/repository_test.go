package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PropFox/app/models"
	"github.com/ManuelReschke/PropFox/internal/pkg/database/dbtest"
)

var day = time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC)

func newJob(t *testing.T, db *gorm.DB, fx *dbtest.Fixture, status string) *models.Job {
	t.Helper()
	j := &models.Job{
		Kind:       models.JobKindMaintenance,
		ProviderID: fx.Provider.ID,
		PropertyID: fx.Property.ID,
		CustomerID: fx.Customer.ID,
		Title:      "Fix " + status,
		Status:     status,
	}
	require.NoError(t, NewJobRepository(db).Create(context.Background(), j))
	return j
}

func TestUpdateVersionedRejectsStaleVersion(t *testing.T) {
	db := dbtest.Open(t)
	fx := dbtest.Seed(t, db)
	repo := NewJobRepository(db)
	ctx := context.Background()

	job := newJob(t, db, fx, models.JobStatusApproved)
	assert.Equal(t, 1, job.Version)

	first, err := repo.GetForProvider(ctx, job.ID, fx.Provider.ID)
	require.NoError(t, err)
	second, err := repo.GetForProvider(ctx, job.ID, fx.Provider.ID)
	require.NoError(t, err)

	first.Title = "first writer"
	require.NoError(t, repo.UpdateVersioned(ctx, first, 1))
	assert.Equal(t, 2, first.Version)

	second.Title = "second writer"
	err = repo.UpdateVersioned(ctx, second, 1)
	assert.True(t, errors.Is(err, ErrStaleVersion))
	assert.Equal(t, 1, second.Version)

	stored, err := repo.GetForProvider(ctx, job.ID, fx.Provider.ID)
	require.NoError(t, err)
	assert.Equal(t, "first writer", stored.Title)
	assert.Equal(t, 2, stored.Version)
}

func TestGetForProviderHidesOtherProviders(t *testing.T) {
	db := dbtest.Open(t)
	fx := dbtest.Seed(t, db)
	other := dbtest.Seed(t, db)
	ctx := context.Background()

	job := newJob(t, db, fx, models.JobStatusPending)
	_, err := NewJobRepository(db).GetForProvider(ctx, job.ID, other.Provider.ID)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	_, err = NewPropertyRepository(db).GetForProvider(ctx, fx.Property.ID, other.Provider.ID)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	p, err := NewPropertyRepository(db).GetForProvider(ctx, fx.Property.ID, fx.Provider.ID)
	require.NoError(t, err)
	assert.Equal(t, fx.Property.ID, p.ID)
}

func TestBookedOnDate(t *testing.T) {
	db := dbtest.Open(t)
	fx := dbtest.Seed(t, db)
	worker := dbtest.CreateWorker(t, db, fx.Provider.ID, models.WorkerTypeTechnician, 0)
	repo := NewJobRepository(db)
	ctx := context.Background()

	book := func(status, start, end string, date time.Time) *models.Job {
		j := newJob(t, db, fx, status)
		require.NoError(t, db.Model(j).Updates(map[string]interface{}{
			"assigned_worker_id": worker.ID,
			"scheduled_date":     date,
			"start_time":         start,
			"end_time":           end,
		}).Error)
		return j
	}

	late := book(models.JobStatusScheduled, "14:00", "15:00", day)
	early := book(models.JobStatusInProgress, "08:00", "09:00", day)
	book(models.JobStatusCancelled, "10:00", "11:00", day)
	book(models.JobStatusCompleted, "11:00", "12:00", day)
	book(models.JobStatusScheduled, "10:00", "11:00", day.AddDate(0, 0, 1))

	jobs, err := repo.BookedOnDate(ctx, worker.ID, day, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, early.ID, jobs[0].ID)
	assert.Equal(t, late.ID, jobs[1].ID)

	jobs, err = repo.BookedOnDate(ctx, worker.ID, day, early.ID)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, late.ID, jobs[0].ID)
}

func TestCountCompleted(t *testing.T) {
	db := dbtest.Open(t)
	fx := dbtest.Seed(t, db)
	repo := NewJobRepository(db)
	ctx := context.Background()

	contractID := uint(42)
	complete := func(at time.Time, withContract bool) {
		j := newJob(t, db, fx, models.JobStatusCompleted)
		updates := map[string]interface{}{"completed_at": at}
		if withContract {
			updates["contract_id"] = contractID
		}
		require.NoError(t, db.Model(j).Updates(updates).Error)
	}

	complete(day, true)
	complete(day.AddDate(0, 0, 3), false)
	complete(day.AddDate(0, 1, 0), true)
	newJob(t, db, fx, models.JobStatusScheduled)

	n, err := repo.CountCompleted(ctx, contractID, []uint{fx.Property.ID}, day, day.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = repo.CountCompleted(ctx, contractID, nil, day, day.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestHistoryListFilters(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewHistoryRepository(db)
	ctx := context.Background()

	at := func(h int) time.Time { return day.Add(time.Duration(h) * time.Hour) }
	entries := []*models.HistoryEntry{
		{SubjectKind: models.SubjectJob, SubjectID: 1, ChangeType: models.ChangeCreated, CreatedAt: at(1)},
		{SubjectKind: models.SubjectJob, SubjectID: 2, ChangeType: models.ChangeCreated, CreatedAt: at(2)},
		{SubjectKind: models.SubjectProperty, SubjectID: 7, ChangeType: models.ChangeUpdated, CreatedAt: at(3)},
		{SubjectKind: models.SubjectWorker, SubjectID: 9, ChangeType: models.ChangeJobAssigned, CreatedAt: at(4)},
	}
	require.NoError(t, repo.Append(ctx, entries...))
	require.NoError(t, repo.Append(ctx))

	all, err := repo.List(ctx, HistoryQuery{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, models.SubjectWorker, all[0].SubjectKind)
	assert.Equal(t, uint(1), all[3].SubjectID)

	jobs, err := repo.List(ctx, HistoryQuery{Kinds: []models.SubjectKind{models.SubjectJob}})
	require.NoError(t, err)
	assert.Len(t, jobs, 2)

	restricted, err := repo.List(ctx, HistoryQuery{
		SubjectIDs: map[models.SubjectKind][]uint{models.SubjectJob: {2}},
	})
	require.NoError(t, err)
	require.Len(t, restricted, 3)
	for _, e := range restricted {
		if e.SubjectKind == models.SubjectJob {
			assert.Equal(t, uint(2), e.SubjectID)
		}
	}

	from, to := at(2), at(4)
	window, err := repo.List(ctx, HistoryQuery{From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, window, 2)
	assert.Equal(t, uint(7), window[0].SubjectID)
	assert.Equal(t, uint(2), window[1].SubjectID)

	page, err := repo.List(ctx, HistoryQuery{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, uint(7), page[0].SubjectID)
}

func TestOwnersResolveTenantChain(t *testing.T) {
	db := dbtest.Open(t)
	fx := dbtest.Seed(t, db)
	ctx := context.Background()

	job := newJob(t, db, fx, models.JobStatusPending)
	worker := dbtest.CreateWorker(t, db, fx.Provider.ID, models.WorkerTypeGeneral, 0)

	jobs, err := NewJobRepository(db).Owners(ctx, []uint{job.ID, 999})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, fx.Tenant.ID, jobs[job.ID].TenantID)
	assert.Equal(t, fx.Property.ID, jobs[job.ID].PropertyID)
	assert.Equal(t, job.Title, jobs[job.ID].Name)

	props, err := NewPropertyRepository(db).Owners(ctx, []uint{fx.Property.ID})
	require.NoError(t, err)
	assert.Equal(t, "Seaside Loft", props[fx.Property.ID].Name)
	assert.Equal(t, fx.Provider.ID, props[fx.Property.ID].ProviderID)

	workers, err := NewWorkerRepository(db).Owners(ctx, []uint{worker.ID})
	require.NoError(t, err)
	assert.Equal(t, fx.Tenant.ID, workers[worker.ID].TenantID)

	empty, err := NewWorkerRepository(db).Owners(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestProviderBelongsToTenant(t *testing.T) {
	db := dbtest.Open(t)
	fx := dbtest.Seed(t, db)
	other := dbtest.Seed(t, db)
	repo := NewTenantRepository(db)
	ctx := context.Background()

	ok, err := repo.ProviderBelongsToTenant(ctx, fx.Provider.ID, fx.Tenant.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ProviderBelongsToTenant(ctx, fx.Provider.ID, other.Tenant.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTransactionRollsBack(t *testing.T) {
	db := dbtest.Open(t)
	fx := dbtest.Seed(t, db)
	repos := NewRepositories(db)
	ctx := context.Background()

	boom := errors.New("boom")
	err := repos.Transaction(ctx, func(tx *Repositories) error {
		j := &models.Job{
			Kind:       models.JobKindCleaning,
			ProviderID: fx.Provider.ID,
			PropertyID: fx.Property.ID,
			CustomerID: fx.Customer.ID,
			Title:      "Turnover",
		}
		if err := tx.Job.Create(ctx, j); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var n int64
	require.NoError(t, db.Model(&models.Job{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestUpdateFromStatusGuardsTheWrite(t *testing.T) {
	db := dbtest.Open(t)
	fx := dbtest.Seed(t, db)
	repo := NewInvoiceRepository(db)
	ctx := context.Background()

	inv := &models.Invoice{
		Kind: models.InvoiceKindCleaning, InvoiceNumber: "INV-202503-0001",
		ProviderID: fx.Provider.ID, CustomerID: fx.Customer.ID,
		PeriodStart: day, PeriodEnd: day.AddDate(0, 1, 0), DueDate: day.AddDate(0, 1, 14),
		Status: models.InvoiceStatusPending,
	}
	require.NoError(t, repo.Create(ctx, inv))

	stale := *inv
	inv.Status = models.InvoiceStatusPaid
	require.NoError(t, repo.UpdateFromStatus(ctx, inv, models.InvoiceStatusPending))

	stale.Notes = "late edit"
	err := repo.UpdateFromStatus(ctx, &stale, models.InvoiceStatusPending)
	assert.True(t, errors.Is(err, ErrStatusChanged))

	stored, err := repo.GetByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusPaid, stored.Status)
	assert.Empty(t, stored.Notes)
}

func TestHistoryListJobPropertyFilter(t *testing.T) {
	db := dbtest.Open(t)
	fx := dbtest.Seed(t, db)
	other := dbtest.Seed(t, db)
	repo := NewHistoryRepository(db)
	ctx := context.Background()

	here := newJob(t, db, fx, models.JobStatusPending)
	there := newJob(t, db, other, models.JobStatusPending)
	require.NoError(t, repo.Append(ctx,
		&models.HistoryEntry{SubjectKind: models.SubjectJob, SubjectID: here.ID, ChangeType: models.ChangeCreated, CreatedAt: day},
		&models.HistoryEntry{SubjectKind: models.SubjectJob, SubjectID: there.ID, ChangeType: models.ChangeCreated, CreatedAt: day},
		&models.HistoryEntry{SubjectKind: models.SubjectProperty, SubjectID: fx.Property.ID, ChangeType: models.ChangeUpdated, CreatedAt: day},
		&models.HistoryEntry{SubjectKind: models.SubjectProperty, SubjectID: other.Property.ID, ChangeType: models.ChangeUpdated, CreatedAt: day},
	))

	entries, err := repo.List(ctx, HistoryQuery{
		SubjectIDs:    map[models.SubjectKind][]uint{models.SubjectProperty: {fx.Property.ID}},
		JobPropertyID: fx.Property.ID,
	})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		switch e.SubjectKind {
		case models.SubjectJob:
			assert.Equal(t, here.ID, e.SubjectID)
		case models.SubjectProperty:
			assert.Equal(t, fx.Property.ID, e.SubjectID)
		}
	}
}
