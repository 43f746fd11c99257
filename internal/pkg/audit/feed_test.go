package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PropFox/app/models"
	"github.com/ManuelReschke/PropFox/app/repository"
	"github.com/ManuelReschke/PropFox/internal/pkg/apperrors"
	"github.com/ManuelReschke/PropFox/internal/pkg/database/dbtest"
	"github.com/ManuelReschke/PropFox/internal/pkg/usercontext"
)

type feedWorld struct {
	db     *gorm.DB
	rec    *Recorder
	feed   *Feed
	own    *dbtest.Fixture
	other  *dbtest.Fixture
	job    models.Job
	worker models.Worker
	clock  time.Time
}

func newFeedWorld(t *testing.T) *feedWorld {
	t.Helper()

	db := dbtest.Open(t)
	w := &feedWorld{
		db:    db,
		own:   dbtest.Seed(t, db),
		other: dbtest.Seed(t, db),
		clock: time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC),
	}
	repos := repository.NewRepositories(db)
	w.rec = NewRecorder(repos.History, nil)
	w.rec.now = func() time.Time {
		w.clock = w.clock.Add(time.Minute)
		return w.clock
	}
	w.feed = NewFeed(repos)

	w.job = models.Job{
		Kind: models.JobKindCleaning, ProviderID: w.own.Provider.ID, PropertyID: w.own.Property.ID,
		CustomerID: w.own.Customer.ID, Title: "Turnover clean", Status: models.JobStatusPending,
	}
	require.NoError(t, repos.Job.Create(context.Background(), &w.job))
	w.worker = dbtest.CreateWorker(t, db, w.own.Provider.ID, models.WorkerTypeCleaner, 0)
	return w
}

func (w *feedWorld) record(t *testing.T, kind models.SubjectKind, id uint, change string) {
	t.Helper()
	require.NoError(t, w.rec.RecordChange(context.Background(), Change{Kind: kind, SubjectID: id, ChangeType: change}))
}

func TestGlobalActivityIsTenantScopedAndNewestFirst(t *testing.T) {
	w := newFeedWorld(t)
	w.record(t, models.SubjectProperty, w.own.Property.ID, models.ChangeContractLinked)
	w.record(t, models.SubjectProperty, w.other.Property.ID, models.ChangeContractLinked)
	w.record(t, models.SubjectJob, w.job.ID, models.ChangeCreated)
	w.record(t, models.SubjectWorker, w.worker.ID, models.ChangeJobAssigned)

	actor := usercontext.Actor{TenantID: w.own.Tenant.ID, ProviderID: w.own.Provider.ID}
	items, err := w.feed.GlobalActivity(context.Background(), actor, Filter{})
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, models.SubjectWorker, items[0].SubjectKind)
	assert.Equal(t, w.worker.Name, items[0].SubjectName)
	assert.Equal(t, models.SubjectJob, items[1].SubjectKind)
	assert.Equal(t, "Turnover clean", items[1].SubjectName)
	assert.Equal(t, w.own.Property.ID, items[1].PropertyID)
	assert.Equal(t, models.SubjectProperty, items[2].SubjectKind)
	assert.Equal(t, w.own.Property.Name, items[2].SubjectName)

	otherActor := usercontext.Actor{TenantID: w.other.Tenant.ID, ProviderID: w.other.Provider.ID}
	items, err = w.feed.GlobalActivity(context.Background(), otherActor, Filter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, w.other.Property.ID, items[0].SubjectID)
}

func TestGlobalActivityFilters(t *testing.T) {
	w := newFeedWorld(t)
	second := dbtest.CreateProperty(t, w.db, w.own.Customer.ID, "Hill Cabin")

	w.record(t, models.SubjectProperty, w.own.Property.ID, models.ChangeContractLinked)
	w.record(t, models.SubjectProperty, second.ID, models.ChangeContractLinked)
	w.record(t, models.SubjectJob, w.job.ID, models.ChangeStatusChanged)
	w.record(t, models.SubjectWorker, w.worker.ID, models.ChangeJobAssigned)
	actor := usercontext.Actor{TenantID: w.own.Tenant.ID, ProviderID: w.own.Provider.ID}
	ctx := context.Background()

	t.Run("activity type", func(t *testing.T) {
		items, err := w.feed.GlobalActivity(ctx, actor, Filter{ActivityType: models.SubjectProperty})
		require.NoError(t, err)
		assert.Len(t, items, 2)
	})

	t.Run("property includes its jobs", func(t *testing.T) {
		items, err := w.feed.GlobalActivity(ctx, actor, Filter{PropertyID: w.own.Property.ID})
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, models.SubjectJob, items[0].SubjectKind)
		assert.Equal(t, models.SubjectProperty, items[1].SubjectKind)
		assert.Equal(t, w.own.Property.ID, items[1].SubjectID)
	})

	t.Run("property of other jobs", func(t *testing.T) {
		items, err := w.feed.GlobalActivity(ctx, actor, Filter{PropertyID: second.ID})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, second.ID, items[0].SubjectID)
	})

	t.Run("worker", func(t *testing.T) {
		items, err := w.feed.GlobalActivity(ctx, actor, Filter{WorkerID: w.worker.ID})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, models.ChangeJobAssigned, items[0].ChangeType)
	})

	t.Run("worker filter with property type matches nothing", func(t *testing.T) {
		items, err := w.feed.GlobalActivity(ctx, actor, Filter{WorkerID: w.worker.ID, ActivityType: models.SubjectProperty})
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("date range", func(t *testing.T) {
		from := time.Date(2025, 1, 10, 8, 2, 0, 0, time.UTC)
		to := time.Date(2025, 1, 10, 8, 4, 0, 0, time.UTC)
		items, err := w.feed.GlobalActivity(ctx, actor, Filter{From: &from, To: &to})
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, models.SubjectJob, items[0].SubjectKind)
		assert.Equal(t, second.ID, items[1].SubjectID)
	})

	t.Run("inverted range", func(t *testing.T) {
		from := time.Date(2025, 1, 11, 0, 0, 0, 0, time.UTC)
		to := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
		_, err := w.feed.GlobalActivity(ctx, actor, Filter{From: &from, To: &to})
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("limit", func(t *testing.T) {
		items, err := w.feed.GlobalActivity(ctx, actor, Filter{Limit: 1})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, models.SubjectWorker, items[0].SubjectKind)
	})
}

func TestGlobalActivityPagesPastForeignEntries(t *testing.T) {
	w := newFeedWorld(t)
	w.record(t, models.SubjectProperty, w.own.Property.ID, models.ChangeContractLinked)
	for i := 0; i < 7; i++ {
		w.record(t, models.SubjectProperty, w.other.Property.ID, models.ChangeFeeChanged)
	}

	actor := usercontext.Actor{TenantID: w.own.Tenant.ID, ProviderID: w.own.Provider.ID}
	items, err := w.feed.GlobalActivity(context.Background(), actor, Filter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, w.own.Property.ID, items[0].SubjectID)
}

func TestBuildQuery(t *testing.T) {
	q, ok := buildQuery(Filter{})
	require.True(t, ok)
	assert.Len(t, q.Kinds, 3)
	assert.Nil(t, q.SubjectIDs)

	q, ok = buildQuery(Filter{PropertyID: 4, WorkerID: 9})
	require.True(t, ok)
	assert.ElementsMatch(t, []models.SubjectKind{models.SubjectProperty, models.SubjectJob, models.SubjectWorker}, q.Kinds)
	assert.Equal(t, []uint{4}, q.SubjectIDs[models.SubjectProperty])
	assert.Equal(t, []uint{9}, q.SubjectIDs[models.SubjectWorker])
	assert.Equal(t, uint(4), q.JobPropertyID)

	_, ok = buildQuery(Filter{ActivityType: models.SubjectJob, WorkerID: 9})
	assert.False(t, ok)
}

func TestGlobalActivityPropertyFilterSkipsOtherJobsInQuery(t *testing.T) {
	w := newFeedWorld(t)
	ctx := context.Background()

	elsewhere := models.Job{
		Kind: models.JobKindMaintenance, ProviderID: w.other.Provider.ID, PropertyID: w.other.Property.ID,
		CustomerID: w.other.Customer.ID, Title: "Busy job", Status: models.JobStatusPending,
	}
	require.NoError(t, w.db.Create(&elsewhere).Error)

	w.record(t, models.SubjectJob, w.job.ID, models.ChangeCreated)
	// more entries than the feed would page through with limit 1
	for i := 0; i < 3*maxFeedPages; i++ {
		w.record(t, models.SubjectJob, elsewhere.ID, models.ChangeUpdated)
	}

	actor := usercontext.Actor{TenantID: w.own.Tenant.ID, ProviderID: w.own.Provider.ID}
	items, err := w.feed.GlobalActivity(ctx, actor, Filter{ActivityType: models.SubjectJob, PropertyID: w.own.Property.ID, Limit: 1})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, w.job.ID, items[0].SubjectID)
	assert.Equal(t, w.own.Property.ID, items[0].PropertyID)
}
