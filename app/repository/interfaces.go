package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/PropFox/app/models"
)

// TenantRepository resolves the tenant → provider ownership chain
type TenantRepository interface {
	GetProvider(ctx context.Context, id uint) (*models.ServiceProvider, error)
	ProviderBelongsToTenant(ctx context.Context, providerID, tenantID uint) (bool, error)
}

// CustomerRepository defines customer persistence scoped to a provider
type CustomerRepository interface {
	Create(ctx context.Context, customer *models.Customer) error
	GetForProvider(ctx context.Context, id, providerID uint) (*models.Customer, error)
	GetByID(ctx context.Context, id uint) (*models.Customer, error)
}

// PropertyRepository defines property lookups; ownership runs through the customer
type PropertyRepository interface {
	GetForProvider(ctx context.Context, id, providerID uint) (*models.Property, error)
	Owners(ctx context.Context, ids []uint) (map[uint]SubjectOwner, error)
}

// WorkerRepository defines worker lookups
type WorkerRepository interface {
	GetForProvider(ctx context.Context, id, providerID uint) (*models.Worker, error)
	// LockForProvider loads the worker row FOR UPDATE; only meaningful inside a transaction.
	LockForProvider(ctx context.Context, id, providerID uint) (*models.Worker, error)
	Owners(ctx context.Context, ids []uint) (map[uint]SubjectOwner, error)
}

// ContractorRepository defines external contractor lookups
type ContractorRepository interface {
	GetForProvider(ctx context.Context, id, providerID uint) (*models.Contractor, error)
}

// ContractRepository defines contract and property link persistence
type ContractRepository interface {
	Create(ctx context.Context, contract *models.Contract) error
	GetForProvider(ctx context.Context, id, providerID uint) (*models.Contract, error)
	// UpdateFromStatus writes every column of contract if the stored status
	// still equals fromStatus. ErrStatusChanged otherwise.
	UpdateFromStatus(ctx context.Context, contract *models.Contract, fromStatus string) error
	ListDue(ctx context.Context, billingDay int) ([]models.Contract, error)
	GetLink(ctx context.Context, contractID, propertyID uint) (*models.ContractProperty, error)
	SaveLink(ctx context.Context, link *models.ContractProperty) error
}

// InvoiceRepository defines invoice persistence
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *models.Invoice) error
	GetForProvider(ctx context.Context, id, providerID uint) (*models.Invoice, error)
	FindForPeriod(ctx context.Context, contractID uint, periodStart, periodEnd time.Time) (*models.Invoice, error)
	FindForJob(ctx context.Context, jobID uint) (*models.Invoice, error)
	UpdateFromStatus(ctx context.Context, invoice *models.Invoice, fromStatus string) error
	SetArchiveKey(ctx context.Context, id uint, key string) error
	GetByID(ctx context.Context, id uint) (*models.Invoice, error)
}

// JobRepository defines job persistence and booking queries
type JobRepository interface {
	Create(ctx context.Context, job *models.Job) error
	GetForProvider(ctx context.Context, id, providerID uint) (*models.Job, error)
	// UpdateVersioned writes every column of job if the stored version still
	// equals expectedVersion and bumps job.Version. ErrStaleVersion otherwise.
	UpdateVersioned(ctx context.Context, job *models.Job, expectedVersion int) error
	Delete(ctx context.Context, id uint) error
	BookedOnDate(ctx context.Context, workerID uint, date time.Time, excludeJobID uint) ([]models.Job, error)
	CountCompleted(ctx context.Context, contractID uint, propertyIDs []uint, from, to time.Time) (int64, error)
	Owners(ctx context.Context, ids []uint) (map[uint]SubjectOwner, error)
}

// CalendarRepository defines calendar entry persistence
type CalendarRepository interface {
	Save(ctx context.Context, entry *models.CalendarEntry) error
	GetForProvider(ctx context.Context, id, providerID uint) (*models.CalendarEntry, error)
	FindByCheckout(ctx context.Context, propertyID uint, checkout time.Time) (*models.CalendarEntry, error)
	NeedsCleaning(ctx context.Context, providerID uint, from, to time.Time) ([]models.CalendarEntry, error)
	SetCleaningJob(ctx context.Context, id, jobID uint) error
}

// HistoryRepository defines the append-only audit log
type HistoryRepository interface {
	Append(ctx context.Context, entries ...*models.HistoryEntry) error
	List(ctx context.Context, q HistoryQuery) ([]models.HistoryEntry, error)
}

// NotificationRepository stores customer notifications
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListForCustomer(ctx context.Context, customerID uint, limit int) ([]models.Notification, error)
}

// SubjectOwner is the resolved display name and ownership chain of a history subject.
type SubjectOwner struct {
	ID         uint
	Name       string
	PropertyID uint
	ProviderID uint
	TenantID   uint
}

// HistoryQuery filters the audit log. Zero values mean "no filter".
type HistoryQuery struct {
	Kinds      []models.SubjectKind
	SubjectIDs map[models.SubjectKind][]uint
	// JobPropertyID limits job entries to jobs on that property
	JobPropertyID uint
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

// Repositories struct holds all repository instances
type Repositories struct {
	db           *gorm.DB
	Tenant       TenantRepository
	Customer     CustomerRepository
	Property     PropertyRepository
	Worker       WorkerRepository
	Contractor   ContractorRepository
	Contract     ContractRepository
	Invoice      InvoiceRepository
	Job          JobRepository
	Calendar     CalendarRepository
	History      HistoryRepository
	Notification NotificationRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:           db,
		Tenant:       NewTenantRepository(db),
		Customer:     NewCustomerRepository(db),
		Property:     NewPropertyRepository(db),
		Worker:       NewWorkerRepository(db),
		Contractor:   NewContractorRepository(db),
		Contract:     NewContractRepository(db),
		Invoice:      NewInvoiceRepository(db),
		Job:          NewJobRepository(db),
		Calendar:     NewCalendarRepository(db),
		History:      NewHistoryRepository(db),
		Notification: NewNotificationRepository(db),
	}
}

// DB exposes the underlying handle (a transaction inside Transaction).
func (r *Repositories) DB() *gorm.DB {
	return r.db
}

// Transaction runs fn with repositories bound to a single database transaction.
func (r *Repositories) Transaction(ctx context.Context, fn func(tx *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}
