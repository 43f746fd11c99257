// Package billing computes contract fees and issues cleaning and maintenance
// invoices. It also owns the contract lifecycle and the daily due sweep.
package billing

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PropFox/app/repository"
	"github.com/ManuelReschke/PropFox/internal/pkg/audit"
	"github.com/ManuelReschke/PropFox/internal/pkg/env"
	"github.com/ManuelReschke/PropFox/internal/pkg/jobqueue"
	"github.com/ManuelReschke/PropFox/internal/pkg/notify"
)

// DefaultTaxPercentage is the flat rate applied to every invoice.
var DefaultTaxPercentage = decimal.NewFromInt(20)

// Service provides contract billing on top of the repositories.
type Service struct {
	repos    *repository.Repositories
	recorder *audit.Recorder
	queue    jobqueue.Enqueuer
	notifier notify.Notifier

	taxPercentage    decimal.Decimal
	defaultTermsDays int
	now              func() time.Time
	tracer           trace.Tracer
	validate         *validator.Validate
}

// Option customises a Service.
type Option func(*Service)

// WithTaxPercentage overrides the flat tax rate.
func WithTaxPercentage(p decimal.Decimal) Option {
	return func(s *Service) { s.taxPercentage = p }
}

// WithDefaultTermsDays sets the due-date offset for unknown payment terms.
func WithDefaultTermsDays(days int) Option {
	return func(s *Service) { s.defaultTermsDays = days }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithNotifier installs the customer notification collaborator.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// NewService creates a billing service. queue may be nil; paid invoices are
// then not archived.
func NewService(repos *repository.Repositories, recorder *audit.Recorder, queue jobqueue.Enqueuer, opts ...Option) *Service {
	s := &Service{
		repos:            repos,
		recorder:         recorder,
		queue:            queue,
		taxPercentage:    DefaultTaxPercentage,
		defaultTermsDays: 14,
		now:              time.Now,
		tracer:           otel.Tracer("github.com/ManuelReschke/PropFox/internal/pkg/billing"),
		validate:         validator.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewServiceFromDB wires a service from a GORM handle and the process config.
func NewServiceFromDB(db *gorm.DB, queue jobqueue.Enqueuer) (*Service, error) {
	cfg := env.GetConfig()
	tax, err := decimal.NewFromString(cfg.TaxPercentage)
	if err != nil {
		return nil, fmt.Errorf("invalid BILLING_TAX_PERCENTAGE %q: %w", cfg.TaxPercentage, err)
	}

	repos := repository.NewRepositories(db)
	recorder := audit.NewRecorder(repos.History, queue)
	return NewService(repos, recorder, queue,
		WithTaxPercentage(tax),
		WithDefaultTermsDays(cfg.DefaultTermsDays),
		WithNotifier(notify.NewQueueNotifier(queue, repos.Notification)),
	), nil
}

func (s *Service) today() time.Time {
	now := s.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
