package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/fossbin/propease/internal/models"
)

// ErrConflict is returned when a write would violate a uniqueness rule:
// a second active transaction on a property, a second payment for a period,
// or a duplicate primary key.
var ErrConflict = errors.New("conflicting record")

// ErrMissing is returned by Update when the record does not exist.
var ErrMissing = errors.New("record does not exist")

// PropertyRepository defines data access for properties.
// Get returns nil, nil when the property does not exist.
type PropertyRepository interface {
	Create(ctx context.Context, p *models.Property) error
	Get(ctx context.Context, id uuid.UUID) (*models.Property, error)
	// GetForUpdate is Get plus a row lock held until the surrounding
	// transaction ends. Outside WithinTx it behaves like Get.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Property, error)
	Update(ctx context.Context, p *models.Property) error
	// List returns matching properties, newest first.
	List(ctx context.Context, filter models.PropertyFilter) ([]models.Property, error)
}

// ApplicationRepository defines data access for applications.
// Get returns nil, nil when the application does not exist.
type ApplicationRepository interface {
	Create(ctx context.Context, a *models.Application) error
	Get(ctx context.Context, id uuid.UUID) (*models.Application, error)
	Update(ctx context.Context, a *models.Application) error
	// List returns matching applications, oldest first.
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, error)
}

// TransactionRepository defines data access for transactions and their payments.
// Get returns nil, nil when the transaction does not exist.
type TransactionRepository interface {
	// Create fails with ErrConflict when the property already has an active transaction.
	Create(ctx context.Context, t *models.Transaction) error
	Get(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	Update(ctx context.Context, t *models.Transaction) error
	// List returns matching transactions, oldest first.
	List(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, error)
	// RecordPayment fails with ErrConflict when the period is already recorded.
	RecordPayment(ctx context.Context, p *models.Payment) error
	// Payments returns the recorded payments of a transaction ordered by period.
	Payments(ctx context.Context, transactionID uuid.UUID) ([]models.Payment, error)
}

// Repositories groups the repositories that share one unit of work.
type Repositories interface {
	Properties() PropertyRepository
	Applications() ApplicationRepository
	Transactions() TransactionRepository
}

// Store is the persistence boundary used by the services.
type Store interface {
	Repositories
	// WithinTx runs fn atomically. If fn returns an error nothing it wrote is
	// visible afterwards. fn must only use the Repositories it is given.
	WithinTx(ctx context.Context, fn func(r Repositories) error) error
	Ping(ctx context.Context) error
	Close()
}
