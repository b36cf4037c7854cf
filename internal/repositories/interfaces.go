package repositories

import (
	"context"
	"time"

	domain "github.com/artisanshop/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	Products() ProductRepository
	Users() UserRepository
	Counters() CounterRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository persists order headers and provides query helpers for
// buyers, sellers, and admins.
type OrderRepository interface {
	// Insert persists a new order. Implementations must fail with a conflict
	// error when another order already holds the same transaction id.
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	Delete(ctx context.Context, orderID string) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	FindByTransactionID(ctx context.Context, transactionID string) (domain.Order, error)
	ListByBuyer(ctx context.Context, buyerID string, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
	ListBySeller(ctx context.Context, sellerID string, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
	// ListDelivered streams delivered orders for reporting aggregation.
	ListDelivered(ctx context.Context, query SalesQuery) ([]domain.Order, error)
}

// ProductRepository reads catalog entries and adjusts stock levels.
type ProductRepository interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	FindByIDs(ctx context.Context, productIDs []string) (map[string]domain.Product, error)
	// DecrementStock atomically subtracts quantity from the product's stock
	// counter. The write is a single increment so concurrent decrements never
	// lose updates; the counter may transiently go negative.
	DecrementStock(ctx context.Context, productID string, quantity int) error
}

// UserRepository stores buyer/seller profile projections.
type UserRepository interface {
	FindByID(ctx context.Context, userID string) (domain.UserProfile, error)
}

// CounterRepository provides transaction-safe sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
	Configure(ctx context.Context, counterID string, cfg CounterConfig) error
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// Filter DTOs shared across repositories ------------------------------------

type OrderListFilter struct {
	Status     []string
	DateRange  domain.RangeQuery[time.Time]
	Pagination domain.Pagination
}

// SalesQuery bounds a delivered-order reporting scan.
type SalesQuery struct {
	SellerID  string
	DateRange domain.RangeQuery[time.Time]
	Limit     int
}

// CounterConfig customises increment behaviour and bounds for a counter.
type CounterConfig struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
}
