package firestore

import (
	"context"
	"errors"

	pfirestore "github.com/artisanshop/api/internal/platform/firestore"
	"github.com/artisanshop/api/internal/repositories"
)

// Registry bundles the Firestore-backed repositories behind the
// repositories.Registry contract.
type Registry struct {
	provider *pfirestore.Provider
	orders   *OrderRepository
	products *ProductRepository
	users    *UserRepository
	counters *CounterRepository
	health   repositories.HealthRepository
}

// NewRegistry wires the Firestore repositories over a shared provider. The
// health repository is optional.
func NewRegistry(provider *pfirestore.Provider, health repositories.HealthRepository) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	products, err := NewProductRepository(provider)
	if err != nil {
		return nil, err
	}
	users, err := NewUserRepository(provider)
	if err != nil {
		return nil, err
	}
	counters, err := NewCounterRepository(provider)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider: provider,
		orders:   orders,
		products: products,
		users:    users,
		counters: counters,
		health:   health,
	}, nil
}

var _ repositories.Registry = (*Registry)(nil)

// Close releases the shared Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

// Orders returns the order repository.
func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

// Products returns the product repository.
func (r *Registry) Products() repositories.ProductRepository { return r.products }

// Users returns the user repository.
func (r *Registry) Users() repositories.UserRepository { return r.users }

// Counters returns the counter repository.
func (r *Registry) Counters() repositories.CounterRepository { return r.counters }

// Health returns the health repository when configured.
func (r *Registry) Health() repositories.HealthRepository { return r.health }

// RunInTx executes fn as a unit. Firestore writes issued by the individual
// repositories are transactional per operation, so the registry simply runs
// the function; services keep their own compensation for multi-repository
// flows.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return errors.New("transaction function is required")
	}
	return fn(ctx)
}
