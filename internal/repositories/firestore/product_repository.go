package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/artisanshop/api/internal/domain"
	pfirestore "github.com/artisanshop/api/internal/platform/firestore"
	"github.com/artisanshop/api/internal/repositories"
)

const productCollection = "products"

type productDocument struct {
	SellerID  string    `firestore:"sellerId"`
	Name      string    `firestore:"name"`
	Category  string    `firestore:"category"`
	Price     int64     `firestore:"price"`
	Currency  string    `firestore:"currency"`
	Stock     int       `firestore:"stock"`
	IsActive  bool      `firestore:"isActive"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// ProductRepository implements repositories.ProductRepository on Firestore.
type ProductRepository struct {
	provider *pfirestore.Provider
	products *pfirestore.BaseRepository[productDocument]
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	return &ProductRepository{
		provider: provider,
		products: pfirestore.NewBaseRepository[productDocument](provider, productCollection, nil, nil),
	}, nil
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)

// FindByID loads a single product.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.products == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	if strings.TrimSpace(productID) == "" {
		return domain.Product{}, errors.New("product id is required")
	}
	doc, err := r.products.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	return toDomainProduct(doc.ID, doc.Data), nil
}

// FindByIDs fetches the requested products in one transaction so a checkout
// prices every line against the same snapshot. Missing ids are absent from
// the returned map rather than an error.
func (r *ProductRepository) FindByIDs(ctx context.Context, productIDs []string) (map[string]domain.Product, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("product repository not initialised")
	}

	ids := make([]string, 0, len(productIDs))
	seen := make(map[string]struct{}, len(productIDs))
	for _, id := range productIDs {
		trimmed := strings.TrimSpace(id)
		if trimmed == "" {
			continue
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}
		ids = append(ids, trimmed)
	}
	if len(ids) == 0 {
		return map[string]domain.Product{}, nil
	}

	result := make(map[string]domain.Product, len(ids))
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		refs := make([]*firestore.DocumentRef, 0, len(ids))
		for _, id := range ids {
			ref, err := r.products.DocumentRef(ctx, id)
			if err != nil {
				return err
			}
			refs = append(refs, ref)
		}
		snaps, err := tx.GetAll(refs)
		if err != nil {
			return err
		}
		for _, snap := range snaps {
			if !snap.Exists() {
				continue
			}
			var doc productDocument
			if err := snap.DataTo(&doc); err != nil {
				return fmt.Errorf("firestore products decode %s: %w", snap.Ref.ID, err)
			}
			result[snap.Ref.ID] = toDomainProduct(snap.Ref.ID, doc)
		}
		return nil
	})
	if err != nil {
		return nil, pfirestore.WrapError("products.findByIds", err)
	}
	return result, nil
}

// DecrementStock subtracts quantity from the product's stock counter with a
// single server-side increment. Concurrent decrements cannot lose updates;
// the counter may transiently dip below zero under contention.
func (r *ProductRepository) DecrementStock(ctx context.Context, productID string, quantity int) error {
	if r == nil || r.products == nil {
		return errors.New("product repository not initialised")
	}
	id := strings.TrimSpace(productID)
	if id == "" {
		return errors.New("product id is required")
	}
	if quantity <= 0 {
		return fmt.Errorf("decrement quantity must be positive, got %d", quantity)
	}

	_, err := r.products.Update(ctx, id, []firestore.Update{
		{Path: "stock", Value: firestore.Increment(-quantity)},
		{Path: "updatedAt", Value: time.Now().UTC()},
	})
	return err
}

func toDomainProduct(id string, doc productDocument) domain.Product {
	return domain.Product{
		ID:        id,
		SellerID:  doc.SellerID,
		Name:      doc.Name,
		Category:  doc.Category,
		Price:     doc.Price,
		Currency:  doc.Currency,
		Stock:     doc.Stock,
		IsActive:  doc.IsActive,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}
