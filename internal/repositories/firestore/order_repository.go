package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/artisanshop/api/internal/domain"
	pfirestore "github.com/artisanshop/api/internal/platform/firestore"
	"github.com/artisanshop/api/internal/platform/pagination"
	"github.com/artisanshop/api/internal/repositories"
)

const (
	orderCollection = "orders"
	// orderTxnCollection indexes orders by payment transaction id so that a
	// retried checkout cannot create a second order for the same charge.
	orderTxnCollection = "order_transactions"

	defaultOrderPageSize = 50
	maxOrderPageSize     = 100
)

type orderDocument struct {
	OrderNumber     string              `firestore:"orderNumber"`
	BuyerID         string              `firestore:"buyerId"`
	Items           []orderItemDocument `firestore:"items"`
	SellerRefs      []string            `firestore:"sellerRefs"`
	TotalAmount     int64               `firestore:"totalAmount"`
	Currency        string              `firestore:"currency"`
	Status          string              `firestore:"status"`
	PaymentMethod   string              `firestore:"paymentMethod"`
	TransactionID   *string             `firestore:"transactionId,omitempty"`
	DeliveryAddress addressDocument     `firestore:"deliveryAddress"`
	CreatedAt       time.Time           `firestore:"createdAt"`
	UpdatedAt       time.Time           `firestore:"updatedAt"`
	ShippedAt       *time.Time          `firestore:"shippedAt,omitempty"`
	DeliveredAt     *time.Time          `firestore:"deliveredAt,omitempty"`
	CanceledAt      *time.Time          `firestore:"canceledAt,omitempty"`
}

type orderItemDocument struct {
	ProductRef string `firestore:"productRef"`
	SellerRef  string `firestore:"sellerRef"`
	Name       string `firestore:"name"`
	Quantity   int    `firestore:"quantity"`
	UnitPrice  int64  `firestore:"unitPrice"`
	Total      int64  `firestore:"total"`
}

type addressDocument struct {
	Street     string `firestore:"street"`
	City       string `firestore:"city"`
	State      string `firestore:"state"`
	PostalCode string `firestore:"postalCode"`
	Country    string `firestore:"country"`
}

type orderTxnDocument struct {
	OrderID   string    `firestore:"orderId"`
	CreatedAt time.Time `firestore:"createdAt"`
}

// OrderRepository implements repositories.OrderRepository on Firestore.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.BaseRepository[orderDocument]
	txns     *pfirestore.BaseRepository[orderTxnDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		provider: provider,
		orders:   pfirestore.NewBaseRepository[orderDocument](provider, orderCollection, nil, nil),
		txns:     pfirestore.NewBaseRepository[orderTxnDocument](provider, orderTxnCollection, nil, nil),
	}, nil
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// Insert persists a new order. Orders carrying a transaction id are written
// together with an index document keyed by that id inside one transaction,
// so a duplicate transaction id surfaces as a conflict and neither write
// lands.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.provider == nil {
		return errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order id is required")
	}

	doc := fromDomainOrder(order)

	if order.TransactionID == nil || strings.TrimSpace(*order.TransactionID) == "" {
		_, err := r.orders.Create(ctx, order.ID, doc)
		return err
	}

	txnID := strings.TrimSpace(*order.TransactionID)
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		txnRef, err := r.txns.DocumentRef(ctx, txnID)
		if err != nil {
			return err
		}
		orderRef, err := r.orders.DocumentRef(ctx, order.ID)
		if err != nil {
			return err
		}
		if _, err := tx.Get(txnRef); err == nil {
			return status.Errorf(codes.AlreadyExists, "transaction %s already recorded", txnID)
		} else if status.Code(err) != codes.NotFound {
			return err
		}
		if err := tx.Create(txnRef, orderTxnDocument{OrderID: order.ID, CreatedAt: doc.CreatedAt}); err != nil {
			return err
		}
		return tx.Create(orderRef, doc)
	})
	return pfirestore.WrapError("orders.insert", err)
}

// Update overwrites the stored order document.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	if r == nil || r.orders == nil {
		return errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order id is required")
	}
	_, err := r.orders.Set(ctx, order.ID, fromDomainOrder(order))
	return err
}

// Delete removes the order together with its transaction index entry.
func (r *OrderRepository) Delete(ctx context.Context, orderID string) error {
	if r == nil || r.provider == nil {
		return errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return errors.New("order id is required")
	}

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		orderRef, err := r.orders.DocumentRef(ctx, id)
		if err != nil {
			return err
		}
		snap, err := tx.Get(orderRef)
		if err != nil {
			return err
		}
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("firestore orders decode %s: %w", id, err)
		}
		if doc.TransactionID != nil && strings.TrimSpace(*doc.TransactionID) != "" {
			txnRef, err := r.txns.DocumentRef(ctx, strings.TrimSpace(*doc.TransactionID))
			if err != nil {
				return err
			}
			if err := tx.Delete(txnRef); err != nil {
				return err
			}
		}
		return tx.Delete(orderRef)
	})
	return pfirestore.WrapError("orders.delete", err)
}

// FindByID loads a single order by document id.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.orders == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	if strings.TrimSpace(orderID) == "" {
		return domain.Order{}, errors.New("order id is required")
	}
	doc, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return toDomainOrder(doc.ID, doc.Data), nil
}

// FindByTransactionID resolves the order previously persisted for a payment
// transaction.
func (r *OrderRepository) FindByTransactionID(ctx context.Context, transactionID string) (domain.Order, error) {
	if r == nil || r.txns == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(transactionID)
	if id == "" {
		return domain.Order{}, errors.New("transaction id is required")
	}
	txnDoc, err := r.txns.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return r.FindByID(ctx, txnDoc.Data.OrderID)
}

// ListByBuyer pages through the buyer's orders, newest first.
func (r *OrderRepository) ListByBuyer(ctx context.Context, buyerID string, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if strings.TrimSpace(buyerID) == "" {
		return domain.CursorPage[domain.Order]{}, errors.New("buyer id is required")
	}
	return r.list(ctx, filter, func(q firestore.Query) firestore.Query {
		return q.Where("buyerId", "==", strings.TrimSpace(buyerID))
	})
}

// ListBySeller pages through orders containing at least one line item owned
// by the seller, newest first.
func (r *OrderRepository) ListBySeller(ctx context.Context, sellerID string, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if strings.TrimSpace(sellerID) == "" {
		return domain.CursorPage[domain.Order]{}, errors.New("seller id is required")
	}
	return r.list(ctx, filter, func(q firestore.Query) firestore.Query {
		return q.Where("sellerRefs", "array-contains", strings.TrimSpace(sellerID))
	})
}

// ListDelivered returns delivered orders for reporting. The scan is bounded
// by query.Limit and the optional delivery date range.
func (r *OrderRepository) ListDelivered(ctx context.Context, query repositories.SalesQuery) ([]domain.Order, error) {
	if r == nil || r.orders == nil {
		return nil, errors.New("order repository not initialised")
	}

	docs, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("status", "==", string(domain.OrderStatusDelivered))
		if sellerID := strings.TrimSpace(query.SellerID); sellerID != "" {
			q = q.Where("sellerRefs", "array-contains", sellerID)
		}
		if query.DateRange.From != nil {
			q = q.Where("deliveredAt", ">=", query.DateRange.From.UTC())
		}
		if query.DateRange.To != nil {
			q = q.Where("deliveredAt", "<=", query.DateRange.To.UTC())
		}
		q = q.OrderBy("deliveredAt", firestore.Desc)
		if query.Limit > 0 {
			q = q.Limit(query.Limit)
		}
		return q
	})
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, toDomainOrder(doc.ID, doc.Data))
	}
	return orders, nil
}

func (r *OrderRepository) list(ctx context.Context, filter repositories.OrderListFilter, scope func(firestore.Query) firestore.Query) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.orders == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}

	pageSize := filter.Pagination.PageSize
	if pageSize <= 0 {
		pageSize = defaultOrderPageSize
	}
	if pageSize > maxOrderPageSize {
		pageSize = maxOrderPageSize
	}

	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	docs, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		q = scope(q)
		if statuses := normaliseStatuses(filter.Status); len(statuses) > 0 {
			q = q.Where("status", "in", statuses)
		}
		if filter.DateRange.From != nil {
			q = q.Where("createdAt", ">=", filter.DateRange.From.UTC())
		}
		if filter.DateRange.To != nil {
			q = q.Where("createdAt", "<=", filter.DateRange.To.UTC())
		}
		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Asc)
		if len(cursor.StartAfter) > 0 {
			q = q.StartAfter(cursor.StartAfter...)
		}
		return q.Limit(pageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	page := domain.CursorPage[domain.Order]{}
	trimmed := docs
	if len(docs) > pageSize {
		trimmed = docs[:pageSize]
	}
	for _, doc := range trimmed {
		page.Items = append(page.Items, toDomainOrder(doc.ID, doc.Data))
	}

	if len(docs) > pageSize {
		last := trimmed[len(trimmed)-1]
		token, err := pagination.EncodeToken(pagination.Cursor{
			StartAfter: []any{last.Data.CreatedAt, last.ID},
		})
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

func normaliseStatuses(statuses []string) []string {
	if len(statuses) == 0 {
		return nil
	}
	uniq := make(map[string]struct{}, len(statuses))
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		trimmed := strings.TrimSpace(s)
		if trimmed == "" {
			continue
		}
		if _, seen := uniq[trimmed]; seen {
			continue
		}
		uniq[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func fromDomainOrder(order domain.Order) orderDocument {
	items := make([]orderItemDocument, 0, len(order.Items))
	sellerSet := make(map[string]struct{}, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemDocument{
			ProductRef: strings.TrimSpace(item.ProductRef),
			SellerRef:  strings.TrimSpace(item.SellerRef),
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			Total:      item.Total,
		})
		if seller := strings.TrimSpace(item.SellerRef); seller != "" {
			sellerSet[seller] = struct{}{}
		}
	}
	sellers := make([]string, 0, len(sellerSet))
	for seller := range sellerSet {
		sellers = append(sellers, seller)
	}
	sort.Strings(sellers)

	doc := orderDocument{
		OrderNumber:   order.OrderNumber,
		BuyerID:       strings.TrimSpace(order.BuyerID),
		Items:         items,
		SellerRefs:    sellers,
		TotalAmount:   order.TotalAmount,
		Currency:      strings.ToUpper(strings.TrimSpace(order.Currency)),
		Status:        string(order.Status),
		PaymentMethod: string(order.PaymentMethod),
		DeliveryAddress: addressDocument{
			Street:     order.DeliveryAddress.Street,
			City:       order.DeliveryAddress.City,
			State:      order.DeliveryAddress.State,
			PostalCode: order.DeliveryAddress.PostalCode,
			Country:    order.DeliveryAddress.Country,
		},
		CreatedAt:   order.CreatedAt.UTC(),
		UpdatedAt:   order.UpdatedAt.UTC(),
		ShippedAt:   utcTimePtr(order.ShippedAt),
		DeliveredAt: utcTimePtr(order.DeliveredAt),
		CanceledAt:  utcTimePtr(order.CanceledAt),
	}
	if order.TransactionID != nil {
		if txn := strings.TrimSpace(*order.TransactionID); txn != "" {
			doc.TransactionID = &txn
		}
	}
	return doc
}

func toDomainOrder(id string, doc orderDocument) domain.Order {
	items := make([]domain.OrderLineItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		items = append(items, domain.OrderLineItem{
			ProductRef: item.ProductRef,
			SellerRef:  item.SellerRef,
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			Total:      item.Total,
		})
	}
	return domain.Order{
		ID:            id,
		OrderNumber:   doc.OrderNumber,
		BuyerID:       doc.BuyerID,
		Items:         items,
		TotalAmount:   doc.TotalAmount,
		Currency:      doc.Currency,
		Status:        domain.OrderStatus(doc.Status),
		PaymentMethod: domain.PaymentMethod(doc.PaymentMethod),
		TransactionID: doc.TransactionID,
		DeliveryAddress: domain.Address{
			Street:     doc.DeliveryAddress.Street,
			City:       doc.DeliveryAddress.City,
			State:      doc.DeliveryAddress.State,
			PostalCode: doc.DeliveryAddress.PostalCode,
			Country:    doc.DeliveryAddress.Country,
		},
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
		ShippedAt:   doc.ShippedAt,
		DeliveredAt: doc.DeliveredAt,
		CanceledAt:  doc.CanceledAt,
	}
}

func utcTimePtr(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	utc := value.UTC()
	return &utc
}
