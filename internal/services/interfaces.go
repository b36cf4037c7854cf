package services

import (
	"context"
	"strings"
	"time"

	domain "github.com/artisanshop/api/internal/domain"
	"github.com/artisanshop/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	SortOrder          = domain.SortOrder
	Order              = domain.Order
	OrderLineItem      = domain.OrderLineItem
	OrderStatus        = domain.OrderStatus
	PaymentMethod      = domain.PaymentMethod
	Address            = domain.Address
	Product            = domain.Product
	UserProfile        = domain.UserProfile
	SalesBucket        = domain.SalesBucket
	SalesReport        = domain.SalesReport
	SystemHealthReport = domain.SystemHealthReport
)

// Principal identifies the authenticated caller for authorisation decisions.
type Principal struct {
	UID   string
	Email string
	Roles []string
}

// HasRole reports whether the principal carries the given role.
func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the principal carries the admin role.
func (p Principal) IsAdmin() bool {
	return p.HasRole("admin")
}

// IsSeller reports whether the principal carries the seller role.
func (p Principal) IsSeller() bool {
	return p.HasRole("seller")
}

// OrderService owns the order lifecycle: payment intents, checkout
// finalisation, status transitions, and deletion rules.
type OrderService interface {
	RequestPaymentIntent(ctx context.Context, cmd PaymentIntentCommand) (PaymentIntentResult, error)
	FinalizeOrder(ctx context.Context, cmd FinalizeOrderCommand) (Order, error)
	GetOrder(ctx context.Context, principal Principal, orderID string) (Order, error)
	ListBuyerOrders(ctx context.Context, principal Principal, buyerID string, filter OrderListFilter) (domain.CursorPage[Order], error)
	ListSellerOrders(ctx context.Context, principal Principal, sellerID string, filter OrderListFilter) (domain.CursorPage[Order], error)
	TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error)
	DeleteOrder(ctx context.Context, cmd DeleteOrderCommand) error
	VerifyPayment(ctx context.Context, cmd VerifyPaymentCommand) (PaymentVerification, error)
}

// ReportService aggregates delivered orders into seller-facing sales reports.
type ReportService interface {
	SellerSales(ctx context.Context, cmd SalesReportCommand) (SalesReport, error)
}

// SystemService aggregates utility endpoints such as health checks.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// Command and DTO definitions ------------------------------------------------

type OrderListFilter = repositories.OrderListFilter

// PaymentIntentCommand requests a gateway payment intent ahead of checkout.
// Amount is expressed in major currency units; the gateway adapter converts
// to minor units.
type PaymentIntentCommand struct {
	Principal       Principal
	Amount          int64
	Currency        string
	Description     string
	CustomerName    string
	DeliveryAddress Address
	Provider        string
}

// PaymentIntentResult carries the client-facing handle for a created intent.
type PaymentIntentResult struct {
	IntentID     string
	ClientSecret string
	Provider     string
	Amount       int64
	Currency     string
}

// FinalizeOrderLine is the buyer-submitted view of one cart line. Prices are
// never trusted from the client; they are re-read from the catalog.
type FinalizeOrderLine struct {
	ProductID string
	Quantity  int
}

// FinalizeOrderCommand turns a verified payment and a cart snapshot into a
// persisted order. PaymentIntentID is empty for cash-on-delivery orders.
type FinalizeOrderCommand struct {
	Principal       Principal
	Items           []FinalizeOrderLine
	ClaimedTotal    int64
	Currency        string
	PaymentMethod   PaymentMethod
	PaymentIntentID string
	DeliveryAddress Address
}

type OrderStatusTransitionCommand struct {
	Principal    Principal
	OrderID      string
	TargetStatus OrderStatus
}

type DeleteOrderCommand struct {
	Principal Principal
	OrderID   string
}

type VerifyPaymentCommand struct {
	Principal     Principal
	TransactionID string
	Provider      string
}

// PaymentVerification reports the gateway's view of a transaction.
type PaymentVerification struct {
	TransactionID string
	Status        string
	Amount        int64
	Currency      string
	Verified      bool
}

// SalesReportCommand bounds a seller sales aggregation run.
type SalesReportCommand struct {
	Principal Principal
	SellerID  string
	From      *time.Time
	To        *time.Time
	TopLimit  int
}
